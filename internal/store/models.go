package store

import "time"

// InstanceType identifies which arr flavour an instance talks to.
type InstanceType string

const (
	InstanceSonarr InstanceType = "sonarr"
	InstanceRadarr InstanceType = "radarr"
)

// Valid reports whether t is a known instance type.
func (t InstanceType) Valid() bool {
	return t == InstanceSonarr || t == InstanceRadarr
}

// ContentType returns the library content type tracked for this instance type.
func (t InstanceType) ContentType() ContentType {
	if t == InstanceSonarr {
		return ContentSeries
	}
	return ContentMovie
}

// ContentType tags library items.
type ContentType string

const (
	ContentSeries ContentType = "series"
	ContentMovie  ContentType = "movie"
)

// Instance is a configured connection to one arr service. APIKey holds
// ciphertext; it is never stored decrypted.
type Instance struct {
	ID                 int64
	UserID             int64
	Name               string
	Type               InstanceType
	URL                string
	APIKey             string
	VerifySSL          bool
	RateLimitPerSecond int
	Active             bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// SearchRun is one executed batch of backlog searches. Metadata is the raw
// audit blob; an empty string means the column is NULL.
type SearchRun struct {
	ID                int64
	InstanceID        int64
	QueueID           *int64
	Name              string
	Strategy          string
	StartedAt         time.Time
	CompletedAt       *time.Time
	Status            string
	ItemsSearched     int
	ItemsFound        int
	SearchesTriggered int
	ErrorsEncountered int
	Metadata          string
	// FeedbackCheckedAt is set once a scheduler or the CLI has reconciled the
	// run.
	FeedbackCheckedAt *time.Time
}

// LibraryItem is the durable record of one series or movie tracked against
// an instance.
type LibraryItem struct {
	ID             int64
	InstanceID     int64
	ContentType    ContentType
	ExternalID     int64
	Title          string
	EpisodeCount   int
	EpisodeHave    int
	GrabsConfirmed int
	LastGrabAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
