package arr

import "strings"

// Kind selects which arr flavour a session talks to.
type Kind string

const (
	KindSonarr Kind = "sonarr"
	KindRadarr Kind = "radarr"
)

// CommandStatus is the subset of /api/v3/command/{id} used to follow a
// submitted search.
type CommandStatus struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Status  string `json:"status"`
	Result  string `json:"result"`
	Message string `json:"message"`
}

// Completed reports whether the command reached the "completed" state. Any
// other status, including "failed", means there is nothing to verify yet.
func (c CommandStatus) Completed() bool {
	return strings.EqualFold(strings.TrimSpace(c.Status), "completed")
}

// Episode is one row of /api/v3/episode?seriesId=.
type Episode struct {
	ID            int64  `json:"id"`
	SeriesID      int64  `json:"seriesId"`
	SeasonNumber  int    `json:"seasonNumber"`
	EpisodeNumber int    `json:"episodeNumber"`
	Title         string `json:"title"`
	HasFile       bool   `json:"hasFile"`
	Monitored     bool   `json:"monitored"`
}

// Movie is the subset of /api/v3/movie/{id} used for grab checks.
type Movie struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Year      int    `json:"year"`
	HasFile   bool   `json:"hasFile"`
	Monitored bool   `json:"monitored"`
}

// SystemStatus is returned by the acquisition probe.
type SystemStatus struct {
	AppName string `json:"appName"`
	Version string `json:"version"`
}
