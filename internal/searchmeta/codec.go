package searchmeta

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Reason explains why Parse returned no entries.
type Reason int

const (
	ReasonOK Reason = iota
	// ReasonEmpty means the blob was absent or blank.
	ReasonEmpty
	// ReasonInvalid means the blob was not valid JSON, or held a list whose
	// elements were not objects.
	ReasonInvalid
	// ReasonNotList means the blob was valid JSON of some other shape.
	ReasonNotList
)

func (r Reason) String() string {
	switch r {
	case ReasonOK:
		return "ok"
	case ReasonEmpty:
		return "empty"
	case ReasonInvalid:
		return "invalid"
	case ReasonNotList:
		return "not_list"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// Parse decodes a stored audit blob. It never fails; any reason other than
// ReasonOK comes with nil entries.
func Parse(raw string) ([]Entry, Reason) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, ReasonEmpty
	}
	data := []byte(trimmed)
	if !json.Valid(data) {
		return nil, ReasonInvalid
	}
	if data[0] != '[' {
		return nil, ReasonNotList
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, ReasonInvalid
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, ReasonOK
}

// Serialize encodes entries in order. A nil slice encodes as an empty list.
func Serialize(entries []Entry) (string, error) {
	if entries == nil {
		entries = []Entry{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(entries); err != nil {
		return "", fmt.Errorf("serialize search metadata: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// Summary tallies grab outcomes across a run's entries.
type Summary struct {
	Total      int `json:"total"`
	Actionable int `json:"actionable"`
	Confirmed  int `json:"confirmed"`
	Missed     int `json:"missed"`
	Unknown    int `json:"unknown"`
	Unchecked  int `json:"unchecked"`
}

// Summarize counts outcomes for actionable entries. Entries that are not
// actionable only contribute to Total.
func Summarize(entries []Entry) Summary {
	s := Summary{Total: len(entries)}
	for _, entry := range entries {
		if !entry.Actionable() {
			continue
		}
		s.Actionable++
		switch entry.Grab {
		case GrabConfirmed:
			s.Confirmed++
		case GrabMissed:
			s.Missed++
		case GrabUnknown:
			s.Unknown++
		default:
			s.Unchecked++
		}
	}
	return s
}
