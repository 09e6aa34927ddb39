package searchmeta

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Action tags written by the search executor.
const (
	ActionEpisodeSearch = "EpisodeSearch"
	ActionMoviesSearch  = "MoviesSearch"
	ActionSkipped       = "skipped"
)

const (
	keyItem          = "item"
	keyAction        = "action"
	keyItemID        = "item_id"
	keySeriesID      = "series_id"
	keyCommandID     = "command_id"
	keyResult        = "result"
	keyGrabConfirmed = "grab_confirmed"
)

// GrabState is the three-valued outcome of a grab check.
type GrabState int

const (
	// GrabUnset means the entry carries no grab_confirmed key at all.
	GrabUnset GrabState = iota
	// GrabUnknown means the check ran but failed; serialized as null.
	GrabUnknown
	// GrabConfirmed means the remote service now has the file.
	GrabConfirmed
	// GrabMissed means the command finished (or had not) without a file.
	GrabMissed
)

func (g GrabState) String() string {
	switch g {
	case GrabUnknown:
		return "unknown"
	case GrabConfirmed:
		return "confirmed"
	case GrabMissed:
		return "missed"
	default:
		return "unset"
	}
}

// GrabFromBool maps a classifier verdict onto a GrabState.
func GrabFromBool(confirmed bool) GrabState {
	if confirmed {
		return GrabConfirmed
	}
	return GrabMissed
}

// Entry is one item's search attempt within a run.
type Entry struct {
	Item      string
	Action    string
	ItemID    *int64
	SeriesID  *int64
	CommandID *int64
	Result    string
	Grab      GrabState

	// Extra holds keys this package does not model, and known keys whose
	// value had an unexpected type, exactly as they were read.
	Extra map[string]json.RawMessage

	// present records string keys seen on decode so empty strings survive a
	// round trip.
	present map[string]bool
}

// Actionable reports whether the entry refers to a submitted search command
// that can be polled.
func (e Entry) Actionable() bool {
	if e.CommandID == nil {
		return false
	}
	switch e.Action {
	case ActionEpisodeSearch, ActionMoviesSearch:
		return true
	default:
		return false
	}
}

// MarshalJSON writes known keys first in a fixed order, then any extra keys
// sorted by name.
func (e Entry) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	written := make(map[string]bool, 8)
	first := true
	write := func(key string, value any) error {
		raw, err := marshalValue(value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", key, err)
		}
		return writeRaw(&buf, &first, key, raw, written)
	}

	if e.Item != "" || e.present[keyItem] {
		if err := write(keyItem, e.Item); err != nil {
			return nil, err
		}
	}
	if e.Action != "" || e.present[keyAction] {
		if err := write(keyAction, e.Action); err != nil {
			return nil, err
		}
	}
	for _, field := range []struct {
		key   string
		value *int64
	}{
		{keyItemID, e.ItemID},
		{keySeriesID, e.SeriesID},
		{keyCommandID, e.CommandID},
	} {
		if field.value == nil {
			continue
		}
		if err := write(field.key, *field.value); err != nil {
			return nil, err
		}
	}
	if e.Result != "" || e.present[keyResult] {
		if err := write(keyResult, e.Result); err != nil {
			return nil, err
		}
	}
	switch e.Grab {
	case GrabUnknown:
		if err := writeRaw(&buf, &first, keyGrabConfirmed, []byte("null"), written); err != nil {
			return nil, err
		}
	case GrabConfirmed, GrabMissed:
		if err := write(keyGrabConfirmed, e.Grab == GrabConfirmed); err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(e.Extra))
	for key := range e.Extra {
		if !written[key] {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		raw := e.Extra[key]
		if len(raw) == 0 {
			raw = json.RawMessage("null")
		}
		if err := writeRaw(&buf, &first, key, raw, written); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalValue(value any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func writeRaw(buf *bytes.Buffer, first *bool, key string, raw []byte, written map[string]bool) error {
	name, err := marshalValue(key)
	if err != nil {
		return err
	}
	if !*first {
		buf.WriteByte(',')
	}
	*first = false
	buf.Write(name)
	buf.WriteByte(':')
	buf.Write(raw)
	written[key] = true
	return nil
}

// UnmarshalJSON decodes one audit object. Known keys holding a value of the
// wrong type are kept verbatim in Extra rather than rejected.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("searchmeta: entry is null")
	}

	*e = Entry{}
	for key, raw := range fields {
		var ok bool
		switch key {
		case keyItem:
			ok = decodeString(raw, &e.Item)
		case keyAction:
			ok = decodeString(raw, &e.Action)
		case keyResult:
			ok = decodeString(raw, &e.Result)
		case keyItemID:
			e.ItemID, ok = decodeInt(raw)
		case keySeriesID:
			e.SeriesID, ok = decodeInt(raw)
		case keyCommandID:
			e.CommandID, ok = decodeInt(raw)
		case keyGrabConfirmed:
			e.Grab, ok = decodeGrab(raw)
		}
		switch {
		case ok && (key == keyItem || key == keyAction || key == keyResult):
			if e.present == nil {
				e.present = make(map[string]bool, 3)
			}
			e.present[key] = true
		case !ok:
			if e.Extra == nil {
				e.Extra = make(map[string]json.RawMessage)
			}
			e.Extra[key] = append(json.RawMessage(nil), raw...)
		}
	}
	return nil
}

func decodeString(raw json.RawMessage, dst *string) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '"' {
		return false
	}
	return json.Unmarshal(trimmed, dst) == nil
}

func decodeInt(raw json.RawMessage) (*int64, bool) {
	trimmed := bytes.TrimSpace(raw)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil, false
	}
	var value int64
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return nil, false
	}
	return &value, true
}

func decodeGrab(raw json.RawMessage) (GrabState, bool) {
	switch string(bytes.TrimSpace(raw)) {
	case "null":
		return GrabUnknown, true
	case "true":
		return GrabConfirmed, true
	case "false":
		return GrabMissed, true
	default:
		return GrabUnset, false
	}
}

// Int64 returns a pointer to v, for building entries in code.
func Int64(v int64) *int64 {
	return &v
}
