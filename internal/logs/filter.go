package logs

import (
	"encoding/json"
	"strings"
)

// Filter keeps a raw log line when it returns true.
type Filter func(line string) bool

type lineFields struct {
	Level     string `json:"level"`
	HistoryID *int64 `json:"history_id"`
}

func decodeLine(line string) (lineFields, bool) {
	var f lineFields
	if !strings.HasPrefix(strings.TrimSpace(line), "{") {
		return f, false
	}
	if err := json.Unmarshal([]byte(line), &f); err != nil {
		return f, false
	}
	return f, true
}

// ForHistory keeps records logged while reconciling history id.
func ForHistory(id int64) Filter {
	return func(line string) bool {
		f, ok := decodeLine(line)
		return ok && f.HistoryID != nil && *f.HistoryID == id
	}
}

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

// MinLevel keeps records at or above level. Lines that are not JSON records
// are kept so stack traces and panics stay visible.
func MinLevel(level string) Filter {
	min, ok := levelRank[strings.ToLower(strings.TrimSpace(level))]
	if !ok {
		return nil
	}
	return func(line string) bool {
		f, ok := decodeLine(line)
		if !ok {
			return true
		}
		rank, known := levelRank[strings.ToLower(f.Level)]
		return !known || rank >= min
	}
}

// All combines filters; nil entries are ignored.
func All(filters ...Filter) Filter {
	active := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			active = append(active, f)
		}
	}
	if len(active) == 0 {
		return nil
	}
	return func(line string) bool {
		for _, f := range active {
			if !f(line) {
				return false
			}
		}
		return true
	}
}
