// Package filter evaluates free-text queries and structured filters
// against the activity collection.
package filter

import (
	"strconv"
	"strings"
	"time"

	"github.com/seclens/threatview/pkg/events"
)

// SearchFilter is one structured predicate over the activity collection.
// Field selects the predicate; Operator is carried for future comparison
// modes but does not affect dispatch yet.
type SearchFilter struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// fields matched against the tokenized log message
var tokenFields = map[string]bool{
	"type":    true,
	"subtype": true,
	"action":  true,
	"service": true,
	"srcip":   true,
	"dstip":   true,
	"srcport": true,
	"dstport": true,
	"proto":   true,
	"srcintf": true,
	"dstintf": true,
	"devtype": true,
	"osname":  true,
}

// Search returns the events matching a free-text query. The query is split
// on whitespace into case-insensitive terms; an event matches if any term is
// a substring of its message, source device, or severity. An empty or
// whitespace-only query is a pass-through.
func Search(list []events.ActivityEvent, query string) []events.ActivityEvent {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return list
	}

	matched := []events.ActivityEvent{}
	for _, e := range list {
		msg := strings.ToLower(e.Message)
		src := strings.ToLower(e.Device)
		status := strings.ToLower(string(e.Status))
		for _, term := range terms {
			if strings.Contains(msg, term) || strings.Contains(src, term) || strings.Contains(status, term) {
				matched = append(matched, e)
				break
			}
		}
	}
	return matched
}

// Narrow applies a conjunction of structured filters: every filter must
// match for an event to survive. Filters with an unrecognized field are
// ignored. The order of filters does not affect the result.
func Narrow(list []events.ActivityEvent, filters []SearchFilter) []events.ActivityEvent {
	if len(filters) == 0 {
		return list
	}

	now := time.Now()
	matched := []events.ActivityEvent{}
	for _, e := range list {
		var tokens map[string]string // lazily built, shared across filters
		keep := true
		for _, f := range filters {
			field := strings.ToLower(f.Field)
			if tokens == nil && tokenFields[field] {
				tokens = events.Fields(e.Message)
			}
			if !matchFilter(&e, f, field, tokens, now) {
				keep = false
				break
			}
		}
		if keep {
			matched = append(matched, e)
		}
	}
	return matched
}

// Apply runs the free-text query and the structured filters together.
func Apply(list []events.ActivityEvent, query string, filters []SearchFilter) []events.ActivityEvent {
	return Narrow(Search(list, query), filters)
}

func matchFilter(e *events.ActivityEvent, f SearchFilter, field string, tokens map[string]string, now time.Time) bool {
	value := strings.ToLower(f.Value)

	switch {
	case field == "severity":
		return string(e.Status) == value

	case field == "source":
		return strings.Contains(strings.ToLower(e.Device), value)

	case tokenFields[field]:
		// Prefix match against the extracted token: equivalent to finding
		// the literal `key=value` (or `key="value`) inside the message,
		// without requiring the closing quote.
		tok, ok := tokens[field]
		return ok && strings.HasPrefix(tok, value)

	case field == "time":
		hours, err := strconv.Atoi(f.Value)
		if err != nil {
			// fail closed on anything but a whole hour count
			return false
		}
		cutoff := now.Add(-time.Duration(hours) * time.Hour)
		return e.Time().After(cutoff)

	default:
		// unknown field: filter is a no-op
		return true
	}
}
