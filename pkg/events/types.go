package events

import (
	"time"
)

// Severity is the discrete threat level assigned to an event by the backend.
// Matching is exact and case-sensitive.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ActivityEvent represents a single security activity delivered by the backend.
// Events are immutable once received; ID is the de-duplication key and is
// monotonically non-decreasing as emitted within a session.
type ActivityEvent struct {
	ID        int64    `json:"id"`
	Message   string   `json:"message"` // raw log line with embedded key=value tokens
	Timestamp string   `json:"timestamp"`
	Status    Severity `json:"status"`

	// Structured fields, present when the backend could parse them out.
	// Used only as direct-match filter targets and export columns.
	Device     string `json:"device,omitempty"`
	DevType    string `json:"devtype,omitempty"`
	OSName     string `json:"osname,omitempty"`
	SrcIP      string `json:"srcip,omitempty"`
	DstIP      string `json:"dstip,omitempty"`
	SrcPort    int    `json:"srcport,omitempty"`
	DstPort    int    `json:"dstport,omitempty"`
	Proto      string `json:"proto,omitempty"`
	Service    string `json:"service,omitempty"`
	Action     string `json:"action,omitempty"`
	PolicyID   string `json:"policyid,omitempty"`
	SrcIntf    string `json:"srcintf,omitempty"`
	DstIntf    string `json:"dstintf,omitempty"`
	DstCountry string `json:"dstcountry,omitempty"`
	SentBytes  int64  `json:"sentbyte,omitempty"`
	RcvdBytes  int64  `json:"rcvdbyte,omitempty"`
}

// timestamp layouts accepted from the backend, tried in order
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTime parses the event timestamp string. The backend emits ISO-8601;
// zone-less variants are interpreted as UTC.
func ParseTime(s string) (time.Time, error) {
	var err error
	for _, layout := range timeLayouts {
		var t time.Time
		t, err = time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

// Time returns the parsed event timestamp, or the zero time if the
// timestamp string is malformed.
func (e *ActivityEvent) Time() time.Time {
	t, err := ParseTime(e.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}
