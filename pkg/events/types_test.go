package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseTime_Layouts(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2026-08-29T10:30:00Z", time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)},
		{"2026-08-29T10:30:00+02:00", time.Date(2026, 8, 29, 10, 30, 0, 0, time.FixedZone("", 2*3600))},
		{"2026-08-29T10:30:00", time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)},
		{"2026-08-29 10:30:00", time.Date(2026, 8, 29, 10, 30, 0, 0, time.UTC)},
	}

	for _, tc := range cases {
		got, err := ParseTime(tc.in)
		if err != nil {
			t.Errorf("ParseTime(%q) failed: %v", tc.in, err)
			continue
		}
		if !got.Equal(tc.want) {
			t.Errorf("ParseTime(%q) = %v, expected %v", tc.in, got, tc.want)
		}
	}
}

func TestParseTime_Invalid(t *testing.T) {
	if _, err := ParseTime("not-a-timestamp"); err == nil {
		t.Error("Expected error for malformed timestamp")
	}

	e := ActivityEvent{Timestamp: "garbage"}
	if !e.Time().IsZero() {
		t.Error("Expected zero time for malformed event timestamp")
	}
}

func TestActivityEvent_WireFormat(t *testing.T) {
	payload := `{
		"id": 42,
		"message": "type=\"attack\" srcip=10.0.0.5",
		"timestamp": "2026-08-29T10:30:00Z",
		"status": "high",
		"device": "fw-edge-01",
		"devtype": "Router",
		"srcip": "10.0.0.5",
		"dstip": "192.168.1.20",
		"srcport": 51220,
		"dstport": 443,
		"proto": "TCP",
		"service": "HTTPS",
		"action": "blocked",
		"policyid": "7",
		"dstcountry": "Germany",
		"sentbyte": 1280,
		"rcvdbyte": 0
	}`

	var e ActivityEvent
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if e.ID != 42 {
		t.Errorf("Expected ID=42, got %d", e.ID)
	}
	if e.Status != SeverityHigh {
		t.Errorf("Expected status high, got %q", e.Status)
	}
	if e.Message != `type="attack" srcip=10.0.0.5` {
		t.Errorf("Unexpected message: %q", e.Message)
	}
	if e.SrcPort != 51220 || e.DstPort != 443 {
		t.Errorf("Unexpected ports: %d -> %d", e.SrcPort, e.DstPort)
	}
	if e.SentBytes != 1280 {
		t.Errorf("Expected sentbyte=1280, got %d", e.SentBytes)
	}
}
