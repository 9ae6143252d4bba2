// Package export flattens the filtered activity collection into the CSV
// document offered for download.
package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/seclens/threatview/pkg/events"
)

// Header is the fixed first row of every export.
var Header = []string{
	"ID",
	"Message",
	"Device",
	"Source IP",
	"Destination IP",
	"Service",
	"Action",
	"Protocol",
	"Destination Country",
	"Policy ID",
	"Bytes Sent",
	"Bytes Received",
	"Severity",
	"Date",
}

const dateLayout = "2006-01-02 15:04:05"

// Project maps one event to its export row. Newlines in the message are
// replaced with spaces and the timestamp is rendered in loc.
func Project(e events.ActivityEvent, loc *time.Location) []string {
	if loc == nil {
		loc = time.Local
	}

	device := e.Device
	if e.DevType != "" {
		if device == "" {
			device = e.DevType
		} else {
			device = fmt.Sprintf("%s (%s)", device, e.DevType)
		}
	}

	date := e.Timestamp
	if t := e.Time(); !t.IsZero() {
		date = t.In(loc).Format(dateLayout)
	}

	message := strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(e.Message)

	return []string{
		strconv.FormatInt(e.ID, 10),
		message,
		device,
		e.SrcIP,
		e.DstIP,
		e.Service,
		e.Action,
		e.Proto,
		e.DstCountry,
		e.PolicyID,
		strconv.FormatInt(e.SentBytes, 10),
		strconv.FormatInt(e.RcvdBytes, 10),
		string(e.Status),
		date,
	}
}

// Write serializes the collection as UTF-8 CSV: header first, comma
// separated, every field wrapped in double quotes with embedded quotes
// doubled. encoding/csv only quotes fields that need it, and the export
// format quotes unconditionally, so the quoting is done here.
func Write(w io.Writer, list []events.ActivityEvent, loc *time.Location) error {
	if err := writeRow(w, Header); err != nil {
		return err
	}
	for _, e := range list {
		if err := writeRow(w, Project(e, loc)); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(w io.Writer, row []string) error {
	var b strings.Builder
	for i, field := range row {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(field, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}
