// Package store reads the local activity archive that seeds the dashboard
// before any live data has been confirmed. The archive is read-only from
// the engine's point of view.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite" // sqlite driver

	"github.com/seclens/threatview/pkg/events"
)

// QueryOptions defines parameters for querying the archive.
type QueryOptions struct {
	// Limit the number of activities to fetch (default: 100)
	Limit int

	// Offset for pagination
	Offset int

	// Filter by severity (empty = all)
	Severity string

	// Filter by time range
	StartTime *time.Time

	// Filter by minimum activity ID
	MinID *int64
}

// ReaderInterface defines the interface for reading activities from the
// archive.
type ReaderInterface interface {
	// GetActivities fetches activities, newest first
	GetActivities(ctx context.Context, opts QueryOptions) ([]events.ActivityEvent, error)

	// GetActivityCount returns the total count matching the options
	GetActivityCount(ctx context.Context, opts QueryOptions) (int64, error)

	// Close closes the database connection
	Close() error
}

// Reader implements ReaderInterface over a SQL activity archive.
type Reader struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens the SQLite archive at path and verifies the connection.
func Open(path string, logger *slog.Logger) (*Reader, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open activity archive: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping activity archive: %w", err)
	}

	logger.Debug("Opened activity archive", "path", path)
	return NewReader(db, logger), nil
}

// NewReader creates a Reader over an existing database handle.
func NewReader(db *sql.DB, logger *slog.Logger) *Reader {
	return &Reader{
		db:     db,
		logger: logger,
	}
}

const activityColumns = "id, timestamp, status, message, device, devtype, osname, srcip, dstip, srcport, dstport, proto, service, action, policyid, srcintf, dstintf, dstcountry, sentbyte, rcvdbyte"

// GetActivities fetches activities from the archive, newest first.
func (r *Reader) GetActivities(ctx context.Context, opts QueryOptions) ([]events.ActivityEvent, error) {
	query := "SELECT " + activityColumns + " FROM activities"

	conditions, args := buildConditions(opts)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY id DESC"

	if opts.Limit == 0 {
		opts.Limit = 100
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, opts.Limit, opts.Offset)

	r.logger.Debug("Executing archive query", "query", query, "args", args)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	list := []events.ActivityEvent{}
	for rows.Next() {
		var e events.ActivityEvent
		var status string
		var message, device, devtype, osname sql.NullString
		var srcip, dstip, proto, service, action sql.NullString
		var policyid, srcintf, dstintf, dstcountry sql.NullString
		var srcport, dstport sql.NullInt64
		var sentbyte, rcvdbyte sql.NullInt64

		err := rows.Scan(
			&e.ID,
			&e.Timestamp,
			&status,
			&message,
			&device,
			&devtype,
			&osname,
			&srcip,
			&dstip,
			&srcport,
			&dstport,
			&proto,
			&service,
			&action,
			&policyid,
			&srcintf,
			&dstintf,
			&dstcountry,
			&sentbyte,
			&rcvdbyte,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}

		e.Status = events.Severity(status)
		e.Message = message.String
		e.Device = device.String
		e.DevType = devtype.String
		e.OSName = osname.String
		e.SrcIP = srcip.String
		e.DstIP = dstip.String
		e.SrcPort = int(srcport.Int64)
		e.DstPort = int(dstport.Int64)
		e.Proto = proto.String
		e.Service = service.String
		e.Action = action.String
		e.PolicyID = policyid.String
		e.SrcIntf = srcintf.String
		e.DstIntf = dstintf.String
		e.DstCountry = dstcountry.String
		e.SentBytes = sentbyte.Int64
		e.RcvdBytes = rcvdbyte.Int64

		list = append(list, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	r.logger.Info("Fetched activities from archive", "count", len(list))
	return list, nil
}

// GetActivityCount returns the total count of activities matching the
// options.
func (r *Reader) GetActivityCount(ctx context.Context, opts QueryOptions) (int64, error) {
	query := "SELECT COUNT(*) FROM activities"

	conditions, args := buildConditions(opts)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	var count int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count activities: %w", err)
	}

	return count, nil
}

func buildConditions(opts QueryOptions) ([]string, []any) {
	conditions := []string{}
	args := []any{}

	if opts.Severity != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, opts.Severity)
	}

	if opts.StartTime != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, opts.StartTime.UTC().Format(time.RFC3339))
	}

	if opts.MinID != nil {
		conditions = append(conditions, "id > ?")
		args = append(args, *opts.MinID)
	}

	return conditions, args
}

// Close closes the database connection.
func (r *Reader) Close() error {
	return r.db.Close()
}
