// Package engine wires the transport manager, reconciliation buffer, and
// query components into the live activity engine behind the dashboard.
package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/seclens/threatview/pkg/config"
	"github.com/seclens/threatview/pkg/events"
	"github.com/seclens/threatview/pkg/export"
	"github.com/seclens/threatview/pkg/filter"
	"github.com/seclens/threatview/pkg/reconcile"
	"github.com/seclens/threatview/pkg/store"
	"github.com/seclens/threatview/pkg/transport"
	"github.com/seclens/threatview/pkg/view"
)

// seedLimit bounds how much of the archive is loaded as the fallback
// collection on startup.
const seedLimit = 500

// Engine owns the live activity state for one dashboard session. All
// mutation happens through the transport manager's callbacks; readers get
// stable copies.
type Engine struct {
	cfg     *config.Config
	logger  *slog.Logger
	buffer  *reconcile.Buffer
	alerter *reconcile.Alerter
	manager *transport.Manager
	pager   *view.Pager
	archive store.ReaderInterface
	loc     *time.Location

	mu   sync.Mutex
	seed []events.ActivityEvent // host-supplied fallback collection

	closeOnce sync.Once
}

// New builds the engine from configuration. The archive is optional; when
// configured it supplies the initial/fallback activity collection.
func New(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:     cfg,
		logger:  logger,
		alerter: reconcile.NewAlerter(time.Duration(cfg.AlertDuration)*time.Second, logger),
		pager:   view.NewPager(cfg.PageSize),
		loc:     loc,
	}
	e.buffer = reconcile.NewBuffer(e.alerter, logger)

	e.manager = transport.NewManager(transport.Config{
		PushURL:      cfg.PushURL,
		PollURL:      cfg.PollURL,
		Limit:        cfg.PageSize,
		PollInterval: time.Duration(cfg.PollInterval) * time.Second,
		GracePeriod:  time.Duration(cfg.GracePeriod) * time.Second,
	}, e.buffer.Apply, logger)

	if cfg.ArchivePath != "" {
		archive, err := store.Open(cfg.ArchivePath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open activity archive: %w", err)
		}
		e.archive = archive
	}

	return e, nil
}

// Run seeds the engine from the archive, starts the transport manager, and
// blocks until the context is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("Starting activity engine",
		"push_url", e.cfg.PushURL,
		"poll_url", e.cfg.PollURL,
		"page_size", e.cfg.PageSize,
	)

	if e.archive != nil {
		list, err := e.archive.GetActivities(ctx, store.QueryOptions{Limit: seedLimit})
		if err != nil {
			// seed data is best-effort: the live feed still works without it
			e.logger.Warn("Failed to load seed collection", "error", err)
		} else {
			e.mu.Lock()
			e.seed = list
			e.mu.Unlock()

			if len(list) > e.cfg.PageSize {
				e.buffer.Seed(list[:e.cfg.PageSize])
			} else {
				e.buffer.Seed(list)
			}
			e.logger.Info("Seeded activity collection from archive", "count", len(list))
		}
	}

	if err := e.manager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start transport manager: %w", err)
	}

	<-ctx.Done()
	e.logger.Info("Context cancelled, shutting down")
	e.Close()
	return ctx.Err()
}

// Recent returns the displayed recent activity window, newest first.
func (e *Engine) Recent() []events.ActivityEvent {
	return e.buffer.Window()
}

// Known returns every event the engine knows about: the recent window first,
// then seed events not superseded by it. De-duplicated by id.
func (e *Engine) Known() []events.ActivityEvent {
	window := e.buffer.Window()

	e.mu.Lock()
	seed := e.seed
	e.mu.Unlock()

	seen := make(map[int64]bool, len(window))
	out := make([]events.ActivityEvent, 0, len(window)+len(seed))
	for _, ev := range window {
		if !seen[ev.ID] {
			seen[ev.ID] = true
			out = append(out, ev)
		}
	}
	for _, ev := range seed {
		if !seen[ev.ID] {
			seen[ev.ID] = true
			out = append(out, ev)
		}
	}
	return out
}

// Search evaluates the free-text query and structured filters over the full
// known collection.
func (e *Engine) Search(query string, filters []filter.SearchFilter) []events.ActivityEvent {
	return filter.Apply(e.Known(), query, filters)
}

// SetSeverity narrows the paged view to one severity and resets to page 1.
func (e *Engine) SetSeverity(severity string) {
	e.pager.SetSeverity(severity)
}

// SetPage requests a page of the recent window.
func (e *Engine) SetPage(page int) {
	e.pager.SetPage(page)
}

// Page returns the current page of the severity-narrowed recent window and
// the total page count.
func (e *Engine) Page() ([]events.ActivityEvent, int) {
	return e.pager.Page(e.Recent())
}

// ExportCSV writes the severity-narrowed known collection, not page
// limited, as CSV.
func (e *Engine) ExportCSV(w io.Writer) error {
	return export.Write(w, e.pager.Narrowed(e.Known()), e.loc)
}

// ActiveAlert returns the currently displayed high severity alert, if any.
func (e *Engine) ActiveAlert() (reconcile.Alert, bool) {
	return e.alerter.Current()
}

// DismissAlert manually closes the active alert.
func (e *Engine) DismissAlert() {
	e.alerter.Dismiss()
}

// ConnectionState reports the transport state for the status indicator.
func (e *Engine) ConnectionState() transport.State {
	return e.manager.State()
}

// Close tears down the transport, alert timers, and archive handle. Safe to
// call more than once.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.manager.Close()
		e.alerter.Close()
		if e.archive != nil {
			if err := e.archive.Close(); err != nil {
				e.logger.Error("Failed to close activity archive", "error", err)
			}
		}
	})
}
