// Package transport delivers recent-activity snapshots over a WebSocket
// push channel, degrading to fixed-interval polling when the push channel
// cannot be opened or is lost.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/seclens/threatview/pkg/events"
	"github.com/seclens/threatview/pkg/metrics"
)

// State is the connection state shown on the dashboard status indicator.
// Exactly one state is current at any time.
type State int

const (
	StateConnecting State = iota
	StateLive
	StateFallback
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateLive:
		return "live"
	case StateFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

const (
	// DefaultPollInterval is the fallback polling cadence.
	DefaultPollInterval = 10 * time.Second

	// DefaultGracePeriod bounds how long the initial dial may stay
	// unresolved before polling is force-started.
	DefaultGracePeriod = 2 * time.Second

	// DefaultHandshakeTimeout bounds the WebSocket upgrade against a peer
	// that accepts the TCP connection but never answers.
	DefaultHandshakeTimeout = 30 * time.Second
)

// defaultDialer builds a dialer whose in-flight handshake aborts when the
// dial context is canceled. gorilla's DialContext honors ctx only during
// the TCP phase, so the raw connection is closed from a watcher instead.
func defaultDialer() *websocket.Dialer {
	return &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: DefaultHandshakeTimeout,
		NetDialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			var d net.Dialer
			conn, err := d.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			go func() {
				<-ctx.Done()
				_ = conn.Close()
			}()
			return conn, nil
		},
	}
}

// Config holds the endpoints and timing of a Manager.
type Config struct {
	// PushURL is the ws:// or wss:// endpoint delivering JSON-array
	// snapshot messages.
	PushURL string

	// PollURL is the HTTP endpoint answering GET ?limit=N with a JSON
	// array of recent events.
	PollURL string

	// Limit is the snapshot size requested from the poll endpoint.
	Limit int

	// PollInterval is the fallback polling cadence (default 10s).
	PollInterval time.Duration

	// GracePeriod bounds an unresolved dial (default 2s).
	GracePeriod time.Duration
}

// Manager owns the two snapshot channels. From the consumer's perspective
// exactly one of {push channel, poll timer} is active at a time; a
// generation counter bumped on every channel transition guards against a
// superseded channel's late response being applied.
type Manager struct {
	cfg     Config
	apply   func([]events.ActivityEvent)
	onState func(State)
	logger  *slog.Logger

	dialer *websocket.Dialer
	client *http.Client

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	state      State
	gen        uint64
	conn       *websocket.Conn
	polling    bool
	pollCancel context.CancelFunc
	graceTimer *time.Timer
	closed     bool
	started    bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithStateFunc registers a callback invoked on every state transition.
// The callback must not call back into the Manager.
func WithStateFunc(fn func(State)) Option {
	return func(m *Manager) { m.onState = fn }
}

// WithHTTPClient overrides the poll HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.client = c }
}

// WithDialer overrides the WebSocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(m *Manager) { m.dialer = d }
}

// NewManager creates a Manager delivering every accepted snapshot to apply.
func NewManager(cfg Config, apply func([]events.ActivityEvent), logger *slog.Logger, opts ...Option) *Manager {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}

	m := &Manager{
		cfg:    cfg,
		apply:  apply,
		logger: logger,
		dialer: defaultDialer(),
		client: &http.Client{Timeout: 30 * time.Second},
		state:  StateConnecting,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start opens the push channel asynchronously. If the dial neither succeeds
// nor fails within the grace period, fallback polling is force-started; a
// dial completing later supersedes the poller.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("transport manager already closed")
	}
	if m.started {
		return fmt.Errorf("transport manager already started")
	}
	m.started = true

	m.ctx, m.cancel = context.WithCancel(ctx)
	metrics.ConnectionState.Set(float64(StateConnecting))

	m.graceTimer = time.AfterFunc(m.cfg.GracePeriod, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.closed || m.polling || m.state == StateLive {
			return
		}
		m.logger.Warn("Push channel unresolved past grace period, starting fallback polling",
			"grace_period", m.cfg.GracePeriod,
		)
		m.startPollingLocked()
	})

	m.wg.Add(1)
	go m.connect()

	return nil
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Close tears down whichever channel is open. It is idempotent: closing an
// already-closed manager, channel, or timer is a no-op. No snapshot or
// state callback fires after Close returns.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.gen++
	if m.graceTimer != nil {
		m.graceTimer.Stop()
		m.graceTimer = nil
	}
	m.stopPollingLocked()
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Unlock()

	m.wg.Wait()
}

// connect dials the push endpoint and hands the socket to the read loop.
func (m *Manager) connect() {
	defer m.wg.Done()

	conn, resp, err := m.dialer.DialContext(m.ctx, m.cfg.PushURL, nil)
	if resp != nil && resp.Body != nil && conn == nil {
		_ = resp.Body.Close()
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if m.graceTimer != nil {
		m.graceTimer.Stop()
		m.graceTimer = nil
	}

	if err != nil {
		m.logger.Warn("Push channel open failed, falling back to polling", "error", err)
		m.startPollingLocked()
		m.mu.Unlock()
		return
	}

	// Dial succeeded; supersede any grace-started poller.
	m.stopPollingLocked()
	m.conn = conn
	m.gen++
	gen := m.gen
	m.setStateLocked(StateLive)
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.Info("Push channel established", "url", m.cfg.PushURL)

	go m.readLoop(conn, gen)
}

// readLoop consumes push messages until the socket errors or closes.
func (m *Manager) readLoop(conn *websocket.Conn, gen uint64) {
	defer m.wg.Done()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.mu.Lock()
			if m.closed || gen != m.gen {
				m.mu.Unlock()
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				m.logger.Warn("Push channel error, falling back to polling", "error", err)
			} else {
				m.logger.Info("Push channel closed, falling back to polling")
			}
			m.conn = nil
			m.startPollingLocked()
			m.mu.Unlock()
			return
		}

		var snapshot []events.ActivityEvent
		if err := json.Unmarshal(data, &snapshot); err != nil {
			// malformed payloads are dropped, never fatal
			metrics.MessagesDropped.Inc()
			m.logger.Debug("Dropping malformed push message", "error", err)
			continue
		}

		m.deliver(snapshot, gen, "push")
	}
}

// startPollingLocked begins the fallback poll loop. Caller holds mu.
func (m *Manager) startPollingLocked() {
	if m.polling || m.closed {
		return
	}
	m.polling = true
	m.gen++
	gen := m.gen
	m.setStateLocked(StateFallback)

	pollCtx, cancel := context.WithCancel(m.ctx)
	m.pollCancel = cancel

	m.wg.Add(1)
	go m.pollLoop(pollCtx, gen)
}

// stopPollingLocked clears the poll timer. Caller holds mu. Clearing an
// unset timer is a no-op.
func (m *Manager) stopPollingLocked() {
	if m.pollCancel != nil {
		m.pollCancel()
		m.pollCancel = nil
	}
	m.polling = false
}

// pollLoop fetches a snapshot immediately and then on every tick.
func (m *Manager) pollLoop(ctx context.Context, gen uint64) {
	defer m.wg.Done()

	m.poll(ctx, gen)

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll(ctx, gen)
		}
	}
}

// poll issues one bounded fetch. Failures and empty responses preserve the
// last known snapshot.
func (m *Manager) poll(ctx context.Context, gen uint64) {
	url := fmt.Sprintf("%s?limit=%d", m.cfg.PollURL, m.cfg.Limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		metrics.PollFailures.Inc()
		m.logger.Error("Failed to build poll request", "error", err)
		return
	}

	resp, err := m.client.Do(req)
	if err != nil {
		metrics.PollFailures.Inc()
		m.logger.Warn("Poll request failed, keeping last snapshot", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.PollFailures.Inc()
		m.logger.Warn("Poll request rejected, keeping last snapshot", "status", resp.StatusCode)
		return
	}

	var snapshot []events.ActivityEvent
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		metrics.PollFailures.Inc()
		m.logger.Warn("Poll response malformed, keeping last snapshot", "error", err)
		return
	}

	if len(snapshot) == 0 {
		// zero items means "no update", not "clear the window"
		return
	}

	m.deliver(snapshot, gen, "poll")
}

// deliver forwards a snapshot to the consumer unless the channel that
// produced it has been superseded or the manager is closed.
func (m *Manager) deliver(snapshot []events.ActivityEvent, gen uint64, source string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	if gen != m.gen {
		metrics.StaleSnapshotsDiscarded.Inc()
		m.logger.Debug("Discarding snapshot from superseded channel", "source", source)
		return
	}

	metrics.SnapshotsApplied.WithLabelValues(source).Inc()
	m.apply(snapshot)
}

// setStateLocked records a state transition. Caller holds mu.
func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.state = s
	metrics.ConnectionState.Set(float64(s))
	m.logger.Info("Connection state changed", "state", s.String())
	if m.onState != nil {
		m.onState(s)
	}
}
