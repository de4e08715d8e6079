// Package latency measures time-to-first-token and total response time
// around a caller-triggered action, using mutation timestamps recorded
// inside the observed document.
//
// A Monitor is a scope: Start arms the mutation channel, the caller
// performs the triggering action (and typically awaits stream completion
// while the scope is open), Close retrieves the final snapshot, freezes
// the derived metrics, and disarms. Disarm runs on every exit path; a
// failing disarm is logged, never raised over the primary result.
package latency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/streamprobe/browser"
	"github.com/hazyhaar/streamprobe/mutchan"
)

// ErrMetricsNotReady reports a metrics read while the monitor scope is
// still open. Metrics exist only after Close.
var ErrMetricsNotReady = errors.New("latency: metrics not ready, monitor scope still open")

// Armer is the mutation-channel surface the monitor consumes.
// *mutchan.Channel implements it.
type Armer interface {
	Arm(ctx context.Context, loc browser.Locator) (*mutchan.Handle, error)
	Retrieve(ctx context.Context, h *mutchan.Handle) (mutchan.Snapshot, error)
	Disarm(ctx context.Context, h *mutchan.Handle) error
}

// Metrics is the derived, read-only view over the final snapshot of a
// monitor scope. Computed once at scope close, immutable thereafter.
//
// TTFT and Total are meaningful only when Observed is true; with zero
// mutations there is no first token to measure.
type Metrics struct {
	TTFT       time.Duration `json:"ttft"`
	Total      time.Duration `json:"total"`
	TokenCount int           `json:"token_count"`
	Observed   bool          `json:"observed"`
}

// fromSnapshot derives Metrics from a mutation snapshot. Snapshot times
// are document-local milliseconds; the derived durations are differences
// on that same clock, so cross-process skew cancels out.
func fromSnapshot(snap mutchan.Snapshot) Metrics {
	m := Metrics{TokenCount: snap.MutationCount}
	if !snap.Observed() {
		return m
	}
	m.Observed = true
	m.TTFT = msToDuration(*snap.FirstMutation - snap.StartTime)
	m.Total = msToDuration(*snap.LastMutation - snap.StartTime)
	return m
}

func msToDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

// Monitor is an open observation scope. Create with Start, finish with
// Close. Not safe for concurrent use beyond the idempotency of Close.
type Monitor struct {
	ch     Armer
	handle *mutchan.Handle
	logger *slog.Logger

	mu      sync.Mutex
	closed  bool
	ready   bool
	metrics Metrics
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the monitor logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// Start arms the channel on the target locator and opens the scope. When
// arming fails the scope never opens and the arm error is returned as-is.
func Start(ctx context.Context, ch Armer, loc browser.Locator, opts ...Option) (*Monitor, error) {
	m := &Monitor{ch: ch, logger: slog.Default()}
	for _, o := range opts {
		o(m)
	}

	h, err := ch.Arm(ctx, loc)
	if err != nil {
		return nil, err
	}
	m.handle = h
	return m, nil
}

// Close ends the scope: retrieves the final snapshot, computes the
// metrics, then disarms. Idempotent; calls after the first are no-ops.
// A retrieval failure is returned (metrics stay unavailable) but the
// disarm still runs; a disarm failure alone is logged and swallowed.
func (m *Monitor) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	snap, retrieveErr := m.ch.Retrieve(ctx, m.handle)

	if err := m.ch.Disarm(ctx, m.handle); err != nil {
		m.logger.Warn("latency: disarm failed", "error", err)
	}

	if retrieveErr != nil {
		return fmt.Errorf("latency: close: %w", retrieveErr)
	}
	if !snap.Valid() {
		return fmt.Errorf("latency: close: snapshot violates its invariants: %+v", snap)
	}

	m.mu.Lock()
	m.metrics = fromSnapshot(snap)
	m.ready = true
	m.mu.Unlock()
	return nil
}

// Metrics returns the frozen metrics of a successfully closed scope.
// It fails with ErrMetricsNotReady before Close, and keeps failing after
// a Close that could not compute metrics: a failed close never
// masquerades as a measurement of zero mutations. After a clean close it
// returns the same value on every read.
func (m *Monitor) Metrics() (Metrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.ready {
		return Metrics{}, ErrMetricsNotReady
	}
	return m.metrics, nil
}

// Measure runs fn inside a monitor scope: arm, run the action, close.
// The action's error propagates unchanged; the close still executes as
// cleanup and its own failure is logged rather than masking the action's
// error. On a clean run the closed scope's metrics are returned.
func Measure(ctx context.Context, ch Armer, loc browser.Locator, fn func(context.Context) error, opts ...Option) (Metrics, error) {
	m, err := Start(ctx, ch, loc, opts...)
	if err != nil {
		return Metrics{}, err
	}

	fnErr := fn(ctx)

	if err := m.Close(ctx); err != nil {
		if fnErr != nil {
			m.logger.Warn("latency: close during error cleanup failed", "error", err)
			return Metrics{}, fnErr
		}
		return Metrics{}, err
	}
	if fnErr != nil {
		return Metrics{}, fnErr
	}

	return m.Metrics()
}
