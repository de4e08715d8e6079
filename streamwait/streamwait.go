// Package streamwait decides when a streaming response has finished.
//
// A streamed chat response has no end-of-stream signal an external
// observer can see, so the only reliable proxy is quiescence: the text is
// considered final once it has stopped changing for a continuous silence
// window. That heuristic cannot distinguish "truly finished" from "paused
// longer than the silence window". That is a known false-positive source
// that callers tune with the silence timeout, not something this package
// tries to correct.
package streamwait

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/streamprobe/browser"
)

// ErrStreamTimeout reports that the text never went quiet for a full
// silence window within the overall budget.
var ErrStreamTimeout = errors.New("streamwait: stream did not settle within the overall timeout")

const (
	minPollInterval = 10 * time.Millisecond
	maxPollInterval = 250 * time.Millisecond
)

// Waiter polls an element's text until it goes quiet. A single Waiter is
// reusable across calls; do not run two concurrent waits on the same
// element.
type Waiter struct {
	pollInterval time.Duration
	logger       *slog.Logger
}

// Option configures a Waiter.
type Option func(*Waiter)

// WithPollInterval fixes the polling interval. Default: a tenth of the
// silence timeout, clamped to [10ms, 250ms].
func WithPollInterval(d time.Duration) Option {
	return func(w *Waiter) { w.pollInterval = d }
}

// WithLogger sets the waiter logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(w *Waiter) { w.logger = l }
}

// New creates a Waiter.
func New(opts ...Option) *Waiter {
	w := &Waiter{logger: slog.Default()}
	for _, o := range opts {
		o(w)
	}
	return w
}

// WaitForStreamEnd blocks until the element's text has not changed for a
// continuous silenceTimeout, then returns the settled text. It fails with
// ErrStreamTimeout when overallTimeout elapses first, and with
// browser.ErrElementNotFound when the element is missing at the start or
// leaves the document mid-wait (absence is never treated as quiescence).
//
// Text that is already static when observation begins is a valid "ended":
// the call returns after one full silence window.
//
// Timing uses the controlling process's monotonic clock; the document's
// clock plays no part here.
func (w *Waiter) WaitForStreamEnd(ctx context.Context, d browser.Driver, loc browser.Locator, silenceTimeout, overallTimeout time.Duration) (string, error) {
	if silenceTimeout <= 0 {
		return "", fmt.Errorf("streamwait: silence timeout must be positive, got %v", silenceTimeout)
	}
	if overallTimeout <= 0 {
		return "", fmt.Errorf("streamwait: overall timeout must be positive, got %v", overallTimeout)
	}

	poll := w.pollInterval
	if poll <= 0 {
		poll = silenceTimeout / 10
		if poll < minPollInterval {
			poll = minPollInterval
		}
		if poll > maxPollInterval {
			poll = maxPollInterval
		}
	}
	if poll > silenceTimeout {
		poll = silenceTimeout
	}

	lastSeen, err := d.ReadText(ctx, loc)
	if err != nil {
		return "", fmt.Errorf("streamwait: initial read of %s: %w", loc, err)
	}

	waitStart := time.Now()
	lastChange := waitStart

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("streamwait: wait on %s: %w", loc, ctx.Err())
		case <-ticker.C:
		}

		now := time.Now()

		text, err := d.ReadText(ctx, loc)
		if err != nil {
			// A vanished element is a failure, not quiescence.
			return "", fmt.Errorf("streamwait: read %s mid-wait: %w", loc, err)
		}

		if text != lastSeen {
			// Strict tie-break: a change in this tick resets the silence
			// clock and never satisfies the window in the same tick.
			lastSeen = text
			lastChange = now
		} else if now.Sub(lastChange) >= silenceTimeout {
			w.logger.Debug("streamwait: stream ended",
				"locator", loc.String(),
				"elapsed", now.Sub(waitStart),
				"text_len", len(text))
			return text, nil
		}

		if now.Sub(waitStart) >= overallTimeout {
			return "", fmt.Errorf("streamwait: %s after %v: %w", loc, overallTimeout, ErrStreamTimeout)
		}
	}
}
