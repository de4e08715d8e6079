// Package mutchan implements the mutation channel: a MutationObserver
// injected into the rendered document that timestamps every content
// mutation under a target element on the document's own monotonic clock
// (performance.now), plus the arm/retrieve/disarm surface that marshals
// those timestamps back to the controlling process as plain numbers.
//
// The page-side state machine is armed → accumulating → disarmed. State
// lives in a window registry entry keyed per handle, so a disarmed
// observer can never leak stale timestamps into a later observation.
// Exactly one handle may be live per element at a time; guarding that is
// the caller's job (the channel has no way to compare locators for
// element identity).
package mutchan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hazyhaar/streamprobe/browser"
	"github.com/hazyhaar/streamprobe/idgen"
)

// ErrInvalidHandle reports use of a handle that was never armed, was
// disarmed, or whose page-side state is gone (e.g. after a navigation).
var ErrInvalidHandle = errors.New("mutchan: invalid observation handle")

const keyPrefix = "__streamprobe_"

// armJS resolves the target element and installs a MutationObserver over
// its subtree. It records the arm-time performance.now() reading and one
// timestamp per delivered mutation record. Returns the registry key, or
// null when the locator resolves to nothing.
const armJS = `(by, value, key) => {
	let el = null;
	if (by === 'xpath') {
		el = document.evaluate(value, document, null,
			XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
	} else if (by === 'id') {
		el = document.getElementById(value);
	} else {
		el = document.querySelector(value);
	}
	if (!el) return null;

	const state = {
		startTime: performance.now(),
		times: [],
		count: 0,
	};
	state.obs = new MutationObserver((records) => {
		const now = performance.now();
		for (let i = 0; i < records.length; i++) {
			state.times.push(now);
		}
		state.count += records.length;
	});
	state.obs.observe(el, {
		childList: true,
		characterData: true,
		subtree: true,
	});
	window[key] = state;
	return key;
}`

// retrieveJS reads the accumulated state without disarming. First/last
// are computed here as min/max over the full recorded set; arrival order
// is never assumed sorted.
const retrieveJS = `(key) => {
	const state = window[key];
	if (!state) return null;
	let first = null;
	let last = null;
	for (const t of state.times) {
		if (first === null || t < first) first = t;
		if (last === null || t > last) last = t;
	}
	return {
		startTime: state.startTime,
		firstMutationTime: first,
		lastMutationTime: last,
		mutationCount: state.count,
	};
}`

// disarmJS disconnects the observer and deletes the registry entry.
const disarmJS = `(key) => {
	const state = window[key];
	if (!state) return false;
	state.obs.disconnect();
	delete window[key];
	return true;
}`

// Channel arms and reads mutation observations on a single document.
// It owns all page-side instrumentation state exclusively; no other
// component touches the registry entries it creates.
type Channel struct {
	d      browser.Driver
	logger *slog.Logger
	newKey idgen.Generator
}

// Option configures a Channel.
type Option func(*Channel)

// WithLogger sets the channel logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Channel) { c.logger = l }
}

// WithKeyGenerator overrides registry-key generation (tests).
func WithKeyGenerator(gen idgen.Generator) Option {
	return func(c *Channel) { c.newKey = gen }
}

// New creates a Channel over the given driver.
func New(d browser.Driver, opts ...Option) *Channel {
	c := &Channel{
		d:      d,
		logger: slog.Default(),
		newKey: idgen.NanoID(12),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Handle correlates an armed observation to later Retrieve/Disarm calls.
type Handle struct {
	key string

	mu       sync.Mutex
	disposed bool
}

// Key returns the page-side registry key. Exposed for diagnostics only.
func (h *Handle) Key() string { return h.key }

func (h *Handle) invalid() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.disposed
}

// Arm installs the observer over the element resolved by loc and records
// startTime on the document-local clock. Returns ErrElementNotFound when
// the locator resolves to nothing.
func (c *Channel) Arm(ctx context.Context, loc browser.Locator) (*Handle, error) {
	key := keyPrefix + c.newKey()

	raw, err := c.d.Eval(ctx, armJS, string(loc.By), loc.Value, key)
	if err != nil {
		return nil, fmt.Errorf("mutchan: arm: %w", err)
	}

	var returned *string
	if err := json.Unmarshal(raw, &returned); err != nil {
		return nil, fmt.Errorf("mutchan: arm: decode result: %w", err)
	}
	if returned == nil {
		return nil, fmt.Errorf("mutchan: arm %s: %w", loc, browser.ErrElementNotFound)
	}

	c.logger.Debug("mutchan: armed", "key", key, "locator", loc.String())
	return &Handle{key: key}, nil
}

// Retrieve reads the current accumulated snapshot without disarming.
func (c *Channel) Retrieve(ctx context.Context, h *Handle) (Snapshot, error) {
	if h == nil || h.invalid() {
		return Snapshot{}, ErrInvalidHandle
	}

	raw, err := c.d.Eval(ctx, retrieveJS, h.key)
	if err != nil {
		return Snapshot{}, fmt.Errorf("mutchan: retrieve: %w", err)
	}

	var snap *Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("mutchan: retrieve: decode snapshot: %w", err)
	}
	if snap == nil {
		// Page-side state vanished (navigation, frame teardown).
		return Snapshot{}, fmt.Errorf("mutchan: retrieve %s: %w", h.key, ErrInvalidHandle)
	}
	return *snap, nil
}

// Disarm disconnects the observer and releases page-side state. Idempotent:
// calls after the first are no-ops.
func (c *Channel) Disarm(ctx context.Context, h *Handle) error {
	if h == nil {
		return nil
	}
	h.mu.Lock()
	if h.disposed {
		h.mu.Unlock()
		return nil
	}
	h.disposed = true
	h.mu.Unlock()

	if _, err := c.d.Eval(ctx, disarmJS, h.key); err != nil {
		return fmt.Errorf("mutchan: disarm %s: %w", h.key, err)
	}
	c.logger.Debug("mutchan: disarmed", "key", h.key)
	return nil
}
