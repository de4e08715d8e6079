// Package probe ties the pieces together: it opens a chat page, arms a
// mutation observer on the response element, fires the prompt, waits for
// the token stream to go quiet, then scores the settled text against an
// expectation and records the run.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/streamprobe/browser"
	"github.com/hazyhaar/streamprobe/embed"
	"github.com/hazyhaar/streamprobe/latency"
	"github.com/hazyhaar/streamprobe/mutchan"
	"github.com/hazyhaar/streamprobe/report"
	"github.com/hazyhaar/streamprobe/semscore"
	"github.com/hazyhaar/streamprobe/streamwait"
)

// DefaultMinScore is the similarity threshold used when a check supplies
// an expectation without a threshold.
const DefaultMinScore = 0.8

// Probe owns the long-lived pieces of a test run: the browser, the
// embedding client, and the optional report store.
type Probe struct {
	cfg    *Config
	mgr    *browser.Manager
	scorer *semscore.Scorer
	waiter *streamwait.Waiter
	store  *report.Store
	logger *slog.Logger
}

// Option configures a Probe.
type Option func(*Probe)

// WithLogger sets the probe logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Probe) { p.logger = l }
}

// WithStore injects a report store, overriding the config path.
func WithStore(s *report.Store) Option {
	return func(p *Probe) { p.store = s }
}

// New builds a Probe from config. The browser is not launched until
// Start.
func New(cfg *Config, opts ...Option) (*Probe, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg.applyDefaults()
	}

	p := &Probe{cfg: cfg, logger: slog.Default()}
	for _, o := range opts {
		o(p)
	}

	p.mgr = browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.RemoteURL,
		Headless:         cfg.Browser.Headless,
		ResourceBlocking: cfg.Browser.BlockResources,
		Logger:           p.logger,
	})

	embCfg := cfg.Embedding
	embCfg.Logger = p.logger
	p.scorer = semscore.New(embed.New(embCfg), semscore.WithLogger(p.logger))

	waitOpts := []streamwait.Option{streamwait.WithLogger(p.logger)}
	if cfg.Wait.PollInterval > 0 {
		waitOpts = append(waitOpts, streamwait.WithPollInterval(cfg.Wait.PollInterval))
	}
	p.waiter = streamwait.New(waitOpts...)

	if p.store == nil && cfg.Report.Path != "" {
		st, err := report.Open(cfg.Report.Path, report.WithLogger(p.logger))
		if err != nil {
			return nil, fmt.Errorf("probe: open report store: %w", err)
		}
		p.store = st
	}
	return p, nil
}

// Start launches or connects the browser.
func (p *Probe) Start(ctx context.Context) error {
	if _, err := p.mgr.Start(ctx); err != nil {
		return fmt.Errorf("probe: start browser: %w", err)
	}
	return nil
}

// Stop closes the browser and the report store.
func (p *Probe) Stop() error {
	var errs []error
	if err := p.mgr.Close(); err != nil {
		errs = append(errs, err)
	}
	if p.store != nil {
		if err := p.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Scorer exposes the similarity scorer for standalone use.
func (p *Probe) Scorer() *semscore.Scorer { return p.scorer }

// Session is one open chat page under observation.
type Session struct {
	Tab *browser.Tab

	p  *Probe
	ch *mutchan.Channel
}

// OpenPage navigates a fresh tab to url and wires a mutation channel
// onto it.
func (p *Probe) OpenPage(ctx context.Context, url string) (*Session, error) {
	tab, err := browser.OpenTab(ctx, p.mgr, url)
	if err != nil {
		return nil, fmt.Errorf("probe: open %s: %w", url, err)
	}
	return &Session{
		Tab: tab,
		p:   p,
		ch:  mutchan.New(tab, mutchan.WithLogger(p.logger)),
	}, nil
}

// Close closes the session tab.
func (s *Session) Close() error { return s.Tab.Close() }

// Text reads the current text of an element.
func (s *Session) Text(ctx context.Context, loc browser.Locator) (string, error) {
	return s.Tab.ReadText(ctx, loc)
}

// WaitForStreamEnd blocks until loc stops changing for silence, or fails
// after overall. Zero durations fall back to the configured defaults.
func (s *Session) WaitForStreamEnd(ctx context.Context, loc browser.Locator, silence, overall time.Duration) (string, error) {
	if silence <= 0 {
		silence = s.p.cfg.Wait.Silence
	}
	if overall <= 0 {
		overall = s.p.cfg.Wait.Overall
	}
	return s.p.waiter.WaitForStreamEnd(ctx, s.Tab, loc, silence, overall)
}

// StartMonitor arms latency measurement on loc. Close the returned
// monitor once the stream has settled, then read its metrics.
func (s *Session) StartMonitor(ctx context.Context, loc browser.Locator) (*latency.Monitor, error) {
	return latency.Start(ctx, s.ch, loc, latency.WithLogger(s.p.logger))
}

// CheckSpec describes one end-to-end response check.
type CheckSpec struct {
	// Response locates the element the streamed answer renders into.
	Response browser.Locator

	// Trigger fires the prompt (type + click, submit a form, call an
	// API). It runs after the observer is armed so no early token is
	// missed. Nil means the caller has already triggered the response.
	Trigger func(ctx context.Context, s *Session) error

	// Prompt is recorded with the run for later inspection. Informational.
	Prompt string

	// Expected is the reference answer for similarity scoring. Empty
	// skips scoring; the check then passes on stream completion alone.
	Expected string

	// MinScore is the passing threshold. 0 means DefaultMinScore.
	MinScore float64

	// Silence and Overall override the configured wait windows. 0 keeps
	// the defaults.
	Silence time.Duration
	Overall time.Duration
}

// RunResult is the outcome of one check.
type RunResult struct {
	RunID    string          `json:"run_id,omitempty"`
	Response string          `json:"response"`
	Metrics  latency.Metrics `json:"metrics"`
	Score    float64         `json:"score"`
	MinScore float64         `json:"min_score"`
	Scored   bool            `json:"scored"`
	Passed   bool            `json:"passed"`
}

// CheckResponse runs one check in the canonical order: arm the observer,
// fire the trigger, wait for quiescence, close the measurement scope,
// score, record. Recording failures are logged, never fatal.
func (p *Probe) CheckResponse(ctx context.Context, s *Session, spec CheckSpec) (*RunResult, error) {
	if spec.Response.Value == "" {
		return nil, errors.New("probe: check needs a response locator")
	}

	mon, err := s.StartMonitor(ctx, spec.Response)
	if err != nil {
		return nil, err
	}

	if spec.Trigger != nil {
		if terr := spec.Trigger(ctx, s); terr != nil {
			_ = mon.Close(ctx)
			return nil, fmt.Errorf("probe: trigger: %w", terr)
		}
	}

	text, waitErr := s.WaitForStreamEnd(ctx, spec.Response, spec.Silence, spec.Overall)
	closeErr := mon.Close(ctx)
	if waitErr != nil {
		return nil, waitErr
	}
	if closeErr != nil {
		p.logger.Warn("probe: latency scope close failed", "error", closeErr)
	}

	res := &RunResult{Response: text}
	if metrics, merr := mon.Metrics(); merr == nil {
		res.Metrics = metrics
	}

	res.Passed = true
	if spec.Expected != "" {
		minScore := spec.MinScore
		if minScore <= 0 {
			minScore = DefaultMinScore
		}
		verdict, serr := p.scorer.Check(ctx, text, spec.Expected, minScore)
		if serr != nil {
			return nil, serr
		}
		res.Score = verdict.Score
		res.MinScore = minScore
		res.Scored = true
		res.Passed = verdict.Passed
	}

	p.record(ctx, s, spec, res)
	return res, nil
}

func (p *Probe) record(ctx context.Context, s *Session, spec CheckSpec, res *RunResult) {
	if p.store == nil {
		return
	}
	run := report.Run{
		PageURL:    s.Tab.PageURL,
		Prompt:     spec.Prompt,
		Response:   res.Response,
		TokenCount: res.Metrics.TokenCount,
		Passed:     res.Passed,
	}
	if res.Metrics.Observed {
		ttft := res.Metrics.TTFT.Milliseconds()
		total := res.Metrics.Total.Milliseconds()
		run.TTFTMillis = &ttft
		run.TotalMs = &total
	}
	if res.Scored {
		run.Score = &res.Score
		run.MinScore = &res.MinScore
	}

	id, err := p.store.Record(ctx, run)
	if err != nil {
		p.logger.Warn("probe: record run failed", "error", err)
		return
	}
	res.RunID = id
}
