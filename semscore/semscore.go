// Package semscore quantifies closeness of meaning between two texts.
//
// Streamed AI responses are non-deterministic in phrasing, so equality
// assertions are useless; semscore compares embedding vectors instead
// and exposes both the raw score and a threshold assertion. Score itself
// never fails an assertion (only AssertSimilar does), so callers can
// always fall back to inspecting the raw number.
package semscore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/streamprobe/embed"
)

// SimilarityError reports a similarity assertion falling below its
// threshold. It carries the computed score for diagnostics.
type SimilarityError struct {
	Score    float64
	MinScore float64
	Actual   string
	Expected string
}

func (e *SimilarityError) Error() string {
	return fmt.Sprintf("semscore: similarity %.3f below threshold %.3f (actual %q vs expected %q)",
		e.Score, e.MinScore, truncate(e.Actual, 80), truncate(e.Expected, 80))
}

// Result is the verdict of a threshold check, for callers that want the
// numbers without an error path.
type Result struct {
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
	Passed    bool    `json:"passed"`
}

// Scorer compares texts through an embedding oracle.
type Scorer struct {
	emb    embed.Embedder
	logger *slog.Logger
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithLogger sets the scorer logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Scorer) { s.logger = l }
}

// New creates a Scorer over the given embedder.
func New(emb embed.Embedder, opts ...Option) *Scorer {
	s := &Scorer{emb: emb, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Score returns a similarity in [0,1] between a and b. Both sides are
// normalised first (markup stripped, whitespace collapsed), so a response
// read as HTML compares cleanly against a plain-text expectation.
//
// Properties: Score(a,a) == 1.0 exactly for non-empty a; symmetric up to
// floating-point tolerance; an empty side yields 0.0, since similarity
// of nothing to anything is minimal, not an error.
func (s *Scorer) Score(ctx context.Context, a, b string) (float64, error) {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0.0, nil
	}
	if na == nb {
		return 1.0, nil
	}

	vecs, err := s.emb.EmbedBatch(ctx, []string{na, nb})
	if err != nil {
		return 0, fmt.Errorf("semscore: embed: %w", err)
	}

	cos := embed.CosineSimilarity(vecs[0], vecs[1])
	return clamp01(cos), nil
}

// Check computes the score against a threshold and returns the verdict.
func (s *Scorer) Check(ctx context.Context, actual, expected string, minScore float64) (Result, error) {
	score, err := s.Score(ctx, actual, expected)
	if err != nil {
		return Result{}, err
	}
	res := Result{Score: score, Threshold: minScore, Passed: score >= minScore}
	s.logger.Debug("semscore: checked",
		"score", score, "threshold", minScore, "passed", res.Passed)
	return res, nil
}

// AssertSimilar fails with a *SimilarityError when the similarity of
// actual and expected is below minScore; otherwise it succeeds silently.
func (s *Scorer) AssertSimilar(ctx context.Context, actual, expected string, minScore float64) error {
	score, err := s.Score(ctx, actual, expected)
	if err != nil {
		return err
	}
	if score < minScore {
		return &SimilarityError{
			Score:    score,
			MinScore: minScore,
			Actual:   actual,
			Expected: expected,
		}
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
