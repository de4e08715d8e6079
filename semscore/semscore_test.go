package semscore

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/hazyhaar/streamprobe/embed"
)

func newScorer(t *testing.T) *Scorer {
	t.Helper()
	return New(embed.Lexical(256))
}

func TestScore_IdenticalIsExactlyOne(t *testing.T) {
	s := newScorer(t)
	got, err := s.Score(context.Background(), "Hello, how can I help you today?", "Hello, how can I help you today?")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got != 1.0 {
		t.Fatalf("identical texts: got %v, want exactly 1.0", got)
	}
}

func TestScore_MarkupStrippedBeforeComparing(t *testing.T) {
	s := newScorer(t)
	got, err := s.Score(context.Background(),
		"<p>Hello   <b>world</b></p>", "Hello world")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got != 1.0 {
		t.Fatalf("markup-only difference: got %v, want 1.0", got)
	}
}

func TestScore_Symmetric(t *testing.T) {
	s := newScorer(t)
	ctx := context.Background()
	a := "the quick brown fox jumps over the lazy dog"
	b := "a lazy dog was jumped over by a quick brown fox"
	ab, err := s.Score(ctx, a, b)
	if err != nil {
		t.Fatalf("Score(a,b): %v", err)
	}
	ba, err := s.Score(ctx, b, a)
	if err != nil {
		t.Fatalf("Score(b,a): %v", err)
	}
	if math.Abs(ab-ba) > 1e-9 {
		t.Fatalf("asymmetric: %v vs %v", ab, ba)
	}
}

func TestScore_SimilarAboveDissimilar(t *testing.T) {
	s := newScorer(t)
	ctx := context.Background()

	similar, err := s.Score(ctx,
		"Hello! How can I assist you today?",
		"Hi there, how may I help you today?")
	if err != nil {
		t.Fatalf("Score similar: %v", err)
	}
	dissimilar, err := s.Score(ctx,
		"I would like to order a pizza with extra cheese",
		"Quantum entanglement links particle states across distance")
	if err != nil {
		t.Fatalf("Score dissimilar: %v", err)
	}

	if similar <= 0.5 {
		t.Errorf("paraphrase pair scored %v, want > 0.5", similar)
	}
	if dissimilar >= 0.5 {
		t.Errorf("unrelated pair scored %v, want < 0.5", dissimilar)
	}
	if similar <= dissimilar {
		t.Errorf("ordering violated: similar %v <= dissimilar %v", similar, dissimilar)
	}
}

func TestScore_EmptySidesYieldZero(t *testing.T) {
	s := newScorer(t)
	ctx := context.Background()
	for _, tc := range [][2]string{
		{"", "something"},
		{"something", ""},
		{"", ""},
		{"   \n\t  ", "something"},
		{"<div>  </div>", "something"},
	} {
		got, err := s.Score(ctx, tc[0], tc[1])
		if err != nil {
			t.Fatalf("Score(%q, %q): %v", tc[0], tc[1], err)
		}
		if got != 0.0 {
			t.Errorf("Score(%q, %q) = %v, want 0.0", tc[0], tc[1], got)
		}
	}
}

func TestScore_RangeBounded(t *testing.T) {
	s := newScorer(t)
	got, err := s.Score(context.Background(), "alpha beta gamma", "delta epsilon zeta")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if got < 0 || got > 1 {
		t.Fatalf("score %v out of [0,1]", got)
	}
}

func TestAssertSimilar_PassAndFail(t *testing.T) {
	s := newScorer(t)
	ctx := context.Background()

	if err := s.AssertSimilar(ctx, "hello world", "hello world", 0.9); err != nil {
		t.Fatalf("identical texts should pass: %v", err)
	}

	err := s.AssertSimilar(ctx,
		"I would like to order a pizza with extra cheese",
		"Quantum entanglement links particle states across distance", 0.8)
	if err == nil {
		t.Fatal("unrelated texts at threshold 0.8 should fail")
	}
	var simErr *SimilarityError
	if !errors.As(err, &simErr) {
		t.Fatalf("want *SimilarityError, got %T: %v", err, err)
	}
	if simErr.MinScore != 0.8 {
		t.Errorf("MinScore = %v, want 0.8", simErr.MinScore)
	}
	if simErr.Score >= 0.8 {
		t.Errorf("Score = %v, want < threshold", simErr.Score)
	}
	if !strings.Contains(simErr.Actual, "pizza") || !strings.Contains(simErr.Expected, "Quantum") {
		t.Errorf("error should carry both texts: %+v", simErr)
	}
	if !strings.Contains(err.Error(), "below threshold") {
		t.Errorf("message: %q", err.Error())
	}
}

func TestCheck_Verdict(t *testing.T) {
	s := newScorer(t)
	ctx := context.Background()

	res, err := s.Check(ctx, "hello world", "hello world", 0.75)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.Passed || res.Score != 1.0 || res.Threshold != 0.75 {
		t.Fatalf("unexpected result: %+v", res)
	}

	res, err = s.Check(ctx, "completely unrelated words here", "quantum chromodynamics lattice gauge", 0.9)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Passed {
		t.Fatalf("unrelated texts passed at 0.9: %+v", res)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"  spaced   out\n\ttext  ", "spaced out text"},
		{"<p>Hello <b>world</b></p>", "Hello world"},
		{"<div><script>var x=1;</script>visible</div>", "visible"},
		{"<style>.a{}</style>body text", "body text"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
