package report

import (
	"context"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/streamprobe/dbopen"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db := dbopen.OpenMemory(t)
	s, err := NewWithDB(db)
	if err != nil {
		t.Fatalf("NewWithDB: %v", err)
	}
	return s
}

func ptr[T any](v T) *T { return &v }

func TestRecord_AssignsPrefixedID(t *testing.T) {
	s := newTestStore(t)
	id, err := s.Record(context.Background(), Run{PageURL: "http://localhost/chat"})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !strings.HasPrefix(id, "run_") {
		t.Fatalf("id %q lacks run_ prefix", id)
	}
}

func TestRecord_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := Run{
		PageURL:    "http://localhost/chat",
		Prompt:     "Hello",
		Response:   "Hi there! How can I help?",
		TTFTMillis: ptr(int64(50)),
		TotalMs:    ptr(int64(500)),
		TokenCount: 15,
		Score:      ptr(0.91),
		MinScore:   ptr(0.8),
		Passed:     true,
	}
	id, err := s.Record(ctx, in)
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	runs, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	got := runs[0]
	if got.RunID != id {
		t.Errorf("RunID = %q, want %q", got.RunID, id)
	}
	if got.Prompt != in.Prompt || got.Response != in.Response || got.PageURL != in.PageURL {
		t.Errorf("text fields mismatch: %+v", got)
	}
	if got.TTFTMillis == nil || *got.TTFTMillis != 50 {
		t.Errorf("TTFTMillis = %v, want 50", got.TTFTMillis)
	}
	if got.TotalMs == nil || *got.TotalMs != 500 {
		t.Errorf("TotalMs = %v, want 500", got.TotalMs)
	}
	if got.TokenCount != 15 {
		t.Errorf("TokenCount = %d, want 15", got.TokenCount)
	}
	if got.Score == nil || *got.Score != 0.91 {
		t.Errorf("Score = %v, want 0.91", got.Score)
	}
	if !got.Passed {
		t.Error("Passed not persisted")
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not persisted")
	}
}

func TestRecord_NullableFieldsStayNil(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Record(ctx, Run{PageURL: "http://localhost/chat"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	runs, err := s.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	got := runs[0]
	if got.TTFTMillis != nil || got.TotalMs != nil || got.Score != nil || got.MinScore != nil {
		t.Fatalf("unobserved run should keep NULLs: %+v", got)
	}
	if got.Passed {
		t.Error("Passed should default to false")
	}
}

func TestRecent_NewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := s.Record(ctx, Run{
			PageURL:   "http://localhost/chat",
			Prompt:    string(rune('a' + i)),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	runs, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].Prompt != "c" || runs[1].Prompt != "b" {
		t.Fatalf("order wrong: %q then %q", runs[0].Prompt, runs[1].Prompt)
	}
}

func TestRecent_DefaultLimit(t *testing.T) {
	s := newTestStore(t)
	runs, err := s.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("empty store returned %d runs", len(runs))
	}
}
