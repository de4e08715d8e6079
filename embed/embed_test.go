package embed

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestLexical_Deterministic(t *testing.T) {
	emb := Lexical(128)

	a, err := emb.Embed(context.Background(), "Hello, how can I help you today?")
	if err != nil {
		t.Fatal(err)
	}
	b, err := emb.Embed(context.Background(), "Hello, how can I help you today?")
	if err != nil {
		t.Fatal(err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at %d: %v vs %v", i, a[i], b[i])
		}
	}
	if emb.Dimension() != 128 {
		t.Fatalf("dimension = %d, want 128", emb.Dimension())
	}
}

func TestLexical_UnitNorm(t *testing.T) {
	emb := Lexical(256)
	vec, err := emb.Embed(context.Background(), "the weather is beautiful today")
	if err != nil {
		t.Fatal(err)
	}
	if n := Norm(vec); math.Abs(n-1.0) > 1e-6 {
		t.Fatalf("norm = %v, want 1.0", n)
	}
}

func TestLexical_EmptyText(t *testing.T) {
	emb := Lexical(64)
	vec, err := emb.Embed(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if Norm(vec) != 0 {
		t.Fatal("empty text must embed to the zero vector")
	}
}

func TestLexical_OverlapOrdering(t *testing.T) {
	emb := Lexical(256)
	ctx := context.Background()

	base, _ := emb.Embed(ctx, "Hello, how can I help you today?")
	near, _ := emb.Embed(ctx, "Hi, how may I help you?")
	far, _ := emb.Embed(ctx, "Quantum physics is complex")

	if CosineSimilarity(base, near) <= CosineSimilarity(base, far) {
		t.Fatal("rephrased text must score above an unrelated one")
	}
}

func TestTokenize(t *testing.T) {
	got := tokenize("Hello, how's it going? 42!")
	want := []string{"hello", "how", "s", "it", "going", "42"}
	if len(got) != len(want) {
		t.Fatalf("tokens = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tokens[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{0, 1, 0}
	if got := CosineSimilarity(a, a); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("cos(a,a) = %v, want 1", got)
	}
	if got := CosineSimilarity(a, b); got != 0 {
		t.Fatalf("cos(orthogonal) = %v, want 0", got)
	}
	if got := CosineSimilarity(a, []float32{1, 0}); got != 0 {
		t.Fatalf("cos(mismatched lengths) = %v, want 0", got)
	}
	if got := CosineSimilarity(a, []float32{0, 0, 0}); got != 0 {
		t.Fatalf("cos(zero vector) = %v, want 0", got)
	}
}

func TestNew_DefaultsToLexical(t *testing.T) {
	emb := New(Config{})
	if emb.Model() != "lexical-hash" {
		t.Fatalf("model = %q, want lexical-hash", emb.Model())
	}
	if emb.Dimension() != lexicalDefaultDim {
		t.Fatalf("dimension = %d, want %d", emb.Dimension(), lexicalDefaultDim)
	}
}

func TestOpenAIClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
			http.Error(w, "not found", 404)
			return
		}

		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), 400)
			return
		}

		data := make([]struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}, len(req.Input))
		for i := range data {
			vec := make([]float32, 4)
			for j := range vec {
				vec[j] = float32(i+1) * 0.1 * float32(j+1)
			}
			data[i].Embedding = vec
			data[i].Index = i
		}

		json.NewEncoder(w).Encode(map[string]any{
			"data":  data,
			"model": req.Model,
		})
	}))
	defer srv.Close()

	emb := New(Config{Endpoint: srv.URL, Model: "test-model"})

	vecs, err := emb.EmbedBatch(context.Background(), []string{"one", "two"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 2 {
		t.Fatalf("got %d vectors, want 2", len(vecs))
	}
	if len(vecs[0]) != 4 {
		t.Fatalf("vec dims = %d, want 4", len(vecs[0]))
	}
	// Dimension auto-detected on the first call.
	if emb.Dimension() != 4 {
		t.Fatalf("dimension = %d, want 4", emb.Dimension())
	}
	// Input order preserved.
	if vecs[1][0] <= vecs[0][0] {
		t.Fatalf("batch order not preserved: %v", vecs)
	}
}

func TestOpenAIClient_ConcurrentDimensionDetect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		data := make([]struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}, len(req.Input))
		for i := range data {
			data[i].Embedding = []float32{0.1, 0.2, 0.3}
			data[i].Index = i
		}
		json.NewEncoder(w).Encode(map[string]any{"data": data, "model": req.Model})
	}))
	defer srv.Close()

	emb := New(Config{Endpoint: srv.URL, Model: "m"})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := emb.Embed(context.Background(), "x"); err != nil {
				t.Errorf("Embed: %v", err)
			}
		}()
	}
	wg.Wait()

	if emb.Dimension() != 3 {
		t.Fatalf("dimension = %d, want 3", emb.Dimension())
	}
}

func TestOpenAIClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	emb := New(Config{Endpoint: srv.URL, Model: "m"})
	if _, err := emb.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error from a 503 response")
	}
}
