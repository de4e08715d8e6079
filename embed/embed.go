// Package embed provides a transport-agnostic embedding client that
// converts text to float32 vectors via any OpenAI-compatible embedding
// server, plus a deterministic lexical fallback for offline use.
//
// The scorer in semscore treats an Embedder as a black-box oracle: text
// in, vector out. Which backend produces the vector (CPU ONNX, vLLM,
// Ollama, OpenAI, or the lexical hasher) is a startup-time decision.
//
// Usage:
//
//	emb := embed.New(embed.Config{
//	    Endpoint: "http://localhost:8003",
//	    Model:    "multilingual-e5-large",
//	})
//	vec, err := emb.Embed(ctx, "Hello, how can I help you today?")
package embed

import (
	"context"
	"log/slog"
	"time"
)

// Embedder converts text to vectors.
type Embedder interface {
	// Embed returns the embedding vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns embeddings for multiple texts in one call.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the vector dimension (768, 1536, etc).
	// Returns 0 if not yet detected (first call not made).
	Dimension() int

	// Model returns the model name.
	Model() string
}

// Config configures the embedding client.
type Config struct {
	// Endpoint is the base URL of the embedding server (e.g.
	// "http://localhost:8003"). Empty means the lexical fallback.
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// Model is the model name sent in requests (e.g. "multilingual-e5-large").
	Model string `json:"model" yaml:"model"`

	// Dimension is the expected vector dimension. 0 means auto-detect on
	// first call (lexical fallback defaults to 256).
	Dimension int `json:"dimension" yaml:"dimension"`

	// BatchSize is the maximum number of texts per HTTP request. Default: 32.
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// Timeout per HTTP request. Default: 30s.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Logger for debug/error messages. Defaults to slog.Default().
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = 32
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// New creates an Embedder from config. With no Endpoint it returns the
// lexical embedder, so similarity degrades to token-overlap similarity
// instead of failing. Usable in tests and air-gapped runs.
func New(cfg Config) Embedder {
	cfg.defaults()
	if cfg.Endpoint == "" {
		dim := cfg.Dimension
		if dim <= 0 {
			dim = lexicalDefaultDim
		}
		return Lexical(dim)
	}
	return newOpenAIClient(cfg)
}
