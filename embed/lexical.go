package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const lexicalDefaultDim = 256

// lexicalEmbedder is a deterministic offline embedder: feature-hashed
// bag of words, L2-normalised. Cosine over its vectors measures token
// overlap, not meaning: a coarse but dependency-free stand-in for a
// real model, good enough to rank "rephrased answer" above "unrelated
// sentence".
type lexicalEmbedder struct {
	dim int
}

// Lexical returns the offline embedder with the given dimension.
func Lexical(dim int) Embedder {
	if dim <= 0 {
		dim = lexicalDefaultDim
	}
	return &lexicalEmbedder{dim: dim}
}

func (l *lexicalEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, l.dim)
	for _, tok := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%uint32(l.dim)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec, nil
}

func (l *lexicalEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := l.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (l *lexicalEmbedder) Dimension() int { return l.dim }
func (l *lexicalEmbedder) Model() string  { return "lexical-hash" }

// tokenize lowercases and splits on anything that is not a letter or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
