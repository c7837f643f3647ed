package llm

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
)

// MockDimension is the vector size produced by the mock embedder.
const MockDimension = 64

// Mock is a deterministic Embedder and Generator for dev mode and tests.
// Embeddings are normalized bag-of-words hash vectors, so texts sharing
// words score higher than unrelated texts, which is enough for retrieval
// ordering in tests.
type Mock struct {
	// GenerateErr, when set, is returned by Generate.
	GenerateErr error
	// EmbedErr, when set, is returned by Embed.
	EmbedErr error
}

// NewMock creates a Mock.
func NewMock() *Mock {
	return &Mock{}
}

// Dimension returns the fixed mock vector size.
func (m *Mock) Dimension() int { return MockDimension }

// Embed hashes each text's words into a fixed-size vector.
func (m *Mock) Embed(_ context.Context, texts []string) ([][]float64, error) {
	if m.EmbedErr != nil {
		return nil, m.EmbedErr
	}
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vectors[i] = hashVector(text)
	}
	return vectors, nil
}

// Generate returns a canned answer naming how many passages it saw.
func (m *Mock) Generate(_ context.Context, question string, contexts []string) (string, error) {
	if m.GenerateErr != nil {
		return "", m.GenerateErr
	}
	if len(contexts) == 0 {
		return "No relevant documents were found for this question.", nil
	}
	return fmt.Sprintf("Based on %d passage(s): answer to %q.", len(contexts), question), nil
}

func hashVector(text string) []float64 {
	v := make([]float64, MockDimension)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		v[h.Sum32()%MockDimension]++
	}
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range v {
			v[i] /= norm
		}
	}
	return v
}
