// Package llm provides the embedding and answer-generation clients used by
// indexing and retrieval.
package llm

import "context"

// Embedder turns texts into dense vectors. Embed preserves input order and
// returns one vector per text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
	// Dimension reports the vector dimensionality, or 0 before the first
	// successful Embed call.
	Dimension() int
}

// Generator produces a grounded answer from a question and its retrieved
// context passages.
type Generator interface {
	Generate(ctx context.Context, question string, contexts []string) (string, error)
}
