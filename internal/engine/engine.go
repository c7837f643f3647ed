// Package engine answers natural-language questions over an indexed
// folder: plan, retrieve, synthesize, cite.
package engine

import (
	"context"
	"fmt"

	"github.com/HandsomeSB/Askit/internal/index"
	"github.com/HandsomeSB/Askit/internal/llm"
	"github.com/HandsomeSB/Askit/internal/model"
	"github.com/HandsomeSB/Askit/internal/planner"
)

const (
	// DefaultTopK bounds how many chunks retrieval returns.
	DefaultTopK = 5
	// DefaultCutoff drops retrieved chunks scoring below it. Zero disables
	// the cutoff.
	DefaultCutoff = 0.7
)

// Engine runs the query pipeline against one folder's index.
type Engine struct {
	store     index.Store
	planner   *planner.Planner
	embedder  llm.Embedder
	generator llm.Generator
	topK      int
	cutoff    float64
}

// Option customizes an Engine.
type Option func(*Engine)

// WithTopK overrides the retrieval depth.
func WithTopK(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

// WithCutoff overrides the similarity cutoff. Zero disables it.
func WithCutoff(c float64) Option {
	return func(e *Engine) {
		e.cutoff = c
	}
}

// New creates an Engine.
func New(store index.Store, embedder llm.Embedder, generator llm.Generator, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		planner:   planner.New(),
		embedder:  embedder,
		generator: generator,
		topK:      DefaultTopK,
		cutoff:    DefaultCutoff,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Answer runs the full pipeline for one question. The folder must have a
// committed index; querying an unindexed folder is the caller's 404.
func (e *Engine) Answer(ctx context.Context, folderID, question string) (*model.QueryResult, error) {
	// 1. Ensure the folder is indexed before spending an embedding call.
	if _, err := e.store.GetFolderMeta(ctx, folderID); err != nil {
		return nil, err
	}

	// 2. Plan: split the question into semantic query and hard filters.
	plan := e.planner.Extract(question)

	// 3. Embed the semantic query.
	vectors, err := e.embedder.Embed(ctx, []string{plan.Semantic})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// 4. Retrieve with filters, then apply the similarity cutoff.
	scored, err := e.store.Query(ctx, folderID, vectors[0], plan.Filters(), e.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}
	if e.cutoff > 0 {
		kept := scored[:0]
		for _, sc := range scored {
			if sc.Score >= e.cutoff {
				kept = append(kept, sc)
			}
		}
		scored = kept
	}

	// 5. Synthesize. Zero survivors still produce an answer so the user
	// hears "nothing relevant" instead of an error.
	contexts := make([]string, len(scored))
	for i, sc := range scored {
		contexts[i] = fmt.Sprintf("%s (%s): %s", sc.Chunk.Metadata.FileName, sc.Chunk.Metadata.MIMEType, sc.Chunk.Text)
	}
	answer, err := e.generator.Generate(ctx, question, contexts)
	if err != nil {
		return nil, &model.SynthesisError{Err: err}
	}

	// 6. Cite every chunk that reached synthesis.
	sources := make([]model.Source, len(scored))
	for i, sc := range scored {
		sources[i] = model.Source{
			Text:     sc.Chunk.Text,
			Score:    sc.Score,
			FileName: sc.Chunk.Metadata.FileName,
			FileID:   sc.Chunk.FileID,
			MIMEType: sc.Chunk.Metadata.MIMEType,
		}
	}
	return &model.QueryResult{Answer: answer, Sources: sources}, nil
}
