// Package index owns the persistent chunk index: per-folder chunk
// generations, staleness bookkeeping, and hybrid (vector + metadata
// filter) retrieval.
package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/HandsomeSB/Askit/internal/extract"
	"github.com/HandsomeSB/Askit/internal/model"
)

// ErrFolderNotIndexed is returned when querying a folder with no committed
// index.
var ErrFolderNotIndexed = errors.New("no index found for folder")

// Filters are the hard metadata constraints applied during retrieval.
// Chunks failing any filter are excluded entirely, regardless of score.
type Filters struct {
	// MimeClasses restricts results to files whose MIME type falls in one
	// of the listed classes (see extract.Category). Empty means no filter.
	MimeClasses []string
	// ModifiedAfter/ModifiedBefore bound the source file's modified time.
	// Zero values disable the respective bound.
	ModifiedAfter  time.Time
	ModifiedBefore time.Time
}

// Match reports whether a chunk satisfies every filter.
func (f Filters) Match(c model.Chunk) bool {
	if len(f.MimeClasses) > 0 {
		class := extract.Category(c.Metadata.MIMEType)
		found := false
		for _, want := range f.MimeClasses {
			if class == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.ModifiedAfter.IsZero() && c.Metadata.ModifiedTime.Before(f.ModifiedAfter) {
		return false
	}
	if !f.ModifiedBefore.IsZero() && c.Metadata.ModifiedTime.After(f.ModifiedBefore) {
		return false
	}
	return true
}

// Store is the persistent index. It exclusively owns chunks and folder
// index metadata; all writes go through UpsertFolder.
type Store interface {
	// UpsertFolder atomically replaces the folder's chunk set with the new
	// one and advances its index metadata. On any failure mid-write the
	// previously committed state remains fully queryable and time_indexed
	// does not advance.
	UpsertFolder(ctx context.Context, meta model.FolderIndexMeta, chunks []model.Chunk) error

	// Query returns the folder's chunks satisfying the filters, ranked by
	// cosine similarity descending (ties broken by most recent modified
	// time), bounded to topK.
	Query(ctx context.Context, folderID string, vector []float64, f Filters, topK int) ([]model.ScoredChunk, error)

	// GetFolderMeta returns the folder's index metadata with children
	// resolved recursively, or ErrFolderNotIndexed.
	GetFolderMeta(ctx context.Context, folderID string) (*model.FolderIndexMeta, error)

	// DeleteFolder removes the folder's index metadata and chunks.
	DeleteFolder(ctx context.Context, folderID string) error
}

// ValidateGeneration checks a staged chunk generation before any of it is
// written: every chunk must carry an embedding and all embeddings must
// share one dimension. Consistency is per generation, not per store; an
// upsert replaces the folder's chunks wholesale, so re-indexing after an
// embedding model change is a legal write.
func ValidateGeneration(folderID string, chunks []model.Chunk) error {
	dim := 0
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return &model.IndexWriteError{
				FolderID: folderID,
				Err:      fmt.Errorf("chunk %s has no embedding", c.ID),
			}
		}
		if dim == 0 {
			dim = len(c.Embedding)
		} else if len(c.Embedding) != dim {
			return &model.IndexWriteError{
				FolderID: folderID,
				Err:      fmt.Errorf("chunk %s has dimension %d, generation has %d", c.ID, len(c.Embedding), dim),
			}
		}
	}
	return nil
}

// IsStale reports whether a folder's indexed copy is older than its
// current content. effectiveModified must be the recursive max of the
// folder subtree's content modification times.
func IsStale(meta *model.FolderIndexMeta, effectiveModified time.Time) bool {
	if meta == nil {
		return true
	}
	return effectiveModified.After(meta.TimeIndexed)
}

// Cosine computes cosine similarity between two vectors of equal length.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Rank applies hard filters, scores the survivors against the query
// vector, and returns the topK by similarity descending with recency
// tie-breaks. Shared by every Store implementation.
func Rank(chunks []model.Chunk, vector []float64, f Filters, topK int) []model.ScoredChunk {
	if topK <= 0 {
		topK = 5
	}
	scored := make([]model.ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		if !f.Match(c) {
			continue
		}
		scored = append(scored, model.ScoredChunk{Chunk: c, Score: Cosine(c.Embedding, vector)})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Chunk.Metadata.ModifiedTime.After(scored[j].Chunk.Metadata.ModifiedTime)
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}
