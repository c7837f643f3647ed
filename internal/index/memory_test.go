package index

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/HandsomeSB/Askit/internal/model"
)

func vec(vals ...float64) []float64 { return vals }

func chunkWith(id, folderID string, embedding []float64, mimeType string, modified time.Time) model.Chunk {
	return model.Chunk{
		ID:        id,
		FileID:    "file-" + id,
		FolderID:  folderID,
		Text:      "text " + id,
		Embedding: embedding,
		Metadata: model.ChunkMetadata{
			FileName:     id + ".txt",
			MIMEType:     mimeType,
			ModifiedTime: modified,
		},
	}
}

func TestMemoryStore_QueryUnindexedFolder(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Query(context.Background(), "nope", vec(1, 0), Filters{}, 5)
	if !errors.Is(err, ErrFolderNotIndexed) {
		t.Fatalf("Expected ErrFolderNotIndexed, got %v", err)
	}
}

func TestMemoryStore_UpsertThenQuery(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()

	meta := model.FolderIndexMeta{FolderID: "f1", AbsoluteIDPath: "/root/f1", TimeIndexed: now}
	chunks := []model.Chunk{
		chunkWith("a", "f1", vec(1, 0), "text/plain", now),
		chunkWith("b", "f1", vec(0, 1), "text/plain", now),
	}
	if err := s.UpsertFolder(ctx, meta, chunks); err != nil {
		t.Fatalf("UpsertFolder failed: %v", err)
	}

	results, err := s.Query(ctx, "f1", vec(1, 0), Filters{}, 5)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].Chunk.ID != "a" {
		t.Errorf("Expected best match 'a', got %s", results[0].Chunk.ID)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("Results not sorted by score: %v >= %v expected", results[0].Score, results[1].Score)
	}
}

func TestMemoryStore_UpsertReplacesPreviousGeneration(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()
	meta := model.FolderIndexMeta{FolderID: "f1", TimeIndexed: now}

	if err := s.UpsertFolder(ctx, meta, []model.Chunk{chunkWith("old", "f1", vec(1, 0), "text/plain", now)}); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if err := s.UpsertFolder(ctx, meta, []model.Chunk{chunkWith("new", "f1", vec(1, 0), "text/plain", now)}); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	results, err := s.Query(ctx, "f1", vec(1, 0), Filters{}, 5)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 1 || results[0].Chunk.ID != "new" {
		t.Fatalf("Expected only the new generation, got %v", results)
	}
}

func TestMemoryStore_ReindexMayChangeDimension(t *testing.T) {
	// Dimension consistency is a per-generation property. Switching
	// embedding models and re-indexing replaces the folder's chunks
	// wholesale, so the new dimension must be accepted.
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()
	meta := model.FolderIndexMeta{FolderID: "f1", TimeIndexed: now}

	if err := s.UpsertFolder(ctx, meta, []model.Chunk{chunkWith("a", "f1", vec(1, 0), "text/plain", now)}); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if err := s.UpsertFolder(ctx, meta, []model.Chunk{chunkWith("b", "f1", vec(1, 0, 0), "text/plain", now)}); err != nil {
		t.Fatalf("upsert with new dimension failed: %v", err)
	}

	results, err := s.Query(ctx, "f1", vec(1, 0, 0), Filters{}, 5)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 1 || results[0].Chunk.ID != "b" {
		t.Fatalf("Expected the re-indexed generation, got %v", results)
	}

	// Unrelated folders are not coupled either.
	other := model.FolderIndexMeta{FolderID: "f2", TimeIndexed: now}
	if err := s.UpsertFolder(ctx, other, []model.Chunk{chunkWith("c", "f2", vec(1, 0, 0, 0), "text/plain", now)}); err != nil {
		t.Fatalf("upsert of second folder failed: %v", err)
	}
}

func TestMemoryStore_FailedUpsertLeavesOldGenerationIntact(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()
	meta := model.FolderIndexMeta{FolderID: "f1", TimeIndexed: now}

	if err := s.UpsertFolder(ctx, meta, []model.Chunk{chunkWith("old", "f1", vec(1, 0), "text/plain", now)}); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	// Second generation has a chunk with a mismatched dimension. The write
	// must fail as a whole.
	bad := []model.Chunk{
		chunkWith("new1", "f1", vec(1, 0), "text/plain", now),
		chunkWith("new2", "f1", vec(1, 0, 0), "text/plain", now),
	}
	laterMeta := model.FolderIndexMeta{FolderID: "f1", TimeIndexed: now.Add(time.Hour)}
	err := s.UpsertFolder(ctx, laterMeta, bad)
	if err == nil {
		t.Fatalf("Expected upsert to fail")
	}
	var writeErr *model.IndexWriteError
	if !errors.As(err, &writeErr) {
		t.Fatalf("Expected IndexWriteError, got %T", err)
	}

	// The old generation must still be fully queryable.
	results, err := s.Query(ctx, "f1", vec(1, 0), Filters{}, 5)
	if err != nil {
		t.Fatalf("Query after failed upsert: %v", err)
	}
	if len(results) != 1 || results[0].Chunk.ID != "old" {
		t.Fatalf("Old generation damaged: %v", results)
	}

	// And time_indexed must not have advanced.
	got, err := s.GetFolderMeta(ctx, "f1")
	if err != nil {
		t.Fatalf("GetFolderMeta failed: %v", err)
	}
	if !got.TimeIndexed.Equal(now) {
		t.Errorf("TimeIndexed advanced after failed write: %v", got.TimeIndexed)
	}
}

func TestMemoryStore_GetFolderMetaResolvesChildren(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()

	child := model.FolderIndexMeta{FolderID: "c1", AbsoluteIDPath: "/root/f1/c1", TimeIndexed: now}
	parent := model.FolderIndexMeta{FolderID: "f1", AbsoluteIDPath: "/root/f1", TimeIndexed: now, ChildIDs: []string{"c1", "missing"}}

	if err := s.UpsertFolder(ctx, child, []model.Chunk{chunkWith("a", "c1", vec(1), "text/plain", now)}); err != nil {
		t.Fatalf("child upsert failed: %v", err)
	}
	if err := s.UpsertFolder(ctx, parent, []model.Chunk{chunkWith("b", "f1", vec(1), "text/plain", now)}); err != nil {
		t.Fatalf("parent upsert failed: %v", err)
	}

	meta, err := s.GetFolderMeta(ctx, "f1")
	if err != nil {
		t.Fatalf("GetFolderMeta failed: %v", err)
	}
	if len(meta.Children) != 1 || meta.Children[0].FolderID != "c1" {
		t.Fatalf("Children = %v, want [c1]", meta.Children)
	}
}

func TestMemoryStore_DeleteFolder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()
	meta := model.FolderIndexMeta{FolderID: "f1", TimeIndexed: now}
	if err := s.UpsertFolder(ctx, meta, []model.Chunk{chunkWith("a", "f1", vec(1), "text/plain", now)}); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if err := s.DeleteFolder(ctx, "f1"); err != nil {
		t.Fatalf("DeleteFolder failed: %v", err)
	}
	if _, err := s.Query(ctx, "f1", vec(1), Filters{}, 5); !errors.Is(err, ErrFolderNotIndexed) {
		t.Fatalf("Expected ErrFolderNotIndexed after delete, got %v", err)
	}
}
