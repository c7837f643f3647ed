package indexer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/HandsomeSB/Askit/internal/adapter/memory"
	"github.com/HandsomeSB/Askit/internal/chunk"
	"github.com/HandsomeSB/Askit/internal/index"
	"github.com/HandsomeSB/Askit/internal/llm"
	"github.com/HandsomeSB/Askit/internal/model"
)

// countingStore wraps a Store and counts upserts, to observe whether a
// pass skipped a fresh folder.
type countingStore struct {
	index.Store
	upserts int
}

func (c *countingStore) UpsertFolder(ctx context.Context, meta model.FolderIndexMeta, chunks []model.Chunk) error {
	c.upserts++
	return c.Store.UpsertFolder(ctx, meta, chunks)
}

func newTestService(store index.Store) *Service {
	chunker, _ := chunk.NewChunker(200, 40)
	return New(store, index.NewMemoryLock(), chunker, llm.NewMock(), 2)
}

func seedFolder(a *memory.Adapter) {
	a.AddFolder("f1", "Project", "")
	a.AddFile(model.FileRecord{ID: "doc1", Name: "plan.txt", MIMEType: "text/plain", ParentFolderID: "f1"},
		[]byte("The project plan covers three milestones. Each milestone has a deadline."))
	a.AddFile(model.FileRecord{ID: "doc2", Name: "notes.txt", MIMEType: "text/plain", ParentFolderID: "f1"},
		[]byte("Meeting notes from the kickoff. Everyone agreed on the scope."))
}

func TestProcessFolder_Success(t *testing.T) {
	ctx := context.Background()
	a := memory.NewAdapter()
	seedFolder(a)

	store := index.NewMemoryStore()
	svc := newTestService(store)

	result, err := svc.ProcessFolder(ctx, a, "f1")
	if err != nil {
		t.Fatalf("ProcessFolder failed: %v", err)
	}
	if result.Status != StatusSuccess {
		t.Errorf("Status = %s, want %s (failed: %v)", result.Status, StatusSuccess, result.FailedFiles)
	}
	if result.Files != 2 {
		t.Errorf("Files = %d, want 2", result.Files)
	}
	if len(result.FailedFiles) != 0 {
		t.Errorf("FailedFiles = %v, want none", result.FailedFiles)
	}
	if result.IndexID != "index_f1" {
		t.Errorf("IndexID = %s, want index_f1", result.IndexID)
	}

	meta, err := store.GetFolderMeta(ctx, "f1")
	if err != nil {
		t.Fatalf("GetFolderMeta failed: %v", err)
	}
	if meta.AbsoluteIDPath != "/root/f1" {
		t.Errorf("AbsoluteIDPath = %s, want /root/f1", meta.AbsoluteIDPath)
	}
	if meta.TimeIndexed.IsZero() {
		t.Errorf("TimeIndexed not set")
	}
}

func TestIndexID_ReplacesHyphens(t *testing.T) {
	if got := IndexID("abc-123-def"); got != "index_abc_123_def" {
		t.Errorf("IndexID = %s, want index_abc_123_def", got)
	}
}

func TestProcessFolder_PartialFailureIsolatesBadFiles(t *testing.T) {
	ctx := context.Background()
	a := memory.NewAdapter()
	seedFolder(a)
	a.AddFile(model.FileRecord{ID: "bad1", Name: "blob.bin", MIMEType: "application/octet-stream", ParentFolderID: "f1"},
		[]byte{0xff, 0xfe, 0x00})

	store := index.NewMemoryStore()
	svc := newTestService(store)

	result, err := svc.ProcessFolder(ctx, a, "f1")
	if err != nil {
		t.Fatalf("ProcessFolder failed: %v", err)
	}
	if result.Status != StatusPartial {
		t.Errorf("Status = %s, want %s", result.Status, StatusPartial)
	}
	if result.Files != 2 {
		t.Errorf("Files = %d, want 2", result.Files)
	}
	if len(result.FailedFiles) != 1 {
		t.Fatalf("FailedFiles = %v, want one entry", result.FailedFiles)
	}
	if !strings.HasPrefix(result.FailedFiles[0], "blob.bin (") {
		t.Errorf("Failed entry = %q, want name plus reason", result.FailedFiles[0])
	}

	// The good files' chunks must have been committed regardless.
	mock := llm.NewMock()
	vecs, _ := mock.Embed(ctx, []string{"project plan milestones"})
	results, err := store.Query(ctx, "f1", vecs[0], index.Filters{}, 5)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) == 0 {
		t.Errorf("Expected committed chunks from the good files")
	}
}

func TestProcessFolder_EmptyFileReportedAsNoContent(t *testing.T) {
	ctx := context.Background()
	a := memory.NewAdapter()
	a.AddFolder("f1", "Project", "")
	a.AddFile(model.FileRecord{ID: "empty1", Name: "empty.txt", MIMEType: "text/plain", ParentFolderID: "f1"}, []byte("   "))

	svc := newTestService(index.NewMemoryStore())
	result, err := svc.ProcessFolder(ctx, a, "f1")
	if err != nil {
		t.Fatalf("ProcessFolder failed: %v", err)
	}
	if result.Status != StatusFailure {
		t.Errorf("Status = %s, want %s", result.Status, StatusFailure)
	}
	if len(result.FailedFiles) != 1 || result.FailedFiles[0] != "empty.txt (no content extracted)" {
		t.Errorf("FailedFiles = %v", result.FailedFiles)
	}
}

func TestProcessFolder_ConcurrentPassRejected(t *testing.T) {
	ctx := context.Background()
	a := memory.NewAdapter()
	seedFolder(a)

	store := index.NewMemoryStore()
	locker := index.NewMemoryLock()
	chunker, _ := chunk.NewChunker(200, 40)
	svc := New(store, locker, chunker, llm.NewMock(), 2)

	// Simulate an in-flight pass holding the folder lock.
	if err := locker.Acquire(ctx, "f1"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if _, err := svc.ProcessFolder(ctx, a, "f1"); !errors.Is(err, index.ErrPassInFlight) {
		t.Fatalf("Expected ErrPassInFlight, got %v", err)
	}

	// Release and the pass goes through.
	if err := locker.Release(ctx, "f1"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := svc.ProcessFolder(ctx, a, "f1"); err != nil {
		t.Fatalf("ProcessFolder after release failed: %v", err)
	}
}

func TestProcessFolder_SkipsFreshFolder(t *testing.T) {
	ctx := context.Background()
	a := memory.NewAdapter()
	seedFolder(a)

	store := &countingStore{Store: index.NewMemoryStore()}
	svc := newTestService(store)

	if _, err := svc.ProcessFolder(ctx, a, "f1"); err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	if store.upserts != 1 {
		t.Fatalf("Expected 1 upsert after first pass, got %d", store.upserts)
	}

	// Unchanged content: the second pass must not rewrite the index.
	result, err := svc.ProcessFolder(ctx, a, "f1")
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	if store.upserts != 1 {
		t.Errorf("Fresh folder was re-upserted (%d upserts)", store.upserts)
	}
	if result.Status != StatusSuccess || result.Files != 2 {
		t.Errorf("Fresh pass result = %+v", result)
	}

	// Modified content: the third pass rewrites.
	a.Touch("doc1", time.Now().Add(time.Hour))
	if _, err := svc.ProcessFolder(ctx, a, "f1"); err != nil {
		t.Fatalf("third pass failed: %v", err)
	}
	if store.upserts != 2 {
		t.Errorf("Stale folder was not re-upserted (%d upserts)", store.upserts)
	}
}

// cancellingEmbedder cancels the pass context after its first embed call,
// simulating a caller abandoning the request mid-pass.
type cancellingEmbedder struct {
	llm.Embedder
	cancel context.CancelFunc
	once   sync.Once
}

func (e *cancellingEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	vecs, err := e.Embedder.Embed(ctx, texts)
	e.once.Do(e.cancel)
	return vecs, err
}

func TestProcessFolder_CancelledPassCommitsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a := memory.NewAdapter()
	seedFolder(a)

	store := index.NewMemoryStore()
	chunker, _ := chunk.NewChunker(200, 40)
	embedder := &cancellingEmbedder{Embedder: llm.NewMock(), cancel: cancel}
	svc := New(store, index.NewMemoryLock(), chunker, embedder, 1)

	if _, err := svc.ProcessFolder(ctx, a, "f1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}

	// Files embedded before the cancel must not surface as an index.
	if _, err := store.GetFolderMeta(context.Background(), "f1"); !errors.Is(err, index.ErrFolderNotIndexed) {
		t.Fatalf("Cancelled pass committed an index: %v", err)
	}
}

func TestProcessFolder_CancelledPassLeavesPreviousIndexUntouched(t *testing.T) {
	a := memory.NewAdapter()
	seedFolder(a)

	store := index.NewMemoryStore()
	chunker, _ := chunk.NewChunker(200, 40)

	svc := New(store, index.NewMemoryLock(), chunker, llm.NewMock(), 1)
	if _, err := svc.ProcessFolder(context.Background(), a, "f1"); err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	before, err := store.GetFolderMeta(context.Background(), "f1")
	if err != nil {
		t.Fatalf("GetFolderMeta failed: %v", err)
	}

	// A re-index of modified content is cancelled mid-flight.
	a.Touch("doc1", time.Now().Add(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	embedder := &cancellingEmbedder{Embedder: llm.NewMock(), cancel: cancel}
	svc = New(store, index.NewMemoryLock(), chunker, embedder, 1)

	if _, err := svc.ProcessFolder(ctx, a, "f1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}

	after, err := store.GetFolderMeta(context.Background(), "f1")
	if err != nil {
		t.Fatalf("GetFolderMeta after cancel failed: %v", err)
	}
	if !after.TimeIndexed.Equal(before.TimeIndexed) {
		t.Errorf("TimeIndexed advanced on a cancelled pass: %v -> %v", before.TimeIndexed, after.TimeIndexed)
	}
}

func TestProcessFolder_NewSubfolderRefreshesParentChildren(t *testing.T) {
	ctx := context.Background()
	a := memory.NewAdapter()
	seedFolder(a)

	store := index.NewMemoryStore()
	svc := newTestService(store)

	if _, err := svc.ProcessFolder(ctx, a, "f1"); err != nil {
		t.Fatalf("first pass failed: %v", err)
	}

	// A subfolder appears while the parent's own files stay unchanged.
	a.AddFolder("sub1", "Archive", "f1")
	a.AddFile(model.FileRecord{ID: "doc3", Name: "old.txt", MIMEType: "text/plain", ParentFolderID: "sub1"},
		[]byte("Archived notes from an earlier phase of the project."))

	if _, err := svc.ProcessFolder(ctx, a, "f1"); err != nil {
		t.Fatalf("second pass failed: %v", err)
	}

	meta, err := store.GetFolderMeta(ctx, "f1")
	if err != nil {
		t.Fatalf("GetFolderMeta failed: %v", err)
	}
	if len(meta.Children) != 1 || meta.Children[0].FolderID != "sub1" {
		t.Errorf("Children = %v, want [sub1]", meta.Children)
	}
}

func TestProcessFolder_RecursesIntoSubfolders(t *testing.T) {
	ctx := context.Background()
	a := memory.NewAdapter()
	seedFolder(a)
	a.AddFolder("sub1", "Archive", "f1")
	a.AddFile(model.FileRecord{ID: "doc3", Name: "old.txt", MIMEType: "text/plain", ParentFolderID: "sub1"},
		[]byte("Archived design discussion from last year's planning."))

	store := index.NewMemoryStore()
	svc := newTestService(store)

	result, err := svc.ProcessFolder(ctx, a, "f1")
	if err != nil {
		t.Fatalf("ProcessFolder failed: %v", err)
	}
	if result.Files != 3 {
		t.Errorf("Files = %d, want 3 (including subfolder)", result.Files)
	}

	meta, err := store.GetFolderMeta(ctx, "f1")
	if err != nil {
		t.Fatalf("GetFolderMeta failed: %v", err)
	}
	if len(meta.Children) != 1 || meta.Children[0].FolderID != "sub1" {
		t.Errorf("Children = %v, want [sub1]", meta.Children)
	}
	if meta.Children[0].AbsoluteIDPath != "/root/f1/sub1" {
		t.Errorf("Child path = %s", meta.Children[0].AbsoluteIDPath)
	}
}

func TestStatus_TracksStaleness(t *testing.T) {
	ctx := context.Background()
	a := memory.NewAdapter()
	seedFolder(a)

	store := index.NewMemoryStore()
	svc := newTestService(store)

	// Before any pass: not indexed, stale.
	status, err := svc.Status(ctx, a, "f1")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.Indexed || !status.Stale {
		t.Errorf("Pre-index status = %+v", status)
	}

	if _, err := svc.ProcessFolder(ctx, a, "f1"); err != nil {
		t.Fatalf("ProcessFolder failed: %v", err)
	}

	status, err = svc.Status(ctx, a, "f1")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !status.Indexed || status.Stale {
		t.Errorf("Post-index status = %+v", status)
	}
	if status.TimeIndexed == nil {
		t.Errorf("TimeIndexed missing")
	}

	// Touch a file and the folder flips to stale.
	a.Touch("doc1", time.Now().Add(time.Hour))
	status, err = svc.Status(ctx, a, "f1")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !status.Stale {
		t.Errorf("Expected stale after touch, got %+v", status)
	}
}

func TestDeleteIndex(t *testing.T) {
	ctx := context.Background()
	a := memory.NewAdapter()
	seedFolder(a)

	store := index.NewMemoryStore()
	svc := newTestService(store)

	if _, err := svc.ProcessFolder(ctx, a, "f1"); err != nil {
		t.Fatalf("ProcessFolder failed: %v", err)
	}
	if err := svc.DeleteIndex(ctx, "f1"); err != nil {
		t.Fatalf("DeleteIndex failed: %v", err)
	}
	if _, err := store.GetFolderMeta(ctx, "f1"); !errors.Is(err, index.ErrFolderNotIndexed) {
		t.Fatalf("Expected ErrFolderNotIndexed after delete, got %v", err)
	}
}
