// Package indexer runs indexing passes: list a folder, extract and chunk
// its files in parallel, embed the chunks, and commit them to the index
// in one atomic upsert per folder.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/HandsomeSB/Askit/internal/adapter"
	"github.com/HandsomeSB/Askit/internal/chunk"
	"github.com/HandsomeSB/Askit/internal/extract"
	"github.com/HandsomeSB/Askit/internal/index"
	"github.com/HandsomeSB/Askit/internal/llm"
	"github.com/HandsomeSB/Askit/internal/model"
)

// DefaultWorkers bounds per-file parallelism within one pass.
const DefaultWorkers = 4

// Pass statuses.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailure = "failure"
)

// Result summarizes one indexing pass over a folder subtree.
type Result struct {
	Status      string   `json:"status"`
	Message     string   `json:"message"`
	IndexID     string   `json:"index_id,omitempty"`
	Files       int      `json:"files_processed"`
	FailedFiles []string `json:"failed_files,omitempty"`
}

// FolderStatus reports whether a folder's index exists and is current.
type FolderStatus struct {
	FolderID    string     `json:"folder_id"`
	Indexed     bool       `json:"indexed"`
	Stale       bool       `json:"stale"`
	TimeIndexed *time.Time `json:"time_indexed,omitempty"`
}

// Service orchestrates indexing passes.
type Service struct {
	store     index.Store
	locker    index.Locker
	extractor *extract.Extractor
	chunker   *chunk.Chunker
	embedder  llm.Embedder
	workers   int
}

// New creates a Service.
func New(store index.Store, locker index.Locker, chunker *chunk.Chunker, embedder llm.Embedder, workers int) *Service {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Service{
		store:     store,
		locker:    locker,
		extractor: extract.NewExtractor(),
		chunker:   chunker,
		embedder:  embedder,
		workers:   workers,
	}
}

// IndexID derives the stable index identifier for a folder.
func IndexID(folderID string) string {
	return "index_" + strings.ReplaceAll(folderID, "-", "_")
}

// ProcessFolder runs an indexing pass over the folder and, recursively,
// its subfolders. Concurrent passes on the same folder are rejected with
// index.ErrPassInFlight; callers translate that to a conflict response.
func (s *Service) ProcessFolder(ctx context.Context, storage adapter.StorageAdapter, folderID string) (*Result, error) {
	if err := s.locker.Acquire(ctx, folderID); err != nil {
		return nil, err
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), folderID); err != nil {
			fmt.Printf("indexer: failed to release lock for folder %s: %v\n", folderID, err)
		}
	}()

	result := &Result{IndexID: IndexID(folderID)}
	files, err := s.processOne(ctx, storage, folderID, result)
	if err != nil {
		return nil, err
	}

	result.Files = files
	switch {
	case len(result.FailedFiles) == 0:
		result.Status = StatusSuccess
		result.Message = fmt.Sprintf("indexed %d file(s)", files)
	case files > 0:
		result.Status = StatusPartial
		result.Message = fmt.Sprintf("indexed %d file(s), %d failed", files, len(result.FailedFiles))
	default:
		result.Status = StatusFailure
		result.Message = fmt.Sprintf("all %d file(s) failed", len(result.FailedFiles))
	}
	return result, nil
}

// processOne indexes a single folder and recurses into its subfolders.
// Each folder commits independently; a failing subfolder does not roll
// back its siblings. Returns how many files were indexed successfully.
func (s *Service) processOne(ctx context.Context, storage adapter.StorageAdapter, folderID string, result *Result) (int, error) {
	passStart := time.Now()

	// 1. Resolve the folder's identity and list its children.
	idPath, err := storage.FolderIDPath(ctx, folderID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve folder path: %w", err)
	}
	records, err := storage.ListFolder(ctx, folderID)
	if err != nil {
		return 0, fmt.Errorf("failed to list folder: %w", err)
	}

	var files, subfolders []model.FileRecord
	for _, r := range records {
		if r.IsFolder() {
			subfolders = append(subfolders, r)
		} else {
			files = append(files, r)
		}
	}

	// 2. Skip folders whose index is already current. Re-running a pass on
	// unchanged content is a no-op. A changed subfolder set makes the
	// folder non-fresh even with untouched files, so the recorded children
	// stay in step with the recursion below.
	indexed := 0
	meta, metaErr := s.store.GetFolderMeta(ctx, folderID)
	fresh := metaErr == nil && !index.IsStale(meta, maxContentModified(files)) && sameChildren(meta.ChildIDs, subfolders)
	if !fresh {
		indexed, err = s.indexFiles(ctx, storage, folderID, idPath, passStart, files, subfolders, result)
		if err != nil {
			return 0, err
		}
	} else {
		indexed = len(files)
	}

	// 3. Recurse. Subfolder passes are independent; their files count
	// toward the aggregate result.
	for _, sub := range subfolders {
		subCount, err := s.processOne(ctx, storage, sub.ID, result)
		if err != nil {
			if ctx.Err() != nil {
				return 0, err
			}
			result.FailedFiles = append(result.FailedFiles, fmt.Sprintf("%s (%v)", sub.Name, err))
			continue
		}
		indexed += subCount
	}
	return indexed, nil
}

// indexFiles extracts, chunks, and embeds the folder's direct files, then
// commits them as one upsert. Individual file failures are recorded and
// skipped; only a storage-level or index-level failure aborts the folder.
func (s *Service) indexFiles(ctx context.Context, storage adapter.StorageAdapter, folderID, idPath string, passStart time.Time, files, subfolders []model.FileRecord, result *Result) (int, error) {
	var (
		mu        sync.Mutex
		allChunks []model.Chunk
		failed    []string
		indexed   int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, file := range files {
		g.Go(func() error {
			chunks, err := s.processFile(gctx, storage, folderID, idPath, file)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, fmt.Sprintf("%s (%v)", file.Name, reason(err)))
				return nil
			}
			if len(chunks) == 0 {
				failed = append(failed, fmt.Sprintf("%s (no content extracted)", file.Name))
				return nil
			}
			allChunks = append(allChunks, chunks...)
			indexed++
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	// Cancellation mid-pass must not commit whatever happened to finish.
	// The previous generation stays current, as if the pass never ran.
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	sort.Strings(failed)
	result.FailedFiles = append(result.FailedFiles, failed...)

	childIDs := make([]string, 0, len(subfolders))
	for _, sub := range subfolders {
		childIDs = append(childIDs, sub.ID)
	}
	meta := model.FolderIndexMeta{
		FolderID:       folderID,
		AbsoluteIDPath: idPath,
		TimeIndexed:    passStart,
		ChildIDs:       childIDs,
	}
	if err := s.store.UpsertFolder(ctx, meta, allChunks); err != nil {
		return 0, err
	}
	return indexed, nil
}

// processFile turns one file into embedded chunks.
func (s *Service) processFile(ctx context.Context, storage adapter.StorageAdapter, folderID, idPath string, file model.FileRecord) ([]model.Chunk, error) {
	// 1. Fetch content, exporting provider-native formats to plain text.
	var (
		content []byte
		err     error
	)
	if exportType, ok := adapter.NativeExportType(file.MIMEType); ok {
		content, err = storage.Export(ctx, file.ID, exportType)
	} else {
		content, err = storage.Download(ctx, file.ID)
	}
	if err != nil {
		return nil, err
	}

	// 2. Extract text and per-file metadata.
	text, extra, err := s.extractor.Extract(file, content)
	if err != nil {
		return nil, err
	}

	// 3. Chunk.
	chunks := s.chunker.Split(text, file.ID, model.ChunkMetadata{
		FileName:     file.Name,
		MIMEType:     file.MIMEType,
		ModifiedTime: file.ModifiedTime,
		FolderPath:   idPath,
		Extra:        extra,
	})
	if len(chunks) == 0 {
		return nil, nil
	}

	// 4. Embed the whole file in one batch.
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
		chunks[i].FolderID = folderID
	}
	return chunks, nil
}

// Status reports whether the folder's index exists and whether any file in
// the subtree has changed since it was built.
func (s *Service) Status(ctx context.Context, storage adapter.StorageAdapter, folderID string) (*FolderStatus, error) {
	status := &FolderStatus{FolderID: folderID}

	meta, err := s.store.GetFolderMeta(ctx, folderID)
	if errors.Is(err, index.ErrFolderNotIndexed) {
		status.Stale = true
		return status, nil
	}
	if err != nil {
		return nil, err
	}
	status.Indexed = true
	status.TimeIndexed = &meta.TimeIndexed

	modified, err := s.effectiveModified(ctx, storage, folderID)
	if err != nil {
		return nil, err
	}
	status.Stale = index.IsStale(meta, modified)
	return status, nil
}

// effectiveModified is the recursive max content modification time of the
// folder subtree.
func (s *Service) effectiveModified(ctx context.Context, storage adapter.StorageAdapter, folderID string) (time.Time, error) {
	records, err := storage.ListFolder(ctx, folderID)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to list folder: %w", err)
	}
	var max time.Time
	for _, r := range records {
		if r.IsFolder() {
			sub, err := s.effectiveModified(ctx, storage, r.ID)
			if err != nil {
				return time.Time{}, err
			}
			if sub.After(max) {
				max = sub
			}
			continue
		}
		if t := contentModified(r); t.After(max) {
			max = t
		}
	}
	return max, nil
}

// DeleteIndex removes the folder's committed index.
func (s *Service) DeleteIndex(ctx context.Context, folderID string) error {
	return s.store.DeleteFolder(ctx, folderID)
}

// sameChildren reports whether the recorded child folder IDs match the
// current listing.
func sameChildren(recorded []string, subfolders []model.FileRecord) bool {
	if len(recorded) != len(subfolders) {
		return false
	}
	have := make(map[string]bool, len(recorded))
	for _, id := range recorded {
		have[id] = true
	}
	for _, sub := range subfolders {
		if !have[sub.ID] {
			return false
		}
	}
	return true
}

func maxContentModified(files []model.FileRecord) time.Time {
	var max time.Time
	for _, f := range files {
		if t := contentModified(f); t.After(max) {
			max = t
		}
	}
	return max
}

// contentModified prefers the content modification time over the metadata
// one, so a rename alone does not mark a folder stale.
func contentModified(f model.FileRecord) time.Time {
	if !f.ContentModifiedTime.IsZero() {
		return f.ContentModifiedTime
	}
	return f.ModifiedTime
}

// reason strips error-type wrapping down to the human-readable cause used
// in failed-file entries.
func reason(err error) string {
	var extErr *model.ExtractionError
	if errors.As(err, &extErr) {
		return extErr.Reason
	}
	return err.Error()
}
