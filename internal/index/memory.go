package index

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/HandsomeSB/Askit/internal/model"
)

type folderEntry struct {
	meta       model.FolderIndexMeta
	currentGen string
	gens       map[string][]model.Chunk
}

// MemoryStore is an in-memory Store used in dev mode and tests. Writes
// follow the same generation scheme as the DynamoDB store: a new chunk
// generation is staged and validated in full before the folder's current
// generation pointer moves.
type MemoryStore struct {
	mu      sync.RWMutex
	folders map[string]*folderEntry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{folders: make(map[string]*folderEntry)}
}

// UpsertFolder stages the chunks as a fresh generation and commits it
// together with the metadata. Dimension mismatches fail the whole write
// and leave the previous generation untouched.
func (s *MemoryStore) UpsertFolder(_ context.Context, meta model.FolderIndexMeta, chunks []model.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 1. Validate the full generation before touching committed state.
	if err := ValidateGeneration(meta.FolderID, chunks); err != nil {
		return err
	}

	// 2. Commit: swap the generation pointer and advance metadata.
	entry, ok := s.folders[meta.FolderID]
	if !ok {
		entry = &folderEntry{gens: make(map[string][]model.Chunk)}
		s.folders[meta.FolderID] = entry
	}
	genID := uuid.New().String()
	entry.gens[genID] = chunks
	if entry.currentGen != "" {
		delete(entry.gens, entry.currentGen)
	}
	entry.currentGen = genID
	entry.meta = meta
	return nil
}

// Query ranks the folder's current generation against the query vector.
func (s *MemoryStore) Query(_ context.Context, folderID string, vector []float64, f Filters, topK int) ([]model.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.folders[folderID]
	if !ok || entry.currentGen == "" {
		return nil, ErrFolderNotIndexed
	}
	return Rank(entry.gens[entry.currentGen], vector, f, topK), nil
}

// GetFolderMeta resolves the folder's metadata tree. Child folders that
// were never indexed (or have been deleted) are omitted.
func (s *MemoryStore) GetFolderMeta(_ context.Context, folderID string) (*model.FolderIndexMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolveMeta(folderID, make(map[string]bool))
}

func (s *MemoryStore) resolveMeta(folderID string, seen map[string]bool) (*model.FolderIndexMeta, error) {
	if seen[folderID] {
		return nil, fmt.Errorf("folder metadata cycle at %s", folderID)
	}
	seen[folderID] = true

	entry, ok := s.folders[folderID]
	if !ok {
		return nil, ErrFolderNotIndexed
	}
	meta := entry.meta
	meta.Children = nil
	for _, childID := range meta.ChildIDs {
		child, err := s.resolveMeta(childID, seen)
		if err != nil {
			continue
		}
		meta.Children = append(meta.Children, child)
	}
	return &meta, nil
}

// DeleteFolder drops the folder's metadata and every staged generation.
func (s *MemoryStore) DeleteFolder(_ context.Context, folderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.folders, folderID)
	return nil
}
