// Package memory provides an in-memory StorageAdapter used by tests and
// demo logins. It holds a small folder/file tree per user and serves
// content without any network access.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/HandsomeSB/Askit/internal/adapter"
	"github.com/HandsomeSB/Askit/internal/model"
)

type storedFile struct {
	record  model.FileRecord
	content []byte
}

// Adapter is an in-memory implementation of adapter.StorageAdapter.
type Adapter struct {
	mu      sync.RWMutex
	files   map[string]*storedFile // by file/folder ID
	rootID  string
	counter int
}

// NewAdapter creates an empty in-memory adapter with a single root folder.
func NewAdapter() *Adapter {
	a := &Adapter{
		files:  make(map[string]*storedFile),
		rootID: "root",
	}
	a.files["root"] = &storedFile{
		record: model.FileRecord{
			ID:       "root",
			Name:     "My Drive",
			MIMEType: "application/vnd.google-apps.folder",
		},
	}
	return a
}

// AddFolder inserts a folder under the given parent and returns its ID.
func (a *Adapter) AddFolder(id, name, parentID string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if parentID == "" {
		parentID = a.rootID
	}
	now := time.Now().UTC()
	a.files[id] = &storedFile{
		record: model.FileRecord{
			ID:                  id,
			Name:                name,
			MIMEType:            "application/vnd.google-apps.folder",
			ModifiedTime:        now,
			ContentModifiedTime: now,
			ParentFolderID:      parentID,
		},
	}
	return id
}

// AddFile inserts a file with the given metadata and content.
func (a *Adapter) AddFile(rec model.FileRecord, content []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if rec.ParentFolderID == "" {
		rec.ParentFolderID = a.rootID
	}
	if rec.ModifiedTime.IsZero() {
		rec.ModifiedTime = time.Now().UTC()
	}
	if rec.ContentModifiedTime.IsZero() {
		rec.ContentModifiedTime = rec.ModifiedTime
	}
	rec.Size = int64(len(content))
	a.files[rec.ID] = &storedFile{record: rec, content: content}
}

// Touch advances a file's modification timestamps, for staleness tests.
func (a *Adapter) Touch(fileID string, t time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if f, ok := a.files[fileID]; ok {
		f.record.ModifiedTime = t
		f.record.ContentModifiedTime = t
	}
}

// ListFolder lists the direct children of a folder.
func (a *Adapter) ListFolder(ctx context.Context, folderID string) ([]model.FileRecord, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if folderID == "" {
		folderID = a.rootID
	}
	if _, ok := a.files[folderID]; !ok {
		return nil, adapter.ErrNotFound
	}
	records := []model.FileRecord{}
	for _, f := range a.files {
		if f.record.ParentFolderID == folderID {
			records = append(records, f.record)
		}
	}
	return records, nil
}

// ListAllFolders lists every folder in the tree.
func (a *Adapter) ListAllFolders(ctx context.Context) ([]model.FileRecord, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	records := []model.FileRecord{}
	for _, f := range a.files {
		if f.record.IsFolder() {
			records = append(records, f.record)
		}
	}
	return records, nil
}

// Download returns a file's stored content.
func (a *Adapter) Download(ctx context.Context, fileID string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	f, ok := a.files[fileID]
	if !ok {
		return nil, adapter.ErrNotFound
	}
	return f.content, nil
}

// Export returns a provider-native file's content. The in-memory adapter
// stores exported bytes directly, so the target MIME type is ignored.
func (a *Adapter) Export(ctx context.Context, fileID, mimeType string) ([]byte, error) {
	return a.Download(ctx, fileID)
}

// FolderIDPath walks parent links up to the root.
func (a *Adapter) FolderIDPath(ctx context.Context, folderID string) (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	var ids []string
	current := folderID
	for current != "" {
		f, ok := a.files[current]
		if !ok {
			return "", adapter.ErrNotFound
		}
		ids = append(ids, f.record.ID)
		current = f.record.ParentFolderID
	}
	path := ""
	for i := len(ids) - 1; i >= 0; i-- {
		path += "/" + ids[i]
	}
	return path, nil
}

// Provider implements adapter.StorageProvider with one Adapter per user.
type Provider struct {
	mu       sync.Mutex
	adapters map[string]*Adapter
}

// NewProvider creates a new in-memory provider.
func NewProvider() *Provider {
	return &Provider{adapters: make(map[string]*Adapter)}
}

// GetAdapter returns the user's adapter, creating it on first use.
func (p *Provider) GetAdapter(ctx context.Context, userID string) (adapter.StorageAdapter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.adapters[userID]
	if !ok {
		a = NewAdapter()
		p.adapters[userID] = a
	}
	return a, nil
}

// AdapterFor exposes the raw adapter for seeding test or demo data.
func (p *Provider) AdapterFor(userID string) *Adapter {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.adapters[userID]
	if !ok {
		a = NewAdapter()
		p.adapters[userID] = a
	}
	return a
}
