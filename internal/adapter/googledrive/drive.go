package googledrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/HandsomeSB/Askit/internal/adapter"
	"github.com/HandsomeSB/Askit/internal/model"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	folderMimeType = "application/vnd.google-apps.folder"

	// DefaultTimeout bounds every individual Drive API call.
	DefaultTimeout = 30 * time.Second

	fileFields = "nextPageToken, files(id, name, mimeType, modifiedTime, size, parents)"
)

// DriveAdapter implements adapter.StorageAdapter for Google Drive.
type DriveAdapter struct {
	service *drive.Service
	timeout time.Duration
}

// NewDriveAdapter creates a new DriveAdapter.
// client should be an authenticated http.Client with specific user credentials.
func NewDriveAdapter(ctx context.Context, client *http.Client, timeout time.Duration) (*DriveAdapter, error) {
	srv, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Drive client: %v", err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &DriveAdapter{service: srv, timeout: timeout}, nil
}

// ListFolder lists the direct children of a folder.
func (d *DriveAdapter) ListFolder(ctx context.Context, folderID string) ([]model.FileRecord, error) {
	if folderID == "" {
		folderID = "root"
	}
	q := fmt.Sprintf("'%s' in parents and trashed = false", folderID)

	records := []model.FileRecord{}
	pageToken := ""
	for {
		callCtx, cancel := context.WithTimeout(ctx, d.timeout)
		r, err := d.service.Files.List().
			Q(q).
			Fields(googleapi.Field(fileFields)).
			PageToken(pageToken).
			Context(callCtx).
			Do()
		cancel()
		if err != nil {
			return nil, wrapDriveErr("unable to list files", err)
		}
		for _, f := range r.Files {
			records = append(records, toRecord(f, folderID))
		}
		pageToken = r.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return records, nil
}

// ListAllFolders lists every folder in the user's Drive, for folder selection.
func (d *DriveAdapter) ListAllFolders(ctx context.Context) ([]model.FileRecord, error) {
	q := fmt.Sprintf("mimeType = '%s' and trashed = false", folderMimeType)

	records := []model.FileRecord{}
	pageToken := ""
	for {
		callCtx, cancel := context.WithTimeout(ctx, d.timeout)
		r, err := d.service.Files.List().
			Q(q).
			Fields(googleapi.Field(fileFields)).
			PageSize(100).
			PageToken(pageToken).
			Context(callCtx).
			Do()
		cancel()
		if err != nil {
			return nil, wrapDriveErr("unable to list folders", err)
		}
		for _, f := range r.Files {
			records = append(records, toRecord(f, ""))
		}
		pageToken = r.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return records, nil
}

// Download retrieves a file's raw content by its ID.
func (d *DriveAdapter) Download(ctx context.Context, fileID string) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	resp, err := d.service.Files.Get(fileID).SupportsAllDrives(true).Context(callCtx).Download()
	if err != nil {
		return nil, wrapDriveErr("unable to download file", err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapDriveErr("unable to read file content", err)
	}
	return content, nil
}

// Export retrieves a Google Workspace file converted to the given MIME type.
func (d *DriveAdapter) Export(ctx context.Context, fileID, mimeType string) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	resp, err := d.service.Files.Export(fileID, mimeType).Context(callCtx).Download()
	if err != nil {
		return nil, wrapDriveErr("unable to export file", err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapDriveErr("unable to read exported content", err)
	}
	return content, nil
}

// FolderIDPath walks parent links up to the root and returns the absolute
// id path, e.g. "/rootID/parentID/folderID".
func (d *DriveAdapter) FolderIDPath(ctx context.Context, folderID string) (string, error) {
	var ids []string
	current := folderID

	for current != "" {
		callCtx, cancel := context.WithTimeout(ctx, d.timeout)
		f, err := d.service.Files.Get(current).
			SupportsAllDrives(true).
			Fields("id, name, parents").
			Context(callCtx).
			Do()
		cancel()
		if err != nil {
			return "", wrapDriveErr("unable to resolve folder path", err)
		}
		ids = append(ids, f.Id)
		if len(f.Parents) == 0 {
			break
		}
		current = f.Parents[0]
	}

	// Reverse to get the path from root to the folder.
	path := ""
	for i := len(ids) - 1; i >= 0; i-- {
		path += "/" + ids[i]
	}
	return path, nil
}

func toRecord(f *drive.File, parentID string) model.FileRecord {
	modTime, _ := time.Parse(time.RFC3339, f.ModifiedTime)
	if parentID == "" && len(f.Parents) > 0 {
		parentID = f.Parents[0]
	}
	return model.FileRecord{
		ID:           f.Id,
		Name:         f.Name,
		MIMEType:     f.MimeType,
		ModifiedTime: modTime,
		// Drive reports a single modification timestamp; it moves whenever
		// the file's content changes, so it serves as both.
		ContentModifiedTime: modTime,
		Size:                f.Size,
		ParentFolderID:      parentID,
	}
}

func wrapDriveErr(msg string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &model.TimeoutError{Dependency: "storage provider", Err: err}
	}
	if isNotFound(err) {
		return adapter.ErrNotFound
	}
	return fmt.Errorf("%s: %v", msg, err)
}

func isNotFound(err error) bool {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return gErr.Code == 404
	}
	return false
}
