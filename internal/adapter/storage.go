package adapter

import (
	"context"

	"github.com/HandsomeSB/Askit/internal/model"
)

// StorageAdapter defines the read-only interface to a cloud storage
// provider. This abstraction allows switching between different providers
// (e.g., Google Drive, OneDrive) without changing the indexing pipeline.
// Implementations must never mutate the files they read.
type StorageAdapter interface {
	// ListFolder lists the direct children (files and subfolders) of a folder.
	ListFolder(ctx context.Context, folderID string) ([]model.FileRecord, error)

	// ListAllFolders lists every folder visible to the user, for folder selection.
	ListAllFolders(ctx context.Context) ([]model.FileRecord, error)

	// Download retrieves a file's raw content by its ID.
	Download(ctx context.Context, fileID string) ([]byte, error)

	// Export retrieves a provider-native file (e.g. a Google Doc) converted
	// to the given MIME type.
	Export(ctx context.Context, fileID, mimeType string) ([]byte, error)

	// FolderIDPath returns the absolute id path of a folder from the root,
	// e.g. "/rootID/parentID/folderID".
	FolderIDPath(ctx context.Context, folderID string) (string, error)
}

// NativeExportType maps a provider-native MIME type to the MIME type its
// content should be exported as before extraction. The boolean reports
// whether the file needs exporting at all.
func NativeExportType(mimeType string) (string, bool) {
	switch mimeType {
	case "application/vnd.google-apps.document":
		return "text/plain", true
	case "application/vnd.google-apps.spreadsheet":
		return "text/csv", true
	case "application/vnd.google-apps.presentation":
		return "text/plain", true
	}
	return "", false
}
