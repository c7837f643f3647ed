package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/HandsomeSB/Askit/internal/adapter"
	"github.com/HandsomeSB/Askit/internal/auth"
	"github.com/HandsomeSB/Askit/internal/index"
	"github.com/HandsomeSB/Askit/internal/indexer"
	"github.com/HandsomeSB/Askit/internal/model"
)

// FolderHandler handles folder listing and indexing requests.
type FolderHandler struct {
	storageProvider adapter.StorageProvider
	indexerService  *indexer.Service
	sessions        *auth.SessionStore
	jwtSecret       string
}

// NewFolderHandler creates a new FolderHandler.
func NewFolderHandler(sp adapter.StorageProvider, svc *indexer.Service, sessions *auth.SessionStore, jwtSecret string) *FolderHandler {
	return &FolderHandler{storageProvider: sp, indexerService: svc, sessions: sessions, jwtSecret: jwtSecret}
}

// ListFolders lists every folder the user can index.
func (h *FolderHandler) ListFolders(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	// 1. Validate Session
	record, err := GetSession(ctx, req, h.jwtSecret, h.sessions)
	if err != nil {
		return unauthorized(err), nil
	}

	// 2. Get Adapter
	storage, err := h.storageProvider.GetAdapter(ctx, record.UserID)
	if err != nil {
		fmt.Printf("GetAdapter error: %v\n", err)
		return errorResponse(http.StatusInternalServerError, "Failed to get storage adapter"), nil
	}

	// 3. List Folders
	folders, err := storage.ListAllFolders(ctx)
	if err != nil {
		fmt.Printf("ListAllFolders error: %v\n", err)
		return storageErrorResponse(err), nil
	}
	return jsonResponse(http.StatusOK, folders), nil
}

// ProcessFolder runs an indexing pass over the folder subtree.
func (h *FolderHandler) ProcessFolder(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	// 1. Validate Session
	record, err := GetSession(ctx, req, h.jwtSecret, h.sessions)
	if err != nil {
		return unauthorized(err), nil
	}

	folderID := req.PathParameters["id"]
	if folderID == "" {
		return errorResponse(http.StatusBadRequest, "Missing folder id"), nil
	}

	// 2. Get Adapter
	storage, err := h.storageProvider.GetAdapter(ctx, record.UserID)
	if err != nil {
		fmt.Printf("GetAdapter error: %v\n", err)
		return errorResponse(http.StatusInternalServerError, "Failed to get storage adapter"), nil
	}

	// 3. Run the pass
	result, err := h.indexerService.ProcessFolder(ctx, storage, folderID)
	if err != nil {
		if errors.Is(err, index.ErrPassInFlight) {
			return errorResponse(http.StatusConflict, "An indexing pass is already running for this folder"), nil
		}
		fmt.Printf("ProcessFolder error: %v\n", err)
		return storageErrorResponse(err), nil
	}
	return jsonResponse(http.StatusOK, result), nil
}

// FolderStatus reports whether the folder's index exists and is current.
func (h *FolderHandler) FolderStatus(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	// 1. Validate Session
	record, err := GetSession(ctx, req, h.jwtSecret, h.sessions)
	if err != nil {
		return unauthorized(err), nil
	}

	folderID := req.PathParameters["id"]
	if folderID == "" {
		return errorResponse(http.StatusBadRequest, "Missing folder id"), nil
	}

	// 2. Get Adapter
	storage, err := h.storageProvider.GetAdapter(ctx, record.UserID)
	if err != nil {
		fmt.Printf("GetAdapter error: %v\n", err)
		return errorResponse(http.StatusInternalServerError, "Failed to get storage adapter"), nil
	}

	// 3. Compute status
	status, err := h.indexerService.Status(ctx, storage, folderID)
	if err != nil {
		fmt.Printf("Status error: %v\n", err)
		return storageErrorResponse(err), nil
	}
	return jsonResponse(http.StatusOK, status), nil
}

// DeleteIndex removes the folder's index.
func (h *FolderHandler) DeleteIndex(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	// 1. Validate Session
	if _, err := GetSession(ctx, req, h.jwtSecret, h.sessions); err != nil {
		return unauthorized(err), nil
	}

	folderID := req.PathParameters["id"]
	if folderID == "" {
		return errorResponse(http.StatusBadRequest, "Missing folder id"), nil
	}

	// 2. Delete
	if err := h.indexerService.DeleteIndex(ctx, folderID); err != nil {
		fmt.Printf("DeleteIndex error: %v\n", err)
		return errorResponse(http.StatusInternalServerError, "Failed to delete index"), nil
	}
	return jsonResponse(http.StatusOK, map[string]bool{"success": true}), nil
}

// storageErrorResponse maps storage and indexing failures to status codes.
func storageErrorResponse(err error) events.APIGatewayProxyResponse {
	var timeoutErr *model.TimeoutError
	if errors.As(err, &timeoutErr) {
		return errorResponse(http.StatusGatewayTimeout, timeoutErr.Error())
	}
	if errors.Is(err, adapter.ErrNotFound) {
		return errorResponse(http.StatusNotFound, "Folder not found")
	}
	var writeErr *model.IndexWriteError
	if errors.As(err, &writeErr) {
		return errorResponse(http.StatusInternalServerError, "Failed to write index")
	}
	return errorResponse(http.StatusInternalServerError, "Request failed")
}
