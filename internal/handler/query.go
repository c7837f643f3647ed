package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/HandsomeSB/Askit/internal/auth"
	"github.com/HandsomeSB/Askit/internal/engine"
	"github.com/HandsomeSB/Askit/internal/index"
	"github.com/HandsomeSB/Askit/internal/model"
)

// QueryHandler answers natural-language questions over an indexed folder.
type QueryHandler struct {
	engine    *engine.Engine
	sessions  *auth.SessionStore
	jwtSecret string
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(e *engine.Engine, sessions *auth.SessionStore, jwtSecret string) *QueryHandler {
	return &QueryHandler{engine: e, sessions: sessions, jwtSecret: jwtSecret}
}

// Query runs the retrieval and synthesis pipeline for one question.
func (h *QueryHandler) Query(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	// 1. Validate Session
	if _, err := GetSession(ctx, req, h.jwtSecret, h.sessions); err != nil {
		return unauthorized(err), nil
	}

	// 2. Parse Body
	var body struct {
		FolderID string `json:"folder_id"`
		Query    string `json:"query"`
	}
	if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
		return errorResponse(http.StatusBadRequest, "Invalid request body"), nil
	}
	if body.FolderID == "" || strings.TrimSpace(body.Query) == "" {
		return errorResponse(http.StatusBadRequest, "folder_id and query are required"), nil
	}

	// 3. Answer
	result, err := h.engine.Answer(ctx, body.FolderID, body.Query)
	if err != nil {
		if errors.Is(err, index.ErrFolderNotIndexed) {
			return errorResponse(http.StatusNotFound, "Folder is not indexed yet"), nil
		}
		var timeoutErr *model.TimeoutError
		if errors.As(err, &timeoutErr) {
			return errorResponse(http.StatusGatewayTimeout, timeoutErr.Error()), nil
		}
		var synthErr *model.SynthesisError
		if errors.As(err, &synthErr) {
			fmt.Printf("Synthesis error: %v\n", err)
			return errorResponse(http.StatusBadGateway, "Failed to generate an answer"), nil
		}
		fmt.Printf("Answer error: %v\n", err)
		return errorResponse(http.StatusInternalServerError, "Query failed"), nil
	}
	return jsonResponse(http.StatusOK, result), nil
}
