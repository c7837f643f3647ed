package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState is returned when an OAuth callback carries a state
	// value that is missing, already consumed, or expired.
	ErrInvalidState = errors.New("invalid or expired oauth state")

	// ErrSessionExpired is returned when a session exists but is past its
	// expiry. Expired sessions must be re-established via a fresh login.
	ErrSessionExpired = errors.New("session expired")
)

// ExtractionError is a per-file extraction failure. It is recorded in the
// pass's failed-file list and never aborts processing of sibling files.
type ExtractionError struct {
	FileID   string
	FileName string
	Reason   string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s (%s): %s", e.FileName, e.FileID, e.Reason)
}

// IndexWriteError aborts a single folder's indexing pass. The previously
// committed index state remains queryable.
type IndexWriteError struct {
	FolderID string
	Err      error
}

func (e *IndexWriteError) Error() string {
	return fmt.Sprintf("index write for folder %s: %v", e.FolderID, e.Err)
}

func (e *IndexWriteError) Unwrap() error { return e.Err }

// SynthesisError means answer generation failed for a query. No partial
// answer accompanies it.
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("answer synthesis: %v", e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// TimeoutError marks a timed-out call to a named external dependency
// (storage provider, embedding service, generation service).
type TimeoutError struct {
	Dependency string
	Err        error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out: %v", e.Dependency, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }
