package adapter

import (
	"errors"
)

var (
	// ErrNotFound is returned when a requested file or folder is not found.
	ErrNotFound = errors.New("resource not found")
)
