package domain

import "errors"

var (
	// ErrNotReady means a runtime prerequisite of the extraction engine is missing
	ErrNotReady = errors.New("extraction engine not ready")

	// ErrExtraction means the engine could not resolve the source
	ErrExtraction = errors.New("extraction failed")

	// ErrFileNotFound means the requested file is not in the download area
	ErrFileNotFound = errors.New("file not found")

	// ErrInvalidFilename means the requested name would escape the download area
	ErrInvalidFilename = errors.New("invalid filename")

	// ErrInvalidTransition is returned by Task state changes that are not allowed
	ErrInvalidTransition = errors.New("invalid task transition")
)
