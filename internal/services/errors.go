package services

import "errors"

// Data service errors
var (
	// File errors
	ErrFileNotFound = errors.New("file not found")
	ErrNoFilesFound = errors.New("no files found")

	// Table errors
	ErrEmptyTable          = errors.New("file contains no usable data")
	ErrInvalidResampleRule = errors.New("invalid resample rule")

	// Combine errors
	ErrNoDatasets = errors.New("no datasets selected")

	// General errors
	ErrInvalidInput = errors.New("invalid input")
)
