package loader

import "errors"

// Package-level errors for input loading.
var (
	// ErrReadInput indicates the input file could not be read.
	ErrReadInput = errors.New("read input")

	// ErrParseInput indicates the input file contents are not a valid series.
	ErrParseInput = errors.New("parse input")
)
