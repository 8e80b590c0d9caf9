package repository

import "errors"

// Sentinel kinds for run store errors.
var (
	ErrNotFound     = errors.New("run not found")
	ErrInvalidRun   = errors.New("invalid run")
	ErrInvalidLimit = errors.New("invalid run limit")
)
