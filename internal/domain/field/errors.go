package field

import "errors"

// Sentinel kinds for domain value errors.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrInsufficientData = errors.New("insufficient data")
)
