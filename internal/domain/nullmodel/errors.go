package nullmodel

import "errors"

// Sentinel kinds for ensemble errors.
var (
	ErrInvalidEnsemble  = errors.New("invalid ensemble")
	ErrInsufficientData = errors.New("insufficient data")
)
