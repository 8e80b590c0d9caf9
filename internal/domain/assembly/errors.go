package assembly

import "errors"

// Sentinel kinds for engine errors.
var (
	ErrInsufficientData = errors.New("insufficient data")
)
