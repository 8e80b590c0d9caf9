package spatial

import "errors"

// Sentinel kinds for index errors.
var (
	ErrUnknownNorm   = errors.New("unknown distance norm")
	ErrInvalidPoints = errors.New("invalid point set")
)
