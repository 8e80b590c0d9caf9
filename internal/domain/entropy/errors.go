package entropy

import "errors"

// Sentinel kinds for estimator errors.
var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrNumericAnomaly = errors.New("numeric anomaly")
	ErrUnknownUnit    = errors.New("unknown entropy unit")
	ErrSelfCheck      = errors.New("estimator self-check failed")
)
