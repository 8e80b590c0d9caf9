package service

import "errors"

// ErrNotStarted indicates Analyze was called before Start.
var ErrNotStarted = errors.New("service not started")
