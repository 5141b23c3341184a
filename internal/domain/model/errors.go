package model

import "errors"

// Sentinel kinds for reading validation. These are the only errors the
// assessment pipeline surfaces to callers.
var (
	ErrMissingSensorID = errors.New("missing sensor id")
	ErrMissingMetric   = errors.New("missing required metric")
	ErrNonFiniteMetric = errors.New("metric is not finite")
)
