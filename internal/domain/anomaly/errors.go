package anomaly

import "errors"

// Sentinel kinds for anomaly scoring.
var (
	// ErrNoScore marks a model result that carries no usable score. It is the
	// explicit replacement for treating a raw 0 as "model missing".
	ErrNoScore = errors.New("no anomaly score")
	// ErrDegenerateRange is returned when min-max normalization has no spread.
	ErrDegenerateRange = errors.New("degenerate score range")
)
