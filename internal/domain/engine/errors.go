package engine

import "errors"

// ErrInvalidReading wraps every validation failure. It is the only error a
// single assessment returns for bad input.
var ErrInvalidReading = errors.New("invalid reading")
