package artifacts

import "errors"

// Sentinel errors returned while loading model artifacts.
var (
	ErrInvalidArtifact = errors.New("invalid model artifact")
	ErrSchemaMismatch  = errors.New("artifact parameters do not match schema")
)
