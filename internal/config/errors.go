package config

import "errors"

var (
	// ErrInvalidConfig wraps every validation failure, including sections
	// that do not convert into engine options.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrLoadConfig wraps failures reading the YAML file or environment.
	ErrLoadConfig = errors.New("load config failed")
)
