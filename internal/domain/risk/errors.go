package risk

import "errors"

// Sentinel kinds for risk combination.
var (
	ErrNegativeWeight    = errors.New("ensemble weight must not be negative")
	ErrInvalidTiers      = errors.New("risk tier thresholds must be increasing within [0,1]")
	ErrUnknownPolicy     = errors.New("unknown risk policy")
	ErrInvalidEscalation = errors.New("escalation thresholds must satisfy 0 < escalate1 < escalate2 <= 1")
)
