package orchestrator

import "errors"

// Execution errors.
var (
	ErrLightningFlow = errors.New("lightning sessions run through InitiateLightning")
	ErrInputRejected = errors.New("input rejected")
)

// Service errors.
var (
	ErrMissingDependency  = errors.New("missing service dependency")
	ErrAdapterUnavailable = errors.New("integration adapter not configured")
)
