package lightning

import "errors"

// Request errors.
var (
	ErrUnknownPathway   = errors.New("unknown lightning pathway")
	ErrUnknownIntensity = errors.New("unknown lightning intensity")
	ErrMissingOwner     = errors.New("owner id is required")
)

// Lookup errors.
var (
	ErrRunNotFound = errors.New("lightning run not found")
)
