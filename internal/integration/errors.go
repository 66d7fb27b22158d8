package integration

import "errors"

var (
	ErrUnknownModule   = errors.New("unknown external module")
	ErrDuplicateModule = errors.New("external module already registered")
	ErrUnmappedModule  = errors.New("external module has no stage mapping")
	ErrRateLimited     = errors.New("external module rate limit wait failed")
)
