package stage

import "errors"

// Registry errors.
var (
	ErrStageNotFound  = errors.New("stage not found")
	ErrDuplicateStage = errors.New("stage already registered")
	ErrInvalidStageID = errors.New("invalid stage id")
	ErrNilStage       = errors.New("stage is nil")
)

// Invocation errors.
var (
	ErrStageTimeout = errors.New("stage timed out")
	ErrStagePanic   = errors.New("stage panicked")
	ErrNoResult     = errors.New("stage returned no result")
	ErrCanceled     = errors.New("stage invocation canceled")
)
