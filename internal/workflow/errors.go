package workflow

import "errors"

var (
	ErrWorkflowNotFound   = errors.New("workflow not found")
	ErrDuplicateWorkflow  = errors.New("workflow already registered")
	ErrMissingName        = errors.New("workflow name is required")
	ErrEmptyWorkflow      = errors.New("workflow has no stages")
	ErrInvalidFlowPattern = errors.New("invalid flow pattern")
	ErrUnsupportedFormat  = errors.New("unsupported workflow file format")
)
