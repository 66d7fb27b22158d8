package session

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionClosed   = errors.New("session is closed")
	ErrEmptyStageSet   = errors.New("no stages resolved for session")
	ErrMissingOwner    = errors.New("owner_id is required")
)
