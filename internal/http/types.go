package http

import (
	"github.com/fyrsmithlabs/stagehand/internal/lightning"
)

// Envelope wraps every response body.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ProcessRequest is the body for POST /api/v1/sessions/:id/process and
// POST /api/v1/sessions/:id/adapter/:module.
type ProcessRequest struct {
	Input   string         `json:"input" validate:"max=100000"`
	Context map[string]any `json:"context,omitempty"`
}

// LightningRequest is the body for POST /api/v1/lightning.
type LightningRequest struct {
	OwnerID          string         `json:"owner_id" validate:"required,max=128"`
	Pathway          string         `json:"pathway" validate:"required,max=64"`
	Intensity        string         `json:"intensity,omitempty" validate:"omitempty,oneof=gentle moderate intense breakthrough"`
	Input            string         `json:"input" validate:"max=100000"`
	Context          map[string]any `json:"context,omitempty"`
	ConsentConfirmed bool           `json:"consent_confirmed"`
}

func (r LightningRequest) toDomain() lightning.Request {
	return lightning.Request{
		OwnerID:          r.OwnerID,
		Pathway:          r.Pathway,
		Intensity:        lightning.Intensity(r.Intensity),
		Input:            r.Input,
		Context:          r.Context,
		ConsentConfirmed: r.ConsentConfirmed,
	}
}

// ModulesResponse is the body for GET /api/v1/modules.
type ModulesResponse struct {
	Modules map[string][]string `json:"modules"`
}
