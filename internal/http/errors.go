package http

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/stagehand/internal/integration"
	"github.com/fyrsmithlabs/stagehand/internal/lightning"
	"github.com/fyrsmithlabs/stagehand/internal/orchestrator"
	"github.com/fyrsmithlabs/stagehand/internal/session"
	"github.com/fyrsmithlabs/stagehand/internal/workflow"
)

var (
	notFound = []error{
		session.ErrSessionNotFound,
		workflow.ErrWorkflowNotFound,
		lightning.ErrRunNotFound,
		integration.ErrUnknownModule,
	}
	conflict = []error{
		session.ErrSessionClosed,
		orchestrator.ErrLightningFlow,
	}
	unprocessable = []error{
		session.ErrEmptyStageSet,
		session.ErrMissingOwner,
		orchestrator.ErrInputRejected,
		lightning.ErrUnknownPathway,
		lightning.ErrUnknownIntensity,
		lightning.ErrMissingOwner,
		workflow.ErrInvalidFlowPattern,
	}
)

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// statusFor maps a domain error to an HTTP status.
func statusFor(err error) int {
	var httpErr *echo.HTTPError
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &httpErr):
		return httpErr.Code
	case errors.As(err, &verrs):
		return http.StatusBadRequest
	case isAny(err, notFound):
		return http.StatusNotFound
	case isAny(err, conflict):
		return http.StatusConflict
	case isAny(err, unprocessable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, orchestrator.ErrAdapterUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorHandler renders every error, including echo's own, in the envelope.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := statusFor(err)
	msg := err.Error()
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		if m, ok := httpErr.Message.(string); ok {
			msg = m
		} else {
			msg = http.StatusText(code)
		}
	}
	if code >= http.StatusInternalServerError && code != http.StatusServiceUnavailable {
		s.logger.Error("request failed",
			zap.String("uri", c.Request().RequestURI),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			zap.Error(err),
		)
		msg = "internal error"
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(code)
	} else {
		werr = c.JSON(code, Envelope{Success: false, Error: msg})
	}
	if werr != nil {
		s.logger.Warn("failed to write error response", zap.Error(werr))
	}
}
