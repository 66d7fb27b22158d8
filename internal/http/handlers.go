package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fyrsmithlabs/stagehand/internal/orchestrator"
)

func ok(c echo.Context, code int, data any) error {
	return c.JSON(code, Envelope{Success: true, Data: data})
}

// bind decodes and validates a request body.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// handleHealth reports degraded stages in the body but still answers 200;
// the process is up and serving.
func (s *Server) handleHealth(c echo.Context) error {
	return ok(c, http.StatusOK, s.svc.HealthCheck(c.Request().Context()))
}

func (s *Server) handleCreateSession(c echo.Context) error {
	var req orchestrator.CreateSessionRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	resp, err := s.svc.CreateSession(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, resp)
}

func (s *Server) handleGetSession(c echo.Context) error {
	sess, err := s.svc.GetSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, sess)
}

func (s *Server) handleProcess(c echo.Context) error {
	var req ProcessRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	resp, err := s.svc.Process(c.Request().Context(), c.Param("id"), req.Input, req.Context)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, resp)
}

func (s *Server) handleComplete(c echo.Context) error {
	resp, err := s.svc.CompleteSession(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, resp)
}

func (s *Server) handleAdapter(c echo.Context) error {
	var req ProcessRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	resp, err := s.svc.ProcessViaAdapter(c.Request().Context(), c.Param("module"), c.Param("id"), req.Input, req.Context)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, resp)
}

// handleInitiateLightning answers 200 even when consent is still required;
// the response body carries consent_required in that case.
func (s *Server) handleInitiateLightning(c echo.Context) error {
	var req LightningRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	resp, err := s.svc.InitiateLightning(c.Request().Context(), req.toDomain())
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, resp)
}

func (s *Server) handleGetLightningRun(c echo.Context) error {
	run, err := s.svc.GetLightningRun(c.Param("id"))
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, run)
}

func (s *Server) handleListPathways(c echo.Context) error {
	return ok(c, http.StatusOK, s.svc.ListLightningPathways())
}

func (s *Server) handleListWorkflows(c echo.Context) error {
	return ok(c, http.StatusOK, s.svc.ListWorkflows())
}

func (s *Server) handleListModules(c echo.Context) error {
	return ok(c, http.StatusOK, ModulesResponse{Modules: s.svc.ListModules()})
}
