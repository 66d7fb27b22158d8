// Package http exposes the orchestration service over a JSON API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/stagehand/internal/integration"
	"github.com/fyrsmithlabs/stagehand/internal/lightning"
	"github.com/fyrsmithlabs/stagehand/internal/logging"
	"github.com/fyrsmithlabs/stagehand/internal/orchestrator"
	"github.com/fyrsmithlabs/stagehand/internal/session"
	"github.com/fyrsmithlabs/stagehand/internal/workflow"
)

// apiPrefix is the versioned API root.
const apiPrefix = "/api/v1"

// Service is the orchestration surface the server exposes.
// *orchestrator.Service satisfies it.
type Service interface {
	CreateSession(ctx context.Context, req orchestrator.CreateSessionRequest) (*orchestrator.CreateSessionResponse, error)
	GetSession(ctx context.Context, id string) (*session.Session, error)
	Process(ctx context.Context, sessionID, input string, base map[string]any) (*orchestrator.ProcessResponse, error)
	CompleteSession(ctx context.Context, id string) (*orchestrator.CompleteResponse, error)
	ProcessViaAdapter(ctx context.Context, module, sessionID, input string, base map[string]any) (*integration.CombinedResult, error)
	InitiateLightning(ctx context.Context, req lightning.Request) (*lightning.Response, error)
	GetLightningRun(id string) (*lightning.Run, error)
	ListWorkflows() []workflow.Workflow
	ListLightningPathways() []lightning.PathwayInfo
	ListModules() map[string][]string
	HealthCheck(ctx context.Context) orchestrator.HealthStatus
}

var _ Service = (*orchestrator.Service)(nil)

// Server provides HTTP endpoints for stagehand.
type Server struct {
	echo    *echo.Echo
	svc     Service
	logger  *zap.Logger
	config  *Config
	metrics *HTTPMetrics
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// PrometheusHandler serves /metrics when set.
	PrometheusHandler http.Handler
}

// NewServer creates a new HTTP server.
func NewServer(svc Service, logger *zap.Logger, cfg *Config) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8470,
		}
	}
	if cfg.PrometheusHandler == nil {
		cfg.PrometheusHandler = promhttp.Handler()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newRequestValidator()

	s := &Server{
		echo:    e,
		svc:     svc,
		logger:  logger,
		config:  cfg,
		metrics: NewHTTPMetrics(logger),
	}
	e.HTTPErrorHandler = s.errorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(s.metrics.MetricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			ctx := logging.WithRequestID(c.Request().Context(), c.Response().Header().Get(echo.HeaderXRequestID))
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			if err != nil {
				// Render now so the logged status is the one sent.
				c.Error(err)
			}

			logger.Info("http request", append(logging.ContextFields(ctx),
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)...)
			return nil
		}
	})

	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(s.config.PrometheusHandler))

	v1 := s.echo.Group(apiPrefix)
	v1.POST("/sessions", s.handleCreateSession)
	v1.GET("/sessions/:id", s.handleGetSession)
	v1.POST("/sessions/:id/process", s.handleProcess)
	v1.POST("/sessions/:id/complete", s.handleComplete)
	v1.POST("/sessions/:id/adapter/:module", s.handleAdapter)

	v1.POST("/lightning", s.handleInitiateLightning)
	v1.GET("/lightning/pathways", s.handleListPathways)
	v1.GET("/lightning/:id", s.handleGetLightningRun)

	v1.GET("/workflows", s.handleListWorkflows)
	v1.GET("/modules", s.handleListModules)
}

// Handler returns the root handler, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
