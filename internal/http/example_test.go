package http_test

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	httpserver "github.com/fyrsmithlabs/stagehand/internal/http"
	"github.com/fyrsmithlabs/stagehand/internal/lightning"
	"github.com/fyrsmithlabs/stagehand/internal/orchestrator"
	"github.com/fyrsmithlabs/stagehand/internal/patterns"
	"github.com/fyrsmithlabs/stagehand/internal/session"
	"github.com/fyrsmithlabs/stagehand/internal/stage"
	"github.com/fyrsmithlabs/stagehand/internal/synthesis"
	"github.com/fyrsmithlabs/stagehand/internal/workflow"
)

// ExampleServer demonstrates how to wire the service and start the HTTP server.
func ExampleServer() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	stages := stage.NewRegistry()
	stages.MustRegister(stage.Builtins()...)
	workflows, err := workflow.NewBuiltinRegistry()
	if err != nil {
		panic(err)
	}
	invoker := stage.NewInvoker(stage.WithLogger(logger))
	synth := synthesis.New()

	svc, err := orchestrator.NewService(orchestrator.Dependencies{
		Sessions:  session.NewManager(stages, workflows, session.WithLogger(logger)),
		Workflows: workflows,
		Stages:    stages,
		Engine:    orchestrator.NewEngine(stages, invoker, synth, orchestrator.WithEngineLogger(logger)),
		Patterns:  patterns.New(invoker, synth, patterns.WithLogger(logger)),
		Lightning: lightning.NewController(stages, invoker, synth, lightning.WithLogger(logger)),
	}, orchestrator.WithLogger(logger))
	if err != nil {
		panic(err)
	}

	server, err := httpserver.NewServer(svc, logger, &httpserver.Config{
		Host: "localhost",
		Port: 18470,
	})
	if err != nil {
		panic(err)
	}

	go func() {
		if err := server.Start(); err != nil {
			logger.Debug("server stopped", zap.Error(err))
		}
	}()

	time.Sleep(100 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}

	fmt.Println("Server started and stopped successfully")
	// Output: Server started and stopped successfully
}
