// Package telemetry wires OpenTelemetry tracing and metrics export for
// stagehand.
//
// Spans and instruments created with the global otel API in the session,
// orchestrator and lightning packages flow through the providers installed
// here:
//
//	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg.Observability, version))
//	defer tel.Shutdown(ctx)
//
// Export uses OTLP over gRPC or HTTP. Failures degrade to no-op providers
// and are surfaced through Health rather than stopping the daemon.
//
// Tests use NewTestTelemetry for in-memory span and metric capture.
package telemetry
