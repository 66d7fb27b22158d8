// Package orchestrator runs processing stages over a session and exposes
// the service facade used by the transports.
//
// # Overview
//
// The Engine executes a session's stages in the order its flow pattern
// dictates and reduces their results into a synthesis:
//
//	descending  registration order
//	ascending   reverse order
//	balancing   routed by the Service to the pattern engine
//	lightning   rejected; use Service.InitiateLightning
//
// Every stage receives the caller's context plus the results so far, its
// 1-based position and the stage count. A failing stage never aborts the
// sequence. Once the context is canceled the remaining stages are marked
// failed without being invoked.
//
// # Service
//
// Service is the boundary contract: session creation, processing,
// completion, lightning runs, external modules, catalogue listings and
// health. All processing on a session happens under that session's lock.
//
// # Gates
//
// Input gates run before processing. Violations of error severity or
// worse reject the request with ErrInputRejected; warnings are returned
// alongside the result. Credentials found in accepted input are replaced
// with secrets.Redaction before any stage sees it, and reported as a
// secret_redacted warning.
//
//	svc, err := orchestrator.NewService(orchestrator.Dependencies{...})
//	created, err := svc.CreateSession(ctx, orchestrator.CreateSessionRequest{
//	    OwnerID:      "u1",
//	    WorkflowName: "foundation_building",
//	})
//	resp, err := svc.Process(ctx, created.SessionID, "I need structure", nil)
package orchestrator
