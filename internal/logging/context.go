package logging

import (
	"context"
	"fmt"
	"regexp"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 7)

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}

	if owner := OwnerIDFromContext(ctx); owner != "" {
		fields = append(fields, zap.String("owner.id", owner))
	}
	if sessionID := SessionIDFromContext(ctx); sessionID != "" {
		fields = append(fields, zap.String("session.id", sessionID))
	}
	if stageID := StageIDFromContext(ctx); stageID != "" {
		fields = append(fields, zap.String("stage.id", stageID))
	}
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request.id", requestID))
	}

	return fields
}

type ownerCtxKey struct{}
type sessionCtxKey struct{}
type stageCtxKey struct{}
type requestCtxKey struct{}

const maxIDLen = 128

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9_.:-]+$`)

// ValidateID checks that an identifier is safe to attach to log output.
func ValidateID(id, name string) error {
	if id == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	if !utf8.ValidString(id) {
		return fmt.Errorf("%s contains invalid UTF-8", name)
	}
	if len(id) > maxIDLen {
		return fmt.Errorf("%s exceeds max length %d", name, maxIDLen)
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (must be alphanumeric, '.', ':', '-', '_')", name)
	}
	return nil
}

// withID attaches id under key. IDs that fail ValidateID are dropped and
// ctx is returned unchanged: callers pass caller-supplied identifiers and a
// bad one must not break the request it describes.
func withID(ctx context.Context, key any, id, name string) context.Context {
	if ValidateID(id, name) != nil {
		return ctx
	}
	return context.WithValue(ctx, key, id)
}

func idFromContext(ctx context.Context, key any) string {
	if s, ok := ctx.Value(key).(string); ok {
		return s
	}
	return ""
}

// WithOwnerID adds the session owner to context.
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	return withID(ctx, ownerCtxKey{}, ownerID, "ownerID")
}

func OwnerIDFromContext(ctx context.Context) string {
	return idFromContext(ctx, ownerCtxKey{})
}

// WithSessionID adds session ID to context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return withID(ctx, sessionCtxKey{}, sessionID, "sessionID")
}

func SessionIDFromContext(ctx context.Context) string {
	return idFromContext(ctx, sessionCtxKey{})
}

// WithStageID adds the stage currently being invoked to context.
func WithStageID(ctx context.Context, stageID string) context.Context {
	return withID(ctx, stageCtxKey{}, stageID, "stageID")
}

func StageIDFromContext(ctx context.Context) string {
	return idFromContext(ctx, stageCtxKey{})
}

// WithRequestID adds request ID to context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withID(ctx, requestCtxKey{}, requestID, "requestID")
}

func RequestIDFromContext(ctx context.Context) string {
	return idFromContext(ctx, requestCtxKey{})
}

type loggerCtxKey struct{}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
