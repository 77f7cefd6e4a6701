package log

import "context"

// Logger is the logging interface used across the engine packages. It is
// context-aware so trace identifiers can be attached to every entry.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...map[string]any)
	Info(ctx context.Context, msg string, fields ...map[string]any)
	Warn(ctx context.Context, msg string, fields ...map[string]any)
	Error(ctx context.Context, msg string, err error, fields ...map[string]any)
	Fatal(ctx context.Context, msg string, err error, fields ...map[string]any)
	// With returns a derived logger carrying the given structured fields.
	With(fields map[string]any) Logger
}

// NopLogger discards everything. Meant for tests.
type NopLogger struct{}

func NewNopLogger() Logger { return NopLogger{} }

func (NopLogger) Debug(context.Context, string, ...map[string]any)        {}
func (NopLogger) Info(context.Context, string, ...map[string]any)         {}
func (NopLogger) Warn(context.Context, string, ...map[string]any)         {}
func (NopLogger) Error(context.Context, string, error, ...map[string]any) {}
func (NopLogger) Fatal(context.Context, string, error, ...map[string]any) {}
func (n NopLogger) With(map[string]any) Logger                            { return n }
