// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	pidKey
	tidKey
)

func withValue(ctx context.Context, key ctxKey, v any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, v)
}

func valueFrom[T any](ctx context.Context, key ctxKey) (T, bool) {
	var zero T
	if ctx == nil {
		return zero, false
	}
	v, ok := ctx.Value(key).(T)
	return v, ok
}

// ContextWithRequestID tags ctx with the control plane request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

// ContextWithPID tags ctx with the program being dispatched or recorded.
func ContextWithPID(ctx context.Context, pid int) context.Context {
	return withValue(ctx, pidKey, pid)
}

// ContextWithTID tags ctx with the title being tracked.
func ContextWithTID(ctx context.Context, tid int) context.Context {
	return withValue(ctx, tidKey, tid)
}

// RequestIDFromContext returns the request ID, or "" when ctx has none.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := valueFrom[string](ctx, requestIDKey)
	return id
}

// PIDFromContext returns the program ID stored by ContextWithPID.
func PIDFromContext(ctx context.Context) (int, bool) {
	return valueFrom[int](ctx, pidKey)
}

// TIDFromContext returns the title ID stored by ContextWithTID.
func TIDFromContext(ctx context.Context) (int, bool) {
	return valueFrom[int](ctx, tidKey)
}

// WithContext adds the request, program and title IDs found in ctx to logger.
func WithContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	rid := RequestIDFromContext(ctx)
	pid, hasPID := PIDFromContext(ctx)
	tid, hasTID := TIDFromContext(ctx)
	if rid == "" && !hasPID && !hasTID {
		return logger
	}

	builder := logger.With()
	if rid != "" {
		builder = builder.Str(FieldRequestID, rid)
	}
	if hasPID {
		builder = builder.Int(FieldPID, pid)
	}
	if hasTID {
		builder = builder.Int(FieldTID, tid)
	}
	return builder.Logger()
}

// WithComponentFromContext is WithComponent enriched by WithContext.
func WithComponentFromContext(ctx context.Context, component string) zerolog.Logger {
	return WithContext(ctx, WithComponent(component))
}
