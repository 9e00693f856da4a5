package utils

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const correlationIdKey contextKey = "correlation_id"

func WithCorrelationId(ctx context.Context, correlationId string) context.Context {
	return context.WithValue(ctx, correlationIdKey, correlationId)
}

func GetCorrelationId(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(correlationIdKey).(string); ok {
		return v
	}
	return ""
}

// EnsureCorrelationId returns the ctx correlation id, minting one if absent.
func EnsureCorrelationId(ctx context.Context) (context.Context, string) {
	if id := GetCorrelationId(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return WithCorrelationId(ctx, id), id
}
