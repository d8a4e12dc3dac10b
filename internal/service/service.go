// Package service holds the request-level business logic: the flood risk
// pipeline and incident report management.
package service

import (
	"context"

	"go.uber.org/zap"
)

// loggerFromContext returns the request logger placed by the HTTP middleware,
// or fallback when absent.
func loggerFromContext(ctx context.Context, fallback *zap.Logger) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return fallback
}
