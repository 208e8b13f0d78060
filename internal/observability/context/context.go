package context

import (
	"context"
	"strings"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	syncRunKey   ctxKey = "sync_run_id"
	providerKey  ctxKey = "provider"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, strings.TrimSpace(requestID))
}

func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// WithSyncRun tags a reconciliation run so every log line of the batch can be
// correlated.
func WithSyncRun(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, syncRunKey, strings.TrimSpace(runID))
}

func SyncRunFromContext(ctx context.Context) string {
	return stringValue(ctx, syncRunKey)
}

func WithProvider(ctx context.Context, provider string) context.Context {
	return context.WithValue(ctx, providerKey, strings.TrimSpace(provider))
}

func ProviderFromContext(ctx context.Context) string {
	return stringValue(ctx, providerKey)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
