package logger

import (
	"context"
	"testing"

	obscontext "github.com/smallbiznis/smsrent/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "+*******4567", MaskPhone("+79001234567"))
	assert.Equal(t, "1234", MaskPhone("1234"))
	assert.Equal(t, "", MaskPhone(""))
}

func TestRedactingCoreMasksSensitiveFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(&redactingCore{Core: core}).With(zap.String("api_key", "k-123"))

	log.Info("rented", zap.String("phone_number", "79001234567"), zap.Int("hours", 4))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, redacted, fields["api_key"])
	assert.Equal(t, "*******4567", fields["phone_number"])
	assert.EqualValues(t, 4, fields["hours"])
}

func TestWithContextAddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core)

	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = obscontext.WithSyncRun(ctx, "run-1")
	ctx = obscontext.WithProvider(ctx, "anosim")
	WithContext(ctx, base).Info("sync")

	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "run-1", fields["sync_run_id"])
	assert.Equal(t, "anosim", fields["provider"])
	assert.NotContains(t, fields, "trace_id")
}

func TestWithContextWithoutFieldsReturnsBase(t *testing.T) {
	base := zap.NewNop()
	assert.Same(t, base, WithContext(context.Background(), base))
}

func TestZapConfigRejectsUnknownLevel(t *testing.T) {
	_, err := zapConfig(Config{Level: "loud"})
	require.Error(t, err)

	cfg, err := zapConfig(Config{Format: "Console"})
	require.NoError(t, err)
	assert.Equal(t, "console", cfg.Encoding)
}
