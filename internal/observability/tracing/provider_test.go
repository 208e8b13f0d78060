package tracing

import (
	"context"
	"testing"

	obscontext "github.com/smallbiznis/smsrent/internal/observability/context"
	"github.com/stretchr/testify/assert"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestSyncRunSamplerKeepsSyncRuns(t *testing.T) {
	s := syncRunSampler{base: sdktrace.NeverSample()}

	res := s.ShouldSample(sdktrace.SamplingParameters{
		ParentContext: obscontext.WithSyncRun(context.Background(), "01HZZZ"),
		Name:          "reconcile.sync_provider",
	})
	assert.Equal(t, sdktrace.RecordAndSample, res.Decision)

	res = s.ShouldSample(sdktrace.SamplingParameters{
		ParentContext: context.Background(),
		Name:          "GET /api/providers",
	})
	assert.Equal(t, sdktrace.Drop, res.Decision)
}

func TestNewSamplerHonorsToggle(t *testing.T) {
	_, wrapped := newSampler(Config{SamplingRatio: 0.5, SampleSyncRuns: true}).(syncRunSampler)
	assert.True(t, wrapped)

	_, wrapped = newSampler(Config{SamplingRatio: 0.5}).(syncRunSampler)
	assert.False(t, wrapped)
}
