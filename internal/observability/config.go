package observability

import (
	"os"
	"strconv"
	"strings"

	"github.com/smallbiznis/smsrent/internal/config"
)

// Config holds observability configuration derived from environment variables.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64

	// SampleSyncRuns keeps every span of a reconciliation run regardless of
	// OtelSamplingRatio.
	SampleSyncRuns bool
	// MetricsEnabled turns the OTLP metric exporter on independently of traces.
	MetricsEnabled bool
}

func LoadConfig(cfg config.Config) Config {
	out := Config{
		ServiceName: strings.TrimSpace(cfg.AppName),
		Environment: getenv("DEPLOYMENT_ENV", cfg.Environment),
		Version:     getenv("SERVICE_VERSION", cfg.AppVersion),
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogFormat:   strings.ToLower(getenv("LOG_FORMAT", "json")),

		OtelEnabled:          getenvBool("OTEL_ENABLED", true),
		OtelExporterEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint),
		OtelExporterProtocol: strings.ToLower(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")),
		OtelSamplingRatio:    getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		SampleSyncRuns:       getenvBool("OTEL_SAMPLE_SYNC_RUNS", true),
	}
	if out.ServiceName == "" {
		out.ServiceName = "smsrent"
	}
	if tracesProtocol := getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", ""); tracesProtocol != "" {
		out.OtelExporterProtocol = strings.ToLower(tracesProtocol)
	}
	out.MetricsEnabled = getenvBool("OTEL_METRICS_ENABLED", out.OtelEnabled)
	return out
}

// Debug reports whether request logs should carry stacks.
func (c Config) Debug() bool {
	if strings.EqualFold(strings.TrimSpace(c.LogLevel), "debug") {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func getenv(key, def string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value, err := strconv.ParseBool(getenv(key, ""))
	if err != nil {
		return def
	}
	return value
}

func getenvFloat(key string, def float64) float64 {
	value, err := strconv.ParseFloat(getenv(key, ""), 64)
	if err != nil {
		return def
	}
	return value
}
