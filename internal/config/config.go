package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewCatalogConfigHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis     RedisConfig
	RateLimit RateLimitConfig
	NATS      NATSConfig
	Recovery  RecoveryConfig
	Sync      SyncConfig
	Webhook   WebhookConfig
	Scheduler SchedulerConfig

	Providers ProvidersConfig
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled    bool
	RentLimit  int
	RentWindow time.Duration
}

type NATSConfig struct {
	URL           string
	SubjectPrefix string
}

type RecoveryConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	UseSSL    bool
}

type SyncConfig struct {
	Concurrency int
	LockTTL     time.Duration
}

type WebhookConfig struct {
	// DedupWithTimestamp keeps received_at in the webhook duplicate key.
	DedupWithTimestamp bool
	GoGetSMSSecret     string
}

type SchedulerConfig struct {
	Enabled        bool
	RunInterval    time.Duration
	RenewWindow    time.Duration
	RenewHours     int
	EnabledJobs    []string
	ExpireBatchMax int
}

type ProvidersConfig struct {
	SMSActivate ProviderConfig
	SMSPVA      ProviderConfig
	Anosim      ProviderConfig
	GoGetSMS    ProviderConfig
}

type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "smsrent"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "smsrent"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:    getenvBool("RATE_LIMIT_ENABLED", false),
			RentLimit:  getenvInt("RATE_LIMIT_RENT_LIMIT", 5),
			RentWindow: getenvDuration("RATE_LIMIT_RENT_WINDOW", time.Minute),
		},
		NATS: NATSConfig{
			URL:           strings.TrimSpace(getenv("NATS_URL", "")),
			SubjectPrefix: getenv("NATS_SUBJECT_PREFIX", ""),
		},
		Recovery: RecoveryConfig{
			Endpoint:  strings.TrimSpace(getenv("RECOVERY_S3_ENDPOINT", "")),
			AccessKey: strings.TrimSpace(getenv("RECOVERY_S3_ACCESS_KEY", "")),
			SecretKey: strings.TrimSpace(getenv("RECOVERY_S3_SECRET_KEY", "")),
			Region:    getenv("RECOVERY_S3_REGION", ""),
			Bucket:    getenv("RECOVERY_S3_BUCKET", "rental-recovery"),
			UseSSL:    getenvBool("RECOVERY_S3_USE_SSL", false),
		},
		Sync: SyncConfig{
			Concurrency: getenvInt("SYNC_CONCURRENCY", 4),
			LockTTL:     getenvDuration("SYNC_LOCK_TTL", 2*time.Minute),
		},
		Webhook: WebhookConfig{
			DedupWithTimestamp: getenvBool("WEBHOOK_DEDUP_WITH_TIMESTAMP", true),
			GoGetSMSSecret:     strings.TrimSpace(getenv("GOGETSMS_WEBHOOK_SECRET", "")),
		},
		Scheduler: SchedulerConfig{
			Enabled:        getenvBool("SCHEDULER_ENABLED", true),
			RunInterval:    getenvDuration("SCHEDULER_RUN_INTERVAL", time.Minute),
			RenewWindow:    getenvDuration("SCHEDULER_RENEW_WINDOW", time.Hour),
			RenewHours:     getenvInt("SCHEDULER_RENEW_HOURS", 24),
			EnabledJobs:    parseList(getenv("SCHEDULER_JOBS", "")),
			ExpireBatchMax: getenvInt("SCHEDULER_EXPIRE_BATCH", 200),
		},
		Providers: ProvidersConfig{
			SMSActivate: loadProvider("SMS_ACTIVATE", "https://api.sms-activate.org/stubs/handler_api.php"),
			SMSPVA:      loadProvider("SMSPVA", "https://smspva.com"),
			Anosim:      loadProvider("ANOSIM", "https://anosim.net"),
			GoGetSMS:    loadProvider("GOGETSMS", "https://api.gogetsms.com/stubs/handler_api.php"),
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func loadProvider(prefix, defaultURL string) ProviderConfig {
	return ProviderConfig{
		APIKey:  strings.TrimSpace(getenv(prefix+"_API_KEY", "")),
		BaseURL: strings.TrimRight(strings.TrimSpace(getenv(prefix+"_BASE_URL", defaultURL)), "/"),
		Timeout: getenvDuration(prefix+"_TIMEOUT", 20*time.Second),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
