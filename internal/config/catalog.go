package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ProviderCatalogConfig carries per-provider tuning read from providers.yml.
type ProviderCatalogConfig struct {
	Providers map[string]ProviderTuning `mapstructure:"providers"`
}

type ProviderTuning struct {
	RateLimit RateWindow        `mapstructure:"rateLimit"`
	Fallback  []FallbackCountry `mapstructure:"fallback"`
}

// RateWindow allows Requests calls per rolling Window.
type RateWindow struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type FallbackCountry struct {
	Country  string            `mapstructure:"country"`
	Name     string            `mapstructure:"name"`
	Services []FallbackService `mapstructure:"services"`
}

type FallbackService struct {
	Service  string  `mapstructure:"service"`
	Name     string  `mapstructure:"name"`
	Cost     float64 `mapstructure:"cost"`
	Currency string  `mapstructure:"currency"`
	Count    int     `mapstructure:"count"`
}

func DefaultProviderCatalogConfig() ProviderCatalogConfig {
	return ProviderCatalogConfig{
		Providers: map[string]ProviderTuning{
			"sms_activate": {RateLimit: RateWindow{Requests: 10, Window: time.Second}},
			"smspva":       {RateLimit: RateWindow{Requests: 5, Window: time.Second}},
			"anosim": {
				RateLimit: RateWindow{Requests: 5, Window: time.Second},
				Fallback: []FallbackCountry{{
					Country: "de",
					Name:    "Germany",
					Services: []FallbackService{
						{Service: "other", Name: "Other", Cost: 2.5, Currency: "EUR", Count: 1},
					},
				}},
			},
			"gogetsms": {RateLimit: RateWindow{Requests: 5, Window: time.Second}},
		},
	}
}

// Tuning returns the settings for provider, falling back to defaults.
func (c ProviderCatalogConfig) Tuning(provider string) ProviderTuning {
	key := strings.ToLower(strings.TrimSpace(provider))
	if t, ok := c.Providers[key]; ok {
		if t.RateLimit.Requests <= 0 || t.RateLimit.Window <= 0 {
			t.RateLimit = DefaultProviderCatalogConfig().Providers[key].RateLimit
		}
		return t
	}
	return ProviderTuning{RateLimit: RateWindow{Requests: 5, Window: time.Second}}
}

type CatalogConfigHolder struct {
	current atomic.Value // holds ProviderCatalogConfig
}

// NewStaticCatalogConfigHolder wraps cfg without watching any file.
func NewStaticCatalogConfigHolder(cfg ProviderCatalogConfig) *CatalogConfigHolder {
	holder := &CatalogConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewCatalogConfigHolder(log *zap.Logger) (*CatalogConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("providers")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/smsrent/config")
	v.AddConfigPath("/etc/smsrent")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SMSRENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	fromFile := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fromFile = false
	}

	cfg := DefaultProviderCatalogConfig()
	if fromFile {
		var loaded ProviderCatalogConfig
		if err := v.Unmarshal(&loaded); err != nil {
			return nil, err
		}
		if err := validateProviderCatalogConfig(loaded); err != nil {
			return nil, err
		}
		cfg = loaded
	}

	holder := NewStaticCatalogConfigHolder(cfg)
	if !fromFile {
		return holder, nil
	}

	log = log.Named("config.providers")
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated ProviderCatalogConfig
		if err := v.Unmarshal(&updated); err != nil {
			log.Warn("reload failed", zap.Error(err))
			return
		}
		if err := validateProviderCatalogConfig(updated); err != nil {
			log.Warn("invalid config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *CatalogConfigHolder) Get() ProviderCatalogConfig {
	return h.current.Load().(ProviderCatalogConfig)
}

func validateProviderCatalogConfig(cfg ProviderCatalogConfig) error {
	if len(cfg.Providers) == 0 {
		return errors.New("providers cannot be empty")
	}
	for name, tuning := range cfg.Providers {
		if tuning.RateLimit.Requests < 0 || tuning.RateLimit.Window < 0 {
			return fmt.Errorf("providers.%s.rateLimit must not be negative", name)
		}
		for _, country := range tuning.Fallback {
			if strings.TrimSpace(country.Country) == "" {
				return fmt.Errorf("providers.%s.fallback country is required", name)
			}
		}
	}
	return nil
}
