package scheduler

import (
	"time"

	"github.com/smallbiznis/smsrent/internal/config"
)

// Config controls scheduler intervals and batch sizes.
type Config struct {
	RunInterval     time.Duration
	EnabledJobs     []string
	ExpireBatchSize int
	RenewBatchSize  int
	RenewWindow     time.Duration
	RenewHours      int
	JobTimeout      time.Duration
	SyncTimeout     time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval:     time.Minute,
		ExpireBatchSize: 200,
		RenewBatchSize:  50,
		RenewWindow:     time.Hour,
		RenewHours:      24,
		JobTimeout:      30 * time.Second,
		SyncTimeout:     2 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval:     cfg.Scheduler.RunInterval,
		EnabledJobs:     cfg.Scheduler.EnabledJobs,
		ExpireBatchSize: cfg.Scheduler.ExpireBatchMax,
		RenewWindow:     cfg.Scheduler.RenewWindow,
		RenewHours:      cfg.Scheduler.RenewHours,
		SyncTimeout:     cfg.Sync.LockTTL,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.ExpireBatchSize <= 0 {
		c.ExpireBatchSize = defaults.ExpireBatchSize
	}
	if c.RenewBatchSize <= 0 {
		c.RenewBatchSize = defaults.RenewBatchSize
	}
	if c.RenewWindow <= 0 {
		c.RenewWindow = defaults.RenewWindow
	}
	if c.RenewHours <= 0 {
		c.RenewHours = defaults.RenewHours
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	if c.SyncTimeout <= 0 {
		c.SyncTimeout = defaults.SyncTimeout
	}
	return c
}
