package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/smsrent/internal/clock"
	obsmetrics "github.com/smallbiznis/smsrent/internal/observability/metrics"
	phonedomain "github.com/smallbiznis/smsrent/internal/phonenumber/domain"
	providerdomain "github.com/smallbiznis/smsrent/internal/provider/domain"
	"github.com/smallbiznis/smsrent/internal/ratelimit"
	reconciledomain "github.com/smallbiznis/smsrent/internal/reconcile/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	JobExpireNumbers = "expire_numbers"
	JobAutoRenew     = "auto_renew"
	syncJobPrefix    = "sync_"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log       *zap.Logger
	Numbers   phonedomain.Service
	Reconcile reconciledomain.Service
	Providers providerdomain.Directory
	Guard     *ratelimit.Guard `optional:"true"`
	GenID     *snowflake.Node
	Clock     clock.Clock
	Config    Config `optional:"true"`
}

type Scheduler struct {
	log       *zap.Logger
	cfg       Config
	genID     *snowflake.Node
	clock     clock.Clock
	numbers   phonedomain.Service
	reconcile reconciledomain.Service
	providers providerdomain.Directory
	guard     *ratelimit.Guard
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Numbers == nil || p.Reconcile == nil || p.Providers == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:       p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:       p.Config.withDefaults(),
		genID:     p.GenID,
		clock:     p.Clock,
		numbers:   p.Numbers,
		reconcile: p.Reconcile,
		providers: p.Providers,
		guard:     p.Guard,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.beginRun(ctx, name, batchSize)
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.id),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run.failures == 0 {
			run.addFailures(1)
		}
		s.finishRun(ctx, run)
	}
	if err == nil {
		return nil
	}

	// deadline is a soft timeout; the next tick picks the work up again
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce runs every enabled job once: one sync job per registered provider,
// then expiry, then auto renewal.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	for _, provider := range s.providers.Providers() {
		name := syncJobPrefix + provider
		if !s.isJobEnabled(name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, name, 0, s.cfg.SyncTimeout, func(ctx context.Context) error {
			return s.SyncProviderJob(ctx, provider)
		}))
	}

	jobs := []struct {
		Name    string
		Enabled bool
		Run     func(context.Context) error
	}{
		{JobExpireNumbers, s.isJobEnabled(JobExpireNumbers), func(ctx context.Context) error {
			return s.runJob(ctx, JobExpireNumbers, s.cfg.ExpireBatchSize, s.cfg.JobTimeout, s.ExpireNumbersJob)
		}},
		{JobAutoRenew, s.isJobEnabled(JobAutoRenew), func(ctx context.Context) error {
			return s.runJob(ctx, JobAutoRenew, s.cfg.RenewBatchSize, s.cfg.SyncTimeout, s.AutoRenewJob)
		}},
	}

	for _, job := range jobs {
		if job.Enabled {
			err = errors.Join(err, job.Run(parent))
		}
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := s.clock.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		runLag := s.clock.Now().Sub(nextRun)
		if runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// isJobEnabled treats an empty EnabledJobs list as "all jobs". sync_* enables
// every provider sync job.
func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
		if enabled == syncJobPrefix+"*" && strings.HasPrefix(jobName, syncJobPrefix) {
			return true
		}
	}
	return false
}
