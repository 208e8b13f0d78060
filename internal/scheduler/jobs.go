package scheduler

import (
	"context"
	"errors"

	obsmetrics "github.com/smallbiznis/smsrent/internal/observability/metrics"
	"github.com/smallbiznis/smsrent/internal/ratelimit"
	"go.uber.org/zap"
)

// SyncProviderJob reconciles the provider's active rows. A sync already
// running on another replica defers this run.
func (s *Scheduler) SyncProviderJob(ctx context.Context, provider string) error {
	job := syncJobPrefix + provider
	ctx, run, owner := s.beginRun(ctx, job, 0)
	if owner {
		defer s.finishRun(ctx, run)
	}

	report, err := s.reconcile.SyncProvider(ctx, provider)
	if errors.Is(err, ratelimit.ErrLockHeld) {
		obsmetrics.Scheduler().IncBatchDeferred(job, obsmetrics.SchedulerBatchDeferredReasonLockHeld)
		s.logger(ctx).Info("scheduler.sync.deferred", zap.String("job", job), zap.String("provider", provider))
		return nil
	}
	if err != nil {
		s.reportError(ctx, run, "scheduler.sync.failed", err, zap.String("provider", provider))
		return err
	}

	run.addProcessed(report.Total)
	obsmetrics.Scheduler().AddBatchProcessed(job, "phone_numbers", report.Synced)
	if report.Failed > 0 {
		s.logger(ctx).Warn("scheduler.sync.partial",
			zap.String("job", job),
			zap.String("sync_run_id", report.RunID),
			zap.Int("failed", report.Failed),
			zap.Int("total", report.Total),
		)
	}
	return nil
}

// ExpireNumbersJob marks active rows past end_date as expired.
func (s *Scheduler) ExpireNumbersJob(ctx context.Context) error {
	ctx, run, owner := s.beginRun(ctx, JobExpireNumbers, s.cfg.ExpireBatchSize)
	if owner {
		defer s.finishRun(ctx, run)
	}

	return s.locked(ctx, JobExpireNumbers, func(ctx context.Context) error {
		n, err := s.numbers.ExpireDue(ctx, s.cfg.ExpireBatchSize)
		if err != nil {
			s.reportError(ctx, run, "scheduler.expire.failed", err)
			return err
		}
		run.addProcessed(n)
		obsmetrics.Scheduler().AddBatchProcessed(JobExpireNumbers, "phone_numbers", n)
		return nil
	})
}

// AutoRenewJob extends auto_renew rows that end within the renew window.
func (s *Scheduler) AutoRenewJob(ctx context.Context) error {
	ctx, run, owner := s.beginRun(ctx, JobAutoRenew, s.cfg.RenewBatchSize)
	if owner {
		defer s.finishRun(ctx, run)
	}

	return s.locked(ctx, JobAutoRenew, func(ctx context.Context) error {
		report, err := s.numbers.RenewDue(ctx, s.cfg.RenewWindow, s.cfg.RenewHours, s.cfg.RenewBatchSize)
		if err != nil {
			s.reportError(ctx, run, "scheduler.renew.failed", err)
			return err
		}
		run.addProcessed(report.Renewed)
		run.addFailures(report.Failed)
		obsmetrics.Scheduler().AddBatchProcessed(JobAutoRenew, "phone_numbers", report.Renewed)
		return nil
	})
}

// locked runs fn under the replica-wide lock for job. A held lock is not an
// error.
func (s *Scheduler) locked(ctx context.Context, job string, fn func(context.Context) error) error {
	err := s.guard.WithSyncLock(ctx, "job:"+job, fn)
	if errors.Is(err, ratelimit.ErrLockHeld) {
		obsmetrics.Scheduler().IncBatchDeferred(job, obsmetrics.SchedulerBatchDeferredReasonLockHeld)
		return nil
	}
	return err
}
