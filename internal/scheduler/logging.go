package scheduler

import (
	"context"
	"time"

	obscontext "github.com/smallbiznis/smsrent/internal/observability/context"
	obslogger "github.com/smallbiznis/smsrent/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/smsrent/internal/observability/metrics"
	"go.uber.org/zap"
)

// jobRun tracks one execution of a job. Nested calls (RunOnce invoking a job
// method) share the outer run, and only the owner logs its start and finish.
type jobRun struct {
	job       string
	id        string
	batchSize int
	started   time.Time
	processed int
	failures  int
}

type jobRunKey struct{}

func (r *jobRun) addProcessed(n int) {
	if r != nil && n > 0 {
		r.processed += n
	}
}

func (r *jobRun) addFailures(n int) {
	if r != nil && n > 0 {
		r.failures += n
	}
}

// beginRun returns the run already in ctx or starts a new one. owner is true
// when the caller started it and must call finishRun.
func (s *Scheduler) beginRun(ctx context.Context, job string, batchSize int) (_ context.Context, run *jobRun, owner bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	if run, ok := ctx.Value(jobRunKey{}).(*jobRun); ok && run != nil {
		return ctx, run, false
	}

	run = &jobRun{
		job:       job,
		id:        s.genID.Generate().String(),
		batchSize: batchSize,
		started:   s.clock.Now(),
	}
	ctx = obscontext.WithRequestID(context.WithValue(ctx, jobRunKey{}, run), run.id)

	s.logger(ctx).Info("scheduler.job.start",
		zap.String("job", job),
		zap.String("run_id", run.id),
		zap.Int("batch_size", batchSize),
	)
	return ctx, run, true
}

func (s *Scheduler) finishRun(ctx context.Context, run *jobRun) {
	if run == nil {
		return
	}
	fields := []zap.Field{
		zap.String("job", run.job),
		zap.String("run_id", run.id),
		zap.Int64("duration_ms", s.clock.Now().Sub(run.started).Milliseconds()),
		zap.Int("processed_count", run.processed),
		zap.Int("error_count", run.failures),
	}
	if run.failures > 0 {
		s.logger(ctx).Warn("scheduler.job.finish", fields...)
		return
	}
	s.logger(ctx).Info("scheduler.job.finish", fields...)
}

// reportError counts err against run and logs it with its scheduler
// classification.
func (s *Scheduler) reportError(ctx context.Context, run *jobRun, msg string, err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	run.addFailures(1)

	job := ""
	if run != nil {
		job = run.job
	}
	s.logger(ctx).Error(msg, append([]zap.Field{
		zap.String("job", job),
		zap.String("error_type", obsmetrics.ClassifySchedulerErrorType(err)),
		zap.Error(err),
		zap.Bool("retryable", obsmetrics.IsSchedulerErrorRetryable(err)),
	}, fields...)...)
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}
