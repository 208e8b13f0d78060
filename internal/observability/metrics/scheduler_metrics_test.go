package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	providerdomain "github.com/smallbiznis/smsrent/internal/provider/domain"
	"gorm.io/gorm"
)

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "deadline",
			err:  context.DeadlineExceeded,
			want: SchedulerJobReasonDeadlineExceeded,
		},
		{
			name: "lock_held",
			err:  fmt.Errorf("sync anosim: %w", errors.New("lock_held")),
			want: SchedulerJobReasonLockHeld,
		},
		{
			name: "provider_transient",
			err:  providerdomain.NewError("anosim", providerdomain.CodeTimeout, "deadline"),
			want: SchedulerJobReasonProviderTransient,
		},
		{
			name: "provider_rejected",
			err:  providerdomain.NewError("smspva", providerdomain.CodeBadKey, "bad key"),
			want: SchedulerJobReasonProviderRejected,
		},
		{
			name: "db_lock_timeout",
			err:  &pgconn.PgError{Code: "55P03"},
			want: SchedulerJobReasonDBLockTimeout,
		},
		{
			name: "serialization_failure",
			err:  &pgconn.PgError{Code: "40001"},
			want: SchedulerJobReasonSerializationFailure,
		},
		{
			name: "unique_violation",
			err:  gorm.ErrDuplicatedKey,
			want: SchedulerJobReasonUniqueViolation,
		},
		{
			name: "unknown",
			err:  errors.New("boom"),
			want: SchedulerJobReasonUnknown,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifySchedulerJobReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestAddBatchProcessed(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newSchedulerMetrics(registry, Config{
		ServiceName: "smsrent",
		Environment: "test",
	})

	metrics.AddBatchProcessed("sync_anosim", "phone_numbers", 3)
	metrics.AddBatchProcessed("sync_anosim", "phone_numbers", 0)

	got := testutil.ToFloat64(metrics.batchProcessed.WithLabelValues("sync_anosim", "phone_numbers"))
	if got != 3 {
		t.Fatalf("expected processed count 3, got %v", got)
	}
}
