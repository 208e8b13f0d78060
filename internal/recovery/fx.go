package recovery

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/smsrent/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("recovery",
	fx.Provide(NewStore),
)

// NewStore uses MinIO when RECOVERY_S3_ENDPOINT is set; otherwise records only reach the logs.
func NewStore(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (Store, error) {
	log = log.Named("recovery")
	if strings.TrimSpace(cfg.Recovery.Endpoint) == "" {
		log.Info("recovery bucket not configured; partial rentals are logged only")
		return NewNopStore(), nil
	}

	store, err := NewMinioStore(cfg.Recovery)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			if err := store.EnsureBucket(ctx); err != nil {
				log.Warn("ensure recovery bucket failed", zap.String("bucket", cfg.Recovery.Bucket), zap.Error(err))
			}
			return nil
		},
	})
	return store, nil
}
