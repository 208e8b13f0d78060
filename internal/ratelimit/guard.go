package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/smsrent/internal/config"
)

const (
	keyRentClient   = "smsrent:rent:client:%s"
	keySyncProvider = "smsrent:sync:lock:%s"
)

// Guard holds the redis backed limits: per-client rental rate and the
// per-provider sync lock. A nil or disabled Guard admits everything.
type Guard struct {
	rents  *RentWindow
	locker *Locker

	rentEnabled bool
	rentLimit   int
	rentWindow  time.Duration
	syncLockTTL time.Duration
}

func NewRedisClient(cfg config.Config) redis.UniversalClient {
	addr := strings.TrimSpace(cfg.Redis.Addr)
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func NewGuard(cfg config.Config, client redis.UniversalClient) (*Guard, error) {
	if client == nil {
		if cfg.RateLimit.Enabled {
			return nil, errors.New("rate limit requires REDIS_ADDR")
		}
		return &Guard{}, nil
	}
	if cfg.RateLimit.Enabled && (cfg.RateLimit.RentLimit <= 0 || cfg.RateLimit.RentWindow <= 0) {
		return nil, errors.New("rent rate limit must be positive")
	}
	return &Guard{
		rents:       NewRentWindow(client),
		locker:      NewLocker(client),
		rentEnabled: cfg.RateLimit.Enabled,
		rentLimit:   cfg.RateLimit.RentLimit,
		rentWindow:  cfg.RateLimit.RentWindow,
		syncLockTTL: cfg.Sync.LockTTL,
	}, nil
}

func (g *Guard) RentLimitEnabled() bool {
	return g != nil && g.rentEnabled && g.rents != nil
}

func (g *Guard) AllowRent(ctx context.Context, clientKey string) (*RateLimitResult, error) {
	if !g.RentLimitEnabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return g.rents.Allow(ctx, fmt.Sprintf(keyRentClient, strings.TrimSpace(clientKey)), g.rentLimit, g.rentWindow)
}

// WithSyncLock serializes sync runs for provider across replicas. Without
// redis fn runs unguarded.
func (g *Guard) WithSyncLock(ctx context.Context, provider string, fn func(context.Context) error) error {
	if g == nil || g.locker == nil {
		return fn(ctx)
	}
	ttl := g.syncLockTTL
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return g.locker.WithLock(ctx, fmt.Sprintf(keySyncProvider, strings.ToLower(strings.TrimSpace(provider))), ttl, fn)
}
