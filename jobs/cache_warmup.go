package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/authgraph/authgraph/internal/authz"
)

// CacheWarmupJob precomputes resolved closures into the shared redis cache
// so advisory readers hit warm entries after an invalidation bump.
type CacheWarmupJob struct {
	store  authz.Store
	cache  *authz.RedisCache
	logger *slog.Logger
}

// NewCacheWarmupJob constructs the job.
func NewCacheWarmupJob(store authz.Store, cache *authz.RedisCache, logger *slog.Logger) *CacheWarmupJob {
	return &CacheWarmupJob{store: store, cache: cache, logger: logger}
}

// Warm resolves and stores the closure for each user. An empty users slice
// warms every known user.
func (j *CacheWarmupJob) Warm(ctx context.Context, users []string) (int, error) {
	if len(users) == 0 {
		all, err := j.store.AllUsers(ctx)
		if err != nil {
			return 0, err
		}
		users = all
	}
	snap, err := j.store.Snapshot(ctx)
	if err != nil {
		return 0, err
	}

	warmed := 0
	for _, id := range users {
		assigned, ok, err := j.store.GetAssigned(ctx, id)
		if err != nil {
			return warmed, err
		}
		if !ok {
			continue
		}
		if err := j.cache.Store(ctx, id, authz.Resolve(snap, assigned)); err != nil {
			return warmed, err
		}
		warmed++
	}
	return warmed, nil
}

// Handle processes TaskCacheWarmup tasks.
func (j *CacheWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload CacheWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	warmed, err := j.Warm(ctx, payload.Users)
	if err != nil {
		return err
	}
	j.logger.Info("cache warmup", slog.Int("users", warmed))
	return nil
}
