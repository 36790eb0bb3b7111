package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"docgate/internal/ruleset/models"
)

const (
	// Redis key prefix for the active ruleset per (branch, entity type)
	activeKeyPrefix = "rs:active:"

	defaultTTL = 5 * time.Minute
)

// Active is a Redis-backed read-through cache for the active ruleset of a
// (branch, entity type) key. Activation and locking invalidate the entry, so
// a stale ruleset lives at most one TTL after an unnoticed invalidation
// failure.
type Active struct {
	client *redis.Client
	ttl    time.Duration
}

// Option configures an Active cache.
type Option func(*Active)

// WithTTL overrides the default entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(a *Active) {
		a.ttl = ttl
	}
}

// New constructs the cache over an existing Redis client.
func New(client *redis.Client, opts ...Option) *Active {
	a := &Active{client: client, ttl: defaultTTL}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

func activeKey(branchID string, entityType models.EntityType) string {
	return activeKeyPrefix + branchID + ":" + string(entityType)
}

// Get returns the cached active ruleset, or (nil, nil) on a miss.
func (a *Active) Get(ctx context.Context, branchID string, entityType models.EntityType) (*models.RuleSet, error) {
	payload, err := a.client.Get(ctx, activeKey(branchID, entityType)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rs models.RuleSet
	if err := json.Unmarshal(payload, &rs); err != nil {
		// Treat a corrupt entry as a miss; the read-through path rewrites it.
		return nil, nil
	}
	return &rs, nil
}

// Set stores the ruleset as the active entry for its key.
func (a *Active) Set(ctx context.Context, rs *models.RuleSet) error {
	payload, err := json.Marshal(rs)
	if err != nil {
		return err
	}
	return a.client.Set(ctx, activeKey(rs.BranchID, rs.EntityType), payload, a.ttl).Err()
}

// Invalidate drops the entry for a key.
func (a *Active) Invalidate(ctx context.Context, branchID string, entityType models.EntityType) error {
	return a.client.Del(ctx, activeKey(branchID, entityType)).Err()
}
