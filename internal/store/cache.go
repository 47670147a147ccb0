package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/messiahcarey/deer-river/internal/model"
)

// DefaultScoreCacheTTL bounds staleness for cached score reads. Scores
// only change when a recompute runs, so a short TTL is mostly a safety
// net against missed invalidations.
const DefaultScoreCacheTTL = 5 * time.Minute

// ScoreCache is a read-through Redis cache in front of another score
// store. Reads are served from Redis when possible and fall through to
// the inner store on a miss; writes go to the inner store first and then
// invalidate the affected keys. Redis failures never fail the request,
// the cache degrades to a passthrough.
type ScoreCache struct {
	inner  ScoreStore
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// ScoreStore is the subset of Store that the cache fronts.
type ScoreStore interface {
	UpsertInvolvement(ctx context.Context, score *model.InvolvementScore) error
	GetInvolvement(ctx context.Context, personID string) (*model.InvolvementScore, error)
	ListInvolvement(ctx context.Context) ([]model.InvolvementScore, error)
	UpsertLoyalty(ctx context.Context, score *model.LoyaltyScore) error
	GetLoyalty(ctx context.Context, personID, targetID string) (*model.LoyaltyScore, error)
	ListLoyaltyByPerson(ctx context.Context, personID string) ([]model.LoyaltyScore, error)
}

// NewScoreCache creates a cache fronting inner with the given Redis
// client. A zero or negative ttl falls back to DefaultScoreCacheTTL.
func NewScoreCache(inner ScoreStore, client *redis.Client, ttl time.Duration, logger *slog.Logger) *ScoreCache {
	if ttl <= 0 {
		ttl = DefaultScoreCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ScoreCache{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func involvementKey(personID string) string {
	return fmt.Sprintf("involvement:%s", personID)
}

func loyaltyKey(personID, targetID string) string {
	return fmt.Sprintf("loyalty:%s:%s", personID, targetID)
}

func loyaltyListKey(personID string) string {
	return fmt.Sprintf("loyalty:list:%s", personID)
}

// GetInvolvement returns the cached involvement score for a person,
// falling through to the inner store on a miss.
func (c *ScoreCache) GetInvolvement(ctx context.Context, personID string) (*model.InvolvementScore, error) {
	key := involvementKey(personID)
	var cached model.InvolvementScore
	if c.getJSON(ctx, key, &cached) {
		return &cached, nil
	}

	score, err := c.inner.GetInvolvement(ctx, personID)
	if err != nil {
		return nil, err
	}
	c.setJSON(ctx, key, score)
	return score, nil
}

// UpsertInvolvement writes through to the inner store and invalidates
// the cached entry for the person.
func (c *ScoreCache) UpsertInvolvement(ctx context.Context, score *model.InvolvementScore) error {
	if err := c.inner.UpsertInvolvement(ctx, score); err != nil {
		return err
	}
	c.invalidate(ctx, involvementKey(score.PersonID))
	return nil
}

// ListInvolvement is a passthrough. The histogram endpoint scans the
// whole population, so caching the list buys little.
func (c *ScoreCache) ListInvolvement(ctx context.Context) ([]model.InvolvementScore, error) {
	return c.inner.ListInvolvement(ctx)
}

// GetLoyalty returns the cached loyalty score for a (person, target)
// pair, falling through to the inner store on a miss.
func (c *ScoreCache) GetLoyalty(ctx context.Context, personID, targetID string) (*model.LoyaltyScore, error) {
	key := loyaltyKey(personID, targetID)
	var cached model.LoyaltyScore
	if c.getJSON(ctx, key, &cached) {
		return &cached, nil
	}

	score, err := c.inner.GetLoyalty(ctx, personID, targetID)
	if err != nil {
		return nil, err
	}
	c.setJSON(ctx, key, score)
	return score, nil
}

// UpsertLoyalty writes through to the inner store and invalidates both
// the pair entry and the person's list entry.
func (c *ScoreCache) UpsertLoyalty(ctx context.Context, score *model.LoyaltyScore) error {
	if err := c.inner.UpsertLoyalty(ctx, score); err != nil {
		return err
	}
	c.invalidate(ctx, loyaltyKey(score.PersonID, score.TargetID), loyaltyListKey(score.PersonID))
	return nil
}

// ListLoyaltyByPerson returns the cached loyalty list for a person,
// falling through to the inner store on a miss.
func (c *ScoreCache) ListLoyaltyByPerson(ctx context.Context, personID string) ([]model.LoyaltyScore, error) {
	key := loyaltyListKey(personID)
	var cached []model.LoyaltyScore
	if c.getJSON(ctx, key, &cached) {
		return cached, nil
	}

	scores, err := c.inner.ListLoyaltyByPerson(ctx, personID)
	if err != nil {
		return nil, err
	}
	c.setJSON(ctx, key, scores)
	return scores, nil
}

// getJSON reports whether the key was found and decoded. Redis errors
// are logged and treated as misses.
func (c *ScoreCache) getJSON(ctx context.Context, key string, dest any) bool {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("score cache read failed, falling through",
				"key", key,
				"error", err,
			)
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Warn("score cache entry corrupt, falling through",
			"key", key,
			"error", err,
		)
		return false
	}
	return true
}

// setJSON stores a value best-effort. Failures are logged and ignored.
func (c *ScoreCache) setJSON(ctx context.Context, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("score cache encode failed",
			"key", key,
			"error", err,
		)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("score cache write failed",
			"key", key,
			"error", err,
		)
	}
}

// invalidate deletes keys best-effort. A failed delete only extends
// staleness until the TTL expires.
func (c *ScoreCache) invalidate(ctx context.Context, keys ...string) {
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("score cache invalidation failed",
			"keys", keys,
			"error", err,
		)
	}
}
