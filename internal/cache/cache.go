// Package cache keeps the computed loan summaries in Redis so list requests
// and the scheduler do not recompute them on every call.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/segyhp/loan-tracker/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	summariesKey = "loan-tracker:summaries"
	versionKey   = "loan-tracker:summaries:version"
)

// SummaryCache stores the full list of loan summaries.
//
// A refill reads Version before loading from the database and hands it back
// to SetSummaries. Invalidate bumps the version, so a list loaded before a
// write is never stored after it.
type SummaryCache interface {
	// GetSummaries returns the cached list and whether it was present.
	GetSummaries(ctx context.Context) ([]*domain.LoanSummary, bool, error)
	// Version returns the current invalidation counter.
	Version(ctx context.Context) (int64, error)
	// SetSummaries stores the list only if the counter still equals version.
	// It reports whether the list was stored.
	SetSummaries(ctx context.Context, version int64, summaries []*domain.LoanSummary) (bool, error)
	// Invalidate drops the cached list and bumps the counter after a write.
	Invalidate(ctx context.Context) error
	Ping(ctx context.Context) error
}

// setIfVersion runs the compare and the SET atomically on the server.
var setIfVersion = redis.NewScript(`
if (redis.call('GET', KEYS[1]) or '0') ~= ARGV[1] then
	return 0
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache returns a SummaryCache backed by client.
func NewRedisCache(client *redis.Client, ttl time.Duration) SummaryCache {
	return &redisCache{client: client, ttl: ttl}
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

func (c *redisCache) GetSummaries(ctx context.Context) ([]*domain.LoanSummary, bool, error) {
	raw, err := c.client.Get(ctx, summariesKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var summaries []*domain.LoanSummary
	if err := json.Unmarshal(raw, &summaries); err != nil {
		return nil, false, fmt.Errorf("decode cached summaries: %w", err)
	}

	return summaries, true, nil
}

func (c *redisCache) Version(ctx context.Context) (int64, error) {
	version, err := c.client.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return version, err
}

func (c *redisCache) SetSummaries(ctx context.Context, version int64, summaries []*domain.LoanSummary) (bool, error) {
	raw, err := json.Marshal(summaries)
	if err != nil {
		return false, fmt.Errorf("encode summaries: %w", err)
	}

	stored, err := setIfVersion.Run(ctx, c.client,
		[]string{versionKey, summariesKey},
		strconv.FormatInt(version, 10), raw, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return stored == 1, nil
}

func (c *redisCache) Invalidate(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey)
		pipe.Del(ctx, summariesKey)
		return nil
	})
	return err
}

func (c *redisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

type nopCache struct{}

// NewNopCache returns a SummaryCache that never holds anything. It is used
// when no Redis URL is configured.
func NewNopCache() SummaryCache {
	return nopCache{}
}

func (nopCache) GetSummaries(context.Context) ([]*domain.LoanSummary, bool, error) {
	return nil, false, nil
}

func (nopCache) Version(context.Context) (int64, error) { return 0, nil }

func (nopCache) SetSummaries(context.Context, int64, []*domain.LoanSummary) (bool, error) {
	return false, nil
}

func (nopCache) Invalidate(context.Context) error { return nil }

func (nopCache) Ping(context.Context) error { return nil }
