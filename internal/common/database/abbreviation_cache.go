// internal/common/database/abbreviation_cache.go
package database

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"

	"assetid-workers/internal/assetid/abbreviation"
	"assetid-workers/internal/assetid/normalize"
	"assetid-workers/internal/common/logger"
)

const abbreviationKeyPrefix = "assetid:abbr:"

// AbbreviationCache remembers external abbreviations across runs and projects. Redis failures are
// logged and bypassed; they never fail a lookup on their own.
type AbbreviationCache struct {
	client redis.Cmdable
	next   abbreviation.Abbreviator
	ttl    time.Duration
	logger logger.Logger
}

func NewAbbreviationCache(client redis.Cmdable, next abbreviation.Abbreviator, ttl time.Duration, log logger.Logger) *AbbreviationCache {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &AbbreviationCache{client: client, next: next, ttl: ttl, logger: log}
}

// CacheKey is the Redis key for a description.
func CacheKey(text string) string {
	return abbreviationKeyPrefix + normalize.Canonical(text)
}

func (c *AbbreviationCache) Abbreviate(ctx context.Context, text string) (string, error) {
	key := CacheKey(text)

	code, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil && code != "":
		c.logger.Debug("Abbreviation cache hit", map[string]interface{}{"key": key, "code": code})
		return code, nil
	case err != nil && !stderrors.Is(err, redis.Nil):
		c.logger.Warn("Abbreviation cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
	}

	code, err = c.next.Abbreviate(ctx, text)
	if err != nil {
		return "", err
	}

	if err := c.client.Set(ctx, key, code, c.ttl).Err(); err != nil {
		c.logger.Warn("Abbreviation cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
	return code, nil
}
