/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package cache provides the Redis read cache that fronts the device store.
// The cache is advisory: every error is degraded to a miss and callers must
// recompute from storage.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/carverauto/fleetstream/pkg/models"
)

const (
	// DeviceTTL and DeviceListTTL are the default expiries. The list TTL is
	// shorter because the collection key is invalidated less precisely.
	DeviceTTL     = 300 * time.Second
	DeviceListTTL = 60 * time.Second

	opTimeout = 2 * time.Second
)

// Cache wraps a Redis client with bounded per-operation timeouts.
type Cache struct {
	client  *redis.Client
	timeout time.Duration
	logger  zerolog.Logger
}

// New dials Redis and verifies the connection.
func New(ctx context.Context, cfg *models.RedisConfig, log zerolog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Cache{client: client, timeout: opTimeout, logger: log}, nil
}

// Get returns the cached value for key and whether it was present. Errors
// and timeouts report a miss.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	opCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	value, err := c.client.Get(opCtx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Str("key", key).Msg("Cache get failed, treating as miss")
		}

		return "", false
	}

	return value, true
}

// Set stores value under key with the given TTL. Failures are logged and
// swallowed; the next read falls through to the store.
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	opCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.client.Set(opCtx, key, value, ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache set failed")
	}
}

// Invalidate removes the given keys. It runs synchronously so a confirmed
// mutation is never followed by a stale read from the same caller.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.client.Del(opCtx, keys...).Err(); err != nil {
		c.logger.Warn().Err(err).Strs("keys", keys).Msg("Cache invalidation failed")
	}
}

// InvalidatePattern removes every key matching the given pattern. Used for
// prefix-wide invalidation when exact keys are not known.
func (c *Cache) InvalidatePattern(ctx context.Context, pattern string) {
	opCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	iter := c.client.Scan(opCtx, 0, pattern, 0).Iterator()

	var keys []string

	for iter.Next(opCtx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		c.logger.Warn().Err(err).Str("pattern", pattern).Msg("Cache scan failed")
		return
	}

	if len(keys) > 0 {
		if err := c.client.Del(opCtx, keys...).Err(); err != nil {
			c.logger.Warn().Err(err).Str("pattern", pattern).Msg("Cache invalidation failed")
		}
	}
}

// Close releases the underlying Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
