/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides an optional Redis-backed side-cache for track
// metadata so restarts do not re-read tags from every audio file. The
// in-memory tag cache stays authoritative; this layer is best effort and
// the daemon runs fine without Redis.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/friendsincode/bragi/internal/tags"
)

// KeyTrackMeta is the key prefix for cached track metadata (+ track path).
const KeyTrackMeta = "bragi:cache:trackmeta:"

// DefaultTrackMetaTTL bounds how long cached metadata survives; tags on
// disk rarely change, so a generous TTL is fine.
const DefaultTrackMetaTTL = 24 * time.Hour

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	TrackMetaTTL time.Duration

	// DisableOnError trips the circuit breaker on the first Redis error.
	DisableOnError bool
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		TrackMetaTTL:   DefaultTrackMetaTTL,
		DisableOnError: true,
	}
}

// Cache provides Redis-backed caching with graceful fallback.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool
}

// New creates a cache instance. An unreachable Redis yields a disabled
// cache, not an error.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	if cfg.TrackMetaTTL <= 0 {
		cfg.TrackMetaTTL = DefaultTrackMetaTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		return &Cache{
			logger:   logger.With().Str("component", "cache").Logger(),
			config:   cfg,
			disabled: true,
		}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")

	return &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
		config: cfg,
	}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

func (c *Cache) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

type cachedMeta struct {
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Available bool   `json:"available"`
}

// GetTrackMeta retrieves cached metadata for a track path.
func (c *Cache) GetTrackMeta(ctx context.Context, path string) (tags.Metadata, bool) {
	if !c.IsAvailable() {
		return tags.Metadata{}, false
	}

	data, err := c.client.Get(ctx, KeyTrackMeta+path).Bytes()
	if err == redis.Nil {
		return tags.Metadata{}, false
	}
	if err != nil {
		c.handleError(err, "get")
		return tags.Metadata{}, false
	}

	var cached cachedMeta
	if err := json.Unmarshal(data, &cached); err != nil {
		c.logger.Debug().Err(err).Str("path", path).Msg("failed to unmarshal cached metadata")
		return tags.Metadata{}, false
	}

	c.logger.Debug().Str("path", path).Msg("track metadata cache hit")
	return tags.Metadata{Title: cached.Title, Artist: cached.Artist, Available: cached.Available}, true
}

// SetTrackMeta caches metadata for a track path.
func (c *Cache) SetTrackMeta(ctx context.Context, path string, meta tags.Metadata) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(cachedMeta{Title: meta.Title, Artist: meta.Artist, Available: meta.Available})
	if err != nil {
		return fmt.Errorf("marshal cached metadata: %w", err)
	}

	if err := c.client.Set(ctx, KeyTrackMeta+path, data, c.config.TrackMetaTTL).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}

	return nil
}

// FlushTrackMeta removes every cached metadata entry (used by reload-tags,
// which rebuilds the authoritative cache from scratch).
func (c *Cache) FlushTrackMeta(ctx context.Context) error {
	if !c.IsAvailable() {
		return nil
	}

	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, KeyTrackMeta+"*", 100).Result()
		if err != nil {
			c.handleError(err, "scan")
			return err
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(err, "delete_batch")
				return err
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return nil
}
