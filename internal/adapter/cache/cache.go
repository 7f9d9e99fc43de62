// Package cache stores generated explanations in process memory or Redis.
package cache

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	gocache "github.com/patrickmn/go-cache"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/zeebo/blake3"

	"github.com/eslsoft/tafsirnet/internal/entity"
	"github.com/eslsoft/tafsirnet/internal/usecase"
)

var (
	_ usecase.ResponseCache = (*Memory)(nil)
	_ usecase.ResponseCache = (*Redis)(nil)
)

const keyPrefix = "tafsir:explanation:"

// Key hashes the prompt, language and style into a fixed-length key.
func Key(k entity.CacheKey) string {
	h := blake3.New()
	_, _ = h.Write([]byte(k.Language.CodeOrDefault()))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(k.Style))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(k.Prompt))
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Memory is a process-local TTL cache.
type Memory struct {
	items *gocache.Cache
	ttl   time.Duration
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	cleanup := ttl
	if cleanup <= 0 || cleanup > time.Hour {
		cleanup = time.Hour
	}
	return &Memory{items: gocache.New(ttl, cleanup), ttl: ttl}
}

func (m *Memory) Get(_ context.Context, key entity.CacheKey) (string, bool) {
	v, ok := m.items.Get(Key(key))
	if !ok {
		return "", false
	}
	text, ok := v.(string)
	return text, ok
}

func (m *Memory) Set(_ context.Context, key entity.CacheKey, text string) {
	m.items.Set(Key(key), text, gocache.DefaultExpiration)
}

// Len reports the number of unexpired items.
func (m *Memory) Len() int {
	return m.items.ItemCount()
}

// Redis shares cached explanations between server instances. Errors are
// logged and reported as misses.
type Redis struct {
	rdb *goredis.Client
	ttl time.Duration
	log *logrus.Logger
}

func NewRedis(rdb *goredis.Client, ttl time.Duration, log *logrus.Logger) *Redis {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Redis{rdb: rdb, ttl: ttl, log: log}
}

func (r *Redis) Get(ctx context.Context, key entity.CacheKey) (string, bool) {
	text, err := r.rdb.Get(ctx, Key(key)).Result()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			r.log.WithError(err).Warn("redis cache get failed")
		}
		return "", false
	}
	return text, true
}

func (r *Redis) Set(ctx context.Context, key entity.CacheKey, text string) {
	if err := r.rdb.Set(ctx, Key(key), text, r.ttl).Err(); err != nil {
		r.log.WithError(err).Warn("redis cache set failed")
	}
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
