package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"priceaction-bot/internal/state"
)

const (
	// stateKeyPrefix formats to priceaction:state:{symbol}:{timeframe}
	stateKeyPrefix = "priceaction:state"

	// stateTTL bounds how stale a cached state may be served.
	stateTTL = 24 * time.Hour
)

// StateCache fronts latest-state reads with Redis. When Redis is
// unavailable it falls back to an in-memory map so reconciliation keeps
// running; the database remains the source of truth either way.
type StateCache struct {
	client *redis.Client
	logger zerolog.Logger

	mu     sync.RWMutex
	local  map[string][]byte
	useMem bool
}

// NewStateCache connects to Redis at addr. A failed ping switches the
// cache to memory-only mode instead of returning an error.
func NewStateCache(addr, password string, db int, logger zerolog.Logger) *StateCache {
	c := &StateCache{
		logger: logger,
		local:  make(map[string][]byte),
	}
	if addr == "" {
		c.useMem = true
		logger.Info().Msg("no Redis address configured, using in-memory state cache")
		return c
	}

	c.client = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.client.Ping(ctx).Err(); err != nil {
		c.useMem = true
		logger.Warn().Err(err).Msg("Redis unreachable, falling back to in-memory state cache")
	} else {
		logger.Info().Str("addr", addr).Msg("connected to Redis state cache")
	}
	return c
}

func stateCacheKey(symbol, timeframe string) string {
	return fmt.Sprintf("%s:%s:%s", stateKeyPrefix, symbol, timeframe)
}

// PutState caches the state. Cache write failures are logged, never
// propagated.
func (c *StateCache) PutState(ctx context.Context, st *state.TimeframeState) {
	payload, err := json.Marshal(st)
	if err != nil {
		c.logger.Error().Err(err).Msg("marshal state for cache")
		return
	}
	key := stateCacheKey(st.Symbol, st.Timeframe)

	if c.useMem {
		c.mu.Lock()
		c.local[key] = payload
		c.mu.Unlock()
		return
	}
	if err := c.client.Set(ctx, key, payload, stateTTL).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Redis set failed")
	}
}

// GetState returns the cached state and whether it was found.
func (c *StateCache) GetState(ctx context.Context, symbol, timeframe string) (*state.TimeframeState, bool) {
	key := stateCacheKey(symbol, timeframe)

	var payload []byte
	if c.useMem {
		c.mu.RLock()
		payload = c.local[key]
		c.mu.RUnlock()
		if payload == nil {
			return nil, false
		}
	} else {
		data, err := c.client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return nil, false
		}
		if err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("Redis get failed")
			return nil, false
		}
		payload = data
	}

	var st state.TimeframeState
	if err := json.Unmarshal(payload, &st); err != nil {
		c.logger.Error().Err(err).Str("key", key).Msg("corrupt cached state")
		return nil, false
	}
	return &st, true
}

// Close releases the Redis connection.
func (c *StateCache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
