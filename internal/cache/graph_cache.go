// Package cache provides the Redis-backed graph-lookup cache. This
// package is internal and should not be imported by external projects.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/eigloo/agentgraph/graph"
	"github.com/eigloo/agentgraph/run"
)

// ErrCacheMiss is returned when a key is absent.
var ErrCacheMiss = errors.New("cache miss")

// GraphCache decorates a graph lookup with a Redis TTL cache. Cached
// entries hold the serialized definition; a hit is rebuilt and
// re-validated through the normal construction path. Cache failures
// degrade to the underlying lookup, never to an error.
type GraphCache struct {
	client    redis.UniversalClient
	next      run.GraphLookup
	ttl       time.Duration
	keyPrefix string
	logger    *zap.Logger
}

// Options configures a GraphCache.
type Options struct {
	// TTL bounds staleness after a graph update; zero disables caching
	// and every lookup passes through.
	TTL       time.Duration
	KeyPrefix string
	Logger    *zap.Logger
}

// NewGraphCache wraps the given lookup; the caller owns the client.
func NewGraphCache(client redis.UniversalClient, next run.GraphLookup, opts Options) *GraphCache {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "agentgraph:graph:"
	}
	return &GraphCache{
		client:    client,
		next:      next,
		ttl:       opts.TTL,
		keyPrefix: prefix,
		logger:    logger.With(zap.String("component", "graph_cache")),
	}
}

func (c *GraphCache) key(tenantID, graphID string) string {
	return c.keyPrefix + tenantID + ":" + graphID
}

// GetGraph implements run.GraphLookup.
func (c *GraphCache) GetGraph(ctx context.Context, tenantID, graphID string) (*graph.AgentGraph, error) {
	if c.ttl <= 0 {
		return c.next.GetGraph(ctx, tenantID, graphID)
	}

	key := c.key(tenantID, graphID)
	if g, err := c.getCached(ctx, key); err == nil {
		return g, nil
	} else if !errors.Is(err, ErrCacheMiss) {
		c.logger.Warn("graph cache read failed, falling back to store",
			zap.String("graph_id", graphID), zap.Error(err))
	}

	g, err := c.next.GetGraph(ctx, tenantID, graphID)
	if err != nil {
		return nil, err
	}
	if err := c.setCached(ctx, key, g); err != nil {
		c.logger.Warn("graph cache write failed",
			zap.String("graph_id", graphID), zap.Error(err))
	}
	return g, nil
}

// Invalidate drops the cached entry, typically after a graph update.
func (c *GraphCache) Invalidate(ctx context.Context, tenantID, graphID string) error {
	if c.ttl <= 0 {
		return nil
	}
	return c.client.Del(ctx, c.key(tenantID, graphID)).Err()
}

func (c *GraphCache) getCached(ctx context.Context, key string) (*graph.AgentGraph, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	var def graph.Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("decode cached graph: %w", err)
	}
	return def.Build()
}

func (c *GraphCache) setCached(ctx context.Context, key string, g *graph.AgentGraph) error {
	data, err := json.Marshal(g.Definition())
	if err != nil {
		return fmt.Errorf("encode graph: %w", err)
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}
