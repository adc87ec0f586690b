package dataloader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"

	"mcp-frete-sistema/internal/common/logger"
	"mcp-frete-sistema/internal/common/metrics"
	"mcp-frete-sistema/internal/contract"
	"mcp-frete-sistema/internal/workers/mcp/data-loader/queries"
)

const cacheKeyPrefix = "mcp:data:"

// Cache keeps complete load results in Redis. Lookup failures degrade to a miss.
type Cache struct {
	client redis.UniversalClient
	ttl    time.Duration
	logger logger.Logger
}

func NewCache(client redis.UniversalClient, ttl time.Duration, log logger.Logger) *Cache {
	return &Cache{client: client, ttl: ttl, logger: log}
}

// cacheKey identifies a request by everything that changes its result.
type cacheKey struct {
	Domain       contract.Domain        `json:"domain"`
	Filters      *contract.LoadFilters  `json:"filters,omitempty"`
	Aggregations []contract.Aggregation `json:"aggregations,omitempty"`
	OrderBy      *contract.OrderBy      `json:"orderBy,omitempty"`
	Limit        int                    `json:"limit"`
	Offset       int                    `json:"offset"`
}

// Key hashes the canonical JSON of the request. Map keys are encoded sorted, so equal
// requests hash equally.
func (c *Cache) Key(in *contract.DataLoaderInput, page queries.Page) string {
	k := cacheKey{
		Domain:       in.Domain,
		Filters:      in.Filters,
		Aggregations: in.Aggregations,
		Limit:        page.Limit,
		Offset:       page.Offset,
	}
	if in.Options != nil {
		k.OrderBy = in.Options.OrderBy
	}
	raw, _ := json.Marshal(k)
	return fmt.Sprintf("%s%s:%016x", cacheKeyPrefix, in.Domain, xxhash.Sum64(raw))
}

func (c *Cache) Get(ctx context.Context, key string) (*contract.DataLoaderOutput, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		metrics.DataLoaderCache.WithLabelValues("miss").Inc()
		return nil, false
	case err != nil:
		metrics.DataLoaderCache.WithLabelValues("error").Inc()
		c.logger.Warn("cache lookup failed", map[string]interface{}{"key": key, "error": err.Error()})
		return nil, false
	}

	var out contract.DataLoaderOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		metrics.DataLoaderCache.WithLabelValues("error").Inc()
		c.logger.Warn("cache entry unreadable", map[string]interface{}{"key": key, "error": err.Error()})
		return nil, false
	}
	metrics.DataLoaderCache.WithLabelValues("hit").Inc()
	return &out, true
}

// Set stores out unless it is partial.
func (c *Cache) Set(ctx context.Context, key string, out *contract.DataLoaderOutput) {
	if !out.Complete() {
		return
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		metrics.DataLoaderCache.WithLabelValues("error").Inc()
		c.logger.Warn("cache store failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}
