package dataloader

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-frete-sistema/internal/common/logger"
	"mcp-frete-sistema/internal/contract"
	"mcp-frete-sistema/internal/workers/mcp/data-loader/queries"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCache(client, time.Minute, logger.NewTestLogger(t)), mr
}

func TestCache_Key(t *testing.T) {
	c, _ := newTestCache(t)
	page := queries.Page{Limit: 20}

	a := &contract.DataLoaderInput{
		Domain: contract.DomainFretes,
		Filters: &contract.LoadFilters{CustomFilters: contract.ScalarMap{
			"uf_destino": contract.StringValue("SP"),
			"valor_min":  contract.NumberValue(100),
		}},
	}
	b := &contract.DataLoaderInput{
		Domain: contract.DomainFretes,
		Filters: &contract.LoadFilters{CustomFilters: contract.ScalarMap{
			"valor_min":  contract.NumberValue(100),
			"uf_destino": contract.StringValue("SP"),
		}},
		Options: &contract.LoadOptions{Enrich: boolPtr(false)},
	}

	keyA := c.Key(a, page)
	assert.True(t, strings.HasPrefix(keyA, "mcp:data:fretes:"))
	assert.Equal(t, keyA, c.Key(b, page), "enrich and map order do not change the result")
	assert.NotEqual(t, keyA, c.Key(a, queries.Page{Limit: 20, Offset: 20}))

	b.Filters.CustomFilters["uf_destino"] = contract.StringValue("RJ")
	assert.NotEqual(t, keyA, c.Key(b, page))
}

func TestCache_GetSet(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	key := "mcp:data:fretes:test"

	_, ok := c.Get(ctx, key)
	assert.False(t, ok)

	out := &contract.DataLoaderOutput{
		Data:     []contract.Record{{"id": "1"}},
		Metadata: contract.LoadMetadata{Domain: contract.DomainFretes, Total: 1, Returned: 1, Source: "postgres"},
	}
	c.Set(ctx, key, out)
	assert.Equal(t, time.Minute, mr.TTL(key))

	got, ok := c.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, out.Metadata, got.Metadata)
	assert.Equal(t, "1", got.Data[0]["id"])
}

func TestCache_PartialResultsAreNotStored(t *testing.T) {
	c, mr := newTestCache(t)
	out := &contract.DataLoaderOutput{
		Data:   []contract.Record{},
		Errors: []contract.ToolError{{Code: "UNSUPPORTED_FIELD", Message: "x"}},
	}
	c.Set(context.Background(), "mcp:data:fretes:partial", out)
	assert.False(t, mr.Exists("mcp:data:fretes:partial"))
}

func TestCache_DegradesToMiss(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("mcp:data:fretes:bad", "{not json"))
	_, ok := c.Get(ctx, "mcp:data:fretes:bad")
	assert.False(t, ok)

	mr.Close()
	_, ok = c.Get(ctx, "mcp:data:fretes:any")
	assert.False(t, ok)
	c.Set(ctx, "mcp:data:fretes:any", &contract.DataLoaderOutput{Data: []contract.Record{}})
}
