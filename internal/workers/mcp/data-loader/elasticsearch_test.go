package dataloader

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "mcp-frete-sistema/internal/common/errors"
	"mcp-frete-sistema/internal/common/logger"
	"mcp-frete-sistema/internal/contract"
	"mcp-frete-sistema/internal/workers/mcp/data-loader/queries"
)

const searchResult = `{
	"took": 3,
	"hits": {
		"total": {"value": 42, "relation": "eq"},
		"hits": [
			{"_source": {"id": "m-1", "status": "delayed", "cliente": "Atacadão"}},
			{"_source": {"id": "m-2", "status": "in_transit", "cliente": "Assaí"}}
		]
	},
	"aggregations": {
		"group_by_transportadora_id": {
			"buckets": [
				{"key": "T1", "doc_count": 30, "value": {"value": 1500.5}},
				{"key": 7, "doc_count": 12, "value": {"value": 300}}
			]
		},
		"count": {"value": 42}
	}
}`

// newSearchServer answers like an Elasticsearch node. The product header is required by
// the client.
func newSearchServer(t *testing.T, status int, body string, seen func(r *http.Request, body map[string]interface{})) *elasticsearch.Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			raw, _ := io.ReadAll(r.Body)
			var parsed map[string]interface{}
			_ = json.Unmarshal(raw, &parsed)
			seen(r, parsed)
		}
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{server.URL}})
	require.NoError(t, err)
	return client
}

func monitoramentoPlan() *queries.Plan {
	in := &contract.DataLoaderInput{
		Domain: contract.DomainMonitoramento,
		Aggregations: []contract.Aggregation{
			{Type: contract.AggGroupBy, GroupBy: "transportadora_id", Field: "valor_nf"},
			{Type: contract.AggCount},
		},
	}
	return queries.NewPlan(queries.Registry[contract.DomainMonitoramento], in, queries.Page{Limit: 2, Offset: 0})
}

func TestElasticsearchBackend_Load(t *testing.T) {
	var path string
	var size float64
	client := newSearchServer(t, http.StatusOK, searchResult, func(r *http.Request, body map[string]interface{}) {
		path = r.URL.Path
		size, _ = body["size"].(float64)
	})
	backend := NewElasticsearchBackend(client, "mcp-", logger.NewTestLogger(t))

	out, err := backend.Load(context.Background(), monitoramentoPlan())
	require.NoError(t, err)

	assert.Equal(t, "/mcp-monitoramento/_search", path)
	assert.Equal(t, float64(2), size)
	assert.Equal(t, 42, out.Metadata.Total)
	require.Len(t, out.Data, 2)
	assert.Equal(t, "Atacadão", out.Data[0]["cliente"])

	groups := out.Aggregations["group_by_transportadora_id"]
	require.Len(t, groups.Groups, 2)
	assert.Equal(t, "T1", groups.Groups[0].Key)
	assert.Equal(t, 30, groups.Groups[0].Count)
	assert.Equal(t, 1500.5, *groups.Groups[0].Value)
	assert.Equal(t, "7", groups.Groups[1].Key)

	count := out.Aggregations["count"]
	require.NotNil(t, count.Value)
	assert.Equal(t, 42.0, *count.Value)
}

func TestElasticsearchBackend_Load_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		code   apperrors.ErrorCode
	}{
		{"missing index", http.StatusNotFound, `{"error":{"type":"index_not_found_exception"},"status":404}`, apperrors.ErrCodeIndexNotFound},
		{"bad query", http.StatusBadRequest, `{"error":{"type":"parsing_exception"},"status":400}`, apperrors.ErrCodeSearchQueryFailed},
		{"garbage body", http.StatusOK, `not json`, apperrors.ErrCodeSearchQueryFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newSearchServer(t, tt.status, tt.body, nil)
			backend := NewElasticsearchBackend(client, "mcp-", logger.NewTestLogger(t))

			_, err := backend.Load(context.Background(), monitoramentoPlan())
			stdErr, ok := apperrors.AsStandardError(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, tt.code, stdErr.Code)
		})
	}
}

func TestElasticsearchBackend_Load_Unreachable(t *testing.T) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    []string{"http://127.0.0.1:1"},
		DisableRetry: true,
	})
	require.NoError(t, err)
	backend := NewElasticsearchBackend(client, "mcp-", logger.NewTestLogger(t))

	_, err = backend.Load(context.Background(), monitoramentoPlan())
	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeElasticsearchConnectionFailed, stdErr.Code)
}

func TestConvertAggregation_DateBucketsAreChronological(t *testing.T) {
	// 90 daily buckets exist; the search keeps the newest MaxGroups, newest first.
	start := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	buckets := make([]map[string]interface{}, 0, queries.MaxGroups)
	for i := 89; i > 89-queries.MaxGroups; i-- {
		buckets = append(buckets, map[string]interface{}{
			"key":           start.AddDate(0, 0, i).UnixMilli(),
			"key_as_string": start.AddDate(0, 0, i).Format("2006-01-02"),
			"doc_count":     10 + i,
		})
	}
	payload, err := json.Marshal(map[string]interface{}{"buckets": buckets})
	require.NoError(t, err)
	var raw aggregationResponse
	require.NoError(t, json.Unmarshal(payload, &raw))

	agg := contract.Aggregation{Type: contract.AggGroupBy, GroupBy: "data_entrega_prevista"}
	res := convertAggregation(agg, raw, true)
	require.Len(t, res.Groups, queries.MaxGroups)
	assert.Equal(t, "2024-02-10", res.Groups[0].Key)
	assert.Equal(t, "2024-03-30", res.Groups[len(res.Groups)-1].Key)

	out := &contract.DataLoaderOutput{
		Data:         []contract.Record{},
		Metadata:     contract.LoadMetadata{Domain: contract.DomainMonitoramento, Total: 3700},
		Aggregations: map[string]contract.AggregationResult{agg.Key(): res},
	}
	e := enrich(out, queries.Registry[contract.DomainMonitoramento])
	require.NotNil(t, e)
	require.Len(t, e.Trends, 1)
	assert.Equal(t, contract.Trend{
		Metric:    "group_by_data_entrega_prevista",
		Direction: contract.TrendUp,
		Change:    98,
		Period:    "2024-02-10 a 2024-03-30",
	}, e.Trends[0])
}
