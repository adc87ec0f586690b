package dataloader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-frete-sistema/internal/contract"
	"mcp-frete-sistema/internal/workers/mcp/data-loader/queries"
)

func floatPtr(f float64) *float64 { return &f }

func TestEnrich(t *testing.T) {
	out := &contract.DataLoaderOutput{
		Data: []contract.Record{
			{"id": 1, "status": "delayed"},
			{"id": 2, "status": "delayed"},
			{"id": 3, "status": "pending"},
		},
		Metadata: contract.LoadMetadata{Total: 10, Returned: 3, Offset: 0, HasMore: true},
		Aggregations: map[string]contract.AggregationResult{
			"group_by_uf_destino": {
				Type:   contract.AggGroupBy,
				Field:  "uf_destino",
				Groups: []contract.AggregationGroup{{Key: "RJ", Count: 3}, {Key: "SP", Count: 7}},
			},
			"group_by_data_entrega": {
				Type:  contract.AggGroupBy,
				Field: "data_entrega",
				Groups: []contract.AggregationGroup{
					{Key: "2024-03-03", Count: 15},
					{Key: "2024-03-01", Count: 10},
					{Key: "2024-03-02", Count: 12},
				},
			},
		},
	}

	e := enrich(out, queries.Registry[contract.DomainFretes])
	require.NotNil(t, e)

	assert.Equal(t, []string{
		"Exibindo 3 de 10 registros.",
		"Status mais frequente: delayed (2 de 3 registros exibidos).",
		"Maior concentração em uf_destino: SP (7 registros).",
	}, e.Insights)

	require.Len(t, e.Trends, 1)
	assert.Equal(t, contract.Trend{
		Metric:    "group_by_data_entrega",
		Direction: contract.TrendUp,
		Change:    50,
		Period:    "2024-03-01 a 2024-03-03",
	}, e.Trends[0])

	assert.Equal(t, []string{
		"Há mais 7 registros; refine os filtros ou continue a partir do offset 3.",
		"2 registro(s) com atraso exigem atenção.",
	}, e.Recommendations)
}

func TestEnrich_NoRows(t *testing.T) {
	out := &contract.DataLoaderOutput{Data: []contract.Record{}}
	e := enrich(out, queries.Registry[contract.DomainTransportadoras])

	require.NotNil(t, e)
	assert.Empty(t, e.Insights)
	assert.Equal(t, []string{"Nenhum registro encontrado; tente ampliar o período ou remover filtros."}, e.Recommendations)
}

func TestTrend(t *testing.T) {
	tests := []struct {
		name   string
		groups []contract.AggregationGroup
		dir    contract.TrendDirection
		change float64
		ok     bool
	}{
		{
			name:   "values drop",
			groups: []contract.AggregationGroup{{Key: "2024-01", Count: 1, Value: floatPtr(200)}, {Key: "2024-02", Count: 9, Value: floatPtr(150)}},
			dir:    contract.TrendDown,
			change: -25,
			ok:     true,
		},
		{
			name:   "within threshold",
			groups: []contract.AggregationGroup{{Key: "2024-01", Count: 100}, {Key: "2024-02", Count: 104}},
			dir:    contract.TrendStable,
			change: 4,
			ok:     true,
		},
		{
			name:   "rounded to one decimal",
			groups: []contract.AggregationGroup{{Key: "a", Count: 3}, {Key: "b", Count: 4}},
			dir:    contract.TrendUp,
			change: 33.3,
			ok:     true,
		},
		{name: "single bucket", groups: []contract.AggregationGroup{{Key: "a", Count: 3}}},
		{name: "zero baseline", groups: []contract.AggregationGroup{{Key: "a", Count: 0}, {Key: "b", Count: 4}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := trend("m", tt.groups)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.dir, got.Direction)
				assert.Equal(t, tt.change, got.Change)
			}
		})
	}
}
