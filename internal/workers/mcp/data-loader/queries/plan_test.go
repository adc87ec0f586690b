package queries

import (
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-frete-sistema/internal/contract"
)

func strPtr(s string) *string { return &s }

func TestRegistry_CoversLoadableDomains(t *testing.T) {
	for _, d := range contract.LoadableDomains {
		spec, ok := Lookup(d)
		require.True(t, ok, "domain %s", d)
		assert.NotEmpty(t, spec.Table)
		assert.True(t, spec.CanOrderBy(spec.DefaultOrder), "default order of %s", d)
		assert.Contains(t, spec.DateColumns, contract.DateFieldCreatedAt)
	}
	_, ok := Lookup(contract.DomainMulti)
	assert.False(t, ok)
}

func TestNewPlan(t *testing.T) {
	spec := Registry[contract.DomainFretes]
	in := &contract.DataLoaderInput{
		Domain: contract.DomainFretes,
		Filters: &contract.LoadFilters{
			Status:    []contract.Status{contract.StatusPending, contract.StatusDelayed},
			DateRange: &contract.DateRange{Start: "2024-03-01", End: "2024-03-31T23:59:59Z", Field: contract.DateFieldDeliveryDate},
			Search:    strPtr("  Rodonaves "),
			CustomFilters: contract.ScalarMap{
				"valor_min":  contract.NumberValue(1000),
				"uf_destino": contract.StringValue("SP"),
			},
		},
		Options: &contract.LoadOptions{OrderBy: &contract.OrderBy{Field: "valor", Direction: contract.OrderAsc}},
		Aggregations: []contract.Aggregation{
			{Type: contract.AggSum, Field: "valor"},
			{Type: contract.AggGroupBy, GroupBy: "status"},
		},
	}

	p := NewPlan(spec, in, Page{Limit: 20, Offset: 40})

	assert.Empty(t, p.Issues)
	assert.Equal(t, []string{"pending", "delayed"}, p.Statuses)
	assert.Equal(t, "data_entrega", p.DateColumn)
	assert.Equal(t, "2024-03-01", p.From)
	assert.Equal(t, "2024-03-31", p.To)
	assert.Equal(t, "Rodonaves", p.Search)
	assert.Equal(t, []CustomFilter{
		{Column: "uf_destino", Op: "=", Value: "SP"},
		{Column: "valor", Op: ">=", Value: float64(1000)},
	}, p.Custom)
	assert.Equal(t, "valor", p.OrderColumn)
	assert.False(t, p.Descending)
	assert.Len(t, p.Aggregations, 2)
}

func TestNewPlan_UnsupportedParts(t *testing.T) {
	tests := []struct {
		name   string
		domain contract.Domain
		in     contract.DataLoaderInput
		field  string
	}{
		{
			name:   "order by unknown column",
			domain: contract.DomainFretes,
			in:     contract.DataLoaderInput{Options: &contract.LoadOptions{OrderBy: &contract.OrderBy{Field: "senha"}}},
			field:  "options.orderBy.field",
		},
		{
			name:   "status on a domain without status",
			domain: contract.DomainTransportadoras,
			in:     contract.DataLoaderInput{Filters: &contract.LoadFilters{Status: []contract.Status{contract.StatusPending}}},
			field:  "filters.status",
		},
		{
			name:   "missing date field",
			domain: contract.DomainEmbarques,
			in:     contract.DataLoaderInput{Filters: &contract.LoadFilters{DateRange: &contract.DateRange{Start: "2024-01-01", Field: contract.DateFieldDeliveryDate}}},
			field:  "filters.dateRange.field",
		},
		{
			name:   "sum over a text column",
			domain: contract.DomainFretes,
			in:     contract.DataLoaderInput{Aggregations: []contract.Aggregation{{Type: contract.AggSum, Field: "numero_cte"}}},
			field:  "aggregations[0].field",
		},
		{
			name:   "group by an unknown column",
			domain: contract.DomainPedidos,
			in:     contract.DataLoaderInput{Aggregations: []contract.Aggregation{{Type: contract.AggGroupBy, GroupBy: "senha"}}},
			field:  "aggregations[0].groupBy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.Domain = tt.domain
			p := NewPlan(Registry[tt.domain], &tt.in, Page{Limit: 10})

			require.Len(t, p.Issues, 1)
			assert.Equal(t, "UNSUPPORTED_FIELD", p.Issues[0].Code)
			assert.Equal(t, tt.field, p.Issues[0].Field)
			assert.NotEmpty(t, p.Issues[0].UserMessage)
			assert.Empty(t, p.Aggregations)
		})
	}
}

func TestPlan_Statements(t *testing.T) {
	spec := Registry[contract.DomainPedidos]
	in := &contract.DataLoaderInput{
		Domain: contract.DomainPedidos,
		Filters: &contract.LoadFilters{
			IDs:           []string{"P1", "P2"},
			Status:        []contract.Status{contract.StatusPending},
			Search:        strPtr("50%"),
			CustomFilters: contract.ScalarMap{"data_entrega_prevista": contract.StringValue("2024-03-10")},
		},
	}
	p := NewPlan(spec, in, Page{Limit: 25, Offset: 50})

	where := ` FROM "pedidos" t WHERE "num_pedido"::text = ANY($1) AND "status" = ANY($2)` +
		` AND ("num_pedido"::text ILIKE $3 OR "raz_social"::text ILIKE $3 OR "cnpj_cliente"::text ILIKE $3 OR "cidade"::text ILIKE $3)` +
		` AND "data_entrega_prevista"::date = $4`

	count := p.CountStatement()
	assert.Equal(t, "SELECT COUNT(*)"+where, count.SQL)
	require.Len(t, count.Args, 4)
	assert.Equal(t, pq.Array([]string{"P1", "P2"}), count.Args[0])
	assert.Equal(t, `%50\%%`, count.Args[2])

	page := p.PageStatement()
	assert.Equal(t, `SELECT to_jsonb(t)`+where+` ORDER BY "criado_em" DESC NULLS LAST, "num_pedido" ASC LIMIT $5 OFFSET $6`, page.SQL)
	assert.Equal(t, []interface{}{25, 50}, page.Args[4:])
}

func TestPlan_AggregationStatement(t *testing.T) {
	p := NewPlan(Registry[contract.DomainFinanceiro], &contract.DataLoaderInput{Domain: contract.DomainFinanceiro}, Page{Limit: 10})

	tests := []struct {
		agg  contract.Aggregation
		want string
	}{
		{contract.Aggregation{Type: contract.AggCount}, `SELECT COUNT(*)::float8 FROM "despesas_extras" t`},
		{contract.Aggregation{Type: contract.AggAvg, Field: "valor"}, `SELECT AVG("valor")::float8 FROM "despesas_extras" t`},
		{
			contract.Aggregation{Type: contract.AggGroupBy, GroupBy: "tipo_despesa", Field: "valor"},
			`SELECT COALESCE("tipo_despesa"::text, ''), COUNT(*), SUM("valor")::float8 FROM "despesas_extras" t GROUP BY 1 ORDER BY 2 DESC, 1 ASC LIMIT 50`,
		},
		{
			contract.Aggregation{Type: contract.AggGroupBy, GroupBy: "vencimento"},
			`SELECT * FROM (SELECT COALESCE("vencimento"::text, ''), COUNT(*) FROM "despesas_extras" t WHERE "vencimento" IS NOT NULL GROUP BY 1 ORDER BY 1 DESC LIMIT 50) g ORDER BY 1 ASC`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.agg.Key(), func(t *testing.T) {
			st := p.AggregationStatement(tt.agg)
			assert.Equal(t, tt.want, st.SQL)
			assert.Empty(t, st.Args)
		})
	}
}

func TestPlan_SearchBody(t *testing.T) {
	spec := Registry[contract.DomainMonitoramento]
	in := &contract.DataLoaderInput{
		Domain: contract.DomainMonitoramento,
		Filters: &contract.LoadFilters{
			Status:        []contract.Status{contract.StatusDelayed},
			DateRange:     &contract.DateRange{Start: "2024-03-01"},
			Search:        strPtr("Atacadão"),
			CustomFilters: contract.ScalarMap{"atrasada": contract.BoolValue(true)},
		},
		Aggregations: []contract.Aggregation{
			{Type: contract.AggGroupBy, GroupBy: "transportadora_id", Field: "valor_nf"},
			{Type: contract.AggGroupBy, GroupBy: "data_entrega_prevista"},
			{Type: contract.AggCount},
		},
	}
	body := NewPlan(spec, in, Page{Limit: 10, Offset: 20}).SearchBody()

	assert.Equal(t, 20, body["from"])
	assert.Equal(t, 10, body["size"])
	assert.Equal(t, true, body["track_total_hits"])

	boolQuery := body["query"].(map[string]interface{})["bool"].(map[string]interface{})
	assert.Len(t, boolQuery["must"], 1)
	filters := boolQuery["filter"].([]interface{})
	require.Len(t, filters, 3)
	assert.Equal(t, map[string]interface{}{"terms": map[string]interface{}{"status": []string{"delayed"}}}, filters[0])
	assert.Equal(t, map[string]interface{}{"term": map[string]interface{}{"atrasada": true}}, filters[2])

	aggs := body["aggs"].(map[string]interface{})
	byCarrier := aggs["group_by_transportadora_id"].(map[string]interface{})["terms"].(map[string]interface{})
	assert.NotContains(t, byCarrier, "order")
	byDate := aggs["group_by_data_entrega_prevista"].(map[string]interface{})["terms"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{"_key": "desc"}, byDate["order"])
	assert.Equal(t, MaxGroups, byDate["size"])
	assert.Equal(t, map[string]interface{}{"value_count": map[string]interface{}{"field": "id"}}, aggs["count"])
}

func TestPlan_SearchBody_MatchAll(t *testing.T) {
	p := NewPlan(Registry[contract.DomainFretes], &contract.DataLoaderInput{Domain: contract.DomainFretes}, Page{Limit: 5})
	body := p.SearchBody()

	assert.Equal(t, map[string]interface{}{"match_all": map[string]interface{}{}}, body["query"])
	assert.NotContains(t, body, "aggs")
}
