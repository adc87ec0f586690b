package queries

import (
	"mcp-frete-sistema/internal/contract"
)

const dateFormat = "yyyy-MM-dd||strict_date_optional_time"

// SearchBody renders the plan as an Elasticsearch search body. Paging travels as from/size
// and the total is always tracked exactly so hasMore can be derived from it.
func (p *Plan) SearchBody() map[string]interface{} {
	filterClauses := []interface{}{}
	mustClauses := []interface{}{}

	if len(p.IDs) > 0 {
		filterClauses = append(filterClauses, map[string]interface{}{
			"terms": map[string]interface{}{p.Spec.IDColumn: p.IDs},
		})
	}
	if len(p.Statuses) > 0 {
		filterClauses = append(filterClauses, map[string]interface{}{
			"terms": map[string]interface{}{p.Spec.StatusColumn: p.Statuses},
		})
	}
	if p.DateColumn != "" {
		bounds := map[string]interface{}{"format": dateFormat}
		if p.From != "" {
			bounds["gte"] = p.From
		}
		if p.To != "" {
			bounds["lte"] = p.To
		}
		filterClauses = append(filterClauses, map[string]interface{}{
			"range": map[string]interface{}{p.DateColumn: bounds},
		})
	}
	if p.Search != "" && len(p.Spec.Search) > 0 {
		mustClauses = append(mustClauses, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  p.Search,
				"fields": p.Spec.Search,
				"type":   "best_fields",
			},
		})
	}
	for _, cf := range p.Custom {
		filterClauses = append(filterClauses, customClause(cf))
	}

	query := map[string]interface{}{"match_all": map[string]interface{}{}}
	if len(filterClauses) > 0 || len(mustClauses) > 0 {
		boolQuery := map[string]interface{}{}
		if len(mustClauses) > 0 {
			boolQuery["must"] = mustClauses
		}
		if len(filterClauses) > 0 {
			boolQuery["filter"] = filterClauses
		}
		query = map[string]interface{}{"bool": boolQuery}
	}

	order := "desc"
	if !p.Descending {
		order = "asc"
	}
	sort := []interface{}{
		map[string]interface{}{p.OrderColumn: map[string]interface{}{"order": order, "missing": "_last"}},
	}
	if p.OrderColumn != p.Spec.IDColumn {
		sort = append(sort, map[string]interface{}{p.Spec.IDColumn: map[string]interface{}{"order": "asc"}})
	}

	body := map[string]interface{}{
		"query":            query,
		"from":             p.Page.Offset,
		"size":             p.Page.Limit,
		"sort":             sort,
		"track_total_hits": true,
	}
	if aggs := p.searchAggregations(); len(aggs) > 0 {
		body["aggs"] = aggs
	}
	return body
}

func customClause(cf CustomFilter) map[string]interface{} {
	switch cf.Op {
	case ">=":
		return map[string]interface{}{"range": map[string]interface{}{cf.Column: map[string]interface{}{"gte": cf.Value}}}
	case "<=":
		return map[string]interface{}{"range": map[string]interface{}{cf.Column: map[string]interface{}{"lte": cf.Value}}}
	default:
		return map[string]interface{}{"term": map[string]interface{}{cf.Column: cf.Value}}
	}
}

func (p *Plan) searchAggregations() map[string]interface{} {
	aggs := make(map[string]interface{}, len(p.Aggregations))
	for _, a := range p.Aggregations {
		switch a.Type {
		case contract.AggGroupBy:
			body := map[string]interface{}{"field": a.GroupBy, "size": MaxGroups}
			if p.Spec.IsDateColumn(a.GroupBy) {
				body["order"] = map[string]interface{}{"_key": "desc"}
			}
			terms := map[string]interface{}{"terms": body}
			if a.Field != "" {
				terms["aggs"] = map[string]interface{}{
					"value": map[string]interface{}{"sum": map[string]interface{}{"field": a.Field}},
				}
			}
			aggs[a.Key()] = terms
		case contract.AggCount:
			field := a.Field
			if field == "" {
				field = p.Spec.IDColumn
			}
			aggs[a.Key()] = map[string]interface{}{"value_count": map[string]interface{}{"field": field}}
		default:
			aggs[a.Key()] = map[string]interface{}{string(a.Type): map[string]interface{}{"field": a.Field}}
		}
	}
	return aggs
}
