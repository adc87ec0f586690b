package dataloader

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"sort"
	"strings"

	"mcp-frete-sistema/internal/contract"
	"mcp-frete-sistema/internal/workers/mcp/data-loader/queries"
)

// trendThreshold is the relative change, in percent, below which a series is stable.
const trendThreshold = 5.0

var delayedStatuses = []string{string(contract.StatusDelayed), "atrasado", "atrasada"}

// enrich derives insights, trends and recommendations from a finished load. It returns nil
// when there is nothing to say.
func enrich(out *contract.DataLoaderOutput, spec *queries.DomainSpec) *contract.Enrichments {
	e := &contract.Enrichments{}
	m := out.Metadata

	if m.Total > 0 {
		e.Insights = append(e.Insights, fmt.Sprintf("Exibindo %d de %d registros.", m.Returned, m.Total))
	}
	if spec.StatusColumn != "" {
		if s := statusInsight(out.Data, spec.StatusColumn); s != "" {
			e.Insights = append(e.Insights, s)
		}
	}

	for _, key := range slices.Sorted(maps.Keys(out.Aggregations)) {
		agg := out.Aggregations[key]
		if agg.Type != contract.AggGroupBy || len(agg.Groups) == 0 {
			continue
		}
		if spec.IsDateColumn(agg.Field) {
			if t, ok := trend(key, agg.Groups); ok {
				e.Trends = append(e.Trends, t)
			}
			continue
		}
		top := agg.Groups[0]
		for _, g := range agg.Groups[1:] {
			if g.Count > top.Count {
				top = g
			}
		}
		e.Insights = append(e.Insights, fmt.Sprintf("Maior concentração em %s: %s (%d registros).", agg.Field, displayKey(top.Key), top.Count))
	}

	switch {
	case m.Total == 0:
		e.Recommendations = append(e.Recommendations, "Nenhum registro encontrado; tente ampliar o período ou remover filtros.")
	case m.HasMore:
		e.Recommendations = append(e.Recommendations,
			fmt.Sprintf("Há mais %d registros; refine os filtros ou continue a partir do offset %d.", m.Total-m.Offset-m.Returned, m.Offset+m.Returned))
	}
	if spec.StatusColumn != "" {
		if n := countStatus(out.Data, spec.StatusColumn, delayedStatuses); n > 0 {
			e.Recommendations = append(e.Recommendations, fmt.Sprintf("%d registro(s) com atraso exigem atenção.", n))
		}
	}

	if len(e.Insights) == 0 && len(e.Trends) == 0 && len(e.Recommendations) == 0 {
		return nil
	}
	return e
}

// statusInsight names the most frequent status among the returned records.
func statusInsight(data []contract.Record, column string) string {
	counts := make(map[string]int)
	for _, rec := range data {
		if s, ok := rec[column].(string); ok && s != "" {
			counts[s]++
		}
	}
	if len(counts) == 0 {
		return ""
	}
	statuses := slices.Sorted(maps.Keys(counts))
	top := statuses[0]
	for _, s := range statuses[1:] {
		if counts[s] > counts[top] {
			top = s
		}
	}
	return fmt.Sprintf("Status mais frequente: %s (%d de %d registros exibidos).", top, counts[top], len(data))
}

func countStatus(data []contract.Record, column string, statuses []string) int {
	n := 0
	for _, rec := range data {
		if s, ok := rec[column].(string); ok && slices.Contains(statuses, strings.ToLower(s)) {
			n++
		}
	}
	return n
}

// trend compares the first and last buckets of a chronological series. Values win over
// counts when the aggregation carries them.
func trend(metric string, groups []contract.AggregationGroup) (contract.Trend, bool) {
	if len(groups) < 2 {
		return contract.Trend{}, false
	}
	series := slices.Clone(groups)
	sort.SliceStable(series, func(i, j int) bool { return series[i].Key < series[j].Key })

	first, last := series[0], series[len(series)-1]
	a, b := groupMeasure(first), groupMeasure(last)
	if a == 0 {
		return contract.Trend{}, false
	}

	change := math.Round((b-a)/math.Abs(a)*1000) / 10
	dir := contract.TrendStable
	switch {
	case change > trendThreshold:
		dir = contract.TrendUp
	case change < -trendThreshold:
		dir = contract.TrendDown
	}
	return contract.Trend{
		Metric:    metric,
		Direction: dir,
		Change:    change,
		Period:    first.Key + " a " + last.Key,
	}, true
}

func groupMeasure(g contract.AggregationGroup) float64 {
	if g.Value != nil {
		return *g.Value
	}
	return float64(g.Count)
}

func displayKey(k string) string {
	if k == "" {
		return "(vazio)"
	}
	return k
}
