package contract

import (
	"encoding/json"
	"strings"

	"mcp-frete-sistema/internal/common/validation"
)

type DataLoaderInput struct {
	Domain       Domain        `json:"domain"`
	Filters      *LoadFilters  `json:"filters,omitempty"`
	Options      *LoadOptions  `json:"options,omitempty"`
	Aggregations []Aggregation `json:"aggregations,omitempty"`
}

// LoadFilters narrows a load. Search is a pointer so that an explicit empty string can be
// told apart from no search at all.
type LoadFilters struct {
	IDs           []string   `json:"ids,omitempty"`
	DateRange     *DateRange `json:"dateRange,omitempty"`
	Status        []Status   `json:"status,omitempty"`
	Search        *string    `json:"search,omitempty"`
	CustomFilters ScalarMap  `json:"customFilters,omitempty"`
}

type DateRange struct {
	Start string    `json:"start,omitempty"`
	End   string    `json:"end,omitempty"`
	Field DateField `json:"field,omitempty"`
}

type LoadOptions struct {
	Limit    *int     `json:"limit,omitempty"`
	Offset   *int     `json:"offset,omitempty"`
	OrderBy  *OrderBy `json:"orderBy,omitempty"`
	Enrich   *bool    `json:"enrich,omitempty"`
	UseCache *bool    `json:"useCache,omitempty"`
}

type OrderBy struct {
	Field     string         `json:"field"`
	Direction OrderDirection `json:"direction,omitempty"`
}

type Aggregation struct {
	Type    AggregationType `json:"type"`
	Field   string          `json:"field,omitempty"`
	GroupBy string          `json:"groupBy,omitempty"`
	Alias   string          `json:"alias,omitempty"`
}

// Key is the name the aggregation result is reported under.
func (a Aggregation) Key() string {
	switch {
	case a.Alias != "":
		return a.Alias
	case a.Type == AggGroupBy:
		return "group_by_" + a.GroupBy
	case a.Field != "":
		return string(a.Type) + "_" + a.Field
	default:
		return string(a.Type)
	}
}

// Record is an opaque domain row.
type Record map[string]interface{}

type DataLoaderOutput struct {
	Data         []Record                     `json:"data"`
	Metadata     LoadMetadata                 `json:"metadata"`
	Aggregations map[string]AggregationResult `json:"aggregations,omitempty"`
	Enrichments  *Enrichments                 `json:"enrichments,omitempty"`
	Errors       []ToolError                  `json:"errors,omitempty"`
}

// MarshalJSON writes a nil Data as [] so that the output always carries its required
// record list.
func (o DataLoaderOutput) MarshalJSON() ([]byte, error) {
	type plain DataLoaderOutput
	if o.Data == nil {
		o.Data = []Record{}
	}
	return json.Marshal(plain(o))
}

type LoadMetadata struct {
	Domain        Domain `json:"domain,omitempty"`
	Total         int    `json:"total"`
	Returned      int    `json:"returned"`
	Offset        int    `json:"offset"`
	HasMore       bool   `json:"hasMore"`
	ExecutionTime int64  `json:"executionTime"`
	Cached        bool   `json:"cached"`
	Source        string `json:"source,omitempty"`
}

type AggregationResult struct {
	Type   AggregationType    `json:"type"`
	Field  string             `json:"field,omitempty"`
	Value  *float64           `json:"value,omitempty"`
	Groups []AggregationGroup `json:"groups,omitempty"`
}

type AggregationGroup struct {
	Key   string   `json:"key"`
	Count int      `json:"count"`
	Value *float64 `json:"value,omitempty"`
}

type Enrichments struct {
	Insights        []string `json:"insights,omitempty"`
	Trends          []Trend  `json:"trends,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

type Trend struct {
	Metric    string         `json:"metric"`
	Direction TrendDirection `json:"direction"`
	Change    float64        `json:"change"`
	Period    string         `json:"period,omitempty"`
}

// Complete reports whether the caller may treat Data as the full answer.
func (o *DataLoaderOutput) Complete() bool { return len(o.Errors) == 0 }

// ValidateDataLoaderInput checks the semantic rules of a load request.
func ValidateDataLoaderInput(in *DataLoaderInput) *validation.ValidationResult {
	res := validation.NewResult()
	if in == nil {
		res.Add("", validation.CodeRequiredFieldMissing, "payload is required")
		return res
	}

	switch {
	case !in.Domain.Valid():
		checkEnum(res, "domain", false, string(in.Domain), enumStrings(LoadableDomains))
	case !in.Domain.Loadable():
		res.Addf("domain", CodeDomainNotLoadable, "%s cannot be loaded, pick one of %v", in.Domain, enumStrings(LoadableDomains))
	}

	if f := in.Filters; f != nil {
		for i, s := range f.Status {
			checkEnum(res, validation.Index("filters.status", i), s.Valid(), string(s), enumStrings(AllStatuses))
		}
		if f.Search != nil && strings.TrimSpace(*f.Search) == "" {
			res.Add("filters.search", CodeEmptySearch, "search must not be empty when present")
		}
		if dr := f.DateRange; dr != nil {
			checkDateRange(res, "filters.dateRange", dr.Start, dr.End)
			if dr.Field != "" {
				checkEnum(res, "filters.dateRange.field", dr.Field.Valid(), string(dr.Field), enumStrings(AllDateFields))
			}
		}
		if len(f.CustomFilters) > 0 && in.Domain.Loadable() {
			validateCustomFilters(res, "filters.customFilters", in.Domain, f.CustomFilters)
		}
	}

	if o := in.Options; o != nil {
		if o.Limit != nil && *o.Limit < 0 {
			res.Add("options.limit", CodeNegativeLimit, "limit must not be negative")
		}
		if o.Offset != nil && *o.Offset < 0 {
			res.Add("options.offset", CodeNegativeOffset, "offset must not be negative")
		}
		if ob := o.OrderBy; ob != nil {
			if ob.Field == "" {
				res.Add("options.orderBy.field", validation.CodeRequiredFieldMissing, "orderBy.field is required")
			}
			if ob.Direction != "" {
				checkEnum(res, "options.orderBy.direction", ob.Direction.Valid(), string(ob.Direction), enumStrings(AllOrderDirections))
			}
		}
	}

	seen := make(map[string]bool)
	for i, a := range in.Aggregations {
		field := validation.Index("aggregations", i)
		if !a.Type.Valid() {
			checkEnum(res, field+".type", false, string(a.Type), enumStrings(AllAggregationTypes))
			continue
		}
		if a.Type == AggGroupBy && a.GroupBy == "" {
			res.Add(field+".groupBy", CodeGroupByRequired, "groupBy is required for group_by aggregations")
		}
		if a.Type.NeedsField() && a.Field == "" {
			res.Addf(field+".field", CodeAggregationFieldRequired, "field is required for %s aggregations", a.Type)
		}
		key := a.Key()
		if seen[key] {
			res.Addf(field+".alias", CodeDuplicateAggregationAlias, "aggregation %q is defined twice", key)
		}
		seen[key] = true
	}
	return res
}

// ValidateDataLoaderOutput checks the paging arithmetic and the shape of a load result.
func ValidateDataLoaderOutput(out *DataLoaderOutput) *validation.ValidationResult {
	res := validation.NewResult()
	if out == nil {
		res.Add("", validation.CodeRequiredFieldMissing, "payload is required")
		return res
	}

	m := out.Metadata
	if m.Domain != "" && !m.Domain.Loadable() {
		res.Addf("metadata.domain", CodeDomainNotLoadable, "%s is not a data domain", m.Domain)
	}
	if m.Returned != len(out.Data) {
		res.Addf("metadata.returned", CodeReturnedMismatch, "returned is %d but data has %d records", m.Returned, len(out.Data))
	}
	if m.Total < m.Returned {
		res.Addf("metadata.total", CodeTotalLessThanReturned, "total %d is less than returned %d", m.Total, m.Returned)
	}
	if m.Offset < 0 {
		res.Add("metadata.offset", CodeNegativeOffset, "offset must not be negative")
	}
	if want := m.Offset+m.Returned < m.Total; m.HasMore != want {
		res.Addf("metadata.hasMore", CodeHasMoreInconsistent, "hasMore is %t but offset+returned=%d and total=%d", m.HasMore, m.Offset+m.Returned, m.Total)
	}
	if m.ExecutionTime < 0 {
		res.Add("metadata.executionTime", CodeNegativeValue, "executionTime must not be negative")
	}

	for _, alias := range sortedKeys(out.Aggregations) {
		agg := out.Aggregations[alias]
		field := validation.JoinField("aggregations", alias)
		checkEnum(res, field+".type", agg.Type.Valid(), string(agg.Type), enumStrings(AllAggregationTypes))
		for i, g := range agg.Groups {
			if g.Count < 0 {
				res.Add(validation.Index(field+".groups", i)+".count", CodeNegativeValue, "group count must not be negative")
			}
		}
	}

	if e := out.Enrichments; e != nil {
		for i, t := range e.Trends {
			checkEnum(res, validation.Index("enrichments.trends", i)+".direction", t.Direction.Valid(), string(t.Direction), enumStrings(AllTrendDirections))
		}
	}

	validateToolErrors(res, "errors", out.Errors)
	return res
}
