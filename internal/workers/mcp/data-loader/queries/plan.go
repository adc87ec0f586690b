package queries

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	apperrors "mcp-frete-sistema/internal/common/errors"
	"mcp-frete-sistema/internal/contract"
)

const unsupportedMessage = "Parte da consulta não se aplica a este tipo de dado e foi ignorada."

// MaxGroups bounds the buckets returned by a group_by aggregation.
const MaxGroups = 50

// Page is the effective window of a load after defaults and clamping.
type Page struct {
	Limit  int
	Offset int
}

type CustomFilter struct {
	Column string
	Op     string // "=", ">=" or "<="
	Value  interface{}
}

// Plan is a load request resolved against a DomainSpec. Everything it references is a
// registry column; the parts of the request the domain cannot serve are listed in Issues.
type Plan struct {
	Spec         *DomainSpec
	IDs          []string
	Statuses     []string
	DateColumn   string
	From, To     string
	Search       string
	Custom       []CustomFilter
	OrderColumn  string
	Descending   bool
	Page         Page
	Aggregations []contract.Aggregation
	Issues       []contract.ToolError
}

// NewPlan resolves in for the domain's spec. The input is assumed to have passed
// contract validation.
func NewPlan(spec *DomainSpec, in *contract.DataLoaderInput, page Page) *Plan {
	p := &Plan{
		Spec:        spec,
		Page:        page,
		OrderColumn: spec.DefaultOrder,
		Descending:  true,
	}

	if f := in.Filters; f != nil {
		p.IDs = f.IDs
		p.resolveStatus(f.Status)
		p.resolveDateRange(f.DateRange)
		if f.Search != nil {
			p.Search = strings.TrimSpace(*f.Search)
		}
		p.resolveCustom(f.CustomFilters)
	}

	if o := in.Options; o != nil && o.OrderBy != nil {
		if spec.CanOrderBy(o.OrderBy.Field) {
			p.OrderColumn = o.OrderBy.Field
			p.Descending = o.OrderBy.Direction != contract.OrderAsc
		} else {
			p.unsupported("options.orderBy.field", o.OrderBy.Field)
		}
	}

	for i, a := range in.Aggregations {
		if field, value, ok := p.checkAggregation(a); !ok {
			p.unsupported(fmt.Sprintf("aggregations[%d].%s", i, field), value)
			continue
		}
		p.Aggregations = append(p.Aggregations, a)
	}
	return p
}

func (p *Plan) resolveStatus(statuses []contract.Status) {
	if len(statuses) == 0 {
		return
	}
	if p.Spec.StatusColumn == "" {
		p.unsupported("filters.status", "status")
		return
	}
	for _, s := range statuses {
		p.Statuses = append(p.Statuses, string(s))
	}
}

func (p *Plan) resolveDateRange(dr *contract.DateRange) {
	if dr == nil || (dr.Start == "" && dr.End == "") {
		return
	}
	field := dr.Field
	if field == "" {
		field = contract.DateFieldCreatedAt
	}
	col, ok := p.Spec.DateColumns[field]
	if !ok {
		p.unsupported("filters.dateRange.field", string(field))
		return
	}
	p.DateColumn = col
	p.From = dateOnly(dr.Start)
	p.To = dateOnly(dr.End)
}

func (p *Plan) resolveCustom(filters contract.ScalarMap) {
	for _, key := range slices.Sorted(maps.Keys(filters)) {
		if _, ok := contract.CustomFilterKind(p.Spec.Domain, key); !ok {
			p.unsupported("filters.customFilters."+key, key)
			continue
		}
		col, op := contract.CustomFilterColumn(key)
		p.Custom = append(p.Custom, CustomFilter{Column: col, Op: op, Value: filters[key].Interface()})
	}
}

// checkAggregation returns the offending field and value when a is not servable.
func (p *Plan) checkAggregation(a contract.Aggregation) (string, string, bool) {
	switch {
	case a.Type == contract.AggGroupBy && !p.Spec.CanGroupBy(a.GroupBy):
		return "groupBy", a.GroupBy, false
	case a.Type == contract.AggGroupBy && a.Field != "" && !p.Spec.IsNumeric(a.Field):
		return "field", a.Field, false
	case a.Type.NeedsField() && !p.Spec.IsNumeric(a.Field):
		return "field", a.Field, false
	case a.Type == contract.AggCount && a.Field != "" && !p.Spec.HasColumn(a.Field):
		return "field", a.Field, false
	}
	return "", "", true
}

func (p *Plan) unsupported(field, value string) {
	p.Issues = append(p.Issues, apperrors.ToToolError(
		apperrors.NewUnsupportedFieldError(string(p.Spec.Domain), field, value),
		unsupportedMessage,
	))
}

// dateOnly keeps the day part of an ISO date or timestamp.
func dateOnly(s string) string {
	if len(s) > len(contract.ISODate) {
		if t, ok := contract.ParseDate(s); ok {
			return t.Format(contract.ISODate)
		}
	}
	return s
}
