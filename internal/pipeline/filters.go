package pipeline

import (
	"slices"
	"strings"

	"mcp-frete-sistema/internal/contract"
)

// FiltersFromAnalysis turns an analysis into the load request for its domain. The target is
// the primary domain when loadable, else the first loadable secondary, else fallback.
func FiltersFromAnalysis(a *contract.QueryAnalyzerOutput, fallback contract.Domain, limit *int) *contract.DataLoaderInput {
	in := &contract.DataLoaderInput{Domain: targetDomain(a, fallback)}
	f := &contract.LoadFilters{}

	for _, e := range a.Entities {
		value := e.Normalized
		if value == "" {
			value = e.Value
		}
		switch e.Type {
		case contract.EntityOrderNumber:
			if !slices.Contains(f.IDs, value) {
				f.IDs = append(f.IDs, value)
			}
		case contract.EntityInvoiceNumber:
			// invoice numbers are never primary keys; the first one filters the nf column
			if key := filterKey(in.Domain, "_nf"); key != "" {
				if _, seen := f.CustomFilters[key]; !seen {
					if f.CustomFilters == nil {
						f.CustomFilters = contract.ScalarMap{}
					}
					f.CustomFilters[key] = contract.StringValue(value)
				}
			}
		case contract.EntityStatus:
			if s := contract.Status(value); s.Valid() && !slices.Contains(f.Status, s) {
				f.Status = append(f.Status, s)
			}
		case contract.EntityCNPJ:
			if key := filterKey(in.Domain, "cnpj"); key != "" {
				if f.CustomFilters == nil {
					f.CustomFilters = contract.ScalarMap{}
				}
				f.CustomFilters[key] = contract.StringValue(value)
			}
		}
	}

	if a.Temporal.Detected {
		for _, ref := range a.Temporal.References {
			if ref.Start != "" || ref.End != "" {
				f.DateRange = &contract.DateRange{Start: ref.Start, End: ref.End}
				break
			}
		}
	}

	if len(f.IDs) > 0 || len(f.Status) > 0 || f.DateRange != nil || len(f.CustomFilters) > 0 {
		in.Filters = f
	}
	if limit != nil {
		in.Options = &contract.LoadOptions{Limit: limit}
	}
	return in
}

func targetDomain(a *contract.QueryAnalyzerOutput, fallback contract.Domain) contract.Domain {
	if a.Domain.Primary.Loadable() {
		return a.Domain.Primary
	}
	for _, d := range a.Domain.Secondary {
		if d.Loadable() {
			return d
		}
	}
	return fallback
}

// filterKey returns the domain's custom filter whose key contains part, or "" when it has
// none.
func filterKey(d contract.Domain, part string) string {
	for _, k := range contract.CustomFilterKeys(d) {
		if strings.Contains(k, part) {
			return k
		}
	}
	return ""
}
