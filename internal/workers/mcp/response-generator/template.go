package responsegenerator

import (
	"regexp"
	"strconv"

	"mcp-frete-sistema/internal/contract"
)

var placeholder = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.\-]+)\s*\}\}`)

// renderTemplate substitutes {{path}} placeholders. Unknown paths render as "".
func renderTemplate(tmpl string, vars map[string]string) string {
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		return vars[placeholder.FindStringSubmatch(m)[1]]
	})
}

// templateVars exposes the request to templates: the query, the analysis headline, the load
// metadata, every field of the first record and each aggregation value.
func templateVars(in *contract.ResponseGeneratorInput) map[string]string {
	meta := in.Data.Metadata
	domain := meta.Domain
	if domain == "" {
		domain = in.Analysis.Domain.Primary
	}
	vars := map[string]string{
		"query":      in.Query,
		"intent":     string(in.Analysis.Intent.Primary),
		"domain":     string(domain),
		"total":      strconv.Itoa(meta.Total),
		"returned":   strconv.Itoa(meta.Returned),
		"offset":     strconv.Itoa(meta.Offset),
		"hasMore":    strconv.FormatBool(meta.HasMore),
		"confidence": strconv.FormatFloat(in.Analysis.Intent.Confidence, 'f', -1, 64),
	}
	if len(in.Data.Data) > 0 {
		for k, v := range in.Data.Data[0] {
			vars["first."+k] = formatValue(k, v)
		}
	}
	for key, agg := range in.Data.Aggregations {
		if agg.Value != nil {
			vars["aggregations."+key+".value"] = formatValue(agg.Field, *agg.Value)
		}
	}
	return vars
}
