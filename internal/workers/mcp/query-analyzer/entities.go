package queryanalyzer

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"mcp-frete-sistema/internal/common/textnorm"
	"mcp-frete-sistema/internal/contract"
)

type entityRule struct {
	typ        contract.EntityType
	re         *regexp.Regexp
	group      int // submatch carrying the value, 0 for the whole match
	confidence float64
	normalize  func(value string) (string, bool)
}

var entityRules = []entityRule{
	{
		typ:        contract.EntityCNPJ,
		re:         regexp.MustCompile(`\b\d{2}\.?\d{3}\.?\d{3}/?\d{4}-?\d{2}\b`),
		confidence: 0.95,
		normalize:  normalizeCNPJ,
	},
	{
		typ:        contract.EntityOrderNumber,
		re:         regexp.MustCompile(`(?i)\b(?:pedido|order)\s*(?:n[º°o]\.?\s*)?#?\s*(\d{3,10})\b`),
		group:      1,
		confidence: 0.9,
	},
	{
		typ:        contract.EntityInvoiceNumber,
		re:         regexp.MustCompile(`(?i)\b(?:nf-?e?|nota(?:\s+fiscal)?|invoice)\s*(?:n[º°o]\.?\s*)?#?\s*(\d{3,9})\b`),
		group:      1,
		confidence: 0.9,
	},
	{
		typ:        contract.EntityAmount,
		re:         regexp.MustCompile(`R\$\s*(\d{1,3}(?:\.\d{3})+(?:,\d{1,2})?|\d+(?:,\d{1,2})?)`),
		confidence: 0.9,
		normalize:  normalizeAmount,
	},
	{
		typ:        contract.EntityDate,
		re:         regexp.MustCompile(`\b\d{2}/\d{2}/\d{4}\b`),
		confidence: 0.95,
		normalize:  normalizeBRDate,
	},
	{
		typ:        contract.EntityUF,
		re:         regexp.MustCompile(`\b(?:AC|AL|AP|AM|BA|CE|DF|ES|GO|MA|MT|MS|MG|PA|PB|PR|PE|PI|RJ|RN|RS|RO|RR|SC|SP|SE|TO)\b`),
		confidence: 0.8,
	},
	{
		typ:        contract.EntityStatus,
		re:         regexp.MustCompile(`(?i)\b(?:pendentes?|aprovad[oa]s?|em\s+tr[âa]nsito|entregues?|conclu[íi]d[oa]s?|finalizad[oa]s?|cancelad[oa]s?|atrasad[oa]s?)\b`),
		confidence: 0.85,
		normalize:  normalizeStatus,
	},
}

type match struct {
	entity    contract.Entity
	byteStart int
	byteEnd   int
}

// extractEntities finds the known entity patterns in query. Overlapping matches keep the
// earlier rule; results are ordered by position.
func extractEntities(query string) []contract.Entity {
	var found []match
	for _, rule := range entityRules {
		for _, loc := range rule.re.FindAllStringSubmatchIndex(query, -1) {
			start, end := loc[2*rule.group], loc[2*rule.group+1]
			if start < 0 || overlaps(found, start, end) {
				continue
			}
			value := query[start:end]
			e := contract.Entity{
				Type:  rule.typ,
				Value: value,
				Position: contract.Span{
					Start: contract.UTF16Offset(query, start),
					End:   contract.UTF16Offset(query, end),
				},
				Confidence: floatPtr(rule.confidence),
			}
			if rule.normalize != nil {
				norm, ok := rule.normalize(value)
				if !ok {
					continue
				}
				e.Normalized = norm
			}
			found = append(found, match{entity: e, byteStart: start, byteEnd: end})
		}
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].byteStart < found[j].byteStart })
	out := make([]contract.Entity, len(found))
	for i, m := range found {
		out[i] = m.entity
	}
	return out
}

func overlaps(found []match, start, end int) bool {
	for _, m := range found {
		if start < m.byteEnd && m.byteStart < end {
			return true
		}
	}
	return false
}

func normalizeCNPJ(v string) (string, bool) {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, v)
	return digits, len(digits) == 14
}

func normalizeAmount(v string) (string, bool) {
	v = strings.TrimSpace(strings.TrimPrefix(v, "R$"))
	v = strings.ReplaceAll(v, ".", "")
	v = strings.Replace(v, ",", ".", 1)
	return v, v != ""
}

func normalizeBRDate(v string) (string, bool) {
	t, err := time.Parse("02/01/2006", v)
	if err != nil {
		return "", false
	}
	return t.Format(contract.ISODate), true
}

var statusStems = []struct {
	stem   string
	status contract.Status
}{
	{"pendente", contract.StatusPending},
	{"aprovad", contract.StatusApproved},
	{"em transito", contract.StatusInTransit},
	{"entregue", contract.StatusDelivered},
	{"concluid", contract.StatusCompleted},
	{"finalizad", contract.StatusCompleted},
	{"cancelad", contract.StatusCancelled},
	{"atrasad", contract.StatusDelayed},
}

func normalizeStatus(v string) (string, bool) {
	folded := strings.Join(strings.Fields(textnorm.Fold(v)), " ")
	for _, s := range statusStems {
		if strings.HasPrefix(folded, s.stem) {
			return string(s.status), true
		}
	}
	return "", false
}

func floatPtr(f float64) *float64 { return &f }
