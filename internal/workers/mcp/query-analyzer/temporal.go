package queryanalyzer

import (
	"regexp"
	"sort"
	"strconv"
	"time"

	"mcp-frete-sistema/internal/contract"
)

type dateRange struct {
	start, end time.Time
}

type temporalRule struct {
	re      *regexp.Regexp
	typ     contract.TemporalType
	resolve func(today time.Time, m []string) (dateRange, bool)
}

var temporalRules = []temporalRule{
	{
		re:  regexp.MustCompile(`(?i)[úu]ltim[oa]s\s+(\d{1,3})\s+dias\b`),
		typ: contract.TemporalRange,
		resolve: func(today time.Time, m []string) (dateRange, bool) {
			n, err := strconv.Atoi(m[1])
			if err != nil || n <= 0 {
				return dateRange{}, false
			}
			return dateRange{today.AddDate(0, 0, -(n - 1)), today}, true
		},
	},
	{
		re:  regexp.MustCompile(`(?i)\bsemana\s+passada\b`),
		typ: contract.TemporalRange,
		resolve: func(today time.Time, _ []string) (dateRange, bool) {
			monday := weekStart(today).AddDate(0, 0, -7)
			return dateRange{monday, monday.AddDate(0, 0, 6)}, true
		},
	},
	{
		re:  regexp.MustCompile(`(?i)\b(?:esta|essa|desta|dessa|nesta|nessa)\s+semana\b`),
		typ: contract.TemporalRange,
		resolve: func(today time.Time, _ []string) (dateRange, bool) {
			monday := weekStart(today)
			return dateRange{monday, monday.AddDate(0, 0, 6)}, true
		},
	},
	{
		re:  regexp.MustCompile(`(?i)\bm[êe]s\s+passado\b`),
		typ: contract.TemporalRange,
		resolve: func(today time.Time, _ []string) (dateRange, bool) {
			first := monthStart(today).AddDate(0, -1, 0)
			return dateRange{first, first.AddDate(0, 1, -1)}, true
		},
	},
	{
		re:  regexp.MustCompile(`(?i)\b(?:este|esse|deste|desse|neste|nesse)\s+m[êe]s\b`),
		typ: contract.TemporalRange,
		resolve: func(today time.Time, _ []string) (dateRange, bool) {
			first := monthStart(today)
			return dateRange{first, first.AddDate(0, 1, -1)}, true
		},
	},
	{
		re:  regexp.MustCompile(`(?i)\bhoje\b`),
		typ: contract.TemporalRelative,
		resolve: func(today time.Time, _ []string) (dateRange, bool) {
			return dateRange{today, today}, true
		},
	},
	{
		re:  regexp.MustCompile(`(?i)\bontem\b`),
		typ: contract.TemporalRelative,
		resolve: func(today time.Time, _ []string) (dateRange, bool) {
			d := today.AddDate(0, 0, -1)
			return dateRange{d, d}, true
		},
	},
	{
		// no trailing \b: "ã" is not an ASCII word character
		re:  regexp.MustCompile(`(?i)\bamanh[ãa]`),
		typ: contract.TemporalRelative,
		resolve: func(today time.Time, _ []string) (dateRange, bool) {
			d := today.AddDate(0, 0, 1)
			return dateRange{d, d}, true
		},
	},
	{
		re:  regexp.MustCompile(`\b(\d{2}/\d{2}/\d{4})\b`),
		typ: contract.TemporalAbsolute,
		resolve: func(_ time.Time, m []string) (dateRange, bool) {
			d, err := time.Parse("02/01/2006", m[1])
			if err != nil {
				return dateRange{}, false
			}
			return dateRange{d, d}, true
		},
	},
}

// resolveTemporal finds the temporal expressions in query and resolves each to an ISO
// date range relative to now.
func resolveTemporal(query string, now time.Time) contract.TemporalAnalysis {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	type located struct {
		ref   contract.TemporalReference
		start int
		end   int
	}
	var found []located

	for _, rule := range temporalRules {
		for _, loc := range rule.re.FindAllStringSubmatchIndex(query, -1) {
			start, end := loc[0], loc[1]
			if overlapping(found, start, end, func(l located) (int, int) { return l.start, l.end }) {
				continue
			}
			groups := make([]string, len(loc)/2)
			for g := range groups {
				if loc[2*g] >= 0 {
					groups[g] = query[loc[2*g]:loc[2*g+1]]
				}
			}
			r, ok := rule.resolve(today, groups)
			if !ok {
				continue
			}
			found = append(found, located{
				ref: contract.TemporalReference{
					Type:  rule.typ,
					Text:  query[start:end],
					Start: r.start.Format(contract.ISODate),
					End:   r.end.Format(contract.ISODate),
					Position: &contract.Span{
						Start: contract.UTF16Offset(query, start),
						End:   contract.UTF16Offset(query, end),
					},
				},
				start: start,
				end:   end,
			})
		}
	}

	if len(found) == 0 {
		return contract.TemporalAnalysis{Detected: false}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].start < found[j].start })
	refs := make([]contract.TemporalReference, len(found))
	for i, f := range found {
		refs[i] = f.ref
	}
	return contract.TemporalAnalysis{Detected: true, References: refs}
}

func overlapping[T any](items []T, start, end int, bounds func(T) (int, int)) bool {
	for _, it := range items {
		s, e := bounds(it)
		if start < e && s < end {
			return true
		}
	}
	return false
}

// weekStart returns the Monday of the week containing d.
func weekStart(d time.Time) time.Time {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

func monthStart(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, d.Location())
}
