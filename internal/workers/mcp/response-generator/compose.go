package responsegenerator

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"

	apperrors "mcp-frete-sistema/internal/common/errors"
	"mcp-frete-sistema/internal/contract"
)

// warnChange is the trend change, in percent, that earns a warning.
const warnChange = 20.0

type path string

const (
	pathError   path = "error"
	pathEmpty   path = "empty"
	pathSuccess path = "success"
)

func responseDomain(in *contract.ResponseGeneratorInput) contract.Domain {
	if in.Data.Metadata.Domain != "" {
		return in.Data.Metadata.Domain
	}
	return in.Analysis.Domain.Primary
}

// withUserMessages fills UserMessage on every error that lacks one.
func withUserMessages(errs []contract.ToolError) []contract.ToolError {
	out := make([]contract.ToolError, len(errs))
	for i, e := range errs {
		if e.UserMessage == "" {
			e.UserMessage = apperrors.UserMessageFor(e.Code)
		}
		out[i] = e
	}
	return out
}

func distinctUserMessages(errs []contract.ToolError) []string {
	var out []string
	for _, e := range errs {
		if e.UserMessage != "" && !slices.Contains(out, e.UserMessage) {
			out = append(out, e.UserMessage)
		}
	}
	return out
}

func errorSummary(errs []contract.ToolError) string {
	msgs := distinctUserMessages(errs)
	if len(msgs) == 0 {
		return "Não foi possível concluir a consulta."
	}
	return "Não foi possível concluir a consulta. " + strings.Join(msgs, " ")
}

func emptySummary(d contract.Domain) string {
	return fmt.Sprintf("Nenhum registro de %s encontrado para a consulta.", domainLabel(d))
}

// successSummary is the deterministic headline of a load.
func successSummary(in *contract.ResponseGeneratorInput, style contract.ResponseStyle) string {
	meta := in.Data.Metadata
	var b strings.Builder
	if style == contract.StyleCasual {
		b.WriteString("Pronto! ")
	}
	fmt.Fprintf(&b, "Encontrei %s registro(s) de %s.", formatCount(meta.Total), domainLabel(responseDomain(in)))
	if meta.Returned < meta.Total {
		fmt.Fprintf(&b, " Exibindo %s a partir da posição %s.", formatCount(meta.Returned), formatCount(meta.Offset+1))
	}

	if style != contract.StyleExecutive {
		for _, key := range slices.Sorted(maps.Keys(in.Data.Aggregations)) {
			agg := in.Data.Aggregations[key]
			if agg.Value == nil {
				continue
			}
			fmt.Fprintf(&b, " %s: %s.", key, formatValue(agg.Field, *agg.Value))
		}
	}
	if style == contract.StyleTechnical && meta.Source != "" {
		fmt.Fprintf(&b, " Fonte: %s, %d ms", meta.Source, meta.ExecutionTime)
		if meta.Cached {
			b.WriteString(", cache")
		}
		b.WriteString(".")
	}
	return b.String()
}

func insightsOf(in *contract.ResponseGeneratorInput) []string {
	if e := in.Data.Enrichments; e != nil {
		return e.Insights
	}
	return nil
}

func recommendationsOf(in *contract.ResponseGeneratorInput) []string {
	if e := in.Data.Enrichments; e != nil {
		return e.Recommendations
	}
	return nil
}

func trendWarnings(in *contract.ResponseGeneratorInput) []string {
	e := in.Data.Enrichments
	if e == nil {
		return nil
	}
	var out []string
	for _, t := range e.Trends {
		if math.Abs(t.Change) < warnChange {
			continue
		}
		line := fmt.Sprintf("%s variou %+.1f%%", t.Metric, t.Change)
		if t.Period != "" {
			line += " (" + t.Period + ")"
		}
		out = append(out, line+".")
	}
	return out
}

func buildSections(p path, in *contract.ResponseGeneratorInput, format contract.ResponseFormat, summary string, doc *document, errs []contract.ToolError) ([]contract.Section, error) {
	sections := []contract.Section{{Type: contract.SectionSummary, Title: "Resumo", Content: summary, Priority: contract.PriorityHigh}}

	if p == pathError {
		if msgs := distinctUserMessages(errs); len(msgs) > 0 {
			sections = append(sections, contract.Section{Type: contract.SectionWarnings, Title: "Atenção", Content: bullets(msgs), Priority: contract.PriorityHigh})
		}
		return sections, nil
	}

	if len(doc.Rows) > 0 && format != contract.FormatText {
		table, err := renderTable(format, doc)
		if err != nil {
			return nil, err
		}
		sections = append(sections, contract.Section{Type: contract.SectionTable, Title: "Registros", Content: table, Priority: contract.PriorityMedium})
	}
	if insights := insightsOf(in); len(insights) > 0 {
		sections = append(sections, contract.Section{Type: contract.SectionInsights, Title: "Destaques", Content: bullets(insights), Priority: contract.PriorityMedium})
	}
	if recs := recommendationsOf(in); len(recs) > 0 {
		sections = append(sections, contract.Section{Type: contract.SectionRecommendations, Title: "Recomendações", Content: bullets(recs), Priority: contract.PriorityLow})
	}
	if warnings := trendWarnings(in); len(warnings) > 0 {
		sections = append(sections, contract.Section{Type: contract.SectionWarnings, Title: "Atenção", Content: bullets(warnings), Priority: contract.PriorityHigh})
	}
	for _, key := range slices.Sorted(maps.Keys(in.Data.Aggregations)) {
		agg := in.Data.Aggregations[key]
		if agg.Type != contract.AggGroupBy || len(agg.Groups) == 0 {
			continue
		}
		lines := make([]string, len(agg.Groups))
		for i, g := range agg.Groups {
			lines[i] = fmt.Sprintf("%s: %d", displayGroup(g.Key), g.Count)
			if g.Value != nil {
				lines[i] += " (" + formatValue(agg.Field, *g.Value) + ")"
			}
		}
		sections = append(sections, contract.Section{
			Type:     contract.SectionChart,
			Title:    "Distribuição por " + agg.Field,
			Content:  strings.Join(lines, "\n"),
			Priority: contract.PriorityLow,
		})
	}
	return sections, nil
}

func displayGroup(key string) string {
	if key == "" {
		return "(vazio)"
	}
	return key
}

func buildActions(in *contract.ResponseGeneratorInput) []contract.Action {
	domain := responseDomain(in)
	meta := in.Data.Metadata
	var actions []contract.Action

	if domain.Loadable() {
		base := "/" + string(domain)
		if len(in.Data.Data) > 0 {
			actions = append(actions, contract.Action{Type: contract.ActionTypeExport, Label: "Exportar " + domainLabel(domain), Target: base + "/exportar"})
		}
		if meta.HasMore {
			actions = append(actions, contract.Action{
				Type:   contract.ActionTypeFilter,
				Label:  "Refinar filtros",
				Target: base,
				Params: contract.ScalarMap{"offset": contract.NumberValue(float64(meta.Offset + meta.Returned))},
			})
		}
		actions = append(actions, contract.Action{Type: contract.ActionTypeNavigate, Label: "Abrir " + domainLabel(domain), Target: base})
		if in.Analysis.Intent.Primary == contract.IntentCreate {
			actions = append(actions, contract.Action{Type: contract.ActionTypeCreate, Label: "Criar registro", Target: base + "/novo"})
		}
	}
	if in.Analysis.Intent.Primary == contract.IntentMonitor {
		actions = append(actions, contract.Action{Type: contract.ActionTypeRefresh, Label: "Atualizar"})
	}
	return actions
}

var intentSuggestions = map[contract.Intent][]string{
	contract.IntentQuery:   {"Filtrar %s por período", "Ver %s com atraso"},
	contract.IntentReport:  {"Gerar relatório mensal de %s", "Comparar %s com o mês anterior"},
	contract.IntentMonitor: {"Ver alertas de %s", "Acompanhar %s de hoje"},
	contract.IntentCreate:  {"Ver %s criados hoje"},
	contract.IntentUpdate:  {"Ver histórico de alterações de %s"},
	contract.IntentDelete:  {"Ver %s cancelados"},
	contract.IntentHelp:    {"Quais consultas posso fazer sobre %s?"},
}

func buildFollowUp(in *contract.ResponseGeneratorInput, max int) *contract.FollowUp {
	if max <= 0 {
		return nil
	}
	domain := responseDomain(in)
	label := domainLabel(domain)

	var suggestions []string
	if in.Data.Metadata.HasMore {
		suggestions = append(suggestions, "Mostrar os próximos registros")
	}
	for _, s := range intentSuggestions[in.Analysis.Intent.Primary] {
		suggestions = append(suggestions, fmt.Sprintf(s, label))
	}

	var related []string
	for _, d := range in.Analysis.Domain.Secondary {
		if d == domain || !d.Loadable() {
			continue
		}
		related = append(related, fmt.Sprintf("Ver %s relacionados", domainLabel(d)))
	}

	if len(suggestions) > max {
		suggestions = suggestions[:max]
	}
	if len(related) > max {
		related = related[:max]
	}
	if len(suggestions) == 0 && len(related) == 0 {
		return nil
	}
	return &contract.FollowUp{Suggestions: suggestions, RelatedQueries: related}
}
