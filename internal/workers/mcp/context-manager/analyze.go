package contextmanager

import (
	"fmt"
	"sort"

	"mcp-frete-sistema/internal/common/textnorm"
	"mcp-frete-sistema/internal/contract"
)

const (
	maxTopics      = 5
	maxSuggestions = 5
)

var domainSuggestions = map[contract.Domain][]string{
	contract.DomainFretes:          {"Ver fretes pendentes de aprovação", "Comparar custo de frete por transportadora"},
	contract.DomainPedidos:         {"Listar pedidos sem embarque", "Ver pedidos com entrega prevista para esta semana"},
	contract.DomainEntregas:        {"Ver entregas atrasadas", "Listar entregas agendadas para amanhã"},
	contract.DomainEmbarques:       {"Ver embarques de hoje", "Listar embarques em trânsito"},
	contract.DomainFinanceiro:      {"Ver despesas a vencer", "Resumo de despesas extras do mês"},
	contract.DomainTransportadoras: {"Ranking de transportadoras por volume", "Ver transportadoras ativas"},
	contract.DomainMonitoramento:   {"Ver entregas com atraso no monitoramento", "Resumo de entregas do dia"},
}

// analyze summarizes a stored context. A nil context yields an empty analysis.
func analyze(d *contract.ContextData) *contract.ContextAnalysis {
	a := &contract.ContextAnalysis{}
	if d == nil {
		return a
	}

	var history []contract.ConversationTurn
	if d.Conversation != nil {
		history = d.Conversation.History
	}
	a.TurnCount = len(history)

	intents := make([]contract.Intent, 0, len(history))
	domains := make([]contract.Domain, 0, len(history))
	var queries []string
	for _, turn := range history {
		if turn.Intent != "" {
			intents = append(intents, turn.Intent)
		}
		if turn.Domain != "" {
			domains = append(domains, turn.Domain)
		}
		queries = append(queries, turn.Query)
	}

	a.DominantIntent = dominant(intents)
	a.DominantDomain = dominant(domains)
	if c := d.Conversation; c != nil {
		if a.DominantIntent == "" {
			a.DominantIntent = c.LastIntent
		}
		if a.DominantDomain == "" {
			a.DominantDomain = c.LastDomain
		}
	}
	if a.DominantDomain == "" && d.Domain != nil {
		a.DominantDomain = d.Domain.Focus
	}

	a.Topics = topics(queries)
	a.Suggestions = suggestions(a.DominantDomain, d.Workflow)
	return a
}

// dominant returns the most frequent value. Ties go to the most recent one.
func dominant[T comparable](values []T) T {
	var zero T
	counts := make(map[T]int)
	last := make(map[T]int)
	for i, v := range values {
		counts[v]++
		last[v] = i
	}
	best, bestCount := zero, 0
	for v, n := range counts {
		if n > bestCount || (n == bestCount && last[v] > last[best]) {
			best, bestCount = v, n
		}
	}
	return best
}

// topics ranks keywords by the number of queries they appear in.
func topics(queries []string) []string {
	counts := make(map[string]int)
	var order []string
	for _, q := range queries {
		for _, kw := range textnorm.Keywords(q, 0) {
			if counts[kw] == 0 {
				order = append(order, kw)
			}
			counts[kw]++
		}
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > maxTopics {
		order = order[:maxTopics]
	}
	return order
}

func suggestions(domain contract.Domain, w *contract.WorkflowContext) []string {
	var out []string
	if w != nil {
		for _, action := range w.PendingActions {
			out = append(out, fmt.Sprintf("Retomar pendência: %s", action))
		}
	}
	out = append(out, domainSuggestions[domain]...)
	if len(out) == 0 {
		out = append(out, "Pergunte sobre fretes, pedidos, entregas ou embarques para começar.")
	}
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}
