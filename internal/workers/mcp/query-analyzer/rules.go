package queryanalyzer

import (
	"context"
	"sort"
	"strings"
	"time"

	"mcp-frete-sistema/internal/common/textnorm"
	"mcp-frete-sistema/internal/contract"
)

const (
	EngineRules = "rules"
	EngineGenAI = "genai"

	maxKeywords = 10
)

// Keyword lists match folded tokens. A trailing "*" matches by prefix.
var intentKeywords = map[contract.Intent][]string{
	contract.IntentQuery: {
		"mostr*", "list*", "ver", "veja", "busc*", "consult*", "quais", "qual", "exib*",
		"procur*", "show", "find", "get",
	},
	contract.IntentCreate: {
		"criar", "crie", "cadastr*", "inclu*", "registr*", "novo", "nova", "create", "add",
	},
	contract.IntentUpdate: {
		"atualiz*", "alter*", "modific*", "edit*", "mudar", "mude", "corrig*", "update", "change",
	},
	contract.IntentDelete: {
		"exclu*", "delet*", "remov*", "apag*", "delete", "remove",
	},
	contract.IntentReport: {
		"relatorio*", "report*", "resumo", "total", "totais", "quantos", "quantas", "soma",
		"media", "estatistic*", "ranking", "comparativo", "summary",
	},
	contract.IntentMonitor: {
		"monitor*", "acompanh*", "rastre*", "situacao", "atrasad*", "track*", "onde",
	},
	contract.IntentHelp: {
		"ajuda", "ajude", "help", "como", "tutorial", "explique", "explicar",
	},
}

var domainKeywords = map[contract.Domain][]string{
	contract.DomainFretes:          {"frete*", "cte*", "conhecimento*", "cotac*", "freight"},
	contract.DomainPedidos:         {"pedido*", "carteira", "separac*", "order*"},
	contract.DomainEntregas:        {"entrega", "entregas", "agendamento*", "agenda", "canhot*", "delivery", "deliveries"},
	contract.DomainEmbarques:       {"embarque*", "carregament*", "portaria", "shipment*"},
	contract.DomainFinanceiro:      {"financ*", "fatur*", "pagament*", "pagar", "despesa*", "custo*", "boleto*", "receita*"},
	contract.DomainTransportadoras: {"transportador*", "carrier*", "motorista*", "veiculo*"},
	contract.DomainMonitoramento:   {"monitor*", "rastre*", "ocorrenc*", "tracking"},
}

var sentimentKeywords = []struct {
	sentiment contract.Sentiment
	words     []string
}{
	{contract.SentimentUrgent, []string{"urgente*", "urgencia", "imediat*", "emergencia", "critico", "asap", "urgent*"}},
	{contract.SentimentNegative, []string{"problema*", "erro*", "atras*", "reclama*", "ruim", "falh*", "avaria*", "extravi*", "insatisfeit*", "pessim*"}},
	{contract.SentimentPositive, []string{"obrigad*", "otimo", "excelente", "perfeito", "parabens", "thanks", "great", "bom", "boa"}},
}

var englishMarkers = map[string]bool{
	"the": true, "show": true, "list": true, "what": true, "which": true, "how": true,
	"orders": true, "deliveries": true, "freight": true, "please": true, "last": true, "days": true,
}

// Rules is the built-in analyzer. It is deterministic for a given clock.
type Rules struct {
	now      func() time.Time
	location *time.Location
	language string
}

func NewRules(cfg *Config, now func() time.Time) *Rules {
	if now == nil {
		now = time.Now
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Rules{now: now, location: loc, language: cfg.Language}
}

func (r *Rules) Name() string { return EngineRules }

func (r *Rules) Analyze(ctx context.Context, in *contract.QueryAnalyzerInput) (*contract.QueryAnalyzerOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := textnorm.Tokens(in.Query)

	out := &contract.QueryAnalyzerOutput{
		Intent:   scoreIntent(tokens),
		Domain:   scoreDomain(tokens, in.Context),
		Entities: extractEntities(in.Query),
		Temporal: resolveTemporal(in.Query, r.now().In(r.location)),
		Semantic: contract.SemanticAnalysis{
			Sentiment: detectSentiment(tokens),
			Keywords:  textnorm.Keywords(in.Query, maxKeywords),
			Language:  r.detectLanguage(tokens, in.Options),
		},
		Metadata: &contract.AnalysisMetadata{Engine: EngineRules},
	}
	return out, nil
}

func matchesKeyword(token, keyword string) bool {
	if stem, ok := strings.CutSuffix(keyword, "*"); ok {
		return strings.HasPrefix(token, stem)
	}
	return token == keyword
}

func countMatches(tokens, keywords []string) int {
	n := 0
	for _, tok := range tokens {
		for _, kw := range keywords {
			if matchesKeyword(tok, kw) {
				n++
				break
			}
		}
	}
	return n
}

type scored[T comparable] struct {
	value T
	score int
}

// rank scores every candidate and returns the ones with a positive score, best first. Ties
// keep the canonical order of candidates.
func rank[T comparable](candidates []T, keywords map[T][]string, tokens []string) ([]scored[T], int) {
	var out []scored[T]
	sum := 0
	for _, c := range candidates {
		if s := countMatches(tokens, keywords[c]); s > 0 {
			out = append(out, scored[T]{c, s})
			sum += s
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].score > out[j].score })
	return out, sum
}

func confidence(top, sum int) float64 {
	return round2(0.6 + 0.35*float64(top)/float64(sum))
}

func scoreIntent(tokens []string) contract.IntentAnalysis {
	ranked, sum := rank(contract.AllIntents, intentKeywords, tokens)
	if len(ranked) == 0 {
		return contract.IntentAnalysis{Primary: contract.IntentQuery, Confidence: 0.4}
	}
	ia := contract.IntentAnalysis{
		Primary:    ranked[0].value,
		Confidence: confidence(ranked[0].score, sum),
	}
	for _, s := range ranked[1:] {
		ia.Secondary = append(ia.Secondary, s.value)
	}
	return ia
}

func scoreDomain(tokens []string, qc *contract.QueryContext) contract.DomainAnalysis {
	ranked, sum := rank(contract.LoadableDomains, domainKeywords, tokens)
	if len(ranked) == 0 {
		if qc != nil && qc.CurrentDomain.Loadable() {
			return contract.DomainAnalysis{Primary: qc.CurrentDomain, Confidence: 0.5}
		}
		return contract.DomainAnalysis{Primary: contract.DomainMulti, Confidence: 0.2}
	}

	if len(ranked) > 1 && ranked[1].score == ranked[0].score {
		da := contract.DomainAnalysis{Primary: contract.DomainMulti, Confidence: 0.5}
		for _, s := range ranked {
			da.Secondary = append(da.Secondary, s.value)
		}
		return da
	}

	da := contract.DomainAnalysis{
		Primary:    ranked[0].value,
		Confidence: confidence(ranked[0].score, sum),
	}
	for _, s := range ranked[1:] {
		da.Secondary = append(da.Secondary, s.value)
	}
	return da
}

func detectSentiment(tokens []string) contract.Sentiment {
	for _, s := range sentimentKeywords {
		if countMatches(tokens, s.words) > 0 {
			return s.sentiment
		}
	}
	return contract.SentimentNeutral
}

func (r *Rules) detectLanguage(tokens []string, opts *contract.AnalyzerOptions) string {
	if opts != nil && opts.Language != "" {
		return opts.Language
	}
	english := 0
	for _, tok := range tokens {
		if englishMarkers[tok] {
			english++
		}
	}
	if english*2 > len(tokens) && english > 0 {
		return "en"
	}
	if r.language == "" {
		return "pt-BR"
	}
	return r.language
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
