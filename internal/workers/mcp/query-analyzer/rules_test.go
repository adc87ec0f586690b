package queryanalyzer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-frete-sistema/internal/common/textnorm"
	"mcp-frete-sistema/internal/contract"
)

var (
	testLocation = time.FixedZone("BRT", -3*60*60)
	// Wednesday
	testNow = time.Date(2024, time.March, 13, 10, 30, 0, 0, testLocation)
)

func createTestConfig() *Config {
	return &Config{
		Timeout:         2 * time.Second,
		GenAITimeout:    time.Second,
		FallbackToRules: true,
		Location:        testLocation,
		Language:        "pt-BR",
		MaxEntities:     20,
	}
}

func fixedClock() time.Time { return testNow }

func TestScoreIntent(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		want       contract.Intent
		confidence float64
	}{
		{"listing", "mostre os pedidos pendentes", contract.IntentQuery, 0.95},
		{"report", "gerar relatório de fretes do mês passado", contract.IntentReport, 0.95},
		{"create", "cadastrar novo embarque", contract.IntentCreate, 0.95},
		{"help", "como funciona o agendamento", contract.IntentHelp, 0.95},
		{"monitor", "onde está a entrega do pedido 12345", contract.IntentMonitor, 0.95},
		{"no keyword defaults to query", "olá", contract.IntentQuery, 0.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scoreIntent(textnorm.Tokens(tt.query))
			assert.Equal(t, tt.want, got.Primary)
			assert.InDelta(t, tt.confidence, got.Confidence, 0.001)
		})
	}
}

func TestScoreIntent_Secondary(t *testing.T) {
	got := scoreIntent(textnorm.Tokens("listar fretes e gerar relatório com o total"))
	assert.Equal(t, contract.IntentReport, got.Primary)
	assert.Equal(t, []contract.Intent{contract.IntentQuery}, got.Secondary)
	assert.InDelta(t, 0.83, got.Confidence, 0.001)
}

func TestScoreDomain(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		qc         *contract.QueryContext
		want       contract.Domain
		secondary  []contract.Domain
		confidence float64
	}{
		{
			name:       "single domain",
			query:      "fretes do mês",
			want:       contract.DomainFretes,
			confidence: 0.95,
		},
		{
			name:       "tie is multi-domain",
			query:      "fretes e pedidos",
			want:       contract.DomainMulti,
			secondary:  []contract.Domain{contract.DomainFretes, contract.DomainPedidos},
			confidence: 0.5,
		},
		{
			name:       "highest score wins",
			query:      "pedidos com frete e pedido novo",
			want:       contract.DomainPedidos,
			secondary:  []contract.Domain{contract.DomainFretes},
			confidence: 0.83,
		},
		{
			name:       "falls back to the conversation domain",
			query:      "bom dia",
			qc:         &contract.QueryContext{CurrentDomain: contract.DomainEntregas},
			want:       contract.DomainEntregas,
			confidence: 0.5,
		},
		{
			name:       "nothing to go on",
			query:      "bom dia",
			want:       contract.DomainMulti,
			confidence: 0.2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scoreDomain(textnorm.Tokens(tt.query), tt.qc)
			assert.Equal(t, tt.want, got.Primary)
			assert.Equal(t, tt.secondary, got.Secondary)
			assert.InDelta(t, tt.confidence, got.Confidence, 0.001)
		})
	}
}

func TestDetectSentiment(t *testing.T) {
	tests := []struct {
		query string
		want  contract.Sentiment
	}{
		{"preciso urgente dos embarques", contract.SentimentUrgent},
		{"problema na entrega", contract.SentimentNegative},
		{"obrigado, ótimo trabalho", contract.SentimentPositive},
		{"listar fretes", contract.SentimentNeutral},
		{"urgente: problema no pedido", contract.SentimentUrgent},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, detectSentiment(textnorm.Tokens(tt.query)))
		})
	}
}

func TestRules_DetectLanguage(t *testing.T) {
	r := NewRules(createTestConfig(), fixedClock)

	assert.Equal(t, "pt-BR", r.detectLanguage(textnorm.Tokens("mostre os fretes"), nil))
	assert.Equal(t, "en", r.detectLanguage(textnorm.Tokens("show the orders"), nil))
	assert.Equal(t, "es", r.detectLanguage(textnorm.Tokens("mostre os fretes"), &contract.AnalyzerOptions{Language: "es"}))
}

func TestRules_Analyze(t *testing.T) {
	r := NewRules(createTestConfig(), fixedClock)
	query := "Quais fretes estão atrasados desde ontem? Urgente"

	out, err := r.Analyze(context.Background(), &contract.QueryAnalyzerInput{Query: query})
	require.NoError(t, err)

	assert.Equal(t, contract.IntentQuery, out.Intent.Primary)
	assert.Contains(t, out.Intent.Secondary, contract.IntentMonitor)
	assert.Equal(t, contract.DomainFretes, out.Domain.Primary)
	assert.Equal(t, contract.SentimentUrgent, out.Semantic.Sentiment)
	assert.Contains(t, out.Semantic.Keywords, "fretes")
	assert.Equal(t, EngineRules, out.Metadata.Engine)

	require.True(t, out.Temporal.Detected)
	require.Len(t, out.Temporal.References, 1)
	assert.Equal(t, "2024-03-12", out.Temporal.References[0].Start)

	require.Len(t, out.Entities, 1)
	assert.Equal(t, contract.EntityStatus, out.Entities[0].Type)
	assert.Equal(t, string(contract.StatusDelayed), out.Entities[0].Normalized)

	assert.True(t, contract.ValidateQueryAnalyzerOutputFor(out, query).Valid)
}

func TestRules_AnalyzeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRules(createTestConfig(), fixedClock).Analyze(ctx, &contract.QueryAnalyzerInput{Query: "fretes"})
	assert.ErrorIs(t, err, context.Canceled)
}
