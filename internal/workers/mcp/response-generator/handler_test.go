package responsegenerator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "mcp-frete-sistema/internal/common/errors"
	httpclient "mcp-frete-sistema/internal/common/http"
	"mcp-frete-sistema/internal/common/logger"
	"mcp-frete-sistema/internal/contract"
)

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }

func createTestConfig() *Config {
	return &Config{
		Timeout:        5 * time.Second,
		DefaultFormat:  contract.FormatMarkdown,
		Language:       "pt-BR",
		MaxSuggestions: 3,
	}
}

func newTestHandler(t *testing.T, opts ...Option) *Handler {
	t.Helper()
	opts = append([]Option{WithRequestIDs(func() string { return "req-1" })}, opts...)
	return NewHandler(createTestConfig(), logger.NewTestLogger(t), opts...)
}

func validInput() *contract.ResponseGeneratorInput {
	return &contract.ResponseGeneratorInput{
		Query: "fretes atrasados de hoje",
		Analysis: contract.QueryAnalyzerOutput{
			Intent:   contract.IntentAnalysis{Primary: contract.IntentQuery, Confidence: 0.9},
			Domain:   contract.DomainAnalysis{Primary: contract.DomainFretes, Secondary: []contract.Domain{contract.DomainEntregas}, Confidence: 0.8},
			Semantic: contract.SemanticAnalysis{Sentiment: contract.SentimentNeutral},
		},
		Data: contract.DataLoaderOutput{
			Data: []contract.Record{
				{"id": "F-1", "cnpj": "12345678000190", "status": "delayed", "valor_frete": 1234.5},
				{"id": "F-2", "cnpj": "98765432000110", "status": "pending", "valor_frete": 80.0},
			},
			Metadata: contract.LoadMetadata{Domain: contract.DomainFretes, Total: 25, Returned: 2, HasMore: true, Source: "postgres"},
			Aggregations: map[string]contract.AggregationResult{
				"group_by_status": {Type: contract.AggGroupBy, Field: "status", Groups: []contract.AggregationGroup{
					{Key: "pending", Count: 15}, {Key: "delayed", Count: 10},
				}},
			},
			Enrichments: &contract.Enrichments{
				Insights:        []string{"Exibindo 2 de 25 registros."},
				Recommendations: []string{"Há mais 23 registros; refine os filtros ou continue a partir do offset 2."},
				Trends:          []contract.Trend{{Metric: "fretes", Direction: contract.TrendUp, Change: 40, Period: "2026-03-01 a 2026-03-09"}},
			},
		},
	}
}

func sectionTypes(sections []contract.Section) []contract.SectionType {
	out := make([]contract.SectionType, len(sections))
	for i, s := range sections {
		out[i] = s.Type
	}
	return out
}

func TestHandler_Execute_Success(t *testing.T) {
	h := newTestHandler(t)

	out, err := h.Execute(context.Background(), validInput())
	require.NoError(t, err)

	content := out.Response.Content
	assert.Equal(t, contract.FormatMarkdown, out.Response.Format)
	assert.Equal(t, "pt-BR", out.Response.Language)
	assert.True(t, strings.HasPrefix(content, "## Fretes\n\nEncontrei 25 registro(s) de fretes. Exibindo 2 a partir da posição 1."))
	assert.Contains(t, content, "| cnpj | id | status | valor_frete |")
	assert.Contains(t, content, "| 12.345.678/0001-90 | F-1 | delayed | R$ 1.234,50 |")
	assert.Contains(t, content, "### Destaques\n- Exibindo 2 de 25 registros.")

	assert.Equal(t, []contract.SectionType{
		contract.SectionSummary, contract.SectionTable, contract.SectionInsights,
		contract.SectionRecommendations, contract.SectionWarnings, contract.SectionChart,
	}, sectionTypes(out.Sections))
	assert.Equal(t, contract.PriorityHigh, out.Sections[0].Priority)
	assert.Equal(t, "- fretes variou +40.0% (2026-03-01 a 2026-03-09).", out.Sections[4].Content)
	assert.Equal(t, "Distribuição por status", out.Sections[5].Title)
	assert.Equal(t, "pending: 15\ndelayed: 10", out.Sections[5].Content)

	require.Len(t, out.Actions, 3)
	assert.Equal(t, contract.Action{Type: contract.ActionTypeExport, Label: "Exportar fretes", Target: "/fretes/exportar"}, out.Actions[0])
	assert.Equal(t, contract.ActionTypeFilter, out.Actions[1].Type)
	assert.Equal(t, contract.NumberValue(2), out.Actions[1].Params["offset"])
	assert.Equal(t, contract.ActionTypeNavigate, out.Actions[2].Type)

	require.NotNil(t, out.FollowUp)
	assert.Equal(t, []string{"Mostrar os próximos registros", "Filtrar fretes por período", "Ver fretes com atraso"}, out.FollowUp.Suggestions)
	assert.Equal(t, []string{"Ver entregas relacionados"}, out.FollowUp.RelatedQueries)

	assert.Equal(t, "req-1", out.Metadata.RequestID)
	assert.Equal(t, EngineRules, out.Metadata.Engine)
	assert.Equal(t, 0.9, out.Metadata.Confidence)
	assert.Empty(t, out.Metadata.Template)
	assert.Empty(t, out.Errors)
}

func TestHandler_Execute_Formats(t *testing.T) {
	tests := []struct {
		format contract.ResponseFormat
		check  func(t *testing.T, out *contract.ResponseGeneratorOutput)
	}{
		{contract.FormatText, func(t *testing.T, out *contract.ResponseGeneratorOutput) {
			assert.NotContains(t, out.Response.Content, "|")
			assert.NotContains(t, sectionTypes(out.Sections), contract.SectionTable)
		}},
		{contract.FormatHTML, func(t *testing.T, out *contract.ResponseGeneratorOutput) {
			assert.True(t, strings.HasPrefix(out.Response.Content, `<section class="mcp-response"><h2>Fretes</h2>`))
			assert.Contains(t, out.Response.Content, "&lt;b&gt;urgente&lt;/b&gt;")
			assert.NotContains(t, out.Response.Content, "<b>")
			assert.True(t, strings.HasPrefix(out.Sections[1].Content, "<table>"))
		}},
		{contract.FormatJSON, func(t *testing.T, out *contract.ResponseGeneratorOutput) {
			var doc struct {
				Summary      string                                `json:"summary"`
				Records      []map[string]interface{}              `json:"records"`
				Aggregations map[string]contract.AggregationResult `json:"aggregations"`
				Insights     []string                              `json:"insights"`
			}
			require.NoError(t, json.Unmarshal([]byte(out.Response.Content), &doc))
			assert.Contains(t, doc.Summary, "Encontrei 25")
			assert.Len(t, doc.Records, 2)
			assert.Contains(t, doc.Aggregations, "group_by_status")
			assert.Len(t, doc.Insights, 1)
		}},
	}

	h := newTestHandler(t)
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			in := validInput()
			in.Data.Data[0]["obs"] = "<b>urgente</b>"
			in.Options = &contract.ResponseOptions{Format: tt.format}

			out, err := h.Execute(context.Background(), in)
			require.NoError(t, err)
			assert.Equal(t, tt.format, out.Response.Format)
			tt.check(t, out)
		})
	}
}

func TestHandler_Execute_ErrorPath(t *testing.T) {
	h := newTestHandler(t)

	in := validInput()
	in.Errors = []contract.ToolError{{Code: string(apperrors.ErrCodeQueryTimeout), Message: "statement timeout"}}
	out, err := h.Execute(context.Background(), in)
	require.NoError(t, err)

	assert.Contains(t, out.Response.Content, "Não foi possível concluir a consulta.")
	assert.Contains(t, out.Response.Content, apperrors.UserMessageFor(string(apperrors.ErrCodeQueryTimeout)))
	assert.NotContains(t, out.Response.Content, "F-1", "records are not rendered on the error path")
	assert.Equal(t, []contract.SectionType{contract.SectionSummary, contract.SectionWarnings}, sectionTypes(out.Sections))
	assert.Equal(t, contract.PriorityHigh, out.Sections[1].Priority)
	assert.Nil(t, out.Actions)
	assert.Nil(t, out.FollowUp)
	require.Len(t, out.Errors, 1)
	assert.NotEmpty(t, out.Errors[0].UserMessage)

	// errors carried by the data take the same path
	in = validInput()
	in.Data.Errors = []contract.ToolError{{Code: string(apperrors.ErrCodeUnsupportedField), Message: "x", Field: "options.orderBy.field", UserMessage: "Campo não suportado."}}
	in.Templates = &contract.ResponseTemplates{Error: "Falha ao consultar {{domain}}: {{total}} registros parciais."}
	out, err = h.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "## Fretes\n\nFalha ao consultar fretes: 25 registros parciais.", out.Response.Content)
	assert.Equal(t, "error", out.Metadata.Template)
	assert.Equal(t, "Campo não suportado.", out.Errors[0].UserMessage)
}

func TestHandler_Execute_EmptyPath(t *testing.T) {
	h := newTestHandler(t)

	in := validInput()
	in.Data = contract.DataLoaderOutput{Data: []contract.Record{}, Metadata: contract.LoadMetadata{Domain: contract.DomainPedidos}}
	out, err := h.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "## Pedidos\n\nNenhum registro de pedidos encontrado para a consulta.", out.Response.Content)
	assert.Equal(t, []contract.SectionType{contract.SectionSummary}, sectionTypes(out.Sections))
	require.Len(t, out.Actions, 1)
	assert.Equal(t, contract.ActionTypeNavigate, out.Actions[0].Type)

	in.Templates = &contract.ResponseTemplates{Empty: "Nada para {{query}}."}
	out, err = h.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "## Pedidos\n\nNada para fretes atrasados de hoje.", out.Response.Content)
	assert.Equal(t, "empty", out.Metadata.Template)
}

func TestHandler_Execute_SuccessTemplate(t *testing.T) {
	h := newTestHandler(t)

	in := validInput()
	in.Options = &contract.ResponseOptions{Format: contract.FormatText, Length: contract.LengthBrief}
	in.Templates = &contract.ResponseTemplates{Success: "{{total}} fretes; primeiro {{first.id}}"}
	out, err := h.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "25 fretes; primeiro F-1", out.Response.Content)
	assert.Equal(t, "success", out.Metadata.Template)

	// a template that renders to nothing falls back to the built-in summary
	in.Templates.Success = "{{nope}}"
	out, err = h.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out.Response.Content, "Encontrei 25"))
	assert.Empty(t, out.Metadata.Template)
}

func TestHandler_Execute_Options(t *testing.T) {
	h := newTestHandler(t)

	in := validInput()
	for i := 0; i < 8; i++ {
		in.Data.Data = append(in.Data.Data, contract.Record{"id": "X"})
	}
	in.Data.Metadata.Returned = len(in.Data.Data)
	in.Options = &contract.ResponseOptions{
		Length:          contract.LengthBrief,
		IncludeSections: boolPtr(false),
		IncludeActions:  boolPtr(false),
		MaxSuggestions:  intPtr(0),
	}

	out, err := h.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Nil(t, out.Sections)
	assert.Nil(t, out.Actions)
	assert.Nil(t, out.FollowUp)
	assert.Equal(t, 3+2, strings.Count(out.Response.Content, "\n|"), "header separator plus three rows")
	assert.NotContains(t, out.Response.Content, "Destaques")

	in.Options = &contract.ResponseOptions{IncludeFollowUp: boolPtr(false), MaxSuggestions: intPtr(1)}
	out, err = h.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Nil(t, out.FollowUp)
}

func TestHandler_Execute_ActionsByIntent(t *testing.T) {
	h := newTestHandler(t)

	in := validInput()
	in.Analysis.Intent.Primary = contract.IntentMonitor
	out, err := h.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, contract.ActionTypeRefresh, out.Actions[len(out.Actions)-1].Type)

	in.Analysis.Intent.Primary = contract.IntentCreate
	out, err = h.Execute(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, contract.Action{Type: contract.ActionTypeCreate, Label: "Criar registro", Target: "/fretes/novo"}, out.Actions[len(out.Actions)-1])
}

func TestHandler_Execute_LLM(t *testing.T) {
	var received map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, generatePath, r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content": "Há 25 fretes, 10 deles atrasados."}`))
	}))
	defer server.Close()

	llm := NewGenAI(httpclient.NewClient(server.URL, "", time.Second, 0))
	h := NewHandler(createTestConfig(), logger.NewTestLogger(t), WithSynthesizer(llm))

	out, err := h.Execute(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, EngineGenAI, out.Metadata.Engine)
	assert.Contains(t, out.Response.Content, "Há 25 fretes, 10 deles atrasados.")
	assert.Equal(t, "Há 25 fretes, 10 deles atrasados.", out.Sections[0].Content)
	assert.Contains(t, received["draft"], "Encontrei 25")
	_, err = uuid.Parse(out.Metadata.RequestID)
	assert.NoError(t, err)
}

func TestHandler_Execute_LLMFallback(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusBadGateway)
		}},
		{"empty content", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"content": "  "}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			h := newTestHandler(t, WithSynthesizer(NewGenAI(httpclient.NewClient(server.URL, "", time.Second, 0))))
			out, err := h.Execute(context.Background(), validInput())
			require.NoError(t, err)
			assert.Equal(t, EngineRules, out.Metadata.Engine)
			assert.Contains(t, out.Response.Content, "Encontrei 25")
		})
	}
}

func TestHandler_Execute_InvalidInput(t *testing.T) {
	h := newTestHandler(t)

	in := validInput()
	in.Options = &contract.ResponseOptions{Format: "pdf"}
	_, err := h.Execute(context.Background(), in)
	require.Error(t, err)
	stdErr, ok := apperrors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeContractValidationFailed, stdErr.Code)

	in = validInput()
	in.Data.Metadata.Returned = 5
	_, err = h.Execute(context.Background(), in)
	stdErr, ok = apperrors.AsStandardError(err)
	require.True(t, ok)
	assert.Contains(t, stdErr.Details, contract.CodeReturnedMismatch)
}
