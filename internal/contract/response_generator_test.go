package contract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validResponseInput() *ResponseGeneratorInput {
	return &ResponseGeneratorInput{
		Query:    analyzedQuery,
		Analysis: *validAnalysisFor(),
		Data: DataLoaderOutput{
			Data:     records(3),
			Metadata: LoadMetadata{Domain: DomainFretes, Total: 3, Returned: 3},
		},
		Options: &ResponseOptions{Format: FormatJSON, Style: StyleFormal, Length: LengthBrief},
	}
}

func validAnalysisFor() *QueryAnalyzerOutput {
	a := validAnalysis()
	a.Entities[0].Position = Span{Start: 15, End: 17}
	a.Temporal.References[0].Position = &Span{Start: 7, End: 11}
	return a
}

func validResponseOutput(format ResponseFormat) *ResponseGeneratorOutput {
	return &ResponseGeneratorOutput{
		Response: ResponseBody{Content: "3 fretes encontrados", Format: format},
		Sections: []Section{{Type: SectionSummary, Content: "3 fretes", Priority: PriorityHigh}},
		Actions:  []Action{{Type: ActionTypeExport, Label: "Exportar", Target: "/fretes/exportar"}},
		Metadata: &ResponseMetadata{RequestID: "r-1", GeneratedAt: time.Now(), Confidence: 0.9, Engine: "rules"},
	}
}

func TestValidateResponseGeneratorInput(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(in *ResponseGeneratorInput)
		wantField string
		wantCode  string
	}{
		{name: "valid", mutate: func(in *ResponseGeneratorInput) {}},
		{
			name:      "analysis span beyond query",
			mutate:    func(in *ResponseGeneratorInput) { in.Analysis.Entities[0].Position = Span{Start: 15, End: 30} },
			wantField: "analysis.entities[0].position",
			wantCode:  CodePositionOutOfRange,
		},
		{
			name:      "data paging broken",
			mutate:    func(in *ResponseGeneratorInput) { in.Data.Metadata.Returned = 2 },
			wantField: "data.metadata.returned",
			wantCode:  CodeReturnedMismatch,
		},
		{
			name:      "format outside enum",
			mutate:    func(in *ResponseGeneratorInput) { in.Options.Format = "pdf" },
			wantField: "options.format",
			wantCode:  "INVALID_ENUM_VALUE",
		},
		{
			name:      "style outside enum",
			mutate:    func(in *ResponseGeneratorInput) { in.Options.Style = "poetic" },
			wantField: "options.style",
			wantCode:  "INVALID_ENUM_VALUE",
		},
		{
			name:      "negative maxSuggestions",
			mutate:    func(in *ResponseGeneratorInput) { in.Options.MaxSuggestions = intPtr(-1) },
			wantField: "options.maxSuggestions",
			wantCode:  CodeNegativeValue,
		},
		{
			name:      "upstream error without code",
			mutate:    func(in *ResponseGeneratorInput) { in.Errors = []ToolError{{Message: "x"}} },
			wantField: "errors[0].code",
			wantCode:  CodeEmptyErrorCode,
		},
		{
			name: "context enums",
			mutate: func(in *ResponseGeneratorInput) {
				in.Context = &ContextData{Domain: &DomainContext{Focus: "vendas"}}
			},
			wantField: "context.domain.focus",
			wantCode:  "INVALID_ENUM_VALUE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validResponseInput()
			tt.mutate(in)
			res := ValidateResponseGeneratorInput(in)
			if tt.wantCode == "" {
				assert.True(t, res.Valid, "errors: %v", res.Errors)
				return
			}
			errs := res.GetErrorsForField(tt.wantField)
			if assert.NotEmpty(t, errs, "errors: %v", res.Errors) {
				assert.Equal(t, tt.wantCode, errs[0].Code)
			}
		})
	}
}

func TestValidateResponseGeneratorOutput(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(out *ResponseGeneratorOutput)
		wantCodes []string
	}{
		{name: "valid", mutate: func(out *ResponseGeneratorOutput) {}},
		{
			name:      "section type outside enum",
			mutate:    func(out *ResponseGeneratorOutput) { out.Sections[0].Type = "footer" },
			wantCodes: []string{"INVALID_ENUM_VALUE"},
		},
		{
			name:      "section priority outside enum",
			mutate:    func(out *ResponseGeneratorOutput) { out.Sections[0].Priority = "urgent" },
			wantCodes: []string{"INVALID_ENUM_VALUE"},
		},
		{
			name:      "empty content",
			mutate:    func(out *ResponseGeneratorOutput) { out.Response.Content = "\n" },
			wantCodes: []string{CodeEmptyContent},
		},
		{
			name:      "action without label",
			mutate:    func(out *ResponseGeneratorOutput) { out.Actions[0].Label = "" },
			wantCodes: []string{"REQUIRED_FIELD_MISSING"},
		},
		{
			name:      "confidence out of range",
			mutate:    func(out *ResponseGeneratorOutput) { out.Metadata.Confidence = 3 },
			wantCodes: []string{CodeConfidenceOutOfRange},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := validResponseOutput(FormatText)
			tt.mutate(out)
			res := ValidateResponseGeneratorOutput(out)
			if len(tt.wantCodes) == 0 {
				assert.True(t, res.Valid, "errors: %v", res.Errors)
				return
			}
			assert.Equal(t, tt.wantCodes, res.Codes())
		})
	}
}

func TestValidateResponseGeneratorOutputFor_FormatMirror(t *testing.T) {
	in := validResponseInput()

	res := ValidateResponseGeneratorOutputFor(validResponseOutput(FormatJSON), in)
	assert.True(t, res.Valid, "errors: %v", res.Errors)

	res = ValidateResponseGeneratorOutputFor(validResponseOutput(FormatMarkdown), in)
	assert.Equal(t, []string{CodeFormatMismatch}, res.Codes())

	// no requested format, any valid format is accepted
	in.Options.Format = ""
	res = ValidateResponseGeneratorOutputFor(validResponseOutput(FormatMarkdown), in)
	assert.True(t, res.Valid)
}

func TestResponseGeneratorInput_UpstreamErrors(t *testing.T) {
	in := validResponseInput()
	assert.Empty(t, in.UpstreamErrors())

	in.Errors = []ToolError{{Code: "CONTEXT_STORE_FAILED", Message: "redis"}}
	in.Data.Errors = []ToolError{{Code: "QUERY_TIMEOUT", Message: "pg"}}
	errs := in.UpstreamErrors()
	assert.Len(t, errs, 2)
	assert.Equal(t, "CONTEXT_STORE_FAILED", errs[0].Code)
	assert.Equal(t, "QUERY_TIMEOUT", errs[1].Code)
}
