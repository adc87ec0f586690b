package contract

import (
	"strings"
	"time"

	"mcp-frete-sistema/internal/common/validation"
)

type ResponseGeneratorInput struct {
	Query     string              `json:"query,omitempty"`
	Analysis  QueryAnalyzerOutput `json:"analysis"`
	Data      DataLoaderOutput    `json:"data"`
	Context   *ContextData        `json:"context,omitempty"`
	Errors    []ToolError         `json:"errors,omitempty"`
	Options   *ResponseOptions    `json:"options,omitempty"`
	Templates *ResponseTemplates  `json:"templates,omitempty"`
}

// UpstreamErrors returns the errors that send the response down the error path.
func (in *ResponseGeneratorInput) UpstreamErrors() []ToolError {
	out := make([]ToolError, 0, len(in.Errors)+len(in.Data.Errors))
	out = append(out, in.Errors...)
	return append(out, in.Data.Errors...)
}

type ResponseOptions struct {
	Format          ResponseFormat `json:"format,omitempty"`
	Style           ResponseStyle  `json:"style,omitempty"`
	Length          ResponseLength `json:"length,omitempty"`
	Language        string         `json:"language,omitempty"`
	IncludeSections *bool          `json:"includeSections,omitempty"`
	IncludeActions  *bool          `json:"includeActions,omitempty"`
	IncludeFollowUp *bool          `json:"includeFollowUp,omitempty"`
	MaxSuggestions  *int           `json:"maxSuggestions,omitempty"`
}

func (o *ResponseOptions) WantSections() bool { return o == nil || o.IncludeSections == nil || *o.IncludeSections }
func (o *ResponseOptions) WantActions() bool  { return o == nil || o.IncludeActions == nil || *o.IncludeActions }
func (o *ResponseOptions) WantFollowUp() bool { return o == nil || o.IncludeFollowUp == nil || *o.IncludeFollowUp }

type ResponseTemplates struct {
	Success string `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
	Empty   string `json:"empty,omitempty"`
}

type ResponseGeneratorOutput struct {
	Response ResponseBody      `json:"response"`
	Sections []Section         `json:"sections,omitempty"`
	Actions  []Action          `json:"actions,omitempty"`
	FollowUp *FollowUp         `json:"followUp,omitempty"`
	Metadata *ResponseMetadata `json:"metadata,omitempty"`
	Errors   []ToolError       `json:"errors,omitempty"`
}

type ResponseBody struct {
	Content  string         `json:"content"`
	Format   ResponseFormat `json:"format"`
	Language string         `json:"language,omitempty"`
}

type Section struct {
	Type     SectionType `json:"type"`
	Title    string      `json:"title,omitempty"`
	Content  string      `json:"content"`
	Priority Priority    `json:"priority,omitempty"`
}

type Action struct {
	Type   ActionType `json:"type"`
	Label  string     `json:"label"`
	Target string     `json:"target,omitempty"`
	Params ScalarMap  `json:"params,omitempty"`
}

type FollowUp struct {
	Suggestions    []string `json:"suggestions,omitempty"`
	RelatedQueries []string `json:"relatedQueries,omitempty"`
}

type ResponseMetadata struct {
	RequestID      string    `json:"requestId"`
	GeneratedAt    time.Time `json:"generatedAt"`
	ProcessingTime int64     `json:"processingTime"`
	Confidence     float64   `json:"confidence"`
	Engine         string    `json:"engine"`
	Template       string    `json:"template,omitempty"`
}

// ValidateResponseGeneratorInput checks the request and the analysis and data it carries.
// Nested failures are reported under the analysis. and data. prefixes.
func ValidateResponseGeneratorInput(in *ResponseGeneratorInput) *validation.ValidationResult {
	res := validation.NewResult()
	if in == nil {
		res.Add("", validation.CodeRequiredFieldMissing, "payload is required")
		return res
	}

	if in.Query != "" {
		res.Merge("analysis", ValidateQueryAnalyzerOutputFor(&in.Analysis, in.Query))
	} else {
		res.Merge("analysis", ValidateQueryAnalyzerOutput(&in.Analysis))
	}
	res.Merge("data", ValidateDataLoaderOutput(&in.Data))
	validateContextData(res, "context", in.Context)
	validateToolErrors(res, "errors", in.Errors)

	if o := in.Options; o != nil {
		if o.Format != "" {
			checkEnum(res, "options.format", o.Format.Valid(), string(o.Format), enumStrings(AllResponseFormats))
		}
		if o.Style != "" {
			checkEnum(res, "options.style", o.Style.Valid(), string(o.Style), enumStrings(AllResponseStyles))
		}
		if o.Length != "" {
			checkEnum(res, "options.length", o.Length.Valid(), string(o.Length), enumStrings(AllResponseLengths))
		}
		if o.MaxSuggestions != nil && *o.MaxSuggestions < 0 {
			res.Add("options.maxSuggestions", CodeNegativeValue, "maxSuggestions must not be negative")
		}
	}
	return res
}

// ValidateResponseGeneratorOutput checks a rendered response on its own.
func ValidateResponseGeneratorOutput(out *ResponseGeneratorOutput) *validation.ValidationResult {
	res := validation.NewResult()
	if out == nil {
		res.Add("", validation.CodeRequiredFieldMissing, "payload is required")
		return res
	}

	checkEnum(res, "response.format", out.Response.Format.Valid(), string(out.Response.Format), enumStrings(AllResponseFormats))
	if strings.TrimSpace(out.Response.Content) == "" {
		res.Add("response.content", CodeEmptyContent, "content must not be empty")
	}

	for i, s := range out.Sections {
		f := validation.Index("sections", i)
		checkEnum(res, f+".type", s.Type.Valid(), string(s.Type), enumStrings(AllSectionTypes))
		if s.Priority != "" {
			checkEnum(res, f+".priority", s.Priority.Valid(), string(s.Priority), enumStrings(AllPriorities))
		}
	}
	for i, a := range out.Actions {
		f := validation.Index("actions", i)
		checkEnum(res, f+".type", a.Type.Valid(), string(a.Type), enumStrings(AllActionTypes))
		if strings.TrimSpace(a.Label) == "" {
			res.Add(f+".label", validation.CodeRequiredFieldMissing, "action label is required")
		}
	}
	if m := out.Metadata; m != nil {
		checkConfidence(res, "metadata.confidence", m.Confidence)
		if m.ProcessingTime < 0 {
			res.Add("metadata.processingTime", CodeNegativeValue, "processingTime must not be negative")
		}
	}

	validateToolErrors(res, "errors", out.Errors)
	return res
}

// ValidateResponseGeneratorOutputFor also requires the produced format to mirror the one
// requested in in.
func ValidateResponseGeneratorOutputFor(out *ResponseGeneratorOutput, in *ResponseGeneratorInput) *validation.ValidationResult {
	res := ValidateResponseGeneratorOutput(out)
	if out == nil || in == nil || in.Options == nil || in.Options.Format == "" {
		return res
	}
	if out.Response.Format != in.Options.Format {
		res.Addf("response.format", CodeFormatMismatch, "requested %s, produced %s", in.Options.Format, out.Response.Format)
	}
	return res
}
