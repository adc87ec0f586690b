package contract

import (
	"strings"
	"time"

	"mcp-frete-sistema/internal/common/validation"
)

type QueryAnalyzerInput struct {
	Query   string           `json:"query"`
	Context *QueryContext    `json:"context,omitempty"`
	Options *AnalyzerOptions `json:"options,omitempty"`
}

type QueryContext struct {
	SessionID       string       `json:"sessionId,omitempty"`
	PreviousQueries []string     `json:"previousQueries,omitempty"`
	CurrentDomain   Domain       `json:"currentDomain,omitempty"`
	UserProfile     *UserProfile `json:"userProfile,omitempty"`
}

type UserProfile struct {
	ID          string   `json:"id,omitempty"`
	Role        UserRole `json:"role,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

type AnalyzerOptions struct {
	IncludeEntities *bool  `json:"includeEntities,omitempty"`
	IncludeTemporal *bool  `json:"includeTemporal,omitempty"`
	IncludeSemantic *bool  `json:"includeSemantic,omitempty"`
	MaxEntities     *int   `json:"maxEntities,omitempty"`
	Language        string `json:"language,omitempty"`
}

// Flag helpers treat a missing options group or flag as true.
func (o *AnalyzerOptions) WantEntities() bool { return o == nil || o.IncludeEntities == nil || *o.IncludeEntities }
func (o *AnalyzerOptions) WantTemporal() bool { return o == nil || o.IncludeTemporal == nil || *o.IncludeTemporal }
func (o *AnalyzerOptions) WantSemantic() bool { return o == nil || o.IncludeSemantic == nil || *o.IncludeSemantic }

type QueryAnalyzerOutput struct {
	Intent   IntentAnalysis    `json:"intent"`
	Domain   DomainAnalysis    `json:"domain"`
	Entities []Entity          `json:"entities,omitempty"`
	Temporal TemporalAnalysis  `json:"temporal"`
	Semantic SemanticAnalysis  `json:"semantic"`
	Metadata *AnalysisMetadata `json:"metadata,omitempty"`
}

type IntentAnalysis struct {
	Primary    Intent   `json:"primary"`
	Secondary  []Intent `json:"secondary,omitempty"`
	Confidence float64  `json:"confidence"`
}

type DomainAnalysis struct {
	Primary    Domain   `json:"primary"`
	Secondary  []Domain `json:"secondary,omitempty"`
	Confidence float64  `json:"confidence"`
}

type Entity struct {
	Type       EntityType `json:"type"`
	Value      string     `json:"value"`
	Normalized string     `json:"normalized,omitempty"`
	Position   Span       `json:"position"`
	Confidence *float64   `json:"confidence,omitempty"`
}

// Span is a half-open [Start, End) range of UTF-16 code units.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type TemporalAnalysis struct {
	Detected   bool                `json:"detected"`
	References []TemporalReference `json:"references,omitempty"`
}

// TemporalReference carries the resolved range as ISO dates in Start/End.
type TemporalReference struct {
	Type     TemporalType `json:"type"`
	Text     string       `json:"text"`
	Start    string       `json:"start,omitempty"`
	End      string       `json:"end,omitempty"`
	Position *Span        `json:"position,omitempty"`
}

type SemanticAnalysis struct {
	Sentiment Sentiment `json:"sentiment"`
	Keywords  []string  `json:"keywords,omitempty"`
	Language  string    `json:"language,omitempty"`
}

type AnalysisMetadata struct {
	Engine         string    `json:"engine"`
	ProcessingTime int64     `json:"processingTime"`
	AnalyzedAt     time.Time `json:"analyzedAt"`
}

// ValidateQueryAnalyzerInput checks the semantic rules of an analyzer request.
// Unknown option keys are rejected at decode time, see DecodeQueryAnalyzerInput.
func ValidateQueryAnalyzerInput(in *QueryAnalyzerInput) *validation.ValidationResult {
	res := validation.NewResult()
	if in == nil {
		res.Add("", validation.CodeRequiredFieldMissing, "payload is required")
		return res
	}

	if strings.TrimSpace(in.Query) == "" {
		res.Add("query", CodeEmptyQuery, "query must not be empty")
	}

	if c := in.Context; c != nil {
		if c.CurrentDomain != "" {
			checkEnum(res, "context.currentDomain", c.CurrentDomain.Valid(), string(c.CurrentDomain), enumStrings(AllDomains))
		}
		if p := c.UserProfile; p != nil && p.Role != "" {
			checkEnum(res, "context.userProfile.role", p.Role.Valid(), string(p.Role), enumStrings(AllUserRoles))
		}
	}

	if o := in.Options; o != nil && o.MaxEntities != nil && *o.MaxEntities < 0 {
		res.Add("options.maxEntities", CodeNegativeValue, "maxEntities must not be negative")
	}
	return res
}

// ValidateQueryAnalyzerOutput checks an analysis on its own, without the originating query.
func ValidateQueryAnalyzerOutput(out *QueryAnalyzerOutput) *validation.ValidationResult {
	return validateAnalysis(out, nil)
}

// ValidateQueryAnalyzerOutputFor additionally checks every span against query.
func ValidateQueryAnalyzerOutputFor(out *QueryAnalyzerOutput, query string) *validation.ValidationResult {
	return validateAnalysis(out, &query)
}

func validateAnalysis(out *QueryAnalyzerOutput, query *string) *validation.ValidationResult {
	res := validation.NewResult()
	if out == nil {
		res.Add("", validation.CodeRequiredFieldMissing, "payload is required")
		return res
	}

	checkEnum(res, "intent.primary", out.Intent.Primary.Valid(), string(out.Intent.Primary), enumStrings(AllIntents))
	for i, s := range out.Intent.Secondary {
		checkEnum(res, validation.Index("intent.secondary", i), s.Valid(), string(s), enumStrings(AllIntents))
	}
	checkConfidence(res, "intent.confidence", out.Intent.Confidence)

	checkEnum(res, "domain.primary", out.Domain.Primary.Valid(), string(out.Domain.Primary), enumStrings(AllDomains))
	for i, s := range out.Domain.Secondary {
		checkEnum(res, validation.Index("domain.secondary", i), s.Valid(), string(s), enumStrings(AllDomains))
	}
	checkConfidence(res, "domain.confidence", out.Domain.Confidence)

	for i, e := range out.Entities {
		field := validation.Index("entities", i)
		checkEnum(res, field+".type", e.Type.Valid(), string(e.Type), enumStrings(AllEntityTypes))
		checkSpan(res, field+".position", e.Position, query)
		if e.Confidence != nil {
			checkConfidence(res, field+".confidence", *e.Confidence)
		}
	}

	if !out.Temporal.Detected && len(out.Temporal.References) > 0 {
		res.Add("temporal.references", CodeTemporalReferencesWithoutDetection, "references present while detected is false")
	}
	for i, ref := range out.Temporal.References {
		field := validation.Index("temporal.references", i)
		checkEnum(res, field+".type", ref.Type.Valid(), string(ref.Type), enumStrings(AllTemporalTypes))
		checkDateRange(res, field, ref.Start, ref.End)
		if ref.Position != nil {
			checkSpan(res, field+".position", *ref.Position, query)
		}
	}

	checkEnum(res, "semantic.sentiment", out.Semantic.Sentiment.Valid(), string(out.Semantic.Sentiment), enumStrings(AllSentiments))

	if out.Metadata != nil && out.Metadata.ProcessingTime < 0 {
		res.Add("metadata.processingTime", CodeNegativeValue, "processingTime must not be negative")
	}
	return res
}

func checkSpan(res *validation.ValidationResult, field string, sp Span, query *string) {
	if sp.Start < 0 || sp.End <= sp.Start {
		res.Addf(field, CodePositionOutOfRange, "invalid span [%d,%d)", sp.Start, sp.End)
		return
	}
	if query == nil {
		return
	}
	if n := QueryLength(*query); sp.End > n {
		res.Addf(field, CodePositionOutOfRange, "span [%d,%d) exceeds query length %d", sp.Start, sp.End, n)
		return
	}
	if _, ok := SpanText(*query, sp.Start, sp.End); !ok {
		res.Addf(field, CodePositionOutOfRange, "span [%d,%d) splits a character", sp.Start, sp.End)
	}
}

// checkDateRange validates optional ISO start/end values under parent.
func checkDateRange(res *validation.ValidationResult, parent, start, end string) {
	var from, to time.Time
	var okFrom, okTo bool
	if start != "" {
		if from, okFrom = ParseDate(start); !okFrom {
			res.Addf(validation.JoinField(parent, "start"), CodeInvalidDate, "%q is not an ISO date", start)
		}
	}
	if end != "" {
		if to, okTo = ParseDate(end); !okTo {
			res.Addf(validation.JoinField(parent, "end"), CodeInvalidDate, "%q is not an ISO date", end)
		}
	}
	if okFrom && okTo && from.After(to) {
		res.Addf(parent, CodeInvalidDateRange, "start %s is after end %s", start, end)
	}
}
