package contract

import (
	"strings"
	"time"

	"mcp-frete-sistema/internal/common/validation"
)

type ContextManagerInput struct {
	Action    ContextAction   `json:"action"`
	SessionID string          `json:"sessionId"`
	UserID    string          `json:"userId,omitempty"`
	Scope     ContextScope    `json:"scope,omitempty"`
	Data      *ContextData    `json:"data,omitempty"`
	Options   *ContextOptions `json:"options,omitempty"`
}

// EffectiveScope defaults to the session scope.
func (in *ContextManagerInput) EffectiveScope() ContextScope {
	if in.Scope == "" {
		return ScopeSession
	}
	return in.Scope
}

type ContextData struct {
	Conversation *ConversationContext `json:"conversation,omitempty"`
	User         *UserContext         `json:"user,omitempty"`
	Domain       *DomainContext       `json:"domain,omitempty"`
	Workflow     *WorkflowContext     `json:"workflow,omitempty"`
	Memory       *MemoryContext       `json:"memory,omitempty"`
}

// Empty reports whether no group is present.
func (d *ContextData) Empty() bool {
	return d == nil || (d.Conversation == nil && d.User == nil && d.Domain == nil && d.Workflow == nil && d.Memory == nil)
}

type ConversationContext struct {
	History      []ConversationTurn `json:"history,omitempty"`
	CurrentTopic string             `json:"currentTopic,omitempty"`
	LastIntent   Intent             `json:"lastIntent,omitempty"`
	LastDomain   Domain             `json:"lastDomain,omitempty"`
}

type ConversationTurn struct {
	Query     string     `json:"query"`
	Intent    Intent     `json:"intent,omitempty"`
	Domain    Domain     `json:"domain,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Summary   string     `json:"summary,omitempty"`
}

type UserContext struct {
	ID            string    `json:"id,omitempty"`
	Role          UserRole  `json:"role,omitempty"`
	Preferences   ScalarMap `json:"preferences,omitempty"`
	RecentQueries []string  `json:"recentQueries,omitempty"`
}

type DomainContext struct {
	Focus         Domain    `json:"focus,omitempty"`
	ActiveFilters ScalarMap `json:"activeFilters,omitempty"`
	LastEntities  []Entity  `json:"lastEntities,omitempty"`
}

type WorkflowContext struct {
	CurrentStep    string   `json:"currentStep,omitempty"`
	CompletedSteps []string `json:"completedSteps,omitempty"`
	PendingActions []string `json:"pendingActions,omitempty"`
}

type MemoryContext struct {
	ShortTerm ScalarMap `json:"shortTerm,omitempty"`
	LongTerm  ScalarMap `json:"longTerm,omitempty"`
}

// ContextOptions.TTL is in seconds; zero disables expiry.
type ContextOptions struct {
	TTL        *int `json:"ttl,omitempty"`
	Encrypt    bool `json:"encrypt,omitempty"`
	Compress   bool `json:"compress,omitempty"`
	MaxHistory *int `json:"maxHistory,omitempty"`
}

type ContextManagerOutput struct {
	Success   bool             `json:"success"`
	Action    ContextAction    `json:"action"`
	SessionID string           `json:"sessionId"`
	Context   *ContextData     `json:"context,omitempty"`
	Analysis  *ContextAnalysis `json:"analysis,omitempty"`
	Metadata  *ContextMetadata `json:"metadata,omitempty"`
	Errors    []ToolError      `json:"errors,omitempty"`
}

type ContextAnalysis struct {
	TurnCount      int      `json:"turnCount"`
	DominantIntent Intent   `json:"dominantIntent,omitempty"`
	DominantDomain Domain   `json:"dominantDomain,omitempty"`
	Topics         []string `json:"topics,omitempty"`
	Suggestions    []string `json:"suggestions,omitempty"`
}

type ContextMetadata struct {
	Scope      ContextScope `json:"scope"`
	Version    int64        `json:"version"`
	Found      bool         `json:"found"`
	UpdatedAt  *time.Time   `json:"updatedAt,omitempty"`
	ExpiresAt  *time.Time   `json:"expiresAt,omitempty"`
	Size       int          `json:"size"`
	Compressed bool         `json:"compressed"`
	Encrypted  bool         `json:"encrypted"`
}

// ValidateContextManagerInput checks the semantic rules of a context request. clear never
// needs data; set, update and merge need at least one data group.
func ValidateContextManagerInput(in *ContextManagerInput) *validation.ValidationResult {
	res := validation.NewResult()
	if in == nil {
		res.Add("", validation.CodeRequiredFieldMissing, "payload is required")
		return res
	}

	checkEnum(res, "action", in.Action.Valid(), string(in.Action), enumStrings(AllContextActions))
	if strings.TrimSpace(in.SessionID) == "" {
		res.Add("sessionId", CodeEmptySessionID, "sessionId must not be empty")
	}
	if in.Scope != "" {
		checkEnum(res, "scope", in.Scope.Valid(), string(in.Scope), enumStrings(AllContextScopes))
	}
	if in.Scope == ScopeUser && strings.TrimSpace(in.UserID) == "" {
		res.Add("userId", CodeUserIDRequired, "userId is required for the user scope")
	}

	switch in.Action {
	case ActionSet, ActionUpdate, ActionMerge:
		if in.Data.Empty() {
			res.Addf("data", CodeDataRequired, "%s requires at least one data group", in.Action)
		}
	}
	validateContextData(res, "data", in.Data)

	if o := in.Options; o != nil {
		if o.TTL != nil && *o.TTL < 0 {
			res.Add("options.ttl", CodeNegativeValue, "ttl must not be negative")
		}
		if o.MaxHistory != nil && *o.MaxHistory < 0 {
			res.Add("options.maxHistory", CodeNegativeValue, "maxHistory must not be negative")
		}
	}
	return res
}

// ValidateContextManagerOutput enforces that success is false exactly when errors exist.
func ValidateContextManagerOutput(out *ContextManagerOutput) *validation.ValidationResult {
	res := validation.NewResult()
	if out == nil {
		res.Add("", validation.CodeRequiredFieldMissing, "payload is required")
		return res
	}

	checkEnum(res, "action", out.Action.Valid(), string(out.Action), enumStrings(AllContextActions))
	if strings.TrimSpace(out.SessionID) == "" {
		res.Add("sessionId", CodeEmptySessionID, "sessionId must not be empty")
	}
	if out.Success == (len(out.Errors) > 0) {
		res.Addf("success", CodeSuccessErrorsMismatch, "success is %t with %d errors", out.Success, len(out.Errors))
	}
	if out.Action == ActionClear && out.Context != nil {
		res.Add("context", CodeClearReturnedContext, "clear must not return a context")
	}
	validateContextData(res, "context", out.Context)

	if a := out.Analysis; a != nil {
		if a.TurnCount < 0 {
			res.Add("analysis.turnCount", CodeNegativeValue, "turnCount must not be negative")
		}
		if a.DominantIntent != "" {
			checkEnum(res, "analysis.dominantIntent", a.DominantIntent.Valid(), string(a.DominantIntent), enumStrings(AllIntents))
		}
		if a.DominantDomain != "" {
			checkEnum(res, "analysis.dominantDomain", a.DominantDomain.Valid(), string(a.DominantDomain), enumStrings(AllDomains))
		}
	}

	if m := out.Metadata; m != nil {
		checkEnum(res, "metadata.scope", m.Scope.Valid(), string(m.Scope), enumStrings(AllContextScopes))
		if m.Version < 0 {
			res.Add("metadata.version", CodeNegativeValue, "version must not be negative")
		}
		if m.Size < 0 {
			res.Add("metadata.size", CodeNegativeValue, "size must not be negative")
		}
	}

	validateToolErrors(res, "errors", out.Errors)
	return res
}

func validateContextData(res *validation.ValidationResult, field string, d *ContextData) {
	if d == nil {
		return
	}
	if c := d.Conversation; c != nil {
		f := validation.JoinField(field, "conversation")
		if c.LastIntent != "" {
			checkEnum(res, f+".lastIntent", c.LastIntent.Valid(), string(c.LastIntent), enumStrings(AllIntents))
		}
		if c.LastDomain != "" {
			checkEnum(res, f+".lastDomain", c.LastDomain.Valid(), string(c.LastDomain), enumStrings(AllDomains))
		}
		for i, turn := range c.History {
			tf := validation.Index(f+".history", i)
			if turn.Intent != "" {
				checkEnum(res, tf+".intent", turn.Intent.Valid(), string(turn.Intent), enumStrings(AllIntents))
			}
			if turn.Domain != "" {
				checkEnum(res, tf+".domain", turn.Domain.Valid(), string(turn.Domain), enumStrings(AllDomains))
			}
		}
	}
	if u := d.User; u != nil && u.Role != "" {
		checkEnum(res, validation.JoinField(field, "user.role"), u.Role.Valid(), string(u.Role), enumStrings(AllUserRoles))
	}
	if dc := d.Domain; dc != nil {
		f := validation.JoinField(field, "domain")
		if dc.Focus != "" {
			checkEnum(res, f+".focus", dc.Focus.Valid(), string(dc.Focus), enumStrings(AllDomains))
		}
		for i, e := range dc.LastEntities {
			ef := validation.Index(f+".lastEntities", i)
			checkEnum(res, ef+".type", e.Type.Valid(), string(e.Type), enumStrings(AllEntityTypes))
			checkSpan(res, ef+".position", e.Position, nil)
		}
	}
}
