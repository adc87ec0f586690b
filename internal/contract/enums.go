// Package contract holds the wire payloads exchanged with the four assistant tools
// (query analyzer, data loader, context manager, response generator), the closed enums
// they share and the pure validators that guard them.
package contract

import (
	"slices"

	"github.com/invopop/jsonschema"
)

type UserRole string

const (
	RoleAdmin    UserRole = "admin"
	RoleManager  UserRole = "manager"
	RoleOperator UserRole = "operator"
	RoleAnalyst  UserRole = "analyst"
	RoleViewer   UserRole = "viewer"
)

var AllUserRoles = []UserRole{RoleAdmin, RoleManager, RoleOperator, RoleAnalyst, RoleViewer}

func (r UserRole) Valid() bool                   { return slices.Contains(AllUserRoles, r) }
func (UserRole) JSONSchema() *jsonschema.Schema { return enumSchema(AllUserRoles) }

type Intent string

const (
	IntentQuery   Intent = "query"
	IntentCreate  Intent = "create"
	IntentUpdate  Intent = "update"
	IntentDelete  Intent = "delete"
	IntentReport  Intent = "report"
	IntentMonitor Intent = "monitor"
	IntentHelp    Intent = "help"
)

var AllIntents = []Intent{IntentQuery, IntentCreate, IntentUpdate, IntentDelete, IntentReport, IntentMonitor, IntentHelp}

func (i Intent) Valid() bool                   { return slices.Contains(AllIntents, i) }
func (Intent) JSONSchema() *jsonschema.Schema { return enumSchema(AllIntents) }

// Domain is shared by the analyzer and the loader. DomainMulti is only meaningful as an
// analysis result; Loadable reports whether a domain can be the target of a load.
type Domain string

const (
	DomainFretes          Domain = "fretes"
	DomainPedidos         Domain = "pedidos"
	DomainEntregas        Domain = "entregas"
	DomainEmbarques       Domain = "embarques"
	DomainFinanceiro      Domain = "financeiro"
	DomainTransportadoras Domain = "transportadoras"
	DomainMonitoramento   Domain = "monitoramento"
	DomainMulti           Domain = "multi-domain"
)

// LoadableDomains lists the data domains in their canonical order.
var LoadableDomains = []Domain{
	DomainFretes, DomainPedidos, DomainEntregas, DomainEmbarques,
	DomainFinanceiro, DomainTransportadoras, DomainMonitoramento,
}

var AllDomains = append(slices.Clone(LoadableDomains), DomainMulti)

func (d Domain) Valid() bool                   { return slices.Contains(AllDomains, d) }
func (d Domain) Loadable() bool                { return slices.Contains(LoadableDomains, d) }
func (Domain) JSONSchema() *jsonschema.Schema { return enumSchema(AllDomains) }

type EntityType string

const (
	EntityCNPJ          EntityType = "cnpj"
	EntityOrderNumber   EntityType = "order_number"
	EntityInvoiceNumber EntityType = "invoice_number"
	EntityCarrier       EntityType = "carrier"
	EntityCustomer      EntityType = "customer"
	EntityUF            EntityType = "uf"
	EntityCity          EntityType = "city"
	EntityDate          EntityType = "date"
	EntityAmount        EntityType = "amount"
	EntityStatus        EntityType = "status"
)

var AllEntityTypes = []EntityType{
	EntityCNPJ, EntityOrderNumber, EntityInvoiceNumber, EntityCarrier, EntityCustomer,
	EntityUF, EntityCity, EntityDate, EntityAmount, EntityStatus,
}

func (e EntityType) Valid() bool                   { return slices.Contains(AllEntityTypes, e) }
func (EntityType) JSONSchema() *jsonschema.Schema { return enumSchema(AllEntityTypes) }

type TemporalType string

const (
	TemporalAbsolute TemporalType = "absolute"
	TemporalRelative TemporalType = "relative"
	TemporalRange    TemporalType = "range"
)

var AllTemporalTypes = []TemporalType{TemporalAbsolute, TemporalRelative, TemporalRange}

func (t TemporalType) Valid() bool                   { return slices.Contains(AllTemporalTypes, t) }
func (TemporalType) JSONSchema() *jsonschema.Schema { return enumSchema(AllTemporalTypes) }

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
	SentimentUrgent   Sentiment = "urgent"
)

var AllSentiments = []Sentiment{SentimentPositive, SentimentNeutral, SentimentNegative, SentimentUrgent}

func (s Sentiment) Valid() bool                   { return slices.Contains(AllSentiments, s) }
func (Sentiment) JSONSchema() *jsonschema.Schema { return enumSchema(AllSentiments) }

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusInTransit Status = "in_transit"
	StatusDelivered Status = "delivered"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusDelayed   Status = "delayed"
)

var AllStatuses = []Status{
	StatusPending, StatusApproved, StatusInTransit, StatusDelivered,
	StatusCompleted, StatusCancelled, StatusDelayed,
}

func (s Status) Valid() bool                   { return slices.Contains(AllStatuses, s) }
func (Status) JSONSchema() *jsonschema.Schema { return enumSchema(AllStatuses) }

type DateField string

const (
	DateFieldCreatedAt     DateField = "created_at"
	DateFieldUpdatedAt     DateField = "updated_at"
	DateFieldScheduledDate DateField = "scheduled_date"
	DateFieldDeliveryDate  DateField = "delivery_date"
)

var AllDateFields = []DateField{DateFieldCreatedAt, DateFieldUpdatedAt, DateFieldScheduledDate, DateFieldDeliveryDate}

func (f DateField) Valid() bool                   { return slices.Contains(AllDateFields, f) }
func (DateField) JSONSchema() *jsonschema.Schema { return enumSchema(AllDateFields) }

type OrderDirection string

const (
	OrderAsc  OrderDirection = "asc"
	OrderDesc OrderDirection = "desc"
)

var AllOrderDirections = []OrderDirection{OrderAsc, OrderDesc}

func (o OrderDirection) Valid() bool                   { return slices.Contains(AllOrderDirections, o) }
func (OrderDirection) JSONSchema() *jsonschema.Schema { return enumSchema(AllOrderDirections) }

type AggregationType string

const (
	AggCount   AggregationType = "count"
	AggSum     AggregationType = "sum"
	AggAvg     AggregationType = "avg"
	AggMin     AggregationType = "min"
	AggMax     AggregationType = "max"
	AggGroupBy AggregationType = "group_by"
)

var AllAggregationTypes = []AggregationType{AggCount, AggSum, AggAvg, AggMin, AggMax, AggGroupBy}

func (a AggregationType) Valid() bool                   { return slices.Contains(AllAggregationTypes, a) }
func (AggregationType) JSONSchema() *jsonschema.Schema { return enumSchema(AllAggregationTypes) }

// NeedsField reports whether the aggregation is computed over a numeric field.
func (a AggregationType) NeedsField() bool {
	switch a {
	case AggSum, AggAvg, AggMin, AggMax:
		return true
	}
	return false
}

type TrendDirection string

const (
	TrendUp     TrendDirection = "up"
	TrendDown   TrendDirection = "down"
	TrendStable TrendDirection = "stable"
)

var AllTrendDirections = []TrendDirection{TrendUp, TrendDown, TrendStable}

func (t TrendDirection) Valid() bool                   { return slices.Contains(AllTrendDirections, t) }
func (TrendDirection) JSONSchema() *jsonschema.Schema { return enumSchema(AllTrendDirections) }

type ContextAction string

const (
	ActionGet     ContextAction = "get"
	ActionSet     ContextAction = "set"
	ActionUpdate  ContextAction = "update"
	ActionClear   ContextAction = "clear"
	ActionMerge   ContextAction = "merge"
	ActionAnalyze ContextAction = "analyze"
)

var AllContextActions = []ContextAction{ActionGet, ActionSet, ActionUpdate, ActionClear, ActionMerge, ActionAnalyze}

func (a ContextAction) Valid() bool                   { return slices.Contains(AllContextActions, a) }
func (ContextAction) JSONSchema() *jsonschema.Schema { return enumSchema(AllContextActions) }

// Writes reports whether the action mutates stored state.
func (a ContextAction) Writes() bool {
	switch a {
	case ActionSet, ActionUpdate, ActionMerge, ActionClear:
		return true
	}
	return false
}

type ContextScope string

const (
	ScopeSession ContextScope = "session"
	ScopeUser    ContextScope = "user"
	ScopeGlobal  ContextScope = "global"
	ScopeDomain  ContextScope = "domain"
)

var AllContextScopes = []ContextScope{ScopeSession, ScopeUser, ScopeGlobal, ScopeDomain}

func (s ContextScope) Valid() bool                   { return slices.Contains(AllContextScopes, s) }
func (ContextScope) JSONSchema() *jsonschema.Schema { return enumSchema(AllContextScopes) }

type ResponseFormat string

const (
	FormatText     ResponseFormat = "text"
	FormatMarkdown ResponseFormat = "markdown"
	FormatHTML     ResponseFormat = "html"
	FormatJSON     ResponseFormat = "json"
)

var AllResponseFormats = []ResponseFormat{FormatText, FormatMarkdown, FormatHTML, FormatJSON}

func (f ResponseFormat) Valid() bool                   { return slices.Contains(AllResponseFormats, f) }
func (ResponseFormat) JSONSchema() *jsonschema.Schema { return enumSchema(AllResponseFormats) }

type ResponseStyle string

const (
	StyleFormal    ResponseStyle = "formal"
	StyleCasual    ResponseStyle = "casual"
	StyleTechnical ResponseStyle = "technical"
	StyleExecutive ResponseStyle = "executive"
)

var AllResponseStyles = []ResponseStyle{StyleFormal, StyleCasual, StyleTechnical, StyleExecutive}

func (s ResponseStyle) Valid() bool                   { return slices.Contains(AllResponseStyles, s) }
func (ResponseStyle) JSONSchema() *jsonschema.Schema { return enumSchema(AllResponseStyles) }

type ResponseLength string

const (
	LengthBrief    ResponseLength = "brief"
	LengthStandard ResponseLength = "standard"
	LengthDetailed ResponseLength = "detailed"
)

var AllResponseLengths = []ResponseLength{LengthBrief, LengthStandard, LengthDetailed}

func (l ResponseLength) Valid() bool                   { return slices.Contains(AllResponseLengths, l) }
func (ResponseLength) JSONSchema() *jsonschema.Schema { return enumSchema(AllResponseLengths) }

// Rows is the number of records rendered in tables for this length.
func (l ResponseLength) Rows() int {
	switch l {
	case LengthBrief:
		return 3
	case LengthDetailed:
		return 50
	default:
		return 10
	}
}

type SectionType string

const (
	SectionSummary         SectionType = "summary"
	SectionDetails         SectionType = "details"
	SectionTable           SectionType = "table"
	SectionChart           SectionType = "chart"
	SectionInsights        SectionType = "insights"
	SectionRecommendations SectionType = "recommendations"
	SectionWarnings        SectionType = "warnings"
)

var AllSectionTypes = []SectionType{
	SectionSummary, SectionDetails, SectionTable, SectionChart,
	SectionInsights, SectionRecommendations, SectionWarnings,
}

func (s SectionType) Valid() bool                   { return slices.Contains(AllSectionTypes, s) }
func (SectionType) JSONSchema() *jsonschema.Schema { return enumSchema(AllSectionTypes) }

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

var AllPriorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

func (p Priority) Valid() bool                   { return slices.Contains(AllPriorities, p) }
func (Priority) JSONSchema() *jsonschema.Schema { return enumSchema(AllPriorities) }

type ActionType string

const (
	ActionTypeNavigate ActionType = "navigate"
	ActionTypeExport   ActionType = "export"
	ActionTypeFilter   ActionType = "filter"
	ActionTypeCreate   ActionType = "create"
	ActionTypeRefresh  ActionType = "refresh"
)

var AllActionTypes = []ActionType{ActionTypeNavigate, ActionTypeExport, ActionTypeFilter, ActionTypeCreate, ActionTypeRefresh}

func (a ActionType) Valid() bool                   { return slices.Contains(AllActionTypes, a) }
func (ActionType) JSONSchema() *jsonschema.Schema { return enumSchema(AllActionTypes) }

func enumSchema[T ~string](values []T) *jsonschema.Schema {
	s := &jsonschema.Schema{Type: "string"}
	for _, v := range values {
		s.Enum = append(s.Enum, string(v))
	}
	return s
}

func enumStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
