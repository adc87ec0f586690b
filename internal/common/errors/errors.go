// Package errors provides standardized error handling for the tool workers and their BPMN
// integration.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"mcp-frete-sistema/internal/common/validation"
	"mcp-frete-sistema/internal/contract"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeContractValidationFailed ErrorCode = "CONTRACT_VALIDATION_FAILED"
	ErrCodeOutputContractViolation  ErrorCode = "OUTPUT_CONTRACT_VIOLATION"

	ErrCodeQueryAnalysisFailed  ErrorCode = "QUERY_ANALYSIS_FAILED"
	ErrCodeQueryAnalysisTimeout ErrorCode = "QUERY_ANALYSIS_TIMEOUT"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"
	ErrCodeUnsupportedField         ErrorCode = "UNSUPPORTED_FIELD"

	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeSearchQueryFailed             ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeSearchTimeout                 ErrorCode = "SEARCH_TIMEOUT"
	ErrCodeIndexNotFound                 ErrorCode = "INDEX_NOT_FOUND"

	ErrCodeContextStoreFailed    ErrorCode = "CONTEXT_STORE_FAILED"
	ErrCodeContextStoreTimeout   ErrorCode = "CONTEXT_STORE_TIMEOUT"
	ErrCodeContextCodecFailed    ErrorCode = "CONTEXT_CODEC_FAILED"
	ErrCodeEncryptionUnavailable ErrorCode = "ENCRYPTION_UNAVAILABLE"

	ErrCodeResponseRenderFailed ErrorCode = "RESPONSE_RENDER_FAILED"
	ErrCodeLLMTimeout           ErrorCode = "LLM_TIMEOUT"
	ErrCodeLLMSynthesisFailed   ErrorCode = "LLM_SYNTHESIS_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata sets a metadata entry and returns the error for chaining.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// AsStandardError unwraps err looking for a StandardError.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// NewContractValidationError wraps a failed payload validation. The individual failures are
// kept in metadata so they reach the process variables.
func NewContractValidationError(tool, direction string, res *validation.ValidationResult) *StandardError {
	code := ErrCodeContractValidationFailed
	if direction == "output" {
		code = ErrCodeOutputContractViolation
	}
	var details string
	var errs []validation.ValidationError
	if res != nil {
		details = strings.Join(res.GetErrorMessages(), "; ")
		errs = res.Errors
	}
	return newError(code, fmt.Sprintf("%s %s payload failed validation", tool, direction), details, false).
		WithMetadata("tool", tool).
		WithMetadata("direction", direction).
		WithMetadata("validationErrors", errs)
}

// NewQueryAnalysisFailedError creates a retryable analysis engine error.
func NewQueryAnalysisFailedError(err error) *StandardError {
	return newError(ErrCodeQueryAnalysisFailed, "Query analysis engine error", err.Error(), true)
}

// NewQueryAnalysisTimeoutError creates a retryable analysis timeout error.
func NewQueryAnalysisTimeoutError() *StandardError {
	return newError(ErrCodeQueryAnalysisTimeout, "Query analysis timeout", "analysis exceeded timeout threshold", true)
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true)
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeQueryExecutionFailed, "Database query execution error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()), true)
}

// NewQueryTimeoutError creates a retryable query timeout error.
func NewQueryTimeoutError(queryType string) *StandardError {
	return newError(ErrCodeQueryTimeout, "Database query timeout", fmt.Sprintf("queryType: %s", queryType), true)
}

// NewUnsupportedFieldError reports a request field the target domain cannot serve.
func NewUnsupportedFieldError(domain, field, value string) *StandardError {
	return newError(ErrCodeUnsupportedField, fmt.Sprintf("%s is not supported for domain %s", value, domain),
		fmt.Sprintf("field: %s", field), false).WithMetadata("field", field)
}

// NewElasticsearchConnectionFailedError creates a retryable Elasticsearch connection error.
func NewElasticsearchConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeElasticsearchConnectionFailed, "Elasticsearch connection error", err.Error(), true)
}

// NewSearchQueryFailedError creates a retryable search query error.
func NewSearchQueryFailedError(queryType string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Elasticsearch query error",
		fmt.Sprintf("queryType: %s, error: %s", queryType, err.Error()), true)
}

// NewSearchTimeoutError creates a retryable search timeout error.
func NewSearchTimeoutError(queryType string) *StandardError {
	return newError(ErrCodeSearchTimeout, "Elasticsearch query timeout", fmt.Sprintf("queryType: %s", queryType), true)
}

// NewIndexNotFoundError creates a non-retryable index not found error.
func NewIndexNotFoundError(indexName string) *StandardError {
	return newError(ErrCodeIndexNotFound, "Elasticsearch index not found", fmt.Sprintf("indexName: %s", indexName), false)
}

// NewContextStoreFailedError creates a retryable context store error.
func NewContextStoreFailedError(op string, err error) *StandardError {
	return newError(ErrCodeContextStoreFailed, "Context store error", fmt.Sprintf("op: %s, error: %s", op, err.Error()), true)
}

// NewContextStoreTimeoutError creates a retryable context store timeout error.
func NewContextStoreTimeoutError(op string) *StandardError {
	return newError(ErrCodeContextStoreTimeout, "Context store timeout", fmt.Sprintf("op: %s", op), true)
}

// NewContextCodecFailedError reports a payload that could not be encoded or decoded.
func NewContextCodecFailedError(err error) *StandardError {
	return newError(ErrCodeContextCodecFailed, "Context payload codec error", err.Error(), false)
}

func NewEncryptionUnavailableError() *StandardError {
	return newError(ErrCodeEncryptionUnavailable, "Encryption requested but no key is configured", "", false)
}

func NewResponseRenderFailedError(format string, err error) *StandardError {
	return newError(ErrCodeResponseRenderFailed, "Response rendering error", fmt.Sprintf("format: %s, error: %s", format, err.Error()), false)
}

// NewLLMTimeoutError creates a retryable LLM timeout error.
func NewLLMTimeoutError() *StandardError {
	return newError(ErrCodeLLMTimeout, "LLM synthesis timeout", "LLM call exceeded timeout threshold", true)
}

// NewLLMSynthesisFailedError creates a retryable LLM synthesis error.
func NewLLMSynthesisFailedError(err error) *StandardError {
	return newError(ErrCodeLLMSynthesisFailed, "LLM synthesis API error", err.Error(), true)
}

// Generic constructors

func NewBusinessRuleError(message, details string) *StandardError {
	return newError("BUSINESS_RULE_VIOLATION", message, details, false)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError("EXTERNAL_SERVICE_ERROR", fmt.Sprintf("External service '%s' error", service), err.Error(), true)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError("TIMEOUT_ERROR", fmt.Sprintf("Service '%s' timeout", service), err.Error(), true)
}

func NewResourceNotFoundError(service, details string) *StandardError {
	return newError("RESOURCE_NOT_FOUND", fmt.Sprintf("Resource not found in %s", service), details, false)
}

func NewAuthenticationError(details string) *StandardError {
	return newError("AUTHENTICATION_ERROR", "Authentication failed", details, false)
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error(), false)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// BPMNErrorMapping maps internal error codes to the error codes caught by boundary events.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeContractValidationFailed:      "CONTRACT_VALIDATION_FAILED",
	ErrCodeOutputContractViolation:       "OUTPUT_CONTRACT_VIOLATION",
	ErrCodeQueryAnalysisFailed:           "QUERY_ANALYSIS_FAILED",
	ErrCodeQueryAnalysisTimeout:          "QUERY_ANALYSIS_TIMEOUT",
	ErrCodeDatabaseConnectionFailed:      "DATABASE_CONNECTION_FAILED",
	ErrCodeQueryExecutionFailed:          "QUERY_EXECUTION_FAILED",
	ErrCodeQueryTimeout:                  "QUERY_TIMEOUT",
	ErrCodeUnsupportedField:              "UNSUPPORTED_FIELD",
	ErrCodeElasticsearchConnectionFailed: "ELASTICSEARCH_CONNECTION_FAILED",
	ErrCodeSearchQueryFailed:             "SEARCH_QUERY_FAILED",
	ErrCodeSearchTimeout:                 "SEARCH_TIMEOUT",
	ErrCodeIndexNotFound:                 "INDEX_NOT_FOUND",
	ErrCodeContextStoreFailed:            "CONTEXT_STORE_FAILED",
	ErrCodeContextStoreTimeout:           "CONTEXT_STORE_TIMEOUT",
	ErrCodeContextCodecFailed:            "CONTEXT_CODEC_FAILED",
	ErrCodeEncryptionUnavailable:         "ENCRYPTION_UNAVAILABLE",
	ErrCodeResponseRenderFailed:          "RESPONSE_RENDER_FAILED",
	ErrCodeLLMTimeout:                    "LLM_TIMEOUT",
	ErrCodeLLMSynthesisFailed:            "LLM_SYNTHESIS_FAILED",
}

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeQueryAnalysisFailed,
		ErrCodeDatabaseConnectionFailed,
		ErrCodeQueryExecutionFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeSearchQueryFailed,
		ErrCodeContextStoreFailed,
		ErrCodeLLMSynthesisFailed,
		"EXTERNAL_SERVICE_ERROR":
		return 3 // Retryable technical errors

	case ErrCodeQueryAnalysisTimeout,
		ErrCodeQueryTimeout,
		ErrCodeSearchTimeout,
		ErrCodeContextStoreTimeout,
		"TIMEOUT_ERROR":
		return 2 // Partial retry for timeouts

	case ErrCodeLLMTimeout:
		return 1

	default:
		return 0 // Contract and business errors: no retry
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda. Metadata entries
// are carried into the error variables.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "CONTRACT"):
		return "CONTRACT"
	case strings.Contains(codeStr, "ANALYSIS") || strings.Contains(codeStr, "LLM"):
		return "AI"
	case strings.Contains(codeStr, "CONTEXT") || strings.Contains(codeStr, "ENCRYPTION"):
		return "CONTEXT"
	case strings.Contains(codeStr, "ELASTICSEARCH") || strings.Contains(codeStr, "SEARCH") || strings.Contains(codeStr, "INDEX"):
		return "SEARCH"
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "QUERY") || strings.Contains(codeStr, "UNSUPPORTED"):
		return "DATABASE"
	case strings.Contains(codeStr, "RENDER"):
		return "RENDER"
	default:
		return "OTHER"
	}
}

// ==========================
// 6. Tool error records
// ==========================

var userMessages = map[string]string{
	"CONTRACT": "Não entendi a solicitação. Revise os dados enviados.",
	"AI":       "Não consegui interpretar a consulta agora. Tente reformular.",
	"CONTEXT":  "Não foi possível recuperar o histórico da conversa.",
	"SEARCH":   "A busca não está disponível no momento.",
	"DATABASE": "Não foi possível consultar os dados no momento.",
	"RENDER":   "Não foi possível montar a resposta.",
	"OTHER":    "Ocorreu um erro inesperado. Tente novamente em instantes.",
}

// UserMessageFor returns an end-user safe message for a code.
func UserMessageFor(code string) string {
	return userMessages[GetErrorCategory(ErrorCode(code))]
}

// ToToolError turns any error into the record reported inside an output's errors array.
// An empty userMessage is filled from the code's category.
func ToToolError(err error, userMessage string) contract.ToolError {
	var te contract.ToolError
	var toolErr contract.ToolError

	switch {
	case err == nil:
		te = contract.ToolError{Code: string(ErrCodeInternal), Message: "unknown error"}
	case stderrors.As(err, &toolErr):
		te = toolErr
	default:
		if stdErr, ok := AsStandardError(err); ok {
			te = contract.ToolError{Code: string(stdErr.Code), Message: stdErr.Message}
			if stdErr.Details != "" {
				te.Message += ": " + stdErr.Details
			}
			if field, ok := stdErr.Metadata["field"].(string); ok {
				te.Field = field
			}
		} else if stderrors.Is(err, context.DeadlineExceeded) {
			te = contract.ToolError{Code: "TIMEOUT_ERROR", Message: err.Error()}
		} else {
			te = contract.ToolError{Code: string(ErrCodeInternal), Message: err.Error()}
		}
	}

	if userMessage != "" {
		te.UserMessage = userMessage
	}
	if te.UserMessage == "" {
		te.UserMessage = UserMessageFor(te.Code)
	}
	return te
}
