package contract

import (
	"maps"
	"slices"

	"mcp-frete-sistema/internal/common/validation"
)

// Semantic validation codes. Structural codes live in the validation package.
const (
	CodeEmptyQuery                         = "EMPTY_QUERY"
	CodeUnknownOption                      = "UNKNOWN_OPTION"
	CodeNegativeValue                      = "NEGATIVE_VALUE"
	CodePositionOutOfRange                 = "POSITION_OUT_OF_RANGE"
	CodeConfidenceOutOfRange               = "CONFIDENCE_OUT_OF_RANGE"
	CodeTemporalReferencesWithoutDetection = "TEMPORAL_REFERENCES_WITHOUT_DETECTION"
	CodeDomainNotLoadable                  = "DOMAIN_NOT_LOADABLE"
	CodeNegativeOffset                     = "NEGATIVE_OFFSET"
	CodeNegativeLimit                      = "NEGATIVE_LIMIT"
	CodeEmptySearch                        = "EMPTY_SEARCH"
	CodeInvalidDate                        = "INVALID_DATE"
	CodeInvalidDateRange                   = "INVALID_DATE_RANGE"
	CodeCustomFilterNotAllowed             = "CUSTOM_FILTER_NOT_ALLOWED"
	CodeCustomFilterTypeMismatch           = "CUSTOM_FILTER_TYPE_MISMATCH"
	CodeGroupByRequired                    = "GROUP_BY_REQUIRED"
	CodeAggregationFieldRequired           = "AGGREGATION_FIELD_REQUIRED"
	CodeDuplicateAggregationAlias          = "DUPLICATE_AGGREGATION_ALIAS"
	CodeReturnedMismatch                   = "RETURNED_MISMATCH"
	CodeTotalLessThanReturned              = "TOTAL_LESS_THAN_RETURNED"
	CodeHasMoreInconsistent                = "HAS_MORE_INCONSISTENT"
	CodeEmptySessionID                     = "EMPTY_SESSION_ID"
	CodeUserIDRequired                     = "USER_ID_REQUIRED"
	CodeDataRequired                       = "DATA_REQUIRED"
	CodeSuccessErrorsMismatch              = "SUCCESS_ERRORS_MISMATCH"
	CodeClearReturnedContext               = "CLEAR_RETURNED_CONTEXT"
	CodeFormatMismatch                     = "FORMAT_MISMATCH"
	CodeEmptyContent                       = "EMPTY_CONTENT"
	CodeEmptyErrorCode                     = "EMPTY_ERROR_CODE"
)

// ToolError is a domain error reported inside an output's errors array. Message is meant
// for operators, UserMessage is safe to show to the end user.
type ToolError struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Field       string `json:"field,omitempty"`
	UserMessage string `json:"userMessage,omitempty"`
}

func (e ToolError) Error() string {
	if e.Field != "" {
		return e.Code + ": " + e.Message + " (" + e.Field + ")"
	}
	return e.Code + ": " + e.Message
}

// ToolErrorsFrom converts validation failures into tool errors.
func ToolErrorsFrom(result *validation.ValidationResult) []ToolError {
	if result == nil || len(result.Errors) == 0 {
		return nil
	}
	out := make([]ToolError, len(result.Errors))
	for i, e := range result.Errors {
		out[i] = ToolError{Code: e.Code, Message: e.Message, Field: e.Field}
	}
	return out
}

func validateToolErrors(res *validation.ValidationResult, field string, errs []ToolError) {
	for i, e := range errs {
		if e.Code == "" {
			res.Add(validation.JoinField(validation.Index(field, i), "code"), CodeEmptyErrorCode, "error code must not be empty")
		}
	}
}

func checkConfidence(res *validation.ValidationResult, field string, c float64) {
	if c < 0 || c > 1 {
		res.Addf(field, CodeConfidenceOutOfRange, "confidence %v outside [0,1]", c)
	}
}

func checkEnum(res *validation.ValidationResult, field string, valid bool, value string, allowed []string) {
	if !valid {
		res.Addf(field, validation.CodeInvalidEnumValue, "%q is not one of %v", value, allowed)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
