package validation

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Structural codes produced by the schema layer.
const (
	CodeRequiredFieldMissing = "REQUIRED_FIELD_MISSING"
	CodeInvalidType          = "INVALID_TYPE"
	CodeInvalidEnumValue     = "INVALID_ENUM_VALUE"
	CodeExtraField           = "EXTRA_FIELD"
	CodeSchemaViolation      = "SCHEMA_VIOLATION"
	CodeInvalidJSON          = "INVALID_JSON"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (e ValidationError) String() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Field)
}

// NewResult returns an empty, valid result.
func NewResult() *ValidationResult {
	return &ValidationResult{Valid: true}
}

// Add records a failure and marks the result invalid.
func (vr *ValidationResult) Add(field, code, message string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Message: message, Code: code})
	vr.Valid = false
}

// Addf is Add with a formatted message.
func (vr *ValidationResult) Addf(field, code, format string, args ...interface{}) {
	vr.Add(field, code, fmt.Sprintf(format, args...))
}

// Merge appends the errors of other, prefixing every field with prefix.
func (vr *ValidationResult) Merge(prefix string, other *ValidationResult) {
	if other == nil {
		return
	}
	for _, e := range other.Errors {
		vr.Add(JoinField(prefix, e.Field), e.Code, e.Message)
	}
}

// Codes returns the error codes in order.
func (vr *ValidationResult) Codes() []string {
	codes := make([]string, len(vr.Errors))
	for i, e := range vr.Errors {
		codes[i] = e.Code
	}
	return codes
}

// HasCode reports whether any error carries code.
func (vr *ValidationResult) HasCode(code string) bool {
	for _, e := range vr.Errors {
		if e.Code == code {
			return true
		}
	}
	return false
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// GetErrorsForField returns errors for a field and everything nested under it.
func (vr *ValidationResult) GetErrorsForField(field string) []ValidationError {
	var fieldErrors []ValidationError
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") || strings.HasPrefix(err.Field, field+"[") {
			fieldErrors = append(fieldErrors, err)
		}
	}
	return fieldErrors
}

// JoinField joins a parent path and a child path. Index segments ("[2]") attach without a dot.
func JoinField(parent, child string) string {
	switch {
	case parent == "":
		return child
	case child == "":
		return parent
	case strings.HasPrefix(child, "["):
		return parent + child
	default:
		return parent + "." + child
	}
}

// Index formats an array element path.
func Index(parent string, i int) string {
	return fmt.Sprintf("%s[%d]", parent, i)
}

// CompileSchema parses a JSON schema document.
func CompileSchema(raw []byte) (*gojsonschema.Schema, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// ValidateDocument runs doc (already decoded into Go values) through schema and converts
// every failure into a ValidationError. Duplicate (field, code) pairs are collapsed.
func ValidateDocument(schema *gojsonschema.Schema, doc interface{}) *ValidationResult {
	out := NewResult()

	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		out.Add("", CodeInvalidJSON, err.Error())
		return out
	}
	if result.Valid() {
		return out
	}

	seen := make(map[string]bool)
	for _, re := range result.Errors() {
		field := schemaField(re)
		code := schemaCode(re.Type())
		key := field + "|" + code
		if seen[key] {
			continue
		}
		seen[key] = true
		out.Add(field, code, re.Description())
	}
	return out
}

// ParseDocument decodes raw JSON into generic values and removes null members, so that
// null and absent are treated alike by both the schema and the semantic checks.
func ParseDocument(raw []byte) (interface{}, *ValidationResult) {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		res := NewResult()
		res.Add("", CodeInvalidJSON, err.Error())
		return nil, res
	}
	return DropNulls(doc), NewResult()
}

// DropNulls removes null object members recursively. Null array elements are kept.
func DropNulls(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, child := range t {
			if child == nil {
				delete(t, k)
				continue
			}
			t[k] = DropNulls(child)
		}
		return t
	case []interface{}:
		for i, child := range t {
			t[i] = DropNulls(child)
		}
		return t
	default:
		return v
	}
}

// rootField is how gojsonschema names the document root.
const rootField = "(root)"

func schemaCode(errType string) string {
	switch errType {
	case "required":
		return CodeRequiredFieldMissing
	case "invalid_type", "number_one_of", "number_any_of":
		return CodeInvalidType
	case "enum":
		return CodeInvalidEnumValue
	case "additional_property_not_allowed":
		return CodeExtraField
	default:
		return CodeSchemaViolation
	}
}

func schemaField(re gojsonschema.ResultError) string {
	field := re.Field()
	if field == rootField {
		field = ""
	}
	switch re.Type() {
	case "required", "additional_property_not_allowed":
		if prop, ok := re.Details()["property"].(string); ok {
			field = normalizePath(field)
			if field == prop || strings.HasSuffix(field, "."+prop) {
				return field
			}
			return JoinField(field, prop)
		}
	}
	return normalizePath(field)
}

// normalizePath turns "entities.0.position" into "entities[0].position".
func normalizePath(p string) string {
	if p == "" {
		return ""
	}
	parts := strings.Split(p, ".")
	out := ""
	for _, part := range parts {
		if _, err := strconv.Atoi(part); err == nil {
			out += "[" + part + "]"
			continue
		}
		out = JoinField(out, part)
	}
	return out
}
