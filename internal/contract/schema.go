package contract

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"

	"mcp-frete-sistema/internal/common/validation"
)

// Schema names, one per payload.
const (
	SchemaQueryAnalyzerInput      = "query-analyzer.input"
	SchemaQueryAnalyzerOutput     = "query-analyzer.output"
	SchemaDataLoaderInput         = "data-loader.input"
	SchemaDataLoaderOutput        = "data-loader.output"
	SchemaContextManagerInput     = "context-manager.input"
	SchemaContextManagerOutput    = "context-manager.output"
	SchemaResponseGeneratorInput  = "response-generator.input"
	SchemaResponseGeneratorOutput = "response-generator.output"
)

var payloadTypes = map[string]interface{}{
	SchemaQueryAnalyzerInput:      &QueryAnalyzerInput{},
	SchemaQueryAnalyzerOutput:     &QueryAnalyzerOutput{},
	SchemaDataLoaderInput:         &DataLoaderInput{},
	SchemaDataLoaderOutput:        &DataLoaderOutput{},
	SchemaContextManagerInput:     &ContextManagerInput{},
	SchemaContextManagerOutput:    &ContextManagerOutput{},
	SchemaResponseGeneratorInput:  &ResponseGeneratorInput{},
	SchemaResponseGeneratorOutput: &ResponseGeneratorOutput{},
}

type compiledSchema struct {
	raw        json.RawMessage
	schema     *gojsonschema.Schema
	optionKeys map[string]bool
}

var (
	schemasOnce sync.Once
	schemas     map[string]*compiledSchema
	schemasErr  error
)

func loadSchemas() {
	r := &jsonschema.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}

	schemas = make(map[string]*compiledSchema, len(payloadTypes))
	for name, v := range payloadTypes {
		s := r.Reflect(v)
		s.Version = ""

		raw, err := json.Marshal(s)
		if err != nil {
			schemasErr = fmt.Errorf("marshal schema %s: %w", name, err)
			return
		}
		compiled, err := validation.CompileSchema(raw)
		if err != nil {
			schemasErr = fmt.Errorf("schema %s: %w", name, err)
			return
		}

		cs := &compiledSchema{raw: raw, schema: compiled}
		if s.Properties != nil {
			if opts, ok := s.Properties.Get("options"); ok && opts.Properties != nil {
				cs.optionKeys = make(map[string]bool)
				for pair := opts.Properties.Oldest(); pair != nil; pair = pair.Next() {
					cs.optionKeys[pair.Key] = true
				}
			}
		}
		schemas[name] = cs
	}
}

func lookupSchema(name string) (*compiledSchema, error) {
	schemasOnce.Do(loadSchemas)
	if schemasErr != nil {
		return nil, schemasErr
	}
	cs, ok := schemas[name]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", name)
	}
	return cs, nil
}

// Schema returns the JSON schema generated for the named payload.
func Schema(name string) (json.RawMessage, error) {
	cs, err := lookupSchema(name)
	if err != nil {
		return nil, err
	}
	return cs.raw, nil
}

// SchemaNames lists every payload schema name.
func SchemaNames() []string {
	names := make([]string, 0, len(payloadTypes))
	for n := range payloadTypes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func DecodeQueryAnalyzerInput(raw []byte) (*QueryAnalyzerInput, *validation.ValidationResult) {
	return decode(SchemaQueryAnalyzerInput, raw, ValidateQueryAnalyzerInput)
}

func DecodeQueryAnalyzerOutput(raw []byte) (*QueryAnalyzerOutput, *validation.ValidationResult) {
	return decode(SchemaQueryAnalyzerOutput, raw, ValidateQueryAnalyzerOutput)
}

func DecodeDataLoaderInput(raw []byte) (*DataLoaderInput, *validation.ValidationResult) {
	return decode(SchemaDataLoaderInput, raw, ValidateDataLoaderInput)
}

func DecodeDataLoaderOutput(raw []byte) (*DataLoaderOutput, *validation.ValidationResult) {
	return decode(SchemaDataLoaderOutput, raw, ValidateDataLoaderOutput)
}

func DecodeContextManagerInput(raw []byte) (*ContextManagerInput, *validation.ValidationResult) {
	return decode(SchemaContextManagerInput, raw, ValidateContextManagerInput)
}

func DecodeContextManagerOutput(raw []byte) (*ContextManagerOutput, *validation.ValidationResult) {
	return decode(SchemaContextManagerOutput, raw, ValidateContextManagerOutput)
}

func DecodeResponseGeneratorInput(raw []byte) (*ResponseGeneratorInput, *validation.ValidationResult) {
	return decode(SchemaResponseGeneratorInput, raw, ValidateResponseGeneratorInput)
}

func DecodeResponseGeneratorOutput(raw []byte) (*ResponseGeneratorOutput, *validation.ValidationResult) {
	return decode(SchemaResponseGeneratorOutput, raw, ValidateResponseGeneratorOutput)
}

// decode parses raw, drops nulls, checks it against the generated schema, rejects unknown
// option keys, unmarshals it and finally applies the semantic validator. The value is only
// returned when every step passed.
func decode[T any](name string, raw []byte, validate func(*T) *validation.ValidationResult) (*T, *validation.ValidationResult) {
	cs, err := lookupSchema(name)
	if err != nil {
		res := validation.NewResult()
		res.Add("", validation.CodeSchemaViolation, err.Error())
		return nil, res
	}

	doc, res := validation.ParseDocument(raw)
	if !res.Valid {
		return nil, res
	}
	if res = validation.ValidateDocument(cs.schema, doc); !res.Valid {
		return nil, res
	}
	if cs.optionKeys != nil {
		if res = checkOptionKeys(doc, cs.optionKeys); !res.Valid {
			return nil, res
		}
	}

	normalized, err := json.Marshal(doc)
	if err != nil {
		res = validation.NewResult()
		res.Add("", validation.CodeInvalidJSON, err.Error())
		return nil, res
	}
	var v T
	if err := json.Unmarshal(normalized, &v); err != nil {
		res = validation.NewResult()
		field := ""
		if te, ok := err.(*json.UnmarshalTypeError); ok {
			field = te.Field
		}
		res.Add(field, validation.CodeInvalidType, err.Error())
		return nil, res
	}

	if res = validate(&v); !res.Valid {
		return nil, res
	}
	return &v, res
}

func checkOptionKeys(doc interface{}, allowed map[string]bool) *validation.ValidationResult {
	res := validation.NewResult()
	root, ok := doc.(map[string]interface{})
	if !ok {
		return res
	}
	opts, ok := root["options"].(map[string]interface{})
	if !ok {
		return res
	}
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !allowed[k] {
			res.Addf(validation.JoinField("options", k), CodeUnknownOption, "unknown option %q", k)
		}
	}
	return res
}
