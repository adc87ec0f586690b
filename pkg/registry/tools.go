package registry

import (
	apperrors "mcp-frete-sistema/internal/common/errors"
	"mcp-frete-sistema/internal/contract"
)

type toolSpec struct {
	def    ToolDefinition
	input  string
	output string
}

var contractCodes = []apperrors.ErrorCode{
	apperrors.ErrCodeContractValidationFailed,
	apperrors.ErrCodeOutputContractViolation,
}

var toolSpecs = []toolSpec{
	{
		def: ToolDefinition{
			ID:          "query-analyzer",
			DisplayName: "Query Analyzer",
			Description: "Classifies a natural-language logistics query into intent, domain, entities, temporal references and sentiment",
			Category:    "analysis",
			TaskType:    "query-analyzer",
			ErrorCodes:  codes(apperrors.ErrCodeQueryAnalysisFailed, apperrors.ErrCodeQueryAnalysisTimeout),
			Timeout:     "10s",
			Retries:     3,
			Tags:        []string{"nlp", "intent", "entities"},
		},
		input:  contract.SchemaQueryAnalyzerInput,
		output: contract.SchemaQueryAnalyzerOutput,
	},
	{
		def: ToolDefinition{
			ID:          "data-loader",
			DisplayName: "Data Loader",
			Description: "Loads filtered, paginated and aggregated records of one freight domain from Postgres or Elasticsearch",
			Category:    "data",
			TaskType:    "data-loader",
			ErrorCodes: codes(
				apperrors.ErrCodeDatabaseConnectionFailed, apperrors.ErrCodeQueryExecutionFailed,
				apperrors.ErrCodeQueryTimeout, apperrors.ErrCodeUnsupportedField,
				apperrors.ErrCodeElasticsearchConnectionFailed, apperrors.ErrCodeSearchQueryFailed,
				apperrors.ErrCodeSearchTimeout, apperrors.ErrCodeIndexNotFound,
			),
			Timeout: "15s",
			Retries: 3,
			Tags:    []string{"postgres", "elasticsearch", "cache"},
		},
		input:  contract.SchemaDataLoaderInput,
		output: contract.SchemaDataLoaderOutput,
	},
	{
		def: ToolDefinition{
			ID:          "context-manager",
			DisplayName: "Context Manager",
			Description: "Reads, writes, merges and analyzes conversation context per session, user, domain or globally",
			Category:    "context",
			TaskType:    "context-manager",
			ErrorCodes: codes(
				apperrors.ErrCodeContextStoreFailed, apperrors.ErrCodeContextStoreTimeout,
				apperrors.ErrCodeContextCodecFailed, apperrors.ErrCodeEncryptionUnavailable,
			),
			Timeout: "5s",
			Retries: 2,
			Tags:    []string{"redis", "session"},
		},
		input:  contract.SchemaContextManagerInput,
		output: contract.SchemaContextManagerOutput,
	},
	{
		def: ToolDefinition{
			ID:          "response-generator",
			DisplayName: "Response Generator",
			Description: "Renders the user-facing answer with sections, actions and follow-up suggestions",
			Category:    "presentation",
			TaskType:    "response-generator",
			ErrorCodes: codes(
				apperrors.ErrCodeResponseRenderFailed, apperrors.ErrCodeLLMTimeout, apperrors.ErrCodeLLMSynthesisFailed,
			),
			Timeout: "30s",
			Retries: 2,
			Tags:    []string{"markdown", "html", "llm"},
		},
		input:  contract.SchemaResponseGeneratorInput,
		output: contract.SchemaResponseGeneratorOutput,
	},
}

func codes(extra ...apperrors.ErrorCode) []string {
	out := make([]string, 0, len(contractCodes)+len(extra)+1)
	for _, c := range contractCodes {
		out = append(out, string(c))
	}
	for _, c := range extra {
		out = append(out, string(c))
	}
	return append(out, string(apperrors.ErrCodeInternal))
}
