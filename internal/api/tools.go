package api

import (
	"context"

	apperrors "mcp-frete-sistema/internal/common/errors"
	"mcp-frete-sistema/internal/common/metrics"
	"mcp-frete-sistema/internal/common/validation"
	"mcp-frete-sistema/internal/contract"
	"mcp-frete-sistema/internal/pipeline"
	contextmanager "mcp-frete-sistema/internal/workers/mcp/context-manager"
	dataloader "mcp-frete-sistema/internal/workers/mcp/data-loader"
	queryanalyzer "mcp-frete-sistema/internal/workers/mcp/query-analyzer"
	responsegenerator "mcp-frete-sistema/internal/workers/mcp/response-generator"
)

// ToolFunc runs one tool over a raw JSON payload. The errors slice carries the domain
// errors the tool reported inside its output.
type ToolFunc func(ctx context.Context, raw []byte) (interface{}, []contract.ToolError, error)

// Bind adapts a tool's decoder and Execute into a ToolFunc. Payloads the decoder rejects
// become contract validation errors.
func Bind[In, Out any](
	tool string,
	decode func([]byte) (*In, *validation.ValidationResult),
	exec func(context.Context, *In) (*Out, error),
	toolErrors func(*Out) []contract.ToolError,
) ToolFunc {
	return func(ctx context.Context, raw []byte) (interface{}, []contract.ToolError, error) {
		done := metrics.TrackCall(tool)
		in, res := decode(raw)
		if !res.Valid {
			metrics.RecordViolations(tool, "input", res.Codes())
			done(metrics.StatusRejected)
			return nil, nil, apperrors.NewContractValidationError(tool, "input", res)
		}
		out, err := exec(ctx, in)
		if err != nil {
			done(metrics.StatusFailed)
			return nil, nil, err
		}
		errs := toolErrors(out)
		if len(errs) > 0 {
			done(metrics.StatusPartial)
		} else {
			done(metrics.StatusSuccess)
		}
		return out, errs, nil
	}
}

// Tools binds the four tools under their task types.
func Tools(analyzer pipeline.Analyzer, loader pipeline.Loader, contexts pipeline.ContextStore, responder pipeline.Responder) map[string]ToolFunc {
	return map[string]ToolFunc{
		queryanalyzer.TaskType: Bind(queryanalyzer.TaskType, contract.DecodeQueryAnalyzerInput, analyzer.Execute,
			func(*contract.QueryAnalyzerOutput) []contract.ToolError { return nil }),
		dataloader.TaskType: Bind(dataloader.TaskType, contract.DecodeDataLoaderInput, loader.Execute,
			func(o *contract.DataLoaderOutput) []contract.ToolError { return o.Errors }),
		contextmanager.TaskType: Bind(contextmanager.TaskType, contract.DecodeContextManagerInput, contexts.Execute,
			func(o *contract.ContextManagerOutput) []contract.ToolError { return o.Errors }),
		responsegenerator.TaskType: Bind(responsegenerator.TaskType, contract.DecodeResponseGeneratorInput, responder.Execute,
			func(o *contract.ResponseGeneratorOutput) []contract.ToolError { return o.Errors }),
	}
}
