package queryanalyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	httpclient "mcp-frete-sistema/internal/common/http"
	"mcp-frete-sistema/internal/contract"
)

const analyzePath = "/api/ai/analyze-query"

// GenAI delegates the analysis to the AI service. Responses must satisfy the output
// contract for the analyzed query.
type GenAI struct {
	client *httpclient.Client
}

func NewGenAI(client *httpclient.Client) *GenAI {
	return &GenAI{client: client}
}

func (g *GenAI) Name() string { return EngineGenAI }

func (g *GenAI) Analyze(ctx context.Context, in *contract.QueryAnalyzerInput) (*contract.QueryAnalyzerOutput, error) {
	body := map[string]interface{}{
		"query": in.Query,
	}
	if in.Context != nil {
		body["context"] = in.Context
	}

	raw, err := g.client.PostJSON(ctx, analyzePath, body)
	if err != nil {
		if errors.Is(err, httpclient.ErrTimeout) {
			return nil, ErrAnalysisTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}

	out, res := contract.DecodeQueryAnalyzerOutput(raw)
	if !res.Valid {
		return nil, fmt.Errorf("%w: invalid engine response: %s", ErrAnalysisFailed, strings.Join(res.GetErrorMessages(), "; "))
	}
	if res := contract.ValidateQueryAnalyzerOutputFor(out, in.Query); !res.Valid {
		return nil, fmt.Errorf("%w: engine spans do not match query: %s", ErrAnalysisFailed, strings.Join(res.GetErrorMessages(), "; "))
	}

	if out.Metadata == nil {
		out.Metadata = &contract.AnalysisMetadata{}
	}
	out.Metadata.Engine = EngineGenAI
	return out, nil
}
