package responsegenerator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	httpclient "mcp-frete-sistema/internal/common/http"
	"mcp-frete-sistema/internal/contract"
)

const generatePath = "/api/ai/generate-response"

var (
	ErrSynthesisFailed  = errors.New("LLM_SYNTHESIS_FAILED")
	ErrSynthesisTimeout = errors.New("LLM_TIMEOUT")
)

// Synthesizer writes the response text for a successful load.
type Synthesizer interface {
	Synthesize(ctx context.Context, in *contract.ResponseGeneratorInput, draft string) (string, error)
}

// GenAI asks the AI service for the response text, sending the deterministic draft along
// so the service can stay close to the numbers.
type GenAI struct {
	client *httpclient.Client
}

func NewGenAI(client *httpclient.Client) *GenAI {
	return &GenAI{client: client}
}

type generateResponse struct {
	Content string `json:"content"`
}

func (g *GenAI) Synthesize(ctx context.Context, in *contract.ResponseGeneratorInput, draft string) (string, error) {
	body := map[string]interface{}{
		"query":    in.Query,
		"analysis": in.Analysis,
		"data":     in.Data,
		"draft":    draft,
	}
	if in.Options != nil {
		body["options"] = in.Options
	}

	raw, err := g.client.PostJSON(ctx, generatePath, body)
	if err != nil {
		if errors.Is(err, httpclient.ErrTimeout) {
			return "", ErrSynthesisTimeout
		}
		return "", fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}

	var resp generateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrSynthesisFailed, err)
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("%w: empty content", ErrSynthesisFailed)
	}
	return resp.Content, nil
}
