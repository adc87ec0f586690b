package dataloader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"mcp-frete-sistema/internal/common/config"
	apperrors "mcp-frete-sistema/internal/common/errors"
	"mcp-frete-sistema/internal/common/logger"
	"mcp-frete-sistema/internal/contract"
	"mcp-frete-sistema/internal/workers/mcp/data-loader/queries"
)

// ElasticsearchBackend reads a domain from the index <prefix><domain>.
type ElasticsearchBackend struct {
	client      *elasticsearch.Client
	indexPrefix string
	logger      logger.Logger
}

func NewElasticsearchBackend(client *elasticsearch.Client, indexPrefix string, log logger.Logger) *ElasticsearchBackend {
	return &ElasticsearchBackend{client: client, indexPrefix: indexPrefix, logger: log}
}

func (b *ElasticsearchBackend) Name() string { return config.BackendElasticsearch }

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]aggregationResponse `json:"aggregations"`
}

type aggregationResponse struct {
	Value   *float64 `json:"value"`
	Buckets []struct {
		Key         interface{} `json:"key"`
		KeyAsString string      `json:"key_as_string"`
		DocCount    int         `json:"doc_count"`
		Value       *struct {
			Value *float64 `json:"value"`
		} `json:"value"`
	} `json:"buckets"`
}

func (b *ElasticsearchBackend) Load(ctx context.Context, plan *queries.Plan) (*contract.DataLoaderOutput, error) {
	index := b.indexPrefix + string(plan.Spec.Domain)
	body, err := json.Marshal(plan.SearchBody())
	if err != nil {
		return nil, apperrors.NewSearchQueryFailedError("build", err)
	}

	req := esapi.SearchRequest{
		Index: []string{index},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, b.client)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewSearchTimeoutError(string(plan.Spec.Domain))
		}
		return nil, apperrors.NewElasticsearchConnectionFailedError(err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, apperrors.NewIndexNotFoundError(index)
	}
	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 2048))
		return nil, apperrors.NewSearchQueryFailedError(string(plan.Spec.Domain), fmt.Errorf("%s: %s", res.Status(), msg))
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, apperrors.NewSearchQueryFailedError(string(plan.Spec.Domain), fmt.Errorf("decode response: %w", err))
	}

	out := &contract.DataLoaderOutput{
		Data:     make([]contract.Record, 0, len(sr.Hits.Hits)),
		Metadata: contract.LoadMetadata{Total: sr.Hits.Total.Value},
	}
	for _, hit := range sr.Hits.Hits {
		var rec contract.Record
		if err := json.Unmarshal(hit.Source, &rec); err != nil {
			return nil, apperrors.NewSearchQueryFailedError(string(plan.Spec.Domain), fmt.Errorf("decode hit: %w", err))
		}
		out.Data = append(out.Data, rec)
	}

	for _, a := range plan.Aggregations {
		raw, ok := sr.Aggregations[a.Key()]
		if !ok {
			out.Errors = append(out.Errors, apperrors.ToToolError(
				apperrors.NewSearchQueryFailedError("aggregation", fmt.Errorf("%s missing from response", a.Key())), ""))
			continue
		}
		if out.Aggregations == nil {
			out.Aggregations = make(map[string]contract.AggregationResult)
		}
		out.Aggregations[a.Key()] = convertAggregation(a, raw, plan.Spec.IsDateColumn(a.GroupBy))
	}
	return out, nil
}

// convertAggregation maps a search aggregation onto the contract. Date buckets arrive
// newest first and are returned oldest first.
func convertAggregation(a contract.Aggregation, raw aggregationResponse, chronological bool) contract.AggregationResult {
	res := contract.AggregationResult{Type: a.Type, Field: a.Field, Value: raw.Value}
	if a.Type != contract.AggGroupBy {
		return res
	}
	res.Field = a.GroupBy
	res.Groups = make([]contract.AggregationGroup, 0, len(raw.Buckets))
	for _, bucket := range raw.Buckets {
		g := contract.AggregationGroup{Key: bucket.KeyAsString, Count: bucket.DocCount}
		if g.Key == "" {
			g.Key = fmt.Sprint(bucket.Key)
		}
		if bucket.Value != nil {
			g.Value = bucket.Value.Value
		}
		res.Groups = append(res.Groups, g)
	}
	if chronological {
		slices.Reverse(res.Groups)
	}
	return res
}
