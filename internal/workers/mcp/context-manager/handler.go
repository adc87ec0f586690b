package contextmanager

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/redis/go-redis/v9"

	"mcp-frete-sistema/internal/common/database"
	apperrors "mcp-frete-sistema/internal/common/errors"
	"mcp-frete-sistema/internal/common/logger"
	"mcp-frete-sistema/internal/common/metrics"
	"mcp-frete-sistema/internal/contract"
)

const (
	TaskType = "context-manager"
)

const (
	resultOK       = "ok"
	resultNotFound = "not_found"
	resultError    = "error"
)

var errStoreUnavailable = errors.New("redis client is not configured")

type Handler struct {
	config     *Config
	store      *store
	codec      *codec
	now        func() time.Time
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

type Option func(*Handler)

func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

func NewHandler(config *Config, rdb *database.RedisClient, log logger.Logger, opts ...Option) *Handler {
	var client redis.UniversalClient
	if rdb != nil {
		client = rdb.Client
	}
	h := &Handler{
		config: config,
		store:  newStore(client, config.KeyPrefix),
		codec:  newCodec(config.EncryptionKey, config.CompressThreshold),
		now:    time.Now,
		logger: log.WithFields(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.errHandler = apperrors.NewErrorHandler(h.logger)
	return h
}

// Handle completes the job whenever the input passes the contract, including results with
// success=false; store failures travel inside the output.
func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	done := metrics.TrackCall(TaskType)
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	input, res := contract.DecodeContextManagerInput([]byte(job.Variables))
	if !res.Valid {
		metrics.RecordViolations(TaskType, "input", res.Codes())
		h.logger.Warn("input rejected", map[string]interface{}{
			"jobKey": job.Key,
			"codes":  res.Codes(),
		})
		h.errHandler.HandleJobError(context.Background(), client, job, apperrors.NewContractValidationError(TaskType, "input", res))
		done(metrics.StatusRejected)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.errHandler.HandleJobError(context.Background(), client, job, err)
		done(metrics.StatusFailed)
		return
	}

	h.completeJob(client, job, output)
	if output.Success {
		done(metrics.StatusSuccess)
	} else {
		done(metrics.StatusPartial)
	}
}

// Execute runs one context action. Only contract violations are returned as errors.
func (h *Handler) Execute(ctx context.Context, in *contract.ContextManagerInput) (*contract.ContextManagerOutput, error) {
	if res := contract.ValidateContextManagerInput(in); !res.Valid {
		metrics.RecordViolations(TaskType, "input", res.Codes())
		return nil, apperrors.NewContractValidationError(TaskType, "input", res)
	}

	out := &contract.ContextManagerOutput{
		Success:   true,
		Action:    in.Action,
		SessionID: in.SessionID,
	}
	key := h.store.key(in)

	var result string
	var err error
	switch in.Action {
	case contract.ActionGet, contract.ActionAnalyze:
		result, err = h.read(ctx, key, in, out)
	case contract.ActionClear:
		result, err = h.clear(ctx, key, in, out)
	default:
		result, err = h.write(ctx, key, in, out)
	}

	if err != nil {
		result = resultError
		out.Success = false
		out.Context = nil
		out.Analysis = nil
		out.Errors = []contract.ToolError{apperrors.ToToolError(h.classify(ctx, in.Action, err), "")}
		h.logger.Error("context action failed", map[string]interface{}{
			"action": in.Action,
			"key":    key,
			"error":  err.Error(),
		})
	}
	metrics.ContextStoreOperations.WithLabelValues(string(in.Action), result).Inc()

	if res := contract.ValidateContextManagerOutput(out); !res.Valid {
		metrics.RecordViolations(TaskType, "output", res.Codes())
		return nil, apperrors.NewContractValidationError(TaskType, "output", res)
	}

	h.logger.Info("context action completed", map[string]interface{}{
		"action":  in.Action,
		"scope":   in.EffectiveScope(),
		"result":  result,
		"success": out.Success,
	})
	return out, nil
}

func (h *Handler) read(ctx context.Context, key string, in *contract.ContextManagerInput, out *contract.ContextManagerOutput) (string, error) {
	if h.store.client == nil {
		return "", errStoreUnavailable
	}
	env, err := h.store.load(ctx, key)
	if err != nil {
		return "", err
	}

	var data *contract.ContextData
	result := resultNotFound
	out.Metadata = &contract.ContextMetadata{Scope: in.EffectiveScope()}
	if env != nil {
		if data, err = h.codec.open(env); err != nil {
			return "", &codecError{err: err}
		}
		result = resultOK
		out.Metadata = metadataFor(in.EffectiveScope(), env)
	}

	if in.Action == contract.ActionAnalyze {
		out.Analysis = analyze(data)
	} else {
		out.Context = data
	}
	return result, nil
}

func (h *Handler) clear(ctx context.Context, key string, in *contract.ContextManagerInput, out *contract.ContextManagerOutput) (string, error) {
	if h.store.client == nil {
		return "", errStoreUnavailable
	}
	existed, err := h.store.delete(ctx, key)
	if err != nil {
		return "", err
	}
	out.Metadata = &contract.ContextMetadata{Scope: in.EffectiveScope(), Found: existed}
	if !existed {
		return resultNotFound, nil
	}
	return resultOK, nil
}

// write applies set, update or merge inside one optimistic transaction. Once a key has
// been written encrypted, later writes stay encrypted.
func (h *Handler) write(ctx context.Context, key string, in *contract.ContextManagerInput, out *contract.ContextManagerOutput) (string, error) {
	if h.store.client == nil {
		return "", errStoreUnavailable
	}
	opts := in.Options
	if opts == nil {
		opts = &contract.ContextOptions{}
	}
	ttl := h.config.DefaultTTL
	if opts.TTL != nil {
		ttl = time.Duration(*opts.TTL) * time.Second
	}
	maxHistory := h.config.MaxHistory
	if opts.MaxHistory != nil {
		maxHistory = *opts.MaxHistory
	}

	var data *contract.ContextData
	env, err := h.store.update(ctx, key, ttl, func(prev *envelope) (*envelope, error) {
		var current *contract.ContextData
		var version int64
		encrypt := opts.Encrypt
		if prev != nil {
			version = prev.Version
			encrypt = encrypt || prev.Encrypted
			if in.Action != contract.ActionSet {
				var err error
				if current, err = h.codec.open(prev); err != nil {
					return nil, &codecError{err: err}
				}
			}
		}

		switch in.Action {
		case contract.ActionSet:
			data = cloneData(in.Data)
		case contract.ActionUpdate:
			data = replaceGroups(current, in.Data)
		default:
			data = mergeData(current, in.Data)
		}
		capHistory(data, maxHistory)

		now := h.now().UTC()
		next := &envelope{Version: version + 1, UpdatedAt: now}
		if ttl > 0 {
			expires := now.Add(ttl)
			next.ExpiresAt = &expires
		}
		if err := h.codec.seal(next, data, opts.Compress, encrypt); err != nil {
			if errors.Is(err, ErrEncryptionUnavailable) {
				return nil, err
			}
			return nil, &codecError{err: err}
		}
		return next, nil
	})
	if err != nil {
		return "", err
	}

	out.Context = data
	out.Metadata = metadataFor(in.EffectiveScope(), env)
	return resultOK, nil
}

func (h *Handler) classify(ctx context.Context, action contract.ContextAction, err error) error {
	var cerr *codecError
	var netErr net.Error
	switch {
	case errors.Is(err, ErrEncryptionUnavailable):
		return apperrors.NewEncryptionUnavailableError()
	case errors.As(err, &cerr):
		return apperrors.NewContextCodecFailedError(cerr.err)
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return apperrors.NewContextStoreTimeoutError(string(action))
	case errors.As(err, &netErr) && netErr.Timeout():
		return apperrors.NewContextStoreTimeoutError(string(action))
	default:
		return apperrors.NewContextStoreFailedError(string(action), err)
	}
}

func metadataFor(scope contract.ContextScope, env *envelope) *contract.ContextMetadata {
	updated := env.UpdatedAt
	return &contract.ContextMetadata{
		Scope:      scope,
		Version:    env.Version,
		Found:      true,
		UpdatedAt:  &updated,
		ExpiresAt:  env.ExpiresAt,
		Size:       len(env.Payload),
		Compressed: env.Compressed,
		Encrypted:  env.Encrypted,
	}
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *contract.ContextManagerOutput) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)

	if err != nil {
		h.logger.Error("Failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}

	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("Failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
	}
}
