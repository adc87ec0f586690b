package contextmanager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mcp-frete-sistema/internal/contract"
)

// maxTxAttempts bounds optimistic retries when another writer touches the key mid-update.
const maxTxAttempts = 3

// store persists envelopes in Redis under <prefix>:<scope>:<id>.
type store struct {
	client redis.UniversalClient
	prefix string
}

func newStore(client redis.UniversalClient, prefix string) *store {
	return &store{client: client, prefix: prefix}
}

// key resolves the id per scope: the user id for user scope, "*" for global and the
// session id otherwise.
func (s *store) key(in *contract.ContextManagerInput) string {
	scope := in.EffectiveScope()
	id := in.SessionID
	switch scope {
	case contract.ScopeUser:
		id = in.UserID
	case contract.ScopeGlobal:
		id = "*"
	}
	return fmt.Sprintf("%s:%s:%s", s.prefix, scope, id)
}

// load returns the envelope at key, or nil when the key does not exist.
func (s *store) load(ctx context.Context, key string) (*envelope, error) {
	return getEnvelope(ctx, s.client, key)
}

func (s *store) delete(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Del(ctx, key).Result()
	return n > 0, err
}

// update reads the current envelope, lets next build its successor and writes it back,
// failing the transaction if the key changed in between.
func (s *store) update(ctx context.Context, key string, ttl time.Duration, next func(prev *envelope) (*envelope, error)) (*envelope, error) {
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		var written *envelope
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			prev, err := getEnvelope(ctx, tx, key)
			if err != nil {
				return err
			}
			env, err := next(prev)
			if err != nil {
				return err
			}
			raw, err := json.Marshal(env)
			if err != nil {
				return fmt.Errorf("encode envelope: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, raw, ttl)
				return nil
			})
			if err == nil {
				written = env
			}
			return err
		}, key)

		if err == nil {
			return written, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, err
		}
	}
	return nil, redis.TxFailedErr
}

func getEnvelope(ctx context.Context, c redis.Cmdable, key string) (*envelope, error) {
	raw, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &codecError{err: fmt.Errorf("decode envelope: %w", err)}
	}
	return &env, nil
}

// codecError marks failures of the stored representation rather than of Redis.
type codecError struct{ err error }

func (e *codecError) Error() string { return e.err.Error() }
func (e *codecError) Unwrap() error { return e.err }
