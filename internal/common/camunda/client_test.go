package camunda

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-frete-sistema/internal/common/config"
	"mcp-frete-sistema/internal/common/errors"
)

func testClient() *Client {
	return &Client{config: &ClientConfig{RetryConfig: &RetryConfig{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		MaxDelay:   2 * time.Millisecond,
	}}}
}

func TestExecuteWithRetry(t *testing.T) {
	tests := []struct {
		name         string
		failures     []error
		wantCalls    int
		wantErr      bool
		wantCodeText string
	}{
		{name: "first try", wantCalls: 1},
		{
			name:      "transient then success",
			failures:  []error{stderrors.New("rpc error: code = Unavailable")},
			wantCalls: 2,
		},
		{
			name:         "permanent",
			failures:     []error{stderrors.New("permission denied")},
			wantCalls:    1,
			wantErr:      true,
			wantCodeText: "AUTHENTICATION_ERROR",
		},
		{
			name: "exhausted",
			failures: []error{
				stderrors.New("deadline exceeded"),
				stderrors.New("deadline exceeded"),
				stderrors.New("deadline exceeded"),
			},
			wantCalls:    3,
			wantErr:      true,
			wantCodeText: "TIMEOUT_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			_, err := testClient().ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
				calls++
				if calls <= len(tt.failures) {
					return nil, tt.failures[calls-1]
				}
				return "ok", nil
			}, "op")

			assert.Equal(t, tt.wantCalls, calls)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			stdErr, ok := errors.AsStandardError(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantCodeText, string(stdErr.Code))
		})
	}
}

func TestExecuteWithRetry_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := testClient()
	c.config.RetryConfig.BaseDelay = time.Second
	c.config.RetryConfig.MaxDelay = time.Second

	_, err := c.ExecuteWithRetry(ctx, func(context.Context) (interface{}, error) {
		return nil, stderrors.New("connection refused")
	}, "op")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.CamundaConfig{BrokerAddress: "zeebe:26500", RequestTimeout: 1500})
	assert.Equal(t, "zeebe:26500", cfg.GatewayAddress)
	assert.Equal(t, 1500*time.Millisecond, cfg.RequestTimeout)
	assert.Same(t, DefaultRetryConfig, cfg.RetryConfig)
}
