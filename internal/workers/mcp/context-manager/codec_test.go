package contextmanager

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcp-frete-sistema/internal/contract"
)

var testKey = bytes.Repeat([]byte{7}, keySize)

func sampleData() *contract.ContextData {
	return &contract.ContextData{
		Conversation: &contract.ConversationContext{
			History:    []contract.ConversationTurn{{Query: "fretes de hoje", Intent: contract.IntentQuery, Domain: contract.DomainFretes}},
			LastIntent: contract.IntentQuery,
		},
		Memory: &contract.MemoryContext{ShortTerm: contract.ScalarMap{"uf": contract.StringValue("SP")}},
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	tests := []struct {
		name           string
		threshold      int
		compress       bool
		encrypt        bool
		wantCompressed bool
	}{
		{name: "plain"},
		{name: "compressed", compress: true, wantCompressed: true},
		{name: "encrypted", encrypt: true},
		{name: "compressed and encrypted", compress: true, encrypt: true, wantCompressed: true},
		{name: "over threshold", threshold: 10, wantCompressed: true},
		{name: "under threshold", threshold: 1 << 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCodec(testKey, tt.threshold)
			env := &envelope{}
			require.NoError(t, c.seal(env, sampleData(), tt.compress, tt.encrypt))

			assert.Equal(t, tt.wantCompressed, env.Compressed)
			assert.Equal(t, tt.encrypt, env.Encrypted)
			if tt.encrypt || tt.wantCompressed {
				assert.NotContains(t, string(env.Payload), "fretes de hoje")
			} else {
				assert.Contains(t, string(env.Payload), "fretes de hoje")
			}

			got, err := c.open(env)
			require.NoError(t, err)
			assert.Equal(t, sampleData(), got)
		})
	}
}

func TestCodec_EncryptWithoutKey(t *testing.T) {
	c := newCodec(nil, 0)
	err := c.seal(&envelope{}, sampleData(), false, true)
	assert.ErrorIs(t, err, ErrEncryptionUnavailable)

	_, err = c.open(&envelope{Encrypted: true, Payload: []byte("x")})
	assert.ErrorIs(t, err, ErrEncryptionUnavailable)
}

func TestCodec_OpenRejectsTamperedPayload(t *testing.T) {
	c := newCodec(testKey, 0)
	env := &envelope{}
	require.NoError(t, c.seal(env, sampleData(), false, true))

	env.Payload[len(env.Payload)-1] ^= 0xff
	_, err := c.open(env)
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "decrypt context"))

	other := newCodec(bytes.Repeat([]byte{8}, keySize), 0)
	fresh := &envelope{}
	require.NoError(t, c.seal(fresh, sampleData(), false, true))
	_, err = other.open(fresh)
	assert.Error(t, err)
}

func TestCodec_NonceIsRandom(t *testing.T) {
	c := newCodec(testKey, 0)
	a, b := &envelope{}, &envelope{}
	require.NoError(t, c.seal(a, sampleData(), false, true))
	require.NoError(t, c.seal(b, sampleData(), false, true))
	assert.NotEqual(t, a.Payload, b.Payload)
}
