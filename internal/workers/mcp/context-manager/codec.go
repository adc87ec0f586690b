package contextmanager

import (
	"bytes"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/crypto/chacha20poly1305"

	"mcp-frete-sistema/internal/contract"
)

const keySize = chacha20poly1305.KeySize

var ErrEncryptionUnavailable = errors.New("ENCRYPTION_UNAVAILABLE")

// envelope is what a context key holds in Redis. Payload is the JSON context data, gzipped
// and then sealed as the flags say; encoding/json renders it as base64.
type envelope struct {
	Version    int64      `json:"version"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	Compressed bool       `json:"compressed"`
	Encrypted  bool       `json:"encrypted"`
	Payload    []byte     `json:"payload"`
}

// codec turns context data into envelope payloads and back.
type codec struct {
	key       []byte
	threshold int
}

func newCodec(key []byte, threshold int) *codec {
	return &codec{key: key, threshold: threshold}
}

// seal fills the payload of env. Payloads larger than the threshold are compressed even
// when compression was not asked for.
func (c *codec) seal(env *envelope, data *contract.ContextData, compress, encrypt bool) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode context: %w", err)
	}

	env.Compressed = compress || (c.threshold > 0 && len(raw) > c.threshold)
	if env.Compressed {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(raw); err != nil {
			return fmt.Errorf("compress context: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("compress context: %w", err)
		}
		raw = buf.Bytes()
	}

	env.Encrypted = encrypt
	if encrypt {
		if c.key == nil {
			return ErrEncryptionUnavailable
		}
		aead, err := chacha20poly1305.NewX(c.key)
		if err != nil {
			return fmt.Errorf("encrypt context: %w", err)
		}
		nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(raw)+aead.Overhead())
		if _, err := rand.Read(nonce); err != nil {
			return fmt.Errorf("encrypt context: %w", err)
		}
		raw = aead.Seal(nonce, nonce, raw, nil)
	}

	env.Payload = raw
	return nil
}

func (c *codec) open(env *envelope) (*contract.ContextData, error) {
	raw := env.Payload

	if env.Encrypted {
		if c.key == nil {
			return nil, ErrEncryptionUnavailable
		}
		aead, err := chacha20poly1305.NewX(c.key)
		if err != nil {
			return nil, fmt.Errorf("decrypt context: %w", err)
		}
		if len(raw) < aead.NonceSize() {
			return nil, errors.New("decrypt context: payload too short")
		}
		nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
		if raw, err = aead.Open(nil, nonce, sealed, nil); err != nil {
			return nil, fmt.Errorf("decrypt context: %w", err)
		}
	}

	if env.Compressed {
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("decompress context: %w", err)
		}
		defer zr.Close()
		if raw, err = io.ReadAll(zr); err != nil {
			return nil, fmt.Errorf("decompress context: %w", err)
		}
	}

	var data contract.ContextData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode context: %w", err)
	}
	return &data, nil
}
