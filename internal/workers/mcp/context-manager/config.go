package contextmanager

import (
	"encoding/hex"
	"fmt"
	"time"

	"mcp-frete-sistema/internal/common/config"
)

type Config struct {
	Timeout           time.Duration
	KeyPrefix         string
	DefaultTTL        time.Duration
	MaxHistory        int
	CompressThreshold int
	EncryptionKey     []byte // nil when encryption is unavailable
}

// ConfigFrom builds the context manager settings. A configured encryption key must be 32
// bytes of hex.
func ConfigFrom(cfg *config.Config) (*Config, error) {
	cm := cfg.Tools.ContextManager
	c := &Config{
		Timeout:           config.GetDuration(cm.Timeout),
		KeyPrefix:         cm.KeyPrefix,
		DefaultTTL:        time.Duration(cm.DefaultTTL) * time.Second,
		MaxHistory:        cm.MaxHistory,
		CompressThreshold: cm.CompressThreshold,
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "mcp:ctx"
	}
	if cm.EncryptionKey != "" {
		key, err := hex.DecodeString(cm.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("context manager encryption key: %w", err)
		}
		if len(key) != keySize {
			return nil, fmt.Errorf("context manager encryption key: want %d bytes, got %d", keySize, len(key))
		}
		c.EncryptionKey = key
	}
	return c, nil
}
