package responsegenerator

import (
	"time"

	"mcp-frete-sistema/internal/common/config"
	"mcp-frete-sistema/internal/contract"
)

const (
	defaultLanguage       = "pt-BR"
	defaultMaxSuggestions = 3
)

type Config struct {
	Timeout        time.Duration
	DefaultFormat  contract.ResponseFormat
	Language       string
	UseLLM         bool
	MaxSuggestions int
	GenAIBaseURL   string
	APIKey         string
	GenAITimeout   time.Duration
	MaxRetries     int
}

func ConfigFrom(cfg *config.Config) *Config {
	rg := cfg.Tools.ResponseGenerator
	c := &Config{
		Timeout:        config.GetDuration(rg.Timeout),
		DefaultFormat:  contract.ResponseFormat(rg.DefaultFormat),
		Language:       rg.Language,
		UseLLM:         rg.UseLLM,
		MaxSuggestions: rg.MaxSuggestions,
		GenAIBaseURL:   cfg.APIs.GenAI.BaseURL,
		APIKey:         cfg.APIs.GenAI.APIKey,
		GenAITimeout:   config.GetDuration(cfg.APIs.GenAI.Timeout),
		MaxRetries:     cfg.APIs.GenAI.MaxRetries,
	}
	if !c.DefaultFormat.Valid() {
		c.DefaultFormat = contract.FormatMarkdown
	}
	if c.Language == "" {
		c.Language = defaultLanguage
	}
	if c.MaxSuggestions <= 0 {
		c.MaxSuggestions = defaultMaxSuggestions
	}
	return c
}

func (c *Config) format(o *contract.ResponseOptions) contract.ResponseFormat {
	if o != nil && o.Format != "" {
		return o.Format
	}
	return c.DefaultFormat
}

func (c *Config) language(o *contract.ResponseOptions) string {
	if o != nil && o.Language != "" {
		return o.Language
	}
	return c.Language
}

func (c *Config) maxSuggestions(o *contract.ResponseOptions) int {
	if o != nil && o.MaxSuggestions != nil {
		return *o.MaxSuggestions
	}
	return c.MaxSuggestions
}
