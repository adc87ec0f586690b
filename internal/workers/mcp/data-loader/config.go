package dataloader

import (
	"time"

	"mcp-frete-sistema/internal/common/config"
	"mcp-frete-sistema/internal/contract"
)

type Config struct {
	Timeout      time.Duration
	DefaultLimit int
	MaxLimit     int
	CacheTTL     time.Duration
	IndexPrefix  string
	Backends     map[contract.Domain]string
}

// ConfigFrom builds the loader settings from the application config.
func ConfigFrom(cfg *config.Config) *Config {
	dl := cfg.Tools.DataLoader
	c := &Config{
		Timeout:      config.GetDuration(dl.Timeout),
		DefaultLimit: dl.DefaultLimit,
		MaxLimit:     dl.MaxLimit,
		CacheTTL:     time.Duration(dl.CacheTTL) * time.Second,
		IndexPrefix:  dl.IndexPrefix,
		Backends:     make(map[contract.Domain]string, len(contract.LoadableDomains)),
	}
	for _, d := range contract.LoadableDomains {
		c.Backends[d] = dl.BackendFor(string(d))
	}
	return c
}

// BackendFor returns the backend name a domain routes to, postgres unless configured.
func (c *Config) BackendFor(d contract.Domain) string {
	if b, ok := c.Backends[d]; ok && b != "" {
		return b
	}
	return config.BackendPostgres
}

// page resolves the requested window: the default limit when none is given, clamped to
// the configured maximum.
func (c *Config) page(opts *contract.LoadOptions) (limit, offset int) {
	limit = c.DefaultLimit
	if opts != nil {
		if opts.Limit != nil {
			limit = *opts.Limit
		}
		if opts.Offset != nil {
			offset = *opts.Offset
		}
	}
	if c.MaxLimit > 0 && limit > c.MaxLimit {
		limit = c.MaxLimit
	}
	return limit, offset
}
