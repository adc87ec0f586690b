package queryanalyzer

import (
	"time"

	"mcp-frete-sistema/internal/common/config"
)

type Config struct {
	Timeout         time.Duration
	GenAIBaseURL    string
	APIKey          string
	GenAITimeout    time.Duration
	MaxRetries      int
	FallbackToRules bool
	Location        *time.Location
	Language        string
	MaxEntities     int
}

// ConfigFrom builds the analyzer settings from the application config.
func ConfigFrom(cfg *config.Config) *Config {
	qa := cfg.Tools.QueryAnalyzer
	return &Config{
		Timeout:         config.GetDuration(qa.Timeout),
		GenAIBaseURL:    cfg.APIs.GenAI.BaseURL,
		APIKey:          cfg.APIs.GenAI.APIKey,
		GenAITimeout:    config.GetDuration(cfg.APIs.GenAI.Timeout),
		MaxRetries:      cfg.APIs.GenAI.MaxRetries,
		FallbackToRules: qa.FallbackToRules,
		Location:        loadLocation(qa.Timezone),
		Language:        qa.Language,
		MaxEntities:     qa.MaxEntities,
	}
}

func loadLocation(name string) *time.Location {
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return time.FixedZone("BRT", -3*60*60)
}
