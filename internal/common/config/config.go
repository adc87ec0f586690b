// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig               `mapstructure:"app"`
	Server        ServerConfig            `mapstructure:"server"`
	Camunda       CamundaConfig           `mapstructure:"camunda"`
	Database      DatabaseConfig          `mapstructure:"database"`
	Workers       map[string]WorkerConfig `mapstructure:"workers"`
	Tools         ToolsConfig             `mapstructure:"tools"`
	APIs          APIsConfig              `mapstructure:"apis"`
	Logging       LoggingConfig           `mapstructure:"logging"`
	Observability ObservabilityConfig     `mapstructure:"observability"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig holds the HTTP listener settings for the tool API.
type ServerConfig struct {
	Address      string   `mapstructure:"address"`
	ReadTimeout  int      `mapstructure:"read_timeout"`  // milliseconds
	WriteTimeout int      `mapstructure:"write_timeout"` // milliseconds
	CORSOrigins  []string `mapstructure:"cors_origins"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"` // single address shorthand
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

// GetAddresses returns every configured node address.
func (e ElasticsearchConfig) GetAddresses() []string {
	if len(e.Addresses) > 0 {
		return e.Addresses
	}
	if e.URL != "" {
		return []string{e.URL}
	}
	return nil
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Tool Configuration ---

// ToolsConfig holds the behaviour settings of the four tools.
type ToolsConfig struct {
	QueryAnalyzer     QueryAnalyzerConfig     `mapstructure:"query_analyzer"`
	DataLoader        DataLoaderConfig        `mapstructure:"data_loader"`
	ContextManager    ContextManagerConfig    `mapstructure:"context_manager"`
	ResponseGenerator ResponseGeneratorConfig `mapstructure:"response_generator"`
}

type QueryAnalyzerConfig struct {
	Timeout         int    `mapstructure:"timeout"` // milliseconds
	FallbackToRules bool   `mapstructure:"fallback_to_rules"`
	Timezone        string `mapstructure:"timezone"`
	Language        string `mapstructure:"language"`
	MaxEntities     int    `mapstructure:"max_entities"`
}

type DataLoaderConfig struct {
	Timeout       int               `mapstructure:"timeout"` // milliseconds
	DefaultLimit  int               `mapstructure:"default_limit"`
	MaxLimit      int               `mapstructure:"max_limit"`
	CacheTTL      int               `mapstructure:"cache_ttl"` // seconds
	Backends      map[string]string `mapstructure:"backends"`  // domain -> postgres|elasticsearch
	IndexPrefix   string            `mapstructure:"index_prefix"`
	DefaultDomain string            `mapstructure:"default_domain"`
}

// BackendFor returns the backend a domain routes to.
func (d DataLoaderConfig) BackendFor(domain string) string {
	if b, ok := d.Backends[domain]; ok && b != "" {
		return b
	}
	return BackendPostgres
}

// UsesElasticsearch reports whether any domain routes to elasticsearch.
func (d DataLoaderConfig) UsesElasticsearch() bool {
	for _, b := range d.Backends {
		if b == BackendElasticsearch {
			return true
		}
	}
	return false
}

type ContextManagerConfig struct {
	Timeout           int    `mapstructure:"timeout"` // milliseconds
	KeyPrefix         string `mapstructure:"key_prefix"`
	DefaultTTL        int    `mapstructure:"default_ttl"` // seconds, 0 keeps forever
	MaxHistory        int    `mapstructure:"max_history"`
	CompressThreshold int    `mapstructure:"compress_threshold"` // bytes
	EncryptionKey     string `mapstructure:"encryption_key"`     // hex, 32 bytes
}

type ResponseGeneratorConfig struct {
	Timeout        int    `mapstructure:"timeout"` // milliseconds
	DefaultFormat  string `mapstructure:"default_format"`
	Language       string `mapstructure:"language"`
	UseLLM         bool   `mapstructure:"use_llm"`
	MaxSuggestions int    `mapstructure:"max_suggestions"`
}

// APIsConfig holds settings for external API integrations.
type APIsConfig struct {
	GenAI GenAIConfig `mapstructure:"genai"`
}

type GenAIConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
	MaxRetries int    `mapstructure:"max_retries"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ObservabilityConfig controls OpenTelemetry metrics and tracing.
type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	TracingEnabled bool   `mapstructure:"tracing_enabled"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
}

const (
	BackendPostgres      = "postgres"
	BackendElasticsearch = "elasticsearch"
)
