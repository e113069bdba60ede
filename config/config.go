package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the briefing system
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug             bool          `mapstructure:"debug"`
	LogLevel          string        `mapstructure:"log_level"`
	MaxProcessingTime time.Duration `mapstructure:"max_processing_time"`
	DefaultTimeout    time.Duration `mapstructure:"default_timeout"`
	DefaultCountry    string        `mapstructure:"default_country"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// LLMConfig contains LLM provider configurations
type LLMConfig struct {
	Providers map[string]LLMProvider `mapstructure:"providers"`
	Routing   LLMRoutingConfig       `mapstructure:"routing"`
}

// LLMProvider represents a single LLM provider configuration
type LLMProvider struct {
	Type       string              `mapstructure:"type"` // openai, anthropic, local, etc.
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Models     map[string]LLMModel `mapstructure:"models"`
	MaxRetries int                 `mapstructure:"max_retries"`
	Timeout    time.Duration       `mapstructure:"timeout"`
}

// LLMModel represents a specific model configuration
type LLMModel struct {
	Name            string   `mapstructure:"name"`
	APIName         string   `mapstructure:"api_name"`
	MaxTokens       int      `mapstructure:"max_tokens"`
	Temperature     float64  `mapstructure:"temperature"`
	CostPer1K       float64  `mapstructure:"cost_per_1k_input"`
	CostPer1KOutput float64  `mapstructure:"cost_per_1k_output"`
	Capabilities    []string `mapstructure:"capabilities"` // ingestion, analysis, drafting, review
}

// LLMRoutingConfig defines which model to use for the different stage families
type LLMRoutingConfig struct {
	Ingestion string `mapstructure:"ingestion"` // regional news discovery
	Analysis  string `mapstructure:"analysis"`  // classification and trends
	Drafting  string `mapstructure:"drafting"`  // section drafting and combining
	Review    string `mapstructure:"review"`    // risk checking and redrafting
	Fallback  string `mapstructure:"fallback"`  // fallback model
}

// ModelFor resolves the configured model key for a stage family, falling back
// to the routing fallback when the family has no explicit route.
func (r LLMRoutingConfig) ModelFor(family string) string {
	var m string
	switch family {
	case "ingestion":
		m = r.Ingestion
	case "analysis":
		m = r.Analysis
	case "drafting":
		m = r.Drafting
	case "review":
		m = r.Review
	}
	if m == "" {
		m = r.Fallback
	}
	return m
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	MetricsPort  int    `mapstructure:"metrics_port"`
	LogFile      string `mapstructure:"log_file"`
	CostTracking bool   `mapstructure:"cost_tracking"`
}

func (t TelemetryConfig) Validate() error {
	if t.Enabled && t.MetricsPort <= 0 {
		return fmt.Errorf("telemetry.metrics_port must be > 0 when telemetry is enabled")
	}
	return nil
}

// FailurePolicy controls how the parallel ingestion group reacts when one of
// its member stages fails.
type FailurePolicy string

const (
	FailurePolicyFailFast FailurePolicy = "fail_fast"
	FailurePolicyDegraded FailurePolicy = "degraded"
)

// PipelineConfig contains workflow composition settings
type PipelineConfig struct {
	MaxRiskIterations int           `mapstructure:"max_risk_iterations"`
	FailurePolicy     FailurePolicy `mapstructure:"failure_policy"`
	MinRelevanceLen   int           `mapstructure:"min_relevance_len"`
	StageTimeout      time.Duration `mapstructure:"stage_timeout"`
}

// Normalize applies defaults for unset pipeline values.
func (p PipelineConfig) Normalize() PipelineConfig {
	if p.MaxRiskIterations <= 0 {
		p.MaxRiskIterations = 3
	}
	if p.FailurePolicy == "" {
		p.FailurePolicy = FailurePolicyDegraded
	}
	if p.MinRelevanceLen <= 0 {
		p.MinRelevanceLen = 40
	}
	if p.StageTimeout <= 0 {
		p.StageTimeout = 2 * time.Minute
	}
	return p
}

// Validate ensures the pipeline settings are coherent.
func (p PipelineConfig) Validate() error {
	switch p.FailurePolicy {
	case FailurePolicyFailFast, FailurePolicyDegraded:
	default:
		return fmt.Errorf("pipeline.failure_policy must be %q or %q", FailurePolicyFailFast, FailurePolicyDegraded)
	}
	if p.MaxRiskIterations < 1 {
		return fmt.Errorf("pipeline.max_risk_iterations must be >= 1")
	}
	return nil
}

// SourcesConfig contains news source configurations
type SourcesConfig struct {
	WebSearch WebSearchConfig `mapstructure:"web_search"`
	WebFetch  WebFetchConfig  `mapstructure:"web_fetch"`
}

// WebSearchConfig contains web search settings
type WebSearchConfig struct {
	Provider     string        `mapstructure:"provider"` // brave or serper
	BraveAPIKey  string        `mapstructure:"brave_api_key"`
	SerperAPIKey string        `mapstructure:"serper_api_key"`
	MaxResults   int           `mapstructure:"max_results"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// WebFetchConfig contains article extraction settings
type WebFetchConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxChars int           `mapstructure:"max_chars"`
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("storage.redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required")
	}
	return nil
}

// Addr returns the host:port pair for the Redis client.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.Port) == "" {
		return fmt.Errorf("storage.postgres.port required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN returns a postgres connection string, preferring the explicit URL.
func (p PostgresConfig) DSN() string {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, p.Port, p.DBName, ssl)
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("json")   // REQUIRED if the config file does not have the extension in the name
	viper.SetDefault("general.default_country", "United States")
	viper.SetDefault("pipeline.max_risk_iterations", 3)
	viper.SetDefault("pipeline.failure_policy", string(FailurePolicyDegraded))
	viper.SetDefault("pipeline.min_relevance_len", 40)
	viper.SetDefault("sources.web_search.max_results", 10)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("AROVI")
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	viper.AutomaticEnv() // read in environment variables that match (AROVI_*)

	err := viper.ReadInConfig()
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config

	if err = viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	config.Pipeline = config.Pipeline.Normalize()

	if err := config.Telemetry.Validate(); err != nil {
		panic(err)
	}
	if err := config.Pipeline.Validate(); err != nil {
		panic(err)
	}
	return &config
}
