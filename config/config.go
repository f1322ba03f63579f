package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for itturia
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Loop      LoopConfig      `mapstructure:"loop"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Sefaria   SefariaConfig   `mapstructure:"sefaria"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug     bool   `mapstructure:"debug"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"` // console or json
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address           string        `mapstructure:"address"`
	JWTSecret         string        `mapstructure:"jwt_secret"`
	AdminPasswordHash string        `mapstructure:"admin_password_hash"` // bcrypt hash, enables POST /api/auth/token
	TokenTTL          time.Duration `mapstructure:"token_ttl"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	AllowOrigins      []string      `mapstructure:"allow_origins"`
}

// LLMConfig enumerates the enabled language model backends.
type LLMConfig struct {
	Providers map[string]LLMProvider `mapstructure:"providers"`
	Default   string                 `mapstructure:"default"`
}

// LLMProvider represents a single LLM backend configuration
type LLMProvider struct {
	Type        string        `mapstructure:"type"` // openai, anthropic, gemini, ollama
	Enabled     bool          `mapstructure:"enabled"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	MaxRetries  int           `mapstructure:"max_retries"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// apiKeyEnv maps a provider type to the environment variable holding its key.
var apiKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GOOGLE_API_KEY",
}

// Normalize fills API keys from the environment and applies per-provider defaults.
func (c LLMConfig) Normalize() LLMConfig {
	out := LLMConfig{Providers: make(map[string]LLMProvider, len(c.Providers)), Default: strings.TrimSpace(c.Default)}
	for name, p := range c.Providers {
		p.Type = strings.ToLower(strings.TrimSpace(p.Type))
		if p.Type == "" {
			p.Type = strings.ToLower(name)
		}
		if strings.TrimSpace(p.APIKey) == "" {
			if env, ok := apiKeyEnv[p.Type]; ok {
				p.APIKey = os.Getenv(env)
			}
		}
		if p.Timeout <= 0 {
			p.Timeout = 60 * time.Second
		}
		if p.MaxTokens <= 0 {
			p.MaxTokens = 4096
		}
		out.Providers[name] = p
	}
	if out.Default == "" {
		names := out.EnabledNames()
		if len(names) > 0 {
			out.Default = names[0]
		}
	}
	return out
}

// EnabledNames returns the sorted names of enabled providers.
func (c LLMConfig) EnabledNames() []string {
	var names []string
	for name, p := range c.Providers {
		if p.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (c LLMConfig) Validate() error {
	for name, p := range c.Providers {
		if !p.Enabled {
			continue
		}
		switch p.Type {
		case "openai", "anthropic", "gemini":
			if strings.TrimSpace(p.APIKey) == "" {
				return fmt.Errorf("llm.providers.%s.api_key required (or %s)", name, apiKeyEnv[p.Type])
			}
		case "ollama":
			if strings.TrimSpace(p.Model) == "" {
				return fmt.Errorf("llm.providers.%s.model required for ollama", name)
			}
		default:
			return fmt.Errorf("llm.providers.%s.type %q is not supported", name, p.Type)
		}
	}
	if c.Default != "" {
		if p, ok := c.Providers[c.Default]; !ok || !p.Enabled {
			return fmt.Errorf("llm.default %q is not an enabled provider", c.Default)
		}
	}
	return nil
}

// SearchConfig controls the full-text corpus index.
type SearchConfig struct {
	IndexPath        string `mapstructure:"index_path"`
	NativeHighlights bool   `mapstructure:"native_highlights"`
	IngestMode       string `mapstructure:"ingest_mode"` // line or file
	BatchSize        int    `mapstructure:"batch_size"`
	ValidateCron     string `mapstructure:"validate_cron"`
}

func (s SearchConfig) Normalize() SearchConfig {
	s.IngestMode = strings.ToLower(strings.TrimSpace(s.IngestMode))
	if s.IngestMode == "" {
		s.IngestMode = "line"
	}
	if s.BatchSize <= 0 {
		s.BatchSize = 500
	}
	return s
}

func (s SearchConfig) Validate() error {
	if strings.TrimSpace(s.IndexPath) == "" {
		return fmt.Errorf("search.index_path required")
	}
	if s.IngestMode != "line" && s.IngestMode != "file" {
		return fmt.Errorf("search.ingest_mode must be line or file")
	}
	return nil
}

// LoopConfig holds the retrieval-refinement loop defaults.
type LoopConfig struct {
	NumResults    int           `mapstructure:"num_results"`
	MaxIterations int           `mapstructure:"max_iterations"`
	CallTimeout   time.Duration `mapstructure:"call_timeout"`
}

func (l LoopConfig) Normalize() LoopConfig {
	if l.NumResults <= 0 {
		l.NumResults = 10
	}
	if l.MaxIterations <= 0 {
		l.MaxIterations = 3
	}
	return l
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	LogFile      string `mapstructure:"log_file"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

// StorageConfig selects where finished runs are kept.
type StorageConfig struct {
	Backend  string         `mapstructure:"backend"` // memory, redis or postgres
	RunTTL   time.Duration  `mapstructure:"run_ttl"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

func (s StorageConfig) Validate() error {
	switch s.Backend {
	case "", "memory":
		return nil
	case "redis":
		return s.Redis.Validate()
	case "postgres":
		return s.Postgres.Validate()
	default:
		return fmt.Errorf("storage.backend %q is not supported", s.Backend)
	}
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

// Addr joins host and port.
func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN returns the connection string, preferring url.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// SefariaConfig points at a Sefaria-compatible API for reference lookups.
type SefariaConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Retries int           `mapstructure:"retries"`
}

// Enabled reports whether a base url is configured.
func (s SefariaConfig) Enabled() bool { return strings.TrimSpace(s.BaseURL) != "" }

// LoadConfig loads config from file. A missing config file is not an error;
// defaults and ITTURIA_* environment variables still apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.SetDefault("general.log_level", "info")
	v.SetDefault("general.log_format", "console")
	v.SetDefault("server.address", ":10001")
	v.SetDefault("server.token_ttl", 24*time.Hour)
	v.SetDefault("server.request_timeout", 5*time.Minute)
	v.SetDefault("search.index_path", "./data/index.bleve")
	v.SetDefault("search.native_highlights", true)
	v.SetDefault("search.ingest_mode", "line")
	v.SetDefault("search.batch_size", 500)
	v.SetDefault("search.validate_cron", "*/5 * * * *")
	v.SetDefault("loop.num_results", 10)
	v.SetDefault("loop.max_iterations", 3)
	v.SetDefault("loop.call_timeout", 90*time.Second)
	v.SetDefault("telemetry.service_name", "itturia")
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.run_ttl", 24*time.Hour)
	v.SetDefault("sefaria.timeout", 15*time.Second)
	v.SetDefault("sefaria.retries", 2)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		v.AddConfigPath(exeDir)
		v.AddConfigPath(filepath.Join(exeDir, ".."))
		v.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("ITTURIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Finalize normalizes every section and validates the result.
func (c *Config) Finalize() error {
	c.LLM = c.LLM.Normalize()
	c.Search = c.Search.Normalize()
	c.Loop = c.Loop.Normalize()
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if err := c.Search.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	return nil
}
