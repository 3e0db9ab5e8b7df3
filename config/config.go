package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the investigation engine
type Config struct {
	General       GeneralConfig       `mapstructure:"general"`
	Server        ServerConfig        `mapstructure:"server"`
	Investigation InvestigationConfig `mapstructure:"investigation"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Search        SearchConfig        `mapstructure:"search"`
	Fetch         FetchConfig         `mapstructure:"fetch"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Storage       StorageConfig       `mapstructure:"storage"`
	Telemetry     TelemetryConfig     `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// InvestigationConfig carries the tunable limits for a single investigation.
// These are defaults; callers may override per request.
type InvestigationConfig struct {
	RoundLimit  int           `mapstructure:"round_limit"`
	ResultLimit int           `mapstructure:"result_limit"`
	MaxTopics   int           `mapstructure:"max_topics"`
	Budget      time.Duration `mapstructure:"budget"`
}

// Normalize applies defaults for unset investigation values.
func (c InvestigationConfig) Normalize() InvestigationConfig {
	if c.RoundLimit <= 0 {
		c.RoundLimit = 2
	}
	if c.ResultLimit <= 0 {
		c.ResultLimit = 7
	}
	if c.MaxTopics <= 0 {
		c.MaxTopics = 3
	}
	if c.Budget <= 0 {
		c.Budget = 5 * time.Minute
	}
	return c
}

// LLMConfig contains the ordered provider chain. Order matters: providers
// are tried first to last on every completion call.
type LLMConfig struct {
	Providers []LLMProvider `mapstructure:"providers"`
}

// LLMProvider represents a single LLM provider configuration
type LLMProvider struct {
	Name        string        `mapstructure:"name"`
	Type        string        `mapstructure:"type"` // openai-compatible endpoints only for now
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MinInterval time.Duration `mapstructure:"min_interval"`
}

func (c LLMConfig) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("llm.providers must list at least one provider")
	}
	seen := map[string]struct{}{}
	for i, p := range c.Providers {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("llm.providers[%d].name is required", i)
		}
		if _, ok := seen[p.Name]; ok {
			return fmt.Errorf("llm.providers[%d].name %q duplicated", i, p.Name)
		}
		seen[p.Name] = struct{}{}
		if strings.TrimSpace(p.Model) == "" {
			return fmt.Errorf("llm.providers[%d].model is required", i)
		}
	}
	return nil
}

// SearchConfig selects the web search backend
type SearchConfig struct {
	Provider string `mapstructure:"provider"` // serper, brave
	APIKey   string `mapstructure:"api_key"`
	Country  string `mapstructure:"country"`
	Language string `mapstructure:"language"`
}

// FetchConfig controls the page retrieval layer
type FetchConfig struct {
	Workers    int           `mapstructure:"workers"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxChars   int           `mapstructure:"max_chars"`
	Renderer   string        `mapstructure:"renderer"` // http (default) or chromedp
	UserAgents []string      `mapstructure:"user_agents"`
	Proxies    []string      `mapstructure:"proxies"`
	ProbeURL   string        `mapstructure:"probe_url"`
}

// Normalize applies defaults for unset fetch values.
func (c FetchConfig) Normalize() FetchConfig {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.MaxChars <= 0 {
		c.MaxChars = 40000
	}
	if c.Renderer == "" {
		c.Renderer = "http"
	}
	if c.ProbeURL == "" {
		c.ProbeURL = "https://httpbin.org/ip"
	}
	return c
}

func (c FetchConfig) Validate() error {
	switch c.Renderer {
	case "", "http", "chromedp":
	default:
		return fmt.Errorf("fetch.renderer must be http or chromedp, got %q", c.Renderer)
	}
	return nil
}

// CacheConfig selects the fetch/search cache backend
type CacheConfig struct {
	Backend    string        `mapstructure:"backend"` // memory (default) or redis
	TTL        time.Duration `mapstructure:"ttl"`
	MaxEntries int           `mapstructure:"max_entries"`
	Redis      RedisConfig   `mapstructure:"redis"`
}

// Normalize applies defaults for unset cache values.
func (c CacheConfig) Normalize() CacheConfig {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.TTL <= 0 {
		c.TTL = time.Hour
	}
	if c.MaxEntries <= 0 {
		c.MaxEntries = 512
	}
	return c
}

func (c CacheConfig) Validate() error {
	switch c.Backend {
	case "", "memory", "redis":
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got %q", c.Backend)
	}
	if c.Backend == "redis" && strings.TrimSpace(c.Redis.Host) == "" {
		return fmt.Errorf("cache.redis.host required when backend is redis")
	}
	return nil
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// StorageConfig contains the optional audit store settings
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig contains PostgreSQL connection settings for the audit store
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// Enabled reports whether an audit store is configured at all.
func (p PostgresConfig) Enabled() bool {
	return strings.TrimSpace(p.URL) != "" || strings.TrimSpace(p.Host) != ""
}

// DSN builds the connection string from the configured parts.
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

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	CostTracking bool `mapstructure:"cost_tracking"`
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.SetDefault("server.address", ":10010")
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("search.provider", "serper")
	viper.SetDefault("telemetry.enabled", true)

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

	viper.SetEnvPrefix("OSINTER")
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	config.Investigation = config.Investigation.Normalize()
	config.Fetch = config.Fetch.Normalize()
	config.Cache = config.Cache.Normalize()

	if err := config.LLM.Validate(); err != nil {
		panic(err)
	}
	if err := config.Fetch.Validate(); err != nil {
		panic(err)
	}
	if err := config.Cache.Validate(); err != nil {
		panic(err)
	}
	return &config
}
