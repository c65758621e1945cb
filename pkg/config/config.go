package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Trials     TrialsConfig     `yaml:"trials"`
	MarketData MarketDataConfig `yaml:"market_data"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Export     ExportConfig     `yaml:"export"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Environment string          `yaml:"environment"`
}

type ServerConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Timeout  time.Duration `yaml:"timeout"`
	Schedule string        `yaml:"schedule"` // cron spec with seconds field, empty disables
}

type DatabaseConfig struct {
	Postgres PostgresConfig `yaml:"postgres"`
	Redis    RedisConfig    `yaml:"redis"`
	Neo4j    Neo4jConfig    `yaml:"neo4j"`
}

type PostgresConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Database       string `yaml:"database"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	SSLMode        string `yaml:"ssl_mode"`
	MaxConnections int    `yaml:"max_connections"`
}

type RedisConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Password     string `yaml:"password"`
	DB           int    `yaml:"db"`
	Stream       string `yaml:"stream"`
	StreamMaxLen int64  `yaml:"stream_max_len"`
}

type Neo4jConfig struct {
	Enabled        bool   `yaml:"enabled"`
	URI            string `yaml:"uri"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	MaxConnections int    `yaml:"max_connections"`
}

// TrialsConfig configures the registry search endpoint and the run filters
type TrialsConfig struct {
	BaseURL string            `yaml:"base_url"`
	Timeout time.Duration     `yaml:"timeout"`
	PageCap int               `yaml:"page_cap"` // 0 means unbounded
	Filters map[string]string `yaml:"filters"`
}

type MarketDataConfig struct {
	Provider          string             `yaml:"provider"` // yahoo or alphavantage
	Yahoo             YahooConfig        `yaml:"yahoo"`
	AlphaVantage      AlphaVantageConfig `yaml:"alpha_vantage"`
	Timeout           time.Duration      `yaml:"timeout"`
	RequestsPerSecond float64            `yaml:"requests_per_second"`
	Match             MatchConfig        `yaml:"match"`
}

type YahooConfig struct {
	SearchURL string `yaml:"search_url"`
	QuoteURL  string `yaml:"quote_url"`
	UserAgent string `yaml:"user_agent"`
}

type AlphaVantageConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

type MatchConfig struct {
	Strategy  string `yaml:"strategy"` // ratio or token_sort_ratio
	Threshold int    `yaml:"threshold"`
}

type EnrichmentConfig struct {
	Workers         int   `yaml:"workers"`
	MemoizeSponsors *bool `yaml:"memoize_sponsors"`
}

// Memoize reports whether sponsor resolutions are reused within a run
func (e EnrichmentConfig) Memoize() bool {
	return e.MemoizeSponsors == nil || *e.MemoizeSponsors
}

type ExportConfig struct {
	CSVPath string `yaml:"csv_path"`
}

type MonitoringConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Market data providers
const (
	ProviderYahoo        = "yahoo"
	ProviderAlphaVantage = "alphavantage"
)

// Match strategies
const (
	MatchRatio          = "ratio"
	MatchTokenSortRatio = "token_sort_ratio"
)

// FilterKeys lists the recognized run filters
var FilterKeys = []string{"titles", "locn", "lead", "overallStatus", "advanced", "pageSize"}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	config := Default()
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	expandEnvVars(config)
	applyDefaults(config)

	if err := Validate(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Default returns a configuration that talks to the public endpoints with no
// storage backends enabled
func Default() *Config {
	config := &Config{}
	applyDefaults(config)
	return config
}

func applyDefaults(config *Config) {
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.Timeout == 0 {
		config.Server.Timeout = 30 * time.Second
	}
	if config.Trials.BaseURL == "" {
		config.Trials.BaseURL = "https://clinicaltrials.gov/api/v2/studies"
	}
	if config.Trials.Timeout == 0 {
		config.Trials.Timeout = 30 * time.Second
	}
	if config.MarketData.Provider == "" {
		config.MarketData.Provider = ProviderYahoo
	}
	if config.MarketData.Yahoo.SearchURL == "" {
		config.MarketData.Yahoo.SearchURL = "https://query2.finance.yahoo.com/v1/finance/search"
	}
	if config.MarketData.Yahoo.QuoteURL == "" {
		config.MarketData.Yahoo.QuoteURL = "https://query1.finance.yahoo.com/v7/finance/quote"
	}
	if config.MarketData.Yahoo.UserAgent == "" {
		config.MarketData.Yahoo.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	}
	if config.MarketData.AlphaVantage.BaseURL == "" {
		config.MarketData.AlphaVantage.BaseURL = "https://www.alphavantage.co/query"
	}
	if config.MarketData.Timeout == 0 {
		config.MarketData.Timeout = 30 * time.Second
	}
	if config.MarketData.Match.Strategy == "" {
		config.MarketData.Match.Strategy = MatchRatio
	}
	if config.MarketData.Match.Threshold == 0 {
		config.MarketData.Match.Threshold = 50
	}
	if config.Enrichment.Workers == 0 {
		config.Enrichment.Workers = 1
	}
	if config.Database.Redis.Stream == "" {
		config.Database.Redis.Stream = "trials:rows"
	}
	if config.Monitoring.Logging.Level == "" {
		config.Monitoring.Logging.Level = "info"
	}
	if config.Monitoring.Logging.Format == "" {
		config.Monitoring.Logging.Format = "json"
	}
}

// expandEnvVars expands environment variables in secret fields
func expandEnvVars(config *Config) {
	config.MarketData.AlphaVantage.APIKey = os.ExpandEnv(config.MarketData.AlphaVantage.APIKey)
	config.Database.Postgres.Password = os.ExpandEnv(config.Database.Postgres.Password)
	config.Database.Redis.Password = os.ExpandEnv(config.Database.Redis.Password)
	config.Database.Neo4j.Password = os.ExpandEnv(config.Database.Neo4j.Password)
}

// Validate ensures the configuration is valid
func Validate(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Trials.PageCap < 0 {
		return fmt.Errorf("page cap must not be negative: %d", config.Trials.PageCap)
	}

	for key := range config.Trials.Filters {
		if !isFilterKey(key) {
			return fmt.Errorf("unknown trials filter %q", key)
		}
	}

	switch config.MarketData.Provider {
	case ProviderYahoo:
	case ProviderAlphaVantage:
		if config.MarketData.AlphaVantage.APIKey == "" {
			return fmt.Errorf("alpha vantage api key is required")
		}
	default:
		return fmt.Errorf("unknown market data provider %q", config.MarketData.Provider)
	}

	switch config.MarketData.Match.Strategy {
	case MatchRatio, MatchTokenSortRatio:
	default:
		return fmt.Errorf("unknown match strategy %q", config.MarketData.Match.Strategy)
	}

	if config.MarketData.Match.Threshold < 0 || config.MarketData.Match.Threshold > 100 {
		return fmt.Errorf("match threshold must be within 0-100: %d", config.MarketData.Match.Threshold)
	}

	if config.Enrichment.Workers < 1 {
		return fmt.Errorf("enrichment workers must be at least 1: %d", config.Enrichment.Workers)
	}

	if config.Database.Postgres.Enabled && config.Database.Postgres.Host == "" {
		return fmt.Errorf("postgres host is required")
	}

	if config.Database.Redis.Enabled && config.Database.Redis.Host == "" {
		return fmt.Errorf("redis host is required")
	}

	if config.Database.Neo4j.Enabled && config.Database.Neo4j.URI == "" {
		return fmt.Errorf("neo4j URI is required")
	}

	return nil
}

func isFilterKey(key string) bool {
	for _, k := range FilterKeys {
		if k == key {
			return true
		}
	}
	return false
}
