// Package config loads the bot configuration from config.json with
// environment variable overrides (environment wins).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	PipelineConfig  PipelineConfig  `json:"pipeline"`
	ConsensusConfig ConsensusConfig `json:"consensus"`
	RiskConfig      RiskConfig      `json:"risk"`
	LLMConfig       LLMConfig       `json:"llm"`
	BinanceConfig   BinanceConfig   `json:"binance"`
	DatabaseConfig  DatabaseConfig  `json:"database"`
	RedisConfig     RedisConfig     `json:"redis"`
	ServerConfig    ServerConfig    `json:"server"`
	AuthConfig      AuthConfig      `json:"auth"`
	VaultConfig     VaultConfig     `json:"vault"`
	LoggingConfig   LoggingConfig   `json:"logging"`
}

// PipelineConfig drives the reconciliation scheduler.
type PipelineConfig struct {
	Symbols    []string `json:"symbols"`
	Timeframes []string `json:"timeframes"`
	Interval   string   `json:"interval"`    // Go duration, e.g. "15m"
	KlineLimit int      `json:"kline_limit"` // candles per timeframe in the prompt
}

// ConsensusConfig holds the timeframe weight table.
type ConsensusConfig struct {
	Weights map[string]float64 `json:"weights"`
	Epsilon float64            `json:"epsilon"`
}

// RiskConfig holds the risk engine policy.
type RiskConfig struct {
	KellyMultiplier  float64 `json:"kelly_multiplier"`
	AccountBalance   float64 `json:"account_balance"`
	RiskPerTrade     float64 `json:"risk_per_trade"`
	LowMaxStopPct    float64 `json:"low_max_stop_pct"`
	MediumMaxStopPct float64 `json:"medium_max_stop_pct"`
	HighMaxStopPct   float64 `json:"high_max_stop_pct"`
	MinKellyForLow   float64 `json:"min_kelly_for_low"`
}

// LLMConfig configures the analyst provider.
type LLMConfig struct {
	Provider    string  `json:"provider"` // claude, openai, deepseek, siliconflow, nvidia
	APIKey      string  `json:"api_key"`
	Model       string  `json:"model"`
	BaseURL     string  `json:"base_url"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Timeout     string  `json:"timeout"` // Go duration
	MaxRetries  int     `json:"max_retries"`
}

type BinanceConfig struct {
	BaseURL string `json:"base_url"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds the optional state cache settings.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type ServerConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	ProductionMode bool   `json:"production_mode"`
}

// AuthConfig enables the single-operator login. Auth is off unless both
// username and password are set.
type AuthConfig struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	JWTSecret string `json:"jwt_secret"`
}

type VaultConfig struct {
	Enabled   bool   `json:"enabled"`
	Address   string `json:"address"`
	Token     string `json:"token"`
	MountPath string `json:"mount_path"`
}

type LoggingConfig struct {
	Level   string `json:"level"`   // debug, info, warn, error
	Console bool   `json:"console"` // human-readable output instead of JSON
}

// Load reads config.json (if present) and applies environment
// overrides.
func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = &Config{}
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if len(cfg.PipelineConfig.Symbols) == 0 {
		cfg.PipelineConfig.Symbols = []string{"BTCUSDT", "ETHUSDT"}
	}
	if len(cfg.PipelineConfig.Timeframes) == 0 {
		cfg.PipelineConfig.Timeframes = []string{"15m", "1h", "1d"}
	}
	if cfg.PipelineConfig.Interval == "" {
		cfg.PipelineConfig.Interval = "15m"
	}
	if cfg.PipelineConfig.KlineLimit == 0 {
		cfg.PipelineConfig.KlineLimit = 50
	}
	if cfg.LLMConfig.Provider == "" {
		cfg.LLMConfig.Provider = "siliconflow"
	}
	if cfg.LLMConfig.Model == "" {
		cfg.LLMConfig.Model = "deepseek-ai/DeepSeek-V3"
	}
	if cfg.LLMConfig.MaxTokens == 0 {
		cfg.LLMConfig.MaxTokens = 4096
	}
	if cfg.LLMConfig.Timeout == "" {
		cfg.LLMConfig.Timeout = "60s"
	}
	if cfg.LLMConfig.MaxRetries == 0 {
		cfg.LLMConfig.MaxRetries = 3
	}
	if cfg.ServerConfig.Port == 0 {
		cfg.ServerConfig.Port = 8080
	}
	if cfg.DatabaseConfig.Port == 0 {
		cfg.DatabaseConfig.Port = 5432
	}
	if cfg.DatabaseConfig.SSLMode == "" {
		cfg.DatabaseConfig.SSLMode = "disable"
	}
	if cfg.LoggingConfig.Level == "" {
		cfg.LoggingConfig.Level = "info"
	}
}

func applyEnvOverrides(cfg *Config) {
	// Domain settings use the PRICEACTION_ prefix.
	if v := os.Getenv("PRICEACTION_SYMBOLS"); v != "" {
		cfg.PipelineConfig.Symbols = splitCSV(v)
	}
	if v := os.Getenv("PRICEACTION_TIMEFRAMES"); v != "" {
		cfg.PipelineConfig.Timeframes = splitCSV(v)
	}
	cfg.PipelineConfig.Interval = getEnvOrDefault("PRICEACTION_INTERVAL", cfg.PipelineConfig.Interval)
	cfg.PipelineConfig.KlineLimit = getEnvIntOrDefault("PRICEACTION_KLINE_LIMIT", cfg.PipelineConfig.KlineLimit)

	cfg.LLMConfig.Provider = getEnvOrDefault("PRICEACTION_LLM_PROVIDER", cfg.LLMConfig.Provider)
	cfg.LLMConfig.APIKey = getEnvOrDefault("PRICEACTION_LLM_API_KEY", cfg.LLMConfig.APIKey)
	cfg.LLMConfig.Model = getEnvOrDefault("PRICEACTION_LLM_MODEL", cfg.LLMConfig.Model)
	cfg.LLMConfig.BaseURL = getEnvOrDefault("PRICEACTION_LLM_BASE_URL", cfg.LLMConfig.BaseURL)
	cfg.LLMConfig.MaxRetries = getEnvIntOrDefault("PRICEACTION_LLM_MAX_RETRIES", cfg.LLMConfig.MaxRetries)

	cfg.RiskConfig.AccountBalance = getEnvFloatOrDefault("PRICEACTION_ACCOUNT_BALANCE", cfg.RiskConfig.AccountBalance)
	cfg.RiskConfig.RiskPerTrade = getEnvFloatOrDefault("PRICEACTION_RISK_PER_TRADE", cfg.RiskConfig.RiskPerTrade)

	// Infrastructure settings keep conventional names.
	cfg.BinanceConfig.BaseURL = getEnvOrDefault("BINANCE_BASE_URL", cfg.BinanceConfig.BaseURL)

	cfg.DatabaseConfig.Host = getEnvOrDefault("DATABASE_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DATABASE_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DATABASE_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DATABASE_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DATABASE_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DATABASE_SSLMODE", cfg.DatabaseConfig.SSLMode)

	if v := os.Getenv("REDIS_ADDRESS"); v != "" {
		cfg.RedisConfig.Enabled = true
		cfg.RedisConfig.Address = v
	}
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)

	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.ProductionMode = getEnvOrDefault("PRODUCTION_MODE", "false") == "true" || cfg.ServerConfig.ProductionMode

	cfg.AuthConfig.Username = getEnvOrDefault("AUTH_USERNAME", cfg.AuthConfig.Username)
	cfg.AuthConfig.Password = getEnvOrDefault("AUTH_PASSWORD", cfg.AuthConfig.Password)
	cfg.AuthConfig.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.AuthConfig.JWTSecret)

	cfg.VaultConfig.Enabled = getEnvOrDefault("VAULT_ENABLED", "false") == "true" || cfg.VaultConfig.Enabled
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", cfg.VaultConfig.Address)
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.MountPath = getEnvOrDefault("VAULT_MOUNT_PATH", cfg.VaultConfig.MountPath)

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Console = getEnvOrDefault("LOG_CONSOLE", "false") == "true" || cfg.LoggingConfig.Console
}

// Interval parses the scheduler interval.
func (p PipelineConfig) IntervalDuration() time.Duration {
	d, err := time.ParseDuration(p.Interval)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// TimeoutDuration parses the LLM request timeout.
func (l LLMConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(l.Timeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

// AuthEnabled reports whether operator auth should be wired.
func (a AuthConfig) AuthEnabled() bool {
	return a.Username != "" && a.Password != ""
}

func loadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", filename, err)
	}
	return &cfg, nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
