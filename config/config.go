package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"stopkeeper/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	// Alpaca API
	APIKey    string
	SecretKey string
	Paper     bool

	// Protection defaults (per-symbol overrides come from the policy file)
	StopLossPct      float64 // e.g. 0.10 for 10% below entry
	TrailTriggerPLPC float64 // unrealized P/L fraction that activates trailing
	TrailPercent     float64 // trail distance in percent
	TrailingEnabled  bool

	// Swap behavior
	CancelSettleDelay time.Duration

	// Paths
	PolicyFile string
	DataDir    string
	DocsDir    string
	DBPath     string

	// Logging
	LogLevel    string
	LogEncoding string
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Alpaca API
	cfg.APIKey = getEnv("APCA_API_KEY_ID", "")
	cfg.SecretKey = getEnv("APCA_API_SECRET_KEY", "")
	cfg.Paper = getEnvAsBool("ALPACA_PAPER", true) // Default to paper for safety

	if cfg.APIKey == "" {
		errs = append(errs, "APCA_API_KEY_ID must be set")
	}
	if cfg.SecretKey == "" {
		errs = append(errs, "APCA_API_SECRET_KEY must be set")
	}

	// Protection defaults
	cfg.StopLossPct, err = getEnvAsFloatRequired("STOP_LOSS_PCT", 0.10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid STOP_LOSS_PCT: %v", err))
	} else if cfg.StopLossPct <= 0 || cfg.StopLossPct >= 1.0 {
		errs = append(errs, "STOP_LOSS_PCT must be between 0.0 and 1.0 (exclusive)")
	}

	cfg.TrailTriggerPLPC, err = getEnvAsFloatRequired("TRAIL_TRIGGER_PLPC", 0.05)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TRAIL_TRIGGER_PLPC: %v", err))
	} else if cfg.TrailTriggerPLPC <= 0 {
		errs = append(errs, "TRAIL_TRIGGER_PLPC must be positive")
	}

	cfg.TrailPercent, err = getEnvAsFloatRequired("TRAIL_PERCENT", 8.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TRAIL_PERCENT: %v", err))
	} else if cfg.TrailPercent <= 0 || cfg.TrailPercent >= 100 {
		errs = append(errs, "TRAIL_PERCENT must be between 0 and 100 (exclusive)")
	}

	cfg.TrailingEnabled = getEnvAsBool("TRAILING_ENABLED", true)

	// Swap behavior
	cfg.CancelSettleDelay, err = getEnvAsDuration("CANCEL_SETTLE_DELAY", 2*time.Second)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid CANCEL_SETTLE_DELAY: %v", err))
	} else if cfg.CancelSettleDelay < 0 {
		errs = append(errs, "CANCEL_SETTLE_DELAY cannot be negative")
	}

	// Paths
	cfg.PolicyFile = getEnv("POLICY_FILE", "./policies.yaml")
	cfg.DataDir = getEnv("DATA_DIR", "./data")
	cfg.DocsDir = getEnv("DOCS_DIR", "./docs")
	cfg.DBPath = getEnv("DB_PATH", "./data/stopkeeper.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogEncoding = getEnv("LOG_ENCODING", "console")

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// DefaultPolicy builds the protection policy applied to symbols without an
// entry in the policy file.
func (c *Config) DefaultPolicy() domain.ProtectionPolicy {
	pol := domain.ProtectionPolicy{
		Basis:       domain.BasisRelative,
		StopLossPct: decimal.NewFromFloat(c.StopLossPct),
	}
	if c.TrailingEnabled {
		pol.Trail = &domain.TrailRule{
			TriggerPLPC:  decimal.NewFromFloat(c.TrailTriggerPLPC),
			TrailPercent: decimal.NewFromFloat(c.TrailPercent),
		}
	}
	return pol
}

// policySpec is the YAML shape of one per-symbol policy entry.
type policySpec struct {
	Basis       string   `yaml:"basis"`
	StopLossPct *float64 `yaml:"stop_loss_pct"`
	StopPrice   *float64 `yaml:"stop_price"`
	Trail       *struct {
		TriggerPLPC  float64 `yaml:"trigger_plpc"`
		TrailPercent float64 `yaml:"trail_percent"`
	} `yaml:"trail"`
}

type policyFile struct {
	Symbols map[string]policySpec `yaml:"symbols"`
}

// LoadPolicies reads the per-symbol policy table from a YAML file. A missing
// file is not an error: every symbol then falls back to the default policy.
func LoadPolicies(path string) (map[string]domain.ProtectionPolicy, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]domain.ProtectionPolicy{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file '%s': %w", path, err)
	}

	var file policyFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse policy file '%s': %w", path, err)
	}

	table := make(map[string]domain.ProtectionPolicy, len(file.Symbols))
	for symbol, spec := range file.Symbols {
		pol, err := spec.toPolicy()
		if err != nil {
			return nil, fmt.Errorf("policy for symbol %s: %w", symbol, err)
		}
		table[strings.ToUpper(symbol)] = pol
	}
	return table, nil
}

func (s policySpec) toPolicy() (domain.ProtectionPolicy, error) {
	pol := domain.ProtectionPolicy{Basis: domain.PolicyBasis(s.Basis)}
	switch pol.Basis {
	case domain.BasisRelative:
		if s.StopLossPct == nil {
			return pol, fmt.Errorf("relative policy requires stop_loss_pct")
		}
		pol.StopLossPct = decimal.NewFromFloat(*s.StopLossPct)
	case domain.BasisAbsolute:
		if s.StopPrice == nil {
			return pol, fmt.Errorf("absolute policy requires stop_price")
		}
		pol.StopPrice = decimal.NewFromFloat(*s.StopPrice)
	default:
		return pol, fmt.Errorf("unknown basis %q", s.Basis)
	}
	if s.Trail != nil {
		pol.Trail = &domain.TrailRule{
			TriggerPLPC:  decimal.NewFromFloat(s.Trail.TriggerPLPC),
			TrailPercent: decimal.NewFromFloat(s.Trail.TrailPercent),
		}
	}
	if err := pol.Validate(); err != nil {
		return pol, err
	}
	return pol, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid duration value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}
