package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/vitwit/currency/types"
)

// Environment variables that override values read from a config file.
const (
	EnvLogLevel       = "CURRENCY_LOG_LEVEL"
	EnvPriceFeedURL   = "CURRENCY_PRICE_FEED_URL"
	EnvDefaultTimeout = "CURRENCY_DEFAULT_TIMEOUT"
	EnvDatabase       = "CURRENCY_DATABASE"
	EnvEnableMetrics  = "CURRENCY_ENABLE_METRICS"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ValidateConfig checks cfg against its struct tags.
func ValidateConfig(cfg *types.Config) error {
	if err := validate.Struct(cfg); err != nil {
		return configError("validation failed", err)
	}
	return nil
}

// LoadConfig reads a TOML, YAML or JSON file (chosen by extension), loads a
// .env file next to the working directory if present, applies CURRENCY_*
// environment overrides and validates the result.
func LoadConfig(path string) (*types.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, configError(fmt.Sprintf("failed to read %s", path), err)
	}

	cfg, err := ParseConfig(data, strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return nil, err
	}

	// A missing .env is normal outside development.
	_ = godotenv.Load()

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseConfig decodes data in the given format ("toml", "yaml", "yml" or "json")
// without validating it.
func ParseConfig(data []byte, format string) (*types.Config, error) {
	var cfg types.Config

	var err error
	switch strings.ToLower(format) {
	case "toml":
		_, err = toml.Decode(string(data), &cfg)
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &cfg)
	case "json", "":
		err = json.Unmarshal(data, &cfg)
	default:
		return nil, configError(fmt.Sprintf("unsupported config format %q", format), nil)
	}
	if err != nil {
		return nil, configError("failed to parse config", err)
	}
	return &cfg, nil
}

// ApplyEnv overrides cfg fields from CURRENCY_* environment variables.
func ApplyEnv(cfg *types.Config) error {
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv(EnvPriceFeedURL); ok {
		cfg.PriceFeedURL = v
	}
	if v, ok := os.LookupEnv(EnvDatabase); ok {
		cfg.Database = v
	}
	if v, ok := os.LookupEnv(EnvEnableMetrics); ok {
		cfg.EnableMetrics = v == "1" || strings.EqualFold(v, "true")
	}
	if v, ok := os.LookupEnv(EnvDefaultTimeout); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return configError(fmt.Sprintf("invalid %s", EnvDefaultTimeout), err)
		}
		cfg.DefaultTimeout = d
	}
	return nil
}

func configError(msg string, err error) error {
	return &types.CurrencyError{
		Code:    types.ErrCodeConfigError,
		Message: msg,
		Err:     err,
	}
}
