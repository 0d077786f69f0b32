package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/haukened/rr-ids/internal/ids/domain"
	"github.com/haukened/rr-ids/internal/ids/repos/membership/bloom"
)

// AppConfig holds configuration values parsed from environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// BloomBits and BloomRounds fix the shape of every per-source filter.
	// They are ignored when BloomCapacity is set.
	BloomBits   uint   `koanf:"bloom_bits" validate:"required,gte=1"`
	BloomRounds uint   `koanf:"bloom_rounds" validate:"required,gte=1"`
	BloomFamily string `koanf:"bloom_family" validate:"required,oneof=classic xxhash64 xxhash32 murmur"`

	// BloomCapacity, when non-zero, sizes filters for that many items at BloomFPRate.
	BloomCapacity uint64  `koanf:"bloom_capacity"`
	BloomFPRate   float64 `koanf:"bloom_fp_rate" validate:"gt=0,lt=1"`

	// Estimator selects the false-positive estimate used for refresh decisions.
	Estimator string `koanf:"estimator" validate:"required,oneof=single legacy textbook"`

	// MaxKeys bounds the number of tracked sources.
	MaxKeys int `koanf:"max_keys" validate:"required,gte=1"`

	// FPThreshold is the estimated false-positive rate at which a filter is refreshed.
	FPThreshold float64 `koanf:"fp_threshold" validate:"gte=0,lte=1"`

	// RepetitionThreshold is the number of distinct destinations serving
	// the same URI that raises a repetition alert.
	RepetitionThreshold int `koanf:"repetition_threshold" validate:"required,gte=2,max_indexed"`

	// RedirectThreshold is the number of requests a source may make
	// without following a redirect.
	RedirectThreshold int `koanf:"redirect_threshold" validate:"gte=0"`

	// HostList is an optional file of suspicious hosts.
	HostList string `koanf:"host_list"`

	// AlertDB is the path of the alert journal.
	AlertDB string `koanf:"alert_db" validate:"required"`

	// Input is the JSON-lines event stream to replay, "-" for stdin.
	Input string `koanf:"input" validate:"required"`

	// MetricsAddr is the host:port of the Prometheus endpoint; empty disables it.
	MetricsAddr string `koanf:"metrics_addr" validate:"omitempty,host_port"`
}

// DEFAULT_APP_CONFIG defines the default application configuration settings for the detector.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:                 "prod",
	LogLevel:            "info",
	BloomBits:           bloom.DefaultBits,
	BloomRounds:         bloom.DefaultRounds,
	BloomFamily:         "classic",
	BloomFPRate:         0.01,
	Estimator:           "single",
	MaxKeys:             65536,
	FPThreshold:         0.05,
	RepetitionThreshold: domain.MaxIndexedDestinations,
	RedirectThreshold:   5,
	AlertDB:             "/var/lib/rr-ids/alerts.db",
	Input:               "-",
}

// BloomParams returns the filter shape selected by the configuration.
func (c *AppConfig) BloomParams() bloom.Params {
	if c.BloomCapacity > 0 {
		return bloom.SizedParams(c.BloomCapacity, c.BloomFPRate, c.BloomFamily)
	}
	return bloom.Params{Bits: c.BloomBits, Rounds: c.BloomRounds, Family: c.BloomFamily}
}

// validHostPort accepts "host:port" with a port in 1..65535; the host may be empty.
func validHostPort(fl validator.FieldLevel) bool {
	_, port, err := net.SplitHostPort(fl.Field().String())
	if err != nil || port == "" {
		return false
	}
	portNum, err := strconv.ParseUint(port, 10, 16)
	return err == nil && portNum > 0
}

// validMaxIndexed rejects thresholds the URI index can never reach.
func validMaxIndexed(fl validator.FieldLevel) bool {
	return fl.Field().Int() <= domain.MaxIndexedDestinations
}

// envLoader is a function that loads environment variables with the prefix "IDS_".
// It transforms the keys to lowercase and removes the prefix,
// and can be mocked in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "IDS_",
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(strings.TrimPrefix(key, "IDS_")), strings.TrimSpace(value)
		},
	}), nil)
}

// ConfigFileEnv names the environment variable holding an optional config file.
// File values override the defaults; environment variables override the file.
const ConfigFileEnv = "IDS_CONFIG_FILE"

// fileLoader loads a flat YAML, JSON or TOML file chosen by extension.
var fileLoader = func(k *koanf.Koanf, path string) error {
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	case ".toml":
		parser = toml.Parser()
	default:
		return fmt.Errorf("unsupported config file type %q", filepath.Ext(path))
	}
	return k.Load(file.Provider(path), parser)
}

// defaultLoader loads DEFAULT_APP_CONFIG into the provided Koanf instance.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// registerValidation registers the "host_port" and "max_indexed" tags.
var registerValidation = func(v *validator.Validate) error {
	if err := v.RegisterValidation("host_port", validHostPort); err != nil {
		return err
	}
	return v.RegisterValidation("max_indexed", validMaxIndexed)
}

// Load parses environment variables and returns an AppConfig instance.
// It applies default values and runs validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}
	if path := strings.TrimSpace(os.Getenv(ConfigFileEnv)); path != "" {
		if err := fileLoader(k, path); err != nil {
			return nil, fmt.Errorf("error loading config file %s: %w", path, err)
		}
	}
	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := registerValidation(validate); err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if err := cfg.BloomParams().Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
