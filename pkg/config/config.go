// pkg/config/config.go

// Package config loads autocommit settings from defaults, an optional YAML
// file, a .env file, the environment and command-line flags, in increasing
// order of precedence. Credentials are read exactly once, here.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/eos_err"
	cerr "github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// EnvAPIKey and EnvEndpoint are the required credential variables.
	EnvAPIKey   = "OPENAI_API_KEY"
	EnvEndpoint = "OPENAI_ENDPOINT"

	// EnvPrefix prefixes every other override, e.g. AUTOCOMMIT_LLM_MODEL.
	EnvPrefix = "AUTOCOMMIT"

	AuthSchemeAPIKey = "api-key"
	AuthSchemeBearer = "bearer"

	FallbackManual = "manual"
	FallbackAbort  = "abort"
)

// Config is the fully resolved configuration for one run.
type Config struct {
	LLM        LLMConfig        `mapstructure:"llm" yaml:"llm"`
	Generation GenerationConfig `mapstructure:"generation" yaml:"generation"`
	Values     ValuesConfig     `mapstructure:"values" yaml:"values"`
	Push       PushConfig       `mapstructure:"push" yaml:"push"`
	History    HistoryConfig    `mapstructure:"history" yaml:"history"`
	UI         UIConfig         `mapstructure:"ui" yaml:"ui"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry" yaml:"telemetry"`
	DryRun     bool             `mapstructure:"dry_run" yaml:"dry_run"`

	// Source is the config file that was read, if any.
	Source string `mapstructure:"-" yaml:"-"`
}

// LLMConfig describes the chat-completions endpoint.
type LLMConfig struct {
	APIKey            string        `mapstructure:"api_key" yaml:"api_key" validate:"required"`
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint" validate:"required,url"`
	Model             string        `mapstructure:"model" yaml:"model,omitempty"`
	AuthScheme        string        `mapstructure:"auth_scheme" yaml:"auth_scheme" validate:"oneof=api-key bearer"`
	Temperature       float64       `mapstructure:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens         int           `mapstructure:"max_tokens" yaml:"max_tokens" validate:"gt=0"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
	RequestsPerMinute float64       `mapstructure:"requests_per_minute" yaml:"requests_per_minute" validate:"gte=0"`
	BreakerFailures   uint32        `mapstructure:"breaker_failures" yaml:"breaker_failures" validate:"gte=1"`
	BreakerCooldown   time.Duration `mapstructure:"breaker_cooldown" yaml:"breaker_cooldown" validate:"gt=0"`
}

// GenerationConfig controls retries and the fallback when the model fails.
type GenerationConfig struct {
	Retries     int           `mapstructure:"retries" yaml:"retries" validate:"gte=0,lte=5"`
	RetryDelay  time.Duration `mapstructure:"retry_delay" yaml:"retry_delay" validate:"gte=0"`
	Fallback    string        `mapstructure:"fallback" yaml:"fallback" validate:"oneof=manual abort"`
	MaxDiffSize string        `mapstructure:"max_diff_size" yaml:"max_diff_size" validate:"required"`

	// MaxDiffBytes is MaxDiffSize parsed with humanize.
	MaxDiffBytes int `mapstructure:"-" yaml:"-"`
}

// ValuesConfig lists the known values offered when a field is unresolved.
type ValuesConfig struct {
	CPUs     []string `mapstructure:"cpus" yaml:"cpus"`
	Machines []string `mapstructure:"machines" yaml:"machines"`
	Types    []string `mapstructure:"types" yaml:"types"`
}

// PushConfig names the push target; empty values defer to git's upstream.
type PushConfig struct {
	Remote string `mapstructure:"remote" yaml:"remote,omitempty"`
	Branch string `mapstructure:"branch" yaml:"branch,omitempty" validate:"excluded_without=Remote"`
}

// HistoryConfig bounds how many commits are read for previously used values.
type HistoryConfig struct {
	Depth int `mapstructure:"depth" yaml:"depth" validate:"gte=0"`
}

// UIConfig selects the prompt style.
type UIConfig struct {
	TUI   bool `mapstructure:"tui" yaml:"tui"`
	Color bool `mapstructure:"color" yaml:"color"`
}

// LogConfig mirrors logger.Options.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file,omitempty"`
}

// TelemetryConfig enables span export to a JSONL file.
type TelemetryConfig struct {
	File string `mapstructure:"file" yaml:"file,omitempty"`
}

// LoadOptions tells Load where to look.
type LoadOptions struct {
	// ConfigFile overrides the default search path when set.
	ConfigFile string
	// EnvFile is loaded with godotenv; defaults to ".env". Missing is fine.
	EnvFile string
	// Flags are bound by FlagKeys.
	Flags *pflag.FlagSet
}

// FlagKeys maps command-line flag names to configuration keys.
var FlagKeys = map[string]string{
	"dry-run":   "dry_run",
	"tui":       "ui.tui",
	"remote":    "push.remote",
	"branch":    "push.branch",
	"model":     "llm.model",
	"fallback":  "generation.fallback",
	"log-level": "log.level",
	"log-file":  "log.file",
}

// DefaultConfigFile returns $XDG_CONFIG_HOME/autocommit/config.yaml.
func DefaultConfigFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "autocommit", "config.yaml")
}

// Load resolves the configuration. Missing credentials and invalid values
// are returned as configuration errors naming the offending variable or key.
func Load(opts LoadOptions) (*Config, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// credentials keep their conventional names
	if err := v.BindEnv("llm.api_key", EnvAPIKey, EnvPrefix+"_LLM_API_KEY"); err != nil {
		return nil, eos_err.NewInternalError("bind "+EnvAPIKey, err)
	}
	if err := v.BindEnv("llm.endpoint", EnvEndpoint, EnvPrefix+"_LLM_ENDPOINT"); err != nil {
		return nil, eos_err.NewInternalError("bind "+EnvEndpoint, err)
	}

	if opts.Flags != nil {
		if err := BindFlags(v, opts.Flags, FlagKeys); err != nil {
			return nil, eos_err.NewInternalError("bind flags", err)
		}
	}

	source, err := readConfigFile(v, opts.ConfigFile)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eos_err.NewConfigurationError("failed to decode configuration", err,
			"Check value types in "+describeSource(source))
	}
	cfg.Source = source

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.auth_scheme", AuthSchemeAPIKey)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 800)
	v.SetDefault("llm.timeout", "60s")
	v.SetDefault("llm.requests_per_minute", 0)
	v.SetDefault("llm.breaker_failures", 3)
	v.SetDefault("llm.breaker_cooldown", "30s")

	v.SetDefault("generation.retries", 1)
	v.SetDefault("generation.retry_delay", "2s")
	v.SetDefault("generation.fallback", FallbackManual)
	v.SetDefault("generation.max_diff_size", "24KB")

	v.SetDefault("values.cpus", []string{"imx8mm", "imx8mp", "imx93"})
	v.SetDefault("values.machines", []string{"ROM-5721", "ROM-5722", "ROM-2820"})
	v.SetDefault("values.types", []string{"dts", "drivers", "config", "kconfig", "script", "patch"})

	v.SetDefault("push.remote", "")
	v.SetDefault("push.branch", "")

	v.SetDefault("history.depth", 200)
	v.SetDefault("ui.tui", false)
	v.SetDefault("ui.color", true)
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.file", "")
	v.SetDefault("telemetry.file", "")
	v.SetDefault("dry_run", false)
}

func readConfigFile(v *viper.Viper, explicit string) (string, error) {
	path := explicit
	if path == "" {
		path = DefaultConfigFile()
		if path == "" {
			return "", nil
		}
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return "", eos_err.NewConfigurationError("failed to read config file "+path, err,
			"Fix the YAML syntax or pass a different file with --config")
	}
	return path, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	// godotenv.Load never overrides variables already in the environment
	if err := godotenv.Load(path); err != nil {
		return eos_err.NewConfigurationError("failed to load "+path, cerr.WithStack(err))
	}
	return nil
}

// parseSize resolves MaxDiffSize into bytes.
func (c *Config) parseSize() error {
	n, err := humanize.ParseBytes(c.Generation.MaxDiffSize)
	if err != nil {
		return eos_err.NewConfigurationError("invalid generation.max_diff_size "+c.Generation.MaxDiffSize, err,
			"Use a size such as 24KB or 1MiB")
	}
	if n == 0 {
		return eos_err.NewConfigurationError("generation.max_diff_size must be positive", nil)
	}
	c.Generation.MaxDiffBytes = int(n)
	return nil
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	out := c
	if out.LLM.APIKey != "" {
		out.LLM.APIKey = "********"
	}
	return out
}

func describeSource(source string) string {
	if source == "" {
		return "the environment"
	}
	return source
}
