// Package config loads voxcmd settings from defaults, an optional YAML config
// file, a local .env file, VOXCMD_ environment variables and bound CLI flags,
// in increasing order of priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"voxcmd/internal/grammar"
	"voxcmd/pkg/voxtypes"
)

// EnvPrefix is the prefix of environment variables read by Load.
const EnvPrefix = "VOXCMD"

// Config holds the engine and CLI settings.
type Config struct {
	MaxDepth     int           `mapstructure:"max_depth"`
	CacheSize    int           `mapstructure:"cache_size"`
	Concurrency  int           `mapstructure:"concurrency"`
	MatchTimeout time.Duration `mapstructure:"match_timeout"`
	IgnoreCase   bool          `mapstructure:"ignore_case"`
	LogLevel     string        `mapstructure:"log_level"`
	LogFile      string        `mapstructure:"log_file"`
	GrammarFile  string        `mapstructure:"grammar_file"`
}

// Options controls where Load looks for settings.
type Options struct {
	// Viper carries bound flags. A fresh instance is used when nil.
	Viper *viper.Viper
	// ConfigFile is an explicit config path; it must exist when set.
	ConfigFile string
	// WorkDir is searched for voxcmd.yaml and .env. Defaults to the current directory.
	WorkDir string
	// TestMode skips .env files so tests see only what they set.
	TestMode bool
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	defaults := grammar.DefaultOptions()
	v.SetDefault("max_depth", defaults.MaxDepth)
	v.SetDefault("cache_size", defaults.CacheSize)
	v.SetDefault("concurrency", 0)
	v.SetDefault("match_timeout", time.Duration(0))
	v.SetDefault("ignore_case", defaults.IgnoreCase)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("grammar_file", "")
}

// Default returns the configuration with every key at its default value and
// no file or environment consulted.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config defaults do not decode: %v", err))
	}
	return &cfg
}

// Load reads the configuration.
func Load(opts Options) (*Config, error) {
	v := opts.Viper
	if v == nil {
		v = viper.New()
	}
	workDir := opts.WorkDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		workDir = wd
	}

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("voxcmd")
		v.SetConfigType("yaml")
		v.AddConfigPath(workDir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, voxtypes.NewConfigError("config file", err)
		}
	}

	if !opts.TestMode {
		if err := mergeDotEnv(v, filepath.Join(workDir, ".env")); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, voxtypes.NewConfigError("config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// mergeDotEnv layers VOXCMD_ entries of a .env file over the config file.
// A missing file is not an error.
func mergeDotEnv(v *viper.Viper, envPath string) error {
	data, err := os.ReadFile(envPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read .env file %s: %w", envPath, err)
	}

	envMap, err := godotenv.Unmarshal(string(data))
	if err != nil {
		return voxtypes.NewConfigError(".env file "+envPath, err)
	}

	values := make(map[string]any)
	for key, value := range envMap {
		name, ok := strings.CutPrefix(key, EnvPrefix+"_")
		if !ok {
			continue
		}
		values[strings.ToLower(name)] = value
	}
	if len(values) == 0 {
		return nil
	}
	return v.MergeConfigMap(values)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.MaxDepth <= 0 {
		return voxtypes.ConfigErrorf("max_depth", "must be positive, got %d", c.MaxDepth)
	}
	if c.CacheSize <= 0 {
		return voxtypes.ConfigErrorf("cache_size", "must be positive, got %d", c.CacheSize)
	}
	if c.Concurrency < 0 {
		return voxtypes.ConfigErrorf("concurrency", "cannot be negative, got %d", c.Concurrency)
	}
	if c.MatchTimeout < 0 {
		return voxtypes.ConfigErrorf("match_timeout", "cannot be negative, got %s", c.MatchTimeout)
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error", "fatal":
	default:
		return voxtypes.ConfigErrorf("log_level", "unknown level %q", c.LogLevel)
	}
	return nil
}

// GrammarOptions returns the compiler options the configuration selects.
func (c *Config) GrammarOptions() grammar.Options {
	return grammar.Options{
		MaxDepth:     c.MaxDepth,
		CacheSize:    c.CacheSize,
		IgnoreCase:   c.IgnoreCase,
		MatchTimeout: c.MatchTimeout,
	}
}
