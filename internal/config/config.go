package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/m2tx/live_bridge/internal/live"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the server configuration. Every key can be set from the
// environment by its upper-cased name, e.g. HTTP_PORT or MONGODB_URI.
type Config struct {
	// Model is the live model every session is opened with
	Model    string `mapstructure:"model"`
	HTTPPort string `mapstructure:"http_port"`

	// GeminiAPIKey is the server-wide key; requests may override it
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	// DisableEnvKey stops the key lookup from falling back to the environment
	DisableEnvKey bool   `mapstructure:"disable_env_key"`
	APIVersion    string `mapstructure:"genai_api_version"`
	// BaseURL overrides the Live API endpoint (ws:// or wss://)
	BaseURL string `mapstructure:"genai_base_url"`

	// MongoURI enables the MongoDB transcript store; empty keeps transcripts in memory
	MongoURI        string `mapstructure:"mongodb_uri"`
	MongoDB         string `mapstructure:"mongodb_db"`
	MongoCollection string `mapstructure:"mongodb_collection"`

	// DocsDir is indexed for the search_docs function; empty disables it
	DocsDir string `mapstructure:"docs_dir"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	// LogFile additionally writes rotated logs to this path
	LogFile string `mapstructure:"log_file"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Model:           live.DefaultModel,
		HTTPPort:        "8080",
		APIVersion:      live.DefaultAPIVersion,
		MongoDB:         "live_bridge",
		MongoCollection: "transcripts",
		DocsDir:         "docs",
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// SetDefaults registers the defaults with v, which also makes every key
// visible to AutomaticEnv.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("model", d.Model)
	v.SetDefault("http_port", d.HTTPPort)
	v.SetDefault("gemini_api_key", d.GeminiAPIKey)
	v.SetDefault("disable_env_key", d.DisableEnvKey)
	v.SetDefault("genai_api_version", d.APIVersion)
	v.SetDefault("genai_base_url", d.BaseURL)
	v.SetDefault("mongodb_uri", d.MongoURI)
	v.SetDefault("mongodb_db", d.MongoDB)
	v.SetDefault("mongodb_collection", d.MongoCollection)
	v.SetDefault("docs_dir", d.DocsDir)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("log_file", d.LogFile)
}

// New returns a viper instance with defaults and environment binding. If
// configFile is set it is read as well; its values lose to the environment.
func New(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", configFile)
		}
	}

	return v, nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

var (
	logLevels  = []string{"trace", "debug", "info", "warn", "error", "fatal"}
	logFormats = []string{"text", "json"}
)

func (c *Config) Validate() error {
	var problems []string

	if c.Model == "" {
		problems = append(problems, "model must not be empty")
	}
	if c.HTTPPort == "" {
		problems = append(problems, "http_port must not be empty")
	}
	if c.APIVersion == "" {
		problems = append(problems, "genai_api_version must not be empty")
	}
	if c.BaseURL != "" && !strings.HasPrefix(c.BaseURL, "ws://") && !strings.HasPrefix(c.BaseURL, "wss://") && !strings.HasPrefix(c.BaseURL, "https://") {
		problems = append(problems, fmt.Sprintf("genai_base_url %q must use ws, wss or https", c.BaseURL))
	}
	if c.MongoURI != "" && c.MongoDB == "" {
		problems = append(problems, "mongodb_db must be set when mongodb_uri is")
	}
	if !slices.Contains(logLevels, c.LogLevel) {
		problems = append(problems, fmt.Sprintf("log_level %q must be one of %s", c.LogLevel, strings.Join(logLevels, ", ")))
	}
	if !slices.Contains(logFormats, c.LogFormat) {
		problems = append(problems, fmt.Sprintf("log_format %q must be one of %s", c.LogFormat, strings.Join(logFormats, ", ")))
	}

	if len(problems) > 0 {
		return errors.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
