// Package config loads inboxtriage settings from defaults, an optional YAML
// file, INBOXTRIAGE_* environment variables and command line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/teemow/inboxtriage/internal/engine"
	"github.com/teemow/inboxtriage/internal/gmail"
	"github.com/teemow/inboxtriage/internal/google"
	"github.com/teemow/inboxtriage/internal/logging"
	"github.com/teemow/inboxtriage/internal/oracle"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "INBOXTRIAGE"

const (
	appName            = "inboxtriage"
	configFileName     = "config.yaml"
	clientSecretFile   = "credentials.json"
	checkpointFileName = "checkpoint.json"
	reportFileName     = "report.html"
)

type Labels struct {
	Important   string `mapstructure:"important"`
	LowPriority string `mapstructure:"low_priority"`
}

type Pipeline struct {
	BatchSize          int    `mapstructure:"batch_size"`
	Concurrency        int    `mapstructure:"concurrency"`
	Mode               string `mapstructure:"mode"`
	CheckpointInterval int    `mapstructure:"checkpoint_interval"`
	Prefetch           bool   `mapstructure:"prefetch"`
}

type Gmail struct {
	FetchConcurrency  int     `mapstructure:"fetch_concurrency"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	PageSize          int64   `mapstructure:"page_size"`
}

type Oracle struct {
	URL          string        `mapstructure:"url"`
	Model        string        `mapstructure:"model"`
	Timeout      time.Duration `mapstructure:"timeout"`
	SnippetLimit int           `mapstructure:"snippet_limit"`
}

type Auth struct {
	TokenStore string `mapstructure:"token_store"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the complete application configuration.
type Config struct {
	Query          string   `mapstructure:"query"`
	CredentialsDir string   `mapstructure:"credentials_dir"`
	OutputDir      string   `mapstructure:"output_dir"`
	Labels         Labels   `mapstructure:"labels"`
	Pipeline       Pipeline `mapstructure:"pipeline"`
	Gmail          Gmail    `mapstructure:"gmail"`
	Oracle         Oracle   `mapstructure:"oracle"`
	Auth           Auth     `mapstructure:"auth"`
	Log            Log      `mapstructure:"log"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// DefaultDir is the per-user directory holding the config file, the OAuth
// files and the run output.
func DefaultDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "." + appName
	}
	return filepath.Join(dir, appName)
}

// DefaultFile is the config file read when no path is given.
func DefaultFile() string {
	return filepath.Join(DefaultDir(), configFileName)
}

func setDefaults(v *viper.Viper) {
	ec := engine.DefaultConfig()
	gc := gmail.DefaultConfig()
	oc := oracle.DefaultConfig()

	v.SetDefault("query", ec.Query)
	v.SetDefault("credentials_dir", DefaultDir())
	v.SetDefault("output_dir", DefaultDir())
	v.SetDefault("labels.important", ec.Labels.Important)
	v.SetDefault("labels.low_priority", ec.Labels.LowPriority)
	v.SetDefault("pipeline.batch_size", ec.BatchSize)
	v.SetDefault("pipeline.concurrency", ec.Concurrency)
	v.SetDefault("pipeline.mode", string(ec.Mode))
	v.SetDefault("pipeline.checkpoint_interval", ec.CheckpointInterval)
	v.SetDefault("pipeline.prefetch", ec.Prefetch)
	v.SetDefault("gmail.fetch_concurrency", gc.FetchConcurrency)
	v.SetDefault("gmail.requests_per_second", gc.RequestsPerSecond)
	v.SetDefault("gmail.page_size", gc.PageSize)
	v.SetDefault("oracle.url", oc.URL)
	v.SetDefault("oracle.model", oc.Model)
	v.SetDefault("oracle.timeout", oc.Timeout)
	v.SetDefault("oracle.snippet_limit", oc.SnippetLimit)
	v.SetDefault("auth.token_store", google.StoreFile)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logging.FormatText)
}

// Loader accumulates flag bindings and then loads the configuration.
type Loader struct {
	v *viper.Viper
}

// NewLoader returns a loader with defaults and environment lookup set up.
func NewLoader() *Loader {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// BindFlag makes flag override key when the flag was set explicitly.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("no flag to bind to %q", key)
	}
	if err := l.v.BindPFlag(key, flag); err != nil {
		return fmt.Errorf("failed to bind flag %q: %w", flag.Name, err)
	}
	return nil
}

// BindFlags binds every key in bindings to the flag of the given name in
// flags.
func (l *Loader) BindFlags(flags *pflag.FlagSet, bindings map[string]string) error {
	for key, name := range bindings {
		if err := l.BindFlag(key, flags.Lookup(name)); err != nil {
			return err
		}
	}
	return nil
}

// Load reads the configuration. An explicit path must exist; the default
// file is optional.
func (l *Loader) Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFile()
	}

	file := ""
	if _, err := os.Stat(path); err == nil {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		file = path
	} else if explicit || !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = file
	cfg.CredentialsDir = expandHome(cfg.CredentialsDir)
	cfg.OutputDir = expandHome(cfg.OutputDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load is NewLoader().Load(path).
func Load(path string) (*Config, error) {
	return NewLoader().Load(path)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.CredentialsDir == "" {
		return fmt.Errorf("credentials_dir must not be empty")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir must not be empty")
	}
	if err := c.Engine().Validate(); err != nil {
		return fmt.Errorf("invalid pipeline configuration: %w", err)
	}
	if c.Gmail.FetchConcurrency <= 0 {
		return fmt.Errorf("gmail.fetch_concurrency must be positive, got %d", c.Gmail.FetchConcurrency)
	}
	if c.Gmail.PageSize <= 0 || c.Gmail.PageSize > 500 {
		return fmt.Errorf("gmail.page_size must be between 1 and 500, got %d", c.Gmail.PageSize)
	}
	if u, err := url.Parse(c.Oracle.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("oracle.url must be an absolute URL, got %q", c.Oracle.URL)
	}
	if c.Oracle.Model == "" {
		return fmt.Errorf("oracle.model must not be empty")
	}
	if c.Oracle.Timeout <= 0 {
		return fmt.Errorf("oracle.timeout must be positive, got %s", c.Oracle.Timeout)
	}
	if c.Oracle.SnippetLimit <= 0 {
		return fmt.Errorf("oracle.snippet_limit must be positive, got %d", c.Oracle.SnippetLimit)
	}
	switch c.Auth.TokenStore {
	case google.StoreFile, google.StoreKeyring:
	default:
		return fmt.Errorf("auth.token_store must be %q or %q, got %q", google.StoreFile, google.StoreKeyring, c.Auth.TokenStore)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("log.format must be %q or %q, got %q", logging.FormatText, logging.FormatJSON, c.Log.Format)
	}
	return nil
}

// ClientSecretPath is the OAuth client secret downloaded from Google.
func (c *Config) ClientSecretPath() string {
	return filepath.Join(c.CredentialsDir, clientSecretFile)
}

func (c *Config) CheckpointPath() string {
	return filepath.Join(c.OutputDir, checkpointFileName)
}

func (c *Config) ReportPath() string {
	return filepath.Join(c.OutputDir, reportFileName)
}

// Engine returns the pipeline settings.
func (c *Config) Engine() engine.Config {
	return engine.Config{
		Query: c.Query,
		Labels: engine.Labels{
			Important:   c.Labels.Important,
			LowPriority: c.Labels.LowPriority,
		},
		BatchSize:          c.Pipeline.BatchSize,
		Concurrency:        c.Pipeline.Concurrency,
		Mode:               engine.Mode(c.Pipeline.Mode),
		CheckpointInterval: c.Pipeline.CheckpointInterval,
		Prefetch:           c.Pipeline.Prefetch,
		ReportPath:         c.ReportPath(),
	}
}

// GmailClient returns the gateway settings. The detail batch size follows
// the pipeline chunk size.
func (c *Config) GmailClient() gmail.Config {
	gc := gmail.DefaultConfig()
	gc.BatchSize = c.Pipeline.BatchSize
	gc.FetchConcurrency = c.Gmail.FetchConcurrency
	gc.RequestsPerSecond = c.Gmail.RequestsPerSecond
	gc.PageSize = c.Gmail.PageSize
	return gc
}

func (c *Config) OracleClient() oracle.Config {
	oc := oracle.DefaultConfig()
	oc.URL = c.Oracle.URL
	oc.Model = c.Oracle.Model
	oc.Timeout = c.Oracle.Timeout
	oc.SnippetLimit = c.Oracle.SnippetLimit
	return oc
}

func (c *Config) Logging() logging.Options {
	return logging.Options{Level: c.Log.Level, Format: c.Log.Format}
}
