package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

const (
	ConfigDirPath  = "~/.config/agentops"
	ConfigFileName = "config.yml"
)

// Viper keys. Each key is also read from the environment under its
// upper-cased name (base_url -> BASE_URL).
const (
	KeyBaseURL              = "base_url"
	KeyHostToken            = "gitlab_token"
	KeyHostTimeout          = "host_timeout"
	KeyModel                = "ai_model"
	KeyLocalModel           = "local_model"
	KeyLocalRunner          = "local_runner"
	KeyProcessTimeout       = "process_timeout"
	KeyHostedAPIKey         = "openai_api_key"
	KeyHostedBaseURL        = "openai_api_base"
	KeyHostedMaxTokens      = "hosted_max_tokens"
	KeyHostedTimeout        = "hosted_timeout"
	KeyHostedMaxRetries     = "hosted_max_retries"
	KeyDefaultBranch        = "default_branch"
	KeyPipelineEnabled      = "pipeline_enabled"
	KeyPipelineTriggerToken = "pipeline_trigger_token"
	KeyMinDiffLength        = "min_diff_length"
	KeyWebhookSecret        = "webhook_secret"
	KeyListenAddr           = "listen_addr"
	KeyWorkers              = "workers"
	KeyQueueSize            = "queue_size"
	KeyDBPath               = "db_path"
	KeyLogLevel             = "log_level"
	KeyLogFormat            = "log_format"
)

// Config contains every setting the service needs. It is built once at
// startup by Load and handed to the components that need it; nothing reads
// the environment after that.
type Config struct {
	// Source-control host.
	HostBaseURL string
	HostToken   string
	HostTimeout time.Duration

	// Review backends.
	Model            string
	LocalModel       string
	LocalRunner      string
	ProcessTimeout   time.Duration
	HostedAPIKey     string
	HostedBaseURL    string
	HostedMaxTokens  int
	HostedTimeout    time.Duration
	HostedMaxRetries int

	// Delivery.
	DefaultBranch        string
	PipelineEnabled      bool
	PipelineTriggerToken string
	MinDiffLength        int

	// Ingress and workers.
	WebhookSecret string
	ListenAddr    string
	Workers       int
	QueueSize     int
	DBPath        string

	LogLevel  string
	LogFormat string

	// ConfigFile is the file that was loaded, empty when only the
	// environment and defaults were used.
	ConfigFile string
}

// NewDefaultConfig returns a Config holding only default values.
func NewDefaultConfig() Config {
	conf, _ := Load(NewViper())
	return conf
}

// NewViper returns a viper instance with every default registered and
// environment lookup enabled.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault(KeyHostTimeout, "30s")
	v.SetDefault(KeyModel, "mistral")
	v.SetDefault(KeyLocalRunner, "ollama")
	v.SetDefault(KeyProcessTimeout, "120s")
	v.SetDefault(KeyHostedBaseURL, "https://api.openai.com/v1")
	v.SetDefault(KeyHostedMaxTokens, 800)
	v.SetDefault(KeyHostedTimeout, "60s")
	v.SetDefault(KeyHostedMaxRetries, 0)
	v.SetDefault(KeyDefaultBranch, "main")
	v.SetDefault(KeyPipelineEnabled, true)
	v.SetDefault(KeyMinDiffLength, 50)
	v.SetDefault(KeyListenAddr, ":8000")
	v.SetDefault(KeyWorkers, 4)
	v.SetDefault(KeyQueueSize, 100)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	return v
}

// ReadFile merges a YAML config file into v. A missing file at the default
// location is not an error; a missing file that was asked for explicitly is.
func ReadFile(v *viper.Viper, path string) (string, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultConfigFilePath()
		if err != nil {
			return "", nil
		}
		path = p
	}

	path, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to expand %q: %w", path, err)
	}

	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("config: cannot read %s: %w", path, err)
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return path, nil
}

// Load copies the effective settings out of v into a Config.
func Load(v *viper.Viper) (Config, error) {
	conf := Config{
		HostBaseURL:          strings.TrimRight(strings.TrimSpace(v.GetString(KeyBaseURL)), "/"),
		HostToken:            strings.TrimSpace(v.GetString(KeyHostToken)),
		Model:                strings.TrimSpace(v.GetString(KeyModel)),
		LocalModel:           strings.TrimSpace(v.GetString(KeyLocalModel)),
		LocalRunner:          strings.TrimSpace(v.GetString(KeyLocalRunner)),
		HostedAPIKey:         strings.TrimSpace(v.GetString(KeyHostedAPIKey)),
		HostedBaseURL:        strings.TrimRight(strings.TrimSpace(v.GetString(KeyHostedBaseURL)), "/"),
		HostedMaxTokens:      v.GetInt(KeyHostedMaxTokens),
		HostedMaxRetries:     v.GetInt(KeyHostedMaxRetries),
		DefaultBranch:        strings.TrimSpace(v.GetString(KeyDefaultBranch)),
		PipelineEnabled:      v.GetBool(KeyPipelineEnabled),
		PipelineTriggerToken: strings.TrimSpace(v.GetString(KeyPipelineTriggerToken)),
		MinDiffLength:        v.GetInt(KeyMinDiffLength),
		WebhookSecret:        v.GetString(KeyWebhookSecret),
		ListenAddr:           v.GetString(KeyListenAddr),
		Workers:              v.GetInt(KeyWorkers),
		QueueSize:            v.GetInt(KeyQueueSize),
		DBPath:               strings.TrimSpace(v.GetString(KeyDBPath)),
		LogLevel:             strings.ToLower(v.GetString(KeyLogLevel)),
		LogFormat:            strings.ToLower(v.GetString(KeyLogFormat)),
		ConfigFile:           v.ConfigFileUsed(),
	}

	var err error
	if conf.HostTimeout, err = duration(v, KeyHostTimeout); err != nil {
		return conf, err
	}
	if conf.ProcessTimeout, err = duration(v, KeyProcessTimeout); err != nil {
		return conf, err
	}
	if conf.HostedTimeout, err = duration(v, KeyHostedTimeout); err != nil {
		return conf, err
	}

	if conf.DefaultBranch == "" {
		conf.DefaultBranch = "main"
	}
	return conf, nil
}

// Validate reports settings that can never work. Missing host credentials
// are not checked here: they fail at the point of use.
func (c Config) Validate() error {
	var errs []error
	if c.Workers < 1 {
		errs = append(errs, fmt.Errorf("%s must be >= 1, got %d", KeyWorkers, c.Workers))
	}
	if c.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("%s must be >= 1, got %d", KeyQueueSize, c.QueueSize))
	}
	if c.MinDiffLength < 1 {
		errs = append(errs, fmt.Errorf("%s must be >= 1, got %d", KeyMinDiffLength, c.MinDiffLength))
	}
	if c.ProcessTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyProcessTimeout))
	}
	if c.HostedMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("%s must be >= 0", KeyHostedMaxRetries))
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("%s must be text or json, got %q", KeyLogFormat, c.LogFormat))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: invalid settings: %w", errors.Join(errs...))
	}
	return nil
}

// PipelineConfigured reports whether a pipeline should be triggered after
// each review.
func (c Config) PipelineConfigured() bool {
	return c.PipelineTriggerToken != "" || c.PipelineEnabled
}

// Redacted is the secret-free view of a Config.
type Redacted struct {
	BaseURL          string `json:"base_url" yaml:"base_url"`
	HasToken         bool   `json:"has_token" yaml:"has_token"`
	HasHostedAPIKey  bool   `json:"has_hosted_api_key" yaml:"has_hosted_api_key"`
	HasTriggerToken  bool   `json:"has_trigger_token" yaml:"has_trigger_token"`
	HasWebhookSecret bool   `json:"has_webhook_secret" yaml:"has_webhook_secret"`
	Model            string `json:"model" yaml:"model"`
	LocalRunner      string `json:"local_runner" yaml:"local_runner"`
	DefaultBranch    string `json:"default_branch" yaml:"default_branch"`
	PipelineEnabled  bool   `json:"pipeline_enabled" yaml:"pipeline_enabled"`
	ProcessTimeout   string `json:"process_timeout" yaml:"process_timeout"`
	HistoryEnabled   bool   `json:"history_enabled" yaml:"history_enabled"`
}

// Redacted returns the configuration with every secret replaced by a
// presence flag.
func (c Config) Redacted() Redacted {
	return Redacted{
		BaseURL:          c.HostBaseURL,
		HasToken:         c.HostToken != "",
		HasHostedAPIKey:  c.HostedAPIKey != "",
		HasTriggerToken:  c.PipelineTriggerToken != "",
		HasWebhookSecret: c.WebhookSecret != "",
		Model:            c.Model,
		LocalRunner:      c.LocalRunner,
		DefaultBranch:    c.DefaultBranch,
		PipelineEnabled:  c.PipelineConfigured(),
		ProcessTimeout:   c.ProcessTimeout.String(),
		HistoryEnabled:   c.DBPath != "",
	}
}

// DefaultConfigFilePath returns ~/.config/agentops/config.yml, expanded.
func DefaultConfigFilePath() (string, error) {
	dir, err := homedir.Expand(ConfigDirPath)
	if err != nil {
		return "", fmt.Errorf("failed to read home directory: %s", err)
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// duration accepts Go duration strings ("90s", "2m") and bare numbers,
// which are read as seconds.
func duration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: invalid duration for %s: %q", key, raw)
	}
	return d, nil
}

// SampleConfigYAML documents every setting. It is written by
// "agentops config init".
func SampleConfigYAML() string {
	return `# agentops configuration
# Every key can also be set through the environment using its upper-case
# name (base_url -> BASE_URL).

# Source-control host API base, including the API prefix.
base_url: "https://gitlab.com/api/v4"
# gitlab_token can also be set via GITLAB_TOKEN.
gitlab_token: ""
host_timeout: 30s

# Review model. Hosted-family names (gpt-*, o1*, o3*, o4*) use the hosted
# API when openai_api_key is set; everything else runs locally.
ai_model: "mistral"
# Model used by the local runner; defaults to ai_model when it is local.
# local_model: "mistral"
local_runner: "ollama"
process_timeout: 120s

# openai_api_key can also be set via OPENAI_API_KEY.
openai_api_key: ""
openai_api_base: "https://api.openai.com/v1"
hosted_max_tokens: 800
hosted_timeout: 60s
hosted_max_retries: 0

# Delivery.
default_branch: "main"
pipeline_enabled: true
# When set, pipelines are started through the trigger endpoint.
pipeline_trigger_token: ""
min_diff_length: 50

# Ingress.
webhook_secret: ""
listen_addr: ":8000"
workers: 4
queue_size: 100
# SQLite file for review history; empty disables it.
db_path: ""

log_level: "info"
log_format: "text"
`
}
