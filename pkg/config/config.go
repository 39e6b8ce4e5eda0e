// Package config loads API credentials and run tuning. Environment
// variables take precedence over ~/.refit/config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GoogleAPIKey    string
	DeepSeekAPIKey  string
	GitHubToken     string
	Run             RunConfig
	Roles           RolesConfig
	ConfigDir       string
}

// RunConfig tunes the pipeline. Each stage gets its own concurrency
// ceiling; the per-job timeout and retry bound apply everywhere.
type RunConfig struct {
	DiscoverConcurrency int
	RewriteConcurrency  int
	VerifyConcurrency   int
	JobTimeout          time.Duration
	MaxRetries          int
	SoftPassThreshold   float64
	FallbackConfidence  float64
}

// RoleConfig names the adapter and model one worker runs on.
type RoleConfig struct {
	Adapter string `yaml:"adapter"`
	Model   string `yaml:"model"`
}

// RolesConfig assigns models to the five worker roles. The defaults keep
// the fast/cheap model on the hot paths and escalate analysis to the
// stronger one.
type RolesConfig struct {
	Reader    RoleConfig `yaml:"reader"`
	Writer    RoleConfig `yaml:"writer"`
	Validator RoleConfig `yaml:"validator"`
	Analyzer  RoleConfig `yaml:"analyzer"`
	Fixer     RoleConfig `yaml:"fixer"`
}

// FileConfig represents the structure of ~/.refit/config.yaml.
type FileConfig struct {
	APIKeys APIKeysConfig `yaml:"api_keys"`
	Run     FileRunConfig `yaml:"run"`
	Roles   RolesConfig   `yaml:"roles"`
}

// FileRunConfig is the run section as written in YAML. The timeout is a
// duration string ("90s", "5m"). Retry and confidence fields are pointers
// so an explicit zero in the file is distinguishable from absence.
type FileRunConfig struct {
	DiscoverConcurrency int      `yaml:"discover_concurrency"`
	RewriteConcurrency  int      `yaml:"rewrite_concurrency"`
	VerifyConcurrency   int      `yaml:"verify_concurrency"`
	JobTimeout          string   `yaml:"job_timeout"`
	MaxRetries          *int     `yaml:"max_retries"`
	SoftPassThreshold   *float64 `yaml:"soft_pass_threshold"`
	FallbackConfidence  *float64 `yaml:"fallback_confidence"`
}

// APIKeysConfig holds API key configuration from file.
type APIKeysConfig struct {
	Anthropic string `yaml:"anthropic"`
	OpenAI    string `yaml:"openai"`
	Google    string `yaml:"google"`
	DeepSeek  string `yaml:"deepseek"`
	GitHub    string `yaml:"github"`
}

// DefaultRun returns the production run tuning.
func DefaultRun() RunConfig {
	return RunConfig{
		DiscoverConcurrency: 8,
		RewriteConcurrency:  16,
		VerifyConcurrency:   16,
		JobTimeout:          5 * time.Minute,
		MaxRetries:          2,
		SoftPassThreshold:   0.85,
		FallbackConfidence:  0.5,
	}
}

// DefaultRoles returns the production model assignments.
func DefaultRoles() RolesConfig {
	return RolesConfig{
		Reader:    RoleConfig{Adapter: "anthropic", Model: "claude-sonnet-4-20250514"},
		Writer:    RoleConfig{Adapter: "anthropic", Model: "claude-3-5-haiku-20241022"},
		Validator: RoleConfig{Adapter: "anthropic", Model: "claude-3-5-haiku-20241022"},
		Analyzer:  RoleConfig{Adapter: "anthropic", Model: "claude-sonnet-4-20250514"},
		Fixer:     RoleConfig{Adapter: "anthropic", Model: "claude-3-5-haiku-20241022"},
	}
}

// Load reads configuration from the config file and environment variables.
// Environment variables take precedence over file configuration.
func Load() (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	return loadFrom(filepath.Join(configDir, "config.yaml"), configDir)
}

// LoadFromFile reads configuration from an explicit file path.
func LoadFromFile(path string) (*Config, error) {
	return loadFrom(path, filepath.Dir(path))
}

func loadFrom(path, configDir string) (*Config, error) {
	fileConfig := loadFileConfig(path)

	cfg := &Config{
		AnthropicAPIKey: getEnvOrDefault("ANTHROPIC_API_KEY", fileConfig.APIKeys.Anthropic),
		OpenAIAPIKey:    getEnvOrDefault("OPENAI_API_KEY", fileConfig.APIKeys.OpenAI),
		GoogleAPIKey:    getEnvOrDefault("GOOGLE_API_KEY", fileConfig.APIKeys.Google),
		DeepSeekAPIKey:  getEnvOrDefault("DEEPSEEK_API_KEY", fileConfig.APIKeys.DeepSeek),
		GitHubToken:     getEnvOrDefault("GITHUB_TOKEN", fileConfig.APIKeys.GitHub),
		Run:             mergeRun(fileConfig.Run),
		Roles:           mergeRoles(fileConfig.Roles),
		ConfigDir:       configDir,
	}
	return cfg, nil
}

// HasAdapter returns true if the API key for the given adapter is configured.
func (c *Config) HasAdapter(name string) bool {
	switch name {
	case "anthropic":
		return c.AnthropicAPIKey != ""
	case "openai":
		return c.OpenAIAPIKey != ""
	case "google":
		return c.GoogleAPIKey != ""
	case "deepseek":
		return c.DeepSeekAPIKey != ""
	default:
		return false
	}
}

func mergeRun(file FileRunConfig) RunConfig {
	run := DefaultRun()
	if file.DiscoverConcurrency > 0 {
		run.DiscoverConcurrency = file.DiscoverConcurrency
	}
	if file.RewriteConcurrency > 0 {
		run.RewriteConcurrency = file.RewriteConcurrency
	}
	if file.VerifyConcurrency > 0 {
		run.VerifyConcurrency = file.VerifyConcurrency
	}
	if d, err := time.ParseDuration(file.JobTimeout); err == nil && d > 0 {
		run.JobTimeout = d
	}
	if file.MaxRetries != nil && *file.MaxRetries >= 0 {
		run.MaxRetries = *file.MaxRetries
	}
	if file.SoftPassThreshold != nil && *file.SoftPassThreshold >= 0 {
		run.SoftPassThreshold = *file.SoftPassThreshold
	}
	if file.FallbackConfidence != nil && *file.FallbackConfidence >= 0 {
		run.FallbackConfidence = *file.FallbackConfidence
	}
	return run
}

func mergeRoles(file RolesConfig) RolesConfig {
	roles := DefaultRoles()
	merge := func(dst *RoleConfig, src RoleConfig) {
		if src.Adapter != "" {
			dst.Adapter = src.Adapter
		}
		if src.Model != "" {
			dst.Model = src.Model
		}
	}
	merge(&roles.Reader, file.Reader)
	merge(&roles.Writer, file.Writer)
	merge(&roles.Validator, file.Validator)
	merge(&roles.Analyzer, file.Analyzer)
	merge(&roles.Fixer, file.Fixer)
	return roles
}

// loadFileConfig reads the config file, returning empty config if not found.
func loadFileConfig(path string) *FileConfig {
	cfg := &FileConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	_ = yaml.Unmarshal(data, cfg)
	return cfg
}

func getEnvOrDefault(envVar, defaultValue string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return defaultValue
}

func getConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".refit")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return configDir, nil
}
