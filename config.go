package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"shape-studio/tools/llm"
)

// Config is the on-disk configuration, merged with command-line flags
type Config struct {
	Program       string         `yaml:"program"`
	Seed          string         `yaml:"seed"`
	Output        string         `yaml:"output"`
	MaxIterations int            `yaml:"max_iterations"`
	Verbose       bool           `yaml:"verbose"`
	Metrics       *bool          `yaml:"metrics"`
	Target        TargetConfig   `yaml:"target"`
	Model         ModelConfig    `yaml:"model"`
	Render        RenderConfig   `yaml:"render"`
	Executor      ExecutorConfig `yaml:"executor"`
	Prompt        PromptConfig   `yaml:"prompt"`
}

// TargetConfig names the reference the loop refines toward. Views are used
// as the model's target images; a program or mesh additionally gives a
// reference solid, and is rendered when no views are given.
type TargetConfig struct {
	Views   string `yaml:"views"`
	Program string `yaml:"program"`
	Mesh    string `yaml:"mesh"`
}

// ModelConfig selects the proposer's model
type ModelConfig struct {
	Provider    string   `yaml:"provider"`
	Name        string   `yaml:"name"`
	BaseURL     string   `yaml:"base_url"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature *float64 `yaml:"temperature"`
	APIKeyFile  string   `yaml:"api_key_file"`

	APIKey string `yaml:"-"`
}

// RenderConfig configures the view renderer
type RenderConfig struct {
	Size    int `yaml:"size"`
	Quality int `yaml:"quality"`
}

// ExecutorConfig configures the program sandbox
type ExecutorConfig struct {
	MeshCells   int           `yaml:"mesh_cells"`
	Timeout     time.Duration `yaml:"timeout"`
	EntryPoints []string      `yaml:"entry_points"`
}

// PromptConfig configures what the proposer sends
type PromptConfig struct {
	Guide string   `yaml:"guide"` // path to a kernel guide replacing the built-in one
	Views []string `yaml:"views"`
}

// ConfigError reports a missing credential, a missing input file or an
// invalid setting
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// LoadConfig reads path. A missing file at the default location is not an
// error; a missing explicit path is.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &ConfigError{Field: path, Err: err}
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, &ConfigError{Field: path, Err: err}
	}
	return cfg, nil
}

// ApplyDefaults fills every unset field
func (c *Config) ApplyDefaults() {
	if c.Program == "" {
		c.Program = defaultProgramFile
	}
	if c.Output == "" {
		c.Output = defaultOutputDir
	}
	if c.MaxIterations == 0 {
		c.MaxIterations = defaultMaxIterations
	}
	if c.Metrics == nil {
		on := true
		c.Metrics = &on
	}
	if c.Model.Provider == "" {
		c.Model.Provider = llm.ProviderAnthropic
	}
	if c.Model.MaxTokens == 0 {
		c.Model.MaxTokens = 4000
	}
	if c.Model.Temperature == nil {
		t := 0.7
		c.Model.Temperature = &t
	}
	if c.Model.APIKeyFile == "" {
		c.Model.APIKeyFile = defaultAPIKeyFile
	}
}

// Validate checks the settings needed by the refine command
func (c *Config) Validate() error {
	if c.MaxIterations < 1 {
		return &ConfigError{Field: "max_iterations", Err: fmt.Errorf("must be at least 1, got %d", c.MaxIterations)}
	}
	if c.Target.Views == "" && c.Target.Program == "" && c.Target.Mesh == "" {
		return &ConfigError{Field: "target", Err: errors.New("one of views, program or mesh is required")}
	}
	if c.Target.Program != "" && c.Target.Mesh != "" {
		return &ConfigError{Field: "target", Err: errors.New("program and mesh are mutually exclusive")}
	}
	for field, path := range map[string]string{
		"target.views":   c.Target.Views,
		"target.program": c.Target.Program,
		"target.mesh":    c.Target.Mesh,
		"seed":           c.Seed,
		"prompt.guide":   c.Prompt.Guide,
	} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return &ConfigError{Field: field, Err: err}
		}
	}
	if c.Seed == "" {
		if _, err := os.Stat(c.Program); err != nil {
			return &ConfigError{Field: "program", Err: fmt.Errorf("no program to refine and no seed given: %w", err)}
		}
	}
	switch c.Model.Provider {
	case llm.ProviderAnthropic, llm.ProviderOpenAI:
	default:
		return &ConfigError{Field: "model.provider", Err: fmt.Errorf("unknown provider %q", c.Model.Provider)}
	}
	return nil
}

// ResolveAPIKey picks the credential from, in order, an explicit key, the
// provider's environment variable and the key file
func (c *Config) ResolveAPIKey(explicit string) error {
	if explicit != "" {
		c.Model.APIKey = explicit
		return nil
	}
	env := "ANTHROPIC_API_KEY"
	if c.Model.Provider == llm.ProviderOpenAI {
		env = "OPENAI_API_KEY"
	}
	if key := os.Getenv(env); key != "" {
		c.Model.APIKey = key
		return nil
	}
	data, err := os.ReadFile(c.Model.APIKeyFile)
	if err == nil {
		if key := strings.TrimSpace(string(data)); key != "" {
			c.Model.APIKey = key
			return nil
		}
		return &ConfigError{Field: "model.api_key_file", Err: fmt.Errorf("%s is empty", c.Model.APIKeyFile)}
	}
	return &ConfigError{Field: "model.api_key", Err: fmt.Errorf("set %s, pass --key or create %s", env, c.Model.APIKeyFile)}
}

// StudioConfig extracts the loop settings
func (c *Config) StudioConfig() StudioConfig {
	return StudioConfig{
		OutputDir:     c.Output,
		MaxIterations: c.MaxIterations,
		Target:        c.Target,
		SampleCells:   c.Executor.MeshCells,
		Metrics:       c.Metrics != nil && *c.Metrics,
	}
}
