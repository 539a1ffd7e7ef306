package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shape-studio.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
program: part.go
max_iterations: 4
metrics: false
target:
  views: objects/100032/images
model:
  provider: openai
  name: gpt-4o
  temperature: 0
executor:
  mesh_cells: 32
  timeout: 30s
  entry_points: [create_object, build]
prompt:
  views: [pos_z]
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	cfg.ApplyDefaults()

	assert.Equal(t, "part.go", cfg.Program)
	assert.Equal(t, defaultOutputDir, cfg.Output)
	assert.Equal(t, 4, cfg.MaxIterations)
	assert.Equal(t, "objects/100032/images", cfg.Target.Views)
	assert.Equal(t, "openai", cfg.Model.Provider)
	require.NotNil(t, cfg.Model.Temperature)
	assert.Equal(t, 0.0, *cfg.Model.Temperature)
	assert.Equal(t, 30*time.Second, cfg.Executor.Timeout)
	assert.Equal(t, []string{"create_object", "build"}, cfg.Executor.EntryPoints)
	assert.Equal(t, []string{"pos_z"}, cfg.Prompt.Views)
	assert.False(t, cfg.StudioConfig().Metrics)
	assert.Equal(t, 32, cfg.StudioConfig().SampleCells)
}

func TestLoadConfigMissing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("max_iterations: [1"), 0o644))
	_, err = LoadConfig(bad)
	assert.ErrorAs(t, err, &cerr)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	program := filepath.Join(dir, "code.go")
	require.NoError(t, os.WriteFile(program, []byte(cubeProgram), 0o644))

	valid := func() *Config {
		c := &Config{Program: program, Target: TargetConfig{Program: program}}
		c.ApplyDefaults()
		return c
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"iterations", func(c *Config) { c.MaxIterations = -1 }, "max_iterations"},
		{"no target", func(c *Config) { c.Target = TargetConfig{} }, "target"},
		{"missing target file", func(c *Config) { c.Target.Program = filepath.Join(dir, "gone.go") }, "target.program"},
		{"missing program", func(c *Config) { c.Program = filepath.Join(dir, "gone.go") }, "program"},
		{"provider", func(c *Config) { c.Model.Provider = "llama" }, "model.provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			var cerr *ConfigError
			require.ErrorAs(t, c.Validate(), &cerr)
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}

func TestResolveAPIKey(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "api_key.txt")
	c := &Config{}
	c.ApplyDefaults()
	c.Model.APIKeyFile = keyFile

	t.Setenv("ANTHROPIC_API_KEY", "")
	var cerr *ConfigError
	require.ErrorAs(t, c.ResolveAPIKey(""), &cerr)

	require.NoError(t, os.WriteFile(keyFile, []byte("  from-file\n"), 0o600))
	require.NoError(t, c.ResolveAPIKey(""))
	assert.Equal(t, "from-file", c.Model.APIKey)

	t.Setenv("ANTHROPIC_API_KEY", "from-env")
	require.NoError(t, c.ResolveAPIKey(""))
	assert.Equal(t, "from-env", c.Model.APIKey)

	require.NoError(t, c.ResolveAPIKey("from-flag"))
	assert.Equal(t, "from-flag", c.Model.APIKey)

	require.NoError(t, os.WriteFile(keyFile, nil, 0o600))
	t.Setenv("ANTHROPIC_API_KEY", "")
	require.ErrorAs(t, c.ResolveAPIKey(""), &cerr)
	assert.Equal(t, "model.api_key_file", cerr.Field)
}

func TestProgramStore(t *testing.T) {
	dir := t.TempDir()
	store := NewProgramStore(filepath.Join(dir, "code.go"))

	_, err := store.Load()
	assert.Error(t, err)

	require.NoError(t, store.Save("first"))
	require.NoError(t, store.Save("second"))
	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	seed := filepath.Join(dir, "seed.go")
	require.NoError(t, os.WriteFile(seed, []byte(cubeProgram), 0o644))
	require.NoError(t, store.SeedFrom(seed))
	got, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, cubeProgram, got)

	bad := NewProgramStore(filepath.Join(dir, "missing", "code.go"))
	assert.Error(t, bad.Save("x"))
}

func TestRunMetrics(t *testing.T) {
	m := newRunMetrics()
	m.accepted.Inc()
	m.accepted.Inc()
	m.observe(StageExecute, 150*time.Millisecond)
	m.finish(StateConverged)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.accepted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcome.WithLabelValues("CONVERGED")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.outcome.WithLabelValues("FAILED")))

	path := filepath.Join(t.TempDir(), "metrics.prom")
	require.NoError(t, m.write(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `shape_studio_outcome{state="CONVERGED"} 1`)
	assert.Contains(t, string(data), `shape_studio_stage_duration_seconds_count{stage="execute"} 1`)
}
