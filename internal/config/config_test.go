package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_DefaultsWhenFileMissing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.Port)
	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, 0.4, cfg.Vision.CaptionTemperature)
	assert.Equal(t, 0.0, cfg.Vision.TranscriptTemperature)
	assert.Equal(t, 0.9, cfg.Generation.Temperature)
	assert.Equal(t, "fail_fast", cfg.Vision.FailurePolicy)
	assert.Equal(t, "permissive", cfg.Candidates.CountPolicy)
	assert.Equal(t, "memory", cfg.Store.Driver)
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replytrainer.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[ai]
provider = "gemini"
api_key = "file-key"

[vision]
failure_policy = "best_effort"
max_concurrency = 4

[store]
driver = "postgres"
`), 0o600))

	t.Setenv("REPLYTRAINER_AI__API_KEY", "env-key")
	t.Setenv("REPLYTRAINER_SERVER__PORT", "9090")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.AI.Provider)
	assert.Equal(t, "env-key", cfg.AI.APIKey)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "best_effort", cfg.Vision.FailurePolicy)
	assert.Equal(t, 4, cfg.Vision.MaxConcurrency)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 0.9, cfg.Generation.Temperature)
}

func TestInitConfig_WritesLoadableSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replytrainer.toml")
	require.NoError(t, InitConfig(path))
	assert.Error(t, InitConfig(path), "second init must not overwrite")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "your-api-key", cfg.AI.APIKey)
	require.NoError(t, Validate(cfg))
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "none.toml"))
		require.NoError(t, err)
		cfg.AI.APIKey = "k"
		return cfg
	}

	require.NoError(t, Validate(valid()))

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing key", func(c *Config) { c.AI.APIKey = "" }},
		{"bad provider", func(c *Config) { c.AI.Provider = "cohere" }},
		{"bad policy", func(c *Config) { c.Vision.FailurePolicy = "maybe" }},
		{"bad count policy", func(c *Config) { c.Candidates.CountPolicy = "five" }},
		{"jobs on memory", func(c *Config) { c.Jobs.Enabled = true }},
		{"bad driver", func(c *Config) { c.Store.Driver = "firestore" }},
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}

	mixed := valid()
	mixed.AI.Provider = " OpenAI"
	mixed.Vision.FailurePolicy = "Best_Effort"
	mixed.Candidates.CountPolicy = "EXACT "
	mixed.Store.Driver = "Memory"
	require.NoError(t, Validate(mixed))
	assert.Equal(t, "openai", mixed.AI.Provider)
	assert.Equal(t, "best_effort", mixed.Vision.FailurePolicy)
	assert.Equal(t, "exact", mixed.Candidates.CountPolicy)
	assert.Equal(t, "memory", mixed.Store.Driver)

	ollama := valid()
	ollama.AI.Provider = "ollama"
	ollama.AI.APIKey = ""
	assert.NoError(t, Validate(ollama))
}
