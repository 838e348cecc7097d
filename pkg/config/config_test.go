package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
llm:
  base_url: "http://localhost:11434"
  model: "llama3"
  max_tokens: 1000
  temperature: 0.5

database:
  url: "postgres://localhost:5432/test"
  table_name: "test_sections"
  vector_dim: 384
  batch_size: 50

scraper:
  max_depth: 2
  rate_limit: 1.5
  ignore_patterns:
    - "/careers/"
  allowed_extensions:
    - ".html"
    - "/"

processor:
  min_content_length: 40

selection:
  min_length: 5
  debounce: 250ms

tokens:
  limit: 4000

server:
  port: 9090
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:11434", config.LLM.BaseURL)
	assert.Equal(t, "llama3", config.LLM.Model)
	assert.Equal(t, "nomic-embed-text:latest", config.LLM.EmbeddingModel)
	assert.Equal(t, 1000, config.LLM.MaxTokens)
	assert.Equal(t, 0.5, config.LLM.Temperature)
	assert.Equal(t, "postgres://localhost:5432/test", config.Database.URL)
	assert.Equal(t, "test_sections", config.Database.TableName)
	assert.Equal(t, 2, config.Scraper.MaxDepth)
	assert.Equal(t, 40, config.Processor.MinContentLength)
	assert.Equal(t, 5, config.Selection.MinLength)
	assert.Equal(t, 250*time.Millisecond, config.Selection.Debounce)
	assert.Equal(t, 4000, config.Tokens.Limit)
	assert.Equal(t, "gpt-4", config.Tokens.Model)
	assert.Equal(t, 9090, config.Server.Port)
	assert.Empty(t, config.Validate())
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("selection:\n  debounce: soon\n"), 0644))
	_, err = LoadConfig(bad)
	assert.Error(t, err)
}

func TestDefaults(t *testing.T) {
	config := &Config{}
	applyDefaults(config)

	assert.Equal(t, 3, config.Selection.MinLength)
	assert.Equal(t, 100*time.Millisecond, config.Selection.Debounce)
	assert.Equal(t, 8000, config.Tokens.Limit)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "sections", config.Database.TableName)
	assert.Empty(t, config.Validate())
}

func TestConfigValidation(t *testing.T) {
	valid := func() Config {
		c := Config{}
		applyDefaults(&c)
		return c
	}

	tests := []struct {
		name   string
		modify func(c *Config)
		fields []string
	}{
		{
			name:   "valid config",
			modify: func(c *Config) {},
		},
		{
			name: "invalid llm",
			modify: func(c *Config) {
				c.LLM.BaseURL = "invalid-url"
				c.LLM.MaxTokens = 5000
				c.LLM.Temperature = 3.0
			},
			fields: []string{"llm.base_url", "llm.max_tokens", "llm.temperature"},
		},
		{
			name: "invalid database",
			modify: func(c *Config) {
				c.Database.URL = "mysql://localhost/test"
				c.Database.VectorDim = -1
			},
			fields: []string{"database.url", "database.vector_dim"},
		},
		{
			name: "invalid selection and server",
			modify: func(c *Config) {
				c.Selection.MinLength = -2
				c.Selection.Debounce = -time.Second
				c.Server.Port = 70000
			},
			fields: []string{"selection.min_length", "selection.debounce", "server.port"},
		},
		{
			name: "invalid scraper",
			modify: func(c *Config) {
				c.Scraper.MaxDepth = -1
				c.Scraper.AllowedExtensions = []string{"html"}
			},
			fields: []string{"scraper.max_depth", "scraper.allowed_extensions"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.modify(&c)

			var fields []string
			for _, e := range c.Validate() {
				fields = append(fields, e.Field)
			}
			assert.Equal(t, tt.fields, fields)
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "http://env-ollama:11434")
	t.Setenv("DATABASE_URL", "postgres://env-db:5432/test")
	t.Setenv("PORT", "3001")

	config := &Config{}
	mergeWithEnv(config)

	assert.Equal(t, "http://env-ollama:11434", config.LLM.BaseURL)
	assert.Equal(t, "postgres://env-db:5432/test", config.Database.URL)
	assert.Equal(t, 3001, config.Server.Port)
}
