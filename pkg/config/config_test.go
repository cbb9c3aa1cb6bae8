package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("BRIGHTPATH_LLM_PROVIDER", "")
	t.Setenv("OLLAMA_BASE_URL", "")
	t.Setenv("DATABASE_URL", "")

	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
llm:
  provider: "ollama"
  base_url: "http://localhost:11434"
  model: "llama3"
  max_tokens: 1000
  temperature: 0.5

database:
  url: "postgres://localhost:5432/test"
  table_name: "test_chunks"
  vector_dim: 768
  batch_size: 50

processor:
  chunk_size: 500
  chunk_overlap: 100

analyzer:
  attributes:
    - "Years of Work Experience"
    - "Education"
  max_answer_words: 25

report:
  output: "out.tsv"

scraper:
  allow_private: true

ui:
  streaming: false
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	// Test loading config
	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	// Verify loaded values
	assert.Equal(t, "http://localhost:11434", config.LLM.BaseURL)
	assert.Equal(t, "llama3", config.LLM.Model)
	assert.Equal(t, 1000, config.LLM.MaxTokens)
	assert.Equal(t, 0.5, config.LLM.Temperature)
	assert.Equal(t, "postgres://localhost:5432/test", config.Database.URL)
	assert.Equal(t, "test_chunks", config.Database.TableName)
	assert.Equal(t, 500, config.Processor.ChunkSize)
	assert.Equal(t, 100, config.Processor.ChunkOverlap)
	assert.Equal(t, []string{"Years of Work Experience", "Education"}, config.Analyzer.Attributes)
	assert.Equal(t, 25, config.Analyzer.MaxAnswerWords)
	assert.Equal(t, "out.tsv", config.Report.Output)
	assert.False(t, config.UI.Streaming)
	assert.True(t, config.Scraper.AllowPrivate)

	// defaults fill the gaps
	assert.Equal(t, "nomic-embed-text:latest", config.LLM.EmbeddingModel)
	assert.Equal(t, 4, config.Retrieval.TopK)
	assert.Equal(t, "./storage", config.Report.StorageDir)
	assert.Empty(t, config.Validate())
}

func TestLoadConfigTOML(t *testing.T) {
	t.Setenv("BRIGHTPATH_LLM_PROVIDER", "")
	t.Setenv("GOOGLE_API_KEY", "")

	configPath := filepath.Join(t.TempDir(), "config.toml")
	configData := `
[llm]
provider = "gemini"
api_key = "secret"

[processor]
chunk_size = 300
chunk_overlap = 30

[analyzer]
attributes = []
`
	require.NoError(t, os.WriteFile(configPath, []byte(configData), 0644))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "gemini", config.LLM.Provider)
	assert.Equal(t, "secret", config.LLM.APIKey)
	assert.Equal(t, "gemini-2.5-flash", config.LLM.Model)
	assert.Equal(t, "text-embedding-004", config.LLM.EmbeddingModel)
	assert.Empty(t, config.LLM.BaseURL)
	assert.Equal(t, 300, config.Processor.ChunkSize)
	assert.Equal(t, 30, config.Processor.ChunkOverlap)
	assert.False(t, config.Scraper.AllowPrivate)
	// an explicitly empty list is kept empty
	assert.NotNil(t, config.Analyzer.Attributes)
	assert.Empty(t, config.Analyzer.Attributes)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfigValidation(t *testing.T) {
	valid := Config{}
	applyDefaults(&valid)

	tests := []struct {
		name          string
		config        Config
		expectedErrs  int
		errorMessages []string
	}{
		{
			name:         "valid config",
			config:       valid,
			expectedErrs: 0,
		},
		{
			name: "invalid config",
			config: Config{
				LLM: LLMConfig{
					Provider:    "ollama",
					BaseURL:     "invalid-url",
					MaxTokens:   10000, // Invalid
					Temperature: 3.0,   // Invalid
				},
				Database: DatabaseConfig{
					URL:       "invalid-url", // Invalid
					VectorDim: -1,            // Invalid
					BatchSize: 100,
				},
				Processor: ProcessorConfig{
					ChunkSize:    100,
					ChunkOverlap: 200, // Invalid
				},
				Retrieval: RetrievalConfig{TopK: 4},
				Analyzer:  AnalyzerConfig{MaxAnswerWords: 40},
				Scraper:   ScraperConfig{RateLimit: 2},
			},
			expectedErrs: 6,
			errorMessages: []string{
				"llm.max_tokens: max_tokens must be between 1 and 8192",
				"llm.temperature: temperature must be between 0 and 2",
				"llm.base_url: invalid base URL",
				"database.url: invalid database URL",
				"database.vector_dim: vector_dim must be positive",
				"processor.chunk_overlap: chunk_overlap must be non-negative and less than chunk_size",
			},
		},
		{
			name: "hosted provider without key",
			config: func() Config {
				c := Config{LLM: LLMConfig{Provider: "openai"}}
				applyDefaults(&c)
				return c
			}(),
			expectedErrs:  1,
			errorMessages: []string{"llm.api_key: api_key is required for provider openai"},
		},
		{
			name: "s3 bucket without credentials",
			config: func() Config {
				c := Config{Export: ExportConfig{S3: S3Config{Bucket: "reports"}}}
				applyDefaults(&c)
				return c
			}(),
			expectedErrs:  1,
			errorMessages: []string{"export.s3: access_key and secret_key are required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errors := tt.config.Validate()
			assert.Len(t, errors, tt.expectedErrs)

			if tt.errorMessages != nil {
				for i, msg := range tt.errorMessages {
					assert.Contains(t, errors[i].Error(), msg)
				}
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("BRIGHTPATH_LLM_PROVIDER", "")
	t.Setenv("OLLAMA_BASE_URL", "http://env-ollama:11434")
	t.Setenv("DATABASE_URL", "postgres://env-db:5432/test")
	t.Setenv("BRIGHTPATH_S3_BUCKET", "env-bucket")

	config := &Config{}
	mergeWithEnv(config)

	assert.Equal(t, "http://env-ollama:11434", config.LLM.BaseURL)
	assert.Equal(t, "postgres://env-db:5432/test", config.Database.URL)
	assert.Equal(t, "env-bucket", config.Export.S3.Bucket)
}

func TestEnvironmentAPIKey(t *testing.T) {
	t.Setenv("BRIGHTPATH_LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OLLAMA_BASE_URL", "http://env-ollama:11434")

	config := &Config{}
	mergeWithEnv(config)

	assert.Equal(t, "openai", config.LLM.Provider)
	assert.Equal(t, "sk-test", config.LLM.APIKey)
	assert.Empty(t, config.LLM.BaseURL)
}
