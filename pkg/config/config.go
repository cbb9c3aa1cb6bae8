package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultAttributes are queried when the user does not pick any.
var DefaultAttributes = []string{
	"Years of Work Experience",
	"Education",
	"Technical Skills",
	"Most Recent Job Title",
	"Certifications",
}

type LLMConfig struct {
	Provider       string  `yaml:"provider" toml:"provider"`
	BaseURL        string  `yaml:"base_url" toml:"base_url"`
	APIKey         string  `yaml:"api_key" toml:"api_key"`
	Model          string  `yaml:"model" toml:"model"`
	EmbeddingModel string  `yaml:"embedding_model" toml:"embedding_model"`
	MaxTokens      int     `yaml:"max_tokens" toml:"max_tokens"`
	Temperature    float64 `yaml:"temperature" toml:"temperature"`
}

type DatabaseConfig struct {
	URL       string `yaml:"url" toml:"url"`
	TableName string `yaml:"table_name" toml:"table_name"`
	VectorDim int    `yaml:"vector_dim" toml:"vector_dim"`
	BatchSize int    `yaml:"batch_size" toml:"batch_size"`
}

type ProcessorConfig struct {
	ChunkSize           int  `yaml:"chunk_size" toml:"chunk_size"`
	ChunkOverlap        int  `yaml:"chunk_overlap" toml:"chunk_overlap"`
	NormalizeWhitespace bool `yaml:"normalize_whitespace" toml:"normalize_whitespace"`
}

type RetrievalConfig struct {
	TopK           int `yaml:"top_k" toml:"top_k"`
	EmbedBatchSize int `yaml:"embed_batch_size" toml:"embed_batch_size"`
}

type AnalyzerConfig struct {
	Attributes     []string `yaml:"attributes" toml:"attributes"`
	MaxAnswerWords int      `yaml:"max_answer_words" toml:"max_answer_words"`
}

type ReportConfig struct {
	Output     string `yaml:"output" toml:"output"`
	StorageDir string `yaml:"storage_dir" toml:"storage_dir"`
}

type ScraperConfig struct {
	RateLimit    float64 `yaml:"rate_limit" toml:"rate_limit"`
	Timeout      int     `yaml:"timeout_seconds" toml:"timeout_seconds"`
	UserAgent    string  `yaml:"user_agent" toml:"user_agent"`
	AllowPrivate bool    `yaml:"allow_private" toml:"allow_private"` // role URLs on loopback and private networks
}

type S3Config struct {
	Bucket    string `yaml:"bucket" toml:"bucket"`
	Region    string `yaml:"region" toml:"region"`
	Endpoint  string `yaml:"endpoint" toml:"endpoint"`
	AccessKey string `yaml:"access_key" toml:"access_key"`
	SecretKey string `yaml:"secret_key" toml:"secret_key"`
	Prefix    string `yaml:"prefix" toml:"prefix"`
	PathStyle bool   `yaml:"path_style" toml:"path_style"`
}

type ExportConfig struct {
	S3 S3Config `yaml:"s3" toml:"s3"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" toml:"addr"`
}

type UIConfig struct {
	Streaming bool `yaml:"streaming" toml:"streaming"`
}

type Config struct {
	LLM       LLMConfig       `yaml:"llm" toml:"llm"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Processor ProcessorConfig `yaml:"processor" toml:"processor"`
	Retrieval RetrievalConfig `yaml:"retrieval" toml:"retrieval"`
	Analyzer  AnalyzerConfig  `yaml:"analyzer" toml:"analyzer"`
	Report    ReportConfig    `yaml:"report" toml:"report"`
	Scraper   ScraperConfig   `yaml:"scraper" toml:"scraper"`
	Export    ExportConfig    `yaml:"export" toml:"export"`
	Server    ServerConfig    `yaml:"server" toml:"server"`
	UI        UIConfig        `yaml:"ui" toml:"ui"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			"config.toml",
			filepath.Join(os.Getenv("HOME"), ".config/brightpath/config.yaml"),
			"/etc/brightpath/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Merge with environment variables
	mergeWithEnv(&config)

	// Apply defaults for unset values
	applyDefaults(&config)

	return &config, nil
}

// Default returns a config with every default applied and no environment overrides.
func Default() *Config {
	config := &Config{}
	applyDefaults(config)
	return config
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = "ollama"
	}
	if config.LLM.Model == "" {
		switch config.LLM.Provider {
		case "openai":
			config.LLM.Model = "gpt-4o-mini"
		case "gemini":
			config.LLM.Model = "gemini-2.5-flash"
		default:
			config.LLM.Model = "mistral"
		}
	}
	if config.LLM.EmbeddingModel == "" {
		switch config.LLM.Provider {
		case "openai":
			config.LLM.EmbeddingModel = "text-embedding-3-small"
		case "gemini":
			config.LLM.EmbeddingModel = "text-embedding-004"
		default:
			config.LLM.EmbeddingModel = "nomic-embed-text:latest"
		}
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.2
	}
	if config.LLM.BaseURL == "" && config.LLM.Provider == "ollama" {
		config.LLM.BaseURL = "http://localhost:11434"
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "resume_chunks"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 768
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 100
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 1000
	}
	if config.Processor.ChunkOverlap == 0 {
		config.Processor.ChunkOverlap = 200
	}

	if config.Retrieval.TopK == 0 {
		config.Retrieval.TopK = 4
	}
	if config.Retrieval.EmbedBatchSize == 0 {
		config.Retrieval.EmbedBatchSize = 32
	}

	if config.Analyzer.Attributes == nil {
		config.Analyzer.Attributes = append([]string(nil), DefaultAttributes...)
	}
	if config.Analyzer.MaxAnswerWords == 0 {
		config.Analyzer.MaxAnswerWords = 40
	}

	if config.Report.Output == "" {
		config.Report.Output = "report.tsv"
	}
	if config.Report.StorageDir == "" {
		config.Report.StorageDir = "./storage"
	}

	if config.Scraper.RateLimit == 0 {
		config.Scraper.RateLimit = 2.0
	}
	if config.Scraper.Timeout == 0 {
		config.Scraper.Timeout = 30
	}
	if config.Scraper.UserAgent == "" {
		config.Scraper.UserAgent = "brightpath/1.0"
	}

	if config.Export.S3.Region == "" {
		config.Export.S3.Region = "auto"
	}
	if config.Export.S3.Prefix == "" {
		config.Export.S3.Prefix = "reports"
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8080"
	}
}

func mergeWithEnv(config *Config) {
	if provider := os.Getenv("BRIGHTPATH_LLM_PROVIDER"); provider != "" {
		config.LLM.Provider = provider
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" && (config.LLM.Provider == "" || config.LLM.Provider == "ollama") {
		config.LLM.BaseURL = baseURL
	}
	if config.LLM.APIKey == "" {
		switch config.LLM.Provider {
		case "openai":
			config.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case "gemini":
			config.LLM.APIKey = os.Getenv("GOOGLE_API_KEY")
		}
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if bucket := os.Getenv("BRIGHTPATH_S3_BUCKET"); bucket != "" {
		config.Export.S3.Bucket = bucket
	}
	if endpoint := os.Getenv("BRIGHTPATH_S3_ENDPOINT"); endpoint != "" {
		config.Export.S3.Endpoint = endpoint
	}
	if key := os.Getenv("BRIGHTPATH_S3_ACCESS_KEY"); key != "" {
		config.Export.S3.AccessKey = key
	}
	if secret := os.Getenv("BRIGHTPATH_S3_SECRET_KEY"); secret != "" {
		config.Export.S3.SecretKey = secret
	}
}
