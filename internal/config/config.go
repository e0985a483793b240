// Package config loads the harness configuration from YAML with environment
// overrides for credentials. A .env file in the working directory is applied
// first, so local runs can keep keys out of the config file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

type Config struct {
	LLM        LLMConfig        `yaml:"llm"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Index      IndexConfig      `yaml:"index"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Storage    StorageConfig    `yaml:"storage"`
	Server     ServerConfig     `yaml:"server"`
	Paths      PathsConfig      `yaml:"paths"`
}

type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider,omitempty"`
	Providers       map[string]ProviderConfig `yaml:"providers,omitempty"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model,omitempty"`
}

type EmbeddingConfig struct {
	Provider string `yaml:"provider,omitempty"` // "tfidf" or "openai"
	Model    string `yaml:"model,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"`
}

type IndexConfig struct {
	Type   string       `yaml:"type,omitempty"` // "memory" or "qdrant"
	Qdrant QdrantConfig `yaml:"qdrant,omitempty"`
}

type QdrantConfig struct {
	Host       string `yaml:"host,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	Collection string `yaml:"collection,omitempty"`
	APIKey     string `yaml:"api_key,omitempty"`
	UseTLS     bool   `yaml:"use_tls,omitempty"`
}

type EvaluationConfig struct {
	Ks          []int         `yaml:"ks,omitempty"`
	Concurrency int           `yaml:"concurrency,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	QPS         float64       `yaml:"qps,omitempty"`
	EmptyPolicy string        `yaml:"empty_policy,omitempty"` // "zero" or "vacuous"
	MinRecall   float64       `yaml:"min_recall,omitempty"`
	MinMRR      float64       `yaml:"min_mrr,omitempty"`
	Epsilon     float64       `yaml:"epsilon,omitempty"` // regression tolerance for compare
}

type StorageConfig struct {
	Type string `yaml:"type,omitempty"` // "sqlite" or "memory"
	Path string `yaml:"path,omitempty"` // SQLite file path
}

type ServerConfig struct {
	Addr   string `yaml:"addr,omitempty"`
	APIKey string `yaml:"api_key,omitempty"`
}

type PathsConfig struct {
	Datasets string `yaml:"datasets,omitempty"`
	Corpora  string `yaml:"corpora,omitempty"`
	Tools    string `yaml:"tools,omitempty"`
}

func Load(path string) (*Config, error) {
	// A missing .env is fine; explicit env vars still win below.
	_ = godotenv.Load()

	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultPath
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}

	applyDefaults(&cfg)
	applyEnv(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.LLM.Providers == nil {
		cfg.LLM.Providers = make(map[string]ProviderConfig)
	}
	if strings.TrimSpace(cfg.LLM.DefaultProvider) == "" {
		cfg.LLM.DefaultProvider = "claude"
	}

	if strings.TrimSpace(cfg.Embedding.Provider) == "" {
		cfg.Embedding.Provider = "tfidf"
	}
	if strings.TrimSpace(cfg.Index.Type) == "" {
		cfg.Index.Type = "memory"
	}

	if len(cfg.Evaluation.Ks) == 0 {
		cfg.Evaluation.Ks = []int{5}
	}
	if cfg.Evaluation.Concurrency == 0 {
		cfg.Evaluation.Concurrency = 4
	}
	if cfg.Evaluation.Timeout == 0 {
		cfg.Evaluation.Timeout = 30 * time.Second
	}

	if strings.TrimSpace(cfg.Server.Addr) == "" {
		cfg.Server.Addr = ":8080"
	}

	if strings.TrimSpace(cfg.Paths.Datasets) == "" {
		cfg.Paths.Datasets = "datasets"
	}
	if strings.TrimSpace(cfg.Paths.Corpora) == "" {
		cfg.Paths.Corpora = "corpora"
	}
	if strings.TrimSpace(cfg.Paths.Tools) == "" {
		cfg.Paths.Tools = "tools"
	}
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
		p := cfg.LLM.Providers["claude"]
		p.APIKey = v
		cfg.LLM.Providers["claude"] = p
	} else if v := strings.TrimSpace(os.Getenv("ANTHROPIC_AUTH_TOKEN")); v != "" {
		p := cfg.LLM.Providers["claude"]
		p.APIKey = v
		cfg.LLM.Providers["claude"] = p
	}

	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		p := cfg.LLM.Providers["openai"]
		p.APIKey = v
		cfg.LLM.Providers["openai"] = p

		if cfg.Embedding.APIKey == "" {
			cfg.Embedding.APIKey = v
		}
	}

	if v := strings.TrimSpace(os.Getenv("QDRANT_API_KEY")); v != "" {
		cfg.Index.Qdrant.APIKey = v
	}

	if v := strings.TrimSpace(os.Getenv("RAG_EVAL_API_KEY")); v != "" {
		cfg.Server.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("RAG_EVAL_DB")); v != "" {
		cfg.Storage.Path = v
	}
}
