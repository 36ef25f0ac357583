package veglens

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the veglens engine.
type Config struct {
	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to ~/.veglens/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	// Defaults to "veglens".
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath
	// is not explicitly set. Options: "home" (default) uses ~/.veglens/,
	// "local" uses the current working directory.
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// LLM providers
	Chat      LLMConfig `json:"chat" yaml:"chat"`
	Embedding LLMConfig `json:"embedding" yaml:"embedding"`

	// EmbeddingDim must match the embedding model's output dimension.
	EmbeddingDim int `json:"embedding_dim" yaml:"embedding_dim"`

	// SeedPath points at the knowledge-base seed file (.json or .xlsx).
	// Used only when the dish collection is empty.
	SeedPath string `json:"seed_path" yaml:"seed_path"`

	// Classification
	ConfidenceThreshold float64 `json:"confidence_threshold" yaml:"confidence_threshold"`
	TopK                int     `json:"top_k" yaml:"top_k"`

	// ItemConcurrency bounds how many menu items are classified in
	// parallel. The default of 1 keeps items sequential, which is the
	// safe choice for LLM backends that serialise internally.
	ItemConcurrency int `json:"item_concurrency" yaml:"item_concurrency"`

	// FinalizeUncertainNonVeg, when true, lets low-confidence
	// non-vegetarian items be discarded instead of routed to human
	// review. The default (false) routes them to review.
	FinalizeUncertainNonVeg bool `json:"finalize_uncertain_nonveg" yaml:"finalize_uncertain_nonveg"`
}

// LLMConfig configures a single LLM provider endpoint.
type LLMConfig struct {
	Provider string `json:"provider" yaml:"provider"` // ollama, openai, custom
	Model    string `json:"model" yaml:"model"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key"`
}

// DefaultConfig returns a Config with sensible defaults for local inference.
// Database is stored in ~/.veglens/veglens.db by default.
func DefaultConfig() Config {
	return Config{
		DBName:     "veglens",
		StorageDir: "home",
		Chat: LLMConfig{
			Provider: "ollama",
			Model:    "llama3",
			BaseURL:  "http://localhost:11434",
		},
		Embedding: LLMConfig{
			Provider: "ollama",
			Model:    "all-minilm",
			BaseURL:  "http://localhost:11434",
		},
		EmbeddingDim:        384,
		ConfidenceThreshold: 0.7,
		TopK:                5,
		ItemConcurrency:     1,
	}
}

// LoadConfig reads a config file. YAML and JSON are both accepted; the
// format is chosen by file extension.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}

	if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1 {
		return cfg, fmt.Errorf("%w: confidence_threshold must be in [0,1]", ErrInvalidConfig)
	}
	return cfg, nil
}

// resolveDBPath computes the final database path from config fields.
func (c *Config) resolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "veglens"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db" // fallback to cwd
		}
		return filepath.Join(home, ".veglens", name+".db")
	}
}
