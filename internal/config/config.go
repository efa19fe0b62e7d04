// Package config provides configuration loading and validation for the CLI
// and server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents the configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Paths (CLI one-shot runs)
	Template string `json:"template,omitempty"` // Path to template file (DOCX/PDF/text)
	Customer string `json:"customer,omitempty"` // Path to customer record JSON
	Output   string `json:"output,omitempty"`   // Path to write the generated document to

	// Template interpretation
	Kind       string `json:"kind,omitempty"`        // Template kind: docx_tags or pdf_acroform (default: detected)
	DateLayout string `json:"date_layout,omitempty"` // Go date layout for rendered date values

	// Inference
	APIKey                  string `json:"api_key,omitempty"`                   // Gemini API key; empty disables inference
	InferenceTimeoutSeconds int    `json:"inference_timeout_seconds,omitempty"` // Ceiling for one inference call
	IncludeValues           bool   `json:"include_values,omitempty"`            // Send customer values (not just keys) to inference

	// Server / persistence
	ListenAddr  string `json:"listen_addr,omitempty"`  // HTTP listen address for serve
	DatabaseURL string `json:"database_url,omitempty"` // PostgreSQL connection URL
	FileRoot    string `json:"file_root,omitempty"`    // Root directory of the local file store

	// Behavior
	Verbose bool `json:"verbose,omitempty"` // Print detailed debug information
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Note: This doesn't check for required fields since those are handled
// by CLI flag validation after merging.
func (c *Config) Validate() error {
	if c.Kind != "" && c.Kind != "docx_tags" && c.Kind != "pdf_acroform" {
		return fmt.Errorf("config error: 'kind' must be docx_tags or pdf_acroform, got %q", c.Kind)
	}
	if c.InferenceTimeoutSeconds < 0 {
		return fmt.Errorf("config error: 'inference_timeout_seconds' must be non-negative")
	}

	// Validate file paths exist (if specified)
	if c.Template != "" {
		if _, err := os.Stat(c.Template); os.IsNotExist(err) {
			return fmt.Errorf("config error: template file not found: %s", c.Template)
		}
	}
	if c.Customer != "" {
		if _, err := os.Stat(c.Customer); os.IsNotExist(err) {
			return fmt.Errorf("config error: customer file not found: %s", c.Customer)
		}
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to apply config file values as defaults for CLI flags.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	// String fields: use default if empty
	if result.Template == "" {
		result.Template = defaults.Template
	}
	if result.Customer == "" {
		result.Customer = defaults.Customer
	}
	if result.Output == "" {
		result.Output = defaults.Output
	}
	if result.Kind == "" {
		result.Kind = defaults.Kind
	}
	if result.DateLayout == "" {
		result.DateLayout = defaults.DateLayout
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.ListenAddr == "" {
		result.ListenAddr = defaults.ListenAddr
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.FileRoot == "" {
		result.FileRoot = defaults.FileRoot
	}

	// Int fields: use default if zero
	if result.InferenceTimeoutSeconds == 0 {
		result.InferenceTimeoutSeconds = defaults.InferenceTimeoutSeconds
	}

	// Bool fields: cannot distinguish unset from false, so we don't merge
	// (CLI flags should always win for bools)

	return result
}
