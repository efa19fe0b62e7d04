package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_ValidJSON(t *testing.T) {
	// Create temp config file
	content := `{
		"kind": "pdf_acroform",
		"date_layout": "02.01.2006",
		"database_url": "postgres://localhost/autofill",
		"inference_timeout_seconds": 20,
		"verbose": true
	}`

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(tmpFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(tmpFile)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "pdf_acroform", cfg.Kind)
	assert.Equal(t, "02.01.2006", cfg.DateLayout)
	assert.Equal(t, "postgres://localhost/autofill", cfg.DatabaseURL)
	assert.Equal(t, 20, cfg.InferenceTimeoutSeconds)
	assert.True(t, cfg.Verbose)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	content := `{ invalid json }`

	tmpFile := filepath.Join(t.TempDir(), "config.json")
	err := os.WriteFile(tmpFile, []byte(content), 0644)
	require.NoError(t, err)

	cfg, err := LoadConfig(tmpFile)
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "config path is empty")
}

func TestValidate_UnknownKind(t *testing.T) {
	cfg := &Config{
		Kind: "odt_fields",
	}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "kind")
}

func TestValidate_NegativeTimeout(t *testing.T) {
	cfg := &Config{
		InferenceTimeoutSeconds: -5,
	}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "inference_timeout_seconds")
}

func TestValidate_MissingTemplateFile(t *testing.T) {
	cfg := &Config{
		Template: "/nonexistent/template.pdf",
	}

	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "template file not found")
}

func TestValidate_ValidConfig(t *testing.T) {
	cfg := &Config{
		Kind:                    "docx_tags",
		DateLayout:              "2006-01-02",
		InferenceTimeoutSeconds: 30,
	}

	err := cfg.Validate()
	assert.NoError(t, err)
}

func TestMergeWithDefaults(t *testing.T) {
	defaults := Config{
		Kind:                    "docx_tags",
		DateLayout:              "2006-01-02",
		ListenAddr:              ":8080",
		FileRoot:                "files",
		InferenceTimeoutSeconds: 30,
	}

	partial := Config{
		Kind:     "pdf_acroform",
		Template: "vertrag.pdf",
	}

	merged := partial.MergeWithDefaults(defaults)

	// Custom values should be preserved
	assert.Equal(t, "pdf_acroform", merged.Kind)
	assert.Equal(t, "vertrag.pdf", merged.Template)

	// Default values should fill in empty fields
	assert.Equal(t, "2006-01-02", merged.DateLayout)
	assert.Equal(t, ":8080", merged.ListenAddr)
	assert.Equal(t, "files", merged.FileRoot)
	assert.Equal(t, 30, merged.InferenceTimeoutSeconds)
}

func TestMergeWithDefaults_EmptyDefaults(t *testing.T) {
	cfg := Config{
		Kind:     "docx_tags",
		Template: "formular.docx",
	}

	merged := cfg.MergeWithDefaults(Config{})

	assert.Equal(t, "docx_tags", merged.Kind)
	assert.Equal(t, "formular.docx", merged.Template)
}
