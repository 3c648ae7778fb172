// Package config loads and validates the reqforge server configuration from
// JSON files, with environment variable overrides layered on top.
package config

import (
	"fmt"
	"time"
)

// ConfigSource identifies where a configuration value came from
type ConfigSource string

const (
	SourceDefault     ConfigSource = "default"
	SourceSystem      ConfigSource = "system"
	SourceUser        ConfigSource = "user"
	SourceLocal       ConfigSource = "local"
	SourceEnvironment ConfigSource = "environment"
)

// Config is the complete reqforge configuration
type Config struct {
	Version    string           `json:"version" validate:"required"`
	API        APIConfig        `json:"api"`
	Generation GenerationConfig `json:"generation"`
	Server     ServerConfig     `json:"server"`
	Database   DatabaseConfig   `json:"database"`
	Ledger     LedgerConfig     `json:"ledger"`
	Templates  []TemplateConfig `json:"templates,omitempty" validate:"dive"`
	Logging    LoggingConfig    `json:"logging"`
}

// APIConfig configures the connection to the generation backend
type APIConfig struct {
	BaseURL      string        `json:"base_url,omitempty" validate:"omitempty,url"`
	APIKey       string        `json:"api_key,omitempty"`
	APIKeyEnvVar string        `json:"api_key_env_var,omitempty"`
	Timeout      time.Duration `json:"timeout,omitempty"`
	RetryCount   int           `json:"retry_count,omitempty" validate:"omitempty,min=1,max=10"`
	RetryDelay   time.Duration `json:"retry_delay,omitempty"`
}

// GenerationConfig selects the models used for chat and impact assessment
type GenerationConfig struct {
	Model       string `json:"model" validate:"required"`
	OracleModel string `json:"oracle_model,omitempty"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Host        string   `json:"host,omitempty"`
	Port        int      `json:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	CORSOrigins []string `json:"cors_origins,omitempty"`
}

// DatabaseConfig locates the sqlite database
type DatabaseConfig struct {
	Path string `json:"path,omitempty"`
}

// LedgerConfig tunes token usage persistence
type LedgerConfig struct {
	FlushInterval time.Duration `json:"flush_interval,omitempty"`
}

// TemplateConfig declares one prompt template for a document type
type TemplateConfig struct {
	ID      string `json:"id" validate:"required"`
	Name    string `json:"name,omitempty"`
	DocType string `json:"doc_type" validate:"required,doc_type"`
	Prompt  string `json:"prompt" validate:"required"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	Level  string `json:"level,omitempty" validate:"omitempty,log_level"`
	Format string `json:"format,omitempty" validate:"omitempty,log_format"`
	File   string `json:"file,omitempty"`
}

// ConfigPrecedence defines the file paths and environment prefix to load from
type ConfigPrecedence struct {
	SystemConfig      string
	UserConfig        string
	LocalConfig       string
	EnvironmentPrefix string
}

// ValidationError reports a single invalid configuration field
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

// Error implements the error interface
func (e ValidationError) Error() string {
	return fmt.Sprintf("invalid config field %s: %s", e.Field, e.Message)
}

// Address returns the host:port pair the server should bind.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
