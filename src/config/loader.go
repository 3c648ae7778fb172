package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/adrg/xdg"
	"github.com/spf13/afero"
)

// Loader handles loading and merging configurations from multiple sources
type Loader struct {
	fs         afero.Fs
	precedence ConfigPrecedence
	validator  *Validator
}

// NewLoader creates a new configuration loader reading from the OS filesystem
func NewLoader(precedence ConfigPrecedence) *Loader {
	return NewLoaderWithFs(afero.NewOsFs(), precedence)
}

// NewLoaderWithFs creates a loader over an arbitrary filesystem
func NewLoaderWithFs(fs afero.Fs, precedence ConfigPrecedence) *Loader {
	return &Loader{
		fs:         fs,
		precedence: precedence,
		validator:  NewValidator(),
	}
}

// Load loads configuration from all sources and merges them
func (l *Loader) Load() (*Config, error) {
	// Start with default configuration
	config := DefaultConfig()

	// Load and merge configurations in order of precedence
	sources := []struct {
		path   string
		source ConfigSource
	}{
		{l.precedence.SystemConfig, SourceSystem},
		{l.precedence.UserConfig, SourceUser},
		{l.precedence.LocalConfig, SourceLocal},
	}

	for _, src := range sources {
		if src.path == "" {
			continue
		}

		if cfg, err := l.loadFile(src.path); err == nil {
			config = l.mergeConfigs(config, cfg)
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s config from %s: %w", src.source, src.path, err)
		}
	}

	// Apply environment variable overrides
	if l.precedence.EnvironmentPrefix != "" {
		l.applyEnvironmentOverrides(config)
	}

	// Resolve the API key indirection last so overrides are seen
	if config.API.APIKey == "" && config.API.APIKeyEnvVar != "" {
		config.API.APIKey = os.Getenv(config.API.APIKeyEnvVar)
	}

	// Validate the final configuration
	if err := l.validator.Validate(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// loadFile loads a single configuration file
func (l *Loader) loadFile(path string) (*Config, error) {
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	return &config, nil
}

// SaveFile saves configuration to a file
func (l *Loader) SaveFile(config *Config, path string) error {
	if err := l.validator.Validate(config); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	dir := filepath.Dir(path)
	if err := l.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := afero.WriteFile(l.fs, path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// mergeConfigs merges two configurations with the second taking precedence
func (l *Loader) mergeConfigs(base, override *Config) *Config {
	result := *base

	if override.Version != "" {
		result.Version = override.Version
	}

	// Merge API config
	if override.API.BaseURL != "" {
		result.API.BaseURL = override.API.BaseURL
	}
	if override.API.APIKey != "" {
		result.API.APIKey = override.API.APIKey
	}
	if override.API.APIKeyEnvVar != "" {
		result.API.APIKeyEnvVar = override.API.APIKeyEnvVar
	}
	if override.API.Timeout != 0 {
		result.API.Timeout = override.API.Timeout
	}
	if override.API.RetryCount != 0 {
		result.API.RetryCount = override.API.RetryCount
	}
	if override.API.RetryDelay != 0 {
		result.API.RetryDelay = override.API.RetryDelay
	}

	// Merge Generation config
	if override.Generation.Model != "" {
		result.Generation.Model = override.Generation.Model
	}
	if override.Generation.OracleModel != "" {
		result.Generation.OracleModel = override.Generation.OracleModel
	}

	// Merge Server config
	if override.Server.Host != "" {
		result.Server.Host = override.Server.Host
	}
	if override.Server.Port != 0 {
		result.Server.Port = override.Server.Port
	}
	if len(override.Server.CORSOrigins) > 0 {
		result.Server.CORSOrigins = override.Server.CORSOrigins
	}

	// Merge Database config
	if override.Database.Path != "" {
		result.Database.Path = override.Database.Path
	}

	// Merge Ledger config
	if override.Ledger.FlushInterval != 0 {
		result.Ledger.FlushInterval = override.Ledger.FlushInterval
	}

	// Templates replace wholesale; partial template merges are ambiguous
	if len(override.Templates) > 0 {
		result.Templates = override.Templates
	}

	// Merge Logging config
	if override.Logging.Level != "" {
		result.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		result.Logging.Format = override.Logging.Format
	}
	if override.Logging.File != "" {
		result.Logging.File = override.Logging.File
	}

	return &result
}

// applyEnvironmentOverrides applies environment variable overrides to config
func (l *Loader) applyEnvironmentOverrides(config *Config) {
	prefix := l.precedence.EnvironmentPrefix

	if apiKey := os.Getenv(prefix + "_API_KEY"); apiKey != "" {
		config.API.APIKey = apiKey
	}
	if baseURL := os.Getenv(prefix + "_BASE_URL"); baseURL != "" {
		config.API.BaseURL = baseURL
	}
	if model := os.Getenv(prefix + "_MODEL"); model != "" {
		config.Generation.Model = model
	}
	if dbPath := os.Getenv(prefix + "_DB_PATH"); dbPath != "" {
		config.Database.Path = dbPath
	}
	if addr := os.Getenv(prefix + "_HOST"); addr != "" {
		config.Server.Host = addr
	}
	if level := os.Getenv(prefix + "_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// GetConfigPaths returns the configuration file paths to check
func GetConfigPaths() ConfigPrecedence {
	// Use XDG paths for cross-platform compatibility
	userConfigPath := filepath.Join(xdg.ConfigHome, "reqforge", "config.json")

	// System config path varies by OS
	systemConfigPath := "/etc/reqforge/config.json"
	if runtime.GOOS == "windows" {
		systemConfigPath = filepath.Join(os.Getenv("PROGRAMDATA"), "reqforge", "config.json")
	}

	return ConfigPrecedence{
		SystemConfig:      systemConfigPath,
		UserConfig:        userConfigPath,
		LocalConfig:       filepath.Join(".reqforge", "config.json"),
		EnvironmentPrefix: "REQFORGE",
	}
}
