package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// DefaultConfig returns a default configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0",
		API: APIConfig{
			APIKeyEnvVar: "REQFORGE_API_KEY",
			Timeout:      30 * time.Second,
			RetryCount:   3,
			RetryDelay:   time.Second,
		},
		Generation: GenerationConfig{
			Model:       "reqforge-chat-1",
			OracleModel: "reqforge-oracle-1",
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8321,
		},
		Database: DatabaseConfig{
			Path: filepath.Join(xdg.DataHome, "reqforge", "reqforge.db"),
		},
		Ledger: LedgerConfig{
			FlushInterval: 2 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
