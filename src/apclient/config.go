package apclient

import (
	"log/slog"
	"time"
)

// Config holds configuration for the generation API client
type Config struct {
	APIKey     string        // API key for the generation backend
	BaseURL    string        // Base URL for the generation API
	Logger     *slog.Logger  // Logger for debugging
	Timeout    time.Duration // HTTP timeout for one-shot calls
	RetryCount int           // Number of retries for failed requests
	RetryDelay time.Duration // Delay between retries
}
