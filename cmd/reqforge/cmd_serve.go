package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/reqforge/reqforge/src/apclient"
	"github.com/reqforge/reqforge/src/api"
	"github.com/reqforge/reqforge/src/config"
	"github.com/reqforge/reqforge/src/engine"
	"github.com/reqforge/reqforge/src/storage"
)

// ServeCmd runs the HTTP server until interrupted.
type ServeCmd struct {
	Host string `help:"Bind host (overrides config)"`
	Port int    `help:"Bind port (overrides config)"`
}

// Run executes the serve command
func (c *ServeCmd) Run(ctx *kong.Context, cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	logger := createLogger(cfg.Logging)

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	client := apclient.NewClient(apclient.Config{
		APIKey:     cfg.API.APIKey,
		BaseURL:    cfg.API.BaseURL,
		Timeout:    cfg.API.Timeout,
		RetryCount: cfg.API.RetryCount,
		RetryDelay: cfg.API.RetryDelay,
		Logger:     logger,
	})
	oracle := apclient.NewOracle(client, cfg.Generation.OracleModel, logger)

	templates, err := buildTemplates(cfg.Templates)
	if err != nil {
		return err
	}

	eng := engine.New(engine.Config{
		Store:               storage.NewStore(db),
		Provider:            client,
		Oracle:              oracle,
		Templates:           templates,
		Model:               cfg.Generation.Model,
		LedgerFlushInterval: cfg.Ledger.FlushInterval,
		Logger:              logger,
	})

	server := api.NewServer(eng, cfg.Server, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-sigCtx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown failed", "error", err)
	}
	// Flush pending token usage before the database closes.
	if err := eng.Close(shutdownCtx); err != nil {
		logger.Warn("engine close failed", "error", err)
	}
	return nil
}

// loadConfig loads the layered configuration and applies global CLI flags.
func loadConfig(cli *CLI) (*config.Config, error) {
	loader := config.NewLoader(config.GetConfigPaths())
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	if cli.APIKey != "" {
		cfg.API.APIKey = cli.APIKey
	}
	if cli.BaseURL != "" {
		cfg.API.BaseURL = cli.BaseURL
	}
	if cli.DBPath != "" {
		cfg.Database.Path = cli.DBPath
	}
	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}
	return cfg, nil
}

// buildTemplates converts configured templates into engine templates.
func buildTemplates(configured []config.TemplateConfig) ([]engine.PromptTemplate, error) {
	templates := make([]engine.PromptTemplate, 0, len(configured))
	for _, t := range configured {
		docType, err := engine.ParseDocType(t.DocType)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", t.ID, err)
		}
		templates = append(templates, engine.PromptTemplate{
			ID:      t.ID,
			Name:    t.Name,
			DocType: docType,
			Prompt:  t.Prompt,
		})
	}
	return templates, nil
}
