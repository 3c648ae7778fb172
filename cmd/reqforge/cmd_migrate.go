package main

import (
	"fmt"

	"github.com/alecthomas/kong"

	"github.com/reqforge/reqforge/src/storage"
)

// MigrateCmd manages database migrations
type MigrateCmd struct {
	Up MigrateUpCmd `cmd:"" help:"Run pending migrations"`
}

// MigrateUpCmd runs pending migrations
type MigrateUpCmd struct{}

// Run executes the migrate up command
func (c *MigrateUpCmd) Run(ctx *kong.Context, cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}

	db, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	fmt.Printf("Database opened: %s (migrations handled automatically)\n", cfg.Database.Path)
	return nil
}
