package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
)

// CLI represents the main CLI structure
type CLI struct {
	APIKey   string `env:"REQFORGE_API_KEY" help:"Generation API key"`
	BaseURL  string `help:"Custom generation API base URL"`
	DBPath   string `help:"Database path (defaults to config)"`
	LogLevel string `default:"" help:"Log level (overrides config)"`

	Serve   ServeCmd   `cmd:"" default:"1" help:"Run the reqforge server (default)"`
	Migrate MigrateCmd `cmd:"" help:"Database migrations"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("reqforge"),
		kong.Description("AI-assisted requirements analysis server"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	err := ctx.Run(&cli)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
