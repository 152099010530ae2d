package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/fintrack-dev/fintrack/internal/app"
	"github.com/fintrack-dev/fintrack/internal/config"
)

// main runs the CLI entrypoint and exits on unrecoverable command errors.
func main() {
	if errRun := run(os.Args[1:]); errRun != nil {
		log.WithError(errRun).Error("command failed")
		os.Exit(1)
	}
}

// run parses flags, loads config, and starts the server or a one-off task.
func run(args []string) error {
	fs := flag.NewFlagSet("fintrack", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "config file path (or env CONFIG_PATH)")
	migrateOnly := fs.Bool("migrate", false, "run database migrations and exit")
	if errParse := fs.Parse(args); errParse != nil {
		return errParse
	}

	configPath := os.Getenv(config.EnvConfigPath)
	if strings.TrimSpace(*cfgPath) != "" {
		configPath = *cfgPath
	}
	configPath = config.ResolveConfigPath(configPath)

	if *migrateOnly {
		return app.Migrate(configPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return app.RunServer(ctx, configPath)
}
