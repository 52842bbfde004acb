package main

import (
	"context"
	"errors"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pitch/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultConfigPath = "config.toml"

func main() {
	logger := shared.NewLogger(nil)

	if err := shared.LoadEnv(".env"); err != nil {
		logger.Warn("failed to load .env", "error", err)
	}

	runner := NewRunner(RunnerOpts{Logger: logger, ConfigPath: defaultConfigPath})
	defer runner.Close()

	app := newApp(runner)
	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			logger.Warn("not implemented")
			runner.Close()
			os.Exit(0)
		}
		runner.Close()
		logger.Fatalf("application error: %v", err)
	}
}

func newApp(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "pitch",
		Usage:   "Reach playlist curators from a contact sheet",
		Version: "0.3.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   defaultConfigPath,
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Before:   r.Before,
		Commands: r.register(),
	}
}

// Before loads configuration ahead of any command. A missing config file falls back to the
// embedded defaults so `pitch setup config` can create it.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")
	r.configPath = path

	config, err := shared.LoadConfig(path)
	switch {
	case errors.Is(err, shared.ErrMissingConfig):
		r.logger.Debug("config file not found, using defaults", "path", path)
		config = shared.DefaultConfig()
	case err != nil:
		return ctx, err
	}
	config.ApplyEnv()
	r.config = config

	if config.Log.File != "" && r.logFile == nil {
		logger, f, err := shared.NewFileLogger(config.Log.File)
		if err != nil {
			return ctx, err
		}
		r.SetLogger(logger)
		r.logFile = f
	}

	level := shared.ParseLogLevel(config.Log.Level)
	if cmd.Bool("debug") {
		level = log.DebugLevel
	}
	shared.SetLogLevel(r.logger, level)
	return ctx, nil
}
