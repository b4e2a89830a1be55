package main

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/bizmatters/zerotouch-keys/internal/app"
	"github.com/bizmatters/zerotouch-keys/internal/config"
)

// metricsJob is the Pushgateway job name of every run.
const metricsJob = "zerotouch-keys"

func getCommands() []*cli.Command {
	cmds := []*cli.Command{}
	cmds = append(cmds, getKeyCommands()...)
	cmds = append(cmds, getSecretCommands()...)
	return cmds
}

// newContainer loads and validates the configuration and builds a container.
func newContainer() (*app.Container, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return app.NewContainer(cfg), nil
}

// finish pushes the metrics of the run, when a Pushgateway is configured,
// and releases the container resources.
func finish(ctx context.Context, container *app.Container, instance string) {
	cfg := container.Config()
	logger := container.Logger()

	if cfg.MetricsEnabled && cfg.MetricsPushgatewayURL != "" {
		provider, err := container.MetricsProvider()
		if err == nil {
			err = provider.Push(ctx, cfg.MetricsPushgatewayURL, metricsJob, instance)
		}
		if err != nil {
			logger.Warn("failed to push metrics", slog.Any("error", err))
		}
	}

	if err := container.Shutdown(ctx); err != nil {
		logger.Warn("failed to shut down cleanly", slog.Any("error", err))
	}
}

func envFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "env",
		Aliases:  []string{"e"},
		Required: true,
		Usage:    "Environment name (e.g., dev, prod)",
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   "text",
		Usage:   "Output format: 'text' or 'json'",
	}
}
