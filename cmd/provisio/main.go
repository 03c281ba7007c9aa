package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/provisio/provisio/internal/cleanup"
	"github.com/provisio/provisio/internal/config"
	"github.com/provisio/provisio/internal/credentials"
	"github.com/provisio/provisio/internal/orchestrator"
	"github.com/provisio/provisio/internal/server"
	"github.com/provisio/provisio/internal/terraform"
	"github.com/provisio/provisio/internal/workspace"
)

func main() {
	app := &cli.App{
		Name:  "provisio",
		Usage: "Provision and tear down per-project cloud infrastructure",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the lifecycle HTTP service",
				Flags:  serveFlags(),
				Action: runServe,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "access-key-id",
			Usage:   "Direct long-lived access key id",
			EnvVars: []string{"AWS_ACCESS_KEY_ID"},
		},
		&cli.StringFlag{
			Name:    "secret-access-key",
			Usage:   "Direct long-lived secret access key",
			EnvVars: []string{"AWS_SECRET_ACCESS_KEY"},
		},
		&cli.StringFlag{
			Name:    "assume-role-arn",
			Usage:   "Role ARN for delegated credential exchange",
			EnvVars: []string{"ASSUME_ROLE_ARN"},
		},
		&cli.StringFlag{
			Name:    "assume-role-external-id",
			Usage:   "External id secret for the delegated role",
			EnvVars: []string{"ASSUME_ROLE_EXTERNAL_ID"},
		},
		&cli.StringFlag{
			Name:    "region",
			Usage:   "Default cloud region",
			Value:   "us-east-1",
			EnvVars: []string{"AWS_REGION"},
		},
		&cli.StringFlag{
			Name:    "env",
			Usage:   "Environment mode (production or development)",
			Value:   config.EnvDevelopment,
			EnvVars: []string{"APP_ENV"},
		},
		&cli.IntFlag{
			Name:    "port",
			Usage:   "HTTP listening port",
			Value:   8080,
			EnvVars: []string{"PORT"},
		},
		&cli.StringFlag{
			Name:    "workspace-root",
			Usage:   "Directory holding per-project workspaces",
			Value:   "./workspaces",
			EnvVars: []string{"WORKSPACE_ROOT"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			EnvVars: []string{"LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "Log format (json or console)",
			Value:   "json",
			EnvVars: []string{"LOG_FORMAT"},
		},
	}
}

func runServe(c *cli.Context) error {
	cfg := &config.Config{
		AccessKeyID:        c.String("access-key-id"),
		SecretAccessKey:    c.String("secret-access-key"),
		AssumeRoleARN:      c.String("assume-role-arn"),
		AssumeRoleExternal: c.String("assume-role-external-id"),
		Region:             c.String("region"),
		Environment:        c.String("env"),
		Port:               c.Int("port"),
		WorkspaceRoot:      c.String("workspace-root"),
		LogLevel:           c.String("log-level"),
		LogFormat:          c.String("log-format"),
	}

	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	broker, err := credentials.NewBroker(ctx, cfg, logger)
	if err != nil {
		return err
	}

	runner := terraform.NewRunner("", logger)
	if version, err := runner.Version(ctx); err != nil {
		logger.Warn().Err(err).Msg("terraform binary not available; lifecycle requests will fail until it is installed")
	} else {
		logger.Info().Str("version", version).Msg("terraform detected")
	}

	workspaces := workspace.NewManager(cfg.WorkspaceRoot, logger)
	cleaner := cleanup.NewEngine(logger)
	service := orchestrator.NewService(cfg, broker, workspaces, runner, cleaner, logger)

	srv := server.New(fmt.Sprintf(":%d", cfg.Port), service, logger)
	if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.LogFormat == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}
