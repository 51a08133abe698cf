// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/relabs-tech/compass/internal/app"
	"github.com/relabs-tech/compass/internal/config"
	"github.com/relabs-tech/compass/internal/logging"
)

const (
	flagConfig   = "config"
	flagLogLevel = "log-level"
	flagDebug    = "debug"

	defaultConfigPath = "./compass_config.txt"
)

func main() {
	a := &cli.App{
		Name:  "compass",
		Usage: "smoothed compass heading, tilt and location overlay",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Value:   defaultConfigPath,
				Usage:   "load configuration from `FILE` (KEY=VALUE, or YAML for .yaml/.yml)",
			},
			&cli.StringFlag{
				Name:  flagLogLevel,
				Usage: "override LOG_LEVEL (debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "development logging with colored levels",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the compass service (sensors, overlay, web, mqtt)",
				Action: func(c *cli.Context) error {
					return withSetup(c, app.RunCompass)
				},
			},
			{
				Name:  "console",
				Usage: "print the snapshots published by a running compass",
				Action: func(c *cli.Context) error {
					return withSetup(c, func(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) error {
						return app.RunConsoleMQTT(ctx, cfg, log, os.Stdout)
					})
				},
			},
			{
				Name:  "mock",
				Usage: "drive the filter from mock sensors and print its state",
				Action: func(c *cli.Context) error {
					return withSetup(c, func(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) error {
						return app.RunMockConsole(ctx, cfg, log, os.Stdout)
					})
				},
			},
		},
	}

	if err := a.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "compass: %v\n", err)
		os.Exit(1)
	}
}

type runFunc func(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) error

// withSetup loads the configuration, builds the logger and runs fn until
// SIGINT or SIGTERM.
func withSetup(c *cli.Context, fn runFunc) error {
	cfg, err := loadConfig(c.String(flagConfig), c.IsSet(flagConfig))
	if err != nil {
		return err
	}
	level := cfg.LogLevel
	if c.IsSet(flagLogLevel) {
		level = c.String(flagLogLevel)
	}
	log, err := logging.New(level, c.Bool(flagDebug))
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infow("starting compass", "command", c.Command.Name, "config", c.String(flagConfig))
	return fn(ctx, cfg, log)
}

// loadConfig reads path. A missing default file falls back to the
// built-in defaults; a missing explicit file is an error.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	err := config.InitGlobal(path)
	if err == nil {
		return config.Get(), nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return nil, fmt.Errorf("config: %w", err)
}
