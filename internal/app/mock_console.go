// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"io"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/relabs-tech/compass/internal/compass"
	"github.com/relabs-tech/compass/internal/config"
	"github.com/relabs-tech/compass/internal/sensor"
)

// RunMockConsole drives a filter from in-process mock sensors and prints
// its state every console interval. No broker is needed.
func RunMockConsole(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger, out io.Writer) error {
	return runMockConsole(ctx, clock.New(), cfg, log, out)
}

func runMockConsole(ctx context.Context, clk clock.Clock, cfg *config.Config, log *zap.SugaredLogger, out io.Writer) error {
	interval := millis(cfg.MockSampleInterval)
	filter := compass.NewFilter(
		sensor.NewMockHeadingSource(clk, interval),
		sensor.NewMockOrientationSource(clk, interval),
		filterOptions(cfg, log),
	)
	filter.Enable()
	defer filter.Disable()

	ticker := clk.Ticker(millis(cfg.ConsoleLogInterval))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			printCompass(out, filter.Snapshot())
		}
	}
}

func filterOptions(cfg *config.Config, log *zap.SugaredLogger) compass.Options {
	return compass.Options{
		HeadingRate:  cfg.HeadingRate,
		BearingRate:  cfg.BearingRate,
		MaxPitchRoll: cfg.MaxPitchRoll,
		Logger:       log.Named("filter"),
	}
}
