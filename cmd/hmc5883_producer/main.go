// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/compass/internal/app"
	"github.com/relabs-tech/compass/internal/config"
	"github.com/relabs-tech/compass/internal/logging"
)

func main() {
	if err := config.InitGlobal("./compass_config.txt"); err != nil {
		log.Fatalf("hmc: config init failed: %v", err)
	}
	cfg := config.Get()

	logger, err := logging.New(cfg.LogLevel, false)
	if err != nil {
		log.Fatalf("hmc: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger.Info("starting compass heading producer (HMC5883 → MQTT)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunHeadingProducer(ctx, cfg, logger); err != nil {
		logger.Fatalw("heading producer failed", "error", err)
	}
}
