// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/compass/internal/compass"
	"github.com/relabs-tech/compass/internal/config"
	"github.com/relabs-tech/compass/internal/detail"
)

// RunConsoleMQTT prints the snapshots published by a running compass
// until ctx is done.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger, out io.Writer) error {
	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole, log)
	if err != nil {
		return err
	}
	defer client.Disconnect(disconnectQuiesce)

	if err := subscribeConsole(client, cfg, log, out); err != nil {
		return err
	}
	<-ctx.Done()
	log.Info("console: shutting down")
	return nil
}

func subscribeConsole(client mqtt.Client, cfg *config.Config, log *zap.SugaredLogger, out io.Writer) error {
	var mu sync.Mutex // the two callbacks may run concurrently

	stateToken := client.Subscribe(cfg.TopicState, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var s compass.Snapshot
		if err := json.Unmarshal(msg.Payload(), &s); err != nil {
			log.Debugw("console: state unmarshal error", "error", err)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		printCompass(out, s)
	})
	stateToken.Wait()
	if err := stateToken.Error(); err != nil {
		return fmt.Errorf("console: subscribe %s: %w", cfg.TopicState, err)
	}
	log.Infow("console: subscribed", "topic", cfg.TopicState)

	detailToken := client.Subscribe(cfg.TopicDetail, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var d detail.Snapshot
		if err := json.Unmarshal(msg.Payload(), &d); err != nil {
			log.Debugw("console: detail unmarshal error", "error", err)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		printDetail(out, d)
	})
	detailToken.Wait()
	if err := detailToken.Error(); err != nil {
		return fmt.Errorf("console: subscribe %s: %w", cfg.TopicDetail, err)
	}
	log.Infow("console: subscribed", "topic", cfg.TopicDetail)
	return nil
}

func printCompass(out io.Writer, s compass.Snapshot) {
	fmt.Fprintf(out,
		"[COMPASS] HEADING=%s DIR=%-10s BEARING=%8.2f  PITCH=%6.2f  ROLL=%6.2f\n",
		s.HeadingString, s.DirectionString, s.BearingRotation, s.Pitch, s.Roll,
	)
}

func printDetail(out io.Writer, d detail.Snapshot) {
	fmt.Fprintf(out,
		"[DETAIL ] LAT=%s LON=%s ALT=%s HEADING=%s DIR=%s\n",
		d.LatitudeString, d.LongitudeString, d.AltitudeString, d.HeadingString, d.DirectionString,
	)
}
