// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/benbjohnson/clock"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/compass/internal/config"
	"github.com/relabs-tech/compass/internal/location"
)

// RunGPSProducer opens the GPS serial port, merges RMC and GGA sentences
// into fixes and publishes each fix as retained JSON on the GPS topic.
func RunGPSProducer(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) error {
	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDGPS, log)
	if err != nil {
		return err
	}
	defer client.Disconnect(disconnectQuiesce)

	// NOTE: adjust GPS_SERIAL_PORT to match your setup: /dev/serial0, /dev/ttyAMA0, /dev/ttyUSB0, etc.
	provider, err := location.NewNMEAProvider(ctx, location.SerialConfig{
		Port: cfg.GPSSerialPort,
		Baud: uint(cfg.GPSBaudRate),
	}, clock.New(), log)
	if err != nil {
		return err
	}
	defer provider.Close()

	err = publishFixes(ctx, provider.Tracker, client, cfg.TopicGPS, log)
	if errors.Is(err, context.Canceled) {
		return provider.Err()
	}
	return err
}

// publishFixes publishes every new fix of t until ctx is done.
func publishFixes(ctx context.Context, t *location.Tracker, client mqtt.Client, topic string, log *zap.SugaredLogger) error {
	for {
		fix, err := t.Next(ctx)
		if err != nil {
			return err
		}
		payload, err := json.Marshal(fix)
		if err != nil {
			log.Warnw("gps: json marshal error", "error", err)
			continue
		}
		token := client.Publish(topic, 0, true, payload)
		if !token.WaitTimeout(publishTimeout) {
			log.Warnw("gps: publish timed out", "topic", topic)
			continue
		}
		if err := token.Error(); err != nil {
			log.Warnw("gps: publish error", "topic", topic, "error", err)
			continue
		}
		log.Debugw("gps: published fix", "lat", fix.Latitude, "lon", fix.Longitude, "validity", fix.Validity)
	}
}
