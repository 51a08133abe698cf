// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"time"

	"github.com/benbjohnson/clock"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/compass/internal/config"
	"github.com/relabs-tech/compass/internal/sensor"
)

// RunHeadingProducer polls the HMC5883 magnetometer and publishes each
// heading sample on the heading topic, so a compass on another host can
// read it with HEADING_SOURCE=mqtt.
func RunHeadingProducer(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) error {
	src, err := sensor.NewHMC5883Source(sensor.HMC5883Config{
		Bus:      cfg.HMCI2CBus,
		Addr:     cfg.HMCI2CAddr,
		Interval: millis(cfg.HMCSampleInterval),
	}, clock.New(), log)
	if err != nil {
		return err
	}
	defer src.Close()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDCompass+"-hmc", log)
	if err != nil {
		return err
	}
	defer client.Disconnect(disconnectQuiesce)

	return runProducer[sensor.HeadingSample](ctx, src, samplePublisher[sensor.HeadingSample](client, cfg.TopicHeading, log), log.With("topic", cfg.TopicHeading))
}

// samplePublisher returns a handler publishing each sample as JSON.
// Samples are published without the retain flag.
func samplePublisher[T any](client mqtt.Client, topic string, log *zap.SugaredLogger) func(T) {
	return func(v T) {
		payload, err := json.Marshal(v)
		if err != nil {
			log.Warnw("producer: json marshal error", "topic", topic, "error", err)
			return
		}
		token := client.Publish(topic, 0, false, payload)
		if !token.WaitTimeout(publishTimeout) {
			log.Warnw("producer: publish timed out", "topic", topic)
			return
		}
		if err := token.Error(); err != nil {
			log.Warnw("producer: publish error", "topic", topic, "error", err)
		}
	}
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
