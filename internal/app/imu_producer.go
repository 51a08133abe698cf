// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/relabs-tech/compass/internal/config"
	"github.com/relabs-tech/compass/internal/sensor"
)

// RunOrientationProducer reads device tilt from the MPU9250 accelerometer
// and publishes each orientation sample on the orientation topic, for a
// compass running with ORIENTATION_SOURCE=mqtt.
func RunOrientationProducer(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) error {
	src, err := sensor.NewMPU9250Source(sensor.MPU9250Config{
		Bus:        cfg.MPUI2CBus,
		Addr:       cfg.MPUI2CAddr,
		AccelRange: cfg.MPUAccelRange,
		Interval:   millis(cfg.MPUSampleInterval),
	}, clock.New(), log)
	if err != nil {
		return err
	}
	defer src.Close()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDCompass+"-imu", log)
	if err != nil {
		return err
	}
	defer client.Disconnect(disconnectQuiesce)

	return runProducer[sensor.OrientationSample](ctx, src, samplePublisher[sensor.OrientationSample](client, cfg.TopicOrientation, log), log.With("topic", cfg.TopicOrientation))
}

// runProducer feeds every sample of src to publish until ctx is done.
func runProducer[T any](ctx context.Context, src sensor.Source[T], publish func(T), log *zap.SugaredLogger) error {
	if err := src.Start(publish); err != nil {
		return err
	}
	log.Info("producer: started")
	<-ctx.Done()
	log.Info("producer: stopping")
	return src.Stop()
}
