// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"

	"github.com/benbjohnson/clock"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/compass/internal/compass"
	"github.com/relabs-tech/compass/internal/config"
	"github.com/relabs-tech/compass/internal/detail"
	"github.com/relabs-tech/compass/internal/location"
	"github.com/relabs-tech/compass/internal/sensor"
)

// RunCompass runs the compass service until ctx is done: sensor sources
// feed the filter, the detail overlay follows it, and both are served
// over HTTP and, when a broker is reachable, published over MQTT.
func RunCompass(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (err error) {
	clk := clock.New()

	var client mqtt.Client
	if cfg.MQTTBroker != "" {
		c, cerr := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDCompass, log)
		switch {
		case cerr != nil && cfg.UsesMQTTInput():
			return cerr
		case cerr != nil:
			log.Warnw("compass: running without mqtt", "error", cerr)
		default:
			client = c
			defer client.Disconnect(disconnectQuiesce)
		}
	}

	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			err = multierr.Append(err, c.Close())
		}
	}()

	heading, closer, err := newHeadingSource(cfg, client, clk, log)
	if err != nil {
		return err
	}
	if closer != nil {
		closers = append(closers, closer)
	}
	orientation, closer, err := newOrientationSource(cfg, client, clk, log)
	if err != nil {
		return err
	}
	if closer != nil {
		closers = append(closers, closer)
	}
	provider, closer, err := newLocationProvider(ctx, cfg, client, clk, log)
	if err != nil {
		return err
	}
	if closer != nil {
		closers = append(closers, closer)
	}

	filter := compass.NewFilter(heading, orientation, filterOptions(cfg, log))
	agg := detail.New(filter, provider, detailOptions(cfg, clk, log))

	filter.Enable()
	defer filter.Disable()
	agg.Enable()
	defer agg.Disable()

	g, gctx := errgroup.WithContext(ctx)
	web := NewWeb(filter, agg, log.Named("web"))
	g.Go(func() error {
		return web.Serve(gctx, fmt.Sprintf(":%d", cfg.WebServerPort))
	})
	if client != nil {
		pub := NewPublisher(client, filter, agg, PublisherOptions{
			StateTopic:  cfg.TopicState,
			DetailTopic: cfg.TopicDetail,
			Interval:    millis(cfg.PublishInterval),
			Clock:       clk,
			Logger:      log.Named("publisher"),
		})
		g.Go(func() error { return pub.Run(gctx) })
	}

	log.Infow("compass: running",
		"heading_source", cfg.HeadingSource,
		"orientation_source", cfg.OrientationSource,
		"gps_source", cfg.GPSSource,
	)
	return g.Wait()
}

func newHeadingSource(cfg *config.Config, client mqtt.Client, clk clock.Clock, log *zap.SugaredLogger) (sensor.HeadingSource, io.Closer, error) {
	switch cfg.HeadingSource {
	case config.SourceMock:
		return sensor.NewMockHeadingSource(clk, millis(cfg.MockSampleInterval)), nil, nil
	case config.SourceMQTT:
		return sensor.NewMQTTSource[sensor.HeadingSample](client, cfg.TopicHeading, log), nil, nil
	case config.SourceI2C:
		s, err := sensor.NewHMC5883Source(sensor.HMC5883Config{
			Bus:      cfg.HMCI2CBus,
			Addr:     cfg.HMCI2CAddr,
			Interval: millis(cfg.HMCSampleInterval),
		}, clk, log)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown heading source %q", cfg.HeadingSource)
	}
}

func newOrientationSource(cfg *config.Config, client mqtt.Client, clk clock.Clock, log *zap.SugaredLogger) (sensor.OrientationSource, io.Closer, error) {
	switch cfg.OrientationSource {
	case config.SourceMock:
		return sensor.NewMockOrientationSource(clk, millis(cfg.MockSampleInterval)), nil, nil
	case config.SourceMQTT:
		return sensor.NewMQTTSource[sensor.OrientationSample](client, cfg.TopicOrientation, log), nil, nil
	case config.SourceI2C:
		s, err := sensor.NewMPU9250Source(sensor.MPU9250Config{
			Bus:        cfg.MPUI2CBus,
			Addr:       cfg.MPUI2CAddr,
			AccelRange: cfg.MPUAccelRange,
			Interval:   millis(cfg.MPUSampleInterval),
		}, clk, log)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unknown orientation source %q", cfg.OrientationSource)
	}
}

func newLocationProvider(ctx context.Context, cfg *config.Config, client mqtt.Client, clk clock.Clock, log *zap.SugaredLogger) (location.Provider, io.Closer, error) {
	switch cfg.GPSSource {
	case config.GPSNone:
		return nil, nil, nil
	case config.GPSNMEA:
		p, err := location.NewNMEAProvider(ctx, location.SerialConfig{
			Port: cfg.GPSSerialPort,
			Baud: uint(cfg.GPSBaudRate),
		}, clk, log)
		if err != nil {
			return nil, nil, err
		}
		return p, p, nil
	case config.GPSMQTT:
		p, err := location.NewMQTTProvider(client, cfg.TopicGPS, clk, log)
		if err != nil {
			return nil, nil, err
		}
		return p, p, nil
	default:
		return nil, nil, fmt.Errorf("unknown gps source %q", cfg.GPSSource)
	}
}

func detailOptions(cfg *config.Config, clk clock.Clock, log *zap.SugaredLogger) detail.Options {
	acc, err := location.ParseAccuracy(cfg.LocationAccuracy)
	if err != nil {
		acc = location.AccuracyMedium
	}
	return detail.Options{
		LocationInterval: millis(cfg.LocationInterval),
		HeadingInterval:  millis(cfg.HeadingInterval),
		Accuracy:         acc,
		LocationTimeout:  millis(cfg.LocationTimeout),
		Clock:            clk,
		Logger:           log.Named("detail"),
	}
}
