// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package location

import (
	"encoding/json"
	"fmt"

	"github.com/benbjohnson/clock"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTTProvider answers location requests from Fix records published by
// the GPS producer.
type MQTTProvider struct {
	*Tracker
	client mqtt.Client
	topic  string
}

// NewMQTTProvider subscribes to topic on an already connected client.
func NewMQTTProvider(client mqtt.Client, topic string, clk clock.Clock, log *zap.SugaredLogger) (*MQTTProvider, error) {
	p := &MQTTProvider{
		Tracker: NewTracker(clk, log),
		client:  client,
		topic:   topic,
	}
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var f Fix
		if err := json.Unmarshal(msg.Payload(), &f); err != nil {
			p.log.Debugw("gps: fix unmarshal error", "topic", topic, "error", err)
			return
		}
		// Receipt time, not the producer's, decides freshness.
		f.Received = p.clk.Now()
		p.Update(f)
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("gps: subscribe %s: %w", topic, err)
	}
	p.log.Infow("gps: subscribed", "topic", topic)
	return p, nil
}

// Close unsubscribes from the fix topic.
func (p *MQTTProvider) Close() error {
	token := p.client.Unsubscribe(p.topic)
	token.Wait()
	return token.Error()
}
