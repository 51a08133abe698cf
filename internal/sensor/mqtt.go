// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensor

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// subscribeTimeout bounds how long Start and Stop wait for the broker.
const subscribeTimeout = 5 * time.Second

// MQTTSource receives JSON-encoded samples from a broker topic.
type MQTTSource[T any] struct {
	client mqtt.Client
	topic  string
	log    *zap.SugaredLogger

	mu         sync.Mutex
	monitoring bool
}

// NewMQTTSource returns a source reading samples of type T from topic.
// The client must already be connected.
func NewMQTTSource[T any](client mqtt.Client, topic string, log *zap.SugaredLogger) *MQTTSource[T] {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &MQTTSource[T]{client: client, topic: topic, log: log}
}

func (s *MQTTSource[T]) Start(handler func(T)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.monitoring {
		return ErrAlreadyStarted
	}
	if s.client == nil || !s.client.IsConnected() {
		return fmt.Errorf("mqtt %s: %w", s.topic, ErrUnavailable)
	}

	token := s.client.Subscribe(s.topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var v T
		if err := json.Unmarshal(msg.Payload(), &v); err != nil {
			s.log.Debugw("sensor: mqtt payload unmarshal error", "topic", s.topic, "error", err)
			return
		}
		handler(v)
	})
	if !token.WaitTimeout(subscribeTimeout) {
		// The subscription may still complete; drop it so the handler
		// never runs for a source that is not monitoring.
		s.client.Unsubscribe(s.topic)
		return fmt.Errorf("mqtt subscribe %s: timed out", s.topic)
	}
	if err := token.Error(); err != nil {
		s.client.Unsubscribe(s.topic)
		return fmt.Errorf("mqtt subscribe %s: %w", s.topic, err)
	}
	s.monitoring = true
	s.log.Infow("sensor: subscribed", "topic", s.topic)
	return nil
}

func (s *MQTTSource[T]) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.monitoring {
		return ErrNotMonitoring
	}
	s.monitoring = false

	token := s.client.Unsubscribe(s.topic)
	if !token.WaitTimeout(subscribeTimeout) {
		return fmt.Errorf("mqtt unsubscribe %s: timed out", s.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt unsubscribe %s: %w", s.topic, err)
	}
	return nil
}

func (s *MQTTSource[T]) Monitoring() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.monitoring
}
