// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/relabs-tech/compass/internal/compass"
	"github.com/relabs-tech/compass/internal/detail"
)

const publishTimeout = 2 * time.Second

// PublisherOptions configures the snapshot publisher.
type PublisherOptions struct {
	StateTopic  string
	DetailTopic string
	Interval    time.Duration
	Clock       clock.Clock
	Logger      *zap.SugaredLogger
}

// Publisher mirrors the compass and detail snapshots to the broker as
// retained JSON messages. Bursts of changes are coalesced: at most one
// message per topic is sent per interval.
type Publisher struct {
	client mqtt.Client
	filter *compass.Filter
	detail *detail.Aggregator
	opts   PublisherOptions
	clk    clock.Clock
	log    *zap.SugaredLogger

	mu          sync.Mutex
	stateDirty  bool
	detailDirty bool
}

// NewPublisher returns a publisher for filter and, if not nil, agg. Both
// snapshots are published on the first tick.
func NewPublisher(client mqtt.Client, filter *compass.Filter, agg *detail.Aggregator, opts PublisherOptions) *Publisher {
	if opts.Interval <= 0 {
		opts.Interval = 100 * time.Millisecond
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Publisher{
		client:      client,
		filter:      filter,
		detail:      agg,
		opts:        opts,
		clk:         clk,
		log:         log,
		stateDirty:  true,
		detailDirty: agg != nil,
	}
}

// Run publishes until ctx is done, then sends whatever is still pending.
func (p *Publisher) Run(ctx context.Context) error {
	cancel := p.filter.Subscribe(func(compass.Change) {
		p.mu.Lock()
		p.stateDirty = true
		p.mu.Unlock()
	})
	defer cancel()
	if p.detail != nil {
		cancelDetail := p.detail.Subscribe(func(detail.Snapshot) {
			p.mu.Lock()
			p.detailDirty = true
			p.mu.Unlock()
		})
		defer cancelDetail()
	}

	ticker := p.clk.Ticker(p.opts.Interval)
	defer ticker.Stop()
	p.log.Infow("publisher: started", "state_topic", p.opts.StateTopic, "detail_topic", p.opts.DetailTopic)
	for {
		select {
		case <-ctx.Done():
			p.Flush()
			return nil
		case <-ticker.C:
			p.Flush()
		}
	}
}

// Flush publishes every snapshot that changed since the last flush.
func (p *Publisher) Flush() {
	p.mu.Lock()
	state, det := p.stateDirty, p.detailDirty
	p.stateDirty, p.detailDirty = false, false
	p.mu.Unlock()

	if state {
		p.publish(p.opts.StateTopic, p.filter.Snapshot())
	}
	if det && p.detail != nil {
		p.publish(p.opts.DetailTopic, p.detail.Snapshot())
	}
}

func (p *Publisher) publish(topic string, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		p.log.Warnw("publisher: json marshal error", "topic", topic, "error", err)
		return
	}
	token := p.client.Publish(topic, 0, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		p.log.Warnw("publisher: publish timed out", "topic", topic)
		return
	}
	if err := token.Error(); err != nil {
		p.log.Warnw("publisher: publish error", "topic", topic, "error", err)
	}
}
