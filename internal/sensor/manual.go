// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensor

import "sync"

// Manual is a source fed by explicit Push calls. It is used to bridge
// samples that arrive from elsewhere (tests, replay, another transport)
// into anything that consumes a Source.
type Manual[T any] struct {
	mu      sync.Mutex
	handler func(T)

	// StartErr and StopErr, when set, are returned instead of starting or
	// stopping the source.
	StartErr error
	StopErr  error

	Starts int
	Stops  int
}

func (m *Manual[T]) Start(handler func(T)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Starts++
	if m.StartErr != nil {
		return m.StartErr
	}
	if m.handler != nil {
		return ErrAlreadyStarted
	}
	m.handler = handler
	return nil
}

func (m *Manual[T]) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Stops++
	if m.StopErr != nil {
		return m.StopErr
	}
	if m.handler == nil {
		return ErrNotMonitoring
	}
	m.handler = nil
	return nil
}

func (m *Manual[T]) Monitoring() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handler != nil
}

// Push delivers v to the handler, if the source is monitoring. It reports
// whether the sample was delivered.
func (m *Manual[T]) Push(v T) bool {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	if h == nil {
		return false
	}
	h(v)
	return true
}
