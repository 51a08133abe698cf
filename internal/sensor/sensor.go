// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensor defines the heading and orientation sample streams the
// compass consumes and the sources that produce them.
package sensor

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/num/quat"
)

var (
	// ErrAlreadyStarted is returned by Start on a source that is monitoring.
	ErrAlreadyStarted = errors.New("already started")
	// ErrNotMonitoring is returned by Stop on a source that is not monitoring.
	ErrNotMonitoring = errors.New("not monitoring")
	// ErrUnavailable is returned when the underlying device or transport is missing.
	ErrUnavailable = errors.New("sensor unavailable")
)

// Error records a failed source operation.
type Error struct {
	Sensor string // "compass", "orientation", ...
	Op     string // "start" or "stop"
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Sensor, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// HeadingSample is a magnetic-north heading in degrees, [0,360).
type HeadingSample struct {
	Degrees float64   `json:"heading"`
	Time    time.Time `json:"time"`
}

// OrientationSample is a unit quaternion describing device attitude.
type OrientationSample struct {
	Q    quat.Number `json:"-"`
	Time time.Time   `json:"time"`
}

type orientationWire struct {
	W    float64   `json:"w"`
	X    float64   `json:"x"`
	Y    float64   `json:"y"`
	Z    float64   `json:"z"`
	Time time.Time `json:"time"`
}

func (s OrientationSample) MarshalJSON() ([]byte, error) {
	return json.Marshal(orientationWire{W: s.Q.Real, X: s.Q.Imag, Y: s.Q.Jmag, Z: s.Q.Kmag, Time: s.Time})
}

func (s *OrientationSample) UnmarshalJSON(b []byte) error {
	var w orientationWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	s.Q = quat.Number{Real: w.W, Imag: w.X, Jmag: w.Y, Kmag: w.Z}
	s.Time = w.Time
	return nil
}

// Source is a stream of samples that can be started and stopped.
// The handler may be called from any goroutine, but a single source
// never calls it concurrently with itself.
type Source[T any] interface {
	Start(handler func(T)) error
	Stop() error
	Monitoring() bool
}

// HeadingSource produces compass headings.
type HeadingSource = Source[HeadingSample]

// OrientationSource produces attitude quaternions.
type OrientationSource = Source[OrientationSample]
