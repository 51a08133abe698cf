// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package compass turns raw heading and attitude samples into smoothed,
// display-ready compass values.
package compass

import (
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/num/quat"

	"github.com/relabs-tech/compass/internal/sensor"
)

const (
	DefaultHeadingRate  = 0.1
	DefaultBearingRate  = 0.05
	DefaultMaxPitchRoll = 60.0
)

// Options tunes the filter. Zero values fall back to the defaults.
type Options struct {
	HeadingRate  float64
	BearingRate  float64
	MaxPitchRoll float64
	Logger       *zap.SugaredLogger
}

// Snapshot is a read-only copy of the filter outputs.
type Snapshot struct {
	Heading         float64   `json:"heading"`
	HeadingString   string    `json:"heading_string"`
	InverseHeading  float64   `json:"inverse_heading"`
	BearingRotation float64   `json:"bearing_rotation"`
	Pitch           float64   `json:"pitch"`
	Roll            float64   `json:"roll"`
	Direction       Direction `json:"direction"`
	DirectionString string    `json:"direction_string"`
	Enabled         bool      `json:"enabled"`
}

func zeroSnapshot() Snapshot {
	return Snapshot{
		HeadingString:   formatHeading(0),
		Direction:       North,
		DirectionString: North.String(),
	}
}

// Filter smooths compass headings and clamps device tilt.
//
// All sample handling for one sample happens under a single lock, and
// the resulting changes are handed to observers before the next sample
// is allowed to deliver its own, so observers see assignments in the
// order they were made even when the two streams call in from
// different goroutines.
type Filter struct {
	opts Options
	log  *zap.SugaredLogger

	compass     sensor.HeadingSource
	orientation sensor.OrientationSource

	lifeMu sync.Mutex // serializes Enable/Disable

	mu      sync.Mutex
	st      Snapshot
	seq     uint64
	pending []Change

	deliverMu sync.Mutex
	obs       observers
}

// NewFilter returns a filter reading from the given sources. Either
// source may be nil, in which case that stream is simply never started.
func NewFilter(compass sensor.HeadingSource, orientation sensor.OrientationSource, opts Options) *Filter {
	if opts.HeadingRate == 0 {
		opts.HeadingRate = DefaultHeadingRate
	}
	if opts.BearingRate == 0 {
		opts.BearingRate = DefaultBearingRate
	}
	if opts.MaxPitchRoll == 0 {
		opts.MaxPitchRoll = DefaultMaxPitchRoll
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Filter{
		opts:        opts,
		log:         log,
		compass:     compass,
		orientation: orientation,
		st:          zeroSnapshot(),
	}
}

// Subscribe registers fn for every subsequent field change. The returned
// function removes the subscription and is safe to call more than once.
func (f *Filter) Subscribe(fn Observer) (cancel func()) {
	return f.obs.add(fn)
}

// Snapshot returns the current outputs.
func (f *Filter) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st
}

// HeadingString returns the formatted smoothed heading, e.g. "12.34°".
func (f *Filter) HeadingString() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st.HeadingString
}

// DirectionString returns the label of the current direction.
func (f *Filter) DirectionString() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st.DirectionString
}

// Enable starts both sensor streams. A stream that fails to start, or is
// already running, is logged and otherwise ignored: the compass keeps
// showing its last values instead of failing.
func (f *Filter) Enable() {
	f.lifeMu.Lock()
	defer f.lifeMu.Unlock()

	f.mu.Lock()
	set(f, FieldEnabled, &f.st.Enabled, true)
	f.mu.Unlock()
	f.flush()

	if f.compass != nil {
		if err := f.compass.Start(f.onCompassSample); err != nil {
			f.log.Debugw("compass: compass stream not started", "error", &sensor.Error{Sensor: "compass", Op: "start", Err: err})
		}
	}
	if f.orientation != nil {
		if err := f.orientation.Start(f.onOrientationSample); err != nil {
			f.log.Debugw("compass: orientation stream not started", "error", &sensor.Error{Sensor: "orientation", Op: "start", Err: err})
		}
	}
}

// Disable stops both sensor streams, forces the heading to 0 and resets
// every output. Stop failures are tolerated the same way as in Enable.
func (f *Filter) Disable() {
	f.lifeMu.Lock()
	defer f.lifeMu.Unlock()

	var err error
	if f.compass != nil && f.compass.Monitoring() {
		if stopErr := f.compass.Stop(); stopErr != nil {
			err = multierr.Append(err, &sensor.Error{Sensor: "compass", Op: "stop", Err: stopErr})
		}
	}
	if f.orientation != nil && f.orientation.Monitoring() {
		if stopErr := f.orientation.Stop(); stopErr != nil {
			err = multierr.Append(err, &sensor.Error{Sensor: "orientation", Op: "stop", Err: stopErr})
		}
	}
	if err != nil {
		f.log.Debugw("compass: ignoring stop failure", "error", err)
	}

	f.mu.Lock()
	set(f, FieldHeading, &f.st.Heading, 0.0)
	f.reset()
	set(f, FieldEnabled, &f.st.Enabled, false)
	f.mu.Unlock()
	f.flush()
}

// Stream callbacks check Enabled under the same lock that applies the
// sample, so a sample racing Disable cannot land after the reset.
func (f *Filter) onCompassSample(s sensor.HeadingSample) {
	f.mu.Lock()
	if f.st.Enabled {
		f.applyHeading(s.Degrees)
	}
	f.mu.Unlock()
	f.flush()
}

func (f *Filter) onOrientationSample(s sensor.OrientationSample) {
	roll, pitch := f.tilt(s.Q)
	f.mu.Lock()
	if f.st.Enabled {
		f.applyTilt(roll, pitch)
	}
	f.mu.Unlock()
	f.flush()
}

// OnHeadingSample folds a new magnetic heading, in degrees, into the
// smoothed heading and the independently lagged bearing.
func (f *Filter) OnHeadingSample(newHeading float64) {
	f.mu.Lock()
	f.applyHeading(newHeading)
	f.mu.Unlock()
	f.flush()
}

// applyHeading runs one smoothing step. f.mu must be held.
func (f *Filter) applyHeading(newHeading float64) {
	current := Unwrap(f.st.Heading, newHeading)
	set(f, FieldHeading, &f.st.Heading, Lerp(current, newHeading, f.opts.HeadingRate))
	if snapped := snapToZero(f.st.Heading); snapped != f.st.Heading {
		set(f, FieldHeading, &f.st.Heading, snapped)
	}
	display := Normalize(f.st.Heading)
	set(f, FieldHeadingString, &f.st.HeadingString, formatHeading(display))

	set(f, FieldInverseHeading, &f.st.InverseHeading, -f.st.Heading)

	// The bearing lags the inverse heading on its own history rather than
	// mirroring the smoothed needle.
	bearing := Unwrap(f.st.BearingRotation, f.st.InverseHeading)
	set(f, FieldBearingRotation, &f.st.BearingRotation, Lerp(bearing, f.st.InverseHeading, f.opts.BearingRate))

	f.st.Direction = Classify(display)
	set(f, FieldDirectionString, &f.st.DirectionString, f.st.Direction.String())
}

// OnOrientationSample replaces pitch and roll with the clamped tilt of q.
// Pitch is published with its sign flipped.
func (f *Filter) OnOrientationSample(q quat.Number) {
	roll, pitch := f.tilt(q)
	f.mu.Lock()
	f.applyTilt(roll, pitch)
	f.mu.Unlock()
	f.flush()
}

func (f *Filter) tilt(q quat.Number) (roll, pitch float64) {
	pitch, _, roll = EulerFromQuaternion(q)
	limit := f.opts.MaxPitchRoll
	return Clamp(roll, -limit, limit), Clamp(pitch, -limit, limit)
}

// applyTilt publishes clamped roll and pitch. f.mu must be held.
func (f *Filter) applyTilt(roll, pitch float64) {
	set(f, FieldRoll, &f.st.Roll, roll)
	set(f, FieldPitch, &f.st.Pitch, -pitch)
}

func (f *Filter) reset() {
	z := zeroSnapshot()
	set(f, FieldHeadingString, &f.st.HeadingString, z.HeadingString)
	set(f, FieldInverseHeading, &f.st.InverseHeading, z.InverseHeading)
	set(f, FieldBearingRotation, &f.st.BearingRotation, z.BearingRotation)
	set(f, FieldPitch, &f.st.Pitch, z.Pitch)
	set(f, FieldRoll, &f.st.Roll, z.Roll)
	f.st.Direction = z.Direction
	set(f, FieldDirectionString, &f.st.DirectionString, z.DirectionString)
}

// set assigns v to *dst and queues a change. f.mu must be held.
func set[T any](f *Filter, field Field, dst *T, v T) {
	*dst = v
	f.seq++
	f.pending = append(f.pending, Change{Field: field, Value: v, Seq: f.seq})
}

// flush hands queued changes to observers. Drains are serialized by
// deliverMu and each one takes everything queued so far, so concurrent
// callers never reorder changes.
func (f *Filter) flush() {
	f.deliverMu.Lock()
	defer f.deliverMu.Unlock()

	f.mu.Lock()
	changes := f.pending
	f.pending = nil
	f.mu.Unlock()

	if len(changes) == 0 {
		return
	}
	for _, fn := range f.obs.list() {
		for _, c := range changes {
			fn(c)
		}
	}
}

func formatHeading(deg float64) string {
	return fmt.Sprintf("%.2f°", deg)
}
