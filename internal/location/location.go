// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package location provides best-effort position fixes for the detail
// overlay.
package location

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
)

// ErrNoFix is returned when the provider has no usable position.
var ErrNoFix = errors.New("no fix")

// Accuracy is the requested fix quality. The zero value means no
// preference and accepts any valid fix.
type Accuracy int

const (
	AccuracyLowest Accuracy = iota + 1
	AccuracyLow
	AccuracyMedium
	AccuracyHigh
	AccuracyBest
)

var accuracyNames = [...]string{
	AccuracyLowest: "lowest",
	AccuracyLow:    "low",
	AccuracyMedium: "medium",
	AccuracyHigh:   "high",
	AccuracyBest:   "best",
}

func (a Accuracy) String() string {
	if a < AccuracyLowest || a > AccuracyBest {
		return "unknown"
	}
	return accuracyNames[a]
}

// ParseAccuracy parses names such as "medium".
func ParseAccuracy(s string) (Accuracy, error) {
	for a := AccuracyLowest; a <= AccuracyBest; a++ {
		if strings.EqualFold(s, accuracyNames[a]) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown accuracy %q", s)
}

// maxHDOP is the worst horizontal dilution accepted at each accuracy.
// Fixes without an HDOP are accepted at every level.
var maxHDOP = [...]float64{
	AccuracyLowest: 50,
	AccuracyLow:    20,
	AccuracyMedium: 10,
	AccuracyHigh:   5,
	AccuracyBest:   2,
}

// Request describes a single location query.
type Request struct {
	Accuracy Accuracy
	Timeout  time.Duration
}

// Location is a position fix. Altitude is nil when the source did not
// report one.
type Location struct {
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lon"`
	Altitude  *float64  `json:"alt_m,omitempty"`
	Time      time.Time `json:"time"`
}

// Provider returns a single best-effort fix. Implementations honour both
// ctx cancellation and req.Timeout.
type Provider interface {
	GetLocation(ctx context.Context, req Request) (*Location, error)
}

// Fix is the combined GPS record published over MQTT.
type Fix struct {
	Time       string    `json:"time"`        // e.g. "12:34:56"
	Date       string    `json:"date"`        // e.g. "06/12/25"
	Latitude   float64   `json:"lat"`         // decimal degrees
	Longitude  float64   `json:"lon"`         // decimal degrees
	AltitudeM  *float64  `json:"alt_m"`       // above mean sea level, from GGA
	SpeedKnots float64   `json:"speed_knots"` // speed over ground
	CourseDeg  float64   `json:"course_deg"`  // course over ground
	Validity   string    `json:"validity"`    // "A" (valid) / "V" (void)
	Quality    string    `json:"fix_quality"` // GGA fix quality
	HDOP       float64   `json:"hdop,omitempty"`
	Received   time.Time `json:"received"`
}

// Valid reports whether the fix carries a usable position.
func (f Fix) Valid() bool {
	return f.Validity == "A"
}

// Satisfies reports whether the fix meets the requested accuracy.
func (f Fix) Satisfies(a Accuracy) bool {
	if !f.Valid() {
		return false
	}
	if f.HDOP == 0 || a < AccuracyLowest || a > AccuracyBest {
		return true
	}
	return f.HDOP <= maxHDOP[a]
}

// Location converts the fix to a Location.
func (f Fix) Location() *Location {
	return &Location{
		Latitude:  f.Latitude,
		Longitude: f.Longitude,
		Altitude:  f.AltitudeM,
		Time:      f.Received,
	}
}

// withTimeout applies req.Timeout on top of ctx.
func withTimeout(ctx context.Context, clk clock.Clock, req Request) (context.Context, context.CancelFunc) {
	if req.Timeout > 0 {
		return clk.WithTimeout(ctx, req.Timeout)
	}
	return context.WithCancel(ctx)
}
