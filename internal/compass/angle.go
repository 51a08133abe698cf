// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package compass

import "math"

// zeroSnap is the band around 0° that is reported as exactly 0.
const zeroSnap = 0.001

// Lerp interpolates from a towards b by t, with t clamped to [0,1].
func Lerp(a, b, t float64) float64 {
	if t > 1 {
		t = 1
	} else if t < 0 {
		t = 0
	}
	return a + t*(b-a)
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v > hi {
		return hi
	}
	if v < lo {
		return lo
	}
	return v
}

// Unwrap shifts current by a full turn when target lies more than half a
// turn away, so that interpolating towards target takes the short way
// around the 0°/360° seam.
func Unwrap(current, target float64) float64 {
	diff := target - current
	if diff > 180 {
		return current + 360
	}
	if diff < -180 {
		return current - 360
	}
	return current
}

// ToDegrees converts radians to degrees.
func ToDegrees(rad float64) float64 {
	return 360.0 * (rad / (2 * math.Pi))
}

func snapToZero(v float64) float64 {
	if math.Abs(v) < zeroSnap {
		return 0
	}
	return v
}

// Normalize maps an unwrapped angle into [0,360).
func Normalize(deg float64) float64 {
	m := math.Mod(deg, 360)
	if m < 0 {
		m += 360
	}
	if m >= 360 {
		return 0
	}
	return m
}
