// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package compass

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/num/quat"
)

func TestLerpClampsT(t *testing.T) {
	assert.Equal(t, 10.0, Lerp(10, 20, -1))
	assert.Equal(t, 20.0, Lerp(10, 20, 2))
	assert.Equal(t, 15.0, Lerp(10, 20, 0.5))
	assert.Equal(t, 10.0, Lerp(10, 20, 0))
	assert.Equal(t, 20.0, Lerp(10, 20, 1))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 60.0, Clamp(75, -60, 60))
	assert.Equal(t, -60.0, Clamp(-75, -60, 60))
	assert.Equal(t, 12.5, Clamp(12.5, -60, 60))
}

func TestUnwrapTakesShortWay(t *testing.T) {
	// 350 -> 10 is +20, not -340.
	cur := Unwrap(350, 10)
	assert.Equal(t, -10.0, cur)
	assert.Equal(t, 20.0, 10-cur)

	// 10 -> 350 is -20.
	cur = Unwrap(10, 350)
	assert.Equal(t, 370.0, cur)

	assert.Equal(t, 100.0, Unwrap(100, 270))
	assert.Equal(t, 0.0, Unwrap(0, 180))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, 352.0, Normalize(-8))
	assert.Equal(t, 0.0, Normalize(360))
	assert.InDelta(t, 0.5, Normalize(360.5), 1e-9)
	assert.Equal(t, 45.0, Normalize(45))
}

func TestToDegrees(t *testing.T) {
	assert.InDelta(t, 180, ToDegrees(math.Pi), 1e-12)
	assert.InDelta(t, -90, ToDegrees(-math.Pi/2), 1e-12)
}

func TestSnapToZero(t *testing.T) {
	assert.Equal(t, 0.0, snapToZero(0.0009))
	assert.Equal(t, 0.0, snapToZero(-0.0009))
	assert.Equal(t, 0.001, snapToZero(0.001))
}

func TestEulerIdentity(t *testing.T) {
	pitch, yaw, roll := EulerFromQuaternion(quat.Number{Real: 1})
	assert.Equal(t, 0.0, pitch)
	assert.Equal(t, 0.0, yaw)
	assert.Equal(t, 0.0, roll)
}

func TestEulerSingleAxis(t *testing.T) {
	half := func(deg float64) (float64, float64) {
		r := deg * math.Pi / 180 / 2
		return math.Cos(r), math.Sin(r)
	}

	c, s := half(30)
	pitch, yaw, roll := EulerFromQuaternion(quat.Number{Real: c, Imag: s})
	assert.InDelta(t, 30, roll, 1e-9)
	assert.InDelta(t, 0, pitch, 1e-9)
	assert.InDelta(t, 0, yaw, 1e-9)

	c, s = half(-20)
	pitch, yaw, roll = EulerFromQuaternion(quat.Number{Real: c, Jmag: s})
	assert.InDelta(t, -20, pitch, 1e-9)
	assert.InDelta(t, 0, roll, 1e-9)
	assert.InDelta(t, 0, yaw, 1e-9)

	c, s = half(120)
	pitch, yaw, roll = EulerFromQuaternion(quat.Number{Real: c, Kmag: s})
	assert.InDelta(t, 120, yaw, 1e-9)
	assert.InDelta(t, 0, pitch, 1e-9)
	assert.InDelta(t, 0, roll, 1e-9)
}

func TestEulerGimbalLock(t *testing.T) {
	// 2(wy - zx) rounds to or just past 1; pitch saturates at ±90°.
	pitch, _, _ := EulerFromQuaternion(quat.Number{Real: math.Sqrt2 / 2, Jmag: math.Sqrt2 / 2})
	assert.InDelta(t, 90, pitch, 1e-5)

	pitch, _, _ = EulerFromQuaternion(quat.Number{Real: 0.8, Jmag: 0.8})
	assert.Equal(t, 90.0, pitch)

	pitch, _, _ = EulerFromQuaternion(quat.Number{Real: 0.8, Jmag: -0.8})
	assert.Equal(t, -90.0, pitch)
}
