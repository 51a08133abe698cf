// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package compass

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// EulerFromQuaternion converts a unit attitude quaternion to pitch, yaw and
// roll in degrees using the aerospace (Z-Y-X) sequence.
//
//	roll  = atan2(2(wx+yz), 1-2(x²+y²))
//	pitch = asin(2(wy-zx)), saturated to ±90° when |sinp| >= 1
//	yaw   = atan2(2(wz+xy), 1-2(y²+z²))
func EulerFromQuaternion(q quat.Number) (pitch, yaw, roll float64) {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag

	// roll (x-axis rotation)
	sinrCosp := 2 * (w*x + y*z)
	cosrCosp := 1 - 2*(x*x+y*y)
	roll = math.Atan2(sinrCosp, cosrCosp)

	// pitch (y-axis rotation)
	sinp := 2 * (w*y - z*x)
	if math.Abs(sinp) >= 1 {
		pitch = math.Copysign(math.Pi/2, sinp)
	} else {
		pitch = math.Asin(sinp)
	}

	// yaw (z-axis rotation)
	sinyCosp := 2 * (w*z + x*y)
	cosyCosp := 1 - 2*(y*y+z*z)
	yaw = math.Atan2(sinyCosp, cosyCosp)

	return ToDegrees(pitch), ToDegrees(yaw), ToDegrees(roll)
}
