// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package compass

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"

	"github.com/relabs-tech/compass/internal/sensor"
)

func newTestFilter() (*Filter, *sensor.Manual[sensor.HeadingSample], *sensor.Manual[sensor.OrientationSample]) {
	hs := &sensor.Manual[sensor.HeadingSample]{}
	os := &sensor.Manual[sensor.OrientationSample]{}
	return NewFilter(hs, os, Options{}), hs, os
}

// angularDelta returns the signed shortest rotation from a to b.
func angularDelta(a, b float64) float64 {
	return Normalize(b-a+180) - 180
}

func rotY(deg float64) quat.Number {
	r := deg * math.Pi / 180 / 2
	return quat.Number{Real: math.Cos(r), Jmag: math.Sin(r)}
}

func rotX(deg float64) quat.Number {
	r := deg * math.Pi / 180 / 2
	return quat.Number{Real: math.Cos(r), Imag: math.Sin(r)}
}

func TestNewFilterZeroState(t *testing.T) {
	f, _, _ := newTestFilter()
	s := f.Snapshot()
	assert.Equal(t, 0.0, s.Heading)
	assert.Equal(t, "0.00°", s.HeadingString)
	assert.Equal(t, "North", s.DirectionString)
	assert.False(t, s.Enabled)
}

func TestHeadingSampleSmoothing(t *testing.T) {
	f, _, _ := newTestFilter()

	f.OnHeadingSample(90)
	s := f.Snapshot()
	assert.InDelta(t, 9, s.Heading, 1e-9)
	assert.InDelta(t, -9, s.InverseHeading, 1e-9)
	assert.InDelta(t, -0.45, s.BearingRotation, 1e-9)
	assert.Equal(t, "9.00°", s.HeadingString)
	assert.Equal(t, North, s.Direction)
	assert.Equal(t, "North", s.DirectionString)
}

func TestHeadingWrapsAcrossNorth(t *testing.T) {
	f, _, _ := newTestFilter()
	f.st.Heading = 350

	f.OnHeadingSample(10)
	s := f.Snapshot()
	// Moves +2 (a tenth of +20) instead of -34.
	assert.InDelta(t, -8, s.Heading, 1e-9)
	assert.Equal(t, "352.00°", s.HeadingString)
	assert.Equal(t, "North", s.DirectionString)

	f.st.Heading = 10
	f.OnHeadingSample(350)
	assert.InDelta(t, 368, f.Snapshot().Heading, 1e-9)
	assert.Equal(t, "8.00°", f.Snapshot().HeadingString)
}

func TestHeadingSnapsToZero(t *testing.T) {
	f, _, _ := newTestFilter()
	f.OnHeadingSample(0.005)
	assert.Equal(t, 0.0, f.Snapshot().Heading)
	assert.Equal(t, "0.00°", f.Snapshot().HeadingString)

	f.st.Heading = 0.0005
	f.OnHeadingSample(0)
	assert.Equal(t, 0.0, f.Snapshot().Heading)
}

func TestHeadingSequenceNeverJumps(t *testing.T) {
	f, _, _ := newTestFilter()

	prev := f.Snapshot().Heading
	for _, h := range []float64{0, 5, 355} {
		effective := angularDelta(prev, h)
		f.OnHeadingSample(h)
		cur := f.Snapshot().Heading

		step := angularDelta(prev, cur)
		assert.LessOrEqual(t, math.Abs(step), math.Abs(effective)*DefaultHeadingRate+1e-9)
		if effective != 0 {
			assert.Equal(t, math.Signbit(effective), math.Signbit(step), "heading %v", h)
		}
		prev = cur
	}
	assert.InDelta(t, 359.95, Normalize(prev), 1e-9)
	assert.Equal(t, "359.95°", f.Snapshot().HeadingString)
}

func TestBearingLagsIndependently(t *testing.T) {
	f, _, _ := newTestFilter()
	for i := 0; i < 5; i++ {
		f.OnHeadingSample(90)
	}
	s := f.Snapshot()
	assert.InDelta(t, -s.Heading, s.InverseHeading, 1e-12)
	// The bearing trails the inverse heading rather than mirroring it.
	assert.Greater(t, s.BearingRotation, s.InverseHeading)
	assert.Less(t, s.BearingRotation, 0.0)

	// Replaying the bearing recurrence by hand gives the same value.
	var heading, bearing float64
	for i := 0; i < 5; i++ {
		heading = Lerp(heading, 90, DefaultHeadingRate)
		bearing = Lerp(bearing, -heading, DefaultBearingRate)
	}
	assert.InDelta(t, bearing, s.BearingRotation, 1e-9)
}

func TestOrientationClampAndSign(t *testing.T) {
	f, _, _ := newTestFilter()

	f.OnOrientationSample(rotY(75))
	s := f.Snapshot()
	assert.InDelta(t, -60, s.Pitch, 1e-9)
	assert.InDelta(t, 0, s.Roll, 1e-9)

	f.OnOrientationSample(rotX(-75))
	s = f.Snapshot()
	assert.InDelta(t, -60, s.Roll, 1e-9)
	assert.InDelta(t, 0, s.Pitch, 1e-9)

	f.OnOrientationSample(rotY(-20))
	assert.InDelta(t, 20, f.Snapshot().Pitch, 1e-9)

	f.OnOrientationSample(quat.Number{Real: 1})
	s = f.Snapshot()
	assert.Equal(t, 0.0, s.Roll)
	assert.Equal(t, 0.0, s.Pitch)
}

func TestEnableSwallowsStartFailures(t *testing.T) {
	hs := &sensor.Manual[sensor.HeadingSample]{StartErr: sensor.ErrUnavailable}
	os := &sensor.Manual[sensor.OrientationSample]{StartErr: sensor.ErrUnavailable}
	f := NewFilter(hs, os, Options{})

	f.Enable()
	assert.True(t, f.Snapshot().Enabled)
	assert.False(t, hs.Monitoring())
	assert.False(t, os.Monitoring())

	f.Disable()
	assert.False(t, f.Snapshot().Enabled)
}

func TestEnableDisableIdempotent(t *testing.T) {
	f, hs, os := newTestFilter()

	f.Enable()
	once := f.Snapshot()
	f.Enable()
	assert.Equal(t, once, f.Snapshot())
	assert.True(t, hs.Monitoring())
	assert.True(t, os.Monitoring())
	assert.Equal(t, 2, hs.Starts)

	hs.Push(sensor.HeadingSample{Degrees: 120})
	os.Push(sensor.OrientationSample{Q: rotY(30)})
	require.NotEqual(t, 0.0, f.Snapshot().Heading)

	f.Disable()
	disabled := f.Snapshot()
	f.Disable()
	assert.Equal(t, disabled, f.Snapshot())
	assert.Equal(t, 1, hs.Stops)
	assert.Equal(t, zeroSnapshot(), disabled)

	// Samples after Disable never reach the filter.
	assert.False(t, hs.Push(sensor.HeadingSample{Degrees: 45}))
	assert.Equal(t, 0.0, f.Snapshot().Heading)
}

func TestDisableSwallowsStopFailures(t *testing.T) {
	f, hs, _ := newTestFilter()
	f.Enable()
	hs.Push(sensor.HeadingSample{Degrees: 200})
	hs.StopErr = sensor.ErrUnavailable

	f.Disable()
	s := f.Snapshot()
	assert.Equal(t, 0.0, s.Heading)
	assert.False(t, s.Enabled)
}

func TestObserverSeesMutationOrder(t *testing.T) {
	f, _, _ := newTestFilter()

	var got []Change
	cancel := f.Subscribe(func(c Change) { got = append(got, c) })

	f.OnHeadingSample(90)
	f.OnOrientationSample(rotY(10))

	fields := make([]Field, 0, len(got))
	for i, c := range got {
		fields = append(fields, c.Field)
		assert.Equal(t, uint64(i+1), c.Seq)
	}
	assert.Equal(t, []Field{
		FieldHeading,
		FieldHeadingString,
		FieldInverseHeading,
		FieldBearingRotation,
		FieldDirectionString,
		FieldRoll,
		FieldPitch,
	}, fields)
	assert.Equal(t, "9.00°", got[1].Value)

	cancel()
	cancel()
	f.OnHeadingSample(90)
	assert.Len(t, got, 7)
}

func TestObserverOrderUnderConcurrentStreams(t *testing.T) {
	f, hs, os := newTestFilter()
	f.Enable()

	var (
		mu   sync.Mutex
		seqs []uint64
	)
	f.Subscribe(func(c Change) {
		mu.Lock()
		seqs = append(seqs, c.Seq)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			hs.Push(sensor.HeadingSample{Degrees: float64(i % 360)})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			os.Push(sensor.OrientationSample{Q: rotX(float64(i % 90))})
		}
	}()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seqs)
	for i := 1; i < len(seqs); i++ {
		require.Equal(t, seqs[i-1]+1, seqs[i])
	}
}

func TestDisableWinsOverInFlightSamples(t *testing.T) {
	for run := 0; run < 200; run++ {
		f, hs, os := newTestFilter()
		f.Enable()

		stop := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					hs.Push(sensor.HeadingSample{Degrees: 90})
				}
			}
		}()
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					os.Push(sensor.OrientationSample{Q: rotX(30)})
				}
			}
		}()

		// Stop detaches the handlers, but callbacks fetched before that
		// still run; they must not undo the reset.
		f.Disable()
		// Samples delivered by a stream that ignores Stop are dropped too.
		f.onCompassSample(sensor.HeadingSample{Degrees: 90})
		f.onOrientationSample(sensor.OrientationSample{Q: rotX(30)})
		close(stop)
		wg.Wait()

		s := f.Snapshot()
		require.False(t, s.Enabled)
		require.Equal(t, 0.0, s.Heading, "run %d", run)
		require.Equal(t, 0.0, s.Roll, "run %d", run)
		require.Equal(t, "0.00°", s.HeadingString, "run %d", run)
	}
}
