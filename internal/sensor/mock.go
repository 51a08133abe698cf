// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensor

import (
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"gonum.org/v1/gonum/num/quat"
)

// ticking runs gen on every tick of a clock-driven ticker until stopped.
// Samples for which gen fails are handed to onErr, if set, and dropped.
type ticking[T any] struct {
	clk      clock.Clock
	interval time.Duration
	setup    func() error
	gen      func(elapsed time.Duration) (T, error)
	onErr    func(error)

	mu     sync.Mutex
	ticker *clock.Ticker
	done   chan struct{}
	wg     sync.WaitGroup
}

func (t *ticking[T]) Start(handler func(T)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ticker != nil {
		return ErrAlreadyStarted
	}
	if t.setup != nil {
		if err := t.setup(); err != nil {
			return err
		}
	}
	start := t.clk.Now()
	t.ticker = t.clk.Ticker(t.interval)
	t.done = make(chan struct{})

	ticker, done := t.ticker, t.done
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for {
			select {
			case <-done:
				return
			case now := <-ticker.C:
				v, err := t.gen(now.Sub(start))
				if err != nil {
					if t.onErr != nil {
						t.onErr(err)
					}
					continue
				}
				handler(v)
			}
		}
	}()
	return nil
}

func (t *ticking[T]) Stop() error {
	t.mu.Lock()
	if t.ticker == nil {
		t.mu.Unlock()
		return ErrNotMonitoring
	}
	t.ticker.Stop()
	close(t.done)
	t.ticker = nil
	t.mu.Unlock()

	t.wg.Wait()
	return nil
}

func (t *ticking[T]) Monitoring() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ticker != nil
}

// NewMockHeadingSource returns a heading source that sweeps slowly
// around the dial, with a little wobble, so the North seam gets crossed
// regularly.
func NewMockHeadingSource(clk clock.Clock, interval time.Duration) HeadingSource {
	if clk == nil {
		clk = clock.New()
	}
	return &ticking[HeadingSample]{
		clk:      clk,
		interval: interval,
		gen: func(elapsed time.Duration) (HeadingSample, error) {
			s := elapsed.Seconds()
			deg := math.Mod(s*30+5*math.Sin(s*2), 360)
			if deg < 0 {
				deg += 360
			}
			return HeadingSample{Degrees: deg, Time: clk.Now()}, nil
		},
	}
}

// NewMockOrientationSource returns an orientation source that rocks the
// device gently in pitch and roll.
func NewMockOrientationSource(clk clock.Clock, interval time.Duration) OrientationSource {
	if clk == nil {
		clk = clock.New()
	}
	return &ticking[OrientationSample]{
		clk:      clk,
		interval: interval,
		gen: func(elapsed time.Duration) (OrientationSample, error) {
			s := elapsed.Seconds()
			roll := 20 * math.Sin(s) * math.Pi / 180
			pitch := 15 * math.Cos(s*0.7) * math.Pi / 180
			return OrientationSample{Q: FromEuler(roll, pitch, 0), Time: clk.Now()}, nil
		},
	}
}

// FromEuler builds a unit quaternion from roll, pitch and yaw in radians
// (aerospace Z-Y-X sequence).
func FromEuler(roll, pitch, yaw float64) quat.Number {
	cr, sr := math.Cos(roll/2), math.Sin(roll/2)
	cp, sp := math.Cos(pitch/2), math.Sin(pitch/2)
	cy, sy := math.Cos(yaw/2), math.Sin(yaw/2)
	return quat.Number{
		Real: cr*cp*cy + sr*sp*sy,
		Imag: sr*cp*cy - cr*sp*sy,
		Jmag: cr*sp*cy + sr*cp*sy,
		Kmag: cr*cp*sy - sr*sp*cy,
	}
}
