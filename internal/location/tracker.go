// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package location

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// DefaultMaxAge is how old a fix may be and still answer a request
// without waiting for the next one.
const DefaultMaxAge = 5 * time.Second

// Tracker keeps the latest fix and answers location requests from it.
// Fixes arrive either as NMEA sentences or as ready-made Fix records.
type Tracker struct {
	clk    clock.Clock
	log    *zap.SugaredLogger
	maxAge time.Duration

	mu      sync.Mutex
	fix     Fix
	haveFix bool
	updated chan struct{} // closed and replaced on every update
}

// NewTracker returns an empty tracker.
func NewTracker(clk clock.Clock, log *zap.SugaredLogger) *Tracker {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Tracker{
		clk:     clk,
		log:     log,
		maxAge:  DefaultMaxAge,
		updated: make(chan struct{}),
	}
}

// Update replaces the current fix.
func (t *Tracker) Update(f Fix) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.update(f)
}

func (t *Tracker) update(f Fix) {
	if f.Received.IsZero() {
		f.Received = t.clk.Now()
	}
	t.fix = f
	t.haveFix = true
	close(t.updated)
	t.updated = make(chan struct{})
}

// Latest returns the current fix, if any.
func (t *Tracker) Latest() (Fix, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fix, t.haveFix
}

// Next waits for the first fix produced after the call.
func (t *Tracker) Next(ctx context.Context) (Fix, error) {
	t.mu.Lock()
	updated := t.updated
	t.mu.Unlock()

	select {
	case <-ctx.Done():
		return Fix{}, ctx.Err()
	case <-updated:
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fix, nil
}

// HandleSentence merges one NMEA sentence into the current fix. RMC
// sentences complete a fix; GGA only contributes altitude and quality.
// It reports whether the sentence produced a new fix.
func (t *Tracker) HandleSentence(line string) (bool, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return false, nil
	}
	sentence, err := nmea.Parse(line)
	if err != nil {
		return false, fmt.Errorf("nmea parse: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch sentence.DataType() {
	case nmea.TypeGGA:
		m := sentence.(nmea.GGA)
		alt := m.Altitude
		t.fix.AltitudeM = &alt
		t.fix.Quality = m.FixQuality
		t.fix.HDOP = m.HDOP
		return false, nil
	case nmea.TypeRMC:
		m := sentence.(nmea.RMC)
		current := t.fix
		current.Time = m.Time.String()
		current.Date = m.Date.String()
		current.Latitude = m.Latitude
		current.Longitude = m.Longitude
		current.SpeedKnots = m.Speed
		current.CourseDeg = m.Course
		current.Validity = m.Validity
		current.Received = t.clk.Now()
		t.update(current)
		return true, nil
	default:
		return false, nil
	}
}

// Run reads NMEA lines from r until it fails or ctx is done. Unparseable
// lines are skipped; GPS receivers emit plenty of them while warming up.
func (t *Tracker) Run(ctx context.Context, r io.Reader) error {
	reader := bufio.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := reader.ReadString('\n')
		if line != "" {
			if _, perr := t.HandleSentence(line); perr != nil {
				t.log.Debugw("gps: skipping sentence", "line", strings.TrimSpace(line), "error", perr)
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("gps read: %w", err)
		}
	}
}

// GetLocation returns the current fix if it is recent and accurate
// enough, otherwise waits for one until the request times out.
func (t *Tracker) GetLocation(ctx context.Context, req Request) (*Location, error) {
	ctx, cancel := withTimeout(ctx, t.clk, req)
	defer cancel()

	for {
		t.mu.Lock()
		f, ok, updated := t.fix, t.haveFix, t.updated
		t.mu.Unlock()

		if ok && t.clk.Since(f.Received) <= t.maxAge && f.Satisfies(req.Accuracy) {
			return f.Location(), nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrNoFix, ctx.Err())
		case <-updated:
		}
	}
}
