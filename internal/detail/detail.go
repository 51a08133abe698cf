// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package detail keeps the coordinate and heading strings shown next to
// the compass up to date.
package detail

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/relabs-tech/compass/internal/location"
)

const (
	DefaultLocationInterval = 5000 * time.Millisecond
	DefaultHeadingInterval  = 100 * time.Millisecond
	DefaultLocationTimeout  = 10 * time.Second
	DefaultAccuracy         = location.AccuracyMedium

	placeholder = "-"
)

// HeadingReader exposes the compass strings the overlay mirrors.
type HeadingReader interface {
	HeadingString() string
	DirectionString() string
}

// Options tunes the aggregator. Zero values fall back to the defaults.
type Options struct {
	LocationInterval time.Duration
	HeadingInterval  time.Duration
	Accuracy         location.Accuracy
	LocationTimeout  time.Duration
	Clock            clock.Clock
	Logger           *zap.SugaredLogger
}

// Snapshot is the overlay state.
type Snapshot struct {
	Latitude        float64 `json:"lat"`
	Longitude       float64 `json:"lon"`
	Altitude        float64 `json:"alt_m"`
	LatitudeString  string  `json:"lat_string"`
	LongitudeString string  `json:"lon_string"`
	AltitudeString  string  `json:"alt_string"`
	HeadingString   string  `json:"heading_string"`
	DirectionString string  `json:"direction_string"`
	Enabled         bool    `json:"enabled"`
}

// Aggregator polls a location provider and mirrors the compass strings
// on two independent timers.
type Aggregator struct {
	compass  HeadingReader
	provider location.Provider
	opts     Options
	clk      clock.Clock
	log      *zap.SugaredLogger

	lifeMu sync.Mutex
	stop   chan struct{}
	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	st          Snapshot
	fetchGen    uint64
	cancelFetch context.CancelFunc

	notifyMu  sync.Mutex
	obsMu     sync.Mutex
	nextObsID int
	observers []observer
}

type observer struct {
	id int
	fn func(Snapshot)
}

// New returns a disabled aggregator. provider may be nil, in which case
// the coordinates stay at their placeholders.
func New(compass HeadingReader, provider location.Provider, opts Options) *Aggregator {
	if opts.LocationInterval <= 0 {
		opts.LocationInterval = DefaultLocationInterval
	}
	if opts.HeadingInterval <= 0 {
		opts.HeadingInterval = DefaultHeadingInterval
	}
	if opts.LocationTimeout <= 0 {
		opts.LocationTimeout = DefaultLocationTimeout
	}
	if opts.Accuracy == 0 {
		opts.Accuracy = DefaultAccuracy
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Aggregator{
		compass:  compass,
		provider: provider,
		opts:     opts,
		clk:      clk,
		log:      log,
		st: Snapshot{
			LatitudeString:  placeholder,
			LongitudeString: placeholder,
			AltitudeString:  placeholder,
		},
	}
}

// Snapshot returns the current overlay state.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.st
}

// Subscribe registers fn to receive the full state after every update.
// The returned func removes it and may be called more than once.
func (a *Aggregator) Subscribe(fn func(Snapshot)) (cancel func()) {
	a.obsMu.Lock()
	defer a.obsMu.Unlock()
	id := a.nextObsID
	a.nextObsID++
	a.observers = append(a.observers, observer{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			a.obsMu.Lock()
			defer a.obsMu.Unlock()
			a.observers = slices.DeleteFunc(a.observers, func(o observer) bool { return o.id == id })
		})
	}
}

// Enable starts both timers. Calling it while enabled does nothing.
func (a *Aggregator) Enable() {
	a.lifeMu.Lock()
	defer a.lifeMu.Unlock()
	if a.stop != nil {
		return
	}

	a.stop = make(chan struct{})
	a.runCtx, a.cancel = context.WithCancel(context.Background())
	locTicker := a.clk.Ticker(a.opts.LocationInterval)
	headTicker := a.clk.Ticker(a.opts.HeadingInterval)

	a.mu.Lock()
	a.st.Enabled = true
	a.mu.Unlock()
	a.notify()

	stop := a.stop
	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		defer locTicker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-locTicker.C:
				a.requestLocation()
			}
		}
	}()
	go func() {
		defer a.wg.Done()
		defer headTicker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-headTicker.C:
				a.UpdateHeading()
			}
		}
	}()
	a.log.Debugw("detail: enabled", "location_interval", a.opts.LocationInterval, "heading_interval", a.opts.HeadingInterval)
}

// Disable stops both timers and cancels any location request in flight.
// The displayed strings keep their last values.
func (a *Aggregator) Disable() {
	a.lifeMu.Lock()
	defer a.lifeMu.Unlock()
	if a.stop == nil {
		return
	}
	close(a.stop)
	a.cancel()
	a.wg.Wait()
	a.stop = nil

	a.mu.Lock()
	a.st.Enabled = false
	a.cancelFetch = nil
	a.mu.Unlock()
	a.notify()
	a.log.Debug("detail: disabled")
}

// requestLocation starts a fetch with its own cancellation handle and
// cancels the previous one. A result arriving after a newer request has
// started is dropped.
func (a *Aggregator) requestLocation() {
	if a.provider == nil {
		return
	}

	a.mu.Lock()
	if a.cancelFetch != nil {
		a.cancelFetch()
	}
	a.fetchGen++
	gen := a.fetchGen
	ctx, cancel := context.WithCancel(a.runCtx)
	a.cancelFetch = cancel
	a.mu.Unlock()

	req := location.Request{Accuracy: a.opts.Accuracy, Timeout: a.opts.LocationTimeout}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer cancel()

		loc, err := a.provider.GetLocation(ctx, req)
		if err != nil {
			a.log.Debugw("detail: location unavailable", "error", err)
			return
		}
		if loc == nil {
			return
		}
		if !a.applyLocation(gen, loc) {
			a.log.Debugw("detail: dropping superseded location", "request", gen)
		}
	}()
}

func (a *Aggregator) applyLocation(gen uint64, loc *location.Location) bool {
	a.mu.Lock()
	if gen != a.fetchGen || !a.st.Enabled {
		a.mu.Unlock()
		return false
	}
	alt := 0.0
	if loc.Altitude != nil {
		alt = *loc.Altitude
	}
	a.st.Latitude = loc.Latitude
	a.st.Longitude = loc.Longitude
	a.st.Altitude = alt
	a.st.LatitudeString = FormatLatitude(loc.Latitude)
	a.st.LongitudeString = FormatLongitude(loc.Longitude)
	a.st.AltitudeString = FormatAltitude(alt)
	a.mu.Unlock()
	a.notify()
	return true
}

// UpdateHeading copies the compass heading and direction strings.
func (a *Aggregator) UpdateHeading() {
	if a.compass == nil {
		return
	}
	heading, direction := a.compass.HeadingString(), a.compass.DirectionString()

	a.mu.Lock()
	changed := heading != a.st.HeadingString || direction != a.st.DirectionString
	a.st.HeadingString = heading
	a.st.DirectionString = direction
	a.mu.Unlock()
	if changed {
		a.notify()
	}
}

func (a *Aggregator) notify() {
	a.notifyMu.Lock()
	defer a.notifyMu.Unlock()

	a.obsMu.Lock()
	obs := slices.Clone(a.observers)
	a.obsMu.Unlock()
	if len(obs) == 0 {
		return
	}
	s := a.Snapshot()
	for _, o := range obs {
		o.fn(s)
	}
}

// FormatLatitude renders |lat| with a hemisphere letter, or "-" at 0.
func FormatLatitude(lat float64) string {
	if lat == 0 {
		return placeholder
	}
	hemi := "N"
	if lat < 0 {
		hemi = "S"
	}
	return fmt.Sprintf("%.4f° %s", math.Abs(lat), hemi)
}

// FormatLongitude renders |lon| with a hemisphere letter, or "-" at 0.
func FormatLongitude(lon float64) string {
	if lon == 0 {
		return placeholder
	}
	hemi := "E"
	if lon < 0 {
		hemi = "W"
	}
	return fmt.Sprintf("%.4f° %s", math.Abs(lon), hemi)
}

// FormatAltitude renders metres, or "-" at 0.
func FormatAltitude(alt float64) string {
	if alt == 0 {
		return placeholder
	}
	return fmt.Sprintf("%.2f m", alt)
}
