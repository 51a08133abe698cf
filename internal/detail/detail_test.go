// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package detail

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/compass/internal/location"
)

type fakeCompass struct {
	mu        sync.Mutex
	heading   string
	direction string
}

func (c *fakeCompass) set(heading, direction string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.heading, c.direction = heading, direction
}

func (c *fakeCompass) HeadingString() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.heading
}

func (c *fakeCompass) DirectionString() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.direction
}

type reply struct {
	loc *location.Location
	err error
}

type call struct {
	ctx   context.Context
	req   location.Request
	reply chan reply
}

// scriptedProvider hands every request to the test and returns whatever
// the test answers, even if the request was cancelled meanwhile.
type scriptedProvider struct {
	calls chan *call
}

func newScriptedProvider() *scriptedProvider {
	return &scriptedProvider{calls: make(chan *call, 16)}
}

func (p *scriptedProvider) GetLocation(ctx context.Context, req location.Request) (*location.Location, error) {
	c := &call{ctx: ctx, req: req, reply: make(chan reply, 1)}
	p.calls <- c
	r := <-c.reply
	return r.loc, r.err
}

func (p *scriptedProvider) next(t *testing.T) *call {
	t.Helper()
	select {
	case c := <-p.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no location request issued")
		return nil
	}
}

// blockingProvider only returns once the request is cancelled.
type blockingProvider struct {
	started chan context.Context
}

func (p *blockingProvider) GetLocation(ctx context.Context, _ location.Request) (*location.Location, error) {
	p.started <- ctx
	<-ctx.Done()
	return nil, ctx.Err()
}

func alt(v float64) *float64 { return &v }

func newTestAggregator(provider location.Provider) (*Aggregator, *fakeCompass, *clock.Mock) {
	mock := clock.NewMock()
	fc := &fakeCompass{heading: "0.00°", direction: "North"}
	a := New(fc, provider, Options{Clock: mock})
	return a, fc, mock
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "-", FormatLatitude(0))
	assert.Equal(t, "48.1173° N", FormatLatitude(48.1173))
	assert.Equal(t, "33.8688° S", FormatLatitude(-33.8688))

	assert.Equal(t, "-", FormatLongitude(0))
	assert.Equal(t, "151.2093° E", FormatLongitude(151.2093))
	assert.Equal(t, "0.1278° W", FormatLongitude(-0.1278))

	assert.Equal(t, "-", FormatAltitude(0))
	assert.Equal(t, "545.40 m", FormatAltitude(545.4))
	assert.Equal(t, "-3.50 m", FormatAltitude(-3.5))
}

func TestInitialState(t *testing.T) {
	a, _, _ := newTestAggregator(nil)
	s := a.Snapshot()
	assert.Equal(t, "-", s.LatitudeString)
	assert.Equal(t, "-", s.LongitudeString)
	assert.Equal(t, "-", s.AltitudeString)
	assert.False(t, s.Enabled)
}

func TestHeadingMirroredOnTimer(t *testing.T) {
	a, fc, mock := newTestAggregator(nil)
	a.Enable()
	defer a.Disable()

	fc.set("12.00°", "North East")
	mock.Add(DefaultHeadingInterval)

	require.Eventually(t, func() bool {
		s := a.Snapshot()
		return s.HeadingString == "12.00°" && s.DirectionString == "North East"
	}, time.Second, 5*time.Millisecond)
}

func TestLocationAppliedOnTimer(t *testing.T) {
	p := newScriptedProvider()
	a, _, mock := newTestAggregator(p)
	a.Enable()
	defer a.Disable()

	mock.Add(DefaultLocationInterval)
	c := p.next(t)
	assert.Equal(t, location.AccuracyMedium, c.req.Accuracy)
	assert.Equal(t, DefaultLocationTimeout, c.req.Timeout)
	c.reply <- reply{loc: &location.Location{Latitude: -33.8688, Longitude: 151.2093, Altitude: alt(58)}}

	require.Eventually(t, func() bool {
		return a.Snapshot().LatitudeString == "33.8688° S"
	}, time.Second, 5*time.Millisecond)
	s := a.Snapshot()
	assert.Equal(t, "151.2093° E", s.LongitudeString)
	assert.Equal(t, "58.00 m", s.AltitudeString)
	assert.InDelta(t, -33.8688, s.Latitude, 1e-9)
}

func TestMissingAltitudeShowsPlaceholder(t *testing.T) {
	p := newScriptedProvider()
	a, _, mock := newTestAggregator(p)
	a.Enable()
	defer a.Disable()

	mock.Add(DefaultLocationInterval)
	p.next(t).reply <- reply{loc: &location.Location{Latitude: 1, Longitude: -1}}

	require.Eventually(t, func() bool {
		return a.Snapshot().LongitudeString == "1.0000° W"
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "-", a.Snapshot().AltitudeString)
}

func TestFailedRequestKeepsStrings(t *testing.T) {
	p := newScriptedProvider()
	a, _, mock := newTestAggregator(p)
	a.Enable()
	defer a.Disable()

	mock.Add(DefaultLocationInterval)
	p.next(t).reply <- reply{loc: &location.Location{Latitude: 10, Longitude: 20, Altitude: alt(30)}}
	require.Eventually(t, func() bool {
		return a.Snapshot().LatitudeString == "10.0000° N"
	}, time.Second, 5*time.Millisecond)

	mock.Add(DefaultLocationInterval)
	p.next(t).reply <- reply{err: location.ErrNoFix}

	// Let the failed fetch finish before checking nothing moved.
	mock.Add(DefaultLocationInterval)
	c := p.next(t)
	s := a.Snapshot()
	assert.Equal(t, "10.0000° N", s.LatitudeString)
	assert.Equal(t, "20.0000° E", s.LongitudeString)
	assert.Equal(t, "30.00 m", s.AltitudeString)
	c.reply <- reply{err: errors.New("gone")}
}

func TestSupersededRequestIsDropped(t *testing.T) {
	p := newScriptedProvider()
	a, _, mock := newTestAggregator(p)
	a.Enable()
	defer a.Disable()

	mock.Add(DefaultLocationInterval)
	first := p.next(t)
	mock.Add(DefaultLocationInterval)
	second := p.next(t)

	assert.Error(t, first.ctx.Err(), "older request must be cancelled")
	assert.NoError(t, second.ctx.Err())

	first.reply <- reply{loc: &location.Location{Latitude: 1, Longitude: 1}}
	second.reply <- reply{loc: &location.Location{Latitude: 2, Longitude: 2}}

	require.Eventually(t, func() bool {
		return a.Snapshot().LatitudeString == "2.0000° N"
	}, time.Second, 5*time.Millisecond)

	// A late answer to the first request cannot overwrite the newer one.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, "2.0000° N", a.Snapshot().LatitudeString)
}

func TestDisableCancelsInFlightRequest(t *testing.T) {
	p := &blockingProvider{started: make(chan context.Context, 1)}
	a, _, mock := newTestAggregator(p)
	a.Enable()

	mock.Add(DefaultLocationInterval)
	var ctx context.Context
	select {
	case ctx = <-p.started:
	case <-time.After(2 * time.Second):
		t.Fatal("no location request issued")
	}

	a.Disable()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.False(t, a.Snapshot().Enabled)
}

func TestEnableDisableIdempotent(t *testing.T) {
	p := newScriptedProvider()
	a, _, mock := newTestAggregator(p)

	a.Disable()
	a.Enable()
	a.Enable()
	assert.True(t, a.Snapshot().Enabled)

	mock.Add(DefaultLocationInterval)
	p.next(t).reply <- reply{err: location.ErrNoFix}
	select {
	case c := <-p.calls:
		c.reply <- reply{err: location.ErrNoFix}
		t.Fatal("second Enable started another timer")
	case <-time.After(50 * time.Millisecond):
	}

	a.Disable()
	a.Disable()
	assert.False(t, a.Snapshot().Enabled)

	// No timers fire once disabled.
	mock.Add(DefaultLocationInterval)
	select {
	case c := <-p.calls:
		c.reply <- reply{err: location.ErrNoFix}
		t.Fatal("request issued while disabled")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	a, fc, mock := newTestAggregator(nil)

	var mu sync.Mutex
	var got []Snapshot
	a.Subscribe(func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, s)
	})

	a.Enable()
	fc.set("90.00°", "East")
	mock.Add(DefaultHeadingInterval)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) >= 2
	}, time.Second, 5*time.Millisecond)
	a.Disable()

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, got[0].Enabled)
	assert.Equal(t, "East", got[1].DirectionString)
	last := got[len(got)-1]
	assert.False(t, last.Enabled)
}

func TestEmptyOptionsRequestMediumAccuracy(t *testing.T) {
	p := newScriptedProvider()
	mock := clock.NewMock()
	a := New(nil, p, Options{Clock: mock})
	a.Enable()
	defer a.Disable()

	mock.Add(DefaultLocationInterval)
	c := p.next(t)
	assert.Equal(t, location.AccuracyMedium, c.req.Accuracy)
	assert.Equal(t, DefaultLocationTimeout, c.req.Timeout)
	c.reply <- reply{err: location.ErrNoFix}
}

func TestSubscribeCancel(t *testing.T) {
	a, _, _ := newTestAggregator(nil)

	var mu sync.Mutex
	var first, second int
	cancel := a.Subscribe(func(Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		first++
	})
	a.Subscribe(func(Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		second++
	})

	a.Enable()
	cancel()
	cancel()
	a.Disable()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}
