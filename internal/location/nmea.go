// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package location

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/benbjohnson/clock"
	serial "github.com/jacobsa/go-serial/serial"
	"go.uber.org/zap"
)

// SerialConfig selects the GPS serial port.
type SerialConfig struct {
	Port string // /dev/serial0, /dev/ttyAMA0, /dev/ttyUSB0, ...
	Baud uint
}

// OpenSerial opens the GPS port with 8N1 framing.
func OpenSerial(cfg SerialConfig) (io.ReadWriteCloser, error) {
	opts := serial.OpenOptions{
		PortName:              cfg.Port,
		BaudRate:              cfg.Baud,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("gps: open %s: %w", cfg.Port, err)
	}
	return port, nil
}

// NMEAProvider answers location requests from an NMEA stream, normally a
// GPS receiver on a serial port.
type NMEAProvider struct {
	*Tracker

	port   io.Closer
	cancel context.CancelFunc
	wg     sync.WaitGroup
	errMu  sync.Mutex
	runErr error
}

// NewNMEAProvider opens the serial port and starts reading sentences.
func NewNMEAProvider(ctx context.Context, cfg SerialConfig, clk clock.Clock, log *zap.SugaredLogger) (*NMEAProvider, error) {
	port, err := OpenSerial(cfg)
	if err != nil {
		return nil, err
	}
	if log != nil {
		log.Infow("gps: serial port opened", "port", cfg.Port, "baud", cfg.Baud)
	}
	return NewNMEAProviderFromReader(ctx, port, clk, log), nil
}

// NewNMEAProviderFromReader reads sentences from r. If r is an io.Closer
// it is closed by Close.
func NewNMEAProviderFromReader(ctx context.Context, r io.Reader, clk clock.Clock, log *zap.SugaredLogger) *NMEAProvider {
	ctx, cancel := context.WithCancel(ctx)
	p := &NMEAProvider{
		Tracker: NewTracker(clk, log),
		cancel:  cancel,
	}
	if c, ok := r.(io.Closer); ok {
		p.port = c
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.Run(ctx, r); err != nil && ctx.Err() == nil {
			p.log.Warnw("gps: reader stopped", "error", err)
			p.errMu.Lock()
			p.runErr = err
			p.errMu.Unlock()
		}
	}()
	return p
}

// Err returns the error that stopped the reader, if any.
func (p *NMEAProvider) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.runErr
}

// Close stops reading and closes the port.
func (p *NMEAProvider) Close() error {
	p.cancel()
	var err error
	if p.port != nil {
		err = p.port.Close()
	}
	p.wg.Wait()
	return err
}
