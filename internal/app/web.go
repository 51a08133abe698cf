// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/relabs-tech/compass/internal/compass"
	"github.com/relabs-tech/compass/internal/detail"
)

const (
	wsWriteWait     = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// StateMessage is what /ws pushes on every change.
type StateMessage struct {
	Compass compass.Snapshot `json:"compass"`
	Detail  *detail.Snapshot `json:"detail,omitempty"`
}

// Web serves the compass state over HTTP and streams it over a WebSocket.
type Web struct {
	filter *compass.Filter
	detail *detail.Aggregator
	log    *zap.SugaredLogger

	// StaticDir, if set, is served at "/".
	StaticDir string

	mu      sync.Mutex
	clients map[chan struct{}]struct{}

	unsubscribe []func()
	quit        chan struct{}
	closeOnce   sync.Once
}

// NewWeb returns a web surface for filter and, if not nil, agg.
func NewWeb(filter *compass.Filter, agg *detail.Aggregator, log *zap.SugaredLogger) *Web {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	w := &Web{
		filter:  filter,
		detail:  agg,
		log:     log,
		clients: make(map[chan struct{}]struct{}),
		quit:    make(chan struct{}),
	}
	w.unsubscribe = append(w.unsubscribe, filter.Subscribe(func(compass.Change) { w.broadcast() }))
	if agg != nil {
		w.unsubscribe = append(w.unsubscribe, agg.Subscribe(func(detail.Snapshot) { w.broadcast() }))
	}
	return w
}

// Handler returns the routes of the web surface.
func (w *Web) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/compass", func(rw http.ResponseWriter, r *http.Request) {
		w.writeJSON(rw, w.filter.Snapshot())
	})
	mux.HandleFunc("/api/detail", func(rw http.ResponseWriter, r *http.Request) {
		if w.detail == nil {
			http.Error(rw, "no detail overlay", http.StatusServiceUnavailable)
			return
		}
		w.writeJSON(rw, w.detail.Snapshot())
	})
	mux.HandleFunc("/ws", w.handleWS)
	if w.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(w.StaticDir)))
	}
	return mux
}

// Serve listens on addr until ctx is done.
func (w *Web) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           w.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		w.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			w.log.Warnw("web: shutdown error", "error", err)
		}
	}()

	w.log.Infow("web: server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close ends every WebSocket stream and drops the filter and overlay
// subscriptions.
func (w *Web) Close() {
	w.closeOnce.Do(func() {
		for _, cancel := range w.unsubscribe {
			cancel()
		}
		close(w.quit)
	})
}

func (w *Web) writeJSON(rw http.ResponseWriter, v any) {
	rw.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		w.log.Debugw("web: json encode error", "error", err)
	}
}

func (w *Web) state() StateMessage {
	msg := StateMessage{Compass: w.filter.Snapshot()}
	if w.detail != nil {
		d := w.detail.Snapshot()
		msg.Detail = &d
	}
	return msg
}

// broadcast wakes every stream. A stream that has not caught up yet
// already has a wakeup pending, so nothing blocks here.
func (w *Web) broadcast() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for c := range w.clients {
		select {
		case c <- struct{}{}:
		default:
		}
	}
}

func (w *Web) handleWS(rw http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.log.Debugw("web: websocket upgrade error", "error", err)
		return
	}
	defer conn.Close()

	wake := make(chan struct{}, 1)
	w.mu.Lock()
	w.clients[wake] = struct{}{}
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		delete(w.clients, wake)
		w.mu.Unlock()
	}()

	// Incoming messages are ignored; reading only detects the close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					w.log.Debugw("web: websocket read error", "error", err)
				}
				return
			}
		}
	}()

	send := func() error {
		if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
			return err
		}
		return conn.WriteJSON(w.state())
	}
	if err := send(); err != nil {
		return
	}
	for {
		select {
		case <-gone:
			return
		case <-w.quit:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(wsWriteWait))
			return
		case <-wake:
			if err := send(); err != nil {
				w.log.Debugw("web: websocket write error", "error", err)
				return
			}
		}
	}
}
