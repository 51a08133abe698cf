// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, l)

	l, err = ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, l)

	_, err = ParseLevel("chatty")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	log, err := New("warn", false)
	require.NoError(t, err)
	assert.False(t, log.Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Desugar().Core().Enabled(zapcore.WarnLevel))

	_, err = New("loud", true)
	assert.Error(t, err)
}

func TestConfig(t *testing.T) {
	cfg := Config(zapcore.DebugLevel, true)
	assert.True(t, cfg.Development)
	assert.True(t, cfg.DisableStacktrace)
	assert.Equal(t, zapcore.DebugLevel, cfg.Level.Level())
}

func TestNewNop(t *testing.T) {
	log := NewNop()
	assert.False(t, log.Desugar().Core().Enabled(zapcore.ErrorLevel))
	log.Infow("discarded", "k", 1)
}
