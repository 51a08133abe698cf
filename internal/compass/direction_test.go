// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package compass

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyBoundaries(t *testing.T) {
	cases := []struct {
		heading float64
		want    Direction
	}{
		{0, North},
		{22.49999, North},
		{22.5, NorthEast},
		{67.5, East},
		{112.5, SouthEast},
		{157.5, South},
		{180, South},
		{202.5, SouthWest},
		{247.5, West},
		{292.5, NorthWest},
		{337.49, NorthWest},
		{337.5, North},
		{359.99, North},
		{-5, North},
		{400, North},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Classify(c.heading), "heading %v", c.heading)
	}
}

func TestClassifyIsTotal(t *testing.T) {
	for h := 0.0; h < 360; h += 0.25 {
		d := Classify(h)
		assert.GreaterOrEqual(t, int(d), int(North))
		assert.LessOrEqual(t, int(d), int(NorthWest))
		assert.Equal(t, d, Classify(h))
	}
}

func TestDirectionLabels(t *testing.T) {
	want := []string{"North", "North East", "East", "South East", "South", "South West", "West", "North West"}
	for i, w := range want {
		assert.Equal(t, w, Direction(i).String())
	}
	assert.Equal(t, "NW", NorthWest.Abbrev())
	assert.Equal(t, "North", Direction(42).String())
}

func TestDirectionJSON(t *testing.T) {
	b, err := json.Marshal(SouthWest)
	require.NoError(t, err)
	assert.Equal(t, `"SW"`, string(b))

	var d Direction
	require.NoError(t, json.Unmarshal([]byte(`"E"`), &d))
	assert.Equal(t, East, d)
}
