// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package compass

import "encoding/json"

// Direction is the coarse 8-way compass direction of a heading.
type Direction int

const (
	North Direction = iota
	NorthEast
	East
	SouthEast
	South
	SouthWest
	West
	NorthWest
)

var directionNames = [...]string{
	North:     "North",
	NorthEast: "North East",
	East:      "East",
	SouthEast: "South East",
	South:     "South",
	SouthWest: "South West",
	West:      "West",
	NorthWest: "North West",
}

var directionAbbrevs = [...]string{
	North:     "N",
	NorthEast: "NE",
	East:      "E",
	SouthEast: "SE",
	South:     "S",
	SouthWest: "SW",
	West:      "W",
	NorthWest: "NW",
}

// half-open buckets in degrees; North is the fallback.
var directionBounds = []struct {
	from, to float64
	dir      Direction
}{
	{22.5, 67.5, NorthEast},
	{67.5, 112.5, East},
	{112.5, 157.5, SouthEast},
	{157.5, 202.5, South},
	{202.5, 247.5, SouthWest},
	{247.5, 292.5, West},
	{292.5, 337.5, NorthWest},
}

// Classify maps a heading in degrees to its direction. Buckets are
// half-open [from, to); anything outside them, including 337.5 and
// above, negative or non-finite values, is North.
func Classify(heading float64) Direction {
	for _, b := range directionBounds {
		if heading >= b.from && heading < b.to {
			return b.dir
		}
	}
	return North
}

// String returns the display label, e.g. "North East".
func (d Direction) String() string {
	if d < North || d > NorthWest {
		return directionNames[North]
	}
	return directionNames[d]
}

// Abbrev returns the short label, e.g. "NE".
func (d Direction) Abbrev() string {
	if d < North || d > NorthWest {
		return directionAbbrevs[North]
	}
	return directionAbbrevs[d]
}

func (d Direction) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Abbrev())
}

func (d *Direction) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for i, a := range directionAbbrevs {
		if a == s {
			*d = Direction(i)
			return nil
		}
	}
	*d = North
	return nil
}
