// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package compass

import "sync"

// Field names an observable output of the filter.
type Field int

const (
	FieldHeading Field = iota
	FieldHeadingString
	FieldInverseHeading
	FieldBearingRotation
	FieldPitch
	FieldRoll
	FieldDirectionString
	FieldEnabled
)

var fieldNames = [...]string{
	FieldHeading:         "heading",
	FieldHeadingString:   "headingString",
	FieldInverseHeading:  "inverseHeading",
	FieldBearingRotation: "bearingRotation",
	FieldPitch:           "pitch",
	FieldRoll:            "roll",
	FieldDirectionString: "directionString",
	FieldEnabled:         "enabled",
}

func (f Field) String() string {
	if f < 0 || int(f) >= len(fieldNames) {
		return "unknown"
	}
	return fieldNames[f]
}

func (f Field) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// Change is a single field assignment. Seq increases by one per
// assignment over the lifetime of the filter.
type Change struct {
	Field Field  `json:"field"`
	Value any    `json:"value"`
	Seq   uint64 `json:"seq"`
}

// Observer receives changes in mutation order. Observers run on the
// goroutine that delivered the sample and must not feed samples back
// into the same filter.
type Observer func(Change)

type observers struct {
	mu     sync.Mutex
	nextID int
	byID   map[int]Observer
	order  []int
}

func (o *observers) add(fn Observer) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.byID == nil {
		o.byID = make(map[int]Observer)
	}
	id := o.nextID
	o.nextID++
	o.byID[id] = fn
	o.order = append(o.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { o.remove(id) })
	}
}

func (o *observers) remove(id int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.byID, id)
	for i, v := range o.order {
		if v == id {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
}

func (o *observers) list() []Observer {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Observer, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, o.byID[id])
	}
	return out
}
