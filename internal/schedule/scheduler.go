/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package schedule decides when a generated announcement is substituted for
// an ordinary playlist track.
package schedule

import "time"

// Category identifies a kind of generated special audio.
type Category string

const (
	CategoryClock   Category = "clock"
	CategoryWeather Category = "weather"
)

// Scheduler tracks the round-robin ring of enabled special categories, the
// emission interval, and the freshest generated file per category. It is
// not safe for concurrent use on its own; the rotation service serializes
// access.
type Scheduler struct {
	ring     []Category
	pos      int
	interval time.Duration
	lastEmit time.Time
	pending  map[Category]string
}

// New creates a scheduler over the given enabled categories. The ring order
// is the order given. lastEmit starts at now, so the first special plays one
// full interval after startup.
func New(categories []Category, interval time.Duration, now time.Time) *Scheduler {
	return &Scheduler{
		ring:     append([]Category(nil), categories...),
		interval: interval,
		lastEmit: now,
		pending:  make(map[Category]string),
	}
}

// Enabled returns the ring contents in round-robin order starting from the
// ring's fixed origin.
func (s *Scheduler) Enabled() []Category {
	return append([]Category(nil), s.ring...)
}

// Interval returns the configured gap between special emissions.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// LastEmission returns when a special was last emitted.
func (s *Scheduler) LastEmission() time.Time { return s.lastEmit }

// RegisterGenerated records a freshly produced file for the category. A
// newer file replaces any pending one; readiness never reorders the ring.
// Categories outside the ring are ignored.
func (s *Scheduler) RegisterGenerated(category Category, path string) bool {
	for _, c := range s.ring {
		if c == category {
			s.pending[category] = path
			return true
		}
	}
	return false
}

// Pending returns the registered file for the category, if any.
func (s *Scheduler) Pending(category Category) (string, bool) {
	path, ok := s.pending[category]
	return path, ok
}

// ShouldEmit reports whether the next advance should serve a special track.
// It emits when the ring is non-empty, a full interval has passed since the
// last emission, and the category at the ring cursor has a generated file
// ready. On emission the cursor advances one position, the emission time
// resets, and the category's pending file is consumed. When the due
// category has nothing ready the cursor stays put, so the same category is
// retried on the next qualifying call instead of being starved.
func (s *Scheduler) ShouldEmit(now time.Time) (Category, string, bool) {
	if len(s.ring) == 0 {
		return "", "", false
	}
	if now.Sub(s.lastEmit) < s.interval {
		return "", "", false
	}

	category := s.ring[s.pos]
	path, ready := s.pending[category]
	if !ready {
		return "", "", false
	}

	delete(s.pending, category)
	s.pos = (s.pos + 1) % len(s.ring)
	s.lastEmit = now
	return category, path, true
}
