/*
 * Copyright 2019 The NanoDB Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package proto

import (
	"sync"
)

// Basis is a watermark pair: t is the most recently observed database
// point, next-t the next point the server will assign.
type Basis struct {
	T     uint64 `codec:"t"`
	NextT uint64 `codec:"next-t"`
}

// State is the mutable watermark cell owned by a connection. It starts at
// {0, 0} and only ever moves forward.
type State struct {
	mu    sync.RWMutex
	basis Basis
}

// NewState returns a zeroed watermark cell.
func NewState() *State {
	return &State{}
}

// Load returns the current watermark.
func (s *State) Load() Basis {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.basis
}

// Advance installs b iff its t is strictly greater than the current t.
// Losing racers under concurrent advance see a no-op.
func (s *State) Advance(b Basis) (advanced bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.T > s.basis.T {
		s.basis = b
		return true
	}
	return false
}

// DB is an immutable descriptor of a database value at a point in time,
// possibly narrowed by as-of/since or widened to full history. The
// next-token field is present only on descriptors from with-db.
type DB struct {
	DatabaseID string `codec:"database-id"`
	T          uint64 `codec:"t"`
	NextT      uint64 `codec:"next-t"`
	AsOf       uint64 `codec:"as-of,omitempty"`
	Since      uint64 `codec:"since,omitempty"`
	History    bool   `codec:"history,omitempty"`
	NextToken  string `codec:"next-token,omitempty"`
}

// AsOfT narrows the descriptor to facts at or before t.
func (db DB) AsOfT(t uint64) DB {
	db.AsOf = t
	return db
}

// SinceT narrows the descriptor to facts after t.
func (db DB) SinceT(t uint64) DB {
	db.Since = t
	return db
}

// WithHistory widens the descriptor to all assertions and retractions.
func (db DB) WithHistory() DB {
	db.History = true
	return db
}
