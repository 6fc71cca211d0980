// seehuhn.de/go/screens - a cache for compiled halftone screens
// Copyright (C) 2026  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package cache

import (
	"sync/atomic"

	"seehuhn.de/go/screens"
)

// MaxContextColorants is the number of colorant indices a [Context] can
// serve without taking the table lock.
const MaxContextColorants = 16

// Context caches lookup results for one spot on behalf of a single rendering
// thread.
//
// A Context is owned by the goroutine which created it and must not be used
// concurrently.  The table invalidates the context whenever the tracked spot
// is modified.
type Context struct {
	t *Table

	spot  atomic.Int32 // tracked spot, read by the table under its lock
	stale atomic.Bool  // set by the table, cleared by the owner

	slots [screens.NumObjectTypes][MaxContextColorants]*Entry

	hits, misses uint64
}

// NewContext creates the lookup cache for a new rendering thread.
// The context must be closed when the thread finishes.
func (t *Table) NewContext() *Context {
	c := &Context{t: t}
	c.spot.Store(int32(screens.InvalidSpot))

	t.mu.Lock()
	t.contexts[c] = struct{}{}
	t.mu.Unlock()

	return c
}

// Close detaches the context from its table.
func (c *Context) Close() {
	t := c.t
	t.mu.Lock()
	delete(t.contexts, c)
	t.mu.Unlock()
	c.reset(screens.InvalidSpot)
}

// Lookup is like [Table.Lookup], but serves repeated lookups for the same
// spot from the context.  Wildcard colorants, ColorantNone and colorant
// indices outside [0, MaxContextColorants) always go to the table.
func (c *Context) Lookup(spot screens.SpotID, typ screens.ObjectType, colorant screens.Colorant) *Entry {
	if colorant < 0 || int(colorant) >= MaxContextColorants || int(typ) >= screens.NumObjectTypes {
		c.misses++
		return c.t.Lookup(spot, typ, colorant)
	}

	if c.stale.Load() || screens.SpotID(c.spot.Load()) != spot {
		c.reset(spot)
	} else if e := c.slots[typ][colorant]; e != nil {
		c.hits++
		return e
	}

	c.misses++
	e := c.t.Lookup(spot, typ, colorant)
	if e != nil {
		c.slots[typ][colorant] = e
	}
	return e
}

// Stats returns the number of lookups served from the context and the
// number of lookups which went to the table.
func (c *Context) Stats() (hits, misses uint64) {
	return c.hits, c.misses
}

// reset empties the context and starts tracking spot.  The spot must be
// published before the next table lookup, so that concurrent insertions
// into the spot mark the context as stale.
func (c *Context) reset(spot screens.SpotID) {
	c.slots = [screens.NumObjectTypes][MaxContextColorants]*Entry{}
	c.stale.Store(false)
	c.spot.Store(int32(spot))
}

func (c *Context) tracks(spot screens.SpotID) bool {
	return screens.SpotID(c.spot.Load()) == spot
}

// invalidateSpot marks all contexts which track spot as stale.
// The caller must hold the table lock.
func (t *Table) invalidateSpot(spot screens.SpotID) {
	for c := range t.contexts {
		if c.tracks(spot) {
			c.stale.Store(true)
		}
	}
}

// InvalidateContexts marks all contexts of the table as stale.
func (t *Table) InvalidateContexts() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for c := range t.contexts {
		c.stale.Store(true)
	}
}
