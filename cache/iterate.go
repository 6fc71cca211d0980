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
	"iter"

	"seehuhn.de/go/screens"
)

// Iterator walks the entries of a table.  The table is locked from
// [Table.IterateBegin] until [Iterator.End] is called; during this time the
// table must not be modified by the iterating goroutine.
type Iterator struct {
	t        *Table
	minGen   uint32
	colorant screens.Colorant

	bucket int
	cur    *Entry
	ended  bool
}

// IterateBegin locks the table and returns an iterator over the entries used
// in generation minGen or later.
//
// If colorant is a wildcard, all colorants are visited.  Otherwise, the
// iterator visits the entries for the colorant together with the
// ColorantNone entries of every spot, since those are used as defaults for
// the colorant.
func (t *Table) IterateBegin(minGen uint32, colorant screens.Colorant) *Iterator {
	t.mu.Lock()
	return &Iterator{
		t:        t,
		minGen:   minGen,
		colorant: colorant,
	}
}

// Next returns the next matching entry, or nil at the end of the table.
func (it *Iterator) Next() *Entry {
	if it.ended {
		return nil
	}
	for it.bucket < numBuckets {
		if it.cur == nil {
			it.cur = it.t.buckets[it.bucket]
		} else {
			it.cur = it.cur.next
		}
		if it.cur == nil {
			it.bucket++
			continue
		}
		if it.matches(it.cur) {
			return it.cur
		}
	}
	return nil
}

func (it *Iterator) matches(e *Entry) bool {
	if e.generation.Load() < it.minGen {
		return false
	}
	if it.colorant.IsWildcard() {
		return true
	}
	return e.Colorant == it.colorant || e.Colorant == screens.ColorantNone
}

// Restart moves the iterator back to the start of the table.
func (it *Iterator) Restart() {
	if it.ended {
		return
	}
	it.bucket = 0
	it.cur = nil
}

// End unlocks the table.  Calling End more than once has no effect.
func (it *Iterator) End() {
	if it.ended {
		return
	}
	it.ended = true
	it.cur = nil
	it.t.mu.Unlock()
}

// All returns an iterator over the entries selected as for
// [Table.IterateBegin].  The table is locked while the loop runs.
func (t *Table) All(minGen uint32, colorant screens.Colorant) iter.Seq[*Entry] {
	return func(yield func(*Entry) bool) {
		it := t.IterateBegin(minGen, colorant)
		defer it.End()
		for e := it.Next(); e != nil; e = it.Next() {
			if !yield(e) {
				return
			}
		}
	}
}
