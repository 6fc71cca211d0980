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

import "seehuhn.de/go/screens"

// cloneKey identifies a merge request.
type cloneKey struct {
	old, new screens.SpotID
	typ      screens.ObjectType
	colorant screens.Colorant
}

// cloneSlot is one slot of the clone cache.  Slots are linked by index;
// index 0 is never used and acts as the nil link.
type cloneSlot struct {
	prev, next int32
	key        cloneKey
	result     MergeResult
}

type slotList struct {
	first, last int32
}

// cloneCache is a fixed-size MRU cache of merge results.  All slots are
// allocated up front and recycled through a free list.
type cloneCache struct {
	slots  []cloneSlot
	index  map[cloneKey]int32
	active slotList // most recently used first
	free   slotList

	hits, misses uint64
}

func newCloneCache(capacity int) *cloneCache {
	if capacity < 0 {
		capacity = 0
	}
	c := &cloneCache{
		slots: make([]cloneSlot, capacity+1),
		index: make(map[cloneKey]int32, capacity),
	}
	for i := int32(1); i <= int32(capacity); i++ {
		c.pushFront(&c.free, i)
	}
	return c
}

// Get returns a merge result from the cache and marks it as recently used.
func (c *cloneCache) Get(key cloneKey) (MergeResult, bool) {
	i, ok := c.index[key]
	if !ok {
		c.misses++
		return MergeResult{}, false
	}
	c.hits++
	c.unlink(&c.active, i)
	c.pushFront(&c.active, i)
	return c.slots[i].result, true
}

// Put adds a merge result to the cache.  If the cache is full, the least
// recently used result is dropped.
func (c *cloneCache) Put(key cloneKey, result MergeResult) {
	if len(c.slots) <= 1 {
		return
	}

	if i, ok := c.index[key]; ok {
		c.slots[i].result = result
		c.unlink(&c.active, i)
		c.pushFront(&c.active, i)
		return
	}

	i := c.free.first
	if i != 0 {
		c.unlink(&c.free, i)
	} else {
		i = c.active.last
		delete(c.index, c.slots[i].key)
		c.unlink(&c.active, i)
	}

	c.slots[i].key = key
	c.slots[i].result = result
	c.index[key] = i
	c.pushFront(&c.active, i)
}

// dropSpot forgets all results which involve the given spot.
func (c *cloneCache) dropSpot(spot screens.SpotID) {
	i := c.active.first
	for i != 0 {
		next := c.slots[i].next
		s := &c.slots[i]
		if s.key.old == spot || s.key.new == spot ||
			(s.result.Outcome == UseSpot && s.result.Spot == spot) {
			delete(c.index, s.key)
			c.unlink(&c.active, i)
			c.pushFront(&c.free, i)
		}
		i = next
	}
}

// Len returns the number of cached results.
func (c *cloneCache) Len() int {
	return len(c.index)
}

// keys returns the cached keys, most recently used first.
func (c *cloneCache) keys() []cloneKey {
	var res []cloneKey
	for i := c.active.first; i != 0; i = c.slots[i].next {
		res = append(res, c.slots[i].key)
	}
	return res
}

func (c *cloneCache) pushFront(l *slotList, i int32) {
	s := &c.slots[i]
	s.prev = 0
	s.next = l.first
	if l.first != 0 {
		c.slots[l.first].prev = i
	}
	l.first = i
	if l.last == 0 {
		l.last = i
	}
}

func (c *cloneCache) unlink(l *slotList, i int32) {
	s := &c.slots[i]
	if s.prev != 0 {
		c.slots[s.prev].next = s.next
	} else {
		l.first = s.next
	}
	if s.next != 0 {
		c.slots[s.next].prev = s.prev
	} else {
		l.last = s.prev
	}
	s.prev, s.next = 0, 0
}
