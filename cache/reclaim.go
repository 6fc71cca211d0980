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
	"log/slog"

	"seehuhn.de/go/screens"
	"seehuhn.de/go/screens/lowmem"
)

// reclaimCost is the relative cost of recomputing a dropped screen.  Screens
// can be reloaded from disk, but rebuilding them may be expensive.
const reclaimCost = 2.0

var _ lowmem.Handler = (*Table)(nil)

// RegisterLowMemory registers the table with a low-memory coordinator.
// The returned function removes the registration.
func (t *Table) RegisterLowMemory(c *lowmem.Coordinator) (deregister func()) {
	return c.Register("screen cache", t)
}

// Solicit implements the [lowmem.Handler] interface.
//
// The offer covers all entries last used before the threshold generation,
// except for entries of the page default spot and for ColorantNone entries
// which still serve as a fallback for a recently used entry.  If the table
// lock is not available, Solicit returns false.
func (t *Table) Solicit(threshold uint32) (lowmem.Offer, bool) {
	if !t.mu.TryLock() {
		return lowmem.Offer{}, false
	}
	var total int64
	t.evictableLocked(threshold, func(e *Entry) {
		total += e.cost()
	})
	t.mu.Unlock()

	offer := lowmem.Offer{
		Bytes:     total,
		Cost:      reclaimCost,
		Tier:      lowmem.TierRAM,
		Threshold: threshold,
	}
	return offer, true
}

// Release implements the [lowmem.Handler] interface.
//
// The entries which are evictable at the time of the call are removed, which
// may differ from the entries counted by Solicit.  If the table lock is not
// available, nothing is released and false is returned.
func (t *Table) Release(offer lowmem.Offer) bool {
	if !t.mu.TryLock() {
		return false
	}
	var victims []*Entry
	t.evictableLocked(offer.Threshold, func(e *Entry) {
		victims = append(victims, e)
	})
	spots := make(map[screens.SpotID]struct{})
	for _, e := range victims {
		t.unlinkLocked(e)
		spots[e.Spot] = struct{}{}
	}
	for spot := range spots {
		t.invalidateSpot(spot)
		t.clones.dropSpot(spot)
	}
	t.mu.Unlock()

	for _, e := range victims {
		e.release()
	}
	if len(victims) > 0 {
		t.log.Info("released screens",
			slog.Int("entries", len(victims)),
			slog.Int("spots", len(spots)),
			slog.Uint64("threshold", uint64(offer.Threshold)))
	}
	return len(victims) > 0
}

// evictableLocked calls yield for every entry which may be dropped under
// memory pressure.
func (t *Table) evictableLocked(threshold uint32, yield func(*Entry)) {
	var seg []*Entry
	flush := func() {
		if len(seg) == 0 || seg[0].Spot == t.pageDefault {
			seg = seg[:0]
			return
		}
		for _, x := range seg {
			if x.generation.Load() >= threshold {
				continue
			}
			if x.Colorant == screens.ColorantNone && isFallbackFor(x, seg, threshold) {
				continue
			}
			yield(x)
		}
		seg = seg[:0]
	}

	for _, head := range t.buckets {
		for e := head; e != nil; e = e.next {
			if len(seg) > 0 && seg[0].Spot != e.Spot {
				flush()
			}
			seg = append(seg, e)
		}
		flush()
	}
}

// isFallbackFor reports whether the ColorantNone entry x is the fallback of
// some entry in seg which was used recently.
func isFallbackFor(x *Entry, seg []*Entry, threshold uint32) bool {
	for _, y := range seg {
		if y == x || y.generation.Load() < threshold {
			continue
		}
		if x.Type == screens.TypeDefault || x.Type == y.Type {
			return true
		}
	}
	return false
}
