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
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"unique"

	"seehuhn.de/go/screens"
)

// ErrNoMemory is returned when an operation would exceed the entry budget
// of a table.
var ErrNoMemory = errors.New("screen cache: out of memory")

const (
	bucketBits = 7
	numBuckets = 1 << bucketBits
)

// Options allows to customize a [Table].
type Options struct {
	// Logger receives diagnostic messages.  If this is nil, slog.Default()
	// is used.
	Logger *slog.Logger

	// MaxEntries limits the number of entries which merges may create.
	// Zero means no limit.
	MaxEntries int

	// CloneCacheSize is the number of merge results remembered.
	// Zero selects the default.
	CloneCacheSize int
}

var defaultOptions = &Options{
	CloneCacheSize: 32,
}

// Table is the index of compiled screens.
// A Table is safe for concurrent use.
type Table struct {
	mu sync.Mutex

	// Within a bucket, the entries of each spot are contiguous and sorted
	// by (colorant, type).
	buckets [numBuckets]*Entry
	n       int

	pageDefault screens.SpotID
	lastClone   screens.SpotID

	clones   *cloneCache
	contexts map[*Context]struct{}

	maxEntries int
	log        *slog.Logger
}

// New allocates a new, empty table.  If opt is nil, default options are used.
func New(opt *Options) *Table {
	if opt == nil {
		opt = defaultOptions
	}
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cloneCacheSize := opt.CloneCacheSize
	if cloneCacheSize == 0 {
		cloneCacheSize = defaultOptions.CloneCacheSize
	}

	return &Table{
		clones:     newCloneCache(cloneCacheSize),
		contexts:   make(map[*Context]struct{}),
		maxEntries: opt.MaxEntries,
		log:        logger.With(slog.String("component", "screencache")),
	}
}

func bucketOf(spot screens.SpotID) int {
	return int((uint32(spot) * 0x9E3779B1) >> (32 - bucketBits))
}

// Insert adds e to the table.  The table takes over the entry, including
// the references it holds.
func (t *Table) Insert(e *Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.insertLocked(e)
	t.invalidateSpot(e.Spot)
	t.clones.dropSpot(e.Spot)
}

func (t *Table) insertLocked(e *Entry) {
	h := bucketOf(e.Spot)

	var prev *Entry
	cur := t.buckets[h]
	for cur != nil && cur.Spot != e.Spot {
		prev, cur = cur, cur.next
	}
	for cur != nil && cur.Spot == e.Spot && !e.less(cur) {
		if debugChecks && cur.sameKey(e) {
			panic(fmt.Sprintf("screen cache: duplicate entry %s", e))
		}
		prev, cur = cur, cur.next
	}

	e.next = cur
	if prev == nil {
		t.buckets[h] = e
	} else {
		prev.next = e
	}
	t.n++

	t.assertBucket(h)
}

// unlinkLocked removes e from its bucket.  The references held by e are not
// released.
func (t *Table) unlinkLocked(e *Entry) bool {
	h := bucketOf(e.Spot)
	var prev *Entry
	for cur := t.buckets[h]; cur != nil; prev, cur = cur, cur.next {
		if cur != e {
			continue
		}
		if prev == nil {
			t.buckets[h] = cur.next
		} else {
			prev.next = cur.next
		}
		cur.next = nil
		t.n--
		return true
	}
	return false
}

// Remove deletes the entry with the given key.  If there is no such entry,
// Remove does nothing.
func (t *Table) Remove(spot screens.SpotID, typ screens.ObjectType, colorant screens.Colorant) {
	t.mu.Lock()
	e := t.findLocked(spot, typ, colorant)
	if e != nil {
		t.unlinkLocked(e)
		t.invalidateSpot(spot)
		t.clones.dropSpot(spot)
	}
	t.mu.Unlock()

	if e != nil {
		e.release()
	}
}

// PurgeSpot removes all entries of a spot which is no longer reachable.
// The page default spot is never purged.  The return value is the number of
// entries removed.
func (t *Table) PurgeSpot(spot screens.SpotID) int {
	t.mu.Lock()
	if spot == t.pageDefault {
		t.mu.Unlock()
		return 0
	}
	victims := t.purgeLocked(spot)
	t.invalidateSpot(spot)
	t.clones.dropSpot(spot)
	t.mu.Unlock()

	for _, e := range victims {
		e.release()
	}
	return len(victims)
}

// purgeLocked unlinks all entries of spot and returns them.
func (t *Table) purgeLocked(spot screens.SpotID) []*Entry {
	var victims []*Entry
	for e := t.segmentLocked(spot); e != nil && e.Spot == spot; e = e.next {
		victims = append(victims, e)
	}
	for _, e := range victims {
		t.unlinkLocked(e)
	}
	return victims
}

// segmentLocked returns the first entry of spot, or nil if the spot has no
// entries.
func (t *Table) segmentLocked(spot screens.SpotID) *Entry {
	for e := t.buckets[bucketOf(spot)]; e != nil; e = e.next {
		if e.Spot == spot {
			return e
		}
	}
	return nil
}

// findLocked returns the entry with exactly the given key.
func (t *Table) findLocked(spot screens.SpotID, typ screens.ObjectType, colorant screens.Colorant) *Entry {
	for e := t.segmentLocked(spot); e != nil && e.Spot == spot; e = e.next {
		if e.Colorant == colorant && e.Type == typ {
			return e
		}
	}
	return nil
}

// lookupLocked finds the best match for the given key.  The second return
// value reports whether the match is exact.
func (t *Table) lookupLocked(spot screens.SpotID, typ screens.ObjectType, colorant screens.Colorant) (*Entry, bool) {
	var typeNone, defaultCi, defaultNone *Entry
	for e := t.segmentLocked(spot); e != nil && e.Spot == spot; e = e.next {
		switch {
		case e.Type == typ && e.Colorant == colorant:
			return e, true
		case e.Type == typ && e.Colorant == screens.ColorantNone:
			typeNone = e
		case e.Type == screens.TypeDefault && e.Colorant == colorant:
			defaultCi = e
		case e.Type == screens.TypeDefault && e.Colorant == screens.ColorantNone:
			defaultNone = e
		}
	}
	switch {
	case typeNone != nil:
		return typeNone, false
	case defaultCi != nil:
		return defaultCi, false
	case defaultNone != nil:
		return defaultNone, false
	}
	return nil, false
}

// Lookup returns the best entry for the given key, or nil if the spot has no
// suitable entry.  See the package documentation for the fallback order.
func (t *Table) Lookup(spot screens.SpotID, typ screens.ObjectType, colorant screens.Colorant) *Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, _ := t.lookupLocked(spot, typ, colorant)
	return e
}

// LookupExact is like Lookup, but returns nil unless there is an entry for
// exactly the given key.
func (t *Table) LookupExact(spot screens.SpotID, typ screens.ObjectType, colorant screens.Colorant) *Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, exact := t.lookupLocked(spot, typ, colorant)
	if !exact {
		return nil
	}
	return e
}

// MarkSpotUsed records that the entries of spot were used in the given
// generation.  Generations never move backwards.
func (t *Table) MarkSpotUsed(spot screens.SpotID, generation uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for e := t.segmentLocked(spot); e != nil && e.Spot == spot; e = e.next {
		if e.generation.Load() < generation {
			e.generation.Store(generation)
		}
	}
}

// SetPageDefaultSpot records the default spot of the current page.
// Entries of this spot are never purged or given back under memory pressure.
func (t *Table) SetPageDefaultSpot(spot screens.SpotID) {
	t.mu.Lock()
	t.pageDefault = spot
	t.mu.Unlock()
}

// PageDefaultSpot returns the spot set by SetPageDefaultSpot.
func (t *Table) PageDefaultSpot() screens.SpotID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pageDefault
}

// WarnCalibration reports whether a calibration warning should be issued
// for the screen used for the given key.  It returns true only the first
// time it is called for each entry.
func (t *Table) WarnCalibration(spot screens.SpotID, typ screens.ObjectType, colorant screens.Colorant) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, _ := t.lookupLocked(spot, typ, colorant)
	if e == nil || e.calibrationWarned {
		return false
	}
	e.calibrationWarned = true
	return true
}

// Len returns the number of entries in the table.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.n
}

// Spots returns the distinct spots in the table, in increasing order.
func (t *Table) Spots() []screens.SpotID {
	t.mu.Lock()
	var res []screens.SpotID
	for _, head := range t.buckets {
		var prev *Entry
		for e := head; e != nil; prev, e = e, e.next {
			if prev == nil || prev.Spot != e.Spot {
				res = append(res, e.Spot)
			}
		}
	}
	t.mu.Unlock()

	slices.Sort(res)
	return res
}

// Visitor is used by [Table.Scan] to report the objects held by a table.
type Visitor interface {
	VisitName(unique.Handle[string])
	VisitScreen(*screens.Descriptor)
	VisitModular(*screens.ModularRef)
}

// Scan reports every name, descriptor and modular reference held by the
// table.  Scan does not allocate memory.  The visitor must not call back into
// the table.
func (t *Table) Scan(v Visitor) {
	var unset unique.Handle[string]

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, head := range t.buckets {
		for e := head; e != nil; e = e.next {
			if e.Names.Color != unset {
				v.VisitName(e.Names.Color)
			}
			if e.Names.Halftone != unset {
				v.VisitName(e.Names.Halftone)
			}
			if e.Screen != nil {
				v.VisitScreen(e.Screen)
			}
			if e.Modular != nil {
				v.VisitModular(e.Modular)
			}
		}
	}
}

// allocCloneID issues a new synthetic spot id.
func (t *Table) allocCloneID() screens.SpotID {
	t.lastClone--
	return t.lastClone
}

// returnCloneID gives back an id obtained from allocCloneID, if no other id
// has been issued since.
func (t *Table) returnCloneID(id screens.SpotID) {
	if id == t.lastClone {
		t.lastClone++
	}
}

// reserveLocked checks whether k more entries fit into the entry budget.
func (t *Table) reserveLocked(k int) error {
	if t.maxEntries > 0 && t.n+k > t.maxEntries {
		return ErrNoMemory
	}
	return nil
}

// checkBucket verifies the ordering invariant of bucket h.
func (t *Table) checkBucket(h int) error {
	seen := make(map[screens.SpotID]bool)
	var prev *Entry
	for e := t.buckets[h]; e != nil; prev, e = e, e.next {
		if bucketOf(e.Spot) != h {
			return fmt.Errorf("entry %s in wrong bucket %d", e, h)
		}
		if prev != nil && prev.Spot == e.Spot {
			if !prev.less(e) {
				return fmt.Errorf("entries %s and %s out of order", prev, e)
			}
			continue
		}
		if seen[e.Spot] {
			return fmt.Errorf("entries of %s are not contiguous", e.Spot)
		}
		seen[e.Spot] = true
	}
	return nil
}

func (t *Table) assertBucket(h int) {
	if !debugChecks {
		return
	}
	if err := t.checkBucket(h); err != nil {
		panic("screen cache: " + err.Error())
	}
}
