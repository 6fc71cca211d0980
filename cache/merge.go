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
)

// Outcome says which spot to use after a merge.
type Outcome uint8

// These are the possible outcomes of a merge.
const (
	// UseOld means that the old spot already covers the request.
	UseOld Outcome = iota

	// UseSpot means that MergeResult.Spot must be used instead of the old
	// spot.
	UseSpot
)

func (o Outcome) String() string {
	switch o {
	case UseOld:
		return "use old"
	case UseSpot:
		return "use spot"
	}
	return "invalid outcome"
}

// MergeResult is the result of [Table.MergeSpot].
type MergeResult struct {
	Outcome Outcome

	// Spot is the spot to use if Outcome is UseSpot.
	Spot screens.SpotID
}

// MergeSpot unifies the screen of newSpot for (typ, colorant) into oldSpot.
//
// If oldSpot already renders the key the same way as newSpot, or if newSpot
// has no screen for the colorant, the result is UseOld.  If oldSpot lacks
// the key, the entry of newSpot is copied into oldSpot.  If oldSpot uses a
// different screen, a synthetic clone of oldSpot is created which uses the
// screen of newSpot for the key, and the result refers to the clone.
// Whenever the resulting set of screens is equivalent to an existing spot,
// the existing spot is used instead.
//
// Results are remembered, so that repeated calls with the same arguments
// return the same result without creating new entries.  On error, the table
// is left unchanged.
func (t *Table) MergeSpot(oldSpot, newSpot screens.SpotID, typ screens.ObjectType, colorant screens.Colorant) (MergeResult, error) {
	t.mu.Lock()
	res, garbage, err := t.mergeLocked(oldSpot, newSpot, typ, colorant)
	t.mu.Unlock()

	for _, e := range garbage {
		e.release()
	}
	return res, err
}

func (t *Table) mergeLocked(oldSpot, newSpot screens.SpotID, typ screens.ObjectType, colorant screens.Colorant) (MergeResult, []*Entry, error) {
	key := cloneKey{old: oldSpot, new: newSpot, typ: typ, colorant: colorant}
	if res, ok := t.clones.Get(key); ok {
		return res, nil, nil
	}

	newEntry := t.findLocked(newSpot, typ, colorant)
	if newEntry == nil && typ != screens.TypeDefault {
		newEntry = t.findLocked(newSpot, screens.TypeDefault, colorant)
	}
	if newEntry == nil {
		// The device does not render this colorant with newSpot, so the
		// default of oldSpot is as good as anything.
		res := MergeResult{Outcome: UseOld}
		t.clones.Put(key, res)
		return res, nil, nil
	}

	var res MergeResult
	var garbage []*Entry
	oldEntry := t.findLocked(oldSpot, newEntry.Type, colorant)
	switch {
	case oldEntry == nil:
		if err := t.reserveLocked(1); err != nil {
			return MergeResult{}, nil, err
		}
		dup := newEntry.dup(oldSpot)
		t.insertLocked(dup)
		t.invalidateSpot(oldSpot)

		if other := t.equivalentLocked(oldSpot, newSpot); other != screens.InvalidSpot {
			t.unlinkLocked(dup)
			garbage = append(garbage, dup)
			res = MergeResult{Outcome: UseSpot, Spot: other}
		} else {
			// oldSpot has changed, so earlier clones of it are out of date
			t.clones.dropSpot(oldSpot)
			res = MergeResult{Outcome: UseOld}
		}

	case oldEntry.sameScreen(newEntry):
		res = MergeResult{Outcome: UseOld}

	default:
		clone, added, err := t.cloneLocked(oldSpot, newEntry)
		if err != nil {
			return MergeResult{}, added, err
		}
		if other := t.equivalentLocked(clone, newSpot); other != screens.InvalidSpot {
			for _, e := range added {
				t.unlinkLocked(e)
			}
			t.returnCloneID(clone)
			garbage = added
			res = MergeResult{Outcome: UseSpot, Spot: other}
		} else {
			t.log.Debug("created clone spot",
				slog.Int("clone", int(clone)),
				slog.Int("old", int(oldSpot)),
				slog.Int("new", int(newSpot)),
				slog.Int("entries", len(added)))
			res = MergeResult{Outcome: UseSpot, Spot: clone}
		}
	}

	t.clones.Put(key, res)
	return res, garbage, nil
}

// cloneLocked creates a synthetic spot which has all entries of oldSpot,
// except that replacement takes the place of the entry with the same key.
// On error, all entries created so far are unlinked and returned, and the
// clone id is given back.
func (t *Table) cloneLocked(oldSpot screens.SpotID, replacement *Entry) (screens.SpotID, []*Entry, error) {
	var src []*Entry
	for e := t.segmentLocked(oldSpot); e != nil && e.Spot == oldSpot; e = e.next {
		if e.sameKey(replacement) {
			continue
		}
		src = append(src, e)
	}
	src = append(src, replacement)

	clone := t.allocCloneID()
	added := make([]*Entry, 0, len(src))
	for _, e := range src {
		if err := t.reserveLocked(1); err != nil {
			for _, a := range added {
				t.unlinkLocked(a)
			}
			t.returnCloneID(clone)
			return screens.InvalidSpot, added, err
		}
		d := e.dup(clone)
		t.insertLocked(d)
		added = append(added, d)
	}
	return clone, added, nil
}

// EquivalentSpot returns a spot, different from candidate, which renders
// every key exactly like candidate does.  The hint is checked first.  If
// there is no such spot, InvalidSpot is returned.
func (t *Table) EquivalentSpot(candidate, hint screens.SpotID) screens.SpotID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.equivalentLocked(candidate, hint)
}

func (t *Table) equivalentLocked(candidate, hint screens.SpotID) screens.SpotID {
	if hint != screens.InvalidSpot && hint != candidate && t.spotsEqualLocked(candidate, hint) {
		return hint
	}

	// Each spot is visited once, at the first entry of its segment.  This
	// is the ColorantNone marker whenever the spot has one.
	for _, head := range t.buckets {
		var prev *Entry
		for e := head; e != nil; prev, e = e, e.next {
			if prev != nil && prev.Spot == e.Spot {
				continue
			}
			if e.Spot == candidate || e.Spot == hint {
				continue
			}
			if t.spotsEqualLocked(candidate, e.Spot) {
				return e.Spot
			}
		}
	}
	return screens.InvalidSpot
}

// spotsEqualLocked reports whether spots a and b have entries for the same
// keys, and whether corresponding entries select identical screening.
func (t *Table) spotsEqualLocked(a, b screens.SpotID) bool {
	ea := t.segmentLocked(a)
	eb := t.segmentLocked(b)
	if ea == nil || eb == nil {
		return false
	}
	for ea != nil && ea.Spot == a && eb != nil && eb.Spot == b {
		if !ea.sameKey(eb) || !ea.sameScreen(eb) {
			return false
		}
		ea, eb = ea.next, eb.next
	}
	aDone := ea == nil || ea.Spot != a
	bDone := eb == nil || eb.Spot != b
	return aDone && bDone
}

// CloneStats returns the number of merge requests answered from the clone
// cache and the number of requests which had to be computed.
func (t *Table) CloneStats() (hits, misses uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.clones.hits, t.clones.misses
}
