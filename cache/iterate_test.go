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
	"cmp"
	"slices"
	"testing"

	gocmp "github.com/google/go-cmp/cmp"

	"seehuhn.de/go/screens"
)

func sortKeys(keys []key) {
	slices.SortFunc(keys, func(a, b key) int {
		if c := cmp.Compare(a.Spot, b.Spot); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Colorant, b.Colorant); c != 0 {
			return c
		}
		return cmp.Compare(a.Type, b.Type)
	})
}

func collect(it *Iterator) []key {
	var res []key
	for e := it.Next(); e != nil; e = it.Next() {
		res = append(res, keyOf(e))
	}
	sortKeys(res)
	return res
}

func setupIterate(tab *Table) {
	d := newDesc("x")
	insert(tab, 1, screens.TypeDefault, screens.ColorantNone, d)
	insert(tab, 1, screens.TypeDefault, 2, d)
	insert(tab, 1, screens.TypeDefault, 3, d)
	insert(tab, 1, screens.TypeText, 2, d)
	insert(tab, 2, screens.TypeText, screens.ColorantNone, d)
	insert(tab, 2, screens.TypeDefault, 5, d)
	tab.MarkSpotUsed(1, 7)
}

func TestIterateAll(t *testing.T) {
	tab := newTestTable(nil)
	setupIterate(tab)

	it := tab.IterateBegin(0, screens.ColorantAll)
	got := collect(it)
	it.End()

	want := []key{
		{1, screens.TypeDefault, screens.ColorantNone},
		{1, screens.TypeDefault, 2},
		{1, screens.TypeText, 2},
		{1, screens.TypeDefault, 3},
		{2, screens.TypeText, screens.ColorantNone},
		{2, screens.TypeDefault, 5},
	}
	if d := gocmp.Diff(want, got); d != "" {
		t.Errorf("unexpected entries (-want +got):\n%s", d)
	}
}

// TestIterateColorant checks that a colorant filter also yields the
// ColorantNone entries of every spot, even where specific entries for the
// colorant exist.
func TestIterateColorant(t *testing.T) {
	tab := newTestTable(nil)
	setupIterate(tab)

	it := tab.IterateBegin(0, 2)
	got := collect(it)
	it.End()

	want := []key{
		{1, screens.TypeDefault, screens.ColorantNone},
		{1, screens.TypeDefault, 2},
		{1, screens.TypeText, 2},
		{2, screens.TypeText, screens.ColorantNone},
	}
	if d := gocmp.Diff(want, got); d != "" {
		t.Errorf("unexpected entries (-want +got):\n%s", d)
	}
}

func TestIterateGeneration(t *testing.T) {
	tab := newTestTable(nil)
	setupIterate(tab)

	it := tab.IterateBegin(5, screens.ColorantUnknown)
	got := collect(it)

	want := []key{
		{1, screens.TypeDefault, screens.ColorantNone},
		{1, screens.TypeDefault, 2},
		{1, screens.TypeText, 2},
		{1, screens.TypeDefault, 3},
	}
	if d := gocmp.Diff(want, got); d != "" {
		t.Errorf("unexpected entries (-want +got):\n%s", d)
	}

	// a restarted session produces the same sequence
	it.Restart()
	again := collect(it)
	if d := gocmp.Diff(want, again); d != "" {
		t.Errorf("restart: unexpected entries (-want +got):\n%s", d)
	}

	it.End()
	it.End()
	if e := it.Next(); e != nil {
		t.Errorf("Next after End returned %v", e)
	}
}

func TestIterateEmpty(t *testing.T) {
	tab := newTestTable(nil)
	it := tab.IterateBegin(0, screens.ColorantAll)
	if e := it.Next(); e != nil {
		t.Errorf("got %v from an empty table", e)
	}
	it.End()
}

// TestAllBreak checks that leaving the loop early releases the table.
func TestAllBreak(t *testing.T) {
	tab := newTestTable(nil)
	setupIterate(tab)

	n := 0
	for range tab.All(0, screens.ColorantAll) {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("visited %d entries, want 2", n)
	}

	// this would deadlock if the table were still locked
	if tab.Len() != 6 {
		t.Errorf("Len() = %d, want 6", tab.Len())
	}
}
