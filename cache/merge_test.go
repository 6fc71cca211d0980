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
	"testing"

	"github.com/google/go-cmp/cmp"

	"seehuhn.de/go/screens"
)

// TestScenarioB checks that merging two spots with identical screens for the
// requested key keeps the old spot.
func TestScenarioB(t *testing.T) {
	tab := newTestTable(nil)
	d := newDesc("shared")
	insert(tab, 10, screens.TypeDefault, 3, d)
	insert(tab, 20, screens.TypeDefault, 3, d)

	res, err := tab.MergeSpot(10, 20, screens.TypeDefault, 3)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(MergeResult{Outcome: UseOld}, res); d != "" {
		t.Errorf("unexpected result (-want +got):\n%s", d)
	}
	if d := cmp.Diff([]screens.SpotID{10, 20}, tab.Spots()); d != "" {
		t.Errorf("unexpected spots (-want +got):\n%s", d)
	}
	if tab.Len() != 2 {
		t.Errorf("Len() = %d, want 2", tab.Len())
	}
}

func TestMergeNoColorant(t *testing.T) {
	tab := newTestTable(nil)
	insert(tab, 10, screens.TypeDefault, screens.ColorantNone, newDesc("a"))
	insert(tab, 20, screens.TypeDefault, 1, newDesc("b"))

	res, err := tab.MergeSpot(10, 20, screens.TypeText, 3)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != UseOld {
		t.Errorf("got %v, want UseOld", res)
	}
	if tab.Len() != 2 {
		t.Errorf("Len() = %d, want 2", tab.Len())
	}
}

// TestMergeExtend checks that a missing key is copied into the old spot.
func TestMergeExtend(t *testing.T) {
	tab := newTestTable(nil)
	d1 := newDesc("one")
	d2 := newDesc("two")
	insert(tab, 10, screens.TypeDefault, screens.ColorantNone, d1)
	insert(tab, 20, screens.TypeDefault, 3, d2)

	// TypeText is resolved to the TypeDefault entry of spot 20
	res, err := tab.MergeSpot(10, 20, screens.TypeText, 3)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != UseOld {
		t.Fatalf("got %v, want UseOld", res)
	}
	e := tab.LookupExact(10, screens.TypeDefault, 3)
	if e == nil || e.Screen != d2 {
		t.Fatalf("entry not copied into the old spot: %v", e)
	}
	if d2.Refs() != 2 {
		t.Errorf("descriptor has %d references, want 2", d2.Refs())
	}
}

// TestMergeExtendEquivalent checks that an existing spot is reused when the
// extended old spot would duplicate it.
func TestMergeExtendEquivalent(t *testing.T) {
	tab := newTestTable(nil)
	d1 := newDesc("one")
	d2 := newDesc("two")
	insert(tab, 10, screens.TypeDefault, screens.ColorantNone, d1)
	insert(tab, 20, screens.TypeDefault, 3, d2)
	insert(tab, 30, screens.TypeDefault, screens.ColorantNone, d1)
	insert(tab, 30, screens.TypeDefault, 3, d2)

	res, err := tab.MergeSpot(10, 20, screens.TypeDefault, 3)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(MergeResult{Outcome: UseSpot, Spot: 30}, res); d != "" {
		t.Errorf("unexpected result (-want +got):\n%s", d)
	}
	if e := tab.LookupExact(10, screens.TypeDefault, 3); e != nil {
		t.Errorf("temporary entry %v was not removed", e)
	}
	if tab.Len() != 4 {
		t.Errorf("Len() = %d, want 4", tab.Len())
	}
	if d2.Refs() != 2 {
		t.Errorf("descriptor has %d references, want 2", d2.Refs())
	}
}

func setupConflict(tab *Table) (d1, d1b, d2 *screens.Descriptor) {
	d1 = newDesc("one")
	d1b = newDesc("one b")
	d2 = newDesc("two")
	insert(tab, 10, screens.TypeDefault, screens.ColorantNone, d1)
	insert(tab, 10, screens.TypeDefault, 3, d1b)
	insert(tab, 10, screens.TypeText, 3, d1b)
	insert(tab, 20, screens.TypeDefault, 3, d2)
	return d1, d1b, d2
}

// TestMergeClone checks that conflicting screens lead to a synthetic clone
// of the old spot, and that repeated merges are answered from the cache.
func TestMergeClone(t *testing.T) {
	tab := newTestTable(nil)
	d1, d1b, d2 := setupConflict(tab)

	res, err := tab.MergeSpot(10, 20, screens.TypeDefault, 3)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(MergeResult{Outcome: UseSpot, Spot: -1}, res); d != "" {
		t.Fatalf("unexpected result (-want +got):\n%s", d)
	}
	if !res.Spot.IsSynthetic() {
		t.Errorf("clone %s is not synthetic", res.Spot)
	}

	var got []key
	for e := range tab.All(0, screens.ColorantAll) {
		if e.Spot == res.Spot {
			got = append(got, keyOf(e))
		}
	}
	want := []key{
		{-1, screens.TypeDefault, screens.ColorantNone},
		{-1, screens.TypeDefault, 3},
		{-1, screens.TypeText, 3},
	}
	if d := cmp.Diff(want, got); d != "" {
		t.Errorf("unexpected clone entries (-want +got):\n%s", d)
	}
	if e := tab.LookupExact(-1, screens.TypeDefault, 3); e == nil || e.Screen != d2 {
		t.Errorf("clone uses the wrong screen: %v", e)
	}
	if e := tab.LookupExact(-1, screens.TypeText, 3); e == nil || e.Screen != d1b {
		t.Errorf("clone uses the wrong text screen: %v", e)
	}
	if d1.Refs() != 2 || d1b.Refs() != 3 || d2.Refs() != 2 {
		t.Errorf("refs = %d, %d, %d, want 2, 3, 2", d1.Refs(), d1b.Refs(), d2.Refs())
	}

	n := tab.Len()
	for i := 0; i < 3; i++ {
		again, err := tab.MergeSpot(10, 20, screens.TypeDefault, 3)
		if err != nil {
			t.Fatal(err)
		}
		if again != res {
			t.Errorf("repeated merge returned %v, want %v", again, res)
		}
	}
	if tab.Len() != n {
		t.Errorf("repeated merges created %d entries", tab.Len()-n)
	}
	hits, misses := tab.CloneStats()
	if hits != 3 || misses != 1 {
		t.Errorf("hits=%d misses=%d, want 3 and 1", hits, misses)
	}
}

// TestMergeExtendDropsClones checks that clones made from a spot are not
// reused after the spot gained a new entry.
func TestMergeExtendDropsClones(t *testing.T) {
	tab := newTestTable(nil)
	s1, s2, s3, s5 := newDesc("s1"), newDesc("s2"), newDesc("s3"), newDesc("s5")
	insert(tab, 1, screens.TypeDefault, screens.ColorantNone, s1)
	insert(tab, 1, screens.TypeDefault, 2, s2)
	insert(tab, 2, screens.TypeDefault, 2, s3)
	insert(tab, 3, screens.TypeDefault, 5, s5)

	first, err := tab.MergeSpot(1, 2, screens.TypeDefault, 2)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(MergeResult{Outcome: UseSpot, Spot: -1}, first); d != "" {
		t.Fatalf("unexpected result (-want +got):\n%s", d)
	}

	res, err := tab.MergeSpot(1, 3, screens.TypeDefault, 5)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(MergeResult{Outcome: UseOld}, res); d != "" {
		t.Fatalf("unexpected result (-want +got):\n%s", d)
	}

	again, err := tab.MergeSpot(1, 2, screens.TypeDefault, 2)
	if err != nil {
		t.Fatal(err)
	}
	if again.Outcome != UseSpot || again.Spot == first.Spot {
		t.Fatalf("repeated merge returned %v, want a new clone", again)
	}
	if e := tab.LookupExact(again.Spot, screens.TypeDefault, 5); e == nil || e.Screen != s5 {
		t.Errorf("clone is missing the extended entry: %v", e)
	}
	if e := tab.LookupExact(again.Spot, screens.TypeDefault, 2); e == nil || e.Screen != s3 {
		t.Errorf("clone uses the wrong screen: %v", e)
	}
}

func TestMergeCloneEquivalent(t *testing.T) {
	tab := newTestTable(nil)
	d1, d1b, d2 := setupConflict(tab)
	insert(tab, 40, screens.TypeDefault, screens.ColorantNone, d1)
	insert(tab, 40, screens.TypeDefault, 3, d2)
	insert(tab, 40, screens.TypeText, 3, d1b)
	n := tab.Len()

	res, err := tab.MergeSpot(10, 20, screens.TypeDefault, 3)
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(MergeResult{Outcome: UseSpot, Spot: 40}, res); d != "" {
		t.Errorf("unexpected result (-want +got):\n%s", d)
	}
	if tab.Len() != n {
		t.Errorf("Len() = %d, want %d", tab.Len(), n)
	}
	if d2.Refs() != 2 {
		t.Errorf("descriptor has %d references, want 2", d2.Refs())
	}

	// the clone id was given back
	tab.mu.Lock()
	id := tab.allocCloneID()
	tab.mu.Unlock()
	if id != -1 {
		t.Errorf("next clone id is %s, want -1", id)
	}
}

// TestMergeNoMemory checks that a failed clone leaves no trace.
func TestMergeNoMemory(t *testing.T) {
	tab := newTestTable(&Options{MaxEntries: 5})
	d1, d1b, d2 := setupConflict(tab)

	_, err := tab.MergeSpot(10, 20, screens.TypeDefault, 3)
	if !errors.Is(err, ErrNoMemory) {
		t.Fatalf("got error %v, want ErrNoMemory", err)
	}
	if tab.Len() != 4 {
		t.Errorf("Len() = %d, want 4", tab.Len())
	}
	if d := cmp.Diff([]screens.SpotID{10, 20}, tab.Spots()); d != "" {
		t.Errorf("unexpected spots (-want +got):\n%s", d)
	}
	if d1.Refs() != 1 || d1b.Refs() != 2 || d2.Refs() != 1 {
		t.Errorf("refs = %d, %d, %d, want 1, 2, 1", d1.Refs(), d1b.Refs(), d2.Refs())
	}
	if tab.clones.Len() != 0 {
		t.Error("failed merge was cached")
	}

	tab.mu.Lock()
	id := tab.allocCloneID()
	tab.mu.Unlock()
	if id != -1 {
		t.Errorf("next clone id is %s, want -1", id)
	}
}

// TestMergeMRU checks that cached merge results are promoted on use and
// that the least recently used result is evicted.
func TestMergeMRU(t *testing.T) {
	tab := newTestTable(&Options{CloneCacheSize: 2})
	d := newDesc("x")
	for _, s := range []screens.SpotID{1, 2, 3, 4} {
		insert(tab, s, screens.TypeDefault, 0, d)
	}

	merge := func(old, new screens.SpotID) {
		t.Helper()
		if _, err := tab.MergeSpot(old, new, screens.TypeDefault, 0); err != nil {
			t.Fatal(err)
		}
	}
	merge(1, 2)
	merge(1, 3)
	merge(1, 2)
	merge(1, 4)

	want := []cloneKey{ck(1, 4), ck(1, 2)}
	tab.mu.Lock()
	got := tab.clones.keys()
	tab.mu.Unlock()
	if d := cmp.Diff(want, got, cmp.AllowUnexported(cloneKey{})); d != "" {
		t.Errorf("unexpected MRU order (-want +got):\n%s", d)
	}
}

func TestEquivalentSpot(t *testing.T) {
	d := newDesc("x")
	m := &screens.ModularRef{Name: "m"}

	type testCase struct {
		name  string
		other []*Entry
		want  screens.SpotID
	}
	cases := []testCase{
		{
			name: "equal",
			other: []*Entry{
				NewEntry(2, screens.TypeDefault, screens.ColorantNone, d, nil, Names{}, screens.Phase{}),
				NewEntry(2, screens.TypeText, 1, d, m, Names{}, screens.Phase{X: 1}),
			},
			want: 2,
		},
		{
			name: "phase differs",
			other: []*Entry{
				NewEntry(2, screens.TypeDefault, screens.ColorantNone, d, nil, Names{}, screens.Phase{}),
				NewEntry(2, screens.TypeText, 1, d, m, Names{}, screens.Phase{X: 2}),
			},
		},
		{
			name: "modular differs",
			other: []*Entry{
				NewEntry(2, screens.TypeDefault, screens.ColorantNone, d, nil, Names{}, screens.Phase{}),
				NewEntry(2, screens.TypeText, 1, d, nil, Names{}, screens.Phase{X: 1}),
			},
		},
		{
			name: "superset",
			other: []*Entry{
				NewEntry(2, screens.TypeDefault, screens.ColorantNone, d, nil, Names{}, screens.Phase{}),
				NewEntry(2, screens.TypeText, 1, d, m, Names{}, screens.Phase{X: 1}),
				NewEntry(2, screens.TypeImage, 1, d, nil, Names{}, screens.Phase{}),
			},
		},
		{
			name: "subset",
			other: []*Entry{
				NewEntry(2, screens.TypeDefault, screens.ColorantNone, d, nil, Names{}, screens.Phase{}),
			},
		},
		{
			name: "missing default",
			other: []*Entry{
				NewEntry(2, screens.TypeText, 1, d, m, Names{}, screens.Phase{X: 1}),
			},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tab := newTestTable(nil)
			tab.Insert(NewEntry(1, screens.TypeDefault, screens.ColorantNone, d, nil, Names{}, screens.Phase{}))
			tab.Insert(NewEntry(1, screens.TypeText, 1, d, m, Names{}, screens.Phase{X: 1}))
			for _, e := range c.other {
				tab.Insert(e)
			}

			// without a hint, the spot must be found by scanning
			if got := tab.EquivalentSpot(1, screens.InvalidSpot); got != c.want {
				t.Errorf("scan: got %s, want %s", got, c.want)
			}
			if got := tab.EquivalentSpot(1, 2); got != c.want {
				t.Errorf("hint: got %s, want %s", got, c.want)
			}
		})
	}
}
