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

package screens

import (
	"sync"
	"testing"
)

func TestDescriptorRefCount(t *testing.T) {
	d := &Descriptor{Name: "Round"}
	freed := 0
	d.OnFree(func() { freed++ })

	d.Retain()
	d.Retain()
	if d.Refs() != 2 {
		t.Fatalf("Refs() = %d, want 2", d.Refs())
	}
	d.Release()
	if freed != 0 {
		t.Fatal("descriptor freed while still referenced")
	}
	d.Release()
	if freed != 1 {
		t.Fatalf("OnFree called %d times, want 1", freed)
	}
}

func TestDescriptorConcurrentRefs(t *testing.T) {
	d := &Descriptor{Name: "Ellipse"}
	var mu sync.Mutex
	freed := 0
	d.OnFree(func() {
		mu.Lock()
		freed++
		mu.Unlock()
	})

	d.Retain()
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				d.Retain()
				d.Release()
			}
		}()
	}
	wg.Wait()
	d.Release()

	if freed != 1 {
		t.Errorf("OnFree called %d times, want 1", freed)
	}
}

func TestReleaseBelowZero(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("releasing an unreferenced descriptor did not panic")
		}
	}()
	m := &ModularRef{Name: "test"}
	m.Release()
}

func TestSpecialColorants(t *testing.T) {
	for _, c := range []Colorant{ColorantAll, ColorantUnknown} {
		if !c.IsWildcard() {
			t.Errorf("%s is not a wildcard", c)
		}
	}
	for _, c := range []Colorant{ColorantNone, 0, 7} {
		if c.IsWildcard() {
			t.Errorf("%s is a wildcard", c)
		}
	}
}
