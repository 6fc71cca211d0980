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
	"fmt"
	"sync/atomic"
	"unique"

	"seehuhn.de/go/screens"
)

// Names holds interned names associated with a cache entry.  The zero
// handle means that the name is not set.
type Names struct {
	// Color is the name of the colorant or color space the screen was
	// requested for.
	Color unique.Handle[string]

	// Halftone is the name of the halftone the screen was built from.
	Halftone unique.Handle[string]
}

// Intern returns the handle for the interned string s.
func Intern(s string) unique.Handle[string] {
	return unique.Make(s)
}

// Entry is one record of the screen table.
//
// The exported fields must not be changed once the entry has been inserted
// into a table.
type Entry struct {
	Spot     screens.SpotID
	Type     screens.ObjectType
	Colorant screens.Colorant

	// Screen is the compiled screen.  The entry holds a reference.
	Screen *screens.Descriptor

	// Modular (optional) selects an alternate halftone implementation.
	// The entry holds a reference.
	Modular *screens.ModularRef

	Phase screens.Phase
	Names Names

	generation        atomic.Uint32
	calibrationWarned bool // guarded by the table lock
	next              *Entry
}

// NewEntry allocates a new entry.  The entry takes a reference to screen and
// modular, either of which may be nil.  The entry is not part of any table
// until it is passed to [Table.Insert].
func NewEntry(spot screens.SpotID, typ screens.ObjectType, colorant screens.Colorant,
	screen *screens.Descriptor, modular *screens.ModularRef, names Names, phase screens.Phase) *Entry {
	if screen != nil {
		screen.Retain()
	}
	if modular != nil {
		modular.Retain()
	}
	return &Entry{
		Spot:     spot,
		Type:     typ,
		Colorant: colorant,
		Screen:   screen,
		Modular:  modular,
		Phase:    phase,
		Names:    names,
	}
}

// Discard releases the references held by an entry which was never inserted
// into a table.
func (e *Entry) Discard() {
	e.release()
}

// Generation returns the generation in which the entry was last used.
func (e *Entry) Generation() uint32 {
	return e.generation.Load()
}

func (e *Entry) String() string {
	return fmt.Sprintf("%s/%s/%s", e.Spot, e.Type, e.Colorant)
}

func (e *Entry) release() {
	if e.Screen != nil {
		e.Screen.Release()
	}
	if e.Modular != nil {
		e.Modular.Release()
	}
}

// dup returns a copy of e for a different spot.  The copy holds its own
// references.
func (e *Entry) dup(spot screens.SpotID) *Entry {
	d := NewEntry(spot, e.Type, e.Colorant, e.Screen, e.Modular, e.Names, e.Phase)
	d.generation.Store(e.generation.Load())
	return d
}

// sameScreen reports whether e and other select identical screening.
func (e *Entry) sameScreen(other *Entry) bool {
	return e.Screen == other.Screen && e.Modular == other.Modular && e.Phase == other.Phase
}

// sameKey reports whether e and other have the same object type and colorant.
func (e *Entry) sameKey(other *Entry) bool {
	return e.Colorant == other.Colorant && e.Type == other.Type
}

// less reports whether e sorts before other within a spot.
func (e *Entry) less(other *Entry) bool {
	if e.Colorant != other.Colorant {
		return e.Colorant < other.Colorant
	}
	return e.Type < other.Type
}

// cost returns the number of bytes freed by dropping e.
func (e *Entry) cost() int64 {
	const entryOverhead = 96
	n := int64(entryOverhead)
	if e.Screen != nil && e.Screen.Refs() == 1 {
		n += e.Screen.Size()
	}
	return n
}
