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
	"sync/atomic"
)

// refCount is an atomic reference count with a hook which runs once the
// last reference is released.
type refCount struct {
	n      atomic.Int32
	mu     sync.Mutex
	onFree func()
}

func (r *refCount) retain() {
	r.n.Add(1)
}

func (r *refCount) release() {
	n := r.n.Add(-1)
	if n < 0 {
		panic("screens: reference count dropped below zero")
	}
	if n > 0 {
		return
	}
	r.mu.Lock()
	fn := r.onFree
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (r *refCount) setOnFree(fn func()) {
	r.mu.Lock()
	r.onFree = fn
	r.mu.Unlock()
}

// Descriptor is a compiled halftone cell.
//
// A Descriptor is immutable once it has been shared.  All holders keep a
// reference via [Descriptor.Retain] and give it up via [Descriptor.Release].
// A freshly constructed Descriptor has no references.
type Descriptor struct {
	// Name is the name of the screen, for example the name of the spot
	// function used to build it.
	Name string

	// Detail (optional) distinguishes screens with the same name, for example
	// by colorant name.  It is used when the screen is persisted.
	Detail string

	// ObjectType is the object type the screen was built for.
	ObjectType ObjectType

	// Frequency is the requested screen frequency in cells per inch.
	Frequency float64

	// Angle is the requested screen angle in degrees.
	Angle float64

	// Geometry describes the screen cell in device pixels.
	Geometry Geometry

	// XDim and YDim are the dimensions of the threshold cell in device pixels.
	XDim, YDim int32

	// Levels is the number of distinct gray levels the screen can render.
	Levels int32

	// Accurate is set if the screen was built using the slower, more
	// accurate screening algorithm.
	Accurate bool

	// Protection is the protection level of the screen.
	Protection Protection

	// Transfer (optional) maps gray levels to threshold levels.
	Transfer []uint16

	// XCoords and YCoords list the cell pixels in the order in which they
	// are turned on.  Both slices have the same length.
	XCoords []int16
	YCoords []int16

	refs refCount
}

// Retain adds a reference to d and returns d.
func (d *Descriptor) Retain() *Descriptor {
	d.refs.retain()
	return d
}

// Release gives up a reference to d.  When the last reference is released,
// the function registered via OnFree is called.
func (d *Descriptor) Release() {
	d.refs.release()
}

// Refs returns the current number of references to d.
func (d *Descriptor) Refs() int32 {
	return d.refs.n.Load()
}

// OnFree registers a function which is called when the last reference to d
// is released.
func (d *Descriptor) OnFree(fn func()) {
	d.refs.setOnFree(fn)
}

// Size returns an estimate of the number of bytes held by d.
func (d *Descriptor) Size() int64 {
	const fixed = 160
	n := int64(fixed + len(d.Name) + len(d.Detail))
	n += 2 * int64(len(d.Transfer))
	n += 2 * int64(len(d.XCoords)+len(d.YCoords))
	return n
}

// ModularRef refers to a pluggable halftone implementation, which is used
// instead of the built-in screen descriptor.
type ModularRef struct {
	Name string

	refs refCount
}

// Retain adds a reference to m and returns m.
func (m *ModularRef) Retain() *ModularRef {
	m.refs.retain()
	return m
}

// Release gives up a reference to m.
func (m *ModularRef) Release() {
	m.refs.release()
}

// Refs returns the current number of references to m.
func (m *ModularRef) Refs() int32 {
	return m.refs.n.Load()
}

// OnFree registers a function which is called when the last reference to m
// is released.
func (m *ModularRef) OnFree(fn func()) {
	m.refs.setOnFree(fn)
}
