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

// Package screens defines the shared vocabulary for caching compiled
// halftone screens: spot identifiers, colorant indices, object types and the
// reference-counted screen descriptors themselves.
//
// A halftone screen is expensive to compute and is reused across many
// rendered objects and separations of a job.  The subpackages build on the
// types defined here:
//
//	cache       the in-memory index of screens, keyed by (spot, colorant, type)
//	lowmem      a coordinator which asks caches to give back memory
//	screenfile  a portable, optionally encrypted file format for screens
//
// A [Descriptor] is shared between all holders.  Holders call
// [Descriptor.Retain] when they keep a reference and [Descriptor.Release]
// when they let go of it:
//
//	d := &screens.Descriptor{Name: "Round", Frequency: 60, Angle: 45}
//	d.Retain()
//	... use d ...
//	d.Release()
//
// Once all references are gone, the function registered with
// [Descriptor.OnFree] is called.  Descriptors must not be modified once they
// are shared.
package screens
