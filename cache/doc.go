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

// Package cache implements the in-memory index of compiled halftone screens.
//
// A [Table] maps (spot, object type, colorant) to an [Entry], which holds a
// shared reference to a [screens.Descriptor] or a [screens.ModularRef].
// Lookups fall back from the exact key to more general entries in the order
//
//	(type, colorant) -> (type, none) -> (default, colorant) -> (default, none)
//
// where "none" is [screens.ColorantNone] and "default" is
// [screens.TypeDefault].
//
// Every rendering thread owns a [Context], which caches the lookup results
// for a single spot and serves repeated lookups without taking the table
// lock.
//
// When regions which use different spots must be composited,
// [Table.MergeSpot] unifies the two spots into one, creating synthetic
// clone spots with negative ids where necessary.  Results of merges are
// remembered in a small, fixed-size cache.
//
// A Table can register itself with a [lowmem.Coordinator], so that entries
// which have not been used for a while are given back under memory pressure.
// The low-memory code paths never block on the table lock.
//
// Internal invariants are checked only when the package is built with the
// "screendebug" build tag.
package cache
