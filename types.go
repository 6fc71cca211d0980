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
	"fmt"
	"strconv"
)

// SpotID identifies a coherent set of halftone screens which applies to one
// separation family at a point in a job.
//
// Positive values are visible to the user.  Negative values are synthetic
// ids, issued for the results of cloning and merging spots.
type SpotID int32

// InvalidSpot is never used for a real spot.
const InvalidSpot SpotID = 0

// IsSynthetic reports whether s was issued for a clone or merge result.
func (s SpotID) IsSynthetic() bool {
	return s < 0
}

func (s SpotID) String() string {
	if s == InvalidSpot {
		return "spot(invalid)"
	}
	return "spot(" + strconv.Itoa(int(s)) + ")"
}

// Colorant is a device color channel index.  Non-negative values refer to
// actual channels, negative values have special meanings.
type Colorant int32

// These are the special colorant values.
const (
	// ColorantNone marks a screen which applies to any colorant which has
	// no screen of its own.
	ColorantNone Colorant = -1

	// ColorantAll is a wildcard for queries which apply to all colorants.
	ColorantAll Colorant = -2

	// ColorantUnknown is a wildcard for colorants which are not known to
	// the device.
	ColorantUnknown Colorant = -3
)

// IsWildcard reports whether c is one of the query-only wildcard values.
// Wildcards are never stored in a cache.
func (c Colorant) IsWildcard() bool {
	return c == ColorantAll || c == ColorantUnknown
}

func (c Colorant) String() string {
	switch c {
	case ColorantNone:
		return "none"
	case ColorantAll:
		return "all"
	case ColorantUnknown:
		return "unknown"
	}
	return strconv.Itoa(int(c))
}

// ObjectType is the category of rendered content.  Each object type can be
// rendered with its own screen.
type ObjectType uint8

// These are the supported object types.
const (
	TypeDefault ObjectType = iota
	TypeText
	TypeGraphics
	TypeImage

	// NumObjectTypes is the number of distinct object types.
	NumObjectTypes = 4
)

func (t ObjectType) String() string {
	switch t {
	case TypeDefault:
		return "default"
	case TypeText:
		return "text"
	case TypeGraphics:
		return "graphics"
	case TypeImage:
		return "image"
	}
	return fmt.Sprintf("ObjectType(%d)", uint8(t))
}

// Phase is the offset of a screen cell relative to the device origin, in
// device pixels.
type Phase struct {
	X, Y int32
}

// Protection describes how strongly a compiled screen is tied to its
// licensee.  The protection level selects the key used for the integrity
// value of persisted screens.
type Protection uint8

// These are the supported protection levels.
const (
	ProtectNone Protection = iota
	ProtectVendor
	ProtectCustomer
	ProtectDevice
)

func (p Protection) String() string {
	switch p {
	case ProtectNone:
		return "none"
	case ProtectVendor:
		return "vendor"
	case ProtectCustomer:
		return "customer"
	case ProtectDevice:
		return "device"
	}
	return fmt.Sprintf("Protection(%d)", uint8(p))
}
