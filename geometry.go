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
	"math"

	"seehuhn.de/go/geom/matrix"
)

// Geometry describes a rational tangent screen cell by the two vectors
// (R1, R2) and (R3, R4) which span the cell, in device pixels.
type Geometry struct {
	R1, R2, R3, R4 int32
}

// quarterTurn rotates a vector (x, y) to (-y, x).
var quarterTurn = matrix.Matrix{0, 1, -1, 0, 0, 0}

// Matrix returns the cell vectors as the rows of a matrix.
func (g Geometry) Matrix() matrix.Matrix {
	return matrix.Matrix{
		float64(g.R1), float64(g.R2),
		float64(g.R3), float64(g.R4),
		0, 0,
	}
}

// Area returns the number of device pixels covered by one cell.
func (g Geometry) Area() int64 {
	a := int64(g.R1)*int64(g.R4) - int64(g.R2)*int64(g.R3)
	if a < 0 {
		a = -a
	}
	return a
}

// Reduced returns the geometry with scaling and rotation removed.
//
// The common factor of all four components is divided out, and the cell is
// turned by multiples of 90 degrees until R1 > 0 and R2 >= 0.  Two screens
// which differ only by resolution or by quarter turns have the same reduced
// geometry.  The zero Geometry is returned unchanged.
func (g Geometry) Reduced() Geometry {
	d := gcd(gcd(abs32(g.R1), abs32(g.R2)), gcd(abs32(g.R3), abs32(g.R4)))
	if d == 0 {
		return g
	}
	if d > 1 {
		g = Geometry{g.R1 / d, g.R2 / d, g.R3 / d, g.R4 / d}
	}
	if g.R1 == 0 && g.R2 == 0 {
		return g
	}

	M := g.Matrix()
	for range 4 {
		if M[0] > 0 && M[1] >= 0 {
			break
		}
		M = M.Mul(quarterTurn)
	}
	return Geometry{
		R1: int32(math.Round(M[0])),
		R2: int32(math.Round(M[1])),
		R3: int32(math.Round(M[2])),
		R4: int32(math.Round(M[3])),
	}
}

func abs32(x int32) int32 {
	if x < 0 {
		return -x
	}
	return x
}

func gcd(a, b int32) int32 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
