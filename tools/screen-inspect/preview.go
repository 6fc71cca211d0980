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


package main

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"

	"golang.org/x/image/draw"

	"seehuhn.de/go/screens"
)

// threshold renders the order in which the pixels of a cell are turned
// on.  Pixels which come first are darkest.
func threshold(d *screens.Descriptor) (*image.Gray, error) {
	w, h := int(d.XDim), int(d.YDim)
	if w <= 0 || h <= 0 {
		return nil, errors.New("screen has no cell")
	}
	img := image.NewGray(image.Rect(0, 0, w, h))
	n := len(d.XCoords)
	for i := range n {
		x := mod(int(d.XCoords[i]), w)
		y := mod(int(d.YCoords[i]), h)
		img.SetGray(x, y, color.Gray{Y: uint8(255 * i / max(n-1, 1))})
	}
	return img, nil
}

func mod(a, n int) int {
	a %= n
	if a < 0 {
		a += n
	}
	return a
}

// writePreview writes the threshold image of d, magnified by scale, to a
// PNG file.
func writePreview(fname string, d *screens.Descriptor, scale int) error {
	src, err := threshold(d)
	if err != nil {
		return err
	}
	scale = max(scale, 1)
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx()*scale, b.Dy()*scale))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)

	out, err := os.Create(fname)
	if err != nil {
		return err
	}
	err = png.Encode(out, dst)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	return err
}
