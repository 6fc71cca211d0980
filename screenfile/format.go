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

package screenfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"seehuhn.de/go/screens"
)

// Version is the file format version written by this package.  Files with
// a different version are rejected.
const Version uint32 = 1

const (
	magicPlain     uint32 = 'S'<<24 | 'C'<<16 | 'R'<<8 | '1'
	magicEncrypted uint32 = 'S'<<24 | 'C'<<16 | 'R'<<8 | 'E'
)

// Sizes of the header fields, in bytes.
const (
	sizeFrequency  = 8
	sizeAngle      = 8
	sizeGeometry   = 4 * 4
	sizeDims       = 2 * 4
	sizeLevels     = 4
	sizeLengths    = 2 * 4
	sizeSmallInts  = 4
	maxNameLen     = 32
	sizeName       = maxNameLen
	sizeDetail     = maxNameLen
	sizePlaceholds = 2 * 8

	headerSize = sizeFrequency + sizeAngle + sizeGeometry + sizeDims +
		sizeLevels + sizeLengths + sizeSmallInts + sizeName + sizeDetail +
		sizePlaceholds
)

// The header has a fixed size.  Changing any field requires a new Version.
var (
	_ [headerSize - 136]byte
	_ [136 - headerSize]byte
)

const (
	passkeyBlockSize = saltSize + checkSize

	// maxGridLen limits the size of the arrays in a file.  This protects
	// against allocating huge amounts of memory for corrupt files.
	maxGridLen = 1 << 24
)

// byteOrder can both decode and append fixed-width integers.
type byteOrder interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// appendOrder returns the byteOrder with the same layout as o.  If o is nil,
// the byte order of the current machine is used.
func appendOrder(o binary.ByteOrder) byteOrder {
	switch {
	case o == nil:
		return binary.NativeEndian
	case isLittleEndian(o):
		return binary.LittleEndian
	default:
		return binary.BigEndian
	}
}

// header flags
const (
	flagTransfer  = 1 << 0
	flagEncrypted = 1 << 1
)

// header holds the scalar fields of a screen file.
type header struct {
	Frequency   float64
	Angle       float64
	Geometry    screens.Geometry
	XDim, YDim  int32
	Levels      int32
	TransferLen uint32
	GridLen     uint32
	ObjectType  screens.ObjectType
	Accurate    bool
	Protection  screens.Protection
	Flags       uint8
	Name        string
	Detail      string
}

func newHeader(d *screens.Descriptor, encrypted bool) (*header, error) {
	if len(d.Name) > maxNameLen || len(d.Detail) > maxNameLen {
		return nil, fmt.Errorf("screen name %q/%q too long", d.Name, d.Detail)
	}
	if len(d.XCoords) != len(d.YCoords) {
		return nil, errors.New("coordinate grids have different lengths")
	}
	if len(d.XCoords) > maxGridLen || len(d.Transfer) > maxGridLen {
		return nil, errors.New("screen too large")
	}

	h := &header{
		Frequency:   d.Frequency,
		Angle:       d.Angle,
		Geometry:    d.Geometry,
		XDim:        d.XDim,
		YDim:        d.YDim,
		Levels:      d.Levels,
		TransferLen: uint32(len(d.Transfer)),
		GridLen:     uint32(len(d.XCoords)),
		ObjectType:  d.ObjectType,
		Accurate:    d.Accurate,
		Protection:  d.Protection,
		Name:        d.Name,
		Detail:      d.Detail,
	}
	if d.Transfer != nil {
		h.Flags |= flagTransfer
	}
	if encrypted {
		h.Flags |= flagEncrypted
	}
	return h, nil
}

// encode appends the binary form of the header to buf.
func (h *header) encode(buf []byte, order byteOrder) []byte {
	buf = order.AppendUint64(buf, math.Float64bits(h.Frequency))
	buf = order.AppendUint64(buf, math.Float64bits(h.Angle))
	buf = order.AppendUint32(buf, uint32(h.Geometry.R1))
	buf = order.AppendUint32(buf, uint32(h.Geometry.R2))
	buf = order.AppendUint32(buf, uint32(h.Geometry.R3))
	buf = order.AppendUint32(buf, uint32(h.Geometry.R4))
	buf = order.AppendUint32(buf, uint32(h.XDim))
	buf = order.AppendUint32(buf, uint32(h.YDim))
	buf = order.AppendUint32(buf, uint32(h.Levels))
	buf = order.AppendUint32(buf, h.TransferLen)
	buf = order.AppendUint32(buf, h.GridLen)

	var accurate uint8
	if h.Accurate {
		accurate = 1
	}
	buf = append(buf, uint8(h.ObjectType), accurate, uint8(h.Protection), h.Flags)

	buf = appendFixed(buf, h.Name)
	buf = appendFixed(buf, h.Detail)

	// The cached descriptor pointers of the in-memory representation are
	// always stored as zero.
	buf = order.AppendUint64(buf, 0)
	buf = order.AppendUint64(buf, 0)
	return buf
}

func appendFixed(buf []byte, s string) []byte {
	var field [maxNameLen]byte
	copy(field[:], s)
	return append(buf, field[:]...)
}

// decodeHeader reads a header from buf, which must have length headerSize.
func decodeHeader(buf []byte, order binary.ByteOrder) (*header, error) {
	if len(buf) != headerSize {
		return nil, ErrFormat
	}
	h := &header{}
	h.Frequency = math.Float64frombits(order.Uint64(buf[0:]))
	h.Angle = math.Float64frombits(order.Uint64(buf[8:]))
	h.Geometry.R1 = int32(order.Uint32(buf[16:]))
	h.Geometry.R2 = int32(order.Uint32(buf[20:]))
	h.Geometry.R3 = int32(order.Uint32(buf[24:]))
	h.Geometry.R4 = int32(order.Uint32(buf[28:]))
	h.XDim = int32(order.Uint32(buf[32:]))
	h.YDim = int32(order.Uint32(buf[36:]))
	h.Levels = int32(order.Uint32(buf[40:]))
	h.TransferLen = order.Uint32(buf[44:])
	h.GridLen = order.Uint32(buf[48:])
	h.ObjectType = screens.ObjectType(buf[52])
	accurate := buf[53]
	h.Protection = screens.Protection(buf[54])
	h.Flags = buf[55]
	h.Name = string(trimFixed(buf[56:88]))
	h.Detail = string(trimFixed(buf[88:120]))
	// buf[120:136] holds placeholders, which are ignored

	switch {
	case accurate > 1:
		return nil, errors.New("invalid accuracy flag")
	case h.ObjectType >= screens.NumObjectTypes:
		return nil, fmt.Errorf("invalid object type %d", h.ObjectType)
	case h.Protection > screens.ProtectDevice:
		return nil, fmt.Errorf("invalid protection level %d", h.Protection)
	case h.Flags&^(flagTransfer|flagEncrypted) != 0:
		return nil, fmt.Errorf("invalid flags 0x%02x", h.Flags)
	case h.Flags&flagTransfer == 0 && h.TransferLen != 0:
		return nil, errors.New("unexpected transfer array")
	case h.GridLen > maxGridLen || h.TransferLen > maxGridLen:
		return nil, errors.New("array too large")
	case h.XDim < 0 || h.YDim < 0 || h.Levels < 0:
		return nil, errors.New("negative dimension")
	}
	h.Accurate = accurate == 1
	return h, nil
}

func trimFixed(field []byte) []byte {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		return field[:i]
	}
	return field
}

// descriptor returns a descriptor with the scalar fields of h.
func (h *header) descriptor() *screens.Descriptor {
	return &screens.Descriptor{
		Name:       h.Name,
		Detail:     h.Detail,
		ObjectType: h.ObjectType,
		Frequency:  h.Frequency,
		Angle:      h.Angle,
		Geometry:   h.Geometry,
		XDim:       h.XDim,
		YDim:       h.YDim,
		Levels:     h.Levels,
		Accurate:   h.Accurate,
		Protection: h.Protection,
	}
}

// detectOrder determines the byte order of a file from its magic number.
func detectOrder(magic []byte) (order binary.ByteOrder, encrypted bool, err error) {
	for _, order := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
		switch order.Uint32(magic) {
		case magicPlain:
			return order, false, nil
		case magicEncrypted:
			return order, true, nil
		}
	}
	return nil, false, ErrFormat
}

// isLittleEndian reports whether order stores the least significant byte
// first.
func isLittleEndian(order binary.ByteOrder) bool {
	return order.Uint16([]byte{1, 0}) == 1
}

func appendUint16s(buf []byte, order byteOrder, data []uint16) []byte {
	for _, x := range data {
		buf = order.AppendUint16(buf, x)
	}
	return buf
}

func appendInt16s(buf []byte, order byteOrder, data []int16) []byte {
	for _, x := range data {
		buf = order.AppendUint16(buf, uint16(x))
	}
	return buf
}

func decodeUint16s(buf []byte, order binary.ByteOrder) []uint16 {
	res := make([]uint16, len(buf)/2)
	for i := range res {
		res[i] = order.Uint16(buf[2*i:])
	}
	return res
}

func decodeInt16s(buf []byte, order binary.ByteOrder) []int16 {
	res := make([]int16, len(buf)/2)
	for i := range res {
		res[i] = int16(order.Uint16(buf[2*i:]))
	}
	return res
}
