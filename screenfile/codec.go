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
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"seehuhn.de/go/screens"
)

// FileInfo describes how a screen file was stored.
type FileInfo struct {
	// Version is the format version of the file.
	Version uint32

	// ByteOrder is the byte order of the file.
	ByteOrder binary.ByteOrder

	// Swapped is set if the byte order of the file differs from the byte
	// order of the current machine.
	Swapped bool

	// Encrypted is set if the arrays in the file are encrypted.
	Encrypted bool

	// Integrity is the integrity value stored in the file.
	Integrity uint64

	// Verified is set if the integrity value was checked successfully.
	Verified bool

	// IntegrityErr explains why the integrity value could not be verified.
	// This is either ErrNoKey or ErrIntegrity.
	IntegrityErr error
}

type section struct {
	id   byte
	data []byte
}

// encode writes a screen file for d to w.  If passkey is not empty, the
// arrays are encrypted.
func encode(w io.Writer, d *screens.Descriptor, order byteOrder, passkey string, keys Keys) error {
	ikey, err := keys.integrityKey(d.Protection)
	if err != nil {
		return err
	}

	var fk *fileKey
	if passkey != "" {
		fk, err = newFileKey(passkey)
		if err != nil {
			return err
		}
	}

	h, err := newHeader(d, fk != nil)
	if err != nil {
		return err
	}

	magic := magicPlain
	if fk != nil {
		magic = magicEncrypted
	}
	buf := make([]byte, 0, 8+headerSize+passkeyBlockSize)
	buf = order.AppendUint32(buf, magic)
	buf = order.AppendUint32(buf, Version)
	buf = h.encode(buf, order)
	if fk != nil {
		buf = append(buf, fk.block()...)
	}
	_, err = w.Write(buf)
	if err != nil {
		return err
	}

	var sections []section
	if d.Transfer != nil {
		sections = append(sections, section{sectionTransfer, appendUint16s(nil, order, d.Transfer)})
	}
	sections = append(sections,
		section{sectionXGrid, appendInt16s(nil, order, d.XCoords)},
		section{sectionYGrid, appendInt16s(nil, order, d.YCoords)})
	for _, sec := range sections {
		sw := w
		if fk != nil {
			sw = fk.writer(sec.id, w)
		}
		_, err = sw.Write(sec.data)
		if err != nil {
			return err
		}
	}

	_, err = w.Write(order.AppendUint64(nil, integrity(ikey, d)))
	return err
}

// decode reads a screen file from r.
//
// If match is not nil, it is called as soon as the header has been read.
// If match returns an error, decoding stops and the error is returned.
//
// Errors caused by malformed files are of type *FormatError.  A missing or
// wrong passkey leads to ErrNoKey or ErrPasskey.  Problems with the
// integrity value are reported via FileInfo.IntegrityErr.
func decode(r io.Reader, passkey string, keys Keys, match func(*header) error) (*screens.Descriptor, *FileInfo, error) {
	var start [8]byte
	_, err := io.ReadFull(r, start[:])
	if err != nil {
		return nil, nil, formatError(err)
	}
	order, encrypted, err := detectOrder(start[:4])
	if err != nil {
		return nil, nil, formatError(err)
	}
	info := &FileInfo{
		Version:   order.Uint32(start[4:]),
		ByteOrder: order,
		Swapped:   isLittleEndian(order) != isLittleEndian(binary.NativeEndian),
		Encrypted: encrypted,
	}
	if info.Version != Version {
		return nil, info, formatError(fmt.Errorf("%w %d", ErrVersion, info.Version))
	}

	hbuf := make([]byte, headerSize)
	_, err = io.ReadFull(r, hbuf)
	if err != nil {
		return nil, info, formatError(err)
	}
	h, err := decodeHeader(hbuf, order)
	if err != nil {
		return nil, info, formatError(err)
	}
	if (h.Flags&flagEncrypted != 0) != encrypted {
		return nil, info, formatError(errors.New("inconsistent encryption flag"))
	}
	if match != nil {
		err = match(h)
		if err != nil {
			return nil, info, err
		}
	}

	var fk *fileKey
	if encrypted {
		block := make([]byte, passkeyBlockSize)
		_, err = io.ReadFull(r, block)
		if err != nil {
			return nil, info, formatError(err)
		}
		if passkey == "" {
			return nil, info, ErrNoKey
		}
		fk, err = openFileKey(passkey, block)
		if err != nil {
			return nil, info, err
		}
	}

	readSection := func(id byte, n uint32) ([]byte, error) {
		buf := make([]byte, 2*int(n))
		sr := r
		if fk != nil {
			sr = fk.reader(id, r)
		}
		_, err := io.ReadFull(sr, buf)
		if err != nil {
			return nil, formatError(err)
		}
		return buf, nil
	}

	d := h.descriptor()
	if h.Flags&flagTransfer != 0 {
		buf, err := readSection(sectionTransfer, h.TransferLen)
		if err != nil {
			return nil, info, err
		}
		d.Transfer = decodeUint16s(buf, order)
	}
	xbuf, err := readSection(sectionXGrid, h.GridLen)
	if err != nil {
		return nil, info, err
	}
	d.XCoords = decodeInt16s(xbuf, order)
	ybuf, err := readSection(sectionYGrid, h.GridLen)
	if err != nil {
		return nil, info, err
	}
	d.YCoords = decodeInt16s(ybuf, order)

	var tail [8]byte
	_, err = io.ReadFull(r, tail[:])
	if err != nil {
		return nil, info, formatError(err)
	}
	var extra [1]byte
	if n, _ := io.ReadFull(r, extra[:]); n > 0 {
		return nil, info, formatError(errors.New("unexpected data after end of screen"))
	}

	info.Integrity = order.Uint64(tail[:])
	ikey, err := keys.integrityKey(h.Protection)
	switch {
	case err != nil:
		info.IntegrityErr = err
	case integrity(ikey, d) != info.Integrity:
		info.IntegrityErr = ErrIntegrity
	default:
		info.Verified = true
	}
	return d, info, nil
}

func formatError(err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return &FormatError{Err: err}
}
