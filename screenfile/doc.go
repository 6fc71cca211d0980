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

// Package screenfile stores compiled halftone screens on disk.
//
// A screen file holds one [screens.Descriptor], together with its transfer
// array and coordinate grids.  Files can be read back on a machine with a
// different byte order.  The layout is
//
//	magic       4 bytes, "SCR1" (plain) or "SCRE" (encrypted)
//	version     uint32
//	header      136 bytes, the scalar fields of the descriptor
//	passkey     16 bytes salt, 16 bytes check value (encrypted files only)
//	transfer    uint16 values (only if present)
//	x grid      int16 values
//	y grid      int16 values
//	integrity   uint64
//
// All integers use the byte order of the writer.  The reader detects the
// byte order from the magic number.  If a passkey is set, the transfer
// array and the grids are encrypted using AES-256 in CTR mode.
//
// The integrity value is a keyed hash over the cell geometry and the grids.
// The key depends on the protection level of the screen, see
// [screens.Protection].  A file whose integrity value does not match is
// ignored.
//
// Files are named after the screen name, the object type, the detail string
// and the reduced cell geometry, followed by a number which distinguishes
// different files with the same name:
//
//	Round-default-Cyan-3_1_-1_3.000.scr
//
// [Store.Load] tries all files which match the template in turn.  Corrupt
// files are deleted, files which cannot be read at the moment are kept.  If
// no file matches, Load returns nil and no error, and the caller computes
// the screen from scratch.
package screenfile
