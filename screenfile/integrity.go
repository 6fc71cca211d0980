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
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"os"

	"github.com/google/uuid"

	"seehuhn.de/go/screens"
)

// Keys holds the secrets used for the integrity values of protected screens.
type Keys struct {
	// Vendor is the vendor key.  All protection levels above
	// ProtectNone require this key.
	Vendor []byte

	// Customer identifies the licensee, for ProtectCustomer.
	Customer uuid.UUID

	// Device identifies the machine, for ProtectDevice.
	Device uuid.UUID
}

// CustomerID returns the customer id for a licensee name.
// The same name always gives the same id.
func CustomerID(name string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("customer:"+name))
}

// DeviceIDFromHost returns a device id derived from the host name.
func DeviceIDFromHost() (uuid.UUID, error) {
	host, err := os.Hostname()
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("device:"+host)), nil
}

// integrityKey returns the key for the given protection level.
func (k Keys) integrityKey(p screens.Protection) ([]byte, error) {
	switch p {
	case screens.ProtectNone:
		return nil, nil
	case screens.ProtectVendor:
		if len(k.Vendor) == 0 {
			return nil, ErrNoKey
		}
		return k.Vendor, nil
	case screens.ProtectCustomer:
		return k.derived(k.Customer)
	case screens.ProtectDevice:
		return k.derived(k.Device)
	}
	return nil, ErrNoKey
}

func (k Keys) derived(id uuid.UUID) ([]byte, error) {
	if len(k.Vendor) == 0 || id == uuid.Nil {
		return nil, ErrNoKey
	}
	mac := hmac.New(sha256.New, k.Vendor)
	mac.Write(id[:])
	return mac.Sum(nil), nil
}

// integrity computes the integrity value of a screen.  The value does not
// depend on the byte order of the file.
func integrity(key []byte, d *screens.Descriptor) uint64 {
	mac := hmac.New(sha256.New, key)

	buf := make([]byte, 0, 7*4+4*len(d.XCoords))
	for _, x := range []int32{
		d.Geometry.R1, d.Geometry.R2, d.Geometry.R3, d.Geometry.R4,
		d.XDim, d.YDim, d.Levels,
	} {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(x))
	}
	buf = appendInt16s(buf, binary.LittleEndian, d.XCoords)
	buf = appendInt16s(buf, binary.LittleEndian, d.YCoords)
	mac.Write(buf)

	return binary.LittleEndian.Uint64(mac.Sum(nil))
}
