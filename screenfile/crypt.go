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
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"github.com/xdg-go/stringprep"
)

const (
	saltSize  = 16
	checkSize = 16
)

// sections of an encrypted file
const (
	sectionTransfer byte = 1 + iota
	sectionXGrid
	sectionYGrid
)

var errInvalidPasskey = errors.New("invalid passkey")

var checkLabel = []byte("screens passkey check")

// fileKey holds the encryption key of one file.
type fileKey struct {
	salt [saltSize]byte
	key  [sha256.Size]byte
}

func preparePasskey(passkey string) ([]byte, error) {
	prepped, err := stringprep.SASLprep.Prepare(passkey)
	if err != nil {
		return nil, errInvalidPasskey
	}
	return []byte(prepped), nil
}

// newFileKey derives the key for a new file, using a random salt.
func newFileKey(passkey string) (*fileKey, error) {
	k := &fileKey{}
	if _, err := io.ReadFull(rand.Reader, k.salt[:]); err != nil {
		return nil, err
	}
	return deriveFileKey(passkey, k.salt[:])
}

func deriveFileKey(passkey string, salt []byte) (*fileKey, error) {
	pw, err := preparePasskey(passkey)
	if err != nil {
		return nil, err
	}
	k := &fileKey{}
	copy(k.salt[:], salt)

	h := sha256.New()
	h.Write(pw)
	h.Write(k.salt[:])
	h.Sum(k.key[:0])
	return k, nil
}

// block returns the passkey block stored in the file.
func (k *fileKey) block() []byte {
	buf := make([]byte, 0, passkeyBlockSize)
	buf = append(buf, k.salt[:]...)
	buf = append(buf, k.check()...)
	return buf
}

func (k *fileKey) check() []byte {
	mac := hmac.New(sha256.New, k.key[:])
	mac.Write(checkLabel)
	return mac.Sum(nil)[:checkSize]
}

// openFileKey checks the passkey against the passkey block of a file.
func openFileKey(passkey string, block []byte) (*fileKey, error) {
	if len(block) != passkeyBlockSize {
		return nil, ErrFormat
	}
	k, err := deriveFileKey(passkey, block[:saltSize])
	if err != nil {
		return nil, err
	}
	if !hmac.Equal(k.check(), block[saltSize:]) {
		return nil, ErrPasskey
	}
	return k, nil
}

func (k *fileKey) stream(section byte) cipher.Stream {
	h := sha256.New()
	h.Write(k.salt[:])
	h.Write([]byte{section})
	iv := h.Sum(nil)[:aes.BlockSize]

	c, _ := aes.NewCipher(k.key[:]) // the key always has a valid length
	return cipher.NewCTR(c, iv)
}

// writer encrypts the given section of a file.
func (k *fileKey) writer(section byte, w io.Writer) io.Writer {
	return &cipher.StreamWriter{S: k.stream(section), W: w}
}

// reader decrypts the given section of a file.
func (k *fileKey) reader(section byte, r io.Reader) io.Reader {
	return &cipher.StreamReader{S: k.stream(section), R: r}
}
