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
	"errors"
	"io"
	"io/fs"
	"os"
	"syscall"
)

var (
	// ErrFormat indicates that a file is not a valid screen file.
	ErrFormat = errors.New("not a valid screen file")

	// ErrVersion indicates that a screen file was written by an
	// incompatible version of this package.
	ErrVersion = errors.New("unsupported screen file version")

	// ErrNoKey is returned when a screen requires a key which is not
	// configured.
	ErrNoKey = errors.New("screen key not available")

	// ErrPasskey indicates that a file was encrypted with a different
	// passkey.
	ErrPasskey = errors.New("wrong passkey")

	// ErrIntegrity indicates that the integrity value of a file does not
	// match its contents.
	ErrIntegrity = errors.New("integrity check failed")

	// ErrMismatch indicates that a file does not contain the requested
	// screen.
	ErrMismatch = errors.New("screen does not match")
)

// FormatError is returned when a screen file is malformed.
type FormatError struct {
	Path string
	Err  error
}

func (err *FormatError) Error() string {
	msg := "malformed screen file"
	if err.Path != "" {
		msg += " " + err.Path
	}
	if err.Err != nil {
		msg += ": " + err.Err.Error()
	}
	return msg
}

func (err *FormatError) Unwrap() error {
	return err.Err
}

// failure classifies the errors encountered while loading a candidate file.
type failure int

const (
	// failSkip means that the file is fine but does not match.
	failSkip failure = iota

	// failCorrupt means that the file is damaged and should be deleted.
	failCorrupt

	// failTransient means that the file could not be read at the moment.
	failTransient
)

func (f failure) String() string {
	switch f {
	case failSkip:
		return "skip"
	case failCorrupt:
		return "corrupt"
	case failTransient:
		return "transient"
	}
	return "unknown"
}

func classify(err error) failure {
	switch {
	case isTransient(err):
		return failTransient
	case errors.Is(err, ErrFormat), errors.Is(err, ErrVersion),
		errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return failCorrupt
	}
	var formatErr *FormatError
	if errors.As(err, &formatErr) {
		return failCorrupt
	}
	return failSkip
}

func isTransient(err error) bool {
	switch {
	case errors.Is(err, fs.ErrPermission),
		errors.Is(err, syscall.EINTR),
		errors.Is(err, syscall.EMFILE),
		errors.Is(err, syscall.ENFILE),
		errors.Is(err, os.ErrDeadlineExceeded),
		os.IsTimeout(err):
		return true
	}
	return false
}
