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
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"seehuhn.de/go/screens"
)

const (
	fileExt = ".scr"

	// maxSerial is the largest disambiguator used for file names.
	maxSerial = 999
)

// Stem returns the part of the file name which is shared by all files for
// screens like d.
func Stem(d *screens.Descriptor) string {
	g := d.Geometry.Reduced()
	detail := d.Detail
	if detail == "" {
		detail = "any"
	}
	return fmt.Sprintf("%s-%s-%s-%d_%d_%d_%d",
		sanitize(d.Name), d.ObjectType, sanitize(detail),
		g.R1, g.R2, g.R3, g.R4)
}

// sanitize makes s safe for use in a file name.  Separators and
// punctuation are replaced by underscores.
func sanitize(s string) string {
	s = norm.NFC.String(s)
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return r
		}
		return '_'
	}, s)
}

func fileName(stem string, serial int) string {
	return fmt.Sprintf("%s.%03d%s", stem, serial, fileExt)
}

// parseSerial extracts the disambiguator from a file name.
func parseSerial(stem, name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, stem+".")
	if !ok {
		return 0, false
	}
	digits, ok := strings.CutSuffix(rest, fileExt)
	if !ok || len(digits) < 3 {
		return 0, false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

type candidate struct {
	path   string
	serial int
}

// candidates lists the files in dir which belong to stem, ordered by their
// disambiguator.
func candidates(dir, stem string) ([]candidate, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	var res []candidate
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		serial, ok := parseSerial(stem, e.Name())
		if !ok {
			continue
		}
		res = append(res, candidate{
			path:   filepath.Join(dir, e.Name()),
			serial: serial,
		})
	}
	slices.SortFunc(res, func(a, b candidate) int {
		return a.serial - b.serial
	})
	return res, nil
}

// create opens a new file for stem, using the first free disambiguator.
func create(dir, stem string) (*os.File, error) {
	for serial := 0; serial <= maxSerial; serial++ {
		path := filepath.Join(dir, fileName(stem, serial))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		return f, err
	}
	return nil, fmt.Errorf("too many screen files for %q", stem)
}
