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
	"cmp"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/agnivade/levenshtein"
)

// maxSuggestions limits the number of alternatives shown by find.
const maxSuggestions = 3

// storedNames maps the screen names in dir to the files which hold them.
func storedNames(dir string) (map[string][]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	res := make(map[string][]string)
	for _, e := range entries {
		fname := e.Name()
		if e.IsDir() || !strings.HasSuffix(fname, ".scr") {
			continue
		}
		name, _, ok := strings.Cut(fname, "-")
		if !ok {
			continue
		}
		res[name] = append(res[name], fname)
	}
	return res, nil
}

// suggest returns the known names closest to name, best match first.
func suggest(name string, known []string) []string {
	type scored struct {
		name string
		dist int
	}
	limit := max(len(name)/2, 2)
	var cands []scored
	for _, k := range known {
		dist := levenshtein.ComputeDistance(strings.ToLower(name), strings.ToLower(k))
		if dist <= limit {
			cands = append(cands, scored{k, dist})
		}
	}
	slices.SortFunc(cands, func(a, b scored) int {
		if c := cmp.Compare(a.dist, b.dist); c != 0 {
			return c
		}
		return strings.Compare(a.name, b.name)
	})

	var res []string
	for _, c := range cands[:min(len(cands), maxSuggestions)] {
		res = append(res, c.name)
	}
	return res
}

// find lists the files for the screen name in dir.  If there are none, the
// most similar stored names are shown.  Names are compared in their file
// name form.
func find(w io.Writer, dir, name string) error {
	stored, err := storedNames(dir)
	if err != nil {
		return err
	}

	if files := stored[name]; len(files) > 0 {
		slices.Sort(files)
		for _, f := range files {
			fmt.Fprintln(w, f)
		}
		return nil
	}

	alt := suggest(name, slices.Sorted(maps.Keys(stored)))
	if len(alt) == 0 {
		return fmt.Errorf("no screen %q in %s", name, dir)
	}
	return fmt.Errorf("no screen %q in %s, did you mean %s?",
		name, dir, strings.Join(alt, ", "))
}
