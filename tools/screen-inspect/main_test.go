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
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"seehuhn.de/go/screens"
	"seehuhn.de/go/screens/screenfile"
)

func TestSuggest(t *testing.T) {
	known := []string{"Cross", "Ellipse", "Line", "Round", "RoundDot", "Square"}
	type testCase struct {
		name string
		want []string
	}
	cases := []testCase{
		{"round", []string{"Round"}},
		{"Roun", []string{"Round"}},
		{"Rounddot", []string{"RoundDot", "Round"}},
		{"Lines", []string{"Line"}},
		{"Euclidean", nil},
	}
	for _, c := range cases {
		got := suggest(c.name, known)
		if d := cmp.Diff(c.want, got); d != "" {
			t.Errorf("%s: (-want +got):\n%s", c.name, d)
		}
	}
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	for _, fname := range []string{
		"Round-text-any-1_0_0_1.001.scr",
		"Round-text-any-1_0_0_1.000.scr",
		"Square-default-any-1_0_0_1.000.scr",
		"notes.txt",
	} {
		err := os.WriteFile(filepath.Join(dir, fname), nil, 0o644)
		if err != nil {
			t.Fatal(err)
		}
	}

	out := &strings.Builder{}
	if err := find(out, dir, "Round"); err != nil {
		t.Fatal(err)
	}
	want := "Round-text-any-1_0_0_1.000.scr\nRound-text-any-1_0_0_1.001.scr\n"
	if out.String() != want {
		t.Errorf("got %q, want %q", out.String(), want)
	}

	err := find(out, dir, "Squares")
	if err == nil || !strings.Contains(err.Error(), "did you mean Square?") {
		t.Errorf("unexpected error %v", err)
	}
}

func TestThreshold(t *testing.T) {
	d := &screens.Descriptor{
		XDim:    2,
		YDim:    2,
		XCoords: []int16{0, 1, -1, 2},
		YCoords: []int16{0, 0, 1, -1},
	}
	img, err := threshold(d)
	if err != nil {
		t.Fatal(err)
	}
	want := []uint8{0, 85, 255, 170}
	if d := cmp.Diff(want, img.Pix); d != "" {
		t.Errorf("unexpected pixels (-want +got):\n%s", d)
	}

	if _, err := threshold(&screens.Descriptor{}); err == nil {
		t.Error("empty cell accepted")
	}
}

func TestInspectIntegrity(t *testing.T) {
	dir := t.TempDir()
	vendor := []byte("vendor key")
	d := &screens.Descriptor{
		Name:       "Round",
		Detail:     "Cyan",
		ObjectType: screens.TypeText,
		Frequency:  60,
		Angle:      45,
		Geometry:   screens.Geometry{R1: 3, R2: 1, R3: -1, R4: 3},
		XDim:       10,
		YDim:       10,
		Levels:     11,
		Protection: screens.ProtectCustomer,
		XCoords:    []int16{0, 1, -1, 2, -2, 3, -3, 4, -4, 5},
		YCoords:    []int16{5, -5, 6, -6, 7, -7, 8, -8, 9, -9},
	}
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := screenfile.New(dir, &screenfile.Options{
		Keys:   screenfile.Keys{Vendor: vendor, Customer: screenfile.CustomerID("ACME")},
		Logger: quiet,
	})
	path, err := s.Save(context.Background(), d)
	if err != nil {
		t.Fatal(err)
	}

	logBuf := &bytes.Buffer{}
	opt := &screenfile.Options{
		Keys:   screenfile.Keys{Vendor: vendor, Customer: screenfile.CustomerID("Other")},
		Logger: slog.New(slog.NewTextHandler(logBuf, nil)),
	}
	out := &strings.Builder{}
	got, err := inspect(out, path, opt)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Round" {
		t.Errorf("got screen %q, want Round", got.Name)
	}
	if !strings.Contains(out.String(), "  integrity   ") || strings.Contains(out.String(), ": ok\n") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
	msg := logBuf.String()
	if !strings.Contains(msg, "level=WARN") || !strings.Contains(msg, "integrity check failed") {
		t.Errorf("missing warning, log is %q", msg)
	}

	logBuf.Reset()
	opt.Keys.Customer = screenfile.CustomerID("ACME")
	if _, err := inspect(out, path, opt); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(logBuf.String(), "integrity check failed") {
		t.Errorf("unexpected warning %q", logBuf.String())
	}
}
