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
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"seehuhn.de/go/screens"
	"seehuhn.de/go/screens/cache"
)

const tracerName = "seehuhn.de/go/screens/screenfile"

// Options allows to customize a [Store].
type Options struct {
	// Passkey (optional) is used to encrypt new files and to decrypt
	// existing ones.  Encrypted files cannot be read without a passkey.
	Passkey string

	// Keys holds the secrets for protected screens.
	Keys Keys

	// ByteOrder is used for new files.  If this is nil, the byte order of
	// the current machine is used.
	ByteOrder binary.ByteOrder

	// Logger receives diagnostic messages.  If this is nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Store reads and writes screen files in a directory.
// A Store is safe for concurrent use.
type Store struct {
	dir     string
	passkey string
	keys    Keys
	order   byteOrder
	log     *slog.Logger

	group singleflight.Group

	open func(string) (io.ReadCloser, error)
}

// New returns a store for the screen files in dir.  The directory is
// created when the first file is saved.  If opt is nil, default options
// are used.
func New(dir string, opt *Options) *Store {
	if opt == nil {
		opt = &Options{}
	}
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		dir:     dir,
		passkey: opt.Passkey,
		keys:    opt.Keys,
		order:   appendOrder(opt.ByteOrder),
		log:     logger.With(slog.String("component", "screenfile")),
		open: func(path string) (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// Dir returns the directory of the store.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes d to a new file and returns the file name.
func (s *Store) Save(ctx context.Context, d *screens.Descriptor) (path string, err error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "screenfile.Save",
		trace.WithAttributes(
			attribute.String("screen.name", d.Name),
			attribute.String("screen.type", d.ObjectType.String()),
			attribute.Bool("encrypted", s.passkey != ""),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "save failed")
		} else {
			span.SetAttributes(attribute.String("path", path))
		}
		span.End()
	}()

	err = os.MkdirAll(s.dir, 0o755)
	if err != nil {
		return "", err
	}
	f, err := create(s.dir, Stem(d))
	if err != nil {
		return "", err
	}
	path = f.Name()

	w := bufio.NewWriter(f)
	err = encode(w, d, s.order, s.passkey, s.keys)
	if err == nil {
		err = w.Flush()
	}
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("saving screen %q: %w", d.Name, err)
	}

	s.log.Debug("saved screen",
		slog.String("name", d.Name),
		slog.String("path", path))
	return path, nil
}

// Load reads a screen matching the template.
//
// The template must have the Name, Detail, ObjectType and Geometry of the
// requested screen.  If XDim, YDim or Levels are non-zero, these must match
// as well.  If Accurate is set, only accurate screens are returned.
//
// Candidate files are tried in turn until one matches.  If no file
// matches, nil is returned without an error.  Concurrent calls for the same
// template share a single scan of the directory.  If ctx is cancelled, Load
// returns early with the context's error; a shared scan continues for the
// other callers.
func (s *Store) Load(ctx context.Context, tmpl *screens.Descriptor) (*screens.Descriptor, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "screenfile.Load",
		trace.WithAttributes(
			attribute.String("screen.name", tmpl.Name),
			attribute.String("screen.type", tmpl.ObjectType.String()),
		))
	defer span.End()

	stem := Stem(tmpl)
	ch := s.group.DoChan(loadKey(tmpl), func() (any, error) {
		return s.load(stem, tmpl)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		err := ctx.Err()
		span.RecordError(err)
		span.SetStatus(codes.Error, "load cancelled")
		return nil, err
	case res = <-ch:
	}

	span.SetAttributes(attribute.Bool("shared", res.Shared))
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, "load failed")
		return nil, res.Err
	}
	d, _ := res.Val.(*screens.Descriptor)
	span.SetAttributes(attribute.Bool("found", d != nil))
	return d, nil
}

// loadKey identifies the loads which can share a scan.  Different names can
// map to the same file name stem, so the key uses every field checked by
// matcher.
func loadKey(tmpl *screens.Descriptor) string {
	g := tmpl.Geometry
	return fmt.Sprintf("%q|%q|%d|%d_%d_%d_%d|%d|%d|%d|%t",
		tmpl.Name, tmpl.Detail, tmpl.ObjectType,
		g.R1, g.R2, g.R3, g.R4,
		tmpl.XDim, tmpl.YDim, tmpl.Levels, tmpl.Accurate)
}

func (s *Store) load(stem string, tmpl *screens.Descriptor) (*screens.Descriptor, error) {
	cands, err := candidates(s.dir, stem)
	if err != nil {
		return nil, err
	}

	match := matcher(tmpl)
	for _, c := range cands {
		d, err := s.readCandidate(c.path, match)
		if err == nil {
			s.log.Debug("loaded screen",
				slog.String("name", d.Name),
				slog.String("path", c.path))
			return d, nil
		}

		switch classify(err) {
		case failCorrupt:
			s.log.Warn("deleting corrupt screen file",
				slog.String("path", c.path),
				slog.Any("error", err))
			rmErr := os.Remove(c.path)
			if rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
				s.log.Warn("cannot delete screen file",
					slog.String("path", c.path),
					slog.Any("error", rmErr))
			}
		case failTransient:
			s.log.Warn("cannot read screen file",
				slog.String("path", c.path),
				slog.Any("error", err))
		default:
			s.log.Debug("skipping screen file",
				slog.String("path", c.path),
				slog.Any("error", err))
		}
	}
	return nil, nil
}

func (s *Store) readCandidate(path string, match func(*header) error) (*screens.Descriptor, error) {
	f, err := s.open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d, info, err := decode(bufio.NewReader(f), s.passkey, s.keys, match)
	if err != nil {
		var formatErr *FormatError
		if errors.As(err, &formatErr) {
			formatErr.Path = path
		}
		return nil, err
	}
	if info.IntegrityErr != nil {
		return nil, info.IntegrityErr
	}
	return d, nil
}

// matcher returns a function which checks a file header against a
// template.
func matcher(tmpl *screens.Descriptor) func(*header) error {
	return func(h *header) error {
		switch {
		case h.Name != tmpl.Name,
			h.Detail != tmpl.Detail,
			h.ObjectType != tmpl.ObjectType,
			h.Geometry != tmpl.Geometry,
			tmpl.XDim != 0 && h.XDim != tmpl.XDim,
			tmpl.YDim != 0 && h.YDim != tmpl.YDim,
			tmpl.Levels != 0 && h.Levels != tmpl.Levels,
			tmpl.Accurate && !h.Accurate:
			return ErrMismatch
		}
		return nil
	}
}

// LoadEntry loads a screen matching the template and inserts it into the
// table.  The file is read without holding the table lock.  If no screen
// matches, nil is returned without an error.
func (s *Store) LoadEntry(ctx context.Context, t *cache.Table, spot screens.SpotID,
	typ screens.ObjectType, colorant screens.Colorant,
	tmpl *screens.Descriptor, names cache.Names, phase screens.Phase) (*cache.Entry, error) {
	d, err := s.Load(ctx, tmpl)
	if d == nil {
		return nil, err
	}
	e := cache.NewEntry(spot, typ, colorant, d, nil, names, phase)
	t.Insert(e)
	return e, nil
}

// ReadFile reads a single screen file.  Unlike [Store.Load], ReadFile also
// returns screens whose integrity value cannot be verified; the reason is
// given in FileInfo.IntegrityErr.  If opt is nil, default options are used.
func ReadFile(path string, opt *Options) (*screens.Descriptor, *FileInfo, error) {
	if opt == nil {
		opt = &Options{}
	}
	logger := opt.Logger
	if logger == nil {
		logger = slog.Default()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	d, info, err := decode(bufio.NewReader(f), opt.Passkey, opt.Keys, nil)
	if err != nil {
		var formatErr *FormatError
		if errors.As(err, &formatErr) {
			formatErr.Path = path
		}
		logger.Debug("cannot read screen file",
			slog.String("path", path),
			slog.Any("error", err))
		return nil, info, err
	}
	logger.Debug("read screen file",
		slog.String("path", path),
		slog.String("name", d.Name),
		slog.Bool("swapped", info.Swapped),
		slog.Bool("verified", info.Verified))
	return d, info, nil
}
