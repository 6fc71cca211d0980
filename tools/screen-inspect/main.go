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
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"syscall"

	"golang.org/x/term"

	"seehuhn.de/go/screens"
	"seehuhn.de/go/screens/internal/config"
	"seehuhn.de/go/screens/screenfile"
	"seehuhn.de/go/screens/tools/internal/buildinfo"
	"seehuhn.de/go/screens/tools/internal/profile"
)

var (
	configArg  = flag.String("config", "", "read settings from `file`")
	passkeyArg = flag.String("p", "", "passkey for encrypted screen files")
	askPasskey = flag.Bool("P", false, "prompt for the passkey")
	pngArg     = flag.String("png", "", "write a threshold preview of the first screen to `file`")
	scaleArg   = flag.Int("scale", 8, "magnification of the preview")
	findArg    = flag.String("find", "", "list the stored screens with the given `name`")
	cpuprofile = flag.String("cpuprofile", "", "write cpu profile to `file`")
	memprofile = flag.String("memprofile", "", "write memory profile to `file`")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "screen-inspect \u2014 show the contents of compiled screen files\n")
		fmt.Fprintf(os.Stderr, "%s\n\n", buildinfo.Short("screen-inspect"))
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  screen-inspect [options] <file.scr>...\n")
		fmt.Fprintf(os.Stderr, "  screen-inspect [options] -find <name>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  screen-inspect Round-text-Cyan-3_1_-1_3.000.scr\n")
		fmt.Fprintf(os.Stderr, "  screen-inspect -P -png cell.png Round-text-Cyan-3_1_-1_3.000.scr\n")
		fmt.Fprintf(os.Stderr, "  screen-inspect -find Round\n")
	}
	flag.Parse()

	if flag.NArg() < 1 && *findArg == "" {
		flag.Usage()
		os.Exit(1)
	}

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	stop, err := profile.Start(*cpuprofile, *memprofile)
	if err != nil {
		return err
	}
	defer stop()

	cfg, err := config.Load(*configArg)
	if err != nil {
		return err
	}
	logger, err := cfg.Logger(os.Stderr)
	if err != nil {
		return err
	}
	opt, err := cfg.StoreOptions(logger)
	if err != nil {
		return err
	}
	switch {
	case *askPasskey:
		fmt.Fprint(os.Stderr, "passkey: ")
		passkey, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return err
		}
		opt.Passkey = string(passkey)
	case *passkeyArg != "":
		opt.Passkey = *passkeyArg
	}

	if *findArg != "" {
		err := find(os.Stdout, cfg.Store.Dir, *findArg)
		if err != nil {
			return err
		}
	}

	var first *screens.Descriptor
	for _, fname := range flag.Args() {
		d, err := inspect(os.Stdout, fname, opt)
		if err != nil {
			return err
		}
		if first == nil {
			first = d
		}
	}

	if *pngArg != "" {
		if first == nil {
			return errors.New("no screen for the preview")
		}
		return writePreview(*pngArg, first, *scaleArg)
	}
	return nil
}

func inspect(w io.Writer, fname string, opt *screenfile.Options) (*screens.Descriptor, error) {
	d, info, err := screenfile.ReadFile(fname, opt)
	if err != nil {
		return nil, err
	}

	fmt.Fprintln(w, fname)
	fmt.Fprintf(w, "  screen      %s/%s (%s)\n", d.Name, d.Detail, d.ObjectType)
	fmt.Fprintf(w, "  frequency   %g lpi at %g°\n", d.Frequency, d.Angle)
	fmt.Fprintf(w, "  geometry    %d %d %d %d (reduced %v)\n",
		d.Geometry.R1, d.Geometry.R2, d.Geometry.R3, d.Geometry.R4,
		d.Geometry.Reduced())
	fmt.Fprintf(w, "  cell        %dx%d, %d levels, %d pixels\n",
		d.XDim, d.YDim, d.Levels, len(d.XCoords))
	fmt.Fprintf(w, "  accurate    %t\n", d.Accurate)
	if d.Transfer != nil {
		fmt.Fprintf(w, "  transfer    %d entries\n", len(d.Transfer))
	}
	fmt.Fprintf(w, "  file        version %d, %s", info.Version, info.ByteOrder)
	if info.Swapped {
		fmt.Fprint(w, " (swapped)")
	}
	if info.Encrypted {
		fmt.Fprint(w, ", encrypted")
	}
	fmt.Fprintln(w)

	status := "ok"
	if !info.Verified {
		status = info.IntegrityErr.Error()
		if opt.Logger != nil {
			opt.Logger.Warn("integrity check failed",
				slog.String("file", fname),
				slog.Any("error", info.IntegrityErr))
		}
	}
	fmt.Fprintf(w, "  integrity   %016x, %s: %s\n", info.Integrity, d.Protection, status)
	return d, nil
}
