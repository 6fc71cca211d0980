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

// Package lowmem coordinates the release of cached memory under memory
// pressure.
//
// Caches register a [Handler] with a [Coordinator].  When memory runs low,
// the coordinator asks every handler what it could give back, and then asks
// the cheapest offers to actually release their memory until enough has been
// freed.  Handlers must never block: a handler which cannot get hold of its
// own locks simply offers nothing.
package lowmem

import (
	"log/slog"
	"slices"
	"sync"
)

// Tier classifies where the memory of an offer lives.
type Tier uint8

// These are the supported tiers.
const (
	TierRAM Tier = iota
	TierDisk
)

func (t Tier) String() string {
	switch t {
	case TierRAM:
		return "ram"
	case TierDisk:
		return "disk"
	}
	return "unknown"
}

// Offer describes memory which a handler is prepared to release.
type Offer struct {
	// Bytes is the number of bytes which would be freed.
	Bytes int64

	// Cost is the relative cost of recomputing the released data.
	// Cheaper offers are taken first.
	Cost float32

	// Tier is the tier the memory belongs to.
	Tier Tier

	// Threshold is the generation the offer was computed for.  Data last
	// used before this generation is eligible for release.
	Threshold uint32
}

// Handler is implemented by caches which can give back memory.
type Handler interface {
	// Solicit computes an offer for the given threshold generation.
	// If the handler cannot compute an offer without blocking, it returns
	// false.
	Solicit(threshold uint32) (Offer, bool)

	// Release frees the memory described by an offer previously returned by
	// Solicit.  It reports whether anything was committed.  Release must not
	// block.
	Release(offer Offer) bool
}

// Coordinator is a registry of low-memory handlers.
// A Coordinator is safe for concurrent use.
type Coordinator struct {
	mu       sync.Mutex
	handlers []*registration
	log      *slog.Logger
}

type registration struct {
	name string
	h    Handler
}

// NewCoordinator returns a new coordinator.  If logger is nil,
// slog.Default() is used.
func NewCoordinator(logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		log: logger.With(slog.String("component", "lowmem")),
	}
}

// Register adds a handler.  The returned function removes the handler again.
func (c *Coordinator) Register(name string, h Handler) (deregister func()) {
	reg := &registration{name: name, h: h}

	c.mu.Lock()
	c.handlers = append(c.handlers, reg)
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.handlers = slices.DeleteFunc(c.handlers, func(r *registration) bool {
			return r == reg
		})
	}
}

// Len returns the number of registered handlers.
func (c *Coordinator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handlers)
}

type candidate struct {
	reg   *registration
	offer Offer
}

// Reclaim tries to free at least want bytes of data last used before the
// threshold generation.  Offers are taken in order of increasing cost, RAM
// before disk.  The return value is the number of bytes committed by the
// handlers.
func (c *Coordinator) Reclaim(threshold uint32, want int64) int64 {
	c.mu.Lock()
	regs := slices.Clone(c.handlers)
	c.mu.Unlock()

	var cands []candidate
	for _, reg := range regs {
		offer, ok := reg.h.Solicit(threshold)
		if !ok || offer.Bytes <= 0 {
			continue
		}
		cands = append(cands, candidate{reg: reg, offer: offer})
	}
	slices.SortStableFunc(cands, func(a, b candidate) int {
		if a.offer.Tier != b.offer.Tier {
			return int(a.offer.Tier) - int(b.offer.Tier)
		}
		switch {
		case a.offer.Cost < b.offer.Cost:
			return -1
		case a.offer.Cost > b.offer.Cost:
			return 1
		}
		return 0
	})

	var freed int64
	for _, cand := range cands {
		if freed >= want {
			break
		}
		if !cand.reg.h.Release(cand.offer) {
			c.log.Debug("offer withdrawn", slog.String("handler", cand.reg.name))
			continue
		}
		freed += cand.offer.Bytes
	}
	if freed > 0 {
		c.log.Info("memory reclaimed",
			slog.Int64("bytes", freed),
			slog.Int64("wanted", want),
			slog.Int("offers", len(cands)))
	}
	return freed
}
