// elImpute: a high-performance tool for imputing GBS genotypes.
// Copyright (c) 2020 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/exascience/elimpute/blob/master/LICENSE.txt>.

package panel

import (
	"log"
	"sort"

	"github.com/bits-and-blooms/bitset"
	"github.com/exascience/pargo/parallel"

	"github.com/exascience/elimpute/genotype"
)

type (
	// ConflictMask classifies every donor site of a segment against
	// the target's major and minor alleles.
	ConflictMask struct {
		// Good sites are comparable as is.
		Good *bitset.BitSet
		// Swap sites have major and minor inverted.
		Swap *bitset.BitSet
		// Error sites disagree on the major allele, or have no
		// matching target site.
		Error *bitset.BitSet
		// Invariant sites have no donor minor allele.
		Invariant *bitset.BitSet
	}

	// Segment is a donor panel mapped onto target coordinates.
	Segment struct {
		*Panel
		// Offset is the target site of the first donor site, or -1
		// if the panel cannot be mapped.
		Offset int
		Mask   ConflictMask
	}
)

// Mappable returns false if the segment's first position does not
// occur in the target.
func (s *Segment) Mappable() bool {
	return s.Offset >= 0
}

// TargetSite converts a donor site to a target site.
func (s *Segment) TargetSite(site int) int {
	return s.Offset + site
}

// NumBlocks returns the number of 64-site blocks of the segment.
func (s *Segment) NumBlocks() int {
	return s.Donors.NumWords()
}

// Harmonize maps a donor panel onto the target and computes its
// conflict mask.
func Harmonize(target *genotype.Matrix, p *Panel) *Segment {
	donors := p.Donors
	n := uint(donors.NumSites())
	seg := &Segment{
		Panel:  p,
		Offset: -1,
		Mask: ConflictMask{
			Good:      bitset.New(n),
			Swap:      bitset.New(n),
			Error:     bitset.New(n),
			Invariant: bitset.New(n),
		},
	}
	if n == 0 {
		return seg
	}
	first := donors.Sites[0]
	seg.Offset = target.SiteOfPosition(first.Chrom, first.Position)
	if seg.Offset < 0 {
		seg.Mask.Error = seg.Mask.Error.Complement()
		return seg
	}
	for i := range donors.Sites {
		d := &donors.Sites[i]
		t := seg.Offset + i
		switch {
		case t >= target.NumSites() || target.Sites[t].Chrom != d.Chrom || target.Sites[t].Position != d.Position:
			seg.Mask.Error.Set(uint(i))
		case d.Minor == genotype.AlleleUnknown:
			seg.Mask.Invariant.Set(uint(i))
		case target.Sites[t].Major == d.Minor && target.Sites[t].Minor == d.Major:
			seg.Mask.Swap.Set(uint(i))
		case target.Sites[t].Major != d.Major:
			seg.Mask.Error.Set(uint(i))
		default:
			seg.Mask.Good.Set(uint(i))
		}
	}
	return seg
}

// HarmonizeAll harmonizes all panels in parallel and returns the
// segments ordered by their offset in the target. Unmappable segments
// come last.
func HarmonizeAll(target *genotype.Matrix, panels []*Panel) []*Segment {
	segments := make([]*Segment, len(panels))
	parallel.Range(0, len(panels), 0, func(low, high int) {
		for i := low; i < high; i++ {
			segments[i] = Harmonize(target, panels[i])
		}
	})
	for _, seg := range segments {
		if !seg.Mappable() {
			log.Printf("Donor file %v cannot be mapped onto the target\n", seg.Path)
			continue
		}
		log.Printf("Donor file %v offset:%v Good:%v Swap:%v Error:%v Invariant:%v\n", seg.Path, seg.Offset,
			seg.Mask.Good.Count(), seg.Mask.Swap.Count(), seg.Mask.Error.Count(), seg.Mask.Invariant.Count())
	}
	sort.SliceStable(segments, func(i, j int) bool {
		oi, oj := segments[i].Offset, segments[j].Offset
		if oi < 0 || oj < 0 {
			return oj < 0 && oi >= 0
		}
		return oi < oj
	})
	return segments
}

// shiftWords returns n words of src starting at bit offset.
func shiftWords(src []uint64, offset, n int) []uint64 {
	result := make([]uint64, n)
	ws, bs := offset/64, uint(offset%64)
	for w := range result {
		i := w + ws
		if i < len(src) {
			result[w] = src[i] >> bs
		}
		if bs > 0 && i+1 < len(src) {
			result[w] |= src[i+1] << (64 - bs)
		}
	}
	return result
}

// Arrange extracts the presence vectors of a target sample in the
// coordinates of the segment. Only good sites are kept, plus swapped
// sites with major and minor exchanged when swapFix is set.
func (s *Segment) Arrange(target *genotype.Matrix, sample int, swapFix bool) (major, minor []uint64) {
	n := s.NumBlocks()
	if !s.Mappable() {
		return make([]uint64, n), make([]uint64, n)
	}
	tMj, tMn := target.PresenceWords(sample)
	major = shiftWords(tMj, s.Offset, n)
	minor = shiftWords(tMn, s.Offset, n)
	good, swap := s.Mask.Good.Bytes(), s.Mask.Swap.Bytes()
	for w := range major {
		mj, mn := major[w], minor[w]
		major[w], minor[w] = mj&good[w], mn&good[w]
		if swapFix {
			major[w] |= mn & swap[w]
			minor[w] |= mj & swap[w]
		}
	}
	return major, minor
}
