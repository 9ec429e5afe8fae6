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

package impute

import (
	"sort"

	"github.com/exascience/elimpute/genotype"
	"github.com/exascience/elimpute/panel"
)

// NoDonor marks a breakpoint after which no donor explains the sample.
const NoDonor = -1

// Breakpoint records the donor pair that explains a sample from a
// target site onwards. Donors are numbered across all panels.
type Breakpoint struct {
	Site     int
	Position int32
	Donor1   int
	Donor2   int
}

func (b Breakpoint) samePair(other Breakpoint) bool {
	return b.Donor1 == other.Donor1 && b.Donor2 == other.Donor2
}

// ImputedSample is the working state of one sample during imputation.
type ImputedSample struct {
	Sample int
	Name   string
	// Original is the sample's row in the target and must not be
	// modified.
	Original []byte
	// Imputed holds the donor estimates for the sites that were
	// written, and the original calls elsewhere.
	Imputed []byte
	// Resolved combines the original calls with the donor estimates.
	Resolved []byte
	// Provenance is 0 for untouched sites, or +/-k if the site was
	// written from the k-th hypothesis, negative when the leading
	// hypothesis was not phased.
	Provenance []int8

	SegmentSolved  bool
	SegmentsSolved int
	BlocksSolved   int
	// Distances holds the per-block distances to the donors of the
	// last segment the sample was compared with, or nil if there was
	// none. The ranking of that segment reads from it.
	Distances *DistanceTable

	target      *genotype.Matrix
	breakpoints []Breakpoint
}

// NewImputedSample creates the working state for a target sample.
func NewImputedSample(target *genotype.Matrix, sample int) *ImputedSample {
	original := target.Calls[sample]
	imp := &ImputedSample{
		Sample:     sample,
		Name:       target.Samples[sample],
		Original:   original,
		Imputed:    append([]byte(nil), original...),
		Resolved:   append([]byte(nil), original...),
		Provenance: make([]int8, len(original)),
		target:     target,
	}
	if target.NumSites() > 0 {
		imp.breakpoints = []Breakpoint{{Site: 0, Position: target.Sites[0].Position, Donor1: NoDonor, Donor2: NoDonor}}
	}
	return imp
}

// putBreakpoint sets the donor pair at a target site, replacing an
// existing entry for the same site.
func (imp *ImputedSample) putBreakpoint(site, donor1, donor2 int) {
	b := Breakpoint{Site: site, Position: imp.target.Sites[site].Position, Donor1: donor1, Donor2: donor2}
	i := sort.Search(len(imp.breakpoints), func(i int) bool { return imp.breakpoints[i].Site >= site })
	switch {
	case i == len(imp.breakpoints):
		imp.breakpoints = append(imp.breakpoints, b)
	case imp.breakpoints[i].Site == site:
		imp.breakpoints[i] = b
	default:
		imp.breakpoints = append(imp.breakpoints, Breakpoint{})
		copy(imp.breakpoints[i+1:], imp.breakpoints[i:])
		imp.breakpoints[i] = b
	}
}

func (imp *ImputedSample) lastBreakpoint() Breakpoint {
	if len(imp.breakpoints) == 0 {
		return Breakpoint{Donor1: NoDonor, Donor2: NoDonor}
	}
	return imp.breakpoints[len(imp.breakpoints)-1]
}

// Breakpoints returns the breakpoints in site order, without entries
// that repeat the donor pair of the previous entry.
func (imp *ImputedSample) Breakpoints() []Breakpoint {
	result := make([]Breakpoint, 0, len(imp.breakpoints))
	for _, b := range imp.breakpoints {
		if n := len(result); n > 0 && result[n-1].samePair(b) {
			continue
		}
		result = append(result, b)
	}
	return result
}

// Apply writes the donor estimates of the given hypotheses over the
// range of the first hypothesis, or only over its focus block. Per
// site, the first hypothesis with an acceptable error rate provides
// the estimate.
func (imp *ImputedSample) Apply(seg *panel.Segment, hyps []*DonorHypothesis, justFocus bool, params *Parameters) {
	if len(hyps) == 0 || hyps[0] == nil {
		return
	}
	donors := seg.Donors
	start, end := hyps[0].StartSite(), hyps[0].EndSite()
	if justFocus {
		start, end = hyps[0].FocusStartSite(), hyps[0].FocusEndSite()
	}
	if end >= donors.NumSites() {
		end = donors.NumSites() - 1
	}
	if last := imp.target.NumSites() - 1 - seg.Offset; end > last {
		end = last
	}
	if end < start {
		return
	}
	prev := imp.lastBreakpoint()
	current := prev
	phased := hyps[0].Phase != nil
	for cs := start; cs <= end; cs++ {
		estimate := genotype.Unknown
		neighbor := int8(0)
		for i := 0; i < len(hyps) && estimate == genotype.Unknown; i++ {
			neighbor++
			h := hyps[i]
			if h == nil || h.ErrorRate() > params.MaxInbredError {
				continue
			}
			c1 := donors.Call(h.Donor1, cs)
			switch h.PhaseForSite(cs) {
			case 0:
				estimate = c1
				if i == 0 {
					current.Donor1, current.Donor2 = seg.Base+h.Donor1, seg.Base+h.Donor1
				}
			case 2:
				estimate = donors.Call(h.Donor2, cs)
				if i == 0 {
					current.Donor1, current.Donor2 = seg.Base+h.Donor2, seg.Base+h.Donor2
				}
			default:
				estimate = genotype.UnphasedNoHets(c1, donors.Call(h.Donor2, cs))
				if i == 0 {
					current.Donor1, current.Donor2 = seg.Base+h.Donor1, seg.Base+h.Donor2
				}
			}
		}
		site := seg.TargetSite(cs)
		if !current.samePair(prev) {
			imp.putBreakpoint(site, current.Donor1, current.Donor2)
			prev = current
		}
		if phased {
			imp.Provenance[site] = neighbor
		} else {
			imp.Provenance[site] = -neighbor
		}
		imp.Imputed[site] = estimate
		known := imp.Original[site]
		switch {
		case known == genotype.Unknown:
			imp.Resolved[site] = estimate
		case genotype.IsHeterozygous(estimate) && params.ResolveHetIfUndercalled && genotype.IsPartiallyEqual(known, estimate):
			imp.Resolved[site] = estimate
		}
	}
	if next := seg.TargetSite(end) + 1; next < imp.target.NumSites() {
		imp.putBreakpoint(next, NoDonor, NoDonor)
	}
}

// CountUnknownAndHets counts missing and heterozygous calls.
func CountUnknownAndHets(calls []byte) (unknown, hets int) {
	for _, call := range calls {
		if call == genotype.Unknown {
			unknown++
		} else if genotype.IsHeterozygous(call) {
			hets++
		}
	}
	return
}
