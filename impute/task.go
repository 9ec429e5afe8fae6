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
	"log"
	"math/bits"

	"github.com/exascience/elimpute/genotype"
	"github.com/exascience/elimpute/panel"
)

func countPresent(major, minor []uint64) (count int) {
	for i := range major {
		count += bits.OnesCount64(major[i] | minor[i])
	}
	return count
}

// candidateDonors returns the donors of a segment to compare with a
// sample, leaving out donors with the sample's name if excludeSelf
// is set.
func candidateDonors(seg *panel.Segment, name string, excludeSelf bool) []int {
	donors := make([]int, 0, seg.NumDonors())
	for d, donorName := range seg.Donors.Samples {
		if excludeSelf && donorName == name {
			continue
		}
		donors = append(donors, d)
	}
	return donors
}

// imputeSegment resolves one sample against one segment, first as a
// whole and otherwise block by block.
func imputeSegment(imp *ImputedSample, target *genotype.Matrix, seg *panel.Segment, params *Parameters) {
	major, minor := seg.Arrange(target, imp.Sample, params.SwapFix)
	if countPresent(major, minor) <= params.MinSitesPresent {
		return
	}
	s := &search{
		params: params,
		target: target,
		sample: imp.Sample,
		seg:    seg,
		major:  major,
		minor:  minor,
		donors: candidateDonors(seg, imp.Name, params.ExcludeSelf),
	}
	if len(s.donors) == 0 {
		return
	}
	imp.Distances = NewDistanceTable(major, minor, seg.Donors)
	s.dist = imp.Distances
	best := make([][]*DonorHypothesis, s.numBlocks())
	for focus := range best {
		if w, ok := s.window(focus); ok {
			best[focus] = s.bestInbred(w)
		}
	}
	if s.resolveSegment(imp, best) {
		imp.SegmentsSolved++
		return
	}
	if params.InbredSearch {
		s.resolveBlocks(imp, best)
	}
}

// ImputeSample imputes one target sample against all segments, in
// the order of the segments.
func ImputeSample(target *genotype.Matrix, segments []*panel.Segment, params *Parameters, sample int) *ImputedSample {
	imp := NewImputedSample(target, sample)
	for _, seg := range segments {
		if seg.Mappable() {
			imp.SegmentSolved = false
			imputeSegment(imp, target, seg, params)
		}
	}
	return imp
}

func logProgress(target *genotype.Matrix, imp *ImputedSample, tally Tally) {
	unknown, hets := CountUnknownAndHets(imp.Original)
	resolvedUnknown, resolvedHets := CountUnknownAndHets(imp.Resolved)
	n := float64(len(imp.Resolved))
	log.Printf("Imputing %v:%v Mj:%v Mn:%v Unk:%v Hets:%v Viterbi:%v BlocksSolved:%v Unk:%v PropMissing:%g Het:%v PropHet:%g ErR:%g",
		imp.Sample, imp.Name,
		target.MajorPresence(imp.Sample).Count(), target.MinorPresence(imp.Sample).Count(),
		unknown, hets, imp.SegmentsSolved, imp.BlocksSolved,
		resolvedUnknown, float64(resolvedUnknown)/n, resolvedHets, float64(resolvedHets)/n,
		tally.ErrorRate())
}
