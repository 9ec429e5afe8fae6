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
	"math/bits"
	"sort"

	"github.com/exascience/elimpute/genotype"
	"github.com/exascience/elimpute/panel"
)

// search holds everything needed to rank donors for one sample
// against one segment.
type search struct {
	params *Parameters
	target *genotype.Matrix
	sample int
	seg    *panel.Segment
	major  []uint64
	minor  []uint64
	dist   *DistanceTable
	donors []int
}

func (s *search) numBlocks() int {
	return len(s.major)
}

func (s *search) window(focus int) (Window, bool) {
	return MinorWindow(s.major, s.minor, focus, s.params.MinMinorCount, s.params.MajorMinorRatio)
}

// bestInbred ranks single donors over a window.
func (s *search) bestInbred(w Window) []*DonorHypothesis {
	ranking := NewRanking(s.params.MaxDonorHypotheses)
	for _, donor := range s.donors {
		d := s.dist.Sum(donor, w.Start, w.End)
		if d.Tested < s.params.MinTestSites {
			continue
		}
		mismatches := int(float64(d.Tested) * d.ErrorRate())
		ranking.Offer(NewDonorHypothesis(s.sample, donor, donor, w.Start, w.Focus, w.End, d.Tested, mismatches))
	}
	return ranking.Results()
}

// mendelErrors counts the tested sites where the sample, donor1 and
// donor2 all have data, and the sample alleles found in neither donor.
func mendelErrors(tMj, tMn, mj1, mn1, mj2, mn2 []uint64, start, end int) (mismatches, tested int) {
	for i := start; i <= end; i++ {
		mask := (tMj[i] | tMn[i]) & (mj1[i] | mn1[i]) & (mj2[i] | mn2[i])
		mismatches += bits.OnesCount64(mask & tMj[i] & (tMj[i] ^ mj1[i]) & (tMj[i] ^ mj2[i]))
		mismatches += bits.OnesCount64(mask & tMn[i] & (tMn[i] ^ mn1[i]) & (tMn[i] ^ mn2[i]))
		tested += bits.OnesCount64(mask)
	}
	return
}

// donorDistance compares two donors over a range of blocks.
func donorDistance(mj1, mn1, mj2, mn2 []uint64, start, end int) (d Distance) {
	for i := start; i <= end; i++ {
		d.Add(BlockDistance(mj1[i], mn1[i], mj2[i], mn2[i]))
	}
	return
}

// bestHybrid ranks donor pairs over a window. For a whole-segment
// search, inbred pairs are allowed and pairs of distinct donors that
// are nearly identical are skipped.
func (s *search) bestHybrid(w Window, donors1, donors2 []int, wholeSegment bool) []*DonorHypothesis {
	ranking := NewRanking(s.params.MaxDonorHypotheses)
	donors := s.seg.Donors
	for _, d1 := range donors1 {
		mj1, mn1 := donors.PresenceWords(d1)
		for _, d2 := range donors2 {
			if wholeSegment && d2 < d1 || !wholeSegment && d1 == d2 {
				continue
			}
			mj2, mn2 := donors.PresenceWords(d2)
			if wholeSegment && d1 != d2 {
				if dd := donorDistance(mj1, mn1, mj2, mn2, w.Start, w.End); dd.Tested > s.params.MinTestSites && dd.ErrorRate() < s.params.MaxInbredError {
					continue
				}
			}
			mismatches, tested := mendelErrors(s.major, s.minor, mj1, mn1, mj2, mn2, w.Start, w.End)
			if tested < s.params.MinTestSites {
				continue
			}
			ranking.Offer(NewDonorHypothesis(s.sample, d1, d2, w.Start, w.Focus, w.End, tested, mismatches))
		}
	}
	return ranking.Results()
}

// FrequentDonors returns, in ascending order, the donors that are the
// best inbred hypothesis in more than minCount blocks.
func FrequentDonors(best [][]*DonorHypothesis, minCount int) []int {
	counts := make(map[int]int)
	for _, hyps := range best {
		if len(hyps) == 0 || hyps[0] == nil {
			continue
		}
		counts[hyps[0].Donor1]++
	}
	var result []int
	for donor, count := range counts {
		if count > minCount {
			result = append(result, donor)
		}
	}
	sort.Ints(result)
	return result
}

func inbredDonors(hyps []*DonorHypothesis) []int {
	result := make([]int, 0, len(hyps))
	for _, h := range hyps {
		if h != nil {
			result = append(result, h.Donor1)
		}
	}
	return result
}
