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

// resolveBlocks resolves each focus block of a segment separately,
// first with its best inbred donor and then with a donor pair.
func (s *search) resolveBlocks(imp *ImputedSample, best [][]*DonorHypothesis) {
	for focus := 0; focus < s.numBlocks(); focus++ {
		hyps := best[focus]
		if len(hyps) > 0 && hyps[0].ErrorRate() < s.params.MaxInbredError {
			imp.Apply(s.seg, hyps, true, s.params)
			imp.BlocksSolved++
			continue
		}
		w, ok := s.window(focus)
		if !ok {
			continue
		}
		if s.params.HybridSearch && len(hyps) > 0 && hyps[0].ErrorRate() > s.params.MaxInbredError {
			hyps = s.bestHybrid(w, inbredDonors(hyps), s.donors, false)
			best[focus] = hyps
		}
		if len(hyps) > 0 && hyps[0].ErrorRate() < s.params.MaxHybridError {
			imp.Apply(s.seg, hyps, true, s.params)
			imp.BlocksSolved++
		}
	}
}
