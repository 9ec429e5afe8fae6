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
	"github.com/exascience/elimpute/genotype"
	"github.com/exascience/elimpute/hmm"
)

// phase decodes which donor explains each site of a hybrid hypothesis.
// It returns nil if there are too few informative sites, or too many
// sites where the sample disagrees with two agreeing donors.
func (s *search) phase(h *DonorHypothesis) *DonorHypothesis {
	donors := s.seg.Donors
	start, end := h.StartSite(), h.EndSite()
	if end >= donors.NumSites() {
		end = donors.NumSites() - 1
	}
	if last := s.target.NumSites() - 1 - s.seg.Offset; end > last {
		end = last
	}
	if end < start {
		return nil
	}
	var obs []byte
	var positions []int32
	var informative []int
	nonMendelian := 0
	for cs := start; cs <= end; cs++ {
		t := s.target.Call(s.sample, s.seg.TargetSite(cs))
		c1, c2 := donors.Call(h.Donor1, cs), donors.Call(h.Donor2, cs)
		if t == genotype.Unknown || c1 == genotype.Unknown || c2 == genotype.Unknown ||
			t == genotype.Gap || c1 == genotype.Gap || c2 == genotype.Gap {
			continue
		}
		if c1 == c2 {
			if t != c1 {
				nonMendelian++
			}
			continue
		}
		o := hmm.ObsHet
		switch t {
		case c1:
			o = hmm.ObsDonor1
		case c2:
			o = hmm.ObsDonor2
		}
		obs = append(obs, o)
		positions = append(positions, donors.Sites[cs].Position)
		informative = append(informative, cs)
	}
	if len(obs) < s.params.MinInformativeSites {
		return nil
	}
	if float64(nonMendelian)/float64(len(obs)) > s.params.NonMendelianFactor*s.params.MaxInbredError {
		return nil
	}
	span := donors.Sites[end].Position - donors.Sites[start].Position
	states := s.params.Model.Decode(obs, positions, float64(span)/float64(end-start+1))
	phase := make([]byte, end-start+1)
	current := 0
	for cs := start; cs <= end; cs++ {
		for current < len(states)-1 && informative[current+1] <= cs {
			current++
		}
		phase[cs-start] = hmm.StateToPhase(states[current])
	}
	return h.WithPhase(phase)
}

// resolveSegment tries to explain the whole segment with the donors
// that are frequently the best inbred match, alone or in pairs.
func (s *search) resolveSegment(imp *ImputedSample, best [][]*DonorHypothesis) bool {
	blocks := s.numBlocks()
	frequent := FrequentDonors(best, blocks/s.params.FrequentDonorDivisor)
	if len(frequent) == 0 {
		return false
	}
	w := Window{Start: 0, Focus: blocks / 2, End: blocks - 1}
	var accepted []*DonorHypothesis
	for _, h := range s.bestHybrid(w, frequent, frequent, true) {
		if h.ErrorRate() >= s.params.MaxHybridError {
			continue
		}
		if !h.IsInbred() {
			if h = s.phase(h); h == nil {
				continue
			}
		}
		accepted = append(accepted, h)
	}
	if len(accepted) == 0 {
		return false
	}
	imp.SegmentSolved = true
	imp.Apply(s.seg, accepted, false, s.params)
	return true
}
