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
	"container/heap"
	"fmt"

	"github.com/exascience/elimpute/genotype"
)

// DonorHypothesis proposes that one donor (inbred) or two donors
// (hybrid) explain a sample over a range of blocks.
type DonorHypothesis struct {
	Sample         int
	Donor1, Donor2 int
	StartBlock     int
	FocusBlock     int
	EndBlock       int
	TestedSites    int
	Mismatches     int
	// Phase holds, when set, one entry per site from StartSite:
	// 0 for donor1, 1 for heterozygous, 2 for donor2.
	Phase []byte
}

// NewDonorHypothesis creates a hypothesis with donor1 <= donor2.
func NewDonorHypothesis(sample, donor1, donor2, startBlock, focusBlock, endBlock, tested, mismatches int) *DonorHypothesis {
	if donor1 > donor2 {
		donor1, donor2 = donor2, donor1
	}
	return &DonorHypothesis{
		Sample:      sample,
		Donor1:      donor1,
		Donor2:      donor2,
		StartBlock:  startBlock,
		FocusBlock:  focusBlock,
		EndBlock:    endBlock,
		TestedSites: tested,
		Mismatches:  mismatches,
	}
}

// ErrorRate is the proportion of tested sites that mismatch.
func (h *DonorHypothesis) ErrorRate() float64 {
	if h.TestedSites <= 0 {
		return 1
	}
	return float64(h.Mismatches) / float64(h.TestedSites)
}

// IsInbred returns true if both donors are the same.
func (h *DonorHypothesis) IsInbred() bool {
	return h.Donor1 == h.Donor2
}

// StartSite is the first site covered by the hypothesis.
func (h *DonorHypothesis) StartSite() int { return h.StartBlock * genotype.WordSize }

// EndSite is the last site covered by the hypothesis.
func (h *DonorHypothesis) EndSite() int { return h.EndBlock*genotype.WordSize + genotype.WordSize - 1 }

// FocusStartSite is the first site of the focus block.
func (h *DonorHypothesis) FocusStartSite() int { return h.FocusBlock * genotype.WordSize }

// FocusEndSite is the last site of the focus block.
func (h *DonorHypothesis) FocusEndSite() int { return h.FocusBlock*genotype.WordSize + genotype.WordSize - 1 }

// PhaseForSite returns the phase of a site, which is heterozygous
// when the hypothesis carries no phase.
func (h *DonorHypothesis) PhaseForSite(site int) byte {
	i := site - h.StartSite()
	if h.Phase == nil || i < 0 || i >= len(h.Phase) {
		return 1
	}
	return h.Phase[i]
}

// WithPhase returns a copy of the hypothesis with the given phase.
func (h *DonorHypothesis) WithPhase(phase []byte) *DonorHypothesis {
	result := *h
	result.Phase = phase
	return &result
}

func (h *DonorHypothesis) String() string {
	return fmt.Sprintf("%v:%v-%v[%v,%v,%v]%v/%v", h.Sample, h.Donor1, h.Donor2,
		h.StartBlock, h.FocusBlock, h.EndBlock, h.Mismatches, h.TestedSites)
}

type rankedHypothesis struct {
	hypothesis *DonorHypothesis
	errorRate  float64
	seq        int
}

// worse orders by error rate, and by insertion order among equal
// error rates.
func (r rankedHypothesis) worse(other rankedHypothesis) bool {
	if r.errorRate != other.errorRate {
		return r.errorRate > other.errorRate
	}
	return r.seq > other.seq
}

type hypothesisHeap []rankedHypothesis

func (h hypothesisHeap) Len() int           { return len(h) }
func (h hypothesisHeap) Less(i, j int) bool { return h[i].worse(h[j]) }
func (h hypothesisHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *hypothesisHeap) Push(x interface{}) {
	*h = append(*h, x.(rankedHypothesis))
}

func (h *hypothesisHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Ranking keeps the best hypotheses offered to it, up to a fixed
// capacity. The worst kept hypothesis is at the root of a heap.
type Ranking struct {
	capacity int
	seq      int
	entries  hypothesisHeap
}

// NewRanking creates an empty ranking.
func NewRanking(capacity int) *Ranking {
	return &Ranking{capacity: capacity, entries: make(hypothesisHeap, 0, capacity)}
}

// Offer adds a hypothesis if it ranks among the best seen so far.
func (r *Ranking) Offer(h *DonorHypothesis) bool {
	entry := rankedHypothesis{hypothesis: h, errorRate: h.ErrorRate(), seq: r.seq}
	r.seq++
	switch {
	case r.entries.Len() < r.capacity:
		heap.Push(&r.entries, entry)
		return true
	case r.entries.Len() > 0 && r.entries[0].worse(entry):
		r.entries[0] = entry
		heap.Fix(&r.entries, 0)
		return true
	default:
		return false
	}
}

// Len returns the number of kept hypotheses.
func (r *Ranking) Len() int {
	return r.entries.Len()
}

// Results returns the kept hypotheses, best first.
func (r *Ranking) Results() []*DonorHypothesis {
	sorted := append(hypothesisHeap(nil), r.entries...)
	result := make([]*DonorHypothesis, len(sorted))
	for i := len(sorted) - 1; i >= 0; i-- {
		result[i] = heap.Pop(&sorted).(rankedHypothesis).hypothesis
	}
	return result
}
