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
	"fmt"
	"sync"

	"github.com/montanaflynn/stats"

	"github.com/exascience/elimpute/genotype"
)

// Tally counts the comparisons of original with imputed calls.
type Tally struct {
	Right, Wrong, Het int
}

// ErrorRate is wrong/(right+wrong), or 0 if nothing was compared.
func (t Tally) ErrorRate() float64 {
	if n := t.Right + t.Wrong; n > 0 {
		return float64(t.Wrong) / float64(n)
	}
	return 0
}

// Add accumulates another tally.
func (t *Tally) Add(other Tally) {
	t.Right += other.Right
	t.Wrong += other.Wrong
	t.Het += other.Het
}

// CompareCalls tallies the sites where both calls are known.
func CompareCalls(original, imputed []byte, sites []Tally) (total Tally) {
	for site, known := range original {
		estimate := imputed[site]
		if known == genotype.Unknown || estimate == genotype.Unknown {
			continue
		}
		switch {
		case genotype.IsHeterozygous(known) || genotype.IsHeterozygous(estimate):
			total.Het++
		case known == estimate:
			total.Right++
			if sites != nil {
				sites[site].Right++
			}
		default:
			total.Wrong++
			if sites != nil {
				sites[site].Wrong++
			}
		}
	}
	return total
}

// Accuracy collects per-sample and per-site tallies of a run.
type Accuracy struct {
	mutex   sync.Mutex
	Samples []Tally
	Sites   []Tally
}

// NewAccuracy creates an empty accuracy report.
func NewAccuracy(samples, sites int) *Accuracy {
	return &Accuracy{
		Samples: make([]Tally, samples),
		Sites:   make([]Tally, sites),
	}
}

// Record tallies an imputed sample locally and merges the result.
func (a *Accuracy) Record(imp *ImputedSample) Tally {
	sites := make([]Tally, len(imp.Original))
	total := CompareCalls(imp.Original, imp.Imputed, sites)
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.Samples[imp.Sample] = total
	for i, t := range sites {
		a.Sites[i].Add(t)
	}
	return total
}

// Total sums the tallies of all samples.
func (a *Accuracy) Total() (total Tally) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	for _, t := range a.Samples {
		total.Add(t)
	}
	return total
}

// Summary describes the distribution of per-sample error rates.
type Summary struct {
	Total                Tally
	Mean, Median, Max    float64
	SamplesWithEstimates int
}

// Summarize computes the run summary. Samples without any right or
// wrong calls are left out of the error rate statistics.
func (a *Accuracy) Summarize() (s Summary, err error) {
	s.Total = a.Total()
	var rates stats.Float64Data
	a.mutex.Lock()
	for _, t := range a.Samples {
		if t.Right+t.Wrong > 0 {
			rates = append(rates, t.ErrorRate())
		}
	}
	a.mutex.Unlock()
	s.SamplesWithEstimates = len(rates)
	if len(rates) == 0 {
		return s, nil
	}
	if s.Mean, err = rates.Mean(); err != nil {
		return s, err
	}
	if s.Median, err = rates.Median(); err != nil {
		return s, err
	}
	s.Max, err = rates.Max()
	return s, err
}

func (s Summary) String() string {
	return fmt.Sprintf("Right:%d Wrong:%d Het:%d ErrorRate:%g SampleErrorRate mean:%g median:%g max:%g over %d samples",
		s.Total.Right, s.Total.Wrong, s.Total.Het, s.Total.ErrorRate(), s.Mean, s.Median, s.Max, s.SamplesWithEstimates)
}
