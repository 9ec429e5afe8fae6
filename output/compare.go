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

package output

import (
	"fmt"

	"github.com/exascience/elimpute/genotype"
)

// Comparison counts the outcomes of comparing imputed calls with the
// original calls.
type Comparison struct {
	Gaps, Unimputed, Hets, Correct, Errors int
}

// Add accumulates another comparison.
func (c *Comparison) Add(other Comparison) {
	c.Gaps += other.Gaps
	c.Unimputed += other.Unimputed
	c.Hets += other.Hets
	c.Correct += other.Correct
	c.Errors += other.Errors
}

// ErrorRate is errors/(correct+errors).
func (c Comparison) ErrorRate() float64 {
	if n := c.Correct + c.Errors; n > 0 {
		return float64(c.Errors) / float64(n)
	}
	return 0
}

func (c Comparison) String() string {
	return fmt.Sprintf("Gap:%v Unimp:%v UnimpHets:%v Correct:%v Errors:%v", c.Gaps, c.Unimputed, c.Hets, c.Correct, c.Errors)
}

// Compare checks an imputed matrix against the original one. Samples
// are matched by name, sites by index. If mask is not nil, only the
// sites where the original and the masked calls differ are compared.
func Compare(original, mask, imputed *genotype.Matrix) (total Comparison, perSample []Comparison, err error) {
	if original.NumSites() != imputed.NumSites() || mask != nil && mask.NumSites() != imputed.NumSites() {
		return total, nil, fmt.Errorf("matrices have different numbers of sites")
	}
	if mask != nil && mask.NumSamples() != imputed.NumSamples() {
		return total, nil, fmt.Errorf("mask has %v samples, expected %v", mask.NumSamples(), imputed.NumSamples())
	}
	index := make(map[string]int, original.NumSamples())
	for i, name := range original.Samples {
		index[name] = i
	}
	perSample = make([]Comparison, imputed.NumSamples())
	for t, name := range imputed.Samples {
		o, ok := index[name]
		if !ok {
			return total, nil, fmt.Errorf("sample %v not found in the original matrix", name)
		}
		c := &perSample[t]
		for s, ib := range imputed.Calls[t] {
			ob := original.Calls[o][s]
			if mask != nil && ob == mask.Calls[t][s] {
				continue
			}
			switch {
			case ib == genotype.Unknown || ob == genotype.Unknown:
				c.Unimputed++
			case ib == genotype.Gap:
				c.Gaps++
			case ib == ob:
				c.Correct++
			case genotype.IsHeterozygous(ob) || genotype.IsHeterozygous(ib):
				c.Hets++
			default:
				c.Errors++
			}
		}
		total.Add(*c)
	}
	return total, perSample, nil
}
