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

	"github.com/exascience/pargo/parallel"

	"github.com/exascience/elimpute/genotype"
)

// Indices into the per-block distance counts.
const (
	Tested = iota
	Same
	Diff
	Het
)

// Distance summarizes the comparison of a sample with a donor.
type Distance struct {
	Tested, Same, Diff, Het int
}

// BlockDistance compares one 64-site block of presence vectors.
func BlockDistance(tMj, tMn, dMj, dMn uint64) Distance {
	same := (tMj & dMj) | (tMn & dMn)
	diff := (tMj & dMn) | (tMn & dMj)
	d := Distance{
		Same: bits.OnesCount64(same),
		Diff: bits.OnesCount64(diff),
		Het:  bits.OnesCount64(same & diff),
	}
	d.Tested = d.Same + d.Diff - d.Het
	return d
}

// Add accumulates another distance.
func (d *Distance) Add(other Distance) {
	d.Tested += other.Tested
	d.Same += other.Same
	d.Diff += other.Diff
	d.Het += other.Het
}

// ErrorRate is the proportion of tested sites that do not match,
// counting heterozygous matches as half.
func (d Distance) ErrorRate() float64 {
	if d.Tested == 0 {
		return 1
	}
	return 1 - (float64(d.Same)-0.5*float64(d.Het))/float64(d.Tested)
}

// DistanceTable caches the per-block distances between one sample and
// all donors of a segment, indexed [donor][Tested|Same|Diff|Het][block].
type DistanceTable struct {
	counts [][4][]uint8
}

// NewDistanceTable compares the arranged presence vectors of a sample
// with every donor.
func NewDistanceTable(major, minor []uint64, donors *genotype.Matrix) *DistanceTable {
	table := &DistanceTable{counts: make([][4][]uint8, donors.NumSamples())}
	parallel.Range(0, donors.NumSamples(), 0, func(low, high int) {
		for donor := low; donor < high; donor++ {
			dMj, dMn := donors.PresenceWords(donor)
			var c [4][]uint8
			for i := range c {
				c[i] = make([]uint8, len(major))
			}
			for block := range major {
				d := BlockDistance(major[block], minor[block], dMj[block], dMn[block])
				c[Tested][block] = uint8(d.Tested)
				c[Same][block] = uint8(d.Same)
				c[Diff][block] = uint8(d.Diff)
				c[Het][block] = uint8(d.Het)
			}
			table.counts[donor] = c
		}
	})
	return table
}

// NumDonors returns the number of donors in the table.
func (t *DistanceTable) NumDonors() int {
	return len(t.counts)
}

// Block returns the distance of a donor at a single block.
func (t *DistanceTable) Block(donor, block int) Distance {
	c := &t.counts[donor]
	return Distance{
		Tested: int(c[Tested][block]),
		Same:   int(c[Same][block]),
		Diff:   int(c[Diff][block]),
		Het:    int(c[Het][block]),
	}
}

// Sum returns the distance of a donor over blocks start to end, inclusive.
func (t *DistanceTable) Sum(donor, start, end int) (d Distance) {
	c := &t.counts[donor]
	for block := start; block <= end; block++ {
		d.Tested += int(c[Tested][block])
		d.Same += int(c[Same][block])
		d.Diff += int(c[Diff][block])
		d.Het += int(c[Het][block])
	}
	return d
}
