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

package genotype

import (
	"fmt"
	"sort"

	"github.com/bits-and-blooms/bitset"
	"github.com/exascience/pargo/parallel"

	"github.com/exascience/elimpute/utils"
)

// WordSize is the number of sites packed in one presence word. A
// word of sites is also called a block.
const WordSize = 64

type (
	// Site describes one column of a genotype matrix.
	Site struct {
		Name     string
		Chrom    utils.Symbol
		Position int32
		Major    byte
		Minor    byte
	}

	// Matrix is a samples x sites table of diploid calls.
	//
	// After Optimize, each sample additionally exposes two packed
	// presence vectors: one bit per site that is set if the sample
	// carries the major (or minor) allele at that site.
	Matrix struct {
		Samples []string
		Sites   []Site
		Calls   [][]byte

		major, minor []*bitset.BitSet
		chroms       map[utils.Symbol][2]int
	}
)

// NewMatrix creates a matrix where all calls are Unknown.
func NewMatrix(samples []string, sites []Site) *Matrix {
	m := &Matrix{Samples: samples, Sites: sites, Calls: make([][]byte, len(samples))}
	for i := range m.Calls {
		row := make([]byte, len(sites))
		for j := range row {
			row[j] = Unknown
		}
		m.Calls[i] = row
	}
	return m
}

// NumSamples returns the number of rows.
func (m *Matrix) NumSamples() int { return len(m.Samples) }

// NumSites returns the number of columns.
func (m *Matrix) NumSites() int { return len(m.Sites) }

// NumWords returns the number of 64-site blocks.
func (m *Matrix) NumWords() int { return (len(m.Sites) + WordSize - 1) / WordSize }

// Call returns the call of the given sample at the given site.
func (m *Matrix) Call(sample, site int) byte {
	return m.Calls[sample][site]
}

func countAlleles(calls [][]byte, site int) (counts [AlleleGap + 1]int) {
	for _, row := range calls {
		a1, a2 := Alleles(row[site])
		if a1 <= AlleleGap {
			counts[a1]++
		}
		if a2 <= AlleleGap {
			counts[a2]++
		}
	}
	return
}

// Optimize determines the major and minor allele of every site that
// does not have them yet, and builds the per-sample presence vectors.
// The matrix must not be modified afterwards.
func (m *Matrix) Optimize() {
	parallel.Do(
		func() {
			parallel.Range(0, len(m.Sites), 0, func(low, high int) {
				for site := low; site < high; site++ {
					s := &m.Sites[site]
					if s.Major != AlleleUnknown {
						continue
					}
					s.Minor = AlleleUnknown
					counts := countAlleles(m.Calls, site)
					for allele, count := range counts {
						if count == 0 {
							continue
						}
						switch {
						case s.Major == AlleleUnknown || count > counts[s.Major]:
							s.Minor = s.Major
							s.Major = byte(allele)
						case s.Minor == AlleleUnknown || count > counts[s.Minor]:
							s.Minor = byte(allele)
						}
					}
				}
			})
		},
		func() {
			m.chroms = make(map[utils.Symbol][2]int)
			for i, s := range m.Sites {
				r, ok := m.chroms[s.Chrom]
				if !ok {
					r[0] = i
				}
				r[1] = i + 1
				m.chroms[s.Chrom] = r
			}
		},
	)
	m.major = make([]*bitset.BitSet, len(m.Samples))
	m.minor = make([]*bitset.BitSet, len(m.Samples))
	parallel.Range(0, len(m.Samples), 0, func(low, high int) {
		for sample := low; sample < high; sample++ {
			mj := bitset.New(uint(len(m.Sites)))
			mn := bitset.New(uint(len(m.Sites)))
			for site, call := range m.Calls[sample] {
				if call == Unknown {
					continue
				}
				a1, a2 := Alleles(call)
				s := &m.Sites[site]
				if a1 == s.Major || a2 == s.Major {
					mj.Set(uint(site))
				}
				if s.Minor != AlleleUnknown && (a1 == s.Minor || a2 == s.Minor) {
					mn.Set(uint(site))
				}
			}
			m.major[sample] = mj
			m.minor[sample] = mn
		}
	})
}

// Optimized returns true once the presence vectors are available.
func (m *Matrix) Optimized() bool {
	return m.major != nil
}

// MajorPresence returns the major allele presence vector of a sample.
func (m *Matrix) MajorPresence(sample int) *bitset.BitSet {
	return m.major[sample]
}

// MinorPresence returns the minor allele presence vector of a sample.
func (m *Matrix) MinorPresence(sample int) *bitset.BitSet {
	return m.minor[sample]
}

// PresenceWords returns the raw words of both presence vectors.
func (m *Matrix) PresenceWords(sample int) (major, minor []uint64) {
	return m.major[sample].Bytes(), m.minor[sample].Bytes()
}

// TotalNotMissing counts the sites with a known call for a sample.
func (m *Matrix) TotalNotMissing(sample int) int {
	return int(m.major[sample].UnionCardinality(m.minor[sample]))
}

// SiteOfPosition returns the index of the site at the given physical
// position on the given chromosome, or -1 if there is none.
func (m *Matrix) SiteOfPosition(chrom utils.Symbol, position int32) int {
	r, ok := m.chroms[chrom]
	if !ok {
		return -1
	}
	sites := m.Sites[r[0]:r[1]]
	i := sort.Search(len(sites), func(i int) bool { return sites[i].Position >= position })
	if i < len(sites) && sites[i].Position == position {
		return r[0] + i
	}
	return -1
}

// Validate checks that positions ascend within each chromosome and
// that every chromosome occupies one contiguous range of sites.
func (m *Matrix) Validate() error {
	seen := make(map[utils.Symbol]bool)
	for i, s := range m.Sites {
		if i > 0 && m.Sites[i-1].Chrom == s.Chrom {
			if m.Sites[i-1].Position >= s.Position {
				return fmt.Errorf("site %v at %v:%v is not in ascending order", s.Name, *s.Chrom, s.Position)
			}
			continue
		}
		if seen[s.Chrom] {
			return fmt.Errorf("chromosome %v is not contiguous at site %v", *s.Chrom, s.Name)
		}
		seen[s.Chrom] = true
	}
	for i, row := range m.Calls {
		if len(row) != len(m.Sites) {
			return fmt.Errorf("sample %v has %v calls, expected %v", m.Samples[i], len(row), len(m.Sites))
		}
	}
	return nil
}
