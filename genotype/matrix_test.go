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
	"testing"

	"github.com/exascience/elimpute/utils"
)

func makeSites(chrom string, n int) []Site {
	sites := make([]Site, n)
	for i := range sites {
		sites[i] = Site{
			Name:     "s" + string(rune('a'+i%26)),
			Chrom:    utils.Intern(chrom),
			Position: int32(100 * (i + 1)),
			Major:    AlleleUnknown,
			Minor:    AlleleUnknown,
		}
	}
	return sites
}

func TestOptimize(t *testing.T) {
	aa, gg, ag := Diploid(AlleleA, AlleleA), Diploid(AlleleG, AlleleG), Diploid(AlleleA, AlleleG)
	m := NewMatrix([]string{"x", "y", "z"}, makeSites("1", 130))
	m.Calls[0][0], m.Calls[1][0], m.Calls[2][0] = gg, gg, ag
	m.Calls[0][129], m.Calls[1][129] = aa, gg
	m.Optimize()
	if m.Sites[0].Major != AlleleG || m.Sites[0].Minor != AlleleA {
		t.Error("Optimize major/minor failed")
	}
	if m.Sites[129].Major != AlleleA || m.Sites[129].Minor != AlleleG {
		t.Error("Optimize tie break failed")
	}
	if m.Sites[5].Minor != AlleleUnknown {
		t.Error("Optimize empty site failed")
	}
	if !m.MajorPresence(2).Test(0) || !m.MinorPresence(2).Test(0) {
		t.Error("Optimize heterozygous presence failed")
	}
	if m.MajorPresence(0).Test(5) || m.MinorPresence(0).Test(5) {
		t.Error("Optimize missing presence failed")
	}
	if m.NumWords() != 3 {
		t.Error("NumWords failed")
	}
	if m.TotalNotMissing(0) != 2 || m.TotalNotMissing(2) != 1 {
		t.Error("TotalNotMissing failed")
	}
	mj, _ := m.PresenceWords(0)
	if len(mj) != 3 || mj[2]&2 == 0 {
		t.Error("PresenceWords failed")
	}
}

func TestSiteOfPosition(t *testing.T) {
	m := NewMatrix([]string{"x"}, append(makeSites("1", 10), makeSites("2", 10)...))
	m.Optimize()
	if m.SiteOfPosition(utils.Intern("1"), 300) != 2 {
		t.Error("SiteOfPosition 1 failed")
	}
	if m.SiteOfPosition(utils.Intern("2"), 100) != 10 {
		t.Error("SiteOfPosition 2 failed")
	}
	if m.SiteOfPosition(utils.Intern("2"), 150) != -1 {
		t.Error("SiteOfPosition missing position failed")
	}
	if m.SiteOfPosition(utils.Intern("3"), 100) != -1 {
		t.Error("SiteOfPosition missing chromosome failed")
	}
}

func TestValidate(t *testing.T) {
	sites := makeSites("1", 4)
	sites[2].Position = sites[1].Position
	if NewMatrix([]string{"x"}, sites).Validate() == nil {
		t.Error("Validate ascending failed")
	}
	sites = append(append(makeSites("1", 2), makeSites("2", 2)...), makeSites("1", 2)...)
	if NewMatrix([]string{"x"}, sites).Validate() == nil {
		t.Error("Validate contiguous failed")
	}
}
