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
	"testing"

	"github.com/exascience/elimpute/genotype"
	"github.com/exascience/elimpute/panel"
	"github.com/exascience/elimpute/utils"
)

var (
	aa = genotype.Diploid(genotype.AlleleA, genotype.AlleleA)
	ag = genotype.Diploid(genotype.AlleleA, genotype.AlleleG)
	gg = genotype.Diploid(genotype.AlleleG, genotype.AlleleG)
)

func makeMatrix(samples []string, firstPosition, nSites int) *genotype.Matrix {
	sites := make([]genotype.Site, nSites)
	for i := range sites {
		sites[i] = genotype.Site{
			Chrom:    utils.Intern("1"),
			Position: int32(firstPosition + 10*i),
			Major:    genotype.AlleleA,
			Minor:    genotype.AlleleG,
		}
	}
	return genotype.NewMatrix(samples, sites)
}

func fill(m *genotype.Matrix, sample int, f func(site int) byte) {
	for site := range m.Calls[sample] {
		m.Calls[sample][site] = f(site)
	}
}

func TestBreakpoints(t *testing.T) {
	target := makeMatrix([]string{"t"}, 100, 10)
	imp := NewImputedSample(target, 0)
	if bps := imp.Breakpoints(); len(bps) != 1 || bps[0] != (Breakpoint{0, 100, NoDonor, NoDonor}) {
		t.Fatal("initial breakpoint failed")
	}
	imp.putBreakpoint(5, 1, 2)
	imp.putBreakpoint(2, 3, 3)
	imp.putBreakpoint(8, 3, 3)
	imp.putBreakpoint(5, 3, 3)
	imp.putBreakpoint(0, 4, 4)
	bps := imp.Breakpoints()
	if len(bps) != 2 || bps[0] != (Breakpoint{0, 100, 4, 4}) || bps[1] != (Breakpoint{2, 120, 3, 3}) {
		t.Error("Breakpoints failed", bps)
	}
	for i := 1; i < len(imp.breakpoints); i++ {
		if imp.breakpoints[i-1].Site >= imp.breakpoints[i].Site {
			t.Error("breakpoints are not strictly increasing")
		}
	}
}

func TestApplyFocus(t *testing.T) {
	target := makeMatrix([]string{"t"}, 0, 192)
	fill(target, 0, func(site int) byte {
		switch {
		case site%4 == 0:
			return genotype.Unknown
		case site%4 == 1:
			return aa
		default:
			return gg
		}
	})
	target.Optimize()
	donors := makeMatrix([]string{"x", "y"}, 0, 192)
	fill(donors, 0, func(int) byte { return aa })
	fill(donors, 1, func(int) byte { return gg })
	donors.Optimize()
	seg := panel.Harmonize(target, &panel.Panel{Donors: donors, Base: 10})
	params := DefaultParameters()

	imp := NewImputedSample(target, 0)
	bad := NewDonorHypothesis(0, 0, 0, 0, 1, 2, 100, 50)
	hybrid := NewDonorHypothesis(0, 0, 1, 0, 1, 2, 100, 0)
	imp.Apply(seg, []*DonorHypothesis{bad, hybrid}, true, &params)
	for site := 0; site < 192; site++ {
		inFocus := site >= 64 && site < 128
		switch {
		case !inFocus:
			if imp.Provenance[site] != 0 || imp.Resolved[site] != imp.Original[site] {
				t.Fatal("Apply outside focus failed at", site)
			}
		case imp.Provenance[site] != -2 || imp.Imputed[site] != ag:
			t.Fatal("Apply estimate failed at", site)
		case imp.Resolved[site] != ag:
			t.Fatal("Apply resolved call failed at", site)
		}
	}
	if bps := imp.Breakpoints(); len(bps) != 1 {
		t.Error("Apply with a rejected leading hypothesis changed the breakpoints", bps)
	}

	imp = NewImputedSample(target, 0)
	imp.Apply(seg, []*DonorHypothesis{hybrid}, true, &params)
	bps := imp.Breakpoints()
	expected := []Breakpoint{{0, 0, NoDonor, NoDonor}, {64, 640, 10, 11}, {128, 1280, NoDonor, NoDonor}}
	if len(bps) != len(expected) {
		t.Fatal("Apply breakpoints failed", bps)
	}
	for i := range bps {
		if bps[i] != expected[i] {
			t.Error("Apply breakpoints failed", bps)
		}
	}

	params.ResolveHetIfUndercalled = false
	imp = NewImputedSample(target, 0)
	imp.Apply(seg, []*DonorHypothesis{hybrid}, true, &params)
	if imp.Resolved[65] != aa || imp.Resolved[64] != ag || imp.Provenance[65] != -1 {
		t.Error("Apply without het resolution failed")
	}
	if imp.Original[64] != genotype.Unknown {
		t.Error("Apply modified the original calls")
	}
}

func TestCompareCalls(t *testing.T) {
	original := []byte{aa, aa, gg, ag, genotype.Unknown, gg}
	imputed := []byte{aa, gg, ag, aa, aa, gg}
	sites := make([]Tally, len(original))
	total := CompareCalls(original, imputed, sites)
	if total != (Tally{Right: 2, Wrong: 1, Het: 2}) {
		t.Error("CompareCalls failed", total)
	}
	if sites[1].Wrong != 1 || sites[5].Right != 1 || sites[4] != (Tally{}) {
		t.Error("CompareCalls per site failed")
	}
	if total.ErrorRate() != 1.0/3.0 || (Tally{}).ErrorRate() != 0 {
		t.Error("Tally ErrorRate failed")
	}
}
