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

package panel

import (
	"context"
	"math/bits"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/exascience/elimpute/genotype"
	"github.com/exascience/elimpute/utils"
)

var (
	aa = genotype.Diploid(genotype.AlleleA, genotype.AlleleA)
	gg = genotype.Diploid(genotype.AlleleG, genotype.AlleleG)
)

func makeMatrix(samples []string, firstPosition, nSites int, major, minor byte) *genotype.Matrix {
	sites := make([]genotype.Site, nSites)
	for i := range sites {
		sites[i] = genotype.Site{
			Chrom:    utils.Intern("1"),
			Position: int32(firstPosition + 10*i),
			Major:    major,
			Minor:    minor,
		}
	}
	return genotype.NewMatrix(samples, sites)
}

func fill(m *genotype.Matrix, sample int, f func(site int) byte) {
	for site := range m.Calls[sample] {
		m.Calls[sample][site] = f(site)
	}
}

func TestSiblingMatcher(t *testing.T) {
	match := SiblingMatcher("panel.gX.chr1.hmp.txt")
	if !match("panel.gX.chr1.hmp.txt") || !match("panel.gc.chr2.hmp.txt") {
		t.Error("SiblingMatcher gX failed")
	}
	if match("other.gc.chr2.hmp.txt") {
		t.Error("SiblingMatcher gX false positive")
	}
	match = SiblingMatcher("AllTaxa_s+1.hmp.txt")
	if !match("AllTaxa_s2.hmp.txt") {
		t.Error("SiblingMatcher s+ failed")
	}
	match = SiblingMatcher("donors.hmp.txt")
	if !match("donors.hmp.txt") || match("donors2.hmp.txt") {
		t.Error("SiblingMatcher exact failed")
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"d.gc.c1.hmp.txt", "d.gc.c2.hmp.txt", "e.gc.c1.hmp.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0600); err != nil {
			t.Fatal(err)
		}
	}
	files, err := Discover(context.Background(), filepath.Join(dir, "d.gX.c1.hmp.txt"), nil)
	if err != nil {
		t.Fatal(err)
	}
	expected := []string{filepath.Join(dir, "d.gc.c1.hmp.txt"), filepath.Join(dir, "d.gc.c2.hmp.txt")}
	if !reflect.DeepEqual(files, expected) {
		t.Error("Discover failed", files)
	}
}

func TestShiftWords(t *testing.T) {
	src := []uint64{0xF0, 0x1}
	if r := shiftWords(src, 4, 2); r[0] != 0xF|1<<60 || r[1] != 0 {
		t.Error("shiftWords 4 failed")
	}
	if r := shiftWords(src, 64, 2); r[0] != 1 || r[1] != 0 {
		t.Error("shiftWords 64 failed")
	}
	if r := shiftWords(src, 0, 1); r[0] != 0xF0 {
		t.Error("shiftWords 0 failed")
	}
}

func TestHarmonizeOffset(t *testing.T) {
	target := makeMatrix([]string{"t"}, 100, 200, genotype.AlleleA, genotype.AlleleG)
	fill(target, 0, func(site int) byte { return aa })
	target.Optimize()
	donors := makeMatrix([]string{"d"}, 100+10*70, 100, genotype.AlleleA, genotype.AlleleG)
	donors.Optimize()
	seg := Harmonize(target, &Panel{Donors: donors})
	if seg.Offset != 70 || seg.Mask.Good.Count() != 100 {
		t.Error("Harmonize offset failed")
	}
	mj, mn := seg.Arrange(target, 0, true)
	if len(mj) != 2 || mj[0] != ^uint64(0) || mj[1] != 1<<36-1 || mn[0] != 0 {
		t.Error("Arrange failed")
	}

	unmapped := makeMatrix([]string{"d"}, 105, 10, genotype.AlleleA, genotype.AlleleG)
	unmapped.Optimize()
	seg = Harmonize(target, &Panel{Donors: unmapped})
	if seg.Mappable() || seg.Mask.Error.Count() != 10 {
		t.Error("Harmonize unmappable failed")
	}
	if mj, _ := seg.Arrange(target, 0, true); len(mj) != 1 || mj[0] != 0 {
		t.Error("Arrange unmappable failed")
	}
}

func TestHarmonizeClasses(t *testing.T) {
	target := makeMatrix([]string{"t"}, 0, 4, genotype.AlleleA, genotype.AlleleG)
	target.Optimize()
	donors := makeMatrix([]string{"d"}, 0, 4, genotype.AlleleA, genotype.AlleleG)
	donors.Sites[1].Minor = genotype.AlleleUnknown
	donors.Sites[2].Major, donors.Sites[2].Minor = genotype.AlleleG, genotype.AlleleA
	donors.Sites[3].Major, donors.Sites[3].Minor = genotype.AlleleC, genotype.AlleleG
	donors.Optimize()
	mask := Harmonize(target, &Panel{Donors: donors}).Mask
	if !mask.Good.Test(0) || !mask.Invariant.Test(1) || !mask.Swap.Test(2) || !mask.Error.Test(3) {
		t.Error("Harmonize classes failed")
	}
	if mask.Good.Count() != 1 {
		t.Error("Harmonize good mask failed")
	}
}

func compare(tMj, tMn, dMj, dMn []uint64) (same, diff int) {
	for w := range tMj {
		same += bits.OnesCount64((tMj[w] & dMj[w]) | (tMn[w] & dMn[w]))
		diff += bits.OnesCount64((tMj[w] & dMn[w]) | (tMn[w] & dMj[w]))
	}
	return
}

func TestSwappedPanel(t *testing.T) {
	call := func(site int) byte {
		if site%3 == 0 {
			return gg
		}
		return aa
	}
	target := makeMatrix([]string{"t"}, 0, 128, genotype.AlleleA, genotype.AlleleG)
	fill(target, 0, call)
	target.Optimize()
	plain := makeMatrix([]string{"d"}, 0, 128, genotype.AlleleA, genotype.AlleleG)
	fill(plain, 0, call)
	plain.Optimize()
	swapped := makeMatrix([]string{"d"}, 0, 128, genotype.AlleleG, genotype.AlleleA)
	fill(swapped, 0, call)
	swapped.Optimize()

	plainSeg := Harmonize(target, &Panel{Donors: plain})
	swappedSeg := Harmonize(target, &Panel{Donors: swapped})
	if swappedSeg.Mask.Swap.Count() != 128 || swappedSeg.Mask.Good.Count() != 0 {
		t.Error("swap mask failed")
	}
	pMj, pMn := plainSeg.Arrange(target, 0, true)
	sMj, sMn := swappedSeg.Arrange(target, 0, true)
	dpMj, dpMn := plain.PresenceWords(0)
	dsMj, dsMn := swapped.PresenceWords(0)
	pSame, pDiff := compare(pMj, pMn, dpMj, dpMn)
	sSame, sDiff := compare(sMj, sMn, dsMj, dsMn)
	if pSame != 128 || pDiff != 0 || sSame != pSame || sDiff != pDiff {
		t.Error("swapped comparison failed", pSame, pDiff, sSame, sDiff)
	}
	if mj, mn := swappedSeg.Arrange(target, 0, false); mj[0] != 0 || mn[0] != 0 {
		t.Error("Arrange without swap fix failed")
	}
}

func TestHarmonizeAllOrder(t *testing.T) {
	target := makeMatrix([]string{"t"}, 0, 100, genotype.AlleleA, genotype.AlleleG)
	target.Optimize()
	late := makeMatrix([]string{"d"}, 500, 10, genotype.AlleleA, genotype.AlleleG)
	late.Optimize()
	early := makeMatrix([]string{"d"}, 0, 10, genotype.AlleleA, genotype.AlleleG)
	early.Optimize()
	lost := makeMatrix([]string{"d"}, 3, 10, genotype.AlleleA, genotype.AlleleG)
	lost.Optimize()
	segs := HarmonizeAll(target, []*Panel{{Donors: lost}, {Donors: late}, {Donors: early}})
	if segs[0].Offset != 0 || segs[1].Offset != 50 || segs[2].Mappable() {
		t.Error("HarmonizeAll order failed")
	}
}
