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
)

func testParameters() Parameters {
	params := DefaultParameters()
	params.MinTestSites = 32
	params.MinSitesPresent = 10
	params.MinMinorCount = 5
	params.Threads = 2
	return params
}

func segmentOf(target, donors *genotype.Matrix) *panel.Segment {
	target.Optimize()
	donors.Optimize()
	return panel.Harmonize(target, &panel.Panel{Donors: donors})
}

func pattern(site int) byte {
	if site%3 == 0 {
		return gg
	}
	return aa
}

func TestImputeIdenticalDonor(t *testing.T) {
	target := makeMatrix([]string{"t"}, 0, 256)
	fill(target, 0, func(site int) byte {
		if site%7 == 0 {
			return genotype.Unknown
		}
		return pattern(site)
	})
	donors := makeMatrix([]string{"d"}, 0, 256)
	fill(donors, 0, pattern)
	seg := segmentOf(target, donors)
	params := testParameters()

	imp := ImputeSample(target, []*panel.Segment{seg}, &params, 0)
	if !imp.SegmentSolved || imp.SegmentsSolved != 1 {
		t.Error("identical donor did not solve the segment")
	}
	for site, call := range imp.Resolved {
		if call != pattern(site) {
			t.Fatal("identical donor imputation failed at", site)
		}
	}
	if tally := CompareCalls(imp.Original, imp.Imputed, nil); tally.Wrong != 0 || tally.Right != target.TotalNotMissing(0) {
		t.Error("identical donor accuracy failed", tally)
	}
	if bps := imp.Breakpoints(); len(bps) != 1 || bps[0].Donor1 != 0 || bps[0].Donor2 != 0 {
		t.Error("identical donor breakpoints failed", bps)
	}
	if imp.Distances == nil || imp.Distances.NumDonors() != 1 {
		t.Fatal("identical donor distances missing")
	}
	if d := imp.Distances.Sum(0, 0, 3); d.Tested != target.TotalNotMissing(0) || d.Diff != 0 || d.Het != 0 {
		t.Error("identical donor distances failed", d)
	}
}

func TestImputeEmptyPanel(t *testing.T) {
	target := makeMatrix([]string{"t"}, 0, 128)
	fill(target, 0, func(site int) byte {
		if site%5 == 0 {
			return genotype.Unknown
		}
		return pattern(site)
	})
	seg := segmentOf(target, makeMatrix(nil, 0, 128))
	unmapped := segmentOf(target, makeMatrix([]string{"d"}, 5, 64))
	params := testParameters()
	imp := ImputeSample(target, []*panel.Segment{seg, unmapped}, &params, 0)
	for site, call := range imp.Resolved {
		if call != target.Calls[0][site] || imp.Provenance[site] != 0 {
			t.Fatal("empty panel changed the calls")
		}
	}
	if imp.BlocksSolved != 0 || imp.SegmentSolved {
		t.Error("empty panel solved something")
	}
}

func TestImputeMissingSample(t *testing.T) {
	target := makeMatrix([]string{"t"}, 0, 128)
	donors := makeMatrix([]string{"d"}, 0, 128)
	fill(donors, 0, pattern)
	seg := segmentOf(target, donors)
	params := testParameters()
	imp := ImputeSample(target, []*panel.Segment{seg}, &params, 0)
	if imp.BlocksSolved != 0 || imp.SegmentSolved {
		t.Error("missing sample solved something")
	}
	if imp.Distances != nil {
		t.Error("missing sample computed distances")
	}
	for _, call := range imp.Resolved {
		if call != genotype.Unknown {
			t.Fatal("missing sample was imputed")
		}
	}
}

func TestImputeCrossover(t *testing.T) {
	target := makeMatrix([]string{"t"}, 0, 128)
	fill(target, 0, func(site int) byte {
		if site < 64 {
			return aa
		}
		return gg
	})
	donors := makeMatrix([]string{"A", "B"}, 0, 128)
	fill(donors, 0, func(int) byte { return aa })
	fill(donors, 1, func(int) byte { return gg })
	seg := segmentOf(target, donors)
	params := testParameters()

	imp := ImputeSample(target, []*panel.Segment{seg}, &params, 0)
	if !imp.SegmentSolved {
		t.Fatal("crossover segment not solved")
	}
	bps := imp.Breakpoints()
	if len(bps) < 2 || len(bps) > 3 {
		t.Fatal("crossover breakpoints failed", bps)
	}
	first, last := bps[0], bps[len(bps)-1]
	if first.Site != 0 || first.Donor1 != 0 || first.Donor2 != 0 {
		t.Error("crossover first breakpoint failed", bps)
	}
	if last.Site < 63 || last.Site > 65 || last.Donor1 != 1 || last.Donor2 != 1 {
		t.Error("crossover switch failed", bps)
	}
	for site := 0; site < 128; site++ {
		if site >= 62 && site <= 66 {
			continue
		}
		if imp.Resolved[site] != target.Calls[0][site] || imp.Provenance[site] != 1 {
			t.Fatal("crossover calls failed at", site)
		}
	}
}

func TestBestHybridExcludesInbredPairs(t *testing.T) {
	target := makeMatrix([]string{"t"}, 0, 64)
	fill(target, 0, func(int) byte { return ag })
	donors := makeMatrix([]string{"A", "B"}, 0, 64)
	fill(donors, 0, func(int) byte { return aa })
	fill(donors, 1, func(int) byte { return gg })
	seg := segmentOf(target, donors)
	params := testParameters()
	major, minor := seg.Arrange(target, 0, true)
	s := &search{params: &params, target: target, seg: seg, major: major, minor: minor, donors: []int{0, 1}}
	hyps := s.bestHybrid(Window{0, 0, 0}, []int{0}, s.donors, false)
	if len(hyps) != 1 || hyps[0].Donor1 != 0 || hyps[0].Donor2 != 1 || hyps[0].ErrorRate() != 0 {
		t.Error("bestHybrid failed", hyps)
	}
}

// recordingSink relies on the engine to serialize its commits.
type recordingSink struct {
	rows map[int]Row
}

func (s *recordingSink) Commit(row Row) error {
	s.rows[row.Sample] = row
	return nil
}

func (s *recordingSink) Close() error     { return nil }
func (s *recordingSink) Concurrent() bool { return false }

func TestRun(t *testing.T) {
	target := makeMatrix([]string{"s0", "s1", "s2"}, 0, 256)
	for sample := 0; sample < 2; sample++ {
		fill(target, sample, func(site int) byte {
			if (site+sample)%6 == 0 {
				return genotype.Unknown
			}
			return pattern(site)
		})
	}
	donors := makeMatrix([]string{"d"}, 0, 256)
	fill(donors, 0, pattern)
	seg := segmentOf(target, donors)
	params := testParameters()
	sink := &recordingSink{rows: make(map[int]Row)}
	accuracy, err := Run(target, []*panel.Segment{seg}, &params, sink)
	if err != nil {
		t.Fatal(err)
	}
	if len(sink.rows) != 3 {
		t.Fatal("Run commits failed")
	}
	for sample := 0; sample < 2; sample++ {
		for site, call := range sink.rows[sample].Calls {
			if call != pattern(site) {
				t.Fatal("Run imputation failed for sample", sample)
			}
		}
	}
	if bps := sink.rows[2].Breakpoints; len(bps) != 1 || bps[0].Donor1 != NoDonor {
		t.Error("Run skipped sample breakpoints failed")
	}
	total := accuracy.Total()
	if total.Wrong != 0 || total.Right != target.TotalNotMissing(0)+target.TotalNotMissing(1) {
		t.Error("Run accuracy failed", total)
	}
	var sum Tally
	for _, s := range accuracy.Sites {
		sum.Add(s)
	}
	if sum.Right != total.Right || sum.Wrong != total.Wrong {
		t.Error("Run per-site accuracy failed")
	}
	summary, err := accuracy.Summarize()
	if err != nil || summary.SamplesWithEstimates != 2 || summary.Max != 0 {
		t.Error("Summarize failed", summary, err)
	}
}

func TestRunExcludeSelf(t *testing.T) {
	target := makeMatrix([]string{"d"}, 0, 256)
	fill(target, 0, func(site int) byte {
		if site%4 == 0 {
			return genotype.Unknown
		}
		return pattern(site)
	})
	donors := makeMatrix([]string{"d"}, 0, 256)
	fill(donors, 0, pattern)
	seg := segmentOf(target, donors)
	params := testParameters()
	params.ExcludeSelf = true
	imp := ImputeSample(target, []*panel.Segment{seg}, &params, 0)
	if imp.SegmentSolved || imp.BlocksSolved != 0 {
		t.Error("ExcludeSelf failed")
	}
}

func TestRunSparseSample(t *testing.T) {
	target := makeMatrix([]string{"sparse"}, 0, 256)
	fill(target, 0, func(site int) byte {
		if site%5 == 0 && site < 250 {
			return pattern(site)
		}
		return genotype.Unknown
	})
	donors := makeMatrix([]string{"d"}, 0, 256)
	fill(donors, 0, pattern)
	seg := segmentOf(target, donors)
	params := testParameters()
	params.MinSitesPresent = 100
	sink := &recordingSink{rows: make(map[int]Row)}
	accuracy, err := Run(target, []*panel.Segment{seg}, &params, sink)
	if err != nil {
		t.Fatal(err)
	}
	known := target.TotalNotMissing(0)
	if known != 50 {
		t.Fatal("sparse sample setup failed", known)
	}
	if tally := accuracy.Samples[0]; tally.Right+tally.Wrong+tally.Het != known || tally.Wrong != 0 {
		t.Error("sparse sample accuracy failed", tally)
	}
	row := sink.rows[0]
	for site, call := range row.Calls {
		if call != target.Calls[0][site] {
			t.Fatal("sparse sample was imputed")
		}
	}
	if len(row.Breakpoints) != 1 || row.Breakpoints[0].Donor1 != NoDonor {
		t.Error("sparse sample breakpoints failed", row.Breakpoints)
	}

	params.MinSitesPresent = known
	sink = &recordingSink{rows: make(map[int]Row)}
	if _, err = Run(target, []*panel.Segment{seg}, &params, sink); err != nil {
		t.Fatal(err)
	}
	if bps := sink.rows[0].Breakpoints; len(bps) != 1 || bps[0].Donor1 != NoDonor {
		t.Error("sample at the present threshold was imputed", bps)
	}
}
