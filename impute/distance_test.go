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
	"math/rand"
	"testing"

	"github.com/exascience/elimpute/genotype"
)

func TestBlockDistance(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	for i := 0; i < 1000; i++ {
		d := BlockDistance(rnd.Uint64(), rnd.Uint64(), rnd.Uint64(), rnd.Uint64())
		if d.Tested != d.Same+d.Diff-d.Het || d.Tested < 0 || d.Tested > genotype.WordSize {
			t.Fatal("BlockDistance tested failed", d)
		}
		if e := d.ErrorRate(); e < 0 || e > 1 {
			t.Fatal("BlockDistance error rate failed", d)
		}
	}
	if d := BlockDistance(0xFF, 0, 0xFF, 0); d.Tested != 8 || d.Same != 8 || d.ErrorRate() != 0 {
		t.Error("BlockDistance identical failed")
	}
	if d := BlockDistance(0xFF, 0, 0, 0xFF); d.Tested != 8 || d.Diff != 8 || d.ErrorRate() != 1 {
		t.Error("BlockDistance opposite failed")
	}
	if d := BlockDistance(1, 1, 1, 0); d.Tested != 1 || d.Het != 1 || d.ErrorRate() != 0.5 {
		t.Error("BlockDistance het failed", d)
	}
	if (Distance{}).ErrorRate() != 1 {
		t.Error("ErrorRate without tested sites failed")
	}
}

func TestDistanceTable(t *testing.T) {
	donors := makeMatrix([]string{"a", "b"}, 0, 192)
	fill(donors, 0, func(int) byte { return aa })
	fill(donors, 1, func(site int) byte {
		if site < 64 {
			return gg
		}
		return aa
	})
	donors.Optimize()
	major := []uint64{^uint64(0), ^uint64(0), 0xFF}
	minor := make([]uint64, 3)
	table := NewDistanceTable(major, minor, donors)
	if table.NumDonors() != 2 {
		t.Error("NumDonors failed")
	}
	if d := table.Sum(0, 0, 2); d.Tested != 136 || d.Same != 136 {
		t.Error("Sum donor 0 failed", d)
	}
	if d := table.Block(1, 0); d.Diff != 64 || d.Same != 0 {
		t.Error("Block donor 1 failed", d)
	}
	if d := table.Sum(1, 1, 2); d.Tested != 72 || d.ErrorRate() != 0 {
		t.Error("Sum donor 1 failed", d)
	}
}

func BenchmarkDistanceTable(b *testing.B) {
	const nDonors, nSites = 200, 64 * 500
	samples := make([]string, nDonors)
	for i := range samples {
		samples[i] = string(rune('a' + i%26))
	}
	donors := makeMatrix(samples, 0, nSites)
	rnd := rand.New(rand.NewSource(7))
	for d := range samples {
		fill(donors, d, func(int) byte {
			if rnd.Intn(3) == 0 {
				return gg
			}
			return aa
		})
	}
	donors.Optimize()
	major, minor := donors.PresenceWords(0)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		NewDistanceTable(major, minor, donors)
	}
}
