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

// Package panel loads donor haplotype panels and maps them onto the
// coordinates of a target genotype matrix.
package panel

import (
	"context"
	"fmt"
	"log"

	"cloud.google.com/go/storage"
	"github.com/exascience/pargo/parallel"

	"github.com/exascience/elimpute/genotype"
)

// Panel is one donor haplotype matrix, typically covering one
// chromosome segment.
type Panel struct {
	Path   string
	Donors *genotype.Matrix

	// Base is the index of the first donor of this panel among the
	// donors of all panels of a run.
	Base int
}

// NumDonors returns the number of donor haplotypes in the panel.
func (p *Panel) NumDonors() int {
	return p.Donors.NumSamples()
}

// Load reads and optimizes the given donor panel files in parallel.
// Any unreadable or empty panel is an error.
func Load(ctx context.Context, paths []string, client *storage.Client) ([]*Panel, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no donor panel files found")
	}
	panels := make([]*Panel, len(paths))
	errs := make([]error, len(paths))
	parallel.Range(0, len(paths), 0, func(low, high int) {
		for i := low; i < high; i++ {
			m, err := genotype.Load(ctx, paths[i], client)
			if err != nil {
				errs[i] = err
				continue
			}
			m.Optimize()
			panels[i] = &Panel{Path: paths[i], Donors: m}
		}
	})
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	base := 0
	for _, p := range panels {
		p.Base = base
		base += p.NumDonors()
		log.Printf("Donor file:%v taxa:%v sites:%v\n", p.Path, p.NumDonors(), p.Donors.NumSites())
	}
	return panels, nil
}

// DonorNames returns the names of the donors of all panels, indexed
// by their global donor index.
func DonorNames(panels []*Panel) (names []string) {
	for _, p := range panels {
		names = append(names, p.Donors.Samples...)
	}
	return names
}
