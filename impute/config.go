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
	"math"
	"runtime"
	"time"

	"github.com/exascience/elimpute/hmm"
)

// Parameters configure an imputation run.
type Parameters struct {
	// MinMinorCount is the number of minor alleles a window must
	// contain before it stops growing.
	MinMinorCount int
	// MajorMinorRatio times MinMinorCount is the number of major
	// alleles that also stops window growth.
	MajorMinorRatio int
	// MaxDonorHypotheses is the number of hypotheses kept per block,
	// at most math.MaxInt8 so it fits the provenance markers.
	MaxDonorHypotheses int
	MaxInbredError     float64
	MaxHybridError     float64
	MinTestSites       int
	// MinSitesPresent is the number of known calls a sample needs
	// to be imputed at all.
	MinSitesPresent int
	// MinInformativeSites and NonMendelianFactor control when a
	// hybrid hypothesis can be phased with the HMM.
	MinInformativeSites int
	NonMendelianFactor  float64
	// Donors that are the best inbred match in more than
	// blocks/FrequentDonorDivisor blocks are tried for a
	// whole-segment explanation.
	FrequentDonorDivisor int

	InbredSearch            bool
	HybridSearch            bool
	SwapFix                 bool
	ResolveHetIfUndercalled bool
	// ExcludeSelf skips donors with the same name as the target
	// sample, for imputing a donor panel against itself.
	ExcludeSelf bool

	Threads     int
	JoinTimeout time.Duration
	Model       *hmm.Model
}

// DefaultParameters returns the default configuration.
func DefaultParameters() Parameters {
	return Parameters{
		MinMinorCount:           20,
		MajorMinorRatio:         10,
		MaxDonorHypotheses:      10,
		MaxInbredError:          0.02,
		MaxHybridError:          0.005,
		MinTestSites:            100,
		MinSitesPresent:         100,
		MinInformativeSites:     10,
		NonMendelianFactor:      5,
		FrequentDonorDivisor:    20,
		InbredSearch:            true,
		HybridSearch:            true,
		SwapFix:                 true,
		ResolveHetIfUndercalled: true,
		Threads:                 runtime.GOMAXPROCS(0),
		JoinTimeout:             48 * time.Hour,
		Model:                   hmm.DefaultModel(),
	}
}

// Validate checks the parameters for consistency.
func (p *Parameters) Validate() error {
	switch {
	case p.MinMinorCount < 1:
		return fmt.Errorf("minimum minor count must be positive, got %v", p.MinMinorCount)
	case p.MajorMinorRatio < 1:
		return fmt.Errorf("major/minor ratio must be positive, got %v", p.MajorMinorRatio)
	case p.MaxDonorHypotheses < 1:
		return fmt.Errorf("maximum number of donor hypotheses must be positive, got %v", p.MaxDonorHypotheses)
	case p.MaxDonorHypotheses > math.MaxInt8:
		return fmt.Errorf("maximum number of donor hypotheses must be at most %v, got %v", math.MaxInt8, p.MaxDonorHypotheses)
	case p.MaxInbredError < 0 || p.MaxInbredError > 1:
		return fmt.Errorf("maximum inbred error %v out of range", p.MaxInbredError)
	case p.MaxHybridError < 0 || p.MaxHybridError > 1:
		return fmt.Errorf("maximum hybrid error %v out of range", p.MaxHybridError)
	case p.FrequentDonorDivisor < 1:
		return fmt.Errorf("frequent donor divisor must be positive, got %v", p.FrequentDonorDivisor)
	case p.Threads < 1:
		return fmt.Errorf("number of threads must be positive, got %v", p.Threads)
	case p.JoinTimeout <= 0:
		return fmt.Errorf("join timeout must be positive, got %v", p.JoinTimeout)
	case p.Model == nil:
		return fmt.Errorf("no HMM model")
	}
	return nil
}
