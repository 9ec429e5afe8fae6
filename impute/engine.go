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

// Package impute implements donor-based imputation of target samples:
// per-block donor ranking, whole-segment resolution with an HMM, output
// assembly, and the scheduling of one task per sample.
package impute

import (
	"fmt"
	"log"
	"sync"

	"github.com/exascience/elimpute/genotype"
	"github.com/exascience/elimpute/panel"
)

// Row is the result of imputing one sample.
type Row struct {
	Sample      int
	Name        string
	Calls       []byte
	Breakpoints []Breakpoint
}

// Sink receives the rows of a run.
type Sink interface {
	Commit(row Row) error
	Close() error
	// Concurrent returns true if Commit may be called from several
	// goroutines at once.
	Concurrent() bool
}

// lockedSink serializes commits to a sink.
type lockedSink struct {
	sync.Mutex
	Sink
}

func (s *lockedSink) Commit(row Row) error {
	s.Lock()
	defer s.Unlock()
	return s.Sink.Commit(row)
}

// Run imputes all samples of the target against the segments and
// commits the results to the sink. The sink is not closed. The target
// and the segments must be optimized and are only read.
func Run(target *genotype.Matrix, segments []*panel.Segment, params *Parameters, sink Sink) (*Accuracy, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if target.NumSites() == 0 {
		return nil, fmt.Errorf("target matrix has no sites")
	}
	if !target.Optimized() {
		return nil, fmt.Errorf("target matrix is not optimized")
	}
	if !sink.Concurrent() {
		sink = &lockedSink{Sink: sink}
	}
	accuracy := NewAccuracy(target.NumSamples(), target.NumSites())
	scheduler := NewScheduler(params.Threads, target.NumSamples())
	for sample, name := range target.Samples {
		sample, name := sample, name
		scheduler.Submit(name, func() error {
			var imp *ImputedSample
			if present := target.TotalNotMissing(sample); present <= params.MinSitesPresent {
				log.Printf("Skipping %v:%v with %v sites present", sample, name, present)
				imp = NewImputedSample(target, sample)
			} else {
				imp = ImputeSample(target, segments, params, sample)
			}
			tally := accuracy.Record(imp)
			logProgress(target, imp, tally)
			return sink.Commit(Row{
				Sample:      sample,
				Name:        name,
				Calls:       imp.Resolved,
				Breakpoints: imp.Breakpoints(),
			})
		})
	}
	if err := scheduler.Wait(params.JoinTimeout); err != nil {
		return accuracy, err
	}
	return accuracy, nil
}
