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

// Package hmm decodes donor ancestry states along a chromosome with
// the Viterbi algorithm.
package hmm

import (
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// States of the default model: pure donor1, two transitional states
// around the heterozygous state, and pure donor2.
const (
	StateDonor1 = iota
	StateDonor1Het
	StateHet
	StateHetDonor2
	StateDonor2
	NumStates
)

// Observations of the default model.
const (
	ObsDonor1 byte = iota
	ObsHet
	ObsDonor2
	NumObservations
)

// Model is a hidden Markov model with a transition matrix that is
// scaled by the physical distance between consecutive observations.
type Model struct {
	Transition *mat.Dense
	Emission   *mat.Dense
	Initial    []float64

	lnEmission *mat.Dense
	lnInitial  []float64
}

// DefaultTransition reflects that recombination is unlikely over
// short physical distances.
var DefaultTransition = [][]float64{
	{.999, .0001, .0003, .0001, .0005},
	{.0002, .999, .00005, .00005, .0002},
	{.0002, .00005, .999, .00005, .0002},
	{.0002, .00005, .00005, .999, .0002},
	{.0005, .0001, .0003, .0001, .999},
}

// DefaultEmission is biased towards the observation matching a state.
var DefaultEmission = [][]float64{
	{.98, .001, .001},
	{.6, .2, .2},
	{.4, .2, .4},
	{.2, .2, .6},
	{.001, .001, .98},
}

// DefaultInitial assumes a heterozygosity of 0.5.
var DefaultInitial = []float64{.25, .125, .25, .125, .25}

func dense(rows [][]float64) *mat.Dense {
	m := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, row := range rows {
		m.SetRow(i, row)
	}
	return m
}

// NewModel creates a model from row-major transition and emission
// probabilities and initial state probabilities.
func NewModel(transition, emission [][]float64, initial []float64) (*Model, error) {
	n := len(transition)
	if n == 0 || len(emission) != n || len(initial) != n {
		return nil, fmt.Errorf("inconsistent number of HMM states")
	}
	for i := range transition {
		if len(transition[i]) != n {
			return nil, fmt.Errorf("transition matrix is not square")
		}
		if len(emission[i]) != len(emission[0]) {
			return nil, fmt.Errorf("emission matrix is not rectangular")
		}
		for j, p := range transition[i] {
			if i != j && (p < 0 || p >= .5) {
				return nil, fmt.Errorf("transition probability %v out of range", p)
			}
		}
	}
	m := &Model{
		Transition: dense(transition),
		Emission:   dense(emission),
		Initial:    append([]float64(nil), initial...),
	}
	m.lnEmission = mat.NewDense(n, len(emission[0]), nil)
	m.lnEmission.Apply(func(_, _ int, v float64) float64 { return math.Log(v) }, m.Emission)
	m.lnInitial = make([]float64, n)
	for i, p := range initial {
		m.lnInitial[i] = math.Log(p)
	}
	return m, nil
}

// DefaultModel returns the five-state donor ancestry model.
func DefaultModel() *Model {
	m, err := NewModel(DefaultTransition, DefaultEmission, DefaultInitial)
	if err != nil {
		panic(err)
	}
	return m
}

// NumStates returns the number of hidden states.
func (m *Model) NumStates() int {
	r, _ := m.Transition.Dims()
	return r
}

// adjustTransition fills lnTrans with the log transition probabilities
// over a physical gap, relative to the average physical length per site.
func (m *Model) adjustTransition(lnTrans *mat.Dense, gap, avgSegment float64) {
	n := m.NumStates()
	for row := 0; row < n; row++ {
		offDiagonal := 0.0
		for col := 0; col < n; col++ {
			if col == row {
				continue
			}
			d := -math.Log(1-2*m.Transition.At(row, col)) * gap / avgSegment / 2
			p := (1 - math.Exp(-2*d)) / 2
			lnTrans.Set(row, col, math.Log(p))
			offDiagonal += p
		}
		lnTrans.Set(row, row, math.Log(1-offDiagonal))
	}
}

type viterbiBuffers struct {
	history []byte
}

var viterbiPool = sync.Pool{New: func() interface{} { return new(viterbiBuffers) }}

// Decode returns the most probable state sequence for the given
// observations at the given physical positions.
func (m *Model) Decode(obs []byte, positions []int32, avgSegment float64) []byte {
	if len(obs) == 0 {
		return nil
	}
	if len(positions) != len(obs) {
		panic("number of positions does not match number of observations")
	}
	if avgSegment <= 0 {
		avgSegment = 1
	}
	n := m.NumStates()
	buffers := viterbiPool.Get().(*viterbiBuffers)
	defer viterbiPool.Put(buffers)
	size := n * len(obs)
	if cap(buffers.history) < size {
		buffers.history = make([]byte, size)
	}
	history := buffers.history[:size]

	distance := make([]float64, n)
	next := make([]float64, n)
	for i := range distance {
		distance[i] = m.lnEmission.At(i, int(obs[0])) + m.lnInitial[i]
	}
	lnTrans := mat.NewDense(n, n, nil)
	for node := 1; node < len(obs); node++ {
		gap := math.Abs(float64(positions[node] - positions[node-1]))
		m.adjustTransition(lnTrans, gap, avgSegment)
		for j := 0; j < n; j++ {
			best, bestState := math.Inf(-1), 0
			for i := 0; i < n; i++ {
				if d := distance[i] + lnTrans.At(i, j); d > best || i == 0 {
					best, bestState = d, i
				}
			}
			next[j] = best + m.lnEmission.At(j, int(obs[node]))
			history[node*n+j] = byte(bestState)
		}
		distance, next = next, distance
		maxd, mind := distance[0], 0.0
		for _, d := range distance {
			if d > maxd {
				maxd = d
			}
			if !math.IsInf(d, -1) && d < mind {
				mind = d
			}
		}
		if mind < -1e100 {
			for i := range distance {
				distance[i] -= maxd
			}
		}
	}

	final := 0
	for i := 1; i < n; i++ {
		if distance[i] > distance[final] {
			final = i
		}
	}
	states := make([]byte, len(obs))
	states[len(obs)-1] = byte(final)
	for node := len(obs) - 2; node >= 0; node-- {
		states[node] = history[(node+1)*n+int(states[node+1])]
	}
	return states
}

// StateToPhase maps a decoded state to a phase: 0 for donor1, 1 for
// heterozygous, 2 for donor2.
func StateToPhase(state byte) byte {
	if state == StateDonor1Het {
		return 1
	}
	return state / 2
}
