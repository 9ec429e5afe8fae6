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

// Package output implements the destinations of imputed samples: a
// full genotype matrix, an incrementally written SQLite database, and
// a compact projection file of donor breakpoints.
package output

import (
	"fmt"
	"strings"

	"github.com/exascience/elimpute/genotype"
	"github.com/exascience/elimpute/impute"
	"github.com/exascience/elimpute/panel"
)

// Output modes.
const (
	MatrixMode     = "matrix"
	SQLiteMode     = "sqlite"
	ProjectionMode = "projection"
)

// IsProjectionFile returns true if the path names a projection file.
func IsProjectionFile(path string) bool {
	return strings.HasSuffix(path, ".pa.txt") || strings.HasSuffix(path, ".pa.txt.gz")
}

// DefaultMode determines the output mode from the output file name.
func DefaultMode(path string) string {
	switch {
	case IsProjectionFile(path):
		return ProjectionMode
	case strings.HasSuffix(path, ".db"), strings.HasSuffix(path, ".sqlite"):
		return SQLiteMode
	default:
		return MatrixMode
	}
}

// NewSink creates the sink for an output mode. An empty mode is
// derived from the output file name.
func NewSink(mode, path string, target *genotype.Matrix, panels []*panel.Panel) (impute.Sink, error) {
	if mode == "" {
		mode = DefaultMode(path)
	}
	switch strings.ToLower(mode) {
	case MatrixMode:
		return NewMatrixSink(path, target), nil
	case SQLiteMode:
		sink, err := NewSQLiteSink(path, target)
		if err != nil {
			return nil, err
		}
		return sink, nil
	case ProjectionMode:
		return NewProjectionSink(path, target, panels), nil
	default:
		return nil, fmt.Errorf("unknown output mode %v", mode)
	}
}

// MatrixSink collects the imputed calls into a copy of the target
// matrix and writes it when closed.
type MatrixSink struct {
	path   string
	result *genotype.Matrix
}

// NewMatrixSink creates a sink with the samples and sites of the
// target. Samples that are never committed keep their original calls.
func NewMatrixSink(path string, target *genotype.Matrix) *MatrixSink {
	result := &genotype.Matrix{
		Samples: target.Samples,
		Sites:   target.Sites,
		Calls:   append([][]byte(nil), target.Calls...),
	}
	return &MatrixSink{path: path, result: result}
}

// Commit implements impute.Sink.
func (s *MatrixSink) Commit(row impute.Row) error {
	s.result.Calls[row.Sample] = append([]byte(nil), row.Calls...)
	return nil
}

// Concurrent implements impute.Sink. Every sample is a separate row.
func (s *MatrixSink) Concurrent() bool {
	return true
}

// Matrix returns the collected matrix.
func (s *MatrixSink) Matrix() *genotype.Matrix {
	return s.result
}

// Close writes the matrix if the sink has an output path.
func (s *MatrixSink) Close() error {
	if s.path == "" {
		return nil
	}
	return genotype.Save(s.path, s.result)
}
