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
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/carbocation/pfx"

	"github.com/exascience/elimpute/utils"
)

// DefaultArrowChunkSize is the number of sites per Arrow record batch.
const DefaultArrowChunkSize = 4096

const arrowSiteColumns = 5

// ArrowWriter writes the sites of a genotype matrix as chunked Arrow
// record batches: one row per site, one uint8 column per sample.
type ArrowWriter struct {
	schema         *arrow.Schema
	writer         *ipc.FileWriter
	names          *array.StringBuilder
	chroms         *array.StringBuilder
	positions      *array.Int32Builder
	majors         *array.Uint8Builder
	minors         *array.Uint8Builder
	calls          []*array.Uint8Builder
	chunkSize      int
	numRowsInChunk int
}

func arrowSchema(samples []string) *arrow.Schema {
	fields := []arrow.Field{
		{Name: "site", Type: arrow.BinaryTypes.String},
		{Name: "chrom", Type: arrow.BinaryTypes.String},
		{Name: "pos", Type: arrow.PrimitiveTypes.Int32},
		{Name: "major", Type: arrow.PrimitiveTypes.Uint8},
		{Name: "minor", Type: arrow.PrimitiveTypes.Uint8},
	}
	for _, sample := range samples {
		fields = append(fields, arrow.Field{Name: sample, Type: arrow.PrimitiveTypes.Uint8})
	}
	return arrow.NewSchema(fields, nil)
}

// NewArrowWriter creates an ArrowWriter for the given samples.
func NewArrowWriter(w io.WriteSeeker, samples []string, chunkSize int) (*ArrowWriter, error) {
	pool := memory.NewGoAllocator()
	schema := arrowSchema(samples)
	writer, err := ipc.NewFileWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(pool))
	if err != nil {
		return nil, pfx.Err(err)
	}
	aw := &ArrowWriter{
		schema:    schema,
		writer:    writer,
		names:     array.NewStringBuilder(pool),
		chroms:    array.NewStringBuilder(pool),
		positions: array.NewInt32Builder(pool),
		majors:    array.NewUint8Builder(pool),
		minors:    array.NewUint8Builder(pool),
		calls:     make([]*array.Uint8Builder, len(samples)),
		chunkSize: chunkSize,
	}
	for i := range aw.calls {
		aw.calls[i] = array.NewUint8Builder(pool)
	}
	return aw, nil
}

// Write appends one site with the calls of all samples at that site.
func (aw *ArrowWriter) Write(site *Site, calls []byte) error {
	if len(calls) != len(aw.calls) {
		return fmt.Errorf("mismatch in number of samples: expected %d, got %d", len(aw.calls), len(calls))
	}
	aw.names.Append(site.Name)
	aw.chroms.Append(*site.Chrom)
	aw.positions.Append(site.Position)
	aw.majors.Append(site.Major)
	aw.minors.Append(site.Minor)
	for i, call := range calls {
		aw.calls[i].Append(call)
	}
	aw.numRowsInChunk++
	if aw.numRowsInChunk == aw.chunkSize {
		return aw.writeChunk()
	}
	return nil
}

func (aw *ArrowWriter) writeChunk() error {
	cols := []arrow.Array{
		aw.names.NewArray(), aw.chroms.NewArray(), aw.positions.NewArray(),
		aw.majors.NewArray(), aw.minors.NewArray(),
	}
	for _, b := range aw.calls {
		cols = append(cols, b.NewArray())
	}
	record := array.NewRecord(aw.schema, cols, int64(aw.numRowsInChunk))
	defer record.Release()
	for _, col := range cols {
		col.Release()
	}
	if err := aw.writer.Write(record); err != nil {
		return pfx.Err(err)
	}
	aw.numRowsInChunk = 0
	return nil
}

// Close writes any remaining sites and the file footer.
func (aw *ArrowWriter) Close() error {
	if aw.numRowsInChunk > 0 {
		if err := aw.writeChunk(); err != nil {
			return err
		}
	}
	return aw.writer.Close()
}

// WriteArrow writes a complete genotype matrix in Arrow IPC file format.
func WriteArrow(w io.WriteSeeker, m *Matrix, chunkSize int) error {
	aw, err := NewArrowWriter(w, m.Samples, chunkSize)
	if err != nil {
		return err
	}
	calls := make([]byte, m.NumSamples())
	for i := range m.Sites {
		for sample, row := range m.Calls {
			calls[sample] = row[i]
		}
		if err := aw.Write(&m.Sites[i], calls); err != nil {
			return err
		}
	}
	return aw.Close()
}

// WriteArrowFile writes a genotype matrix to a local Arrow IPC file.
func WriteArrowFile(path string, m *Matrix, chunkSize int) (err error) {
	if err = os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if nerr := f.Close(); err == nil {
			err = nerr
		}
	}()
	return WriteArrow(f, m, chunkSize)
}

// ReadArrow reads a genotype matrix from an Arrow IPC file. Readers
// without random access are buffered in memory first.
func ReadArrow(r io.Reader) (*Matrix, error) {
	ras, ok := r.(ipc.ReadAtSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		ras = bytes.NewReader(data)
	}
	reader, err := ipc.NewFileReader(ras, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer reader.Close()

	fields := reader.Schema().Fields()
	if len(fields) < arrowSiteColumns || fields[0].Name != "site" {
		return nil, fmt.Errorf("invalid genotype Arrow schema")
	}
	samples := make([]string, 0, len(fields)-arrowSiteColumns)
	for _, field := range fields[arrowSiteColumns:] {
		samples = append(samples, field.Name)
	}
	m := &Matrix{Samples: samples, Calls: make([][]byte, len(samples))}
	for i := 0; i < reader.NumRecords(); i++ {
		record, err := reader.Record(i)
		if err != nil {
			return nil, pfx.Err(err)
		}
		names := record.Column(0).(*array.String)
		chroms := record.Column(1).(*array.String)
		positions := record.Column(2).(*array.Int32)
		majors := record.Column(3).(*array.Uint8)
		minors := record.Column(4).(*array.Uint8)
		for row := 0; row < int(record.NumRows()); row++ {
			m.Sites = append(m.Sites, Site{
				Name:     names.Value(row),
				Chrom:    utils.Intern(chroms.Value(row)),
				Position: positions.Value(row),
				Major:    majors.Value(row),
				Minor:    minors.Value(row),
			})
		}
		for sample := range samples {
			m.Calls[sample] = append(m.Calls[sample], record.Column(arrowSiteColumns+sample).(*array.Uint8).Uint8Values()...)
		}
	}
	return m, m.Validate()
}
