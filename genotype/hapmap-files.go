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
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/exascience/pargo/pipeline"

	"github.com/exascience/elimpute/internal"
	"github.com/exascience/elimpute/utils"
)

// HapMapHeaderColumns is the number of leading site description
// columns in a HapMap file.
const HapMapHeaderColumns = 11

var hapMapHeader = []string{
	"rs#", "alleles", "chrom", "pos", "strand", "assembly#",
	"center", "protLSID", "assayLSID", "panelLSID", "QCcode",
}

type hapMapRow struct {
	site  Site
	calls []byte
}

func parseHapMapLine(line string, nSamples int) (row hapMapRow, err error) {
	fields := strings.Split(line, "\t")
	if len(fields) != HapMapHeaderColumns+nSamples {
		return row, fmt.Errorf("invalid HapMap line with %v columns, expected %v", len(fields), HapMapHeaderColumns+nSamples)
	}
	position, err := strconv.ParseInt(fields[3], 10, 32)
	if err != nil {
		return row, fmt.Errorf("%v, while parsing position of site %v", err, fields[0])
	}
	row.site = Site{
		Name:     fields[0],
		Chrom:    utils.Intern(fields[2]),
		Position: int32(position),
		Major:    AlleleUnknown,
		Minor:    AlleleUnknown,
	}
	row.calls = make([]byte, nSamples)
	for i, field := range fields[HapMapHeaderColumns:] {
		if row.calls[i], err = ParseCall(field); err != nil {
			return row, fmt.Errorf("%v, at site %v", err, fields[0])
		}
	}
	return row, nil
}

// ReadHapMap parses a genotype matrix in HapMap text format.
func ReadHapMap(r io.Reader) (*Matrix, error) {
	reader := bufio.NewReader(r)
	header, err := reader.ReadString('\n')
	if err != nil && (err != io.EOF || header == "") {
		return nil, fmt.Errorf("%v, while reading HapMap header", err)
	}
	columns := strings.Split(strings.TrimRight(header, "\r\n"), "\t")
	if len(columns) < HapMapHeaderColumns || columns[0] != hapMapHeader[0] {
		return nil, fmt.Errorf("invalid HapMap header")
	}
	samples := append([]string(nil), columns[HapMapHeaderColumns:]...)
	nSamples := len(samples)

	var rows []hapMapRow
	var p pipeline.Pipeline
	p.Source(pipeline.NewScanner(reader))
	p.Add(pipeline.LimitedPar(0, pipeline.Receive(func(_ int, data interface{}) interface{} {
		lines := data.([]string)
		batch := make([]hapMapRow, 0, len(lines))
		for _, line := range lines {
			line = strings.TrimRight(line, "\r")
			if line == "" {
				continue
			}
			row, err := parseHapMapLine(line, nSamples)
			if err != nil {
				p.SetErr(err)
				return batch
			}
			batch = append(batch, row)
		}
		return batch
	})))
	p.Add(pipeline.StrictOrd(pipeline.Receive(func(_ int, data interface{}) interface{} {
		rows = append(rows, data.([]hapMapRow)...)
		return data
	})))
	p.Run()
	if err := p.Err(); err != nil {
		return nil, err
	}

	sites := make([]Site, len(rows))
	for i := range rows {
		sites[i] = rows[i].site
	}
	m := &Matrix{Samples: samples, Sites: sites, Calls: make([][]byte, nSamples)}
	for sample := range m.Calls {
		row := make([]byte, len(rows))
		for site := range rows {
			row[site] = rows[site].calls[sample]
		}
		m.Calls[sample] = row
	}
	return m, m.Validate()
}

func formatAlleles(out []byte, site *Site) []byte {
	if site.Major == AlleleUnknown {
		return append(out, 'N')
	}
	out = append(out, AlleleString(site.Major))
	if site.Minor != AlleleUnknown {
		out = append(out, '/', AlleleString(site.Minor))
	}
	return out
}

// WriteHapMap writes a genotype matrix in HapMap text format.
func WriteHapMap(w io.Writer, m *Matrix) error {
	out := bufio.NewWriter(w)
	if _, err := out.WriteString(strings.Join(append(append([]string(nil), hapMapHeader...), m.Samples...), "\t")); err != nil {
		return err
	}
	if err := out.WriteByte('\n'); err != nil {
		return err
	}
	buf := internal.ReserveByteBuffer()
	defer func() { internal.ReleaseByteBuffer(buf) }()
	for i := range m.Sites {
		site := &m.Sites[i]
		buf = append(buf[:0], site.Name...)
		buf = append(buf, '\t')
		buf = formatAlleles(buf, site)
		buf = append(buf, '\t')
		buf = append(buf, *site.Chrom...)
		buf = append(buf, '\t')
		buf = strconv.AppendInt(buf, int64(site.Position), 10)
		buf = append(buf, "\t+\tNA\tNA\tNA\tNA\tNA\tNA"...)
		for _, row := range m.Calls {
			buf = append(buf, '\t', CallString(row[i]))
		}
		buf = append(buf, '\n')
		if _, err := out.Write(buf); err != nil {
			return err
		}
	}
	return out.Flush()
}

// IsArrowFile returns true if the path names an Arrow IPC file.
func IsArrowFile(path string) bool {
	return strings.HasSuffix(path, ".arrow")
}

// Load reads a genotype matrix from a local or gs:// path, in HapMap
// or Arrow format depending on the file extension.
func Load(ctx context.Context, path string, client *storage.Client) (m *Matrix, err error) {
	var in io.ReadCloser
	if IsArrowFile(path) && !strings.HasPrefix(path, GoogleStoragePrefix) {
		in, err = os.Open(path)
	} else {
		in, err = Open(ctx, path, client)
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		if nerr := in.Close(); err == nil {
			err = nerr
		}
	}()
	if IsArrowFile(path) {
		m, err = ReadArrow(in)
	} else {
		m, err = ReadHapMap(in)
	}
	if err != nil {
		return nil, fmt.Errorf("%v, while loading %v", err, path)
	}
	if m.NumSites() == 0 || m.NumSamples() == 0 {
		return nil, fmt.Errorf("genotype file %v is empty", path)
	}
	return m, nil
}

// Save writes a genotype matrix in HapMap or Arrow format depending
// on the file extension.
func Save(path string, m *Matrix) (err error) {
	if IsArrowFile(path) {
		return WriteArrowFile(path, m, DefaultArrowChunkSize)
	}
	out, err := Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if nerr := out.Close(); err == nil {
			err = nerr
		}
	}()
	return WriteHapMap(out, m)
}
