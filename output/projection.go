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

package output

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/exascience/pargo/parallel"
	"github.com/google/uuid"

	"github.com/exascience/elimpute/genotype"
	"github.com/exascience/elimpute/impute"
	"github.com/exascience/elimpute/panel"
)

const (
	donorHeader      = "#Donor Haplotypes"
	breakpointHeader = "#Taxa Breakpoints"
	breakpointFormat = "#Block are defined position:donor1:donor2 (-1 means no hypothesis)"
)

// Projection describes every sample as a sequence of breakpoints into
// a set of donor haplotypes.
type Projection struct {
	Donors      []string
	Samples     []string
	Breakpoints [][]impute.Breakpoint
}

// FormatBreakpoints renders breakpoints as tab-separated
// position:donor1:donor2 entries.
func FormatBreakpoints(bps []impute.Breakpoint) string {
	var sb strings.Builder
	for i, bp := range bps {
		if i > 0 {
			sb.WriteByte('\t')
		}
		sb.WriteString(strconv.FormatInt(int64(bp.Position), 10))
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(bp.Donor1))
		sb.WriteByte(':')
		sb.WriteString(strconv.Itoa(bp.Donor2))
	}
	return sb.String()
}

// ParseBreakpoint parses a position:donor1:donor2 entry. Only the
// position and the donors are known, so the site is -1.
func ParseBreakpoint(s string) (bp impute.Breakpoint, err error) {
	fields := strings.Split(s, ":")
	if len(fields) != 3 {
		return bp, fmt.Errorf("invalid breakpoint %v", s)
	}
	position, err := strconv.ParseInt(fields[0], 10, 32)
	if err != nil {
		return bp, fmt.Errorf("%v, in breakpoint %v", err, s)
	}
	donor1, err := strconv.Atoi(fields[1])
	if err != nil {
		return bp, fmt.Errorf("%v, in breakpoint %v", err, s)
	}
	donor2, err := strconv.Atoi(fields[2])
	if err != nil {
		return bp, fmt.Errorf("%v, in breakpoint %v", err, s)
	}
	return impute.Breakpoint{Site: -1, Position: int32(position), Donor1: donor1, Donor2: donor2}, nil
}

// Write writes a projection file.
func (p *Projection) Write(w io.Writer, runID string) error {
	out := bufio.NewWriter(w)
	fmt.Fprintf(out, "%d\t%d\n", len(p.Donors), len(p.Samples))
	if runID != "" {
		fmt.Fprintf(out, "#Run %v\n", runID)
	}
	fmt.Fprintln(out, donorHeader)
	for i, name := range p.Donors {
		fmt.Fprintf(out, "%d\t%v\n", i, name)
	}
	fmt.Fprintln(out, breakpointHeader)
	fmt.Fprintln(out, breakpointFormat)
	for i, name := range p.Samples {
		out.WriteString(name)
		if bps := p.Breakpoints[i]; len(bps) > 0 {
			out.WriteByte('\t')
			out.WriteString(FormatBreakpoints(bps))
		}
		if err := out.WriteByte('\n'); err != nil {
			return err
		}
	}
	return out.Flush()
}

// ReadProjection reads a projection file.
func ReadProjection(r io.Reader) (*Projection, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, 1<<30)
	nextLine := func() (string, bool) {
		for scanner.Scan() {
			if line := scanner.Text(); !strings.HasPrefix(line, "#") {
				return line, true
			}
		}
		return "", false
	}
	line, ok := nextLine()
	if !ok {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("empty projection file")
	}
	counts := strings.Split(line, "\t")
	if len(counts) != 2 {
		return nil, fmt.Errorf("invalid projection header %v", line)
	}
	nDonors, err := strconv.Atoi(counts[0])
	if err != nil {
		return nil, fmt.Errorf("%v, in projection header %v", err, line)
	}
	nSamples, err := strconv.Atoi(counts[1])
	if err != nil {
		return nil, fmt.Errorf("%v, in projection header %v", err, line)
	}
	p := &Projection{
		Donors:      make([]string, nDonors),
		Samples:     make([]string, nSamples),
		Breakpoints: make([][]impute.Breakpoint, nSamples),
	}
	for i := 0; i < nDonors; i++ {
		if line, ok = nextLine(); !ok {
			return nil, fmt.Errorf("projection file has %v donors, expected %v", i, nDonors)
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 2 {
			return nil, fmt.Errorf("invalid donor line %v", line)
		}
		if index, err := strconv.Atoi(fields[0]); err != nil || index != i {
			return nil, fmt.Errorf("donor %v out of order", line)
		}
		p.Donors[i] = fields[1]
	}
	for i := 0; i < nSamples; i++ {
		if line, ok = nextLine(); !ok {
			return nil, fmt.Errorf("projection file has %v samples, expected %v", i, nSamples)
		}
		fields := strings.Split(line, "\t")
		p.Samples[i] = fields[0]
		for _, field := range fields[1:] {
			if field == "" {
				continue
			}
			bp, err := ParseBreakpoint(field)
			if err != nil {
				return nil, fmt.Errorf("%v, for sample %v", err, fields[0])
			}
			p.Breakpoints[i] = append(p.Breakpoints[i], bp)
		}
	}
	return p, scanner.Err()
}

// LoadProjection reads a local or gs:// projection file, which may be
// compressed.
func LoadProjection(ctx context.Context, path string, client *storage.Client) (p *Projection, err error) {
	in, err := genotype.Open(ctx, path, client)
	if err != nil {
		return nil, err
	}
	defer func() {
		if nerr := in.Close(); err == nil {
			err = nerr
		}
	}()
	if p, err = ReadProjection(in); err != nil {
		return nil, fmt.Errorf("%v, while loading %v", err, path)
	}
	return p, nil
}

type donorRef struct {
	panel *panel.Panel
	index int
}

func donorRefs(panels []*panel.Panel) (refs []donorRef) {
	for _, p := range panels {
		for i := 0; i < p.NumDonors(); i++ {
			refs = append(refs, donorRef{p, i})
		}
	}
	return refs
}

func (ref donorRef) call(site *genotype.Site) byte {
	s := ref.panel.Donors.SiteOfPosition(site.Chrom, site.Position)
	if s < 0 {
		return genotype.Unknown
	}
	return ref.panel.Donors.Call(ref.index, s)
}

// Expand reconstructs the calls of all samples at the given sites
// from the donor panels. The sites must be the sites the breakpoints
// were recorded at, in the same order. A breakpoint takes effect at
// the site with its position, and a breakpoint that matches no site
// is an error.
func (p *Projection) Expand(sites []genotype.Site, panels []*panel.Panel) (*genotype.Matrix, error) {
	names := panel.DonorNames(panels)
	if len(names) != len(p.Donors) {
		return nil, fmt.Errorf("projection has %v donors, but the panels have %v", len(p.Donors), len(names))
	}
	for i, name := range names {
		if name != p.Donors[i] {
			return nil, fmt.Errorf("donor %v of the projection is %v, but %v in the panels", i, p.Donors[i], name)
		}
	}
	refs := donorRefs(panels)
	checkDonor := func(d int) error {
		if d < impute.NoDonor || d >= len(refs) {
			return fmt.Errorf("donor %v out of range", d)
		}
		return nil
	}
	for _, bps := range p.Breakpoints {
		for _, bp := range bps {
			if err := checkDonor(bp.Donor1); err != nil {
				return nil, err
			}
			if err := checkDonor(bp.Donor2); err != nil {
				return nil, err
			}
		}
	}
	result := genotype.NewMatrix(p.Samples, sites)
	unmatched := make([]error, len(p.Samples))
	parallel.Range(0, len(p.Samples), 0, func(low, high int) {
		for i := low; i < high; i++ {
			bps, row := p.Breakpoints[i], result.Calls[i]
			current := -1
			for s := range sites {
				site := &sites[s]
				if current+1 < len(bps) && bps[current+1].Position == site.Position {
					current++
				}
				if current < 0 || bps[current].Donor1 == impute.NoDonor || bps[current].Donor2 == impute.NoDonor {
					continue
				}
				bp := bps[current]
				c1 := refs[bp.Donor1].call(site)
				if bp.Donor1 == bp.Donor2 {
					row[s] = genotype.UnphasedNoHets(c1, c1)
				} else {
					row[s] = genotype.UnphasedNoHets(c1, refs[bp.Donor2].call(site))
				}
			}
			if current+1 < len(bps) {
				unmatched[i] = fmt.Errorf("breakpoint at position %v of sample %v matches no site", bps[current+1].Position, p.Samples[i])
			}
		}
	})
	if err := errors.Join(unmatched...); err != nil {
		return nil, err
	}
	return result, nil
}

// ProjectionSink collects the breakpoints of all samples and writes
// them as a projection file when closed.
type ProjectionSink struct {
	path       string
	runID      string
	projection *Projection
}

// NewProjectionSink creates a projection sink for the target samples
// and the donors of all panels.
func NewProjectionSink(path string, target *genotype.Matrix, panels []*panel.Panel) *ProjectionSink {
	return &ProjectionSink{
		path:  path,
		runID: uuid.New().String(),
		projection: &Projection{
			Donors:      panel.DonorNames(panels),
			Samples:     target.Samples,
			Breakpoints: make([][]impute.Breakpoint, target.NumSamples()),
		},
	}
}

// Commit implements impute.Sink.
func (s *ProjectionSink) Commit(row impute.Row) error {
	s.projection.Breakpoints[row.Sample] = row.Breakpoints
	return nil
}

// Concurrent implements impute.Sink.
func (s *ProjectionSink) Concurrent() bool {
	return true
}

// Projection returns the collected projection.
func (s *ProjectionSink) Projection() *Projection {
	return s.projection
}

// Close writes the projection file.
func (s *ProjectionSink) Close() (err error) {
	if s.path == "" {
		return nil
	}
	out, err := genotype.Create(s.path)
	if err != nil {
		return err
	}
	defer func() {
		if nerr := out.Close(); err == nil {
			err = nerr
		}
	}()
	return s.projection.Write(out, s.runID)
}
