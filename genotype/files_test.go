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
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const smallHapMap = "rs#\talleles\tchrom\tpos\tstrand\tassembly#\tcenter\tprotLSID\tassayLSID\tpanelLSID\tQCcode\tB73\tMo17\n" +
	"S1_100\tA/G\t1\t100\t+\tNA\tNA\tNA\tNA\tNA\tNA\tA\tG\n" +
	"S1_200\tC/T\t1\t200\t+\tNA\tNA\tNA\tNA\tNA\tNA\tY\tN\n" +
	"S1_300\tA/C\t1\t300\t+\tNA\tNA\tNA\tNA\tNA\tNA\tAC\tC/C\n"

func TestReadHapMap(t *testing.T) {
	m, err := ReadHapMap(strings.NewReader(smallHapMap))
	require.NoError(t, err)
	assert.Equal(t, []string{"B73", "Mo17"}, m.Samples)
	require.Equal(t, 3, m.NumSites())
	assert.Equal(t, "1", *m.Sites[0].Chrom)
	assert.Equal(t, int32(200), m.Sites[1].Position)
	assert.Equal(t, Diploid(AlleleC, AlleleT), m.Call(0, 1))
	assert.Equal(t, Unknown, m.Call(1, 1))
	assert.Equal(t, Diploid(AlleleA, AlleleC), m.Call(0, 2))
	assert.Equal(t, Diploid(AlleleC, AlleleC), m.Call(1, 2))
}

func TestReadHapMapErrors(t *testing.T) {
	_, err := ReadHapMap(strings.NewReader("chrom\tpos\n"))
	assert.Error(t, err)
	_, err = ReadHapMap(strings.NewReader(smallHapMap + "S1_400\tA/G\t1\t400\t+\tNA\tNA\tNA\tNA\tNA\tNA\tA\n"))
	assert.Error(t, err)
	_, err = ReadHapMap(strings.NewReader(smallHapMap + "S1_400\tA/G\t1\t400\t+\tNA\tNA\tNA\tNA\tNA\tNA\tA\tX\n"))
	assert.Error(t, err)
}

func TestHapMapRoundTrip(t *testing.T) {
	m, err := ReadHapMap(strings.NewReader(smallHapMap))
	require.NoError(t, err)
	m.Optimize()
	var buf bytes.Buffer
	require.NoError(t, WriteHapMap(&buf, m))
	m2, err := ReadHapMap(&buf)
	require.NoError(t, err)
	assert.Equal(t, m.Samples, m2.Samples)
	assert.Equal(t, m.Calls, m2.Calls)
	for i := range m.Sites {
		assert.Equal(t, m.Sites[i].Position, m2.Sites[i].Position)
		assert.Equal(t, m.Sites[i].Chrom, m2.Sites[i].Chrom)
	}
}

func TestArrowRoundTrip(t *testing.T) {
	m, err := ReadHapMap(strings.NewReader(smallHapMap))
	require.NoError(t, err)
	m.Optimize()
	f, err := os.CreateTemp(t.TempDir(), "*.arrow")
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, WriteArrow(f, m, 2))
	_, err = f.Seek(0, io.SeekStart)
	require.NoError(t, err)
	m2, err := ReadArrow(f)
	require.NoError(t, err)
	assert.Equal(t, m.Samples, m2.Samples)
	assert.Equal(t, m.Sites, m2.Sites)
	assert.Equal(t, m.Calls, m2.Calls)

	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	m3, err := ReadArrow(bytes.NewBuffer(data))
	require.NoError(t, err)
	assert.Equal(t, m.Calls, m3.Calls)
}

func TestSaveLoadCompressed(t *testing.T) {
	m, err := ReadHapMap(strings.NewReader(smallHapMap))
	require.NoError(t, err)
	dir := t.TempDir()
	for _, name := range []string{"out.hmp.txt", "out.hmp.txt.gz", "out.arrow"} {
		path := filepath.Join(dir, name)
		require.NoError(t, Save(path, m))
		m2, err := Load(context.Background(), path, nil)
		require.NoError(t, err, name)
		assert.Equal(t, m.Calls, m2.Calls, name)
	}
}

func TestLoadEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.hmp.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.SplitAfter(smallHapMap, "\n")[0]), 0600))
	_, err := Load(context.Background(), path, nil)
	assert.Error(t, err)
}

func TestLoadGoogleStorageWithoutClient(t *testing.T) {
	_, err := Load(context.Background(), "gs://bucket/panel.hmp.txt", nil)
	assert.Error(t, err)
}
