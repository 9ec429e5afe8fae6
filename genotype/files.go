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
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/pgzip"
	"github.com/xi2/xz"
)

// GoogleStoragePrefix marks paths that are read from Google Cloud Storage.
const GoogleStoragePrefix = "gs://"

var (
	gzipMagic = []byte{0x1f, 0x8b, 0x08}
	xzMagic   = []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}
)

type inputFile struct {
	io.Reader
	closers []io.Closer
}

func (f *inputFile) Close() (err error) {
	for i := len(f.closers) - 1; i >= 0; i-- {
		if nerr := f.closers[i].Close(); err == nil {
			err = nerr
		}
	}
	return
}

// SplitGoogleStoragePath splits a gs://bucket/object path.
func SplitGoogleStoragePath(path string) (bucket, object string, err error) {
	parts := strings.SplitN(strings.TrimPrefix(path, GoogleStoragePrefix), "/", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid Google Storage path %v", path)
	}
	return parts[0], parts[1], nil
}

func openRaw(ctx context.Context, path string, client *storage.Client) (io.ReadCloser, error) {
	if !strings.HasPrefix(path, GoogleStoragePrefix) {
		return os.Open(path)
	}
	if client == nil {
		return nil, fmt.Errorf("no Google Storage client available to read %v", path)
	}
	bucket, object, err := SplitGoogleStoragePath(path)
	if err != nil {
		return nil, err
	}
	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
	}
	return r, nil
}

// Open opens a local or gs:// file for reading. Gzip and xz
// compression are detected from the leading bytes of the stream and
// decompressed transparently.
func Open(ctx context.Context, path string, client *storage.Client) (io.ReadCloser, error) {
	raw, err := openRaw(ctx, path, client)
	if err != nil {
		return nil, err
	}
	f := &inputFile{closers: []io.Closer{raw}}
	buffered := bufio.NewReaderSize(raw, 1<<16)
	magic, _ := buffered.Peek(len(xzMagic))
	switch {
	case bytes.HasPrefix(magic, gzipMagic):
		zr, err := gzip.NewReader(buffered)
		if err != nil {
			_ = raw.Close()
			return nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
		}
		f.Reader = zr
		f.closers = append(f.closers, zr)
	case bytes.HasPrefix(magic, xzMagic):
		xr, err := xz.NewReader(buffered, 0)
		if err != nil {
			_ = raw.Close()
			return nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
		}
		f.Reader = xr
	default:
		f.Reader = buffered
	}
	return f, nil
}

type outputFile struct {
	*bufio.Writer
	closers []io.Closer
}

func (f *outputFile) Close() (err error) {
	err = f.Flush()
	for i := len(f.closers) - 1; i >= 0; i-- {
		if nerr := f.closers[i].Close(); err == nil {
			err = nerr
		}
	}
	return
}

// Create creates a local file for writing. Names ending in .gz are
// compressed with parallel gzip.
func Create(path string) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	f := &outputFile{closers: []io.Closer{file}}
	if strings.HasSuffix(path, ".gz") {
		zw := pgzip.NewWriter(file)
		f.closers = append(f.closers, zw)
		f.Writer = bufio.NewWriter(zw)
	} else {
		f.Writer = bufio.NewWriter(file)
	}
	return f, nil
}
