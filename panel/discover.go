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

package panel

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
	"google.golang.org/api/iterator"

	"github.com/exascience/elimpute/genotype"
	"github.com/exascience/elimpute/internal"
)

// Panel files for different chromosome segments share a prefix up to
// one of these tokens, for example "donors.gX.chr1.hmp.txt" and
// "donors.gc.chr2.hmp.txt", or "AllTaxa_s+1.hmp.txt" and "AllTaxa_s2.hmp.txt".
var prefixTokens = []struct{ token, suffix string }{
	{".gX.", ".gc"},
	{"s+", "s"},
}

// SiblingMatcher returns a predicate that accepts the file names that
// belong to the same donor panel as the given file name.
func SiblingMatcher(name string) func(string) bool {
	var prefixes []string
	for _, t := range prefixTokens {
		if i := strings.Index(name, t.token); i >= 0 {
			prefixes = append(prefixes, name[:i]+t.suffix)
		}
	}
	return func(candidate string) bool {
		if candidate == name {
			return true
		}
		for _, prefix := range prefixes {
			if strings.HasPrefix(candidate, prefix) {
				return true
			}
		}
		return false
	}
}

// Discover lists all donor panel files that share a prefix with the
// given donor file, in a local directory or a gs:// location.
func Discover(ctx context.Context, donorFile string, client *storage.Client) ([]string, error) {
	var result []string
	if strings.HasPrefix(donorFile, genotype.GoogleStoragePrefix) {
		if client == nil {
			return nil, fmt.Errorf("no Google Storage client available to list %v", donorFile)
		}
		bucket, object, err := genotype.SplitGoogleStoragePath(donorFile)
		if err != nil {
			return nil, err
		}
		dir, name := path.Split(object)
		match := SiblingMatcher(name)
		it := client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: dir})
		for {
			attrs, err := it.Next()
			if err == iterator.Done {
				break
			}
			if err != nil {
				return nil, pfx.Err(err)
			}
			if rest := strings.TrimPrefix(attrs.Name, dir); !strings.Contains(rest, "/") && match(rest) {
				result = append(result, genotype.GoogleStoragePrefix+bucket+"/"+attrs.Name)
			}
		}
	} else {
		dir, name := filepath.Split(donorFile)
		if dir == "" {
			dir = "."
		}
		files, err := internal.Directory(dir)
		if err != nil {
			return nil, err
		}
		match := SiblingMatcher(name)
		for _, file := range files {
			if match(file) {
				result = append(result, filepath.Join(dir, file))
			}
		}
	}
	sort.Strings(result)
	return result, nil
}
