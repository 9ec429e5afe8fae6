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

package cmd

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/exascience/elimpute/genotype"
	"github.com/exascience/elimpute/output"
)

// CompareHelp is the help string for this command.
const CompareHelp = "\ncompare parameters:\n" +
	"elimpute compare original-file imputed-file\n" +
	"[--mask masked-file]\n" +
	"[--per-sample]\n" +
	"[--log-path path]\n"

// Compare implements the elimpute compare command. It reports the
// accuracy of an imputed genotype file against the original one.
func Compare() error {
	var (
		mask, logPath string
		perSample     bool
	)

	var flags flag.FlagSet

	flags.StringVar(&mask, "mask", "", "only compare the sites where this file differs from the original")
	flags.BoolVar(&perSample, "per-sample", false, "report the comparison of every sample")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	parseFlags(flags, 4, CompareHelp)

	original := getFilename(os.Args[2], CompareHelp)
	imputed := getFilename(os.Args[3], CompareHelp)

	setLogOutput(logPath)

	var sanityChecksFailed bool

	if !checkExist("", original) {
		sanityChecksFailed = true
	}
	if !checkExist("", imputed) {
		sanityChecksFailed = true
	}
	if mask != "" && !checkExist("--mask", mask) {
		sanityChecksFailed = true
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, CompareHelp)
		os.Exit(1)
	}

	ctx := context.Background()
	client, err := storageClient(ctx, original, imputed, mask)
	if err != nil {
		return err
	}
	if client != nil {
		defer client.Close()
	}

	load := func(filename, kind string) (*genotype.Matrix, error) {
		m, err := genotype.Load(ctx, filename, client)
		if err == nil {
			log.Printf("%v %v: %v samples, %v sites\n", kind, filename, m.NumSamples(), m.NumSites())
		}
		return m, err
	}

	originalMatrix, err := load(original, "Original")
	if err != nil {
		return err
	}
	var maskMatrix *genotype.Matrix
	if mask != "" {
		if maskMatrix, err = load(mask, "Mask"); err != nil {
			return err
		}
	}
	imputedMatrix, err := load(imputed, "Imputed")
	if err != nil {
		return err
	}

	total, samples, err := output.Compare(originalMatrix, maskMatrix, imputedMatrix)
	if err != nil {
		return err
	}
	if perSample {
		for i, c := range samples {
			log.Println(imputedMatrix.Samples[i], c)
		}
	}
	log.Printf("%v ErrorRate:%g\n", total, total.ErrorRate())
	return nil
}
