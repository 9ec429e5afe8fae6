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
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/exascience/elimpute/genotype"
	"github.com/exascience/elimpute/internal"
	"github.com/exascience/elimpute/impute"
	"github.com/exascience/elimpute/output"
	"github.com/exascience/elimpute/panel"
)

// ImputeHelp is the help string for this command.
const ImputeHelp = "impute parameters:\n" +
	"elimpute impute target-file output-file --donors donor-file\n" +
	"[--min-minor-count n]\n" +
	"[--major-ratio n]\n" +
	"[--max-inbred-error f]\n" +
	"[--max-hybrid-error f]\n" +
	"[--min-test-sites n]\n" +
	"[--min-sites-present n]\n" +
	"[--max-donor-hypotheses n]\n" +
	"[--inbred-off]\n" +
	"[--hybrid-off]\n" +
	"[--no-swap-fix]\n" +
	"[--no-resolve-het]\n" +
	"[--impute-donors]\n" +
	"[--output-mode [matrix | sqlite | projection]]\n" +
	"[--join-timeout duration]\n" +
	"[--nr-of-threads n]\n" +
	"[--timed]\n" +
	"[--profile file]\n" +
	"[--log-path path]\n"

// Impute implements the elimpute impute command.
func Impute() error {
	params := impute.DefaultParameters()
	var (
		donors, outputMode, profile, logPath                               string
		nrOfThreads                                                        int
		inbredOff, hybridOff, noSwapFix, noResolveHet, imputeDonors, timed bool
	)

	var flags flag.FlagSet

	flags.StringVar(&donors, "donors", "", "donor panel file; files with the same prefix are loaded as well")
	flags.IntVar(&params.MinMinorCount, "min-minor-count", params.MinMinorCount, "minor alleles needed to stop growing a window")
	flags.IntVar(&params.MajorMinorRatio, "major-ratio", params.MajorMinorRatio, "ratio of major to minor alleles needed to stop growing a window")
	flags.Float64Var(&params.MaxInbredError, "max-inbred-error", params.MaxInbredError, "maximum error rate for an inbred donor")
	flags.Float64Var(&params.MaxHybridError, "max-hybrid-error", params.MaxHybridError, "maximum error rate for a pair of donors")
	flags.IntVar(&params.MinTestSites, "min-test-sites", params.MinTestSites, "minimum number of compared sites")
	flags.IntVar(&params.MinSitesPresent, "min-sites-present", params.MinSitesPresent, "minimum number of known calls for a sample to be imputed")
	flags.IntVar(&params.MaxDonorHypotheses, "max-donor-hypotheses", params.MaxDonorHypotheses, "number of donor hypotheses kept per block")
	flags.BoolVar(&inbredOff, "inbred-off", false, "do not resolve blocks with inbred donors")
	flags.BoolVar(&hybridOff, "hybrid-off", false, "do not resolve blocks with pairs of donors")
	flags.BoolVar(&noSwapFix, "no-swap-fix", false, "do not compare sites with swapped major and minor alleles")
	flags.BoolVar(&noResolveHet, "no-resolve-het", false, "keep homozygous calls when the donors suggest a heterozygous call")
	flags.BoolVar(&imputeDonors, "impute-donors", false, "do not use donors with the same name as the imputed sample")
	flags.StringVar(&outputMode, "output-mode", "", "write a matrix, a sqlite database, or a projection file")
	flags.DurationVar(&params.JoinTimeout, "join-timeout", params.JoinTimeout, "maximum time to wait for all samples")
	flags.IntVar(&nrOfThreads, "nr-of-threads", 0, "number of worker threads")
	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	flags.StringVar(&profile, "profile", "", "write a runtime profile to the specified file(s)")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	parseFlags(flags, 4, ImputeHelp)

	input := getFilename(os.Args[2], ImputeHelp)
	outputFile := getFilename(os.Args[3], ImputeHelp)

	setLogOutput(logPath)

	// sanity checks

	var sanityChecksFailed bool

	if !checkExist("", input) {
		sanityChecksFailed = true
	}
	if donors == "" {
		log.Println("Error: Missing --donors option.")
		sanityChecksFailed = true
	} else if !isRemote(donors) && !checkExist("--donors", filepath.Dir(donors)) {
		sanityChecksFailed = true
	}
	if !checkCreate("", outputFile) {
		sanityChecksFailed = true
	}
	if profile != "" && !checkCreate("--profile", profile) {
		sanityChecksFailed = true
	}

	switch strings.ToLower(outputMode) {
	case "", output.MatrixMode, output.SQLiteMode, output.ProjectionMode:
	default:
		log.Printf("Error: Invalid output mode %v.\n", outputMode)
		sanityChecksFailed = true
	}

	if nrOfThreads < 0 {
		sanityChecksFailed = true
		log.Println("Error: Invalid nr-of-threads: ", nrOfThreads)
	}

	params.InbredSearch = !inbredOff
	params.HybridSearch = !hybridOff
	params.SwapFix = !noSwapFix
	params.ResolveHetIfUndercalled = !noResolveHet
	params.ExcludeSelf = imputeDonors
	if nrOfThreads > 0 {
		params.Threads = nrOfThreads
	}
	if err := params.Validate(); err != nil {
		log.Println("Error:", err)
		sanityChecksFailed = true
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, ImputeHelp)
		os.Exit(1)
	}

	// building output command line

	var command bytes.Buffer
	fmt.Fprint(&command, os.Args[0], " impute ", input, " ", outputFile, " --donors ", donors)
	fmt.Fprint(&command, " --min-minor-count ", params.MinMinorCount)
	fmt.Fprint(&command, " --major-ratio ", params.MajorMinorRatio)
	fmt.Fprint(&command, " --max-inbred-error ", params.MaxInbredError)
	fmt.Fprint(&command, " --max-hybrid-error ", params.MaxHybridError)
	fmt.Fprint(&command, " --min-test-sites ", params.MinTestSites)
	fmt.Fprint(&command, " --min-sites-present ", params.MinSitesPresent)
	fmt.Fprint(&command, " --max-donor-hypotheses ", params.MaxDonorHypotheses)
	if inbredOff {
		fmt.Fprint(&command, " --inbred-off")
	}
	if hybridOff {
		fmt.Fprint(&command, " --hybrid-off")
	}
	if noSwapFix {
		fmt.Fprint(&command, " --no-swap-fix")
	}
	if noResolveHet {
		fmt.Fprint(&command, " --no-resolve-het")
	}
	if imputeDonors {
		fmt.Fprint(&command, " --impute-donors")
	}
	if outputMode != "" {
		fmt.Fprint(&command, " --output-mode ", outputMode)
	}
	fmt.Fprint(&command, " --join-timeout ", params.JoinTimeout)
	if nrOfThreads > 0 {
		runtime.GOMAXPROCS(nrOfThreads)
		fmt.Fprint(&command, " --nr-of-threads ", nrOfThreads)
	}
	if timed {
		fmt.Fprint(&command, " --timed")
	}
	if profile != "" {
		fmt.Fprint(&command, " --profile ", profile)
	}
	if logPath != "" {
		fmt.Fprint(&command, " --log-path ", logPath)
	}

	// executing command

	log.Println("Executing command:\n", command.String())

	outputFile, err := internal.FullPathname(outputFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	client, err := storageClient(ctx, input, donors)
	if err != nil {
		return err
	}
	if client != nil {
		defer client.Close()
	}

	var (
		target   *genotype.Matrix
		panels   []*panel.Panel
		segments []*panel.Segment
	)

	if err = timedRun(timed, profile, "Loading target and donor panels.", 1, func() error {
		if target, err = genotype.Load(ctx, input, client); err != nil {
			return err
		}
		target.Optimize()
		log.Printf("Target: %v samples, %v sites\n", target.NumSamples(), target.NumSites())
		files, err := panel.Discover(ctx, donors, client)
		if err != nil {
			return err
		}
		if panels, err = panel.Load(ctx, files, client); err != nil {
			return err
		}
		segments = panel.HarmonizeAll(target, panels)
		return nil
	}); err != nil {
		return err
	}

	return timedRun(timed, profile, "Imputing samples.", 2, func() (err error) {
		sink, err := output.NewSink(outputMode, outputFile, target, panels)
		if err != nil {
			return err
		}
		accuracy, err := impute.Run(target, segments, &params, sink)
		if nerr := sink.Close(); err == nil {
			err = nerr
		}
		if err != nil {
			return err
		}
		summary, err := accuracy.Summarize()
		if err != nil {
			return err
		}
		log.Println("Imputation summary:", summary)
		return nil
	})
}
