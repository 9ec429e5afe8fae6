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

	"github.com/exascience/elimpute/genotype"
	"github.com/exascience/elimpute/internal"
	"github.com/exascience/elimpute/output"
	"github.com/exascience/elimpute/panel"
)

// ProjectHelp is the help string for this command.
const ProjectHelp = "\nproject parameters:\n" +
	"elimpute project projection-file output-file --donors donor-file --sites target-file\n" +
	"[--nr-of-threads n]\n" +
	"[--timed]\n" +
	"[--log-path path]\n"

// Project implements the elimpute project command. It expands a
// projection file into a full genotype matrix.
func Project() error {
	var (
		donors, sites, logPath string
		nrOfThreads            int
		timed                  bool
	)

	var flags flag.FlagSet

	flags.StringVar(&donors, "donors", "", "donor panel file; files with the same prefix are loaded as well")
	flags.StringVar(&sites, "sites", "", "genotype file with the sites the projection was computed for")
	flags.IntVar(&nrOfThreads, "nr-of-threads", 0, "number of worker threads")
	flags.BoolVar(&timed, "timed", false, "measure the runtime")
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")

	parseFlags(flags, 4, ProjectHelp)

	input := getFilename(os.Args[2], ProjectHelp)
	outputFile := getFilename(os.Args[3], ProjectHelp)

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
	if !checkExist("--sites", sites) {
		sanityChecksFailed = true
	}
	if !checkCreate("", outputFile) {
		sanityChecksFailed = true
	}
	if nrOfThreads < 0 {
		sanityChecksFailed = true
		log.Println("Error: Invalid nr-of-threads: ", nrOfThreads)
	}

	if sanityChecksFailed {
		fmt.Fprint(os.Stderr, ProjectHelp)
		os.Exit(1)
	}

	// building output command line

	var command bytes.Buffer
	fmt.Fprint(&command, os.Args[0], " project ", input, " ", outputFile, " --donors ", donors, " --sites ", sites)
	if nrOfThreads > 0 {
		runtime.GOMAXPROCS(nrOfThreads)
		fmt.Fprint(&command, " --nr-of-threads ", nrOfThreads)
	}
	if timed {
		fmt.Fprint(&command, " --timed")
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
	client, err := storageClient(ctx, input, donors, sites)
	if err != nil {
		return err
	}
	if client != nil {
		defer client.Close()
	}

	return timedRun(timed, "", "Expanding projection.", 1, func() error {
		projection, err := output.LoadProjection(ctx, input, client)
		if err != nil {
			return err
		}
		target, err := genotype.Load(ctx, sites, client)
		if err != nil {
			return err
		}
		files, err := panel.Discover(ctx, donors, client)
		if err != nil {
			return err
		}
		panels, err := panel.Load(ctx, files, client)
		if err != nil {
			return err
		}
		result, err := projection.Expand(target.Sites, panels)
		if err != nil {
			return err
		}
		return genotype.Save(outputFile, result)
	})
}
