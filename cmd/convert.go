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
	"os"

	"github.com/exascience/elimpute/genotype"
)

// ConvertHelp is the help string for this command.
const ConvertHelp = "\nconvert parameters:\n" +
	"elimpute convert input-file output-file\n" +
	"[--log-path path]\n"

// Convert implements the elimpute convert command. The formats are
// determined by the file extensions: .arrow for Arrow IPC files, and
// HapMap text otherwise, gzip compressed for .gz.
func Convert() error {
	var logPath string

	var flags flag.FlagSet
	flags.StringVar(&logPath, "log-path", "", "write log files to the specified directory")
	parseFlags(flags, 4, ConvertHelp)

	input := getFilename(os.Args[2], ConvertHelp)
	outputFile := getFilename(os.Args[3], ConvertHelp)

	setLogOutput(logPath)

	if !checkExist("", input) || !checkCreate("", outputFile) {
		fmt.Fprint(os.Stderr, ConvertHelp)
		os.Exit(1)
	}

	ctx := context.Background()
	client, err := storageClient(ctx, input)
	if err != nil {
		return err
	}
	if client != nil {
		defer client.Close()
	}

	m, err := genotype.Load(ctx, input, client)
	if err != nil {
		return err
	}
	return genotype.Save(outputFile, m)
}
