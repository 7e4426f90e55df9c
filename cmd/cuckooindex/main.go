// Copyright 2024 The Cuckoo Index Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package main

import (
	"log"

	"github.com/spf13/cobra"
)

var (
	numRows        int
	numDistinct    int
	rowsPerStripe  int
	slotsPerBucket int
	scanRate       float64
	skewedKicking  bool
	sorting        string
	seed           int64
	verbose        bool
)

var rootCmd = &cobra.Command{
	Use:   "cuckooindex [command] (flags)",
	Short: "cuckooindex benchmarking/introspection tool",
	Long:  ``,
}

func main() {
	log.SetFlags(0)

	cobra.EnableCommandSorting = false
	rootCmd.AddCommand(
		buildCmd,
		lookupBenchCmd,
		compareCmd,
	)

	for _, cmd := range []*cobra.Command{buildCmd, lookupBenchCmd, compareCmd} {
		cmd.Flags().IntVar(&numRows, "rows", 1<<20, "number of synthetic rows to generate")
		cmd.Flags().IntVar(&numDistinct, "distinct", 1<<14, "number of distinct values in the Zipf-distributed column")
		cmd.Flags().IntVar(&rowsPerStripe, "rows-per-stripe", 1024, "rows per stripe")
		cmd.Flags().IntVar(&slotsPerBucket, "slots-per-bucket", 4, "cuckoo bucket width (1, 2, 4, or 8)")
		cmd.Flags().Float64Var(&scanRate, "scan-rate", 0.05, "target false-positive scan rate")
		cmd.Flags().BoolVar(&skewedKicking, "skewed-kicking", true, "use skewed-kicking instead of plain kicking")
		cmd.Flags().StringVar(&sorting, "sorting", "none", "row order for the synthetic column: none, sorted, or shuffled")
		cmd.Flags().Int64Var(&seed, "seed", 1449168817, "PRNG seed for synthetic column generation")
		cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose event logging")
	}

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
