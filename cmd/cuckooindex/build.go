// Copyright 2024 The Cuckoo Index Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package main

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuckooidx/cuckooindex/cuckooindex"
	"github.com/cuckooidx/cuckooindex/internal/cuckoo"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "build a CuckooIndex over a synthetic Zipf-distributed column and report its stats",
	Long:  ``,
	Args:  cobra.NoArgs,
	Run:   runBuild,
}

func indexConfig() cuckooindex.Config {
	cfg := cuckooindex.DefaultConfig()
	cfg.SlotsPerBucket = slotsPerBucket
	cfg.ScanRate = scanRate
	if !skewedKicking {
		cfg.Algorithm = cuckoo.Kicking
	}
	return cfg
}

func runBuild(cmd *cobra.Command, args []string) {
	col := syntheticColumn(numRows, numDistinct, rowsPerStripe, seed, sorting)
	cfg := indexConfig()

	if verbose {
		log.Printf("building CuckooIndex: rows=%d distinct=%d rows-per-stripe=%d stripes=%d slots-per-bucket=%d scan-rate=%.4f algorithm=%s",
			numRows, numDistinct, rowsPerStripe, col.NumStripes(), cfg.SlotsPerBucket, cfg.ScanRate, cfg.Algorithm)
	}

	start := time.Now()
	idx, err := cuckooindex.Build(col, cfg)
	elapsed := time.Since(start)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("build time:            %s\n", elapsed)
	fmt.Printf("distinct values:       %d\n", len(col.DistinctValues()))
	fmt.Printf("stripes:               %d\n", col.NumStripes())
	fmt.Printf("byte size:             %d\n", idx.ByteSize())
	fmt.Printf("compressed byte size:  %d\n", idx.CompressedByteSize())
	fmt.Printf("bytes per distinct:    %.2f\n", float64(idx.ByteSize())/float64(len(col.DistinctValues())))
}
