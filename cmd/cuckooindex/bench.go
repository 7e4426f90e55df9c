// Copyright 2024 The Cuckoo Index Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package main

import (
	"fmt"
	"log"
	"math/rand"

	"github.com/spf13/cobra"

	"github.com/cuckooidx/cuckooindex/cuckooindex"
)

var lookupBenchCmd = &cobra.Command{
	Use:   "lookup-bench",
	Short: "measure the observed false-positive scan rate of point lookups against every stripe",
	Long:  ``,
	Args:  cobra.NoArgs,
	Run:   runLookupBench,
}

func runLookupBench(cmd *cobra.Command, args []string) {
	col := syntheticColumn(numRows, numDistinct, rowsPerStripe, seed, sorting)
	idx, err := cuckooindex.Build(col, indexConfig())
	if err != nil {
		log.Fatal(err)
	}

	truth := col.StripeBitmaps()
	rng := rand.New(rand.NewSource(seed + 1))
	distinct := col.DistinctValues()

	var negatives, falsePositiveStripes, negativeStripes int64
	for i := 0; i < numDistinct; i++ {
		v := distinct[rng.Intn(len(distinct))]
		want := truth[v]
		got := idx.GetQualifyingStripes(v)
		for s := 0; s < col.NumStripes(); s++ {
			if want.Get(s) {
				continue
			}
			negativeStripes++
			if got.Get(s) {
				falsePositiveStripes++
			}
		}
		negatives++
	}

	rate := float64(0)
	if negativeStripes > 0 {
		rate = float64(falsePositiveStripes) / float64(negativeStripes)
	}
	fmt.Printf("queries:                 %d\n", negatives)
	fmt.Printf("true-negative stripes:   %d\n", negativeStripes)
	fmt.Printf("false-positive stripes:  %d\n", falsePositiveStripes)
	fmt.Printf("observed scan rate:      %.5f (target %.5f)\n", rate, scanRate)
}
