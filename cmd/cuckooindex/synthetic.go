// Copyright 2024 The Cuckoo Index Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package main

import (
	"log"
	"math/rand"
	"sort"

	"github.com/cuckooidx/cuckooindex/column"
)

// syntheticColumn builds a Zipf-distributed int32 column of the requested
// shape, standing in for the CSV/Parquet ingest spec section 8's Non-goals
// exclude from this tool. order controls row layout ("none", "sorted", or
// "shuffled"), a harness-only concern per SPEC_FULL.md's Non-goals carve-out.
func syntheticColumn(rows, distinct, rowsPerStripe int, seed int64, order string) *column.Column {
	rng := rand.New(rand.NewSource(seed))
	// s > 1, v >= 1 gives a Zipf distribution skewed toward small ids,
	// matching the reference workload's non-uniform value frequencies.
	zipf := rand.NewZipf(rng, 1.5, 1, uint64(distinct-1))
	values := make([]int32, rows)
	for i := range values {
		values[i] = int32(zipf.Uint64()) + 1 // +1: keep 0 reserved for NULL
	}
	switch order {
	case "none":
	case "sorted":
		sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	case "shuffled":
		rng.Shuffle(len(values), func(i, j int) { values[i], values[j] = values[j], values[i] })
	default:
		log.Fatalf("unknown --sorting %q: want none, sorted, or shuffled", order)
	}
	return &column.Column{
		Name:          "synthetic",
		Values:        values,
		RowsPerStripe: rowsPerStripe,
	}
}
