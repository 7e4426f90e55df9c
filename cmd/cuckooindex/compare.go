// Copyright 2024 The Cuckoo Index Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/cuckooidx/cuckooindex/indexstructure"
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "build every index structure variant over the same synthetic column and compare their sizes",
	Long:  ``,
	Args:  cobra.NoArgs,
	Run:   runCompare,
}

func runCompare(cmd *cobra.Command, args []string) {
	col := syntheticColumn(numRows, numDistinct, rowsPerStripe, seed, sorting)

	factories := []indexstructure.Factory{
		indexstructure.CuckooIndexFactory{Config: indexConfig()},
		indexstructure.ZoneMapFactory{},
		indexstructure.PerStripeBloomFactory{},
	}

	fmt.Printf("%-16s %14s %14s\n", "structure", "byte size", "compressed")
	for _, f := range factories {
		s, err := f.Create(col)
		if err != nil {
			log.Fatalf("%s: %v", f.Name(), err)
		}
		fmt.Printf("%-16s %14d %14d\n", s.Name(), s.ByteSize(), s.CompressedByteSize())
	}
}
