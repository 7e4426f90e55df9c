// Copyright 2024 The Cuckoo Index Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Package column models the columnar input the index builders consume: a
// sequence of 32-bit signed integers divided into fixed-size row stripes,
// per spec section 6.
package column

import "github.com/cuckooidx/cuckooindex/internal/bitmap"

// Column is a single dictionary-encoded (or already-integer) column plus the
// row-stripe size the index is built over. String columns are expected to
// be dict-encoded upstream, with id 0 reserved for NULL; Column itself only
// ever sees int32 values.
type Column struct {
	Name          string
	Values        []int32
	RowsPerStripe int
}

// NumStripes returns floor(len(Values) / RowsPerStripe); a trailing partial
// stripe is dropped, per spec section 6.
func (c *Column) NumStripes() int {
	if c.RowsPerStripe <= 0 {
		return 0
	}
	return len(c.Values) / c.RowsPerStripe
}

// NumActiveRows returns the number of rows covered by complete stripes.
func (c *Column) NumActiveRows() int {
	return c.NumStripes() * c.RowsPerStripe
}

// Stripes returns the column's values grouped into complete row stripes,
// dropping any trailing partial stripe.
func (c *Column) Stripes() [][]int32 {
	numStripes := c.NumStripes()
	out := make([][]int32, numStripes)
	for s := 0; s < numStripes; s++ {
		start := s * c.RowsPerStripe
		out[s] = c.Values[start : start+c.RowsPerStripe]
	}
	return out
}

// DistinctValues returns the column's distinct values (over active rows
// only) in first-occurrence order, giving builds a deterministic insertion
// order for a given column.
func (c *Column) DistinctValues() []int32 {
	seen := make(map[int32]bool)
	var out []int32
	for _, v := range c.Values[:c.NumActiveRows()] {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// StripeBitmaps returns, for every distinct value, a bitmap of length
// NumStripes() with bit s set iff the value occurs anywhere within stripe s.
func (c *Column) StripeBitmaps() map[int32]*bitmap.Bitmap {
	numStripes := c.NumStripes()
	builders := make(map[int32]*bitmap.Builder)
	for s, stripe := range c.Stripes() {
		for _, v := range stripe {
			b, ok := builders[v]
			if !ok {
				b = &bitmap.Builder{}
				builders[v] = b
			}
			b.Set(s, true)
		}
	}
	out := make(map[int32]*bitmap.Bitmap, len(builders))
	for v, b := range builders {
		out[v] = b.Finish(numStripes)
	}
	return out
}

// Ones returns, for every distinct value, the number of stripes its
// StripeBitmaps entry has set. This is the input fingerprint sizing needs
// (spec section 4.5) to estimate a bucket's actual scan rate.
func (c *Column) Ones() map[int32]int {
	out := make(map[int32]int)
	for v, bm := range c.StripeBitmaps() {
		out[v] = bm.OnesCount()
	}
	return out
}
