// Copyright 2024 The Cuckoo Index Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package cuckooindex

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuckooidx/cuckooindex/column"
	"github.com/cuckooidx/cuckooindex/internal/cuckoo"
	"github.com/cuckooidx/cuckooindex/internal/encbuf"
)

// TestScenarioSmallColumn implements spec section 8 scenario 1: a 4-row
// column [1,1,2,2] with R=2.
func TestScenarioSmallColumn(t *testing.T) {
	col := &column.Column{Name: "c", Values: []int32{1, 1, 2, 2}, RowsPerStripe: 2}
	cfg := Config{Algorithm: cuckoo.Kicking, ScanRate: 0.5, SlotsPerBucket: 2}
	idx, err := Build(col, cfg)
	require.NoError(t, err)

	got, err := idx.StripeContains(0, 1)
	require.NoError(t, err)
	require.True(t, got)

	got, err = idx.StripeContains(1, 2)
	require.NoError(t, err)
	require.True(t, got)

	got, err = idx.StripeContains(0, 2)
	require.NoError(t, err)
	require.False(t, got)

	got, err = idx.StripeContains(1, 1)
	require.NoError(t, err)
	require.False(t, got)
}

// TestScenarioNoFalseNegatives implements spec section 8 scenario 2's
// positive-lookup half: 300 rows of i/100 (3 distinct values), R=3.
func TestScenarioNoFalseNegatives(t *testing.T) {
	n := 300
	values := make([]int32, n)
	for i := range values {
		values[i] = int32(i / 100)
	}
	col := &column.Column{Name: "c", Values: values, RowsPerStripe: 3}
	cfg := Config{Algorithm: cuckoo.Kicking, ScanRate: 0.05, SlotsPerBucket: 2}
	idx, err := Build(col, cfg)
	require.NoError(t, err)

	stripes := col.Stripes()
	for s, stripe := range stripes {
		seen := map[int32]bool{}
		for _, v := range stripe {
			seen[v] = true
		}
		for _, v := range []int32{0, 1, 2} {
			got, err := idx.StripeContains(s, v)
			require.NoError(t, err)
			if seen[v] {
				require.Truef(t, got, "stripe %d value %d should be found", s, v)
			}
		}
	}
}

// TestScenarioBoundedFalsePositiveRate implements the negative-lookup half
// of spec section 8 scenario 2.
func TestScenarioBoundedFalsePositiveRate(t *testing.T) {
	n := 300
	values := make([]int32, n)
	for i := range values {
		values[i] = int32(i / 100)
	}
	col := &column.Column{Name: "c", Values: values, RowsPerStripe: 3}
	scanRate := 0.05
	cfg := Config{Algorithm: cuckoo.Kicking, ScanRate: scanRate, SlotsPerBucket: 2}
	idx, err := Build(col, cfg)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	const trials = 10000
	numStripes := col.NumStripes()
	var totalHits int
	for i := 0; i < trials; i++ {
		v := int32(1_000_000 + rng.Intn(1_000_000))
		for s := 0; s < numStripes; s++ {
			got, err := idx.StripeContains(s, v)
			require.NoError(t, err)
			if got {
				totalHits++
			}
		}
	}
	rate := float64(totalHits) / float64(trials*numStripes)
	require.LessOrEqualf(t, rate, scanRate*4, "observed false-positive rate %v too high for target %v", rate, scanRate)
}

// TestScenarioPartialStripeDropped implements spec section 8 scenario 3.
func TestScenarioPartialStripeDropped(t *testing.T) {
	col := &column.Column{Name: "c", Values: []int32{10, 20, 30, 40}, RowsPerStripe: 3}
	require.Equal(t, 1, col.NumStripes())
	require.Equal(t, 3, col.NumActiveRows())
	require.Equal(t, []int32{10, 20, 30}, col.DistinctValues())
}

func TestOutOfRangeStripeID(t *testing.T) {
	col := &column.Column{Name: "c", Values: []int32{1, 2, 3, 4}, RowsPerStripe: 2}
	idx, err := Build(col, Config{Algorithm: cuckoo.Kicking, ScanRate: 0.1, SlotsPerBucket: 2})
	require.NoError(t, err)
	_, err = idx.StripeContains(-1, 1)
	require.Error(t, err)
	_, err = idx.StripeContains(2, 1)
	require.Error(t, err)
}

func TestInvalidConfigRejected(t *testing.T) {
	col := &column.Column{Name: "c", Values: []int32{1, 2}, RowsPerStripe: 1}
	_, err := Build(col, Config{ScanRate: 2, SlotsPerBucket: 2, Algorithm: cuckoo.Kicking})
	require.Error(t, err)
	_, err = Build(col, Config{ScanRate: 0.1, SlotsPerBucket: 3, Algorithm: cuckoo.Kicking})
	require.Error(t, err)
}

func randomColumn(n, rowsPerStripe, cardinality int, seed int64) *column.Column {
	rng := rand.New(rand.NewSource(seed))
	values := make([]int32, n)
	for i := range values {
		values[i] = int32(rng.Intn(cardinality))
	}
	return &column.Column{Name: "c", Values: values, RowsPerStripe: rowsPerStripe}
}

func TestEncodeDecodeRoundTripAnswersIdentically(t *testing.T) {
	col := randomColumn(2000, 8, 50, 7)
	cfg := Config{Algorithm: cuckoo.SkewedKicking, ScanRate: 0.1, SlotsPerBucket: 4, PrefixBitsOptimization: true}
	idx, err := Build(col, cfg)
	require.NoError(t, err)

	buf := encbuf.NewBuffer(4096)
	idx.Encode(buf)
	decoded, err := Decode(encbuf.NewReader(buf.Bytes()), cfg, col.NumStripes())
	require.NoError(t, err)

	for s := 0; s < col.NumStripes(); s++ {
		for v := int32(0); v < 50; v++ {
			want, err := idx.StripeContains(s, v)
			require.NoError(t, err)
			got, err := decoded.StripeContains(s, v)
			require.NoError(t, err)
			require.Equal(t, want, got, "stripe %d value %d", s, v)
		}
	}
}

func TestDeterministicBuilds(t *testing.T) {
	col := randomColumn(1000, 4, 30, 11)
	cfg := Config{Algorithm: cuckoo.SkewedKicking, ScanRate: 0.1, SlotsPerBucket: 4}
	idx1, err := Build(col, cfg)
	require.NoError(t, err)
	idx2, err := Build(col, cfg)
	require.NoError(t, err)

	buf1, buf2 := encbuf.NewBuffer(4096), encbuf.NewBuffer(4096)
	idx1.Encode(buf1)
	idx2.Encode(buf2)
	require.Equal(t, buf1.Bytes(), buf2.Bytes())
}

func TestGetQualifyingStripesLengthAndNoCandidate(t *testing.T) {
	col := &column.Column{Name: "c", Values: []int32{1, 1, 2, 2}, RowsPerStripe: 2}
	idx, err := Build(col, Config{Algorithm: cuckoo.Kicking, ScanRate: 0.05, SlotsPerBucket: 2})
	require.NoError(t, err)

	bm := idx.GetQualifyingStripes(1)
	require.Equal(t, col.NumStripes(), bm.Len())

	// Any non-member value can match a stored fingerprint (that is the scan
	// rate), so search for one whose probes find no candidate slot rather
	// than assuming a fixed value has none.
	absent, found := int32(999999), false
	for i := 0; i < 1000 && !found; i++ {
		if _, ok := idx.findCandidateSlot(absent); ok {
			absent++
		} else {
			found = true
		}
	}
	require.True(t, found)

	bm = idx.GetQualifyingStripes(absent)
	require.Equal(t, col.NumStripes(), bm.Len())
	for i := 0; i < bm.Len(); i++ {
		require.False(t, bm.Get(i))
	}
}
