// Copyright 2024 The Cuckoo Index Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package cuckoo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSizePlansDisambiguatesCollidingSets(t *testing.T) {
	values := distinctValues(400)
	p, err := Place(values, Config{SlotsPerBucket: 4, Algorithm: SkewedKicking}, nil)
	require.NoError(t, err)

	ones := make(map[int32]int, len(values))
	for _, v := range values {
		ones[v] = 5
	}
	plans, err := SizePlans(p, FingerprintConfig{ScanRate: 0.1}, StripeStats{Ones: ones, NumStripes: 10})
	require.NoError(t, err)
	require.Len(t, plans, p.NumBuckets())

	for i, b := range p.Buckets {
		seen := make(map[uint64]bool)
		for _, s := range b.Slots {
			if !s.Occupied {
				continue
			}
			fp := ComputeFingerprint(s.Value, plans[i])
			require.False(t, seen[fp], "bucket %d: fingerprint collision at length %d", i, plans[i].Length)
			seen[fp] = true
		}
		for _, v := range b.Kicked {
			fp := ComputeFingerprint(v, plans[i])
			require.False(t, seen[fp], "bucket %d: kicked value collides at length %d", i, plans[i].Length)
			seen[fp] = true
		}
	}
}

func TestSizePlansZeroScanRateForcesMaxWidth(t *testing.T) {
	values := distinctValues(50)
	p, err := Place(values, Config{SlotsPerBucket: 2, Algorithm: Kicking}, nil)
	require.NoError(t, err)
	plans, err := SizePlans(p, FingerprintConfig{ScanRate: 0}, StripeStats{NumStripes: 1})
	require.NoError(t, err)
	for i, plan := range plans {
		if p.Buckets[i].occupiedCount() == 0 {
			continue // an empty bucket has no fingerprint to widen
		}
		require.Equal(t, MaxFingerprintLength, plan.Length)
	}
}

func TestMinimalDisambiguatingLengthPrefersSuffix(t *testing.T) {
	fps := []uint64{0b0001, 0b0010, 0b0011}
	length, usePrefix := minimalDisambiguatingLength(fps, true)
	require.False(t, usePrefix)
	require.Equal(t, 2, length)
}

func TestTruncatePrefixVsSuffix(t *testing.T) {
	var fp uint64 = 0xFF00000000000001
	require.Equal(t, uint64(1), truncate(fp, 8, false))
	require.Equal(t, uint64(0xFF), truncate(fp, 8, true))
	require.Equal(t, uint64(0), truncate(fp, 0, false))
}

func TestComputeFingerprintConsistentWithHash(t *testing.T) {
	plan := Plan{Length: 16, UsePrefix: false}
	got := ComputeFingerprint(42, plan)
	require.Equal(t, truncate(fpOf(42), 16, false), got)
}
