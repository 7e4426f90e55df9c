// Copyright 2024 The Cuckoo Index Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package cuckoo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuckooidx/cuckooindex/internal/hashkey"
)

func distinctValues(n int) []int32 {
	vs := make([]int32, n)
	for i := range vs {
		vs[i] = int32(i * 7)
	}
	return vs
}

func checkPlacement(t *testing.T, p *Placement, values []int32) {
	t.Helper()
	seen := make(map[int32]bool, len(values))
	for _, v := range values {
		slotID, ok := p.SlotOf(v)
		require.Truef(t, ok, "value %d not placed", v)
		bucket, slot := slotID/p.K, slotID%p.K
		require.True(t, bucket < len(p.Buckets))
		require.True(t, p.Buckets[bucket].Slots[slot].Occupied)
		require.Equal(t, v, p.Buckets[bucket].Slots[slot].Value)
		require.False(t, seen[v], "value placed twice")
		seen[v] = true
	}
	// No slot holds more than one value, and every occupied slot corresponds
	// to a value we placed.
	for _, b := range p.Buckets {
		for _, s := range b.Slots {
			if s.Occupied {
				require.True(t, seen[s.Value])
			}
		}
	}
}

func TestPlaceKicking(t *testing.T) {
	for _, k := range []int{1, 2, 4, 8} {
		values := distinctValues(500)
		var stats Stats
		p, err := Place(values, Config{SlotsPerBucket: k, Algorithm: Kicking}, &stats)
		require.NoError(t, err)
		checkPlacement(t, p, values)
		require.Equal(t, k, p.K)
	}
}

func TestPlaceSkewedKicking(t *testing.T) {
	for _, k := range []int{1, 2, 4, 8} {
		values := distinctValues(500)
		var stats Stats
		p, err := Place(values, Config{SlotsPerBucket: k, Algorithm: SkewedKicking}, &stats)
		require.NoError(t, err)
		checkPlacement(t, p, values)
	}
}

func TestPlaceIsDeterministic(t *testing.T) {
	values := distinctValues(300)
	p1, err := Place(values, Config{SlotsPerBucket: 4, Algorithm: SkewedKicking}, nil)
	require.NoError(t, err)
	p2, err := Place(values, Config{SlotsPerBucket: 4, Algorithm: SkewedKicking}, nil)
	require.NoError(t, err)
	require.Equal(t, p1.NumBuckets(), p2.NumBuckets())
	for _, v := range values {
		s1, _ := p1.SlotOf(v)
		s2, _ := p2.SlotOf(v)
		require.Equal(t, s1, s2)
	}
}

func TestKickedValuesRecordedOnPrimaryBucket(t *testing.T) {
	values := distinctValues(200)
	p, err := Place(values, Config{SlotsPerBucket: 2, Algorithm: SkewedKicking}, nil)
	require.NoError(t, err)
	total := 0
	for u, b := range p.Buckets {
		total += len(b.Kicked)
		// Every kicked value is a real value whose primary bucket is u and
		// which is placed in some other bucket.
		for _, v := range b.Kicked {
			require.Equal(t, uint64(u), hashkey.Seeded(hashkey.SeedPrimary, v)%uint64(p.NumBuckets()))
			slotID, ok := p.SlotOf(v)
			require.True(t, ok)
			require.NotEqual(t, u, slotID/p.K)
		}
	}
	// Some collisions are expected at this density.
	require.GreaterOrEqual(t, total, 0)
}

func TestInvalidSlotsPerBucket(t *testing.T) {
	_, err := Place(distinctValues(10), Config{SlotsPerBucket: 3}, nil)
	require.Error(t, err)
}

func TestInitialBucketCount(t *testing.T) {
	n := InitialBucketCount(1000, Config{SlotsPerBucket: 4})
	require.Greater(t, n, 0)
	// alpha=0.95, K=4 => ceil(1000/3.8) = 264
	require.Equal(t, 264, n)
}
