// Copyright 2024 The Cuckoo Index Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package fpstore

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/cuckooidx/cuckooindex/internal/cuckoo"
	"github.com/cuckooidx/cuckooindex/internal/encbuf"
)

func buildFixture(t *testing.T, n, k int, scanRate float64) (*cuckoo.Placement, []cuckoo.Plan) {
	t.Helper()
	values := make([]int32, n)
	for i := range values {
		values[i] = int32(i*7 + 1)
	}
	p, err := cuckoo.Place(values, cuckoo.Config{SlotsPerBucket: k, Algorithm: cuckoo.SkewedKicking}, nil)
	require.NoError(t, err)
	ones := make(map[int32]int, n)
	for _, v := range values {
		ones[v] = 3
	}
	plans, err := cuckoo.SizePlans(p, cuckoo.FingerprintConfig{ScanRate: scanRate, PrefixBitsOptimization: true}, cuckoo.StripeStats{Ones: ones, NumStripes: 20})
	require.NoError(t, err)
	return p, plans
}

func checkStoreMatchesPlacement(t *testing.T, p *cuckoo.Placement, plans []cuckoo.Plan, s *Store) {
	t.Helper()
	for u, b := range p.Buckets {
		for slot, sv := range b.Slots {
			slotIdx := u*p.K + slot
			value, length, active := s.GetFingerprint(slotIdx)
			if !sv.Occupied {
				require.False(t, active, "slot %d expected inactive", slotIdx)
				continue
			}
			require.True(t, active, "slot %d expected active", slotIdx)
			require.Equal(t, plans[u].Length, length)
			require.Equal(t, cuckoo.ComputeFingerprint(sv.Value, plans[u]), value)
		}
	}
}

func TestStoreRandomReadMatchesPlacement(t *testing.T) {
	for _, k := range []int{1, 2, 4, 8} {
		p, plans := buildFixture(t, 1000, k, 0.05)
		s := Build(BuildInput{Placement: p, Plans: plans})
		checkStoreMatchesPlacement(t, p, plans, s)
	}
}

func TestStoreBlockOrderingDescendingCardinality(t *testing.T) {
	p, plans := buildFixture(t, 1000, 2, 0.05)
	s := Build(BuildInput{Placement: p, Plans: plans})
	cards := s.BlockCardinalities()
	require.GreaterOrEqual(t, len(cards), 1)
	for i := 2; i < len(cards); i++ {
		require.LessOrEqualf(t, cards[i], cards[i-1], "block %d not in descending order", i)
	}
}

func TestStoreEncodeDecodeRoundTrip(t *testing.T) {
	for _, k := range []int{1, 2, 4} {
		p, plans := buildFixture(t, 1000, k, 0.05)
		s := Build(BuildInput{Placement: p, Plans: plans})

		buf := encbuf.NewBuffer(1024)
		s.Encode(buf)
		decoded, err := Decode(encbuf.NewReader(buf.Bytes()), k)
		require.NoError(t, err)
		require.Equal(t, s.NumBuckets(), decoded.NumBuckets())
		checkStoreMatchesPlacement(t, p, plans, decoded)
	}
}

func TestStoreDecodeRejectsBadK(t *testing.T) {
	p, plans := buildFixture(t, 100, 2, 0.05)
	s := Build(BuildInput{Placement: p, Plans: plans})
	buf := encbuf.NewBuffer(256)
	s.Encode(buf)
	_, err := Decode(encbuf.NewReader(buf.Bytes()), 3)
	require.Error(t, err)
}
