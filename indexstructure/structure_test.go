// Copyright 2024 The Cuckoo Index Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package indexstructure

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuckooidx/cuckooindex/column"
	"github.com/cuckooidx/cuckooindex/internal/cuckoo"
	"github.com/cuckooidx/cuckooindex/cuckooindex"
)

func testColumn() *column.Column {
	return &column.Column{
		Name:          "c",
		Values:        []int32{5, 5, 10, 10, 1, 1, 20, 20},
		RowsPerStripe: 2,
	}
}

func TestZoneMapNoFalseNegatives(t *testing.T) {
	col := testColumn()
	zm := BuildZoneMap(col)
	for s, stripe := range col.Stripes() {
		for _, v := range stripe {
			ok, err := zm.StripeContains(s, v)
			require.NoError(t, err)
			require.True(t, ok)
		}
	}
}

func TestZoneMapExcludesOtherRanges(t *testing.T) {
	col := testColumn()
	zm := BuildZoneMap(col)
	ok, err := zm.StripeContains(0, 20) // stripe 0 range is [5,5]
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPerStripeBloomNoFalseNegatives(t *testing.T) {
	col := testColumn()
	pb := BuildPerStripeBloom(col, 10)
	for s, stripe := range col.Stripes() {
		for _, v := range stripe {
			ok, err := pb.StripeContains(s, v)
			require.NoError(t, err)
			require.True(t, ok)
		}
	}
}

func TestFactoriesProduceUsableStructures(t *testing.T) {
	col := testColumn()
	factories := []Factory{
		CuckooIndexFactory{Config: cuckooindex.Config{Algorithm: cuckoo.Kicking, ScanRate: 0.2, SlotsPerBucket: 2}},
		ZoneMapFactory{},
		PerStripeBloomFactory{BitsPerKey: 10},
	}
	for _, f := range factories {
		s, err := f.Create(col)
		require.NoErrorf(t, err, "factory %s", f.Name())
		require.Equal(t, f.Name(), s.Name())
		require.GreaterOrEqual(t, s.ByteSize(), 0)
		require.GreaterOrEqual(t, s.CompressedByteSize(), 0)
		for stripeID, stripe := range col.Stripes() {
			for _, v := range stripe {
				ok, err := s.StripeContains(stripeID, v)
				require.NoError(t, err)
				require.Truef(t, ok, "%s: stripe %d value %d", f.Name(), stripeID, v)
			}
		}
	}
}

func TestGetQualifyingStripesBitmapLength(t *testing.T) {
	col := testColumn()
	zm := BuildZoneMap(col)
	bm := zm.GetQualifyingStripes(5)
	require.Equal(t, col.NumStripes(), bm.Len())
}
