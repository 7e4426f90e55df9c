// Copyright 2024 The Cuckoo Index Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package bitmap

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/cuckooidx/cuckooindex/internal/encbuf"
)

func buildRandom(t *testing.T, n int, density float64, seed int64) (*Bitmap, []bool) {
	rng := rand.New(rand.NewSource(seed))
	var b Builder
	ref := make([]bool, n)
	for i := 0; i < n; i++ {
		v := rng.Float64() < density
		ref[i] = v
		b.Set(i, v)
	}
	return b.Finish(n), ref
}

func TestRankMatchesReference(t *testing.T) {
	for _, n := range []int{0, 1, 63, 64, 511, 512, 513, 4000} {
		bm, ref := buildRandom(t, n, 0.3, 42)
		cum := 0
		for i := 0; i <= n; i++ {
			require.Equalf(t, cum, bm.Rank(i), "n=%d i=%d", n, i)
			if i < n && ref[i] {
				cum++
			}
		}
		require.Equal(t, cum, bm.OnesCount())
	}
}

func TestSelectOneAndZeroInverses(t *testing.T) {
	bm, _ := buildRandom(t, 5000, 0.2, 7)
	ones := bm.OnesCount()
	for k := 0; k < ones; k++ {
		pos, ok := bm.SelectOne(k)
		require.True(t, ok)
		require.Equal(t, k, bm.Rank(pos))
		require.True(t, bm.Get(pos))
		require.LessOrEqual(t, pos, bm.Len()-1)
	}
	_, ok := bm.SelectOne(ones)
	require.False(t, ok)

	zeros := bm.Len() - ones
	for k := 0; k < zeros; k++ {
		pos, ok := bm.SelectZero(k)
		require.True(t, ok)
		require.False(t, bm.Get(pos))
	}
	_, ok = bm.SelectZero(zeros)
	require.False(t, ok)
}

func TestSelectOneRankInverse(t *testing.T) {
	bm, _ := buildRandom(t, 3000, 0.4, 99)
	for i := 0; i < bm.Len(); i++ {
		r := bm.Rank(i)
		if r == 0 {
			continue
		}
		pos, ok := bm.SelectOne(r - 1)
		require.True(t, ok)
		require.LessOrEqual(t, pos, i-1)
	}
}

func TestDenseEncodeDecodeRoundTrip(t *testing.T) {
	bm, ref := buildRandom(t, 4321, 0.5, 5)
	buf := encbuf.NewBuffer(64)
	bm.DenseEncode(buf)
	decoded, err := DenseDecode(encbuf.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, bm.Len(), decoded.Len())
	for i, want := range ref {
		require.Equal(t, want, decoded.Get(i))
	}
	require.Equal(t, bm.OnesCount(), decoded.OnesCount())
}
