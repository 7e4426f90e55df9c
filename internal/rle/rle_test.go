// Copyright 2024 The Cuckoo Index Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package rle

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/cuckooidx/cuckooindex/internal/bitmap"
	"github.com/cuckooidx/cuckooindex/internal/encbuf"
)

func randomBitmap(n int, density float64, seed int64) (*bitmap.Bitmap, []bool) {
	rng := rand.New(rand.NewSource(seed))
	var b bitmap.Builder
	ref := make([]bool, n)
	for i := 0; i < n; i++ {
		v := rng.Float64() < density
		ref[i] = v
		b.Set(i, v)
	}
	return b.Finish(n), ref
}

func TestExtractMatchesSource(t *testing.T) {
	for _, tc := range []struct {
		n       int
		density float64
	}{
		{100, 0.5}, {100, 0.02}, {100, 0.98}, {4000, 0.001}, {4000, 0.5}, {1, 1.0}, {1, 0.0},
	} {
		src, ref := randomBitmap(tc.n, tc.density, 7)
		enc := Build(src, tc.n)
		require.Equal(t, tc.n, enc.Len())
		for i := 0; i < tc.n; i++ {
			require.Equalf(t, ref[i], enc.Get(i), "n=%d density=%v i=%d", tc.n, tc.density, i)
		}
		if tc.n >= 50 {
			extracted := enc.Extract(20, 30)
			for i := 0; i < 30; i++ {
				require.Equal(t, ref[20+i], extracted.Get(i))
			}
		}
	}
}

func TestConcreteScenarioFromSpec(t *testing.T) {
	// 4000-bit bitmap, sparse 1-bits at {2018, 2019, 3025, 3999}.
	n := 4000
	set := map[int]bool{2018: true, 2019: true, 3025: true, 3999: true}
	var b bitmap.Builder
	for pos := range set {
		b.Set(pos, true)
	}
	src := b.Finish(n)
	enc := Build(src, n)

	full := enc.Extract(0, n)
	for i := 0; i < n; i++ {
		require.Equal(t, set[i], full.Get(i), "position %d", i)
	}

	window := enc.Extract(2000, 50)
	for i := 0; i < 50; i++ {
		want := i == 18 || i == 19
		require.Equalf(t, want, window.Get(i), "relative position %d", i)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	for _, density := range []float64{0.01, 0.3, 0.7, 0.99} {
		src, ref := randomBitmap(3333, density, 11)
		enc := Build(src, 3333)
		buf := encbuf.NewBuffer(64)
		enc.Encode(buf)
		decoded, err := Decode(encbuf.NewReader(buf.Bytes()))
		require.NoError(t, err)
		require.Equal(t, enc.Len(), decoded.Len())
		for i, want := range ref {
			require.Equalf(t, want, decoded.Get(i), "density=%v i=%d", density, i)
		}
	}
}

func TestAllZerosAndAllOnes(t *testing.T) {
	for _, v := range []bool{false, true} {
		var b bitmap.Builder
		n := 777
		for i := 0; i < n; i++ {
			b.Set(i, v)
		}
		src := b.Finish(n)
		enc := Build(src, n)
		for i := 0; i < n; i++ {
			require.Equal(t, v, enc.Get(i))
		}
	}
}
