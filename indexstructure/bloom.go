// Copyright 2024 The Cuckoo Index Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package indexstructure

import (
	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zstd"

	"github.com/cuckooidx/cuckooindex/column"
	"github.com/cuckooidx/cuckooindex/internal/bitmap"
	"github.com/cuckooidx/cuckooindex/indexstructure/internal/bloomfilter"
)

// defaultBitsPerKey matches the reference bloom filter's recommended
// setting, yielding roughly a 1% false-positive rate per probe.
const defaultBitsPerKey = 10

// PerStripeBloom builds one cache-line-blocked bloom filter per stripe over
// the distinct values that occur in it, grounded on the teacher's
// bloom/bloom.go filter (see internal/bloomfilter).
type PerStripeBloom struct {
	numStripes int
	filters    [][]byte
}

// BuildPerStripeBloom constructs a PerStripeBloom over col with bitsPerKey
// bits of filter budget per distinct value in a stripe. bitsPerKey <= 0
// selects defaultBitsPerKey.
func BuildPerStripeBloom(col *column.Column, bitsPerKey uint32) *PerStripeBloom {
	if bitsPerKey == 0 {
		bitsPerKey = defaultBitsPerKey
	}
	stripes := col.Stripes()
	filters := make([][]byte, len(stripes))
	for i, stripe := range stripes {
		seen := make(map[int32]bool, len(stripe))
		var distinct []int32
		for _, v := range stripe {
			if !seen[v] {
				seen[v] = true
				distinct = append(distinct, v)
			}
		}
		filters[i] = bloomfilter.Build(distinct, bitsPerKey)
	}
	return &PerStripeBloom{numStripes: len(stripes), filters: filters}
}

// Name implements Structure.
func (p *PerStripeBloom) Name() string { return "PerStripeBloom" }

// StripeContains implements Structure.
func (p *PerStripeBloom) StripeContains(stripeID int, value int32) (bool, error) {
	if stripeID < 0 || stripeID >= p.numStripes {
		return false, errors.Newf("indexstructure: stripe id %d out of range, have %d stripes", stripeID, p.numStripes)
	}
	return bloomfilter.MayContain(p.filters[stripeID], value), nil
}

// GetQualifyingStripes implements Structure using the reference's default
// per-stripe probing loop.
func (p *PerStripeBloom) GetQualifyingStripes(value int32) *bitmap.Bitmap {
	var b bitmap.Builder
	for s := 0; s < p.numStripes; s++ {
		if ok, _ := p.StripeContains(s, value); ok {
			b.Set(s, true)
		}
	}
	return b.Finish(p.numStripes)
}

// ByteSize implements Structure.
func (p *PerStripeBloom) ByteSize() int {
	n := 0
	for _, f := range p.filters {
		n += len(f)
	}
	return n
}

// CompressedByteSize implements Structure.
func (p *PerStripeBloom) CompressedByteSize() int {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return p.ByteSize()
	}
	defer enc.Close()
	var raw []byte
	for _, f := range p.filters {
		raw = append(raw, f...)
	}
	return len(enc.EncodeAll(raw, nil))
}
