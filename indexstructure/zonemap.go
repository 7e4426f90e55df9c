// Copyright 2024 The Cuckoo Index Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package indexstructure

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zstd"

	"github.com/cuckooidx/cuckooindex/column"
	"github.com/cuckooidx/cuckooindex/internal/bitmap"
)

// nullSentinel is the dict-encoded id reserved for NULL, per spec section 6;
// ZoneMap excludes it from a stripe's min/max the way the reference does.
const nullSentinel = 0

// ZoneMap tracks the per-stripe [min, max] value range, grounded on
// original_source/zone_map.h. It is a coarse, cheap-to-build pruning
// structure: a lookup is a positive candidate whenever the queried value
// falls within the stripe's observed range.
type ZoneMap struct {
	numStripes       int
	minimums, maximums []int32
}

// BuildZoneMap constructs a ZoneMap over col.
func BuildZoneMap(col *column.Column) *ZoneMap {
	stripes := col.Stripes()
	zm := &ZoneMap{
		numStripes: len(stripes),
		minimums:   make([]int32, len(stripes)),
		maximums:   make([]int32, len(stripes)),
	}
	for i, stripe := range stripes {
		lo, hi := int32(1<<31-1), int32(-1<<31)
		for _, v := range stripe {
			if v == nullSentinel {
				continue
			}
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		zm.minimums[i] = lo
		zm.maximums[i] = hi
	}
	return zm
}

// Name implements Structure.
func (z *ZoneMap) Name() string { return "ZoneMap" }

// StripeContains implements Structure.
func (z *ZoneMap) StripeContains(stripeID int, value int32) (bool, error) {
	if stripeID < 0 || stripeID >= z.numStripes {
		return false, errors.Newf("indexstructure: stripe id %d out of range, have %d stripes", stripeID, z.numStripes)
	}
	return value >= z.minimums[stripeID] && value <= z.maximums[stripeID], nil
}

// GetQualifyingStripes implements Structure using the reference's default
// per-stripe probing loop, since ZoneMap has no faster path.
func (z *ZoneMap) GetQualifyingStripes(value int32) *bitmap.Bitmap {
	var b bitmap.Builder
	for s := 0; s < z.numStripes; s++ {
		if ok, _ := z.StripeContains(s, value); ok {
			b.Set(s, true)
		}
	}
	return b.Finish(z.numStripes)
}

// ByteSize implements Structure: two int32 arrays of length numStripes.
func (z *ZoneMap) ByteSize() int {
	return 4*len(z.minimums) + 4*len(z.maximums)
}

func (z *ZoneMap) rawBytes() []byte {
	buf := make([]byte, 0, z.ByteSize())
	var tmp [4]byte
	for _, v := range z.minimums {
		binary.LittleEndian.PutUint32(tmp[:], uint32(v))
		buf = append(buf, tmp[:]...)
	}
	for _, v := range z.maximums {
		binary.LittleEndian.PutUint32(tmp[:], uint32(v))
		buf = append(buf, tmp[:]...)
	}
	return buf
}

// CompressedByteSize implements Structure.
func (z *ZoneMap) CompressedByteSize() int {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return z.ByteSize()
	}
	defer enc.Close()
	return len(enc.EncodeAll(z.rawBytes(), nil))
}
