// Copyright 2024 The Cuckoo Index Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Package cuckooindex assembles the leaf packages (bitpack, bitmap, rle,
// cuckoo, fpstore) into the secondary, read-only index of spec sections
// 4.7 and 6: a build pipeline from a column to a serialized blob, and a
// StripeContains/GetQualifyingStripes lookup surface over it.
package cuckooindex

import (
	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zstd"

	"github.com/cuckooidx/cuckooindex/column"
	"github.com/cuckooidx/cuckooindex/internal/bitmap"
	"github.com/cuckooidx/cuckooindex/internal/cuckoo"
	"github.com/cuckooidx/cuckooindex/internal/encbuf"
	"github.com/cuckooidx/cuckooindex/internal/fpstore"
	"github.com/cuckooidx/cuckooindex/internal/hashkey"
	"github.com/cuckooidx/cuckooindex/internal/rle"
)

// Index is an immutable, built cuckoo index over one column.
type Index struct {
	cfg        Config
	numStripes int
	numBuckets int
	k          int
	store      *fpstore.Store
	prefixBits *bitmap.Bitmap // nil when PrefixBitsOptimization is off
	stripes    *rle.Bitmap    // concatenated per-active-slot stripe bitmaps
}

// Name identifies the index structure variant, satisfying
// indexstructure.Structure.
func (idx *Index) Name() string { return "CuckooIndex" }

// Build constructs a cuckoo index over col, following the pipeline of spec
// section 4.7: placement (4.4), fingerprint sizing (4.5), fingerprint store
// assembly (4.6), then the concatenated per-slot stripe bitmap.
func Build(col *column.Column, cfg Config) (*Index, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	values := col.DistinctValues()
	numStripes := col.NumStripes()

	placement, err := cuckoo.Place(values, cfg.placementConfig(), nil)
	if err != nil {
		return nil, errors.Mark(err, ErrBuildExhaustion)
	}

	ones := col.Ones()
	plans, err := cuckoo.SizePlans(placement, cfg.fingerprintConfig(), cuckoo.StripeStats{Ones: ones, NumStripes: numStripes})
	if err != nil {
		return nil, errors.Mark(err, ErrFingerprintOverflow)
	}

	store := fpstore.Build(fpstore.BuildInput{Placement: placement, Plans: plans})

	var prefixBits *bitmap.Bitmap
	if cfg.PrefixBitsOptimization {
		var b bitmap.Builder
		for u, plan := range plans {
			b.Set(u, plan.UsePrefix)
		}
		prefixBits = b.Finish(placement.NumBuckets())
	}

	stripeBitmaps := col.StripeBitmaps()
	numSlots := placement.NumSlots()
	var concat bitmap.Builder
	activeCount := 0
	for slotIdx := 0; slotIdx < numSlots; slotIdx++ {
		bucket, slotInBucket := slotIdx/placement.K, slotIdx%placement.K
		sv := placement.Buckets[bucket].Slots[slotInBucket]
		if !sv.Occupied {
			continue
		}
		bm := stripeBitmaps[sv.Value]
		for s := 0; s < numStripes; s++ {
			if bm.Get(s) {
				concat.Set(activeCount*numStripes+s, true)
			}
		}
		activeCount++
	}
	concatLen := activeCount * numStripes
	stripesRLE := rle.Build(concat.Finish(concatLen), concatLen)

	return &Index{
		cfg:        cfg,
		numStripes: numStripes,
		numBuckets: placement.NumBuckets(),
		k:          placement.K,
		store:      store,
		prefixBits: prefixBits,
		stripes:    stripesRLE,
	}, nil
}

// findCandidateSlot probes both of value's candidate buckets and returns
// the first slot whose active fingerprint matches, per spec section 4.7
// step 2.
func (idx *Index) findCandidateSlot(value int32) (slotIdx int, ok bool) {
	h := hashkey.Compute(value)
	for _, bucket := range [2]uint64{h.B1 % uint64(idx.numBuckets), h.B2 % uint64(idx.numBuckets)} {
		usePrefix := idx.prefixBits != nil && idx.prefixBits.Get(int(bucket))
		base := int(bucket) * idx.k
		for s := 0; s < idx.k; s++ {
			slot := base + s
			fp, length, active := idx.store.GetFingerprint(slot)
			if !active {
				continue
			}
			if fp == cuckoo.Truncate(h.Fp, length, usePrefix) {
				return slot, true
			}
		}
	}
	return 0, false
}

// StripeContains reports whether stripe stripeID may contain value, per
// spec section 4.7. False negatives never occur; false positives occur at
// approximately the configured scan rate.
func (idx *Index) StripeContains(stripeID int, value int32) (bool, error) {
	if stripeID < 0 || stripeID >= idx.numStripes {
		return false, errors.Wrapf(ErrOutOfRange, "stripe id %d, have %d stripes", stripeID, idx.numStripes)
	}
	slot, ok := idx.findCandidateSlot(value)
	if !ok {
		return false, nil
	}
	pos := idx.store.ActiveSlotOrdinal(slot)*idx.numStripes + stripeID
	return idx.stripes.Get(pos), nil
}

// GetQualifyingStripes returns the full per-stripe candidate bitmap for
// value: an all-zero bitmap of length numStripes if no candidate slot was
// found, otherwise the candidate slot's stripe bitmap.
func (idx *Index) GetQualifyingStripes(value int32) *bitmap.Bitmap {
	slot, ok := idx.findCandidateSlot(value)
	if !ok {
		var b bitmap.Builder
		return b.Finish(idx.numStripes)
	}
	offset := idx.store.ActiveSlotOrdinal(slot) * idx.numStripes
	return idx.stripes.Extract(offset, idx.numStripes)
}

// Encode serializes the index per spec section 6's layout: the fingerprint
// store, an optional RLE-encoded prefix-bits selector, then the RLE-encoded
// concatenated stripe bitmap.
func (idx *Index) Encode(buf *encbuf.Buffer) {
	idx.store.Encode(buf)

	if idx.prefixBits != nil {
		buf.WriteByte(1)
		var pb encbuf.Buffer
		rle.Build(idx.prefixBits, idx.prefixBits.Len()).Encode(&pb)
		buf.WriteLenPrefixed(pb.Bytes())
	} else {
		buf.WriteByte(0)
	}

	var sb encbuf.Buffer
	idx.stripes.Encode(&sb)
	buf.WriteLenPrefixed(sb.Bytes())
}

// Decode reverses Encode. numStripes is supplied out of band, since the
// serialized layout (spec section 6) does not itself carry the row-stripe
// geometry — that lives in the column/config metadata the caller already
// has to reconstruct the index.
func Decode(r *encbuf.Reader, cfg Config, numStripes int) (*Index, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store, err := fpstore.Decode(r, cfg.SlotsPerBucket)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "cuckooindex: decoding fingerprint store"), ErrSerializationFormat)
	}

	prefixPresent, err := r.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "cuckooindex: reading prefix_bits_present flag")
	}
	var prefixBits *bitmap.Bitmap
	if prefixPresent != 0 {
		pbBytes, err := r.ReadLenPrefixed()
		if err != nil {
			return nil, errors.Wrap(err, "cuckooindex: reading prefix-bits blob")
		}
		pbRLE, err := rle.Decode(encbuf.NewReader(pbBytes))
		if err != nil {
			return nil, errors.Mark(errors.Wrap(err, "cuckooindex: decoding prefix-bits bitmap"), ErrSerializationFormat)
		}
		prefixBits = pbRLE.Extract(0, pbRLE.Len())
	}

	sbBytes, err := r.ReadLenPrefixed()
	if err != nil {
		return nil, errors.Wrap(err, "cuckooindex: reading stripe bitmap blob")
	}
	stripes, err := rle.Decode(encbuf.NewReader(sbBytes))
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "cuckooindex: decoding stripe bitmap"), ErrSerializationFormat)
	}

	return &Index{
		cfg:        cfg,
		numStripes: numStripes,
		numBuckets: store.NumBuckets(),
		k:          store.SlotsPerBucket(),
		store:      store,
		prefixBits: prefixBits,
		stripes:    stripes,
	}, nil
}

// ByteSize returns the uncompressed serialized size of the index.
func (idx *Index) ByteSize() int {
	buf := encbuf.NewBuffer(256)
	idx.Encode(buf)
	return buf.Len()
}

// CompressedByteSize returns the serialized size after black-box zstd
// compression, reported for space-overhead comparisons; the compressor
// plays no role in the on-disk index format itself.
func (idx *Index) CompressedByteSize() int {
	buf := encbuf.NewBuffer(256)
	idx.Encode(buf)
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return buf.Len()
	}
	defer enc.Close()
	return len(enc.EncodeAll(buf.Bytes(), nil))
}
