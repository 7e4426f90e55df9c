// Copyright 2024 The Cuckoo Index Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Package fpstore implements the FingerprintStore of spec section 4.6: slots
// are grouped into blocks by fingerprint bit-width, each block addresses
// only the buckets not already claimed by an earlier (higher-cardinality)
// block, and random reads resolve a slot to its fingerprint via a
// precomputed per-bucket block/offset table rather than a chain of
// SelectZero calls, per the design note on block-bitmap compaction.
package fpstore

import (
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/cuckooidx/cuckooindex/internal/bitmap"
	"github.com/cuckooidx/cuckooindex/internal/bitpack"
	"github.com/cuckooidx/cuckooindex/internal/cuckoo"
	"github.com/cuckooidx/cuckooindex/internal/encbuf"
)

// ErrSerializationFormat is returned (wrapped) when a decoded store fails a
// structural consistency check.
var ErrSerializationFormat = errors.New("fpstore: invalid serialized format")

// block groups every slot sharing a common fingerprint bit-width. Block 0 is
// always the virtual "empty buckets" block: it has no fingerprint storage,
// since the empty-slots bitmap already answers presence for those slots.
type block struct {
	length          int
	numFingerprints int
	data            []byte // packed fingerprints, nil for the virtual block
	compacted       *bitmap.Bitmap
}

func (b *block) reader() bitpack.Reader { return bitpack.NewReader(b.data, b.length) }

// Store is an immutable, randomly-readable fingerprint store.
type Store struct {
	numBuckets int
	k          int
	emptySlots *bitmap.Bitmap // length numBuckets*k
	blocks     []block

	// Derived indexes, computed once by deriveIndexes after Build or Decode.
	bucketBlock    []int32 // bucket -> block index
	bucketBlockPos []int32 // bucket -> 0-indexed position among the block's buckets
	blockPrefix    [][]int32 // block -> prefix sums of occupancy, indexed by bucketBlockPos
}

// NumBuckets returns B.
func (s *Store) NumBuckets() int { return s.numBuckets }

// SlotsPerBucket returns K.
func (s *Store) SlotsPerBucket() int { return s.k }

// NumBlocks returns the number of blocks, including the virtual block.
func (s *Store) NumBlocks() int { return len(s.blocks) }

// BlockCardinalities reports the bucket count of each block, in order. Used
// by tests asserting the descending-cardinality ordering invariant.
func (s *Store) BlockCardinalities() []int {
	out := make([]int, len(s.blocks))
	for i, b := range s.blocks {
		out[i] = b.compacted.OnesCount()
	}
	return out
}

// GetFingerprint returns the stored bit-width value at slotIdx, its bit
// length, and whether the slot is active. An inactive slot's value and
// length are zero. Prefix-vs-suffix bit selection is a property of the
// caller's bucket configuration, not of the store.
func (s *Store) GetFingerprint(slotIdx int) (value uint64, length int, active bool) {
	if s.emptySlots.Get(slotIdx) {
		return 0, 0, false
	}
	bucket := slotIdx / s.k
	blk := int(s.bucketBlock[bucket])
	b := &s.blocks[blk]
	pos := int(s.bucketBlockPos[bucket])
	base := int(s.blockPrefix[blk][pos])

	slotInBucket := slotIdx % s.k
	before := 0
	for i := 0; i < slotInBucket; i++ {
		if !s.emptySlots.Get(bucket*s.k + i) {
			before++
		}
	}
	return b.reader().Get(base + before), b.length, true
}

// ActiveSlotOrdinal returns the number of active (occupied) slots strictly
// before slotIdx, i.e. slotIdx's 0-indexed position among only the active
// slots. Callers use this to address a companion array that, unlike the
// fingerprint store, was built by skipping empty slots entirely (spec
// section 4.7's concatenated stripe bitmap).
func (s *Store) ActiveSlotOrdinal(slotIdx int) int {
	return slotIdx - s.emptySlots.Rank(slotIdx)
}

// occupancy returns the number of active slots in bucket u, derived from the
// empty-slots bitmap.
func (s *Store) occupancy(u int) int {
	lo, hi := u*s.k, u*s.k+s.k
	return s.k - (s.emptySlots.Rank(hi) - s.emptySlots.Rank(lo))
}

// deriveIndexes replays the compaction transform once, forward, to build
// per-bucket (block, position) assignment and per-block occupancy prefix
// sums, avoiding repeated SelectZero chains at read time.
func (s *Store) deriveIndexes() {
	n := len(s.blocks)
	s.bucketBlock = make([]int32, s.numBuckets)
	s.bucketBlockPos = make([]int32, s.numBuckets)
	bucketsByBlock := make([][]int32, n)

	for u := 0; u < s.numBuckets; u++ {
		pos := u
		for j := 0; j < n; j++ {
			if j > 0 {
				pos -= s.blocks[j-1].compacted.Rank(pos)
			}
			if s.blocks[j].compacted.Get(pos) {
				s.bucketBlock[u] = int32(j)
				s.bucketBlockPos[u] = int32(len(bucketsByBlock[j]))
				bucketsByBlock[j] = append(bucketsByBlock[j], int32(u))
				break
			}
		}
	}

	s.blockPrefix = make([][]int32, n)
	for j, buckets := range bucketsByBlock {
		prefix := make([]int32, len(buckets)+1)
		for i, u := range buckets {
			prefix[i+1] = prefix[i] + int32(s.occupancy(int(u)))
		}
		s.blockPrefix[j] = prefix
	}
}

// BuildInput bundles the placement and per-bucket fingerprint plans needed
// to assemble a store.
type BuildInput struct {
	Placement *cuckoo.Placement
	Plans     []cuckoo.Plan
}

// Build assembles a FingerprintStore from a completed placement and its
// per-bucket fingerprint plans, per spec section 4.6.
func Build(in BuildInput) *Store {
	p := in.Placement
	b, k := p.NumBuckets(), p.K

	var emptyBuilder bitmap.Builder
	occupancy := make([]int, b)
	for u := 0; u < b; u++ {
		n := 0
		for s, slot := range p.Buckets[u].Slots {
			empty := !slot.Occupied
			emptyBuilder.Set(u*k+s, empty)
			if !empty {
				n++
			}
		}
		occupancy[u] = n
	}
	emptySlots := emptyBuilder.Finish(b * k)

	// Partition buckets into the virtual empty-bucket group and per-length
	// groups among buckets with at least one resident.
	byLength := map[int][]int{}
	var virtual []int
	for u := 0; u < b; u++ {
		if occupancy[u] == 0 {
			virtual = append(virtual, u)
			continue
		}
		byLength[in.Plans[u].Length] = append(byLength[in.Plans[u].Length], u)
	}

	type group struct {
		length  int
		buckets []int
	}
	groups := make([]group, 0, len(byLength))
	for length, buckets := range byLength {
		groups = append(groups, group{length: length, buckets: buckets})
	}
	sort.Slice(groups, func(i, j int) bool {
		if len(groups[i].buckets) != len(groups[j].buckets) {
			return len(groups[i].buckets) > len(groups[j].buckets)
		}
		return groups[i].length < groups[j].length
	})

	raw := make([]*bitmap.Bitmap, 0, len(groups)+1)
	lengths := make([]int, 0, len(groups)+1)
	raw = append(raw, membershipBitmap(virtual, b))
	lengths = append(lengths, 0)
	for _, g := range groups {
		raw = append(raw, membershipBitmap(g.buckets, b))
		lengths = append(lengths, g.length)
	}

	compacted := compactChain(raw)

	blocks := make([]block, len(raw))
	blocks[0] = block{length: 0, compacted: compacted[0]}
	for j := 1; j < len(raw); j++ {
		blocks[j] = block{length: lengths[j], compacted: compacted[j]}
	}

	s := &Store{numBuckets: b, k: k, emptySlots: emptySlots, blocks: blocks}
	s.deriveIndexes()

	// Now that bucketBlock/bucketBlockPos/blockPrefix are known, pack each
	// real block's fingerprints in blockPos order, active slots only.
	bucketsByBlock := make([][]int32, len(blocks))
	for u := 0; u < b; u++ {
		j := s.bucketBlock[u]
		bucketsByBlock[j] = append(bucketsByBlock[j], int32(u))
	}
	for j := 1; j < len(blocks); j++ {
		buckets := bucketsByBlock[j]
		sort.Slice(buckets, func(i, k int) bool { return s.bucketBlockPos[buckets[i]] < s.bucketBlockPos[buckets[k]] })
		w := bitpack.NewWriter(blocks[j].length)
		idx := 0
		for _, u := range buckets {
			plan := in.Plans[u]
			for _, slot := range p.Buckets[u].Slots {
				if !slot.Occupied {
					continue
				}
				w.Set(idx, cuckoo.ComputeFingerprint(slot.Value, plan))
				idx++
			}
		}
		blocks[j].data = w.Bytes()
		blocks[j].numFingerprints = idx
	}
	s.blocks = blocks
	return s
}

func membershipBitmap(buckets []int, n int) *bitmap.Bitmap {
	var builder bitmap.Builder
	for _, u := range buckets {
		builder.Set(u, true)
	}
	return builder.Finish(n)
}

// compactChain builds the compacted bitmap chain of spec section 4.6:
// compacted[0] = raw[0]; compacted[j] addresses only the positions not
// claimed by compacted[0..j-1].
func compactChain(raw []*bitmap.Bitmap) []*bitmap.Bitmap {
	compacted := make([]*bitmap.Bitmap, len(raw))
	compacted[0] = raw[0]
	for j := 1; j < len(raw); j++ {
		length := compacted[j-1].Len() - compacted[j-1].OnesCount()
		var builder bitmap.Builder
		for u := 0; u < raw[j].Len(); u++ {
			if !raw[j].Get(u) {
				continue
			}
			pos := u
			for lvl := 0; lvl < j; lvl++ {
				pos -= compacted[lvl].Rank(pos)
			}
			builder.Set(pos, true)
		}
		compacted[j] = builder.Finish(length)
	}
	return compacted
}

// Encode serializes the store per spec section 4.6.
func (s *Store) Encode(buf *encbuf.Buffer) {
	buf.WriteVarint32(uint32(len(s.blocks)))
	buf.WriteVarint32(uint32(s.emptySlots.Len()))

	var eb encbuf.Buffer
	s.emptySlots.DenseEncode(&eb)
	buf.WriteLenPrefixed(eb.Bytes())

	for _, b := range s.blocks {
		buf.WriteVarint32(uint32(b.compacted.Len()))
	}
	var cb encbuf.Buffer
	for _, b := range s.blocks {
		b.compacted.DenseEncode(&cb)
	}
	buf.WriteLenPrefixed(cb.Bytes())

	for _, b := range s.blocks {
		buf.WriteVarint32(uint32(b.length))
		buf.WriteVarint32(uint32(b.numFingerprints))
		if b.numFingerprints > 0 {
			buf.WriteLenPrefixed(b.data)
		}
	}
}

// Decode reverses Encode. k (slots per bucket) is supplied by the caller,
// since it is a property of the enclosing index configuration rather than
// part of the fingerprint store's own serialized bytes.
func Decode(r *encbuf.Reader, k int) (*Store, error) {
	numBlocks, err := r.ReadVarint32()
	if err != nil {
		return nil, errors.Wrap(err, "fpstore: reading num_blocks")
	}
	numSlots, err := r.ReadVarint32()
	if err != nil {
		return nil, errors.Wrap(err, "fpstore: reading empty_slots_bits")
	}
	if k <= 0 || int(numSlots)%k != 0 {
		return nil, errors.Wrapf(ErrSerializationFormat, "num_slots %d not a multiple of k=%d", numSlots, k)
	}

	ebBytes, err := r.ReadLenPrefixed()
	if err != nil {
		return nil, errors.Wrap(err, "fpstore: reading empty-slots bitmap")
	}
	emptySlots, err := bitmap.DenseDecode(encbuf.NewReader(ebBytes))
	if err != nil {
		return nil, errors.Wrap(err, "fpstore: decoding empty-slots bitmap")
	}
	if emptySlots.Len() != int(numSlots) {
		return nil, errors.Wrapf(ErrSerializationFormat, "empty-slots bitmap length %d != %d", emptySlots.Len(), numSlots)
	}

	bitcounts := make([]int, numBlocks)
	for i := range bitcounts {
		v, err := r.ReadVarint32()
		if err != nil {
			return nil, errors.Wrap(err, "fpstore: reading block bit-count")
		}
		bitcounts[i] = int(v)
	}
	// Block 0's compacted bitmap addresses every bucket, so its length must
	// be numSlots/k; a mismatch means k differs from the encoding's.
	numBuckets := int(numSlots) / k
	if numBlocks == 0 {
		return nil, errors.Wrapf(ErrSerializationFormat, "no blocks encoded")
	}
	if bitcounts[0] != numBuckets {
		return nil, errors.Wrapf(ErrSerializationFormat, "empty-buckets block addresses %d buckets, want %d for k=%d", bitcounts[0], numBuckets, k)
	}
	blobBytes, err := r.ReadLenPrefixed()
	if err != nil {
		return nil, errors.Wrap(err, "fpstore: reading compacted bitmap blob")
	}
	blobReader := encbuf.NewReader(blobBytes)
	compacted := make([]*bitmap.Bitmap, numBlocks)
	for i := range compacted {
		bm, err := bitmap.DenseDecode(blobReader)
		if err != nil {
			return nil, errors.Wrapf(err, "fpstore: decoding compacted bitmap %d", i)
		}
		if bm.Len() != bitcounts[i] {
			return nil, errors.Wrapf(ErrSerializationFormat, "block %d compacted length %d != %d", i, bm.Len(), bitcounts[i])
		}
		compacted[i] = bm
	}

	blocks := make([]block, numBlocks)
	for i := range blocks {
		length, err := r.ReadVarint32()
		if err != nil {
			return nil, errors.Wrap(err, "fpstore: reading block length")
		}
		if length > bitpack.MaxWidth {
			return nil, errors.Wrapf(ErrSerializationFormat, "block %d width %d exceeds max", i, length)
		}
		numFp, err := r.ReadVarint32()
		if err != nil {
			return nil, errors.Wrap(err, "fpstore: reading block fingerprint count")
		}
		var data []byte
		if numFp > 0 {
			data, err = r.ReadLenPrefixed()
			if err != nil {
				return nil, errors.Wrap(err, "fpstore: reading block data")
			}
		}
		blocks[i] = block{length: int(length), numFingerprints: int(numFp), data: data, compacted: compacted[i]}
	}

	s := &Store{numBuckets: numBuckets, k: k, emptySlots: emptySlots, blocks: blocks}
	s.deriveIndexes()
	return s, nil
}
