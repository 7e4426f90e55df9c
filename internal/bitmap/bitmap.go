// Copyright 2024 The Cuckoo Index Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Package bitmap implements a dense, bit-addressable bitmap with a
// precomputed block-level rank table supporting O(1) Rank and O(popcount)
// Select. It plays the same structural role as colblk.Bitmap (word array
// plus a per-word summary bitmap for Successor/Predecessor), generalized to
// a coarser rank-block granularity so that Rank itself, not just
// Successor/Predecessor, is answerable without a linear scan.
package bitmap

import (
	"math/bits"

	"github.com/cockroachdb/errors"
	"github.com/cuckooidx/cuckooindex/internal/encbuf"
)

// blockBits is the number of bits summarized by one rank-table entry. 512
// bits (8 uint64 words) matches the block size named in spec section 4.2.
const blockBits = 512
const wordsPerBlock = blockBits / 64

// Bitmap is an immutable, rank-augmented bit vector.
type Bitmap struct {
	words []uint64
	n     int // logical bit count
	// rank[k] holds the number of set bits in words[0 : k*wordsPerBlock).
	// nil when n <= blockBits (spec: rank table is skipped for small bitmaps).
	rank []uint32
}

// Builder incrementally constructs a Bitmap. The zero value is ready to use.
type Builder struct {
	words []uint64
}

// Set sets or clears bit i, growing the backing array as necessary.
func (b *Builder) Set(i int, v bool) {
	w := i >> 6
	for len(b.words) <= w {
		b.words = append(b.words, 0)
	}
	if v {
		b.words[w] |= 1 << uint(i%64)
	} else {
		b.words[w] &^= 1 << uint(i%64)
	}
}

// Reset clears the builder for reuse.
func (b *Builder) Reset() {
	b.words = b.words[:0]
}

// Finish produces an immutable Bitmap with exactly n logical bits, building
// the rank table (initRankTable) unless n <= blockBits.
func (b *Builder) Finish(n int) *Bitmap {
	nWords := (n + 63) / 64
	words := make([]uint64, nWords)
	copy(words, b.words)
	if tail := n % 64; tail != 0 && len(words) > 0 {
		words[len(words)-1] &= (1 << uint(tail)) - 1
	}
	bm := &Bitmap{words: words, n: n}
	if n > blockBits {
		bm.initRankTable()
	}
	return bm
}

// FromWords wraps a pre-populated set of words (already masked to n bits) as
// a Bitmap, building the rank table as Finish would. Used by decoders that
// already have the raw words in hand.
func FromWords(words []uint64, n int) *Bitmap {
	bm := &Bitmap{words: words, n: n}
	if n > blockBits {
		bm.initRankTable()
	}
	return bm
}

// initRankTable computes the cumulative popcount at each block boundary.
func (bm *Bitmap) initRankTable() {
	nBlocks := (len(bm.words) + wordsPerBlock - 1) / wordsPerBlock
	bm.rank = make([]uint32, nBlocks+1)
	var cum uint32
	for blk := 0; blk < nBlocks; blk++ {
		bm.rank[blk] = cum
		start := blk * wordsPerBlock
		end := min(start+wordsPerBlock, len(bm.words))
		for _, w := range bm.words[start:end] {
			cum += uint32(bits.OnesCount64(w))
		}
	}
	bm.rank[nBlocks] = cum
}

// Len returns the number of logical bits.
func (bm *Bitmap) Len() int { return bm.n }

// Get returns the value of bit i.
func (bm *Bitmap) Get(i int) bool {
	return (bm.words[i>>6] & (1 << uint(i%64))) != 0
}

// OnesCount returns the total number of set bits.
func (bm *Bitmap) OnesCount() int {
	if bm.rank != nil {
		return int(bm.rank[len(bm.rank)-1])
	}
	var c int
	for _, w := range bm.words {
		c += bits.OnesCount64(w)
	}
	return c
}

// Rank returns the number of set bits in [0, i).
func (bm *Bitmap) Rank(i int) int {
	if i <= 0 {
		return 0
	}
	if i >= bm.n {
		return bm.OnesCount()
	}
	wordIdx := i >> 6
	var base int
	startWord := 0
	if bm.rank != nil {
		blk := wordIdx / wordsPerBlock
		base = int(bm.rank[blk])
		startWord = blk * wordsPerBlock
	}
	for w := startWord; w < wordIdx; w++ {
		base += bits.OnesCount64(bm.words[w])
	}
	if bitOff := uint(i % 64); bitOff != 0 {
		base += bits.OnesCount64(bm.words[wordIdx] & ((1 << bitOff) - 1))
	}
	return base
}

// selectInWord returns the local bit index of the (rank)-th set bit in w
// (0-indexed), or -1 if w has fewer than rank+1 set bits.
func selectInWord(w uint64, rank int) int {
	for i := 0; i < rank; i++ {
		if w == 0 {
			return -1
		}
		w &= w - 1 // clear lowest set bit
	}
	if w == 0 {
		return -1
	}
	return bits.TrailingZeros64(w)
}

// SelectOne returns the position of the k-th set bit (0-indexed), and true,
// or (0, false) if the bitmap has fewer than k+1 set bits.
func (bm *Bitmap) SelectOne(k int) (int, bool) {
	if k < 0 {
		return 0, false
	}
	blk, rem := bm.selectBlock(k, false)
	if blk < 0 {
		return 0, false
	}
	start := blk * wordsPerBlock
	end := min(start+wordsPerBlock, len(bm.words))
	for wi := start; wi < end; wi++ {
		c := bits.OnesCount64(bm.words[wi])
		if rem < c {
			return wi*64 + selectInWord(bm.words[wi], rem), true
		}
		rem -= c
	}
	return 0, false
}

// SelectZero returns the position of the k-th cleared bit (0-indexed), and
// true, or (0, false) if the bitmap has fewer than k+1 cleared bits.
func (bm *Bitmap) SelectZero(k int) (int, bool) {
	if k < 0 {
		return 0, false
	}
	blk, rem := bm.selectBlock(k, true)
	if blk < 0 {
		return 0, false
	}
	start := blk * wordsPerBlock
	end := min(start+wordsPerBlock, len(bm.words))
	for wi := start; wi < end; wi++ {
		w := ^bm.words[wi]
		if last := len(bm.words) - 1; wi == last {
			if tail := bm.n % 64; tail != 0 {
				w &= (1 << uint(tail)) - 1
			}
		}
		c := bits.OnesCount64(w)
		if rem < c {
			pos := wi*64 + selectInWord(w, rem)
			if pos >= bm.n {
				return 0, false
			}
			return pos, true
		}
		rem -= c
	}
	return 0, false
}

// selectBlock finds which rank block contains the k-th set (or cleared, if
// zero) bit, returning the block index and the remaining rank within that
// block. A table-less bitmap always yields (0, k), so the caller scans from
// block 0; (-1, 0) is returned only if no block's cumulative count is <= k.
func (bm *Bitmap) selectBlock(k int, zero bool) (blockIdx int, remaining int) {
	if bm.rank == nil {
		return 0, k
	}
	nBlocks := len(bm.rank) - 1
	// Binary search for the last block whose cumulative count is <= k.
	lo, hi := 0, nBlocks-1
	best := -1
	for lo <= hi {
		mid := (lo + hi) / 2
		cum := bm.cumAt(mid, zero)
		if cum <= k {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	if best < 0 {
		return -1, 0
	}
	return best, k - bm.cumAt(best, zero)
}

func (bm *Bitmap) cumAt(blk int, zero bool) int {
	if !zero {
		return int(bm.rank[blk])
	}
	return blk*blockBits - int(bm.rank[blk])
}

// DenseEncode appends the bitmap's serialized form to buf: a 32-bit bit
// count, the raw block words, a 32-bit rank-table length, and the rank-table
// words, per spec section 4.2.
func (bm *Bitmap) DenseEncode(buf *encbuf.Buffer) {
	buf.WriteUint32(uint32(bm.n))
	for _, w := range bm.words {
		buf.WriteUint64(w)
	}
	buf.WriteUint32(uint32(len(bm.rank)))
	for _, r := range bm.rank {
		buf.WriteUint32(r)
	}
}

// DenseDecode reverses DenseEncode.
func DenseDecode(r *encbuf.Reader) (*Bitmap, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, errors.Wrap(err, "bitmap: reading bit count")
	}
	nWords := (int(n) + 63) / 64
	words := make([]uint64, nWords)
	for i := range words {
		w, err := r.ReadUint64()
		if err != nil {
			return nil, errors.Wrap(err, "bitmap: reading word")
		}
		words[i] = w
	}
	rankLen, err := r.ReadUint32()
	if err != nil {
		return nil, errors.Wrap(err, "bitmap: reading rank table length")
	}
	var rank []uint32
	if rankLen > 0 {
		rank = make([]uint32, rankLen)
		for i := range rank {
			v, err := r.ReadUint32()
			if err != nil {
				return nil, errors.Wrap(err, "bitmap: reading rank entry")
			}
			rank[i] = v
		}
	}
	return &Bitmap{words: words, n: int(n), rank: rank}, nil
}
