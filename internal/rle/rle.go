// Copyright 2024 The Cuckoo Index Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Package rle implements a run-length encoded bitmap supporting random-access
// extraction of arbitrary sub-ranges without full decompression. A single
// bitmap is encoded either "dense" (runs of raw or repeated bits) or
// "sparse" (gaps between set bits), whichever the heuristic in spec section
// 4.3 favors, with a square-root-sampled skip index enabling Extract to seek
// close to any offset before walking forward.
package rle

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/cuckooidx/cuckooindex/internal/bitmap"
	"github.com/cuckooidx/cuckooindex/internal/bitpack"
	"github.com/cuckooidx/cuckooindex/internal/encbuf"
)

const (
	// minDense is the shortest run length that's cheaper to store as a
	// repeat run than verbatim: each repeat entry costs ~17 bits of
	// overhead (two length bytes plus one bit in the bits stream).
	minDense = 18
	// maxDense keeps a raw run-length entry inside 8 bits, and also keeps
	// individual runs short enough to compress well externally.
	maxDense       = 128
	maxRepeatChunk = maxDense + minDense - 1 // 145
)

// bitGetter is satisfied by any dense, positionally addressable source of
// bits. *bitmap.Bitmap and *bitmap.Builder-backed bitmaps both qualify.
type bitGetter interface {
	Get(i int) bool
}

// skipSample is one entry of the square-root skip index. For dense
// encodings both fields are meaningful; for sparse encodings only
// uncompressedCount is used (see decode loop for why one running value
// suffices for the gap-list format).
type skipSample struct {
	uncompressedCount int
	compressedBits    int
}

// Bitmap is a decoded RLE-encoded bitmap ready for random-access Extract.
type Bitmap struct {
	isSparse bool
	n        int
	step     int
	samples  []skipSample

	codes    bitpack.Reader
	numCodes int

	bits      bitpack.Reader
	bitsCount int
}

// Len returns the logical number of bits represented.
func (b *Bitmap) Len() int { return b.n }

// Get returns the value of bit pos.
func (b *Bitmap) Get(pos int) bool {
	return b.Extract(pos, 1).Get(0)
}

// Build encodes src (n logical bits) into an RLE-compressed Bitmap,
// choosing dense or sparse per the heuristic in spec section 4.3.
func Build(src bitGetter, n int) *Bitmap {
	denseCodes, denseBits, ones := buildDenseRuns(src, n)

	useSparse := float64(ones) < 1.1*float64(len(denseCodes))+float64(len(denseBits))/8

	if !useSparse {
		return finishDense(n, denseCodes, denseBits)
	}
	sparseCodes := buildSparseCodes(src, n)
	return finishSparse(n, sparseCodes)
}

// buildDenseRuns scans src producing the dense run-length code stream and
// its companion raw-bit stream, along with the total number of set bits
// (needed by the sparse-vs-dense heuristic regardless of which is chosen).
func buildDenseRuns(src bitGetter, n int) (codes []byte, bits []bool, ones int) {
	var raw []bool
	flushRaw := func() {
		for len(raw) > 0 {
			chunk := min(len(raw), maxDense)
			codes = append(codes, byte((chunk-1)<<1|1))
			bits = append(bits, raw[:chunk]...)
			raw = raw[chunk:]
		}
	}

	i := 0
	for i < n {
		v := src.Get(i)
		if v {
			ones++
		}
		j := i + 1
		for j < n && src.Get(j) == v {
			if v {
				ones++
			}
			j++
		}
		runLen := j - i
		if runLen >= minDense {
			flushRaw()
			remaining := runLen
			for remaining > 0 {
				chunk := min(remaining, maxRepeatChunk)
				if leftover := remaining - chunk; leftover > 0 && leftover < minDense {
					chunk = remaining - minDense
				}
				codes = append(codes, byte((chunk-minDense)<<1))
				bits = append(bits, v)
				remaining -= chunk
			}
		} else {
			for k := 0; k < runLen; k++ {
				raw = append(raw, v)
				if len(raw) == maxDense {
					flushRaw()
				}
			}
		}
		i = j
	}
	flushRaw()
	return codes, bits, ones
}

// buildSparseCodes scans src producing the sparse gap-byte stream: offsets
// between successive set bits (and a virtual sentinel set bit at position
// n), each offset encoded as one or more bytes per spec section 4.3.
func buildSparseCodes(src bitGetter, n int) []byte {
	var codes []byte
	emitGap := func(gap int) {
		if gap <= 0 {
			panic(errors.Newf("rle: non-positive gap %d", gap))
		}
		k := (gap - 1) / 255
		r := gap - k*255
		for j := 0; j < k; j++ {
			codes = append(codes, 0)
		}
		codes = append(codes, byte(r))
	}
	prev := -1
	for i := 0; i < n; i++ {
		if src.Get(i) {
			emitGap(i - prev)
			prev = i
		}
	}
	emitGap(n - prev) // sentinel
	return codes
}

func step(numCodes int) int {
	s := int(math.Sqrt(float64(numCodes)))
	if s < 1 {
		s = 1
	}
	return s
}

func maxByte(bs []byte) byte {
	var m byte
	for _, b := range bs {
		if b > m {
			m = b
		}
	}
	return m
}

func packBytes(bs []byte) (bitpack.Reader, int) {
	width := bitpack.BitsRequired(uint64(maxByte(bs)))
	w := bitpack.NewWriter(width)
	for i, b := range bs {
		w.Set(i, uint64(b))
	}
	return bitpack.NewReader(w.Bytes(), width), width
}

func packBools(bs []bool) (bitpack.Reader, int) {
	w := bitpack.NewWriter(1)
	for i, b := range bs {
		if b {
			w.Set(i, 1)
		}
	}
	return bitpack.NewReader(w.Bytes(), 1), 1
}

func finishDense(n int, codes []byte, bits []bool) *Bitmap {
	st := step(len(codes))
	var samples []skipSample
	bitmapPos, bitsPos := 0, 0
	for idx := 0; idx < len(codes); idx++ {
		if idx%st == 0 {
			samples = append(samples, skipSample{uncompressedCount: bitmapPos, compressedBits: bitsPos})
		}
		c := codes[idx]
		if c&1 == 1 {
			length := int(c>>1) + 1
			bitmapPos += length
			bitsPos += length
		} else {
			length := int(c>>1) + minDense
			bitmapPos += length
			bitsPos++
		}
	}
	codesReader, _ := packBytes(codes)
	bitsReader, _ := packBools(bits)
	return &Bitmap{
		isSparse:  false,
		n:         n,
		step:      st,
		samples:   samples,
		codes:     codesReader,
		numCodes:  len(codes),
		bits:      bitsReader,
		bitsCount: len(bits),
	}
}

func finishSparse(n int, codes []byte) *Bitmap {
	st := step(len(codes))
	var samples []skipSample
	runningSum := -1
	for idx := 0; idx < len(codes); idx++ {
		if idx%st == 0 {
			samples = append(samples, skipSample{uncompressedCount: runningSum})
		}
		b := codes[idx]
		if b == 0 {
			runningSum += 255
		} else {
			runningSum += int(b)
		}
	}
	codesReader, _ := packBytes(codes)
	return &Bitmap{
		isSparse: true,
		n:        n,
		step:     st,
		samples:  samples,
		codes:    codesReader,
		numCodes: len(codes),
	}
}

// Extract decodes the [offset, offset+size) window of the logical bitmap
// into a freshly materialized dense bitmap of length size.
func (b *Bitmap) Extract(offset, size int) *bitmap.Bitmap {
	if offset < 0 || size < 0 || offset+size > b.n {
		panic(errors.Newf("rle: Extract(%d, %d) out of range for bitmap of length %d", offset, size, b.n))
	}
	var builder bitmap.Builder
	if size == 0 {
		return builder.Finish(0)
	}
	if b.isSparse {
		b.extractSparse(offset, size, &builder)
	} else {
		b.extractDense(offset, size, &builder)
	}
	return builder.Finish(size)
}

// sampleFor returns the last skip sample whose uncompressedCount is <=
// target, along with its index.
func (b *Bitmap) sampleFor(target int) (skipSample, int) {
	lo, hi := 0, len(b.samples)-1
	best := 0
	for lo <= hi {
		mid := (lo + hi) / 2
		if b.samples[mid].uncompressedCount <= target {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return b.samples[best], best * b.step
}

func (b *Bitmap) extractDense(offset, size int, out *bitmap.Builder) {
	sample, codeIdx := b.sampleFor(offset)
	bitmapPos, bitsPos := sample.uncompressedCount, sample.compressedBits
	end := offset + size
	for codeIdx < b.numCodes && bitmapPos < end {
		c := byte(b.codes.Get(codeIdx))
		if c&1 == 1 {
			length := int(c>>1) + 1
			for k := 0; k < length; k++ {
				pos := bitmapPos + k
				if pos >= offset && pos < end {
					if b.bits.Get(bitsPos+k) == 1 {
						out.Set(pos-offset, true)
					}
				}
			}
			bitmapPos += length
			bitsPos += length
		} else {
			length := int(c>>1) + minDense
			v := b.bits.Get(bitsPos) == 1
			if v {
				lo := max(bitmapPos, offset)
				hi := min(bitmapPos+length, end)
				for pos := lo; pos < hi; pos++ {
					out.Set(pos-offset, true)
				}
			}
			bitmapPos += length
			bitsPos++
		}
		codeIdx++
	}
}

func (b *Bitmap) extractSparse(offset, size int, out *bitmap.Builder) {
	// A sparse sample's running sum is the position of a set bit already
	// emitted by the preceding code, so start from the last sample strictly
	// before offset; a sample equal to offset would skip that bit.
	sample, codeIdx := b.sampleFor(offset - 1)
	runningSum := sample.uncompressedCount
	end := offset + size
	for codeIdx < b.numCodes && runningSum < end {
		bb := byte(b.codes.Get(codeIdx))
		if bb == 0 {
			runningSum += 255
		} else {
			runningSum += int(bb)
			if runningSum != b.n && runningSum >= offset && runningSum < end {
				out.Set(runningSum-offset, true)
			}
		}
		codeIdx++
	}
}

// Encode appends the RLE bitmap's serialized form to buf, per the layout in
// spec section 4.3.
func (b *Bitmap) Encode(buf *encbuf.Buffer) {
	if b.isSparse {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	buf.WriteVarint32(uint32(b.n))
	buf.WriteVarint32(uint32(b.step))
	buf.WriteVarint32(uint32(len(b.samples)))
	buf.WriteVarint32(uint32(b.numCodes))
	buf.WriteVarint32(uint32(b.bitsCount))

	skipWidth := skipSampleBitWidth(b.samples, b.isSparse)
	buf.WriteByte(byte(skipWidth))
	sw := bitpack.NewWriter(skipWidth)
	if b.isSparse {
		for i, s := range b.samples {
			sw.Set(i, uint64(s.uncompressedCount+1)) // +1: sparse count may start at -1
		}
	} else {
		for i, s := range b.samples {
			sw.Set(2*i, uint64(s.uncompressedCount))
			sw.Set(2*i+1, uint64(s.compressedBits))
		}
	}
	buf.WriteBytes(trimSlop(sw.Bytes()))

	codesWidth := b.codes.Width()
	buf.WriteByte(byte(codesWidth))
	buf.WriteBytes(trimSlop(rewriteBytes(b.codes, b.numCodes, codesWidth)))

	if !b.isSparse {
		buf.WriteBytes(trimSlop(rewriteBytes(b.bits, b.bitsCount, 1)))
	}
	buf.WriteBytes(make([]byte, 8)) // trailing slop
}

// trimSlop drops the trailing 8 sentinel bytes bitpack.Writer.Bytes appends,
// since the RLE format places a single shared slop region at the very end
// of the whole encoding rather than after each sub-stream.
func trimSlop(b []byte) []byte {
	return b[:len(b)-8]
}

// rewriteBytes re-serializes a bitpack.Reader's logical values back into a
// byte buffer; used because Bitmap retains only Readers, not the original
// Writers, once built.
func rewriteBytes(r bitpack.Reader, n, width int) []byte {
	w := bitpack.NewWriter(width)
	for i := 0; i < n; i++ {
		w.Set(i, r.Get(i))
	}
	return w.Bytes()
}

func skipSampleBitWidth(samples []skipSample, sparse bool) int {
	var maxV uint64
	for _, s := range samples {
		if sparse {
			v := uint64(s.uncompressedCount + 1)
			if v > maxV {
				maxV = v
			}
		} else {
			if uint64(s.uncompressedCount) > maxV {
				maxV = uint64(s.uncompressedCount)
			}
			if uint64(s.compressedBits) > maxV {
				maxV = uint64(s.compressedBits)
			}
		}
	}
	return bitpack.BitsRequired(maxV)
}

// Decode reverses Encode.
func Decode(r *encbuf.Reader) (*Bitmap, error) {
	sparseByte, err := r.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "rle: reading is_sparse")
	}
	n, err := r.ReadVarint32()
	if err != nil {
		return nil, errors.Wrap(err, "rle: reading size")
	}
	st, err := r.ReadVarint32()
	if err != nil {
		return nil, errors.Wrap(err, "rle: reading step")
	}
	numSamples, err := r.ReadVarint32()
	if err != nil {
		return nil, errors.Wrap(err, "rle: reading skip_offsets_size")
	}
	numCodes, err := r.ReadVarint32()
	if err != nil {
		return nil, errors.Wrap(err, "rle: reading run_lengths_size")
	}
	bitsCount, err := r.ReadVarint32()
	if err != nil {
		return nil, errors.Wrap(err, "rle: reading bits_size")
	}
	skipWidthByte, err := r.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "rle: reading skip_offsets_bit_width")
	}
	skipWidth := int(skipWidthByte)
	if skipWidth > 64 {
		return nil, errors.Newf("rle: invalid skip_offsets_bit_width %d", skipWidth)
	}
	isSparse := sparseByte != 0
	elemCount := int(numSamples)
	if !isSparse {
		elemCount *= 2
	}
	skipBytes, err := r.ReadBytes(bitpack.ByteSize(elemCount, skipWidth))
	if err != nil {
		return nil, errors.Wrap(err, "rle: reading skip_offsets_packed")
	}
	skipReader := bitpack.NewReader(withSlop(skipBytes), skipWidth)
	samples := make([]skipSample, numSamples)
	for i := range samples {
		if isSparse {
			samples[i] = skipSample{uncompressedCount: int(skipReader.Get(i)) - 1}
		} else {
			samples[i] = skipSample{
				uncompressedCount: int(skipReader.Get(2 * i)),
				compressedBits:    int(skipReader.Get(2*i + 1)),
			}
		}
	}

	codesWidthByte, err := r.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "rle: reading run_lengths_bit_width")
	}
	codesWidth := int(codesWidthByte)
	if codesWidth > 8 {
		return nil, errors.Newf("rle: run_lengths_bit_width %d exceeds 8 bits", codesWidth)
	}
	codesBytes, err := r.ReadBytes(bitpack.ByteSize(int(numCodes), codesWidth))
	if err != nil {
		return nil, errors.Wrap(err, "rle: reading run_lengths_packed")
	}
	codesReader := bitpack.NewReader(withSlop(codesBytes), codesWidth)

	bm := &Bitmap{
		isSparse: isSparse,
		n:        int(n),
		step:     int(st),
		samples:  samples,
		codes:    codesReader,
		numCodes: int(numCodes),
	}
	if !isSparse {
		bitsBytes, err := r.ReadBytes(bitpack.ByteSize(int(bitsCount), 1))
		if err != nil {
			return nil, errors.Wrap(err, "rle: reading bits_packed")
		}
		bm.bits = bitpack.NewReader(withSlop(bitsBytes), 1)
		bm.bitsCount = int(bitsCount)
	}
	if _, err := r.ReadBytes(8); err != nil {
		return nil, errors.Wrap(err, "rle: reading trailing slop")
	}
	return bm, nil
}

func withSlop(b []byte) []byte {
	return append(append([]byte{}, b...), make([]byte, 8)...)
}
