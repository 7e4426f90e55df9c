// Copyright 2024 The Cuckoo Index Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Package bitpack implements a fixed bit-width integer codec: an ordered
// sequence of n unsigned integers packed into a contiguous bit stream at a
// uniform width w in [0, 64], with O(1) indexed reads and a bulk decode
// path. It plays the same role in this module that colblk.UintBuilder plays
// in a columnar sstable block: a compact fixed-width array with random
// access, but generalized to arbitrary (non-byte-aligned) bit widths rather
// than the {1,2,4,8}-byte widths a delta-encoded column needs.
package bitpack

import (
	"encoding/binary"
	"math/bits"

	"github.com/cockroachdb/errors"
)

// slopBytes is the number of zero sentinel bytes appended after the last
// logical byte of packed data, allowing Get to always perform a full 8-byte
// little-endian load without a bounds check.
const slopBytes = 8

// MaxWidth is the largest bit-width this codec supports.
const MaxWidth = 64

// BitsRequired returns the number of bits needed to represent v, i.e. the
// smallest w such that v < 1<<w. BitsRequired(0) is 0.
func BitsRequired(v uint64) int {
	return bits.Len64(v)
}

// ByteSize returns the number of bytes (excluding the trailing slop) needed
// to store n values at the given bit width.
func ByteSize(n, width int) int {
	return (n*width + 7) / 8
}

// Writer incrementally builds a bit-packed array of a fixed width, following
// the growable-backing-array pattern of colblk.UintBuilder: the backing byte
// slice doubles in size as elements are set beyond its current extent, and
// Finish (Bytes) trims to the exact size plus slop.
type Writer struct {
	width int
	n     int // one past the highest index Set so far
	buf   []byte
}

// NewWriter returns a Writer that packs values into width-bit slots. width
// must be in [0, 64].
func NewWriter(width int) *Writer {
	if width < 0 || width > MaxWidth {
		panic(errors.Newf("bitpack: invalid width %d", width))
	}
	return &Writer{width: width}
}

// Width returns the configured bit width.
func (w *Writer) Width() int { return w.width }

// Len returns one past the highest index that has been Set.
func (w *Writer) Len() int { return w.n }

// growTo ensures the backing buffer holds at least byteLen+slopBytes bytes,
// zero-filling any newly added region.
func (w *Writer) growTo(byteLen int) {
	need := byteLen + slopBytes
	if len(w.buf) >= need {
		return
	}
	newCap := max(len(w.buf)*2, 64)
	for newCap < need {
		newCap *= 2
	}
	grown := make([]byte, newCap)
	copy(grown, w.buf)
	w.buf = grown
}

// Set packs v into slot i. v must fit within the writer's configured width
// (v < 1<<width, or width == 64). Set may be called in any order; slots
// never explicitly Set default to zero.
func (w *Writer) Set(i int, v uint64) {
	if w.width < 64 && v>>uint(w.width) != 0 {
		panic(errors.Newf("bitpack: value %d does not fit in %d bits", v, w.width))
	}
	if w.width == 0 {
		if i+1 > w.n {
			w.n = i + 1
		}
		return
	}
	bitPos := i * w.width
	byteIdx := bitPos >> 3
	bitOff := uint(bitPos & 7)
	w.growTo(ByteSize(i+1, w.width))

	// Clear then set the width bits starting at (byteIdx, bitOff). We operate
	// on up to two 64-bit words to cover the case where the value straddles a
	// word boundary near the tail of the buffer.
	mask := widthMask(w.width)
	lo := binary.LittleEndian.Uint64(w.buf[byteIdx : byteIdx+8])
	lo = (lo &^ (mask << bitOff)) | ((v & mask) << bitOff)
	binary.LittleEndian.PutUint64(w.buf[byteIdx:byteIdx+8], lo)
	if over := bitOff + uint(w.width); over > 64 {
		hiBits := over - 64
		hi := binary.LittleEndian.Uint64(w.buf[byteIdx+8 : byteIdx+16])
		hiMask := widthMask(int(hiBits))
		hi = (hi &^ hiMask) | ((v >> (64 - bitOff)) & hiMask)
		binary.LittleEndian.PutUint64(w.buf[byteIdx+8:byteIdx+16], hi)
	}
	if i+1 > w.n {
		w.n = i + 1
	}
}

// Bytes returns the packed byte representation of the first Len() elements,
// including the trailing slop bytes. The returned slice aliases the
// writer's internal buffer.
func (w *Writer) Bytes() []byte {
	sz := ByteSize(w.n, w.width)
	w.growTo(sz)
	return w.buf[:sz+slopBytes]
}

// Reader provides random and bulk access into a byte slice produced by
// Writer.Bytes (or an equivalent encoding), interpreting it as n values of
// the given bit width.
type Reader struct {
	data  []byte
	width int
}

// NewReader wraps data (which must include the trailing slop bytes) as a
// Reader over values of the given width.
func NewReader(data []byte, width int) Reader {
	if width < 0 || width > MaxWidth {
		panic(errors.Newf("bitpack: invalid width %d", width))
	}
	return Reader{data: data, width: width}
}

// Width returns the reader's configured bit width.
func (r Reader) Width() int { return r.width }

func widthMask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(width)) - 1
}

// readWordAt reads 8 bytes from data starting at byteIdx, little-endian,
// zero-filling any bytes past the end of the slice. This tolerates reads
// that fall within the declared slop region (or, defensively, past it)
// without panicking, standing in for the reference's unchecked pointer
// arithmetic into an 8-byte-padded buffer.
func readWordAt(data []byte, byteIdx int) uint64 {
	if byteIdx < 0 || byteIdx >= len(data) {
		return 0
	}
	var tmp [8]byte
	copy(tmp[:], data[byteIdx:])
	return binary.LittleEndian.Uint64(tmp[:])
}

// Get returns the i-th packed value.
func (r Reader) Get(i int) uint64 {
	if r.width == 0 {
		return 0
	}
	bitPos := i * r.width
	byteIdx := bitPos >> 3
	bitOff := uint(bitPos & 7)
	mask := widthMask(r.width)

	val := readWordAt(r.data, byteIdx) >> bitOff
	if over := bitOff + uint(r.width); over > 64 {
		hi := readWordAt(r.data, byteIdx+8)
		val |= hi << (64 - bitOff)
	}
	return val & mask
}

// GetBatch decodes the first n values into sink, which must have length ≥ n.
// It dispatches on the reader's bit width, using a specialized shift/mask
// loop for byte-aligned widths (8, 16, 32, 64) and the general bit-crossing
// path otherwise.
func (r Reader) GetBatch(n int, sink []uint64) {
	switch r.width {
	case 0:
		for i := 0; i < n; i++ {
			sink[i] = 0
		}
	case 8:
		for i := 0; i < n; i++ {
			sink[i] = uint64(r.data[i])
		}
	case 16:
		for i := 0; i < n; i++ {
			sink[i] = uint64(binary.LittleEndian.Uint16(r.data[i*2:]))
		}
	case 32:
		for i := 0; i < n; i++ {
			sink[i] = uint64(binary.LittleEndian.Uint32(r.data[i*4:]))
		}
	case 64:
		for i := 0; i < n; i++ {
			sink[i] = binary.LittleEndian.Uint64(r.data[i*8:])
		}
	default:
		mask := widthMask(r.width)
		bitPos := 0
		for i := 0; i < n; i++ {
			byteIdx := bitPos >> 3
			bitOff := uint(bitPos & 7)
			val := readWordAt(r.data, byteIdx) >> bitOff
			if over := bitOff + uint(r.width); over > 64 {
				val |= readWordAt(r.data, byteIdx+8) << (64 - bitOff)
			}
			sink[i] = val & mask
			bitPos += r.width
		}
	}
}
