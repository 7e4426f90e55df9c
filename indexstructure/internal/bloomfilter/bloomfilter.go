// Copyright 2024 The Cuckoo Index Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Package bloomfilter implements the cache-line-blocked bloom filter used by
// PerStripeBloom, adapted from the teacher's bloom/bloom.go: the same
// Murmur-like byte hash and cache-line probe/set scheme, applied to int32
// column values instead of arbitrary byte-string keys, and addressed with
// plain slice indexing rather than unsafe.Pointer arithmetic.
package bloomfilter

import "encoding/binary"

const cacheLineSize = 64
const cacheLineBits = cacheLineSize * 8

// probes contains the optimal number of probes for each bitsPerKey, as
// derived by the reference's simulation; values above 10 reuse probes[10].
var probes = [11]uint32{
	1: 1, 2: 1, 3: 2, 4: 3, 5: 3, 6: 4, 7: 4, 8: 5, 9: 5, 10: 6,
}

func calculateProbes(bitsPerKey uint32) uint32 {
	if bitsPerKey > 10 {
		return probes[10]
	}
	if bitsPerKey < 1 {
		return probes[1]
	}
	return probes[bitsPerKey]
}

// hash is the reference's Murmur-like hash, applied here to a fixed 4-byte
// little-endian encoding of an int32 value.
func hash(b []byte) uint32 {
	const (
		seed = 0xbc9f1d34
		m    = 0xc6a4a793
	)
	h := uint32(seed) ^ (uint32(len(b)) * m)
	for ; len(b) >= 4; b = b[4:] {
		h += uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
		h *= m
		h ^= h >> 16
	}
	switch len(b) {
	case 3:
		h += uint32(int8(b[2])) << 16
		fallthrough
	case 2:
		h += uint32(int8(b[1])) << 8
		fallthrough
	case 1:
		h += uint32(int8(b[0]))
		h *= m
		h ^= h >> 24
	}
	return h
}

func hashValue(v int32) uint32 {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	return hash(buf[:])
}

func calculateNumLines(numKeys int, bitsPerKey uint32) uint32 {
	nLines := (uint64(numKeys)*uint64(bitsPerKey) + cacheLineBits - 1) / cacheLineBits
	if nLines == 0 {
		nLines = 1
	}
	return uint32(nLines | 1)
}

func probe(filter []byte, lineStart uint32, nProbes uint32, h uint32) bool {
	delta := h>>17 | h<<15
	for i := uint32(0); i < nProbes; i++ {
		byteIdx := lineStart + (h>>3)&(cacheLineSize-1)
		if filter[byteIdx]&(1<<(h&7)) == 0 {
			return false
		}
		h += delta
	}
	return true
}

func set(filter []byte, lineStart uint32, nProbes uint32, h uint32) {
	delta := h>>17 | h<<15
	for i := uint32(0); i < nProbes; i++ {
		byteIdx := lineStart + (h>>3)&(cacheLineSize-1)
		filter[byteIdx] |= 1 << (h & 7)
		h += delta
	}
}

// Build constructs a bloom filter over values, targeting bitsPerKey bits per
// distinct key. The trailing 5 bytes hold the probe count and line count, so
// MayContain can be answered from the filter bytes alone.
func Build(values []int32, bitsPerKey uint32) []byte {
	nProbes := calculateProbes(bitsPerKey)
	nLines := calculateNumLines(len(values), bitsPerKey)
	nBytes := nLines * cacheLineSize
	filter := make([]byte, nBytes+5)
	for _, v := range values {
		h := hashValue(v)
		lineStart := (h % nLines) * cacheLineSize
		set(filter, lineStart, nProbes, h)
	}
	filter[nBytes] = byte(nProbes)
	binary.LittleEndian.PutUint32(filter[nBytes+1:], nLines)
	return filter
}

// MayContain reports whether value may be a member of the filter built by
// Build. False positives are possible; false negatives are not.
func MayContain(filter []byte, value int32) bool {
	if len(filter) <= 5 {
		return false
	}
	n := len(filter) - 5
	nProbes := uint32(filter[n])
	nLines := binary.LittleEndian.Uint32(filter[n+1:])
	if nLines == 0 {
		return false
	}
	h := hashValue(value)
	lineStart := (h % nLines) * cacheLineSize
	return probe(filter, lineStart, nProbes, h)
}
