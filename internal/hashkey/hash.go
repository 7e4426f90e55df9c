// Copyright 2024 The Cuckoo Index Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Package hashkey provides the three independently seeded 64-bit hashes the
// cuckoo placement engine needs (H1, H2, Hf), built on
// github.com/cespare/xxhash/v2 with the seed as a prefix: the 8 little-endian
// seed bytes and the 4 little-endian key bytes are concatenated into one
// 12-byte buffer and hashed with a single xxhash.Sum64 call.
package hashkey

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Reference seeds for H1, H2, and Hf, per spec section 4.4.
const (
	SeedPrimary     uint64 = 17
	SeedSecondary   uint64 = 23
	SeedFingerprint uint64 = 42
)

// Seeded returns a 64-bit hash of key, mixed with seed.
func Seeded(seed uint64, key int32) uint64 {
	var buf [12]byte
	binary.LittleEndian.PutUint64(buf[:8], seed)
	binary.LittleEndian.PutUint32(buf[8:], uint32(key))
	return xxhash.Sum64(buf[:])
}

// Triple bundles the three hashes a CuckooValue needs.
type Triple struct {
	B1 uint64
	B2 uint64
	Fp uint64
}

// Compute derives (H1(v), H2(v), Hf(v)) for the given value.
func Compute(v int32) Triple {
	return Triple{
		B1: Seeded(SeedPrimary, v),
		B2: Seeded(SeedSecondary, v),
		Fp: Seeded(SeedFingerprint, v),
	}
}
