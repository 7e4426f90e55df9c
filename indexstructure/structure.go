// Copyright 2024 The Cuckoo Index Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Package indexstructure exposes the pluggable secondary-index variants of
// spec section 9's polymorphism design note behind one capability set:
// CuckooIndex, PerStripeBloom, and ZoneMap, each constructible from a
// Factory. PerStripeXor is deliberately not implemented; see DESIGN.md for
// why no ecosystem library in this pack could ground it.
package indexstructure

import "github.com/cuckooidx/cuckooindex/internal/bitmap"

// Structure is the capability set every index structure variant implements,
// grounded on the reference's IndexStructure interface (name,
// StripeContains, GetQualifyingStripes, byte_size, compressed_byte_size).
type Structure interface {
	// StripeContains reports whether stripe stripeID may contain value.
	StripeContains(stripeID int, value int32) (bool, error)
	// GetQualifyingStripes returns a bitmap of length numStripes with bit s
	// set where stripe s may contain value.
	GetQualifyingStripes(value int32) *bitmap.Bitmap
	// Name identifies the structure variant.
	Name() string
	// ByteSize returns the in-memory serialized size, in bytes.
	ByteSize() int
	// CompressedByteSize returns ByteSize after black-box compression.
	CompressedByteSize() int
}
