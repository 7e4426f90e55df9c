// Copyright 2024 The Cuckoo Index Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package cuckooindex

import "github.com/cockroachdb/errors"

// The five error kinds of spec section 7. BuildExhaustion and
// FingerprintOverflow originate in the internal/cuckoo package; the
// sentinels here let callers errors.Is against a single stable identity
// regardless of which layer detected the condition.
var (
	// ErrBuildExhaustion means placement failed to converge even after the
	// grow-and-retry cap; the build is aborted.
	ErrBuildExhaustion = errors.New("cuckooindex: build exhausted placement retries")
	// ErrFingerprintOverflow means no fingerprint length up to 64 bits
	// could disambiguate some bucket's colliding value set.
	ErrFingerprintOverflow = errors.New("cuckooindex: fingerprint sizing overflowed 64 bits")
	// ErrSerializationFormat means a decoded length or bit-width violated
	// an expected structural bound.
	ErrSerializationFormat = errors.New("cuckooindex: invalid serialized format")
	// ErrOutOfRange means a caller passed a stripe id or slot id outside
	// the index's valid range.
	ErrOutOfRange = errors.New("cuckooindex: argument out of range")
	// ErrInvalidConfig means a Config field failed validation.
	ErrInvalidConfig = errors.New("cuckooindex: invalid configuration")
)
