// Copyright 2024 The Cuckoo Index Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package cuckooindex

import (
	"github.com/cockroachdb/errors"
	"github.com/cuckooidx/cuckooindex/internal/cuckoo"
)

// Config configures a build, per spec section 6's recognized options.
type Config struct {
	// Algorithm selects KICKING or SKEWED_KICKING placement.
	Algorithm cuckoo.Algorithm
	// MaxLoadFactor governs the initial bucket count. Zero selects the
	// reference default for SlotsPerBucket.
	MaxLoadFactor float64
	// ScanRate is the target false-positive fraction per lookup, in (0,1].
	ScanRate float64
	// SlotsPerBucket, K, must be one of {1, 2, 4, 8}.
	SlotsPerBucket int
	// PrefixBitsOptimization enables per-bucket selection between prefix
	// and suffix fingerprint bits.
	PrefixBitsOptimization bool
}

// DefaultConfig returns the configuration used when the caller has no
// specific requirements: skewed kicking, 4 slots per bucket, a 5% target
// scan rate, and the reference max load factor for K=4.
func DefaultConfig() Config {
	return Config{
		Algorithm:      cuckoo.SkewedKicking,
		ScanRate:       0.05,
		SlotsPerBucket: 4,
	}
}

// Validate checks the configuration against spec section 7's InvalidConfig
// rules.
func (c Config) Validate() error {
	if c.MaxLoadFactor != 0 && (c.MaxLoadFactor <= 0 || c.MaxLoadFactor >= 1) {
		return errors.Wrapf(ErrInvalidConfig, "max_load_factor %v not in (0,1)", c.MaxLoadFactor)
	}
	if c.ScanRate <= 0 || c.ScanRate > 1 {
		return errors.Wrapf(ErrInvalidConfig, "scan_rate %v not in (0,1]", c.ScanRate)
	}
	switch c.SlotsPerBucket {
	case 1, 2, 4, 8:
	default:
		return errors.Wrapf(ErrInvalidConfig, "unsupported slots_per_bucket %d", c.SlotsPerBucket)
	}
	switch c.Algorithm {
	case cuckoo.Kicking, cuckoo.SkewedKicking:
	default:
		return errors.Wrapf(ErrInvalidConfig, "unknown algorithm %v", c.Algorithm)
	}
	return nil
}

func (c Config) placementConfig() cuckoo.Config {
	return cuckoo.Config{
		SlotsPerBucket: c.SlotsPerBucket,
		Algorithm:      c.Algorithm,
		MaxLoadFactor:  c.MaxLoadFactor,
	}
}

func (c Config) fingerprintConfig() cuckoo.FingerprintConfig {
	return cuckoo.FingerprintConfig{
		ScanRate:               c.ScanRate,
		PrefixBitsOptimization: c.PrefixBitsOptimization,
	}
}
