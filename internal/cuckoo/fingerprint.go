// Copyright 2024 The Cuckoo Index Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package cuckoo

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/cuckooidx/cuckooindex/internal/hashkey"
)

// MaxFingerprintLength is the widest fingerprint this codec can represent;
// exceeding it during scan-rate sizing is fatal (spec section 4.5).
const MaxFingerprintLength = 64

// ErrFingerprintOverflow is returned (wrapped) when a bucket's colliding
// fingerprint set cannot be disambiguated within MaxFingerprintLength bits.
var ErrFingerprintOverflow = errors.New("cuckoo: fingerprint length exceeds 64 bits")

// FingerprintConfig configures per-bucket fingerprint sizing.
type FingerprintConfig struct {
	// ScanRate is the target average fraction of stripes a lookup scans
	// unnecessarily (false positives), s in spec section 4.5.
	ScanRate float64
	// PrefixBitsOptimization, when true, allows a bucket to use the
	// high-order bits of the fingerprint instead of the low-order bits
	// whenever that yields a shorter disambiguating length.
	PrefixBitsOptimization bool
}

// Plan is the fingerprint width and bit-selection chosen for one bucket.
type Plan struct {
	Length    int
	UsePrefix bool
}

// StripeStats supplies the per-value bitmap statistics fingerprint sizing
// needs to estimate the actual scan rate a candidate length would produce.
type StripeStats struct {
	// Ones maps a resident value to the number of stripes its presence
	// bitmap has set (i.e. how many stripes actually contain it).
	Ones map[int32]int
	// NumStripes is the total stripe count S.
	NumStripes int
}

// fpOf recomputes Hf(v); cuckoo values are cheap to re-hash rather than
// threading a value->hash map through every stage of the pipeline.
func fpOf(v int32) uint64 { return hashkey.Seeded(hashkey.SeedFingerprint, v) }

// SizePlans computes a Plan for every bucket in p, per spec section 4.5:
// first the minimal length that disambiguates the bucket's colliding
// fingerprint set (residents plus kicked-out values that hashed here),
// then a further increase, if needed, to bring the bucket's estimated scan
// rate at or under cfg.ScanRate.
func SizePlans(p *Placement, cfg FingerprintConfig, stats StripeStats) ([]Plan, error) {
	plans := make([]Plan, len(p.Buckets))
	for i := range p.Buckets {
		plan, err := sizeOne(&p.Buckets[i], cfg, stats)
		if err != nil {
			return nil, errors.Wrapf(err, "bucket %d", i)
		}
		plans[i] = plan
	}
	return plans, nil
}

func sizeOne(b *Bucket, cfg FingerprintConfig, stats StripeStats) (Plan, error) {
	colliding := collidingFingerprints(b)
	length, usePrefix := minimalDisambiguatingLength(colliding, cfg.PrefixBitsOptimization)

	density := float64(b.occupiedCount()) / float64(len(b.Slots))
	for length <= MaxFingerprintLength {
		if density == 0 || meetsScanRate(b, length, cfg.ScanRate, stats, density) {
			return Plan{Length: length, UsePrefix: usePrefix}, nil
		}
		length++
	}
	return Plan{}, errors.Wrapf(ErrFingerprintOverflow, "could not meet scan rate %.6f", cfg.ScanRate)
}

// collidingFingerprints returns Hf(v) for every value that resides in b or
// that was kicked out of b despite having b as its primary bucket.
func collidingFingerprints(b *Bucket) []uint64 {
	fps := make([]uint64, 0, len(b.Slots)+len(b.Kicked))
	for _, s := range b.Slots {
		if s.Occupied {
			fps = append(fps, fpOf(s.Value))
		}
	}
	for _, v := range b.Kicked {
		fps = append(fps, fpOf(v))
	}
	return fps
}

// minimalDisambiguatingLength finds the smallest length in [0, 64] such
// that truncating every fingerprint in fps to that length (from the low
// bits, or optionally the high bits) yields pairwise-distinct values. Ties
// (both widths equally short) favor the low-bit (suffix) selection. If even
// 64 bits leave a duplicate, the length is MaxFingerprintLength+1, which
// sizeOne reports as ErrFingerprintOverflow.
func minimalDisambiguatingLength(fps []uint64, allowPrefix bool) (length int, usePrefix bool) {
	suffixLen := minimalLength(fps, false)
	if !allowPrefix {
		return suffixLen, false
	}
	prefixLen := minimalLength(fps, true)
	if prefixLen < suffixLen {
		return prefixLen, true
	}
	return suffixLen, false
}

func minimalLength(fps []uint64, prefix bool) int {
	for length := 0; length <= MaxFingerprintLength; length++ {
		seen := make(map[uint64]struct{}, len(fps))
		distinct := true
		for _, fp := range fps {
			masked := truncate(fp, length, prefix)
			if _, dup := seen[masked]; dup {
				distinct = false
				break
			}
			seen[masked] = struct{}{}
		}
		if distinct {
			return length
		}
	}
	return MaxFingerprintLength + 1
}

// Truncate returns the length-bit prefix or suffix of fp.
func Truncate(fp uint64, length int, prefix bool) uint64 {
	return truncate(fp, length, prefix)
}

func truncate(fp uint64, length int, prefix bool) uint64 {
	if length == 0 {
		return 0
	}
	if length >= 64 {
		return fp
	}
	if prefix {
		return fp >> uint(64-length)
	}
	return fp & ((uint64(1) << uint(length)) - 1)
}

// meetsScanRate estimates the average unnecessary-scan rate a fingerprint
// of the given length would produce for bucket b's resident values and
// reports whether it is at or under the target.
//
// For a resident value v with a false collision (probability 2^-length),
// the lookup scans every stripe v's presence bitmap has set, so the wasted
// work is proportional to ones(v)/S. Averaged over
// residents and scaled by how full the bucket is (an empty slot can never
// produce a false collision to begin with) plus a factor of two to account
// for both candidate buckets a lookup probes, this reduces to the
// actual_scan_rate formula of spec section 4.5.
func meetsScanRate(b *Bucket, length int, target float64, stats StripeStats, density float64) bool {
	if target <= 0 || stats.NumStripes == 0 {
		return length >= MaxFingerprintLength
	}
	var sum float64
	residents := 0
	for _, s := range b.Slots {
		if !s.Occupied {
			continue
		}
		residents++
		ones := stats.Ones[s.Value]
		sum += float64(ones) / float64(stats.NumStripes)
	}
	if residents == 0 {
		return true
	}
	avgSelectivity := sum / float64(residents)
	fpRate := math.Ldexp(1, -length) // 2^-length, exact up to length 64
	actual := fpRate * avgSelectivity * density * 2
	return actual <= target
}

// ComputeFingerprint returns the length-bit fingerprint of v under plan.
func ComputeFingerprint(v int32, plan Plan) uint64 {
	return truncate(fpOf(v), plan.Length, plan.UsePrefix)
}
