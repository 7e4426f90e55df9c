// Copyright 2024 The Cuckoo Index Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Package cuckoo implements the cuckoo hash placement engine (spec section
// 4.4): assignment of a distinct value set to fixed-capacity buckets via two
// seeded hashes, with kicking (optionally skewed toward evicting
// secondary-bucket residents) to resolve collisions.
package cuckoo

import (
	"math"

	"github.com/cockroachdb/errors"
	"golang.org/x/exp/rand"

	"github.com/cuckooidx/cuckooindex/internal/hashkey"
)

// Algorithm selects the kicking strategy.
type Algorithm int

const (
	// Kicking evicts a uniformly random occupant of the chosen bucket.
	Kicking Algorithm = iota
	// SkewedKicking biases eviction toward occupants currently resident in
	// their secondary bucket, raising the eventual primary-placement rate.
	SkewedKicking
)

// String implements fmt.Stringer.
func (a Algorithm) String() string {
	switch a {
	case Kicking:
		return "KICKING"
	case SkewedKicking:
		return "SKEWED_KICKING"
	default:
		return "UNKNOWN"
	}
}

// MaxKicks bounds the number of evictions attempted for a single insertion
// before Place grows the bucket count and retries; BuildExhaustion is
// reported only once maxGrowthRetries is also used up.
const MaxKicks = 50000

// maxGrowthRetries bounds how many times the builder grows B and restarts
// placement from scratch before giving up entirely. The reference leaves
// this implementation-defined (spec section 4.4/4.8); we pick a generous
// cap so that pathological inputs fail fast rather than looping forever.
const maxGrowthRetries = 64

// placementSeed is the fixed PRNG seed spec section 4.4 requires for
// deterministic, reproducible placements.
const placementSeed = 42

// defaultMaxLoadFactor returns the reference max load factor for a given
// slots-per-bucket count.
func defaultMaxLoadFactor(k int) float64 {
	switch k {
	case 1:
		return 0.49
	case 2:
		return 0.84
	case 4:
		return 0.95
	case 8:
		return 0.98
	default:
		panic(errors.Newf("cuckoo: unsupported slots_per_bucket %d", k))
	}
}

// defaultKickSkewFactor returns the reference kick_skew_factor for a given
// slots-per-bucket count.
func defaultKickSkewFactor(k int) float64 {
	switch k {
	case 1:
		return 1.1
	case 2:
		return 16
	case 4:
		return 128
	case 8:
		return 1024
	default:
		panic(errors.Newf("cuckoo: unsupported slots_per_bucket %d", k))
	}
}

// Config configures the placement engine.
type Config struct {
	SlotsPerBucket int // K, one of {1, 2, 4, 8}
	Algorithm      Algorithm
	// MaxLoadFactor, if zero, defaults per SlotsPerBucket.
	MaxLoadFactor float64
	// KickSkewFactor, if zero, defaults per SlotsPerBucket. Only used by
	// SkewedKicking.
	KickSkewFactor float64
}

func (c Config) loadFactor() float64 {
	if c.MaxLoadFactor != 0 {
		return c.MaxLoadFactor
	}
	return defaultMaxLoadFactor(c.SlotsPerBucket)
}

func (c Config) skewFactor() float64 {
	if c.KickSkewFactor != 0 {
		return c.KickSkewFactor
	}
	return defaultKickSkewFactor(c.SlotsPerBucket)
}

// Slot holds one bucket slot's placement-time occupant, if any.
type Slot struct {
	Occupied bool
	Value    int32
}

// Bucket holds up to K slots plus the build-time-only list of values whose
// primary bucket is this one but which ended up placed elsewhere.
type Bucket struct {
	Slots  []Slot
	Kicked []int32
}

// occupiedCount returns the number of occupied slots in the bucket.
func (b *Bucket) occupiedCount() int {
	n := 0
	for _, s := range b.Slots {
		if s.Occupied {
			n++
		}
	}
	return n
}

// Placement is the immutable result of a successful Place call.
type Placement struct {
	K       int
	Buckets []Bucket
	slotIdx map[int32]int // value -> slot_id (bucket*K + i)
}

// NumBuckets returns B.
func (p *Placement) NumBuckets() int { return len(p.Buckets) }

// NumSlots returns B*K.
func (p *Placement) NumSlots() int { return len(p.Buckets) * p.K }

// SlotOf returns the slot id a value was ultimately placed into.
func (p *Placement) SlotOf(v int32) (slotID int, ok bool) {
	slotID, ok = p.slotIdx[v]
	return slotID, ok
}

// Stats records build-time counters, following the design note that build
// statistics should flow through an explicit sink rather than process-wide
// state.
type Stats struct {
	Kicks           int
	Retries         int
	BucketsAtRetry  []int
	FinalNumBuckets int
}

// ErrBuildExhaustion is returned (wrapped) when placement fails to converge
// even after the growth-retry cap.
var ErrBuildExhaustion = errors.New("cuckoo: placement exhausted retry budget")

// InitialBucketCount computes B = ceil(|V| / (alpha * K)) for the given
// number of distinct values.
func InitialBucketCount(numValues int, cfg Config) int {
	alpha := cfg.loadFactor()
	k := float64(cfg.SlotsPerBucket)
	b := math.Ceil(float64(numValues) / (alpha * k))
	return max(1, int(b))
}

// Place assigns every value in values (assumed distinct) to a bucket slot,
// growing the bucket count and retrying on kick exhaustion, per spec
// sections 4.4 and 4.8. stats may be nil.
func Place(values []int32, cfg Config, stats *Stats) (*Placement, error) {
	if cfg.SlotsPerBucket != 1 && cfg.SlotsPerBucket != 2 && cfg.SlotsPerBucket != 4 && cfg.SlotsPerBucket != 8 {
		return nil, errors.Newf("cuckoo: invalid slots_per_bucket %d", cfg.SlotsPerBucket)
	}
	b := InitialBucketCount(len(values), cfg)
	rng := rand.New(rand.NewSource(placementSeed))

	for attempt := 0; attempt <= maxGrowthRetries; attempt++ {
		if stats != nil {
			stats.BucketsAtRetry = append(stats.BucketsAtRetry, b)
		}
		p, kicks, ok := tryPlace(values, b, cfg, rng)
		if stats != nil {
			stats.Kicks += kicks
		}
		if ok {
			if stats != nil {
				stats.Retries = attempt
				stats.FinalNumBuckets = b
			}
			return p, nil
		}
		b = max(int(math.Ceil(float64(b)*1.01)), b+1)
	}
	return nil, errors.Wrapf(ErrBuildExhaustion, "gave up after %d growth retries", maxGrowthRetries)
}

// tryPlace attempts one full placement of values into b buckets, returning
// (placement, totalKicks, true) on success or (nil, totalKicks, false) if
// any single insertion exceeded MaxKicks.
func tryPlace(values []int32, b int, cfg Config, rng *rand.Rand) (*Placement, int, bool) {
	k := cfg.SlotsPerBucket
	p := &Placement{
		K:       k,
		Buckets: make([]Bucket, b),
		slotIdx: make(map[int32]int, len(values)),
	}
	for i := range p.Buckets {
		p.Buckets[i].Slots = make([]Slot, k)
	}
	// isPrimary[bucket][slot] tracks whether the resident's own primary
	// bucket (H1) equals its current bucket, needed by skewed kicking to
	// compute n_sec/n_prim.
	isPrimary := make([][]bool, b)
	for i := range isPrimary {
		isPrimary[i] = make([]bool, k)
	}

	totalKicks := 0
	bucketOf := func(v int32) uint64 { return hashkey.Seeded(hashkey.SeedPrimary, v) % uint64(b) }
	bucket2Of := func(v int32) uint64 { return hashkey.Seeded(hashkey.SeedSecondary, v) % uint64(b) }

	place := func(bucket uint64, slot int, v int32, primary bool) {
		p.Buckets[bucket].Slots[slot] = Slot{Occupied: true, Value: v}
		isPrimary[bucket][slot] = primary
		p.slotIdx[v] = int(bucket)*k + slot
	}

	for _, v := range values {
		b1 := bucketOf(v)
		b2 := bucket2Of(v)
		if idx, ok := freeSlot(&p.Buckets[b1]); ok {
			place(b1, idx, v, true)
			continue
		}
		if idx, ok := freeSlot(&p.Buckets[b2]); ok {
			place(b2, idx, v, false)
			continue
		}
		kicks, ok := kickInsert(p, isPrimary, v, b1, b2, cfg, rng, place, bucketOf, bucket2Of)
		totalKicks += kicks
		if !ok {
			return nil, totalKicks, false
		}
	}

	// Record kicked values: any resident whose current bucket isn't its own
	// primary bucket is appended to that primary bucket's Kicked list.
	for bucket := range p.Buckets {
		for slot, s := range p.Buckets[bucket].Slots {
			if s.Occupied && !isPrimary[bucket][slot] {
				primary := bucketOf(s.Value)
				p.Buckets[primary].Kicked = append(p.Buckets[primary].Kicked, s.Value)
			}
		}
	}
	return p, totalKicks, true
}

func freeSlot(b *Bucket) (int, bool) {
	for i, s := range b.Slots {
		if !s.Occupied {
			return i, true
		}
	}
	return 0, false
}

type placeFn func(bucket uint64, slot int, v int32, primary bool)

// kickInsert runs the kicking loop for a single value that found both of
// its direct buckets full, following spec section 4.4.
func kickInsert(
	p *Placement,
	isPrimary [][]bool,
	v int32,
	b1, b2 uint64,
	cfg Config,
	rng *rand.Rand,
	place placeFn,
	bucketOf, bucket2Of func(int32) uint64,
) (kicks int, ok bool) {
	cur := v
	curB1, curB2 := b1, b2
	for kicks = 0; kicks < MaxKicks; kicks++ {
		if idx, ok := freeSlot(&p.Buckets[curB1]); ok {
			place(curB1, idx, cur, true)
			return kicks, true
		}
		if idx, ok := freeSlot(&p.Buckets[curB2]); ok {
			place(curB2, idx, cur, false)
			return kicks, true
		}
		bucket, slot := chooseVictim(p, isPrimary, curB1, curB2, cfg, rng)
		victim := p.Buckets[bucket].Slots[slot].Value
		place(bucket, slot, cur, bucket == curB1)
		cur = victim
		curB1 = bucketOf(cur)
		curB2 = bucket2Of(cur)
	}
	return kicks, false
}

// chooseVictim selects which bucket/slot to evict from, choosing between
// b1 and b2 (both full) per the configured algorithm.
func chooseVictim(
	p *Placement, isPrimary [][]bool, b1, b2 uint64, cfg Config, rng *rand.Rand,
) (bucket uint64, slot int) {
	k := p.K
	if cfg.Algorithm == Kicking {
		if rng.Intn(2) == 0 {
			return b1, rng.Intn(k)
		}
		return b2, rng.Intn(k)
	}
	return chooseVictimSkewed(isPrimary, b1, b2, k, cfg.skewFactor(), rng)
}

type candidate struct {
	bucket    uint64
	slot      int
	isPrimary bool
}

// chooseVictimSkewed implements the skewed-kicking victim selection of spec
// section 4.4.
func chooseVictimSkewed(
	isPrimary [][]bool, b1, b2 uint64, k int, skew float64, rng *rand.Rand,
) (uint64, int) {
	cands := make([]candidate, 0, 2*k)
	for slot := 0; slot < k; slot++ {
		cands = append(cands, candidate{bucket: b1, slot: slot, isPrimary: isPrimary[b1][slot]})
	}
	for slot := 0; slot < k; slot++ {
		cands = append(cands, candidate{bucket: b2, slot: slot, isPrimary: isPrimary[b2][slot]})
	}
	var secondary, primary []candidate
	for _, c := range cands {
		if c.isPrimary {
			primary = append(primary, c)
		} else {
			secondary = append(secondary, c)
		}
	}
	nSec, nPrim := len(secondary), len(primary)
	if nSec == 0 || nPrim == 0 {
		c := cands[rng.Intn(len(cands))]
		return c.bucket, c.slot
	}
	w := skew * float64(nSec) / float64(nPrim)
	pSec := w / (w + 1)
	if rng.Float64() < pSec {
		c := secondary[rng.Intn(len(secondary))]
		return c.bucket, c.slot
	}
	c := primary[rng.Intn(len(primary))]
	return c.bucket, c.slot
}
