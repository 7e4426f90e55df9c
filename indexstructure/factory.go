// Copyright 2024 The Cuckoo Index Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package indexstructure

import (
	"github.com/cuckooidx/cuckooindex/column"
	"github.com/cuckooidx/cuckooindex/cuckooindex"
)

// var _ documents that *cuckooindex.Index already satisfies Structure
// without an adapter wrapper: its method set matches verbatim.
var _ Structure = (*cuckooindex.Index)(nil)

// Factory builds a Structure over a column, grounded on the reference's
// IndexStructureFactory: a flat configuration record per variant rather
// than an inheritance tree.
type Factory interface {
	Create(col *column.Column) (Structure, error)
	Name() string
}

// CuckooIndexFactory builds CuckooIndex structures with a fixed Config.
type CuckooIndexFactory struct {
	Config cuckooindex.Config
}

// Name implements Factory.
func (f CuckooIndexFactory) Name() string { return "CuckooIndex" }

// Create implements Factory.
func (f CuckooIndexFactory) Create(col *column.Column) (Structure, error) {
	return cuckooindex.Build(col, f.Config)
}

// ZoneMapFactory builds ZoneMap structures.
type ZoneMapFactory struct{}

// Name implements Factory.
func (ZoneMapFactory) Name() string { return "ZoneMap" }

// Create implements Factory.
func (ZoneMapFactory) Create(col *column.Column) (Structure, error) {
	return BuildZoneMap(col), nil
}

// PerStripeBloomFactory builds PerStripeBloom structures with a fixed
// bits-per-key budget.
type PerStripeBloomFactory struct {
	BitsPerKey uint32
}

// Name implements Factory.
func (PerStripeBloomFactory) Name() string { return "PerStripeBloom" }

// Create implements Factory.
func (f PerStripeBloomFactory) Create(col *column.Column) (Structure, error) {
	return BuildPerStripeBloom(col, f.BitsPerKey), nil
}
