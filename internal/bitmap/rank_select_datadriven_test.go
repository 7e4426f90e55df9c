// Copyright 2024 The Cuckoo Index Authors. All rights reserved. Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package bitmap

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
)

// TestRankSelectDataDriven exercises Rank/Get/SelectOne/SelectZero against a
// small, hand-verifiable bit string, matching the teacher's convention of
// datadriven scripts for bit-level primitives (see sstable/colblk).
func TestRankSelectDataDriven(t *testing.T) {
	var bm *Bitmap
	datadriven.RunTest(t, "testdata/rank_select", func(t *testing.T, td *datadriven.TestData) string {
		switch td.Cmd {
		case "build":
			bits := strings.TrimSpace(td.Input)
			var b Builder
			for i, r := range bits {
				b.Set(i, r == '1')
			}
			bm = b.Finish(len(bits))
			return fmt.Sprintf("n=%d ones=%d\n", bm.Len(), bm.OnesCount())
		case "rank":
			var i int
			td.ScanArgs(t, "i", &i)
			return fmt.Sprintf("%d\n", bm.Rank(i))
		case "get":
			var i int
			td.ScanArgs(t, "i", &i)
			return fmt.Sprintf("%t\n", bm.Get(i))
		case "select":
			var k int
			td.ScanArgs(t, "k", &k)
			zero := td.HasArg("zero")
			var pos int
			var ok bool
			if zero {
				pos, ok = bm.SelectZero(k)
			} else {
				pos, ok = bm.SelectOne(k)
			}
			return fmt.Sprintf("pos=%d ok=%t\n", pos, ok)
		default:
			t.Fatalf("unknown command %q", td.Cmd)
			return ""
		}
	})
}
