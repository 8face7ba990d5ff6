// Copyright (c) 2024, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package graph

import (
	"fmt"
	"os"
	"time"
)

// Stats holds per-phase compile timings (microseconds) and summary
// counts from the most recent Compile (spec.md §6). A phase reads 0 when
// it was skipped by the structural-hash cache-hit fast path.
type Stats struct {
	ResolveUs   float64
	UsageUs     float64
	AdjacencyUs float64
	SortUs      float64
	LifetimeUs  float64
	AllocUs     float64
	StateInitUs float64
	BarriersUs  float64
	RenderUs    float64
	DescUs      float64
	TotalUs     float64

	PassCount          int
	ImageBarrierCount  int
	BufferBarrierCount int

	CacheHit bool
}

func since(t time.Time) float64 {
	return float64(time.Since(t)) / float64(time.Microsecond)
}

// DumpLog writes a per-pass barrier list to stderr with decoded
// stage/access masks, for debugging (spec.md §6).
func (g *Graph) DumpLog() {
	fmt.Fprintf(os.Stderr, "[graph] %d passes, %d image barriers, %d buffer barriers (hash=%#x cache_hit=%v)\n",
		g.stats.PassCount, g.stats.ImageBarrierCount, g.stats.BufferBarrierCount, g.lastGraphHash, g.stats.CacheHit)
	for _, cp := range g.compiled {
		name := g.passes[cp.SourcePass].Name
		fmt.Fprintf(os.Stderr, "  pass %q:\n", name)
		for _, ib := range cp.Barriers.Images {
			fmt.Fprintf(os.Stderr, "    image: %s -> %s | %s(%#x) -> %s(%#x) | layout %s -> %s\n",
				decodeStage(ib.SrcStage), decodeStage(ib.DstStage),
				decodeAccess(ib.SrcAccess), uint64(ib.SrcAccess),
				decodeAccess(ib.DstAccess), uint64(ib.DstAccess),
				decodeLayout(ib.OldLayout), decodeLayout(ib.NewLayout))
		}
		for _, bb := range cp.Barriers.Buffers {
			fmt.Fprintf(os.Stderr, "    buffer: %s -> %s | %s(%#x) -> %s(%#x)\n",
				decodeStage(bb.SrcStage), decodeStage(bb.DstStage),
				decodeAccess(bb.SrcAccess), uint64(bb.SrcAccess),
				decodeAccess(bb.DstAccess), uint64(bb.DstAccess))
		}
	}
}
