// Copyright (c) 2024, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package graph

import (
	"encoding/binary"
)

const (
	fnvOffset64 uint64 = 14695981039346656037
	fnvPrime64  uint64 = 1099511628211
)

// hasher accumulates an FNV-1a 64-bit hash.
type hasher struct {
	h uint64
}

func newHasher() *hasher { return &hasher{h: fnvOffset64} }

func (h *hasher) bytes(b []byte) *hasher {
	for _, c := range b {
		h.h ^= uint64(c)
		h.h *= fnvPrime64
	}
	return h
}

func (h *hasher) u64(v uint64) *hasher {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return h.bytes(b[:])
}

func (h *hasher) u32(v uint32) *hasher { return h.u64(uint64(v)) }

func (h *hasher) str(s string) *hasher {
	h.bytes([]byte(s))
	return h.u32(0) // separator, so "ab","c" != "a","bc"
}

// structuralHash computes the graph structural hash described in
// spec.md §3: derived from pass count, resource count, each pass's type
// and access list, render target descriptors, pipeline and pipeline
// layout handles, and bind-map entries (XOR-combined per pass so
// map-like iteration order of the bind-map does not matter). The
// reflection itself is not hashed; only the accesses it inferred, which
// are part of the access list, are.
func (g *Graph) structuralHash() uint64 {
	h := newHasher()
	h.u64(uint64(len(g.passes)))
	h.u64(uint64(len(g.resources)))

	for _, p := range g.passes {
		h.str(p.Name)
		h.u32(uint32(p.Type))
		h.u64(uint64(len(p.Access)))
		for _, a := range p.Access {
			h.u32(uint32(a.Handle))
			h.u32(uint32(a.Access))
			h.u64(uint64(a.State.CurrentLayout))
			h.u32(a.Range.BaseMip)
			h.u32(a.Range.MipCount)
			h.u32(a.Range.BaseLayer)
			h.u32(a.Range.LayerCount)
		}
		for i, c := range p.Colors {
			h.u32(uint32(i))
			h.u32(uint32(c.Handle))
			h.u32(uint32(c.LoadOp))
		}
		if p.Depth.set {
			h.u32(uint32(p.Depth.Handle))
			h.u32(uint32(p.Depth.LoadOp))
			if p.Depth.DepthWrite {
				h.u32(1)
			} else {
				h.u32(0)
			}
		}
		// Pipeline/layout identity: handle values stand in for "this
		// pass's shader binding didn't change."
		h.u64(uint64(p.Pipeline))
		h.u64(uint64(p.PipelineLayout))

		// Bind-map entries combined order-independently (map semantics),
		// by XOR-ing each entry's own hash rather than feeding them in
		// sequence.
		var bindXor uint64
		for _, b := range p.BindMap {
			eh := newHasher()
			eh.str(b.Name)
			eh.u32(uint32(b.Handle))
			eh.u64(uint64(b.Sampler))
			bindXor ^= eh.h
		}
		h.u64(bindXor)
	}
	return h.h
}
