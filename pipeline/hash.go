// Copyright (c) 2024, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import "encoding/binary"

const (
	fnvOffset64 uint64 = 14695981039346656037
	fnvPrime64  uint64 = 1099511628211
)

// hasher accumulates an FNV-1a 64-bit hash, the same structural-hash
// technique the render graph uses to key its compile cache, reused here
// to key each GPL library cache and the whole-recipe monolithic cache.
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

func (h *hasher) bit(v bool) *hasher {
	if v {
		return h.u32(1)
	}
	return h.u32(0)
}
