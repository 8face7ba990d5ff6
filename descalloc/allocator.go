// Copyright (c) 2024, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package descalloc implements a growing pool-of-pools descriptor set
// allocator (spec.md §4.7): a fixed ratio of common descriptor types per
// pool, growing the pool list on exhaustion and recycling all of them in
// one call at the start of a frame.
package descalloc

import (
	vk "github.com/goki/vulkan"
)

// PoolSizeRatio is one entry of a pool's sizing: descType descriptors
// make up ratio * maxSets of the pool's total descriptor budget.
type PoolSizeRatio struct {
	Type  vk.DescriptorType
	Ratio float32
}

// defaultRatios covers the common mix of a typical frame: sampled
// images, uniform buffers, storage buffers, storage images.
var defaultRatios = []PoolSizeRatio{
	{vk.DescriptorTypeCombinedImageSampler, 4},
	{vk.DescriptorTypeUniformBuffer, 2},
	{vk.DescriptorTypeStorageBuffer, 2},
	{vk.DescriptorTypeStorageImage, 1},
	{vk.DescriptorTypeSampledImage, 1},
	{vk.DescriptorTypeSampler, 1},
}

// Allocator is a "pool of pools": Allocate tries the head of a ready
// list, falling back to the next ready pool and eventually creating a
// new, larger one, on exhaustion or fragmentation.
type Allocator struct {
	device      vk.Device
	ratios      []PoolSizeRatio
	setsPerPool uint32

	ready []vk.DescriptorPool
	full  []vk.DescriptorPool
}

// New creates an Allocator with an initial pool sized for setsPerPool
// descriptor sets, using ratios to apportion descriptor types (nil
// ratios means defaultRatios).
func New(device vk.Device, setsPerPool uint32, ratios []PoolSizeRatio) (*Allocator, error) {
	if ratios == nil {
		ratios = defaultRatios
	}
	a := &Allocator{device: device, ratios: ratios, setsPerPool: setsPerPool}
	pool, err := a.createPool(setsPerPool)
	if err != nil {
		return nil, err
	}
	a.ready = append(a.ready, pool)
	return a, nil
}

func (a *Allocator) createPool(setsPerPool uint32) (vk.DescriptorPool, error) {
	sizes := make([]vk.DescriptorPoolSize, len(a.ratios))
	for i, r := range a.ratios {
		sizes[i] = vk.DescriptorPoolSize{
			Type:            r.Type,
			DescriptorCount: uint32(r.Ratio * float32(setsPerPool)),
		}
	}
	var pool vk.DescriptorPool
	ret := vk.CreateDescriptorPool(a.device, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       setsPerPool,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}, nil, &pool)
	if ret != vk.Success {
		return vk.NullDescriptorPool, errf("CreateDescriptorPool", ret)
	}
	return pool, nil
}

// grabPool pops a ready pool, creating a fresh (bigger) one if none is
// ready.
func (a *Allocator) grabPool() (vk.DescriptorPool, error) {
	if len(a.ready) > 0 {
		n := len(a.ready) - 1
		p := a.ready[n]
		a.ready = a.ready[:n]
		return p, nil
	}
	a.setsPerPool = growPoolSize(a.setsPerPool)
	return a.createPool(a.setsPerPool)
}

// growPoolSize scales the next pool's capacity up, capped, so sustained
// per-frame growth converges quickly instead of creating many
// same-sized pools.
func growPoolSize(cur uint32) uint32 {
	next := cur * 3 / 2
	if next < cur+1 {
		next = cur + 1
	}
	if next > 4096 {
		next = 4096
	}
	return next
}

// Allocate allocates one descriptor set with layout dsl. On
// OUT_OF_POOL_MEMORY or FRAGMENTED_POOL, the exhausted pool moves to the
// full list and a fresh pool is tried; on a second failure, Allocate
// gives up and returns the error.
func (a *Allocator) Allocate(dsl vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	pool, err := a.grabPool()
	if err != nil {
		return vk.NullDescriptorSet, err
	}

	set, ret := a.tryAllocate(pool, dsl)
	if ret == vk.Success {
		a.ready = append(a.ready, pool)
		return set, nil
	}

	if !retryable(ret) {
		a.ready = append(a.ready, pool)
		return vk.NullDescriptorSet, errf("AllocateDescriptorSets", ret)
	}

	a.full = append(a.full, pool)
	pool, err = a.grabPool()
	if err != nil {
		return vk.NullDescriptorSet, err
	}
	set, ret = a.tryAllocate(pool, dsl)
	if ret != vk.Success {
		a.full = append(a.full, pool)
		return vk.NullDescriptorSet, errf("AllocateDescriptorSets", ret)
	}
	a.ready = append(a.ready, pool)
	return set, nil
}

func (a *Allocator) tryAllocate(pool vk.DescriptorPool, dsl vk.DescriptorSetLayout) (vk.DescriptorSet, vk.Result) {
	layouts := []vk.DescriptorSetLayout{dsl}
	sets := make([]vk.DescriptorSet, 1)
	ret := vk.AllocateDescriptorSets(a.device, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        layouts,
	}, sets)
	if ret != vk.Success {
		return vk.NullDescriptorSet, ret
	}
	return sets[0], vk.Success
}

func retryable(ret vk.Result) bool {
	return ret == vk.ErrorOutOfPoolMemory || ret == vk.ErrorFragmentedPool
}

// ResetPools recycles every pool — ready and full — without destroying
// them, so the next frame's allocations reuse the same heap allocations
// (spec.md §4.7).
func (a *Allocator) ResetPools() {
	for _, p := range a.ready {
		vk.ResetDescriptorPool(a.device, p, 0)
	}
	for _, p := range a.full {
		vk.ResetDescriptorPool(a.device, p, 0)
		a.ready = append(a.ready, p)
	}
	a.full = a.full[:0]
}

// Destroy destroys every pool owned by the allocator.
func (a *Allocator) Destroy() {
	for _, p := range a.ready {
		vk.DestroyDescriptorPool(a.device, p, nil)
	}
	for _, p := range a.full {
		vk.DestroyDescriptorPool(a.device, p, nil)
	}
	a.ready = nil
	a.full = nil
}

type poolError struct {
	op  string
	ret vk.Result
}

func (e *poolError) Error() string {
	return "descalloc: " + e.op + " failed"
}

func errf(op string, ret vk.Result) error {
	return &poolError{op: op, ret: ret}
}
