// Copyright (c) 2024, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

import (
	"unsafe"

	vk "github.com/goki/vulkan"
)

// MemoryUsage is a usage hint passed to an Allocator, standing in for the
// "auto memory usage" hints of a VMA-style heap manager (spec.md §6).
type MemoryUsage int32

const (
	// UsageAuto leaves the memory choice to the allocator. DeviceAllocator
	// treats it like UsageDeviceOnly unless host mapping is requested.
	UsageAuto MemoryUsage = iota

	// UsageHostToDevice favors host-visible, host-coherent memory, for
	// staging buffers the CPU writes every frame.
	UsageHostToDevice

	// UsageDeviceOnly favors device-local memory with no host visibility.
	UsageDeviceOnly
)

// Allocation is an opaque handle returned by an Allocator, passed back to
// Destroy. Its zero value denotes "no allocation."
type Allocation struct {
	Memory vk.DeviceMemory
	Offset vk.DeviceSize
	Size   vk.DeviceSize
}

// Allocator is the auto-usage GPU heap manager external collaborator
// described in spec.md §6: buffer/image creation with optional host
// mapping. The render graph's transient allocator and vgpu's own
// Image/Buffer builders consume it; they never touch
// vk.AllocateMemory directly.
type Allocator interface {
	// CreateBuffer creates a vk.Buffer and backs it with memory chosen
	// according to usage. If hostMapped is true the returned pointer is
	// a persistent mapping into the allocation (valid until Destroy).
	CreateBuffer(info vk.BufferCreateInfo, usage MemoryUsage, hostMapped bool) (vk.Buffer, Allocation, unsafe.Pointer, error)

	// CreateImage creates a vk.Image and backs it with memory chosen
	// according to usage.
	CreateImage(info vk.ImageCreateInfo, usage MemoryUsage) (vk.Image, Allocation, error)

	// Destroy frees an allocation returned by CreateBuffer/CreateImage.
	// It does not destroy the vk.Buffer/vk.Image handle itself.
	Destroy(a Allocation)
}

// DeviceAllocator is a direct, non-suballocating Allocator implementation:
// one vk.DeviceMemory object per resource, chosen via
// vk.GetPhysicalDeviceMemoryProperties. It stands in for a full VMA
// binding (out of scope per spec.md §1) while preserving the same
// create/destroy surface, so swapping in a real VMA wrapper later is a
// drop-in replacement.
type DeviceAllocator struct {
	GPU    *GPU
	Device vk.Device
}

// NewDeviceAllocator returns an Allocator bound to dev on gp.
func NewDeviceAllocator(gp *GPU, dev vk.Device) *DeviceAllocator {
	return &DeviceAllocator{GPU: gp, Device: dev}
}

func (da *DeviceAllocator) CreateBuffer(info vk.BufferCreateInfo, usage MemoryUsage, hostMapped bool) (vk.Buffer, Allocation, unsafe.Pointer, error) {
	info.SType = vk.StructureTypeBufferCreateInfo
	var buf vk.Buffer
	ret := vk.CreateBuffer(da.Device, &info, nil, &buf)
	if err := NewError("CreateBuffer", ret); err != nil {
		return vk.NullBuffer, Allocation{}, nil, err
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(da.Device, buf, &reqs)
	reqs.Deref()

	props := memoryPropertiesFor(usage, hostMapped)
	typeIdx, ok := findMemoryType(da.GPU.MemoryProperties, vk.MemoryPropertyFlagBits(reqs.MemoryTypeBits), props)
	if !ok {
		vk.DestroyBuffer(da.Device, buf, nil)
		return vk.NullBuffer, Allocation{}, nil, NewLogicalError("CreateBuffer", "no suitable memory type")
	}

	var mem vk.DeviceMemory
	ret = vk.AllocateMemory(da.Device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: typeIdx,
	}, nil, &mem)
	if err := NewError("AllocateMemory", ret); err != nil {
		vk.DestroyBuffer(da.Device, buf, nil)
		return vk.NullBuffer, Allocation{}, nil, err
	}
	vk.BindBufferMemory(da.Device, buf, mem, 0)

	var ptr unsafe.Pointer
	if hostMapped {
		ret = vk.MapMemory(da.Device, mem, 0, reqs.Size, 0, &ptr)
		if err := NewError("MapMemory", ret); err != nil {
			vk.FreeMemory(da.Device, mem, nil)
			vk.DestroyBuffer(da.Device, buf, nil)
			return vk.NullBuffer, Allocation{}, nil, err
		}
	}

	return buf, Allocation{Memory: mem, Offset: 0, Size: reqs.Size}, ptr, nil
}

func (da *DeviceAllocator) CreateImage(info vk.ImageCreateInfo, usage MemoryUsage) (vk.Image, Allocation, error) {
	info.SType = vk.StructureTypeImageCreateInfo
	var img vk.Image
	ret := vk.CreateImage(da.Device, &info, nil, &img)
	if err := NewError("CreateImage", ret); err != nil {
		return vk.NullImage, Allocation{}, err
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(da.Device, img, &reqs)
	reqs.Deref()

	props := memoryPropertiesFor(usage, false)
	typeIdx, ok := findMemoryType(da.GPU.MemoryProperties, vk.MemoryPropertyFlagBits(reqs.MemoryTypeBits), props)
	if !ok {
		vk.DestroyImage(da.Device, img, nil)
		return vk.NullImage, Allocation{}, NewLogicalError("CreateImage", "no suitable memory type")
	}

	var mem vk.DeviceMemory
	ret = vk.AllocateMemory(da.Device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: typeIdx,
	}, nil, &mem)
	if err := NewError("AllocateMemory", ret); err != nil {
		vk.DestroyImage(da.Device, img, nil)
		return vk.NullImage, Allocation{}, err
	}
	vk.BindImageMemory(da.Device, img, mem, 0)

	return img, Allocation{Memory: mem, Offset: 0, Size: reqs.Size}, nil
}

func (da *DeviceAllocator) Destroy(a Allocation) {
	if a.Memory == vk.NullDeviceMemory {
		return
	}
	vk.FreeMemory(da.Device, a.Memory, nil)
}

func memoryPropertiesFor(usage MemoryUsage, hostMapped bool) vk.MemoryPropertyFlagBits {
	if hostMapped || usage == UsageHostToDevice {
		return vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit
	}
	return vk.MemoryPropertyDeviceLocalBit
}

func findMemoryType(props vk.PhysicalDeviceMemoryProperties, typeBits vk.MemoryPropertyFlagBits, want vk.MemoryPropertyFlagBits) (uint32, bool) {
	for i := uint32(0); i < vk.MaxMemoryTypes; i++ {
		if typeBits&(vk.MemoryPropertyFlagBits(1)<<i) == 0 {
			continue
		}
		props.MemoryTypes[i].Deref()
		if props.MemoryTypes[i].PropertyFlags&vk.MemoryPropertyFlags(want) == vk.MemoryPropertyFlags(want) {
			return i, true
		}
	}
	// Fallback: accept the first type whose bit is set regardless of properties.
	for i := uint32(0); i < vk.MaxMemoryTypes; i++ {
		if typeBits&(vk.MemoryPropertyFlagBits(1)<<i) != 0 {
			return i, true
		}
	}
	return 0, false
}
