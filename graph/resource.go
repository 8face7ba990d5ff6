// Copyright (c) 2024, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package graph

import (
	vk "github.com/goki/vulkan"

	"github.com/goki/vgraph" // package vgpu
)

// Handle is an opaque index into a Graph's resource table. It is valid
// only within the graph that produced it, and is invalidated by Reset.
type Handle int32

// Invalid is the zero-value-safe invalid handle.
const Invalid Handle = -1

// ResourceTag distinguishes resources owned by the application (External)
// from resources owned by the graph for the duration of one frame
// (Transient).
type ResourceTag uint8

const (
	External ResourceTag = iota
	Transient
)

// ResourceKind distinguishes images from buffers.
type ResourceKind uint8

const (
	KindImage ResourceKind = iota
	KindBuffer
)

// AllRemainingMips/AllRemainingLayers are sentinels a caller may use in a
// SubresourceRange to mean "every mip/layer from Base to the end of the
// resource." resolveSubresources (compile phase 1) replaces these with
// concrete counts before hashing.
const (
	AllRemainingMips   uint32 = ^uint32(0)
	AllRemainingLayers uint32 = ^uint32(0)
)

// SubresourceRange names a contiguous rectangle of (mip, layer) space.
type SubresourceRange struct {
	BaseMip    uint32
	MipCount   uint32
	BaseLayer  uint32
	LayerCount uint32
}

// resolved returns the range with sentinel counts replaced by the
// concrete remaining counts for an image with the given totals.
func (r SubresourceRange) resolved(totalMips, totalLayers uint32) SubresourceRange {
	out := r
	if out.MipCount == AllRemainingMips {
		out.MipCount = totalMips - out.BaseMip
	}
	if out.LayerCount == AllRemainingLayers {
		out.LayerCount = totalLayers - out.BaseLayer
	}
	return out
}

// FullRange is a convenience SubresourceRange covering every subresource.
func FullRange() SubresourceRange {
	return SubresourceRange{MipCount: AllRemainingMips, LayerCount: AllRemainingLayers}
}

// overlaps reports whether a and b share any (mip, layer) cell.
func (r SubresourceRange) overlaps(o SubresourceRange) bool {
	mipOverlap := r.BaseMip < o.BaseMip+o.MipCount && o.BaseMip < r.BaseMip+r.MipCount
	layerOverlap := r.BaseLayer < o.BaseLayer+o.LayerCount && o.BaseLayer < r.BaseLayer+r.LayerCount
	return mipOverlap && layerOverlap
}

// clip returns the rectangle intersection of r and o. Callers must only
// call this when overlaps(o) is true.
func (r SubresourceRange) clip(o SubresourceRange) SubresourceRange {
	baseMip := max32(r.BaseMip, o.BaseMip)
	endMip := min32(r.BaseMip+r.MipCount, o.BaseMip+o.MipCount)
	baseLayer := max32(r.BaseLayer, o.BaseLayer)
	endLayer := min32(r.BaseLayer+r.LayerCount, o.BaseLayer+o.LayerCount)
	return SubresourceRange{
		BaseMip: baseMip, MipCount: endMip - baseMip,
		BaseLayer: baseLayer, LayerCount: endLayer - baseLayer,
	}
}

func max32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

func min32(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

// ImageDesc declares a transient image's shape. Usage starts at whatever
// the caller supplies (often 0) and is OR-ed with usage implied by every
// access declared against it during compile phase 2.
type ImageDesc struct {
	Width, Height uint32
	Format        vk.Format
	Usage         vk.ImageUsageFlagBits
	MipLevels     uint32
	ArrayLayers   uint32
	SampleCount   vk.SampleCountFlagBits
	Aspect        vk.ImageAspectFlagBits
}

func (d *ImageDesc) defaults() {
	if d.MipLevels == 0 {
		d.MipLevels = 1
	}
	if d.ArrayLayers == 0 {
		d.ArrayLayers = 1
	}
	if d.SampleCount == 0 {
		d.SampleCount = vk.SampleCount1Bit
	}
	if d.Aspect == 0 {
		d.Aspect = vk.ImageAspectColorBit
	}
}

// matches reports whether two descriptors describe byte-identical image
// resources, used by the transient pool's slow-path reuse scan.
func (d ImageDesc) matches(o ImageDesc) bool {
	return d.Width == o.Width && d.Height == o.Height && d.Format == o.Format &&
		d.Usage == o.Usage && d.MipLevels == o.MipLevels && d.ArrayLayers == o.ArrayLayers &&
		d.SampleCount == o.SampleCount && d.Aspect == o.Aspect
}

// BufferDesc declares a transient buffer's shape.
type BufferDesc struct {
	Size  int
	Usage vk.BufferUsageFlagBits
}

func (d BufferDesc) matches(o BufferDesc) bool {
	return d.Size == o.Size && d.Usage == o.Usage
}

// imageHandle is the concrete GPU-side representation of an image
// resource: the image plus a default full-resource view.
type imageHandle struct {
	Image vk.Image
	View  vk.ImageView
	Alloc interface{} // vgpu.Allocation, stored untyped
}

// ResourceEntry is one row of the graph's resource table (spec.md §3).
type ResourceEntry struct {
	Tag  ResourceTag
	Kind ResourceKind
	Name string

	// Image fields (Kind == KindImage).
	Image ImageDesc

	// Buffer fields (Kind == KindBuffer).
	Buffer BufferDesc

	// Concrete GPU handle, set for both External and Transient resources.
	VkImage  vk.Image
	VkView   vk.ImageView
	VkBuffer vk.Buffer

	// Alloc is the device-memory allocation backing VkImage/VkBuffer for a
	// Transient resource (zero value for External, which the caller owns).
	// It follows the handle through recycleTransients into the pool so the
	// pool's eventual destroyImage/destroyBuffer call frees real memory
	// instead of a zero-value Allocation.
	Alloc vgpu.Allocation

	// InitialState is the synchronization context the resource carries
	// into the graph: for External resources this is supplied by the
	// caller (e.g. a swapchain image's last known layout); for Transient
	// resources it is always the "just allocated" state.
	InitialState ResourceState

	// FirstPass/LastPass are topological positions, computed during
	// compile phase 6 and used to drive transient lifetime (pool
	// recycling) and render-target storeOp selection.
	FirstPass int
	LastPass  int
}

// ResourceState is the synchronization state of a resource, or of one
// subresource slice of an image (spec.md §3).
type ResourceState struct {
	LastWriteStage  vk.PipelineStageFlagBits2
	LastWriteAccess vk.AccessFlagBits2

	// ReadStagesSinceWrite/ReadAccessSinceWrite are the union of every
	// reader's stage/access mask since LastWriteStage's write. A new
	// reader whose stage is already present in ReadStagesSinceWrite needs
	// only an execution dependency (srcAccess=0), not a memory one.
	ReadStagesSinceWrite  vk.PipelineStageFlagBits2
	ReadAccessSinceWrite  vk.AccessFlagBits2

	// CurrentLayout is meaningful for images only.
	CurrentLayout vk.ImageLayout

	// QueueFamily is the owning queue family; spec.md's Non-goals mean
	// this is used only to detect (and reject) cross-family transitions,
	// never to perform them.
	QueueFamily uint32
}

// AccessType classifies how a pass touches a resource.
type AccessType uint8

const (
	Read AccessType = iota
	Write
	ReadWrite
)

// AccessDecl is one resource touch declared by a pass (spec.md §3).
type AccessDecl struct {
	Handle  Handle
	Access  AccessType
	State   ResourceState
	Range   SubresourceRange // meaningful for images only
}
