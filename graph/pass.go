// Copyright (c) 2024, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package graph

import (
	vk "github.com/goki/vulkan"

	"github.com/goki/vgraph" // package vgpu
)

// PassType classifies the kind of work a pass performs. Scheduling
// treats all pass types uniformly; the type selects the shader stage
// (compute or graphics) that descriptor accesses are attributed to.
type PassType uint8

const (
	Graphics PassType = iota
	Compute
	Transfer
)

// LoadOp mirrors vk.AttachmentLoadOp for render-target declarations.
type LoadOp = vk.AttachmentLoadOp

// ColorTarget is one color attachment declared via Layer 1's
// SetColorTarget.
type ColorTarget struct {
	Handle     Handle
	LoadOp     LoadOp
	ClearValue vk.ClearColorValue
}

// DepthTarget is the (at most one) depth attachment declared via Layer
// 1's SetDepthTarget.
type DepthTarget struct {
	Handle        Handle
	LoadOp        LoadOp
	DepthWrite    bool
	ClearDepth    float32
	ClearStencil  uint32
	set           bool
}

// RecordFn is invoked once per compiled pass during Execute, after its
// barriers (if any) have been emitted.
type RecordFn func(ctx *PassContext, cmd vk.CommandBuffer)

// SetupFn declares a pass's accesses and render targets via builder.
type SetupFn func(builder *PassBuilder)

// bindEntry is one Layer 2 bind-map entry: a reflected binding name
// mapped to a resource handle and optional sampler override.
type bindEntry struct {
	Name    string
	Handle  Handle
	Sampler vk.Sampler // NullSampler means "use the pass default"
}

// PassDecl is one declared pass (spec.md §3), captured by addPass before
// compile.
type PassDecl struct {
	Name   string
	Type   PassType
	Access []AccessDecl

	Colors    []ColorTarget
	Depth     DepthTarget
	HasTarget bool

	Pipeline       vk.Pipeline
	PipelineLayout vk.PipelineLayout
	Reflection     vgpu.Reflection
	DefaultSampler vk.Sampler
	BindMap        []bindEntry
	unmatchedBinds []string

	Record SetupRecordPair
}

// SetupRecordPair holds the record closure declared by addPass (the
// setup closure is run at declaration time and not kept); record is
// stored at declaration time and invoked unchanged at execute time
// regardless of how many times compile() reruns.
type SetupRecordPair struct {
	Record RecordFn
}

// PassBuilder is the mutator handed to a pass's SetupFn. It divides into
// three layers (spec.md §4.1): Layer 0 (explicit access), Layer 1
// (render targets), and Layer 2 (descriptor binding).
type PassBuilder struct {
	g    *Graph
	decl *PassDecl
}

// ---- Layer 0: explicit access ----

// Access is the escape hatch: declare a direct access of handle with the
// given type, desired state, and (for images) subresource range.
func (b *PassBuilder) Access(handle Handle, kind AccessType, state ResourceState, rng SubresourceRange) *PassBuilder {
	b.decl.Access = append(b.decl.Access, AccessDecl{Handle: handle, Access: kind, State: state, Range: rng})
	return b
}

func (b *PassBuilder) WriteColorAttachment(handle Handle) *PassBuilder {
	return b.Access(handle, Write, ResourceState{
		LastWriteStage:  vk.PipelineStage2ColorAttachmentOutputBit,
		LastWriteAccess: vk.Access2ColorAttachmentWriteBit,
		CurrentLayout:   vk.ImageLayoutColorAttachmentOptimal,
	}, FullRange())
}

func (b *PassBuilder) WriteDepthAttachment(handle Handle) *PassBuilder {
	return b.Access(handle, Write, ResourceState{
		LastWriteStage:  vk.PipelineStage2EarlyFragmentTestsBit | vk.PipelineStage2LateFragmentTestsBit,
		LastWriteAccess: vk.Access2DepthStencilAttachmentWriteBit,
		CurrentLayout:   vk.ImageLayoutDepthStencilAttachmentOptimal,
	}, FullRange())
}

func (b *PassBuilder) WriteStorageImage(handle Handle) *PassBuilder {
	return b.Access(handle, Write, ResourceState{
		LastWriteStage:  b.computeOrGraphicsStage(),
		LastWriteAccess: vk.Access2ShaderStorageWriteBit,
		CurrentLayout:   vk.ImageLayoutGeneral,
	}, FullRange())
}

func (b *PassBuilder) ReadStorageImage(handle Handle) *PassBuilder {
	return b.Access(handle, Read, ResourceState{
		ReadStagesSinceWrite: b.computeOrGraphicsStage(),
		ReadAccessSinceWrite: vk.Access2ShaderStorageReadBit,
		CurrentLayout:        vk.ImageLayoutGeneral,
	}, FullRange())
}

func (b *PassBuilder) SampleImage(handle Handle) *PassBuilder {
	return b.Access(handle, Read, ResourceState{
		ReadStagesSinceWrite: vk.PipelineStage2FragmentShaderBit,
		ReadAccessSinceWrite: vk.Access2ShaderSampledReadBit,
		CurrentLayout:        vk.ImageLayoutShaderReadOnlyOptimal,
	}, FullRange())
}

func (b *PassBuilder) ReadInputAttachment(handle Handle) *PassBuilder {
	return b.Access(handle, Read, ResourceState{
		ReadStagesSinceWrite: vk.PipelineStage2FragmentShaderBit,
		ReadAccessSinceWrite: vk.Access2InputAttachmentReadBit,
		CurrentLayout:        vk.ImageLayoutShaderReadOnlyOptimal,
	}, FullRange())
}

func (b *PassBuilder) WriteStorageBuffer(handle Handle) *PassBuilder {
	return b.Access(handle, Write, ResourceState{
		LastWriteStage:  b.computeOrGraphicsStage(),
		LastWriteAccess: vk.Access2ShaderStorageWriteBit,
	}, SubresourceRange{})
}

func (b *PassBuilder) ReadStorageBuffer(handle Handle) *PassBuilder {
	return b.Access(handle, Read, ResourceState{
		ReadStagesSinceWrite: b.computeOrGraphicsStage(),
		ReadAccessSinceWrite: vk.Access2ShaderStorageReadBit,
	}, SubresourceRange{})
}

func (b *PassBuilder) ReadUniformBuffer(handle Handle) *PassBuilder {
	return b.Access(handle, Read, ResourceState{
		ReadStagesSinceWrite: b.computeOrGraphicsStage(),
		ReadAccessSinceWrite: vk.Access2UniformReadBit,
	}, SubresourceRange{})
}

func (b *PassBuilder) ReadVertexBuffer(handle Handle) *PassBuilder {
	return b.Access(handle, Read, ResourceState{
		ReadStagesSinceWrite: vk.PipelineStage2VertexInputBit,
		ReadAccessSinceWrite: vk.Access2VertexAttributeReadBit,
	}, SubresourceRange{})
}

func (b *PassBuilder) ReadIndexBuffer(handle Handle) *PassBuilder {
	return b.Access(handle, Read, ResourceState{
		ReadStagesSinceWrite: vk.PipelineStage2VertexInputBit,
		ReadAccessSinceWrite: vk.Access2IndexReadBit,
	}, SubresourceRange{})
}

func (b *PassBuilder) ReadIndirectBuffer(handle Handle) *PassBuilder {
	return b.Access(handle, Read, ResourceState{
		ReadStagesSinceWrite: vk.PipelineStage2DrawIndirectBit,
		ReadAccessSinceWrite: vk.Access2IndirectCommandReadBit,
	}, SubresourceRange{})
}

func (b *PassBuilder) computeOrGraphicsStage() vk.PipelineStageFlagBits2 {
	if b.decl.Type == Compute {
		return vk.PipelineStage2ComputeShaderBit
	}
	return vk.PipelineStage2FragmentShaderBit
}

// ---- Layer 1: render targets ----

func (b *PassBuilder) SetColorTarget(index int, handle Handle, loadOp LoadOp, clear vk.ClearColorValue) *PassBuilder {
	for len(b.decl.Colors) <= index {
		b.decl.Colors = append(b.decl.Colors, ColorTarget{Handle: Invalid})
	}
	b.decl.Colors[index] = ColorTarget{Handle: handle, LoadOp: loadOp, ClearValue: clear}
	b.decl.HasTarget = true
	b.WriteColorAttachment(handle)
	return b
}

func (b *PassBuilder) SetDepthTarget(handle Handle, loadOp LoadOp, depthWrite bool, clearDepth float32, clearStencil uint32) *PassBuilder {
	b.decl.Depth = DepthTarget{Handle: handle, LoadOp: loadOp, DepthWrite: depthWrite, ClearDepth: clearDepth, ClearStencil: clearStencil, set: true}
	b.decl.HasTarget = true
	if depthWrite {
		b.WriteDepthAttachment(handle)
	} else {
		b.Access(handle, Read, ResourceState{
			ReadStagesSinceWrite: vk.PipelineStage2EarlyFragmentTestsBit | vk.PipelineStage2LateFragmentTestsBit,
			ReadAccessSinceWrite: vk.Access2DepthStencilAttachmentReadBit,
			CurrentLayout:        vk.ImageLayoutDepthStencilReadOnlyOptimal,
		}, FullRange())
	}
	return b
}

// ---- Layer 2: descriptor binding ----

func (b *PassBuilder) SetSampler(sampler vk.Sampler) *PassBuilder {
	b.decl.DefaultSampler = sampler
	return b
}

// Bind records a bind-map entry: the reflected binding named name (if
// present) is resolved to handle at compile time, with samplerOverride
// used instead of the pass's default sampler when samplerOverride is
// non-null. An access is inferred from the reflected descriptor's type.
func (b *PassBuilder) Bind(name string, handle Handle, samplerOverride vk.Sampler) *PassBuilder {
	b.decl.BindMap = append(b.decl.BindMap, bindEntry{Name: name, Handle: handle, Sampler: samplerOverride})
	return b
}
