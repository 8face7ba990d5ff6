// Copyright (c) 2024, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pipeline implements the background-optimizing, cache-probing
// pipeline acquisition engine of spec.md §4.6: a PipelineCompiler that
// resolves a PipelineRecipe to an immediately usable PipelineHandle,
// optionally upgrading it in place once a worker finishes a fully
// optimized link.
package pipeline

import (
	vk "github.com/goki/vulkan"

	"github.com/goki/vgraph" // package vgpu
)

// VertexBinding mirrors vk.VertexInputBindingDescription with a plain Go
// type so recipes can be built and hashed without cgo-backed structs.
type VertexBinding struct {
	Binding   uint32
	Stride    uint32
	InputRate vk.VertexInputRate
}

// VertexAttribute mirrors vk.VertexInputAttributeDescription.
type VertexAttribute struct {
	Location uint32
	Binding  uint32
	Format   vk.Format
	Offset   uint32
}

// PipelineRecipe is the full set of inputs required to build a graphics
// pipeline (spec.md §3), the conceptual PipelineBuilder interface.
type PipelineRecipe struct {
	VertexShaderCode   []byte
	FragmentShaderCode []byte
	VertexShader       vk.ShaderModule // set if already a module, else built from VertexShaderCode
	FragmentShader     vk.ShaderModule

	VertexBindings   []VertexBinding
	VertexAttributes []VertexAttribute

	Topology vk.PrimitiveTopology

	PolygonMode vk.PolygonMode
	CullMode    vk.CullModeFlagBits
	FrontFace   vk.FrontFace

	ColorFormats []vk.Format
	DepthFormat  vk.Format
	SampleCount  vk.SampleCountFlagBits

	BlendEnable bool
	DepthTest   bool
	DepthWrite  bool
	DepthCompareOp vk.CompareOp

	DynamicStates []vk.DynamicState

	PushConstants    []vgpu.PushConstantRange
	SetLayouts       []vk.DescriptorSetLayout

	// Layout, if non-null, is used as-is instead of building one from
	// SetLayouts/PushConstants.
	Layout vk.PipelineLayout

	// Cache, if non-null, replaces the compiler's pipeline cache for every
	// build of this recipe, including the GPL warm-cache probe.
	Cache vk.PipelineCache
}

func (r *PipelineRecipe) defaults() {
	if r.Topology == 0 {
		r.Topology = vk.PrimitiveTopologyTriangleList
	}
	if r.PolygonMode == 0 {
		r.PolygonMode = vk.PolygonModeFill
	}
	if r.FrontFace == 0 {
		r.FrontFace = vk.FrontFaceCounterClockwise
	}
	if r.SampleCount == 0 {
		r.SampleCount = vk.SampleCount1Bit
	}
}
