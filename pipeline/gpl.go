// Copyright (c) 2024, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"sync"

	vk "github.com/goki/vulkan"
)

// libraryPart identifies one of the four independently compilable
// fragments of VK_EXT_graphics_pipeline_library (spec.md §4.6).
type libraryPart int

const (
	partVertexInput libraryPart = iota
	partPreRasterization
	partFragmentShader
	partFragmentOutput
	numLibraryParts
)

// libraryCache is a content-hash-keyed, RWMutex-guarded cache of one GPL
// part. Every PipelineCompiler holding GPL capability keeps four of
// these, one per libraryPart, so e.g. two recipes sharing the same
// vertex layout reuse the same vertex-input library instead of
// recompiling it.
type libraryCache struct {
	mu      sync.RWMutex
	entries map[uint64]vk.Pipeline
}

func newLibraryCache() *libraryCache {
	return &libraryCache{entries: map[uint64]vk.Pipeline{}}
}

// getOrBuild returns the cached library for key, building it with build
// on a miss. Double-checked locking: an RLock probe first, then a
// write-locked re-check before building, so concurrent callers racing
// on the same new key build it only once.
func (c *libraryCache) getOrBuild(key uint64, build func() (vk.Pipeline, error)) (vk.Pipeline, error) {
	c.mu.RLock()
	if p, ok := c.entries[key]; ok {
		c.mu.RUnlock()
		return p, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.entries[key]; ok {
		return p, nil
	}
	p, err := build()
	if err != nil {
		return vk.NullPipeline, err
	}
	c.entries[key] = p
	return p, nil
}

func (c *libraryCache) destroyAll(device vk.Device) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, p := range c.entries {
		vk.DestroyPipeline(device, p, nil)
		delete(c.entries, k)
	}
}

// gplLibraries holds the four per-part caches a GPL-capable compiler
// maintains across every recipe it ever compiles.
type gplLibraries struct {
	parts [numLibraryParts]*libraryCache
}

func newGPLLibraries() *gplLibraries {
	g := &gplLibraries{}
	for i := range g.parts {
		g.parts[i] = newLibraryCache()
	}
	return g
}

func (g *gplLibraries) destroyAll(device vk.Device) {
	for _, c := range g.parts {
		c.destroyAll(device)
	}
}

// hashVertexInput hashes the fields the vertex-input GPL part depends
// on: topology, bindings, and attributes.
func hashVertexInput(r *PipelineRecipe) uint64 {
	h := newHasher()
	h.u32(uint32(r.Topology))
	h.u64(uint64(len(r.VertexBindings)))
	for _, b := range r.VertexBindings {
		h.u32(b.Binding)
		h.u32(b.Stride)
		h.u32(uint32(b.InputRate))
	}
	h.u64(uint64(len(r.VertexAttributes)))
	for _, a := range r.VertexAttributes {
		h.u32(a.Location)
		h.u32(a.Binding)
		h.u32(uint32(a.Format))
		h.u32(a.Offset)
	}
	return h.h
}

// hashPreRasterization hashes the fields the pre-rasterization part
// depends on: vertex stage, layout, rasterizer state.
func hashPreRasterization(r *PipelineRecipe) uint64 {
	h := newHasher()
	h.u64(uint64(r.VertexShader))
	h.bytes(r.VertexShaderCode)
	h.u32(uint32(r.PolygonMode))
	h.u32(uint32(r.CullMode))
	h.u32(uint32(r.FrontFace))
	h.u64(uint64(r.Layout))
	return h.h
}

// hashFragmentShader hashes the fields the fragment-shader part depends
// on: fragment stage, layout, depth test state.
func hashFragmentShader(r *PipelineRecipe) uint64 {
	h := newHasher()
	h.u64(uint64(r.FragmentShader))
	h.bytes(r.FragmentShaderCode)
	h.bit(r.DepthTest)
	h.bit(r.DepthWrite)
	h.u32(uint32(r.DepthCompareOp))
	h.u64(uint64(r.Layout))
	return h.h
}

// hashFragmentOutput hashes the fields the fragment-output part depends
// on: attachment formats, sample count, blend state.
func hashFragmentOutput(r *PipelineRecipe) uint64 {
	h := newHasher()
	h.u64(uint64(len(r.ColorFormats)))
	for _, f := range r.ColorFormats {
		h.u32(uint32(f))
	}
	h.u32(uint32(r.DepthFormat))
	h.u32(uint32(r.SampleCount))
	h.bit(r.BlendEnable)
	return h.h
}

// buildVertexInputLibrary creates (or reuses) the vertex-input-interface
// GPL part: primitive topology plus vertex binding/attribute state, no
// shader stages.
func (c *Compiler) buildVertexInputLibrary(r *PipelineRecipe) (vk.Pipeline, error) {
	key := hashVertexInput(r)
	return c.libs.parts[partVertexInput].getOrBuild(key, func() (vk.Pipeline, error) {
		return c.createLibrary(r, vk.GraphicsPipelineLibraryFlagBitsVertexInputInterfaceBitExt, nil)
	})
}

// buildPreRasterizationLibrary creates (or reuses) the
// pre-rasterization-shaders GPL part: vertex stage plus viewport,
// rasterization, and (if present) tessellation/geometry state.
func (c *Compiler) buildPreRasterizationLibrary(r *PipelineRecipe) (vk.Pipeline, error) {
	key := hashPreRasterization(r)
	return c.libs.parts[partPreRasterization].getOrBuild(key, func() (vk.Pipeline, error) {
		stage, err := c.stageFor(r, vk.ShaderStageVertexBit, r.VertexShader, r.VertexShaderCode)
		if err != nil {
			return vk.NullPipeline, err
		}
		return c.createLibrary(r, vk.GraphicsPipelineLibraryFlagBitsPreRasterizationShadersBitExt, []vk.PipelineShaderStageCreateInfo{stage})
	})
}

// buildFragmentShaderLibrary creates (or reuses) the fragment-shader
// GPL part: fragment stage plus depth/stencil test state.
func (c *Compiler) buildFragmentShaderLibrary(r *PipelineRecipe) (vk.Pipeline, error) {
	key := hashFragmentShader(r)
	return c.libs.parts[partFragmentShader].getOrBuild(key, func() (vk.Pipeline, error) {
		stage, err := c.stageFor(r, vk.ShaderStageFragmentBit, r.FragmentShader, r.FragmentShaderCode)
		if err != nil {
			return vk.NullPipeline, err
		}
		return c.createLibrary(r, vk.GraphicsPipelineLibraryFlagBitsFragmentShaderBitExt, []vk.PipelineShaderStageCreateInfo{stage})
	})
}

// buildFragmentOutputLibrary creates (or reuses) the fragment-output
// GPL part: color/depth attachment formats, sample count, and blend
// state.
func (c *Compiler) buildFragmentOutputLibrary(r *PipelineRecipe) (vk.Pipeline, error) {
	key := hashFragmentOutput(r)
	return c.libs.parts[partFragmentOutput].getOrBuild(key, func() (vk.Pipeline, error) {
		return c.createLibrary(r, vk.GraphicsPipelineLibraryFlagBitsFragmentOutputInterfaceBitExt, nil)
	})
}
