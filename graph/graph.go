// Copyright (c) 2024, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package graph

import (
	vk "github.com/goki/vulkan"

	"github.com/goki/vgraph" // package vgpu
	"github.com/goki/vgraph/descalloc"
)

// Graph is a single-threaded, single-frame render-graph builder and
// compiler (spec.md §1–§4). One instance is owned by one thread; a
// typical application rotates N instances across N frames-in-flight.
type Graph struct {
	Device    vk.Device
	Allocator vgpu.Allocator
	Caps      vgpu.Capabilities

	// StrictBinding turns a bind-map entry with no matching reflected
	// binding into a compile error instead of being silently ignored
	// (spec.md §9 Open Question; default false preserves legacy
	// partial-bind behavior).
	StrictBinding bool

	passes    []PassDecl
	resources []ResourceEntry

	imageMaps    []*SubresourceMap // indexed like resources; nil for buffers/external-without-map
	bufferStates []*ResourceState

	adj      []bool // flattened pass x pass matrix, adj[i*n+j] means i must precede j
	inDegree []int

	compiled   []CompiledPass
	isCompiled bool

	stats Stats

	imagePool  []pooledImage
	bufferPool []pooledBuffer

	lastGraphHash uint64
	cachedOrder   []int
	haveCache     bool

	descAlloc *descalloc.Allocator
	dslCache  []vk.DescriptorSetLayout
}

// New constructs a Graph bound to device/allocator. descAlloc may be nil,
// in which case Layer 2 auto-bind (descriptor resolution) is
// unavailable and passes using it will fail to compile.
func New(device vk.Device, allocator vgpu.Allocator, caps vgpu.Capabilities, descAlloc *descalloc.Allocator) *Graph {
	return &Graph{
		Device:    device,
		Allocator: allocator,
		Caps:      caps,
		descAlloc: descAlloc,
	}
}

// Reset recycles transients to the pool, clears passes/resources, and
// destroys the descriptor set layouts created by the last Compile. The
// descriptor allocator's pools are reset and kept for reuse. Each
// resource's SubresourceMap/ResourceState is dropped with the resource;
// the next frame's declarations get new ones.
func (g *Graph) Reset() {
	g.recycleTransients()
	for _, dsl := range g.dslCache {
		if dsl != vk.NullDescriptorSetLayout {
			vk.DestroyDescriptorSetLayout(g.Device, dsl, nil)
		}
	}
	g.dslCache = g.dslCache[:0]

	g.passes = g.passes[:0]
	g.resources = g.resources[:0]
	g.imageMaps = g.imageMaps[:0]
	g.bufferStates = g.bufferStates[:0]
	g.isCompiled = false
	g.compiled = g.compiled[:0]

	if g.descAlloc != nil {
		g.descAlloc.ResetPools()
	}
}

// Destroy tears down everything the graph owns: transients (both active
// and pooled), cached descriptor set layouts, and the descriptor
// allocator. External (imported) resources are never touched.
func (g *Graph) Destroy() {
	g.destroyTransients()
	g.destroyPool()
	for _, dsl := range g.dslCache {
		if dsl != vk.NullDescriptorSetLayout {
			vk.DestroyDescriptorSetLayout(g.Device, dsl, nil)
		}
	}
	g.dslCache = nil
	if g.descAlloc != nil {
		g.descAlloc.Destroy()
	}
}

// ---- declaration: resources ----

// ImportImage registers an externally owned image. The graph never
// destroys it; initialState tells the barrier compiler what
// synchronization context exists at graph entry (e.g. a swapchain
// image's layout after acquire).
func (g *Graph) ImportImage(img vk.Image, view vk.ImageView, format vk.Format, width, height, mipLevels, arrayLayers uint32, initialState ResourceState, name string) Handle {
	entry := ResourceEntry{
		Tag: External, Kind: KindImage, Name: name,
		Image: ImageDesc{Width: width, Height: height, Format: format, MipLevels: mipLevels, ArrayLayers: arrayLayers, SampleCount: vk.SampleCount1Bit, Aspect: vk.ImageAspectColorBit},
		VkImage: img, VkView: view,
		InitialState: initialState,
	}
	h := g.appendResource(entry)
	g.imageMaps[h] = NewSubresourceMap(mipLevels, arrayLayers, initialState)
	return h
}

// ImportBuffer registers an externally owned buffer.
func (g *Graph) ImportBuffer(buf vk.Buffer, size int, initialState ResourceState, name string) Handle {
	entry := ResourceEntry{
		Tag: External, Kind: KindBuffer, Name: name,
		Buffer: BufferDesc{Size: size}, VkBuffer: buf,
		InitialState: initialState,
	}
	h := g.appendResource(entry)
	st := initialState
	g.bufferStates[h] = &st
	return h
}

// CreateImage declares a transient image. desc.Usage accumulates usage
// bits implied by every access declared against it during compile.
func (g *Graph) CreateImage(desc ImageDesc, name string) Handle {
	desc.defaults()
	entry := ResourceEntry{Tag: Transient, Kind: KindImage, Name: name, Image: desc}
	h := g.appendResource(entry)
	g.imageMaps[h] = nil // constructed during compile once the handle is concrete
	return h
}

// CreateBuffer declares a transient buffer.
func (g *Graph) CreateBuffer(desc BufferDesc, name string) Handle {
	entry := ResourceEntry{Tag: Transient, Kind: KindBuffer, Name: name, Buffer: desc}
	h := g.appendResource(entry)
	g.bufferStates[h] = nil
	return h
}

func (g *Graph) appendResource(e ResourceEntry) Handle {
	h := Handle(len(g.resources))
	g.resources = append(g.resources, e)
	g.imageMaps = append(g.imageMaps, nil)
	g.bufferStates = append(g.bufferStates, nil)
	return h
}

// ---- declaration: passes ----

// AddPass declares a pass with no pipeline/reflection (Layer 0/1 only).
func (g *Graph) AddPass(name string, typ PassType, setup SetupFn, record RecordFn) {
	decl := PassDecl{Name: name, Type: typ, Record: SetupRecordPair{Record: record}}
	b := &PassBuilder{g: g, decl: &decl}
	if setup != nil {
		setup(b)
	}
	g.passes = append(g.passes, decl)
}

// AddPassPipeline declares a pass with a pipeline, its layout, and shader
// reflection, enabling Layer 2 auto-bind.
func (g *Graph) AddPassPipeline(name string, typ PassType, pipeline vk.Pipeline, layout vk.PipelineLayout, reflection vgpu.Reflection, setup SetupFn, record RecordFn) {
	decl := PassDecl{
		Name: name, Type: typ, Record: SetupRecordPair{Record: record},
		Pipeline: pipeline, PipelineLayout: layout, Reflection: reflection,
	}
	b := &PassBuilder{g: g, decl: &decl}
	if setup != nil {
		setup(b)
	}
	g.inferLayer2Accesses(&decl)
	g.passes = append(g.passes, decl)
}

// Stats returns the most recent Compile's phase timings and barrier/pass
// counts (spec.md §6).
func (g *Graph) Stats() Stats { return g.stats }
