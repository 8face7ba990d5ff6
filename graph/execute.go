// Copyright (c) 2024, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package graph

import (
	"fmt"
	"log/slog"

	vk "github.com/goki/vulkan"
)

// errNotCompiled is returned by Execute when called before a successful
// Compile.
type errNotCompiled struct{}

func (errNotCompiled) Error() string { return "graph: Execute called before a successful Compile" }

// stateOverride is one entry in a PassContext's override stash: a
// callback's declaration, outside the graph's own tracking, that a
// subresource range now carries a different ResourceState (spec.md
// §4.3) — e.g. a swapchain present transition performed by the
// application rather than by a declared access.
type stateOverride struct {
	Handle Handle
	Range  SubresourceRange
	State  ResourceState
}

// PassContext is handed to a pass's record callback. It resolves
// resource handles to concrete Vulkan objects, exposes this pass's
// precomputed rendering info and descriptor sets, and collects state
// overrides to be committed after the callback returns.
type PassContext struct {
	g        *Graph
	pass     *PassDecl
	compiled *CompiledPass

	overrides      []stateOverride
	renderingOpen  bool
}

// Image returns the concrete image backing handle.
func (c *PassContext) Image(handle Handle) vk.Image { return c.g.resources[handle].VkImage }

// ImageView returns the default full-resource view backing handle.
func (c *PassContext) ImageView(handle Handle) vk.ImageView { return c.g.resources[handle].VkView }

// Buffer returns the concrete buffer backing handle.
func (c *PassContext) Buffer(handle Handle) vk.Buffer { return c.g.resources[handle].VkBuffer }

// Rendering returns this pass's resolved render-target description, or
// a zero value (Valid == false) if the pass declared none.
func (c *PassContext) Rendering() RenderingInfo { return c.compiled.Rendering }

// DescriptorSets returns this pass's resolved descriptor sets, in
// ascending set-index order, or nil if the pass has no reflection.
func (c *PassContext) DescriptorSets() []vk.DescriptorSet { return c.compiled.Sets }

// Pipeline and PipelineLayout return the values passed to
// AddPassPipeline, or zero values for a plain AddPass.
func (c *PassContext) Pipeline() vk.Pipeline             { return c.pass.Pipeline }
func (c *PassContext) PipelineLayout() vk.PipelineLayout { return c.pass.PipelineLayout }

// BeginRendering starts dynamic rendering using this pass's resolved
// RenderingInfo. A callback that calls this must call EndRendering
// before returning; Execute warns (non-fatally) otherwise.
func (c *PassContext) BeginRendering(cmd vk.CommandBuffer) {
	info := c.compiled.Rendering
	if !info.Valid {
		return
	}
	colors := make([]vk.RenderingAttachmentInfo, len(info.Colors))
	for i, col := range info.Colors {
		colors[i] = vk.RenderingAttachmentInfo{
			SType:       vk.StructureTypeRenderingAttachmentInfo,
			ImageView:   col.View,
			ImageLayout: col.Layout,
			LoadOp:      col.LoadOp,
			StoreOp:     col.StoreOp,
			ClearValue:  vk.ClearValue{Color: col.ClearValue},
		}
	}
	renderInfo := vk.RenderingInfo{
		SType:      vk.StructureTypeRenderingInfo,
		RenderArea: vk.Rect2D{Extent: vk.Extent2D{Width: info.RenderWidth, Height: info.RenderHeight}},
		LayerCount: 1,
		ColorAttachmentCount: uint32(len(colors)),
		PColorAttachments:    colors,
	}
	if info.Depth.Set {
		renderInfo.PDepthAttachment = &vk.RenderingAttachmentInfo{
			SType:       vk.StructureTypeRenderingAttachmentInfo,
			ImageView:   info.Depth.View,
			ImageLayout: info.Depth.Layout,
			LoadOp:      info.Depth.LoadOp,
			StoreOp:     info.Depth.StoreOp,
			ClearValue:  vk.ClearValue{DepthStencil: vk.ClearDepthStencilValue{Depth: info.Depth.ClearDepth, Stencil: info.Depth.ClearStencil}},
		}
	}
	vk.CmdBeginRendering(cmd, &renderInfo)
	c.renderingOpen = true
}

// EndRendering ends dynamic rendering begun by BeginRendering.
func (c *PassContext) EndRendering(cmd vk.CommandBuffer) {
	vk.CmdEndRendering(cmd)
	c.renderingOpen = false
}

// OverrideState records that handle's subresource range now carries
// state, for a transition performed by the callback itself (outside any
// declared access) — e.g. a swapchain present transition. Committed to
// the graph's tracked state once the callback returns.
func (c *PassContext) OverrideState(handle Handle, rng SubresourceRange, state ResourceState) {
	c.overrides = append(c.overrides, stateOverride{Handle: handle, Range: rng, State: state})
}

func (c *PassContext) drain() {
	for _, o := range c.overrides {
		r := &c.g.resources[o.Handle]
		if r.Kind == KindImage {
			c.g.imageMaps[o.Handle].SetState(o.Range, o.State)
		} else {
			*c.g.bufferStates[o.Handle] = o.State
		}
	}
	c.overrides = nil
}

// Execute implements spec.md §4.3: emits each compiled pass's barrier
// batch, constructs its PassContext, invokes its record callback, and
// drains state overrides. Precondition: Compile succeeded since the
// last Reset.
func (g *Graph) Execute(cmd vk.CommandBuffer) error {
	if !g.isCompiled {
		return &CompileError{Op: "Execute", Err: errNotCompiled{}}
	}
	for i := range g.compiled {
		cp := &g.compiled[i]
		p := &g.passes[cp.SourcePass]

		if !cp.Barriers.Empty() {
			emitBarrier(cmd, &cp.Barriers)
		}

		ctx := &PassContext{g: g, pass: p, compiled: cp}
		if p.Record.Record != nil {
			p.Record.Record(ctx, cmd)
		}
		if ctx.renderingOpen {
			slog.Warn("graph: pass began rendering but never ended it", "pass", p.Name)
			vk.CmdEndRendering(cmd)
		}
		ctx.drain()
	}
	return nil
}

// emitBarrier issues a single vkCmdPipelineBarrier2 covering every
// image and buffer barrier in batch.
func emitBarrier(cmd vk.CommandBuffer, batch *BarrierBatch) {
	imageBarriers := make([]vk.ImageMemoryBarrier2, len(batch.Images))
	for i, b := range batch.Images {
		imageBarriers[i] = vk.ImageMemoryBarrier2{
			SType:               vk.StructureTypeImageMemoryBarrier2,
			SrcStageMask:        vk.PipelineStageFlags2(b.SrcStage),
			SrcAccessMask:       vk.AccessFlags2(b.SrcAccess),
			DstStageMask:        vk.PipelineStageFlags2(b.DstStage),
			DstAccessMask:       vk.AccessFlags2(b.DstAccess),
			OldLayout:           b.OldLayout,
			NewLayout:           b.NewLayout,
			SrcQueueFamilyIndex: b.SrcQueue,
			DstQueueFamilyIndex: b.DstQueue,
			Image:               b.Image,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:     vk.ImageAspectFlags(b.Aspect),
				BaseMipLevel:   b.Range.BaseMip,
				LevelCount:     b.Range.MipCount,
				BaseArrayLayer: b.Range.BaseLayer,
				LayerCount:     b.Range.LayerCount,
			},
		}
	}
	bufferBarriers := make([]vk.BufferMemoryBarrier2, len(batch.Buffers))
	for i, b := range batch.Buffers {
		bufferBarriers[i] = vk.BufferMemoryBarrier2{
			SType:               vk.StructureTypeBufferMemoryBarrier2,
			SrcStageMask:        vk.PipelineStageFlags2(b.SrcStage),
			SrcAccessMask:       vk.AccessFlags2(b.SrcAccess),
			DstStageMask:        vk.PipelineStageFlags2(b.DstStage),
			DstAccessMask:       vk.AccessFlags2(b.DstAccess),
			SrcQueueFamilyIndex: b.SrcQueue,
			DstQueueFamilyIndex: b.DstQueue,
			Buffer:              b.Buffer,
			Offset:              0,
			Size:                vk.WholeSize,
		}
	}
	dep := vk.DependencyInfo{
		SType:                    vk.StructureTypeDependencyInfo,
		ImageMemoryBarrierCount:  uint32(len(imageBarriers)),
		PImageMemoryBarriers:     imageBarriers,
		BufferMemoryBarrierCount: uint32(len(bufferBarriers)),
		PBufferMemoryBarriers:    bufferBarriers,
	}
	vk.CmdPipelineBarrier2(cmd, &dep)
}

// CompileAndExecute is a convenience wrapper: Compile, then Execute on
// success.
func (g *Graph) CompileAndExecute(cmd vk.CommandBuffer) error {
	if err := g.Compile(); err != nil {
		return err
	}
	return g.Execute(cmd)
}

// Prewarm compiles then resets the graph, to warm transient pools and
// the descriptor allocator ahead of the first real frame (spec.md §6).
// No command buffer is touched since nothing is executed.
func (g *Graph) Prewarm() error {
	if err := g.Compile(); err != nil {
		return fmt.Errorf("graph: Prewarm: %w", err)
	}
	g.Reset()
	return nil
}
