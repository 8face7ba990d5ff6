// Copyright (c) 2024, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package graph

import (
	vk "github.com/goki/vulkan"
)

// ColorAttachment is a resolved color attachment ready to hand to
// vkCmdBeginRendering.
type ColorAttachment struct {
	View       vk.ImageView
	Layout     vk.ImageLayout
	LoadOp     vk.AttachmentLoadOp
	StoreOp    vk.AttachmentStoreOp
	ClearValue vk.ClearColorValue
}

// DepthAttachment is the resolved depth/stencil attachment.
type DepthAttachment struct {
	Set          bool
	View         vk.ImageView
	Layout       vk.ImageLayout
	LoadOp       vk.AttachmentLoadOp
	StoreOp      vk.AttachmentStoreOp
	ClearDepth   float32
	ClearStencil uint32
}

// RenderingInfo is the resolved dynamic-rendering description for one
// compiled pass (spec.md §3, §4.2 phase 10).
type RenderingInfo struct {
	Valid        bool
	RenderWidth  uint32
	RenderHeight uint32
	Colors       []ColorAttachment
	Depth        DepthAttachment
}

// DescriptorBinding is one resolved write: a reflected binding the
// bind-map supplied a resource for.
type DescriptorBinding struct {
	Set     vk.DescriptorSet
	Binding uint32
}

// CompiledPass is one pass materialized after Compile (spec.md §3).
type CompiledPass struct {
	SourcePass int
	Barriers   BarrierBatch
	Rendering  RenderingInfo
	Sets       []vk.DescriptorSet
}

// resolveRenderTargets implements compile phase 10: fills a
// RenderingInfo for every pass that declared render targets. storeOp is
// DONT_CARE only for a transient whose lastPass is this pass (spec.md §9
// preserves STORE unconditionally for external attachments).
func (g *Graph) resolveRenderTargets(order []int) {
	for idx, passIdx := range order {
		p := &g.passes[passIdx]
		cp := &g.compiled[idx]
		if !p.HasTarget {
			continue
		}
		info := RenderingInfo{Valid: true}
		for i, c := range p.Colors {
			if c.Handle == Invalid {
				info.Colors = append(info.Colors, ColorAttachment{})
				continue
			}
			r := &g.resources[c.Handle]
			if info.RenderWidth == 0 {
				info.RenderWidth, info.RenderHeight = r.Image.Width, r.Image.Height
			}
			store := storeOpFor(r, idx)
			info.Colors = append(info.Colors, ColorAttachment{
				View: r.VkView, Layout: vk.ImageLayoutColorAttachmentOptimal,
				LoadOp: c.LoadOp, StoreOp: store, ClearValue: c.ClearValue,
			})
			_ = i
		}
		if p.Depth.set {
			r := &g.resources[p.Depth.Handle]
			if info.RenderWidth == 0 {
				info.RenderWidth, info.RenderHeight = r.Image.Width, r.Image.Height
			}
			layout := vk.ImageLayoutDepthStencilAttachmentOptimal
			if !p.Depth.DepthWrite {
				layout = vk.ImageLayoutDepthStencilReadOnlyOptimal
			}
			store := storeOpFor(r, idx)
			info.Depth = DepthAttachment{
				Set: true, View: r.VkView, Layout: layout,
				LoadOp: p.Depth.LoadOp, StoreOp: store,
				ClearDepth: p.Depth.ClearDepth, ClearStencil: p.Depth.ClearStencil,
			}
		}
		cp.Rendering = info
	}
}

// storeOpFor implements the policy of spec.md §4.2 phase 10 and §9: a
// transient whose last use is this pass gets DONT_CARE; every external
// attachment, and every transient with a later user, gets STORE.
//
// sortedIdx must be a topological-order position (computeLifetimes sets
// LastPass/FirstPass in that space), not a declaration index.
func storeOpFor(r *ResourceEntry, sortedIdx int) vk.AttachmentStoreOp {
	if r.Tag == Transient && r.LastPass == sortedIdx {
		return vk.AttachmentStoreOpDontCare
	}
	return vk.AttachmentStoreOpStore
}
