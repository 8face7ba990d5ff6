// Copyright (c) 2024, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package graph

import (
	vk "github.com/goki/vulkan"

	"github.com/goki/vgraph" // package vgpu
)

// pooledImage is a transient image allocation recycled across frames
// (spec.md §3 lifecycles, §4.2 phase 7).
type pooledImage struct {
	desc  ImageDesc
	image vk.Image
	view  vk.ImageView
	alloc vgpu.Allocation
}

type pooledBuffer struct {
	desc   BufferDesc
	buffer vk.Buffer
	alloc  vgpu.Allocation
}

// recycleTransients moves every active transient allocation into the
// pool without any VMA/allocator calls, ready for next frame's
// allocateTransients to consume.
func (g *Graph) recycleTransients() {
	for i := range g.resources {
		r := &g.resources[i]
		if r.Tag != Transient {
			continue
		}
		switch r.Kind {
		case KindImage:
			if r.VkImage == vk.NullImage {
				continue
			}
			g.imagePool = append(g.imagePool, pooledImage{desc: r.Image, image: r.VkImage, view: r.VkView, alloc: r.Alloc})
			r.VkImage, r.VkView = vk.NullImage, vk.NullImageView
			r.Alloc = vgpu.Allocation{}
		case KindBuffer:
			if r.VkBuffer == vk.NullBuffer {
				continue
			}
			g.bufferPool = append(g.bufferPool, pooledBuffer{desc: r.Buffer, buffer: r.VkBuffer, alloc: r.Alloc})
			r.VkBuffer = vk.NullBuffer
			r.Alloc = vgpu.Allocation{}
		}
	}
}

// destroyTransients destroys every currently active transient (used by
// Destroy, not by Reset).
func (g *Graph) destroyTransients() {
	for i := range g.resources {
		r := &g.resources[i]
		if r.Tag != Transient {
			continue
		}
		switch r.Kind {
		case KindImage:
			g.destroyImage(r.VkImage, r.VkView, r.Alloc)
		case KindBuffer:
			g.destroyBuffer(r.VkBuffer, r.Alloc)
		}
	}
}

// destroyPool destroys every pooled (recycled-but-unmatched) allocation.
func (g *Graph) destroyPool() {
	for _, p := range g.imagePool {
		g.destroyImage(p.image, p.view, p.alloc)
	}
	g.imagePool = nil
	for _, p := range g.bufferPool {
		g.destroyBuffer(p.buffer, p.alloc)
	}
	g.bufferPool = nil
}

func (g *Graph) destroyImage(img vk.Image, view vk.ImageView, alloc vgpu.Allocation) {
	if view != vk.NullImageView {
		vk.DestroyImageView(g.Device, view, nil)
	}
	if img != vk.NullImage {
		vk.DestroyImage(g.Device, img, nil)
	}
	if g.Allocator != nil {
		g.Allocator.Destroy(alloc)
	}
}

func (g *Graph) destroyBuffer(buf vk.Buffer, alloc vgpu.Allocation) {
	if buf != vk.NullBuffer {
		vk.DestroyBuffer(g.Device, buf, nil)
	}
	if g.Allocator != nil {
		g.Allocator.Destroy(alloc)
	}
}

// allocateTransients implements compile phase 7: fast-path reuse in
// insertion order when pool counts match this frame's transient counts,
// slow-path descriptor-matching scan otherwise, falling back to a fresh
// allocation.
func (g *Graph) allocateTransients() error {
	wantImages, wantBuffers := 0, 0
	for i := range g.resources {
		if g.resources[i].Tag != Transient {
			continue
		}
		if g.resources[i].Kind == KindImage {
			wantImages++
		} else {
			wantBuffers++
		}
	}

	fastPath := len(g.imagePool) == wantImages && len(g.bufferPool) == wantBuffers

	usedImagePool := make([]bool, len(g.imagePool))
	usedBufferPool := make([]bool, len(g.bufferPool))

	for i := range g.resources {
		r := &g.resources[i]
		if r.Tag != Transient {
			continue
		}
		switch r.Kind {
		case KindImage:
			if err := g.allocateTransientImage(r, fastPath, usedImagePool); err != nil {
				return err
			}
		case KindBuffer:
			if err := g.allocateTransientBuffer(r, fastPath, usedBufferPool); err != nil {
				return err
			}
		}
	}

	g.compactImagePool(usedImagePool)
	g.compactBufferPool(usedBufferPool)
	return nil
}

func (g *Graph) allocateTransientImage(r *ResourceEntry, fastPath bool, used []bool) error {
	if fastPath {
		for i, p := range g.imagePool {
			if used[i] {
				continue
			}
			used[i] = true
			r.VkImage, r.VkView, r.Alloc = p.image, p.view, p.alloc
			return nil
		}
	}
	// Slow path: scan for a byte-identical unused descriptor.
	for i, p := range g.imagePool {
		if used[i] || !p.desc.matches(r.Image) {
			continue
		}
		used[i] = true
		r.VkImage, r.VkView, r.Alloc = p.image, p.view, p.alloc
		return nil
	}
	// Allocate fresh.
	img, alloc, err := vgpu.NewImage(g.Allocator, vgpu.ImageFormat{
		Width: r.Image.Width, Height: r.Image.Height, Format: r.Image.Format,
		Usage: r.Image.Usage, MipLevels: r.Image.MipLevels, ArrayLayers: r.Image.ArrayLayers,
		Samples: r.Image.SampleCount, Aspect: r.Image.Aspect,
	})
	if err != nil {
		return &CompileError{Op: "allocateTransients", Err: err}
	}
	view, err := vgpu.NewImageView(g.Device, img, r.Image.Format, r.Image.Aspect, r.Image.MipLevels, r.Image.ArrayLayers)
	if err != nil {
		return &CompileError{Op: "allocateTransients", Err: err}
	}
	r.VkImage, r.VkView, r.Alloc = img, view, alloc
	return nil
}

func (g *Graph) allocateTransientBuffer(r *ResourceEntry, fastPath bool, used []bool) error {
	if fastPath {
		for i, p := range g.bufferPool {
			if used[i] {
				continue
			}
			used[i] = true
			r.VkBuffer, r.Alloc = p.buffer, p.alloc
			return nil
		}
	}
	for i, p := range g.bufferPool {
		if used[i] || !p.desc.matches(r.Buffer) {
			continue
		}
		used[i] = true
		r.VkBuffer, r.Alloc = p.buffer, p.alloc
		return nil
	}
	buf, alloc, err := vgpu.NewBuffer(g.Allocator, r.Buffer.Size, r.Buffer.Usage, vgpu.UsageDeviceOnly)
	if err != nil {
		return &CompileError{Op: "allocateTransients", Err: err}
	}
	r.VkBuffer, r.Alloc = buf, alloc
	return nil
}

// compactImagePool destroys every unmatched pool entry and empties the
// pool; matched entries already transferred ownership to the resource
// table above and are dropped here without destruction.
func (g *Graph) compactImagePool(used []bool) {
	for i, p := range g.imagePool {
		if used[i] {
			continue
		}
		g.destroyImage(p.image, p.view, p.alloc)
	}
	g.imagePool = g.imagePool[:0]
}

func (g *Graph) compactBufferPool(used []bool) {
	for i, p := range g.bufferPool {
		if used[i] {
			continue
		}
		g.destroyBuffer(p.buffer, p.alloc)
	}
	g.bufferPool = g.bufferPool[:0]
}
