// Copyright (c) 2024, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package graph

import (
	"sort"

	vk "github.com/goki/vulkan"

	"github.com/goki/vgraph" // package vgpu
)

// resolveDescriptors implements compile phase 11: for every pass with a
// reflection, group bindings by set index, create a descriptor set
// layout (cached on the graph) for every set with at least one bind-map
// entry, allocate a set from the graph's descriptor allocator, and write
// descriptors for every bind-map entry with a matching reflected
// binding. Descriptor sets are always re-resolved (they're ephemeral,
// spec.md §3), even when Compile hits the structural-hash cache. Sets
// are resolved in ascending set-index order.
func (g *Graph) resolveDescriptors(order []int) error {
	for idx, passIdx := range order {
		p := &g.passes[passIdx]
		cp := &g.compiled[idx]
		cp.Sets = nil
		if p.Reflection == nil {
			continue
		}
		if len(p.unmatchedBinds) > 0 && strictBindingEnabled(g) {
			return &CompileError{Op: "resolveDescriptors", Err: &errUnmatchedBind{Pass: p.Name, Names: p.unmatchedBinds}}
		}

		bySet := map[uint32][]vgpu.Binding{}
		var setOrder []uint32
		for _, b := range p.Reflection.Bindings() {
			if _, ok := bySet[b.Set]; !ok {
				setOrder = append(setOrder, b.Set)
			}
			bySet[b.Set] = append(bySet[b.Set], b)
		}
		sort.Slice(setOrder, func(i, j int) bool { return setOrder[i] < setOrder[j] })

		bound := map[string]bindEntry{}
		for _, be := range p.BindMap {
			bound[be.Name] = be
		}

		for _, setIdx := range setOrder {
			bindings := bySet[setIdx]
			if !setHasBoundEntry(bindings, bound) {
				continue
			}
			dsl, err := g.getOrCreateLayout(bindings)
			if err != nil {
				return &CompileError{Op: "resolveDescriptors", Err: err}
			}
			if g.descAlloc == nil {
				return &CompileError{Op: "resolveDescriptors", Err: errNoDescriptorAllocator{}}
			}
			set, err := g.descAlloc.Allocate(dsl)
			if err != nil {
				return &CompileError{Op: "resolveDescriptors", Err: err}
			}
			g.writeDescriptorSet(set, bindings, bound, p)
			cp.Sets = append(cp.Sets, set)
		}
	}
	return nil
}

func strictBindingEnabled(g *Graph) bool { return g.StrictBinding }

func setHasBoundEntry(bindings []vgpu.Binding, bound map[string]bindEntry) bool {
	for _, b := range bindings {
		if _, ok := bound[b.Name]; ok {
			return true
		}
	}
	return false
}

// getOrCreateLayout creates a descriptor set layout for exactly this
// binding list on every call and records it in dslCache, which Reset and
// Destroy free. No layout is reused from an earlier call: layouts are not
// kept across compiles and are not deduplicated across passes with
// structurally identical sets (spec.md §1 Non-goals).
func (g *Graph) getOrCreateLayout(bindings []vgpu.Binding) (vk.DescriptorSetLayout, error) {
	entries := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		entries[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  b.Type,
			DescriptorCount: maxu32(b.Count, 1),
			StageFlags:      vk.ShaderStageFlags(b.Stages),
		}
	}
	var dsl vk.DescriptorSetLayout
	ret := vk.CreateDescriptorSetLayout(g.Device, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(entries)),
		PBindings:    entries,
	}, nil, &dsl)
	if ret != vk.Success {
		return vk.NullDescriptorSetLayout, &vgpu.Error{Op: "CreateDescriptorSetLayout", Result: ret}
	}
	g.dslCache = append(g.dslCache, dsl)
	return dsl, nil
}

func maxu32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

// writeDescriptorSet emits a vkUpdateDescriptorSets write for every
// reflected binding whose name appears in bound; bindings absent from
// the bind-map are left unwritten (partial-bind, spec.md §4.2 phase 11).
func (g *Graph) writeDescriptorSet(set vk.DescriptorSet, bindings []vgpu.Binding, bound map[string]bindEntry, p *PassDecl) {
	var writes []vk.WriteDescriptorSet
	for _, b := range bindings {
		be, ok := bound[b.Name]
		if !ok {
			continue
		}
		r := &g.resources[be.Handle]
		wd := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          set,
			DstBinding:      b.Binding,
			DescriptorCount: 1,
			DescriptorType:  b.Type,
		}
		switch b.Type {
		case vk.DescriptorTypeCombinedImageSampler, vk.DescriptorTypeSampledImage, vk.DescriptorTypeStorageImage:
			sampler := be.Sampler
			if sampler == vk.NullSampler {
				sampler = p.DefaultSampler
			}
			layout := vk.ImageLayoutShaderReadOnlyOptimal
			if b.Type == vk.DescriptorTypeStorageImage {
				layout = vk.ImageLayoutGeneral
			}
			wd.PImageInfo = []vk.DescriptorImageInfo{{
				Sampler: sampler, ImageView: r.VkView, ImageLayout: layout,
			}}
		default: // uniform/storage buffer
			wd.PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: r.VkBuffer, Offset: 0, Range: vk.WholeSize,
			}}
		}
		writes = append(writes, wd)
	}
	if len(writes) > 0 {
		vk.UpdateDescriptorSets(g.Device, uint32(len(writes)), writes, 0, nil)
	}
}

type errUnmatchedBind struct {
	Pass  string
	Names []string
}

func (e *errUnmatchedBind) Error() string {
	return "graph: pass " + e.Pass + ": bind-map names with no matching reflected binding"
}

type errNoDescriptorAllocator struct{}

func (errNoDescriptorAllocator) Error() string {
	return "graph: pass declares a reflection but the graph has no DescriptorAllocator"
}
