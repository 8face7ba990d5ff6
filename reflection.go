// Copyright (c) 2024, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

import vk "github.com/goki/vulkan"

// Binding describes one shader-reflected descriptor binding, matching
// the reflection shape assumed by spec.md §6: set index, binding index,
// descriptor type, stage flags, and a human-readable name.
type Binding struct {
	Set     uint32
	Binding uint32
	Type    vk.DescriptorType
	Count   uint32
	Stages  vk.ShaderStageFlagBits
	Name    string
}

// PushConstantRange mirrors vk.PushConstantRange with a plain Go type so
// reflection results don't require cgo-backed structs to be Deref'd by
// callers.
type PushConstantRange struct {
	Stages vk.ShaderStageFlagBits
	Offset uint32
	Size   uint32
}

// Reflection is the shader-reflection external collaborator of spec.md
// §6: given SPIR-V (elsewhere, out of this package's scope) it exposes
// the enumerated binding list and push-constant ranges that the render
// graph's Layer 2 auto-bind and the pipeline layout builder consume.
type Reflection interface {
	Bindings() []Binding
	PushConstants() []PushConstantRange
}

// StaticReflection is the simplest Reflection implementation: a fixed
// list supplied by the caller (e.g., precomputed offline, or produced by
// an external SPIR-V reflection library out of this module's scope).
type StaticReflection struct {
	BindingList      []Binding
	PushConstantList []PushConstantRange
}

func (r *StaticReflection) Bindings() []Binding             { return r.BindingList }
func (r *StaticReflection) PushConstants() []PushConstantRange { return r.PushConstantList }

// MergeReflections combines bindings from multiple shader stages. Two
// reflections that describe the same (set, binding) are merged into one
// Binding whose Stages is the OR of both; all other fields come from the
// first occurrence. Push-constant ranges are concatenated.
func MergeReflections(refs ...Reflection) Reflection {
	type key struct{ set, binding uint32 }
	merged := map[key]*Binding{}
	order := []key{}
	var pushConsts []PushConstantRange

	for _, r := range refs {
		if r == nil {
			continue
		}
		for _, b := range r.Bindings() {
			k := key{b.Set, b.Binding}
			if existing, ok := merged[k]; ok {
				existing.Stages |= b.Stages
				continue
			}
			bCopy := b
			merged[k] = &bCopy
			order = append(order, k)
		}
		pushConsts = append(pushConsts, r.PushConstants()...)
	}

	out := &StaticReflection{PushConstantList: pushConsts}
	for _, k := range order {
		out.BindingList = append(out.BindingList, *merged[k])
	}
	return out
}
