// Copyright (c) 2024, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package graph

import (
	vk "github.com/goki/vulkan"

	"github.com/goki/vgraph" // package vgpu
)

// inferLayer2Accesses runs reflection-driven access inference (spec.md
// §4.1 Layer 2): for every reflected binding whose name appears in the
// pass's bind-map, an access matching the descriptor type is appended to
// decl.Access. Bind-map entries naming a binding absent from the
// reflection are recorded as unmatched; resolveDescriptors either
// ignores them (default, "partial-bind") or fails compile (when
// StrictBinding is set), per the Open Question in spec.md §9.
func (g *Graph) inferLayer2Accesses(decl *PassDecl) {
	if decl.Reflection == nil || len(decl.BindMap) == 0 {
		return
	}
	byName := map[string]vgpu.Binding{}
	for _, b := range decl.Reflection.Bindings() {
		byName[b.Name] = b
	}
	for _, be := range decl.BindMap {
		b, ok := byName[be.Name]
		if !ok {
			decl.unmatchedBinds = append(decl.unmatchedBinds, be.Name)
			continue
		}
		access := accessForDescriptor(b, decl.Type)
		access.Handle = be.Handle
		decl.Access = append(decl.Access, access)
	}
}

func accessForDescriptor(b vgpu.Binding, passType PassType) AccessDecl {
	stage := b.Stages
	if stage == 0 {
		stage = vk.ShaderStageFlagBits(vk.ShaderStageFragmentBit)
	}
	switch b.Type {
	case vk.DescriptorTypeCombinedImageSampler, vk.DescriptorTypeSampledImage:
		return AccessDecl{
			Handle: Invalid, Access: Read,
			State: ResourceState{
				ReadStagesSinceWrite: toStage2(stage),
				ReadAccessSinceWrite: vk.Access2ShaderSampledReadBit,
				CurrentLayout:        vk.ImageLayoutShaderReadOnlyOptimal,
			},
			Range: FullRange(),
		}
	case vk.DescriptorTypeStorageImage:
		return AccessDecl{
			Handle: Invalid, Access: ReadWrite,
			State: ResourceState{
				LastWriteStage: toStage2(stage), LastWriteAccess: vk.Access2ShaderStorageWriteBit,
				ReadStagesSinceWrite: toStage2(stage), ReadAccessSinceWrite: vk.Access2ShaderStorageReadBit,
				CurrentLayout: vk.ImageLayoutGeneral,
			},
			Range: FullRange(),
		}
	case vk.DescriptorTypeStorageBuffer:
		return AccessDecl{
			Handle: Invalid, Access: ReadWrite,
			State: ResourceState{
				LastWriteStage: toStage2(stage), LastWriteAccess: vk.Access2ShaderStorageWriteBit,
				ReadStagesSinceWrite: toStage2(stage), ReadAccessSinceWrite: vk.Access2ShaderStorageReadBit,
			},
		}
	default: // uniform buffer and uniform texel buffer
		return AccessDecl{
			Handle: Invalid, Access: Read,
			State: ResourceState{
				ReadStagesSinceWrite: toStage2(stage),
				ReadAccessSinceWrite: vk.Access2UniformReadBit,
			},
		}
	}
}

func toStage2(s vk.ShaderStageFlagBits) vk.PipelineStageFlagBits2 {
	var out vk.PipelineStageFlagBits2
	if s&vk.ShaderStageVertexBit != 0 {
		out |= vk.PipelineStage2VertexShaderBit
	}
	if s&vk.ShaderStageFragmentBit != 0 {
		out |= vk.PipelineStage2FragmentShaderBit
	}
	if s&vk.ShaderStageComputeBit != 0 {
		out |= vk.PipelineStage2ComputeShaderBit
	}
	if out == 0 {
		out = vk.PipelineStage2AllCommandsBit
	}
	return out
}
