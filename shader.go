// Copyright (c) 2024, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

import (
	"os"

	vk "github.com/goki/vulkan"
)

// LoadSPIRV reads a compiled SPIR-V binary from path. File I/O for SPIR-V
// is otherwise out of scope per spec.md §1; this is the one narrow
// exception needed to turn a path-based PipelineRecipe into shader
// modules.
func LoadSPIRV(path string) ([]byte, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, NewLogicalError("LoadSPIRV", err.Error())
	}
	if len(code)%4 != 0 {
		return nil, NewLogicalError("LoadSPIRV", path+": SPIR-V length not a multiple of 4")
	}
	return code, nil
}

// NewShaderModule creates a vk.ShaderModule from SPIR-V bytecode.
func NewShaderModule(dev vk.Device, code []byte) (vk.ShaderModule, error) {
	var mod vk.ShaderModule
	ret := vk.CreateShaderModule(dev, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    sliceToUint32Ptr(code),
	}, nil, &mod)
	if err := NewError("CreateShaderModule", ret); err != nil {
		return vk.NullShaderModule, err
	}
	return mod, nil
}

// NewPipelineLayout builds a vk.PipelineLayout from a list of descriptor
// set layouts (ordered by set index) and push-constant ranges.
func NewPipelineLayout(dev vk.Device, setLayouts []vk.DescriptorSetLayout, pushConstants []PushConstantRange) (vk.PipelineLayout, error) {
	ranges := make([]vk.PushConstantRange, len(pushConstants))
	for i, pc := range pushConstants {
		ranges[i] = vk.PushConstantRange{
			StageFlags: vk.ShaderStageFlags(pc.Stages),
			Offset:     pc.Offset,
			Size:       pc.Size,
		}
	}
	var layout vk.PipelineLayout
	ret := vk.CreatePipelineLayout(dev, &vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(setLayouts)),
		PSetLayouts:            setLayouts,
		PushConstantRangeCount: uint32(len(ranges)),
		PPushConstantRanges:    ranges,
	}, nil, &layout)
	if err := NewError("CreatePipelineLayout", ret); err != nil {
		return vk.NullPipelineLayout, err
	}
	return layout, nil
}

// sliceToUint32Ptr copies a byte slice of little-endian SPIR-V words
// into the []uint32 the Vulkan binding expects for PCode. Trailing bytes
// past the last whole 4-byte word are dropped.
func sliceToUint32Ptr(code []byte) []uint32 {
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = uint32(code[i*4]) | uint32(code[i*4+1])<<8 | uint32(code[i*4+2])<<16 | uint32(code[i*4+3])<<24
	}
	return words
}
