// Copyright (c) 2024, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package graph

import (
	"fmt"
	"strings"

	vk "github.com/goki/vulkan"
)

type stageBit struct {
	bit  vk.PipelineStageFlagBits2
	name string
}

var stageBits = []stageBit{
	{vk.PipelineStage2TopOfPipeBit, "TOP_OF_PIPE"},
	{vk.PipelineStage2BottomOfPipeBit, "BOTTOM_OF_PIPE"},
	{vk.PipelineStage2DrawIndirectBit, "DRAW_INDIRECT"},
	{vk.PipelineStage2VertexInputBit, "VERTEX_INPUT"},
	{vk.PipelineStage2VertexShaderBit, "VERTEX_SHADER"},
	{vk.PipelineStage2FragmentShaderBit, "FRAGMENT_SHADER"},
	{vk.PipelineStage2EarlyFragmentTestsBit, "EARLY_FRAGMENT_TESTS"},
	{vk.PipelineStage2LateFragmentTestsBit, "LATE_FRAGMENT_TESTS"},
	{vk.PipelineStage2ColorAttachmentOutputBit, "COLOR_ATTACHMENT_OUTPUT"},
	{vk.PipelineStage2ComputeShaderBit, "COMPUTE_SHADER"},
	{vk.PipelineStage2TransferBit, "TRANSFER"},
	{vk.PipelineStage2AllCommandsBit, "ALL_COMMANDS"},
}

type accessBit struct {
	bit  vk.AccessFlagBits2
	name string
}

var accessBits = []accessBit{
	{vk.Access2IndirectCommandReadBit, "INDIRECT_COMMAND_READ"},
	{vk.Access2IndexReadBit, "INDEX_READ"},
	{vk.Access2VertexAttributeReadBit, "VERTEX_ATTRIBUTE_READ"},
	{vk.Access2UniformReadBit, "UNIFORM_READ"},
	{vk.Access2InputAttachmentReadBit, "INPUT_ATTACHMENT_READ"},
	{vk.Access2ShaderSampledReadBit, "SHADER_SAMPLED_READ"},
	{vk.Access2ShaderStorageReadBit, "SHADER_STORAGE_READ"},
	{vk.Access2ShaderStorageWriteBit, "SHADER_STORAGE_WRITE"},
	{vk.Access2ColorAttachmentReadBit, "COLOR_ATTACHMENT_READ"},
	{vk.Access2ColorAttachmentWriteBit, "COLOR_ATTACHMENT_WRITE"},
	{vk.Access2DepthStencilAttachmentReadBit, "DEPTH_STENCIL_ATTACHMENT_READ"},
	{vk.Access2DepthStencilAttachmentWriteBit, "DEPTH_STENCIL_ATTACHMENT_WRITE"},
	{vk.Access2TransferReadBit, "TRANSFER_READ"},
	{vk.Access2TransferWriteBit, "TRANSFER_WRITE"},
}

func decodeStage(s vk.PipelineStageFlagBits2) string {
	if s == 0 {
		return "NONE"
	}
	var names []string
	for _, sb := range stageBits {
		if s&sb.bit != 0 {
			names = append(names, sb.name)
		}
	}
	if len(names) == 0 {
		return fmt.Sprintf("%#x", uint64(s))
	}
	return strings.Join(names, "|")
}

func decodeAccess(a vk.AccessFlagBits2) string {
	if a == 0 {
		return "NONE"
	}
	var names []string
	for _, ab := range accessBits {
		if a&ab.bit != 0 {
			names = append(names, ab.name)
		}
	}
	if len(names) == 0 {
		return fmt.Sprintf("%#x", uint64(a))
	}
	return strings.Join(names, "|")
}

func decodeLayout(l vk.ImageLayout) string {
	switch l {
	case vk.ImageLayoutUndefined:
		return "UNDEFINED"
	case vk.ImageLayoutGeneral:
		return "GENERAL"
	case vk.ImageLayoutColorAttachmentOptimal:
		return "COLOR_ATTACHMENT_OPTIMAL"
	case vk.ImageLayoutDepthStencilAttachmentOptimal:
		return "DEPTH_STENCIL_ATTACHMENT_OPTIMAL"
	case vk.ImageLayoutDepthStencilReadOnlyOptimal:
		return "DEPTH_STENCIL_READ_ONLY_OPTIMAL"
	case vk.ImageLayoutShaderReadOnlyOptimal:
		return "SHADER_READ_ONLY_OPTIMAL"
	case vk.ImageLayoutTransferSrcOptimal:
		return "TRANSFER_SRC_OPTIMAL"
	case vk.ImageLayoutTransferDstOptimal:
		return "TRANSFER_DST_OPTIMAL"
	case vk.ImageLayoutPresentSrc:
		return "PRESENT_SRC"
	default:
		return fmt.Sprintf("%#x", uint64(l))
	}
}
