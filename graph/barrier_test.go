// Copyright (c) 2024, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vk "github.com/goki/vulkan"
)

// Scenario 1 (spec.md §8): a pass writing a color attachment to a
// resource just imported with initial state {layout=UNDEFINED} receives
// a barrier from TOP_OF_PIPE with srcAccess=0.
func TestAppendImageBarrierUndefinedDiscard(t *testing.T) {
	var batch BarrierBatch
	src := ResourceState{CurrentLayout: vk.ImageLayoutUndefined}
	dst := ResourceState{
		LastWriteStage: vk.PipelineStage2ColorAttachmentOutputBit, LastWriteAccess: vk.Access2ColorAttachmentWriteBit,
		CurrentLayout: vk.ImageLayoutColorAttachmentOptimal,
	}
	err := AppendImageBarrier(&batch, vk.Image(1), FullRange(), vk.ImageAspectColorBit, src, dst, false)
	require.NoError(t, err)
	require.Len(t, batch.Images, 1)
	b := batch.Images[0]
	assert.Equal(t, vk.PipelineStage2TopOfPipeBit, b.SrcStage)
	assert.EqualValues(t, 0, b.SrcAccess)
	assert.Equal(t, vk.ImageLayoutUndefined, b.OldLayout)
	assert.Equal(t, vk.ImageLayoutColorAttachmentOptimal, b.NewLayout)
}

// Read-after-read without a prior write or layout change emits nothing.
func TestAppendImageBarrierReadAfterReadNoOp(t *testing.T) {
	var batch BarrierBatch
	state := ResourceState{CurrentLayout: vk.ImageLayoutShaderReadOnlyOptimal}
	err := AppendImageBarrier(&batch, vk.Image(1), FullRange(), vk.ImageAspectColorBit, state, state, true)
	require.NoError(t, err)
	assert.True(t, batch.Empty())
}

// Scenario: a two-reader fan-out where the second reader uses a
// different stage than a first reader already "covered" by a prior
// barrier produces srcAccess=0 but srcStage set to the writer's stage.
func TestAppendImageBarrierMultiReaderFanOut(t *testing.T) {
	var batch BarrierBatch
	src := ResourceState{
		LastWriteStage: vk.PipelineStage2ComputeShaderBit, LastWriteAccess: vk.Access2ShaderStorageWriteBit,
		ReadStagesSinceWrite: vk.PipelineStage2ComputeShaderBit, ReadAccessSinceWrite: vk.Access2ShaderStorageReadBit,
		CurrentLayout: vk.ImageLayoutGeneral,
	}
	dst := ResourceState{
		ReadStagesSinceWrite: vk.PipelineStage2FragmentShaderBit, ReadAccessSinceWrite: vk.Access2ShaderSampledReadBit,
		CurrentLayout: vk.ImageLayoutGeneral,
	}
	err := AppendImageBarrier(&batch, vk.Image(1), FullRange(), vk.ImageAspectColorBit, src, dst, true)
	require.NoError(t, err)
	require.Len(t, batch.Images, 1)
	b := batch.Images[0]
	assert.Equal(t, vk.PipelineStage2ComputeShaderBit, b.SrcStage)
	assert.EqualValues(t, 0, b.SrcAccess)
	assert.Equal(t, vk.PipelineStage2FragmentShaderBit, b.DstStage)
}

// Scenario: write-after-two-readers (A writes, B reads, C reads, D
// writes) produces a barrier before D whose srcStage is the union of
// A's write stage + B's read stage + C's read stage.
func TestAppendImageBarrierWriteAfterTwoReaders(t *testing.T) {
	var batch BarrierBatch
	src := ResourceState{
		LastWriteStage: vk.PipelineStage2ComputeShaderBit, LastWriteAccess: vk.Access2ShaderStorageWriteBit,
		ReadStagesSinceWrite: vk.PipelineStage2ComputeShaderBit | vk.PipelineStage2FragmentShaderBit,
		ReadAccessSinceWrite: vk.Access2ShaderStorageReadBit | vk.Access2ShaderSampledReadBit,
		CurrentLayout:        vk.ImageLayoutGeneral,
	}
	dst := ResourceState{
		LastWriteStage: vk.PipelineStage2ComputeShaderBit, LastWriteAccess: vk.Access2ShaderStorageWriteBit,
		CurrentLayout: vk.ImageLayoutGeneral,
	}
	err := AppendImageBarrier(&batch, vk.Image(1), FullRange(), vk.ImageAspectColorBit, src, dst, false)
	require.NoError(t, err)
	require.Len(t, batch.Images, 1)
	want := vk.PipelineStage2ComputeShaderBit | vk.PipelineStage2FragmentShaderBit
	assert.Equal(t, want, batch.Images[0].SrcStage)
}

func TestAppendImageBarrierQueueFamilyMismatch(t *testing.T) {
	var batch BarrierBatch
	src := ResourceState{QueueFamily: 0}
	dst := ResourceState{QueueFamily: 1}
	err := AppendImageBarrier(&batch, vk.Image(1), FullRange(), vk.ImageAspectColorBit, src, dst, false)
	require.Error(t, err)
	var mismatch *ErrQueueFamilyMismatch
	assert.ErrorAs(t, err, &mismatch)
}

func TestAppendBufferBarrierReadAfterReadNoOp(t *testing.T) {
	var batch BarrierBatch
	state := ResourceState{}
	err := AppendBufferBarrier(&batch, vk.Buffer(1), state, state, true)
	require.NoError(t, err)
	assert.True(t, batch.Empty())
}

func TestAppendBufferBarrierWriteAfterRead(t *testing.T) {
	var batch BarrierBatch
	src := ResourceState{
		ReadStagesSinceWrite: vk.PipelineStage2VertexShaderBit, ReadAccessSinceWrite: vk.Access2UniformReadBit,
	}
	dst := ResourceState{
		LastWriteStage: vk.PipelineStage2TransferBit, LastWriteAccess: vk.Access2TransferWriteBit,
	}
	err := AppendBufferBarrier(&batch, vk.Buffer(1), src, dst, false)
	require.NoError(t, err)
	require.Len(t, batch.Buffers, 1)
	assert.Equal(t, vk.PipelineStage2VertexShaderBit, batch.Buffers[0].SrcStage)
}
