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

func TestSubresourceMapCoversWholeRange(t *testing.T) {
	m := NewSubresourceMap(4, 2, ResourceState{CurrentLayout: vk.ImageLayoutUndefined})
	require.Len(t, m.slices, 1)
	assert.Equal(t, SubresourceRange{0, 4, 0, 2}, m.slices[0].rng)
}

func TestSubresourceMapSetStateSplitsAndCoalesces(t *testing.T) {
	m := NewSubresourceMap(4, 1, ResourceState{CurrentLayout: vk.ImageLayoutUndefined})
	newState := ResourceState{CurrentLayout: vk.ImageLayoutGeneral}
	m.SetState(SubresourceRange{BaseMip: 1, MipCount: 2, BaseLayer: 0, LayerCount: 1}, newState)

	// Every (mip,layer) cell must still be covered, disjointly.
	var total uint32
	for _, s := range m.slices {
		total += s.rng.MipCount * s.rng.LayerCount
	}
	assert.EqualValues(t, 4, total)

	got := m.QuerySlicesOverlapping(SubresourceRange{BaseMip: 1, MipCount: 2, BaseLayer: 0, LayerCount: 1})
	require.Len(t, got, 1)
	assert.Equal(t, newState, got[0].state)
}

func TestSubresourceMapQueryStateMergesOverlapping(t *testing.T) {
	m := NewSubresourceMap(2, 1, ResourceState{})
	m.SetState(SubresourceRange{BaseMip: 0, MipCount: 1, BaseLayer: 0, LayerCount: 1}, ResourceState{
		LastWriteStage: vk.PipelineStage2ComputeShaderBit, LastWriteAccess: vk.Access2ShaderStorageWriteBit,
	})
	m.SetState(SubresourceRange{BaseMip: 1, MipCount: 1, BaseLayer: 0, LayerCount: 1}, ResourceState{
		ReadStagesSinceWrite: vk.PipelineStage2FragmentShaderBit, ReadAccessSinceWrite: vk.Access2ShaderSampledReadBit,
	})
	merged := m.QueryState(FullRange())
	assert.Equal(t, vk.PipelineStage2ComputeShaderBit, merged.LastWriteStage)
	assert.Equal(t, vk.PipelineStage2FragmentShaderBit, merged.ReadStagesSinceWrite)
}

func TestSubresourceMapResetCollapsesToOneSlice(t *testing.T) {
	m := NewSubresourceMap(4, 4, ResourceState{})
	m.SetState(SubresourceRange{BaseMip: 0, MipCount: 2, BaseLayer: 0, LayerCount: 4}, ResourceState{CurrentLayout: vk.ImageLayoutGeneral})
	assert.Greater(t, len(m.slices), 1)
	m.Reset(4, 4, ResourceState{CurrentLayout: vk.ImageLayoutUndefined})
	require.Len(t, m.slices, 1)
	assert.Equal(t, SubresourceRange{0, 4, 0, 4}, m.slices[0].rng)
}

func TestSubresourceRangeResolvedReplacesSentinels(t *testing.T) {
	r := SubresourceRange{BaseMip: 1, MipCount: AllRemainingMips, BaseLayer: 0, LayerCount: AllRemainingLayers}
	out := r.resolved(4, 6)
	assert.EqualValues(t, 3, out.MipCount)
	assert.EqualValues(t, 6, out.LayerCount)
}
