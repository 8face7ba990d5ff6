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

// allocateTransientImage's fast path consumes pool entries in insertion
// order once pool and frame transient counts match (spec.md §4.2 phase
// 7) — exercised here without touching a real allocator by
// pre-populating the pool directly.
func TestAllocateTransientImageFastPath(t *testing.T) {
	g := newTestGraph()
	desc := ImageDesc{Width: 32, Height: 32, Format: vk.FormatR8g8b8a8Unorm, MipLevels: 1, ArrayLayers: 1, SampleCount: vk.SampleCount1Bit, Aspect: vk.ImageAspectColorBit}
	g.imagePool = []pooledImage{{desc: desc, image: vk.Image(42), view: vk.ImageView(42)}}

	entry := &ResourceEntry{Tag: Transient, Kind: KindImage, Image: desc}
	used := make([]bool, 1)
	require.NoError(t, g.allocateTransientImage(entry, true, used))

	assert.Equal(t, vk.Image(42), entry.VkImage)
	assert.Equal(t, vk.ImageView(42), entry.VkView)
	assert.True(t, used[0])
}

// The slow path matches by descriptor equality regardless of position.
func TestAllocateTransientImageSlowPathMatchesByDescriptor(t *testing.T) {
	g := newTestGraph()
	descA := ImageDesc{Width: 16, Height: 16, Format: vk.FormatR8g8b8a8Unorm, MipLevels: 1, ArrayLayers: 1, SampleCount: vk.SampleCount1Bit, Aspect: vk.ImageAspectColorBit}
	descB := ImageDesc{Width: 32, Height: 32, Format: vk.FormatR8g8b8a8Unorm, MipLevels: 1, ArrayLayers: 1, SampleCount: vk.SampleCount1Bit, Aspect: vk.ImageAspectColorBit}
	g.imagePool = []pooledImage{
		{desc: descA, image: vk.Image(1), view: vk.ImageView(1)},
		{desc: descB, image: vk.Image(2), view: vk.ImageView(2)},
	}

	entry := &ResourceEntry{Tag: Transient, Kind: KindImage, Image: descB}
	used := make([]bool, 2)
	// fastPath=false forces the descriptor-matching scan.
	require.NoError(t, g.allocateTransientImage(entry, false, used))

	assert.Equal(t, vk.Image(2), entry.VkImage)
	assert.False(t, used[0])
	assert.True(t, used[1])
}

func TestRecycleTransientsMovesActiveToPool(t *testing.T) {
	g := newTestGraph()
	g.resources = []ResourceEntry{
		{Tag: Transient, Kind: KindImage, VkImage: vk.Image(7), VkView: vk.ImageView(7)},
	}
	g.recycleTransients()
	require.Len(t, g.imagePool, 1)
	assert.Equal(t, vk.Image(7), g.imagePool[0].image)
	assert.Equal(t, vk.NullImage, g.resources[0].VkImage)
}
