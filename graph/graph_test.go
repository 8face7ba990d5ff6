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

// Scenario 1 (spec.md §8): minimal import.
func TestCompileMinimalImport(t *testing.T) {
	g := newTestGraph()
	img := g.ImportImage(vk.Image(1), vk.ImageView(1), vk.FormatR8g8b8a8Unorm, 64, 64, 1, 1,
		ResourceState{CurrentLayout: vk.ImageLayoutUndefined}, "color")
	g.AddPass("draw", Graphics, func(b *PassBuilder) {
		b.SetColorTarget(0, img, vk.AttachmentLoadOpClear, vk.ClearColorValue{})
	}, func(ctx *PassContext, cmd vk.CommandBuffer) {})

	require.NoError(t, g.Compile())
	stats := g.Stats()
	assert.Equal(t, 1, stats.PassCount)
	assert.GreaterOrEqual(t, stats.ImageBarrierCount, 1)

	require.Len(t, g.compiled[0].Barriers.Images, 1)
	b := g.compiled[0].Barriers.Images[0]
	assert.Equal(t, vk.ImageLayoutUndefined, b.OldLayout)
	assert.Equal(t, vk.ImageLayoutColorAttachmentOptimal, b.NewLayout)
}

// Scenario 2: two-pass dependency over one imported storage image.
func TestCompileTwoPassDependency(t *testing.T) {
	g := newTestGraph()
	img := g.ImportImage(vk.Image(1), vk.ImageView(1), vk.FormatR8g8b8a8Unorm, 64, 64, 1, 1,
		ResourceState{CurrentLayout: vk.ImageLayoutGeneral}, "storage")
	g.AddPass("A", Compute, func(b *PassBuilder) { b.WriteStorageImage(img) }, nil)
	g.AddPass("B", Compute, func(b *PassBuilder) { b.ReadStorageImage(img) }, nil)

	require.NoError(t, g.Compile())
	require.Len(t, g.cachedOrder, 2)
	assert.Equal(t, []int{0, 1}, g.cachedOrder)

	// Pass B (sorted index 1) should carry the barrier; no layout change.
	bBarriers := g.compiled[1].Barriers.Images
	require.Len(t, bBarriers, 1)
	assert.Equal(t, vk.PipelineStage2ComputeShaderBit, bBarriers[0].SrcStage)
	assert.Equal(t, vk.Access2ShaderStorageWriteBit, bBarriers[0].SrcAccess)
	assert.Equal(t, vk.Access2ShaderStorageReadBit, bBarriers[0].DstAccess)
	assert.Equal(t, bBarriers[0].OldLayout, bBarriers[0].NewLayout)
}

// Scenario 4: ping-pong compiles without a false cycle.
func TestCompilePingPongNoCycle(t *testing.T) {
	g := newTestGraph()
	x := g.ImportImage(vk.Image(1), vk.ImageView(1), vk.FormatR8g8b8a8Unorm, 16, 16, 1, 1, ResourceState{CurrentLayout: vk.ImageLayoutGeneral}, "x")
	y := g.ImportImage(vk.Image(2), vk.ImageView(2), vk.FormatR8g8b8a8Unorm, 16, 16, 1, 1, ResourceState{CurrentLayout: vk.ImageLayoutGeneral}, "y")
	g.AddPass("A", Compute, func(b *PassBuilder) {
		b.WriteStorageImage(x)
		b.ReadStorageImage(y)
	}, nil)
	g.AddPass("B", Compute, func(b *PassBuilder) {
		b.WriteStorageImage(y)
		b.ReadStorageImage(x)
	}, nil)

	require.NoError(t, g.Compile())
	assert.Equal(t, []int{0, 1}, g.cachedOrder)
}

// Scenario 5: multi-reader correctness — writer then two readers.
func TestCompileMultiReaderFanOut(t *testing.T) {
	g := newTestGraph()
	img := g.ImportImage(vk.Image(1), vk.ImageView(1), vk.FormatR8g8b8a8Unorm, 64, 64, 1, 1,
		ResourceState{CurrentLayout: vk.ImageLayoutGeneral}, "shared")
	g.AddPass("writer", Compute, func(b *PassBuilder) { b.WriteStorageImage(img) }, nil)
	g.AddPass("computeReader", Compute, func(b *PassBuilder) { b.ReadStorageImage(img) }, nil)
	g.AddPass("fragmentReader", Graphics, func(b *PassBuilder) { b.ReadStorageImage(img) }, nil)

	require.NoError(t, g.Compile())
	order := g.cachedOrder
	require.Len(t, order, 3)
	assert.Equal(t, 0, order[0]) // writer must run first.

	// The second reader's barrier must still order against the writer's
	// stage even though a prior reader already consumed the write.
	fragBarriers := g.compiled[order2(order, 2)].Barriers.Images
	require.Len(t, fragBarriers, 1)
	assert.Equal(t, vk.PipelineStage2ComputeShaderBit, fragBarriers[0].SrcStage)
	assert.Equal(t, vk.PipelineStage2FragmentShaderBit, fragBarriers[0].DstStage)
}

// order2 returns the sorted-position index whose SourcePass equals want.
func order2(order []int, want int) int {
	for i, p := range order {
		if p == want {
			return i
		}
	}
	return -1
}

func TestCompileCycleDetected(t *testing.T) {
	g := newTestGraph()
	img := g.ImportImage(vk.Image(1), vk.ImageView(1), vk.FormatR8g8b8a8Unorm, 4, 4, 1, 1, ResourceState{}, "x")
	img2 := g.ImportImage(vk.Image(2), vk.ImageView(2), vk.FormatR8g8b8a8Unorm, 4, 4, 1, 1, ResourceState{}, "y")
	g.AddPass("a", Graphics, func(b *PassBuilder) { b.WriteStorageImage(img) }, nil)
	g.AddPass("b", Graphics, func(b *PassBuilder) { b.WriteStorageImage(img2) }, nil)
	require.NoError(t, g.Compile())

	// Declaration order alone never produces a cycle (spec.md §4.2 phase
	// 4's forward-only construction); exercise ErrCycle by forcing a
	// mutual dependency directly on the adjacency matrix.
	n := len(g.passes)
	g.adj = make([]bool, n*n)
	g.adj[0*n+1] = true
	g.adj[1*n+0] = true
	g.inDegree = []int{1, 1}
	_, err := g.topoSort()
	require.Error(t, err)
	assert.ErrorAs(t, err, new(ErrCycle))
}

func TestCompileIsIdempotentOnCacheHit(t *testing.T) {
	g := newTestGraph()
	img := g.ImportImage(vk.Image(1), vk.ImageView(1), vk.FormatR8g8b8a8Unorm, 64, 64, 1, 1,
		ResourceState{CurrentLayout: vk.ImageLayoutUndefined}, "color")
	setup := func(b *PassBuilder) { b.WriteColorAttachment(img) }
	g.AddPass("draw", Graphics, setup, nil)
	require.NoError(t, g.Compile())
	assert.False(t, g.Stats().CacheHit)

	g.Reset()
	img = g.ImportImage(vk.Image(1), vk.ImageView(1), vk.FormatR8g8b8a8Unorm, 64, 64, 1, 1,
		ResourceState{CurrentLayout: vk.ImageLayoutUndefined}, "color")
	g.AddPass("draw", Graphics, func(b *PassBuilder) { b.WriteColorAttachment(img) }, nil)
	require.NoError(t, g.Compile())
	assert.True(t, g.Stats().CacheHit)
}
