// Copyright (c) 2024, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vk "github.com/goki/vulkan"
)

func TestLibraryCacheGetOrBuildCachesByKey(t *testing.T) {
	c := newLibraryCache()
	calls := 0
	build := func() (vk.Pipeline, error) {
		calls++
		return vk.Pipeline(calls), nil
	}

	p1, err := c.getOrBuild(42, build)
	require.NoError(t, err)
	p2, err := c.getOrBuild(42, build)
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
	assert.Equal(t, 1, calls)
}

func TestLibraryCacheDistinctKeysBuildSeparately(t *testing.T) {
	c := newLibraryCache()
	build := func(v vk.Pipeline) func() (vk.Pipeline, error) {
		return func() (vk.Pipeline, error) { return v, nil }
	}

	p1, err := c.getOrBuild(1, build(vk.Pipeline(1)))
	require.NoError(t, err)
	p2, err := c.getOrBuild(2, build(vk.Pipeline(2)))
	require.NoError(t, err)

	assert.NotEqual(t, p1, p2)
}

// The four GPL part hashes are independent: changing a field that only
// affects one part must not perturb the other three (spec.md §4.6's
// point of library reuse across recipes).
func TestGPLPartHashesAreIndependentOfUnrelatedFields(t *testing.T) {
	base := &PipelineRecipe{
		Topology:     vk.PrimitiveTopologyTriangleList,
		ColorFormats: []vk.Format{vk.FormatR8g8b8a8Unorm},
		SampleCount:  vk.SampleCount1Bit,
	}
	changedFragOutput := &PipelineRecipe{
		Topology:     base.Topology,
		ColorFormats: []vk.Format{vk.FormatR8g8b8a8Srgb},
		SampleCount:  base.SampleCount,
	}

	assert.Equal(t, hashVertexInput(base), hashVertexInput(changedFragOutput))
	assert.Equal(t, hashPreRasterization(base), hashPreRasterization(changedFragOutput))
	assert.Equal(t, hashFragmentShader(base), hashFragmentShader(changedFragOutput))
	assert.NotEqual(t, hashFragmentOutput(base), hashFragmentOutput(changedFragOutput))
}

func TestWholeRecipeHashChangesWithLayout(t *testing.T) {
	r1 := &PipelineRecipe{Layout: vk.PipelineLayout(1)}
	r2 := &PipelineRecipe{Layout: vk.PipelineLayout(2)}
	assert.NotEqual(t, wholeRecipeHash(r1), wholeRecipeHash(r2))
}
