// Copyright (c) 2024, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	vk "github.com/goki/vulkan"

	"github.com/goki/vgraph" // package vgpu
)

// New only allocates Go-side state (worker pool, caches); it never
// touches the device, so it's safe to construct with a nil vk.Device
// across every Policy/Capabilities combination.
func TestNewResolvesGPLPolicy(t *testing.T) {
	full := vgpu.Capabilities{GraphicsPipelineLibrary: true, FastLinking: true, IndependentInterpolation: true}
	partial := vgpu.Capabilities{GraphicsPipelineLibrary: true}
	none := vgpu.Capabilities{}

	c := New(vk.Device(nil), vk.NullPipelineCache, full, Auto)
	defer c.Shutdown()
	assert.True(t, c.UsesGPL())

	c2 := New(vk.Device(nil), vk.NullPipelineCache, partial, Auto)
	defer c2.Shutdown()
	assert.False(t, c2.UsesGPL(), "Auto requires fast-linking and independent interpolation, not just the base extension")

	c3 := New(vk.Device(nil), vk.NullPipelineCache, full, ForceMonolithic)
	defer c3.Shutdown()
	assert.False(t, c3.UsesGPL())

	c4 := New(vk.Device(nil), vk.NullPipelineCache, partial, PreferGPL)
	defer c4.Shutdown()
	assert.True(t, c4.UsesGPL(), "PreferGPL only needs the base extension, not fast-linking")

	c5 := New(vk.Device(nil), vk.NullPipelineCache, none, PreferGPL)
	defer c5.Shutdown()
	assert.False(t, c5.UsesGPL())
}

func TestResolveLayoutReturnsExplicitLayoutUnchanged(t *testing.T) {
	c := New(vk.Device(nil), vk.NullPipelineCache, vgpu.Capabilities{}, ForceMonolithic)
	defer c.Shutdown()

	layout, err := c.resolveLayout(&PipelineRecipe{Layout: vk.PipelineLayout(99)})
	assert := assert.New(t)
	assert.NoError(err)
	assert.Equal(vk.PipelineLayout(99), layout)
}
