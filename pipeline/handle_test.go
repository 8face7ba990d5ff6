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

// Bind prefers the baseline until a worker installs an optimized
// pipeline, then prefers that instead — exercised without any real
// device by never calling Destroy and by installing into an empty
// optimized slot, so no Vulkan teardown call is reached.
func TestHandleBindPrefersOptimizedOnceInstalled(t *testing.T) {
	h := newHandle(vk.Device(nil), vk.PipelineLayout(1), vk.Pipeline(11))
	assert.False(t, h.IsOptimized())
	assert.Equal(t, vk.Pipeline(11), h.Bind())

	h.installOptimized(vk.Pipeline(22))
	assert.True(t, h.IsOptimized())
	assert.Equal(t, vk.Pipeline(22), h.Bind())
}

func TestHandleLayoutReturnsConstructorValue(t *testing.T) {
	h := newHandle(vk.Device(nil), vk.PipelineLayout(7), vk.Pipeline(1))
	require.Equal(t, vk.PipelineLayout(7), h.Layout())
}
