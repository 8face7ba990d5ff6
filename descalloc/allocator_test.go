// Copyright (c) 2024, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package descalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"

	vk "github.com/goki/vulkan"
)

func TestGrowPoolSizeCapsAt4096(t *testing.T) {
	assert.EqualValues(t, 1500, growPoolSize(1000))
	assert.EqualValues(t, 4096, growPoolSize(4000))
	assert.EqualValues(t, 4096, growPoolSize(100000))
}

func TestGrowPoolSizeAlwaysIncreases(t *testing.T) {
	assert.Greater(t, growPoolSize(1), uint32(1))
	assert.Greater(t, growPoolSize(0), uint32(0))
}

func TestRetryableResults(t *testing.T) {
	assert.True(t, retryable(vk.ErrorOutOfPoolMemory))
	assert.True(t, retryable(vk.ErrorFragmentedPool))
	assert.False(t, retryable(vk.ErrorOutOfDeviceMemory))
	assert.False(t, retryable(vk.Success))
}
