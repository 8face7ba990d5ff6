// Copyright (c) 2024, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

import (
	"os"

	vk "github.com/goki/vulkan"
)

// NewPipelineCache creates an empty (cold) pipeline cache. Suitable for
// ephemeral benchmarking caches, per spec.md §6.
func NewPipelineCache(dev vk.Device) (vk.PipelineCache, error) {
	var cache vk.PipelineCache
	ret := vk.CreatePipelineCache(dev, &vk.PipelineCacheCreateInfo{
		SType: vk.StructureTypePipelineCacheCreateInfo,
	}, nil, &cache)
	if err := NewError("CreatePipelineCache", ret); err != nil {
		return vk.NullPipelineCache, err
	}
	return cache, nil
}

// LoadPipelineCache creates a pipeline cache seeded from the opaque blob
// at path, if it exists, giving the "warm cache loaded from disk at
// startup" pattern of spec.md §6. A missing file is not an error: an
// empty cache is returned instead.
func LoadPipelineCache(dev vk.Device, path string) (vk.PipelineCache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewPipelineCache(dev)
		}
		return vk.NullPipelineCache, NewLogicalError("LoadPipelineCache", err.Error())
	}
	var cache vk.PipelineCache
	ret := vk.CreatePipelineCache(dev, &vk.PipelineCacheCreateInfo{
		SType:           vk.StructureTypePipelineCacheCreateInfo,
		InitialDataSize: uint(len(data)),
		PInitialData:    data,
	}, nil, &cache)
	if err := NewError("CreatePipelineCache", ret); err != nil {
		return vk.NullPipelineCache, err
	}
	return cache, nil
}

// SavePipelineCache persists cache's opaque blob to path, for the
// "saved at shutdown" half of spec.md §6's warm-cache pattern.
func SavePipelineCache(dev vk.Device, cache vk.PipelineCache, path string) error {
	var size uint
	ret := vk.GetPipelineCacheData(dev, cache, &size, nil)
	if err := NewError("GetPipelineCacheData", ret); err != nil {
		return err
	}
	data := make([]byte, size)
	ret = vk.GetPipelineCacheData(dev, cache, &size, data)
	if err := NewError("GetPipelineCacheData", ret); err != nil {
		return err
	}
	if err := os.WriteFile(path, data[:size], 0o644); err != nil {
		return NewLogicalError("SavePipelineCache", err.Error())
	}
	return nil
}
