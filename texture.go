// Copyright (c) 2024, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

import (
	vk "github.com/goki/vulkan"
)

// ImageFormat describes the shape of an image resource: the information
// needed to create both the vk.Image and a default vk.ImageView over it.
type ImageFormat struct {
	Width, Height uint32
	Format        vk.Format
	Usage         vk.ImageUsageFlagBits
	MipLevels     uint32
	ArrayLayers   uint32
	Samples       vk.SampleCountFlagBits
	Aspect        vk.ImageAspectFlagBits
}

// Defaults fills in the common case: one mip, one layer, 1 sample,
// color aspect.
func (f *ImageFormat) Defaults() {
	if f.MipLevels == 0 {
		f.MipLevels = 1
	}
	if f.ArrayLayers == 0 {
		f.ArrayLayers = 1
	}
	if f.Samples == 0 {
		f.Samples = vk.SampleCount1Bit
	}
	if f.Aspect == 0 {
		f.Aspect = vk.ImageAspectColorBit
	}
}

// NewImage creates a vk.Image for f via alloc, with f.Usage as the image
// usage flags (accumulated by the render graph's transient-usage
// accumulation phase before this is called).
func NewImage(alloc Allocator, f ImageFormat) (vk.Image, Allocation, error) {
	f.Defaults()
	info := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    f.Format,
		Extent:    vk.Extent3D{Width: f.Width, Height: f.Height, Depth: 1},
		MipLevels:     f.MipLevels,
		ArrayLayers:   f.ArrayLayers,
		Samples:       f.Samples,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(f.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	return alloc.CreateImage(info, UsageDeviceOnly)
}

// NewImageView creates a 2D view over img (a 2D array view when
// arrayLayers > 1) spanning mipLevels and arrayLayers, with the given
// aspect mask.
func NewImageView(dev vk.Device, img vk.Image, format vk.Format, aspect vk.ImageAspectFlagBits, mipLevels, arrayLayers uint32) (vk.ImageView, error) {
	viewType := vk.ImageViewType2d
	if arrayLayers > 1 {
		viewType = vk.ImageViewType2dArray
	}
	var view vk.ImageView
	ret := vk.CreateImageView(dev, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img,
		ViewType: viewType,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(aspect),
			BaseMipLevel:   0,
			LevelCount:     mipLevels,
			BaseArrayLayer: 0,
			LayerCount:     arrayLayers,
		},
	}, nil, &view)
	if err := NewError("CreateImageView", ret); err != nil {
		return vk.NullImageView, err
	}
	return view, nil
}

// NewBuffer creates a vk.Buffer for the given size and usage via alloc.
func NewBuffer(alloc Allocator, size int, usage vk.BufferUsageFlagBits, usageHint MemoryUsage) (vk.Buffer, Allocation, error) {
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	buf, allocn, _, err := alloc.CreateBuffer(info, usageHint, false)
	return buf, allocn, err
}
