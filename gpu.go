// Copyright (c) 2024, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

import (
	vk "github.com/goki/vulkan"
)

// Capabilities records the Vulkan 1.3 optional features that the render
// graph and pipeline compiler probe for and adapt to at runtime. None of
// these are required; their absence only disables an optimization.
type Capabilities struct {

	// UnifiedLayouts is true when the platform reports that image layouts
	// are unified, letting the graph suppress layout transitions while
	// still emitting the execution/memory dependency.
	UnifiedLayouts bool

	// GraphicsPipelineLibrary is true when VK_EXT_graphics_pipeline_library
	// is available.
	GraphicsPipelineLibrary bool

	// FastLinking is true when the platform supports linking GPL parts
	// without whole-pipeline optimization (graphicsPipelineLibraryFastLinking).
	FastLinking bool

	// IndependentInterpolation is true when the fragment-output and
	// pre-rasterization GPL parts can vary interpolation decoration
	// independently (graphicsPipelineLibraryIndependentInterpolationDecoration).
	IndependentInterpolation bool

	// PipelineCreationCacheControl is true when VK_EXT_pipeline_creation_cache_control
	// is available, enabling the "fail on compile required" cache-probe step.
	PipelineCreationCacheControl bool

	// PushDescriptors is true when VK_KHR_push_descriptor is available.
	PushDescriptors bool

	// MemoryBudget is true when VK_EXT_memory_budget is available.
	MemoryBudget bool

	// DeviceFault is true when VK_EXT_device_fault is available.
	DeviceFault bool

	// ShaderInvocationReorder records support for reorder hints; it has
	// no behavioral effect on the graph or pipeline compiler.
	ShaderInvocationReorder bool
}

// SupportsGPL reports whether the full GPL fast-link path (spec.md §4.6)
// is usable: GPL itself, fast linking, and independent interpolation all
// present.
func (c Capabilities) SupportsGPL() bool {
	return c.GraphicsPipelineLibrary && c.FastLinking && c.IndependentInterpolation
}

// GPU wraps a Vulkan physical device plus the properties and optional
// capabilities probed from it. GPU is shared (read-only after Init) by
// every Device, Graph, and PipelineCompiler built against it.
type GPU struct {
	Name string

	// GPU is the underlying physical device handle.
	GPU vk.PhysicalDevice

	// GPUProperties holds physical-device properties and limits.
	GPUProperties vk.PhysicalDeviceProperties

	// MemoryProperties holds physical-device memory type/heap info, used
	// by the Allocator to pick memory types.
	MemoryProperties vk.PhysicalDeviceMemoryProperties

	// Caps holds the optional-capability probe results (§6).
	Caps Capabilities

	// DeviceExts lists the device extension names to enable at vk.CreateDevice time.
	DeviceExts []string

	// ValidationLayers lists layer names to enable, empty in release builds.
	ValidationLayers []string

	// Debug turns on verbose graph/pipeline diagnostics (DumpLog, etc).
	Debug bool
}

// Init fills GPUProperties and MemoryProperties from the physical device
// handle. Capability probing (Caps) is left to the caller, which
// typically inspects vk.GetPhysicalDeviceFeatures2 chains the bindings
// expose; this keeps GPU itself free of any particular extension-struct
// layout assumption.
func (gp *GPU) Init(pd vk.PhysicalDevice) {
	gp.GPU = pd
	vk.GetPhysicalDeviceProperties(pd, &gp.GPUProperties)
	gp.GPUProperties.Deref()
	gp.GPUProperties.Limits.Deref()
	vk.GetPhysicalDeviceMemoryProperties(pd, &gp.MemoryProperties)
	gp.MemoryProperties.Deref()
	gp.Name = vk.ToString(gp.GPUProperties.DeviceName[:])
}
