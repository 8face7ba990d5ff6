// Copyright (c) 2024, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package vgraph implements a frame-granularity Vulkan 1.3 render-graph
compiler and a background-optimizing pipeline compiler, on top of the
https://github.com/goki/vulkan Go bindings.

The render graph (package graph) turns a declarative list of passes and
their resource accesses into a correctly synchronized, layout-aware
command stream: it topologically sorts passes, tracks per-subresource
layout and access state, synthesizes synchronization-2 barriers, pools
transient resource allocations across frames, and resolves descriptor
sets from shader reflection. A structural hash of the declared graph
drives aggressive caching so that a per-frame rebuild costs only a few
microseconds once the graph's shape has stabilized.

The pipeline compiler (package pipeline) acquires a usable vk.Pipeline
in three steps: a pipeline-cache probe, a Graphics Pipeline Library
fast-link, and a background link-time-optimized rebuild performed on a
worker pool and handed off atomically once complete.

This top-level package (vgpu) supplies the ambient Vulkan plumbing both
subsystems assume: logical device and capability setup, buffer/image
allocation through an Allocator interface standing in for a VMA-style
heap manager, shader module and pipeline layout construction, and a
Reflection interface for SPIR-V binding enumeration.
*/
package vgpu
