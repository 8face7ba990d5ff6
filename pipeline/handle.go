// Copyright (c) 2024, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"sync/atomic"

	vk "github.com/goki/vulkan"
)

// Handle is the atomic baseline/optimized cell of spec.md §4.6: a
// PipelineCompiler hands one out as soon as a usable pipeline exists
// (the baseline — a fast-linked GPL combination or a monolithic
// compile), then transitions it in place to a fully link-time-optimized
// pipeline once a background worker finishes, without ever blocking a
// caller that is already recording with the baseline.
type Handle struct {
	device vk.Device
	layout vk.PipelineLayout

	baseline  vk.Pipeline
	optimized atomic.Pointer[vk.Pipeline]

	destroyed atomic.Bool
}

// newHandle wraps an already-built baseline pipeline.
func newHandle(device vk.Device, layout vk.PipelineLayout, baseline vk.Pipeline) *Handle {
	return &Handle{device: device, layout: layout, baseline: baseline}
}

// Bind returns the best pipeline currently available: the optimized one
// if a worker has already installed it, otherwise the baseline. Lock
// free — safe to call every frame from a recording thread.
func (h *Handle) Bind() vk.Pipeline {
	if p := h.optimized.Load(); p != nil {
		return *p
	}
	return h.baseline
}

// Layout returns the pipeline layout shared by the baseline and
// optimized pipelines.
func (h *Handle) Layout() vk.PipelineLayout {
	return h.layout
}

// installOptimized is called by a background worker once it has linked
// or compiled a fully optimized pipeline for this handle. It is a
// silent no-op if the handle was destroyed while the worker was
// running: the worker's result is simply discarded and the pipeline it
// built is destroyed immediately, rather than leaking or racing
// Destroy's own teardown.
func (h *Handle) installOptimized(optimized vk.Pipeline) {
	if h.destroyed.Load() {
		vk.DestroyPipeline(h.device, optimized, nil)
		return
	}
	p := new(vk.Pipeline)
	*p = optimized
	if !h.optimized.CompareAndSwap(nil, p) {
		// Lost a race with a concurrent installOptimized (shouldn't
		// happen — one worker task per handle — but stay safe) or with
		// Destroy; destroy our copy either way, never the one that won.
		vk.DestroyPipeline(h.device, optimized, nil)
		return
	}
	// Destroy may have run its own Swap(nil) (finding nothing to destroy)
	// strictly between our pre-check and the CompareAndSwap above, in
	// which case it will never revisit this slot. Re-check and reclaim
	// the pipeline ourselves if that happened, so it is never left as a
	// phantom install on an already-destroyed handle.
	if h.destroyed.Load() {
		if h.optimized.CompareAndSwap(p, nil) {
			vk.DestroyPipeline(h.device, optimized, nil)
		}
		// If the CAS above fails, Destroy's own Swap already claimed p
		// and will destroy it.
	}
}

// Destroy tears the handle down. It marks the handle destroyed first so
// any installOptimized racing in from a worker discards its result,
// then swaps the optimized slot to nil and destroys whichever pipeline
// (if any) was installed there, and finally destroys the baseline.
func (h *Handle) Destroy() {
	h.destroyed.Store(true)
	if p := h.optimized.Swap(nil); p != nil {
		vk.DestroyPipeline(h.device, *p, nil)
	}
	if h.baseline != vk.NullPipeline {
		vk.DestroyPipeline(h.device, h.baseline, nil)
		h.baseline = vk.NullPipeline
	}
}

// IsOptimized reports whether the fully optimized pipeline has already
// been installed, for diagnostics/tests.
func (h *Handle) IsOptimized() bool {
	return h.optimized.Load() != nil
}
