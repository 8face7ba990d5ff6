// Copyright (c) 2024, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package graph

import (
	"time"

	vk "github.com/goki/vulkan"
)

// Compile runs the full declare->compile pipeline of spec.md §4.2. On
// success the graph is ready for Execute. On failure Compile returns the
// error and leaves the graph not compiled, so Execute refuses to run;
// work already done by the phases before the failing one (resolved
// subresource ranges, accumulated usage, the cached order and hash,
// transient allocations, tracked resource states) is not rolled back.
func (g *Graph) Compile() error {
	g.isCompiled = false
	total := time.Now()
	var stats Stats

	t := time.Now()
	g.resolveSubresources()
	stats.ResolveUs = since(t)

	t = time.Now()
	g.accumulateTransientUsage()
	stats.UsageUs = since(t)

	newHash := g.structuralHash()
	cacheHit := g.haveCache && newHash == g.lastGraphHash
	stats.CacheHit = cacheHit

	var order []int
	if cacheHit {
		order = g.cachedOrder
	} else {
		t = time.Now()
		adjStart := t
		g.buildAdjacency()
		stats.AdjacencyUs = since(adjStart)

		t = time.Now()
		var err error
		order, err = g.topoSort()
		stats.SortUs = since(t)
		if err != nil {
			return &CompileError{Op: "topoSort", Err: err}
		}

		t = time.Now()
		g.computeLifetimes(order)
		stats.LifetimeUs = since(t)

		g.cachedOrder = order
		g.lastGraphHash = newHash
		g.haveCache = true
	}

	t = time.Now()
	if err := g.allocateTransients(); err != nil {
		return err
	}
	stats.AllocUs = since(t)

	t = time.Now()
	g.initStateTrackers(cacheHit)
	stats.StateInitUs = since(t)

	t = time.Now()
	compiled, imgCount, bufCount, err := g.compileBarriers(order)
	stats.BarriersUs = since(t)
	if err != nil {
		return err
	}
	g.compiled = compiled
	stats.ImageBarrierCount = imgCount
	stats.BufferBarrierCount = bufCount
	stats.PassCount = len(order)

	t = time.Now()
	g.resolveRenderTargets(order)
	stats.RenderUs = since(t)

	t = time.Now()
	if err := g.resolveDescriptors(order); err != nil {
		return err
	}
	stats.DescUs = since(t)

	stats.TotalUs = since(total)
	g.stats = stats
	g.isCompiled = true
	return nil
}

// resolveSubresources implements compile phase 1: replaces
// AllRemainingMips/AllRemainingLayers sentinels with concrete counts so
// structurally equivalent accesses hash identically regardless of
// whether the caller used a sentinel.
func (g *Graph) resolveSubresources() {
	for pi := range g.passes {
		p := &g.passes[pi]
		for ai := range p.Access {
			a := &p.Access[ai]
			r := &g.resources[a.Handle]
			if r.Kind != KindImage {
				continue
			}
			a.Range = a.Range.resolved(r.Image.MipLevels, r.Image.ArrayLayers)
		}
	}
}

// accumulateTransientUsage implements compile phase 2: OR's usage flags
// implied by each transient access's desired layout/access mask into the
// resource descriptor before allocation.
func (g *Graph) accumulateTransientUsage() {
	for pi := range g.passes {
		p := &g.passes[pi]
		for _, a := range p.Access {
			r := &g.resources[a.Handle]
			if r.Tag != Transient {
				continue
			}
			if r.Kind == KindImage {
				r.Image.Usage |= usageForImageState(a.State, a.Access)
			} else {
				r.Buffer.Usage |= usageForBufferState(a.State, a.Access)
			}
		}
	}
}

func usageForImageState(s ResourceState, access AccessType) vk.ImageUsageFlagBits {
	switch s.CurrentLayout {
	case vk.ImageLayoutColorAttachmentOptimal:
		return vk.ImageUsageColorAttachmentBit
	case vk.ImageLayoutDepthStencilAttachmentOptimal, vk.ImageLayoutDepthStencilReadOnlyOptimal:
		return vk.ImageUsageDepthStencilAttachmentBit
	case vk.ImageLayoutShaderReadOnlyOptimal:
		return vk.ImageUsageSampledBit
	case vk.ImageLayoutGeneral:
		return vk.ImageUsageStorageBit
	case vk.ImageLayoutTransferSrcOptimal:
		return vk.ImageUsageTransferSrcBit
	case vk.ImageLayoutTransferDstOptimal:
		return vk.ImageUsageTransferDstBit
	}
	if s.ReadAccessSinceWrite&vk.Access2ShaderSampledReadBit != 0 {
		return vk.ImageUsageSampledBit
	}
	return 0
}

func usageForBufferState(s ResourceState, access AccessType) vk.BufferUsageFlagBits {
	var usage vk.BufferUsageFlagBits
	if s.ReadAccessSinceWrite&vk.Access2UniformReadBit != 0 {
		usage |= vk.BufferUsageUniformBufferBit
	}
	if s.ReadAccessSinceWrite&vk.Access2ShaderStorageReadBit != 0 || s.LastWriteAccess&vk.Access2ShaderStorageWriteBit != 0 {
		usage |= vk.BufferUsageStorageBufferBit
	}
	if s.ReadAccessSinceWrite&vk.Access2VertexAttributeReadBit != 0 {
		usage |= vk.BufferUsageVertexBufferBit
	}
	if s.ReadAccessSinceWrite&vk.Access2IndexReadBit != 0 {
		usage |= vk.BufferUsageIndexBufferBit
	}
	if s.ReadAccessSinceWrite&vk.Access2IndirectCommandReadBit != 0 {
		usage |= vk.BufferUsageIndirectBufferBit
	}
	if s.LastWriteAccess&vk.Access2TransferWriteBit != 0 {
		usage |= vk.BufferUsageTransferDstBit
	}
	if s.ReadAccessSinceWrite&vk.Access2TransferReadBit != 0 {
		usage |= vk.BufferUsageTransferSrcBit
	}
	return usage
}

// buildAdjacency implements compile phase 4: for each resource, collect
// writer/reader pass indices and emit RAW/WAR/WAW edges, all pointing
// forward in declaration order, deduplicated via a flat pass x pass bit
// matrix. This forward-only rule is what lets ping-pong patterns compile
// without false cycles (spec.md §4.2 phase 4).
func (g *Graph) buildAdjacency() {
	n := len(g.passes)
	g.adj = make([]bool, n*n)
	g.inDegree = make([]int, n)

	writers := map[Handle][]int{}
	readers := map[Handle][]int{}
	for pi := range g.passes {
		for _, a := range g.passes[pi].Access {
			switch a.Access {
			case Write:
				writers[a.Handle] = append(writers[a.Handle], pi)
			case Read:
				readers[a.Handle] = append(readers[a.Handle], pi)
			case ReadWrite:
				writers[a.Handle] = append(writers[a.Handle], pi)
				readers[a.Handle] = append(readers[a.Handle], pi)
			}
		}
	}

	addEdge := func(from, to int) {
		if from == to {
			return
		}
		if g.adj[from*n+to] {
			return
		}
		g.adj[from*n+to] = true
		g.inDegree[to]++
	}

	handles := map[Handle]bool{}
	for h := range writers {
		handles[h] = true
	}
	for h := range readers {
		handles[h] = true
	}
	for h := range handles {
		ws := writers[h]
		rs := readers[h]
		// RAW: writer -> later reader.
		for _, w := range ws {
			for _, r := range rs {
				if w < r {
					addEdge(w, r)
				}
			}
		}
		// WAR: reader -> later writer.
		for _, r := range rs {
			for _, w := range ws {
				if r < w {
					addEdge(r, w)
				}
			}
		}
		// WAW: consecutive writers in declaration order.
		for i := 0; i+1 < len(ws); i++ {
			if ws[i] < ws[i+1] {
				addEdge(ws[i], ws[i+1])
			}
		}
	}
}

// topoSort implements compile phase 5: Kahn's algorithm with a FIFO
// ready queue, so passes with equal dependencies stay in declaration
// order (spec.md §8 "stable with respect to declaration order").
func (g *Graph) topoSort() ([]int, error) {
	n := len(g.passes)
	inDegree := append([]int(nil), g.inDegree...)
	var ready []int
	for i := 0; i < n; i++ {
		if inDegree[i] == 0 {
			ready = append(ready, i)
		}
	}
	order := make([]int, 0, n)
	for len(ready) > 0 {
		cur := ready[0]
		ready = ready[1:]
		order = append(order, cur)
		for j := 0; j < n; j++ {
			if !g.adj[cur*n+j] {
				continue
			}
			inDegree[j]--
			if inDegree[j] == 0 {
				ready = append(ready, j)
			}
		}
	}
	if len(order) != n {
		return nil, ErrCycle{}
	}
	return order, nil
}

// computeLifetimes implements compile phase 6: firstPass/lastPass per
// resource, used for transient pooling and storeOp selection.
func (g *Graph) computeLifetimes(order []int) {
	pos := make([]int, len(order))
	for sortedIdx, passIdx := range order {
		pos[passIdx] = sortedIdx
	}
	for i := range g.resources {
		g.resources[i].FirstPass = -1
		g.resources[i].LastPass = -1
	}
	for passIdx, p := range g.passes {
		sortedIdx := pos[passIdx]
		for _, a := range p.Access {
			r := &g.resources[a.Handle]
			if r.FirstPass == -1 || sortedIdx < r.FirstPass {
				r.FirstPass = sortedIdx
			}
			if sortedIdx > r.LastPass {
				r.LastPass = sortedIdx
			}
		}
	}
}

// initStateTrackers implements compile phase 8: existing
// SubresourceMaps/ResourceStates are reset in place to the resource's
// initial state, preserving their heap allocations; missing ones are
// constructed fresh. The same happens on a cache hit and a miss.
func (g *Graph) initStateTrackers(cacheHit bool) {
	for i := range g.resources {
		r := &g.resources[i]
		if r.Kind == KindImage {
			if g.imageMaps[i] == nil {
				g.imageMaps[i] = NewSubresourceMap(r.Image.MipLevels, r.Image.ArrayLayers, r.InitialState)
			} else {
				g.imageMaps[i].Reset(r.Image.MipLevels, r.Image.ArrayLayers, r.InitialState)
			}
		} else {
			if g.bufferStates[i] == nil {
				st := r.InitialState
				g.bufferStates[i] = &st
			} else {
				*g.bufferStates[i] = r.InitialState
			}
		}
	}
}

// compileBarriers implements compile phase 9 plus the unified-layout
// optimization: for each pass in sorted order, for each access, query
// the affected subresource(s), emit a barrier against their current
// state, and commit the new state.
func (g *Graph) compileBarriers(order []int) ([]CompiledPass, int, int, error) {
	out := make([]CompiledPass, len(order))
	imgCount, bufCount := 0, 0

	for sortedIdx, passIdx := range order {
		p := &g.passes[passIdx]
		var batch BarrierBatch
		for _, a := range p.Access {
			r := &g.resources[a.Handle]
			// ReadWrite emits two barrier computations against the same
			// destination state: one using its read fields, one using its
			// write fields (accessForDescriptor/WriteStorageImage-style
			// builders populate both halves of State for this case).
			var reads, writes bool
			switch a.Access {
			case Read:
				reads = true
			case Write:
				writes = true
			case ReadWrite:
				reads, writes = true, true
			}
			if r.Kind == KindImage {
				if reads {
					if err := g.compileImageAccess(&batch, r, a, true); err != nil {
						return nil, 0, 0, &CompileError{Op: "compileBarriers", Err: err}
					}
				}
				if writes {
					if err := g.compileImageAccess(&batch, r, a, false); err != nil {
						return nil, 0, 0, &CompileError{Op: "compileBarriers", Err: err}
					}
				}
			} else {
				if reads {
					if err := g.compileBufferAccess(&batch, r, a, true); err != nil {
						return nil, 0, 0, &CompileError{Op: "compileBarriers", Err: err}
					}
				}
				if writes {
					if err := g.compileBufferAccess(&batch, r, a, false); err != nil {
						return nil, 0, 0, &CompileError{Op: "compileBarriers", Err: err}
					}
				}
			}
		}
		imgCount += len(batch.Images)
		bufCount += len(batch.Buffers)
		out[sortedIdx] = CompiledPass{SourcePass: passIdx, Barriers: batch}
	}
	return out, imgCount, bufCount, nil
}

func (g *Graph) compileImageAccess(batch *BarrierBatch, r *ResourceEntry, a AccessDecl, isRead bool) error {
	sm := g.imageMaps[a.Handle]
	for _, sl := range sm.QuerySlicesOverlapping(a.Range) {
		src := sl.state
		dst := a.State
		if g.Caps.UnifiedLayouts && src.CurrentLayout != vk.ImageLayoutUndefined {
			src.CurrentLayout = vk.ImageLayoutGeneral
			dst.CurrentLayout = vk.ImageLayoutGeneral
		}
		if err := AppendImageBarrier(batch, r.VkImage, sl.rng, r.Image.Aspect, src, dst, isRead); err != nil {
			return err
		}
		committed := commitAccess(src, dst, isRead)
		sm.SetState(sl.rng, committed)
	}
	return nil
}

func (g *Graph) compileBufferAccess(batch *BarrierBatch, r *ResourceEntry, a AccessDecl, isRead bool) error {
	idx := a.Handle
	src := *g.bufferStates[idx]
	dst := a.State
	if err := AppendBufferBarrier(batch, r.VkBuffer, src, dst, isRead); err != nil {
		return err
	}
	*g.bufferStates[idx] = commitAccess(src, dst, isRead)
	return nil
}

// commitAccess implements the state-commit half of spec.md §4.2 phase 9:
// after a read, merge stage/access into the readers set while keeping
// the existing writer info; after a write, replace wholesale.
func commitAccess(src, dst ResourceState, isRead bool) ResourceState {
	if isRead {
		merged := src
		merged.ReadStagesSinceWrite |= dst.ReadStagesSinceWrite
		merged.ReadAccessSinceWrite |= dst.ReadAccessSinceWrite
		merged.CurrentLayout = dst.CurrentLayout
		merged.QueueFamily = dst.QueueFamily
		return merged
	}
	return ResourceState{
		LastWriteStage:  dst.LastWriteStage,
		LastWriteAccess: dst.LastWriteAccess,
		CurrentLayout:   dst.CurrentLayout,
		QueueFamily:     dst.QueueFamily,
	}
}
