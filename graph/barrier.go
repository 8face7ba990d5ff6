// Copyright (c) 2024, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package graph

import (
	vk "github.com/goki/vulkan"
)

// ImageBarrier is a synchronization-2 image memory barrier, queued into a
// BarrierBatch and emitted with a single vkCmdPipelineBarrier2 call.
type ImageBarrier struct {
	Image        vk.Image
	Range        SubresourceRange
	Aspect       vk.ImageAspectFlagBits
	SrcStage     vk.PipelineStageFlagBits2
	SrcAccess    vk.AccessFlagBits2
	DstStage     vk.PipelineStageFlagBits2
	DstAccess    vk.AccessFlagBits2
	OldLayout    vk.ImageLayout
	NewLayout    vk.ImageLayout
	SrcQueue     uint32
	DstQueue     uint32
}

// BufferBarrier is the buffer analogue of ImageBarrier (no layout field).
type BufferBarrier struct {
	Buffer    vk.Buffer
	SrcStage  vk.PipelineStageFlagBits2
	SrcAccess vk.AccessFlagBits2
	DstStage  vk.PipelineStageFlagBits2
	DstAccess vk.AccessFlagBits2
	SrcQueue  uint32
	DstQueue  uint32
}

// BarrierBatch is an ordered list of barriers synthesized before one
// pass. An empty batch means no vkCmdPipelineBarrier2 call is needed.
type BarrierBatch struct {
	Images  []ImageBarrier
	Buffers []BufferBarrier
}

func (b *BarrierBatch) Empty() bool {
	return len(b.Images) == 0 && len(b.Buffers) == 0
}

// ErrQueueFamilyMismatch is returned by AppendImageBarrier/AppendBufferBarrier
// when src and dst declare different, both-non-ignored queue families:
// the graph targets a single queue family (spec.md §1 Non-goals, §5).
type ErrQueueFamilyMismatch struct {
	Src, Dst uint32
}

func (e *ErrQueueFamilyMismatch) Error() string {
	return "graph: queue-family transition rejected (single queue family only)"
}

const ignoredQueueFamily = vk.QueueFamilyIgnored

func queueFamiliesConflict(src, dst uint32) bool {
	return src != ignoredQueueFamily && dst != ignoredQueueFamily && src != dst
}

// AppendImageBarrier computes the barrier (if any) needed to transition
// an image subresource slice from src to dst and appends it to batch.
// This is the barrier compiler of spec.md §4.4: a pure function of the
// two states plus the access direction, which never fails except for a
// queue-family mismatch.
func AppendImageBarrier(batch *BarrierBatch, img vk.Image, rng SubresourceRange, aspect vk.ImageAspectFlagBits, src, dst ResourceState, isRead bool) error {
	if queueFamiliesConflict(src.QueueFamily, dst.QueueFamily) {
		return &ErrQueueFamilyMismatch{Src: src.QueueFamily, Dst: dst.QueueFamily}
	}

	layoutChange := src.CurrentLayout != dst.CurrentLayout

	// Read-after-read with no prior write and no layout change: nothing
	// is dirty, nothing to wait on.
	if isRead && src.LastWriteAccess == 0 && !layoutChange {
		return nil
	}

	// Layout transition from UNDEFINED discards contents: source stage
	// is TOP_OF_PIPE, source access is 0, regardless of prior state.
	if src.CurrentLayout == vk.ImageLayoutUndefined && layoutChange {
		batch.Images = append(batch.Images, ImageBarrier{
			Image: img, Range: rng, Aspect: aspect,
			SrcStage: vk.PipelineStage2TopOfPipeBit, SrcAccess: 0,
			DstStage: dst.LastWriteStage | requiredDstStage(dst, isRead),
			DstAccess: requiredDstAccess(dst, isRead),
			OldLayout: src.CurrentLayout, NewLayout: dst.CurrentLayout,
			SrcQueue: ignoredQueueFamily, DstQueue: ignoredQueueFamily,
		})
		return nil
	}

	dstStage := requiredDstStage(dst, isRead)
	dstAccess := requiredDstAccess(dst, isRead)

	if isRead {
		// Multi-reader fan-out: a prior reader since the last write already
		// received a barrier that made the writer's data available. A
		// reader in a stage already covered needs nothing more unless the
		// layout changes; any other later reader gets an execution-only
		// dependency (srcAccess=0, srcStage=writer's stage).
		if src.ReadStagesSinceWrite&dstStage != 0 && !layoutChange {
			return nil
		}
		if src.ReadStagesSinceWrite != 0 {
			batch.Images = append(batch.Images, ImageBarrier{
				Image: img, Range: rng, Aspect: aspect,
				SrcStage: src.LastWriteStage, SrcAccess: 0,
				DstStage: dstStage, DstAccess: dstAccess,
				OldLayout: src.CurrentLayout, NewLayout: dst.CurrentLayout,
				SrcQueue: ignoredQueueFamily, DstQueue: ignoredQueueFamily,
			})
			return nil
		}
		// First reader since the last write. No-op when the layout is
		// unchanged and there is no pending write to make visible.
		if !layoutChange && src.LastWriteAccess == 0 {
			return nil
		}
		batch.Images = append(batch.Images, ImageBarrier{
			Image: img, Range: rng, Aspect: aspect,
			SrcStage: src.LastWriteStage, SrcAccess: src.LastWriteAccess,
			DstStage: dstStage, DstAccess: dstAccess,
			OldLayout: src.CurrentLayout, NewLayout: dst.CurrentLayout,
			SrcQueue: ignoredQueueFamily, DstQueue: ignoredQueueFamily,
		})
		return nil
	}

	// Write-after-read (or write-after-write): source must cover every
	// pending reader OR'd with the writer so the new write waits for all
	// of them to finish.
	srcStage := src.LastWriteStage | src.ReadStagesSinceWrite
	srcAccess := src.LastWriteAccess // readers never need to be "flushed"; only waited on
	if srcStage == 0 && !layoutChange {
		// Nothing to synchronize against at all.
		return nil
	}
	batch.Images = append(batch.Images, ImageBarrier{
		Image: img, Range: rng, Aspect: aspect,
		SrcStage: srcStage, SrcAccess: srcAccess,
		DstStage: dstStage, DstAccess: dstAccess,
		OldLayout: src.CurrentLayout, NewLayout: dst.CurrentLayout,
		SrcQueue: ignoredQueueFamily, DstQueue: ignoredQueueFamily,
	})
	return nil
}

// AppendBufferBarrier is the buffer analogue of AppendImageBarrier (no
// layout tracking).
func AppendBufferBarrier(batch *BarrierBatch, buf vk.Buffer, src, dst ResourceState, isRead bool) error {
	if queueFamiliesConflict(src.QueueFamily, dst.QueueFamily) {
		return &ErrQueueFamilyMismatch{Src: src.QueueFamily, Dst: dst.QueueFamily}
	}

	if isRead && src.LastWriteAccess == 0 {
		return nil
	}

	dstStage := requiredDstStage(dst, isRead)
	dstAccess := requiredDstAccess(dst, isRead)

	if isRead {
		if src.ReadStagesSinceWrite&dstStage != 0 {
			if src.LastWriteAccess == 0 {
				return nil
			}
			batch.Buffers = append(batch.Buffers, BufferBarrier{
				Buffer: buf, SrcStage: src.LastWriteStage, SrcAccess: 0,
				DstStage: dstStage, DstAccess: dstAccess,
				SrcQueue: ignoredQueueFamily, DstQueue: ignoredQueueFamily,
			})
			return nil
		}
		batch.Buffers = append(batch.Buffers, BufferBarrier{
			Buffer: buf, SrcStage: src.LastWriteStage, SrcAccess: src.LastWriteAccess,
			DstStage: dstStage, DstAccess: dstAccess,
			SrcQueue: ignoredQueueFamily, DstQueue: ignoredQueueFamily,
		})
		return nil
	}

	srcStage := src.LastWriteStage | src.ReadStagesSinceWrite
	if srcStage == 0 {
		return nil
	}
	batch.Buffers = append(batch.Buffers, BufferBarrier{
		Buffer: buf, SrcStage: srcStage, SrcAccess: src.LastWriteAccess,
		DstStage: dstStage, DstAccess: dstAccess,
		SrcQueue: ignoredQueueFamily, DstQueue: ignoredQueueFamily,
	})
	return nil
}

func requiredDstStage(dst ResourceState, isRead bool) vk.PipelineStageFlagBits2 {
	if isRead {
		return dst.ReadStagesSinceWrite
	}
	return dst.LastWriteStage
}

func requiredDstAccess(dst ResourceState, isRead bool) vk.AccessFlagBits2 {
	if isRead {
		return dst.ReadAccessSinceWrite
	}
	return dst.LastWriteAccess
}
