// Copyright (c) 2024, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package graph

// slice pairs a SubresourceRange with the ResourceState it currently
// carries.
type slice struct {
	rng   SubresourceRange
	state ResourceState
}

// SubresourceMap tracks per-(mip,layer) synchronization state for one
// image resource (spec.md §4.5). The union of stored slice ranges is
// always exactly [0, mipLevels) x [0, arrayLayers); slices never overlap.
// A handful of mips/layers is the common case, so a flat slice with
// linear split/coalesce beats an interval tree in both code size and
// constant factor.
type SubresourceMap struct {
	mipLevels   uint32
	arrayLayers uint32
	slices      []slice
}

// NewSubresourceMap constructs a map covering [0,mipLevels)x[0,arrayLayers)
// as a single slice carrying initialState.
func NewSubresourceMap(mipLevels, arrayLayers uint32, initialState ResourceState) *SubresourceMap {
	m := &SubresourceMap{}
	m.Reset(mipLevels, arrayLayers, initialState)
	return m
}

// Reset collapses the map back to a single full-coverage slice, reusing
// the existing backing array to avoid heap churn (used by Compile's
// state-tracker initialization when a resource already has a map).
func (m *SubresourceMap) Reset(mipLevels, arrayLayers uint32, state ResourceState) {
	m.mipLevels = mipLevels
	m.arrayLayers = arrayLayers
	m.slices = append(m.slices[:0], slice{
		rng:   SubresourceRange{0, mipLevels, 0, arrayLayers},
		state: state,
	})
}

// QuerySlicesOverlapping yields every stored slice whose range intersects
// rng, each clipped to the intersection.
func (m *SubresourceMap) QuerySlicesOverlapping(rng SubresourceRange) []slice {
	rng = rng.resolved(m.mipLevels, m.arrayLayers)
	var out []slice
	for _, s := range m.slices {
		if s.rng.overlaps(rng) {
			out = append(out, slice{rng: s.rng.clip(rng), state: s.state})
		}
	}
	return out
}

// QueryState returns the merged ResourceState across rng: stage/access
// masks are OR-ed across every overlapping slice; layout is taken from
// any one overlapping slice (callers only call this once an appropriate
// barrier has made every slice's layout consistent across the range).
func (m *SubresourceMap) QueryState(rng SubresourceRange) ResourceState {
	var out ResourceState
	first := true
	for _, s := range m.QuerySlicesOverlapping(rng) {
		if first {
			out = s.state
			first = false
			continue
		}
		out.LastWriteStage |= s.state.LastWriteStage
		out.LastWriteAccess |= s.state.LastWriteAccess
		out.ReadStagesSinceWrite |= s.state.ReadStagesSinceWrite
		out.ReadAccessSinceWrite |= s.state.ReadAccessSinceWrite
	}
	return out
}

// SetState splits existing slices at rng's boundary, drops slices fully
// covered by rng, and inserts one new slice carrying newState for rng.
func (m *SubresourceMap) SetState(rng SubresourceRange, newState ResourceState) {
	rng = rng.resolved(m.mipLevels, m.arrayLayers)
	var kept []slice
	for _, s := range m.slices {
		if !s.rng.overlaps(rng) {
			kept = append(kept, s)
			continue
		}
		kept = append(kept, splitAround(s, rng)...)
	}
	kept = append(kept, slice{rng: rng, state: newState})
	m.slices = coalesce(kept)
}

// splitAround returns the pieces of s.rng that fall outside rng,
// preserving s.state, discarding the part that overlaps rng (the caller
// inserts the replacement for that part separately).
func splitAround(s slice, rng SubresourceRange) []slice {
	var out []slice
	// Mip bands fully outside rng's mip span, across s's whole layer span.
	if s.rng.BaseMip < rng.BaseMip {
		out = append(out, slice{rng: SubresourceRange{
			BaseMip: s.rng.BaseMip, MipCount: rng.BaseMip - s.rng.BaseMip,
			BaseLayer: s.rng.BaseLayer, LayerCount: s.rng.LayerCount,
		}, state: s.state})
	}
	if s.rng.BaseMip+s.rng.MipCount > rng.BaseMip+rng.MipCount {
		start := rng.BaseMip + rng.MipCount
		out = append(out, slice{rng: SubresourceRange{
			BaseMip: start, MipCount: (s.rng.BaseMip + s.rng.MipCount) - start,
			BaseLayer: s.rng.BaseLayer, LayerCount: s.rng.LayerCount,
		}, state: s.state})
	}
	// Within the mip band that overlaps rng, split off layer bands
	// outside rng's layer span.
	midBaseMip := max32(s.rng.BaseMip, rng.BaseMip)
	midEndMip := min32(s.rng.BaseMip+s.rng.MipCount, rng.BaseMip+rng.MipCount)
	if midEndMip <= midBaseMip {
		return out
	}
	if s.rng.BaseLayer < rng.BaseLayer {
		out = append(out, slice{rng: SubresourceRange{
			BaseMip: midBaseMip, MipCount: midEndMip - midBaseMip,
			BaseLayer: s.rng.BaseLayer, LayerCount: rng.BaseLayer - s.rng.BaseLayer,
		}, state: s.state})
	}
	if s.rng.BaseLayer+s.rng.LayerCount > rng.BaseLayer+rng.LayerCount {
		start := rng.BaseLayer + rng.LayerCount
		out = append(out, slice{rng: SubresourceRange{
			BaseMip: midBaseMip, MipCount: midEndMip - midBaseMip,
			BaseLayer: start, LayerCount: (s.rng.BaseLayer + s.rng.LayerCount) - start,
		}, state: s.state})
	}
	return out
}

// coalesce merges adjacent slices that carry byte-identical state, to
// keep the slice count from growing unboundedly across many
// fine-grained SetState calls. Not required for correctness, only to
// bound memory.
func coalesce(slices []slice) []slice {
	changed := true
	for changed {
		changed = false
		for i := 0; i < len(slices); i++ {
			for j := i + 1; j < len(slices); j++ {
				if mergeable(slices[i], slices[j]) {
					slices[i].rng = union(slices[i].rng, slices[j].rng)
					slices = append(slices[:j], slices[j+1:]...)
					changed = true
					break
				}
			}
			if changed {
				break
			}
		}
	}
	return slices
}

func mergeable(a, b slice) bool {
	if a.state != b.state {
		return false
	}
	sameLayers := a.rng.BaseLayer == b.rng.BaseLayer && a.rng.LayerCount == b.rng.LayerCount
	adjacentMips := a.rng.BaseMip+a.rng.MipCount == b.rng.BaseMip || b.rng.BaseMip+b.rng.MipCount == a.rng.BaseMip
	if sameLayers && adjacentMips {
		return true
	}
	sameMips := a.rng.BaseMip == b.rng.BaseMip && a.rng.MipCount == b.rng.MipCount
	adjacentLayers := a.rng.BaseLayer+a.rng.LayerCount == b.rng.BaseLayer || b.rng.BaseLayer+b.rng.LayerCount == a.rng.BaseLayer
	return sameMips && adjacentLayers
}

func union(a, b SubresourceRange) SubresourceRange {
	baseMip := min32(a.BaseMip, b.BaseMip)
	endMip := max32(a.BaseMip+a.MipCount, b.BaseMip+b.MipCount)
	baseLayer := min32(a.BaseLayer, b.BaseLayer)
	endLayer := max32(a.BaseLayer+a.LayerCount, b.BaseLayer+b.LayerCount)
	return SubresourceRange{baseMip, endMip - baseMip, baseLayer, endLayer - baseLayer}
}
