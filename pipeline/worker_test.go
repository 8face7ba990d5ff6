// Copyright (c) 2024, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWorkerCountHalvesForGPLAtLeastOne(t *testing.T) {
	assert.Equal(t, 1, workerCount(false))
	assert.GreaterOrEqual(t, workerCount(true), 1)
	half := runtime.NumCPU() / 2
	if half < 1 {
		half = 1
	}
	assert.Equal(t, half, workerCount(true))
}

func TestPoolWaitIdleBlocksUntilTasksDrain(t *testing.T) {
	p := newPool(2)
	defer p.Shutdown()

	var n int32
	for i := 0; i < 8; i++ {
		p.Submit(func() {
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&n, 1)
		})
	}
	p.WaitIdle()
	assert.EqualValues(t, 8, atomic.LoadInt32(&n))
}

func TestPoolSubmitAfterShutdownIsNoOp(t *testing.T) {
	p := newPool(1)
	p.Shutdown()

	var ran int32
	p.Submit(func() { atomic.AddInt32(&ran, 1) })
	assert.EqualValues(t, 0, atomic.LoadInt32(&ran))
}
