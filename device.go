// Copyright (c) 2022, The GoKi Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vgpu

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
)

// Device holds a logical device and its associated queue. A Device is
// bound to a single queue family (the library targets a single queue
// family; see the Non-goals in spec.md §1).
type Device struct {

	// Device is the logical device.
	Device vk.Device

	// QueueFamily is the queue family index this device was created for.
	QueueFamily uint32

	// Queue is the queue obtained from QueueFamily.
	Queue vk.Queue
}

// Init finds a queue family matching flags and creates a logical device
// bound to it.
func (dv *Device) Init(gp *GPU, flags vk.QueueFlagBits) error {
	if err := dv.findQueue(gp, flags); err != nil {
		return err
	}
	return dv.makeDevice(gp)
}

func (dv *Device) findQueue(gp *GPU, flags vk.QueueFlagBits) error {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(gp.GPU, &count, nil)
	if count == 0 {
		return NewLogicalError("findQueue", "no queue families found on GPU "+gp.Name)
	}
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(gp.GPU, &count, props)

	required := vk.QueueFlags(flags)
	for i := uint32(0); i < count; i++ {
		props[i].Deref()
		if props[i].QueueFlags&required != 0 {
			dv.QueueFamily = i
			return nil
		}
	}
	return NewLogicalError("findQueue", fmt.Sprintf("no queue family on GPU %s supports flags %v", gp.Name, flags))
}

func (dv *Device) makeDevice(gp *GPU) error {
	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: dv.QueueFamily,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}

	sync2 := vk.PhysicalDeviceSynchronization2Features{
		SType:             vk.StructureTypePhysicalDeviceSynchronization2Features,
		Synchronization2:  vk.True,
	}
	dynRender := vk.PhysicalDeviceDynamicRenderingFeatures{
		SType:            vk.StructureTypePhysicalDeviceDynamicRenderingFeatures,
		PNext:            unsafe.Pointer(&sync2),
		DynamicRendering: vk.True,
	}
	bda := vk.PhysicalDeviceBufferDeviceAddressFeatures{
		SType:               vk.StructureTypePhysicalDeviceBufferDeviceAddressFeatures,
		PNext:               unsafe.Pointer(&dynRender),
		BufferDeviceAddress: vk.True,
	}
	timeline := vk.PhysicalDeviceTimelineSemaphoreFeatures{
		SType:             vk.StructureTypePhysicalDeviceTimelineSemaphoreFeatures,
		PNext:             unsafe.Pointer(&bda),
		TimelineSemaphore: vk.True,
	}

	feats := vk.PhysicalDeviceFeatures{
		SamplerAnisotropy: vk.True,
	}

	var device vk.Device
	ret := vk.CreateDevice(gp.GPU, &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		PNext:                   unsafe.Pointer(&timeline),
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(gp.DeviceExts)),
		PpEnabledExtensionNames: gp.DeviceExts,
		EnabledLayerCount:       uint32(len(gp.ValidationLayers)),
		PpEnabledLayerNames:     gp.ValidationLayers,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{feats},
	}, nil, &device)
	if err := NewError("CreateDevice", ret); err != nil {
		return err
	}
	dv.Device = device

	var queue vk.Queue
	vk.GetDeviceQueue(dv.Device, dv.QueueFamily, 0, &queue)
	dv.Queue = queue
	return nil
}

// WaitIdle blocks until the device is idle. Useful before Destroy, or
// before reusing a resource whose prior use hasn't been fenced.
func (dv *Device) WaitIdle() {
	if dv.Device == nil {
		return
	}
	vk.DeviceWaitIdle(dv.Device)
}

// Destroy waits for the device to go idle and destroys it.
func (dv *Device) Destroy() {
	if dv.Device == nil {
		return
	}
	vk.DeviceWaitIdle(dv.Device)
	vk.DestroyDevice(dv.Device, nil)
	dv.Device = nil
}

// NewGraphicsDevice returns a new Device bound to a graphics-capable
// queue family on gp.
func NewGraphicsDevice(gp *GPU) (*Device, error) {
	dev := &Device{}
	if err := dev.Init(gp, vk.QueueGraphicsBit); err != nil {
		return nil, err
	}
	return dev, nil
}

// NewComputeDevice returns a new Device bound to a compute-capable queue
// family on gp.
func NewComputeDevice(gp *GPU) (*Device, error) {
	dev := &Device{}
	if err := dev.Init(gp, vk.QueueComputeBit); err != nil {
		return nil, err
	}
	return dev, nil
}
