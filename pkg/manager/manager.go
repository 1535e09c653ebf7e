// Package manager implements server-side channel allocation across client
// sessions sharing one or more AMBE devices.
package manager

import (
	"errors"
	"sync"

	"github.com/janakj/ambe/pkg/device"
	"github.com/janakj/ambe/pkg/scheduler"
)

// ErrDeviceExists is returned by Add when id is already registered.
var ErrDeviceExists = errors.New("manager: device already registered")

// ErrUnknownDevice is returned when an operation names a device id that
// was never Add-ed.
var ErrUnknownDevice = errors.New("manager: unknown device id")

// ErrNoFreeChannel is returned by AcquireChannel when every registered
// device's channels are already in use.
var ErrNoFreeChannel = errors.New("manager: no channels left")

// ErrBadChannel is returned by ReleaseChannel when channel is out of
// range for the named device.
var ErrBadChannel = errors.New("manager: channel number not supported by this device")

type entry struct {
	dev       device.UsesParity
	scheduler scheduler.Scheduler
	channels  []bool
}

// DeviceManager tracks channel allocation across one or more registered
// AMBE devices, each identified by an opaque id (typically its URI). A
// single device may be shared by many remote client sessions, each bound
// to one channel; the manager's job is to hand out channels without
// double-booking them, grounded on original_source/device.h/.cc's
// DeviceManager.
//
// It intentionally holds the device's Scheduler, not the higher-level
// api.API: original_source/ambed.cc's bind() forwards raw packets between
// a client connection and the scheduler directly (pkg/remote.Handler does
// the same), reserving the API façade for the server's own local startup
// sequence (reset, prodid, parity mode).
type DeviceManager struct {
	mu      sync.Mutex
	devices map[string]*entry
}

// New returns an empty DeviceManager.
func New() *DeviceManager {
	return &DeviceManager{devices: make(map[string]*entry)}
}

// Add registers a device under id, bound to an already-started scheduler
// over channels independent channels.
func (m *DeviceManager) Add(id string, dev device.UsesParity, sched scheduler.Scheduler, channels int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.devices[id]; ok {
		return ErrDeviceExists
	}
	m.devices[id] = &entry{dev: dev, scheduler: sched, channels: make([]bool, channels)}
	return nil
}

// AcquireChannel returns the number of the first free channel on the named
// device, marking it in use. It returns ErrUnknownDevice if deviceID was
// never Add-ed, and ErrNoFreeChannel if all of that device's channels are
// already bound to other sessions.
func (m *DeviceManager) AcquireChannel(deviceID string) (channel int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.devices[deviceID]
	if !ok {
		return 0, ErrUnknownDevice
	}
	for i, inUse := range e.channels {
		if !inUse {
			e.channels[i] = true
			return i, nil
		}
	}
	return 0, ErrNoFreeChannel
}

// ReleaseChannel marks channel on device deviceID free again.
func (m *DeviceManager) ReleaseChannel(deviceID string, channel int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.devices[deviceID]
	if !ok {
		return ErrUnknownDevice
	}
	if channel < 0 || channel >= len(e.channels) {
		return ErrBadChannel
	}
	e.channels[channel] = false
	return nil
}

// Device returns the registered device and scheduler for deviceID.
func (m *DeviceManager) Device(deviceID string) (device.UsesParity, scheduler.Scheduler, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.devices[deviceID]
	if !ok {
		return nil, nil, false
	}
	return e.dev, e.scheduler, true
}
