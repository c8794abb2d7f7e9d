package ecc

import (
	"sync"

	"github.com/Masterminds/semver"
	"github.com/hashicorp/go-hclog"
)

const (
	// FIRMWARE_CONSTRAINT is the range of controller firmware this build has
	// been validated against.
	FIRMWARE_CONSTRAINT = "^1.0"
)

// Controller is an open controller with serialized access to its handle.
// The vendor driver is not documented as thread-safe, so every call takes
// the per-handle lock; the Sampler and the Dispatcher may therefore share
// one Controller freely.
type Controller struct {
	mu       sync.Mutex
	h        Handle
	slot     int
	id       int32
	firmware string
	axes     [NumAxes]bool
}

// Open connects the controller in the given slot, verifies its firmware
// against FIRMWARE_CONSTRAINT, probes which axis outputs have an actor
// attached and enables the drive output on each of them.
func Open(d Driver, info DeviceInfo, log hclog.Logger) (*Controller, error) {
	h, err := d.Connect(info.Slot)
	if err != nil {
		return nil, err
	}

	c := &Controller{
		h:    h,
		slot: info.Slot,
		id:   info.ID,
	}

	c.firmware, err = h.FirmwareVersion()
	if err != nil {
		h.Close()
		return nil, err
	}
	if err = checkFirmware(info.Slot, c.firmware); err != nil {
		h.Close()
		return nil, err
	}

	for axis := 0; axis < NumAxes; axis++ {
		connected, err := h.IsConnected(axis)
		if err != nil || !connected {
			continue
		}
		c.axes[axis] = true
		if err := h.SetOutput(axis, true); err != nil {
			log.Warn("could not enable output", "slot", info.Slot, "axis", axis, "error", err)
		}
	}

	return c, nil
}

// checkFirmware accepts anything satisfying the constraint plus the literal
// "DEV" reported by engineering units.
func checkFirmware(slot int, version string) error {
	v, err := semver.NewVersion(version)
	if err != nil {
		if version == "DEV" {
			return nil
		}
		return FirmwareError{Slot: slot, Version: version, Constraint: FIRMWARE_CONSTRAINT}
	}

	constraint, err := semver.NewConstraint(FIRMWARE_CONSTRAINT)
	if err != nil {
		return err
	}
	if !constraint.Check(v) {
		return FirmwareError{Slot: slot, Version: version, Constraint: FIRMWARE_CONSTRAINT}
	}
	return nil
}

// Slot returns the enumeration slot this controller was opened from.
func (c *Controller) Slot() int { return c.slot }

// ID returns the hardware id reported at enumeration.
func (c *Controller) ID() int32 { return c.id }

// Firmware returns the firmware version string read at connect.
func (c *Controller) Firmware() string { return c.firmware }

// AxisConnected reports whether an actor was attached to the axis at open.
func (c *Controller) AxisConnected(axis int) bool {
	if axis < 0 || axis >= NumAxes {
		return false
	}
	return c.axes[axis]
}

func (c *Controller) Position(axis int) (int32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.h.Position(axis)
}

func (c *Controller) Status(axis int) (AxisStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.h.Status(axis)
}

func (c *Controller) ReferencePosition(axis int) (int32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.h.ReferencePosition(axis)
}

func (c *Controller) Amplitude(axis int) (int32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.h.Amplitude(axis)
}

func (c *Controller) Frequency(axis int) (int32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.h.Frequency(axis)
}

func (c *Controller) TargetRange(axis int) (int32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.h.TargetRange(axis)
}

func (c *Controller) ActorType(axis int) (ActorType, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.h.ActorType(axis)
}

func (c *Controller) ActorName(axis int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.h.ActorName(axis)
}

func (c *Controller) SetTarget(axis int, pos int32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.h.SetTarget(axis, pos)
}

func (c *Controller) SetMoveEnable(axis int, on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.h.SetMoveEnable(axis, on)
}

func (c *Controller) SetOutput(axis int, on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.h.SetOutput(axis, on)
}

func (c *Controller) SetAmplitude(axis int, millivolts int32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.h.SetAmplitude(axis, millivolts)
}

func (c *Controller) SetFrequency(axis int, millihertz int32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.h.SetFrequency(axis, millihertz)
}

func (c *Controller) SetTargetRange(axis int, rng int32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.h.SetTargetRange(axis, rng)
}

func (c *Controller) Reset(axis int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.h.Reset(axis)
}

// Shutdown disables closed-loop movement and the drive output on every
// connected axis, then closes the handle. Best effort: errors on individual
// axes do not stop the remaining axes from being disabled.
func (c *Controller) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for axis := 0; axis < NumAxes; axis++ {
		if !c.axes[axis] {
			continue
		}
		c.h.SetMoveEnable(axis, false)
		c.h.SetOutput(axis, false)
	}
	return c.h.Close()
}
