package ecc

import (
	"errors"
	"fmt"
)

// ErrDriverUnreachable is returned when the vendor driver library is not
// present on the host at all.
var ErrDriverUnreachable = errors.New("ecc: driver unreachable")

type NotFoundError struct {
	Slot int
}

func (err NotFoundError) Error() string {
	return fmt.Sprintf("no controller in slot %d", err.Slot)
}

type LockedError struct {
	Slot int
	ID   int32
}

func (err LockedError) Error() string {
	return fmt.Sprintf("controller %d (slot %d) is locked by another host", err.ID, err.Slot)
}

// DeviceError wraps a non-zero return code from a driver call.
type DeviceError struct {
	Op   string
	Slot int
	Axis int
	Code int
}

func (err DeviceError) Error() string {
	return fmt.Sprintf("%s failed on slot %d axis %d (code %d)", err.Op, err.Slot, err.Axis, err.Code)
}

type FirmwareError struct {
	Slot       int
	Version    string
	Constraint string
}

func (err FirmwareError) Error() string {
	return fmt.Sprintf("controller in slot %d runs firmware %s - require %s", err.Slot, err.Version, err.Constraint)
}
