// Package ecc wraps the attocube ECC100 piezo controller driver behind a
// narrow capability interface. Everything above this package talks in terms
// of (slot, axis) pairs and raw device units: nanometres for linear actors,
// micro-degrees for goniometers and rotators.
package ecc

// NumAxes is the number of physical axis outputs per controller.
const NumAxes = 3

// MoveStatus reports the closed-loop movement state of an axis.
type MoveStatus int32

const (
	MoveIdle MoveStatus = iota
	MoveMoving
	MovePending
)

func (m MoveStatus) String() string {
	switch m {
	case MoveIdle:
		return "IDLE"
	case MoveMoving:
		return "MOVING"
	case MovePending:
		return "PENDING"
	}
	return "UNKNOWN"
}

// ActorType identifies the kind of positioner attached to an axis.
type ActorType int32

const (
	ActorLinear ActorType = iota
	ActorGonio
	ActorRot
)

func (t ActorType) String() string {
	switch t {
	case ActorLinear:
		return "Linear"
	case ActorGonio:
		return "Goniometer"
	case ActorRot:
		return "Rotator"
	}
	return "Unknown"
}

// Units returns the device unit for positions reported by this actor type.
func (t ActorType) Units() string {
	if t == ActorLinear {
		return "nm"
	}
	return "µ°"
}

// DeviceInfo describes one enumerated controller before connection.
type DeviceInfo struct {
	Slot   int
	ID     int32
	Locked bool
}

// AxisStatus is the full hardware status word for one axis.
type AxisStatus struct {
	Moving   MoveStatus
	RefValid bool
	EotFwd   bool
	EotBkwd  bool
	InTarget bool
	Error    bool
}

// Driver enumerates and connects controllers. Implementations must be safe
// for use from multiple goroutines.
type Driver interface {
	// Enumerate lists attached controllers in slot order. It fails only if
	// the underlying driver itself is unreachable.
	Enumerate() ([]DeviceInfo, error)

	// Connect opens the controller in the given slot and returns an opaque
	// handle. Connecting to a missing slot returns a NotFoundError;
	// connecting to a locked controller returns a LockedError.
	Connect(slot int) (Handle, error)
}

// Handle is an open connection to a single controller. Calls on a Handle are
// synchronous and bounded to a few hundred microseconds in the normal case.
// Handles are not required to be safe for concurrent use; Controller
// serializes access for callers that share one.
type Handle interface {
	// FirmwareVersion reports the controller firmware as a version string.
	FirmwareVersion() (string, error)

	// IsConnected reports whether an actor is attached to the axis output.
	IsConnected(axis int) (bool, error)

	// Position reads the current raw position. Reads never mutate state.
	Position(axis int) (int32, error)

	// Status reads the hardware status word for the axis.
	Status(axis int) (AxisStatus, error)

	// ReferencePosition reads the stored reference mark position.
	ReferencePosition(axis int) (int32, error)

	// Amplitude, Frequency and TargetRange read the current drive settings.
	Amplitude(axis int) (int32, error)
	Frequency(axis int) (int32, error)
	TargetRange(axis int) (int32, error)

	// ActorType and ActorName describe the attached positioner.
	ActorType(axis int) (ActorType, error)
	ActorName(axis int) (string, error)

	// SetTarget sets the closed-loop target position in device units.
	SetTarget(axis int, pos int32) error

	// SetMoveEnable toggles closed-loop movement toward the target.
	SetMoveEnable(axis int, on bool) error

	// SetOutput toggles the drive output stage for the axis.
	SetOutput(axis int, on bool) error

	// SetAmplitude sets the drive amplitude in millivolts.
	SetAmplitude(axis int, millivolts int32) error

	// SetFrequency sets the drive frequency in millihertz.
	SetFrequency(axis int, millihertz int32) error

	// SetTargetRange sets the on-target tolerance band in device units.
	SetTargetRange(axis int, rng int32) error

	// Reset clears the reference mark and error state of the axis.
	Reset(axis int) error

	Close() error
}
