package ecc

import (
	"sync"
)

// Sim is an in-memory Driver used by the test suite and by broker-level
// benchmarks on machines without hardware attached. Axes converge toward
// their target by a fixed step per position read while movement is enabled,
// which is crude but enough to exercise MOVE/STOP round trips.
type Sim struct {
	mu          sync.Mutex
	controllers []*simController
	enumErr     error
}

type simController struct {
	id       int32
	locked   bool
	firmware string
	axes     [NumAxes]*simAxis
}

type simAxis struct {
	actorType   ActorType
	actorName   string
	pos         int32
	target      int32
	amplitude   int32
	frequency   int32
	targetRange int32
	moving      bool
	output      bool
	refValid    bool
	refPos      int32
	eotFwd      bool
	eotBkwd     bool

	failReads bool
	failOps   bool
}

// simStep is how far an axis travels per position read while moving.
const simStep = 500

// SimAxisConfig seeds one simulated axis.
type SimAxisConfig struct {
	Type     ActorType
	Name     string
	Position int32
}

// NewSim builds an empty simulated driver. Use AddController to populate it.
func NewSim() *Sim {
	return &Sim{}
}

// NewSimStage builds the standard bench setup: an XYZ controller with three
// linear actors and a rotation controller with a single rotator on axis 0.
func NewSimStage(xyzID, rotID int32) *Sim {
	s := NewSim()
	s.AddController(xyzID, "1.6.2",
		&SimAxisConfig{Type: ActorLinear, Name: "ECSx5050", Position: 999730},
		&SimAxisConfig{Type: ActorLinear, Name: "ECSx5050", Position: -120040},
		&SimAxisConfig{Type: ActorLinear, Name: "ECSz5050", Position: -224330},
	)
	s.AddController(rotID, "1.6.2",
		&SimAxisConfig{Type: ActorRot, Name: "ECR3030", Position: -600530},
		nil,
		nil,
	)
	return s
}

// AddController appends a controller in the next slot. A nil axis config
// leaves that axis output empty.
func (s *Sim) AddController(id int32, firmware string, axes ...*SimAxisConfig) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := &simController{id: id, firmware: firmware}
	for i, cfg := range axes {
		if i >= NumAxes || cfg == nil {
			continue
		}
		c.axes[i] = &simAxis{
			actorType:   cfg.Type,
			actorName:   cfg.Name,
			pos:         cfg.Position,
			amplitude:   45000,
			frequency:   1000000,
			targetRange: 100,
			refValid:    true,
		}
	}
	s.controllers = append(s.controllers, c)
	return len(s.controllers) - 1
}

// Lock marks a controller as held by another host, so Connect refuses it.
func (s *Sim) Lock(slot int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controllers[slot].locked = true
}

// SetFirmware overrides the firmware string reported by a controller.
func (s *Sim) SetFirmware(slot int, version string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controllers[slot].firmware = version
}

// FailReads makes every position read on the axis return a DeviceError.
func (s *Sim) FailReads(slot, axis int, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controllers[slot].axes[axis].failReads = fail
}

// FailOps makes every control write on the axis return a DeviceError.
func (s *Sim) FailOps(slot, axis int, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controllers[slot].axes[axis].failOps = fail
}

// SetPosition moves the axis instantaneously, for test setup.
func (s *Sim) SetPosition(slot, axis int, pos int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controllers[slot].axes[axis].pos = pos
}

// Axis exposes raw axis state for assertions in tests.
func (s *Sim) Axis(slot, axis int) (pos, target int32, moving, output bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.controllers[slot].axes[axis]
	return a.pos, a.target, a.moving, a.output
}

// SetEnumerateError makes Enumerate fail, simulating an unreachable driver.
func (s *Sim) SetEnumerateError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enumErr = err
}

func (s *Sim) Enumerate() ([]DeviceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.enumErr != nil {
		return nil, s.enumErr
	}

	infos := make([]DeviceInfo, len(s.controllers))
	for i, c := range s.controllers {
		infos[i] = DeviceInfo{Slot: i, ID: c.id, Locked: c.locked}
	}
	return infos, nil
}

func (s *Sim) Connect(slot int) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if slot < 0 || slot >= len(s.controllers) {
		return nil, NotFoundError{Slot: slot}
	}
	c := s.controllers[slot]
	if c.locked {
		return nil, LockedError{Slot: slot, ID: c.id}
	}
	return &simHandle{sim: s, slot: slot, ctrl: c}, nil
}

type simHandle struct {
	sim  *Sim
	slot int
	ctrl *simController
}

func (h *simHandle) axis(op string, axis int) (*simAxis, error) {
	if axis < 0 || axis >= NumAxes || h.ctrl.axes[axis] == nil {
		return nil, DeviceError{Op: op, Slot: h.slot, Axis: axis, Code: -1}
	}
	return h.ctrl.axes[axis], nil
}

func (h *simHandle) FirmwareVersion() (string, error) {
	h.sim.mu.Lock()
	defer h.sim.mu.Unlock()
	return h.ctrl.firmware, nil
}

func (h *simHandle) IsConnected(axis int) (bool, error) {
	h.sim.mu.Lock()
	defer h.sim.mu.Unlock()
	if axis < 0 || axis >= NumAxes {
		return false, DeviceError{Op: "IsConnected", Slot: h.slot, Axis: axis, Code: -1}
	}
	return h.ctrl.axes[axis] != nil, nil
}

func (h *simHandle) Position(axis int) (int32, error) {
	h.sim.mu.Lock()
	defer h.sim.mu.Unlock()

	a, err := h.axis("Position", axis)
	if err != nil {
		return 0, err
	}
	if a.failReads {
		return 0, DeviceError{Op: "Position", Slot: h.slot, Axis: axis, Code: 4}
	}

	// Converge toward the target while movement is enabled.
	if a.moving && a.output {
		switch {
		case a.pos+simStep < a.target:
			a.pos += simStep
		case a.pos-simStep > a.target:
			a.pos -= simStep
		default:
			a.pos = a.target
			a.moving = false
		}
	}
	return a.pos, nil
}

func (h *simHandle) Status(axis int) (AxisStatus, error) {
	h.sim.mu.Lock()
	defer h.sim.mu.Unlock()

	a, err := h.axis("Status", axis)
	if err != nil {
		return AxisStatus{}, err
	}
	if a.failReads {
		return AxisStatus{}, DeviceError{Op: "Status", Slot: h.slot, Axis: axis, Code: 4}
	}

	st := AxisStatus{
		RefValid: a.refValid,
		EotFwd:   a.eotFwd,
		EotBkwd:  a.eotBkwd,
		InTarget: a.pos == a.target,
	}
	if a.moving {
		st.Moving = MoveMoving
	}
	return st, nil
}

func (h *simHandle) ReferencePosition(axis int) (int32, error) {
	h.sim.mu.Lock()
	defer h.sim.mu.Unlock()
	a, err := h.axis("ReferencePosition", axis)
	if err != nil {
		return 0, err
	}
	return a.refPos, nil
}

func (h *simHandle) Amplitude(axis int) (int32, error) {
	h.sim.mu.Lock()
	defer h.sim.mu.Unlock()
	a, err := h.axis("Amplitude", axis)
	if err != nil {
		return 0, err
	}
	return a.amplitude, nil
}

func (h *simHandle) Frequency(axis int) (int32, error) {
	h.sim.mu.Lock()
	defer h.sim.mu.Unlock()
	a, err := h.axis("Frequency", axis)
	if err != nil {
		return 0, err
	}
	return a.frequency, nil
}

func (h *simHandle) TargetRange(axis int) (int32, error) {
	h.sim.mu.Lock()
	defer h.sim.mu.Unlock()
	a, err := h.axis("TargetRange", axis)
	if err != nil {
		return 0, err
	}
	return a.targetRange, nil
}

func (h *simHandle) ActorType(axis int) (ActorType, error) {
	h.sim.mu.Lock()
	defer h.sim.mu.Unlock()
	a, err := h.axis("ActorType", axis)
	if err != nil {
		return 0, err
	}
	return a.actorType, nil
}

func (h *simHandle) ActorName(axis int) (string, error) {
	h.sim.mu.Lock()
	defer h.sim.mu.Unlock()
	a, err := h.axis("ActorName", axis)
	if err != nil {
		return "", err
	}
	return a.actorName, nil
}

func (h *simHandle) write(op string, axis int, set func(*simAxis)) error {
	h.sim.mu.Lock()
	defer h.sim.mu.Unlock()

	a, err := h.axis(op, axis)
	if err != nil {
		return err
	}
	if a.failOps {
		return DeviceError{Op: op, Slot: h.slot, Axis: axis, Code: 8}
	}
	set(a)
	return nil
}

func (h *simHandle) SetTarget(axis int, pos int32) error {
	return h.write("SetTarget", axis, func(a *simAxis) { a.target = pos })
}

func (h *simHandle) SetMoveEnable(axis int, on bool) error {
	return h.write("SetMoveEnable", axis, func(a *simAxis) { a.moving = on })
}

func (h *simHandle) SetOutput(axis int, on bool) error {
	return h.write("SetOutput", axis, func(a *simAxis) { a.output = on })
}

func (h *simHandle) SetAmplitude(axis int, millivolts int32) error {
	return h.write("SetAmplitude", axis, func(a *simAxis) { a.amplitude = millivolts })
}

func (h *simHandle) SetFrequency(axis int, millihertz int32) error {
	return h.write("SetFrequency", axis, func(a *simAxis) { a.frequency = millihertz })
}

func (h *simHandle) SetTargetRange(axis int, rng int32) error {
	return h.write("SetTargetRange", axis, func(a *simAxis) { a.targetRange = rng })
}

func (h *simHandle) Reset(axis int) error {
	return h.write("Reset", axis, func(a *simAxis) {
		a.refValid = false
		a.refPos = 0
	})
}

func (h *simHandle) Close() error { return nil }
