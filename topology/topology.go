// Package topology maps the logical stage axes X, Y, Z and R onto physical
// (controller slot, axis index) pairs. The map is built once at startup from
// the enumerated device set and never changes afterwards; re-cabling the
// stage requires a restart.
package topology

// Axis is a logical stage axis.
type Axis uint8

const (
	X Axis = iota
	Y
	Z
	R

	NumAxes = 4
)

func (a Axis) String() string {
	switch a {
	case X:
		return "X"
	case Y:
		return "Y"
	case Z:
		return "Z"
	case R:
		return "R"
	}
	return "UNKNOWN"
}

// Bit returns the axis' position in a sample valid mask.
func (a Axis) Bit() uint8 { return 1 << a }

// ParseAxis resolves an axis name from the command grammar. Names are
// case-sensitive.
func ParseAxis(s string) (Axis, bool) {
	switch s {
	case "X":
		return X, true
	case "Y":
		return Y, true
	case "Z":
		return Z, true
	case "R":
		return R, true
	}
	return 0, false
}

// Address locates one physical axis output.
type Address struct {
	Slot  int
	Index int
}

// Entry is the resolution of one logical axis.
type Entry struct {
	Axis      Axis
	Addr      Address
	Connected bool
}

// Layout names the controllers that carry the stage, by hardware id. The
// ids are fixed per deployment, not per enumeration order.
type Layout struct {
	XYZControllerID int32
	RControllerID   int32
}

// DefaultLayout matches the standard microscope build.
var DefaultLayout = Layout{XYZControllerID: 4, RControllerID: 2222}

// Axis indices on the XYZ controller. The wiring loom lands Y on output 0
// and X on output 1.
const (
	xyzIndexY = 0
	xyzIndexX = 1
	xyzIndexZ = 2

	rotIndexR = 0
)

// Map is the immutable logical-to-physical axis table.
type Map struct {
	entries [NumAxes]Entry
}

// Build resolves the layout against an enumerated device set. ids holds the
// observed controller id per slot; present reports whether an actor is
// attached at (slot, index). Controllers named by the layout but absent from
// ids simply leave their axes disconnected; the system runs without them.
func Build(layout Layout, ids []int32, present func(slot, index int) bool) *Map {
	m := &Map{}

	xyzSlot, xyzOK := slotFor(ids, layout.XYZControllerID)
	rotSlot, rotOK := slotFor(ids, layout.RControllerID)

	place := func(a Axis, slot, index int, ok bool) {
		e := Entry{Axis: a, Addr: Address{Slot: slot, Index: index}}
		if ok && present != nil && present(slot, index) {
			e.Connected = true
		}
		if !ok {
			e.Addr = Address{Slot: -1, Index: index}
		}
		m.entries[a] = e
	}

	place(X, xyzSlot, xyzIndexX, xyzOK)
	place(Y, xyzSlot, xyzIndexY, xyzOK)
	place(Z, xyzSlot, xyzIndexZ, xyzOK)
	place(R, rotSlot, rotIndexR, rotOK)

	return m
}

// slotFor scans enumeration results for a controller id. First match wins.
func slotFor(ids []int32, id int32) (int, bool) {
	for slot, observed := range ids {
		if observed == id {
			return slot, true
		}
	}
	return -1, false
}

// Resolve returns the physical address of a logical axis. ok is false when
// the axis is not connected, in which case the address must not be used.
func (m *Map) Resolve(a Axis) (Address, bool) {
	if int(a) >= NumAxes {
		return Address{}, false
	}
	e := m.entries[a]
	return e.Addr, e.Connected
}

// Entry returns the full resolution record for a logical axis.
func (m *Map) Entry(a Axis) Entry {
	return m.entries[a]
}

// Connected returns the connected axes in X, Y, Z, R order.
func (m *Map) Connected() []Entry {
	out := make([]Entry, 0, NumAxes)
	for _, e := range m.entries {
		if e.Connected {
			out = append(out, e)
		}
	}
	return out
}

// Name reports the logical axis name carried by a physical output, for
// status displays. Unmapped outputs report "UNKNOWN".
func (m *Map) Name(slot, index int) string {
	for _, e := range m.entries {
		if e.Connected && e.Addr.Slot == slot && e.Addr.Index == index {
			return e.Axis.String()
		}
	}
	return "UNKNOWN"
}
