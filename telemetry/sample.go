// Package telemetry carries position records from the sampling loop to the
// publisher: the sample value type, the lock-free ring between the two, and
// the wire encoding.
package telemetry

import "github.com/attoscope/eccstream/topology"

// Sample is one position capture across all four logical axes. It is a
// plain value: fixed size, no heap references, copied in and out of the
// ring by assignment.
//
// TimestampNS is monotonic nanoseconds since an epoch chosen at process
// start. Positions are raw device units (nm for linear actors, µ° for
// rotational actors). A ValidMask bit is set iff that axis was connected
// and its read succeeded on this tick; a zero mask is a legal record and
// still enters the ring so timing gaps stay observable.
type Sample struct {
	TimestampNS uint64
	X           int32
	Y           int32
	Z           int32
	R           int32
	ValidMask   uint8
}

// Store records a successful read for the axis and marks it valid.
func (s *Sample) Store(a topology.Axis, pos int32) {
	switch a {
	case topology.X:
		s.X = pos
	case topology.Y:
		s.Y = pos
	case topology.Z:
		s.Z = pos
	case topology.R:
		s.R = pos
	default:
		return
	}
	s.ValidMask |= a.Bit()
}

// Field returns the position for the axis and whether it is valid.
func (s Sample) Field(a topology.Axis) (int32, bool) {
	ok := s.ValidMask&a.Bit() != 0
	switch a {
	case topology.X:
		return s.X, ok
	case topology.Y:
		return s.Y, ok
	case topology.Z:
		return s.Z, ok
	case topology.R:
		return s.R, ok
	}
	return 0, false
}
