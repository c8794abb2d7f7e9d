// Package stream is the real-time core: the deadline-driven sampler, the
// batch publisher and the command dispatcher, sharing one composite State.
package stream

import (
	"sync/atomic"
	"time"
)

// State is the read-mostly context shared by every task. Each mutable field
// is an individual atomic with a single writer: the sampler owns Captured
// and Dropped, the publisher owns Published, the dispatcher owns the rate,
// and main owns the flags. There is deliberately no singleton; main builds
// one State and passes it to each task at construction.
type State struct {
	Captured    atomic.Uint64
	Published   atomic.Uint64
	Dropped     atomic.Uint64
	CmdsDropped atomic.Uint64

	rateHz     atomic.Int64
	intervalNS atomic.Int64

	Running       atomic.Bool
	BusUp         atomic.Bool
	ControllersUp atomic.Bool

	start time.Time
}

// NewState creates the shared context with the boot sample rate. The
// timestamp epoch is fixed here, at process start.
func NewState(rateHz int) *State {
	s := &State{start: time.Now()}
	s.SetRate(rateHz)
	s.Running.Store(true)
	return s
}

// SetRate changes the sample rate. The sampler reloads the interval at the
// top of its next tick; no handshake is needed.
func (s *State) SetRate(hz int) {
	s.rateHz.Store(int64(hz))
	s.intervalNS.Store(int64(time.Second) / int64(hz))
}

// Rate returns the configured sample rate in Hz.
func (s *State) Rate() int { return int(s.rateHz.Load()) }

// Interval returns the tick interval derived from the rate.
func (s *State) Interval() time.Duration {
	return time.Duration(s.intervalNS.Load())
}

// Now returns monotonic nanoseconds since the process-start epoch.
func (s *State) Now() uint64 {
	return uint64(time.Since(s.start))
}

// Snapshot is a point-in-time copy of the shared state for the STATUS
// report and the HTTP surface.
type Snapshot struct {
	RateHz        int    `json:"rate_hz"`
	IntervalNS    int64  `json:"interval_ns"`
	Captured      uint64 `json:"captured"`
	Published     uint64 `json:"published"`
	Dropped       uint64 `json:"dropped"`
	CmdsDropped   uint64 `json:"commands_dropped"`
	RingUsed      int    `json:"ring_used"`
	RingCap       int    `json:"ring_cap"`
	BusUp         bool   `json:"bus_connected"`
	ControllersUp bool   `json:"controllers_connected"`
	UptimeNS      int64  `json:"uptime_ns"`
}

// Snapshot captures the counters plus ring occupancy. used/capacity come
// from the caller so State stays free of a ring dependency.
func (s *State) Snapshot(ringUsed, ringCap int) Snapshot {
	return Snapshot{
		RateHz:        s.Rate(),
		IntervalNS:    s.intervalNS.Load(),
		Captured:      s.Captured.Load(),
		Published:     s.Published.Load(),
		Dropped:       s.Dropped.Load(),
		CmdsDropped:   s.CmdsDropped.Load(),
		RingUsed:      ringUsed,
		RingCap:       ringCap,
		BusUp:         s.BusUp.Load(),
		ControllersUp: s.ControllersUp.Load(),
		UptimeNS:      int64(time.Since(s.start)),
	}
}
