package stream

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/attoscope/eccstream/telemetry"
	"github.com/attoscope/eccstream/topology"
)

// scriptedReader serves fixed positions per axis index and can be told to
// fail one of them.
type scriptedReader struct {
	mu        sync.Mutex
	positions map[int]int32
	failIndex int
}

func newScriptedReader() *scriptedReader {
	return &scriptedReader{positions: make(map[int]int32), failIndex: -1}
}

func (r *scriptedReader) Position(axis int) (int32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if axis == r.failIndex {
		return 0, errors.New("simulated read failure")
	}
	return r.positions[axis], nil
}

// runSampler spins the capture loop for the given wall time with thread
// placement disabled, so the test needs no privileges.
func runSampler(st *State, ring *telemetry.Ring, sources []Source, d time.Duration) {
	s := NewSampler(st, ring, sources, SamplerConfig{CPU: -1, RTPriority: 0}, hclog.NewNullLogger())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Run()
	}()

	time.Sleep(d)
	st.Running.Store(false)
	wg.Wait()
}

func TestSampler(t *testing.T) {
	Convey("every tick yields one sample with all connected axes valid", t, func() {
		st := NewState(1000)
		ring := telemetry.NewRing(4096)
		rd := newScriptedReader()
		rd.positions[0] = -120040
		rd.positions[1] = 999730
		rd.positions[2] = -224330

		sources := []Source{
			{Axis: topology.Y, Reader: rd, Index: 0},
			{Axis: topology.X, Reader: rd, Index: 1},
			{Axis: topology.Z, Reader: rd, Index: 2},
		}
		runSampler(st, ring, sources, 100*time.Millisecond)

		captured := st.Captured.Load()
		So(captured, ShouldBeGreaterThan, 0)
		So(captured, ShouldEqual, uint64(ring.Available())+st.Dropped.Load())

		var s telemetry.Sample
		So(ring.TryPop(&s), ShouldBeTrue)
		So(s.ValidMask, ShouldEqual, topology.X.Bit()|topology.Y.Bit()|topology.Z.Bit())

		x, ok := s.Field(topology.X)
		So(ok, ShouldBeTrue)
		So(x, ShouldEqual, 999730)
		_, ok = s.Field(topology.R)
		So(ok, ShouldBeFalse)
	})

	Convey("a failing axis clears only its own valid bit", t, func() {
		st := NewState(1000)
		ring := telemetry.NewRing(4096)
		rd := newScriptedReader()
		rd.failIndex = 0 // Y rides output 0

		sources := []Source{
			{Axis: topology.Y, Reader: rd, Index: 0},
			{Axis: topology.X, Reader: rd, Index: 1},
		}
		runSampler(st, ring, sources, 50*time.Millisecond)

		var s telemetry.Sample
		So(ring.TryPop(&s), ShouldBeTrue)
		So(s.ValidMask, ShouldEqual, topology.X.Bit())
	})

	Convey("timestamps are strictly monotonic across the run", t, func() {
		st := NewState(2000)
		ring := telemetry.NewRing(4096)
		rd := newScriptedReader()

		runSampler(st, ring, []Source{{Axis: topology.X, Reader: rd, Index: 0}},
			50*time.Millisecond)

		var prev uint64
		var s telemetry.Sample
		for ring.TryPop(&s) {
			So(s.TimestampNS, ShouldBeGreaterThan, prev)
			prev = s.TimestampNS
		}
	})

	Convey("the capture count tracks the configured rate", t, func() {
		st := NewState(1000)
		ring := telemetry.NewRing(4096)
		rd := newScriptedReader()

		const window = time.Second
		runSampler(st, ring, []Source{{Axis: topology.X, Reader: rd, Index: 0}}, window)

		// Deadline-driven ticks must not smear: over the window the count
		// stays near rate x window even without SCHED_FIFO. The tolerance
		// absorbs sleep overshoot on a loaded host.
		want := uint64(window / st.Interval())
		captured := st.Captured.Load()
		So(captured, ShouldBeGreaterThan, want*9/10)
		So(captured, ShouldBeLessThan, want*11/10)
	})

	Convey("a full ring drops the new sample and counts it", t, func() {
		st := NewState(2000)
		ring := telemetry.NewRing(2) // saturates within the first ticks
		rd := newScriptedReader()

		runSampler(st, ring, []Source{{Axis: topology.X, Reader: rd, Index: 0}},
			50*time.Millisecond)

		So(st.Dropped.Load(), ShouldBeGreaterThan, 0)
		So(ring.Available(), ShouldEqual, 2)
	})
}
