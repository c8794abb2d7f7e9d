package stream

import (
	"runtime"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/attoscope/eccstream/telemetry"
	"github.com/attoscope/eccstream/topology"
)

// PositionReader is the one DAL capability the sampler needs.
type PositionReader interface {
	Position(axis int) (int32, error)
}

// Source binds one connected logical axis to its controller.
type Source struct {
	Axis   topology.Axis
	Reader PositionReader
	Index  int
}

// SamplerConfig tunes thread placement. CPU < 0 skips pinning, RTPriority 0
// skips SCHED_FIFO.
type SamplerConfig struct {
	CPU        int
	RTPriority int
}

// Sampler drives the capture loop: read every connected axis once per tick,
// stamp it, push it onto the ring. It is the ring's only producer.
type Sampler struct {
	state   *State
	ring    *telemetry.Ring
	sources []Source
	cfg     SamplerConfig
	log     hclog.Logger
}

func NewSampler(state *State, ring *telemetry.Ring, sources []Source, cfg SamplerConfig, log hclog.Logger) *Sampler {
	return &Sampler{
		state:   state,
		ring:    ring,
		sources: sources,
		cfg:     cfg,
		log:     log,
	}
}

// Run loops until the running flag clears. It wires itself to one OS thread
// and asks for real-time scheduling; on hosts that refuse, it logs the
// refusal and keeps going at normal priority.
//
// The tick deadline always advances by exactly one interval from the
// previous deadline, never from the current wall clock, so a late tick does
// not smear the cadence. The wait is hybrid: sleep until shortly before the
// deadline, then yield-spin across the last stretch to duck scheduler
// wakeup jitter without burning the whole core.
func (s *Sampler) Run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if s.cfg.RTPriority > 0 {
		if err := setScheduler(s.cfg.RTPriority); err != nil {
			s.log.Warn("real-time scheduling unavailable", "error", err)
		} else {
			s.log.Info("real-time scheduling enabled", "priority", s.cfg.RTPriority)
		}
	}
	if s.cfg.CPU >= 0 {
		if err := pinCPU(s.cfg.CPU); err != nil {
			s.log.Warn("cpu pinning unavailable", "cpu", s.cfg.CPU, "error", err)
		}
	}

	s.log.Info("sampler started", "rate_hz", s.state.Rate(), "axes", len(s.sources))

	deadline := time.Now()
	for s.state.Running.Load() {
		interval := s.state.Interval()

		var smp telemetry.Sample
		smp.TimestampNS = s.state.Now()
		for _, src := range s.sources {
			pos, err := src.Reader.Position(src.Index)
			if err != nil {
				// Absorbed into the valid mask; per-tick read errors are
				// expected noise at this cadence.
				continue
			}
			smp.Store(src.Axis, pos)
		}

		s.state.Captured.Add(1)
		if !s.ring.TryPush(smp) {
			s.state.Dropped.Add(1)
		}

		deadline = deadline.Add(interval)
		sleepUntil(deadline)
	}

	s.log.Info("sampler stopped",
		"captured", s.state.Captured.Load(),
		"dropped", s.state.Dropped.Load())
}

// spinWindow is how close to the deadline the coarse sleep hands over to
// the yield loop.
const spinWindow = 50 * time.Microsecond

func sleepUntil(deadline time.Time) {
	if d := time.Until(deadline); d > 2*spinWindow {
		time.Sleep(d - spinWindow)
	}
	for time.Now().Before(deadline) {
		runtime.Gosched()
	}
}
