package stream

import (
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/attoscope/eccstream/telemetry"
)

// PositionSink accepts one encoded position batch. The MQTT client
// implements it; tests substitute a capture.
type PositionSink interface {
	PublishPositions(payload []byte) error
}

// PublisherConfig tunes the batch cadence.
type PublisherConfig struct {
	Period   time.Duration
	BatchMax int
}

// Publisher drains the ring on a slow cadence and ships each drain as a
// single newline-joined message. Batching is what makes the 10 kHz end of
// the rate range workable: one broker round-trip per period instead of one
// per sample. It is the ring's only consumer.
type Publisher struct {
	state *State
	ring  *telemetry.Ring
	sink  PositionSink
	cfg   PublisherConfig
	log   hclog.Logger

	// tap receives a copy of every published batch, for the websocket
	// diagnostics feed. Optional.
	tap func(payload []byte)

	batch []telemetry.Sample
	buf   []byte
}

func NewPublisher(state *State, ring *telemetry.Ring, sink PositionSink, cfg PublisherConfig, log hclog.Logger) *Publisher {
	return &Publisher{
		state: state,
		ring:  ring,
		sink:  sink,
		cfg:   cfg,
		log:   log,
		batch: make([]telemetry.Sample, cfg.BatchMax),
		buf:   make([]byte, 0, telemetry.BatchCap(cfg.BatchMax)),
	}
}

// SetTap registers a consumer for copies of published batches. Must be set
// before Run.
func (p *Publisher) SetTap(tap func(payload []byte)) { p.tap = tap }

// Run loops until the running flag clears, then drains what is left so a
// clean shutdown does not strand buffered samples.
func (p *Publisher) Run() {
	p.log.Info("publisher started", "period", p.cfg.Period, "batch_max", p.cfg.BatchMax)

	next := time.Now().Add(p.cfg.Period)
	for p.state.Running.Load() {
		p.flush()
		time.Sleep(time.Until(next))
		next = next.Add(p.cfg.Period)
	}
	p.flush()

	p.log.Info("publisher stopped", "published", p.state.Published.Load())
}

func (p *Publisher) flush() {
	n := p.ring.Drain(p.batch)
	if n == 0 {
		return
	}

	p.buf = telemetry.AppendBatch(p.buf[:0], p.batch[:n])

	if err := p.sink.PublishPositions(p.buf); err != nil {
		// The batch is telemetry, not history: discard and move on.
		p.log.Warn("position batch dropped", "samples", n, "error", err)
		return
	}
	p.state.Published.Add(uint64(n))

	if p.tap != nil {
		p.tap(p.buf)
	}
}
