package stream

import (
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/attoscope/eccstream/config"
	"github.com/attoscope/eccstream/ecc"
	"github.com/attoscope/eccstream/telemetry"
	"github.com/attoscope/eccstream/topology"
)

// AxisDevice is the slice of the DAL the dispatcher drives. ecc.Controller
// implements it; tests use fakes.
type AxisDevice interface {
	Position(axis int) (int32, error)
	Status(axis int) (ecc.AxisStatus, error)
	ReferencePosition(axis int) (int32, error)
	Amplitude(axis int) (int32, error)
	Frequency(axis int) (int32, error)
	TargetRange(axis int) (int32, error)
	ActorType(axis int) (ecc.ActorType, error)
	ActorName(axis int) (string, error)
	SetTarget(axis int, pos int32) error
	SetMoveEnable(axis int, on bool) error
	SetAmplitude(axis int, millivolts int32) error
	SetFrequency(axis int, millihertz int32) error
}

// ControllerInfo is one open controller as the dispatcher sees it.
type ControllerInfo struct {
	Slot     int
	ID       int32
	Firmware string
	Device   AxisDevice
	Axes     [ecc.NumAxes]bool
}

// ResultSink accepts framed result messages. The MQTT client implements it
// at QoS 1.
type ResultSink interface {
	PublishResult(payload []byte) error
}

// Dispatcher consumes commands from the queue one at a time, drives the
// DAL, and answers every command with exactly one result message. All its
// DAL calls run on its own goroutine, so a slow device stalls commands but
// never the sampler or publisher.
type Dispatcher struct {
	state       *State
	topo        *topology.Map
	controllers []ControllerInfo
	queue       *Queue
	sink        ResultSink
	ring        *telemetry.Ring
	log         hclog.Logger
}

func NewDispatcher(state *State, topo *topology.Map, controllers []ControllerInfo,
	queue *Queue, sink ResultSink, ring *telemetry.Ring, log hclog.Logger) *Dispatcher {
	return &Dispatcher{
		state:       state,
		topo:        topo,
		controllers: controllers,
		queue:       queue,
		sink:        sink,
		ring:        ring,
		log:         log,
	}
}

// Run consumes the queue until it is closed and drained.
func (d *Dispatcher) Run() {
	d.log.Info("dispatcher started")
	for {
		rec, ok := d.queue.Pop()
		if !ok {
			d.log.Info("dispatcher stopped")
			return
		}
		d.handle(rec)
	}
}

func (d *Dispatcher) handle(rec CommandRecord) {
	raw := strings.TrimSpace(string(rec.Payload))
	d.log.Debug("command received", "raw", raw, "queue_latency", time.Since(rec.At))

	cmd, err := ParseCommand(raw)
	if err != nil {
		perr := err.(*ParseError)
		d.emit(failed(d.state.Now(), perr.Subject, ScopeAll, "%s", perr.Detail))
		return
	}

	switch cmd.Kind {
	case CmdStatus:
		d.handleStatus()
	case CmdSetRate:
		d.handleSetRate(cmd)
	case CmdSetAmp:
		d.handleSetAmp(cmd)
	case CmdSetFreq:
		d.handleSetFreq(cmd)
	case CmdMove:
		d.handleMove(cmd)
	case CmdStop:
		d.handleStop(cmd)
	}
}

func (d *Dispatcher) emit(r Result) {
	if err := d.sink.PublishResult(r.Encode()); err != nil {
		d.log.Error("result publish failed", "subject", r.Subject, "error", err)
	}
}

// device resolves a logical axis to its open controller. The second return
// is the axis index on that controller.
func (d *Dispatcher) device(a topology.Axis) (AxisDevice, int, bool) {
	addr, ok := d.topo.Resolve(a)
	if !ok {
		return nil, 0, false
	}
	for i := range d.controllers {
		if d.controllers[i].Slot == addr.Slot {
			return d.controllers[i].Device, addr.Index, true
		}
	}
	return nil, 0, false
}

func (d *Dispatcher) handleStatus() {
	report := d.buildReport()
	d.emit(Result{
		TimestampNS: d.state.Now(),
		Channel:     ChannelStatus,
		Subject:     "SYSTEM_INFO",
		Scope:       ScopeAll,
		Outcome:     OutcomeSuccess,
		Detail:      report,
	})
}

func (d *Dispatcher) handleSetRate(cmd Command) {
	hz := int(cmd.Value)
	if hz < config.RateMinHz || hz > config.RateMaxHz {
		d.emit(failed(d.state.Now(), "SET_RATE", ScopeAll,
			"Invalid rate (must be %d-%d Hz)", config.RateMinHz, config.RateMaxHz))
		return
	}

	d.state.SetRate(hz)
	d.log.Info("sample rate changed", "rate_hz", hz)
	// The sampler reloads the interval on its next tick; the result goes
	// out immediately.
	d.emit(success(d.state.Now(), "SET_RATE", ScopeAll, "Sampling rate set to %d Hz", hz))
}

func (d *Dispatcher) handleSetAmp(cmd Command) {
	scope := cmd.Axis.String()
	dev, idx, ok := d.device(cmd.Axis)
	if !ok {
		d.emit(failed(d.state.Now(), "SET_AMP", scope, "Axis not connected"))
		return
	}

	if err := dev.SetAmplitude(idx, cmd.Value); err != nil {
		d.log.Warn("set amplitude failed", "axis", scope, "error", err)
		d.emit(failed(d.state.Now(), "SET_AMP", scope, "Failed to set amplitude"))
		return
	}
	d.emit(success(d.state.Now(), "SET_AMP", scope, "Amplitude set to %d mV", cmd.Value))
}

func (d *Dispatcher) handleSetFreq(cmd Command) {
	scope := cmd.Axis.String()
	dev, idx, ok := d.device(cmd.Axis)
	if !ok {
		d.emit(failed(d.state.Now(), "SET_FREQ", scope, "Axis not connected"))
		return
	}

	if err := dev.SetFrequency(idx, cmd.Value); err != nil {
		d.log.Warn("set frequency failed", "axis", scope, "error", err)
		d.emit(failed(d.state.Now(), "SET_FREQ", scope, "Failed to set frequency"))
		return
	}
	d.emit(success(d.state.Now(), "SET_FREQ", scope, "Frequency set to %d mHz", cmd.Value))
}

func (d *Dispatcher) handleMove(cmd Command) {
	scope := cmd.Axis.String()
	dev, idx, ok := d.device(cmd.Axis)
	if !ok {
		d.emit(failed(d.state.Now(), "MOVE", scope, "Axis not connected"))
		return
	}

	if err := dev.SetTarget(idx, cmd.Value); err != nil {
		d.log.Warn("set target failed", "axis", scope, "error", err)
		d.emit(failed(d.state.Now(), "MOVE", scope, "Failed to set target position"))
		return
	}
	if err := dev.SetMoveEnable(idx, true); err != nil {
		// The target is already staged on the controller; make sure the
		// axis does not start toward it once the fault clears.
		dev.SetMoveEnable(idx, false)
		d.log.Warn("move enable failed", "axis", scope, "error", err)
		d.emit(failed(d.state.Now(), "MOVE", scope, "Failed to enable movement"))
		return
	}
	d.emit(success(d.state.Now(), "MOVE", scope, "Movement started to %d", cmd.Value))
}

func (d *Dispatcher) handleStop(cmd Command) {
	scope := cmd.Axis.String()
	dev, idx, ok := d.device(cmd.Axis)
	if !ok {
		d.emit(failed(d.state.Now(), "STOP", scope, "Axis not connected"))
		return
	}

	if err := dev.SetMoveEnable(idx, false); err != nil {
		d.log.Warn("stop failed", "axis", scope, "error", err)
		d.emit(failed(d.state.Now(), "STOP", scope, "Failed to stop movement"))
		return
	}
	d.emit(success(d.state.Now(), "STOP", scope, "Movement stopped"))
}
