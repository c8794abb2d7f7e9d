// Command eccstream exposes an attocube ECC100 positioning stage as an MQTT
// service: position telemetry streams out on the position topic at the
// configured sample rate, and motion/configuration commands arriving on the
// command topic are executed against the hardware with a result published
// for each one.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/attoscope/eccstream/api"
	"github.com/attoscope/eccstream/bus"
	"github.com/attoscope/eccstream/config"
	"github.com/attoscope/eccstream/ecc"
	"github.com/attoscope/eccstream/stream"
	"github.com/attoscope/eccstream/telemetry"
	"github.com/attoscope/eccstream/topology"
)

const (
	commandQueueLimit = 64
	statsInterval     = 5 * time.Second
	httpStopTimeout   = 2 * time.Second
)

func main() {
	cfgPath := flag.String("config", "", "path to yaml config (optional)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := hclog.New(&hclog.LoggerOptions{
		Name:  "eccstream",
		Level: hclog.LevelFromString(cfg.LogLevel),
	})

	if err := run(cfg, log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log hclog.Logger) error {
	state := stream.NewState(cfg.Sampling.RateHz)
	ring := telemetry.NewRing(cfg.Sampling.RingCapacity)
	queue := stream.NewQueue(commandQueueLimit, func() { state.CmdsDropped.Add(1) })

	// Bus first: an unreachable broker at startup is fatal, whereas a
	// dropped connection later is the client's reconnect problem.
	busClient, err := bus.Dial(bus.Config{
		BrokerURL:     cfg.Broker.URL,
		ClientID:      cfg.Broker.ClientID,
		PositionTopic: cfg.Topics.Position,
		CommandTopic:  cfg.Topics.Command,
		ResultTopic:   cfg.Topics.Result,
		StatusTopic:   cfg.Topics.Status,
	}, func(payload []byte, at time.Time) {
		queue.Push(stream.CommandRecord{Payload: payload, At: at})
	}, func(up bool) {
		state.BusUp.Store(up)
	}, log.Named("bus"))
	if err != nil {
		return err
	}
	defer busClient.Close()

	announce(busClient, "SYSTEM_STARTING", log)

	var driver ecc.Driver
	if cfg.Simulated {
		log.Info("running with simulated stage")
		driver = ecc.NewSimStage(cfg.Layout.XYZControllerID, cfg.Layout.RControllerID)
	} else {
		driver, err = ecc.OpenECC100()
		if err != nil {
			return err
		}
	}

	controllers, err := openControllers(driver, log)
	if err != nil {
		return err
	}
	defer shutdownControllers(controllers, log)
	state.ControllersUp.Store(true)

	topo := buildTopology(cfg, controllers)
	for _, e := range topo.Connected() {
		log.Info("axis mapped", "axis", e.Axis.String(), "slot", e.Addr.Slot, "index", e.Addr.Index)
	}

	sampler := stream.NewSampler(state, ring, samplerSources(topo, controllers), stream.SamplerConfig{
		CPU:        cfg.Sampling.CPU,
		RTPriority: cfg.Sampling.RTPriority,
	}, log.Named("sampler"))

	publisher := stream.NewPublisher(state, ring, busClient, stream.PublisherConfig{
		Period:   time.Duration(cfg.Sampling.BatchPeriodMS) * time.Millisecond,
		BatchMax: cfg.Sampling.BatchMax,
	}, log.Named("publisher"))

	dispatcher := stream.NewDispatcher(state, topo, dispatcherControllers(controllers),
		queue, busClient, ring, log.Named("dispatcher"))

	hub := api.NewHub()
	publisher.SetTap(hub.Broadcast)
	var apiSrv *api.Server
	if cfg.HTTP.Listen != "" {
		apiSrv = api.NewServer(func() stream.Snapshot {
			return state.Snapshot(ring.Available(), ring.Cap())
		}, hub, log.Named("api"))
		go func() {
			if err := apiSrv.Serve(cfg.HTTP.Listen); err != nil {
				log.Error("http surface failed", "error", err)
			}
		}()
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() { defer wg.Done(); sampler.Run() }()
	go func() { defer wg.Done(); publisher.Run() }()
	go func() { defer wg.Done(); dispatcher.Run() }()

	announce(busClient, "SYSTEM_READY", log)
	log.Info("system ready", "rate_hz", state.Rate(), "controllers", len(controllers))

	waitAndReport(state, ring, log)

	// Signal received: stop the loops, drain, then disable the hardware on
	// the deferred shutdown path.
	state.Running.Store(false)
	queue.Close()
	wg.Wait()

	if apiSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), httpStopTimeout)
		if err := apiSrv.Shutdown(ctx); err != nil {
			log.Warn("http surface shutdown error", "error", err)
		}
		cancel()
	}

	announce(busClient, "SYSTEM_SHUTDOWN", log)
	log.Info("shutdown complete",
		"captured", state.Captured.Load(),
		"published", state.Published.Load(),
		"dropped", state.Dropped.Load())
	return nil
}

type lifecycleAnnouncer interface {
	Announce(state string) error
}

// announce publishes a lifecycle transition. Subscribers treat these
// messages as authoritative, so a failed publish is worth a log line, but
// it never aborts the transition itself.
func announce(b lifecycleAnnouncer, state string, log hclog.Logger) {
	if err := b.Announce(state); err != nil {
		log.Warn("lifecycle announce failed", "state", state, "error", err)
	}
}

// waitAndReport blocks until SIGINT/SIGTERM, logging throughput deltas at a
// fixed interval in between.
func waitAndReport(state *stream.State, ring *telemetry.Ring, log hclog.Logger) {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigc)

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	var lastCaptured, lastPublished, lastDropped uint64
	for {
		select {
		case sig := <-sigc:
			log.Info("signal received, shutting down", "signal", sig.String())
			return
		case <-ticker.C:
			captured := state.Captured.Load()
			published := state.Published.Load()
			dropped := state.Dropped.Load()
			log.Info("throughput",
				"captured_hz", (captured-lastCaptured)/uint64(statsInterval/time.Second),
				"published_hz", (published-lastPublished)/uint64(statsInterval/time.Second),
				"dropped", dropped-lastDropped,
				"ring", ring.Available())
			lastCaptured, lastPublished, lastDropped = captured, published, dropped
		}
	}
}

// openControllers enumerates and connects everything present, skipping
// locked units. No usable controllers at all is fatal.
func openControllers(driver ecc.Driver, log hclog.Logger) ([]*ecc.Controller, error) {
	devices, err := driver.Enumerate()
	if err != nil {
		return nil, fmt.Errorf("controller enumeration failed: %w", err)
	}

	var controllers []*ecc.Controller
	for _, info := range devices {
		if info.Locked {
			log.Warn("skipping locked controller", "slot", info.Slot, "id", info.ID)
			continue
		}
		c, err := ecc.Open(driver, info, log)
		if err != nil {
			log.Warn("controller connect failed", "slot", info.Slot, "id", info.ID, "error", err)
			continue
		}
		log.Info("controller connected", "slot", c.Slot(), "id", c.ID(), "firmware", c.Firmware())
		controllers = append(controllers, c)
	}

	if len(controllers) == 0 {
		return nil, fmt.Errorf("no usable controllers found")
	}
	return controllers, nil
}

func shutdownControllers(controllers []*ecc.Controller, log hclog.Logger) {
	for _, c := range controllers {
		if err := c.Shutdown(); err != nil {
			log.Warn("controller shutdown error", "slot", c.Slot(), "error", err)
		}
	}
}

func buildTopology(cfg config.Config, controllers []*ecc.Controller) *topology.Map {
	// ids indexed by slot; slots without an open controller read as id -1
	// and never match a layout id.
	maxSlot := -1
	for _, c := range controllers {
		if c.Slot() > maxSlot {
			maxSlot = c.Slot()
		}
	}
	ids := make([]int32, maxSlot+1)
	for i := range ids {
		ids[i] = -1
	}
	bySlot := make(map[int]*ecc.Controller, len(controllers))
	for _, c := range controllers {
		ids[c.Slot()] = c.ID()
		bySlot[c.Slot()] = c
	}

	layout := topology.Layout{
		XYZControllerID: cfg.Layout.XYZControllerID,
		RControllerID:   cfg.Layout.RControllerID,
	}
	return topology.Build(layout, ids, func(slot, index int) bool {
		c, ok := bySlot[slot]
		return ok && c.AxisConnected(index)
	})
}

func samplerSources(topo *topology.Map, controllers []*ecc.Controller) []stream.Source {
	bySlot := make(map[int]*ecc.Controller, len(controllers))
	for _, c := range controllers {
		bySlot[c.Slot()] = c
	}

	var sources []stream.Source
	for _, e := range topo.Connected() {
		c, ok := bySlot[e.Addr.Slot]
		if !ok {
			continue
		}
		sources = append(sources, stream.Source{Axis: e.Axis, Reader: c, Index: e.Addr.Index})
	}
	return sources
}

func dispatcherControllers(controllers []*ecc.Controller) []stream.ControllerInfo {
	infos := make([]stream.ControllerInfo, len(controllers))
	for i, c := range controllers {
		info := stream.ControllerInfo{
			Slot:     c.Slot(),
			ID:       c.ID(),
			Firmware: c.Firmware(),
			Device:   c,
		}
		for axis := 0; axis < ecc.NumAxes; axis++ {
			info.Axes[axis] = c.AxisConnected(axis)
		}
		infos[i] = info
	}
	return infos
}
