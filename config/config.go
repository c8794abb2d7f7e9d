// Package config loads the daemon configuration: defaults, then the yaml
// file, then environment overrides, then validation. The file is optional;
// a bench setup can run entirely off defaults plus ECC_SIM=1.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v2"

	"github.com/attoscope/eccstream/bus"
)

// Hard limits for the runtime sample rate, shared with the SET_RATE
// command handler.
const (
	RateMinHz = 100
	RateMaxHz = 15000
)

type Config struct {
	Broker   Broker   `yaml:"broker"`
	Topics   Topics   `yaml:"topics"`
	Sampling Sampling `yaml:"sampling"`
	Layout   Layout   `yaml:"layout"`
	HTTP     HTTP     `yaml:"http"`

	// Simulated swaps the vendor driver for the in-memory stage.
	Simulated bool   `yaml:"simulated" env:"ECC_SIM"`
	LogLevel  string `yaml:"log_level" env:"ECC_LOG_LEVEL"`
}

type Broker struct {
	URL      string `yaml:"url" env:"ECC_BROKER_URL"`
	ClientID string `yaml:"client_id" env:"ECC_CLIENT_ID"`
}

type Topics struct {
	Position string `yaml:"position"`
	Command  string `yaml:"command"`
	Result   string `yaml:"result"`
	Status   string `yaml:"status"`
}

type Sampling struct {
	// RateHz is the boot-time rate. SET_RATE changes it at runtime within
	// [RateMinHz, RateMaxHz]; the boot value may sit below the floor for
	// slow bring-up sessions.
	RateHz int `yaml:"rate_hz" env:"ECC_RATE_HZ"`

	// BatchMax samples are drained per publish period.
	BatchMax      int `yaml:"batch_max"`
	BatchPeriodMS int `yaml:"batch_period_ms"`

	// RingCapacity must hold at least four batches.
	RingCapacity int `yaml:"ring_capacity"`

	// CPU pins the sampler thread; -1 leaves placement to the scheduler.
	CPU int `yaml:"cpu" env:"ECC_SAMPLER_CPU"`

	// RTPriority is the SCHED_FIFO priority for the sampler; 0 disables.
	RTPriority int `yaml:"rt_priority"`
}

type Layout struct {
	XYZControllerID int32 `yaml:"xyz_controller_id"`
	RControllerID   int32 `yaml:"r_controller_id"`
}

type HTTP struct {
	// Listen is the address of the diagnostics HTTP surface; empty
	// disables it.
	Listen string `yaml:"listen" env:"ECC_HTTP_LISTEN"`
}

func Default() Config {
	return Config{
		Broker: Broker{
			URL:      "tcp://localhost:1883",
			ClientID: "eccstream",
		},
		Topics: Topics{
			Position: bus.DefaultPositionTopic,
			Command:  bus.DefaultCommandTopic,
			Result:   bus.DefaultResultTopic,
			Status:   bus.DefaultStatusTopic,
		},
		Sampling: Sampling{
			RateHz:        80,
			BatchMax:      1000,
			BatchPeriodMS: 100,
			RingCapacity:  4000,
			CPU:           1,
			RTPriority:    50,
		},
		Layout: Layout{
			XYZControllerID: 4,
			RControllerID:   2222,
		},
		HTTP:     HTTP{Listen: ":8080"},
		LogLevel: "info",
	}
}

// Load reads path (if non-empty) over the defaults and applies environment
// overrides. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("config: environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Broker.URL == "" {
		return fmt.Errorf("config: broker url required")
	}
	if c.Topics.Position == "" || c.Topics.Command == "" || c.Topics.Result == "" || c.Topics.Status == "" {
		return fmt.Errorf("config: all four topics required")
	}
	if c.Sampling.RateHz <= 0 || c.Sampling.RateHz > RateMaxHz {
		return fmt.Errorf("config: rate_hz %d out of range (1-%d)", c.Sampling.RateHz, RateMaxHz)
	}
	if c.Sampling.BatchMax <= 0 {
		return fmt.Errorf("config: batch_max must be positive")
	}
	if c.Sampling.BatchPeriodMS <= 0 {
		return fmt.Errorf("config: batch_period_ms must be positive")
	}
	if c.Sampling.RingCapacity < 4*c.Sampling.BatchMax {
		return fmt.Errorf("config: ring_capacity %d below 4x batch_max (%d)",
			c.Sampling.RingCapacity, 4*c.Sampling.BatchMax)
	}
	return nil
}
