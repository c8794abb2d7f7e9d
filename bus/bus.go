// Package bus owns the MQTT session: one shared client over which the
// publisher streams position batches, the dispatcher returns command
// results, and the daemon announces lifecycle transitions. The paho client
// is internally synchronized, so the publisher and dispatcher call it
// concurrently without coordination here.
package bus

import (
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/hashicorp/go-hclog"
)

// Default topics for the microscope stage.
const (
	DefaultPositionTopic = "microscope/stage/position"
	DefaultCommandTopic  = "microscope/stage/command"
	DefaultResultTopic   = "microscope/stage/result"
	DefaultStatusTopic   = "microscope/stage/status"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 5 * time.Second
)

// ErrPublishTimeout is returned when the broker does not acknowledge a
// QoS 1 publish in time.
var ErrPublishTimeout = errors.New("bus: publish timed out")

// Config selects the broker and topic set.
type Config struct {
	BrokerURL string
	ClientID  string

	PositionTopic string
	CommandTopic  string
	ResultTopic   string
	StatusTopic   string
}

// CommandHandler receives raw command payloads from the command topic. It
// runs on the paho callback goroutine and must only hand the payload off,
// never block.
type CommandHandler func(payload []byte, at time.Time)

// Client is the shared MQTT session.
type Client struct {
	mqtt mqtt.Client
	cfg  Config
	log  hclog.Logger
}

// Dial connects to the broker and subscribes to the command topic. The
// underlying client reconnects automatically and re-establishes the
// subscription on each (re)connect. onUp, when non-nil, is told about every
// connection state change.
func Dial(cfg Config, onCommand CommandHandler, onUp func(bool), log hclog.Logger) (*Client, error) {
	c := &Client{cfg: cfg, log: log}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(connectTimeout)

	opts.OnConnect = func(m mqtt.Client) {
		log.Info("connected to broker", "url", cfg.BrokerURL)
		if onUp != nil {
			onUp(true)
		}
		tok := m.Subscribe(cfg.CommandTopic, 0, func(_ mqtt.Client, msg mqtt.Message) {
			onCommand(msg.Payload(), time.Now())
		})
		tok.Wait()
		if err := tok.Error(); err != nil {
			log.Error("command subscription failed", "topic", cfg.CommandTopic, "error", err)
			return
		}
		log.Debug("subscribed", "topic", cfg.CommandTopic)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn("broker connection lost", "error", err)
		if onUp != nil {
			onUp(false)
		}
	}

	c.mqtt = mqtt.NewClient(opts)

	tok := c.mqtt.Connect()
	if !tok.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("bus: connect to %s timed out", cfg.BrokerURL)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("bus: connect to %s: %w", cfg.BrokerURL, err)
	}

	return c, nil
}

// PublishPositions sends one position batch at QoS 0. Lost batches are not
// retried; positions are telemetry, not history.
func (c *Client) PublishPositions(payload []byte) error {
	tok := c.mqtt.Publish(c.cfg.PositionTopic, 0, false, payload)
	// QoS 0 completes locally; the token only surfaces client-side errors.
	tok.Wait()
	return tok.Error()
}

// PublishResult sends one command result at QoS 1 and waits for the broker
// to take it.
func (c *Client) PublishResult(payload []byte) error {
	tok := c.mqtt.Publish(c.cfg.ResultTopic, 1, false, payload)
	if !tok.WaitTimeout(publishTimeout) {
		return ErrPublishTimeout
	}
	return tok.Error()
}

// Announce publishes a lifecycle marker (SYSTEM_STARTING, SYSTEM_READY,
// SYSTEM_SHUTDOWN) on the status topic at QoS 1.
func (c *Client) Announce(state string) error {
	tok := c.mqtt.Publish(c.cfg.StatusTopic, 1, false, []byte(state))
	if !tok.WaitTimeout(publishTimeout) {
		return ErrPublishTimeout
	}
	return tok.Error()
}

// Close disconnects after letting in-flight messages drain briefly.
func (c *Client) Close() {
	c.mqtt.Disconnect(250)
}
