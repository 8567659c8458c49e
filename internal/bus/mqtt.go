package bus

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"pet-monitor/tracker/internal/metrics"
)

// messageKind classifies an inbound subject.
type messageKind int

const (
	kindUnrecognized messageKind = iota
	kindAnchorAnnounce
	kindBLESample
	kindGPSFix
	kindEnvReading
)

// classifyTopic parses a subject under the configured prefix. For BLE
// samples the (anchor, device) pair is embedded in the path and extracted
// here, once; downstream code only sees typed identifiers.
func classifyTopic(prefix, topic string) (kind messageKind, anchorID, deviceID string) {
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok {
		return kindUnrecognized, "", ""
	}
	switch {
	case rest == "anchor/announce":
		return kindAnchorAnnounce, "", ""
	case rest == "gps":
		return kindGPSFix, "", ""
	case rest == "env":
		return kindEnvReading, "", ""
	case strings.HasPrefix(rest, "ble/"):
		parts := strings.Split(rest, "/")
		if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
			return kindUnrecognized, "", ""
		}
		return kindBLESample, parts[1], parts[2]
	default:
		return kindUnrecognized, "", ""
	}
}

// Consumer owns the MQTT connection and routes messages into the bridge.
// Reconnect and resubscribe are the client library's job; the bridge makes
// no ordering promise across a reconnect gap.
type Consumer struct {
	client mqtt.Client
	bridge *Bridge
	prefix string
}

func NewConsumer(brokerURL, topicPrefix string, bridge *Bridge) *Consumer {
	c := &Consumer{bridge: bridge, prefix: topicPrefix}

	opts := mqtt.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID("trackerd-" + uuid.NewString()[:8]).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOrderMatters(false)

	opts.OnConnect = func(client mqtt.Client) {
		log.Printf("[bus] connected to %s, subscribing", brokerURL)
		c.subscribe(client)
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		log.Printf("[bus] connection lost: %v", err)
	}

	c.client = mqtt.NewClient(opts)
	return c
}

// Start connects and blocks until the first connection attempt resolves.
// Subscriptions are installed from the OnConnect handler so they survive
// reconnects.
func (c *Consumer) Start(ctx context.Context) error {
	token := c.client.Connect()
	if !token.WaitTimeout(30 * time.Second) {
		return fmt.Errorf("broker connect timed out")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("broker connect failed: %w", err)
	}

	go func() {
		<-ctx.Done()
		c.client.Disconnect(250)
	}()
	return nil
}

func (c *Consumer) subscribe(client mqtt.Client) {
	filters := map[string]byte{
		c.prefix + "/anchor/announce": 0,
		c.prefix + "/ble/+/+":         0,
		c.prefix + "/gps":             0,
		c.prefix + "/env":             0,
	}
	token := client.SubscribeMultiple(filters, c.handleMessage)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			log.Printf("[bus] subscribe failed: %v", err)
		}
	}()
}

// handleMessage is the single entry point for inbound telemetry. A bad
// message is logged and dropped; it never stops the consumer.
func (c *Consumer) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	metrics.MessagesReceived.Add(1)
	ctx := context.Background()

	kind, anchorID, deviceID := classifyTopic(c.prefix, msg.Topic())
	switch kind {
	case kindAnchorAnnounce:
		c.bridge.HandleAnchorAnnounce(ctx, msg.Payload())
	case kindBLESample:
		c.bridge.HandleBLESample(ctx, anchorID, deviceID, msg.Payload())
	case kindGPSFix:
		c.bridge.HandleGPSFix(ctx, msg.Payload())
	case kindEnvReading:
		c.bridge.HandleEnvReading(ctx, msg.Payload())
	default:
		metrics.DecodeFailures.Add(1)
		log.Printf("[bus] unrecognized topic %q", msg.Topic())
	}
}
