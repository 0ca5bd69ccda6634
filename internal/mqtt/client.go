package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"holyiot-gateway/internal/config"
	"holyiot-gateway/internal/utils"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	statusOnline  = "online"
	statusOffline = "offline"
)

type Client struct {
	client    mqtt.Client
	cfg       config.Config
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

// BatteryState is the retained state message for one beacon. A nil Battery
// is encoded as null and means the device reported unknown.
type BatteryState struct {
	Address     string    `json:"address"`
	Name        string    `json:"name,omitempty"`
	Battery     *int      `json:"battery"`
	Unit        string    `json:"unit"`
	DeviceClass string    `json:"device_class"`
	StateClass  string    `json:"state_class"`
	Variant     string    `json:"variant"`
	RSSI        int16     `json:"rssi"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewClient(cfg config.Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTTBroker, cfg.MQTTPort))
	opts.SetClientID(cfg.MQTTClientID)

	// Session settings
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	// Keepalive / timeouts
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	// Broker marks the gateway offline if we vanish without Disconnect.
	opts.SetWill(c.StatusTopic(), statusOffline, 1, true)

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		c.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.MQTTBroker, "port", cfg.MQTTPort)
		// Paho handlers must not block on tokens.
		go func() {
			token := client.Publish(c.StatusTopic(), 1, true, statusOnline)
			if token.WaitTimeout(5*time.Second) && token.Error() != nil {
				logger.Warn("mqtt status publish failed", "error", token.Error())
			}
		}()
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	c.client = mqtt.NewClient(opts)
	return c, nil
}

// StateTopic is where the retained state of one beacon is published.
func (c *Client) StateTopic(address string) string {
	return fmt.Sprintf("%s/%s/state", c.cfg.MQTTTopicPrefix, utils.MACKey(address))
}

// StatusTopic carries the gateway availability ("online"/"offline").
func (c *Client) StatusTopic() string {
	return c.cfg.MQTTTopicPrefix + "/gateway/status"
}

// Connect establishes connection to the MQTT broker.
// This function waits for the initial connection, and respects ctx and Disconnect().
func (c *Client) Connect(ctx context.Context) error {
	select {
	case <-c.stopCh:
		return fmt.Errorf("client stopped")
	default:
	}

	if c.IsConnected() {
		return nil
	}

	// With ConnectRetry(true), paho keeps retrying internally.
	token := c.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			return fmt.Errorf("client stopped")
		default:
		}
	}
}

// PublishBattery publishes the retained state of one beacon.
func (c *Client) PublishBattery(state BatteryState) error {
	if !c.IsConnected() {
		return fmt.Errorf("mqtt client not connected")
	}

	topic := c.StateTopic(state.Address)

	if state.Timestamp.IsZero() {
		state.Timestamp = time.Now()
	}
	state.Unit = "%"
	state.DeviceClass = "battery"
	state.StateClass = "measurement"

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal battery state: %w", err)
	}

	token := c.client.Publish(topic, 1, true, data)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish timeout for topic %s", topic)
	}
	if token.Error() != nil {
		c.logger.Error("failed to publish battery state", "topic", topic, "error", token.Error())
		return fmt.Errorf("publish battery state: %w", token.Error())
	}

	c.logger.Debug("published battery state", "topic", topic, "addr", state.Address)
	return nil
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	connected := c.connected
	c.mu.RUnlock()
	return connected && c.client.IsConnected()
}

// Disconnect publishes the offline status, then stops the client.
// Idempotent and safe to call multiple times.
// After Disconnect, Connect() will return "client stopped".
func (c *Client) Disconnect() {
	first := false
	c.stopOnce.Do(func() {
		first = true
		close(c.stopCh)
	})
	if !first {
		return
	}

	if c.IsConnected() {
		token := c.client.Publish(c.StatusTopic(), 1, true, statusOffline)
		token.WaitTimeout(2 * time.Second)
	}

	// Paho Disconnect quiesces in-flight work for the given ms.
	if c.client != nil {
		c.client.Disconnect(250)
	}

	c.setConnected(false)
	c.logger.Info("mqtt disconnected")
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}
