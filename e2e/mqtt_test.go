//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"holyiot-gateway/internal/ble"
	"holyiot-gateway/internal/config"
	"holyiot-gateway/internal/holyiot"
	"holyiot-gateway/internal/mqtt"
)

const mqttPort = nat.Port("1883/tcp")

func TestGateway_PublishesBatteryState(t *testing.T) {
	host, port := startMosquitto(t)

	cfg := config.Config{
		MQTTBroker:      host,
		MQTTPort:        port,
		MQTTClientID:    "holyiot-e2e-gateway",
		MQTTTopicPrefix: "holyiot",
	}
	logger := slog.New(slog.DiscardHandler)

	client, err := mqtt.NewClient(cfg, logger)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(client.Disconnect)

	states := subscribe(t, host, port, client.StateTopic("AA:BB:CC:DD:EE:FF"))
	status := subscribe(t, host, port, client.StatusTopic())

	waitFor(t, status, func(b []byte) bool { return string(b) == "online" })

	handler := ble.NewBatteryHandler(holyiot.MustDecoder(holyiot.Strict), client, ble.HandlerOptions{
		PublishInterval: time.Minute,
		Logger:          logger,
	})
	payload := []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x50, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF, 0, 0, 0, 0, 0}
	handler.HandleMatch(ble.Match{
		Addr:      "AA:BB:CC:DD:EE:FF",
		RSSI:      -58,
		LocalName: "Holy-IOT",
		Services:  map[string][]byte{holyiot.ServiceUUID: payload},
		SeenAt:    time.Now(),
	})

	var got mqtt.BatteryState
	waitFor(t, states, func(b []byte) bool {
		return json.Unmarshal(b, &got) == nil
	})
	if got.Battery == nil || *got.Battery != 0x50 {
		t.Fatalf("battery = %v, want 80", got.Battery)
	}
	if got.Unit != "%" || got.DeviceClass != "battery" || got.StateClass != "measurement" {
		t.Fatalf("state metadata = %+v", got)
	}

	client.Disconnect()
	waitFor(t, status, func(b []byte) bool { return string(b) == "offline" })
}

func startMosquitto(t *testing.T) (string, int) {
	t.Helper()
	ctx := context.Background()

	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2",
		ExposedPorts: []string{string(mqttPort)},
		Cmd:          []string{"mosquitto", "-c", "/mosquitto-no-auth.conf"},
		WaitingFor:   wait.ForListeningPort(mqttPort).WithStartupTimeout(30 * time.Second),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start mosquitto container: %v", err)
	}
	t.Cleanup(func() {
		_ = c.Terminate(ctx)
	})

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	mapped, err := c.MappedPort(ctx, mqttPort)
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}
	return host, mapped.Int()
}

func subscribe(t *testing.T, host string, port int, topic string) <-chan []byte {
	t.Helper()

	opts := paho.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", host, port)).
		SetClientID("holyiot-e2e-" + topic)
	sub := paho.NewClient(opts)
	if token := sub.Connect(); !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		t.Fatalf("subscriber connect: %v", token.Error())
	}
	t.Cleanup(func() { sub.Disconnect(100) })

	ch := make(chan []byte, 16)
	token := sub.Subscribe(topic, 1, func(_ paho.Client, m paho.Message) {
		ch <- append([]byte(nil), m.Payload()...)
	})
	if !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		t.Fatalf("subscribe %s: %v", topic, token.Error())
	}
	return ch
}

func waitFor(t *testing.T, ch <-chan []byte, ok func([]byte) bool) {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case b := <-ch:
			if ok(b) {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for message")
		}
	}
}
