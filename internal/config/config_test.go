package config

import (
	"log/slog"
	"testing"
	"time"
)

var allKeys = []string{
	"APP_ENV", "LOG_LEVEL", "MQTT_BROKER", "MQTT_PORT", "MQTT_CLIENT_ID",
	"MQTT_TOPIC_PREFIX", "BLE_ADAPTER", "HOLYIOT_ADDRESS", "HOLYIOT_VARIANT",
	"PUBLISH_INTERVAL", "CAPTURE_SQLITE_PATH", "HTTP_ADDR",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	got, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v, want nil", err)
	}

	if got.AppEnv != "dev" {
		t.Errorf("AppEnv = %q, want %q", got.AppEnv, "dev")
	}
	if got.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want %v", got.LogLevel, slog.LevelInfo)
	}
	if got.MQTTBroker != "localhost" {
		t.Errorf("MQTTBroker = %q, want %q", got.MQTTBroker, "localhost")
	}
	if got.MQTTPort != 1883 {
		t.Errorf("MQTTPort = %d, want %d", got.MQTTPort, 1883)
	}
	if got.MQTTClientID != "holyiot-gateway" {
		t.Errorf("MQTTClientID = %q, want %q", got.MQTTClientID, "holyiot-gateway")
	}
	if got.MQTTTopicPrefix != "holyiot" {
		t.Errorf("MQTTTopicPrefix = %q, want %q", got.MQTTTopicPrefix, "holyiot")
	}
	if got.BLEAdapter != "hci0" {
		t.Errorf("BLEAdapter = %q, want %q", got.BLEAdapter, "hci0")
	}
	if got.TrackedAddress != "" {
		t.Errorf("TrackedAddress = %q, want empty", got.TrackedAddress)
	}
	if got.Variant != "auto" {
		t.Errorf("Variant = %q, want %q", got.Variant, "auto")
	}
	if got.PublishInterval != 5*time.Minute {
		t.Errorf("PublishInterval = %v, want %v", got.PublishInterval, 5*time.Minute)
	}
	if got.CapturePath != "" {
		t.Errorf("CapturePath = %q, want empty", got.CapturePath)
	}
	if got.HTTPAddr != "" {
		t.Errorf("HTTPAddr = %q, want empty", got.HTTPAddr)
	}
}

func TestLoadFromEnv_AppEnv_Invalid(t *testing.T) {
	for _, appEnv := range []string{"staging", "DEV", "qa"} {
		t.Run(appEnv, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("APP_ENV", appEnv)

			if _, err := LoadFromEnv(); err == nil {
				t.Fatalf("LoadFromEnv() error = nil, want non-nil")
			}
		})
	}
}

func TestLoadFromEnv_TrackedAddress(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "upper", in: "AA:BB:CC:DD:EE:FF", want: "AA:BB:CC:DD:EE:FF"},
		{name: "lower is normalized", in: " aa:bb:cc:dd:ee:ff ", want: "AA:BB:CC:DD:EE:FF"},
		{name: "too short", in: "AA:BB:CC", wantErr: true},
		{name: "not hex", in: "GG:BB:CC:DD:EE:FF", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("HOLYIOT_ADDRESS", tt.in)

			got, err := LoadFromEnv()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("LoadFromEnv() error = nil, want non-nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadFromEnv() error = %v, want nil", err)
			}
			if got.TrackedAddress != tt.want {
				t.Errorf("TrackedAddress = %q, want %q", got.TrackedAddress, tt.want)
			}
		})
	}
}

func TestLoadFromEnv_Variant(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: "auto"},
		{in: "AUTO", want: "auto"},
		{in: "strict", want: "strict"},
		{in: " Permissive ", want: "permissive"},
		{in: "legacy", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("HOLYIOT_VARIANT", tt.in)

			got, err := LoadFromEnv()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("LoadFromEnv() error = nil, want non-nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadFromEnv() error = %v, want nil", err)
			}
			if got.Variant != tt.want {
				t.Errorf("Variant = %q, want %q", got.Variant, tt.want)
			}
		})
	}
}

func TestLoadFromEnv_MQTTPort_Invalid(t *testing.T) {
	for _, port := range []string{"abc", "0", "70000"} {
		t.Run(port, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("MQTT_PORT", port)

			if _, err := LoadFromEnv(); err == nil {
				t.Fatalf("LoadFromEnv() error = nil, want non-nil")
			}
		})
	}
}

func TestLoadFromEnv_PublishInterval(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "30s", want: 30 * time.Second},
		{in: "1h", want: time.Hour},
		{in: "0s", wantErr: true},
		{in: "-1m", wantErr: true},
		{in: "soon", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("PUBLISH_INTERVAL", tt.in)

			got, err := LoadFromEnv()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("LoadFromEnv() error = nil, want non-nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadFromEnv() error = %v, want nil", err)
			}
			if got.PublishInterval != tt.want {
				t.Errorf("PublishInterval = %v, want %v", got.PublishInterval, tt.want)
			}
		})
	}
}

func TestLoadFromEnv_TopicPrefixTrimmed(t *testing.T) {
	clearEnv(t)
	t.Setenv("MQTT_TOPIC_PREFIX", " /home/ble/ ")

	got, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v, want nil", err)
	}
	if got.MQTTTopicPrefix != "home/ble" {
		t.Errorf("MQTTTopicPrefix = %q, want %q", got.MQTTTopicPrefix, "home/ble")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "trace", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseLogLevel(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseLogLevel(%q) error = nil, want non-nil", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseLogLevel(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
