package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"holyiot-gateway/internal/holyiot"
)

type Config struct {
	AppEnv          string
	LogLevel        slog.Level
	MQTTBroker      string
	MQTTPort        int
	MQTTClientID    string
	MQTTTopicPrefix string

	BLEAdapter string
	// TrackedAddress restricts publishing to one device when set.
	TrackedAddress  string
	Variant         string
	PublishInterval time.Duration

	// CapturePath enables the SQLite sighting journal when set.
	CapturePath string
	// HTTPAddr enables the health endpoint when set.
	HTTPAddr string
}

func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	mqttBroker := strings.TrimSpace(os.Getenv("MQTT_BROKER"))
	if mqttBroker == "" {
		mqttBroker = "localhost"
	}

	mqttPortStr := strings.TrimSpace(os.Getenv("MQTT_PORT"))
	if mqttPortStr == "" {
		mqttPortStr = "1883"
	}
	mqttPort, err := strconv.Atoi(mqttPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %q: %w", mqttPortStr, err)
	}
	if mqttPort < 1 || mqttPort > 65535 {
		return Config{}, fmt.Errorf("MQTT_PORT must be in 1-65535, got %d", mqttPort)
	}

	mqttClientID := strings.TrimSpace(os.Getenv("MQTT_CLIENT_ID"))
	if mqttClientID == "" {
		mqttClientID = "holyiot-gateway"
	}

	topicPrefix := strings.Trim(strings.TrimSpace(os.Getenv("MQTT_TOPIC_PREFIX")), "/")
	if topicPrefix == "" {
		topicPrefix = "holyiot"
	}

	bleAdapter := strings.TrimSpace(os.Getenv("BLE_ADAPTER"))
	if bleAdapter == "" {
		bleAdapter = "hci0"
	}

	trackedAddress := strings.ToUpper(strings.TrimSpace(os.Getenv("HOLYIOT_ADDRESS")))
	if trackedAddress != "" {
		if _, err := holyiot.ParseMAC(trackedAddress); err != nil {
			return Config{}, fmt.Errorf("invalid HOLYIOT_ADDRESS: %w", err)
		}
	}

	variant := strings.ToLower(strings.TrimSpace(os.Getenv("HOLYIOT_VARIANT")))
	if variant == "" {
		variant = "auto"
	}
	if variant != "auto" {
		if _, err := holyiot.LookupVariant(variant); err != nil {
			return Config{}, fmt.Errorf("invalid HOLYIOT_VARIANT %q (allowed: auto, strict, permissive)", variant)
		}
	}

	publishIntervalStr := strings.TrimSpace(os.Getenv("PUBLISH_INTERVAL"))
	if publishIntervalStr == "" {
		publishIntervalStr = "5m"
	}
	publishInterval, err := time.ParseDuration(publishIntervalStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid PUBLISH_INTERVAL %q: %w", publishIntervalStr, err)
	}
	if publishInterval <= 0 {
		return Config{}, fmt.Errorf("PUBLISH_INTERVAL must be positive, got %v", publishInterval)
	}

	capturePath := strings.TrimSpace(os.Getenv("CAPTURE_SQLITE_PATH"))

	httpAddr := strings.TrimSpace(os.Getenv("HTTP_ADDR"))

	return Config{
		AppEnv:          appEnv,
		LogLevel:        level,
		MQTTBroker:      mqttBroker,
		MQTTPort:        mqttPort,
		MQTTClientID:    mqttClientID,
		MQTTTopicPrefix: topicPrefix,
		BLEAdapter:      bleAdapter,
		TrackedAddress:  trackedAddress,
		Variant:         variant,
		PublishInterval: publishInterval,
		CapturePath:     capturePath,
		HTTPAddr:        httpAddr,
	}, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
