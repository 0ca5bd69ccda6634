package httpapi

import (
	"context"
	"net/http"

	"holyiot-gateway/internal/ble"
)

// Broker reports MQTT connectivity. mqtt.Client satisfies it.
type Broker interface {
	IsConnected() bool
}

// Pinger is the optional capture journal. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// DeviceLister is satisfied by ble.BatteryHandler.
type DeviceLister interface {
	Devices() []ble.DeviceStatus
}

// NewMux registers the gateway endpoints. journal may be nil.
func NewMux(broker Broker, journal Pinger, devices DeviceLister) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, broker, journal)
	registerDevices(mux, devices)
	return mux
}
