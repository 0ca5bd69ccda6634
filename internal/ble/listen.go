package ble

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tinygo.org/x/bluetooth"
)

// Match is a single advertisement that carried service data for one of the
// filtered UUIDs. It satisfies holyiot.Record.
type Match struct {
	Addr      string
	RSSI      int16
	LocalName string
	Services  map[string][]byte
	SeenAt    time.Time
}

func (m Match) Address() string                { return m.Addr }
func (m Match) ServiceData() map[string][]byte { return m.Services }
func (m Match) Name() string                   { return m.LocalName }

type Filter struct {
	// ServiceUUIDs keeps advertisements carrying service data for any of
	// these UUIDs. Empty keeps every advertisement with service data.
	ServiceUUIDs []string
}

type Options struct {
	Adapter string // "hci0" by default
	Filter  Filter
	Logger  *slog.Logger
}

// Listener wraps BlueZ scanning with context cancellation.
type Listener struct {
	adapter *bluetooth.Adapter
	opts    Options
	logger  *slog.Logger
}

func NewListener(opts Options) *Listener {
	if opts.Adapter == "" {
		opts.Adapter = "hci0"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Listener{
		adapter: bluetooth.NewAdapter(opts.Adapter),
		opts:    opts,
		logger:  logger,
	}
}

func (l *Listener) Run(ctx context.Context, onMatch func(Match)) error {
	l.logger.Info("ble: enabling adapter", "adapter", l.opts.Adapter)
	if err := l.adapter.Enable(); err != nil {
		return fmt.Errorf("ble enable (%s): %w", l.opts.Adapter, err)
	}
	l.logger.Info("ble: adapter enabled", "adapter", l.opts.Adapter)

	go func() {
		<-ctx.Done()
		_ = l.adapter.StopScan()
	}()

	l.logger.Info("ble: scanning started", "filter_uuids", l.opts.Filter.ServiceUUIDs)

	// adapter.Scan blocks until StopScan() or error.
	err := l.adapter.Scan(func(_ *bluetooth.Adapter, r bluetooth.ScanResult) {
		services := serviceData(r.ServiceData())
		if !l.opts.Filter.keep(services) {
			return
		}
		if onMatch != nil {
			onMatch(Match{
				Addr:      r.Address.String(),
				RSSI:      r.RSSI,
				LocalName: r.LocalName(),
				Services:  services,
				SeenAt:    time.Now(),
			})
		}
	})

	// If ctx canceled, treat as clean shutdown.
	if ctx.Err() != nil {
		l.logger.Info("ble: scanning stopped (context canceled)")
		return nil
	}

	if err != nil {
		return fmt.Errorf("ble scan: %w", err)
	}

	l.logger.Info("ble: scanning stopped")
	return nil
}

// serviceData copies the scan buffers, which BlueZ reuses between callbacks,
// into a map keyed by the lowercase 128-bit UUID string.
func serviceData(elems []bluetooth.ServiceDataElement) map[string][]byte {
	if len(elems) == 0 {
		return nil
	}
	out := make(map[string][]byte, len(elems))
	for _, sd := range elems {
		out[strings.ToLower(sd.UUID.String())] = append([]byte(nil), sd.Data...)
	}
	return out
}

func (f Filter) keep(services map[string][]byte) bool {
	if len(services) == 0 {
		return false
	}
	if len(f.ServiceUUIDs) == 0 {
		return true
	}
	for _, u := range f.ServiceUUIDs {
		if _, ok := services[strings.ToLower(u)]; ok {
			return true
		}
	}
	return false
}
