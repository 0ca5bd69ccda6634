package ble

import (
	"fmt"
	"log/slog"
	"time"

	"tinygo.org/x/bluetooth"
)

type AdvertiserOptions struct {
	Adapter   string // "hci0" by default
	LocalName string
	Interval  time.Duration
	Logger    *slog.Logger
}

// Advertiser broadcasts non-connectable service-data advertisements. It is
// used to bench-test the gateway without a real beacon.
type Advertiser struct {
	adapter *bluetooth.Adapter
	adv     *bluetooth.Advertisement
	opts    AdvertiserOptions
	logger  *slog.Logger
	started bool
}

func NewAdvertiser(opts AdvertiserOptions) *Advertiser {
	if opts.Adapter == "" {
		opts.Adapter = "hci0"
	}
	if opts.Interval <= 0 {
		opts.Interval = 100 * time.Millisecond
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Advertiser{
		adapter: bluetooth.NewAdapter(opts.Adapter),
		opts:    opts,
		logger:  logger,
	}
}

// Enable powers the adapter and returns its public address.
func (a *Advertiser) Enable() (string, error) {
	if err := a.adapter.Enable(); err != nil {
		return "", fmt.Errorf("ble enable (%s): %w", a.opts.Adapter, err)
	}
	addr, err := a.adapter.Address()
	if err != nil {
		return "", fmt.Errorf("ble address (%s): %w", a.opts.Adapter, err)
	}
	a.adv = a.adapter.DefaultAdvertisement()
	return addr.MAC.String(), nil
}

// Advertise replaces the current advertisement with data under serviceUUID.
func (a *Advertiser) Advertise(serviceUUID string, data []byte) error {
	if a.adv == nil {
		return fmt.Errorf("ble advertiser not enabled")
	}
	uuid, err := bluetooth.ParseUUID(serviceUUID)
	if err != nil {
		return fmt.Errorf("service uuid %q: %w", serviceUUID, err)
	}

	// Re-configure each cycle so the payload changes.
	if err := a.Stop(); err != nil {
		return err
	}
	if err := a.adv.Configure(bluetooth.AdvertisementOptions{
		AdvertisementType: bluetooth.AdvertisingTypeNonConnInd,
		LocalName:         a.opts.LocalName,
		Interval:          bluetooth.NewDuration(a.opts.Interval),
		ServiceData: []bluetooth.ServiceDataElement{
			{UUID: uuid, Data: data},
		},
	}); err != nil {
		return fmt.Errorf("ble advertisement configure: %w", err)
	}
	if err := a.adv.Start(); err != nil {
		return fmt.Errorf("ble advertisement start: %w", err)
	}
	a.started = true
	a.logger.Debug("ble: advertising", "uuid", serviceUUID, "name", a.opts.LocalName, "len", len(data))
	return nil
}

func (a *Advertiser) Stop() error {
	if !a.started {
		return nil
	}
	a.started = false
	if err := a.adv.Stop(); err != nil {
		return fmt.Errorf("ble advertisement stop: %w", err)
	}
	return nil
}
