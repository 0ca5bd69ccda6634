package ble

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"holyiot-gateway/internal/capture"
	"holyiot-gateway/internal/holyiot"
	"holyiot-gateway/internal/mqtt"
	"holyiot-gateway/internal/utils"
)

const journalTimeout = 2 * time.Second

type Publisher interface {
	PublishBattery(state mqtt.BatteryState) error
}

// Journal records raw sightings. capture.Repository satisfies it.
type Journal interface {
	InsertSighting(ctx context.Context, s capture.Sighting) error
}

// explainer is implemented by holyiot.Decoder and holyiot.MultiDecoder.
type explainer interface {
	Explain(r holyiot.Record) error
}

type HandlerOptions struct {
	// TrackedAddress limits publishing to one device when set.
	TrackedAddress string
	// PublishInterval republishes an unchanged battery level at most this often.
	PublishInterval time.Duration
	Journal         Journal
	Logger          *slog.Logger
}

type lastPublished struct {
	address string
	battery *int
	at      time.Time
	seq     uint64
}

// DeviceStatus is the last state published for one device.
type DeviceStatus struct {
	Address       string    `json:"address"`
	Battery       *int      `json:"battery"`
	LastPublished time.Time `json:"last_published"`
}

// BatteryHandler decodes HolyIot advertisements and publishes battery state,
// suppressing repeats of an unchanged level within the publish interval.
type BatteryHandler struct {
	decoder   holyiot.PayloadDecoder
	publisher Publisher
	opts      HandlerOptions
	tracked   string
	logger    *slog.Logger
	now       func() time.Time

	mu         sync.Mutex
	discovered map[string]struct{}
	last       map[string]lastPublished
	seq        uint64
}

func NewBatteryHandler(decoder holyiot.PayloadDecoder, publisher Publisher, opts HandlerOptions) *BatteryHandler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var tracked string
	if opts.TrackedAddress != "" {
		tracked = utils.MACKey(opts.TrackedAddress)
	}
	return &BatteryHandler{
		decoder:    decoder,
		publisher:  publisher,
		opts:       opts,
		tracked:    tracked,
		logger:     logger,
		now:        time.Now,
		discovered: make(map[string]struct{}),
		last:       make(map[string]lastPublished),
	}
}

// HandleMatch processes one scanner match. It is safe for concurrent use.
func (h *BatteryHandler) HandleMatch(m Match) {
	key := utils.MACKey(m.Addr)
	if h.tracked != "" && key != h.tracked {
		return
	}

	upd, ok := h.decoder.Decode(m)
	h.journal(m, upd, ok)
	if !ok {
		return
	}

	if h.firstSighting(key) {
		h.logger.Info("ble: holyiot device discovered",
			"addr", upd.Address,
			"name", m.LocalName,
			"variant", upd.Variant,
			"rssi", m.RSSI,
		)
	}

	prev, hadPrev, reserved, ok := h.reserve(key, upd.Address, upd.Battery)
	if !ok {
		return
	}

	seenAt := m.SeenAt
	if seenAt.IsZero() {
		seenAt = h.now()
	}
	state := mqtt.BatteryState{
		Address:   upd.Address,
		Name:      m.LocalName,
		Battery:   upd.Battery,
		Variant:   upd.Variant,
		RSSI:      m.RSSI,
		Timestamp: seenAt,
	}
	if err := h.publisher.PublishBattery(state); err != nil {
		h.release(key, reserved, prev, hadPrev)
		h.logger.Warn("ble: failed to publish battery state", "addr", upd.Address, "error", err)
		return
	}

	h.logger.Info("ble: battery state published",
		"addr", upd.Address,
		"battery", batteryAttr(upd.Battery),
		"variant", upd.Variant,
		"rssi", m.RSSI,
	)
}

// StartListener runs listener with this handler in the background.
func (h *BatteryHandler) StartListener(ctx context.Context, listener *Listener) {
	go func() {
		err := listener.Run(ctx, h.HandleMatch)
		if err != nil {
			h.logger.Warn("ble listener could not be initialized; gateway continues without BLE",
				"error", err,
			)
		}
	}()
}

// Devices returns the last published state of every device, ordered by address.
func (h *BatteryHandler) Devices() []DeviceStatus {
	h.mu.Lock()
	out := make([]DeviceStatus, 0, len(h.last))
	for _, p := range h.last {
		out = append(out, DeviceStatus{Address: p.address, Battery: p.battery, LastPublished: p.at})
	}
	h.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

func (h *BatteryHandler) firstSighting(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.discovered[key]; ok {
		return false
	}
	h.discovered[key] = struct{}{}
	return true
}

// reserve checks the throttle and claims the publish slot for key in one
// critical section, so concurrent matches for a device publish at most once.
// It returns the entry it replaced for release.
func (h *BatteryHandler) reserve(key, address string, battery *int) (prev lastPublished, hadPrev bool, reserved uint64, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev, hadPrev = h.last[key]
	if hadPrev && sameBattery(prev.battery, battery) &&
		h.opts.PublishInterval > 0 && h.now().Sub(prev.at) < h.opts.PublishInterval {
		return prev, hadPrev, 0, false
	}
	h.seq++
	h.last[key] = lastPublished{address: address, battery: battery, at: h.now(), seq: h.seq}
	return prev, hadPrev, h.seq, true
}

// release undoes a failed reservation so the next match retries. A newer
// reservation for key is left alone.
func (h *BatteryHandler) release(key string, reserved uint64, prev lastPublished, hadPrev bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last[key].seq != reserved {
		return
	}
	if hadPrev {
		h.last[key] = prev
		return
	}
	delete(h.last, key)
}

// journal records sightings that carry the vendor service. Failures are logged
// and never block publishing.
func (h *BatteryHandler) journal(m Match, upd holyiot.Update, accepted bool) {
	if h.opts.Journal == nil {
		return
	}
	payload, ok := m.Services[holyiot.ServiceUUID]
	if !ok {
		return
	}

	s := capture.Sighting{
		Address:     m.Addr,
		Name:        m.LocalName,
		ServiceUUID: holyiot.ServiceUUID,
		Payload:     payload,
		RSSI:        m.RSSI,
		Accepted:    accepted,
		Variant:     upd.Variant,
		SeenAt:      m.SeenAt,
	}
	if !accepted {
		if ex, ok := h.decoder.(explainer); ok {
			if err := ex.Explain(m); err != nil {
				s.Reason = err.Error()
			}
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := h.opts.Journal.InsertSighting(ctx, s); err != nil {
		h.logger.Warn("ble: failed to journal sighting", "addr", m.Addr, "error", err)
	}
}

func sameBattery(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func batteryAttr(b *int) any {
	if b == nil {
		return "unknown"
	}
	return *b
}
