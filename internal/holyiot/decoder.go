// Package holyiot decodes HolyIot BLE beacon advertisements.
//
// The vendor publishes service data under UUID 0x5242. Two firmware layouts
// are known and disagree on length, battery offset and whether the device MAC
// is embedded, so each layout is a Variant and a Decoder is bound to one (or,
// via MultiDecoder, tries several in order).
package holyiot

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
)

// Update is the state carried by one accepted advertisement.
type Update struct {
	Address string
	// Battery is nil when the device reports 0xFF (unknown).
	Battery *int
	Variant string

	// Temperature and humidity are reserved for later firmware fields.
}

// PayloadDecoder is satisfied by Decoder and MultiDecoder.
type PayloadDecoder interface {
	Matches(Record) bool
	Decode(Record) (Update, bool)
}

type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the sink for rejection diagnostics. Without it they are
// discarded.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Decoder applies a single Variant. It is immutable and safe for concurrent use.
type Decoder struct {
	variant Variant
	logger  *slog.Logger
}

func NewDecoder(v Variant, opts ...Option) (*Decoder, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &Decoder{
		variant: v,
		logger:  o.logger.With("variant", v.Name),
	}, nil
}

// MustDecoder is NewDecoder for variants known to be valid, such as Strict
// and Permissive.
func MustDecoder(v Variant, opts ...Option) *Decoder {
	d, err := NewDecoder(v, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Decoder) Variant() Variant {
	return d.variant
}

// Matches reports whether r carries a payload this decoder accepts.
func (d *Decoder) Matches(r Record) bool {
	_, err := d.gate(r)
	if err != nil {
		d.reject(r, err)
		return false
	}
	return true
}

// Decode extracts the update from r. ok is false exactly when Matches(r) is.
func (d *Decoder) Decode(r Record) (Update, bool) {
	payload, err := d.gate(r)
	if err != nil {
		d.reject(r, err)
		return Update{}, false
	}
	return Update{
		Address: r.Address(),
		Battery: battery(payload[d.variant.BatteryOffset]),
		Variant: d.variant.Name,
	}, true
}

// Explain returns why r is rejected, or nil if it is accepted.
func (d *Decoder) Explain(r Record) error {
	_, err := d.gate(r)
	return err
}

// gate returns the vendor payload once every check of the variant passed.
func (d *Decoder) gate(r Record) ([]byte, error) {
	if r == nil {
		return nil, ErrVendorMismatch
	}
	payload, ok := r.ServiceData()[d.variant.ServiceUUID]
	if !ok {
		return nil, ErrVendorMismatch
	}
	if len(payload) < d.variant.MinLength {
		return nil, fmt.Errorf("%w: %d bytes, want at least %d", ErrTruncatedPayload, len(payload), d.variant.MinLength)
	}
	if d.variant.ExactLength != 0 && len(payload) != d.variant.ExactLength {
		return nil, fmt.Errorf("%w: %d bytes, want %d", ErrTruncatedPayload, len(payload), d.variant.ExactLength)
	}
	if d.variant.ValidateMAC {
		mac, err := ParseMAC(r.Address())
		if err != nil {
			return nil, err
		}
		embedded := payload[d.variant.MACOffset : d.variant.MACOffset+macLength]
		if !bytes.Equal(mac, embedded) {
			return nil, fmt.Errorf("%w: embedded %s", ErrIdentityMismatch, FormatMAC(embedded))
		}
	}
	return payload, nil
}

func (d *Decoder) reject(r Record, err error) {
	d.logger.Debug("holyiot: advertisement rejected", "addr", address(r), "reason", err)
}

func address(r Record) string {
	if r == nil {
		return ""
	}
	return r.Address()
}

func battery(raw byte) *int {
	if raw == batteryUnknown {
		return nil
	}
	v := int(raw)
	return &v
}

// ParseMAC decodes "AA:BB:CC:DD:EE:FF" (any case) into its 6 raw bytes.
func ParseMAC(address string) ([]byte, error) {
	b, err := hex.DecodeString(strings.ReplaceAll(address, ":", ""))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrMalformedAddress, address, err)
	}
	if len(b) != macLength {
		return nil, fmt.Errorf("%w: %q decodes to %d bytes", ErrMalformedAddress, address, len(b))
	}
	return b, nil
}

// FormatMAC renders raw bytes as upper-case colon-separated octets.
func FormatMAC(b []byte) string {
	parts := make([]string, len(b))
	for i, x := range b {
		parts[i] = fmt.Sprintf("%02X", x)
	}
	return strings.Join(parts, ":")
}
