package holyiot

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ServiceUUID is the 128-bit form of the HolyIot 16-bit service 0x5242.
const ServiceUUID = "00005242-0000-1000-8000-00805f9b34fb"

const (
	macLength      = 6
	batteryUnknown = 0xFF
)

// Variant describes one known payload layout.
type Variant struct {
	Name        string
	ServiceUUID string
	MinLength   int
	// ExactLength is enforced when non-zero.
	ExactLength   int
	BatteryOffset int
	ValidateMAC   bool
	MACOffset     int
}

// Strict is the 17-byte frame: header(5) battery(1) mac(6) trailer(5).
var Strict = Variant{
	Name:          "strict",
	ServiceUUID:   ServiceUUID,
	MinLength:     17,
	ExactLength:   17,
	BatteryOffset: 5,
	ValidateMAC:   true,
	MACOffset:     6,
}

// Permissive is the short frame seen from ESPHome proxies: header(1) battery(1),
// trailing bytes ignored.
var Permissive = Variant{
	Name:          "permissive",
	ServiceUUID:   ServiceUUID,
	MinLength:     2,
	BatteryOffset: 1,
}

// Variants returns the built-in layouts in lookup precedence. Strict comes
// first because every strict frame also satisfies the permissive gate.
func Variants() []Variant {
	return []Variant{Strict, Permissive}
}

// LookupVariant resolves a built-in variant by name.
func LookupVariant(name string) (Variant, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, v := range Variants() {
		if v.Name == n {
			return v, nil
		}
	}
	return Variant{}, fmt.Errorf("unknown variant %q", name)
}

// Validate checks that every offset the gate and extraction use lies inside
// MinLength, so a payload that passed the length check can always be read.
func (v Variant) Validate() error {
	if v.Name == "" {
		return fmt.Errorf("variant name is required")
	}
	if _, err := uuid.Parse(v.ServiceUUID); err != nil {
		return fmt.Errorf("variant %s: service uuid %q: %w", v.Name, v.ServiceUUID, err)
	}
	if v.MinLength < 1 {
		return fmt.Errorf("variant %s: min length must be positive, got %d", v.Name, v.MinLength)
	}
	if v.ExactLength != 0 && v.ExactLength < v.MinLength {
		return fmt.Errorf("variant %s: exact length %d below min length %d", v.Name, v.ExactLength, v.MinLength)
	}
	if v.BatteryOffset < 0 || v.BatteryOffset >= v.MinLength {
		return fmt.Errorf("variant %s: battery offset %d outside min length %d", v.Name, v.BatteryOffset, v.MinLength)
	}
	if v.ValidateMAC && (v.MACOffset < 0 || v.MACOffset+macLength > v.MinLength) {
		return fmt.Errorf("variant %s: mac at offset %d does not fit min length %d", v.Name, v.MACOffset, v.MinLength)
	}
	return nil
}

func (v Variant) String() string {
	return v.Name
}
