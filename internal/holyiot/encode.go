package holyiot

import "fmt"

// Encode builds the shortest frame v accepts for address and battery. A nil
// battery is encoded as unknown. It is the inverse of Decode and backs the
// bench simulator.
func Encode(v Variant, address string, battery *int) ([]byte, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}

	raw := byte(batteryUnknown)
	if battery != nil {
		if *battery < 0 || *battery >= batteryUnknown {
			return nil, fmt.Errorf("battery %d outside 0-%d", *battery, batteryUnknown-1)
		}
		raw = byte(*battery)
	}

	n := v.MinLength
	if v.ExactLength != 0 {
		n = v.ExactLength
	}
	frame := make([]byte, n)
	frame[v.BatteryOffset] = raw

	if v.ValidateMAC {
		mac, err := ParseMAC(address)
		if err != nil {
			return nil, err
		}
		copy(frame[v.MACOffset:], mac)
	}
	return frame, nil
}
