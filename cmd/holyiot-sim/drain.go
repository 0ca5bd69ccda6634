package main

import (
	"fmt"
	"strconv"
)

// batteryDrain is the simulated battery level. A nil level stays unknown.
type batteryDrain struct {
	level *int
}

func newDrain(start int, unknown bool) (*batteryDrain, error) {
	if unknown {
		return &batteryDrain{}, nil
	}
	if start < 0 || start > 254 {
		return nil, fmt.Errorf("--battery must be in 0-254, got %d", start)
	}
	return &batteryDrain{level: &start}, nil
}

func (d *batteryDrain) current() *int {
	return d.level
}

// drain lowers the level by one point and reports whether it changed.
func (d *batteryDrain) drain() bool {
	if d.level == nil || *d.level == 0 {
		return false
	}
	next := *d.level - 1
	d.level = &next
	return true
}

func (d *batteryDrain) String() string {
	if d.level == nil {
		return "unknown"
	}
	return strconv.Itoa(*d.level) + "%"
}
