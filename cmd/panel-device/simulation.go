package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/mash-protocol/mash-panel/pkg/cbor"
)

// DeviceType selects the simulated telemetry profile.
type DeviceType string

const (
	DeviceTypeEVSE     DeviceType = "evse"
	DeviceTypeInverter DeviceType = "inverter"
	DeviceTypeBattery  DeviceType = "battery"
)

// ParseDeviceType parses a device type name (case-insensitive).
func ParseDeviceType(s string) (DeviceType, error) {
	switch t := DeviceType(strings.ToLower(s)); t {
	case DeviceTypeEVSE, DeviceTypeInverter, DeviceTypeBattery:
		return t, nil
	}
	return "", fmt.Errorf("unknown device type %q (want evse, inverter or battery)", s)
}

// Simulator produces telemetry samples. Power values are in milliwatts.
// It is not safe for concurrent use; each stream owns one.
type Simulator struct {
	deviceType DeviceType
	seq        int64
	power      int64
	now        func() time.Time
}

// NewSimulator creates a simulator for the given device type.
func NewSimulator(deviceType DeviceType) *Simulator {
	return &Simulator{deviceType: deviceType, now: time.Now}
}

// Next advances the simulation by one step and returns the sample.
func (s *Simulator) Next() cbor.Value {
	s.seq++

	var state string
	switch s.deviceType {
	case DeviceTypeEVSE:
		// Ramp charging power up to 22 kW, then restart at 1.38 kW
		s.power = (s.power + 1000000) % 22000000
		if s.power == 0 {
			s.power = 1380000
		}
		state = "charging"

	case DeviceTypeInverter:
		// Production follows the hour of day, peaking at 13:00
		hour := s.now().Hour()
		if hour >= 6 && hour <= 20 {
			s.power = int64((10 - abs(hour-13)) * 1000000)
			state = "producing"
		} else {
			s.power = 0
			state = "idle"
		}

	case DeviceTypeBattery:
		// Cycle between -5 kW (discharge) and +5 kW (charge)
		s.power = (s.power+5000000+500000)%10000000 - 5000000
		switch {
		case s.power > 0:
			state = "charging"
		case s.power < 0:
			state = "discharging"
		default:
			state = "idle"
		}
	}

	return cbor.Map(
		cbor.Pair{Key: "seq", Value: cbor.Int(s.seq)},
		cbor.Pair{Key: "timestamp", Value: cbor.Int(s.now().UnixMilli())},
		cbor.Pair{Key: "type", Value: cbor.Text(string(s.deviceType))},
		cbor.Pair{Key: "state", Value: cbor.Text(state)},
		cbor.Pair{Key: "power", Value: cbor.Int(s.power)},
		cbor.Pair{Key: "powerKW", Value: cbor.Float(float64(s.power) / 1000000)},
	)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
