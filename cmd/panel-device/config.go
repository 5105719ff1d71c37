package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mash-protocol/mash-panel/pkg/cbor"
)

// DeviceConfig is the device description loaded with -config.
type DeviceConfig struct {
	Serial string
	Model  string
	Type   DeviceType

	// Settings seeds an empty settings store. Always a Map.
	Settings cbor.Value
}

// configFile is the YAML layout of a device config file:
//
//	serial: SN-0001
//	model: Wallbox
//	type: evse
//	settings:
//	  maxCurrent: 16
//	  mode: eco
type configFile struct {
	Serial   string    `yaml:"serial"`
	Model    string    `yaml:"model"`
	Type     string    `yaml:"type"`
	Settings yaml.Node `yaml:"settings"`
}

// DefaultDeviceConfig returns the configuration used without -config.
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		Serial:   "SN-0001",
		Model:    "PanelDevice",
		Type:     DeviceTypeEVSE,
		Settings: cbor.Map(),
	}
}

// LoadConfig reads a device config file.
func LoadConfig(path string) (*DeviceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses a device config document. Missing fields keep their
// defaults.
func ParseConfig(data []byte) (*DeviceConfig, error) {
	var f configFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg := DefaultDeviceConfig()
	if f.Serial != "" {
		cfg.Serial = f.Serial
	}
	if f.Model != "" {
		cfg.Model = f.Model
	}
	if f.Type != "" {
		t, err := ParseDeviceType(f.Type)
		if err != nil {
			return nil, err
		}
		cfg.Type = t
	}

	if f.Settings.Kind != 0 {
		settings, err := cbor.FromYAMLNode(&f.Settings)
		if err != nil {
			return nil, fmt.Errorf("invalid settings: %w", err)
		}
		switch settings.Kind() {
		case cbor.KindMap:
			cfg.Settings = settings
		case cbor.KindNull:
		default:
			return nil, fmt.Errorf("settings must be a map, got %s", settings.Kind())
		}
	}

	return cfg, nil
}
