package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mash-protocol/mash-panel/pkg/cbor"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
serial: SN-42
model: Wallbox
type: battery
settings:
  maxCurrent: 16
  mode: eco
  schedule: [6, 22]
  calibration: !!binary AQID
`))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}

	if cfg.Serial != "SN-42" {
		t.Errorf("Serial = %q", cfg.Serial)
	}
	if cfg.Model != "Wallbox" {
		t.Errorf("Model = %q", cfg.Model)
	}
	if cfg.Type != DeviceTypeBattery {
		t.Errorf("Type = %q", cfg.Type)
	}

	want := `{"maxCurrent": 16, "mode": "eco", "schedule": [6, 22], "calibration": h'010203'}`
	if got := cfg.Settings.String(); got != want {
		t.Errorf("Settings = %s, want %s", got, want)
	}
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("serial: X\n"))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}

	def := DefaultDeviceConfig()
	if cfg.Model != def.Model || cfg.Type != def.Type {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.Settings.Kind() != cbor.KindMap || cfg.Settings.Len() != 0 {
		t.Errorf("Settings = %v, want empty map", cfg.Settings)
	}
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"bad yaml", "serial: [unclosed"},
		{"unknown type", "type: toaster"},
		{"settings not a map", "settings: [1, 2]"},
		{"complex key", "settings:\n  ? [a]\n  : 1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseConfig([]byte(tt.doc)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.yaml")
	if err := os.WriteFile(path, []byte("model: Inverter\ntype: inverter\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Type != DeviceTypeInverter {
		t.Errorf("Type = %q", cfg.Type)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
