package config

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func parse(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cfg := NewWithFlagSet(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse(%v) error = %v", args, err)
	}
	return cfg, cfg.Load()
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gpsd-bridge.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := parse(t)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.GpsdServer != "localhost:2947" {
		t.Errorf("GpsdServer = %q", cfg.GpsdServer)
	}
	if cfg.Interval != time.Second {
		t.Errorf("Interval = %v", cfg.Interval)
	}
	if cfg.GlonassFirstPRN != 65 || cfg.GlonassLastPRN != 96 {
		t.Errorf("GLONASS band = %d-%d", cfg.GlonassFirstPRN, cfg.GlonassLastPRN)
	}
	if cfg.PowerLine != -1 || !cfg.Wakelock || cfg.ModemGNSS {
		t.Errorf("Unexpected hardware defaults %+v", cfg)
	}
}

func TestFileOverlay(t *testing.T) {
	path := writeFile(t, `
gpsd_server: 192.168.7.1:2947
interval: 5s
satellite_format: legacy
power_line: 12
debug: true
`)

	cfg, err := parse(t, "-config", path, "-interval", "250ms")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.GpsdServer != "192.168.7.1:2947" {
		t.Errorf("GpsdServer = %q, want value from file", cfg.GpsdServer)
	}
	if cfg.Interval != 250*time.Millisecond {
		t.Errorf("Interval = %v, want command line value", cfg.Interval)
	}
	if cfg.SatelliteFormat != "legacy" || cfg.PowerLine != 12 || !cfg.Debug {
		t.Errorf("File values not applied: %+v", cfg)
	}
	if cfg.RedisURL != "redis://127.0.0.1:6379" {
		t.Errorf("RedisURL = %q, want default kept", cfg.RedisURL)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "missing file", args: []string{"-config", filepath.Join(t.TempDir(), "nope.yaml")}},
		{name: "bad yaml", args: []string{"-config", writeFile(t, "interval: [")}},
		{name: "unknown format", args: []string{"-satellite-format", "nmea"}},
		{name: "negative interval", args: []string{"-interval", "-1s"}},
		{name: "inverted band", args: []string{"-glonass-first-prn", "96", "-glonass-last-prn", "65"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parse(t, tt.args...); err == nil {
				t.Error("Expected Load() to fail")
			}
		})
	}
}
