package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadServerConfig_Defaults(t *testing.T) {
	cfg, err := LoadServerConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SerialVariant != "usb3003" || cfg.ListenAddr != ":8443" {
		t.Fatalf("got %+v, want defaults", cfg)
	}
}

func TestLoadServerConfig_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ambed.yaml")
	contents := "serial:\n  path: usb:/dev/ttyUSB1\n  variant: usb3000\nlisten:\n  addr: \":9000\"\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadServerConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SerialPath != "usb:/dev/ttyUSB1" || cfg.SerialVariant != "usb3000" || cfg.ListenAddr != ":9000" {
		t.Fatalf("got %+v", cfg)
	}
}

func TestLoadClientConfig_Defaults(t *testing.T) {
	cfg, err := LoadClientConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DeviceURI != "usb:/dev/ttyUSB0" {
		t.Fatalf("got %+v", cfg)
	}
}
