package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	// WHAT: An empty config resolves to the documented defaults.
	// WHY: Operators run without a config file in the common case.
	cfg := Default()
	if cfg.Port != 5001 {
		t.Errorf("port: got %d", cfg.Port)
	}
	if cfg.AccessControl != "none" {
		t.Errorf("access_control: got %q", cfg.AccessControl)
	}
	if cfg.MaxObselCount != 1000 {
		t.Errorf("max_obsel_count: got %d", cfg.MaxObselCount)
	}
	if cfg.SessionSecret == "" {
		t.Error("session secret not generated")
	}
	if cfg.AllowExternal {
		t.Error("external access on by default")
	}
}

func TestDebugForcesLoopback(t *testing.T) {
	// WHAT: debug=true overrides allow_external.
	// WHY: A debug server must never listen on public interfaces.
	cfg := &Config{Debug: true, AllowExternal: true}
	cfg.defaults()
	if cfg.AllowExternal {
		t.Error("debug did not force loopback")
	}
	if cfg.Addr() != "127.0.0.1:5001" {
		t.Errorf("addr: got %q", cfg.Addr())
	}
}

func TestLoadFile(t *testing.T) {
	// WHAT: YAML values land in the struct and pass validation.
	// WHY: The config file is the deployment interface.
	path := filepath.Join(t.TempDir(), "nots.yaml")
	body := "db_path: /tmp/t.db\nport: 8080\naccess_control: localhost\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DBPath != "/tmp/t.db" || cfg.Port != 8080 || cfg.AccessControl != "localhost" {
		t.Errorf("got %+v", cfg)
	}
}

func TestBadAccessControl(t *testing.T) {
	// WHAT: An unknown access_control value fails Load.
	// WHY: The value gates 401 checks; a typo must not silently deny
	// or allow everything.
	path := filepath.Join(t.TempDir(), "nots.yaml")
	os.WriteFile(path, []byte("access_control: everyone\n"), 0o600)
	if _, err := Load(path); err == nil {
		t.Error("bad access_control accepted")
	}
}
