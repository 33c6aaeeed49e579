package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// chdir changes the working directory for the duration of the test.
// (*testing.T).Chdir requires Go 1.24; this keeps the test on Go 1.21.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Error(err)
		}
	})
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_ENV", "nonexistent")
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := &Config{
		Mode:           "release",
		Port:           8000,
		StaticPath:     "./web",
		ReadLimit:      32768,
		PingPeriod:     54 * time.Second,
		SendBuffer:     64,
		AccessSecret:   "dev-secret-change",
		AccessTTL:      time.Hour,
		DBPath:         "talkrooms.db",
		RoomTTL:        120 * time.Hour,
		MaxVoiceUsers:  6,
		AllowedOrigins: []string{"http://localhost:5173"},
		STUNServers:    []string{"stun:stun.l.google.com:19302"},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	t.Setenv("CONFIG_ENV", "test")
	dir := t.TempDir()
	chdir(t, dir)

	const yaml = `
mode: debug
port: 9001
max_voice_users: 2
room_ttl: 1h
allowed_origins:
  - http://example.test
`
	if err := os.MkdirAll(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != "debug" || cfg.Port != 9001 || cfg.MaxVoiceUsers != 2 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.RoomTTL != time.Hour {
		t.Errorf("room_ttl = %v, want 1h", cfg.RoomTTL)
	}
	if diff := cmp.Diff([]string{"http://example.test"}, cfg.AllowedOrigins); diff != "" {
		t.Errorf("allowed_origins (-want +got):\n%s", diff)
	}
	// Keys absent from the file keep their defaults.
	if cfg.SendBuffer != 64 {
		t.Errorf("send_buffer = %d, want default 64", cfg.SendBuffer)
	}
}
