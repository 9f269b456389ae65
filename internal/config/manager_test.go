package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const validYAML = `
tnc:
  addr: localhost
  port: 8001
aprs:
  callsign: MYBOT-10
  path: WIDE1-1,WIDE2-2
storage:
  path: ./bot.db
logging:
  level: info
bulletins:
  send_freq: 10m
  static:
    BLN0: "QST de MYBOT"
  rules:
    - id: BLN1
      rule: "0 10 * * *"
      text: "Morning net at 10:00"
status:
  send_freq: 15m
  inet_host: 8.8.8.8
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bot.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, validYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TNC.Addr != "localhost" || cfg.TNC.Port != 8001 {
		t.Fatalf("tnc = %+v", cfg.TNC)
	}
	if cfg.APRS.Callsign != "MYBOT-10" {
		t.Fatalf("callsign = %q", cfg.APRS.Callsign)
	}
	if cfg.Bulletins == nil || cfg.Bulletins.Static["BLN0"] == "" {
		t.Fatal("bulletins not decoded")
	}
	if len(cfg.Bulletins.Rules) != 1 || cfg.Bulletins.Rules[0].ID != "BLN1" {
		t.Fatalf("rules = %+v", cfg.Bulletins.Rules)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get did not return the committed config")
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, validYAML+"\nbogus: 1\n"))
	if _, err := m.Load(); err == nil {
		t.Fatal("expected error for unknown top-level key")
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		body string
	}{
		{name: "missing callsign", body: "tnc: {addr: localhost, port: 8001}\naprs: {callsign: \"\"}\nstorage: {path: x}\nlogging: {}\n"},
		{name: "bad port", body: "tnc: {addr: localhost, port: 99999}\naprs: {callsign: X}\nstorage: {path: x}\nlogging: {}\n"},
		{name: "bad duration", body: "tnc: {addr: localhost, port: 1}\naprs: {callsign: X}\nstorage: {path: x}\nlogging: {}\nbulletins: {send_freq: often}\n"},
		{name: "rule without id", body: "tnc: {addr: localhost, port: 1}\naprs: {callsign: X}\nstorage: {path: x}\nlogging: {}\nbulletins: {rules: [{id: \"\", rule: \"* * * * *\", text: t}]}\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(writeConfig(t, tt.body))
			if _, err := m.Load(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCheckUpdatedNoChange(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, validYAML))
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := m.CheckUpdated(); ok {
		t.Fatal("CheckUpdated reported a reload without a change")
	}
}

func TestCheckUpdatedReloadsOnMtimeChange(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, validYAML)
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	updated := validYAML + "\n# touched\n"
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	// Force a distinct mtime regardless of filesystem granularity.
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	cfg, ok := m.CheckUpdated()
	if !ok || cfg == nil {
		t.Fatal("expected a reload after mtime change")
	}
	if _, ok := m.CheckUpdated(); ok {
		t.Fatal("second CheckUpdated must be a no-op")
	}
}

func TestCheckUpdatedKeepsPreviousOnBadFile(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, validYAML)
	m := NewManager(path)
	old, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := os.WriteFile(path, []byte("tnc: ["), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}

	if _, ok := m.CheckUpdated(); ok {
		t.Fatal("broken file must not reload")
	}
	if m.Get() != old {
		t.Fatal("previous config must stay in effect")
	}
}

func TestValidatorHookRejects(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, validYAML))
	m.SetValidator(func(cfg *Config) error {
		return os.ErrInvalid
	})
	if _, err := m.Load(); err == nil {
		t.Fatal("expected validator rejection")
	}
}
