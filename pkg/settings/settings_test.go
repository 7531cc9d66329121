package settings

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spaced.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing settings file: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeSettings(t, `
listen: "0.0.0.0:9000"
space_file: /etc/spaced/space.cfg
journal_path: /var/lib/spaced/journal.db
telemetry:
  logging:
    level: debug
`)
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if s.Listen != "0.0.0.0:9000" {
		t.Errorf("Listen = %q", s.Listen)
	}
	if s.SpaceFile != "/etc/spaced/space.cfg" {
		t.Errorf("SpaceFile = %q", s.SpaceFile)
	}
	if s.JournalPath != "/var/lib/spaced/journal.db" {
		t.Errorf("JournalPath = %q", s.JournalPath)
	}
	if s.Telemetry.Logging.Level != "debug" {
		t.Errorf("log level = %q, want debug", s.Telemetry.Logging.Level)
	}
}

func TestLoad_AbsentFieldsKeepDefaults(t *testing.T) {
	path := writeSettings(t, "space_file: space.cfg\n")
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	want := Default()
	if s.Listen != want.Listen {
		t.Errorf("Listen = %q, want default %q", s.Listen, want.Listen)
	}
	if s.JournalPath != "" {
		t.Errorf("JournalPath = %q, want journaling disabled", s.JournalPath)
	}
	if s.Telemetry.Logging.Level != want.Telemetry.Logging.Level {
		t.Errorf("log level = %q, want default %q", s.Telemetry.Logging.Level, want.Telemetry.Logging.Level)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing space file", "listen: \"127.0.0.1:7077\"\n"},
		{"bad listen address", "listen: not-an-address\nspace_file: space.cfg\n"},
		{"malformed yaml", "listen: [\n"},
		{"bad log level", "space_file: space.cfg\ntelemetry:\n  logging:\n    level: shouting\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeSettings(t, tt.content)); err == nil {
				t.Error("Load() succeeded, want error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() succeeded, want error")
	}
}
