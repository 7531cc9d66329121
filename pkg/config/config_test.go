package config

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func mustParse(t *testing.T, src string) *Config {
	t.Helper()
	cfg, err := ParseString(src, "test.cfg")
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}
	return cfg
}

func TestGet_Cascade(t *testing.T) {
	cfg := mustParse(t, `
[a]
x: 1
y: base

[a b]
y: mid

[a b c]
z: 3
`)

	tests := []struct {
		name    string
		section string
		option  string
		cascade bool
		want    string
		wantErr bool
	}{
		{name: "own option", section: "a b c", option: "z", cascade: false, want: "3"},
		{name: "inherited two levels up", section: "a b c", option: "x", cascade: true, want: "1"},
		{name: "nearest ancestor wins", section: "a b c", option: "y", cascade: true, want: "mid"},
		{name: "no cascade misses ancestor", section: "a b c", option: "x", cascade: false, wantErr: true},
		{name: "miss everywhere", section: "a b c", option: "w", cascade: true, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cfg.Get(tt.section, tt.option, tt.cascade)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Get() = %q, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Get() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGet_CascadeSkipsUndeclaredAncestors(t *testing.T) {
	// "a b" is never declared; the walk still reaches "a".
	cfg := mustParse(t, "[a]\nx: 1\n[a b c]\ny: 2\n")
	got, err := cfg.Get("a b c", "x", true)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "1" {
		t.Errorf("Get() = %q, want %q", got, "1")
	}
}

func TestGet_NoOptionErrorNamesAncestors(t *testing.T) {
	cfg := mustParse(t, "[a]\nx: 1\n[a b c]\ny: 2\n")
	_, err := cfg.Get("a b c", "missing", true)
	var noOpt *NoOptionError
	if !errors.As(err, &noOpt) {
		t.Fatalf("error type = %T, want *NoOptionError", err)
	}
	wantAncestors := []string{"a b", "a"}
	if diff := cmp.Diff(wantAncestors, noOpt.Ancestors); diff != "" {
		t.Errorf("Ancestors mismatch (-want +got):\n%s", diff)
	}
}

func TestGet_UnknownSection(t *testing.T) {
	cfg := mustParse(t, "[a]\nx: 1\n")
	_, err := cfg.Get("nope", "x", true)
	var noSec *NoSectionError
	if !errors.As(err, &noSec) {
		t.Fatalf("error type = %T, want *NoSectionError", err)
	}
	if noSec.Section != "nope" {
		t.Errorf("Section = %q, want %q", noSec.Section, "nope")
	}
}

func TestItems_NearestWins(t *testing.T) {
	cfg := mustParse(t, `
[a]
x: 1
y: base

[a b]
y: override
z: 3
`)
	items, err := cfg.Items("a b", true)
	if err != nil {
		t.Fatalf("Items() error = %v", err)
	}
	want := map[string]string{"x": "1", "y": "override", "z": "3"}
	if diff := cmp.Diff(want, items); diff != "" {
		t.Errorf("Items() mismatch (-want +got):\n%s", diff)
	}

	own, err := cfg.Items("a b", false)
	if err != nil {
		t.Fatalf("Items() error = %v", err)
	}
	wantOwn := map[string]string{"y": "override", "z": "3"}
	if diff := cmp.Diff(wantOwn, own); diff != "" {
		t.Errorf("Items(cascade=false) mismatch (-want +got):\n%s", diff)
	}
}

func TestGetList_QuotedCommas(t *testing.T) {
	cfg := mustParse(t, "[a]\nargs: one, \"two, with comma\", three\n")
	got, err := cfg.GetList("a", "args", false)
	if err != nil {
		t.Fatalf("GetList() error = %v", err)
	}
	want := []string{"one", "two, with comma", "three"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("GetList() mismatch (-want +got):\n%s", diff)
	}
}

func TestInterpolation(t *testing.T) {
	cfg := mustParse(t, `
[paths]
root: /srv
data: [paths]:root/data

[app]
home: [paths]:data/app
name: demo

[app deep]
banner: run [app]:name in [app]:home
`)

	tests := []struct {
		name    string
		section string
		option  string
		want    string
	}{
		{name: "single reference", section: "paths", option: "data", want: "/srv/data"},
		{name: "chained reference", section: "app", option: "home", want: "/srv/data/app"},
		{name: "two references in one value", section: "app deep", option: "banner", want: "run demo in /srv/data/app"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cfg.Get(tt.section, tt.option, false)
			if err != nil {
				t.Fatalf("Get() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Get() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInterpolation_LongestPrefixFallback(t *testing.T) {
	// "[paths]:root/logs" has no option "root/logs"; the longest declared
	// prefix "root" resolves and the residue "/logs" rides along.
	cfg := mustParse(t, `
[paths]
root: /srv
roo: /bad

[app]
logs: [paths]:root/logs
`)
	got, err := cfg.Get("app", "logs", false)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "/srv/logs" {
		t.Errorf("Get() = %q, want %q", got, "/srv/logs")
	}
}

func TestInterpolation_Errors(t *testing.T) {
	t.Run("cycle exceeds depth", func(t *testing.T) {
		cfg := mustParse(t, "[a]\nx: [b]:y\n[b]\ny: [a]:x\n")
		_, err := cfg.Get("a", "x", false)
		var depth *InterpolationDepthError
		if !errors.As(err, &depth) {
			t.Fatalf("error type = %T, want *InterpolationDepthError", err)
		}
	})

	t.Run("unknown target section", func(t *testing.T) {
		cfg := mustParse(t, "[a]\nx: [ghost]:y\n")
		_, err := cfg.Get("a", "x", false)
		var noSec *NoSectionError
		if !errors.As(err, &noSec) {
			t.Fatalf("error type = %T, want *NoSectionError", err)
		}
	})

	t.Run("unknown target option", func(t *testing.T) {
		cfg := mustParse(t, "[a]\nx: [b]:nope\n[b]\ny: 1\n")
		_, err := cfg.Get("a", "x", false)
		var noOpt *NoOptionError
		if !errors.As(err, &noOpt) {
			t.Fatalf("error type = %T, want *NoOptionError", err)
		}
	})
}

func TestUses(t *testing.T) {
	cfg := mustParse(t, `
[base]
path: /srv

[tools]
_uses: [base]
bin: [base]:path/bin

[app]
_uses: tools
home: [base]:path/app
`)

	tests := []struct {
		section string
		want    []string
	}{
		{section: "base", want: nil},
		{section: "tools", want: []string{"base"}},
		{section: "app", want: []string{"base", "tools"}},
	}
	for _, tt := range tests {
		got, err := cfg.Uses(tt.section)
		if err != nil {
			t.Fatalf("Uses(%q) error = %v", tt.section, err)
		}
		if diff := cmp.Diff(tt.want, got, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("Uses(%q) mismatch (-want +got):\n%s", tt.section, diff)
		}
	}
}

func TestUses_UnknownTarget(t *testing.T) {
	cfg := mustParse(t, "[a]\n_uses: ghost\n")
	_, err := cfg.Uses("a")
	var noSec *NoSectionError
	if !errors.As(err, &noSec) {
		t.Fatalf("error type = %T, want *NoSectionError", err)
	}
	if noSec.Section != "ghost" {
		t.Errorf("Section = %q, want %q", noSec.Section, "ghost")
	}
}

func TestProvider_Cascades(t *testing.T) {
	cfg := mustParse(t, `
[py]
_provider: virtualenv
path: /venv

[py packages]
packages: requests
`)
	got, err := cfg.Provider("py packages")
	if err != nil {
		t.Fatalf("Provider() error = %v", err)
	}
	if got != "virtualenv" {
		t.Errorf("Provider() = %q, want %q", got, "virtualenv")
	}
}
