package providers

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/openspaces/spaced/pkg/engine"
)

func newGit(t *testing.T, kv map[string]string) engine.Provider {
	t.Helper()
	p, err := NewGitProvider("src", params(kv))
	if err != nil {
		t.Fatalf("NewGitProvider() error = %v", err)
	}
	return p
}

func TestGitProvider_ClonesMissingDirectory(t *testing.T) {
	p := newGit(t, map[string]string{
		"path":   "/work/app",
		"origin": "https://example.com/app.git",
		"branch": "release",
	})
	respond := func(cmd string) engine.Outcome {
		if strings.HasPrefix(cmd, "test -d") {
			return engine.Outcome{Status: 1}
		}
		return engine.Outcome{Status: 0}
	}

	cmds, err := drive(t, p.Provide, respond)
	if err != nil {
		t.Fatalf("Provide() error = %v", err)
	}
	want := []string{
		"test -d /work/app",
		"git clone -b release https://example.com/app.git /work/app",
	}
	if diff := cmp.Diff(want, cmds); diff != "" {
		t.Errorf("command stream mismatch (-want +got):\n%s", diff)
	}
}

func TestGitProvider_AcceptsExistingCheckout(t *testing.T) {
	p := newGit(t, map[string]string{
		"path":   "/work/app",
		"origin": "https://example.com/app.git",
	})
	respond := func(cmd string) engine.Outcome {
		switch {
		case strings.HasPrefix(cmd, "test -d"):
			return engine.Outcome{Status: 0}
		case strings.Contains(cmd, "rev-parse"):
			return engine.Outcome{Status: 0, Stdout: []string{"true"}}
		case strings.Contains(cmd, "remote get-url"):
			return engine.Outcome{Status: 0, Stdout: []string{"https://example.com/app.git"}}
		default:
			t.Fatalf("unexpected command %q", cmd)
			return engine.Outcome{}
		}
	}
	cmds, err := drive(t, p.Provide, respond)
	if err != nil {
		t.Fatalf("Provide() error = %v", err)
	}
	if len(cmds) != 3 {
		t.Errorf("issued %d commands %v, want 3 probes and no mutation", len(cmds), cmds)
	}
}

func TestGitProvider_Aborts(t *testing.T) {
	tests := []struct {
		name    string
		respond responder
		wantMsg string
	}{
		{
			name: "plain directory in the way",
			respond: func(cmd string) engine.Outcome {
				if strings.Contains(cmd, "rev-parse") {
					return engine.Outcome{Status: 128}
				}
				return engine.Outcome{Status: 0}
			},
			wantMsg: "not a git repository",
		},
		{
			name: "different origin",
			respond: func(cmd string) engine.Outcome {
				if strings.Contains(cmd, "remote get-url") {
					return engine.Outcome{Status: 0, Stdout: []string{"https://example.com/other.git"}}
				}
				return engine.Outcome{Status: 0}
			},
			wantMsg: "different origin",
		},
		{
			name: "clone failure",
			respond: func(cmd string) engine.Outcome {
				if strings.HasPrefix(cmd, "git clone") {
					return engine.Outcome{Status: 128, Stderr: []string{"could not resolve host"}}
				}
				return engine.Outcome{Status: 1}
			},
			wantMsg: "git clone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newGit(t, map[string]string{
				"path":   "/work/app",
				"origin": "https://example.com/app.git",
			})
			_, err := drive(t, p.Provide, tt.respond)
			if err == nil {
				t.Fatal("Provide() succeeded, want abort")
			}
			if !engine.IsAbort(err) {
				t.Errorf("error class = %v, want abort", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestGitProvider_RequiredParams(t *testing.T) {
	if _, err := NewGitProvider("src", params(map[string]string{"path": "/x"})); err == nil {
		t.Error("NewGitProvider() accepted params without origin")
	}
	if _, err := NewGitProvider("src", params(map[string]string{"origin": "o"})); err == nil {
		t.Error("NewGitProvider() accepted params without path")
	}
}
