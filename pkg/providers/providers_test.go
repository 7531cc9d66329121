package providers

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/openspaces/spaced/pkg/engine"
)

// responder answers one probed or issued command with its outcome.
type responder func(cmd string) engine.Outcome

// drive runs a provider sequence against a scripted responder and returns
// the flat command stream it issued.
func drive(t *testing.T, fn engine.ScriptFunc, respond responder) ([]string, error) {
	t.Helper()
	r := engine.NewRoutine(context.Background(), fn)
	defer r.Close()

	var cmds []string
	cmd, done, err := r.Start()
	for !done {
		cmds = append(cmds, cmd)
		cmd, done, err = r.Resume(respond(cmd))
	}
	return cmds, err
}

func params(kv map[string]string) engine.Params {
	p := make(engine.Params, len(kv))
	for k, v := range kv {
		p[k] = []string{v}
	}
	return p
}

// fakeEnv emulates a shell's environment for the env provider's probe,
// export and unset commands.
type fakeEnv map[string]string

func (e fakeEnv) respond(t *testing.T) responder {
	return func(cmd string) engine.Outcome {
		switch {
		case strings.HasPrefix(cmd, "printenv "):
			name := strings.TrimPrefix(cmd, "printenv ")
			if v, ok := e[name]; ok {
				return engine.Outcome{Status: 0, Stdout: []string{v}}
			}
			return engine.Outcome{Status: 1}
		case strings.HasPrefix(cmd, "export "):
			name, value, ok := strings.Cut(strings.TrimPrefix(cmd, "export "), "=")
			if !ok {
				t.Fatalf("malformed export %q", cmd)
			}
			e[name] = strings.Trim(value, "'")
			return engine.Outcome{Status: 0}
		case strings.HasPrefix(cmd, "unset "):
			delete(e, strings.TrimPrefix(cmd, "unset "))
			return engine.Outcome{Status: 0}
		default:
			t.Fatalf("unexpected command %q", cmd)
			return engine.Outcome{}
		}
	}
}

func TestEnvProvider_ProvideAndRevert(t *testing.T) {
	provider, err := NewEnvProvider("app env", params(map[string]string{
		"APP_HOME": "/srv/app",
		"TMPDIR":   "/tmp/app",
	}))
	if err != nil {
		t.Fatalf("NewEnvProvider() error = %v", err)
	}
	env := fakeEnv{"TMPDIR": "/tmp"}

	// First pass exports both variables.
	if _, err := drive(t, provider.Provide, env.respond(t)); err != nil {
		t.Fatalf("Provide() error = %v", err)
	}
	if env["APP_HOME"] != "/srv/app" || env["TMPDIR"] != "/tmp/app" {
		t.Fatalf("environment after provide = %v", env)
	}

	// A repeated pass finds the desired values and issues probes only.
	cmds, err := drive(t, provider.Provide, env.respond(t))
	if err != nil {
		t.Fatalf("second Provide() error = %v", err)
	}
	want := []string{"printenv APP_HOME", "printenv TMPDIR"}
	if diff := cmp.Diff(want, cmds); diff != "" {
		t.Errorf("idempotent pass commands mismatch (-want +got):\n%s", diff)
	}

	// Revert is a true inverse of the first pass, even after two passes:
	// TMPDIR returns to its original value, APP_HOME disappears.
	rev, ok := provider.(engine.Reverter)
	if !ok {
		t.Fatal("env provider does not implement Reverter")
	}
	if _, err := drive(t, rev.Revert, env.respond(t)); err != nil {
		t.Fatalf("Revert() error = %v", err)
	}
	wantEnv := fakeEnv{"TMPDIR": "/tmp"}
	if diff := cmp.Diff(wantEnv, env); diff != "" {
		t.Errorf("environment after revert mismatch (-want +got):\n%s", diff)
	}
}

func TestEnvProvider_RevertBeforeProvideUnsets(t *testing.T) {
	provider, err := NewEnvProvider("app env", params(map[string]string{"X": "1"}))
	if err != nil {
		t.Fatalf("NewEnvProvider() error = %v", err)
	}
	env := fakeEnv{"X": "stale"}

	rev := provider.(engine.Reverter)
	if _, err := drive(t, rev.Revert, env.respond(t)); err != nil {
		t.Fatalf("Revert() error = %v", err)
	}
	if _, ok := env["X"]; ok {
		t.Errorf("X survived revert without a snapshot: %v", env)
	}
}

func TestEnvProvider_NoVars(t *testing.T) {
	if _, err := NewEnvProvider("empty", engine.Params{}); err == nil {
		t.Error("NewEnvProvider() accepted an empty parameter set")
	}
}

func TestEnvProvider_FailedExportAborts(t *testing.T) {
	provider, err := NewEnvProvider("app env", params(map[string]string{"RO": "x"}))
	if err != nil {
		t.Fatalf("NewEnvProvider() error = %v", err)
	}
	respond := func(cmd string) engine.Outcome {
		if strings.HasPrefix(cmd, "printenv") {
			return engine.Outcome{Status: 1}
		}
		return engine.Outcome{Status: 2, Stderr: []string{"read-only"}}
	}
	_, err = drive(t, provider.Provide, respond)
	if err == nil || !engine.IsAbort(err) {
		t.Errorf("Provide() error = %v, want abort", err)
	}
}
