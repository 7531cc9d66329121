package server

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/openspaces/spaced/pkg/providers"
	"github.com/openspaces/spaced/pkg/stores"
	"github.com/openspaces/spaced/pkg/telemetry"
)

const testSpace = `[base]
_provider: env
GREETING: hello

[app]
_provider: env
_uses: base
APP_HOME: /srv/app
`

func writeSpaceFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "space.cfg")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing space file: %v", err)
	}
	return path
}

func startTestServer(t *testing.T, journal Journal) (addr string, shutdown func()) {
	t.Helper()

	cache, err := NewConfigCache(writeSpaceFile(t, testSpace), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewConfigCache() error = %v", err)
	}

	metrics := telemetry.NewMetrics(telemetry.MetricsConfig{Enabled: false})
	tracer, err := telemetry.NewTracer(telemetry.TracingConfig{Enabled: false}, "spaced-test", "test")
	if err != nil {
		t.Fatalf("NewTracer() error = %v", err)
	}

	srv := New("space.cfg", cache, providers.NewFactory(providers.Platform{}),
		journal, metrics, tracer, zerolog.Nop())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.Serve(ctx, ln)
	}()

	return ln.Addr().String(), func() {
		cancel()
		cache.Close()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down")
		}
	}
}

// runClientPass sends one request verb and answers every command the server
// issues: probes report the variable as unset, everything else succeeds. It
// returns the commands in the order they arrived.
func runClientPass(t *testing.T, r *bufio.Reader, w *bufio.Writer, verb string) []string {
	t.Helper()

	fmt.Fprintln(w, verb)
	if err := w.Flush(); err != nil {
		t.Fatalf("sending %s: %v", verb, err)
	}

	var commands []string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("reading reply: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "" || strings.HasPrefix(line, "DESC "):
			continue
		case line == "END":
			return commands
		case strings.HasPrefix(line, "ERR "):
			t.Fatalf("server reported error: %s", line)
		case strings.HasPrefix(line, "CMD "):
			cmd := strings.TrimPrefix(line, "CMD ")
			commands = append(commands, cmd)
			if strings.HasPrefix(cmd, "printenv ") {
				fmt.Fprint(w, "STATUS 1\nSTDOUT\nSTDERR\n\n")
			} else {
				fmt.Fprint(w, "STATUS 0\nSTDOUT\nok\nSTDERR\n\n")
			}
			if err := w.Flush(); err != nil {
				t.Fatalf("sending outcome: %v", err)
			}
		default:
			t.Fatalf("unexpected reply line %q", line)
		}
	}
}

func TestServer_ProvideAndRevertOverTCP(t *testing.T) {
	ctx := context.Background()

	journal, err := stores.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	if err := journal.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := journal.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	defer journal.Close()

	addr, shutdown := startTestServer(t, journal)
	defer shutdown()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	wantProvide := []string{
		"printenv GREETING",
		"export GREETING='hello'",
		"printenv APP_HOME",
		"export APP_HOME='/srv/app'",
	}
	got := runClientPass(t, r, w, "PROVIDE")
	if strings.Join(got, ";") != strings.Join(wantProvide, ";") {
		t.Errorf("provide commands = %v, want %v", got, wantProvide)
	}

	// A fresh pass on the same connection: the probes report both variables
	// as unset, so the revert has nothing to undo.
	wantRevert := []string{"printenv GREETING", "printenv APP_HOME"}
	got = runClientPass(t, r, w, "REVERT")
	if strings.Join(got, ";") != strings.Join(wantRevert, ";") {
		t.Errorf("revert commands = %v, want %v", got, wantRevert)
	}
	conn.Close()

	waitForRuns := func() []*stores.Run {
		deadline := time.Now().Add(5 * time.Second)
		for {
			runs, err := journal.ListRuns(ctx, "space.cfg", 10)
			if err != nil {
				t.Fatalf("ListRuns() error = %v", err)
			}
			if len(runs) == 2 {
				return runs
			}
			if time.Now().After(deadline) {
				t.Fatalf("journal holds %d runs, want 2", len(runs))
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
	byMode := make(map[string]*stores.Run)
	for _, run := range waitForRuns() {
		if run.Status != stores.RunStatusCompleted {
			t.Errorf("run %s (%s) status = %q, want %q", run.ID, run.Mode, run.Status, stores.RunStatusCompleted)
		}
		byMode[run.Mode] = run
	}
	provideRun, ok := byMode["provide"]
	if !ok || byMode["revert"] == nil {
		t.Fatalf("journal runs by mode = %v, want provide and revert", byMode)
	}

	commands, err := journal.ListCommands(ctx, provideRun.ID)
	if err != nil {
		t.Fatalf("ListCommands() error = %v", err)
	}
	if len(commands) != len(wantProvide) {
		t.Fatalf("journal holds %d commands for the provide run, want %d", len(commands), len(wantProvide))
	}
	for i, cmd := range commands {
		if cmd.Command != wantProvide[i] {
			t.Errorf("command[%d] = %q, want %q", i, cmd.Command, wantProvide[i])
		}
		if cmd.ExitStatus == nil {
			t.Errorf("command[%d] %q has no recorded exit status", i, cmd.Command)
		}
	}
}

func TestServer_RejectsUnknownRequest(t *testing.T) {
	addr, shutdown := startTestServer(t, nil)
	defer shutdown()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	fmt.Fprintln(w, "FROBNICATE")
	if err := w.Flush(); err != nil {
		t.Fatalf("sending request: %v", err)
	}
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("reading reply: %v", err)
	}
	if !strings.HasPrefix(line, "ERR ") {
		t.Fatalf("reply = %q, want an ERR line", line)
	}

	// The connection stays usable after a rejected request.
	got := runClientPass(t, r, w, "PROVIDE")
	if len(got) == 0 {
		t.Error("no commands issued after rejected request")
	}
}
