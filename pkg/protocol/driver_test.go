package protocol

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"

	"github.com/openspaces/spaced/pkg/engine"
)

// echoProvider issues a fixed command list and aborts on any non-zero
// outcome.
type echoProvider struct {
	cmds []string
}

func (p *echoProvider) Provide(sh *engine.Shell) error {
	for _, c := range p.cmds {
		out, err := sh.Run(c)
		if err != nil {
			return err
		}
		if !out.Ok() {
			return engine.NewAbortError(fmt.Sprintf("command %q exited %d", c, out.Status), nil).
				WithCode(engine.ErrCodeActionFailed)
		}
	}
	return nil
}

func testEntries() []engine.ProviderEntry {
	return []engine.ProviderEntry{
		{Section: "base", Name: "env", Provider: &echoProvider{cmds: []string{"export A='1'", "export B='2'"}}},
		{Section: "app", Name: "git", Provider: &echoProvider{cmds: []string{"git clone repo /work/app"}}},
	}
}

// runDirect drives the session in-process, answering with outcomes from f.
func runDirect(t *testing.T, entries []engine.ProviderEntry, f func(cmd string) engine.Outcome) ([]string, error) {
	t.Helper()
	session := engine.NewSession(context.Background(), entries)
	defer session.Close()
	if err := session.Begin(engine.ModeProvide); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	var cmds []string
	var outcome *engine.Outcome
	for {
		adv, err := session.Next(outcome)
		if err != nil {
			return cmds, err
		}
		if adv.End {
			return cmds, nil
		}
		cmds = append(cmds, adv.Command)
		o := f(adv.Command)
		outcome = &o
	}
}

// runWire drives the same session over a pipe pair, with a fake executor on
// the far side answering from f. It returns the commands the executor saw.
func runWire(t *testing.T, entries []engine.ProviderEntry, f func(cmd string) engine.Outcome) ([]string, string, error) {
	t.Helper()

	toExec, fromDriver := io.Pipe()   // driver outbound
	toDriver, fromExec := io.Pipe()   // driver inbound
	defer toExec.Close()
	defer toDriver.Close()

	type execResult struct {
		cmds []string
		err  string
	}
	resCh := make(chan execResult, 1)
	go func() {
		dec := NewExecutorDecoder(toExec)
		enc := NewExecutorEncoder(fromExec)
		var res execResult
		for {
			req, err := dec.ReadRequest()
			if err != nil {
				resCh <- res
				return
			}
			if req.End {
				resCh <- res
				return
			}
			if req.Err != "" {
				res.err = req.Err
				resCh <- res
				return
			}
			res.cmds = append(res.cmds, req.Command)
			if err := enc.WriteOutcome(f(req.Command)); err != nil {
				resCh <- res
				return
			}
		}
	}()

	session := engine.NewSession(context.Background(), entries)
	defer session.Close()
	driver := NewDriver(session, toDriver, fromDriver, zerolog.Nop())
	runErr := driver.Run(context.Background(), engine.ModeProvide)
	fromDriver.Close()

	res := <-resCh
	return res.cmds, res.err, runErr
}

func TestDriver_WireMatchesDirectRun(t *testing.T) {
	outcomes := func(cmd string) engine.Outcome {
		return engine.Outcome{Status: 0, Stdout: []string{"ran: " + cmd}}
	}

	direct, err := runDirect(t, testEntries(), outcomes)
	if err != nil {
		t.Fatalf("direct run error = %v", err)
	}
	wire, wireErr, err := runWire(t, testEntries(), outcomes)
	if err != nil {
		t.Fatalf("wire run error = %v", err)
	}
	if wireErr != "" {
		t.Fatalf("executor saw ERR %q", wireErr)
	}

	if diff := cmp.Diff(direct, wire); diff != "" {
		t.Errorf("wire command stream differs from direct run (-direct +wire):\n%s", diff)
	}
}

func TestDriver_AbortReachesExecutor(t *testing.T) {
	outcomes := func(cmd string) engine.Outcome {
		if strings.HasPrefix(cmd, "git clone") {
			return engine.Outcome{Status: 128}
		}
		return engine.Outcome{Status: 0}
	}

	wire, wireErr, err := runWire(t, testEntries(), outcomes)
	if err == nil {
		t.Fatal("Run() succeeded, want abort")
	}
	if !engine.IsAbort(err) {
		t.Errorf("error class = %v, want abort", err)
	}
	if wireErr == "" {
		t.Error("executor never received the ERR message")
	}
	want := []string{"export A='1'", "export B='2'", "git clone repo /work/app"}
	if diff := cmp.Diff(want, wire); diff != "" {
		t.Errorf("commands before abort mismatch (-want +got):\n%s", diff)
	}
}
