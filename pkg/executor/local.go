package executor

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/google/uuid"
	"github.com/openspaces/spaced/pkg/engine"
)

// Local runs commands in a single long-lived /bin/sh on this machine.
type Local struct {
	cmd    *exec.Cmd
	stream *stream
}

// NewLocal starts the shell. The returned executor must be closed.
func NewLocal() (*Local, error) {
	cmd := exec.Command("/bin/sh")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start shell: %w", err)
	}
	return &Local{
		cmd: cmd,
		stream: &stream{
			stdin:  stdin,
			stdout: bufio.NewScanner(stdout),
			stderr: bufio.NewScanner(stderr),
			stage:  stageLocal,
		},
	}, nil
}

func stageLocal(content string) (string, error) {
	f, err := os.CreateTemp("", "spaced-"+uuid.NewString()[:8]+"-*.sh")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// Run executes one command in the persistent shell.
func (l *Local) Run(ctx context.Context, command string) (engine.Outcome, error) {
	return l.stream.run(ctx, command)
}

// Close asks the shell to exit and reaps it.
func (l *Local) Close() error {
	fmt.Fprintln(l.stream.stdin, "exit")
	return l.cmd.Wait()
}
