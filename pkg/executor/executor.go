// Package executor provides shell executors for driving a session without a
// remote peer: a persistent local shell and an SSH-backed remote shell. The
// provisioning core never imports this package; executors live strictly on
// the far side of the driver contract.
package executor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/openspaces/spaced/pkg/engine"
)

// Executor runs one command at a time in a persistent shell, so environment
// mutations (exports, activated virtualenvs) made by earlier commands remain
// visible to later ones.
type Executor interface {
	// Run executes the command and returns its observed outcome.
	Run(ctx context.Context, command string) (engine.Outcome, error)
	// Close tears the shell down.
	Close() error
}

// stream is the sentinel-delimited conversation with a persistent shell.
// Both the local and the SSH executor are built on it.
type stream struct {
	stdin  io.Writer
	stdout *bufio.Scanner
	stderr *bufio.Scanner

	// stage persists a multi-line command to a file the shell can source,
	// returning the file path. Needed because the conversation is line
	// oriented.
	stage func(content string) (string, error)
}

// run dispatches one command and collects its output up to the sentinel
// markers. The exit status rides on the stdout sentinel.
func (s *stream) run(ctx context.Context, command string) (engine.Outcome, error) {
	if strings.ContainsAny(command, "\r\n") {
		if s.stage == nil {
			return engine.Outcome{}, fmt.Errorf("multi-line command not supported by this executor")
		}
		path, err := s.stage(command + "\n")
		if err != nil {
			return engine.Outcome{}, fmt.Errorf("stage multi-line command: %w", err)
		}
		command = fmt.Sprintf(". %s && rm -f %s", path, path)
	}

	marker := "__spaced_" + uuid.NewString()[:8] + "__"
	script := fmt.Sprintf("%s\necho \"%s $?\"\necho \"%s\" 1>&2\n", command, marker, marker)
	if _, err := io.WriteString(s.stdin, script); err != nil {
		return engine.Outcome{}, fmt.Errorf("write command: %w", err)
	}

	type collected struct {
		lines  []string
		status int
		err    error
	}
	outCh := make(chan collected, 1)
	errCh := make(chan collected, 1)

	go func() {
		var c collected
		for s.stdout.Scan() {
			line := s.stdout.Text()
			if rest, ok := strings.CutPrefix(line, marker); ok {
				c.status, c.err = strconv.Atoi(strings.TrimSpace(rest))
				outCh <- c
				return
			}
			c.lines = append(c.lines, line)
		}
		c.err = scanFailure(s.stdout)
		outCh <- c
	}()
	go func() {
		var c collected
		for s.stderr.Scan() {
			line := s.stderr.Text()
			if strings.HasPrefix(line, marker) {
				errCh <- c
				return
			}
			c.lines = append(c.lines, line)
		}
		c.err = scanFailure(s.stderr)
		errCh <- c
	}()

	var out, errOut collected
	for i := 0; i < 2; i++ {
		select {
		case out = <-outCh:
			outCh = nil
		case errOut = <-errCh:
			errCh = nil
		case <-ctx.Done():
			return engine.Outcome{}, ctx.Err()
		}
	}
	if out.err != nil {
		return engine.Outcome{}, fmt.Errorf("read stdout: %w", out.err)
	}
	if errOut.err != nil {
		return engine.Outcome{}, fmt.Errorf("read stderr: %w", errOut.err)
	}
	return engine.Outcome{Status: out.status, Stdout: out.lines, Stderr: errOut.lines}, nil
}

func scanFailure(sc *bufio.Scanner) error {
	if err := sc.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}
