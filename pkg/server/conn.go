package server

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/openspaces/spaced/pkg/engine"
	"github.com/openspaces/spaced/pkg/protocol"
)

// connCodec frames the connection-oriented binding. Requests and outcomes
// arrive from the client; advances, errors, and the end marker go back.
//
// An outcome is a STATUS line, a STDOUT header followed by captured lines, a
// STDERR header followed by captured lines, and a terminating blank line.
// Blank payload lines are not representable in this binding; clients that
// need them use the paired-pipe form.
type connCodec struct {
	r *bufio.Reader
	w *bufio.Writer
}

func newConnCodec(rw io.ReadWriter) *connCodec {
	return &connCodec{r: bufio.NewReader(rw), w: bufio.NewWriter(rw)}
}

func (c *connCodec) readLine() (string, error) {
	line, err := c.r.ReadString('\n')
	if err != nil {
		if err == io.EOF && line == "" {
			return "", io.EOF
		}
		if err != io.EOF {
			return "", err
		}
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readRequest reads the next request verb, skipping blank separator lines.
// io.EOF means the client is done.
func (c *connCodec) readRequest() (string, error) {
	for {
		line, err := c.readLine()
		if err != nil {
			return "", err
		}
		if line != "" {
			return line, nil
		}
	}
}

// readOutcome parses one outcome block.
func (c *connCodec) readOutcome() (engine.Outcome, error) {
	var out engine.Outcome
	statusLine, err := c.readLine()
	if err != nil {
		return out, err
	}
	rest, ok := strings.CutPrefix(statusLine, protocol.ReplyStatus)
	if !ok {
		return out, engine.NewProtocolError(
			fmt.Sprintf("expected %s line, got %q", protocol.ReplyStatus, statusLine), nil,
		).WithCode(engine.ErrCodeBadWireMessage)
	}
	out.Status, err = strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		return out, engine.NewProtocolError(
			fmt.Sprintf("bad exit status in %q", statusLine), err,
		).WithCode(engine.ErrCodeBadWireMessage)
	}

	var target *[]string
	for {
		line, err := c.readLine()
		if err != nil {
			return out, err
		}
		switch {
		case line == "":
			return out, nil
		case line == protocol.ReplyStdout:
			target = &out.Stdout
		case line == protocol.ReplyStderr:
			target = &out.Stderr
		case target == nil:
			return out, engine.NewProtocolError(
				fmt.Sprintf("payload line %q outside a stream block", line), nil,
			).WithCode(engine.ErrCodeBadWireMessage)
		default:
			*target = append(*target, line)
		}
	}
}

// writeAdvance sends the description and the command for one step.
func (c *connCodec) writeAdvance(adv engine.Advance) error {
	fmt.Fprintf(c.w, "%s %s\n\n", protocol.ReplyDesc, adv.Description)
	fmt.Fprintf(c.w, "%s %s\n", protocol.ReplyCmd, adv.Command)
	return c.w.Flush()
}

func (c *connCodec) writeEnd() error {
	fmt.Fprintln(c.w, protocol.ReplyEnd)
	return c.w.Flush()
}

func (c *connCodec) writeErr(message string) error {
	message = strings.ReplaceAll(message, "\n", "; ")
	fmt.Fprintf(c.w, "%s %s\n", protocol.ReplyErr, message)
	return c.w.Flush()
}
