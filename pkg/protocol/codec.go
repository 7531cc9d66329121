package protocol

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/openspaces/spaced/pkg/engine"
)

// DriverEncoder writes driver-side messages to the outbound channel.
type DriverEncoder struct {
	w *bufio.Writer
}

// NewDriverEncoder creates an encoder over the outbound channel.
func NewDriverEncoder(w io.Writer) *DriverEncoder {
	return &DriverEncoder{w: bufio.NewWriter(w)}
}

func (e *DriverEncoder) writeLine(tag, payload string) error {
	if err := checkPayload(tag, payload); err != nil {
		return err
	}
	line := tag
	if payload != "" {
		line += " " + payload
	}
	if _, err := e.w.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("write %s: %w", tag, err)
	}
	return e.w.Flush()
}

// WriteAdvance emits one INF/CMD pair for the next command.
func (e *DriverEncoder) WriteAdvance(adv engine.Advance) error {
	if err := e.writeLine(TagInfo, adv.Description); err != nil {
		return err
	}
	return e.writeLine(TagCommand, adv.Command)
}

// WriteError reports a fatal abort.
func (e *DriverEncoder) WriteError(message string) error {
	// Keep the message on one line; line breaks would desync the framing.
	message = strings.ReplaceAll(message, "\n", "; ")
	return e.writeLine(TagError, message)
}

// WriteEnd reports completion of the session.
func (e *DriverEncoder) WriteEnd() error {
	return e.writeLine(TagEnd, "")
}

// DriverDecoder reads executor outcomes from the inbound channel.
type DriverDecoder struct {
	sc *bufio.Scanner
}

// NewDriverDecoder creates a decoder over the inbound channel.
func NewDriverDecoder(r io.Reader) *DriverDecoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	return &DriverDecoder{sc: sc}
}

// ReadOutcome consumes STO and STE payload lines until the terminating XST
// line and returns the assembled outcome. A malformed line is fatal to the
// channel.
func (d *DriverDecoder) ReadOutcome() (engine.Outcome, error) {
	var out engine.Outcome
	for d.sc.Scan() {
		tag, payload, _ := strings.Cut(d.sc.Text(), " ")
		switch tag {
		case TagStdout:
			out.Stdout = append(out.Stdout, payload)
		case TagStderr:
			out.Stderr = append(out.Stderr, payload)
		case TagExitStatus:
			status, err := strconv.Atoi(strings.TrimSpace(payload))
			if err != nil {
				return engine.Outcome{}, engine.NewProtocolError(
					fmt.Sprintf("bad exit status %q", payload), err,
				).WithCode(engine.ErrCodeBadWireMessage)
			}
			out.Status = status
			return out, nil
		default:
			return engine.Outcome{}, engine.NewProtocolError(
				fmt.Sprintf("unexpected tag %q in outcome", tag), nil,
			).WithCode(engine.ErrCodeBadWireMessage)
		}
	}
	if err := d.sc.Err(); err != nil {
		return engine.Outcome{}, fmt.Errorf("read outcome: %w", err)
	}
	return engine.Outcome{}, io.EOF
}

// ExecutorDecoder reads driver messages on the executor side.
type ExecutorDecoder struct {
	sc *bufio.Scanner
}

// NewExecutorDecoder creates a decoder over the driver's outbound channel.
func NewExecutorDecoder(r io.Reader) *ExecutorDecoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	return &ExecutorDecoder{sc: sc}
}

// Request is one decoded driver message on the executor side.
type Request struct {
	// Description is the INF payload preceding the command, when present.
	Description string
	// Command is the shell command to run (empty for END/ERR).
	Command string
	// End is true when the driver reported completion.
	End bool
	// Err carries the driver's ERR payload, when the session aborted.
	Err string
}

// ReadRequest consumes an optional INF line and the following CMD line, or a
// terminal END/ERR line.
func (d *ExecutorDecoder) ReadRequest() (Request, error) {
	var req Request
	for d.sc.Scan() {
		tag, payload, _ := strings.Cut(d.sc.Text(), " ")
		switch tag {
		case TagInfo:
			req.Description = payload
		case TagCommand:
			req.Command = payload
			return req, nil
		case TagEnd:
			req.End = true
			return req, nil
		case TagError:
			req.Err = payload
			return req, nil
		default:
			return Request{}, engine.NewProtocolError(
				fmt.Sprintf("unexpected tag %q in request", tag), nil,
			).WithCode(engine.ErrCodeBadWireMessage)
		}
	}
	if err := d.sc.Err(); err != nil {
		return Request{}, fmt.Errorf("read request: %w", err)
	}
	return Request{}, io.EOF
}

// ExecutorEncoder writes outcomes back to the driver.
type ExecutorEncoder struct {
	w *bufio.Writer
}

// NewExecutorEncoder creates an encoder over the inbound channel.
func NewExecutorEncoder(w io.Writer) *ExecutorEncoder {
	return &ExecutorEncoder{w: bufio.NewWriter(w)}
}

// WriteOutcome emits the STO/STE payload lines followed by the XST
// terminator.
func (e *ExecutorEncoder) WriteOutcome(out engine.Outcome) error {
	for _, line := range out.Stdout {
		if err := checkPayload(TagStdout, line); err != nil {
			return err
		}
		if _, err := e.w.WriteString(TagStdout + " " + line + "\n"); err != nil {
			return fmt.Errorf("write stdout line: %w", err)
		}
	}
	for _, line := range out.Stderr {
		if err := checkPayload(TagStderr, line); err != nil {
			return err
		}
		if _, err := e.w.WriteString(TagStderr + " " + line + "\n"); err != nil {
			return fmt.Errorf("write stderr line: %w", err)
		}
	}
	if _, err := e.w.WriteString(fmt.Sprintf("%s %d\n", TagExitStatus, out.Status)); err != nil {
		return fmt.Errorf("write exit status: %w", err)
	}
	return e.w.Flush()
}
