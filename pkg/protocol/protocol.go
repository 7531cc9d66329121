// Package protocol defines the line-oriented wire framing that exposes a
// provisioning session over a duplex channel, so the process deciding what
// command comes next and the process able to run shell commands can live on
// different hosts.
//
// The paired-pipe form is the primary binding: the driver writes one tagged
// message per line on the outbound channel (INF, CMD, ERR, END) and the
// executor answers each CMD on the inbound channel with zero or more STO and
// STE payload lines terminated by an XST line carrying the exit status. The
// connection-oriented form in pkg/server is an adapter over the same driver
// contract.
package protocol

import (
	"fmt"
	"strings"

	"github.com/openspaces/spaced/pkg/engine"
)

// Outbound (driver to executor) message tags, one per line.
const (
	// TagCommand carries the next shell command to execute.
	TagCommand = "CMD"
	// TagInfo carries the human-readable description of the command.
	TagInfo = "INF"
	// TagError reports a fatal abort; the session is over.
	TagError = "ERR"
	// TagEnd reports normal completion; no more commands follow.
	TagEnd = "END"
)

// Inbound (executor to driver) message tags, one per line.
const (
	// TagExitStatus carries the exit status and terminates an outcome.
	TagExitStatus = "XST"
	// TagStdout carries one line of captured standard output.
	TagStdout = "STO"
	// TagStderr carries one line of captured standard error.
	TagStderr = "STE"
)

// Connection-oriented request verbs (client to server).
const (
	RequestProvide = "PROVIDE"
	RequestRevert  = "REVERT"
)

// Connection-oriented reply tags (server to client).
const (
	ReplyDesc   = "DESC"
	ReplyCmd    = "CMD"
	ReplyEnd    = "END"
	ReplyErr    = "ERR"
	ReplyStatus = "STATUS"
	ReplyStdout = "STDOUT"
	ReplyStderr = "STDERR"
)

// ModeForRequest maps a connection-oriented request verb to an execution
// mode.
func ModeForRequest(verb string) (engine.Mode, error) {
	switch verb {
	case RequestProvide:
		return engine.ModeProvide, nil
	case RequestRevert:
		return engine.ModeRevert, nil
	default:
		return "", engine.NewProtocolError(fmt.Sprintf("unknown request %q", verb), nil).
			WithCode(engine.ErrCodeBadWireMessage)
	}
}

// checkPayload rejects payloads that would break line framing.
func checkPayload(tag, payload string) error {
	if strings.ContainsAny(payload, "\r\n") {
		return engine.NewProtocolError(
			fmt.Sprintf("%s payload contains a line break", tag), nil,
		).WithCode(engine.ErrCodeBadWireMessage)
	}
	return nil
}
