package protocol

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"github.com/openspaces/spaced/pkg/engine"
)

// Driver binds a session to the paired-pipe wire form: commands flow out on
// one channel, outcomes flow back on the other, in strict alternation.
type Driver struct {
	session *engine.Session
	enc     *DriverEncoder
	dec     *DriverDecoder
	logger  zerolog.Logger
}

// NewDriver creates a driver for session over the (inbound, outbound)
// channel pair.
func NewDriver(session *engine.Session, in io.Reader, out io.Writer, logger zerolog.Logger) *Driver {
	return &Driver{
		session: session,
		enc:     NewDriverEncoder(out),
		dec:     NewDriverDecoder(in),
		logger:  logger,
	}
}

// Run drives one full session pass in the given mode. Aborts are reported
// to the executor as an ERR message and returned; wire-level failures are
// returned without an ERR message since the channel itself is suspect.
func (d *Driver) Run(ctx context.Context, mode engine.Mode) error {
	if err := d.session.Begin(mode); err != nil {
		return err
	}

	var outcome *engine.Outcome
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		adv, err := d.session.Next(outcome)
		if err != nil {
			d.logger.Error().Err(err).Str("mode", string(mode)).Msg("session aborted")
			_ = d.enc.WriteError(err.Error())
			return err
		}
		if adv.End {
			d.logger.Info().Str("mode", string(mode)).Msg("session complete")
			return d.enc.WriteEnd()
		}

		d.logger.Debug().
			Str("section", adv.Section).
			Str("command", adv.Command).
			Msg("dispatching command")
		if err := d.enc.WriteAdvance(adv); err != nil {
			return err
		}

		o, err := d.dec.ReadOutcome()
		if err != nil {
			return err
		}
		outcome = &o
	}
}
