// Package server implements the connection-oriented binding of the
// provisioning protocol: a TCP daemon that accepts one session per
// connection, parses the space definition, and walks the client through the
// command stream.
package server

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/openspaces/spaced/pkg/engine"
	"github.com/openspaces/spaced/pkg/protocol"
	"github.com/openspaces/spaced/pkg/providers"
	"github.com/openspaces/spaced/pkg/stores"
	"github.com/openspaces/spaced/pkg/telemetry"
)

// Journal records runs and their commands. A nil Journal disables
// journaling.
type Journal interface {
	CreateRun(ctx context.Context, run *stores.Run) error
	FinishRun(ctx context.Context, id string, status stores.RunStatus, runErr error) error
	RecordCommand(ctx context.Context, cmd *stores.Command) (int64, error)
	FinishCommand(ctx context.Context, id int64, exitStatus int, stdout, stderr string) error
}

// Server serves provisioning sessions over TCP.
type Server struct {
	space   string
	cache   *ConfigCache
	factory *providers.Factory
	journal Journal
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
	logger  zerolog.Logger

	wg sync.WaitGroup
}

// New assembles a server around an already-loaded config cache.
func New(space string, cache *ConfigCache, factory *providers.Factory, journal Journal,
	metrics *telemetry.Metrics, tracer *telemetry.Tracer, logger zerolog.Logger) *Server {
	return &Server{
		space:   space,
		cache:   cache,
		factory: factory,
		journal: journal,
		metrics: metrics,
		tracer:  tracer,
		logger:  logger,
	}
}

// Serve accepts connections until the context is cancelled or the listener
// fails, then waits for in-flight sessions to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("listening")

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Warn().Err(err).Msg("accept failed")
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
	s.wg.Wait()
	return ctx.Err()
}

// handleConn reads requests off a connection until the client hangs up. Each
// request runs one full pass over the space's providers.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	logger := s.logger.With().Str("remote", conn.RemoteAddr().String()).Logger()
	codec := newConnCodec(conn)

	for {
		verb, err := codec.readRequest()
		if err != nil {
			if err != io.EOF {
				logger.Warn().Err(err).Msg("read request failed")
			}
			return
		}
		mode, err := protocol.ModeForRequest(verb)
		if err != nil {
			logger.Warn().Str("request", verb).Msg("rejected unknown request")
			if codec.writeErr(err.Error()) != nil {
				return
			}
			continue
		}
		if !s.runPass(ctx, codec, mode, logger) {
			return
		}
	}
}

// runPass executes one provide or revert pass against the client. It returns
// false when the connection is no longer usable.
func (s *Server) runPass(ctx context.Context, codec *connCodec, mode engine.Mode, logger zerolog.Logger) bool {
	runID := uuid.NewString()
	logger = logger.With().Str("run_id", runID).Str("mode", string(mode)).Logger()
	started := time.Now()

	cfg, err := s.cache.Load()
	if err != nil {
		logger.Error().Err(err).Msg("space definition unavailable")
		return codec.writeErr(err.Error()) == nil
	}
	entries, err := engine.BuildPlan(cfg, s.factory.New)
	if err != nil {
		logger.Error().Err(err).Msg("planning failed")
		return codec.writeErr(err.Error()) == nil
	}

	session := engine.NewSession(ctx, entries)
	defer session.Close()
	if err := session.Begin(mode); err != nil {
		return codec.writeErr(err.Error()) == nil
	}

	ctx, span := s.tracer.StartSession(ctx, runID, string(mode))
	s.metrics.SessionStarted(string(mode))
	s.recordRunStart(ctx, runID, mode)
	logger.Info().Int("providers", len(entries)).Msg("session started")

	var outcome *engine.Outcome
	var sectionSpan trace.Span
	section := ""
	endSection := func(err error) {
		if sectionSpan != nil {
			telemetry.EndWithError(sectionSpan, err)
			sectionSpan = nil
		}
	}
	seq := 0
	for {
		adv, err := session.Next(outcome)
		if err != nil {
			endSection(err)
			logger.Error().Err(err).Msg("session aborted")
			s.metrics.Abort(string(mode))
			s.metrics.SessionCompleted(string(mode), "aborted", time.Since(started))
			s.recordRunEnd(ctx, runID, stores.RunStatusAborted, err)
			telemetry.EndWithError(span, err)
			return codec.writeErr(err.Error()) == nil
		}
		if adv.End {
			endSection(nil)
			logger.Info().Int("commands", seq).Msg("session completed")
			s.metrics.SessionCompleted(string(mode), "completed", time.Since(started))
			s.recordRunEnd(ctx, runID, stores.RunStatusCompleted, nil)
			telemetry.EndWithError(span, nil)
			return codec.writeEnd() == nil
		}
		if adv.Section != section {
			endSection(nil)
			section = adv.Section
			_, sectionSpan = s.tracer.StartProvider(ctx, adv.Section, adv.Description)
		}

		seq++
		s.metrics.CommandIssued(string(mode))
		cmdID := s.recordCommand(ctx, runID, seq, adv)
		if err := codec.writeAdvance(adv); err != nil {
			logger.Warn().Err(err).Msg("write failed mid-session")
			endSection(err)
			telemetry.EndWithError(span, err)
			s.failDisconnected(ctx, runID, mode, started)
			return false
		}
		out, err := codec.readOutcome()
		if err != nil {
			logger.Warn().Err(err).Msg("client lost mid-session")
			endSection(err)
			telemetry.EndWithError(span, err)
			s.failDisconnected(ctx, runID, mode, started)
			return false
		}
		s.finishCommand(ctx, cmdID, out)
		outcome = &out
	}
}

func (s *Server) failDisconnected(ctx context.Context, runID string, mode engine.Mode, started time.Time) {
	s.metrics.SessionCompleted(string(mode), "failed", time.Since(started))
	s.recordRunEnd(ctx, runID, stores.RunStatusFailed, errors.New("client disconnected mid-session"))
}

func (s *Server) recordRunStart(ctx context.Context, runID string, mode engine.Mode) {
	if s.journal == nil {
		return
	}
	run := &stores.Run{
		ID:        runID,
		Space:     s.space,
		Mode:      string(mode),
		Status:    stores.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := s.journal.CreateRun(ctx, run); err != nil {
		s.logger.Warn().Err(err).Str("run_id", runID).Msg("journal create failed")
	}
}

func (s *Server) recordRunEnd(ctx context.Context, runID string, status stores.RunStatus, runErr error) {
	if s.journal == nil {
		return
	}
	if err := s.journal.FinishRun(ctx, runID, status, runErr); err != nil {
		s.logger.Warn().Err(err).Str("run_id", runID).Msg("journal finish failed")
	}
}

func (s *Server) recordCommand(ctx context.Context, runID string, seq int, adv engine.Advance) int64 {
	if s.journal == nil {
		return 0
	}
	id, err := s.journal.RecordCommand(ctx, &stores.Command{
		RunID:    runID,
		Seq:      seq,
		Section:  adv.Section,
		Command:  adv.Command,
		IssuedAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("run_id", runID).Msg("journal command failed")
		return 0
	}
	return id
}

func (s *Server) finishCommand(ctx context.Context, id int64, out engine.Outcome) {
	if s.journal == nil || id == 0 {
		return
	}
	err := s.journal.FinishCommand(ctx, id, out.Status,
		strings.Join(out.Stdout, "\n"), strings.Join(out.Stderr, "\n"))
	if err != nil {
		s.logger.Warn().Err(err).Msg("journal command finish failed")
	}
}
