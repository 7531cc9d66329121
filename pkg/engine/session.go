package engine

import (
	"context"
	"fmt"
)

// Advance is what one driver step produced: either the next command to run
// (with a human-readable description of the provider issuing it) or the end
// of the session.
type Advance struct {
	// Section is the configuration section of the issuing provider.
	Section string
	// Description says what the active provider's sequence does.
	Description string
	// Command is the shell command to execute externally.
	Command string
	// End is true once every provider has completed for the active mode.
	End bool
}

// Session drives an ordered provider list as one flat command/outcome
// stream. It owns the active provider's coroutine and enforces that exactly
// one command is outstanding at a time.
//
// A session is not safe for concurrent use; run one session per caller.
type Session struct {
	ctx     context.Context
	entries []ProviderEntry

	mode    Mode
	pos     int
	active  *ProviderEntry
	routine *Routine
	begun   bool
	dead    bool
}

// NewSession creates a session over providers already in dependency order.
func NewSession(ctx context.Context, entries []ProviderEntry) *Session {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Session{ctx: ctx, entries: entries}
}

// Mode returns the active execution mode.
func (s *Session) Mode() Mode { return s.mode }

// Begin starts (or restarts) iteration from the first provider in
// dependency order, in the given mode. Any suspended coroutine from a
// previous pass is torn down.
func (s *Session) Begin(mode Mode) error {
	if err := mode.Validate(); err != nil {
		return err
	}
	s.teardown()
	s.mode = mode
	s.pos = 0
	s.begun = true
	s.dead = false
	return nil
}

// Next advances the session by one command. The first call after Begin must
// pass a nil outcome; every later call must supply the outcome of the
// previously returned command. Provider completion is transparent: the
// caller only ever sees the next command, End, or an abort error.
func (s *Session) Next(outcome *Outcome) (Advance, error) {
	if !s.begun {
		return Advance{}, NewProtocolError("Next called before Begin", nil).WithCode(ErrCodeOutOfSequence)
	}
	if s.dead {
		return Advance{}, NewProtocolError("session terminated by abort", nil).WithCode(ErrCodeSessionClosed)
	}

	for {
		if s.routine == nil {
			if outcome != nil {
				return Advance{}, NewProtocolError("unexpected outcome: no command outstanding", nil).
					WithCode(ErrCodeOutOfSequence)
			}
			entry := s.nextEntry()
			if entry == nil {
				return Advance{End: true}, nil
			}
			s.active = entry
			s.routine = NewRoutine(s.ctx, s.scriptFor(entry))
			cmd, done, err := s.routine.Start()
			if adv, fin, ferr := s.settle(cmd, done, err, &outcome); fin {
				return adv, ferr
			}
			continue
		}

		if outcome == nil {
			return Advance{}, NewProtocolError(
				fmt.Sprintf("outcome required: a command is outstanding for section %q", s.active.Section), nil,
			).WithCode(ErrCodeOutOfSequence)
		}
		o := *outcome
		outcome = nil
		cmd, done, err := s.routine.Resume(o)
		if adv, fin, ferr := s.settle(cmd, done, err, &outcome); fin {
			return adv, ferr
		}
	}
}

// settle folds one routine advance into session state. fin=true means Next
// should return (adv, ferr); otherwise the loop continues with the next
// provider.
func (s *Session) settle(cmd string, done bool, err error, outcome **Outcome) (Advance, bool, error) {
	if err != nil {
		// Fail fast: no further providers are started after an abort.
		section, name := s.active.Section, s.active.Name
		s.teardown()
		s.dead = true
		if !IsAbort(err) && !IsProtocol(err) {
			err = NewAbortError("provider aborted", err)
		}
		if ee, ok := err.(*EngineError); ok && ee.Section == "" {
			ee.WithSection(section).WithProvider(name)
		}
		return Advance{}, true, err
	}
	if done {
		s.routine = nil
		s.active = nil
		*outcome = nil
		return Advance{}, false, nil
	}
	return Advance{
		Section:     s.active.Section,
		Description: s.describe(s.active),
		Command:     cmd,
	}, true, nil
}

// nextEntry returns the next provider that participates in the active mode,
// or nil when the list is exhausted. In revert mode, providers without the
// revert capability are skipped.
func (s *Session) nextEntry() *ProviderEntry {
	for s.pos < len(s.entries) {
		entry := &s.entries[s.pos]
		s.pos++
		if s.mode == ModeRevert {
			if _, ok := entry.Provider.(Reverter); !ok {
				continue
			}
		}
		return entry
	}
	return nil
}

// scriptFor composes the coroutine body for one provider in the active
// mode. In provide mode an optional dependency check runs first, through the
// same command stream.
func (s *Session) scriptFor(entry *ProviderEntry) ScriptFunc {
	mode := s.mode
	return func(sh *Shell) error {
		if mode == ModeRevert {
			return entry.Provider.(Reverter).Revert(sh)
		}
		if checker, ok := entry.Provider.(DependencyChecker); ok {
			if err := checker.CheckDependency(sh); err != nil {
				return err
			}
		}
		return entry.Provider.Provide(sh)
	}
}

func (s *Session) describe(entry *ProviderEntry) string {
	if d, ok := entry.Provider.(Describer); ok {
		return d.Describe(s.mode)
	}
	return fmt.Sprintf("%s %s via %s", s.mode, entry.Section, entry.Name)
}

// Close tears down the session's active coroutine, if any.
func (s *Session) Close() {
	s.teardown()
	s.dead = true
}

func (s *Session) teardown() {
	if s.routine != nil {
		s.routine.Close()
		s.routine = nil
	}
	s.active = nil
}
