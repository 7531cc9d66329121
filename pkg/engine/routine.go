package engine

import "context"

// RoutineState tracks where a provider coroutine is in its lifecycle.
type RoutineState int

const (
	// RoutineNotStarted means the script function has not run yet.
	RoutineNotStarted RoutineState = iota
	// RoutineAwaitingOutcome means a command has been yielded and the
	// routine is suspended until the caller supplies its outcome.
	RoutineAwaitingOutcome
	// RoutineDone means the script completed normally.
	RoutineDone
	// RoutineAborted means the script raised a fatal abort.
	RoutineAborted
)

// String returns the state name.
func (s RoutineState) String() string {
	switch s {
	case RoutineNotStarted:
		return "not-started"
	case RoutineAwaitingOutcome:
		return "awaiting-outcome"
	case RoutineDone:
		return "done"
	case RoutineAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// ScriptFunc is a provider sequence written in direct style. Inside the
// function, sh.Run suspends until the driver supplies the command's outcome.
type ScriptFunc func(sh *Shell) error

// Shell is the suspension handle passed to a ScriptFunc. It performs no I/O
// itself; Run hands the command to the driving Routine and blocks until the
// externally observed outcome arrives.
type Shell struct {
	rt *Routine
}

// Run yields a command to the driver and suspends until its outcome is
// supplied. It returns an error only when the routine is torn down before
// the outcome arrives.
func (sh *Shell) Run(command string) (Outcome, error) {
	r := sh.rt
	select {
	case r.cmds <- command:
	case <-r.ctx.Done():
		return Outcome{}, r.ctx.Err()
	}
	select {
	case o := <-r.outcomes:
		return o, nil
	case <-r.ctx.Done():
		return Outcome{}, r.ctx.Err()
	}
}

// Routine runs one provider sequence as a cooperative coroutine: a goroutine
// paired with a command channel and an outcome channel. The driver side
// alternates strictly between receiving a command and sending its outcome.
type Routine struct {
	ctx    context.Context
	cancel context.CancelFunc

	fn       ScriptFunc
	state    RoutineState
	cmds     chan string
	outcomes chan Outcome
	done     chan error
}

// NewRoutine prepares a routine for fn. The script does not run until Start.
func NewRoutine(ctx context.Context, fn ScriptFunc) *Routine {
	rctx, cancel := context.WithCancel(ctx)
	return &Routine{
		ctx:      rctx,
		cancel:   cancel,
		fn:       fn,
		state:    RoutineNotStarted,
		cmds:     make(chan string),
		outcomes: make(chan Outcome),
		done:     make(chan error, 1),
	}
}

// State returns the routine's current lifecycle state.
func (r *Routine) State() RoutineState { return r.state }

// Start launches the script and advances it to its first suspension point.
// It returns the first yielded command, or done=true when the script
// finished without yielding (err non-nil on abort).
func (r *Routine) Start() (cmd string, done bool, err error) {
	if r.state != RoutineNotStarted {
		return "", false, NewProtocolError("routine already started", nil).WithCode(ErrCodeOutOfSequence)
	}
	go func() {
		r.done <- r.fn(&Shell{rt: r})
	}()
	return r.await()
}

// Resume supplies the outcome of the previously yielded command and advances
// the script to its next suspension point or completion.
func (r *Routine) Resume(outcome Outcome) (cmd string, done bool, err error) {
	if r.state != RoutineAwaitingOutcome {
		return "", false, NewProtocolError("routine is not awaiting an outcome", nil).WithCode(ErrCodeOutOfSequence)
	}
	select {
	case r.outcomes <- outcome:
	case <-r.ctx.Done():
		return "", true, r.ctx.Err()
	}
	return r.await()
}

func (r *Routine) await() (string, bool, error) {
	select {
	case cmd := <-r.cmds:
		r.state = RoutineAwaitingOutcome
		return cmd, false, nil
	case err := <-r.done:
		if err != nil {
			r.state = RoutineAborted
		} else {
			r.state = RoutineDone
		}
		r.cancel()
		return "", true, err
	case <-r.ctx.Done():
		return "", true, r.ctx.Err()
	}
}

// Close tears the routine down. A script blocked in Shell.Run observes the
// cancellation and returns; the completion error is discarded.
func (r *Routine) Close() {
	r.cancel()
}
