package engine

import (
	"fmt"
	"sort"
	"strings"
)

// Mode selects which provider sequence a session runs.
type Mode string

const (
	// ModeProvide brings the host to the desired state.
	ModeProvide Mode = "provide"
	// ModeRevert undoes what a previous provide established.
	ModeRevert Mode = "revert"
)

// Validate checks that the mode is one of the known values.
func (m Mode) Validate() error {
	switch m {
	case ModeProvide, ModeRevert:
		return nil
	default:
		return NewProtocolError(fmt.Sprintf("invalid mode %q", string(m)), nil)
	}
}

// Outcome is the observed result of one externally executed command.
type Outcome struct {
	// Status is the command's exit status.
	Status int `json:"status"`
	// Stdout holds the captured standard output, one line per element.
	Stdout []string `json:"stdout,omitempty"`
	// Stderr holds the captured standard error, one line per element.
	Stderr []string `json:"stderr,omitempty"`
}

// Ok reports whether the command exited zero.
func (o Outcome) Ok() bool { return o.Status == 0 }

// FirstLine returns the first stdout line, or "" when there is none.
func (o Outcome) FirstLine() string {
	if len(o.Stdout) == 0 {
		return ""
	}
	return o.Stdout[0]
}

// Step is one idempotent change: a read-only test probe, the action taken
// when the probe succeeds (the situation already holds), and the alternate
// action that establishes the desired state when it does not.
type Step struct {
	Test      string
	Primary   string
	Alternate string
}

// Apply runs the step through the suspended shell. A non-zero exit from the
// chosen action is a fatal abort; a non-zero test exit is an ordinary branch
// condition.
func (s Step) Apply(sh *Shell) error {
	probe, err := sh.Run(s.Test)
	if err != nil {
		return err
	}
	action := s.Alternate
	if probe.Ok() {
		action = s.Primary
	}
	if action == "" {
		return nil
	}
	out, err := sh.Run(action)
	if err != nil {
		return err
	}
	if !out.Ok() {
		return NewAbortError(
			fmt.Sprintf("command %q exited %d: %s", action, out.Status, strings.Join(out.Stderr, "; ")),
			nil,
		).WithCode(ErrCodeActionFailed)
	}
	return nil
}

// Params is the resolved, reserved-key-stripped option mapping a provider is
// constructed from. Every value is a parsed list; scalars are one-element
// lists.
type Params map[string][]string

// Has reports whether the key is present.
func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// String returns the value for key as a scalar. It fails when the key is
// absent or holds more than one element.
func (p Params) String(key string) (string, error) {
	v, ok := p[key]
	if !ok {
		return "", NewConfigError(fmt.Sprintf("missing parameter %q", key), nil).WithCode(ErrCodeBadParams)
	}
	if len(v) != 1 {
		return "", NewConfigError(fmt.Sprintf("parameter %q is a %d-element list, want scalar", key, len(v)), nil).
			WithCode(ErrCodeBadParams)
	}
	return v[0], nil
}

// StringOr returns the scalar value for key, or def when the key is absent.
func (p Params) StringOr(key, def string) string {
	if !p.Has(key) {
		return def
	}
	s, err := p.String(key)
	if err != nil {
		return def
	}
	return s
}

// List returns the value for key as a list, nil when absent.
func (p Params) List(key string) []string {
	return p[key]
}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Provider is a unit of provisioning logic bound to one configuration
// section. Provide is the only mandatory capability; the remaining
// capabilities are separate interfaces a concrete provider opts into.
type Provider interface {
	// Provide runs the provider's command sequence through the suspended
	// shell. Returning a non-nil error aborts the whole run.
	Provide(sh *Shell) error
}

// Reverter is implemented by providers that can undo their provide sequence.
type Reverter interface {
	Revert(sh *Shell) error
}

// DependencyChecker is implemented by providers that need an external tool
// present before their provide sequence makes sense. The check runs through
// the same command stream, before Provide.
type DependencyChecker interface {
	CheckDependency(sh *Shell) error
}

// Describer is implemented by providers that supply a human-readable
// description of what a mode's sequence does.
type Describer interface {
	Describe(mode Mode) string
}

// ProviderFactory constructs a provider from its selector name, the section
// it is bound to, and the section's resolved parameter mapping. This is the
// sole contract the planner relies on when instantiating providers.
type ProviderFactory func(name, section string, params Params) (Provider, error)
