package providers

import (
	"fmt"
	"sort"

	"github.com/openspaces/spaced/pkg/engine"
)

// EnvProvider exports environment variables in the executor shell. Every
// parameter is taken as a variable assignment. Before a variable is set, its
// pre-existing value is snapshotted into the provider instance so that
// Revert restores exactly what existed, or unsets variables that did not.
type EnvProvider struct {
	section string
	vars    map[string]string

	// Snapshot taken on the first provide pass. Owned exclusively by this
	// instance; never shared across runs.
	captured bool
	previous map[string]string
	existed  map[string]bool
}

// NewEnvProvider builds an environment variable provider from a section's
// parameter mapping.
func NewEnvProvider(section string, params engine.Params) (engine.Provider, error) {
	if len(params) == 0 {
		return nil, engine.NewConfigError("env provider needs at least one variable", nil).
			WithSection(section).WithCode(engine.ErrCodeBadParams)
	}
	vars := make(map[string]string, len(params))
	for _, key := range params.Keys() {
		value, err := params.String(key)
		if err != nil {
			return nil, err
		}
		vars[key] = value
	}
	return &EnvProvider{
		section:  section,
		vars:     vars,
		previous: make(map[string]string),
		existed:  make(map[string]bool),
	}, nil
}

// names returns the variable names in a deterministic order.
func (p *EnvProvider) names() []string {
	out := make([]string, 0, len(p.vars))
	for k := range p.vars {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Provide probes each variable and exports the desired value. A variable
// that already carries the desired value is left untouched, so a repeated
// run issues probes only.
func (p *EnvProvider) Provide(sh *engine.Shell) error {
	for _, name := range p.names() {
		desired := p.vars[name]

		probe, err := sh.Run("printenv " + name)
		if err != nil {
			return err
		}
		if !p.captured {
			if probe.Ok() {
				p.previous[name] = probe.FirstLine()
				p.existed[name] = true
			} else {
				p.existed[name] = false
			}
		}
		if probe.Ok() && probe.FirstLine() == desired {
			continue
		}

		out, err := sh.Run(fmt.Sprintf("export %s=%s", name, shQuote(desired)))
		if err != nil {
			return err
		}
		if !out.Ok() {
			return engine.NewAbortError(
				fmt.Sprintf("failed to export %s (exit %d)", name, out.Status), nil,
			).WithCode(engine.ErrCodeActionFailed)
		}
	}
	p.captured = true
	return nil
}

// Revert restores the snapshotted values: variables that existed before the
// provide pass get their old value back, the rest are unset.
func (p *EnvProvider) Revert(sh *engine.Shell) error {
	names := p.names()
	for i := len(names) - 1; i >= 0; i-- {
		name := names[i]

		probe, err := sh.Run("printenv " + name)
		if err != nil {
			return err
		}

		var action string
		if p.captured && p.existed[name] {
			if probe.Ok() && probe.FirstLine() == p.previous[name] {
				continue
			}
			action = fmt.Sprintf("export %s=%s", name, shQuote(p.previous[name]))
		} else {
			if !probe.Ok() {
				continue
			}
			action = "unset " + name
		}

		out, err := sh.Run(action)
		if err != nil {
			return err
		}
		if !out.Ok() {
			return engine.NewAbortError(
				fmt.Sprintf("failed to restore %s (exit %d)", name, out.Status), nil,
			).WithCode(engine.ErrCodeActionFailed)
		}
	}
	return nil
}

// Describe implements engine.Describer.
func (p *EnvProvider) Describe(mode engine.Mode) string {
	if mode == engine.ModeRevert {
		return fmt.Sprintf("restore %d environment variable(s) for %s", len(p.vars), p.section)
	}
	return fmt.Sprintf("export %d environment variable(s) for %s", len(p.vars), p.section)
}
