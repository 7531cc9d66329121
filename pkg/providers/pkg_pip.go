package providers

import (
	"fmt"
	"strings"

	"github.com/openspaces/spaced/pkg/engine"
)

// PipProvider installs Python packages into whatever environment the
// executor shell has active (typically a virtualenv provisioned by an
// earlier section).
type PipProvider struct {
	section string
	specs   []pkgSpec
}

// NewPipProvider builds a pip package provider from the section's
// "packages" list.
func NewPipProvider(section string, params engine.Params) (engine.Provider, error) {
	specs, err := parsePkgSpecs(section, params)
	if err != nil {
		return nil, err
	}
	return &PipProvider{section: section, specs: specs}, nil
}

// CheckDependency aborts the run when pip is missing on the executor host.
func (p *PipProvider) CheckDependency(sh *engine.Shell) error {
	out, err := sh.Run("command -v pip")
	if err != nil {
		return err
	}
	if !out.Ok() {
		return engine.NewAbortError("pip not found on executor host", nil).
			WithCode(engine.ErrCodeToolMissing)
	}
	return nil
}

// Provide diffs `pip freeze` output against the desired specs, then issues
// at most one install invocation and one upgrade invocation.
func (p *PipProvider) Provide(sh *engine.Shell) error {
	probe, err := sh.Run("pip freeze")
	if err != nil {
		return err
	}
	installed := parseFreeze(probe.Stdout)

	install, upgrade := partitionSpecs(p.specs, installed)
	if len(install) > 0 {
		if err := runBatch(sh, "pip install "+pipArgs(install)); err != nil {
			return err
		}
	}
	if len(upgrade) > 0 {
		if err := runBatch(sh, "pip install --upgrade "+pipArgs(upgrade)); err != nil {
			return err
		}
	}
	return nil
}

// parseFreeze reads "name==version" lines from pip freeze output.
func parseFreeze(lines []string) map[string]string {
	out := make(map[string]string)
	for _, line := range lines {
		name, version, ok := strings.Cut(strings.TrimSpace(line), "==")
		if ok && name != "" {
			out[name] = version
		}
	}
	return out
}

func pipArgs(specs []pkgSpec) string {
	args := make([]string, len(specs))
	for i, s := range specs {
		if s.Version != "" {
			args[i] = s.Name + "==" + s.Version
		} else {
			args[i] = s.Name
		}
	}
	return strings.Join(args, " ")
}

// Describe implements engine.Describer.
func (p *PipProvider) Describe(engine.Mode) string {
	return fmt.Sprintf("install %d python package(s) for %s", len(p.specs), p.section)
}
