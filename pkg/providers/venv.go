package providers

import (
	"fmt"

	"github.com/openspaces/spaced/pkg/engine"
)

// VenvProvider bootstraps and activates a Python virtual environment at a
// fixed path.
type VenvProvider struct {
	section string
	path    string
}

// NewVenvProvider builds a virtualenv provider. The "path" parameter is
// required.
func NewVenvProvider(section string, params engine.Params) (engine.Provider, error) {
	path, err := params.String("path")
	if err != nil {
		return nil, err
	}
	return &VenvProvider{section: section, path: path}, nil
}

// CheckDependency aborts the run when the virtualenv tool is missing on the
// executor host.
func (p *VenvProvider) CheckDependency(sh *engine.Shell) error {
	out, err := sh.Run("command -v virtualenv")
	if err != nil {
		return err
	}
	if !out.Ok() {
		return engine.NewAbortError("virtualenv not found on executor host", nil).
			WithCode(engine.ErrCodeToolMissing)
	}
	return nil
}

// Provide activates the environment, creating it first when the directory
// or its activate script is missing.
func (p *VenvProvider) Provide(sh *engine.Shell) error {
	activate := fmt.Sprintf(". %s/bin/activate", p.path)
	step := engine.Step{
		Test:      fmt.Sprintf("test -d %s -a -f %s/bin/activate", p.path, p.path),
		Primary:   activate,
		Alternate: fmt.Sprintf("virtualenv %s && %s", p.path, activate),
	}
	return step.Apply(sh)
}

// Describe implements engine.Describer.
func (p *VenvProvider) Describe(engine.Mode) string {
	return fmt.Sprintf("activate virtualenv at %s", p.path)
}
