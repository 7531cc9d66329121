package providers

import (
	"fmt"
	"strings"

	"github.com/openspaces/spaced/pkg/engine"
)

// DebProvider installs Debian-family packages through apt.
type DebProvider struct {
	section string
	specs   []pkgSpec
}

// NewDebProvider builds a Debian package provider from the section's
// "packages" list.
func NewDebProvider(section string, params engine.Params) (engine.Provider, error) {
	specs, err := parsePkgSpecs(section, params)
	if err != nil {
		return nil, err
	}
	return &DebProvider{section: section, specs: specs}, nil
}

// Provide probes the installed version map once, then issues at most one
// install invocation and one upgrade invocation. A probe reporting missing
// packages is an ordinary branch condition, not an error.
func (p *DebProvider) Provide(sh *engine.Shell) error {
	names := specNames(p.specs)
	probe, err := sh.Run(`dpkg-query -W -f='${Package} ${Version}\n' ` + strings.Join(names, " "))
	if err != nil {
		return err
	}
	installed := parseVersionMap(probe.Stdout, names)

	install, upgrade := partitionSpecs(p.specs, installed)
	if len(install) > 0 {
		if err := runBatch(sh, "sudo apt-get install -y "+debArgs(install)); err != nil {
			return err
		}
	}
	if len(upgrade) > 0 {
		if err := runBatch(sh, "sudo apt-get install -y --only-upgrade --allow-downgrades "+debArgs(upgrade)); err != nil {
			return err
		}
	}
	return nil
}

func debArgs(specs []pkgSpec) string {
	args := make([]string, len(specs))
	for i, s := range specs {
		if s.Version != "" {
			args[i] = s.Name + "=" + s.Version
		} else {
			args[i] = s.Name
		}
	}
	return strings.Join(args, " ")
}

// Describe implements engine.Describer.
func (p *DebProvider) Describe(engine.Mode) string {
	return fmt.Sprintf("install %d deb package(s) for %s", len(p.specs), p.section)
}
