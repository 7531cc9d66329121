package providers

import (
	"fmt"
	"strings"

	"github.com/openspaces/spaced/pkg/engine"
)

// RpmProvider installs RPM-family packages through dnf.
type RpmProvider struct {
	section string
	specs   []pkgSpec
}

// NewRpmProvider builds an RPM package provider from the section's
// "packages" list.
func NewRpmProvider(section string, params engine.Params) (engine.Provider, error) {
	specs, err := parsePkgSpecs(section, params)
	if err != nil {
		return nil, err
	}
	return &RpmProvider{section: section, specs: specs}, nil
}

// Provide probes the installed version map once, then issues at most one
// install invocation and one upgrade invocation.
func (p *RpmProvider) Provide(sh *engine.Shell) error {
	names := specNames(p.specs)
	probe, err := sh.Run(`rpm -q --qf '%{NAME} %{VERSION}\n' ` + strings.Join(names, " "))
	if err != nil {
		return err
	}
	installed := parseVersionMap(probe.Stdout, names)

	install, upgrade := partitionSpecs(p.specs, installed)
	if len(install) > 0 {
		if err := runBatch(sh, "sudo dnf install -y "+rpmArgs(install)); err != nil {
			return err
		}
	}
	if len(upgrade) > 0 {
		if err := runBatch(sh, "sudo dnf install -y --best --allowerasing "+rpmArgs(upgrade)); err != nil {
			return err
		}
	}
	return nil
}

func rpmArgs(specs []pkgSpec) string {
	args := make([]string, len(specs))
	for i, s := range specs {
		if s.Version != "" {
			args[i] = s.Name + "-" + s.Version
		} else {
			args[i] = s.Name
		}
	}
	return strings.Join(args, " ")
}

// Describe implements engine.Describer.
func (p *RpmProvider) Describe(engine.Mode) string {
	return fmt.Sprintf("install %d rpm package(s) for %s", len(p.specs), p.section)
}
