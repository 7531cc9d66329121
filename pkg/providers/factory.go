package providers

import (
	"fmt"
	"strings"

	"github.com/openspaces/spaced/pkg/engine"
)

// Platform identifies the executor host's OS family, as declared by its
// os-release data. The caller detects it (locally or by probing the remote
// host) and injects it; providers never read the host environment
// themselves.
type Platform struct {
	// ID is the os-release ID field, e.g. "debian", "ubuntu", "fedora".
	ID string
	// IDLike lists the os-release ID_LIKE families, e.g. ["rhel", "fedora"].
	IDLike []string
}

// ParseOSRelease extracts a Platform from os-release file content.
func ParseOSRelease(content string) Platform {
	var p Platform
	for _, line := range strings.Split(content, "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, `"'`)
		switch key {
		case "ID":
			p.ID = value
		case "ID_LIKE":
			p.IDLike = strings.Fields(value)
		}
	}
	return p
}

// matches reports whether any of the given family names equals the platform
// ID or appears in its ID_LIKE list.
func (p Platform) matches(families ...string) bool {
	for _, f := range families {
		if p.ID == f {
			return true
		}
		for _, like := range p.IDLike {
			if like == f {
				return true
			}
		}
	}
	return false
}

// Factory constructs providers by selector name. It satisfies
// engine.ProviderFactory through its New method.
type Factory struct {
	platform Platform
}

// NewFactory creates a provider factory for the given executor platform.
func NewFactory(platform Platform) *Factory {
	return &Factory{platform: platform}
}

// New builds the provider selected by a section's reserved provider option.
func (f *Factory) New(name, section string, params engine.Params) (engine.Provider, error) {
	switch name {
	case "env":
		return NewEnvProvider(section, params)
	case "venv", "virtualenv":
		return NewVenvProvider(section, params)
	case "git":
		return NewGitProvider(section, params)
	case "pip":
		return NewPipProvider(section, params)
	case "deb":
		return NewDebProvider(section, params)
	case "rpm":
		return NewRpmProvider(section, params)
	case "pkg":
		return f.newPlatformPackageProvider(section, params)
	default:
		return nil, engine.NewConfigError(fmt.Sprintf("unknown provider %q", name), nil).
			WithSection(section).WithCode(engine.ErrCodeNoProvider)
	}
}

// pkgImplementation is one candidate OS package backend for the generic
// "pkg" selector.
type pkgImplementation struct {
	name       string
	compatible func(Platform) bool
	build      func(section string, params engine.Params) (engine.Provider, error)
}

// pkgImplementations enumerates the known backends. Selection happens at
// construction time and fails loudly on zero or multiple matches.
var pkgImplementations = []pkgImplementation{
	{
		name:       "deb",
		compatible: func(p Platform) bool { return p.matches("debian", "ubuntu") },
		build:      NewDebProvider,
	},
	{
		name:       "rpm",
		compatible: func(p Platform) bool { return p.matches("fedora", "rhel", "centos", "suse", "opensuse") },
		build:      NewRpmProvider,
	},
}

func (f *Factory) newPlatformPackageProvider(section string, params engine.Params) (engine.Provider, error) {
	var picked []pkgImplementation
	for _, impl := range pkgImplementations {
		if impl.compatible(f.platform) {
			picked = append(picked, impl)
		}
	}
	switch len(picked) {
	case 0:
		return nil, engine.NewConfigError(
			fmt.Sprintf("no package provider compatible with platform %q", f.platform.ID), nil,
		).WithSection(section).WithCode(engine.ErrCodeNoProvider)
	case 1:
		return picked[0].build(section, params)
	default:
		names := make([]string, len(picked))
		for i, impl := range picked {
			names[i] = impl.name
		}
		return nil, engine.NewConfigError(
			fmt.Sprintf("multiple package providers compatible with platform %q: %s",
				f.platform.ID, strings.Join(names, ", ")), nil,
		).WithSection(section).WithCode(engine.ErrCodeNoProvider)
	}
}

// shQuote wraps s in single quotes for safe inclusion in a shell command.
func shQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
