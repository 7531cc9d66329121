package providers

import (
	"fmt"
	"strings"

	"github.com/openspaces/spaced/pkg/engine"
)

// pkgSpec is one desired package: a name and an optional pinned version.
type pkgSpec struct {
	Name    string
	Version string
}

// parsePkgSpecs reads the "packages" parameter. Entries are "name" or
// "name=version" ("name==version" is accepted for pip familiarity).
func parsePkgSpecs(section string, params engine.Params) ([]pkgSpec, error) {
	entries := params.List("packages")
	if len(entries) == 0 {
		return nil, engine.NewConfigError(`package provider needs a "packages" list`, nil).
			WithSection(section).WithCode(engine.ErrCodeBadParams)
	}
	specs := make([]pkgSpec, 0, len(entries))
	for _, e := range entries {
		name, version, _ := strings.Cut(e, "=")
		version = strings.TrimPrefix(version, "=")
		if name == "" {
			return nil, engine.NewConfigError(fmt.Sprintf("bad package entry %q", e), nil).
				WithSection(section).WithCode(engine.ErrCodeBadParams)
		}
		specs = append(specs, pkgSpec{Name: name, Version: version})
	}
	return specs, nil
}

// specNames returns the package names in declaration order.
func specNames(specs []pkgSpec) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = s.Name
	}
	return out
}

// partitionSpecs diffs the desired specs against the installed version map:
// missing packages go to the install set, version mismatches to the upgrade
// set. A spec without a pinned version is satisfied by any installed
// version.
func partitionSpecs(specs []pkgSpec, installed map[string]string) (install, upgrade []pkgSpec) {
	for _, s := range specs {
		current, ok := installed[s.Name]
		switch {
		case !ok:
			install = append(install, s)
		case s.Version != "" && current != s.Version:
			upgrade = append(upgrade, s)
		}
	}
	return install, upgrade
}

// parseVersionMap reads "name version" pairs, one per line, skipping lines
// that do not match. This tolerates probe chatter such as rpm's
// "package foo is not installed".
func parseVersionMap(lines []string, names []string) map[string]string {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	out := make(map[string]string)
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 2 && wanted[fields[0]] {
			out[fields[0]] = fields[1]
		}
	}
	return out
}

// runBatch issues one mutating shell invocation for a whole spec category
// and aborts the run when it fails.
func runBatch(sh *engine.Shell, command string) error {
	out, err := sh.Run(command)
	if err != nil {
		return err
	}
	if !out.Ok() {
		return engine.NewAbortError(
			fmt.Sprintf("command %q exited %d: %s", command, out.Status, strings.Join(out.Stderr, "; ")), nil,
		).WithCode(engine.ErrCodeActionFailed)
	}
	return nil
}
