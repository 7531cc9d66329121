package providers

import (
	"fmt"
	"strings"

	"github.com/openspaces/spaced/pkg/engine"
)

// GitProvider checks out a source tree. A missing directory is cloned; an
// existing checkout of the same origin is accepted as already provisioned; a
// plain directory in the way is a fatal abort — the provider never converts
// an unrelated directory into a repository.
type GitProvider struct {
	section string
	path    string
	origin  string
	branch  string
}

// NewGitProvider builds a checkout provider. The "path" and "origin"
// parameters are required, "branch" is optional.
func NewGitProvider(section string, params engine.Params) (engine.Provider, error) {
	path, err := params.String("path")
	if err != nil {
		return nil, err
	}
	origin, err := params.String("origin")
	if err != nil {
		return nil, err
	}
	return &GitProvider{
		section: section,
		path:    path,
		origin:  origin,
		branch:  params.StringOr("branch", ""),
	}, nil
}

// Provide clones the origin when the target directory does not exist, and
// otherwise verifies that what exists is a checkout of the same origin.
func (p *GitProvider) Provide(sh *engine.Shell) error {
	exists, err := sh.Run("test -d " + p.path)
	if err != nil {
		return err
	}

	if !exists.Ok() {
		clone := "git clone"
		if p.branch != "" {
			clone += " -b " + p.branch
		}
		clone += fmt.Sprintf(" %s %s", p.origin, p.path)
		out, err := sh.Run(clone)
		if err != nil {
			return err
		}
		if !out.Ok() {
			return engine.NewAbortError(
				fmt.Sprintf("git clone of %s failed (exit %d): %s",
					p.origin, out.Status, strings.Join(out.Stderr, "; ")), nil,
			).WithCode(engine.ErrCodeActionFailed)
		}
		return nil
	}

	inRepo, err := sh.Run(fmt.Sprintf("git -C %s rev-parse --is-inside-work-tree", p.path))
	if err != nil {
		return err
	}
	if !inRepo.Ok() {
		return engine.NewAbortError(
			fmt.Sprintf("%s exists but is not a git repository", p.path), nil,
		).WithCode(engine.ErrCodeActionFailed)
	}

	remote, err := sh.Run(fmt.Sprintf("git -C %s remote get-url origin", p.path))
	if err != nil {
		return err
	}
	if !remote.Ok() || strings.TrimSpace(remote.FirstLine()) != p.origin {
		return engine.NewAbortError(
			fmt.Sprintf("checkout at %s tracks a different origin (want %s)", p.path, p.origin), nil,
		).WithCode(engine.ErrCodeActionFailed)
	}
	return nil
}

// Describe implements engine.Describer.
func (p *GitProvider) Describe(engine.Mode) string {
	return fmt.Sprintf("checkout of %s at %s", p.origin, p.path)
}
