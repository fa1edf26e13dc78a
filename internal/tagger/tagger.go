// Package tagger records release tags for promoted versions.
package tagger

import (
	"fmt"
	"os/exec"
	"strings"
)

// Tagger marks a promoted version in the underlying VCS.
type Tagger interface {
	Tag(version, message string) error
}

// Noop is used when the store does not live inside a git repository.
type Noop struct{}

func (Noop) Tag(version, message string) error { return nil }

// Git tags the repository at repoRoot with an annotated tag. The tag
// name is the version string itself.
type Git struct {
	RepoRoot string

	// run is swappable for tests.
	run func(dir string, args ...string) ([]byte, error)
}

// NewGit creates a git tagger rooted at repoRoot.
func NewGit(repoRoot string) *Git {
	return &Git{RepoRoot: repoRoot, run: runGit}
}

// Available reports whether repoRoot is inside a git work tree.
func (g *Git) Available() bool {
	out, err := g.runner()(g.RepoRoot, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(string(out)) == "true"
}

// Tag creates an annotated tag named after the version.
func (g *Git) Tag(version, message string) error {
	out, err := g.runner()(g.RepoRoot, "tag", "-a", version, "-m", message)
	if err != nil {
		return fmt.Errorf("git tag %s: %v: %s", version, err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (g *Git) runner() func(dir string, args ...string) ([]byte, error) {
	if g.run != nil {
		return g.run
	}
	return runGit
}

func runGit(dir string, args ...string) ([]byte, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}
