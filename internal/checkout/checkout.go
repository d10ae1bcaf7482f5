package checkout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gauntlet-ci/gauntlet/internal/execute"
)

// Source names where the verified project's tree comes from. Exactly one of
// Repository (git URL or git directory) and Path (plain directory copy) should
// be set; Repository wins when both are.
type Source struct {
	Repository string
	Path       string
}

// Describe returns a short label for logs.
func (s Source) Describe() string {
	if repo := strings.TrimSpace(s.Repository); repo != "" {
		return repo
	}
	return strings.TrimSpace(s.Path)
}

// Validate ensures the source points somewhere.
func (s Source) Validate() error {
	if strings.TrimSpace(s.Repository) == "" && strings.TrimSpace(s.Path) == "" {
		return errors.New("checkout: source requires a repository or a path")
	}
	return nil
}

// Client materializes a revision's file tree into a disposable workspace
// directory. Each stage gets its own checkout; nothing is shared.
type Client struct {
	runner execute.Runner
	git    string
}

// ClientOption customizes Client construction.
type ClientOption func(*Client)

// WithGitPath overrides the git binary (primarily for tests).
func WithGitPath(path string) ClientOption {
	return func(c *Client) {
		if path != "" {
			c.git = path
		}
	}
}

// NewClient wires a checkout client to a command runner.
func NewClient(runner execute.Runner, opts ...ClientOption) (*Client, error) {
	if runner == nil {
		return nil, errors.New("checkout: client requires a runner")
	}
	client := &Client{runner: runner, git: "git"}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Fetch places the tree for the requested revision under dir. The directory
// must not already contain a checkout. Fetch completing is a precondition for
// toolchain installation, so any failure here fails the caller's stage.
func (c *Client) Fetch(ctx context.Context, src Source, revision string, dir string) error {
	if err := src.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(dir) == "" {
		return errors.New("checkout: target dir is required")
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return fmt.Errorf("checkout: ensure workspace parent: %w", err)
	}
	if repo := strings.TrimSpace(src.Repository); repo != "" {
		return c.fetchGit(ctx, repo, revision, dir)
	}
	return copyTree(strings.TrimSpace(src.Path), dir)
}

func (c *Client) fetchGit(ctx context.Context, repo, revision, dir string) error {
	clone := execute.Command{Name: c.git, Args: []string{"clone", "--quiet", repo, dir}}
	result, err := c.runner.Run(ctx, clone)
	if err != nil {
		return fmt.Errorf("checkout: clone %s: %w", repo, err)
	}
	if !result.Ok() {
		return fmt.Errorf("checkout: clone %s: exit status %d: %s", repo, result.ExitCode, lastLine(result.Output))
	}
	rev := strings.TrimSpace(revision)
	if rev == "" {
		return nil
	}
	co := execute.Command{Name: c.git, Args: []string{"-C", dir, "checkout", "--quiet", "--detach", rev}}
	result, err = c.runner.Run(ctx, co)
	if err != nil {
		return fmt.Errorf("checkout: checkout %s: %w", rev, err)
	}
	if !result.Ok() {
		return fmt.Errorf("checkout: checkout %s: exit status %d: %s", rev, result.ExitCode, lastLine(result.Output))
	}
	return nil
}

// copyTree mirrors a local directory for path-based sources. The revision is
// whatever currently sits on disk, which matches the local edit-verify loop
// this mode exists for.
func copyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("checkout: source path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("checkout: source path %s is not a directory", src)
	}
	return filepath.WalkDir(src, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if entry.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	// Keep the source mode so build scripts stay executable in the workspace.
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func lastLine(output string) string {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return "no output"
	}
	lines := strings.Split(trimmed, "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
