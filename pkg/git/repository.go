// Package git wraps the repository operations autocommit needs: opening a
// working tree, listing changes, staging, diffing, committing and pushing.
// Reads go through go-git where it is sufficient; anything that mutates the
// repository shells out to the git binary so hooks and config apply.
package git

import (
	"os"
	"path/filepath"

	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/execute"
	cerr "github.com/cockroachdb/errors"
	gogit "github.com/go-git/go-git/v5"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// ErrNotAGitRepository marks errors for paths outside version control.
var ErrNotAGitRepository = cerr.New("not a git repository")

// Repository is an opened working tree.
type Repository struct {
	// Root is the absolute top-level directory of the working tree.
	Root string

	repo   *gogit.Repository
	runner execute.Runner
}

// Open locates the repository containing path and returns a handle rooted at
// its top level. A nil runner uses the OS runner.
func Open(rc *eos_io.RuntimeContext, path string, runner execute.Runner) (*Repository, error) {
	logger := otelzap.Ctx(rc.Ctx)

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, eos_err.NewRepositoryError("cannot resolve repository path "+path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, eos_err.NewRepositoryError("repository path does not exist: "+abs, err,
			"Pass the path of a git working tree")
	}
	if !info.IsDir() {
		abs = filepath.Dir(abs)
	}

	repo, err := gogit.PlainOpenWithOptions(abs, &gogit.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		if cerr.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, eos_err.NewRepositoryError(abs+" is not inside a git repository",
				cerr.Mark(err, ErrNotAGitRepository),
				"Run autocommit on a directory under version control",
				"Initialise one with: git init")
		}
		return nil, eos_err.NewRepositoryError("failed to open repository at "+abs, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, eos_err.NewRepositoryError(abs+" has no working tree", err,
			"Bare repositories cannot be committed to directly; use a clone")
	}

	if runner == nil {
		runner = execute.OSRunner{}
	}

	r := &Repository{
		Root:   wt.Filesystem.Root(),
		repo:   repo,
		runner: runner,
	}
	logger.Debug("Opened repository", zap.String("root", r.Root), zap.String("requested", path))
	return r, nil
}

// CurrentBranch returns the short name of the checked-out branch, or ""
// when HEAD is detached or the branch is unborn.
func (r *Repository) CurrentBranch() string {
	head, err := r.repo.Head()
	if err != nil || !head.Name().IsBranch() {
		return ""
	}
	return head.Name().Short()
}

// HeadHash returns the abbreviated hash of HEAD, or "" for an unborn branch.
func (r *Repository) HeadHash() string {
	head, err := r.repo.Head()
	if err != nil {
		return ""
	}
	return head.Hash().String()[:7]
}

// run executes git in the repository root.
func (r *Repository) run(rc *eos_io.RuntimeContext, opts execute.Options) (execute.Result, error) {
	opts.Command = "git"
	opts.Dir = r.Root
	if opts.Logger == nil {
		opts.Logger = rc.Log
	}
	return r.runner.Run(rc.Ctx, opts)
}
