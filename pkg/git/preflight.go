// pkg/git/preflight.go
//
// Git preflight checks - validates the git environment before any prompt
// so a run never stops halfway because the binary or identity is missing.

package git

import (
	"context"
	"fmt"
	"net/mail"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/execute"
	"github.com/hashicorp/go-version"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// MinimumVersion is the oldest git whose porcelain -z output and
// pathspec commit semantics autocommit relies on.
const MinimumVersion = "2.0.0"

const versionTimeout = 10 * time.Second

var versionPattern = regexp.MustCompile(`(\d+\.\d+(?:\.\d+)?)`)

// ParseVersion extracts the version from `git --version` output such as
// "git version 2.39.3 (Apple Git-146)" or "git version 2.45.1.windows.1".
func ParseVersion(output string) (*version.Version, error) {
	m := versionPattern.FindString(output)
	if m == "" {
		return nil, fmt.Errorf("unrecognised git version output %q", strings.TrimSpace(output))
	}
	return version.NewVersion(m)
}

// CheckGitInstalled verifies git is on PATH and at least MinimumVersion.
func CheckGitInstalled(ctx context.Context, runner execute.Runner) (*version.Version, error) {
	logger := otelzap.Ctx(ctx)

	gitPath, err := exec.LookPath("git")
	if err != nil {
		return nil, eos_err.NewDependencyError("git", "committing changes",
			"Ubuntu/Debian: sudo apt-get install git",
			"macOS: brew install git",
			"Or visit https://git-scm.com/downloads")
	}

	if runner == nil {
		runner = execute.OSRunner{}
	}
	res, err := runner.Run(ctx, execute.Options{Command: gitPath, Args: []string{"--version"}, Timeout: versionTimeout})
	if err != nil {
		return nil, eos_err.NewDependencyError("a working git", "committing changes",
			fmt.Sprintf("git at %s failed to run: %v", gitPath, err))
	}

	got, err := ParseVersion(res.Stdout)
	if err != nil {
		return nil, eos_err.NewDependencyError("a recognisable git", "committing changes", err.Error())
	}
	minimum := version.Must(version.NewVersion(MinimumVersion))
	if got.LessThan(minimum) {
		return nil, eos_err.NewDependencyError(
			fmt.Sprintf("git >= %s (found %s)", MinimumVersion, got), "committing changes",
			"Upgrade git from your package manager")
	}

	logger.Debug("Git is installed", zap.String("path", gitPath), zap.String("version", got.String()))
	return got, nil
}

// identityVars are resolved by `git var` exactly as `git commit` resolves
// them: GIT_AUTHOR_* and GIT_COMMITTER_* first, then user.name and
// user.email, then auto-detection unless user.useConfigOnly is set.
var identityVars = []string{"GIT_AUTHOR_IDENT", "GIT_COMMITTER_IDENT"}

// CheckIdentity verifies git can build author and committer identities
// for the repository, since every commit needs them.
func (r *Repository) CheckIdentity(rc *eos_io.RuntimeContext) error {
	logger := otelzap.Ctx(rc.Ctx)

	for _, v := range identityVars {
		res, err := r.run(rc, execute.Options{Args: []string{"var", v}})
		if err != nil {
			return eos_err.NewRepositoryError(
				"git identity not configured: "+eos_err.ExtractSummary(res.Stderr, 2), err,
				`git config --global user.name "Your Name"`,
				`git config --global user.email "your.email@example.com"`,
				"Or export GIT_AUTHOR_NAME, GIT_AUTHOR_EMAIL, GIT_COMMITTER_NAME and GIT_COMMITTER_EMAIL")
		}

		name, email := ParseIdent(res.Stdout)
		if _, err := mail.ParseAddress(email); err != nil {
			return eos_err.NewRepositoryError(fmt.Sprintf("git identity email %q is not a valid email address", email), err,
				`git config --global user.email "your.email@example.com"`)
		}
		logger.Debug("Git identity resolved", zap.String("var", v), zap.String("name", name), zap.String("email", email))
	}
	return nil
}

// ParseIdent splits `git var` ident output, "Name <email> 1700000000 +0000",
// into name and email.
func ParseIdent(ident string) (name, email string) {
	ident = strings.TrimSpace(ident)
	open := strings.IndexByte(ident, '<')
	end := strings.LastIndexByte(ident, '>')
	if open < 0 || end < open {
		return ident, ""
	}
	return strings.TrimSpace(ident[:open]), ident[open+1 : end]
}
