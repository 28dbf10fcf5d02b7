package git

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/execute"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// TruncationMarker ends a diff excerpt that was cut to size.
const TruncationMarker = "\n... [diff truncated]\n"

// Stage adds paths to the index. Used for untracked files so their
// content appears in the cached diff and can be committed.
func (r *Repository) Stage(rc *eos_io.RuntimeContext, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	logger := otelzap.Ctx(rc.Ctx)

	args := append([]string{"add", "--"}, paths...)
	if _, err := r.run(rc, execute.Options{Args: args}); err != nil {
		return eos_err.NewRepositoryError(fmt.Sprintf("failed to stage %d file(s)", len(paths)), err,
			"Check file permissions and .gitignore rules, then rerun")
	}

	logger.Info("Staged untracked files", zap.Strings("paths", paths))
	return nil
}

// Diff returns the staged diff followed by the unstaged diff for paths,
// cut to at most maxBytes (0 means unlimited). truncated reports whether
// anything was cut.
func (r *Repository) Diff(rc *eos_io.RuntimeContext, paths []string, maxBytes int) (excerpt string, truncated bool, err error) {
	if len(paths) == 0 {
		return "", false, nil
	}

	var sb strings.Builder
	for _, mode := range [][]string{{"diff", "--cached"}, {"diff"}} {
		args := append(append(mode, "--no-color", "--no-ext-diff", "--"), paths...)
		res, err := r.run(rc, execute.Options{Args: args})
		if err != nil {
			return "", false, eos_err.NewRepositoryError("failed to compute diff", err)
		}
		sb.WriteString(res.Stdout)
	}

	excerpt, truncated = Truncate(sb.String(), maxBytes)
	return excerpt, truncated, nil
}

// Truncate cuts s to maxBytes on a line boundary where possible and appends
// TruncationMarker. maxBytes <= 0 disables truncation.
func Truncate(s string, maxBytes int) (string, bool) {
	if maxBytes <= 0 || len(s) <= maxBytes {
		return s, false
	}
	cut := s[:maxBytes]
	if i := strings.LastIndexByte(cut, '\n'); i > maxBytes/2 {
		cut = cut[:i+1]
	} else {
		// never split a multi-byte rune
		end := maxBytes
		for end > 0 && !utf8.RuneStart(s[end]) {
			end--
		}
		cut = s[:end]
	}
	return cut + TruncationMarker, true
}

// Commit records only paths, leaving anything else in the index staged,
// and returns the new HEAD hash. The message is passed on stdin.
func (r *Repository) Commit(rc *eos_io.RuntimeContext, message string, paths []string) (string, error) {
	logger := otelzap.Ctx(rc.Ctx)

	if len(paths) == 0 {
		return "", eos_err.NewInternalError("commit requested with no paths", nil)
	}

	args := append([]string{"commit", "--quiet", "--file=-", "--only", "--"}, paths...)
	res, err := r.run(rc, execute.Options{
		Args:  args,
		Stdin: strings.NewReader(message),
	})
	if err != nil {
		return "", eos_err.NewRepositoryError("git commit failed: "+eos_err.ExtractSummary(res.Stderr+"\n"+res.Stdout, 2), err,
			"Check the output of any pre-commit hooks",
			"The files are still staged; commit them manually or rerun autocommit")
	}

	hash := r.HeadHash()
	logger.Info("Created commit",
		zap.String("hash", hash),
		zap.Int("files", len(paths)),
		zap.String("subject", strings.SplitN(message, "\n", 2)[0]))
	return hash, nil
}

// Push runs `git push [remote [branch]]` once. It never forces and never
// retries; the caller decides what to do with a rejection.
func (r *Repository) Push(rc *eos_io.RuntimeContext, remote, branch string) error {
	logger := otelzap.Ctx(rc.Ctx)

	args := []string{"push"}
	if remote != "" {
		args = append(args, remote)
		if branch != "" {
			args = append(args, branch)
		}
	}

	res, err := r.run(rc, execute.Options{Args: args})
	if err != nil {
		return eos_err.NewRepositoryError("git push failed: "+eos_err.ExtractSummary(res.Stderr, 2), err,
			"Your commits are safe locally; fix the remote issue and run git push")
	}

	logger.Info("Pushed commits",
		zap.String("remote", remote),
		zap.String("branch", branch))
	return nil
}
