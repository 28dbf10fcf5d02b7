package git

import (
	"strings"

	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/eos_io"
	cerr "github.com/cockroachdb/errors"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// RecentSubjects returns the subject lines of up to depth commits reachable
// from HEAD, newest first. An unborn branch has no history and no error.
func (r *Repository) RecentSubjects(rc *eos_io.RuntimeContext, depth int) ([]string, error) {
	if depth <= 0 {
		return nil, nil
	}
	logger := otelzap.Ctx(rc.Ctx)

	head, err := r.repo.Head()
	if err != nil {
		if cerr.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, nil
		}
		return nil, cerr.Wrap(err, "resolve HEAD")
	}

	iter, err := r.repo.Log(&gogit.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, cerr.Wrap(err, "read commit log")
	}
	defer iter.Close()

	subjects := make([]string, 0, depth)
	err = iter.ForEach(func(c *object.Commit) error {
		if err := rc.Ctx.Err(); err != nil {
			return err
		}
		subjects = append(subjects, strings.TrimSpace(strings.SplitN(c.Message, "\n", 2)[0]))
		if len(subjects) >= depth {
			return storer.ErrStop
		}
		return nil
	})
	if err != nil {
		return nil, cerr.Wrap(err, "walk commit log")
	}

	logger.Debug("Read recent commit subjects", zap.Int("count", len(subjects)))
	return subjects, nil
}
