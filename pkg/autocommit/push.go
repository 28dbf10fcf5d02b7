// pkg/autocommit/push.go

package autocommit

import (
	"fmt"

	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/interaction"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// offerPush asks once whether to push and pushes on yes. commits may be
// zero. Closed input counts as no. A failed push is returned and ends the
// run.
func (p *pipeline) offerPush(rc *eos_io.RuntimeContext, commits int) (pushed bool, err error) {
	rc, span := rc.Step("autocommit.Push", attribute.Int("commits", commits))
	defer rc.End(&err)
	logger := otelzap.Ctx(rc.Ctx)

	remote, branch := p.cfg.Push.Remote, p.cfg.Push.Branch
	target := pushTarget(remote, branch, p.repo.CurrentBranch())
	yes, err := p.confirmer.YesNo(rc.Ctx, pushQuestion(commits, target), false)
	if err != nil {
		if cerr.Is(err, interaction.ErrInputClosed) && rc.Ctx.Err() == nil {
			logger.Info("Input closed; not pushing")
			return false, nil
		}
		return false, err
	}
	span.SetAttributes(attribute.Bool("accepted", yes))
	if !yes {
		logger.Info("Push declined")
		return false, nil
	}

	if err := p.repo.Push(rc, remote, branch); err != nil {
		p.metrics.RecordPush(rc.Ctx, false)
		return false, err
	}
	p.metrics.RecordPush(rc.Ctx, true)
	_, _ = fmt.Fprintln(p.out, "Pushed to", target)
	logger.Info("Push completed", zap.Int("commits", commits))
	return true, nil
}

func pushQuestion(commits int, target string) string {
	if commits == 0 {
		return fmt.Sprintf("No commits were made in this run. Push to %s anyway?", target)
	}
	return fmt.Sprintf("Push %d commit(s) to %s?", commits, target)
}

// pushTarget names where `git push [remote [branch]]` will go. current is
// the checked-out branch, or "" when HEAD is detached or unborn.
func pushTarget(remote, branch, current string) string {
	if remote == "" {
		if current == "" {
			return "the upstream branch"
		}
		return "the upstream of " + current
	}
	if branch == "" {
		branch = current
	}
	if branch == "" {
		return remote
	}
	return remote + "/" + branch
}
