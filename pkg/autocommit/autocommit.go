// pkg/autocommit/autocommit.go

// Package autocommit runs the whole pipeline over one working tree: scan,
// stage untracked files, then for each category generate a message, resolve
// what the model could not, confirm and commit, and finally offer one push.
package autocommit

import (
	"fmt"
	"io"
	"os"

	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/categorize"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/commitmsg"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/config"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/execute"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/git"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/interaction"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/llm"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/telemetry"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Options wires one run. Resolver and Confirmer are required; the rest
// have defaults.
type Options struct {
	// Path is any directory inside the working tree.
	Path   string
	Config *config.Config

	// Completer defaults to an llm.Client built from Config.LLM.
	Completer commitmsg.Completer
	Resolver  interaction.FieldResolver
	Confirmer interaction.Confirmer

	// Runner defaults to execute.OSRunner.
	Runner execute.Runner
	// Out receives the transcript (proposals in dry-run mode and the
	// summary). Defaults to os.Stdout.
	Out io.Writer
}

type pipeline struct {
	cfg       *config.Config
	repo      *git.Repository
	gen       *commitmsg.Generator
	known     commitmsg.Known
	resolver  interaction.FieldResolver
	confirmer interaction.Confirmer
	out       io.Writer
	metrics   *telemetry.Metrics
}

// Run executes the pipeline. Declined, skipped and failed categories are
// recorded in the summary; only configuration, preflight, scan, staging,
// abort-policy generation and push failures end the run with an error.
// Outside dry-run mode the push question is asked once after the last
// category, whatever the categories' outcomes.
func Run(rc *eos_io.RuntimeContext, opts Options) (summary *Summary, err error) {
	logger := otelzap.Ctx(rc.Ctx)
	summary = &Summary{}

	if opts.Config == nil || opts.Resolver == nil || opts.Confirmer == nil {
		return summary, eos_err.NewInternalError("autocommit.Run needs Config, Resolver and Confirmer", nil)
	}
	// credentials are checked before the repository is touched
	if err := opts.Config.Validate(); err != nil {
		return summary, err
	}
	cfg := opts.Config

	runner := opts.Runner
	if runner == nil {
		runner = execute.OSRunner{}
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	repo, err := preflight(rc, opts.Path, runner)
	if err != nil {
		return summary, err
	}
	rc.Span.SetAttributes(attribute.String("repository", repo.Root))

	records, err := scanAndStage(rc, repo)
	if err != nil {
		return summary, err
	}
	if len(records) == 0 {
		logger.Info("No changes to commit", zap.String("repository", repo.Root))
		_, _ = fmt.Fprintln(out, "No changes to commit")
		return summary, nil
	}

	bucket := categorize.NewBucket(records)
	known := commitmsg.KnownFromConfig(cfg.Values)
	subjects, err := repo.RecentSubjects(rc, cfg.History.Depth)
	if err != nil {
		logger.Warn("Could not read commit history; offering configured values only", zap.Error(err))
	}
	known = known.Merge(commitmsg.KnownFromSubjects(subjects))

	completer := opts.Completer
	if completer == nil {
		completer = llm.NewClient(cfg.LLM, nil)
	}

	p := &pipeline{
		cfg:       cfg,
		repo:      repo,
		gen:       commitmsg.NewGenerator(completer, commitmsg.PolicyFromConfig(cfg.Generation), known),
		known:     known,
		resolver:  opts.Resolver,
		confirmer: opts.Confirmer,
		out:       out,
		metrics:   telemetry.DefaultMetrics(),
	}

	groups := bucket.Groups()
	logger.Info("Categorized changes",
		zap.Int("files", bucket.Len()),
		zap.Int("categories", len(groups)),
		zap.Bool("dry_run", cfg.DryRun))

	for _, g := range groups {
		res, err := p.processGroup(rc, g)
		summary.Results = append(summary.Results, res)
		if err != nil {
			p.printSummary(summary)
			return summary, err
		}
	}

	p.printSummary(summary)

	// asked even when nothing was committed: earlier unpushed commits
	// may still be waiting
	if cfg.DryRun {
		logger.Debug("Dry run; push prompt skipped")
		return summary, nil
	}

	pushed, err := p.offerPush(rc, summary.Commits())
	summary.Pushed = pushed
	return summary, err
}

// preflight checks the git binary and opens the repository.
func preflight(rc *eos_io.RuntimeContext, path string, runner execute.Runner) (repo *git.Repository, err error) {
	rc, _ = rc.Step("autocommit.Preflight")
	defer rc.End(&err)

	if _, err := git.CheckGitInstalled(rc.Ctx, runner); err != nil {
		return nil, err
	}
	return git.Open(rc, path, runner)
}

// scanAndStage lists changes and stages every untracked file so that it
// shows up in the cached diff and can be committed. A clean tree needs no
// identity; otherwise the identity is checked before the index is touched.
func scanAndStage(rc *eos_io.RuntimeContext, repo *git.Repository) (records []git.ChangeRecord, err error) {
	rc, span := rc.Step("autocommit.Scan")
	defer rc.End(&err)

	records, err = repo.Scan(rc)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("changes", len(records)))
	if len(records) == 0 {
		return nil, nil
	}
	if err := repo.CheckIdentity(rc); err != nil {
		return nil, err
	}

	var untracked []string
	for _, rec := range records {
		if rec.Status == git.StatusUntracked {
			untracked = append(untracked, rec.Path)
		}
	}
	if err := repo.Stage(rc, untracked); err != nil {
		return nil, err
	}
	return records, nil
}
