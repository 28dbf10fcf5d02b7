// pkg/autocommit/category.go

package autocommit

import (
	"context"
	"fmt"
	"strings"

	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/categorize"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/commitmsg"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/interaction"
	cerr "github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// processGroup takes one category from diff to commit. The returned error
// is non-nil only when the whole run must stop.
func (p *pipeline) processGroup(rc *eos_io.RuntimeContext, g categorize.Group) (res CategoryResult, err error) {
	rc, span := rc.Step("autocommit.Category",
		attribute.String("category", g.Category.String()),
		attribute.Int("files", len(g.Records)))
	defer rc.End(&err)
	defer func() {
		span.SetAttributes(attribute.String("outcome", res.Outcome.String()))
		p.metrics.RecordCategory(rc.Ctx, g.Category.String(), res.Outcome.String())
	}()
	logger := otelzap.Ctx(rc.Ctx).WithOptions(zap.Fields(zap.String("category", g.Category.String())))

	paths := g.Paths()
	res = CategoryResult{Category: g.Category, Files: paths}

	excerpt, truncated, err := p.repo.Diff(rc, paths, p.cfg.Generation.MaxDiffBytes)
	if err != nil {
		logger.Error("Diff failed; skipping category", zap.Error(err))
		return res.fail(err), nil
	}
	if strings.TrimSpace(excerpt) == "" {
		logger.Warn("Empty diff; skipping category", zap.Strings("paths", paths))
		return res.skip("empty diff"), nil
	}

	draft, err := p.gen.Generate(rc, commitmsg.PromptInput{
		Category:  g.Category,
		Excerpt:   excerpt,
		Truncated: truncated,
		Known:     p.known,
	})
	if err != nil {
		return res.fail(err), err
	}

	fields := draft.Fields
	if draft.Source == commitmsg.SourceManual {
		var ok bool
		fields, ok, err = p.manualEntry(rc.Ctx, g.Category, draft.Err)
		if err != nil {
			return p.inputFailure(rc.Ctx, res, err)
		}
		if !ok {
			logger.Info("No title entered; skipping category")
			return res.skip("no title entered"), nil
		}
	} else {
		if fields.Title == "" {
			logger.Warn("Model response has no title; skipping category")
			return res.skip("model response has no title"), nil
		}
		if strings.TrimSpace(fields.Body) == "" {
			logger.Warn("Model response has no details; skipping category")
			return res.skip("model response has no details"), nil
		}
	}

	if err := p.resolveFields(rc.Ctx, &fields); err != nil {
		return p.inputFailure(rc.Ctx, res, err)
	}

	message, err := fields.Format()
	if err != nil {
		return res.fail(err), eos_err.NewInternalError("resolved fields did not format", err)
	}
	res.Message = message

	note := fmt.Sprintf("%d file(s), %s of diff", len(paths), humanize.Bytes(uint64(len(excerpt))))
	if truncated {
		note += fmt.Sprintf(" (truncated at %s)", humanize.Bytes(uint64(p.cfg.Generation.MaxDiffBytes)))
	}
	if draft.Source == commitmsg.SourceManual {
		note += ", entered manually"
	}

	if p.cfg.DryRun {
		_, _ = fmt.Fprintf(p.out, "\n[%s] %s\n%s\n%s\n", g.Category, note, strings.Join(paths, "\n"), message)
		res.Outcome = OutcomeProposed
		return res, nil
	}

	decision, final, err := p.confirmer.Confirm(rc.Ctx, interaction.Proposal{
		Category: g.Category.String(),
		Message:  message,
		Files:    paths,
		Note:     note,
	})
	if err != nil {
		return p.inputFailure(rc.Ctx, res, err)
	}
	if decision == interaction.DecisionReject {
		res.Outcome = OutcomeDeclined
		return res, nil
	}
	if final != message && commitmsg.HasPlaceholder(final) {
		logger.Warn("Edited message still has an unresolved field; skipping category")
		return res.skip("edited message has an unresolved field"), nil
	}
	res.Message = final

	hash, err := p.repo.Commit(rc, final, paths)
	if err != nil {
		logger.Error("Commit failed; continuing with the next category", zap.Error(err))
		_, _ = fmt.Fprintf(p.out, "Commit of %s failed: %s\n", g.Category, eos_err.Describe(err))
		return res.fail(err), nil
	}
	res.Outcome = OutcomeCommitted
	res.Hash = hash
	_, _ = fmt.Fprintf(p.out, "Committed %s as %s\n", g.Category, hash)
	return res, nil
}

// manualEntry asks for the title and comma-separated details. ok is false
// when the user leaves the title empty.
func (p *pipeline) manualEntry(ctx context.Context, category categorize.Category, cause error) (fields commitmsg.Fields, ok bool, err error) {
	_, _ = fmt.Fprintf(p.out, "\nNo message could be generated for %s", category)
	if cause != nil {
		_, _ = fmt.Fprintf(p.out, " (%v)", cause)
	}
	_, _ = fmt.Fprintln(p.out, ". Enter it manually.")

	title, err := p.confirmer.ReadLine(ctx, "Commit title (empty to skip)")
	if err != nil {
		return fields, false, err
	}
	if title == "" || strings.EqualFold(title, commitmsg.UnknownSentinel) {
		return fields, false, nil
	}

	details, err := p.confirmer.ReadLine(ctx, "Details, comma-separated (optional)")
	if err != nil {
		return fields, false, err
	}
	var lines []string
	for _, d := range strings.Split(details, ",") {
		if d = strings.TrimSpace(d); d != "" {
			lines = append(lines, d)
		}
	}

	fields.Title = title
	fields.Body = strings.Join(lines, "\n")
	return fields, true, nil
}

const maxResolveAttempts = 3

// resolveFields asks for every unresolved field. Values the user supplies
// are offered again for later categories.
func (p *pipeline) resolveFields(ctx context.Context, fields *commitmsg.Fields) error {
	for _, field := range fields.Unresolved() {
		var err error
		for attempt := 0; attempt < maxResolveAttempts; attempt++ {
			var value string
			value, err = p.resolver.Resolve(ctx, field, p.known.For(field))
			if err != nil {
				return err
			}
			if err = fields.Resolve(field, value); err == nil {
				p.remember(field, value)
				break
			}
			otelzap.Ctx(ctx).Warn("Rejected field value", zap.String("field", field.String()), zap.Error(err))
		}
		if err != nil {
			return cerr.Wrapf(err, "no usable %s after %d attempts", field, maxResolveAttempts)
		}
	}
	return nil
}

func (p *pipeline) remember(field commitmsg.Field, value string) {
	var k commitmsg.Known
	switch field {
	case commitmsg.FieldCPU:
		k.CPUs = []string{value}
	case commitmsg.FieldMachine:
		k.Machines = []string{value}
	case commitmsg.FieldType:
		k.Types = []string{value}
	}
	p.known = p.known.Merge(k)
}

// inputFailure maps a prompt error: closed input skips the category,
// anything else (cancellation included) stops the run.
func (p *pipeline) inputFailure(ctx context.Context, res CategoryResult, err error) (CategoryResult, error) {
	if cerr.Is(err, interaction.ErrInputClosed) && ctx.Err() == nil {
		otelzap.Ctx(ctx).Warn("Input closed; skipping category", zap.String("category", res.Category.String()))
		return res.skip("input closed"), nil
	}
	return res.fail(err), err
}
