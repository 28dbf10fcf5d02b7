package commitmsg

import (
	"context"
	"time"

	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/config"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/llm"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Completer sends chat messages and returns the reply content.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message) (string, error)
}

// Source says where a draft's fields came from.
type Source int

const (
	// SourceModel drafts were parsed from a model response.
	SourceModel Source = iota
	// SourceManual drafts are empty; the user types every field.
	SourceManual
)

func (s Source) String() string {
	if s == SourceManual {
		return "manual"
	}
	return "model"
}

// Draft is a generated (or deliberately empty) set of fields.
type Draft struct {
	Fields   Fields
	Source   Source
	Attempts int
	// Err is the last generation error when Source is SourceManual.
	Err error
}

// Policy is the retry and fallback behaviour for failed generations.
type Policy struct {
	Retries    int
	RetryDelay time.Duration
	Fallback   string
}

// PolicyFromConfig reads the generation section.
func PolicyFromConfig(c config.GenerationConfig) Policy {
	return Policy{Retries: c.Retries, RetryDelay: c.RetryDelay, Fallback: c.Fallback}
}

// Generator drafts commit fields for one category at a time.
type Generator struct {
	client Completer
	policy Policy
	known  Known
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewGenerator wires a completer with the failure policy and known values.
func NewGenerator(client Completer, policy Policy, known Known) *Generator {
	return &Generator{client: client, policy: policy, known: known, sleep: sleepCtx}
}

// Generate asks the model for category's fields. A failed request or an
// unparseable reply is retried up to Policy.Retries times; an open circuit
// is not retried. When attempts run out the draft falls back to manual
// entry, or the error is returned under the abort policy.
func (g *Generator) Generate(rc *eos_io.RuntimeContext, in PromptInput) (draft Draft, err error) {
	rc, span := rc.Step("commitmsg.Generate",
		attribute.String("category", in.Category.String()),
		attribute.Int("excerpt_bytes", len(in.Excerpt)))
	defer rc.End(&err)
	logger := otelzap.Ctx(rc.Ctx)

	if len(in.Known.CPUs)+len(in.Known.Machines)+len(in.Known.Types) == 0 {
		in.Known = g.known
	}
	messages, err := BuildPrompt(in)
	if err != nil {
		return Draft{}, eos_err.NewInternalError("prompt template failed", err)
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= g.policy.Retries; attempt++ {
		if attempt > 0 {
			if err := g.sleep(rc.Ctx, g.policy.RetryDelay); err != nil {
				return Draft{}, err
			}
			logger.Info("Retrying commit message generation",
				zap.String("category", in.Category.String()),
				zap.Int("attempt", attempt+1))
		}
		attempts++

		fields, err := g.attempt(rc.Ctx, messages)
		if err == nil {
			span.SetAttributes(attribute.Int("attempts", attempts))
			return Draft{Fields: fields, Source: SourceModel, Attempts: attempts}, nil
		}
		lastErr = err
		if rc.Ctx.Err() != nil {
			return Draft{}, rc.Ctx.Err()
		}
		if cerr.Is(err, llm.ErrBreakerOpen) {
			break
		}
		logger.Warn("Commit message generation failed",
			zap.String("category", in.Category.String()),
			zap.Int("attempt", attempts),
			zap.Error(err))
	}

	if g.policy.Fallback == config.FallbackAbort {
		return Draft{}, cerr.WithStack(lastErr)
	}

	logger.Warn("Falling back to manual entry",
		zap.String("category", in.Category.String()),
		zap.Int("attempts", attempts),
		zap.Error(lastErr))
	return Draft{Source: SourceManual, Attempts: attempts, Err: lastErr}, nil
}

func (g *Generator) attempt(ctx context.Context, messages []llm.Message) (Fields, error) {
	content, err := g.client.Complete(ctx, messages)
	if err != nil {
		return Fields{}, err
	}
	fields, err := Parse(content)
	if err != nil {
		return Fields{}, eos_err.NewGenerationError("model response is not the expected JSON", err,
			"Check llm.max_tokens is large enough for a complete answer")
	}
	return fields, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
