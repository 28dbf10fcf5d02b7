/* pkg/interaction/resolver.go */

package interaction

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/commitmsg"
	cerr "github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// FieldResolver supplies a value for a field the model left unresolved.
// It blocks until the user answers.
type FieldResolver interface {
	Resolve(ctx context.Context, field commitmsg.Field, options []string) (string, error)
}

// LineResolver prints a numbered list and accepts a number, one of the
// listed values, or any other text.
type LineResolver struct {
	P *Prompter
}

// Resolve implements FieldResolver.
func (r LineResolver) Resolve(ctx context.Context, field commitmsg.Field, options []string) (string, error) {
	logger := otelzap.Ctx(ctx)

	r.P.Printf("\n")
	_, _ = r.P.paint(color.FgYellow).Fprintf(r.P.out, "Could not determine %s. Choose one or type your own:\n", field)
	for i, opt := range options {
		r.P.Printf("  %d) %s\n", i+1, opt)
	}

	for {
		input, err := r.P.ReadLine(ctx, fmt.Sprintf("Enter number, value, or type your own %s", field))
		if err != nil {
			return "", err
		}
		value, ok := Choose(input, options)
		if !ok {
			r.P.Printf("Input cannot be empty or \"unknown\".\n")
			continue
		}
		logger.Info("Field resolved by user", zap.String("field", field.String()), zap.String("value", value))
		return value, nil
	}
}

// Choose interprets an answer to a numbered list: an in-range number picks
// that option, anything else is taken as typed (NFC-normalised). Blank and
// "unknown" answers are rejected.
func Choose(input string, options []string) (string, bool) {
	input = norm.NFC.String(strings.TrimSpace(input))
	if input == "" || strings.EqualFold(input, commitmsg.UnknownSentinel) {
		return "", false
	}
	if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(options) {
		return options[n-1], true
	}
	for _, opt := range options {
		if opt == input {
			return opt, true
		}
	}
	return input, true
}

// ScriptedResolver answers from a fixed map keyed by field name.
type ScriptedResolver struct {
	Answers map[string]string
	Asked   []string
}

// Resolve implements FieldResolver.
func (s *ScriptedResolver) Resolve(_ context.Context, field commitmsg.Field, options []string) (string, error) {
	s.Asked = append(s.Asked, field.String())
	answer, ok := s.Answers[field.String()]
	if !ok {
		return "", cerr.Mark(cerr.Newf("no scripted answer for %s", field), ErrInputClosed)
	}
	value, ok := Choose(answer, options)
	if !ok {
		return "", cerr.Newf("scripted answer for %s is not usable: %q", field, answer)
	}
	return value, nil
}
