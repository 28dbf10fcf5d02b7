// pkg/interaction/reader.go

package interaction

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	cerr "github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// ErrInputClosed marks a prompt that hit end of input.
var ErrInputClosed = cerr.New("input closed")

const (
	DefaultYesPrompt = "Y/n"
	DefaultNoPrompt  = "y/N"
)

// Prompter reads answers from in and writes prompts to out. Prompts go to
// stderr in the CLI so stdout stays clean for automation.
type Prompter struct {
	in    *bufio.Reader
	out   io.Writer
	color bool
}

// NewPrompter wraps in and out. Colour is applied only when enabled.
func NewPrompter(in io.Reader, out io.Writer, colour bool) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out, color: colour}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

func (p *Prompter) paint(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if p.color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

// Printf writes to the prompt output.
func (p *Prompter) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, format, args...)
}

// ReadLine prints label and returns one trimmed line. End of input without
// any text returns ErrInputClosed.
func (p *Prompter) ReadLine(ctx context.Context, label string) (string, error) {
	logger := otelzap.Ctx(ctx)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	logger.Debug("Prompting user for input", zap.String("label", label))

	if label != "" {
		_, _ = p.paint(color.Bold).Fprint(p.out, label+": ")
	}

	text, err := p.in.ReadString('\n')
	if err != nil {
		if cerr.Is(err, io.EOF) {
			if strings.TrimSpace(text) != "" {
				return strings.TrimSpace(text), nil
			}
			_, _ = fmt.Fprintln(p.out)
			return "", cerr.Mark(cerr.Wrapf(err, "reading %q", label), ErrInputClosed)
		}
		logger.Error("Failed to read user input", zap.Error(err))
		return "", cerr.Wrap(err, "read user input")
	}
	return strings.TrimSpace(text), nil
}

// YesNo asks question until it gets a yes/no answer; blank takes defaultYes.
func (p *Prompter) YesNo(ctx context.Context, question string, defaultYes bool) (bool, error) {
	def := DefaultNoPrompt
	if defaultYes {
		def = DefaultYesPrompt
	}
	for {
		input, err := p.ReadLine(ctx, fmt.Sprintf("%s [%s]", question, def))
		if err != nil {
			return false, err
		}
		if input == "" {
			return defaultYes, nil
		}
		if answer, ok := NormalizeYesNoInput(input); ok {
			return answer, nil
		}
		p.Printf("Please answer y or n.\n")
	}
}

// NormalizeYesNoInput maps y/yes and n/no (any case) to a bool. ok is false
// for anything else.
func NormalizeYesNoInput(input string) (answer bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true, true
	case "n", "no":
		return false, true
	}
	return false, false
}

// ReadMessage reads lines until a line holding a single "." or end of
// input. Trailing blank lines are dropped.
func (p *Prompter) ReadMessage(ctx context.Context, intro string) (string, error) {
	p.Printf("%s\n", intro)
	p.Printf("End with a line containing only \".\"\n")

	var lines []string
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := p.in.ReadString('\n')
		line := strings.TrimRight(text, "\r\n")
		if line == "." {
			break
		}
		if err != nil {
			if !cerr.Is(err, io.EOF) {
				return "", cerr.Wrap(err, "read message")
			}
			if line != "" {
				lines = append(lines, line)
			}
			if len(lines) == 0 {
				return "", cerr.Mark(err, ErrInputClosed)
			}
			break
		}
		lines = append(lines, line)
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n \t"), nil
}
