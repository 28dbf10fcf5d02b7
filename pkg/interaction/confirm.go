package interaction

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	cerr "github.com/cockroachdb/errors"
	"github.com/fatih/color"
	"github.com/muesli/termenv"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Decision is the answer to a commit proposal.
type Decision int

const (
	DecisionReject Decision = iota
	DecisionAccept
)

func (d Decision) String() string {
	if d == DecisionAccept {
		return "accept"
	}
	return "reject"
}

// Proposal is one category's commit as shown to the user.
type Proposal struct {
	Category string
	Message  string
	Files    []string
	// Note is an optional line shown under the file list.
	Note string
}

// Confirmer asks the user about proposals and free-form questions.
type Confirmer interface {
	// Confirm shows p and returns the decision and the message to commit,
	// which differs from p.Message when the user edited it.
	Confirm(ctx context.Context, p Proposal) (Decision, string, error)
	YesNo(ctx context.Context, question string, defaultYes bool) (bool, error)
	ReadLine(ctx context.Context, label string) (string, error)
}

var _ Confirmer = (*Prompter)(nil)

// Confirm implements Confirmer with a y/n/e prompt. Editing replaces the
// whole message, shows the change against the current proposal and asks
// again.
func (p *Prompter) Confirm(ctx context.Context, prop Proposal) (Decision, string, error) {
	logger := otelzap.Ctx(ctx)
	message := prop.Message

	p.renderProposal(prop, message)
	for {
		input, err := p.ReadLine(ctx, fmt.Sprintf("Commit %s changes? [y/n/e]", prop.Category))
		if err != nil {
			return DecisionReject, "", err
		}
		switch strings.ToLower(input) {
		case "y", "yes":
			logger.Info("Proposal accepted", zap.String("category", prop.Category))
			return DecisionAccept, message, nil
		case "n", "no":
			logger.Info("Proposal declined", zap.String("category", prop.Category))
			return DecisionReject, "", nil
		case "e", "edit":
			edited, err := p.ReadMessage(ctx, "Enter the replacement commit message.")
			if err != nil {
				return DecisionReject, "", err
			}
			if strings.TrimSpace(edited) == "" {
				p.Printf("Empty message ignored; keeping the previous one.\n")
				continue
			}
			p.Printf("%s", p.RenderDiff(message, edited))
			message = edited
			p.renderProposal(prop, message)
		default:
			p.Printf("Please answer y, n or e.\n")
		}
	}
}

func (p *Prompter) renderProposal(prop Proposal, message string) {
	r := lipgloss.NewRenderer(p.out)
	if !p.color {
		r.SetColorProfile(termenv.Ascii)
	}
	box := r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63")).
		Padding(0, 1)
	header := r.NewStyle().Bold(true)

	var sb strings.Builder
	sb.WriteString(header.Render(fmt.Sprintf("Proposed %s commit", prop.Category)))
	sb.WriteString("\n")
	for _, f := range prop.Files {
		sb.WriteString("  " + f + "\n")
	}
	if prop.Note != "" {
		sb.WriteString(prop.Note + "\n")
	}
	p.Printf("\n%s\n%s\n", sb.String(), box.Render(message))
}

// RenderDiff shows a line diff from before to after, removals in red and
// additions in green.
func (p *Prompter) RenderDiff(before, after string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	del := p.paint(color.FgRed)
	add := p.paint(color.FgGreen)

	var sb strings.Builder
	for _, d := range diffs {
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			if !strings.HasSuffix(line, "\n") {
				line += "\n"
			}
			switch d.Type {
			case diffmatchpatch.DiffDelete:
				sb.WriteString(del.Sprint("- " + line))
			case diffmatchpatch.DiffInsert:
				sb.WriteString(add.Sprint("+ " + line))
			default:
				sb.WriteString("  " + line)
			}
		}
	}
	return sb.String()
}

// ErrNoScriptedAnswer is returned by ScriptedConfirmer when it runs dry.
var ErrNoScriptedAnswer = cerr.New("no scripted answer left")

// ScriptedConfirmer replays answers in order. Decisions are "y", "n" or
// "e:<new message>".
type ScriptedConfirmer struct {
	Decisions []string
	Answers   []string

	Proposals []Proposal
	Questions []string
}

// Confirm implements Confirmer.
func (s *ScriptedConfirmer) Confirm(_ context.Context, p Proposal) (Decision, string, error) {
	s.Proposals = append(s.Proposals, p)
	if len(s.Decisions) == 0 {
		return DecisionReject, "", cerr.Mark(ErrNoScriptedAnswer, ErrInputClosed)
	}
	d := s.Decisions[0]
	s.Decisions = s.Decisions[1:]
	switch {
	case d == "y":
		return DecisionAccept, p.Message, nil
	case strings.HasPrefix(d, "e:"):
		return DecisionAccept, strings.TrimPrefix(d, "e:"), nil
	default:
		return DecisionReject, "", nil
	}
}

// YesNo implements Confirmer from Answers; an empty answer takes the default.
func (s *ScriptedConfirmer) YesNo(ctx context.Context, question string, defaultYes bool) (bool, error) {
	answer, err := s.ReadLine(ctx, question)
	if err != nil {
		return false, err
	}
	if answer == "" {
		return defaultYes, nil
	}
	yes, _ := NormalizeYesNoInput(answer)
	return yes, nil
}

// ReadLine implements Confirmer from Answers.
func (s *ScriptedConfirmer) ReadLine(_ context.Context, label string) (string, error) {
	s.Questions = append(s.Questions, label)
	if len(s.Answers) == 0 {
		return "", cerr.Mark(ErrNoScriptedAnswer, ErrInputClosed)
	}
	a := s.Answers[0]
	s.Answers = s.Answers[1:]
	return a, nil
}
