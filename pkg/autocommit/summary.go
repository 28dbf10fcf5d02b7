// pkg/autocommit/summary.go

package autocommit

import (
	"fmt"
	"strings"

	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/categorize"
)

// Outcome is what happened to one category.
type Outcome int

const (
	OutcomeCommitted Outcome = iota
	OutcomeDeclined
	OutcomeSkipped
	OutcomeFailed
	// OutcomeProposed is a dry-run proposal.
	OutcomeProposed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCommitted:
		return "committed"
	case OutcomeDeclined:
		return "declined"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	case OutcomeProposed:
		return "proposed"
	}
	return "unknown"
}

// CategoryResult records one category's pass through the pipeline.
type CategoryResult struct {
	Category categorize.Category
	Files    []string
	Outcome  Outcome
	// Message is the proposed or committed message, empty when skipped
	// before a message existed.
	Message string
	Hash    string
	// Reason explains a skip.
	Reason string
	Err    error
}

func (r CategoryResult) skip(reason string) CategoryResult {
	r.Outcome = OutcomeSkipped
	r.Reason = reason
	return r
}

func (r CategoryResult) fail(err error) CategoryResult {
	r.Outcome = OutcomeFailed
	r.Err = err
	return r
}

// Summary is the result of a run.
type Summary struct {
	Results []CategoryResult
	Pushed  bool
}

// Commits counts the commits created.
func (s *Summary) Commits() int {
	n := 0
	for _, r := range s.Results {
		if r.Outcome == OutcomeCommitted {
			n++
		}
	}
	return n
}

// Count returns how many categories ended with outcome.
func (s *Summary) Count(outcome Outcome) int {
	n := 0
	for _, r := range s.Results {
		if r.Outcome == outcome {
			n++
		}
	}
	return n
}

func (p *pipeline) printSummary(s *Summary) {
	if len(s.Results) == 0 {
		return
	}
	var sb strings.Builder
	sb.WriteString("\nSummary:\n")
	for _, r := range s.Results {
		line := fmt.Sprintf("  %-8s %-10s %d file(s)", r.Category, r.Outcome, len(r.Files))
		switch {
		case r.Hash != "":
			line += "  " + r.Hash
		case r.Reason != "":
			line += "  (" + r.Reason + ")"
		case r.Err != nil:
			line += "  (" + r.Err.Error() + ")"
		}
		sb.WriteString(line + "\n")
	}
	_, _ = fmt.Fprint(p.out, sb.String())
}
