package git

import (
	"fmt"
	"strings"

	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/eos_err"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/eos_io"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/execute"
	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// ChangeStatus is the kind of change a path carries in the working tree.
type ChangeStatus int

const (
	StatusModified ChangeStatus = iota
	StatusAdded
	StatusDeleted
	StatusUntracked
)

func (s ChangeStatus) String() string {
	switch s {
	case StatusAdded:
		return "added"
	case StatusDeleted:
		return "deleted"
	case StatusUntracked:
		return "untracked"
	default:
		return "modified"
	}
}

// Code is the single-letter form used in summaries.
func (s ChangeStatus) Code() string {
	switch s {
	case StatusAdded:
		return "A"
	case StatusDeleted:
		return "D"
	case StatusUntracked:
		return "?"
	default:
		return "M"
	}
}

// ChangeRecord is one changed path, relative to the repository root with
// forward slashes.
type ChangeRecord struct {
	Path   string
	Status ChangeStatus
}

// Paths returns the paths of records in order.
func Paths(records []ChangeRecord) []string {
	paths := make([]string, 0, len(records))
	for _, rec := range records {
		paths = append(paths, rec.Path)
	}
	return paths
}

// ErrUnmergedPaths marks a scan that found merge conflicts.
var ErrUnmergedPaths = cerr.New("unmerged paths")

// Scan lists every changed path in the working tree: staged and unstaged
// modifications, additions, deletions and untracked files. Ignored files
// are excluded.
func (r *Repository) Scan(rc *eos_io.RuntimeContext) ([]ChangeRecord, error) {
	logger := otelzap.Ctx(rc.Ctx)

	res, err := r.run(rc, execute.Options{
		Args: []string{"status", "--porcelain=v1", "-z", "--untracked-files=all"},
	})
	if err != nil {
		return nil, statusError(r.Root, res, err)
	}

	records, err := ParsePorcelainZ(res.Stdout)
	if err != nil {
		return nil, eos_err.NewRepositoryError("cannot continue with unresolved merge conflicts", err,
			"Resolve the conflicts and stage the results, then run autocommit again")
	}

	logger.Debug("Scanned working tree",
		zap.String("root", r.Root),
		zap.Int("changes", len(records)))
	return records, nil
}

// ParsePorcelainZ parses `git status --porcelain=v1 -z` output. A staged
// rename becomes a deletion of the old path plus an addition of the new one.
func ParsePorcelainZ(out string) ([]ChangeRecord, error) {
	var (
		records  []ChangeRecord
		conflict []string
	)
	entries := strings.Split(out, "\x00")
	for i := 0; i < len(entries); i++ {
		entry := entries[i]
		if len(entry) < 4 {
			continue
		}
		x, y, path := entry[0], entry[1], entry[3:]

		switch {
		case x == '?' && y == '?':
			records = append(records, ChangeRecord{Path: path, Status: StatusUntracked})
		case x == '!' && y == '!':
			// ignored
		case isUnmerged(x, y):
			conflict = append(conflict, path)
		case x == 'R':
			// the source path follows as its own NUL-terminated field
			records = append(records, ChangeRecord{Path: path, Status: StatusAdded})
			if i+1 < len(entries) && entries[i+1] != "" {
				records = append(records, ChangeRecord{Path: entries[i+1], Status: StatusDeleted})
			}
			i++
		case x == 'C':
			records = append(records, ChangeRecord{Path: path, Status: StatusAdded})
			i++
		case x == 'A':
			records = append(records, ChangeRecord{Path: path, Status: StatusAdded})
		case x == 'D' || y == 'D':
			records = append(records, ChangeRecord{Path: path, Status: StatusDeleted})
		default:
			records = append(records, ChangeRecord{Path: path, Status: StatusModified})
		}
	}

	if len(conflict) > 0 {
		return records, cerr.Mark(fmt.Errorf("%d conflicted path(s): %s",
			len(conflict), strings.Join(conflict, ", ")), ErrUnmergedPaths)
	}
	return records, nil
}

func isUnmerged(x, y byte) bool {
	switch string([]byte{x, y}) {
	case "DD", "AU", "UD", "UA", "DU", "AA", "UU":
		return true
	}
	return false
}

// statusError recognises the common reasons `git status` fails.
func statusError(root string, res execute.Result, err error) error {
	stderr := strings.ToLower(res.Stderr)
	switch {
	case strings.Contains(stderr, "dubious ownership"):
		return eos_err.NewRepositoryError("git refuses to operate on "+root+": dubious ownership", err,
			"git config --global --add safe.directory "+root)
	case strings.Contains(stderr, "not a git repository"):
		return eos_err.NewRepositoryError(root+" is not a git repository", cerr.Mark(err, ErrNotAGitRepository))
	default:
		return eos_err.NewRepositoryError("failed to read repository status", err)
	}
}
