package commitmsg

import (
	"regexp"
	"strings"

	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/config"
)

// Known holds the values offered for each resolvable field.
type Known struct {
	CPUs     []string
	Machines []string
	Types    []string
}

// KnownFromConfig copies the configured value lists.
func KnownFromConfig(v config.ValuesConfig) Known {
	return Known{
		CPUs:     append([]string(nil), v.CPUs...),
		Machines: append([]string(nil), v.Machines...),
		Types:    append([]string(nil), v.Types...),
	}
}

// For returns the options for field.
func (k Known) For(field Field) []string {
	switch field {
	case FieldCPU:
		return k.CPUs
	case FieldMachine:
		return k.Machines
	case FieldType:
		return k.Types
	}
	return nil
}

// Merge appends other's values that k does not already hold, keeping k's
// order first.
func (k Known) Merge(other Known) Known {
	return Known{
		CPUs:     mergeUnique(k.CPUs, other.CPUs),
		Machines: mergeUnique(k.Machines, other.Machines),
		Types:    mergeUnique(k.Types, other.Types),
	}
}

func mergeUnique(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			v = strings.TrimSpace(v)
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

var subjectPattern = regexp.MustCompile(`^\[([^\[\]]+)\]\[([^\[\]]+)\]\[([^\[\]]+)\]\s*(.*)$`)

// ParseSubject splits a `[cpu][machine][type] title` subject line.
func ParseSubject(subject string) (Fields, bool) {
	m := subjectPattern.FindStringSubmatch(strings.TrimSpace(subject))
	if m == nil {
		return Fields{}, false
	}
	f := Fields{
		CPU:     Resolved(m[1]),
		Machine: Resolved(m[2]),
		Type:    Resolved(m[3]),
		Title:   strings.TrimSpace(m[4]),
	}
	return f, len(f.Unresolved()) == 0
}

// KnownFromSubjects collects the values used in previous commit subjects,
// most recent first.
func KnownFromSubjects(subjects []string) Known {
	var k Known
	for _, s := range subjects {
		f, ok := ParseSubject(s)
		if !ok {
			continue
		}
		k.CPUs = append(k.CPUs, f.CPU.v)
		k.Machines = append(k.Machines, f.Machine.v)
		k.Types = append(k.Types, f.Type.v)
	}
	return Known{}.Merge(k)
}

// HasPlaceholder reports whether message's subject still carries an
// unresolved slot, for example after the user edited a proposal.
func HasPlaceholder(message string) bool {
	subject := strings.TrimSpace(strings.SplitN(message, "\n", 2)[0])
	if strings.Contains(strings.ToLower(subject), "["+UnknownSentinel+"]") {
		return true
	}
	m := subjectPattern.FindStringSubmatch(subject)
	if m == nil {
		return false
	}
	for _, v := range m[1:4] {
		if !Resolved(v).IsResolved() {
			return true
		}
	}
	return false
}
