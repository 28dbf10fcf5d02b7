// pkg/categorize/categorize.go
//
// Maps changed paths to subsystem categories with an ordered rule list.
// First match wins; every path lands in exactly one category.

package categorize

import (
	"fmt"
	"path"
	"strings"

	"github.com/gobwas/glob"
	"github.com/src-d/enry/v2"
)

// Category is the subsystem bucket a changed file is committed under.
type Category int

const (
	DTS Category = iota
	CONFIG
	DRIVERS
	SCRIPT
	OTHER
)

var categoryNames = [...]string{"DTS", "CONFIG", "DRIVERS", "SCRIPT", "OTHER"}

func (c Category) String() string {
	if c < DTS || c > OTHER {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryNames[c]
}

// Hint is the lower-case change type suggested to the model for this category.
func (c Category) Hint() string {
	return strings.ToLower(c.String())
}

// Categories returns every category in processing order.
func Categories() []Category {
	return []Category{DTS, CONFIG, DRIVERS, SCRIPT, OTHER}
}

// Rule is one entry of the priority list.
type Rule struct {
	Category Category
	// Pattern is the human-readable form printed by `autocommit rules`.
	Pattern string

	match func(lowered, original string) bool
}

// Matches reports whether the rule applies to p.
func (r Rule) Matches(p string) bool {
	p = normalize(p)
	return r.match(strings.ToLower(p), p)
}

// scriptLanguages are the enry language names treated as SCRIPT.
var scriptLanguages = map[string]bool{
	"Shell":    true,
	"Python":   true,
	"Perl":     true,
	"Makefile": true,
}

var rules = buildRules()

func buildRules() []Rule {
	var out []Rule
	add := func(c Category, patterns ...string) {
		for _, p := range patterns {
			out = append(out, Rule{Category: c, Pattern: p, match: mustMatcher(p)})
		}
	}

	add(DTS, "**/*.dts", "**/*.dtsi", "**/*.dtso", "**/dts/**")
	add(CONFIG, "*config*")
	add(DRIVERS, "drivers/**", "**/drivers/**", "**/*.c", "**/*.h")
	add(SCRIPT, "**/*.sh", "**/*.bash", "**/*.py", "**/*.pl", "**/makefile", "**/*.mk", "*build*", "*script*")
	out = append(out, Rule{
		Category: SCRIPT,
		Pattern:  "language: Shell, Python, Perl, Makefile",
		match: func(_, original string) bool {
			return scriptLanguages[language(original)]
		},
	})
	out = append(out, Rule{
		Category: OTHER,
		Pattern:  "everything else",
		match:    func(string, string) bool { return true },
	})
	return out
}

// mustMatcher compiles p. Patterns with a slash are path globs where `*`
// stops at `/`; a leading `**/` also matches at the repository root.
// Patterns without a slash match anywhere in the path.
func mustMatcher(p string) func(lowered, original string) bool {
	if !strings.Contains(p, "/") {
		g := glob.MustCompile(p)
		return func(lowered, _ string) bool { return g.Match(lowered) }
	}

	globs := []glob.Glob{glob.MustCompile(p, '/')}
	if rest, ok := strings.CutPrefix(p, "**/"); ok {
		globs = append(globs, glob.MustCompile(rest, '/'))
	}
	return func(lowered, _ string) bool {
		for _, g := range globs {
			if g.Match(lowered) {
				return true
			}
		}
		return false
	}
}

// language asks enry for a confident answer from the file name alone.
func language(p string) string {
	base := path.Base(p)
	if lang, safe := enry.GetLanguageByFilename(base); safe && lang != "" {
		return lang
	}
	if lang, safe := enry.GetLanguageByExtension(base); safe && lang != "" {
		return lang
	}
	return ""
}

func normalize(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	return strings.TrimPrefix(p, "./")
}

// Rules returns the priority list, first match wins.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Categorize returns the category of p. It never fails.
func Categorize(p string) Category {
	p = normalize(p)
	lowered := strings.ToLower(p)
	for _, r := range rules {
		if r.match(lowered, p) {
			return r.Category
		}
	}
	return OTHER
}
