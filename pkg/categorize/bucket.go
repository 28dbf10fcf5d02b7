package categorize

import (
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/git"
)

// Group is one non-empty category and its records in scan order.
type Group struct {
	Category Category
	Records  []git.ChangeRecord
}

// Paths returns the group's paths in scan order.
func (g Group) Paths() []string {
	return git.Paths(g.Records)
}

// Bucket groups a scan by category. Built once per run and read-only after.
type Bucket struct {
	byCategory map[Category][]git.ChangeRecord
	total      int
}

// NewBucket categorizes every record.
func NewBucket(records []git.ChangeRecord) Bucket {
	b := Bucket{byCategory: make(map[Category][]git.ChangeRecord)}
	for _, rec := range records {
		c := Categorize(rec.Path)
		b.byCategory[c] = append(b.byCategory[c], rec)
		b.total++
	}
	return b
}

// Groups returns the non-empty categories in processing order.
func (b Bucket) Groups() []Group {
	var groups []Group
	for _, c := range Categories() {
		if recs := b.byCategory[c]; len(recs) > 0 {
			groups = append(groups, Group{Category: c, Records: recs})
		}
	}
	return groups
}

// Records returns the records of one category.
func (b Bucket) Records(c Category) []git.ChangeRecord {
	return b.byCategory[c]
}

// Len is the number of records across all categories.
func (b Bucket) Len() int { return b.total }
