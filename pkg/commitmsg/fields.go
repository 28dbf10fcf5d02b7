// Package commitmsg turns a category's diff into the structured fields of a
// `[cpu][machine][type] title` commit message.
package commitmsg

import (
	"fmt"
	"strings"

	cerr "github.com/cockroachdb/errors"
)

// UnknownSentinel is what the model answers for a field it cannot infer.
const UnknownSentinel = "unknown"

// Value is a field slot that is either resolved to a non-empty string or
// explicitly unresolved.
type Value struct {
	v  string
	ok bool
}

// Resolved returns a resolved value. Blank or "unknown" input stays
// unresolved so the sentinel can never leak into a commit.
func Resolved(v string) Value {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, UnknownSentinel) {
		return Unresolved()
	}
	return Value{v: v, ok: true}
}

// Unresolved returns an empty slot.
func Unresolved() Value { return Value{} }

// IsResolved reports whether the slot holds a value.
func (v Value) IsResolved() bool { return v.ok }

// Get returns the value and whether it is resolved.
func (v Value) Get() (string, bool) { return v.v, v.ok }

func (v Value) String() string {
	if !v.ok {
		return "<unresolved>"
	}
	return v.v
}

// Field names a resolvable slot.
type Field int

const (
	FieldCPU Field = iota
	FieldMachine
	FieldType
)

// ResolvableFields lists the slots in prompt order.
var ResolvableFields = []Field{FieldCPU, FieldMachine, FieldType}

func (f Field) String() string {
	switch f {
	case FieldCPU:
		return "cpu"
	case FieldMachine:
		return "machine"
	case FieldType:
		return "type"
	default:
		return fmt.Sprintf("Field(%d)", int(f))
	}
}

// ErrUnresolved is returned by Format while any slot is still open.
var ErrUnresolved = cerr.New("commit fields unresolved")

// Fields is one category's commit message in structured form.
type Fields struct {
	CPU     Value
	Machine Value
	Type    Value
	Title   string
	Body    string
}

func (f *Fields) slot(field Field) *Value {
	switch field {
	case FieldCPU:
		return &f.CPU
	case FieldMachine:
		return &f.Machine
	case FieldType:
		return &f.Type
	}
	return nil
}

// Get returns the slot for field.
func (f Fields) Get(field Field) Value {
	if s := f.slot(field); s != nil {
		return *s
	}
	return Unresolved()
}

// Resolve fills field with value. A blank or sentinel value is rejected.
func (f *Fields) Resolve(field Field, value string) error {
	s := f.slot(field)
	if s == nil {
		return cerr.Newf("unknown field %v", field)
	}
	v := Resolved(value)
	if !v.IsResolved() {
		return cerr.Newf("%s cannot be %q", field, value)
	}
	*s = v
	return nil
}

// Unresolved lists the open slots in prompt order.
func (f Fields) Unresolved() []Field {
	var open []Field
	for _, field := range ResolvableFields {
		if !f.Get(field).IsResolved() {
			open = append(open, field)
		}
	}
	return open
}

// Subject renders the first line. It fails while any slot is open or the
// title is blank.
func (f Fields) Subject() (string, error) {
	if open := f.Unresolved(); len(open) > 0 {
		names := make([]string, len(open))
		for i, field := range open {
			names[i] = field.String()
		}
		return "", cerr.Wrapf(ErrUnresolved, "%s", strings.Join(names, ", "))
	}
	title := strings.TrimSpace(f.Title)
	if title == "" {
		return "", cerr.New("commit title is empty")
	}
	return fmt.Sprintf("[%s][%s][%s] %s", f.CPU.v, f.Machine.v, f.Type.v, title), nil
}

// Format renders the full message: subject, a blank line, then the body.
func (f Fields) Format() (string, error) {
	subject, err := f.Subject()
	if err != nil {
		return "", err
	}
	body := strings.TrimSpace(f.Body)
	if body == "" {
		return subject, nil
	}
	return subject + "\n\n" + body, nil
}
