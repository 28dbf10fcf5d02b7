package commitmsg

import (
	"encoding/json"
	"strings"

	cerr "github.com/cockroachdb/errors"
)

// ErrNoJSON marks model output that contains no JSON object.
var ErrNoJSON = cerr.New("response contains no JSON object")

// Parse reads the model's answer. The JSON object may be wrapped in prose or
// a markdown fence; everything from the first `{` to the last `}` is decoded.
// Missing, null, blank and "unknown" fields come back unresolved. The body is
// taken from `details` (array or string) and falls back to `body`.
func Parse(content string) (Fields, error) {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end < start {
		return Fields{}, ErrNoJSON
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return Fields{}, cerr.Wrap(err, "decode response JSON")
	}

	f := Fields{
		CPU:     Resolved(stringField(raw["cpu"])),
		Machine: Resolved(stringField(raw["machine"])),
		Type:    Resolved(stringField(raw["type"])),
		Title:   stringField(raw["title"]),
	}
	if strings.EqualFold(f.Title, UnknownSentinel) {
		f.Title = ""
	}
	f.Body = detailsBody(raw["details"])
	if f.Body == "" {
		f.Body = strings.TrimSpace(stringField(raw["body"]))
	}
	return f, nil
}

func stringField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// detailsBody joins detail points one per line without list markers.
func detailsBody(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var points []string
	if err := json.Unmarshal(raw, &points); err != nil {
		s := stringField(raw)
		if s == "" {
			return ""
		}
		points = strings.Split(s, "\n")
	}

	lines := make([]string, 0, len(points))
	for _, p := range points {
		p = strings.TrimSpace(p)
		p = strings.TrimSpace(strings.TrimLeft(p, "-*•"))
		if p != "" {
			lines = append(lines, p)
		}
	}
	return strings.Join(lines, "\n")
}
