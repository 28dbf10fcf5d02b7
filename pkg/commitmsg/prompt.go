package commitmsg

import (
	"bytes"
	"strings"
	"text/template"

	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/categorize"
	"github.com/CodeMonkeyCybersecurity/autocommit/pkg/llm"
	cerr "github.com/cockroachdb/errors"
)

// SystemPrompt is the fixed instruction sent with every request.
const SystemPrompt = "You are a helpful assistant that analyzes git diffs and generates concise structured commit messages."

var userPrompt = template.Must(template.New("user").Funcs(template.FuncMap{
	"join": strings.Join,
}).Parse(`Analyze the following git diff and generate a CONCISE commit message in the format [cpu][machine][type] title followed by details.
The cpu can be: {{join .Known.CPUs ", "}}
The machine can be: {{join .Known.Machines ", "}}
The type can be: {{join .Known.Types ", "}}
The change type for this diff is **{{.Hint}}**.

Requirements for the response:
1. Title should be brief but descriptive
2. Details should be limited to 2-3 key points maximum
3. Each detail should be short and focused
4. Avoid redundant information
5. Focus only on the most important changes

If any of cpu, machine, or type cannot be determined, set its value to "unknown".
{{- if .Truncated}}

The diff below was truncated; describe only what it shows.
{{- end}}

The diff content is:

{{.Excerpt}}

Please return a JSON object in this format:
{
    "cpu": "detected_cpu",
    "machine": "detected_machine",
    "type": "change_type",
    "title": "brief_title",
    "details": ["key_point1", "key_point2"]
}`))

// PromptInput is everything the user message is rendered from.
type PromptInput struct {
	Category  categorize.Category
	Excerpt   string
	Truncated bool
	Known     Known
}

// BuildPrompt renders the system and user messages for one category.
func BuildPrompt(in PromptInput) ([]llm.Message, error) {
	var buf bytes.Buffer
	err := userPrompt.Execute(&buf, struct {
		PromptInput
		Hint string
	}{in, in.Category.Hint()})
	if err != nil {
		return nil, cerr.Wrap(err, "render prompt")
	}
	return []llm.Message{
		{Role: "system", Content: SystemPrompt},
		{Role: "user", Content: buf.String()},
	}, nil
}
