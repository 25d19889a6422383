// Package prompts provides template-based prompt formatting for assistants.
package prompts

import (
	"strings"
	"text/template"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/tempoagent/pkg/llms"
)

// PromptValue is the interface that all prompt values must implement.
type PromptValue interface {
	String() string
	Messages() []llms.Message
}

// FormatPrompter is an interface for formatting a map of values into a prompt.
type FormatPrompter interface {
	FormatPrompt(values map[string]any) (PromptValue, error)
	GetInputVariables() []string
}

// PromptTemplate contains common fields for all prompt templates.
type PromptTemplate struct {
	// Template is the prompt template, in Go text/template syntax.
	Template string
	// InputVariables is a list of variable names the prompt template expects.
	InputVariables []string
}

var _ FormatPrompter = (*PromptTemplate)(nil)

// NewPromptTemplate returns a new prompt template.
func NewPromptTemplate(tmpl string, inputVars []string) *PromptTemplate {
	return &PromptTemplate{
		Template:       tmpl,
		InputVariables: inputVars,
	}
}

// GetInputVariables returns the input variables the prompt expects.
func (p *PromptTemplate) GetInputVariables() []string {
	return p.InputVariables
}

// FormatPrompt formats the template with the given values.
// All declared input variables must be present in values.
func (p *PromptTemplate) FormatPrompt(values map[string]any) (PromptValue, error) {
	for _, v := range p.InputVariables {
		if _, ok := values[v]; !ok {
			return nil, errors.Newf("missing prompt input variable: %s", v)
		}
	}

	t, err := template.New("prompt").Option("missingkey=error").Parse(p.Template)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse prompt template")
	}
	var buf strings.Builder
	if err := t.Execute(&buf, values); err != nil {
		return nil, errors.Wrap(err, "failed to execute prompt template")
	}
	return StringPromptValue(buf.String()), nil
}

// StringPromptValue is a prompt value that is a string.
type StringPromptValue string

var _ PromptValue = StringPromptValue("")

func (v StringPromptValue) String() string {
	return string(v)
}

// Messages returns the prompt as a single system message.
func (v StringPromptValue) Messages() []llms.Message {
	return []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, string(v)),
	}
}
