// Package agent assembles the time-tracking assistant from an LLM model and
// the worklog tool set.
package agent

import (
	"github.com/effective-security/tempoagent/assistants"
	"github.com/effective-security/tempoagent/pkg/llms"
	"github.com/effective-security/tempoagent/pkg/prompts"
	"github.com/effective-security/tempoagent/tools/worklog"
)

// AssistantName is the agent's name in callbacks and metrics.
const AssistantName = "Timesheet Assistant"

const systemPromptTemplate = `You are a time-tracking assistant that updates Jira issues using the provided tools.
If the user does not specify an issue key, assume the issue key is '{{.DefaultIssueKey}}'.
Do not ask the user for clarification or confirmation, proceed with the default values.
Only respond with the result of the tool calls.`

// NewAssistant creates the timesheet assistant bound to the worklog tools.
func NewAssistant(model llms.Model, prov *worklog.Provider, options ...assistants.Option) *assistants.Assistant {
	sysprompt := prompts.NewPromptTemplate(systemPromptTemplate, []string{"DefaultIssueKey"})

	options = append([]assistants.Option{
		assistants.WithPromptInput(map[string]any{
			"DefaultIssueKey": prov.Jira.DefaultIssueKey(),
		}),
	}, options...)

	return assistants.NewAssistant(model, sysprompt, options...).
		WithName(AssistantName).
		WithDescription("Logs and reports work time on Jira issues through Tempo.").
		WithTools(prov.Tools()...)
}
