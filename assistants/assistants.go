// Package assistants implements the tool calling conversation loop between
// a language model and the registered tools.
package assistants

import (
	"context"
	"fmt"
	"strings"

	"github.com/effective-security/tempoagent/pkg/llms"
	"github.com/effective-security/tempoagent/pkg/prompts"
	"github.com/effective-security/tempoagent/tools"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/tempoagent", "assistants")

//go:generate mockgen -destination=../mocks/mockllms/llm_mock.gen.go -package mockllms github.com/effective-security/tempoagent/pkg/llms Model

// IAssistant is the interface the web server and tests program against.
type IAssistant interface {
	// Name identifies the assistant in logs, metrics and callbacks.
	Name() string
	// Description summarizes the assistant for use in prompts.
	Description() string
	// FormatPrompt renders the system prompt with the given variables.
	FormatPrompt(values map[string]any) (prompts.PromptValue, error)
	GetPromptInputVariables() []string

	// Call runs one conversation turn for the user input.
	Call(ctx context.Context, input string, options ...Option) (*llms.ContentResponse, error)
}

// Callback receives assistant lifecycle events in addition to tool events.
type Callback interface {
	tools.Callback
	OnAssistantStart(ctx context.Context, agent IAssistant, input string)
	OnAssistantEnd(ctx context.Context, agent IAssistant, input string, resp *llms.ContentResponse, messages []llms.Message)
	OnAssistantError(ctx context.Context, agent IAssistant, input string, err error, messages []llms.Message)
	OnAssistantLLMCallStart(ctx context.Context, agent IAssistant, llm llms.Model, payload []llms.Message)
	OnAssistantLLMCallEnd(ctx context.Context, agent IAssistant, llm llms.Model, resp *llms.ContentResponse)
	OnToolNotFound(ctx context.Context, agent IAssistant, tool string)
}

// GetDescriptions renders a markdown list of assistant names and
// descriptions for embedding in prompts.
func GetDescriptions(list ...IAssistant) string {
	var sb strings.Builder
	for _, item := range list {
		fmt.Fprintf(&sb, "- `%s`: %s\n", item.Name(), item.Description())
	}
	return sb.String()
}
