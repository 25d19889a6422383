// Package tools defines the contract between the assistant and the functions
// it can call.
package tools

import (
	"context"

	"github.com/effective-security/tempoagent/pkg/llmutils"
)

// ITool is a callable function exposed to the model.
type ITool interface {
	// Name is the function name presented in the tool definitions.
	Name() string
	// Description tells the model what the tool does and when to use it.
	Description() string
	// Parameters returns the JSON schema of the tool input.
	Parameters() any

	// Call runs the tool with the model-provided JSON arguments.
	// Arguments that do not parse should surface
	// chatmodel.ErrFailedUnmarshalInput so the run can recover.
	Call(ctx context.Context, input string) (string, error)
}

// Callback receives tool execution events.
type Callback interface {
	OnToolStart(ctx context.Context, tool ITool, input string)
	OnToolEnd(ctx context.Context, tool ITool, input string, output string)
	OnToolError(ctx context.Context, tool ITool, input string, err error)
}

// Tool is an ITool with a typed Run for direct use in tests and other tools.
type Tool[I any, O any] interface {
	ITool
	Run(ctx context.Context, req *I) (*O, error)
}

type toolDescription struct {
	Name        string `json:"Name" yaml:"Name"`
	Description string `json:"Description" yaml:"Description"`
}

type toolsDescription struct {
	Tools []toolDescription `json:"Tools" yaml:"Tools"`
}

// GetDescriptions renders the tool list as a fenced JSON block for prompts.
func GetDescriptions(list ...ITool) string {
	d := toolsDescription{
		Tools: make([]toolDescription, 0, len(list)),
	}
	for _, tool := range list {
		d.Tools = append(d.Tools, toolDescription{
			Name:        tool.Name(),
			Description: tool.Description(),
		})
	}
	return llmutils.BackticksJSON(llmutils.ToJSONIndent(d))
}
