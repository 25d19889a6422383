package llms

import (
	"github.com/invopop/jsonschema"
)

// CallOption configures a single GenerateContent call.
type CallOption func(*CallOptions)

// CallOptions holds the per-call generation settings. Providers ignore
// settings they do not support.
type CallOptions struct {
	// Model overrides the configured model name.
	Model string
	// MaxTokens caps the generated output.
	MaxTokens int
	// Temperature is the sampling temperature, between 0 and 1.
	Temperature float64
	// StopWords stop generation when emitted.
	StopWords []string
	// TopP is the cumulative probability for top-p sampling.
	TopP float64
	// Seed requests deterministic sampling where supported.
	Seed int

	// Tools are the function definitions offered to the model.
	Tools []Tool
	// ToolChoice is "none", "auto" (the default), or a ToolChoice value
	// naming a specific function.
	ToolChoice any
}

// Tool is a function definition offered to the model.
type Tool struct {
	// Type of the tool, typically "function".
	Type string `json:"type"`
	// Function describes the callable.
	Function *FunctionDefinition `json:"function,omitempty"`
}

// FunctionDefinition describes a callable function to the model.
type FunctionDefinition struct {
	// Name of the function.
	Name string `json:"name"`
	// Description tells the model when to call it.
	Description string `json:"description"`
	// Parameters is the JSON schema of the function input.
	Parameters *jsonschema.Schema `json:"parameters,omitempty"`
}

// ToolChoice forces the model to call a specific tool.
type ToolChoice struct {
	// Type of the tool, typically "function".
	Type string `json:"type"`
	// Function names the function to call.
	Function *FunctionReference `json:"function,omitempty"`
}

// FunctionReference names a function.
type FunctionReference struct {
	Name string `json:"name"`
}

// WithModel overrides the model name for the call.
func WithModel(model string) CallOption {
	return func(o *CallOptions) {
		o.Model = model
	}
}

// WithMaxTokens caps the number of generated tokens.
func WithMaxTokens(maxTokens int) CallOption {
	return func(o *CallOptions) {
		o.MaxTokens = maxTokens
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temperature float64) CallOption {
	return func(o *CallOptions) {
		o.Temperature = temperature
	}
}

// WithStopWords sets the words that stop generation.
func WithStopWords(stopWords []string) CallOption {
	return func(o *CallOptions) {
		o.StopWords = stopWords
	}
}

// WithTopP enables top-p sampling.
func WithTopP(topP float64) CallOption {
	return func(o *CallOptions) {
		o.TopP = topP
	}
}

// WithSeed requests deterministic sampling.
func WithSeed(seed int) CallOption {
	return func(o *CallOptions) {
		o.Seed = seed
	}
}

// WithTools offers the given function definitions to the model.
func WithTools(tools []Tool) CallOption {
	return func(o *CallOptions) {
		o.Tools = tools
	}
}

// WithToolChoice constrains which tool the model may call.
func WithToolChoice(choice any) CallOption {
	return func(o *CallOptions) {
		o.ToolChoice = choice
	}
}
