package assistants

import (
	"github.com/effective-security/tempoagent/chatmodel"
	"github.com/effective-security/tempoagent/pkg/llms"
	"github.com/effective-security/tempoagent/store"
)

const (
	// DefaultMaxMessages caps the messages in a single run.
	DefaultMaxMessages = 100
	// DefaultMaxToolCalls caps the tool calls in a single run.
	DefaultMaxToolCalls = 25
	// DefaultMaxContentSize caps the bytes sent to the model per call.
	DefaultMaxContentSize = 256 * 1024
	// DefaultMaxRetries bounds retries when the model returns nothing.
	DefaultMaxRetries = 3
)

// Option mutates the assistant Config.
type Option func(*Config)

type Config struct {
	// Model overrides the model name per call.
	Model    string
	modelSet bool

	// MaxTokens caps the generated output.
	MaxTokens    int
	maxTokensSet bool

	// Temperature is the sampling temperature, between 0 and 1.
	Temperature    float64
	temperatureSet bool

	// StopWords stop generation when emitted.
	StopWords    []string
	stopWordsSet bool

	// TopP is the cumulative probability for top-p sampling.
	TopP    float64
	toppSet bool

	// Seed requests deterministic sampling.
	Seed    int
	seedSet bool

	// Tools are extra function definitions passed to the model.
	Tools    []llms.Tool
	toolsSet bool

	// ToolChoice is "none", "auto" (the default), or a specific tool.
	ToolChoice    any
	toolChoiceSet bool

	// The remaining settings configure the assistant itself rather than
	// the LLM call.

	// CallbackHandler receives run events.
	CallbackHandler Callback

	// Store persists the chat history. Nil disables persistence.
	Store store.MessageStore

	// MaxMessages limits the messages in a run.
	MaxMessages int
	// MaxToolCalls limits the tool calls in a run.
	MaxToolCalls int
	// MaxLength limits the bytes sent to the model.
	MaxLength int

	PromptInput        map[string]any
	Examples           []chatmodel.FewShotExample
	SkipMessageHistory bool
}

func NewConfig(opts ...Option) *Config {
	cfg := &Config{
		MaxMessages: DefaultMaxMessages,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Apply returns a copy of the config with the provided options applied.
func (c *Config) Apply(opts ...Option) *Config {
	cfg := *c
	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithExamples sets few-shot examples injected after the system prompt.
func WithExamples(examples []chatmodel.FewShotExample) Option {
	return func(o *Config) {
		o.Examples = examples
	}
}

// WithSkipMessageHistory keeps the run messages out of the stored history.
func WithSkipMessageHistory(skip bool) Option {
	return func(o *Config) {
		o.SkipMessageHistory = skip
	}
}

// WithPromptInput sets default variables for the system prompt template.
func WithPromptInput(input map[string]any) Option {
	return func(o *Config) {
		o.PromptInput = input
	}
}

// WithStore persists the chat history in the given store.
func WithStore(s store.MessageStore) Option {
	return func(o *Config) {
		o.Store = s
	}
}

// WithModel overrides the model name.
func WithModel(model string) Option {
	return func(o *Config) {
		o.Model = model
		o.modelSet = true
	}
}

// WithMaxTokens caps the generated output.
func WithMaxTokens(maxTokens int) Option {
	return func(o *Config) {
		o.MaxTokens = maxTokens
		o.maxTokensSet = true
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temperature float64) Option {
	return func(o *Config) {
		o.Temperature = temperature
		o.temperatureSet = true
	}
}

// WithTopP enables top-p sampling.
func WithTopP(topP float64) Option {
	return func(o *Config) {
		o.TopP = topP
		o.toppSet = true
	}
}

// WithSeed requests deterministic sampling.
func WithSeed(seed int) Option {
	return func(o *Config) {
		o.Seed = seed
		o.seedSet = true
	}
}

// WithStopWords sets the words that stop generation.
func WithStopWords(stopWords []string) Option {
	return func(o *Config) {
		o.StopWords = stopWords
		o.stopWordsSet = true
	}
}

// WithCallback installs a callback handler for run events.
func WithCallback(callbackHandler Callback) Option {
	return func(o *Config) {
		o.CallbackHandler = callbackHandler
	}
}

// WithMaxMessages limits the messages in a run.
func WithMaxMessages(maxMessages int) Option {
	return func(o *Config) {
		o.MaxMessages = maxMessages
	}
}

// WithMaxToolCalls limits the tool calls in a run.
func WithMaxToolCalls(maxToolCalls int) Option {
	return func(o *Config) {
		o.MaxToolCalls = maxToolCalls
	}
}

// WithMaxLength limits the bytes sent to the model.
func WithMaxLength(maxLength int) Option {
	return func(o *Config) {
		o.MaxLength = maxLength
	}
}

// WithTools passes extra function definitions to the model.
func WithTools(tools []llms.Tool) Option {
	return func(o *Config) {
		o.Tools = tools
		o.toolsSet = true
	}
}

// WithToolChoice constrains which tool the model may call.
func WithToolChoice(choice any) Option {
	return func(o *Config) {
		o.ToolChoice = choice
		o.toolChoiceSet = true
	}
}

// GetCallOptions translates the explicitly set fields into LLM call
// options, appending any extra options the caller provides.
func (c *Config) GetCallOptions(options ...llms.CallOption) []llms.CallOption {
	var callOptions []llms.CallOption
	if c.modelSet {
		callOptions = append(callOptions, llms.WithModel(c.Model))
	}
	if c.maxTokensSet {
		callOptions = append(callOptions, llms.WithMaxTokens(c.MaxTokens))
	}
	if c.temperatureSet {
		callOptions = append(callOptions, llms.WithTemperature(c.Temperature))
	}
	if c.stopWordsSet {
		callOptions = append(callOptions, llms.WithStopWords(c.StopWords))
	}
	if c.toppSet {
		callOptions = append(callOptions, llms.WithTopP(c.TopP))
	}
	if c.seedSet {
		callOptions = append(callOptions, llms.WithSeed(c.Seed))
	}
	if c.toolsSet {
		callOptions = append(callOptions, llms.WithTools(c.Tools))
	}
	if c.toolChoiceSet {
		callOptions = append(callOptions, llms.WithToolChoice(c.ToolChoice))
	}

	callOptions = append(callOptions, options...)

	return callOptions
}
