package assistants

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/tempoagent/chatmodel"
	"github.com/effective-security/tempoagent/pkg/llms"
	"github.com/effective-security/tempoagent/pkg/llmutils"
	"github.com/effective-security/tempoagent/pkg/metricskey"
	"github.com/effective-security/tempoagent/pkg/prompts"
	"github.com/effective-security/tempoagent/pkg/schema"
	"github.com/effective-security/tempoagent/tools"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/invopop/jsonschema"
)

// Assistant drives a tool calling conversation with a language model. It
// assembles the message history, invokes the model, executes any requested
// tools, and loops until the model produces a plain text answer.
type Assistant struct {
	LLM llms.Model

	toolsByName map[string]tools.ITool
	toolsNames  []string
	tools       []tools.ITool
	llmToolDefs []llms.Tool

	cfg         *Config
	name        string
	description string
	sysprompt   prompts.FormatPrompter
	runMessages []llms.Message
}

var _ IAssistant = (*Assistant)(nil)

// NewAssistant returns an Assistant with the given model and system prompt.
func NewAssistant(llmModel llms.Model, sysprompt prompts.FormatPrompter, options ...Option) *Assistant {
	return &Assistant{
		cfg:         NewConfig(options...),
		LLM:         llmModel,
		sysprompt:   sysprompt,
		name:        "Generic Assistant",
		description: "An AI assistant that can perform various tasks.",
	}
}

// WithName sets the assistant name used in logs, metrics and tool descriptions.
func (a *Assistant) WithName(name string) *Assistant {
	a.name = name
	return a
}

// WithDescription sets the description exposed to other assistants.
func (a *Assistant) WithDescription(description string) *Assistant {
	a.description = description
	return a
}

// Name returns the assistant name.
func (a *Assistant) Name() string {
	return a.name
}

// Description returns the assistant description.
func (a *Assistant) Description() string {
	return a.description
}

func (a *Assistant) GetCallback() Callback {
	return a.cfg.CallbackHandler
}

func (a *Assistant) GetCallConfig(opts ...Option) *Config {
	return a.cfg.Apply(opts...)
}

func (a *Assistant) GetTools() []tools.ITool {
	return a.tools
}

// WithTools registers tools with the assistant. Tools already registered
// under the same name are kept, duplicates are ignored.
func (a *Assistant) WithTools(list ...tools.ITool) *Assistant {
	if a.toolsByName == nil {
		a.toolsByName = make(map[string]tools.ITool)
	}
	for _, tool := range list {
		name := tool.Name()
		// keys are lowercased so lookups are case insensitive
		key := strings.ToLower(name)
		if a.toolsByName[key] != nil {
			continue
		}
		a.toolsByName[key] = tool
		a.toolsNames = append(a.toolsNames, name)
		a.tools = append(a.tools, tool)

		params, ok := tool.Parameters().(*jsonschema.Schema)
		if !ok {
			var err error
			params, err = schema.FromAny(tool.Parameters())
			if err != nil {
				logger.KV(xlog.ERROR,
					"status", "failed_to_reflect_tool_parameters",
					"tool", name,
					"err", err.Error(),
				)
				continue
			}
		}
		a.llmToolDefs = append(a.llmToolDefs, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        name,
				Description: tool.Description(),
				Parameters:  params,
			},
		})
	}

	return a
}

// LastRunMessages returns the messages produced by the most recent Call,
// including tool calls and tool responses.
func (a *Assistant) LastRunMessages() []llms.Message {
	return a.runMessages
}

func (a *Assistant) FormatPrompt(promptInputs map[string]any) (prompts.PromptValue, error) {
	return a.sysprompt.FormatPrompt(llmutils.MergeInputs(a.cfg.PromptInput, promptInputs))
}

func (a *Assistant) GetPromptInputVariables() []string {
	return a.sysprompt.GetInputVariables()
}

// GetSystemPrompt renders the system prompt with the given inputs.
func (a *Assistant) GetSystemPrompt(promptInputs map[string]any) (string, error) {
	promptValue, err := a.FormatPrompt(promptInputs)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(promptValue.String(), "\n"), nil
}

// Call runs the conversation loop for a single user input.
func (a *Assistant) Call(ctx context.Context, input string, options ...Option) (*llms.ContentResponse, error) {
	started := time.Now()
	defer metricskey.PerfAssistantCall.MeasureSince(started, a.name)

	a.runMessages = nil
	cfg := a.GetCallConfig(options...)

	callback := cfg.CallbackHandler
	if callback != nil {
		callback.OnAssistantStart(ctx, a, input)
	}

	resp, history, err := a.run(ctx, cfg, input)
	if err != nil {
		metricskey.StatsAssistantCallsFailed.IncrCounter(1, a.name)
		if callback != nil {
			callback.OnAssistantError(ctx, a, input, err, history)
		}
		return nil, err
	}
	metricskey.StatsAssistantCallsSucceeded.IncrCounter(1, a.name)
	if callback != nil {
		callback.OnAssistantEnd(ctx, a, input, resp, history)
	}
	return resp, nil
}

func (a *Assistant) run(ctx context.Context, cfg *Config, input string) (*llms.ContentResponse, []llms.Message, error) {
	chatID := chatmodel.GetChatID(ctx)

	systemPrompt, err := a.GetSystemPrompt(nil)
	if err != nil {
		return nil, nil, errors.WithMessage(err, "failed to format system prompt")
	}

	history := []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, systemPrompt),
	}
	for _, example := range cfg.Examples {
		history = append(history,
			llms.MessageFromTextParts(llms.RoleHuman, example.Prompt),
			llms.MessageFromTextParts(llms.RoleAI, example.Completion))
	}
	if cfg.Store != nil {
		prev := cfg.Store.Messages(ctx)
		logger.ContextKV(ctx, xlog.DEBUG,
			"assistant", a.name,
			"chat_id", chatID,
			"message_history", len(prev))
		history = append(history, prev...)
	}

	if input != "" {
		userMessage := llms.MessageFromTextParts(llms.RoleHuman, input)
		a.runMessages = append(a.runMessages, userMessage)
		history = append(history, userMessage)
	}

	var extraOptions []llms.CallOption
	if len(a.llmToolDefs) > 0 {
		if !a.LLM.GetProviderType().Supports(llms.CapabilityFunctionCalling) {
			return nil, history, errors.Newf("assistant %s: the LLM does not support function calling", a.name)
		}
		extraOptions = append(extraOptions, llms.WithTools(a.llmToolDefs))
	}
	callOpts := cfg.GetCallOptions(extraOptions...)

	assistantName := a.name
	modelName := a.LLM.GetName()

	var resp *llms.ContentResponse
	totalExecuted := 0
	emptyRetries := 0
	consecutiveNotFound := 0

	bytesLimit := uint64(values.NumbersCoalesce(cfg.MaxLength, DefaultMaxContentSize))
	toolsLimit := values.NumbersCoalesce(cfg.MaxToolCalls, DefaultMaxToolCalls)
	for {
		if len(history) >= cfg.MaxMessages {
			return nil, history, errors.Newf("assistant %s: the messages count exceeded limit", assistantName)
		}
		bytesSent := llmutils.CountMessagesContentSize(history)
		if bytesSent > bytesLimit {
			return nil, history, errors.Newf("assistant %s: the content size exceeded limit", assistantName)
		}

		if cfg.CallbackHandler != nil {
			cfg.CallbackHandler.OnAssistantLLMCallStart(ctx, a, a.LLM, history)
		}

		metricskey.StatsLLMMessagesSent.IncrCounter(float64(len(history)), assistantName, modelName)
		metricskey.StatsLLMBytesSent.IncrCounter(float64(bytesSent), assistantName, modelName)

		resp, err = a.LLM.GenerateContent(ctx, history, callOpts...)
		if err != nil {
			return nil, history, errors.Wrapf(err, "failed to generate content from LLM")
		}

		if cfg.CallbackHandler != nil {
			cfg.CallbackHandler.OnAssistantLLMCallEnd(ctx, a, a.LLM, resp)
		}

		metricskey.StatsLLMBytesReceived.IncrCounter(float64(llmutils.CountResponseContentSize(resp)), assistantName, modelName)
		tokensIn, tokensOut, _ := llmutils.CountTokens(resp)
		metricskey.StatsLLMInputTokens.IncrCounter(float64(tokensIn), assistantName, modelName)
		metricskey.StatsLLMOutputTokens.IncrCounter(float64(tokensOut), assistantName, modelName)

		if len(resp.Choices) == 0 {
			emptyRetries++
			if emptyRetries >= DefaultMaxRetries {
				logger.ContextKV(ctx, xlog.ERROR,
					"assistant", assistantName,
					"status", "max_retries_exceeded",
					"input", slices.StringUpto(input, 64),
					"retry_count", emptyRetries,
				)
				return nil, history, errors.Newf("assistant %s: LLM returned empty response after %d retries", assistantName, emptyRetries)
			}
			logger.ContextKV(ctx, xlog.WARNING,
				"assistant", assistantName,
				"status", "retrying_empty_response",
				"retry_count", emptyRetries,
			)
			continue
		}

		executed, notFound, newHistory, err := a.executeToolCalls(ctx, cfg, history, resp)
		history = newHistory
		if err != nil {
			return nil, history, err
		}
		if executed == 0 {
			break
		}

		totalExecuted += executed
		consecutiveNotFound += notFound
		if consecutiveNotFound > 3 {
			return nil, history, errors.Newf("assistant %s: the number of not found tools is exceeded", assistantName)
		}
		if notFound == 0 {
			consecutiveNotFound = 0
		}
		if totalExecuted >= toolsLimit {
			return nil, history, errors.Newf("assistant %s: the tool calls limit is exceeded", assistantName)
		}
	}

	result := resp.Choices[0].Content
	if len(resp.Choices) > 1 {
		parts := make([]string, len(resp.Choices))
		for i, choice := range resp.Choices {
			parts[i] = choice.Content
		}
		result = strings.Join(parts, "\n\n")
	}

	a.runMessages = append(a.runMessages, llms.MessageFromTextParts(llms.RoleAI, result))

	if cfg.Store != nil && !cfg.SkipMessageHistory {
		for _, msg := range a.runMessages {
			if err := cfg.Store.Add(ctx, msg); err != nil {
				logger.ContextKV(ctx, xlog.ERROR,
					"assistant", assistantName,
					"reason", "store_add",
					"err", err.Error(),
				)
				break
			}
		}

		logger.ContextKV(ctx, xlog.DEBUG,
			"assistant", assistantName,
			"chat_id", chatID,
			"status", "added_message_history",
			"message_history", len(a.runMessages),
			"human", slices.StringUpto(input, 64),
			"ai", slices.StringUpto(result, 64),
		)
	}

	return resp, history, nil
}

// toolCallOutcome is the result of one tool invocation, tagged with the
// position of the originating call so responses keep the request order.
type toolCallOutcome struct {
	call     llms.ToolCall
	response string
	err      error
	notFound bool
}

// executeToolCalls runs every tool call in the response concurrently and
// appends the tool responses to the history in the original call order.
// It returns the number of calls executed and how many named unknown tools.
func (a *Assistant) executeToolCalls(ctx context.Context, cfg *Config, history []llms.Message, resp *llms.ContentResponse) (int, int, []llms.Message, error) {
	var calls []llms.ToolCall

	for _, choice := range resp.Choices {
		var choiceCalls []llms.ToolCall
		for i, call := range choice.ToolCalls {
			if call.ID == "" {
				call.ID = fmt.Sprintf("%s_%d", call.FunctionCall.Name, i)
			}
			call.Type = values.StringsCoalesce(call.Type, "function")
			choiceCalls = append(choiceCalls, call)

			logger.ContextKV(ctx, xlog.DEBUG,
				"assistant", a.name,
				"status", "tool_call_found",
				"tool_call_id", call.ID,
				"tool_call_name", call.FunctionCall.Name,
			)
		}
		if len(choiceCalls) == 0 {
			continue
		}

		calls = append(calls, choiceCalls...)
		assistantResponse := llms.MessageFromToolCalls(llms.RoleAI, choiceCalls...)
		history = append(history, assistantResponse)
		if !cfg.SkipMessageHistory {
			a.runMessages = append(a.runMessages, assistantResponse)
		}
	}

	if len(calls) == 0 {
		return 0, 0, history, nil
	}

	outcomes := make([]toolCallOutcome, len(calls))
	var wg sync.WaitGroup
	wg.Add(len(calls))
	for i, call := range calls {
		go func(idx int, tc llms.ToolCall) {
			defer wg.Done()
			outcomes[idx] = a.invokeTool(ctx, cfg, tc)
		}(i, call)
	}
	wg.Wait()

	notFoundCount := 0
	for _, outcome := range outcomes {
		if outcome.notFound {
			notFoundCount++
		}

		content := outcome.response
		if outcome.err != nil {
			// errors are reported back to the model, not the caller
			content = fmt.Sprintf("Tool call failed: %s", outcome.err.Error())
			logger.ContextKV(ctx, xlog.WARNING,
				"assistant", a.name,
				"status", "tool_call_failed",
				"tool", outcome.call.FunctionCall.Name,
				"err", outcome.err.Error(),
			)
		}

		toolResponse := llms.MessageFromToolResponse(llms.RoleTool, llms.ToolCallResponse{
			ToolCallID: outcome.call.ID,
			Name:       outcome.call.FunctionCall.Name,
			Content:    content,
		})
		history = append(history, toolResponse)
		if !cfg.SkipMessageHistory {
			a.runMessages = append(a.runMessages, toolResponse)
		}
	}

	return len(calls), notFoundCount, history, nil
}

// invokeTool runs a single tool call and shapes the result for the model.
// Unknown tool names and unmarshal failures produce corrective hints rather
// than errors, so the model can retry.
func (a *Assistant) invokeTool(ctx context.Context, cfg *Config, tc llms.ToolCall) toolCallOutcome {
	toolName := tc.FunctionCall.Name
	toolArgs := tc.FunctionCall.Arguments

	tool := a.toolsByName[strings.ToLower(toolName)]
	if tool == nil {
		metricskey.StatsToolCallsNotFound.IncrCounter(1, toolName)
		if cfg.CallbackHandler != nil {
			cfg.CallbackHandler.OnToolNotFound(ctx, a, toolName)
		}

		available := strings.Join(a.toolsNames, ", ")
		logger.ContextKV(ctx, xlog.WARNING,
			"assistant", a.name,
			"status", "tool_not_found",
			"tool_name", toolName,
			"available_tools", available,
		)
		return toolCallOutcome{
			call:     tc,
			notFound: true,
			response: fmt.Sprintf("Tool `%s` not found. Please check the tool name and try again with exact match. Available tools: %s", toolName, available),
		}
	}

	if cfg.CallbackHandler != nil {
		cfg.CallbackHandler.OnToolStart(ctx, tool, toolArgs)
	}

	started := time.Now()
	res, err := tool.Call(ctx, toolArgs)
	metricskey.PerfToolCall.MeasureSince(started, toolName)

	if err != nil {
		metricskey.StatsToolCallsFailed.IncrCounter(1, toolName)
		if cfg.CallbackHandler != nil {
			cfg.CallbackHandler.OnToolError(ctx, tool, toolArgs, err)
		}

		if !errors.Is(err, chatmodel.ErrFailedUnmarshalInput) {
			return toolCallOutcome{
				call: tc,
				err:  errors.WithMessagef(err, "failed to call tool %s", toolName),
			}
		}
		res = "Failed to unmarshal input, check the JSON schema and try again."
	} else {
		metricskey.StatsToolCallsSucceeded.IncrCounter(1, toolName)
	}

	if cfg.CallbackHandler != nil {
		cfg.CallbackHandler.OnToolEnd(ctx, tool, toolArgs, res)
	}
	return toolCallOutcome{call: tc, response: res}
}
