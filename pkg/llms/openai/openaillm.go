package openai

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	sdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/effective-security/tempoagent/pkg/llms"
	"github.com/effective-security/tempoagent/pkg/schema"
)

var (
	ErrEmptyResponse = errors.New("openai: no response")
	ErrMissingToken  = errors.New("openai: missing API key, set it in the OPENAI_API_KEY environment variable")
)

// LLM is an OpenAI chat model backed by the official SDK.
type LLM struct {
	client  sdk.Client
	options *Options
}

var _ llms.Model = (*LLM)(nil)

// New returns a new OpenAI LLM.
func New(opts ...Option) (*LLM, error) {
	options := &Options{
		Token: os.Getenv(TokenEnvVarName),
	}
	for _, opt := range opts {
		opt(options)
	}

	if options.Token == "" {
		return nil, errors.WithStack(ErrMissingToken)
	}
	if options.Model == "" {
		return nil, errors.New("openai: model is required")
	}

	sdkOpts := []option.RequestOption{
		option.WithAPIKey(options.Token),
	}
	if options.BaseURL != "" {
		sdkOpts = append(sdkOpts, option.WithBaseURL(options.BaseURL))
	}
	if options.OrgID != "" {
		sdkOpts = append(sdkOpts, option.WithOrganization(options.OrgID))
	}
	if options.HTTPClient != nil {
		sdkOpts = append(sdkOpts, option.WithHTTPClient(options.HTTPClient))
	}

	return &LLM{
		client:  sdk.NewClient(sdkOpts...),
		options: options,
	}, nil
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	return o.options.Model
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	return llms.ProviderOpenAI
}

// GenerateContent implements the Model interface.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{
		Model: o.options.Model,
	}
	for _, opt := range options {
		opt(&opts)
	}

	chatMsgs, err := toChatMessages(messages)
	if err != nil {
		return nil, err
	}

	params := sdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(opts.Model),
		Messages: chatMsgs,
	}
	if opts.Temperature > 0 {
		params.Temperature = sdk.Float(opts.Temperature)
	}
	if opts.TopP > 0 {
		params.TopP = sdk.Float(opts.TopP)
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = sdk.Int(int64(opts.MaxTokens))
	}
	if opts.Seed > 0 {
		params.Seed = sdk.Int(int64(opts.Seed))
	}
	if len(opts.StopWords) > 0 {
		params.Stop = sdk.ChatCompletionNewParamsStopUnion{
			OfStringArray: opts.StopWords,
		}
	}

	tools, err := toTools(opts.Tools)
	if err != nil {
		return nil, err
	}
	if len(tools) > 0 {
		params.Tools = tools
	}
	switch tc := opts.ToolChoice.(type) {
	case nil:
	case string:
		if tc != "" {
			params.ToolChoice = sdk.ChatCompletionToolChoiceOptionUnionParam{
				OfAuto: sdk.String(tc),
			}
		}
	case llms.ToolChoice:
		if tc.Function != nil {
			params.ToolChoice = sdk.ChatCompletionToolChoiceOptionUnionParam{
				OfFunctionToolChoice: &sdk.ChatCompletionNamedToolChoiceParam{
					Function: sdk.ChatCompletionNamedToolChoiceFunctionParam{
						Name: tc.Function.Name,
					},
				},
			}
		}
	default:
		return nil, errors.Newf("openai: unsupported tool choice type %T", opts.ToolChoice)
	}

	result, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, "openai: failed to create chat completion")
	}
	if len(result.Choices) == 0 {
		return nil, errors.WithStack(ErrEmptyResponse)
	}

	choices := make([]*llms.ContentChoice, len(result.Choices))
	for i, c := range result.Choices {
		choices[i] = &llms.ContentChoice{
			Content:    c.Message.Content,
			StopReason: c.FinishReason,
			GenerationInfo: map[string]any{
				"InputTokens":  result.Usage.PromptTokens,
				"OutputTokens": result.Usage.CompletionTokens,
				"TotalTokens":  result.Usage.TotalTokens,
			},
		}
		for _, tc := range c.Message.ToolCalls {
			choices[i].ToolCalls = append(choices[i].ToolCalls, llms.ToolCall{
				ID:   tc.ID,
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				},
			})
		}
	}
	return &llms.ContentResponse{Choices: choices}, nil
}

// toChatMessages converts generic messages to the SDK message params,
// extracting tool calls from AI messages and tool responses from tool messages.
func toChatMessages(messages []llms.Message) ([]sdk.ChatCompletionMessageParamUnion, error) {
	chatMsgs := make([]sdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, mc := range messages {
		switch mc.Role {
		case llms.RoleSystem:
			chatMsgs = append(chatMsgs, sdk.SystemMessage(mc.GetContent()))
		case llms.RoleHuman:
			chatMsgs = append(chatMsgs, sdk.UserMessage(mc.GetContent()))
		case llms.RoleAI:
			var toolCalls []sdk.ChatCompletionMessageToolCallUnionParam
			var text string
			for _, part := range mc.Parts {
				switch p := part.(type) {
				case llms.TextContent:
					text += p.Text
				case llms.ToolCall:
					toolCalls = append(toolCalls, sdk.ChatCompletionMessageToolCallUnionParam{
						OfFunction: &sdk.ChatCompletionMessageFunctionToolCallParam{
							ID: p.ID,
							Function: sdk.ChatCompletionMessageFunctionToolCallFunctionParam{
								Name:      p.FunctionCall.Name,
								Arguments: p.FunctionCall.Arguments,
							},
						},
					})
				}
			}
			if len(toolCalls) > 0 {
				msg := sdk.ChatCompletionAssistantMessageParam{
					ToolCalls: toolCalls,
				}
				if text != "" {
					msg.Content.OfString = sdk.String(text)
				}
				chatMsgs = append(chatMsgs, sdk.ChatCompletionMessageParamUnion{OfAssistant: &msg})
			} else {
				chatMsgs = append(chatMsgs, sdk.AssistantMessage(text))
			}
		case llms.RoleTool:
			if len(mc.Parts) != 1 {
				return nil, errors.Newf("openai: expected exactly one part for role %v, got %v", mc.Role, len(mc.Parts))
			}
			resp, ok := mc.Parts[0].(llms.ToolCallResponse)
			if !ok {
				return nil, errors.Newf("openai: expected part of type ToolCallResponse for role %v, got %T", mc.Role, mc.Parts[0])
			}
			chatMsgs = append(chatMsgs, sdk.ToolMessage(resp.Content, resp.ToolCallID))
		default:
			return nil, errors.WithMessagef(llms.ErrUnexpectedRole, "openai: %v", mc.Role)
		}
	}
	return chatMsgs, nil
}

// toTools converts generic tool definitions to the SDK function tools.
func toTools(tools []llms.Tool) ([]sdk.ChatCompletionToolUnionParam, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	sdkTools := make([]sdk.ChatCompletionToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		if tool.Function == nil {
			return nil, errors.Newf("openai: tool type %q not supported", tool.Type)
		}
		params, err := schema.ToMap(tool.Function.Parameters)
		if err != nil {
			return nil, errors.Wrapf(err, "openai: invalid parameters schema for tool %s", tool.Function.Name)
		}
		sdkTools = append(sdkTools, sdk.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        tool.Function.Name,
			Description: sdk.String(tool.Function.Description),
			Parameters:  shared.FunctionParameters(params),
		}))
	}
	return sdkTools, nil
}
