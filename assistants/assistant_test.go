package assistants_test

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"

	"github.com/effective-security/tempoagent/assistants"
	"github.com/effective-security/tempoagent/chatmodel"
	"github.com/effective-security/tempoagent/mocks/mockllms"
	"github.com/effective-security/tempoagent/pkg/llms"
	"github.com/effective-security/tempoagent/pkg/prompts"
	"github.com/effective-security/tempoagent/store"
	"github.com/effective-security/tempoagent/tools"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"
)

type echoRequest struct {
	Text string `json:"text" jsonschema:"title=text,description=Text to echo back."`
}

// echoTool is a trivial tool for exercising the call loop.
type echoTool struct {
	calls   int32
	failErr error
}

func (t *echoTool) Name() string { return "echo" }

func (t *echoTool) Description() string { return "Echoes the input back." }

func (t *echoTool) Parameters() any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{"type": "string"},
		},
	}
}

func (t *echoTool) Call(_ context.Context, input string) (string, error) {
	atomic.AddInt32(&t.calls, 1)
	if t.failErr != nil {
		return "", t.failErr
	}
	var req echoRequest
	if err := json.Unmarshal([]byte(input), &req); err != nil {
		return "", errors.WithMessage(chatmodel.ErrFailedUnmarshalInput, err.Error())
	}
	return "echo: " + req.Text, nil
}

var _ tools.ITool = (*echoTool)(nil)

func textResponse(text string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: text}},
	}
}

func toolCallResponse(id, name, args string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{
			ToolCalls: []llms.ToolCall{{
				ID:   id,
				Type: "function",
				FunctionCall: &llms.FunctionCall{
					Name:      name,
					Arguments: args,
				},
			}},
		}},
	}
}

func newTestAssistant(t *testing.T, model llms.Model, tool tools.ITool, options ...assistants.Option) *assistants.Assistant {
	t.Helper()
	sysprompt := prompts.NewPromptTemplate("You are a test assistant.", nil)
	ag := assistants.NewAssistant(model, sysprompt, options...).
		WithName("Test Assistant")
	if tool != nil {
		ag = ag.WithTools(tool)
	}
	return ag
}

func Test_Assistant_ToolCallLoop(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	model := mockllms.NewMockModel(ctrl)
	model.EXPECT().GetProviderType().Return(llms.ProviderOpenAI).AnyTimes()
	model.EXPECT().GetName().Return("gpt-test").AnyTimes()

	gomock.InOrder(
		model.EXPECT().
			GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(toolCallResponse("call_1", "echo", `{"text":"hi"}`), nil),
		model.EXPECT().
			GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, messages []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
				// system + user + tool call + tool response
				require.Len(t, messages, 4)
				assert.Equal(t, llms.RoleTool, messages[3].Role)
				assert.Contains(t, messages[3].GetContent(), "echo: hi")
				return textResponse("done"), nil
			}),
	)

	tool := &echoTool{}
	ag := newTestAssistant(t, model, tool)

	resp, err := ag.Call(context.Background(), "say hi")
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "done", resp.Choices[0].Content)
	assert.Equal(t, int32(1), atomic.LoadInt32(&tool.calls))

	// user input, tool call, tool response, final answer
	run := ag.LastRunMessages()
	require.Len(t, run, 4)
	assert.Equal(t, llms.RoleHuman, run[0].Role)
	assert.Equal(t, llms.RoleAI, run[1].Role)
	assert.Equal(t, llms.RoleTool, run[2].Role)
	assert.Equal(t, llms.RoleAI, run[3].Role)
	assert.Equal(t, "done", run[3].GetContent())
}

func Test_Assistant_StoresHistory(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	model := mockllms.NewMockModel(ctrl)
	model.EXPECT().GetProviderType().Return(llms.ProviderOpenAI).AnyTimes()
	model.EXPECT().GetName().Return("gpt-test").AnyTimes()
	model.EXPECT().
		GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(textResponse("hello"), nil)

	history := store.NewMemoryStore()
	ag := newTestAssistant(t, model, &echoTool{}, assistants.WithStore(history))

	ctx := chatmodel.WithChatContext(context.Background(), chatmodel.NewChatContext("chat1", nil))
	_, err := ag.Call(ctx, "hi there")
	require.NoError(t, err)

	msgs := history.Messages(ctx)
	require.Len(t, msgs, 2)
	assert.Equal(t, llms.RoleHuman, msgs[0].Role)
	assert.Equal(t, "hi there", msgs[0].GetContent())
	assert.Equal(t, llms.RoleAI, msgs[1].Role)

	// a second call sees the stored history
	model.EXPECT().
		GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, messages []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
			// system + 2 stored + new user input
			require.Len(t, messages, 4)
			return textResponse("again"), nil
		})
	_, err = ag.Call(ctx, "and again")
	require.NoError(t, err)
}

func Test_Assistant_ToolNotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	model := mockllms.NewMockModel(ctrl)
	model.EXPECT().GetProviderType().Return(llms.ProviderOpenAI).AnyTimes()
	model.EXPECT().GetName().Return("gpt-test").AnyTimes()
	// the model keeps asking for a tool that does not exist
	model.EXPECT().
		GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(toolCallResponse("call_1", "missing", `{}`), nil).
		Times(4)

	ag := newTestAssistant(t, model, &echoTool{})

	_, err := ag.Call(context.Background(), "do something")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found tools is exceeded")
}

func Test_Assistant_ToolCallsLimit(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	model := mockllms.NewMockModel(ctrl)
	model.EXPECT().GetProviderType().Return(llms.ProviderOpenAI).AnyTimes()
	model.EXPECT().GetName().Return("gpt-test").AnyTimes()
	model.EXPECT().
		GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(toolCallResponse("call_1", "echo", `{"text":"x"}`), nil)

	ag := newTestAssistant(t, model, &echoTool{}, assistants.WithMaxToolCalls(1))

	_, err := ag.Call(context.Background(), "loop forever")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tool calls limit is exceeded")
}

func Test_Assistant_EmptyResponseRetries(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	model := mockllms.NewMockModel(ctrl)
	model.EXPECT().GetProviderType().Return(llms.ProviderOpenAI).AnyTimes()
	model.EXPECT().GetName().Return("gpt-test").AnyTimes()
	model.EXPECT().
		GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&llms.ContentResponse{}, nil).
		Times(assistants.DefaultMaxRetries)

	ag := newTestAssistant(t, model, &echoTool{})

	_, err := ag.Call(context.Background(), "hello?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty response")
}

func Test_Assistant_ToolError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	model := mockllms.NewMockModel(ctrl)
	model.EXPECT().GetProviderType().Return(llms.ProviderOpenAI).AnyTimes()
	model.EXPECT().GetName().Return("gpt-test").AnyTimes()

	gomock.InOrder(
		model.EXPECT().
			GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(toolCallResponse("call_1", "echo", `{"text":"x"}`), nil),
		model.EXPECT().
			GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, messages []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
				last := messages[len(messages)-1]
				assert.Equal(t, llms.RoleTool, last.Role)
				assert.Contains(t, last.GetContent(), "Tool call failed")
				return textResponse("recovered"), nil
			}),
	)

	tool := &echoTool{failErr: errors.New("backend unavailable")}
	ag := newTestAssistant(t, model, tool)

	resp, err := ag.Call(context.Background(), "try it")
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Choices[0].Content)
}

func Test_Assistant_BadToolInputRetryHint(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	model := mockllms.NewMockModel(ctrl)
	model.EXPECT().GetProviderType().Return(llms.ProviderOpenAI).AnyTimes()
	model.EXPECT().GetName().Return("gpt-test").AnyTimes()

	gomock.InOrder(
		model.EXPECT().
			GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(toolCallResponse("call_1", "echo", `not json`), nil),
		model.EXPECT().
			GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, messages []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
				last := messages[len(messages)-1]
				assert.Contains(t, last.GetContent(), "Failed to unmarshal input")
				return textResponse("fixed"), nil
			}),
	)

	ag := newTestAssistant(t, model, &echoTool{})

	resp, err := ag.Call(context.Background(), "echo it")
	require.NoError(t, err)
	assert.Equal(t, "fixed", resp.Choices[0].Content)
}

func Test_Assistant_FunctionCallingUnsupported(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	model := mockllms.NewMockModel(ctrl)
	model.EXPECT().GetProviderType().Return(llms.ProviderType("UNKNOWN")).AnyTimes()
	model.EXPECT().GetName().Return("unknown").AnyTimes()

	ag := newTestAssistant(t, model, &echoTool{})

	_, err := ag.Call(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not support function calling")
}

func Test_Assistant_Metadata(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	model := mockllms.NewMockModel(ctrl)
	ag := newTestAssistant(t, model, &echoTool{}).
		WithDescription("Handles test chats.")

	assert.Equal(t, "Test Assistant", ag.Name())
	assert.Equal(t, "Handles test chats.", ag.Description())
	require.Len(t, ag.GetTools(), 1)

	// adding a tool with the same name is a no-op
	ag.WithTools(&echoTool{})
	require.Len(t, ag.GetTools(), 1)

	prompt, err := ag.GetSystemPrompt(nil)
	require.NoError(t, err)
	assert.Equal(t, "You are a test assistant.", prompt)

	assert.Contains(t, assistants.GetDescriptions(ag), "Test Assistant")
}
