package agent_test

import (
	"context"
	"testing"

	"github.com/effective-security/tempoagent/agent"
	"github.com/effective-security/tempoagent/jira"
	"github.com/effective-security/tempoagent/mocks/mockllms"
	"github.com/effective-security/tempoagent/pkg/llms"
	"github.com/effective-security/tempoagent/tempo"
	"github.com/effective-security/tempoagent/tools/worklog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomock "go.uber.org/mock/gomock"
)

func newProvider(t *testing.T) *worklog.Provider {
	t.Helper()
	jiraClient, err := jira.NewClient(jira.Config{
		Domain:          "example.atlassian.net",
		Email:           "dev@example.com",
		APIToken:        "jira-token",
		Project:         "PROJ",
		DefaultIssueKey: "PROJ-1",
	})
	require.NoError(t, err)

	tempoClient, err := tempo.NewClient(tempo.Config{APIToken: "tempo-token"})
	require.NoError(t, err)

	return worklog.NewProvider(jiraClient, tempoClient)
}

func Test_NewAssistant(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	model := mockllms.NewMockModel(ctrl)
	ag := agent.NewAssistant(model, newProvider(t))

	assert.Equal(t, agent.AssistantName, ag.Name())
	assert.Len(t, ag.GetTools(), 3)

	prompt, err := ag.GetSystemPrompt(nil)
	require.NoError(t, err)
	assert.Contains(t, prompt, "time-tracking assistant")
	assert.Contains(t, prompt, "'PROJ-1'")
}

func Test_NewAssistant_ToolRoundTrip(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	model := mockllms.NewMockModel(ctrl)
	model.EXPECT().GetProviderType().Return(llms.ProviderOpenAI).AnyTimes()
	model.EXPECT().GetName().Return("gpt-test").AnyTimes()
	model.EXPECT().
		GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, messages []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
			require.NotEmpty(t, messages)
			assert.Equal(t, llms.RoleSystem, messages[0].Role)
			return &llms.ContentResponse{
				Choices: []*llms.ContentChoice{{Content: "Nothing to log."}},
			}, nil
		})

	ag := agent.NewAssistant(model, newProvider(t))
	resp, err := ag.Call(context.Background(), "what can you do?")
	require.NoError(t, err)
	assert.Equal(t, "Nothing to log.", resp.Choices[0].Content)
}
