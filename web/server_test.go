package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/effective-security/tempoagent/assistants"
	"github.com/effective-security/tempoagent/chatmodel"
	"github.com/effective-security/tempoagent/pkg/llms"
	"github.com/effective-security/tempoagent/pkg/prompts"
	"github.com/effective-security/tempoagent/store"
	"github.com/effective-security/tempoagent/web"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAssistant replays a canned reply and records the chat ID it saw.
type fakeAssistant struct {
	reply      string
	err        error
	lastChatID string
}

func (a *fakeAssistant) Name() string        { return "Fake Assistant" }
func (a *fakeAssistant) Description() string { return "test double" }

func (a *fakeAssistant) FormatPrompt(values map[string]any) (prompts.PromptValue, error) {
	return prompts.StringPromptValue(""), nil
}

func (a *fakeAssistant) GetPromptInputVariables() []string { return nil }

func (a *fakeAssistant) Call(ctx context.Context, input string, options ...assistants.Option) (*llms.ContentResponse, error) {
	a.lastChatID = chatmodel.GetChatID(ctx)
	if a.err != nil {
		return nil, a.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: a.reply}},
	}, nil
}

var _ assistants.IAssistant = (*fakeAssistant)(nil)

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	js, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(js))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func Test_Chat(t *testing.T) {
	fake := &fakeAssistant{reply: "Logged 2h to PROJ-123."}
	srv := web.NewServer(fake, store.NewMemoryStore())

	w := postJSON(t, srv.Router, "/api/chat", web.ChatRequest{Message: "log 2 hours to PROJ-123"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp web.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Logged 2h to PROJ-123.", resp.Reply)
	// a chat ID is minted when the request has none
	assert.NotEmpty(t, resp.ChatID)
	assert.Equal(t, resp.ChatID, fake.lastChatID)

	// a provided chat ID is kept
	w = postJSON(t, srv.Router, "/api/chat", web.ChatRequest{ChatID: "chat42", Message: "hi"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "chat42", resp.ChatID)
}

func Test_Chat_BadRequest(t *testing.T) {
	srv := web.NewServer(&fakeAssistant{}, store.NewMemoryStore())

	w := postJSON(t, srv.Router, "/api/chat", web.ChatRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_Chat_AssistantError(t *testing.T) {
	fake := &fakeAssistant{err: errors.New("LLM unavailable")}
	srv := web.NewServer(fake, store.NewMemoryStore())

	w := postJSON(t, srv.Router, "/api/chat", web.ChatRequest{Message: "hello"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "LLM unavailable")
}

func Test_ResetChat(t *testing.T) {
	history := store.NewMemoryStore()
	srv := web.NewServer(&fakeAssistant{reply: "ok"}, history)

	ctx := chatmodel.WithChatContext(context.Background(), chatmodel.NewChatContext("chat1", nil))
	require.NoError(t, history.Add(ctx, llms.MessageFromTextParts(llms.RoleHuman, "hello")))

	w := postJSON(t, srv.Router, "/api/chat/reset", web.ChatRequest{ChatID: "chat1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, history.Messages(ctx))

	w = postJSON(t, srv.Router, "/api/chat/reset", web.ChatRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func Test_HealthCheck(t *testing.T) {
	srv := web.NewServer(&fakeAssistant{}, store.NewMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func Test_Index(t *testing.T) {
	srv := web.NewServer(&fakeAssistant{}, store.NewMemoryStore())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	srv.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
}
