// Package web serves the chat UI and the JSON API over the assistant.
package web

import (
	_ "embed"
	"encoding/json"
	"net/http"
	"time"

	"github.com/effective-security/tempoagent/assistants"
	"github.com/effective-security/tempoagent/chatmodel"
	"github.com/effective-security/tempoagent/pkg/metricskey"
	"github.com/effective-security/tempoagent/store"
	"github.com/effective-security/xlog"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/tempoagent", "web")

//go:embed index.html
var indexHTML []byte

const requestTimeout = 2 * time.Minute

// ChatRequest is the POST /api/chat body.
type ChatRequest struct {
	ChatID  string `json:"chat_id,omitempty"`
	Message string `json:"message"`
}

// ChatResponse is the POST /api/chat reply.
type ChatResponse struct {
	ChatID string `json:"chat_id"`
	Reply  string `json:"reply"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server handles HTTP requests.
type Server struct {
	Router *chi.Mux

	assistant assistants.IAssistant
	history   store.MessageStore
}

// NewServer creates the web server over the assistant.
// The store is used to reset conversations; the assistant persists to it.
func NewServer(assistant assistants.IAssistant, history store.MessageStore) *Server {
	s := &Server{
		assistant: assistant,
		history:   history,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/", s.index)
	r.Get("/healthz", s.healthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.chat)
		r.Post("/chat/reset", s.resetChat)
	})

	s.Router = r
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"service":   "tempoagent",
	})
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message is required"})
		return
	}

	// A new chat ID is minted when the browser session has none,
	// so a session keeps its history across requests.
	chatCtx := chatmodel.NewChatContext(req.ChatID, nil)
	ctx := chatmodel.WithChatContext(r.Context(), chatCtx)

	started := time.Now()
	resp, err := s.assistant.Call(ctx, req.Message)
	metricskey.PerfChatRun.MeasureSince(started, s.assistant.Name())

	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR,
			"reason", "assistant_call",
			"chat_id", chatCtx.GetChatID(),
			"err", err.Error(),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	reply := ""
	if len(resp.Choices) > 0 {
		reply = resp.Choices[0].Content
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		ChatID: chatCtx.GetChatID(),
		Reply:  reply,
	})
}

func (s *Server) resetChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChatID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "chat_id is required"})
		return
	}

	ctx := chatmodel.WithChatContext(r.Context(), chatmodel.NewChatContext(req.ChatID, nil))
	if err := s.history.Reset(ctx); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "chat_id": req.ChatID})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
