package llms

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrUnexpectedRole is returned when a message carries a role the backend
// does not handle.
var ErrUnexpectedRole = errors.New("unexpected role")

// Role identifies the author of a chat message.
type Role string

const (
	// RoleAI marks a message produced by the model.
	RoleAI Role = "ai"
	// RoleHuman marks a message from the user.
	RoleHuman Role = "human"
	// RoleSystem marks the system instructions.
	RoleSystem Role = "system"
	// RoleTool marks a tool execution result.
	RoleTool Role = "tool"
)

// Message is a single chat turn: a role plus one or more content parts.
// A plain user message has RoleHuman and a single TextContent part; a model
// turn that requests tools has RoleAI and one ToolCall part per request.
type Message struct {
	Role  Role          `json:"role"`
	Parts []ContentPart `json:"parts"`
}

// ContentPart is one piece of a message: text, a tool call, or a tool result.
type ContentPart interface {
	isPart()
}

// TextPart wraps a string in a TextContent part.
func TextPart(s string) TextContent {
	return TextContent{Text: s}
}

// TextContent is a plain text part.
type TextContent struct {
	Text string `json:"text"`
}

func (tc TextContent) String() string {
	return tc.Text
}

func (TextContent) isPart() {}

// FunctionCall names a function and carries its arguments as a JSON string.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	// ID correlates the call with its ToolCallResponse.
	ID string `json:"id"`
	// Type is typically "function".
	Type string `json:"type"`
	// FunctionCall holds the function name and arguments.
	FunctionCall *FunctionCall `json:"function,omitempty"`
}

func (tc ToolCall) String() string {
	return fmt.Sprintf("ToolCall: %s (%s), input: %s", tc.ID, tc.FunctionCall.Name, tc.FunctionCall.Arguments)
}

func (ToolCall) isPart() {}

// ToolCallResponse carries the output of an executed tool back to the model.
type ToolCallResponse struct {
	// ToolCallID is the ID of the originating ToolCall.
	ToolCallID string `json:"tool_call_id"`
	// Name is the tool that produced the response.
	Name string `json:"name"`
	// Content is the textual result.
	Content string `json:"content"`
}

func (tc ToolCallResponse) String() string {
	return fmt.Sprintf("ToolCallResponse: %s (%s), response size: %d", tc.ToolCallID, tc.Name, len(tc.Content))
}

func (ToolCallResponse) isPart() {}

// ContentResponse is what GenerateContent returns. Most providers return a
// single choice unless asked otherwise.
type ContentResponse struct {
	Choices []*ContentChoice
}

// ContentChoice is one candidate completion.
type ContentChoice struct {
	// Content is the generated text.
	Content string `json:"content"`

	// StopReason explains why generation ended.
	StopReason string `json:"stop_reason"`

	// GenerationInfo holds provider specific metadata such as token usage.
	GenerationInfo map[string]any `json:"generation_info"`

	// ToolCalls lists the tools the model wants executed.
	ToolCalls []ToolCall `json:"tool_calls"`
}

// MessageFromParts builds a Message from arbitrary parts.
func MessageFromParts(role Role, parts ...ContentPart) Message {
	return Message{
		Role:  role,
		Parts: parts,
	}
}

// MessageFromTextParts builds a Message where each string becomes a text part.
func MessageFromTextParts(role Role, texts ...string) Message {
	msg := Message{
		Role:  role,
		Parts: make([]ContentPart, len(texts)),
	}
	for i, text := range texts {
		msg.Parts[i] = TextPart(text)
	}
	return msg
}

// MessageFromToolCalls builds a Message holding the given tool calls.
func MessageFromToolCalls(role Role, toolCalls ...ToolCall) Message {
	msg := Message{
		Role:  role,
		Parts: make([]ContentPart, len(toolCalls)),
	}
	for i, tc := range toolCalls {
		msg.Parts[i] = tc
	}
	return msg
}

// MessageFromToolResponse builds a Message holding a single tool result.
func MessageFromToolResponse(role Role, resp ToolCallResponse) Message {
	return MessageFromParts(role, resp)
}

// GetContent renders the message parts as a single string, with tool calls
// and tool responses labeled inline.
func (m Message) GetContent() string {
	var sb strings.Builder
	atLineStart := true
	for _, part := range m.Parts {
		if !atLineStart {
			sb.WriteString("\n")
		}
		switch p := part.(type) {
		case TextContent:
			sb.WriteString(p.Text)
			atLineStart = strings.HasSuffix(p.Text, "\n")
		case ToolCall:
			sb.WriteString("Tool Call: ")
			js, _ := json.Marshal(p)
			sb.Write(js)
			sb.WriteString("\n")
			atLineStart = true
		case ToolCallResponse:
			sb.WriteString("Tool Response: ")
			sb.WriteString(p.Content)
			sb.WriteString("\n")
			atLineStart = true
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
