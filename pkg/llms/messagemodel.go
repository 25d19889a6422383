package llms

import "encoding/json"

// MessagePartModel is a serializable form of a message content part.
type MessagePartModel struct {
	Type         string            `json:"type"`
	Text         string            `json:"text,omitempty"`
	ToolCall     *ToolCall         `json:"tool_call,omitempty"`
	ToolResponse *ToolCallResponse `json:"tool_response,omitempty"`
}

// MessageModel is a serializable form of a Message for persistence.
type MessageModel struct {
	Role  Role               `json:"role"`
	Parts []MessagePartModel `json:"parts"`
}

// ConvertMessageToModel converts a Message to its serializable form.
func ConvertMessageToModel(msg Message) MessageModel {
	model := MessageModel{
		Role: msg.Role,
	}
	for _, part := range msg.Parts {
		switch p := part.(type) {
		case TextContent:
			model.Parts = append(model.Parts, MessagePartModel{Type: "text", Text: p.Text})
		case ToolCall:
			tc := p
			model.Parts = append(model.Parts, MessagePartModel{Type: "tool_call", ToolCall: &tc})
		case ToolCallResponse:
			tr := p
			model.Parts = append(model.Parts, MessagePartModel{Type: "tool_response", ToolResponse: &tr})
		}
	}
	return model
}

// ToMessage converts the serializable form back to a Message.
func (m MessageModel) ToMessage() Message {
	msg := Message{
		Role: m.Role,
	}
	for _, part := range m.Parts {
		switch part.Type {
		case "text":
			msg.Parts = append(msg.Parts, TextContent{Text: part.Text})
		case "tool_call":
			if part.ToolCall != nil {
				msg.Parts = append(msg.Parts, *part.ToolCall)
			}
		case "tool_response":
			if part.ToolResponse != nil {
				msg.Parts = append(msg.Parts, *part.ToolResponse)
			}
		}
	}
	return msg
}

// ToMessages converts serializable models back to messages.
func ToMessages(models []MessageModel) []Message {
	messages := make([]Message, 0, len(models))
	for _, model := range models {
		messages = append(messages, model.ToMessage())
	}
	return messages
}

// MarshalMessage serializes a Message to JSON.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(ConvertMessageToModel(msg))
}
