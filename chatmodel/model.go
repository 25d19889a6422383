package chatmodel

import (
	"github.com/cockroachdb/errors"
)

// ErrFailedUnmarshalInput is returned by a tool when the model's arguments do
// not parse; the assistant turns it into a retry hint instead of failing.
var ErrFailedUnmarshalInput = errors.New("failed to unmarshal input: check the schema and try again")

// ContentProvider is implemented by tool results to render their content for
// the chat history.
type ContentProvider interface {
	GetContent() string
}

// FewShotExample is a prompt and completion pair added to the chat history
// before the user input, to steer the model.
type FewShotExample struct {
	Prompt     string `json:"prompt" yaml:"prompt"`
	Completion string `json:"completion" yaml:"completion"`
}
