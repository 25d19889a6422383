// Package llmutils has helpers for cleaning up model output and for
// measuring the content sent to and received from a model.
package llmutils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/effective-security/tempoagent/pkg/llms"
	"github.com/effective-security/x/values"
	"gopkg.in/yaml.v3"
)

// CleanJSON extracts the JSON payload from a reply that may wrap it in
// prose, such as "Here you go: {...}". It trims everything before the
// first brace or bracket and after the last one.
func CleanJSON(bs []byte) []byte {
	return trimAfterJSON(trimBeforeJSON(bs))
}

func trimBeforeJSON(bs []byte) []byte {
	obj := bytes.IndexByte(bs, '{')
	arr := bytes.IndexByte(bs, '[')

	start := obj
	switch {
	case obj == -1 && arr == -1:
		return bs
	case obj == -1:
		start = arr
	case arr != -1:
		start = min(obj, arr)
	}
	return bs[start:]
}

func trimAfterJSON(bs []byte) []byte {
	obj := bytes.LastIndexByte(bs, '}')
	arr := bytes.LastIndexByte(bs, ']')

	end := obj
	switch {
	case obj == -1 && arr == -1:
		return bs
	case obj == -1:
		end = arr
	case arr != -1:
		end = max(obj, arr)
	}
	return bs[:end+1]
}

var backtick = []byte("```")

// TrimBackticks removes ```json or ``` fences around a reply.
func TrimBackticks(text string) string {
	return string(BytesTrimBackticks([]byte(text)))
}

// BytesTrimBackticks removes ```json or ``` fences around a reply.
func BytesTrimBackticks(bs []byte) []byte {
	size := len(bs)
	start := bytes.Index(bs, backtick)
	if start == -1 {
		return bs
	}
	start += len(backtick)

	// skip the language tag after the opening fence
	for i := start; i < size && bs[i] != '{' && bs[i] != '['; i++ {
		if bs[i] == '\n' {
			start = i + 1
			break
		}
	}

	rest := bs[start:]
	end := bytes.LastIndex(rest, backtick)
	if end == -1 {
		return rest
	}
	return bytes.TrimSpace(rest[:end])
}

// ToJSON marshals the value to a compact JSON string.
func ToJSON(val any) string {
	js, _ := json.Marshal(val)
	return string(js)
}

// ToJSONIndent marshals the value to tab indented JSON.
func ToJSONIndent(val any) string {
	js, _ := json.MarshalIndent(val, "", "\t")
	return string(js)
}

// ToYAML marshals the value to YAML.
func ToYAML(val any) string {
	bs, _ := yaml.Marshal(val)
	return string(bs)
}

// BackticksJSON wraps a JSON string in a fenced code block.
func BackticksJSON(js string) string {
	return "\n```json\n" + strings.TrimSpace(js) + "\n```\n"
}

// MergeInputs merges prompt inputs, with user inputs overriding the
// configured defaults.
func MergeInputs(configInputs map[string]any, userInputs map[string]any) map[string]any {
	res := map[string]any{}
	for k, v := range configInputs {
		res[k] = v
	}
	for k, v := range userInputs {
		res[k] = v
	}
	return res
}

// PrintMessages dumps a message history for debugging.
func PrintMessages(w io.Writer, msgs []llms.Message) {
	for _, mc := range msgs {
		fmt.Fprintf(w, "%s: ", strings.ToUpper(string(mc.Role)))
		for _, p := range mc.Parts {
			switch pp := p.(type) {
			case llms.TextContent:
				fmt.Fprintln(w, pp.Text)
			case llms.ToolCall:
				fmt.Fprintf(w, "ToolCall ID=%s, Type=%s, Func=%s(%s)\n", pp.ID, pp.Type, pp.FunctionCall.Name, pp.FunctionCall.Arguments)
			case llms.ToolCallResponse:
				fmt.Fprintf(w, "ToolCallResponse ID=%s, Name=%s, Content=%s\n", pp.ToolCallID, pp.Name, pp.Content)
			}
		}
	}
}

// CountMessagesContentSize returns the total bytes of content across the
// messages, including tool call names and arguments.
func CountMessagesContentSize(msgs []llms.Message) uint64 {
	var size uint64
	for _, mc := range msgs {
		size += uint64(len(mc.Role))
		for _, p := range mc.Parts {
			switch pp := p.(type) {
			case llms.TextContent:
				size += uint64(len(pp.Text))
			case llms.ToolCall:
				size += uint64(len(pp.ID)) + uint64(len(pp.Type))
				if pp.FunctionCall != nil {
					size += uint64(len(pp.FunctionCall.Name)) + uint64(len(pp.FunctionCall.Arguments))
				}
			case llms.ToolCallResponse:
				size += uint64(len(pp.ToolCallID)) + uint64(len(pp.Name)) + uint64(len(pp.Content))
			}
		}
	}
	return size
}

// CountResponseContentSize returns the total bytes of content across the
// response choices.
func CountResponseContentSize(resp *llms.ContentResponse) uint64 {
	var size uint64
	for _, choice := range resp.Choices {
		size += uint64(len(choice.Content))
		for _, tc := range choice.ToolCalls {
			size += uint64(len(tc.ID)) + uint64(len(tc.Type))
			if tc.FunctionCall != nil {
				size += uint64(len(tc.FunctionCall.Name)) + uint64(len(tc.FunctionCall.Arguments))
			}
		}
	}
	return size
}

// CountTokens sums the token usage reported in the response GenerationInfo.
func CountTokens(resp *llms.ContentResponse) (in, out, total int64) {
	for _, choice := range resp.Choices {
		ma := values.MapAny(choice.GenerationInfo)
		in += ma.Int64("InputTokens")
		out += ma.Int64("OutputTokens")
		total += ma.Int64("TotalTokens")
	}
	return
}

// EnsureEndsWithNewline trims surrounding whitespace and appends a final
// newline to non-empty strings.
func EnsureEndsWithNewline(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if s[len(s)-1] != '\n' {
		return s + "\n"
	}
	return s
}
