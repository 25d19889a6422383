package schema_test

import (
	"reflect"
	"testing"

	"github.com/effective-security/tempoagent/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logRequest struct {
	Hours    float64 `json:"hours" jsonschema:"title=hours,description=Number of hours to log."`
	IssueKey string  `json:"issue_key,omitempty" jsonschema:"title=issue_key,description=Jira issue key."`
	Nested   *filter `json:"filter,omitempty"`
}

type filter struct {
	Status string `json:"status,omitempty"`
}

func Test_New(t *testing.T) {
	s, err := schema.New(reflect.TypeOf(logRequest{}))
	require.NoError(t, err)
	require.NotNil(t, s.Parameters)

	assert.Equal(t, "object", s.Parameters.Type)
	require.NotNil(t, s.Parameters.Properties)

	hours, ok := s.Parameters.Properties.Get("hours")
	require.True(t, ok)
	assert.Equal(t, "number", hours.Type)
	assert.Equal(t, "Number of hours to log.", hours.Description)

	issueKey, ok := s.Parameters.Properties.Get("issue_key")
	require.True(t, ok)
	assert.Equal(t, "string", issueKey.Type)

	// nested struct refs are resolved inline
	nested, ok := s.Parameters.Properties.Get("filter")
	require.True(t, ok)
	assert.Empty(t, nested.Ref)
	_, ok = nested.Properties.Get("status")
	require.True(t, ok)

	// required omits the omitempty fields
	assert.Equal(t, []string{"hours"}, s.Parameters.Required)
}

func Test_New_Cached(t *testing.T) {
	s1 := schema.MustNew(reflect.TypeOf(logRequest{}))
	s2 := schema.MustNew(reflect.TypeOf(logRequest{}))
	assert.Same(t, s1, s2)
}

func Test_FromAny(t *testing.T) {
	s, err := schema.FromAny(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{"type": "string"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "object", s.Type)

	m, err := schema.ToMap(s)
	require.NoError(t, err)
	assert.Equal(t, "object", m["type"])
}
