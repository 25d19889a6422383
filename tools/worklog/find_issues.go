package worklog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/tempoagent/chatmodel"
	"github.com/effective-security/tempoagent/jira"
	"github.com/effective-security/tempoagent/pkg/llmutils"
	"github.com/effective-security/tempoagent/pkg/schema"
	"github.com/effective-security/tempoagent/tools"
	"github.com/effective-security/x/values"
)

// FindIssuesToolName is the function name presented to the model.
const FindIssuesToolName = "find_issues"

// FindIssuesRequest represents the find_issues tool input.
type FindIssuesRequest struct {
	Status  string `json:"status,omitempty" yaml:"status,omitempty" jsonschema:"title=status,description=Status category to filter by. Defaults to 'In Progress'."`
	Project string `json:"project,omitempty" yaml:"project,omitempty" jsonschema:"title=project,description=Jira project key. Defaults to the configured project."`
}

// FindIssuesResult represents the find_issues tool output.
type FindIssuesResult struct {
	Issues []jira.Issue `json:"issues" yaml:"issues" jsonschema:"title=issues,description=The user's issues in the order returned by Jira."`
}

var _ chatmodel.ContentProvider = (*FindIssuesResult)(nil)

func (r *FindIssuesResult) GetContent() string {
	return llmutils.ToJSON(r)
}

func (r *FindIssuesResult) String() string {
	var buf bytes.Buffer
	for _, issue := range r.Issues {
		fmt.Fprintf(&buf, "- %s [%s]: %s\n", issue.Key, issue.Status, issue.Summary)
	}
	return buf.String()
}

// FindIssuesTool lists the caller's assigned issues.
type FindIssuesTool struct {
	prov       *Provider
	funcParams any
}

var _ tools.Tool[FindIssuesRequest, FindIssuesResult] = (*FindIssuesTool)(nil)

func NewFindIssuesTool(prov *Provider) *FindIssuesTool {
	return &FindIssuesTool{
		prov:       prov,
		funcParams: schema.MustNew(reflect.TypeOf(FindIssuesRequest{})).Parameters,
	}
}

func (t *FindIssuesTool) Name() string {
	return FindIssuesToolName
}

func (t *FindIssuesTool) Description() string {
	return "Finds the user's assigned Jira issues, filtered by status category. " +
		"Defaults to issues currently in progress."
}

func (t *FindIssuesTool) Parameters() any {
	return t.funcParams
}

func (t *FindIssuesTool) Call(ctx context.Context, input string) (string, error) {
	var req FindIssuesRequest
	if err := json.Unmarshal(llmutils.CleanJSON([]byte(input)), &req); err != nil {
		return "", errors.WithMessage(chatmodel.ErrFailedUnmarshalInput, err.Error())
	}
	out, err := t.Run(ctx, &req)
	if err != nil {
		return "", err
	}
	return out.GetContent(), nil
}

func (t *FindIssuesTool) Run(ctx context.Context, req *FindIssuesRequest) (*FindIssuesResult, error) {
	status := values.StringsCoalesce(req.Status, "In Progress")
	project := values.StringsCoalesce(req.Project, t.prov.Jira.Project())

	issues, err := t.prov.Jira.SearchAssigned(ctx, status, project)
	if err != nil {
		return nil, err
	}
	return &FindIssuesResult{Issues: issues}, nil
}
