package worklog

import (
	"context"
	"encoding/json"
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/tempoagent/chatmodel"
	"github.com/effective-security/tempoagent/pkg/llmutils"
	"github.com/effective-security/tempoagent/pkg/schema"
	"github.com/effective-security/tempoagent/timesheet"
	"github.com/effective-security/tempoagent/tools"
)

// GetWorklogsToolName is the function name presented to the model.
const GetWorklogsToolName = "get_worklogs"

// GetWorklogsRequest represents the get_worklogs tool input.
type GetWorklogsRequest struct {
	From string `json:"from,omitempty" yaml:"from,omitempty" validate:"omitempty,datetime=2006-01-02" jsonschema:"title=from,description=Start date yyyy-mm-dd. Defaults to Monday of the current week."`
	To   string `json:"to,omitempty" yaml:"to,omitempty" validate:"omitempty,datetime=2006-01-02" jsonschema:"title=to,description=End date yyyy-mm-dd. Defaults to Friday of the current week."`
}

// WorklogSummary is one recorded worklog in the tool output.
type WorklogSummary struct {
	Date        string  `json:"date" yaml:"date"`
	Hours       float64 `json:"hours" yaml:"hours"`
	StartTime   string  `json:"start_time,omitempty" yaml:"start_time,omitempty"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
}

// GetWorklogsResult represents the get_worklogs tool output.
type GetWorklogsResult struct {
	From     string           `json:"from" yaml:"from"`
	To       string           `json:"to" yaml:"to"`
	Worklogs []WorklogSummary `json:"worklogs" yaml:"worklogs"`
}

var _ chatmodel.ContentProvider = (*GetWorklogsResult)(nil)

func (r *GetWorklogsResult) GetContent() string {
	return llmutils.ToJSON(r)
}

// GetWorklogsTool lists the caller's recorded Tempo worklogs.
type GetWorklogsTool struct {
	prov       *Provider
	funcParams any
}

var _ tools.Tool[GetWorklogsRequest, GetWorklogsResult] = (*GetWorklogsTool)(nil)

func NewGetWorklogsTool(prov *Provider) *GetWorklogsTool {
	return &GetWorklogsTool{
		prov:       prov,
		funcParams: schema.MustNew(reflect.TypeOf(GetWorklogsRequest{})).Parameters,
	}
}

func (t *GetWorklogsTool) Name() string {
	return GetWorklogsToolName
}

func (t *GetWorklogsTool) Description() string {
	return "Lists the user's recorded Tempo worklogs for a date range. " +
		"Defaults to the current work week."
}

func (t *GetWorklogsTool) Parameters() any {
	return t.funcParams
}

func (t *GetWorklogsTool) Call(ctx context.Context, input string) (string, error) {
	var req GetWorklogsRequest
	if err := json.Unmarshal(llmutils.CleanJSON([]byte(input)), &req); err != nil {
		return "", errors.WithMessage(chatmodel.ErrFailedUnmarshalInput, err.Error())
	}
	out, err := t.Run(ctx, &req)
	if err != nil {
		return "", err
	}
	return out.GetContent(), nil
}

func (t *GetWorklogsTool) Run(ctx context.Context, req *GetWorklogsRequest) (*GetWorklogsResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, errors.WithMessage(err, "invalid request")
	}

	from := req.From
	to := req.To
	if from == "" || to == "" {
		week, err := timesheet.ResolveDates(t.prov.now(), "", "this week")
		if err != nil {
			return nil, err
		}
		if from == "" {
			from = week[0]
		}
		if to == "" {
			to = week[len(week)-1]
		}
	}

	accountID, err := t.prov.Jira.Myself(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := t.prov.Tempo.ListWorklogs(ctx, accountID, from, to)
	if err != nil {
		return nil, err
	}

	res := &GetWorklogsResult{From: from, To: to}
	for _, entry := range entries {
		res.Worklogs = append(res.Worklogs, WorklogSummary{
			Date:        entry.StartDate,
			Hours:       hours(entry.TimeSpentSeconds),
			StartTime:   entry.StartTime,
			Description: entry.Description,
		})
	}
	return res, nil
}
