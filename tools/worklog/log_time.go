package worklog

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/tempoagent/chatmodel"
	"github.com/effective-security/tempoagent/pkg/llmutils"
	"github.com/effective-security/tempoagent/pkg/metricskey"
	"github.com/effective-security/tempoagent/pkg/schema"
	"github.com/effective-security/tempoagent/tempo"
	"github.com/effective-security/tempoagent/timesheet"
	"github.com/effective-security/tempoagent/tools"
	"github.com/effective-security/x/values"
)

// LogTimeToolName is the function name presented to the model.
const LogTimeToolName = "log_time"

// LogTimeRequest represents the log_time tool input.
type LogTimeRequest struct {
	Hours     float64 `json:"hours" yaml:"hours" validate:"required,gt=0,lte=24" jsonschema:"title=hours,description=Number of hours to log. Required."`
	IssueKey  string  `json:"issue_key,omitempty" yaml:"issue_key,omitempty" jsonschema:"title=issue_key,description=Jira issue key like PROJ-123. Omit to distribute time across the user's in-progress issues."`
	Date      string  `json:"date,omitempty" yaml:"date,omitempty" jsonschema:"title=date,description=Date to log time for, like 2025-03-14 or 'yesterday'. Defaults to today."`
	DateRange string  `json:"date_range,omitempty" yaml:"date_range,omitempty" jsonschema:"title=date_range,description=Natural language date range, like 'this week', 'last week', or 'next Monday'."`
	Comment   string  `json:"comment,omitempty" yaml:"comment,omitempty" jsonschema:"title=comment,description=Worklog description."`
	StartTime string  `json:"start_time,omitempty" yaml:"start_time,omitempty" validate:"omitempty,datetime=15:04:05" jsonschema:"title=start_time,description=Work start time in hh:mm:ss form. Defaults to 09:00:00."`
}

// LogTimeResult represents the log_time tool output, one line per date.
type LogTimeResult struct {
	Results []string `json:"results" yaml:"results" jsonschema:"title=results,description=Per-date results of the worklog entries."`
}

var _ chatmodel.ContentProvider = (*LogTimeResult)(nil)

func (r *LogTimeResult) GetContent() string {
	return llmutils.ToJSON(r)
}

func (r *LogTimeResult) String() string {
	return strings.Join(r.Results, "\n")
}

// LogTimeTool logs time to Tempo, either to a named issue or distributed
// across the caller's in-progress issues.
type LogTimeTool struct {
	prov       *Provider
	funcParams any
}

var _ tools.Tool[LogTimeRequest, LogTimeResult] = (*LogTimeTool)(nil)

func NewLogTimeTool(prov *Provider) *LogTimeTool {
	return &LogTimeTool{
		prov:       prov,
		funcParams: schema.MustNew(reflect.TypeOf(LogTimeRequest{})).Parameters,
	}
}

func (t *LogTimeTool) Name() string {
	return LogTimeToolName
}

func (t *LogTimeTool) Description() string {
	return "Logs work time to Jira issues via Tempo. " +
		"With an issue key, logs the full hours to that issue for each resolved date. " +
		"Without one, distributes the hours across the user's in-progress issues."
}

func (t *LogTimeTool) Parameters() any {
	return t.funcParams
}

func (t *LogTimeTool) Call(ctx context.Context, input string) (string, error) {
	var req LogTimeRequest
	if err := json.Unmarshal(llmutils.CleanJSON([]byte(input)), &req); err != nil {
		return "", errors.WithMessage(chatmodel.ErrFailedUnmarshalInput, err.Error())
	}
	out, err := t.Run(ctx, &req)
	if err != nil {
		return "", err
	}
	return out.GetContent(), nil
}

func (t *LogTimeTool) Run(ctx context.Context, req *LogTimeRequest) (*LogTimeResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, errors.WithMessage(err, "invalid request")
	}

	dates, err := timesheet.ResolveDates(t.prov.now(), req.Date, req.DateRange)
	if err != nil {
		return nil, err
	}

	accountID, err := t.prov.Jira.Myself(ctx)
	if err != nil {
		return nil, err
	}

	defaultKey := t.prov.Jira.DefaultIssueKey()
	issueKey := values.StringsCoalesce(req.IssueKey, defaultKey)
	comment := values.StringsCoalesce(req.Comment, DefaultComment)
	startTime := values.StringsCoalesce(req.StartTime, timesheet.DefaultStartTime)
	totalSeconds := int(req.Hours * 3600)

	res := &LogTimeResult{}
	for _, date := range dates {
		var line string
		if defaultKey != "" && issueKey == defaultKey {
			line, err = t.logAuto(ctx, accountID, date, totalSeconds, startTime, comment)
		} else {
			line, err = t.logManual(ctx, accountID, issueKey, date, totalSeconds, startTime, comment)
		}
		if err != nil {
			return nil, err
		}
		res.Results = append(res.Results, fmt.Sprintf("%s: %s", date, line))
	}

	return res, nil
}

// logManual logs the full time to a single named issue.
func (t *LogTimeTool) logManual(ctx context.Context, accountID, issueKey, date string, totalSeconds int, startTime, comment string) (string, error) {
	issue, err := t.prov.Jira.GetIssue(ctx, issueKey)
	if err != nil {
		return "", err
	}

	err = t.prov.Tempo.CreateWorklog(ctx, &tempo.Worklog{
		IssueKey:         issue.Key,
		IssueID:          issue.ID,
		TimeSpentSeconds: totalSeconds,
		StartDate:        date,
		StartTime:        startTime,
		Description:      comment,
		AuthorAccountID:  accountID,
	})
	if err != nil {
		return "", err
	}
	metricskey.StatsWorklogsCreated.IncrCounter(1, issue.Key)

	return fmt.Sprintf("%s: %gh at %s", issue.Key, hours(totalSeconds), startTime), nil
}

// logAuto distributes the time across the caller's in-progress issues.
func (t *LogTimeTool) logAuto(ctx context.Context, accountID, date string, totalSeconds int, startTime, comment string) (string, error) {
	issues, err := t.prov.Jira.SearchAssigned(ctx, "In Progress", t.prov.Jira.Project())
	if err != nil {
		return "", err
	}
	if len(issues) == 0 {
		return "No in-progress issues found.", nil
	}

	shares, err := timesheet.Distribute(totalSeconds, len(issues), startTime)
	if err != nil {
		return "", err
	}

	var parts []string
	for i, issue := range issues {
		share := shares[i]
		err = t.prov.Tempo.CreateWorklog(ctx, &tempo.Worklog{
			IssueKey:         issue.Key,
			IssueID:          issue.ID,
			TimeSpentSeconds: share.Seconds,
			StartDate:        date,
			StartTime:        share.StartTime,
			Description:      comment,
			AuthorAccountID:  accountID,
		})
		if err != nil {
			return "", err
		}
		metricskey.StatsWorklogsCreated.IncrCounter(1, issue.Key)

		parts = append(parts, fmt.Sprintf("%s: %gh at %s", issue.Key, hours(share.Seconds), share.StartTime))
	}
	return strings.Join(parts, " | "), nil
}

// hours converts seconds to hours rounded to two decimal places.
func hours(seconds int) float64 {
	return math.Round(float64(seconds)/3600*100) / 100
}
