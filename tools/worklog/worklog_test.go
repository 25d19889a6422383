package worklog_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/effective-security/tempoagent/chatmodel"
	"github.com/effective-security/tempoagent/jira"
	"github.com/effective-security/tempoagent/tempo"
	"github.com/effective-security/tempoagent/tools/worklog"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testNow is a Wednesday so week ranges resolve deterministically.
var testNow = time.Date(2025, 3, 12, 10, 30, 0, 0, time.UTC)

type fixture struct {
	prov *worklog.Provider

	mu         sync.Mutex
	jiraCalls  int
	tempoPosts []map[string]any
	tempoFail  int // status to return from POST /worklogs, 0 for success

	inProgress []jira.Issue
}

func (f *fixture) posts() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, len(f.tempoPosts))
	copy(out, f.tempoPosts)
	return out
}

func (f *fixture) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jiraCalls + len(f.tempoPosts)
}

func newFixture(t *testing.T, defaultIssueKey string) *fixture {
	t.Helper()
	f := &fixture{}

	jiraSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.jiraCalls++
		f.mu.Unlock()

		switch {
		case r.URL.Path == "/rest/api/3/myself":
			_, _ = w.Write([]byte(`{"accountId": "abc123"}`))
		case strings.HasPrefix(r.URL.Path, "/rest/api/3/issue/"):
			key := strings.TrimPrefix(r.URL.Path, "/rest/api/3/issue/")
			if key == "MISSING-1" {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"errorMessages":["Issue does not exist or you do not have permission to see it."]}`))
				return
			}
			fmt.Fprintf(w, `{"id": "%d", "key": %q, "fields": {"summary": "a task", "status": {"name": "In Progress"}}}`, 10000+len(key), key)
		case r.URL.Path == "/rest/api/3/search":
			res := map[string]any{
				"startAt":    0,
				"maxResults": 50,
				"total":      len(f.inProgress),
				"issues":     []map[string]any{},
			}
			var issues []map[string]any
			for _, issue := range f.inProgress {
				issues = append(issues, map[string]any{
					"id":  issue.ID,
					"key": issue.Key,
					"fields": map[string]any{
						"summary": issue.Summary,
						"status":  map[string]any{"name": issue.Status},
					},
				})
			}
			res["issues"] = issues
			_ = json.NewEncoder(w).Encode(res)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(jiraSrv.Close)

	tempoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/worklogs":
			var payload map[string]any
			_ = json.NewDecoder(r.Body).Decode(&payload)
			f.mu.Lock()
			f.tempoPosts = append(f.tempoPosts, payload)
			fail := f.tempoFail
			f.mu.Unlock()
			if fail != 0 {
				w.WriteHeader(fail)
				_, _ = w.Write([]byte(`{"errors":[{"message":"worklog rejected"}]}`))
				return
			}
			_, _ = w.Write([]byte(`{"tempoWorklogId": 1}`))
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/worklogs/user/"):
			_, _ = w.Write([]byte(`{
				"results": [
					{"tempoWorklogId": 1, "startDate": "2025-03-10", "startTime": "09:00:00", "timeSpentSeconds": 7200, "description": "Work log entry"}
				],
				"metadata": {"count": 1}
			}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(tempoSrv.Close)

	jiraClient, err := jira.NewClient(jira.Config{
		Domain:          "example.atlassian.net",
		Email:           "dev@example.com",
		APIToken:        "jira-token",
		Project:         "PROJ",
		DefaultIssueKey: defaultIssueKey,
	}, jira.WithBaseURL(jiraSrv.URL))
	require.NoError(t, err)

	tempoClient, err := tempo.NewClient(tempo.Config{
		BaseURL:  tempoSrv.URL,
		APIToken: "tempo-token",
	})
	require.NoError(t, err)

	f.prov = worklog.NewProvider(jiraClient, tempoClient).
		WithNowFunc(func() time.Time { return testNow })
	return f
}

func Test_LogTime_SingleIssue(t *testing.T) {
	f := newFixture(t, "")
	tool := worklog.NewLogTimeTool(f.prov)

	res, err := tool.Run(context.Background(), &worklog.LogTimeRequest{
		Hours:    2,
		IssueKey: "PROJ-123",
	})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Contains(t, res.Results[0], "2025-03-12")
	assert.Contains(t, res.Results[0], "PROJ-123: 2h at 09:00:00")

	posts := f.posts()
	require.Len(t, posts, 1)
	assert.Equal(t, "PROJ-123", posts[0]["issueKey"])
	assert.Equal(t, float64(7200), posts[0]["timeSpentSeconds"])
	assert.Equal(t, "2025-03-12", posts[0]["startDate"])
	assert.Equal(t, "09:00:00", posts[0]["startTime"])
	assert.Equal(t, "Work log entry", posts[0]["description"])
	assert.Equal(t, "abc123", posts[0]["authorAccountId"])
}

func Test_LogTime_InvalidHours(t *testing.T) {
	f := newFixture(t, "")
	tool := worklog.NewLogTimeTool(f.prov)

	tcases := []struct {
		name  string
		hours float64
	}{
		{"zero", 0},
		{"negative", -1},
		{"over_24", 25},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tool.Run(context.Background(), &worklog.LogTimeRequest{
				Hours:    tc.hours,
				IssueKey: "PROJ-123",
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid request")
		})
	}
	assert.Equal(t, 0, f.calls(), "validation failures must not reach the network")
}

func Test_LogTime_InvalidStartTime(t *testing.T) {
	f := newFixture(t, "")
	tool := worklog.NewLogTimeTool(f.prov)

	_, err := tool.Run(context.Background(), &worklog.LogTimeRequest{
		Hours:     1,
		IssueKey:  "PROJ-123",
		StartTime: "9am",
	})
	require.Error(t, err)
	assert.Equal(t, 0, f.calls())
}

func Test_LogTime_AutoDistribute(t *testing.T) {
	f := newFixture(t, "AUTO-1")
	f.inProgress = []jira.Issue{
		{ID: "101", Key: "PROJ-1", Summary: "first", Status: "In Progress"},
		{ID: "102", Key: "PROJ-2", Summary: "second", Status: "In Progress"},
		{ID: "103", Key: "PROJ-3", Summary: "third", Status: "In Progress"},
	}
	tool := worklog.NewLogTimeTool(f.prov)

	res, err := tool.Run(context.Background(), &worklog.LogTimeRequest{
		Hours: 6,
	})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)

	posts := f.posts()
	require.Len(t, posts, 3)
	assert.Equal(t, "PROJ-1", posts[0]["issueKey"])
	assert.Equal(t, "PROJ-2", posts[1]["issueKey"])
	assert.Equal(t, "PROJ-3", posts[2]["issueKey"])

	var total float64
	for _, p := range posts {
		total += p["timeSpentSeconds"].(float64)
	}
	assert.Equal(t, float64(6*3600), total)

	// equal shares, start times staggered by one share each
	assert.Equal(t, "09:00:00", posts[0]["startTime"])
	assert.Equal(t, "11:00:00", posts[1]["startTime"])
	assert.Equal(t, "13:00:00", posts[2]["startTime"])
}

func Test_LogTime_AutoRemainder(t *testing.T) {
	f := newFixture(t, "AUTO-1")
	f.inProgress = []jira.Issue{
		{ID: "101", Key: "PROJ-1", Status: "In Progress"},
		{ID: "102", Key: "PROJ-2", Status: "In Progress"},
		{ID: "103", Key: "PROJ-3", Status: "In Progress"},
	}
	tool := worklog.NewLogTimeTool(f.prov)

	// 1h does not divide evenly by 3, the front issues absorb the remainder
	_, err := tool.Run(context.Background(), &worklog.LogTimeRequest{Hours: 1})
	require.NoError(t, err)

	posts := f.posts()
	require.Len(t, posts, 3)

	var seconds []float64
	var total float64
	for _, p := range posts {
		v := p["timeSpentSeconds"].(float64)
		seconds = append(seconds, v)
		total += v
	}
	assert.Equal(t, float64(3600), total)
	assert.GreaterOrEqual(t, seconds[0], seconds[1])
	assert.GreaterOrEqual(t, seconds[1], seconds[2])
}

func Test_LogTime_AutoNoIssues(t *testing.T) {
	f := newFixture(t, "AUTO-1")
	tool := worklog.NewLogTimeTool(f.prov)

	res, err := tool.Run(context.Background(), &worklog.LogTimeRequest{Hours: 4})
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	assert.Contains(t, res.Results[0], "No in-progress issues found.")
	assert.Empty(t, f.posts())
}

func Test_LogTime_WeekRange(t *testing.T) {
	f := newFixture(t, "")
	tool := worklog.NewLogTimeTool(f.prov)

	res, err := tool.Run(context.Background(), &worklog.LogTimeRequest{
		Hours:     8,
		IssueKey:  "PROJ-7",
		DateRange: "this week",
		Comment:   "sprint work",
	})
	require.NoError(t, err)
	require.Len(t, res.Results, 5)

	posts := f.posts()
	require.Len(t, posts, 5)
	wantDates := []string{"2025-03-10", "2025-03-11", "2025-03-12", "2025-03-13", "2025-03-14"}
	for i, p := range posts {
		assert.Equal(t, wantDates[i], p["startDate"])
		assert.Equal(t, float64(8*3600), p["timeSpentSeconds"])
		assert.Equal(t, "sprint work", p["description"])
	}
}

func Test_LogTime_TempoRejected(t *testing.T) {
	f := newFixture(t, "")
	f.tempoFail = http.StatusBadRequest
	tool := worklog.NewLogTimeTool(f.prov)

	_, err := tool.Run(context.Background(), &worklog.LogTimeRequest{
		Hours:    2,
		IssueKey: "PROJ-123",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Contains(t, err.Error(), "worklog rejected")
}

func Test_LogTime_UnknownIssue(t *testing.T) {
	f := newFixture(t, "")
	tool := worklog.NewLogTimeTool(f.prov)

	_, err := tool.Run(context.Background(), &worklog.LogTimeRequest{
		Hours:    2,
		IssueKey: "MISSING-1",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Empty(t, f.posts())
}

func Test_LogTime_Call_BadInput(t *testing.T) {
	f := newFixture(t, "")
	tool := worklog.NewLogTimeTool(f.prov)

	_, err := tool.Call(context.Background(), `{"hours": "two"}`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, chatmodel.ErrFailedUnmarshalInput))
}

func Test_FindIssues(t *testing.T) {
	f := newFixture(t, "")
	f.inProgress = []jira.Issue{
		{ID: "101", Key: "PROJ-1", Summary: "first", Status: "In Progress"},
		{ID: "102", Key: "PROJ-2", Summary: "second", Status: "In Progress"},
	}
	tool := worklog.NewFindIssuesTool(f.prov)

	res, err := tool.Run(context.Background(), &worklog.FindIssuesRequest{})
	require.NoError(t, err)
	require.Len(t, res.Issues, 2)
	assert.Equal(t, "PROJ-1", res.Issues[0].Key)
	assert.Equal(t, "PROJ-2", res.Issues[1].Key)

	text := res.String()
	assert.Contains(t, text, "PROJ-1 [In Progress]: first")
}

func Test_GetWorklogs_Defaults(t *testing.T) {
	f := newFixture(t, "")
	tool := worklog.NewGetWorklogsTool(f.prov)

	res, err := tool.Run(context.Background(), &worklog.GetWorklogsRequest{})
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", res.From)
	assert.Equal(t, "2025-03-14", res.To)
	require.Len(t, res.Worklogs, 1)
	assert.Equal(t, "2025-03-10", res.Worklogs[0].Date)
	assert.Equal(t, float64(2), res.Worklogs[0].Hours)
}

func Test_GetWorklogs_InvalidDate(t *testing.T) {
	f := newFixture(t, "")
	tool := worklog.NewGetWorklogsTool(f.prov)

	_, err := tool.Run(context.Background(), &worklog.GetWorklogsRequest{From: "03/10/2025"})
	require.Error(t, err)
	assert.Equal(t, 0, f.calls())
}

func Test_Tools_Descriptions(t *testing.T) {
	f := newFixture(t, "")
	list := f.prov.Tools()
	require.Len(t, list, 3)

	names := map[string]bool{}
	for _, tool := range list {
		names[tool.Name()] = true
		assert.NotEmpty(t, tool.Description())
		assert.NotNil(t, tool.Parameters())
	}
	assert.True(t, names[worklog.LogTimeToolName])
	assert.True(t, names[worklog.FindIssuesToolName])
	assert.True(t, names[worklog.GetWorklogsToolName])
}
