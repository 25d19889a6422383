// Package worklog provides the time-logging tools exposed to the LLM agent:
// logging time to Jira issues through Tempo, finding the caller's issues, and
// listing recorded worklogs.
package worklog

import (
	"time"

	"github.com/effective-security/tempoagent/jira"
	"github.com/effective-security/tempoagent/tempo"
	"github.com/effective-security/tempoagent/tools"
	"github.com/effective-security/xlog"
	"github.com/go-playground/validator/v10"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/tempoagent", "worklog")

var validate = validator.New()

// DefaultComment is used when the model does not provide one.
const DefaultComment = "Work log entry"

// Provider bundles the clients the worklog tools need.
type Provider struct {
	Jira  *jira.Client
	Tempo *tempo.Client

	// nowFn is replaceable in tests.
	nowFn func() time.Time
}

// NewProvider creates a tool provider over the given clients.
func NewProvider(jiraClient *jira.Client, tempoClient *tempo.Client) *Provider {
	return &Provider{
		Jira:  jiraClient,
		Tempo: tempoClient,
		nowFn: time.Now,
	}
}

// WithNowFunc overrides the clock.
func (p *Provider) WithNowFunc(now func() time.Time) *Provider {
	p.nowFn = now
	return p
}

func (p *Provider) now() time.Time {
	if p.nowFn != nil {
		return p.nowFn()
	}
	return time.Now()
}

// Tools returns all worklog tools.
func (p *Provider) Tools() []tools.ITool {
	return []tools.ITool{
		NewLogTimeTool(p),
		NewFindIssuesTool(p),
		NewGetWorklogsTool(p),
	}
}
