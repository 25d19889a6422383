package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
	"github.com/tidwall/gjson"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/tempoagent", "jira")

const defaultTimeout = 30 * time.Second

// Config describes the Jira Cloud connection.
type Config struct {
	// Domain is the Jira Cloud domain, e.g. "mycompany.atlassian.net".
	Domain string `json:"domain" yaml:"domain"`
	// Email is the account email used for basic auth.
	Email string `json:"email" yaml:"email"`
	// APIToken is the API token used for basic auth.
	APIToken string `json:"api_token" yaml:"api_token"`
	// Project is the default project key for issue queries.
	Project string `json:"project,omitempty" yaml:"project,omitempty"`
	// DefaultIssueKey is substituted when the model does not name an issue.
	DefaultIssueKey string `json:"default_issue_key,omitempty" yaml:"default_issue_key,omitempty"`
}

// Issue is a Jira issue in the shape the tools need.
type Issue struct {
	ID      string `json:"id"`
	Key     string `json:"key"`
	Summary string `json:"summary,omitempty"`
	Status  string `json:"status,omitempty"`
}

// Client is a Jira Cloud REST v3 client scoped to a single account.
type Client struct {
	cfg     Config
	baseURL string
	client  *http.Client

	mu        sync.Mutex
	accountID string
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// WithBaseURL overrides the base URL derived from the domain.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// NewClient creates a Jira client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Domain == "" {
		return nil, errors.New("jira: domain is required")
	}
	if cfg.Email == "" || cfg.APIToken == "" {
		return nil, errors.New("jira: email and api_token are required")
	}

	c := &Client{
		cfg:     cfg,
		baseURL: fmt.Sprintf("https://%s", cfg.Domain),
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Project returns the configured default project key.
func (c *Client) Project() string {
	return c.cfg.Project
}

// DefaultIssueKey returns the configured default issue key.
func (c *Client) DefaultIssueKey() string {
	return c.cfg.DefaultIssueKey
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.SetBasicAuth(c.cfg.Email, c.cfg.APIToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "request failed: GET %s", path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Newf("jira API request failed with status %d: GET %s: %s",
			resp.StatusCode, path, errorMessage(body))
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return errors.Wrapf(err, "failed to parse response: GET %s", path)
		}
	}
	return nil
}

// errorMessage extracts a human-readable message from a Jira error body.
func errorMessage(body []byte) string {
	if msgs := gjson.GetBytes(body, "errorMessages"); msgs.Exists() && msgs.IsArray() {
		var parts []string
		for _, m := range msgs.Array() {
			parts = append(parts, m.String())
		}
		if len(parts) > 0 {
			return strings.Join(parts, "; ")
		}
	}
	return slices.StringUpto(string(body), 256)
}

// Myself returns the caller's account ID.
// The value is cached after the first successful call.
func (c *Client) Myself(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accountID != "" {
		return c.accountID, nil
	}

	var res struct {
		AccountID string `json:"accountId"`
	}
	if err := c.get(ctx, "/rest/api/3/myself", nil, &res); err != nil {
		return "", err
	}
	if res.AccountID == "" {
		return "", errors.New("jira: myself returned empty accountId")
	}

	logger.ContextKV(ctx, xlog.DEBUG, "status", "resolved_account_id")
	c.accountID = res.AccountID
	return c.accountID, nil
}

// GetIssue resolves an issue by key.
func (c *Client) GetIssue(ctx context.Context, key string) (*Issue, error) {
	if key == "" {
		return nil, errors.New("jira: issue key is required")
	}

	var res struct {
		ID     string `json:"id"`
		Key    string `json:"key"`
		Fields struct {
			Summary string `json:"summary"`
			Status  struct {
				Name string `json:"name"`
			} `json:"status"`
		} `json:"fields"`
	}
	query := url.Values{"fields": []string{"summary,status"}}
	if err := c.get(ctx, "/rest/api/3/issue/"+url.PathEscape(key), query, &res); err != nil {
		return nil, err
	}

	return &Issue{
		ID:      res.ID,
		Key:     res.Key,
		Summary: res.Fields.Summary,
		Status:  res.Fields.Status.Name,
	}, nil
}

type searchResponse struct {
	StartAt    int `json:"startAt"`
	MaxResults int `json:"maxResults"`
	Total      int `json:"total"`
	Issues     []struct {
		ID     string `json:"id"`
		Key    string `json:"key"`
		Fields struct {
			Summary string `json:"summary"`
			Status  struct {
				Name string `json:"name"`
			} `json:"status"`
		} `json:"fields"`
	} `json:"issues"`
}

// Search runs a JQL query and returns the issues in the order received.
func (c *Client) Search(ctx context.Context, jql string) ([]Issue, error) {
	var issues []Issue
	startAt := 0
	const maxResults = 50

	for {
		query := url.Values{
			"jql":        []string{jql},
			"fields":     []string{"id,key,summary,status"},
			"maxResults": []string{fmt.Sprintf("%d", maxResults)},
			"startAt":    []string{fmt.Sprintf("%d", startAt)},
		}

		var res searchResponse
		if err := c.get(ctx, "/rest/api/3/search", query, &res); err != nil {
			return nil, err
		}

		for _, issue := range res.Issues {
			issues = append(issues, Issue{
				ID:      issue.ID,
				Key:     issue.Key,
				Summary: issue.Fields.Summary,
				Status:  issue.Fields.Status.Name,
			})
		}

		startAt += len(res.Issues)
		if len(res.Issues) == 0 || startAt >= res.Total {
			break
		}
	}

	return issues, nil
}

// SearchAssigned returns the caller's issues with the given status,
// optionally restricted to a project.
func (c *Client) SearchAssigned(ctx context.Context, status, project string) ([]Issue, error) {
	jql := fmt.Sprintf("assignee=currentUser() AND statusCategory=%q", status)
	if project != "" {
		jql = fmt.Sprintf("project=%q AND %s", project, jql)
	}
	jql += " ORDER BY created ASC"

	logger.ContextKV(ctx, xlog.DEBUG, "status", "search_assigned", "jql", jql)
	return c.Search(ctx, jql)
}
