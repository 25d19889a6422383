package tempo

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
	"github.com/tidwall/gjson"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/tempoagent", "tempo")

const (
	// DefaultBaseURL is the Tempo Cloud REST v4 endpoint.
	DefaultBaseURL = "https://api.tempo.io/4"

	defaultTimeout = 30 * time.Second
)

// Config describes the Tempo connection.
type Config struct {
	// BaseURL overrides the Tempo API endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	// APIToken is the Tempo bearer token.
	APIToken string `json:"api_token" yaml:"api_token"`
}

// Worklog is a Tempo worklog entry to create.
type Worklog struct {
	IssueKey         string `json:"issueKey"`
	IssueID          string `json:"issueId"`
	TimeSpentSeconds int    `json:"timeSpentSeconds"`
	StartDate        string `json:"startDate"`
	StartTime        string `json:"startTime"`
	Description      string `json:"description"`
	AuthorAccountID  string `json:"authorAccountId"`
}

// WorklogEntry is a worklog as returned by Tempo.
type WorklogEntry struct {
	TempoWorklogID   int64  `json:"tempoWorklogId"`
	StartDate        string `json:"startDate"`
	StartTime        string `json:"startTime"`
	TimeSpentSeconds int    `json:"timeSpentSeconds"`
	Description      string `json:"description"`
	Issue            struct {
		ID int64 `json:"id"`
	} `json:"issue"`
}

type listResponse struct {
	Results  []WorklogEntry `json:"results"`
	Metadata struct {
		Count  int    `json:"count"`
		Next   string `json:"next"`
		Offset int    `json:"offset"`
		Limit  int    `json:"limit"`
	} `json:"metadata"`
}

// Client is a Tempo REST v4 client.
type Client struct {
	cfg     Config
	baseURL string
	client  *http.Client
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// NewClient creates a Tempo client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if cfg.APIToken == "" {
		return nil, errors.New("tempo: api_token is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		cfg:     cfg,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "failed to marshal request")
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "request failed: %s %s", method, path)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Newf("tempo API request failed with status %d: %s %s: %s",
			resp.StatusCode, method, path, errorMessage(body))
	}

	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			return errors.Wrapf(err, "failed to parse response: %s %s", method, path)
		}
	}
	return nil
}

// errorMessage extracts a human-readable message from a Tempo error body.
func errorMessage(body []byte) string {
	if msgs := gjson.GetBytes(body, "errors.#.message"); msgs.Exists() && msgs.IsArray() {
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

// CreateWorklog posts a single worklog entry.
func (c *Client) CreateWorklog(ctx context.Context, w *Worklog) error {
	if w.TimeSpentSeconds <= 0 {
		return errors.New("tempo: timeSpentSeconds must be positive")
	}

	err := c.do(ctx, http.MethodPost, "/worklogs", nil, w, nil)
	if err != nil {
		return err
	}

	logger.ContextKV(ctx, xlog.INFO,
		"status", "worklog_created",
		"issue", w.IssueKey,
		"date", w.StartDate,
		"seconds", w.TimeSpentSeconds,
	)
	return nil
}

// ListWorklogs returns the user's worklogs between from and to (inclusive),
// dates in yyyy-mm-dd form.
func (c *Client) ListWorklogs(ctx context.Context, accountID, from, to string) ([]WorklogEntry, error) {
	if accountID == "" {
		return nil, errors.New("tempo: accountID is required")
	}

	query := url.Values{
		"from": []string{from},
		"to":   []string{to},
	}

	var res listResponse
	err := c.do(ctx, http.MethodGet, "/worklogs/user/"+url.PathEscape(accountID), query, nil, &res)
	if err != nil {
		return nil, err
	}
	return res.Results, nil
}
