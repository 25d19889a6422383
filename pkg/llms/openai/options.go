package openai

import (
	"net/http"
)

const (
	// TokenEnvVarName is the name of the environment variable with the API token.
	TokenEnvVarName = "OPENAI_API_KEY"
)

// Options is a set of options for the OpenAI client.
type Options struct {
	Token      string
	Model      string
	BaseURL    string
	OrgID      string
	HTTPClient *http.Client
}

// Option is a function that configures Options.
type Option func(*Options)

// WithToken passes the API token.
func WithToken(token string) Option {
	return func(o *Options) {
		o.Token = token
	}
}

// WithModel passes the model name to use by default.
func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// WithBaseURL passes a custom base URL, for proxies or compatible providers.
func WithBaseURL(baseURL string) Option {
	return func(o *Options) {
		o.BaseURL = baseURL
	}
}

// WithOrganization passes which organization's quota and billing should be
// used when making API requests.
func WithOrganization(orgID string) Option {
	return func(o *Options) {
		o.OrgID = orgID
	}
}

// WithHTTPClient passes a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *Options) {
		o.HTTPClient = client
	}
}
