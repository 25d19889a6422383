package anthropic

import (
	"net/http"
)

const (
	// TokenEnvVarName is the name of the environment variable with the API token.
	TokenEnvVarName = "ANTHROPIC_API_KEY"
)

// Options is a set of options for the Anthropic client.
type Options struct {
	Token      string
	Model      string
	BaseURL    string
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

// WithBaseURL passes a custom base URL.
func WithBaseURL(baseURL string) Option {
	return func(o *Options) {
		o.BaseURL = baseURL
	}
}

// WithHTTPClient passes a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *Options) {
		o.HTTPClient = client
	}
}
