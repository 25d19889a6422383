// Package config loads the service configuration from a yaml file,
// with ${ENV} values expanded from the environment.
package config

import (
	"github.com/cockroachdb/errors"
	"github.com/effective-security/tempoagent/jira"
	"github.com/effective-security/tempoagent/pkg/llmfactory"
	"github.com/effective-security/tempoagent/tempo"
	"github.com/effective-security/x/configloader"
)

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	// ListenAddr is the address the web UI binds to, e.g. ":8080".
	ListenAddr string `json:"listen_addr" yaml:"listen_addr"`
}

// RedisConfig describes the optional chat history backend.
// With no address the history is kept in memory.
type RedisConfig struct {
	Addr     string `json:"addr,omitempty" yaml:"addr,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	DB       int    `json:"db,omitempty" yaml:"db,omitempty"`
	Prefix   string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// Config is the top-level service configuration.
type Config struct {
	Jira   jira.Config       `json:"jira" yaml:"jira"`
	Tempo  tempo.Config      `json:"tempo" yaml:"tempo"`
	LLM    llmfactory.Config `json:"llm" yaml:"llm"`
	Server ServerConfig      `json:"server" yaml:"server"`
	Redis  RedisConfig       `json:"redis,omitempty" yaml:"redis,omitempty"`
}

// Load reads and validates the configuration file.
func Load(file string) (*Config, error) {
	if file == "" {
		return nil, errors.New("config file is required")
	}

	cfg := new(Config)
	err := configloader.UnmarshalAndExpand(file, cfg)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to load config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the required values.
func (c *Config) Validate() error {
	if c.Jira.Domain == "" {
		return errors.New("jira.domain is required")
	}
	if c.Jira.Email == "" {
		return errors.New("jira.email is required")
	}
	if c.Jira.APIToken == "" {
		return errors.New("jira.api_token is required")
	}
	if c.Tempo.APIToken == "" {
		return errors.New("tempo.api_token is required")
	}
	if len(c.LLM.Providers) == 0 {
		return errors.New("llm.providers is required")
	}
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	return nil
}
