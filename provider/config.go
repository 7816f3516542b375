package provider

import (
	"fmt"
	"strconv"
	"time"
)

// Kind selects a backend implementation.
type Kind string

const (
	KindOpenAI  Kind = "openai"
	KindConnect Kind = "connect"
	KindGRPC    Kind = "grpc"
	KindMock    Kind = "mock"
)

// Config describes an inference backend. It is used only during
// initialization and turned into a Provider by New.
//
// Example JSON:
//
//	{
//	  "kind": "openai",
//	  "model": "gpt-4o-mini",
//	  "base_url": "https://api.openai.com/v1",
//	  "api_key": "sk-...",
//	  "temperature": 0.2,
//	  "timeout": "30s"
//	}
type Config struct {
	Kind        Kind     `json:"kind" yaml:"kind"`
	Model       string   `json:"model" yaml:"model"`
	BaseURL     string   `json:"base_url" yaml:"base_url"`
	APIKey      string   `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	ProjectID   string   `json:"project_id,omitempty" yaml:"project_id,omitempty"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	Timeout     Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// DefaultConfig returns an OpenAI-compatible configuration with no model,
// temperature 0 and a 4000-token output limit.
func DefaultConfig() Config {
	temperature := 0.0
	return Config{
		Kind:        KindOpenAI,
		BaseURL:     "https://api.openai.com/v1",
		Temperature: &temperature,
		MaxTokens:   4000,
		Timeout:     Duration(60 * time.Second),
	}
}

func (c *Config) Merge(source *Config) {
	if source.Kind != "" {
		c.Kind = source.Kind
	}
	if source.Model != "" {
		c.Model = source.Model
	}
	if source.BaseURL != "" {
		c.BaseURL = source.BaseURL
	}
	if source.APIKey != "" {
		c.APIKey = source.APIKey
	}
	if source.ProjectID != "" {
		c.ProjectID = source.ProjectID
	}
	if source.Temperature != nil {
		c.Temperature = source.Temperature
	}
	if source.MaxTokens > 0 {
		c.MaxTokens = source.MaxTokens
	}
	if source.Timeout > 0 {
		c.Timeout = source.Timeout
	}
}

// Validate checks the fields the selected kind needs.
func (c *Config) Validate() error {
	switch c.Kind {
	case KindMock:
		return nil
	case KindOpenAI, KindConnect, KindGRPC:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKind, c.Kind)
	}
	if c.Model == "" {
		return ErrMissingModel
	}
	if c.BaseURL == "" {
		return ErrMissingBaseURL
	}
	return nil
}

// Duration is a time.Duration that reads and writes as a Go duration
// string ("30s") in JSON and YAML. Bare numbers are taken as seconds.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	return d.UnmarshalText([]byte(s))
}

// ParseDuration accepts Go duration strings and bare second counts.
func ParseDuration(s string) (Duration, error) {
	if s == "" || s == "null" {
		return 0, nil
	}
	if parsed, err := time.ParseDuration(s); err == nil {
		return Duration(parsed), nil
	}
	seconds, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return Duration(seconds * float64(time.Second)), nil
}
