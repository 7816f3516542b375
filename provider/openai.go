package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/tailored-agentic-units/agentics/core/protocol"
	"github.com/tailored-agentic-units/agentics/core/response"
)

// OpenAIProvider calls an OpenAI-compatible /chat/completions endpoint and
// asks for a json_schema response. The schema is strict unless the target
// has object fields, whose shape is left open.
type OpenAIProvider struct {
	client      *http.Client
	baseURL     string
	apiKey      string
	model       string
	project     string
	temperature *float64
	maxTokens   int
}

// NewOpenAI creates an OpenAIProvider from cfg. A nil client selects one
// with cfg.Timeout as its overall timeout.
func NewOpenAI(cfg *Config, client *http.Client) (*OpenAIProvider, error) {
	if cfg.Model == "" {
		return nil, ErrMissingModel
	}
	if cfg.BaseURL == "" {
		return nil, ErrMissingBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout.Std()}
	}
	return &OpenAIProvider{
		client:      client,
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		project:     cfg.ProjectID,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

func (p *OpenAIProvider) Name() string { return string(KindOpenAI) }

func (p *OpenAIProvider) Generate(ctx context.Context, req Request) (Response, error) {
	messages, err := Messages(req)
	if err != nil {
		return Response{}, err
	}

	body, err := json.Marshal(protocol.ChatRequest{
		Model:          p.model,
		Messages:       messages,
		Temperature:    p.temperature,
		MaxTokens:      p.maxTokens,
		ResponseFormat: protocol.StructuredFormat(
			schemaName(typeName(req.Target)),
			OutputSchema(req.Target, req.Explain),
			req.Target.Closed(),
		),
	})
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	if p.project != "" {
		httpReq.Header.Set("OpenAI-Project", p.project)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Response{}, ctxErr
		}
		var urlErr interface{ Timeout() bool }
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return Response{}, fmt.Errorf("request timed out: %w", context.DeadlineExceeded)
		}
		return Response{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Response{}, ctxErr
		}
		return Response{}, fmt.Errorf("%w: failed to read response: %v", ErrUnavailable, err)
	}

	if err := statusError(resp.StatusCode, payload); err != nil {
		return Response{}, err
	}

	chat, err := response.ParseChat(payload)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if refusal := chat.Refusal(); refusal != "" {
		return Response{}, fmt.Errorf("%w: %s", ErrRefused, refusal)
	}

	return DecodeOutput(chat.Content(), req.Explain)
}

// statusError maps an HTTP status to the provider error taxonomy.
func statusError(code int, body []byte) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, response.ParseError(body))
	case code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, response.ParseError(body))
	case code >= 500:
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, code, response.ParseError(body))
	default:
		return fmt.Errorf("request failed with status %d: %s", code, response.ParseError(body))
	}
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

func schemaName(name string) string {
	name = unsafeName.ReplaceAllString(name, "_")
	if len(name) > 64 {
		name = name[:64]
	}
	return name
}
