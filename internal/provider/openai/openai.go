// Package openai implements the hosted review backend on top of the OpenAI
// Chat Completions API (or any endpoint that speaks the same protocol).
//
// It uses go-resty/v2 for HTTP transport. Each review is a single blocking
// completion with a fixed system instruction and a response-length cap.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anushkapunekar/agentops/internal/config"
	"github.com/anushkapunekar/agentops/internal/provider"
	"github.com/go-resty/resty/v2"
)

const (
	name = "openai"

	// SystemPrompt is sent ahead of every review prompt.
	SystemPrompt = "You are a professional, concise, constructive code reviewer."

	defaultBaseURL   = "https://api.openai.com/v1"
	defaultMaxTokens = 800
	defaultTimeout   = 60 * time.Second
)

func init() {
	provider.Register(string(provider.KindHosted), NewProvider)
}

// ---------------------------------------------------------------------------
// OpenAI-specific API types
// ---------------------------------------------------------------------------

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiRequest struct {
	Model     string       `json:"model"`
	Messages  []apiMessage `json:"messages"`
	MaxTokens int          `json:"max_tokens,omitempty"`
}

type apiChoice struct {
	Index        int        `json:"index"`
	Message      apiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

type apiResponse struct {
	ID      string      `json:"id"`
	Model   string      `json:"model"`
	Choices []apiChoice `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// ---------------------------------------------------------------------------
// Backend implementation
// ---------------------------------------------------------------------------

// Provider implements provider.Backend for the Chat Completions API.
type Provider struct {
	client   *resty.Client
	apiKey   string
	baseURL  string
	model    string
	maxTok   int
	retryCfg provider.RetryConfig
}

// NewProvider is the factory registered with the provider registry. It
// fails when no API key is configured, which makes the adapter skip the
// hosted backend.
func NewProvider(conf config.Config) (provider.Backend, error) {
	if conf.HostedAPIKey == "" {
		return nil, &provider.ProviderError{
			Code:     provider.ErrCodeAuthentication,
			Message:  "OPENAI_API_KEY is not set",
			Provider: name,
		}
	}
	return New(conf), nil
}

// New builds the backend without checking credentials.
func New(conf config.Config) *Provider {
	baseURL := conf.HostedBaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	maxTok := conf.HostedMaxTokens
	if maxTok <= 0 {
		maxTok = defaultMaxTokens
	}
	timeout := conf.HostedTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &Provider{
		client:   client,
		apiKey:   conf.HostedAPIKey,
		baseURL:  strings.TrimRight(baseURL, "/"),
		model:    conf.Model,
		maxTok:   maxTok,
		retryCfg: provider.NewRetryConfig(conf.HostedMaxRetries),
	}
}

func (p *Provider) Kind() provider.Kind { return provider.KindHosted }

func (p *Provider) Name() string { return name }

// Validate checks that the API key is set and the endpoint accepts it.
func (p *Provider) Validate(ctx context.Context) error {
	if p.apiKey == "" {
		return &provider.ProviderError{
			Code:     provider.ErrCodeAuthentication,
			Message:  "OPENAI_API_KEY is not set",
			Provider: name,
		}
	}
	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(p.apiKey).
		Get(p.baseURL + "/models")
	if err != nil {
		return &provider.ProviderError{
			Code:     provider.ErrCodeProviderUnavailable,
			Message:  "failed to reach OpenAI API",
			Provider: name,
			Cause:    err,
		}
	}
	if resp.StatusCode() != http.StatusOK {
		return classifyHTTPError(name, resp.StatusCode(), resp.Body())
	}
	return nil
}

// Review sends prompt as the user message and returns the first choice.
func (p *Provider) Review(ctx context.Context, prompt string) (string, error) {
	return provider.WithRetry(ctx, p.retryCfg, func() (string, error) {
		return p.complete(ctx, prompt)
	})
}

func (p *Provider) complete(ctx context.Context, prompt string) (string, error) {
	body := apiRequest{
		Model: p.model,
		Messages: []apiMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: prompt},
		},
		MaxTokens: p.maxTok,
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(p.apiKey).
		SetBody(body).
		Post(p.baseURL + "/chat/completions")
	if err != nil {
		return "", &provider.ProviderError{
			Code:     provider.ErrCodeProviderUnavailable,
			Message:  "HTTP request failed",
			Provider: name,
			Cause:    err,
		}
	}

	if resp.StatusCode() != http.StatusOK {
		return "", classifyHTTPError(name, resp.StatusCode(), resp.Body())
	}

	var apiResp apiResponse
	if err := json.Unmarshal(resp.Body(), &apiResp); err != nil {
		return "", &provider.ProviderError{
			Code:     provider.ErrCodeUnknown,
			Message:  "failed to decode response",
			Provider: name,
			Cause:    err,
		}
	}
	if len(apiResp.Choices) == 0 {
		return "", &provider.ProviderError{
			Code:     provider.ErrCodeUnknown,
			Message:  "response has no choices",
			Provider: name,
		}
	}

	return strings.TrimSpace(apiResp.Choices[0].Message.Content), nil
}

// classifyHTTPError maps HTTP status codes to normalized provider errors.
func classifyHTTPError(providerName string, statusCode int, body []byte) *provider.ProviderError {
	var apiErr apiError
	_ = json.Unmarshal(body, &apiErr)
	msg := apiErr.Error.Message
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", statusCode)
	}

	pe := &provider.ProviderError{
		Provider:   providerName,
		Message:    msg,
		StatusCode: statusCode,
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		pe.Code = provider.ErrCodeAuthentication
	case statusCode == http.StatusTooManyRequests:
		pe.Code = provider.ErrCodeRateLimit
	case statusCode == http.StatusBadRequest:
		if strings.Contains(msg, "maximum context length") ||
			strings.Contains(msg, "max_tokens") {
			pe.Code = provider.ErrCodeContextLength
		} else {
			pe.Code = provider.ErrCodeInvalidRequest
		}
	case statusCode == http.StatusRequestTimeout || statusCode == http.StatusGatewayTimeout:
		pe.Code = provider.ErrCodeTimeout
	case statusCode >= 500:
		pe.Code = provider.ErrCodeProviderUnavailable
	default:
		pe.Code = provider.ErrCodeUnknown
	}

	return pe
}
