package vapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	// DefaultBaseURL is the public Vapi API endpoint.
	DefaultBaseURL = "https://api.vapi.ai"

	defaultTimeout = 30 * time.Second
)

// Config carries the credentials and identifiers for outbound calls.
type Config struct {
	BaseURL       string
	APIKey        string
	AssistantID   string
	PhoneNumberID string

	Timeout time.Duration
}

// Client places outbound calls through the Vapi REST API.
// It is a provider adapter only; call-state bookkeeping lives elsewhere.
type Client struct {
	http          *resty.Client
	assistantID   string
	phoneNumberID string
}

func NewClient(cfg Config) (*Client, error) {
	return NewClientWithHTTP(cfg, nil)
}

// NewClientWithHTTP accepts a preconfigured resty client, used by tests
// to point at an httptest server.
func NewClientWithHTTP(cfg Config, httpClient *resty.Client) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("vapi: api key is required")
	}
	if strings.TrimSpace(cfg.AssistantID) == "" {
		return nil, fmt.Errorf("vapi: assistant id is required")
	}
	if strings.TrimSpace(cfg.PhoneNumberID) == "" {
		return nil, fmt.Errorf("vapi: phone number id is required")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	if httpClient == nil {
		httpClient = resty.New()
	}
	httpClient.SetBaseURL(baseURL)
	httpClient.SetTimeout(timeout)
	httpClient.SetRetryCount(0)
	httpClient.SetAuthToken(cfg.APIKey)

	return &Client{
		http:          httpClient,
		assistantID:   cfg.AssistantID,
		phoneNumberID: cfg.PhoneNumberID,
	}, nil
}

// CallHandle is the provider's acceptance of a call request.
// Raw keeps the full response body for pass-through to API callers.
type CallHandle struct {
	ID     string `json:"id"`
	Status string `json:"status"`

	Raw json.RawMessage `json:"-"`
}

type createCallRequest struct {
	AssistantID   string         `json:"assistantId"`
	PhoneNumberID string         `json:"phoneNumberId"`
	Customer      customerTarget `json:"customer"`
}

type customerTarget struct {
	Number string `json:"number"`
}

// CreateCall asks the provider to place an outbound call.
// Non-2xx responses come back as *UpstreamError carrying the provider's
// error payload.
func (c *Client) CreateCall(ctx context.Context, number string) (CallHandle, error) {
	if c == nil || c.http == nil {
		return CallHandle{}, fmt.Errorf("vapi: client is not initialized")
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(createCallRequest{
			AssistantID:   c.assistantID,
			PhoneNumberID: c.phoneNumberID,
			Customer:      customerTarget{Number: number},
		}).
		Post("/call")
	if err != nil {
		return CallHandle{}, &UpstreamError{Message: "call request failed", Cause: err}
	}

	body := resp.Body()
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return CallHandle{}, &UpstreamError{
			StatusCode: resp.StatusCode(),
			Body:       strings.TrimSpace(string(body)),
			Message:    fmt.Sprintf("provider returned status %d", resp.StatusCode()),
		}
	}

	var handle CallHandle
	if err := json.Unmarshal(body, &handle); err != nil {
		return CallHandle{}, &UpstreamError{Message: "provider response is not valid JSON", Cause: err}
	}
	if handle.ID == "" {
		return CallHandle{}, &UpstreamError{Message: "provider response is missing call id", Body: strings.TrimSpace(string(body))}
	}
	handle.Raw = json.RawMessage(append([]byte(nil), body...))
	return handle, nil
}
