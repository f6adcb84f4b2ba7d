package scoring

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
	// DefaultBaseURL is the public OpenAI API endpoint.
	DefaultBaseURL = "https://api.openai.com"

	// DefaultModel keeps evaluation cheap; scoring is not latency-critical.
	DefaultModel = "gpt-4o-mini"

	defaultTimeout = 20 * time.Second

	systemPrompt = `You are a professional call quality evaluator.
Score the call from 0 to 100.
Return ONLY valid JSON like:
{ "score": number }`
)

// OpenAIConfig carries evaluator credentials and model selection.
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string

	Timeout time.Duration
}

// OpenAIScorer asks a chat-completions model to grade a transcript and
// parses the strict {"score": n} reply. Any deviation from that contract
// is an error; the caller decides the fallback.
type OpenAIScorer struct {
	http  *resty.Client
	model string
}

var _ Scorer = (*OpenAIScorer)(nil)

func NewOpenAIScorer(cfg OpenAIConfig) (*OpenAIScorer, error) {
	return NewOpenAIScorerWithHTTP(cfg, nil)
}

// NewOpenAIScorerWithHTTP accepts a preconfigured resty client, used by
// tests to point at an httptest server.
func NewOpenAIScorerWithHTTP(cfg OpenAIConfig, httpClient *resty.Client) (*OpenAIScorer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("scoring: openai api key is required")
	}

	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
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

	return &OpenAIScorer{http: httpClient, model: model}, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type scorePayload struct {
	Score *float64 `json:"score"`
}

func (s *OpenAIScorer) Score(ctx context.Context, transcript string) (int, error) {
	if s == nil || s.http == nil {
		return 0, fmt.Errorf("scoring: scorer is not initialized")
	}
	if strings.TrimSpace(transcript) == "" {
		return 0, fmt.Errorf("scoring: transcript is empty")
	}

	resp, err := s.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(chatRequest{
			Model: s.model,
			Messages: []chatMessage{
				{Role: "system", Content: systemPrompt},
				{Role: "user", Content: transcript},
			},
		}).
		Post("/v1/chat/completions")
	if err != nil {
		return 0, fmt.Errorf("scoring: evaluator request failed: %w", err)
	}
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return 0, fmt.Errorf("scoring: evaluator returned status %d", resp.StatusCode())
	}

	var parsed chatResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return 0, fmt.Errorf("scoring: evaluator response is not valid JSON: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return 0, fmt.Errorf("scoring: evaluator returned no choices")
	}

	return parseScore(parsed.Choices[0].Message.Content)
}

// parseScore extracts the numeric score from the model's reply.
// Models occasionally wrap JSON in markdown fences despite instructions,
// so those are stripped before parsing.
func parseScore(content string) (int, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var payload scorePayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return 0, fmt.Errorf("scoring: reply is not the expected JSON shape: %w", err)
	}
	if payload.Score == nil {
		return 0, fmt.Errorf("scoring: reply is missing the score field")
	}

	score := int(*payload.Score)
	if score < 0 || score > 100 {
		return 0, fmt.Errorf("scoring: score %d is out of range", score)
	}
	return score, nil
}
