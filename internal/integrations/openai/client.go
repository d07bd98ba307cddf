// Package openai is the intent-classifier adapter: a focused client for an
// OpenAI-compatible chat completions endpoint with strict JSON-schema output,
// so every successful call yields a parseable triage decision.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"trakii-bot/internal/domain"
)

const defaultModel = "gpt-4o-mini"

// chatRequest is the minimal request shape for the Chat Completions endpoint.
type chatRequest struct {
	Model          string               `json:"model"`
	Messages       []domain.ChatMessage `json:"messages"`
	Temperature    *float64             `json:"temperature,omitempty"`
	ResponseFormat *responseFormat      `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type       string           `json:"type"`
	JSONSchema jsonSchemaConfig `json:"json_schema"`
}

type jsonSchemaConfig struct {
	Name   string          `json:"name"`
	Strict bool            `json:"strict"`
	Schema json.RawMessage `json:"schema"`
}

// chatResponse is the minimal response shape returned by the endpoint.
type chatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Index   int                `json:"index"`
		Message domain.ChatMessage `json:"message"`
	} `json:"choices"`
}

// tokenPayload is the expected JSON shape stored in SSM for the API token.
type tokenPayload struct {
	Token string `json:"token"`
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client is a focused OpenAI-compatible client for triage classification and
// grounded answer synthesis.
type Client struct {
	baseURL     string
	model       string
	httpClient  *http.Client
	getter      Getter
	paramPrefix string

	keyOnce sync.Once
	apiKey  string
	keyErr  error
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		if strings.TrimSpace(model) != "" {
			c.model = strings.TrimSpace(model)
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client backed by the given paramstore getter for API
// key retrieval. The key is fetched from SSM on first use and reused for the
// lifetime of the process.
func NewClient(ps Getter, paramPrefix string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("openai: paramstore getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("openai: parameter prefix must not be empty")
	}
	c := &Client{
		baseURL:     "https://api.openai.com/v1",
		model:       defaultModel,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		getter:      ps,
		paramPrefix: paramPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) resolveAPIKey(ctx context.Context) (string, error) {
	c.keyOnce.Do(func() {
		c.apiKey, c.keyErr = fetchAPIKeyFromParamStore(ctx, c.getter, c.tokenParameterName())
	})
	return c.apiKey, c.keyErr
}

func (c *Client) tokenParameterName() string {
	return c.paramPrefix + "/open-ai-token"
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func chatURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = "https://api.openai.com/v1"
	}
	if strings.HasSuffix(base, "/v1") {
		return base + "/chat/completions"
	}
	return base + "/v1/chat/completions"
}

// Classify sends the triage prompt pair and returns the model's structured
// decision. The JSON schema constrains the classification field to the closed
// label set, so an out-of-enum label indicates a misbehaving endpoint.
func (c *Client) Classify(ctx context.Context, messages []domain.ChatMessage) (domain.Classification, error) {
	raw, err := c.complete(ctx, messages, triageDecisionResponseFormat())
	if err != nil {
		return domain.Classification{}, err
	}

	var decision domain.Classification
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&decision); err != nil {
		return domain.Classification{}, fmt.Errorf("openai: decode triage decision: %w (raw content: %.200s)", err, raw)
	}
	if decision.Label == "" {
		return domain.Classification{}, errors.New("openai: triage decision missing classification")
	}
	return decision, nil
}

// Complete sends the given messages with the grounded-answer output contract
// and returns the raw content for the caller to parse.
func (c *Client) Complete(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	return c.complete(ctx, messages, groundedAnswerResponseFormat())
}

func (c *Client) complete(ctx context.Context, messages []domain.ChatMessage, format *responseFormat) (string, error) {
	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(chatRequest{
		Model:          c.model,
		Messages:       messages,
		ResponseFormat: format,
	})
	if err != nil {
		return "", fmt.Errorf("openai: marshal request: %w", err)
	}

	url := chatURL(c.baseURL)

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if reqErr != nil {
		return "", fmt.Errorf("openai: create request: %w", reqErr)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	raw, err := c.doJSONRequest(req, url)
	if err != nil {
		return "", fmt.Errorf("openai: request failed: %w", err)
	}

	var payload chatResponse
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		return "", fmt.Errorf("openai: decode response: %w", decErr)
	}
	if len(payload.Choices) == 0 {
		return "", errors.New("openai: no choices in response")
	}
	return payload.Choices[0].Message.Content, nil
}

func triageDecisionResponseFormat() *responseFormat {
	return &responseFormat{
		Type: "json_schema",
		JSONSchema: jsonSchemaConfig{
			Name:   "triage_decision",
			Strict: true,
			Schema: json.RawMessage(`{
				"type":"object",
				"additionalProperties":false,
				"properties":{
					"reasoning":{"type":"string"},
					"classification":{"type":"string","enum":["location","speed","status","list","ask","ignore"]}
				},
				"required":["reasoning","classification"]
			}`),
		},
	}
}

func groundedAnswerResponseFormat() *responseFormat {
	return &responseFormat{
		Type: "json_schema",
		JSONSchema: jsonSchemaConfig{
			Name:   "grounded_answer",
			Strict: true,
			Schema: json.RawMessage(`{
				"type":"object",
				"additionalProperties":false,
				"properties":{
					"in_scope":{"type":"boolean"},
					"answer":{"type":"string"}
				},
				"required":["in_scope","answer"]
			}`),
		},
	}
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}

func fetchAPIKeyFromParamStore(ctx context.Context, getter Getter, name string) (string, error) {
	if getter == nil {
		return "", errors.New("openai: paramstore getter is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("openai: token parameter name is empty")
	}

	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("openai: fetch token from paramstore: %w", err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("openai: unmarshal paramstore token value as JSON: %w", err)
	}
	if tp.Token == "" {
		return "", errors.New("openai: API token is empty")
	}
	return tp.Token, nil
}
