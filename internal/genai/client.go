package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// BearerSource supplies a short-lived bearer token. Implemented by
// TokenSource; nil when a static API key is used instead.
type BearerSource interface {
	Token(ctx context.Context) (string, error)
}

// Client calls the generative API over HTTP.
type Client struct {
	endpoint   string
	apiKey     string // static key; used when bearer is nil
	bearer     BearerSource
	httpClient *http.Client
}

// NewClient creates a generative API client. Exactly one of apiKey / bearer
// should be provided; when both are present the static key wins.
func NewClient(endpoint, apiKey string, bearer BearerSource, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 120 * time.Second}
	}
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		bearer:     bearer,
		httpClient: httpClient,
	}
}

// GenerateContent sends the request body to the given model and returns the
// generated text. apiKeyOverride, when non-empty, authenticates this one
// call instead of the client's configured credential (used for per-user API
// keys). Non-2xx responses come back as *APIError with the upstream status
// code and message.
func (c *Client) GenerateContent(ctx context.Context, model string, reqBody *GenerateContentRequest, apiKeyOverride string) (string, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling generate request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.endpoint, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if apiKeyOverride != "" {
		req.Header.Set("x-goog-api-key", apiKeyOverride)
	} else if c.apiKey != "" {
		req.Header.Set("x-goog-api-key", c.apiKey)
	} else if c.bearer != nil {
		token, err := c.bearer.Token(ctx)
		if err != nil {
			return "", fmt.Errorf("obtaining bearer token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling generative API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading generative API response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &APIError{
			StatusCode: resp.StatusCode,
			Message:    parseErrorMessage(body),
		}
	}

	var out GenerateContentResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("parsing generative API response: %w", err)
	}

	text := out.Text()
	if text == "" {
		log.Printf("[GenAIClient] Model %s returned no text (candidates=%d)", model, len(out.Candidates))
	}
	return text, nil
}

// parseErrorMessage extracts the message from the {error:{message}} envelope,
// falling back to the raw body.
func parseErrorMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return strings.TrimSpace(string(body))
}
