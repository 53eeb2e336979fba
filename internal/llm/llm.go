package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Provider is the interface for LLM providers used by the classifier and
// the dashboard's summary/insight endpoints.
type Provider interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
	IsConfigured() bool
}

// ChatProvider talks to any OpenAI-compatible chat-completions endpoint,
// per the request/response contract fixed by configuration's ai.api_url.
type ChatProvider struct {
	APIURL      string
	APIKey      string
	Model       string
	Temperature float64
	MaxRetries  int
	Timeout     time.Duration
	client      *http.Client
}

// NewChatProvider builds a provider bound to a configured endpoint.
func NewChatProvider(apiURL, apiKey, model string, temperature float64, timeout time.Duration, maxRetries int) *ChatProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChatProvider{
		APIURL:      apiURL,
		APIKey:      apiKey,
		Model:       model,
		Temperature: temperature,
		MaxRetries:  maxRetries,
		Timeout:     timeout,
		client:      &http.Client{Timeout: timeout},
	}
}

// IsConfigured reports whether an API key has been supplied.
func (p *ChatProvider) IsConfigured() bool {
	return p.APIKey != "" && p.APIURL != ""
}

// Generate sends a single-user-message chat completion request, retrying
// with exponential backoff on 5xx responses and transport errors. A 4xx
// response is treated as fatal and returned immediately, per the
// classifier's error taxonomy.
func (p *ChatProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if !p.IsConfigured() {
		return "", fmt.Errorf("LLM provider not configured: missing api_url or api_key")
	}

	body := map[string]any{
		"model": p.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens":  maxTokens,
		"temperature": p.Temperature,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	backoff := 500 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		content, status, err := p.doRequest(ctx, data)
		if err == nil {
			return content, nil
		}
		lastErr = err

		if status >= 400 && status < 500 {
			return "", fmt.Errorf("llm request rejected (status %d): %w", status, err)
		}
		// status == 0 (transport error) or 5xx: retry.
	}
	return "", fmt.Errorf("llm request failed after %d attempts: %w", p.MaxRetries+1, lastErr)
}

func (p *ChatProvider) doRequest(ctx context.Context, data []byte) (content string, status int, err error) {
	req, err := http.NewRequestWithContext(ctx, "POST", p.APIURL, bytes.NewReader(data))
	if err != nil {
		return "", 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("transport error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", resp.StatusCode, fmt.Errorf("llm endpoint returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", resp.StatusCode, fmt.Errorf("decoding response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", resp.StatusCode, fmt.Errorf("no choices in llm response")
	}

	return result.Choices[0].Message.Content, resp.StatusCode, nil
}
