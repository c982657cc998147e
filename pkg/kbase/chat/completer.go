// Package chat relays assistant questions to an OpenAI-compatible chat
// completions endpoint, grounding the model in the online catalog.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mikepea/kbase/pkg/kbase/config"
)

// Roles understood by the completion endpoint.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrDisabled is returned when no completion endpoint is configured.
var ErrDisabled = errors.New("chat assistant is not configured")

// Turn is one message sent to the model.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completer produces the assistant reply for a conversation.
type Completer interface {
	Complete(ctx context.Context, turns []Turn) (string, error)
}

// HTTPCompleter calls a chat completions endpoint over HTTP.
type HTTPCompleter struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

// NewHTTPCompleter returns nil when cfg has no endpoint.
func NewHTTPCompleter(cfg config.ChatConfig) *HTTPCompleter {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPCompleter{
		endpoint: strings.TrimSpace(cfg.Endpoint),
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		client:   &http.Client{Timeout: timeout},
	}
}

type completionRequest struct {
	Model    string `json:"model,omitempty"`
	Messages []Turn `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message Turn `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete posts turns and returns the first choice's content.
func (c *HTTPCompleter) Complete(ctx context.Context, turns []Turn) (string, error) {
	if c == nil {
		return "", ErrDisabled
	}
	body, err := json.Marshal(completionRequest{Model: c.model, Messages: turns})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read completion: %w", err)
	}
	var out completionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode completion (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if out.Error != nil && out.Error.Message != "" {
			return "", fmt.Errorf("completion failed (status %d): %s", resp.StatusCode, out.Error.Message)
		}
		return "", fmt.Errorf("completion failed (status %d)", resp.StatusCode)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
