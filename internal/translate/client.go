package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/leica1994/dubverse/internal/dbstore"
	"github.com/leica1994/dubverse/internal/dubverrs"
	"github.com/leica1994/dubverse/internal/httpclient"
)

// Client calls an OpenAI-compatible chat completions endpoint, gated by
// the caller-supplied per-config HTTP client (from httpclient.Cache).
type Client struct {
	cfg     dbstore.AiConfig
	clients *httpclient.Cache
}

// NewClient builds a Client bound to one AiConfig record.
func NewClient(cfg dbstore.AiConfig, clients *httpclient.Cache) *Client {
	return &Client{cfg: cfg, clients: clients}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends one chat-completion call and returns the assistant's raw
// text reply.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64) (string, error) {
	body := chatRequest{
		Model:       c.cfg.Model,
		Temperature: temperature,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	url := c.cfg.BaseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	httpClient := c.clients.Get(c.cfg.ID, requestTimeout(c.cfg.RequestTimeout))
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", dubverrs.ProviderTransport("translate", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", dubverrs.ProviderTransport("translate", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", dubverrs.ProviderHTTP("translate", resp.StatusCode, truncate(string(respBody), 500))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

func requestTimeout(seconds int) time.Duration {
	if seconds <= 0 {
		seconds = 60
	}
	return time.Duration(seconds) * time.Second
}
