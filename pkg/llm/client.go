// Package llm provides a client for the downstream question answering service.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"lark-relay-go/internal/config"
)

// Client defines the interface for the downstream query client.
type Client interface {
	// Query 以 role-based 消息调用问答接口，返回模型生成的回答文本。
	// sessionID 为空时不随请求发送。
	Query(ctx context.Context, messages []Message, sessionID string) (string, error)
}

type queryClient struct {
	cfg    config.LLMConfig
	client *http.Client
}

// NewClient creates a new downstream query client from the config.
func NewClient(cfg config.LLMConfig) Client {
	return &queryClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type queryRequest struct {
	Messages  []Message `json:"messages"`
	SessionID string    `json:"session_id,omitempty"`
}

type queryResponse struct {
	Text string `json:"text"`
}

// UpstreamError 表示下游问答服务返回了非 2xx 状态码。
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("query api returned status %d: %s", e.StatusCode, e.Body)
}

// Query calls the downstream query endpoint and returns the generated answer.
func (c *queryClient) Query(ctx context.Context, messages []Message, sessionID string) (string, error) {
	reqBody := queryRequest{
		Messages:  messages,
		SessionID: sessionID,
	}
	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal query request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.URL, bytes.NewReader(reqBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call query api: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read query response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &UpstreamError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var result queryResponse
	if err := json.Unmarshal(bodyBytes, &result); err != nil {
		return "", fmt.Errorf("failed to decode query response: %w", err)
	}
	if result.Text == "" {
		return "", fmt.Errorf("query api returned no answer text, body: %s", string(bodyBytes))
	}

	return result.Text, nil
}
