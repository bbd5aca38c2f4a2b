// Package lark provides a client for the Feishu/Lark open platform message API.
package lark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"lark-relay-go/internal/config"
	"lark-relay-go/pkg/log"
)

// Client defines the interface for replying to platform messages.
type Client interface {
	// Reply 以纯文本消息回复指定的消息。
	Reply(ctx context.Context, messageID, text string) error
}

// larkClient 持有租户令牌缓存。多个请求 goroutine 共享一个实例，
// 令牌读写通过 RWMutex 保护。
type larkClient struct {
	cfg    config.LarkConfig
	client *http.Client

	mu       sync.RWMutex
	token    string
	expireAt time.Time
}

// NewClient creates a new Feishu open platform client from the config.
func NewClient(cfg config.LarkConfig) Client {
	return &larkClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

type tokenRequest struct {
	AppID     string `json:"app_id"`
	AppSecret string `json:"app_secret"`
}

type tokenResponse struct {
	Code              int    `json:"code"`
	Msg               string `json:"msg"`
	TenantAccessToken string `json:"tenant_access_token"`
	Expire            int    `json:"expire"`
}

type replyRequest struct {
	Content string `json:"content"`
	MsgType string `json:"msg_type"`
}

type replyResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// tenantAccessToken 返回缓存的租户令牌，临近过期时重新向平台申请。
func (c *larkClient) tenantAccessToken(ctx context.Context) (string, error) {
	c.mu.RLock()
	if c.token != "" && time.Now().Before(c.expireAt) {
		token := c.token
		c.mu.RUnlock()
		return token, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	// 等锁期间其他请求可能已经完成了刷新
	if c.token != "" && time.Now().Before(c.expireAt) {
		return c.token, nil
	}

	reqBytes, err := json.Marshal(tokenRequest{
		AppID:     c.cfg.AppID,
		AppSecret: c.cfg.AppSecret,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal token request: %w", err)
	}

	url := c.cfg.APIBase + "/auth/v3/tenant_access_token/internal"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(reqBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call token api: %w", err)
	}
	defer resp.Body.Close()

	var result tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if result.Code != 0 {
		return "", fmt.Errorf("token api returned code %d: %s", result.Code, result.Msg)
	}

	c.token = result.TenantAccessToken
	// 提前 60 秒视作过期，避免用到刚好失效的令牌
	c.expireAt = time.Now().Add(time.Duration(result.Expire-60) * time.Second)
	log.Infof("[LarkClient] 租户令牌已刷新, 有效期 %d 秒", result.Expire)
	return c.token, nil
}

// Reply sends a plain text reply to the given message.
func (c *larkClient) Reply(ctx context.Context, messageID, text string) error {
	token, err := c.tenantAccessToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to get tenant access token: %w", err)
	}

	// 平台要求 content 字段本身是一段 JSON 文本
	content, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("failed to marshal reply content: %w", err)
	}
	reqBytes, err := json.Marshal(replyRequest{
		Content: string(content),
		MsgType: "text",
	})
	if err != nil {
		return fmt.Errorf("failed to marshal reply request: %w", err)
	}

	url := fmt.Sprintf("%s/im/v1/messages/%s/reply", c.cfg.APIBase, messageID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(reqBytes))
	if err != nil {
		return fmt.Errorf("failed to create reply request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call reply api: %w", err)
	}
	defer resp.Body.Close()

	var result replyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode reply response: %w", err)
	}
	if result.Code != 0 {
		return fmt.Errorf("reply api returned code %d: %s", result.Code, result.Msg)
	}

	return nil
}
