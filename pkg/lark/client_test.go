package lark

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lark-relay-go/internal/config"
	"lark-relay-go/pkg/log"
)

func TestMain(m *testing.M) {
	log.Init("error", "console", "")
	os.Exit(m.Run())
}

// fakePlatform 同时模拟令牌接口和回复接口，记录收到的请求。
type fakePlatform struct {
	srv *httptest.Server

	tokenCalls    int
	tokenCode     int
	replyCode     int
	lastAuth      string
	lastReplyPath string
	lastReplyBody map[string]any
}

func newFakePlatform(t *testing.T) *fakePlatform {
	t.Helper()
	p := &fakePlatform{}
	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/auth/v3/tenant_access_token/internal":
			p.tokenCalls++
			_ = json.NewEncoder(w).Encode(map[string]any{
				"code":                p.tokenCode,
				"msg":                 "ok",
				"tenant_access_token": "t-fake-token",
				"expire":              7200,
			})
		case strings.HasSuffix(r.URL.Path, "/reply"):
			p.lastAuth = r.Header.Get("Authorization")
			p.lastReplyPath = r.URL.Path
			require.NoError(t, json.NewDecoder(r.Body).Decode(&p.lastReplyBody))
			_ = json.NewEncoder(w).Encode(map[string]any{"code": p.replyCode, "msg": "ok"})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(p.srv.Close)
	return p
}

func (p *fakePlatform) newClient() Client {
	return NewClient(config.LarkConfig{
		AppID:     "cli_test",
		AppSecret: "secret",
		APIBase:   p.srv.URL,
	})
}

func TestReply_SendsTextMessage(t *testing.T) {
	p := newFakePlatform(t)
	client := p.newClient()

	err := client.Reply(context.Background(), "om_123", "你好")
	require.NoError(t, err)

	require.Equal(t, "/im/v1/messages/om_123/reply", p.lastReplyPath)
	require.Equal(t, "Bearer t-fake-token", p.lastAuth)
	require.Equal(t, "text", p.lastReplyBody["msg_type"])

	// content 字段是嵌套的 JSON 文本
	var content map[string]string
	require.NoError(t, json.Unmarshal([]byte(p.lastReplyBody["content"].(string)), &content))
	require.Equal(t, "你好", content["text"])
}

func TestReply_TokenFetchedOnceAcrossCalls(t *testing.T) {
	p := newFakePlatform(t)
	client := p.newClient()

	require.NoError(t, client.Reply(context.Background(), "om_1", "first"))
	require.NoError(t, client.Reply(context.Background(), "om_2", "second"))
	require.Equal(t, 1, p.tokenCalls)
}

func TestReply_ExpiredTokenRefreshed(t *testing.T) {
	p := newFakePlatform(t)
	client := p.newClient()

	require.NoError(t, client.Reply(context.Background(), "om_1", "first"))
	require.Equal(t, 1, p.tokenCalls)

	// 把缓存标成已过期，下一次回复必须重新申请令牌
	lc := client.(*larkClient)
	lc.mu.Lock()
	lc.expireAt = time.Now().Add(-time.Minute)
	lc.mu.Unlock()

	require.NoError(t, client.Reply(context.Background(), "om_2", "second"))
	require.Equal(t, 2, p.tokenCalls)
}

func TestReply_TokenAPIError(t *testing.T) {
	p := newFakePlatform(t)
	p.tokenCode = 99991663
	client := p.newClient()

	err := client.Reply(context.Background(), "om_1", "hello")
	require.Error(t, err)
	require.Contains(t, err.Error(), "token api returned code 99991663")
}

func TestReply_ReplyAPIError(t *testing.T) {
	p := newFakePlatform(t)
	p.replyCode = 230002
	client := p.newClient()

	err := client.Reply(context.Background(), "om_1", "hello")
	require.Error(t, err)
	require.Contains(t, err.Error(), "reply api returned code 230002")
}

func TestReply_PlatformUnreachable(t *testing.T) {
	p := newFakePlatform(t)
	client := p.newClient()
	p.srv.Close()

	err := client.Reply(context.Background(), "om_1", "hello")
	require.Error(t, err)
}
