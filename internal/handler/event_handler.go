// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"lark-relay-go/internal/config"
	"lark-relay-go/internal/repository"
	"lark-relay-go/internal/service"
	"lark-relay-go/pkg/lark"
	"lark-relay-go/pkg/log"
)

// 消息事件的固定回复文案
const (
	usageText       = "🤖 机器人使用指南\n直接输入问题即可开始对话\n/clear 清除当前会话的上下文\n/help 查看本帮助"
	clearedText     = "✅ 上下文已清除"
	unsupportedText = "暂不支持其他类型的提问"
)

// receiveEventType 本服务处理的消息事件类型
const receiveEventType = "im.message.receive_v1"

// EventHandler 负责处理飞书事件订阅回调。
type EventHandler struct {
	chatService service.ChatService
	eventRepo   repository.EventRepository
	larkClient  lark.Client
}

// NewEventHandler 创建一个新的 EventHandler。
func NewEventHandler(chatService service.ChatService, eventRepo repository.EventRepository, larkClient lark.Client) *EventHandler {
	return &EventHandler{
		chatService: chatService,
		eventRepo:   eventRepo,
		larkClient:  larkClient,
	}
}

// eventPayload 事件回调的信封。只声明分支判断用到的字段，其余字段忽略。
type eventPayload struct {
	Encrypt   string       `json:"encrypt"`
	Type      string       `json:"type"`
	Challenge string       `json:"challenge"`
	Header    *eventHeader `json:"header"`
	Event     *eventBody   `json:"event"`
}

type eventHeader struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
}

type eventBody struct {
	Sender  eventSender  `json:"sender"`
	Message eventMessage `json:"message"`
}

type eventSender struct {
	SenderID eventSenderID `json:"sender_id"`
}

type eventSenderID struct {
	OpenID  string `json:"open_id"`
	UserID  string `json:"user_id"`
	UnionID string `json:"union_id"`
}

type eventMessage struct {
	MessageID   string         `json:"message_id"`
	ChatID      string         `json:"chat_id"`
	ChatType    string         `json:"chat_type"`
	MessageType string         `json:"message_type"`
	Content     string         `json:"content"`
	Mentions    []eventMention `json:"mentions"`
}

type eventMention struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// HandleEvent 处理一次事件投递。每个分支都是终态，顺序不可调换。
func (h *EventHandler) HandleEvent(c *gin.Context) {
	var payload eventPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		// 解析不出信封时按配置问题处理，返回自检结果
		c.JSON(http.StatusOK, runDoctor())
		return
	}

	// 1. 不支持加密推送，提示关闭 Encrypt Key
	if payload.Encrypt != "" {
		c.JSON(http.StatusOK, gin.H{
			"code": 1,
			"message": gin.H{
				"zh_CN": "你配置了 Encrypt Key，请关闭该功能后重试",
				"en_US": "Encrypt Key is enabled, disable it in the event subscription settings and retry",
			},
		})
		return
	}

	// 2. URL 校验握手，原样回显 challenge
	if payload.Type == "url_verification" {
		c.JSON(http.StatusOK, gin.H{"challenge": payload.Challenge})
		return
	}

	// 3. 信封缺失或带 debug 标记时运行自检
	if payload.Header == nil || c.Query("debug") == "1" {
		c.JSON(http.StatusOK, runDoctor())
		return
	}

	// 4. 只处理接收消息事件
	if payload.Header.EventType != receiveEventType || payload.Event == nil {
		c.JSON(http.StatusOK, gin.H{"code": 2})
		return
	}

	ctx := c.Request.Context()
	eventID := payload.Header.EventID

	// 5. 去重。Exists 只是快速路径，并发投递由唯一索引兜底
	seen, err := h.eventRepo.Exists(ctx, eventID)
	if err != nil {
		log.Errorf("查询事件去重账本失败 eventID=%s: %v", eventID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if seen {
		c.JSON(http.StatusOK, gin.H{"code": 1})
		return
	}
	outcome, err := h.eventRepo.RecordIfNew(ctx, eventID, "")
	if err != nil {
		log.Errorf("登记事件失败 eventID=%s: %v", eventID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if outcome == repository.RecordDuplicate {
		c.JSON(http.StatusOK, gin.H{"code": 1})
		return
	}

	msg := payload.Event.Message

	// 6. 会话类型闸门：只处理单聊和群聊，群聊要求 @ 机器人
	switch msg.ChatType {
	case "p2p":
	case "group":
		if !mentionsBot(msg.Mentions) {
			c.JSON(http.StatusOK, gin.H{"code": 0})
			return
		}
	default:
		c.JSON(http.StatusOK, gin.H{"code": 2})
		return
	}

	if msg.MessageType != "text" {
		h.reply(ctx, msg.MessageID, unsupportedText)
		c.JSON(http.StatusOK, gin.H{"code": 0})
		return
	}

	sessionID := msg.ChatID + payload.Event.Sender.SenderID.UserID
	question := extractText(msg)

	// 7. 指令分发。空问题（比如只 @ 了机器人）也按帮助处理
	if question == "" || strings.HasPrefix(question, "/") {
		h.dispatchCommand(c, sessionID, msg.MessageID, question)
		return
	}

	// 8. 对话轮
	h.converse(c, eventID, sessionID, msg, question)
}

// dispatchCommand 处理以 / 开头的指令，未识别的指令回复帮助文案。
func (h *EventHandler) dispatchCommand(c *gin.Context, sessionID, messageID, question string) {
	ctx := c.Request.Context()

	if question == "/clear" {
		if err := h.chatService.ClearSession(ctx, sessionID); err != nil {
			log.Errorf("清除会话失败 session=%s: %v", sessionID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		h.reply(ctx, messageID, clearedText)
		c.JSON(http.StatusOK, gin.H{"code": 0})
		return
	}

	h.reply(ctx, messageID, usageText)
	c.JSON(http.StatusOK, gin.H{"code": 0})
}

// converse 走一轮完整的问答，并在回复之后补写事件原文。
func (h *EventHandler) converse(c *gin.Context, eventID, sessionID string, msg eventMessage, question string) {
	ctx := c.Request.Context()

	answer, err := h.chatService.Converse(ctx, sessionID, question)
	if err != nil {
		log.Errorf("处理对话失败 session=%s: %v", sessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	// 先回复再补写事件原文，回复失败不阻断后面的登记
	h.reply(ctx, msg.MessageID, answer)

	// 事件 id 在去重那一步已经占位，这里撞上重复是预期内的
	if _, err := h.eventRepo.RecordIfNew(ctx, eventID, msg.Content); err != nil {
		log.Errorf("补写事件内容失败 eventID=%s: %v", eventID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"code": 0})
}

// reply 调用平台回复接口。失败只记日志，事件处理继续。
func (h *EventHandler) reply(ctx context.Context, messageID, text string) {
	if err := h.larkClient.Reply(ctx, messageID, text); err != nil {
		log.Errorf("回复消息失败 messageID=%s: %v", messageID, err)
	}
}

// extractText 从消息 content 里取出纯文本，去掉 @ 占位符并修剪首尾空白。
func extractText(msg eventMessage) string {
	var content struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(msg.Content), &content); err != nil {
		return ""
	}

	text := content.Text
	for _, mention := range msg.Mentions {
		if mention.Key != "" {
			text = strings.ReplaceAll(text, mention.Key, "")
		}
	}
	text = strings.ReplaceAll(text, "@_user_1", "")
	return strings.TrimSpace(text)
}

// mentionsBot 判断群聊消息是否 @ 了本机器人。
// 配置了 lark.bot_name 时要求第一个被 @ 对象的名字与之一致。
func mentionsBot(mentions []eventMention) bool {
	if len(mentions) == 0 {
		return false
	}
	botName := config.Conf.Lark.BotName
	if botName != "" && mentions[0].Name != botName {
		return false
	}
	return true
}
