package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lark-relay-go/pkg/llm"
	"lark-relay-go/pkg/log"
)

// RelayHandler 负责处理直连中转接口，不保存任何历史。
type RelayHandler struct {
	llmClient llm.Client
}

// NewRelayHandler 创建一个新的 RelayHandler。
func NewRelayHandler(llmClient llm.Client) *RelayHandler {
	return &RelayHandler{llmClient: llmClient}
}

// relayRequest 中转接口的请求体，两个字段都必填。
type relayRequest struct {
	Text      string `json:"text" binding:"required"`
	SessionID string `json:"session_id" binding:"required"`
}

// HandleChat 把单条提问透传给下游问答服务。
// 上下文由下游根据 session_id 自行跟踪，本服务不读写会话历史。
func (h *RelayHandler) HandleChat(c *gin.Context) {
	var req relayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text and session_id are required"})
		return
	}

	messages := []llm.Message{{Role: "user", Content: req.Text}}
	answer, err := h.llmClient.Query(c.Request.Context(), messages, req.SessionID)
	if err != nil {
		log.Errorf("中转问答失败 session=%s: %v", req.SessionID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": answer})
}
