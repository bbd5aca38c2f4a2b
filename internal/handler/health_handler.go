package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health 存活探针，返回固定状态。
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "lark-relay-go"})
}

// NotFound 兜底处理所有未匹配的路由。
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
}
