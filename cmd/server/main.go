// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"lark-relay-go/internal/config"
	"lark-relay-go/internal/handler"
	"lark-relay-go/internal/middleware"
	"lark-relay-go/internal/model"
	"lark-relay-go/internal/repository"
	"lark-relay-go/internal/service"
	"lark-relay-go/pkg/database"
	"lark-relay-go/pkg/lark"
	"lark-relay-go/pkg/llm"
	"lark-relay-go/pkg/log"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库。Redis 是可选的去重加速层，未配置地址时跳过
	database.InitMySQL(cfg.Database.MySQL.DSN)
	if err := database.DB.AutoMigrate(&model.ConversationTurn{}, &model.SeenEvent{}); err != nil {
		log.Fatal("数据库表结构迁移失败", err)
	}
	if cfg.Database.Redis.Addr != "" {
		database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	} else {
		log.Info("未配置 Redis，事件去重走纯数据库查询")
	}

	// 4. 初始化 Repository
	turnRepo := repository.NewTurnRepository(database.DB)
	eventRepo := repository.NewEventRepository(database.DB, database.RDB)

	// 5. 初始化外部客户端与 Service (依赖注入)
	llmClient := llm.NewClient(cfg.LLM)
	larkClient := lark.NewClient(cfg.Lark)
	chatService := service.NewChatService(turnRepo, llmClient)

	// 6. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// 添加我们自定义的日志中间件和 Gin 的 Recovery 中间件
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 7. 注册路由
	eventHandler := handler.NewEventHandler(chatService, eventRepo, larkClient)
	relayHandler := handler.NewRelayHandler(llmClient)

	r.POST("/webhook/event", eventHandler.HandleEvent)
	r.POST("/api/v1/chat", relayHandler.HandleChat)
	r.GET("/health", handler.Health)
	r.NoRoute(handler.NotFound)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}
