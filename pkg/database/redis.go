package database

import (
	"context"

	"github.com/go-redis/redis/v8"

	"lark-relay-go/pkg/log"
)

// 全局 Redis 客户端实例。未配置 Redis 时保持为 nil，
// 依赖方需要容忍 nil 并退化为纯数据库查询。
var RDB *redis.Client

// InitRedis 初始化 Redis 连接并做一次连通性检查。
func InitRedis(addr, password string, db int) {
	RDB = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := RDB.Ping(context.Background()).Err(); err != nil {
		log.Fatal("连接 Redis 失败", err)
	}

	log.Info("Redis 连接成功")
}
