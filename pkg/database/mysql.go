// Package database 维护 MySQL 与 Redis 的全局连接。
package database

import (
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lark-relay-go/pkg/log"
)

// 全局数据库连接实例
var DB *gorm.DB

// InitMySQL 初始化 MySQL 连接池。
// TranslateError 把各方言的唯一键冲突统一翻译成 gorm.ErrDuplicatedKey，
// 事件去重依赖这一行为。
func InitMySQL(dsn string) {
	var err error
	DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		log.Fatal("连接 MySQL 失败", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatal("获取底层数据库连接失败", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("MySQL 连接成功")
}
