// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// 全局配置变量，存储加载完成的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体。
// 所有键都可以通过环境变量提供（如 server.port -> SERVER_PORT），
// 配置文件是可选的补充。
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Lark     LarkConfig     `mapstructure:"lark"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig 存储 HTTP 服务相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有存储端连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。Addr 为空时跳过 Redis，仅使用数据库。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LarkConfig 存储飞书开放平台应用的配置。
type LarkConfig struct {
	AppID     string `mapstructure:"app_id"`
	AppSecret string `mapstructure:"app_secret"`
	APIBase   string `mapstructure:"api_base"`
	BotName   string `mapstructure:"bot_name"`
}

// LLMConfig 存储下游模型问答服务的配置。
type LLMConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// Init 初始化配置加载。优先级：环境变量 > 配置文件 > 默认值。
// configPath 指向的文件不存在时不报错，直接以环境变量和默认值运行。
func Init(configPath string) {
	setDefaults()

	// 让 server.port 这样的键能映射到 SERVER_PORT 环境变量
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	bindAliases()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			viper.SetConfigFile(configPath)
			viper.SetConfigType("yaml")
			if err := viper.ReadInConfig(); err != nil {
				panic(fmt.Errorf("读取配置文件失败: %w", err))
			}
		}
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}
}

// setDefaults 为每个键注册默认值，同时也让 viper 在纯环境变量
// 模式下能够识别这些键。
func setDefaults() {
	viper.SetDefault("server.port", "9000")
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("database.mysql.dsn", "")
	viper.SetDefault("database.redis.addr", "")
	viper.SetDefault("database.redis.password", "")
	viper.SetDefault("database.redis.db", 0)
	viper.SetDefault("lark.app_id", "")
	viper.SetDefault("lark.app_secret", "")
	viper.SetDefault("lark.api_base", "https://open.feishu.cn/open-apis")
	viper.SetDefault("lark.bot_name", "")
	viper.SetDefault("llm.url", "")
	viper.SetDefault("llm.api_key", "")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "json")
	viper.SetDefault("log.output_path", "")
}

// bindAliases 兼容部署文档中的简写环境变量名。
func bindAliases() {
	_ = viper.BindEnv("server.port", "SERVER_PORT", "PORT")
	_ = viper.BindEnv("database.mysql.dsn", "DATABASE_MYSQL_DSN", "DATABASE_DSN")
	_ = viper.BindEnv("lark.app_id", "LARK_APP_ID", "APP_ID")
	_ = viper.BindEnv("lark.app_secret", "LARK_APP_SECRET", "APP_SECRET")
	_ = viper.BindEnv("llm.url", "LLM_URL")
	_ = viper.BindEnv("llm.api_key", "LLM_API_KEY")
}
