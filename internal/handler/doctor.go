package handler

import (
	"net/url"
	"strings"

	"lark-relay-go/internal/config"
)

// doctorMessage 自检结果的双语描述。
type doctorMessage struct {
	ZhCN string `json:"zh_CN"`
	EnUS string `json:"en_US"`
}

// doctorVerdict 自检结果。Code 为 0 表示配置就绪，为 1 表示存在配置问题。
type doctorVerdict struct {
	Code    int           `json:"code"`
	Message doctorMessage `json:"message"`
}

// runDoctor 逐项检查关键配置，返回第一个发现的问题。
// 配置问题只报告给调用方，不会让进程退出。
func runDoctor() doctorVerdict {
	larkCfg := config.Conf.Lark

	if larkCfg.AppID == "" {
		return doctorVerdict{Code: 1, Message: doctorMessage{
			ZhCN: "缺少 APP_ID 配置，请设置飞书应用的 App ID",
			EnUS: "APP_ID is missing, set your app id in the config file or environment",
		}}
	}
	if !strings.HasPrefix(larkCfg.AppID, "cli_") {
		return doctorVerdict{Code: 1, Message: doctorMessage{
			ZhCN: "APP_ID 格式不正确，应以 cli_ 开头",
			EnUS: "APP_ID is malformed, a valid app id starts with cli_",
		}}
	}
	if larkCfg.AppSecret == "" {
		return doctorVerdict{Code: 1, Message: doctorMessage{
			ZhCN: "缺少 APP_SECRET 配置，请设置飞书应用的 App Secret",
			EnUS: "APP_SECRET is missing, set your app secret in the config file or environment",
		}}
	}

	llmURL := config.Conf.LLM.URL
	if llmURL == "" {
		return doctorVerdict{Code: 1, Message: doctorMessage{
			ZhCN: "缺少 LLM_URL 配置，请设置下游问答服务地址",
			EnUS: "LLM_URL is missing, set the downstream query endpoint",
		}}
	}
	if _, err := url.ParseRequestURI(llmURL); err != nil {
		return doctorVerdict{Code: 1, Message: doctorMessage{
			ZhCN: "LLM_URL 不是合法的地址: " + llmURL,
			EnUS: "LLM_URL is not a valid url: " + llmURL,
		}}
	}

	return doctorVerdict{Code: 0, Message: doctorMessage{
		ZhCN: "✅ 配置检查通过，服务已就绪",
		EnUS: "Configuration looks good, the service is ready",
	}}
}
