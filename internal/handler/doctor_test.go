package handler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"lark-relay-go/internal/config"
)

func setDoctorConfig(appID, appSecret, llmURL string) {
	config.Conf.Lark.AppID = appID
	config.Conf.Lark.AppSecret = appSecret
	config.Conf.LLM.URL = llmURL
}

func TestRunDoctor_MissingAppID(t *testing.T) {
	setDoctorConfig("", "secret", "http://llm.local/query")
	verdict := runDoctor()
	require.Equal(t, 1, verdict.Code)
	require.Contains(t, verdict.Message.EnUS, "APP_ID")
	require.NotEmpty(t, verdict.Message.ZhCN)
}

func TestRunDoctor_MalformedAppID(t *testing.T) {
	setDoctorConfig("app_12345", "secret", "http://llm.local/query")
	verdict := runDoctor()
	require.Equal(t, 1, verdict.Code)
	require.Contains(t, verdict.Message.EnUS, "cli_")
}

func TestRunDoctor_MissingAppSecret(t *testing.T) {
	setDoctorConfig("cli_12345", "", "http://llm.local/query")
	verdict := runDoctor()
	require.Equal(t, 1, verdict.Code)
	require.Contains(t, verdict.Message.EnUS, "APP_SECRET")
}

func TestRunDoctor_MissingLLMURL(t *testing.T) {
	setDoctorConfig("cli_12345", "secret", "")
	verdict := runDoctor()
	require.Equal(t, 1, verdict.Code)
	require.Contains(t, verdict.Message.EnUS, "LLM_URL")
}

func TestRunDoctor_InvalidLLMURL(t *testing.T) {
	setDoctorConfig("cli_12345", "secret", "not a url")
	verdict := runDoctor()
	require.Equal(t, 1, verdict.Code)
	require.Contains(t, verdict.Message.EnUS, "not a valid url")
}

func TestRunDoctor_Ready(t *testing.T) {
	setDoctorConfig("cli_12345", "secret", "http://llm.local/query")
	verdict := runDoctor()
	require.Equal(t, 0, verdict.Code)
	require.NotEmpty(t, verdict.Message.ZhCN)
	require.NotEmpty(t, verdict.Message.EnUS)
}
