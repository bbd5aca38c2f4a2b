// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"

	"lark-relay-go/internal/repository"
	"lark-relay-go/pkg/llm"
)

// ChatService 定义了会话问答的业务接口。
type ChatService interface {
	// BuildPrompt 把会话历史和新问题组装成发给下游的消息列表。
	BuildPrompt(ctx context.Context, sessionID, question string) ([]llm.Message, error)
	// Converse 完成一轮问答：组装上下文、请求下游、落库并返回回答。
	Converse(ctx context.Context, sessionID, question string) (string, error)
	// ClearSession 清空一个会话的全部历史。
	ClearSession(ctx context.Context, sessionID string) error
}

type chatService struct {
	turnRepo  repository.TurnRepository
	llmClient llm.Client
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(turnRepo repository.TurnRepository, llmClient llm.Client) ChatService {
	return &chatService{
		turnRepo:  turnRepo,
		llmClient: llmClient,
	}
}

// BuildPrompt 按时间顺序把每轮历史展开成一条 user 消息加一条 assistant
// 消息，最后追加本次的新问题。这里不做截断，历史大小由存储层的裁剪控制。
func (s *chatService) BuildPrompt(ctx context.Context, sessionID, question string) ([]llm.Message, error) {
	history, err := s.turnRepo.History(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}

	messages := make([]llm.Message, 0, len(history)*2+1)
	for _, turn := range history {
		messages = append(messages, llm.Message{Role: "user", Content: turn.Question})
		messages = append(messages, llm.Message{Role: "assistant", Content: turn.Answer})
	}
	messages = append(messages, llm.Message{Role: "user", Content: question})
	return messages, nil
}

// Converse 执行一轮完整的问答。
func (s *chatService) Converse(ctx context.Context, sessionID, question string) (string, error) {
	// 1. 组装上下文
	messages, err := s.BuildPrompt(ctx, sessionID, question)
	if err != nil {
		return "", err
	}

	// 2. 请求下游问答服务，失败时不写任何历史
	answer, err := s.llmClient.Query(ctx, messages, sessionID)
	if err != nil {
		return "", err
	}

	// 3. 落库并裁剪历史
	if err := s.turnRepo.Append(ctx, sessionID, question, answer); err != nil {
		return "", fmt.Errorf("failed to persist conversation turn: %w", err)
	}

	return answer, nil
}

// ClearSession 清空一个会话的历史。
func (s *chatService) ClearSession(ctx context.Context, sessionID string) error {
	return s.turnRepo.Clear(ctx, sessionID)
}
