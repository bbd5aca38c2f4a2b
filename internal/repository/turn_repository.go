// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"lark-relay-go/internal/model"
)

// historyBudget 单个会话历史的总字节预算，超出部分从最旧的轮次开始删除。
const historyBudget = 1024

// ErrEmptyMessage 问题或回答为空字符串时返回。
var ErrEmptyMessage = errors.New("question and answer must not be empty")

// TurnRepository 定义了会话历史的持久化操作接口。
type TurnRepository interface {
	Append(ctx context.Context, sessionID, question, answer string) error
	History(ctx context.Context, sessionID string) ([]model.ConversationTurn, error)
	Clear(ctx context.Context, sessionID string) error
}

// turnRepository 是 TurnRepository 接口的 GORM 实现。
type turnRepository struct {
	db *gorm.DB
}

// NewTurnRepository 创建一个新的 TurnRepository 实例。
func NewTurnRepository(db *gorm.DB) TurnRepository {
	return &turnRepository{db: db}
}

// Append 追加一轮问答，然后立刻裁剪该会话超出预算的历史。
// 插入和裁剪是两条独立语句，不放在同一个事务里。
func (r *turnRepository) Append(ctx context.Context, sessionID, question, answer string) error {
	if question == "" || answer == "" {
		return ErrEmptyMessage
	}

	turn := &model.ConversationTurn{
		SessionID: sessionID,
		Question:  question,
		Answer:    answer,
		Size:      len(question) + len(answer),
	}
	if err := r.db.WithContext(ctx).Create(turn).Error; err != nil {
		return fmt.Errorf("failed to append conversation turn: %w", err)
	}

	return r.trim(ctx, sessionID)
}

// trim 从最新一轮开始累加 Size，累计值一旦超过预算，
// 该轮连同更旧的所有轮次全部逐条删除。
func (r *turnRepository) trim(ctx context.Context, sessionID string) error {
	var turns []model.ConversationTurn
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at desc, id desc").
		Find(&turns).Error
	if err != nil {
		return fmt.Errorf("failed to load turns for trim: %w", err)
	}

	total := 0
	for _, turn := range turns {
		total += turn.Size
		if total > historyBudget {
			if err := r.db.WithContext(ctx).Delete(&model.ConversationTurn{}, turn.ID).Error; err != nil {
				return fmt.Errorf("failed to trim conversation turn %d: %w", turn.ID, err)
			}
		}
	}
	return nil
}

// History 按时间升序返回一个会话的全部历史轮次。
func (r *turnRepository) History(ctx context.Context, sessionID string) ([]model.ConversationTurn, error) {
	var turns []model.ConversationTurn
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at asc, id asc").
		Find(&turns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation history: %w", err)
	}
	return turns, nil
}

// Clear 删除一个会话的全部历史。会话不存在时也正常返回。
func (r *turnRepository) Clear(ctx context.Context, sessionID string) error {
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&model.ConversationTurn{}).Error
	if err != nil {
		return fmt.Errorf("failed to clear conversation history: %w", err)
	}
	return nil
}
