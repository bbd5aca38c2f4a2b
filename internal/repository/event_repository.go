package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"lark-relay-go/internal/model"
)

// seenEventTTL Redis 去重标记的过期时间。标记只是加速用，
// 过期后回落到数据库唯一索引，不影响正确性。
const seenEventTTL = 7 * 24 * time.Hour

// RecordOutcome 表示一次事件登记的结果，仅在 error 为 nil 时有意义。
type RecordOutcome int

const (
	// RecordInserted 事件第一次出现，登记成功。
	RecordInserted RecordOutcome = iota
	// RecordDuplicate 事件已经登记过，本次没有写入。
	RecordDuplicate
)

// EventRepository 定义了事件去重账本的操作接口。
type EventRepository interface {
	RecordIfNew(ctx context.Context, eventID, content string) (RecordOutcome, error)
	Exists(ctx context.Context, eventID string) (bool, error)
}

// eventRepository 是 EventRepository 接口的 GORM+Redis 实现。
// redisClient 为 nil 时跳过缓存，退化为纯数据库查询。
type eventRepository struct {
	db          *gorm.DB
	redisClient *redis.Client
}

// NewEventRepository 创建一个新的 EventRepository 实例。
func NewEventRepository(db *gorm.DB, redisClient *redis.Client) EventRepository {
	return &eventRepository{db: db, redisClient: redisClient}
}

// seenKey generates the redis key for the dedup marker.
func (r *eventRepository) seenKey(eventID string) string {
	return "seen_event:" + eventID
}

// RecordIfNew 尝试登记一个事件。并发或重复投递撞上唯一索引时
// 返回 RecordDuplicate 而不是错误。content 为空时存 NULL。
func (r *eventRepository) RecordIfNew(ctx context.Context, eventID, content string) (RecordOutcome, error) {
	record := &model.SeenEvent{EventID: eventID}
	if content != "" {
		record.Content = datatypes.JSON(content)
	}

	err := r.db.WithContext(ctx).Create(record).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return RecordDuplicate, nil
	}
	if err != nil {
		return RecordInserted, fmt.Errorf("failed to record event %s: %w", eventID, err)
	}

	r.markSeen(ctx, eventID)
	return RecordInserted, nil
}

// Exists 查询事件是否已经登记过。优先查 Redis 标记，
// 未命中或 Redis 不可用时回查数据库，并把命中结果回填到标记里。
func (r *eventRepository) Exists(ctx context.Context, eventID string) (bool, error) {
	if r.redisClient != nil {
		n, err := r.redisClient.Exists(ctx, r.seenKey(eventID)).Result()
		if err == nil && n > 0 {
			return true, nil
		}
	}

	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.SeenEvent{}).
		Where("event_id = ?", eventID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check event %s: %w", eventID, err)
	}
	if count > 0 {
		r.markSeen(ctx, eventID)
		return true, nil
	}
	return false, nil
}

// markSeen 写入 Redis 快速标记。写入失败直接忽略，唯一索引仍然兜底。
func (r *eventRepository) markSeen(ctx context.Context, eventID string) {
	if r.redisClient == nil {
		return
	}
	_ = r.redisClient.Set(ctx, r.seenKey(eventID), 1, seenEventTTL).Err()
}
