package model

import (
	"time"

	"gorm.io/datatypes"
)

// SeenEvent 已处理过的平台事件。EventID 上的唯一索引是去重的
// 最终裁决：并发插入同一事件时只有一条能成功。
// Content 保存事件原始报文，仅用于排查问题，可以为空。
type SeenEvent struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	EventID   string         `gorm:"type:varchar(64);uniqueIndex:uk_event_id;not null" json:"event_id"`
	Content   datatypes.JSON `json:"content"`
	CreatedAt time.Time      `json:"created_at"`
}

// TableName 指定表名
func (SeenEvent) TableName() string {
	return "seen_events"
}
