// Package model 定义数据库表对应的数据模型。
package model

import "time"

// ConversationTurn 会话历史中的一轮问答。
// Size 在写入时计算并落库，裁剪历史时直接累加该列，
// 不需要重新扫描问答正文。
type ConversationTurn struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	SessionID string    `gorm:"type:varchar(128);index;not null" json:"session_id"`
	Question  string    `gorm:"type:text;not null" json:"question"`
	Answer    string    `gorm:"type:text;not null" json:"answer"`
	Size      int       `gorm:"not null" json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName 指定表名
func (ConversationTurn) TableName() string {
	return "conversation_turns"
}
