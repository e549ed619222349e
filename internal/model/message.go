package model

import (
	"time"
)

// MessageKind 消息类型
type MessageKind string

const (
	MessageKindText     MessageKind = "text"     // 普通消息
	MessageKindContract MessageKind = "contract" // 携带合同引用的消息
)

// Message 会话消息。消息主体由外部消息服务维护，
// 这里只保留合同删除时需要原子清理的反向引用字段。
type Message struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Body       string      `json:"body" gorm:"type:text"`
	Kind       MessageKind `json:"kind" gorm:"default:'text'"`
	ContractID *uint       `json:"contract_id" gorm:"index"`
}

// TableName 自定义表名
func (Message) TableName() string {
	return "message"
}
