package model

import (
	"time"
)

// Task 合同里程碑任务，按百分比加权
type Task struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ContractID  uint    `json:"contract_id" gorm:"not null;index"`
	Heading     string  `json:"heading" gorm:"not null"`
	Description string  `json:"description" gorm:"type:text;not null"`
	Percentage  float64 `json:"percentage" gorm:"default:0"` // 创建后由完成状态派生：完成=100，未完成=0
	IsCompleted bool    `json:"is_completed" gorm:"default:false"`
}

// TableName 自定义表名
func (Task) TableName() string {
	return "contract_task"
}
