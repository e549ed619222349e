package model

import (
	"time"

	"gorm.io/gorm"

	"github.com/blues/fms/internal/errs"
)

// Contract 合同聚合根。任务清单作为内嵌值整体随合同读写，
// 依赖单文档级别的原子性，不单独维护任务侧事务。
type Contract struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// 参与方，创建后不可变更
	ClientID     uint `json:"client_id" gorm:"not null;index"`
	FreelancerID uint `json:"freelancer_id" gorm:"not null;index"`

	// 条款
	Description string  `json:"description" gorm:"type:text;not null" binding:"required"`
	Amount      float64 `json:"amount" gorm:"not null" binding:"required,gt=0"`
	AmountPaid  float64 `json:"amount_paid" gorm:"default:0"`

	// 状态，均为单向迁移 false→true
	IsApproved  bool `json:"is_approved" gorm:"default:false"`
	IsCompleted bool `json:"is_completed" gorm:"default:false"`

	// 审计
	CreatedBy     uint `json:"created_by"`
	CreatedByRole Role `json:"created_by_role"`
	UpdatedBy     uint `json:"updated_by"`
	UpdatedByRole Role `json:"updated_by_role"`

	// 链上托管项目ID，由运营侧创建托管项目后回填
	OnChainProjectID *uint64 `json:"on_chain_project_id"`

	// 关联
	Tasks []Task `json:"tasks" gorm:"foreignKey:ContractID"`
}

// TableName 自定义表名
func (Contract) TableName() string {
	return "contract"
}

// IsParticipant 判断指定参与方是否为合同一方
func (c *Contract) IsParticipant(role Role, id uint) bool {
	switch role {
	case RoleClient:
		return c.ClientID == id
	case RoleFreelancer:
		return c.FreelancerID == id
	default:
		return false
	}
}

// IsClientParty 判断操作者是否为合同雇主方
func (c *Contract) IsClientParty(role Role, id uint) bool {
	return role == RoleClient && c.ClientID == id
}

// FindTask 按ID定位任务
func (c *Contract) FindTask(taskID uint) *Task {
	for i := range c.Tasks {
		if c.Tasks[i].ID == taskID {
			return &c.Tasks[i]
		}
	}
	return nil
}

// ToggleOutcome 任务勾选结果
type ToggleOutcome struct {
	Task *Task // 被勾选的任务，已应用新状态
	// WouldCompleteAll 本次勾选是否会使全部任务完成，
	// 为 true 时调用方需要走确认门再落库
	WouldCompleteAll bool
}

// ToggleTask 勾选/取消勾选任务。完成状态强制派生百分比：完成=100，未完成=0。
// 只修改内存中的聚合，持久化由调用方决定。
func (c *Contract) ToggleTask(taskID uint, completed bool) (*ToggleOutcome, error) {
	task := c.FindTask(taskID)
	if task == nil {
		return nil, errs.NotFound("task %d not found", taskID)
	}

	otherCompleted := 0
	for i := range c.Tasks {
		if c.Tasks[i].ID != taskID && c.Tasks[i].IsCompleted {
			otherCompleted++
		}
	}

	task.IsCompleted = completed
	if completed {
		task.Percentage = 100
	} else {
		task.Percentage = 0
	}

	return &ToggleOutcome{
		Task:             task,
		WouldCompleteAll: completed && otherCompleted == len(c.Tasks)-1,
	}, nil
}

// AllTasksCompleted 全部任务是否完成。空任务清单空真，
// 是否据此触发合同完成由状态机把关，这里不做判断。
func (c *Contract) AllTasksCompleted() bool {
	for i := range c.Tasks {
		if !c.Tasks[i].IsCompleted {
			return false
		}
	}
	return true
}

// TaskPercentageTotal 任务百分比合计
func (c *Contract) TaskPercentageTotal() float64 {
	var total float64
	for i := range c.Tasks {
		total += c.Tasks[i].Percentage
	}
	return total
}

// CompletionPercentage 已完成任务的权重合计，用于同步链上进度
func (c *Contract) CompletionPercentage() float64 {
	var total float64
	for i := range c.Tasks {
		if c.Tasks[i].IsCompleted {
			total += c.Tasks[i].Percentage
		}
	}
	return total
}
