package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DisputeStatus 纠纷状态
type DisputeStatus string

const (
	DisputeStatusPending     DisputeStatus = "pending"      // 待受理
	DisputeStatusUnderReview DisputeStatus = "under_review" // 审理中
	DisputeStatusResolved    DisputeStatus = "resolved"     // 已裁决
)

// DisputeWinner 裁决胜方
type DisputeWinner string

const (
	DisputeWinnerClient     DisputeWinner = "client"
	DisputeWinnerFreelancer DisputeWinner = "freelancer"
	DisputeWinnerNone       DisputeWinner = "none"
)

// Dispute 合同纠纷。陪审团抽取与计票不在本服务范围内，
// 这里只做记录与状态流转。
type Dispute struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	ContractID   uint   `json:"contract_id" gorm:"not null;index"`
	ClientID     uint   `json:"client_id" gorm:"not null"`
	FreelancerID uint   `json:"freelancer_id" gorm:"not null"`
	IssueDesc    string `json:"issue_description" gorm:"type:text;not null"`

	Status DisputeStatus `json:"status" gorm:"default:'pending'"`
	Winner DisputeWinner `json:"winner" gorm:"default:'none'"`

	Votes []DisputeVote `json:"votes,omitempty" gorm:"foreignKey:DisputeID"`
}

// BeforeCreate 生成纠纷ID
func (d *Dispute) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// TableName 自定义表名
func (Dispute) TableName() string {
	return "dispute"
}

// DisputeVote 陪审员投票记录
type DisputeVote struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	DisputeID uuid.UUID     `json:"dispute_id" gorm:"type:uuid;not null;index"`
	JurorID   uint          `json:"juror_id" gorm:"not null"`
	VotedFor  DisputeWinner `json:"voted_for" gorm:"not null"`
	Comment   string        `json:"comment" gorm:"type:text"`
}

// TableName 自定义表名
func (DisputeVote) TableName() string {
	return "dispute_vote"
}
