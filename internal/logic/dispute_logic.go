package logic

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/blues/fms/internal/errs"
	"github.com/blues/fms/internal/model"
)

// CreateDisputeInput 发起纠纷输入
type CreateDisputeInput struct {
	ContractID uint   `json:"contract_id" binding:"required"`
	IssueDesc  string `json:"issue_description" binding:"required"`
}

// DisputeLogic 纠纷记录。陪审团抽取与计票由外部流程负责，
// 这里只维护记录、投票与状态流转。
type DisputeLogic struct {
	db *gorm.DB
}

// NewDisputeLogic 创建纠纷业务逻辑
func NewDisputeLogic(db *gorm.DB) *DisputeLogic {
	return &DisputeLogic{db: db}
}

// Create 发起纠纷，发起者必须是合同一方
func (l *DisputeLogic) Create(input *CreateDisputeInput, actor Actor) (*model.Dispute, error) {
	if input.IssueDesc == "" {
		return nil, errs.Validation("issue description is required")
	}

	var contract model.Contract
	if err := l.db.First(&contract, input.ContractID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("contract %d not found", input.ContractID)
		}
		return nil, err
	}
	if !contract.IsParticipant(actor.Role, actor.ID) {
		return nil, errs.Forbidden("only a participant may raise a dispute")
	}

	dispute := &model.Dispute{
		ContractID:   contract.ID,
		ClientID:     contract.ClientID,
		FreelancerID: contract.FreelancerID,
		IssueDesc:    input.IssueDesc,
		Status:       model.DisputeStatusPending,
		Winner:       model.DisputeWinnerNone,
	}
	if err := l.db.Create(dispute).Error; err != nil {
		return nil, err
	}
	return dispute, nil
}

// Get 读取纠纷（含投票）
func (l *DisputeLogic) Get(id uuid.UUID) (*model.Dispute, error) {
	var dispute model.Dispute
	if err := l.db.Preload("Votes").First(&dispute, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("dispute %s not found", id)
		}
		return nil, err
	}
	return &dispute, nil
}

// AddVote 记录一张陪审员投票，首票把状态推进到审理中。
// 计票不在这里做。
func (l *DisputeLogic) AddVote(id uuid.UUID, jurorID uint, votedFor model.DisputeWinner, comment string) (*model.Dispute, error) {
	if votedFor != model.DisputeWinnerClient && votedFor != model.DisputeWinnerFreelancer {
		return nil, errs.Validation("voted_for must be client or freelancer")
	}

	dispute, err := l.Get(id)
	if err != nil {
		return nil, err
	}
	if dispute.Status == model.DisputeStatusResolved {
		return nil, errs.InvalidState("dispute %s is already resolved", id)
	}

	if err := l.db.Transaction(func(tx *gorm.DB) error {
		vote := model.DisputeVote{
			DisputeID: dispute.ID,
			JurorID:   jurorID,
			VotedFor:  votedFor,
			Comment:   comment,
		}
		if err := tx.Create(&vote).Error; err != nil {
			return err
		}
		dispute.Votes = append(dispute.Votes, vote)
		if dispute.Status == model.DisputeStatusPending {
			dispute.Status = model.DisputeStatusUnderReview
			return tx.Omit("Votes").Save(dispute).Error
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return dispute, nil
}

// Resolve 裁决纠纷
func (l *DisputeLogic) Resolve(id uuid.UUID, winner model.DisputeWinner) (*model.Dispute, error) {
	switch winner {
	case model.DisputeWinnerClient, model.DisputeWinnerFreelancer, model.DisputeWinnerNone:
	default:
		return nil, errs.Validation("winner must be client, freelancer or none")
	}

	dispute, err := l.Get(id)
	if err != nil {
		return nil, err
	}
	if dispute.Status == model.DisputeStatusResolved {
		return nil, errs.InvalidState("dispute %s is already resolved", id)
	}

	dispute.Status = model.DisputeStatusResolved
	dispute.Winner = winner
	if err := l.db.Omit("Votes").Save(dispute).Error; err != nil {
		return nil, err
	}
	return dispute, nil
}

// ListByContract 某合同下的全部纠纷
func (l *DisputeLogic) ListByContract(contractID uint) ([]model.Dispute, error) {
	var disputes []model.Dispute
	if err := l.db.Preload("Votes").
		Where("contract_id = ?", contractID).
		Order("created_at DESC").
		Find(&disputes).Error; err != nil {
		return nil, err
	}
	return disputes, nil
}
