package logic

import (
	"errors"
	"math"

	"gorm.io/gorm"

	"github.com/blues/fms/internal/errs"
	"github.com/blues/fms/internal/logger"
	"github.com/blues/fms/internal/model"
	"github.com/blues/fms/internal/notify"
)

// 任务百分比合计的浮点容差
const percentageTolerance = 0.001

// Actor 经过上游认证的操作者身份，核心直接信任
type Actor struct {
	ID   uint
	Role model.Role
}

// TaskInput 任务输入
type TaskInput struct {
	Heading     string  `json:"heading" binding:"required"`
	Description string  `json:"description" binding:"required"`
	Percentage  float64 `json:"percentage"`
}

// CreateContractInput 创建合同输入
type CreateContractInput struct {
	Description  string      `json:"description" binding:"required"`
	Amount       float64     `json:"amount" binding:"required"`
	ClientID     uint        `json:"client_id" binding:"required"`
	FreelancerID uint        `json:"freelancer_id" binding:"required"`
	Tasks        []TaskInput `json:"tasks"`
}

// EditTermsInput 条款修改输入，仅限描述和金额
type EditTermsInput struct {
	Description *string  `json:"description"`
	Amount      *float64 `json:"amount"`
}

// ToggleResult 任务勾选结果。RequiresConfirmation 是带待办的成功响应，
// 不是错误：最后一个任务的勾选必须带 confirmed_final 重新提交才会落库。
type ToggleResult struct {
	RequiresConfirmation bool            `json:"requires_confirmation"`
	IsContractCompleted  bool            `json:"is_contract_completed"`
	Task                 *model.Task     `json:"task,omitempty"`
	AmountPaid           float64         `json:"amount_paid"`
	Contract             *model.Contract `json:"contract,omitempty"`
}

// ContractLogic 合同状态机：Proposed → Approved → Completed。
// 所有迁移在这里做权限和不变量校验，再落库、再（尽力而为地）推送通知。
type ContractLogic struct {
	db       *gorm.DB
	parties  *PartyLogic
	notifier notify.Notifier
}

// NewContractLogic 创建合同业务逻辑
func NewContractLogic(db *gorm.DB, notifier notify.Notifier) *ContractLogic {
	return &ContractLogic{
		db:       db,
		parties:  NewPartyLogic(db),
		notifier: notifier,
	}
}

// Create 创建合同。初始任务的百分比合计必须为 100（容差 0.001）——
// 注意这条严格校验只存在于创建路径，后补任务的 AddTasks 不做（见下）。
func (l *ContractLogic) Create(input *CreateContractInput, actor Actor) (*model.Contract, error) {
	if input.Description == "" {
		return nil, errs.Validation("description is required")
	}
	if input.Amount <= 0 {
		return nil, errs.Validation("amount must be positive")
	}

	// 双方必须存在
	if _, err := l.parties.Resolve(model.RoleClient, input.ClientID); err != nil {
		return nil, err
	}
	if _, err := l.parties.Resolve(model.RoleFreelancer, input.FreelancerID); err != nil {
		return nil, err
	}

	// 初始任务校验
	if len(input.Tasks) > 0 {
		var total float64
		for _, t := range input.Tasks {
			if t.Heading == "" || t.Description == "" {
				return nil, errs.Validation("each task requires heading and description")
			}
			if t.Percentage < 0 || t.Percentage > 100 {
				return nil, errs.Validation("task percentage must be between 0 and 100")
			}
			total += t.Percentage
		}
		if math.Abs(total-100) > percentageTolerance {
			return nil, errs.Validation("Task percentages must add up to 100%%")
		}
	}

	contract := &model.Contract{
		ClientID:      input.ClientID,
		FreelancerID:  input.FreelancerID,
		Description:   input.Description,
		Amount:        input.Amount,
		CreatedBy:     actor.ID,
		CreatedByRole: actor.Role,
		UpdatedBy:     actor.ID,
		UpdatedByRole: actor.Role,
	}
	for _, t := range input.Tasks {
		contract.Tasks = append(contract.Tasks, model.Task{
			Heading:     t.Heading,
			Description: t.Description,
			Percentage:  t.Percentage,
			IsCompleted: false,
		})
	}

	// 合同与任务一并落库
	if err := l.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(contract).Error
	}); err != nil {
		return nil, err
	}

	l.notifier.Notify(model.PartyKey(model.RoleClient, contract.ClientID),
		notify.EventContractAdded, contract)

	return contract, nil
}

// Get 获取合同，仅限合同双方
func (l *ContractLogic) Get(id uint, actor Actor) (*model.Contract, error) {
	contract, err := l.load(id)
	if err != nil {
		return nil, err
	}
	if !contract.IsParticipant(actor.Role, actor.ID) {
		return nil, errs.Forbidden("not a participant of contract %d", id)
	}
	return contract, nil
}

// ListByUser 获取某用户的全部合同，仅限本人
func (l *ContractLogic) ListByUser(userID uint, actor Actor) ([]model.Contract, error) {
	if actor.ID != userID {
		return nil, errs.Forbidden("may only list own contracts")
	}
	return l.list(actor, l.db)
}

// ListActive 已批准且未完成
func (l *ContractLogic) ListActive(actor Actor) ([]model.Contract, error) {
	return l.list(actor, l.db.Where("is_approved = ? AND is_completed = ?", true, false))
}

// ListCompleted 已完成
func (l *ContractLogic) ListCompleted(actor Actor) ([]model.Contract, error) {
	return l.list(actor, l.db.Where("is_completed = ?", true))
}

// ListPending 待批准
func (l *ContractLogic) ListPending(actor Actor) ([]model.Contract, error) {
	return l.list(actor, l.db.Where("is_approved = ?", false))
}

// Approve 批准合同，仅限雇主方。注意：这条单一用途的批准路径
// 刻意不发 acceptProposal 通知；另一条 EditTerms 路径会发。
// 两个入口副作用不一致是既有行为，未经产品决策前不合并。
func (l *ContractLogic) Approve(id uint, actor Actor) (*model.Contract, error) {
	contract, err := l.load(id)
	if err != nil {
		return nil, err
	}
	if !contract.IsClientParty(actor.Role, actor.ID) {
		return nil, errs.Forbidden("only the client may approve a contract")
	}
	if contract.IsApproved {
		return nil, errs.InvalidState("contract %d is already approved", id)
	}

	contract.IsApproved = true
	contract.UpdatedBy = actor.ID
	contract.UpdatedByRole = actor.Role

	if err := l.db.Omit("Tasks").Save(contract).Error; err != nil {
		return nil, err
	}
	return contract, nil
}

// EditTerms 修改条款，仅限未批准的合同，且操作者不能是自由职业者方。
// 按既有语义，对方修改条款即视为批准：这里会顺带把 IsApproved 置位，
// 并向自由职业者推送 acceptProposal。
func (l *ContractLogic) EditTerms(id uint, input *EditTermsInput, actor Actor) (*model.Contract, error) {
	contract, err := l.load(id)
	if err != nil {
		return nil, err
	}
	if actor.Role == model.RoleFreelancer {
		return nil, errs.Forbidden("freelancer may not edit contract terms")
	}
	if !contract.IsParticipant(actor.Role, actor.ID) {
		return nil, errs.Forbidden("not a participant of contract %d", id)
	}
	if contract.IsApproved {
		return nil, errs.InvalidState("approved contract terms may not be edited")
	}
	if input.Description == nil && input.Amount == nil {
		return nil, errs.Validation("nothing to update")
	}

	amountChanged := false
	if input.Description != nil {
		if *input.Description == "" {
			return nil, errs.Validation("description is required")
		}
		contract.Description = *input.Description
	}
	if input.Amount != nil {
		if *input.Amount <= 0 {
			return nil, errs.Validation("amount must be positive")
		}
		amountChanged = contract.Amount != *input.Amount
		contract.Amount = *input.Amount
	}

	contract.IsApproved = true
	contract.UpdatedBy = actor.ID
	contract.UpdatedByRole = actor.Role

	if err := l.db.Omit("Tasks").Save(contract).Error; err != nil {
		return nil, err
	}

	freelancerKey := model.PartyKey(model.RoleFreelancer, contract.FreelancerID)
	if amountChanged {
		l.notifier.Notify(freelancerKey, notify.EventUpdatedAmount, contract)
	}
	l.notifier.Notify(freelancerKey, notify.EventAcceptProposal, contract)

	return contract, nil
}

// AddTasks 批量追加任务，前置条件是合同已批准。
// 这里会算出现有+新增的百分比合计，但合计 ≠ 100 并不会被拒绝——
// 严格校验只在创建合同时做。这是既有设计的不对称（疑似疏漏），
// 为保持行为兼容原样保留，只记一条告警日志。
func (l *ContractLogic) AddTasks(id uint, tasks []TaskInput, actor Actor) (*model.Contract, error) {
	contract, err := l.load(id)
	if err != nil {
		return nil, err
	}
	if !contract.IsApproved {
		return nil, errs.InvalidState("tasks may only be added to an approved contract")
	}
	if len(tasks) == 0 {
		return nil, errs.Validation("at least one task is required")
	}

	currentPercentage := contract.TaskPercentageTotal()
	var newTasksPercentage float64
	for _, t := range tasks {
		if t.Heading == "" || t.Description == "" {
			return nil, errs.Validation("each task requires heading and description")
		}
		if t.Percentage < 0 || t.Percentage > 100 {
			return nil, errs.Validation("task percentage must be between 0 and 100")
		}
		newTasksPercentage += t.Percentage
	}

	if total := currentPercentage + newTasksPercentage; math.Abs(total-100) > percentageTolerance {
		logger.Warn("contract %d task percentages total %.3f after add, not 100", id, total)
	}

	if err := l.db.Transaction(func(tx *gorm.DB) error {
		for _, t := range tasks {
			task := model.Task{
				ContractID:  contract.ID,
				Heading:     t.Heading,
				Description: t.Description,
				Percentage:  t.Percentage,
				IsCompleted: false,
			}
			if err := tx.Create(&task).Error; err != nil {
				return err
			}
			contract.Tasks = append(contract.Tasks, task)
		}
		contract.UpdatedBy = actor.ID
		contract.UpdatedByRole = actor.Role
		return tx.Omit("Tasks").Save(contract).Error
	}); err != nil {
		return nil, err
	}

	return contract, nil
}

// ToggleTask 勾选/取消勾选任务，仅限雇主方。
// 勾选最后一个未完成任务时走确认门：confirmedFinal 为假则不落库，
// 返回 RequiresConfirmation 让调用方重新提交。
func (l *ContractLogic) ToggleTask(taskID uint, completed, confirmedFinal bool, actor Actor) (*ToggleResult, error) {
	var task model.Task
	if err := l.db.First(&task, taskID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("task %d not found", taskID)
		}
		return nil, err
	}

	contract, err := l.load(task.ContractID)
	if err != nil {
		return nil, err
	}
	if !contract.IsClientParty(actor.Role, actor.ID) {
		return nil, errs.Forbidden("only the client may toggle tasks")
	}

	outcome, err := contract.ToggleTask(taskID, completed)
	if err != nil {
		return nil, err
	}

	// 确认门：最后一次勾选需要显式确认，先不落库
	if outcome.WouldCompleteAll && !confirmedFinal {
		return &ToggleResult{
			RequiresConfirmation: true,
			Task:                 outcome.Task,
			AmountPaid:           contract.AmountPaid,
		}, nil
	}

	contract.UpdatedBy = actor.ID
	contract.UpdatedByRole = actor.Role
	if err := l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(outcome.Task).Error; err != nil {
			return err
		}
		return tx.Omit("Tasks").Save(contract).Error
	}); err != nil {
		return nil, err
	}

	result := &ToggleResult{
		Task:       outcome.Task,
		AmountPaid: contract.AmountPaid,
		Contract:   contract,
	}

	// 空任务清单不会触发完成：必须至少存在一个任务
	if confirmedFinal && len(contract.Tasks) > 0 && contract.AllTasksCompleted() {
		if err := l.complete(contract, actor); err != nil {
			return nil, err
		}
		result.IsContractCompleted = true
	}

	return result, nil
}

// Complete 运营侧强制完成，仅限雇主方，要求合同已批准
func (l *ContractLogic) Complete(id uint, actor Actor) (*model.Contract, error) {
	contract, err := l.load(id)
	if err != nil {
		return nil, err
	}
	if !contract.IsClientParty(actor.Role, actor.ID) {
		return nil, errs.Forbidden("only the client may complete a contract")
	}
	if err := l.complete(contract, actor); err != nil {
		return nil, err
	}
	return contract, nil
}

// complete 完成迁移的公共不变量：必须已批准且未完成
func (l *ContractLogic) complete(contract *model.Contract, actor Actor) error {
	if !contract.IsApproved {
		return errs.InvalidState("contract %d is not approved", contract.ID)
	}
	if contract.IsCompleted {
		return errs.InvalidState("contract %d is already completed", contract.ID)
	}
	contract.IsCompleted = true
	contract.UpdatedBy = actor.ID
	contract.UpdatedByRole = actor.Role
	return l.db.Omit("Tasks").Save(contract).Error
}

// Remove 删除合同，仅限未批准的合同，且只有创建者或雇主方可删。
// 合同删除与消息反向引用清理在同一事务内完成，要么都成功要么都不动。
func (l *ContractLogic) Remove(id uint, actor Actor) error {
	contract, err := l.load(id)
	if err != nil {
		return err
	}
	if contract.IsApproved {
		return errs.InvalidState("approved contract may not be deleted")
	}
	isCreator := contract.CreatedBy == actor.ID && contract.CreatedByRole == actor.Role
	if !isCreator && !contract.IsClientParty(actor.Role, actor.ID) {
		return errs.Forbidden("only the creator or the client may delete a contract")
	}

	return l.db.Transaction(func(tx *gorm.DB) error {
		// 清理消息侧的合同引用
		if err := tx.Model(&model.Message{}).
			Where("contract_id = ?", contract.ID).
			Updates(map[string]interface{}{
				"contract_id": nil,
				"kind":        model.MessageKindText,
			}).Error; err != nil {
			return err
		}
		if err := tx.Where("contract_id = ?", contract.ID).Delete(&model.Task{}).Error; err != nil {
			return err
		}
		return tx.Delete(contract).Error
	})
}

// load 读取合同聚合（含任务）
func (l *ContractLogic) load(id uint) (*model.Contract, error) {
	var contract model.Contract
	if err := l.db.Preload("Tasks").First(&contract, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NotFound("contract %d not found", id)
		}
		return nil, err
	}
	return &contract, nil
}

// list 按操作者角色过滤所属合同
func (l *ContractLogic) list(actor Actor, query *gorm.DB) ([]model.Contract, error) {
	var contracts []model.Contract
	switch actor.Role {
	case model.RoleClient:
		query = query.Where("client_id = ?", actor.ID)
	case model.RoleFreelancer:
		query = query.Where("freelancer_id = ?", actor.ID)
	default:
		return nil, errs.Forbidden("unknown role %q", actor.Role)
	}
	if err := query.Preload("Tasks").Order("id DESC").Find(&contracts).Error; err != nil {
		return nil, err
	}
	return contracts, nil
}
