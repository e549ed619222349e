package scheduler

import (
	"time"

	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"

	"github.com/blues/fms/internal/config"
	"github.com/blues/fms/internal/escrow"
	"github.com/blues/fms/internal/logger"
	"github.com/blues/fms/internal/model"
)

// EscrowReconcileJob 托管对账任务：周期性读取已关联链上项目的合同，
// 对比库内完成状态与链上状态并记录偏差。只读不写——
// 托管桥的状态变更始终由运营侧显式触发，不在这里自动补。
type EscrowReconcileJob struct {
	db     *gorm.DB
	bridge *escrow.Bridge
	config *config.Config
}

// NewEscrowReconcileJob 创建托管对账任务
func NewEscrowReconcileJob(db *gorm.DB, bridge *escrow.Bridge, cfg *config.Config) *EscrowReconcileJob {
	return &EscrowReconcileJob{
		db:     db,
		bridge: bridge,
		config: cfg,
	}
}

// GetName 任务名称
func (j *EscrowReconcileJob) GetName() string {
	return "escrow_reconcile"
}

// GetSchedule 调度配置
func (j *EscrowReconcileJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(time.Duration(j.config.Scheduler.Interval) * time.Second)
}

// Execute 执行对账
func (j *EscrowReconcileJob) Execute() {
	var contracts []model.Contract
	if err := j.db.Preload("Tasks").
		Where("on_chain_project_id IS NOT NULL").
		Find(&contracts).Error; err != nil {
		logger.Error("escrow reconcile: failed to fetch linked contracts: %v", err)
		return
	}

	if len(contracts) == 0 {
		return
	}
	logger.Info("escrow reconcile: checking %d linked contracts", len(contracts))

	for _, contract := range contracts {
		project, err := j.bridge.ReadProject(*contract.OnChainProjectID)
		if err != nil {
			logger.Warn("escrow reconcile: failed to read project %d for contract %d: %v",
				*contract.OnChainProjectID, contract.ID, err)
			continue
		}

		if project.IsCompleted != contract.IsCompleted {
			logger.Warn("escrow reconcile: contract %d completion drift (db=%t chain=%t)",
				contract.ID, contract.IsCompleted, project.IsCompleted)
		}
		if dbPct := uint8(contract.CompletionPercentage()); dbPct != project.CompletionPercentage {
			logger.Warn("escrow reconcile: contract %d completion percentage drift (db=%d chain=%d)",
				contract.ID, dbPct, project.CompletionPercentage)
		}
		if project.IsDisputed {
			logger.Info("escrow reconcile: contract %d project %d is disputed on chain",
				contract.ID, project.ID)
		}
	}
}
