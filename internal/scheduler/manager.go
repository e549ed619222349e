package scheduler

import (
	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"

	"github.com/blues/fms/internal/config"
	"github.com/blues/fms/internal/escrow"
	"github.com/blues/fms/internal/logger"
)

// Manager 后台任务管理器
type Manager struct {
	scheduler gocron.Scheduler
	db        *gorm.DB
	bridge    *escrow.Bridge
	config    *config.Config
}

// NewManager 创建后台任务管理器
func NewManager(db *gorm.DB, bridge *escrow.Bridge, cfg *config.Config) *Manager {
	s, err := gocron.NewScheduler()
	if err != nil {
		logger.Fatal("Failed to create scheduler: %v", err)
	}

	return &Manager{
		scheduler: s,
		db:        db,
		bridge:    bridge,
		config:    cfg,
	}
}

// Start 启动后台任务管理器
func Start(db *gorm.DB, bridge *escrow.Bridge, cfg *config.Config) *Manager {
	manager := NewManager(db, bridge, cfg)

	// 注册所有任务
	manager.RegisterJobs()

	// 启动调度器
	manager.scheduler.Start()

	logger.Info("Scheduler started successfully")
	return manager
}

// RegisterJobs 注册所有任务
func (m *Manager) RegisterJobs() {
	// 注册托管对账任务
	m.RegisterEscrowReconcileJob()
}

// RegisterEscrowReconcileJob 注册托管对账任务
func (m *Manager) RegisterEscrowReconcileJob() {
	if m.bridge == nil {
		logger.Info("Escrow bridge not configured, skipping reconcile job")
		return
	}

	job := NewEscrowReconcileJob(m.db, m.bridge, m.config)
	_, err := m.scheduler.NewJob(
		job.GetSchedule(),
		gocron.NewTask(job.Execute),
		gocron.WithName(job.GetName()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		logger.Error("Failed to register job %s: %v", job.GetName(), err)
	}
}

// Stop 停止后台任务管理器
func (m *Manager) Stop() {
	if err := m.scheduler.Shutdown(); err != nil {
		logger.Error("Failed to shutdown scheduler: %v", err)
	}
	logger.Info("Scheduler stopped")
}
