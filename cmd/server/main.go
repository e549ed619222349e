package main

import (
	"github.com/gin-gonic/gin"

	"github.com/blues/fms/internal/config"
	"github.com/blues/fms/internal/database"
	"github.com/blues/fms/internal/escrow"
	"github.com/blues/fms/internal/logger"
	"github.com/blues/fms/internal/notify"
	"github.com/blues/fms/internal/router"
	"github.com/blues/fms/internal/scheduler"
)

func main() {
	// 加载配置
	cfg := config.Load()

	// 初始化日志
	level := logger.ParseLogLevel(cfg.Log.Level)
	if cfg.Log.Output == "file" {
		l, err := logger.NewWithFileRotation(level, cfg.Log.File)
		if err != nil {
			logger.Fatal("Failed to initialize file logger: %v", err)
		}
		logger.SetDefaultLogger(l)
	}
	defer logger.Sync()

	// 初始化数据库
	db, err := database.Init(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}

	// 初始化托管桥（未配置链时跳过，合同核心不依赖它）
	var bridge *escrow.Bridge
	if cfg.Chain.RpcUrl != "" {
		bridge, err = escrow.Init(cfg.Chain)
		if err != nil {
			logger.Fatal("Failed to initialize escrow bridge: %v", err)
		}
		logger.Info("Escrow bridge ready, operator %s", bridge.OperatorAddress().Hex())
	} else {
		logger.Warn("chain.rpc_url not configured, escrow bridge disabled")
	}

	// 初始化通知注册表
	hub, err := notify.NewHub(cfg.Notify.PoolSize)
	if err != nil {
		logger.Fatal("Failed to initialize notify hub: %v", err)
	}
	defer hub.Close()

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化路由
	r := router.Setup(db, bridge, hub, cfg)

	// 启动后台任务
	manager := scheduler.Start(db, bridge, cfg)
	defer manager.Stop()

	// 启动服务器
	logger.Info("Server starting on port %s", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		logger.Fatal("Failed to start server: %v", err)
	}
}
