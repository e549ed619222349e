package router

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/blues/fms/internal/config"
	"github.com/blues/fms/internal/escrow"
	"github.com/blues/fms/internal/handler"
	"github.com/blues/fms/internal/notify"
)

func Setup(db *gorm.DB, bridge *escrow.Bridge, hub *notify.Hub, cfg *config.Config) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "freelance-marketplace-service",
		})
	})

	// 实时通知连接
	wsHandler := handler.NewWsHandler(hub)
	r.GET("/ws", handler.Identity(), wsHandler.Connect)

	// API版本组
	v1 := r.Group("/api/v1")
	v1.Use(handler.Identity())
	{
		// 合同相关路由
		contractHandler := handler.NewContractHandler(db, hub)
		contracts := v1.Group("/contracts")
		{
			contracts.POST("", contractHandler.CreateContract)
			contracts.GET("/:id", contractHandler.GetContract)
			contracts.GET("/user/:userId", contractHandler.ListByUser)
			contracts.GET("/status/active", contractHandler.ListActive)
			contracts.GET("/status/completed", contractHandler.ListCompleted)
			contracts.GET("/status/pending", contractHandler.ListPending)
			contracts.PUT("/:id", contractHandler.EditTerms)
			contracts.DELETE("/:id", contractHandler.DeleteContract)
			contracts.PATCH("/:id/approve", contractHandler.ApproveContract)
			contracts.PATCH("/:id/complete", contractHandler.CompleteContract)
			contracts.POST("/:id/tasks", contractHandler.AddTasks)
			contracts.PUT("/task/:id", contractHandler.ToggleTask)
		}

		// 纠纷相关路由
		disputeHandler := handler.NewDisputeHandler(db)
		contracts.GET("/:id/disputes", disputeHandler.ListByContract)
		disputes := v1.Group("/disputes")
		{
			disputes.POST("", disputeHandler.CreateDispute)
			disputes.GET("/:id", disputeHandler.GetDispute)
			disputes.POST("/:id/votes", disputeHandler.AddVote)
			disputes.PATCH("/:id/resolve", disputeHandler.ResolveDispute)
		}

		// 托管桥运营侧路由
		if bridge != nil {
			escrowHandler := handler.NewEscrowHandler(bridge)
			projects := v1.Group("/escrow/projects")
			{
				projects.POST("", escrowHandler.CreateProject)
				projects.GET("/:id", escrowHandler.GetProject)
				projects.POST("/:id/fund", escrowHandler.FundProject)
				projects.PATCH("/:id/completion", escrowHandler.UpdateCompletion)
				projects.PATCH("/:id/complete", escrowHandler.MarkCompleted)
				projects.POST("/:id/release", escrowHandler.ReleasePayment)
				projects.POST("/:id/dispute", escrowHandler.RaiseDispute)
				projects.POST("/:id/resolve", escrowHandler.ResolveDispute)
			}
		}
	}

	return r
}

// CORS中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-User-Id, X-User-Role")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
