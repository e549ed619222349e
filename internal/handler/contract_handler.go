package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/blues/fms/internal/logic"
	"github.com/blues/fms/internal/notify"
)

type ContractHandler struct {
	contractLogic *logic.ContractLogic
}

func NewContractHandler(db *gorm.DB, notifier notify.Notifier) *ContractHandler {
	return &ContractHandler{
		contractLogic: logic.NewContractLogic(db, notifier),
	}
}

// CreateContract 创建合同
func (h *ContractHandler) CreateContract(c *gin.Context) {
	var input logic.CreateContractInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contract, err := h.contractLogic.Create(&input, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "contract created",
		"contract": contract,
	})
}

// GetContract 获取单个合同
func (h *ContractHandler) GetContract(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract id"})
		return
	}

	contract, err := h.contractLogic.Get(uint(id), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"contract": contract})
}

// ListByUser 获取某用户的全部合同（仅限本人）
func (h *ContractHandler) ListByUser(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("userId"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	contracts, err := h.contractLogic.ListByUser(uint(userID), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"contracts": contracts})
}

// ListActive 已批准未完成的合同
func (h *ContractHandler) ListActive(c *gin.Context) {
	contracts, err := h.contractLogic.ListActive(actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contracts": contracts})
}

// ListCompleted 已完成的合同
func (h *ContractHandler) ListCompleted(c *gin.Context) {
	contracts, err := h.contractLogic.ListCompleted(actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contracts": contracts})
}

// ListPending 待批准的合同
func (h *ContractHandler) ListPending(c *gin.Context) {
	contracts, err := h.contractLogic.ListPending(actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contracts": contracts})
}

// EditTerms 修改条款（同时视为批准）
func (h *ContractHandler) EditTerms(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract id"})
		return
	}

	var input logic.EditTermsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contract, err := h.contractLogic.EditTerms(uint(id), &input, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "contract updated",
		"contract": contract,
	})
}

// ApproveContract 批准合同
func (h *ContractHandler) ApproveContract(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract id"})
		return
	}

	contract, err := h.contractLogic.Approve(uint(id), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "contract approved",
		"contract": contract,
	})
}

// CompleteContract 强制完成合同
func (h *ContractHandler) CompleteContract(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract id"})
		return
	}

	contract, err := h.contractLogic.Complete(uint(id), actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "contract completed",
		"contract": contract,
	})
}

// DeleteContract 删除合同
func (h *ContractHandler) DeleteContract(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract id"})
		return
	}

	if err := h.contractLogic.Remove(uint(id), actorFrom(c)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "contract deleted"})
}

// AddTasks 批量追加任务
func (h *ContractHandler) AddTasks(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract id"})
		return
	}

	var input struct {
		Tasks []logic.TaskInput `json:"tasks" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	contract, err := h.contractLogic.AddTasks(uint(id), input.Tasks, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "tasks added",
		"contract": contract,
	})
}

// ToggleTask 勾选/取消勾选任务。勾选最后一个任务时需要
// confirmed_final 二次确认，否则返回 requires_confirmation。
func (h *ContractHandler) ToggleTask(c *gin.Context) {
	taskID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}

	var input struct {
		IsCompleted    bool `json:"is_completed"`
		ConfirmedFinal bool `json:"confirmed_final"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.contractLogic.ToggleTask(uint(taskID), input.IsCompleted, input.ConfirmedFinal, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
