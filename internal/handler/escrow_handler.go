package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/blues/fms/internal/escrow"
)

// EscrowHandler 运营侧托管桥接口。链上调用阻塞且非幂等，
// 超时后重发前应先 GET 项目状态确认是否已经生效。
type EscrowHandler struct {
	bridge *escrow.Bridge
}

func NewEscrowHandler(bridge *escrow.Bridge) *EscrowHandler {
	return &EscrowHandler{bridge: bridge}
}

// GetProject 读取链上托管项目
func (h *EscrowHandler) GetProject(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
		return
	}

	project, err := h.bridge.ReadProject(id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"project": project})
}

// CreateProject 链上创建托管项目
func (h *EscrowHandler) CreateProject(c *gin.Context) {
	var input struct {
		Client      string `json:"client" binding:"required"`
		Freelancer  string `json:"freelancer" binding:"required"`
		Description string `json:"description" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.bridge.CreateProject(input.Client, input.Freelancer, input.Description)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "project created",
		"result":  result,
	})
}

// FundProject 注资托管项目
func (h *EscrowHandler) FundProject(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
		return
	}

	var input struct {
		Amount string `json:"amount" binding:"required"` // ether 十进制字符串
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	txHash, err := h.bridge.FundProject(id, input.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tx_hash": txHash})
}

// UpdateCompletion 同步完成进度
func (h *EscrowHandler) UpdateCompletion(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
		return
	}

	var input struct {
		Percentage uint8 `json:"percentage"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	txHash, err := h.bridge.UpdateCompletion(id, input.Percentage)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tx_hash": txHash})
}

// MarkCompleted 标记项目完成
func (h *EscrowHandler) MarkCompleted(c *gin.Context) {
	h.simpleTx(c, h.bridge.MarkCompleted)
}

// ReleasePayment 放款
func (h *EscrowHandler) ReleasePayment(c *gin.Context) {
	h.simpleTx(c, h.bridge.ReleasePayment)
}

// RaiseDispute 发起链上纠纷
func (h *EscrowHandler) RaiseDispute(c *gin.Context) {
	h.simpleTx(c, h.bridge.RaiseDispute)
}

// ResolveDispute 按完成进度裁决链上纠纷
func (h *EscrowHandler) ResolveDispute(c *gin.Context) {
	h.simpleTx(c, h.bridge.ResolveDisputeByPercentage)
}

// simpleTx 只带项目ID的单笔交易的公共包装
func (h *EscrowHandler) simpleTx(c *gin.Context, fn func(uint64) (string, error)) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
		return
	}

	txHash, err := fn(id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"tx_hash": txHash})
}
