package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/blues/fms/internal/logic"
	"github.com/blues/fms/internal/model"
)

type DisputeHandler struct {
	disputeLogic *logic.DisputeLogic
}

func NewDisputeHandler(db *gorm.DB) *DisputeHandler {
	return &DisputeHandler{
		disputeLogic: logic.NewDisputeLogic(db),
	}
}

// CreateDispute 发起纠纷
func (h *DisputeHandler) CreateDispute(c *gin.Context) {
	var input logic.CreateDisputeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dispute, err := h.disputeLogic.Create(&input, actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "dispute created",
		"dispute": dispute,
	})
}

// GetDispute 读取纠纷
func (h *DisputeHandler) GetDispute(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dispute id"})
		return
	}

	dispute, err := h.disputeLogic.Get(id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"dispute": dispute})
}

// AddVote 记录陪审员投票
func (h *DisputeHandler) AddVote(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dispute id"})
		return
	}

	var input struct {
		JurorID  uint                `json:"juror_id" binding:"required"`
		VotedFor model.DisputeWinner `json:"voted_for" binding:"required"`
		Comment  string              `json:"comment"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dispute, err := h.disputeLogic.AddVote(id, input.JurorID, input.VotedFor, input.Comment)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "vote recorded",
		"dispute": dispute,
	})
}

// ListByContract 某合同下的全部纠纷
func (h *DisputeHandler) ListByContract(c *gin.Context) {
	contractID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid contract id"})
		return
	}

	disputes, err := h.disputeLogic.ListByContract(uint(contractID))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"disputes": disputes})
}

// ResolveDispute 裁决纠纷
func (h *DisputeHandler) ResolveDispute(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dispute id"})
		return
	}

	var input struct {
		Winner model.DisputeWinner `json:"winner" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dispute, err := h.disputeLogic.Resolve(id, input.Winner)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "dispute resolved",
		"dispute": dispute,
	})
}
