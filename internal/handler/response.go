package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/blues/fms/internal/errs"
)

// Response 统一响应结构
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// SuccessResponse 成功响应
func SuccessResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// ErrorResponse 错误响应
func ErrorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, Response{
		Success: false,
		Message: message,
		Data:    nil,
	})
}

// respondError 按错误类别映射HTTP状态码。
// 存储层错误原样透出（内部工具定位，不做脱敏）。
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if kind, ok := errs.KindOf(err); ok {
		switch kind {
		case errs.KindValidation:
			status = http.StatusBadRequest
		case errs.KindNotFound:
			status = http.StatusNotFound
		case errs.KindForbidden:
			status = http.StatusForbidden
		case errs.KindInvalidState:
			status = http.StatusConflict
		case errs.KindChainTimeout:
			status = http.StatusGatewayTimeout
		case errs.KindChain:
			status = http.StatusBadGateway
		}
	}
	ErrorResponse(c, status, err.Error())
}
