package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/blues/fms/internal/logic"
	"github.com/blues/fms/internal/model"
)

const actorContextKey = "actor"

// Identity 身份中间件。认证由上游网关完成，
// 这里直接信任已校验的 X-User-Id / X-User-Role 头。
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseUint(c.GetHeader("X-User-Id"), 10, 32)
		if err != nil {
			ErrorResponse(c, http.StatusUnauthorized, "missing or invalid X-User-Id")
			c.Abort()
			return
		}
		role := model.Role(c.GetHeader("X-User-Role"))
		if !role.Valid() {
			ErrorResponse(c, http.StatusUnauthorized, "missing or invalid X-User-Role")
			c.Abort()
			return
		}
		c.Set(actorContextKey, logic.Actor{ID: uint(id), Role: role})
		c.Next()
	}
}

// actorFrom 取出当前操作者身份
func actorFrom(c *gin.Context) logic.Actor {
	actor, _ := c.MustGet(actorContextKey).(logic.Actor)
	return actor
}
