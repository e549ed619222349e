package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/blues/fms/internal/logger"
	"github.com/blues/fms/internal/model"
	"github.com/blues/fms/internal/notify"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 跨域校验由上游网关负责
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WsHandler 实时通知连接入口
type WsHandler struct {
	hub *notify.Hub
}

func NewWsHandler(hub *notify.Hub) *WsHandler {
	return &WsHandler{hub: hub}
}

// Connect 升级为 websocket 并登记参与方连接。
// 连接只用于服务端下行推送，收到的消息一律丢弃。
func (h *WsHandler) Connect(c *gin.Context) {
	actor := actorFrom(c)
	partyKey := model.PartyKey(actor.Role, actor.ID)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed for %s: %v", partyKey, err)
		return
	}

	token := h.hub.Register(partyKey, conn)
	defer func() {
		h.hub.Unregister(partyKey, token)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
