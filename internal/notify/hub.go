package notify

import (
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/blues/fms/internal/logger"
)

// 推送给参与方的事件名
const (
	EventContractAdded  = "contractAdded"
	EventUpdatedAmount  = "updatedAmount"
	EventAcceptProposal = "acceptProposal"
)

// Notifier 业务层持有的通知能力。尽力而为：对方不在线则直接丢弃，
// 不排队不重试，持久化的合同状态才是事实来源。
type Notifier interface {
	Notify(partyKey, event string, payload interface{})
}

// Conn 活跃连接句柄，*websocket.Conn 天然满足
type Conn interface {
	WriteJSON(v interface{}) error
}

// Envelope 推送消息格式
type Envelope struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

type entry struct {
	conn  Conn
	token uuid.UUID
}

// Hub 参与方→活跃连接注册表，进程生命周期内有效
type Hub struct {
	mu    sync.RWMutex
	conns map[string]entry
	pool  *ants.Pool // 推送协程池，慢连接不阻塞状态机
}

// NewHub 创建通知注册表
func NewHub(poolSize int) (*Hub, error) {
	if poolSize <= 0 {
		poolSize = 64
	}
	pool, err := ants.NewPool(poolSize, ants.WithNonblocking(true))
	if err != nil {
		return nil, err
	}
	return &Hub{
		conns: make(map[string]entry),
		pool:  pool,
	}, nil
}

// Register 登记参与方连接，返回连接令牌。
// 同一参与方重连时直接覆盖旧连接。
func (h *Hub) Register(partyKey string, conn Conn) uuid.UUID {
	token := uuid.New()
	h.mu.Lock()
	h.conns[partyKey] = entry{conn: conn, token: token}
	h.mu.Unlock()
	logger.Debug("party %s connected", partyKey)
	return token
}

// Unregister 注销连接。令牌不匹配说明该参与方已经重连，
// 此时不能摘掉新连接。
func (h *Hub) Unregister(partyKey string, token uuid.UUID) {
	h.mu.Lock()
	if e, ok := h.conns[partyKey]; ok && e.token == token {
		delete(h.conns, partyKey)
	}
	h.mu.Unlock()
	logger.Debug("party %s disconnected", partyKey)
}

// Notify 向参与方推送事件。离线静默丢弃，写失败也只记日志。
func (h *Hub) Notify(partyKey, event string, payload interface{}) {
	h.mu.RLock()
	e, ok := h.conns[partyKey]
	h.mu.RUnlock()
	if !ok {
		logger.Debug("party %s offline, dropping event %s", partyKey, event)
		return
	}

	env := Envelope{Event: event, Payload: payload}
	if err := h.pool.Submit(func() {
		if err := e.conn.WriteJSON(env); err != nil {
			logger.Warn("failed to push %s to %s: %v", event, partyKey, err)
		}
	}); err != nil {
		// 池满同样按丢弃处理
		logger.Warn("notify pool rejected %s for %s: %v", event, partyKey, err)
	}
}

// Online 当前是否在线
func (h *Hub) Online(partyKey string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[partyKey]
	return ok
}

// Close 释放协程池
func (h *Hub) Close() {
	h.pool.Release()
}
