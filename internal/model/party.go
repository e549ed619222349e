package model

import (
	"strconv"
	"time"

	"gorm.io/gorm"
)

// Role 参与方角色
type Role string

const (
	RoleClient     Role = "client"     // 雇主
	RoleFreelancer Role = "freelancer" // 自由职业者
)

// Valid 角色是否合法
func (r Role) Valid() bool {
	return r == RoleClient || r == RoleFreelancer
}

// Client 雇主账户（账号注册由外部服务负责，这里只保存合同核心需要的镜像字段）
type Client struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	Name          string `json:"name" gorm:"not null"`
	Email         string `json:"email" gorm:"uniqueIndex"`
	WalletAddress string `json:"wallet_address"`
}

// Freelancer 自由职业者账户
type Freelancer struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	Name          string `json:"name" gorm:"not null"`
	Email         string `json:"email" gorm:"uniqueIndex"`
	WalletAddress string `json:"wallet_address"`
}

// Party 参与方统一视图，在边界处按角色解析一次，业务逻辑不再按角色字符串分流
type Party struct {
	ID            uint   `json:"id"`
	Role          Role   `json:"role"`
	Name          string `json:"name"`
	WalletAddress string `json:"wallet_address"`
}

// Key 通知注册表使用的参与方标识
func (p Party) Key() string {
	return PartyKey(p.Role, p.ID)
}

// PartyKey 构造参与方标识，如 "client:12"
func PartyKey(role Role, id uint) string {
	return string(role) + ":" + strconv.FormatUint(uint64(id), 10)
}
