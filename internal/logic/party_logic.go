package logic

import (
	"errors"

	"gorm.io/gorm"

	"github.com/blues/fms/internal/errs"
	"github.com/blues/fms/internal/model"
)

// PartyLogic 参与方目录。按角色在边界处解析一次，
// 得到统一的 Party 视图，后续业务不再按角色分流查表。
type PartyLogic struct {
	db *gorm.DB
}

// NewPartyLogic 创建参与方目录
func NewPartyLogic(db *gorm.DB) *PartyLogic {
	return &PartyLogic{db: db}
}

// Resolve 按角色和ID解析参与方
func (p *PartyLogic) Resolve(role model.Role, id uint) (*model.Party, error) {
	switch role {
	case model.RoleClient:
		var client model.Client
		if err := p.db.First(&client, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, errs.NotFound("client %d not found", id)
			}
			return nil, err
		}
		return &model.Party{
			ID:            client.ID,
			Role:          model.RoleClient,
			Name:          client.Name,
			WalletAddress: client.WalletAddress,
		}, nil
	case model.RoleFreelancer:
		var freelancer model.Freelancer
		if err := p.db.First(&freelancer, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, errs.NotFound("freelancer %d not found", id)
			}
			return nil, err
		}
		return &model.Party{
			ID:            freelancer.ID,
			Role:          model.RoleFreelancer,
			Name:          freelancer.Name,
			WalletAddress: freelancer.WalletAddress,
		}, nil
	default:
		return nil, errs.Validation("unknown role %q", role)
	}
}
