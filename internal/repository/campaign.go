package repository

import (
	"context"
	"time"

	"github.com/wfunc/initiative-tracker/internal/models"
	"gorm.io/gorm"
)

// CampaignRepository campaign and membership storage
type CampaignRepository interface {
	BaseRepository
	WithTx(tx *gorm.DB) CampaignRepository
	Create(ctx context.Context, campaign *models.Campaign) error
	FindByID(ctx context.Context, id uint) (*models.Campaign, error)
	FindByJoinCode(ctx context.Context, code string) (*models.Campaign, error)
	JoinCodeExists(ctx context.Context, code string) (bool, error)
	ListForUser(ctx context.Context, userID uint, p *Pagination) ([]*models.Campaign, error)
	UpdateStatus(ctx context.Context, id uint, status string) error

	AddMember(ctx context.Context, member *models.CampaignMember) error
	FindMember(ctx context.Context, campaignID, userID uint) (*models.CampaignMember, error)
	IsActiveMember(ctx context.Context, campaignID, userID uint) (bool, error)
	CountActiveMembers(ctx context.Context, campaignID uint) (int64, error)
	ListMembers(ctx context.Context, campaignID uint) ([]*models.CampaignMember, error)
}

type campaignRepo struct {
	*BaseRepo
}

func NewCampaignRepository(db *gorm.DB) CampaignRepository {
	return &campaignRepo{BaseRepo: NewBaseRepo(db)}
}

func (r *campaignRepo) WithTx(tx *gorm.DB) CampaignRepository {
	return &campaignRepo{BaseRepo: NewBaseRepo(tx)}
}

func (r *campaignRepo) Create(ctx context.Context, campaign *models.Campaign) error {
	return r.db.WithContext(ctx).Create(campaign).Error
}

func (r *campaignRepo) FindByID(ctx context.Context, id uint) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := r.db.WithContext(ctx).First(&campaign, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &campaign, nil
}

func (r *campaignRepo) FindByJoinCode(ctx context.Context, code string) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := r.db.WithContext(ctx).Where("join_code = ?", code).First(&campaign).Error; err != nil {
		return nil, notFound(err)
	}
	return &campaign, nil
}

func (r *campaignRepo) JoinCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().Model(&models.Campaign{}).
		Where("join_code = ?", code).
		Count(&count).Error
	return count > 0, err
}

// ListForUser returns campaigns the user runs or is an active member of,
// newest first.
func (r *campaignRepo) ListForUser(ctx context.Context, userID uint, p *Pagination) ([]*models.Campaign, error) {
	memberOf := r.db.Model(&models.CampaignMember{}).
		Select("campaign_id").
		Where("user_id = ? AND is_active = ?", userID, true)

	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.Campaign{}).
			Where("game_master_id = ? OR id IN (?)", userID, memberOf)
	}

	query := base()
	if p != nil {
		if err := base().Count(&p.Total).Error; err != nil {
			return nil, err
		}
		query = query.Scopes(Paginate(p))
	}

	var campaigns []*models.Campaign
	err := query.Preload("GameMaster").Order("created_at DESC").Find(&campaigns).Error
	return campaigns, err
}

func (r *campaignRepo) UpdateStatus(ctx context.Context, id uint, status string) error {
	return r.db.WithContext(ctx).Model(&models.Campaign{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (r *campaignRepo) AddMember(ctx context.Context, member *models.CampaignMember) error {
	if member.JoinedAt.IsZero() {
		member.JoinedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(member).Error
}

func (r *campaignRepo) FindMember(ctx context.Context, campaignID, userID uint) (*models.CampaignMember, error) {
	var member models.CampaignMember
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND user_id = ?", campaignID, userID).
		First(&member).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &member, nil
}

func (r *campaignRepo) IsActiveMember(ctx context.Context, campaignID, userID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.CampaignMember{}).
		Where("campaign_id = ? AND user_id = ? AND is_active = ?", campaignID, userID, true).
		Count(&count).Error
	return count > 0, err
}

func (r *campaignRepo) CountActiveMembers(ctx context.Context, campaignID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.CampaignMember{}).
		Where("campaign_id = ? AND is_active = ?", campaignID, true).
		Count(&count).Error
	return count, err
}

func (r *campaignRepo) ListMembers(ctx context.Context, campaignID uint) ([]*models.CampaignMember, error) {
	var members []*models.CampaignMember
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("campaign_id = ? AND is_active = ?", campaignID, true).
		Order("joined_at ASC").
		Find(&members).Error
	return members, err
}
