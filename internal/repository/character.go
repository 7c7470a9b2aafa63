package repository

import (
	"context"

	"github.com/wfunc/initiative-tracker/internal/models"
	"gorm.io/gorm"
)

// CharacterRepository character sheet storage
type CharacterRepository interface {
	BaseRepository
	Create(ctx context.Context, character *models.Character) error
	FindByID(ctx context.Context, id uint) (*models.Character, error)
	FindActiveByID(ctx context.Context, id uint) (*models.Character, error)
	ListForCampaign(ctx context.Context, campaignID uint) ([]*models.Character, error)
	ListByUser(ctx context.Context, userID uint) ([]*models.Character, error)
	Deactivate(ctx context.Context, id uint) error
}

type characterRepo struct {
	*BaseRepo
}

func NewCharacterRepository(db *gorm.DB) CharacterRepository {
	return &characterRepo{BaseRepo: NewBaseRepo(db)}
}

func (r *characterRepo) Create(ctx context.Context, character *models.Character) error {
	return r.db.WithContext(ctx).Create(character).Error
}

func (r *characterRepo) FindByID(ctx context.Context, id uint) (*models.Character, error) {
	var character models.Character
	if err := r.db.WithContext(ctx).First(&character, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &character, nil
}

// FindActiveByID treats deactivated characters as missing.
func (r *characterRepo) FindActiveByID(ctx context.Context, id uint) (*models.Character, error) {
	var character models.Character
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", id, true).
		First(&character).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &character, nil
}

func (r *characterRepo) ListForCampaign(ctx context.Context, campaignID uint) ([]*models.Character, error) {
	var characters []*models.Character
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("campaign_id = ? AND is_active = ?", campaignID, true).
		Order("is_npc ASC, name ASC").
		Find(&characters).Error
	return characters, err
}

func (r *characterRepo) ListByUser(ctx context.Context, userID uint) ([]*models.Character, error) {
	var characters []*models.Character
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("created_at DESC").
		Find(&characters).Error
	return characters, err
}

func (r *characterRepo) Deactivate(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.Character{}).
		Where("id = ?", id).
		Update("is_active", false).Error
}
