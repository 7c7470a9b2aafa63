package repository

import (
	"context"
	"time"

	"github.com/wfunc/initiative-tracker/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InitiativeRepository stores sessions together with the entries they own.
type InitiativeRepository interface {
	BaseRepository
	WithTx(tx *gorm.DB) InitiativeRepository

	CreateSession(ctx context.Context, session *models.InitiativeSession) error
	FindSession(ctx context.Context, id uint) (*models.InitiativeSession, error)
	// FindActiveSession returns nil, nil when the campaign has no live session.
	FindActiveSession(ctx context.Context, campaignID uint) (*models.InitiativeSession, error)
	// LockSession reloads the session row with a write lock for the rest of
	// the transaction.
	LockSession(ctx context.Context, id uint) (*models.InitiativeSession, error)
	// LockCampaign write-locks the campaign row so session creation is
	// serialised across processes.
	LockCampaign(ctx context.Context, campaignID uint) error
	SaveCursor(ctx context.Context, session *models.InitiativeSession) error
	EndSession(ctx context.Context, id uint, endedAt time.Time) error
	ListSessions(ctx context.Context, campaignID uint, p *Pagination) ([]*models.InitiativeSession, error)

	CreateEntries(ctx context.Context, entries []*models.InitiativeEntry) error
	FindEntry(ctx context.Context, id uint) (*models.InitiativeEntry, error)
	ListActiveEntries(ctx context.Context, sessionID uint) ([]*models.InitiativeEntry, error)
	ListActiveEntriesDetailed(ctx context.Context, sessionID uint) ([]*models.InitiativeEntry, error)
	CountActiveEntries(ctx context.Context, sessionID uint) (int64, error)
	DeactivateEntry(ctx context.Context, id uint) error
	UpdatePositions(ctx context.Context, entries []*models.InitiativeEntry) error
}

type initiativeRepo struct {
	*BaseRepo
}

func NewInitiativeRepository(db *gorm.DB) InitiativeRepository {
	return &initiativeRepo{BaseRepo: NewBaseRepo(db)}
}

func (r *initiativeRepo) WithTx(tx *gorm.DB) InitiativeRepository {
	return &initiativeRepo{BaseRepo: NewBaseRepo(tx)}
}

func (r *initiativeRepo) CreateSession(ctx context.Context, session *models.InitiativeSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *initiativeRepo) FindSession(ctx context.Context, id uint) (*models.InitiativeSession, error) {
	var session models.InitiativeSession
	if err := r.db.WithContext(ctx).First(&session, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &session, nil
}

func (r *initiativeRepo) FindActiveSession(ctx context.Context, campaignID uint) (*models.InitiativeSession, error) {
	var session models.InitiativeSession
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND is_active = ?", campaignID, true).
		Order("id DESC").
		First(&session).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (r *initiativeRepo) LockSession(ctx context.Context, id uint) (*models.InitiativeSession, error) {
	var session models.InitiativeSession
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&session, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &session, nil
}

func (r *initiativeRepo) LockCampaign(ctx context.Context, campaignID uint) error {
	var campaign models.Campaign
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&campaign, campaignID).Error
	return notFound(err)
}

func (r *initiativeRepo) SaveCursor(ctx context.Context, session *models.InitiativeSession) error {
	return r.db.WithContext(ctx).Model(&models.InitiativeSession{}).
		Where("id = ?", session.ID).
		Updates(map[string]interface{}{
			"current_turn": session.CurrentTurn,
			"round_number": session.RoundNumber,
			"updated_at":   time.Now(),
		}).Error
}

func (r *initiativeRepo) EndSession(ctx context.Context, id uint, endedAt time.Time) error {
	return r.db.WithContext(ctx).Model(&models.InitiativeSession{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":  false,
			"ended_at":   endedAt,
			"updated_at": endedAt,
		}).Error
}

func (r *initiativeRepo) ListSessions(ctx context.Context, campaignID uint, p *Pagination) ([]*models.InitiativeSession, error) {
	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.InitiativeSession{}).
			Where("campaign_id = ?", campaignID)
	}

	query := base()
	if p != nil {
		if err := base().Count(&p.Total).Error; err != nil {
			return nil, err
		}
		query = query.Scopes(Paginate(p))
	}

	var sessions []*models.InitiativeSession
	err := query.Order("started_at DESC, id DESC").Find(&sessions).Error
	return sessions, err
}

func (r *initiativeRepo) CreateEntries(ctx context.Context, entries []*models.InitiativeEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(&entries).Error
}

func (r *initiativeRepo) FindEntry(ctx context.Context, id uint) (*models.InitiativeEntry, error) {
	var entry models.InitiativeEntry
	if err := r.db.WithContext(ctx).First(&entry, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &entry, nil
}

// ListActiveEntries returns active entries by position, then insertion
// order. The insertion tie-break keeps freshly added rows (position 0) in
// the order they were created.
func (r *initiativeRepo) ListActiveEntries(ctx context.Context, sessionID uint) ([]*models.InitiativeEntry, error) {
	var entries []*models.InitiativeEntry
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND is_active = ?", sessionID, true).
		Order("order_position ASC, id ASC").
		Find(&entries).Error
	return entries, err
}

// ListActiveEntriesDetailed also loads the character sheet and its player.
func (r *initiativeRepo) ListActiveEntriesDetailed(ctx context.Context, sessionID uint) ([]*models.InitiativeEntry, error) {
	var entries []*models.InitiativeEntry
	err := r.db.WithContext(ctx).
		Preload("Character").
		Preload("Character.User").
		Where("session_id = ? AND is_active = ?", sessionID, true).
		Order("order_position ASC, id ASC").
		Find(&entries).Error
	return entries, err
}

func (r *initiativeRepo) CountActiveEntries(ctx context.Context, sessionID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.InitiativeEntry{}).
		Where("session_id = ? AND is_active = ?", sessionID, true).
		Count(&count).Error
	return count, err
}

func (r *initiativeRepo) DeactivateEntry(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.InitiativeEntry{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_active":      false,
			"order_position": 0,
		}).Error
}

func (r *initiativeRepo) UpdatePositions(ctx context.Context, entries []*models.InitiativeEntry) error {
	db := r.db.WithContext(ctx)
	for _, entry := range entries {
		err := db.Model(&models.InitiativeEntry{}).
			Where("id = ?", entry.ID).
			Update("order_position", entry.OrderPosition).Error
		if err != nil {
			return err
		}
	}
	return nil
}
