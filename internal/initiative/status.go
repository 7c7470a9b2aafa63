package initiative

import (
	"context"
	"database/sql"
	"time"

	apperrors "github.com/wfunc/initiative-tracker/internal/errors"
	"github.com/wfunc/initiative-tracker/internal/models"
	"github.com/wfunc/initiative-tracker/internal/repository"
	"gorm.io/gorm"
)

// GetStatus returns the campaign's current combat as every member sees it.
// Session and entries are read in one transaction so positions are never
// observed half re-sorted.
func (m *Manager) GetStatus(ctx context.Context, campaignID, userID uint) (*Status, error) {
	if err := m.requireMember(ctx, campaignID, userID); err != nil {
		return nil, err
	}

	status := &Status{}
	err := m.repo.GetDB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := m.repo.WithTx(tx)

		session, err := repo.FindActiveSession(ctx, campaignID)
		if err != nil {
			return m.storageErr(err, apperrors.ErrDatabaseQuery, "find active session")
		}
		if session == nil {
			return nil
		}

		entries, err := repo.ListActiveEntriesDetailed(ctx, session.ID)
		if err != nil {
			return m.storageErr(err, apperrors.ErrDatabaseQuery, "list entries")
		}

		status.Active = true
		status.Session = &SessionView{
			ID:          session.ID,
			CampaignID:  session.CampaignID,
			CurrentTurn: session.CurrentTurn,
			RoundNumber: session.RoundNumber,
			StartedAt:   session.StartedAt,
			StartedBy:   session.StartedBy,
			EntryCount:  len(entries),
		}
		status.Entries = make([]EntryView, 0, len(entries))
		for _, entry := range entries {
			status.Entries = append(status.Entries, viewOf(entry, session.CurrentTurn))
		}
		return nil
	}, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, m.txErr(err)
	}
	return status, nil
}

func viewOf(entry *models.InitiativeEntry, currentTurn int) EntryView {
	view := EntryView{
		ID:              entry.ID,
		SessionID:       entry.SessionID,
		CharacterID:     entry.CharacterID,
		Name:            entry.Name,
		InitiativeRoll:  entry.InitiativeRoll,
		InitiativeBonus: entry.InitiativeBonus,
		TotalInitiative: entry.TotalInitiative(),
		IsPlayer:        entry.IsPlayer,
		OrderPosition:   entry.OrderPosition,
		IsCurrent:       entry.OrderPosition == currentTurn,
	}
	if entry.Character != nil {
		view.CharacterName = entry.Character.Name
		if entry.Character.User != nil {
			view.PlayerUsername = entry.Character.User.Username
		}
	}
	return view
}

// SessionSummary one past or present session of a campaign
type SessionSummary struct {
	ID          uint       `json:"id"`
	StartedBy   uint       `json:"started_by"`
	IsActive    bool       `json:"is_active"`
	CurrentTurn int        `json:"current_turn"`
	RoundNumber int        `json:"round_number"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}

// HistoryPage a page of session history
type HistoryPage struct {
	Sessions []SessionSummary `json:"sessions"`
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
}

// History lists the campaign's sessions, newest first.
func (m *Manager) History(ctx context.Context, campaignID, userID uint, page, pageSize int) (*HistoryPage, error) {
	if err := m.requireMember(ctx, campaignID, userID); err != nil {
		return nil, err
	}

	p := repository.NewPagination(page, pageSize)
	sessions, err := m.repo.ListSessions(ctx, campaignID, p)
	if err != nil {
		return nil, m.storageErr(err, apperrors.ErrDatabaseQuery, "list sessions")
	}

	out := &HistoryPage{
		Sessions: make([]SessionSummary, 0, len(sessions)),
		Total:    p.Total,
		Page:     p.Page,
		PageSize: p.PageSize,
	}
	for _, s := range sessions {
		out.Sessions = append(out.Sessions, SessionSummary{
			ID:          s.ID,
			StartedBy:   s.StartedBy,
			IsActive:    s.IsActive,
			CurrentTurn: s.CurrentTurn,
			RoundNumber: s.RoundNumber,
			StartedAt:   s.StartedAt,
			EndedAt:     s.EndedAt,
		})
	}
	return out, nil
}

func (m *Manager) requireMember(ctx context.Context, campaignID, userID uint) error {
	member, err := m.campaigns.IsCampaignMember(ctx, campaignID, userID)
	if err != nil {
		return m.collaboratorErr(err, "check membership")
	}
	if !member {
		return apperrors.New(apperrors.ErrPermissionDenied, "You are not a member of this campaign.")
	}
	return nil
}
