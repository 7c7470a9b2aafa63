package initiative

import (
	"context"
	"errors"
	"time"

	apperrors "github.com/wfunc/initiative-tracker/internal/errors"
	"github.com/wfunc/initiative-tracker/internal/logger"
	"github.com/wfunc/initiative-tracker/internal/models"
	"github.com/wfunc/initiative-tracker/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultMaxBatchSize caps one AddEntries call when Config leaves it unset.
const DefaultMaxBatchSize = 50

// Config tunes a Manager.
type Config struct {
	AllowServerRolls bool
	MaxBatchSize     int
	Roller           Roller
	Notifier         Notifier
}

// Manager runs the session lifecycle and the turn queue of every campaign.
// Mutations for one campaign are serialised in process and run in a single
// transaction that row-locks the session.
type Manager struct {
	repo       repository.InitiativeRepository
	campaigns  Campaigns
	characters Characters
	resolver   *Resolver
	cfg        Config
	locks      *keyedMutex
	logger     *zap.Logger
	now        func() time.Time
}

func NewManager(repo repository.InitiativeRepository, campaigns Campaigns, characters Characters, cfg Config, log *zap.Logger) *Manager {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}
	if cfg.Roller == nil {
		cfg.Roller = CryptoRoller{}
	}
	if cfg.Notifier == nil {
		cfg.Notifier = nopNotifier{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		repo:       repo,
		campaigns:  campaigns,
		characters: characters,
		resolver:   NewResolver(characters),
		cfg:        cfg,
		locks:      newKeyedMutex(),
		logger:     log,
		now:        time.Now,
	}
}

// SetNotifier replaces the notifier. It must be called before serving.
func (m *Manager) SetNotifier(n Notifier) {
	if n == nil {
		n = nopNotifier{}
	}
	m.cfg.Notifier = n
}

// Start opens a new session for campaignID and returns its id.
func (m *Manager) Start(ctx context.Context, campaignID uint, actor Actor) (uint, error) {
	if err := m.requireGM(ctx, campaignID, actor, "Only the Game Master can start initiative."); err != nil {
		return 0, err
	}

	unlock := m.locks.Lock(campaignID)
	defer unlock()

	var session *models.InitiativeSession
	err := m.repo.Transaction(ctx, func(tx *gorm.DB) error {
		repo := m.repo.WithTx(tx)

		if err := repo.LockCampaign(ctx, campaignID); err != nil {
			if errors.Is(err, repository.ErrRecordNotFound) {
				return apperrors.New(apperrors.ErrNotFound, "Campaign not found.")
			}
			return m.storageErr(err, apperrors.ErrDatabaseQuery, "lock campaign")
		}
		current, err := repo.FindActiveSession(ctx, campaignID)
		if err != nil {
			return m.storageErr(err, apperrors.ErrDatabaseQuery, "find active session")
		}
		if _, err := Transition(StateOf(current), EventStart); err != nil {
			return err
		}

		session = &models.InitiativeSession{
			CampaignID:  campaignID,
			StartedBy:   actor.UserID,
			IsActive:    true,
			CurrentTurn: 1,
			RoundNumber: 1,
			StartedAt:   m.now(),
		}
		if err := repo.CreateSession(ctx, session); err != nil {
			return m.storageErr(err, apperrors.ErrDatabaseInsert, "create session")
		}
		return nil
	})
	if err != nil {
		return 0, m.txErr(err)
	}

	m.changed(ctx, "start", campaignID, session.ID, map[string]interface{}{"user_id": actor.UserID})
	return session.ID, nil
}

// End closes the campaign's active session. Its entries are kept as history.
func (m *Manager) End(ctx context.Context, campaignID uint, actor Actor) error {
	if err := m.requireGM(ctx, campaignID, actor, "Only the Game Master can end initiative."); err != nil {
		return err
	}

	unlock := m.locks.Lock(campaignID)
	defer unlock()

	var sessionID uint
	err := m.repo.Transaction(ctx, func(tx *gorm.DB) error {
		repo := m.repo.WithTx(tx)

		session, err := m.lockActive(ctx, repo, campaignID)
		if err != nil {
			return err
		}
		if _, err := Transition(StateOf(session), EventEnd); err != nil {
			return err
		}
		sessionID = session.ID

		if err := repo.EndSession(ctx, session.ID, m.now()); err != nil {
			return m.storageErr(err, apperrors.ErrDatabaseUpdate, "end session")
		}
		return nil
	})
	if err != nil {
		return m.txErr(err)
	}

	m.changed(ctx, "end", campaignID, sessionID, map[string]interface{}{"user_id": actor.UserID})
	return nil
}

// NextTurn moves the cursor one combatant on. Passing the last combatant
// wraps to the first and starts a new round.
func (m *Manager) NextTurn(ctx context.Context, campaignID uint, actor Actor) (*TurnResult, error) {
	if err := m.requireGM(ctx, campaignID, actor, "Only the Game Master can advance the turn."); err != nil {
		return nil, err
	}

	unlock := m.locks.Lock(campaignID)
	defer unlock()

	var (
		sessionID uint
		result    TurnResult
	)
	err := m.repo.Transaction(ctx, func(tx *gorm.DB) error {
		repo := m.repo.WithTx(tx)

		session, err := m.lockActive(ctx, repo, campaignID)
		if err != nil {
			return err
		}
		sessionID = session.ID

		count, err := repo.CountActiveEntries(ctx, session.ID)
		if err != nil {
			return m.storageErr(err, apperrors.ErrDatabaseQuery, "count entries")
		}
		if count == 0 {
			return apperrors.New(apperrors.ErrNoEntries, "No entries in initiative.")
		}

		session.CurrentTurn, session.RoundNumber = Advance(session.CurrentTurn, session.RoundNumber, int(count))
		if err := repo.SaveCursor(ctx, session); err != nil {
			return m.storageErr(err, apperrors.ErrDatabaseUpdate, "save cursor")
		}
		result = TurnResult{Turn: session.CurrentTurn, Round: session.RoundNumber}
		return nil
	})
	if err != nil {
		return nil, m.txErr(err)
	}

	m.changed(ctx, "next_turn", campaignID, sessionID, map[string]interface{}{
		"turn":  result.Turn,
		"round": result.Round,
	})
	return &result, nil
}

// Advance returns the cursor after one step over n combatants. The round
// only changes when the cursor wraps.
func Advance(turn, round, n int) (int, int) {
	if n <= 0 {
		return turn, round
	}
	turn++
	if turn > n || turn < 1 {
		return 1, round + 1
	}
	return turn, round
}

// AddEntries adds a batch of combatants to an active session. Items that
// fail resolution, authorization or validation are skipped and reported;
// the call only fails for problems with the session or the caller.
func (m *Manager) AddEntries(ctx context.Context, sessionID uint, actor Actor, inputs []EntryInput) (*AddResult, error) {
	if !actor.Verified {
		return nil, apperrors.New(apperrors.ErrRequestNotVerified)
	}
	if len(inputs) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidParam, "No entries supplied.")
	}
	if len(inputs) > m.cfg.MaxBatchSize {
		return nil, apperrors.Newf(apperrors.ErrInvalidParam, "At most %d entries may be added at once.", m.cfg.MaxBatchSize)
	}

	session, err := m.repo.FindSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.ErrNotFound, "Initiative session not found or not active.")
		}
		return nil, m.storageErr(err, apperrors.ErrDatabaseQuery, "find session")
	}
	if _, err := Transition(StateOf(session), EventMutate); err != nil {
		return nil, err
	}
	campaignID := session.CampaignID

	isGM, err := m.campaigns.IsGameMaster(ctx, campaignID, actor.UserID)
	if err != nil {
		return nil, m.collaboratorErr(err, "check game master")
	}
	if !isGM {
		member, err := m.campaigns.IsCampaignMember(ctx, campaignID, actor.UserID)
		if err != nil {
			return nil, m.collaboratorErr(err, "check membership")
		}
		if !member {
			return nil, apperrors.New(apperrors.ErrPermissionDenied, "You are not a member of this campaign.")
		}
	}

	result := &AddResult{SessionID: sessionID, Added: []uint{}, Skipped: []SkippedEntry{}}
	var candidates []*models.InitiativeEntry
	for i, input := range inputs {
		entry, reason := m.prepare(ctx, isGM, actor.UserID, sessionID, input)
		if entry == nil {
			result.Skipped = append(result.Skipped, SkippedEntry{Index: i, Reason: reason})
			continue
		}
		candidates = append(candidates, entry)
	}
	if len(candidates) == 0 {
		return result, nil
	}

	unlock := m.locks.Lock(campaignID)
	defer unlock()

	err = m.repo.Transaction(ctx, func(tx *gorm.DB) error {
		repo := m.repo.WithTx(tx)

		locked, err := repo.LockSession(ctx, sessionID)
		if err != nil {
			return m.storageErr(err, apperrors.ErrDatabaseQuery, "lock session")
		}
		if _, err := Transition(StateOf(locked), EventMutate); err != nil {
			return err
		}

		stored, err := repo.ListActiveEntries(ctx, sessionID)
		if err != nil {
			return m.storageErr(err, apperrors.ErrDatabaseQuery, "list entries")
		}
		// On turn 1 nobody ahead of the cursor has acted this round, so the
		// cursor stays on position 1 and the highest total goes first.
		var currentID uint
		if midRound(locked) {
			currentID = entryAt(stored, locked.CurrentTurn)
		}

		if err := repo.CreateEntries(ctx, candidates); err != nil {
			return m.storageErr(err, apperrors.ErrDatabaseInsert, "create entries")
		}

		all := make([]*models.InitiativeEntry, 0, len(stored)+len(candidates))
		all = append(all, stored...)
		all = append(all, candidates...)
		return m.reorder(ctx, repo, locked, all, currentID)
	})
	if err != nil {
		return nil, m.txErr(err)
	}

	for _, entry := range candidates {
		result.Added = append(result.Added, entry.ID)
	}
	m.changed(ctx, "add_entries", campaignID, sessionID, map[string]interface{}{
		"added":   len(result.Added),
		"skipped": len(result.Skipped),
	})
	return result, nil
}

// prepare resolves and checks one batch item. It returns nil and a reason
// when the item must be skipped.
func (m *Manager) prepare(ctx context.Context, isGM bool, userID, sessionID uint, input EntryInput) (*models.InitiativeEntry, string) {
	if input.Malformed != "" {
		return nil, input.Malformed
	}
	if !isGM {
		if !input.IsPlayer || input.CharacterID == 0 {
			return nil, "Only the Game Master can add NPCs."
		}
		owner, err := m.characters.IsCharacterOwner(ctx, input.CharacterID, userID)
		if err != nil {
			m.logger.Warn("ownership check failed",
				zap.Uint("character_id", input.CharacterID),
				zap.Error(err))
			return nil, "Character could not be checked."
		}
		if !owner {
			return nil, "You can only add your own characters."
		}
	}

	combatant, err := m.resolver.Resolve(ctx, input.CharacterID, input.Name, input.InitiativeBonus)
	if err != nil {
		if apperrors.GetCode(err) == apperrors.ErrInvalidParam || apperrors.GetCode(err) == apperrors.ErrNotFound {
			return nil, detailsOf(err)
		}
		m.logger.Warn("character lookup failed",
			zap.Uint("character_id", input.CharacterID),
			zap.Error(err))
		return nil, "Character could not be resolved."
	}

	roll := input.InitiativeRoll
	if roll == 0 && input.AutoRoll && m.cfg.AllowServerRolls {
		roll = m.cfg.Roller.Roll(MaxRoll)
	}
	if !ValidRoll(roll) {
		return nil, "Initiative roll must be between 1 and 20."
	}

	entry := &models.InitiativeEntry{
		SessionID:       sessionID,
		Name:            combatant.Name,
		InitiativeRoll:  roll,
		InitiativeBonus: combatant.Bonus,
		IsPlayer:        input.IsPlayer && input.CharacterID != 0,
		IsActive:        true,
	}
	if input.CharacterID != 0 {
		id := input.CharacterID
		entry.CharacterID = &id
	}
	return entry, ""
}

// RemoveEntry soft-deletes an entry of the campaign's active session. The
// campaign GM and the owner of the entry's character may remove it.
func (m *Manager) RemoveEntry(ctx context.Context, campaignID, entryID uint, actor Actor) error {
	if !actor.Verified {
		return apperrors.New(apperrors.ErrRequestNotVerified)
	}

	entry, err := m.repo.FindEntry(ctx, entryID)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return apperrors.New(apperrors.ErrNotFound, "Initiative entry not found.")
		}
		return m.storageErr(err, apperrors.ErrDatabaseQuery, "find entry")
	}
	session, err := m.repo.FindSession(ctx, entry.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return apperrors.New(apperrors.ErrNotFound, "Initiative entry not found.")
		}
		return m.storageErr(err, apperrors.ErrDatabaseQuery, "find session")
	}
	if session.CampaignID != campaignID || !entry.IsActive {
		return apperrors.New(apperrors.ErrNotFound, "Initiative entry not found.")
	}

	allowed, err := m.campaigns.IsGameMaster(ctx, campaignID, actor.UserID)
	if err != nil {
		return m.collaboratorErr(err, "check game master")
	}
	if !allowed && entry.CharacterID != nil {
		allowed, err = m.characters.IsCharacterOwner(ctx, *entry.CharacterID, actor.UserID)
		if err != nil {
			return m.collaboratorErr(err, "check character owner")
		}
	}
	if !allowed {
		return apperrors.New(apperrors.ErrPermissionDenied, "You do not have permission to remove this entry.")
	}

	unlock := m.locks.Lock(campaignID)
	defer unlock()

	err = m.repo.Transaction(ctx, func(tx *gorm.DB) error {
		repo := m.repo.WithTx(tx)

		locked, err := repo.LockSession(ctx, session.ID)
		if err != nil {
			return m.storageErr(err, apperrors.ErrDatabaseQuery, "lock session")
		}
		if _, err := Transition(StateOf(locked), EventMutate); err != nil {
			return err
		}

		stored, err := repo.ListActiveEntries(ctx, session.ID)
		if err != nil {
			return m.storageErr(err, apperrors.ErrDatabaseQuery, "list entries")
		}
		remaining := make([]*models.InitiativeEntry, 0, len(stored))
		found := false
		for _, e := range stored {
			if e.ID == entryID {
				found = true
				continue
			}
			remaining = append(remaining, e)
		}
		if !found {
			return apperrors.New(apperrors.ErrNotFound, "Initiative entry not found.")
		}
		currentID := entryAt(stored, locked.CurrentTurn)

		if err := repo.DeactivateEntry(ctx, entryID); err != nil {
			return m.storageErr(err, apperrors.ErrDatabaseUpdate, "deactivate entry")
		}
		return m.reorder(ctx, repo, locked, remaining, currentID)
	})
	if err != nil {
		return m.txErr(err)
	}

	m.changed(ctx, "remove_entry", campaignID, session.ID, map[string]interface{}{
		"entry_id": entryID,
		"user_id":  actor.UserID,
	})
	return nil
}

// reorder re-sorts the active set, stores the positions that moved and
// rebinds the cursor to the combatant who held the turn. A zero currentID
// keeps the cursor on its position.
func (m *Manager) reorder(ctx context.Context, repo repository.InitiativeRepository, session *models.InitiativeSession, active []*models.InitiativeEntry, currentID uint) error {
	sorted := resequence(active)
	if err := repo.UpdatePositions(ctx, changedPositions(active, sorted)); err != nil {
		return m.storageErr(err, apperrors.ErrDatabaseUpdate, "update positions")
	}

	turn := rebindCursor(session.CurrentTurn, currentID, sorted)
	if turn == session.CurrentTurn {
		return nil
	}
	session.CurrentTurn = turn
	if err := repo.SaveCursor(ctx, session); err != nil {
		return m.storageErr(err, apperrors.ErrDatabaseUpdate, "save cursor")
	}
	return nil
}

// midRound reports whether combatants ahead of the cursor already acted
// in the current round.
func midRound(session *models.InitiativeSession) bool {
	return session.CurrentTurn > 1
}

// entryAt returns the id of the entry holding position turn, or 0.
func entryAt(entries []*models.InitiativeEntry, turn int) uint {
	for _, e := range entries {
		if e.OrderPosition == turn {
			return e.ID
		}
	}
	return 0
}

// rebindCursor returns the new position of currentID. When that entry is
// gone the cursor keeps its position, wrapping to 1 past the end.
func rebindCursor(turn int, currentID uint, sorted []*models.InitiativeEntry) int {
	if currentID != 0 {
		for _, e := range sorted {
			if e.ID == currentID {
				return e.OrderPosition
			}
		}
	}
	if turn < 1 || turn > len(sorted) {
		return 1
	}
	return turn
}

func (m *Manager) lockActive(ctx context.Context, repo repository.InitiativeRepository, campaignID uint) (*models.InitiativeSession, error) {
	session, err := repo.FindActiveSession(ctx, campaignID)
	if err != nil {
		return nil, m.storageErr(err, apperrors.ErrDatabaseQuery, "find active session")
	}
	if session == nil {
		return nil, apperrors.New(apperrors.ErrNoActiveSession, "No active initiative session.")
	}
	locked, err := repo.LockSession(ctx, session.ID)
	if err != nil {
		return nil, m.storageErr(err, apperrors.ErrDatabaseQuery, "lock session")
	}
	if !locked.IsActive {
		return nil, apperrors.New(apperrors.ErrNoActiveSession, "No active initiative session.")
	}
	return locked, nil
}

func (m *Manager) requireGM(ctx context.Context, campaignID uint, actor Actor, denied string) error {
	if !actor.Verified {
		return apperrors.New(apperrors.ErrRequestNotVerified)
	}
	isGM, err := m.campaigns.IsGameMaster(ctx, campaignID, actor.UserID)
	if err != nil {
		return m.collaboratorErr(err, "check game master")
	}
	if !isGM {
		return apperrors.New(apperrors.ErrPermissionDenied, denied)
	}
	return nil
}

// changed runs after commit: notify subscribers and record the event.
func (m *Manager) changed(ctx context.Context, event string, campaignID, sessionID uint, data map[string]interface{}) {
	m.cfg.Notifier.InitiativeChanged(ctx, campaignID)
	logger.LogInitiativeEvent(event, campaignID, sessionID, data)
}

func (m *Manager) storageErr(err error, code apperrors.ErrorCode, op string) error {
	m.logger.Error("initiative storage failure", zap.String("op", op), zap.Error(err))
	return apperrors.Wrap(err, code, op)
}

// collaboratorErr keeps coded collaborator errors and hides the rest.
func (m *Manager) collaboratorErr(err error, op string) error {
	if apperrors.GetCode(err) != apperrors.ErrUnknown {
		return err
	}
	m.logger.Error("collaborator failure", zap.String("op", op), zap.Error(err))
	return apperrors.Wrap(err, apperrors.ErrInternal, op)
}

// txErr passes coded errors through and wraps commit failures.
func (m *Manager) txErr(err error) error {
	if apperrors.GetCode(err) != apperrors.ErrUnknown {
		return err
	}
	m.logger.Error("initiative transaction failed", zap.Error(err))
	return apperrors.Wrap(err, apperrors.ErrTransaction)
}

func detailsOf(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Details != "" {
		return appErr.Details
	}
	return err.Error()
}
