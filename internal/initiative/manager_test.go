package initiative

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
	apperrors "github.com/wfunc/initiative-tracker/internal/errors"
	"github.com/wfunc/initiative-tracker/internal/models"
	"github.com/wfunc/initiative-tracker/internal/repository"
	"gorm.io/gorm"
)

type ManagerTestSuite struct {
	suite.Suite
	ctx        context.Context
	db         *gorm.DB
	campaigns  *fakeCampaigns
	characters *fakeCharacters
	notifier   *recordingNotifier
	manager    *Manager

	campaignID uint
	gm         Actor
	alice      Actor
	bob        Actor
	outsider   Actor
	aliceChar  uint
	bobChar    uint
}

func (suite *ManagerTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.db = repository.TestDB(suite.T())

	gm := repository.SeedUser(suite.T(), suite.db, "gm")
	alice := repository.SeedUser(suite.T(), suite.db, "alice")
	bob := repository.SeedUser(suite.T(), suite.db, "bob")
	outsider := repository.SeedUser(suite.T(), suite.db, "mallory")
	campaign := repository.SeedCampaign(suite.T(), suite.db, gm.ID, "ABCD1234")

	suite.campaignID = campaign.ID
	suite.gm = Actor{UserID: gm.ID, Verified: true}
	suite.alice = Actor{UserID: alice.ID, Verified: true}
	suite.bob = Actor{UserID: bob.ID, Verified: true}
	suite.outsider = Actor{UserID: outsider.ID, Verified: true}

	suite.aliceChar = suite.seedCharacter(alice.ID, "Alice", 3)
	suite.bobChar = suite.seedCharacter(bob.ID, "Bob", 1)

	suite.campaigns = newFakeCampaigns()
	suite.campaigns.add(campaign.ID, gm.ID, alice.ID, bob.ID)
	suite.characters = newFakeCharacters()
	suite.characters.add(suite.aliceChar, CharacterInfo{Name: "Alice", InitiativeBonus: 3, OwnerUserID: alice.ID})
	suite.characters.add(suite.bobChar, CharacterInfo{Name: "Bob", InitiativeBonus: 1, OwnerUserID: bob.ID})
	suite.notifier = &recordingNotifier{}

	suite.manager = suite.newManager(Config{AllowServerRolls: true})
}

func (suite *ManagerTestSuite) newManager(cfg Config) *Manager {
	if cfg.Notifier == nil {
		cfg.Notifier = suite.notifier
	}
	return NewManager(repository.NewInitiativeRepository(suite.db), suite.campaigns, suite.characters, cfg, nil)
}

func (suite *ManagerTestSuite) seedCharacter(userID uint, name string, bonus int) uint {
	campaignID := suite.campaignID
	char := &models.Character{
		UserID:          userID,
		CampaignID:      &campaignID,
		Name:            name,
		InitiativeBonus: bonus,
		IsActive:        true,
	}
	suite.Require().NoError(suite.db.Create(char).Error)
	return char.ID
}

func (suite *ManagerTestSuite) start() uint {
	id, err := suite.manager.Start(suite.ctx, suite.campaignID, suite.gm)
	suite.Require().NoError(err)
	return id
}

func (suite *ManagerTestSuite) status() *Status {
	status, err := suite.manager.GetStatus(suite.ctx, suite.campaignID, suite.gm.UserID)
	suite.Require().NoError(err)
	return status
}

func (suite *ManagerTestSuite) entryNamed(name string) EntryView {
	for _, e := range suite.status().Entries {
		if e.Name == name {
			return e
		}
	}
	suite.FailNow("entry not found", name)
	return EntryView{}
}

func (suite *ManagerTestSuite) requireContiguous() {
	status := suite.status()
	for i, e := range status.Entries {
		suite.Require().Equal(i+1, e.OrderPosition, "entry %s", e.Name)
	}
}

func npc(name string, roll, bonus int) EntryInput {
	return EntryInput{Name: name, InitiativeRoll: roll, InitiativeBonus: bonus}
}

func (suite *ManagerTestSuite) TestEndToEndEncounter() {
	sessionID := suite.start()

	result, err := suite.manager.AddEntries(suite.ctx, sessionID, suite.gm, []EntryInput{
		{CharacterID: suite.aliceChar, InitiativeRoll: 14, IsPlayer: true},
		npc("Goblin", 9, 1),
		{CharacterID: suite.bobChar, InitiativeRoll: 14, IsPlayer: true},
	})
	suite.Require().NoError(err)
	suite.Len(result.Added, 3)
	suite.Empty(result.Skipped)

	status := suite.status()
	suite.True(status.Active)
	suite.Equal(sessionID, status.Session.ID)
	suite.Require().Len(status.Entries, 3)
	suite.Equal([]string{"Alice", "Bob", "Goblin"}, []string{status.Entries[0].Name, status.Entries[1].Name, status.Entries[2].Name})
	suite.Equal([]int{17, 15, 10}, []int{status.Entries[0].TotalInitiative, status.Entries[1].TotalInitiative, status.Entries[2].TotalInitiative})
	suite.Equal(1, status.Entries[0].OrderPosition)
	suite.Equal(3, status.Entries[2].OrderPosition)
	suite.True(status.Entries[0].IsCurrent)
	suite.Equal("alice", status.Entries[0].PlayerUsername)
	suite.Equal("Alice", status.Entries[0].CharacterName)

	for _, want := range []TurnResult{{2, 1}, {3, 1}, {1, 2}} {
		got, err := suite.manager.NextTurn(suite.ctx, suite.campaignID, suite.gm)
		suite.Require().NoError(err)
		suite.Equal(want, *got)
	}

	goblin := suite.entryNamed("Goblin")
	suite.Require().NoError(suite.manager.RemoveEntry(suite.ctx, suite.campaignID, goblin.ID, suite.gm))

	status = suite.status()
	suite.Require().Len(status.Entries, 2)
	suite.Equal("Alice", status.Entries[0].Name)
	suite.Equal(1, status.Entries[0].OrderPosition)
	suite.Equal("Bob", status.Entries[1].Name)
	suite.Equal(2, status.Entries[1].OrderPosition)
	suite.Equal(1, status.Session.CurrentTurn)
	suite.Equal(2, status.Session.RoundNumber)

	suite.Require().NoError(suite.manager.End(suite.ctx, suite.campaignID, suite.gm))

	status = suite.status()
	suite.False(status.Active)
	body, err := json.Marshal(status)
	suite.Require().NoError(err)
	suite.JSONEq(`{"active":false}`, string(body))

	var kept int64
	suite.Require().NoError(suite.db.Model(&models.InitiativeEntry{}).Where("session_id = ?", sessionID).Count(&kept).Error)
	suite.Equal(int64(3), kept)
}

func (suite *ManagerTestSuite) TestStartRequiresGameMaster() {
	_, err := suite.manager.Start(suite.ctx, suite.campaignID, suite.alice)
	suite.True(apperrors.Is(err, apperrors.ErrPermissionDenied))
	suite.False(apperrors.IsStateError(err))
	suite.Zero(suite.notifier.count())
}

func (suite *ManagerTestSuite) TestSingleActiveSession() {
	first := suite.start()

	_, err := suite.manager.Start(suite.ctx, suite.campaignID, suite.gm)
	suite.True(apperrors.Is(err, apperrors.ErrSessionAlreadyActive))
	suite.True(apperrors.IsStateError(err))

	suite.Require().NoError(suite.manager.End(suite.ctx, suite.campaignID, suite.gm))
	second := suite.start()
	suite.NotEqual(first, second)

	var active int64
	suite.Require().NoError(suite.db.Model(&models.InitiativeSession{}).
		Where("campaign_id = ? AND is_active = ?", suite.campaignID, true).Count(&active).Error)
	suite.Equal(int64(1), active)
}

func (suite *ManagerTestSuite) TestNewSessionStartsAtTurnOneRoundOne() {
	suite.start()

	status := suite.status()
	suite.True(status.Active)
	suite.Equal(1, status.Session.CurrentTurn)
	suite.Equal(1, status.Session.RoundNumber)
	suite.Empty(status.Entries)

	body, err := json.Marshal(status)
	suite.Require().NoError(err)
	suite.Contains(string(body), `"entries":[]`)
}

func (suite *ManagerTestSuite) TestSingleActiveSessionAcrossManagers() {
	// each manager has its own in-process locks, as two server processes would
	managers := []*Manager{suite.manager, suite.newManager(Config{AllowServerRolls: true})}

	var wg sync.WaitGroup
	errs := make([]error, len(managers))
	for i, m := range managers {
		wg.Add(1)
		go func(i int, m *Manager) {
			defer wg.Done()
			_, errs[i] = m.Start(suite.ctx, suite.campaignID, suite.gm)
		}(i, m)
	}
	wg.Wait()

	started := 0
	for _, err := range errs {
		if err == nil {
			started++
			continue
		}
		suite.True(apperrors.Is(err, apperrors.ErrSessionAlreadyActive), err.Error())
	}
	suite.Equal(1, started)

	var active int64
	suite.Require().NoError(suite.db.Model(&models.InitiativeSession{}).
		Where("campaign_id = ? AND is_active = ?", suite.campaignID, true).
		Count(&active).Error)
	suite.Equal(int64(1), active)
}

func (suite *ManagerTestSuite) TestStartUnknownCampaign() {
	suite.campaigns.add(9999, suite.gm.UserID)

	_, err := suite.manager.Start(suite.ctx, 9999, suite.gm)
	suite.True(apperrors.Is(err, apperrors.ErrNotFound))
}

func (suite *ManagerTestSuite) TestUnverifiedMutationsRejected() {
	sessionID := suite.start()
	unverified := Actor{UserID: suite.gm.UserID}

	_, err := suite.manager.Start(suite.ctx, suite.campaignID, unverified)
	suite.True(apperrors.Is(err, apperrors.ErrRequestNotVerified))
	_, err = suite.manager.AddEntries(suite.ctx, sessionID, unverified, []EntryInput{npc("Orc", 10, 0)})
	suite.True(apperrors.Is(err, apperrors.ErrRequestNotVerified))
	_, err = suite.manager.NextTurn(suite.ctx, suite.campaignID, unverified)
	suite.True(apperrors.Is(err, apperrors.ErrRequestNotVerified))
	err = suite.manager.RemoveEntry(suite.ctx, suite.campaignID, 1, unverified)
	suite.True(apperrors.Is(err, apperrors.ErrRequestNotVerified))
	err = suite.manager.End(suite.ctx, suite.campaignID, unverified)
	suite.True(apperrors.Is(err, apperrors.ErrRequestNotVerified))

	suite.True(suite.status().Active)
}

func (suite *ManagerTestSuite) TestNextTurnStateErrors() {
	_, err := suite.manager.NextTurn(suite.ctx, suite.campaignID, suite.gm)
	suite.True(apperrors.Is(err, apperrors.ErrNoActiveSession))

	suite.start()
	_, err = suite.manager.NextTurn(suite.ctx, suite.campaignID, suite.gm)
	suite.True(apperrors.Is(err, apperrors.ErrNoEntries))

	_, err = suite.manager.NextTurn(suite.ctx, suite.campaignID, suite.alice)
	suite.True(apperrors.Is(err, apperrors.ErrPermissionDenied))

	err = suite.manager.End(suite.ctx, suite.campaignID, suite.alice)
	suite.True(apperrors.Is(err, apperrors.ErrPermissionDenied))
}

func (suite *ManagerTestSuite) TestEndWithoutSession() {
	err := suite.manager.End(suite.ctx, suite.campaignID, suite.gm)
	suite.True(apperrors.Is(err, apperrors.ErrNoActiveSession))
}

func (suite *ManagerTestSuite) TestTurnWraparound() {
	sessionID := suite.start()
	_, err := suite.manager.AddEntries(suite.ctx, sessionID, suite.gm, []EntryInput{
		npc("A", 18, 0), npc("B", 12, 0), npc("C", 6, 0),
	})
	suite.Require().NoError(err)

	suite.Require().NoError(suite.db.Model(&models.InitiativeSession{}).Where("id = ?", sessionID).
		Update("current_turn", 3).Error)

	got, err := suite.manager.NextTurn(suite.ctx, suite.campaignID, suite.gm)
	suite.Require().NoError(err)
	suite.Equal(TurnResult{Turn: 1, Round: 2}, *got)

	got, err = suite.manager.NextTurn(suite.ctx, suite.campaignID, suite.gm)
	suite.Require().NoError(err)
	suite.Equal(TurnResult{Turn: 2, Round: 2}, *got)
}

func (suite *ManagerTestSuite) TestPlayerAddAuthorization() {
	sessionID := suite.start()

	result, err := suite.manager.AddEntries(suite.ctx, sessionID, suite.alice, []EntryInput{
		{CharacterID: suite.aliceChar, InitiativeRoll: 11, IsPlayer: true},
		npc("Sneaky Dragon", 20, 10),
		{CharacterID: suite.bobChar, InitiativeRoll: 20, IsPlayer: true},
		{CharacterID: suite.aliceChar, InitiativeRoll: 5, IsPlayer: false},
	})
	suite.Require().NoError(err)
	suite.Len(result.Added, 1)
	suite.Require().Len(result.Skipped, 3)
	suite.Equal(1, result.Skipped[0].Index)
	suite.Equal(2, result.Skipped[1].Index)
	suite.Equal(3, result.Skipped[2].Index)

	status := suite.status()
	suite.Require().Len(status.Entries, 1)
	suite.Equal("Alice", status.Entries[0].Name)
	suite.Equal(3, status.Entries[0].InitiativeBonus)
}

func (suite *ManagerTestSuite) TestNonMemberCannotAdd() {
	sessionID := suite.start()

	_, err := suite.manager.AddEntries(suite.ctx, sessionID, suite.outsider, []EntryInput{npc("X", 10, 0)})
	suite.True(apperrors.Is(err, apperrors.ErrPermissionDenied))
}

func (suite *ManagerTestSuite) TestCharacterSheetIsAuthoritative() {
	sessionID := suite.start()

	_, err := suite.manager.AddEntries(suite.ctx, sessionID, suite.gm, []EntryInput{
		{CharacterID: suite.bobChar, Name: "Not Bob", InitiativeRoll: 10, InitiativeBonus: 9, IsPlayer: true},
		{CharacterID: 9999, Name: "Ghost", InitiativeRoll: 10, IsPlayer: true},
	})
	suite.Require().NoError(err)

	status := suite.status()
	suite.Require().Len(status.Entries, 1)
	suite.Equal("Bob", status.Entries[0].Name)
	suite.Equal(11, status.Entries[0].TotalInitiative)
}

func (suite *ManagerTestSuite) TestRollBounds() {
	sessionID := suite.start()

	result, err := suite.manager.AddEntries(suite.ctx, sessionID, suite.gm, []EntryInput{
		npc("zero", 0, 0), npc("one", 1, 0), npc("twenty", 20, 0), npc("twentyone", 21, 0), npc("negative", -3, 0),
	})
	suite.Require().NoError(err)
	suite.Len(result.Added, 2)
	suite.Len(result.Skipped, 3)

	status := suite.status()
	suite.Require().Len(status.Entries, 2)
	suite.Equal("twenty", status.Entries[0].Name)
	suite.Equal("one", status.Entries[1].Name)
}

func (suite *ManagerTestSuite) TestServerRolls() {
	sessionID := suite.start()
	suite.manager = suite.newManager(Config{
		AllowServerRolls: true,
		Roller:           RollerFunc(func(sides int) int { return 13 }),
	})

	_, err := suite.manager.AddEntries(suite.ctx, sessionID, suite.gm, []EntryInput{
		{Name: "Rolled", AutoRoll: true},
		{Name: "Explicit", InitiativeRoll: 4, AutoRoll: true},
	})
	suite.Require().NoError(err)
	suite.Equal(13, suite.entryNamed("Rolled").InitiativeRoll)
	suite.Equal(4, suite.entryNamed("Explicit").InitiativeRoll)

	disabled := suite.newManager(Config{
		AllowServerRolls: false,
		Roller:           RollerFunc(func(sides int) int { return 13 }),
	})
	result, err := disabled.AddEntries(suite.ctx, sessionID, suite.gm, []EntryInput{{Name: "Unrolled", AutoRoll: true}})
	suite.Require().NoError(err)
	suite.Empty(result.Added)
	suite.Len(result.Skipped, 1)
}

func (suite *ManagerTestSuite) TestSanitisedNames() {
	sessionID := suite.start()

	result, err := suite.manager.AddEntries(suite.ctx, sessionID, suite.gm, []EntryInput{
		npc("<i>Kobold</i>", 10, 0),
		npc("<script>x</script>", 10, 0),
	})
	suite.Require().NoError(err)
	suite.Len(result.Added, 1)
	suite.Equal("Kobold", suite.status().Entries[0].Name)
}

func (suite *ManagerTestSuite) TestBatchLimits() {
	sessionID := suite.start()

	_, err := suite.manager.AddEntries(suite.ctx, sessionID, suite.gm, nil)
	suite.True(apperrors.Is(err, apperrors.ErrInvalidParam))

	small := suite.newManager(Config{MaxBatchSize: 2})
	_, err = small.AddEntries(suite.ctx, sessionID, suite.gm, []EntryInput{npc("a", 1, 0), npc("b", 2, 0), npc("c", 3, 0)})
	suite.True(apperrors.Is(err, apperrors.ErrInvalidParam))
}

func (suite *ManagerTestSuite) TestAddToMissingOrEndedSession() {
	_, err := suite.manager.AddEntries(suite.ctx, 404, suite.gm, []EntryInput{npc("a", 5, 0)})
	suite.True(apperrors.Is(err, apperrors.ErrNotFound))

	sessionID := suite.start()
	suite.Require().NoError(suite.manager.End(suite.ctx, suite.campaignID, suite.gm))

	_, err = suite.manager.AddEntries(suite.ctx, sessionID, suite.gm, []EntryInput{npc("a", 5, 0)})
	suite.True(apperrors.Is(err, apperrors.ErrSessionNotActive))
	suite.True(apperrors.IsStateError(err))
}

func (suite *ManagerTestSuite) TestRemovePermissions() {
	sessionID := suite.start()
	_, err := suite.manager.AddEntries(suite.ctx, sessionID, suite.gm, []EntryInput{
		{CharacterID: suite.aliceChar, InitiativeRoll: 10, IsPlayer: true},
		{CharacterID: suite.bobChar, InitiativeRoll: 10, IsPlayer: true},
		npc("Troll", 8, 0),
	})
	suite.Require().NoError(err)
	alice := suite.entryNamed("Alice")
	troll := suite.entryNamed("Troll")

	err = suite.manager.RemoveEntry(suite.ctx, suite.campaignID, alice.ID, suite.bob)
	suite.True(apperrors.Is(err, apperrors.ErrPermissionDenied))
	err = suite.manager.RemoveEntry(suite.ctx, suite.campaignID, troll.ID, suite.alice)
	suite.True(apperrors.Is(err, apperrors.ErrPermissionDenied))

	suite.Require().NoError(suite.manager.RemoveEntry(suite.ctx, suite.campaignID, alice.ID, suite.alice))
	suite.Len(suite.status().Entries, 2)
	suite.requireContiguous()

	err = suite.manager.RemoveEntry(suite.ctx, suite.campaignID, alice.ID, suite.gm)
	suite.True(apperrors.Is(err, apperrors.ErrNotFound))
	err = suite.manager.RemoveEntry(suite.ctx, suite.campaignID, 9999, suite.gm)
	suite.True(apperrors.Is(err, apperrors.ErrNotFound))
	err = suite.manager.RemoveEntry(suite.ctx, suite.campaignID+1, troll.ID, suite.gm)
	suite.True(apperrors.Is(err, apperrors.ErrNotFound))

	suite.Require().NoError(suite.manager.End(suite.ctx, suite.campaignID, suite.gm))
	err = suite.manager.RemoveEntry(suite.ctx, suite.campaignID, troll.ID, suite.gm)
	suite.True(apperrors.Is(err, apperrors.ErrSessionNotActive))
}

func (suite *ManagerTestSuite) TestCursorFollowsCombatant() {
	sessionID := suite.start()
	_, err := suite.manager.AddEntries(suite.ctx, sessionID, suite.gm, []EntryInput{
		npc("A", 20, 0), npc("B", 15, 0), npc("C", 10, 0),
	})
	suite.Require().NoError(err)
	_, err = suite.manager.NextTurn(suite.ctx, suite.campaignID, suite.gm)
	suite.Require().NoError(err)

	current := func() (string, int, int) {
		status := suite.status()
		entry, ok := status.Current()
		suite.Require().True(ok)
		return entry.Name, status.Session.CurrentTurn, status.Session.RoundNumber
	}

	name, turn, _ := current()
	suite.Equal("B", name)
	suite.Equal(2, turn)

	// a faster newcomer pushes B down without taking the turn
	_, err = suite.manager.AddEntries(suite.ctx, sessionID, suite.gm, []EntryInput{npc("D", 18, 0)})
	suite.Require().NoError(err)
	name, turn, _ = current()
	suite.Equal("B", name)
	suite.Equal(3, turn)

	// removing an earlier combatant keeps the turn with B
	suite.Require().NoError(suite.manager.RemoveEntry(suite.ctx, suite.campaignID, suite.entryNamed("A").ID, suite.gm))
	name, turn, _ = current()
	suite.Equal("B", name)
	suite.Equal(2, turn)

	// removing the current combatant hands the turn to the next one
	suite.Require().NoError(suite.manager.RemoveEntry(suite.ctx, suite.campaignID, suite.entryNamed("B").ID, suite.gm))
	name, turn, _ = current()
	suite.Equal("C", name)
	suite.Equal(2, turn)

	// removing the last one wraps without starting a new round
	suite.Require().NoError(suite.manager.RemoveEntry(suite.ctx, suite.campaignID, suite.entryNamed("C").ID, suite.gm))
	name, turn, round := current()
	suite.Equal("D", name)
	suite.Equal(1, turn)
	suite.Equal(1, round)
}

func (suite *ManagerTestSuite) TestAddsBeforeFirstTurnKeepCursorAtTop() {
	sessionID := suite.start()

	_, err := suite.manager.AddEntries(suite.ctx, sessionID, suite.alice, []EntryInput{
		{CharacterID: suite.aliceChar, InitiativeRoll: 14, IsPlayer: true},
	})
	suite.Require().NoError(err)
	_, err = suite.manager.AddEntries(suite.ctx, sessionID, suite.gm, []EntryInput{npc("Goblin", 20, 1)})
	suite.Require().NoError(err)

	status := suite.status()
	current, ok := status.Current()
	suite.Require().True(ok)
	suite.Equal("Goblin", current.Name)
	suite.Equal(1, status.Session.CurrentTurn)
	suite.Equal(1, status.Session.RoundNumber)

	// every combatant gets a turn before the round ends
	for _, want := range []TurnResult{{2, 1}, {1, 2}} {
		got, err := suite.manager.NextTurn(suite.ctx, suite.campaignID, suite.gm)
		suite.Require().NoError(err)
		suite.Equal(want, *got)
	}

	// the same holds at the top of a later round
	_, err = suite.manager.AddEntries(suite.ctx, sessionID, suite.gm, []EntryInput{npc("Dragon", 20, 5)})
	suite.Require().NoError(err)
	current, ok = suite.status().Current()
	suite.Require().True(ok)
	suite.Equal("Dragon", current.Name)

	for _, want := range []TurnResult{{2, 2}, {3, 2}, {1, 3}} {
		got, err := suite.manager.NextTurn(suite.ctx, suite.campaignID, suite.gm)
		suite.Require().NoError(err)
		suite.Equal(want, *got)
	}
}

func (suite *ManagerTestSuite) TestFreeformEntriesAreNPCs() {
	sessionID := suite.start()

	_, err := suite.manager.AddEntries(suite.ctx, sessionID, suite.gm, []EntryInput{
		{Name: "Goblin", InitiativeRoll: 9, IsPlayer: true},
		{CharacterID: suite.aliceChar, InitiativeRoll: 12, IsPlayer: true},
	})
	suite.Require().NoError(err)

	suite.False(suite.entryNamed("Goblin").IsPlayer)
	suite.True(suite.entryNamed("Alice").IsPlayer)

	var stored models.InitiativeEntry
	suite.Require().NoError(suite.db.Where("name = ?", "Goblin").First(&stored).Error)
	suite.False(stored.IsPlayer)
	suite.Nil(stored.CharacterID)
}

func (suite *ManagerTestSuite) TestConcurrentAddsStayContiguous() {
	sessionID := suite.start()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			batch := make([]EntryInput, 0, 3)
			for j := 0; j < 3; j++ {
				batch = append(batch, npc(fmt.Sprintf("npc-%d-%d", i, j), (i*3+j)%20+1, j-1))
			}
			_, err := suite.manager.AddEntries(suite.ctx, sessionID, suite.gm, batch)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		suite.Require().NoError(err)
	}

	status := suite.status()
	suite.Len(status.Entries, 30)
	suite.requireContiguous()
	for i := 1; i < len(status.Entries); i++ {
		suite.GreaterOrEqual(status.Entries[i-1].TotalInitiative, status.Entries[i].TotalInitiative)
	}
}

func (suite *ManagerTestSuite) TestStatusRequiresMembership() {
	_, err := suite.manager.GetStatus(suite.ctx, suite.campaignID, suite.outsider.UserID)
	suite.True(apperrors.Is(err, apperrors.ErrPermissionDenied))

	status, err := suite.manager.GetStatus(suite.ctx, suite.campaignID, suite.bob.UserID)
	suite.Require().NoError(err)
	suite.False(status.Active)
}

func (suite *ManagerTestSuite) TestNotifiesAfterCommit() {
	sessionID := suite.start()
	_, err := suite.manager.AddEntries(suite.ctx, sessionID, suite.gm, []EntryInput{npc("A", 5, 0)})
	suite.Require().NoError(err)
	_, err = suite.manager.NextTurn(suite.ctx, suite.campaignID, suite.gm)
	suite.Require().NoError(err)
	suite.Require().NoError(suite.manager.End(suite.ctx, suite.campaignID, suite.gm))

	suite.Equal(4, suite.notifier.count())
	for _, id := range suite.notifier.calls {
		suite.Equal(suite.campaignID, id)
	}

	// an all-skipped batch changes nothing and notifies nobody
	suite.start()
	before := suite.notifier.count()
	status := suite.status()
	_, err = suite.manager.AddEntries(suite.ctx, status.Session.ID, suite.gm, []EntryInput{npc("bad", 0, 0)})
	suite.Require().NoError(err)
	suite.Equal(before, suite.notifier.count())
}

func (suite *ManagerTestSuite) TestHistory() {
	suite.start()
	suite.Require().NoError(suite.manager.End(suite.ctx, suite.campaignID, suite.gm))
	latest := suite.start()

	page, err := suite.manager.History(suite.ctx, suite.campaignID, suite.alice.UserID, 1, 10)
	suite.Require().NoError(err)
	suite.Equal(int64(2), page.Total)
	suite.Require().Len(page.Sessions, 2)
	suite.Equal(latest, page.Sessions[0].ID)
	suite.True(page.Sessions[0].IsActive)
	suite.NotNil(page.Sessions[1].EndedAt)

	_, err = suite.manager.History(suite.ctx, suite.campaignID, suite.outsider.UserID, 1, 10)
	suite.True(apperrors.Is(err, apperrors.ErrPermissionDenied))
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerTestSuite))
}
