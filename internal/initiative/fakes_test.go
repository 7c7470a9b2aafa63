package initiative

import (
	"context"
	"sync"

	apperrors "github.com/wfunc/initiative-tracker/internal/errors"
)

type fakeCampaigns struct {
	mu      sync.Mutex
	gm      map[uint]uint
	members map[uint]map[uint]bool
}

func newFakeCampaigns() *fakeCampaigns {
	return &fakeCampaigns{
		gm:      make(map[uint]uint),
		members: make(map[uint]map[uint]bool),
	}
}

func (f *fakeCampaigns) add(campaignID, gmID uint, players ...uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gm[campaignID] = gmID
	f.members[campaignID] = map[uint]bool{gmID: true}
	for _, p := range players {
		f.members[campaignID][p] = true
	}
}

func (f *fakeCampaigns) IsGameMaster(_ context.Context, campaignID, userID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	gm, ok := f.gm[campaignID]
	return ok && gm == userID, nil
}

func (f *fakeCampaigns) IsCampaignMember(_ context.Context, campaignID, userID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[campaignID][userID], nil
}

type fakeCharacters struct {
	mu    sync.Mutex
	chars map[uint]CharacterInfo
}

func newFakeCharacters() *fakeCharacters {
	return &fakeCharacters{chars: make(map[uint]CharacterInfo)}
}

func (f *fakeCharacters) add(id uint, info CharacterInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chars[id] = info
}

func (f *fakeCharacters) ResolveCharacter(_ context.Context, id uint) (*CharacterInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.chars[id]
	if !ok {
		return nil, apperrors.New(apperrors.ErrNotFound, "Character not found.")
	}
	return &info, nil
}

func (f *fakeCharacters) IsCharacterOwner(_ context.Context, id, userID uint) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, ok := f.chars[id]
	return ok && info.OwnerUserID == userID, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []uint
}

func (n *recordingNotifier) InitiativeChanged(_ context.Context, campaignID uint) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, campaignID)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}
