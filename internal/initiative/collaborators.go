package initiative

import "context"

// CharacterInfo is what the core needs from a character sheet.
type CharacterInfo struct {
	Name            string
	InitiativeBonus int
	OwnerUserID     uint
}

// Campaigns answers role questions about a campaign.
type Campaigns interface {
	IsGameMaster(ctx context.Context, campaignID, userID uint) (bool, error)
	IsCampaignMember(ctx context.Context, campaignID, userID uint) (bool, error)
}

// Characters resolves character sheets. ResolveCharacter returns an error
// coded ErrNotFound for unknown or inactive characters.
type Characters interface {
	ResolveCharacter(ctx context.Context, characterID uint) (*CharacterInfo, error)
	IsCharacterOwner(ctx context.Context, characterID, userID uint) (bool, error)
}

// Notifier is told after a campaign's turn order has changed and the change
// is committed.
type Notifier interface {
	InitiativeChanged(ctx context.Context, campaignID uint)
}

type nopNotifier struct{}

func (nopNotifier) InitiativeChanged(context.Context, uint) {}
