package service

import (
	"context"
	stderrors "errors"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/wfunc/initiative-tracker/internal/errors"
	"github.com/wfunc/initiative-tracker/internal/initiative"
	"github.com/wfunc/initiative-tracker/internal/models"
	"github.com/wfunc/initiative-tracker/internal/repository"
	"go.uber.org/zap"
)

// Limits on character sheet values.
const (
	MinInitiativeBonus = -10
	MaxInitiativeBonus = 20
	MaxCharacterLevel  = 20
)

// characterService CharacterService implementation. It also serves the
// initiative core as its Characters collaborator.
type characterService struct {
	characterRepo repository.CharacterRepository
	campaigns     CampaignService
	policy        *bluemonday.Policy
	log           *zap.Logger
}

func NewCharacterService(characterRepo repository.CharacterRepository, campaigns CampaignService, log *zap.Logger) CharacterService {
	return &characterService{
		characterRepo: characterRepo,
		campaigns:     campaigns,
		policy:        bluemonday.StrictPolicy(),
		log:           log,
	}
}

// Create stores a sheet for req.UserID. NPC sheets belong to a campaign
// and only its GM may create them.
func (s *characterService) Create(ctx context.Context, req *CreateCharacterRequest) (*models.Character, error) {
	name := cleanText(s.policy, req.Name)
	if n := utf8.RuneCountInString(name); n < 1 || n > 100 {
		return nil, errors.New(errors.ErrInvalidParam, "Character name must be between 1 and 100 characters.")
	}
	if req.InitiativeBonus < MinInitiativeBonus || req.InitiativeBonus > MaxInitiativeBonus {
		return nil, errors.Newf(errors.ErrInvalidParam, "Initiative bonus must be between %d and %d.", MinInitiativeBonus, MaxInitiativeBonus)
	}
	level := req.Level
	if level == 0 {
		level = 1
	}
	if level < 1 || level > MaxCharacterLevel {
		return nil, errors.Newf(errors.ErrInvalidParam, "Level must be between 1 and %d.", MaxCharacterLevel)
	}

	if req.CampaignID == nil {
		if req.IsNPC {
			return nil, errors.New(errors.ErrInvalidParam, "NPCs must belong to a campaign.")
		}
	} else {
		member, err := s.campaigns.IsCampaignMember(ctx, *req.CampaignID, req.UserID)
		if err != nil {
			return nil, err
		}
		if !member {
			return nil, errors.New(errors.ErrPermissionDenied, "You are not a member of this campaign.")
		}
		if req.IsNPC {
			gm, err := s.campaigns.IsGameMaster(ctx, *req.CampaignID, req.UserID)
			if err != nil {
				return nil, err
			}
			if !gm {
				return nil, errors.New(errors.ErrPermissionDenied, "Only Game Masters can create NPCs.")
			}
		}
	}

	character := &models.Character{
		UserID:          req.UserID,
		CampaignID:      req.CampaignID,
		Name:            name,
		Race:            cleanText(s.policy, req.Race),
		Class:           cleanText(s.policy, req.Class),
		Level:           level,
		InitiativeBonus: req.InitiativeBonus,
		IsNPC:           req.IsNPC,
		IsActive:        true,
	}
	if err := s.characterRepo.Create(ctx, character); err != nil {
		s.log.Error("Failed to create character", zap.Error(err), zap.Uint("userID", req.UserID))
		return nil, errors.Wrap(err, errors.ErrDatabaseInsert)
	}

	s.log.Info("Character created",
		zap.Uint("characterID", character.ID),
		zap.Uint("userID", character.UserID),
		zap.Bool("npc", character.IsNPC))
	return character, nil
}

// ListForCampaign returns the campaign's active sheets to a member.
func (s *characterService) ListForCampaign(ctx context.Context, campaignID, userID uint) ([]*models.Character, error) {
	member, err := s.campaigns.IsCampaignMember(ctx, campaignID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, errors.New(errors.ErrPermissionDenied, "You are not a member of this campaign.")
	}

	characters, err := s.characterRepo.ListForCampaign(ctx, campaignID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return characters, nil
}

// Delete deactivates a sheet. Only its owner may do so.
func (s *characterService) Delete(ctx context.Context, characterID, userID uint) error {
	character, err := s.characterRepo.FindActiveByID(ctx, characterID)
	if err != nil || character.UserID != userID {
		if err != nil && !stderrors.Is(err, repository.ErrRecordNotFound) {
			return errors.Wrap(err, errors.ErrDatabaseQuery)
		}
		return errors.New(errors.ErrNotFound, "Character not found or you do not have permission to delete it.")
	}
	if err := s.characterRepo.Deactivate(ctx, characterID); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseUpdate)
	}
	return nil
}

// ResolveCharacter returns the authoritative name and bonus of an active
// sheet.
func (s *characterService) ResolveCharacter(ctx context.Context, characterID uint) (*initiative.CharacterInfo, error) {
	character, err := s.characterRepo.FindActiveByID(ctx, characterID)
	if err != nil {
		if stderrors.Is(err, repository.ErrRecordNotFound) {
			return nil, errors.New(errors.ErrNotFound, "Character not found.")
		}
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return &initiative.CharacterInfo{
		Name:            character.Name,
		InitiativeBonus: character.InitiativeBonus,
		OwnerUserID:     character.UserID,
	}, nil
}

// IsCharacterOwner is false for unknown sheets.
func (s *characterService) IsCharacterOwner(ctx context.Context, characterID, userID uint) (bool, error) {
	character, err := s.characterRepo.FindByID(ctx, characterID)
	if err != nil {
		if stderrors.Is(err, repository.ErrRecordNotFound) {
			return false, nil
		}
		return false, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return character.UserID == userID, nil
}
