package service

import (
	"context"
	stderrors "errors"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/wfunc/initiative-tracker/internal/errors"
	"github.com/wfunc/initiative-tracker/internal/models"
	"github.com/wfunc/initiative-tracker/internal/repository"
	"github.com/wfunc/initiative-tracker/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultMaxPlayers = 6
	maxJoinCodeTries  = 10
)

// campaignService CampaignService implementation
type campaignService struct {
	campaignRepo repository.CampaignRepository
	policy       *bluemonday.Policy
	log          *zap.Logger
}

func NewCampaignService(campaignRepo repository.CampaignRepository, log *zap.Logger) CampaignService {
	return &campaignService{
		campaignRepo: campaignRepo,
		policy:       bluemonday.StrictPolicy(),
		log:          log,
	}
}

// Create stores a campaign with a fresh join code. The GM becomes its first
// member.
func (s *campaignService) Create(ctx context.Context, req *CreateCampaignRequest) (*models.Campaign, error) {
	name := cleanText(s.policy, req.Name)
	if n := utf8.RuneCountInString(name); n < 3 || n > 100 {
		return nil, errors.New(errors.ErrInvalidParam, "Campaign name must be between 3 and 100 characters.")
	}
	description := cleanText(s.policy, req.Description)
	if utf8.RuneCountInString(description) > 1000 {
		return nil, errors.New(errors.ErrInvalidParam, "Description must be at most 1000 characters.")
	}
	maxPlayers := req.MaxPlayers
	if maxPlayers == 0 {
		maxPlayers = DefaultMaxPlayers
	}
	if maxPlayers < 1 || maxPlayers > 10 {
		return nil, errors.New(errors.ErrInvalidParam, "Maximum players must be between 1 and 10.")
	}

	code, err := s.uniqueJoinCode(ctx)
	if err != nil {
		return nil, err
	}

	campaign := &models.Campaign{
		Name:         name,
		Description:  description,
		GameMasterID: req.GameMasterID,
		JoinCode:     code,
		MaxPlayers:   maxPlayers,
		Status:       models.CampaignStatusActive,
	}
	err = s.campaignRepo.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.campaignRepo.WithTx(tx)
		if err := repo.Create(ctx, campaign); err != nil {
			return err
		}
		return repo.AddMember(ctx, &models.CampaignMember{
			CampaignID: campaign.ID,
			UserID:     req.GameMasterID,
			IsActive:   true,
		})
	})
	if err != nil {
		s.log.Error("Failed to create campaign", zap.Error(err), zap.Uint("gmID", req.GameMasterID))
		return nil, errors.Wrap(err, errors.ErrDatabaseInsert)
	}

	s.log.Info("Campaign created",
		zap.Uint("campaignID", campaign.ID),
		zap.Uint("gmID", campaign.GameMasterID),
		zap.String("joinCode", campaign.JoinCode))
	return campaign, nil
}

func (s *campaignService) uniqueJoinCode(ctx context.Context) (string, error) {
	for i := 0; i < maxJoinCodeTries; i++ {
		code := utils.GenerateJoinCode()
		exists, err := s.campaignRepo.JoinCodeExists(ctx, code)
		if err != nil {
			return "", errors.Wrap(err, errors.ErrDatabaseQuery)
		}
		if !exists {
			return code, nil
		}
	}
	return "", errors.New(errors.ErrInternal, "could not allocate a join code")
}

// Join adds userID to the campaign behind joinCode.
func (s *campaignService) Join(ctx context.Context, joinCode string, userID uint) (*models.Campaign, error) {
	code := strings.ToUpper(strings.TrimSpace(joinCode))
	if len(code) != utils.JoinCodeLength {
		return nil, errors.New(errors.ErrNotFound, "Invalid join code or campaign not found.")
	}

	campaign, err := s.campaignRepo.FindByJoinCode(ctx, code)
	if err != nil {
		if stderrors.Is(err, repository.ErrRecordNotFound) {
			return nil, errors.New(errors.ErrNotFound, "Invalid join code or campaign not found.")
		}
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	if campaign.IsArchived() {
		return nil, errors.New(errors.ErrNotFound, "Invalid join code or campaign not found.")
	}

	err = s.campaignRepo.Transaction(ctx, func(tx *gorm.DB) error {
		repo := s.campaignRepo.WithTx(tx)

		if _, err := repo.FindMember(ctx, campaign.ID, userID); err == nil {
			return errors.New(errors.ErrAlreadyExists, "You are already a member of this campaign.")
		} else if !stderrors.Is(err, repository.ErrRecordNotFound) {
			return err
		}

		count, err := repo.CountActiveMembers(ctx, campaign.ID)
		if err != nil {
			return err
		}
		if count >= int64(campaign.MaxPlayers) {
			return errors.New(errors.ErrCampaignFull, "This campaign is full.")
		}

		return repo.AddMember(ctx, &models.CampaignMember{
			CampaignID: campaign.ID,
			UserID:     userID,
			IsActive:   true,
		})
	})
	if err != nil {
		if errors.GetCode(err) != errors.ErrUnknown {
			return nil, err
		}
		s.log.Error("Failed to join campaign", zap.Error(err), zap.Uint("campaignID", campaign.ID))
		return nil, errors.Wrap(err, errors.ErrDatabaseInsert)
	}

	s.log.Info("User joined campaign", zap.Uint("campaignID", campaign.ID), zap.Uint("userID", userID))
	return campaign, nil
}

// Get returns the campaign and roster to one of its members.
func (s *campaignService) Get(ctx context.Context, campaignID, userID uint) (*CampaignDetails, error) {
	campaign, err := s.find(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if !s.memberOf(ctx, campaign, userID) {
		return nil, errors.New(errors.ErrPermissionDenied, "You are not a member of this campaign.")
	}

	members, err := s.campaignRepo.ListMembers(ctx, campaignID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return &CampaignDetails{
		Campaign:     campaign,
		Members:      members,
		IsGameMaster: campaign.GameMasterID == userID,
	}, nil
}

func (s *campaignService) ListForUser(ctx context.Context, userID uint, page, pageSize int) ([]*models.Campaign, *repository.Pagination, error) {
	p := repository.NewPagination(page, pageSize)
	campaigns, err := s.campaignRepo.ListForUser(ctx, userID, p)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return campaigns, p, nil
}

// Archive closes the campaign to every further action. GM only.
func (s *campaignService) Archive(ctx context.Context, campaignID, userID uint) error {
	campaign, err := s.find(ctx, campaignID)
	if err != nil {
		return err
	}
	if campaign.GameMasterID != userID {
		return errors.New(errors.ErrPermissionDenied, "Only the Game Master can archive the campaign.")
	}
	if campaign.IsArchived() {
		return errors.New(errors.ErrCampaignArchived)
	}
	if err := s.campaignRepo.UpdateStatus(ctx, campaignID, models.CampaignStatusArchived); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseUpdate)
	}
	s.log.Info("Campaign archived", zap.Uint("campaignID", campaignID))
	return nil
}

// IsGameMaster is false for unknown and archived campaigns.
func (s *campaignService) IsGameMaster(ctx context.Context, campaignID, userID uint) (bool, error) {
	campaign, err := s.campaignRepo.FindByID(ctx, campaignID)
	if err != nil {
		if stderrors.Is(err, repository.ErrRecordNotFound) {
			return false, nil
		}
		return false, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return !campaign.IsArchived() && campaign.GameMasterID == userID, nil
}

// IsCampaignMember counts the GM as a member. Archived campaigns have none.
func (s *campaignService) IsCampaignMember(ctx context.Context, campaignID, userID uint) (bool, error) {
	campaign, err := s.campaignRepo.FindByID(ctx, campaignID)
	if err != nil {
		if stderrors.Is(err, repository.ErrRecordNotFound) {
			return false, nil
		}
		return false, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	if campaign.IsArchived() {
		return false, nil
	}
	if campaign.GameMasterID == userID {
		return true, nil
	}
	ok, err := s.campaignRepo.IsActiveMember(ctx, campaignID, userID)
	if err != nil {
		return false, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return ok, nil
}

func (s *campaignService) find(ctx context.Context, campaignID uint) (*models.Campaign, error) {
	campaign, err := s.campaignRepo.FindByID(ctx, campaignID)
	if err != nil {
		if stderrors.Is(err, repository.ErrRecordNotFound) {
			return nil, errors.New(errors.ErrNotFound, "Campaign not found.")
		}
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return campaign, nil
}

func (s *campaignService) memberOf(ctx context.Context, campaign *models.Campaign, userID uint) bool {
	if campaign.GameMasterID == userID {
		return true
	}
	ok, err := s.campaignRepo.IsActiveMember(ctx, campaign.ID, userID)
	if err != nil {
		s.log.Warn("Membership check failed", zap.Error(err), zap.Uint("campaignID", campaign.ID))
		return false
	}
	return ok
}

// cleanText strips markup from user supplied text.
func cleanText(policy *bluemonday.Policy, s string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(s)))
}
