package service

import (
	"context"

	"github.com/wfunc/initiative-tracker/internal/initiative"
	"github.com/wfunc/initiative-tracker/internal/models"
	"github.com/wfunc/initiative-tracker/internal/repository"
)

// AuthService account registration and token issuing
type AuthService interface {
	Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error)
	ValidateToken(ctx context.Context, token string) (*TokenClaims, error)
}

// UserService account lookups for signed-in users
type UserService interface {
	GetUserByID(ctx context.Context, userID uint) (*models.User, error)
	ChangePassword(ctx context.Context, userID uint, oldPassword, newPassword string) error
}

// CampaignService campaigns, join codes and the role facts the initiative
// core relies on
type CampaignService interface {
	Create(ctx context.Context, req *CreateCampaignRequest) (*models.Campaign, error)
	Join(ctx context.Context, joinCode string, userID uint) (*models.Campaign, error)
	Get(ctx context.Context, campaignID, userID uint) (*CampaignDetails, error)
	ListForUser(ctx context.Context, userID uint, page, pageSize int) ([]*models.Campaign, *repository.Pagination, error)
	Archive(ctx context.Context, campaignID, userID uint) error

	IsGameMaster(ctx context.Context, campaignID, userID uint) (bool, error)
	IsCampaignMember(ctx context.Context, campaignID, userID uint) (bool, error)
}

// CharacterService character sheets as seen by the initiative core
type CharacterService interface {
	Create(ctx context.Context, req *CreateCharacterRequest) (*models.Character, error)
	ListForCampaign(ctx context.Context, campaignID, userID uint) ([]*models.Character, error)
	Delete(ctx context.Context, characterID, userID uint) error

	ResolveCharacter(ctx context.Context, characterID uint) (*initiative.CharacterInfo, error)
	IsCharacterOwner(ctx context.Context, characterID, userID uint) (bool, error)
}

// RegisterRequest account sign-up
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	IP       string `json:"-"`
}

// LoginRequest sign-in by username or email
type LoginRequest struct {
	Account  string `json:"account" binding:"required"`
	Password string `json:"password" binding:"required"`
	IP       string `json:"-"`
}

// AuthResponse tokens issued on sign-in
type AuthResponse struct {
	User         *models.User `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	TokenType    string       `json:"token_type"`
}

// TokenClaims validated access token
type TokenClaims struct {
	UserID    uint   `json:"user_id"`
	Username  string `json:"username"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// CreateCampaignRequest new campaign run by GameMasterID
type CreateCampaignRequest struct {
	Name         string `json:"name" binding:"required"`
	Description  string `json:"description"`
	MaxPlayers   int    `json:"max_players"`
	GameMasterID uint   `json:"-"`
}

// CampaignDetails campaign with its roster
type CampaignDetails struct {
	Campaign     *models.Campaign         `json:"campaign"`
	Members      []*models.CampaignMember `json:"members"`
	IsGameMaster bool                     `json:"is_game_master"`
}

// CreateCharacterRequest new sheet owned by UserID
type CreateCharacterRequest struct {
	UserID          uint   `json:"-"`
	CampaignID      *uint  `json:"-"`
	Name            string `json:"name" binding:"required"`
	Race            string `json:"race"`
	Class           string `json:"class"`
	Level           int    `json:"level"`
	InitiativeBonus int    `json:"initiative_bonus"`
	IsNPC           bool   `json:"is_npc"`
}
