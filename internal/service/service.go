package service

import (
	"time"

	"github.com/wfunc/initiative-tracker/internal/config"
	"github.com/wfunc/initiative-tracker/internal/initiative"
	"github.com/wfunc/initiative-tracker/internal/repository"
	"github.com/wfunc/initiative-tracker/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Config service settings
type Config struct {
	JWTSecret          string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	Initiative         initiative.Config
}

// DefaultConfig development defaults
func DefaultConfig() *Config {
	return &Config{
		JWTSecret:          "change-me-in-production",
		AccessTokenExpiry:  24 * time.Hour,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
		Initiative: initiative.Config{
			AllowServerRolls: true,
			MaxBatchSize:     initiative.DefaultMaxBatchSize,
		},
	}
}

// ConfigFrom maps the loaded application configuration.
func ConfigFrom(cfg *config.Config) *Config {
	out := DefaultConfig()
	if cfg == nil {
		return out
	}
	if cfg.Security.JWT.Secret != "" {
		out.JWTSecret = cfg.Security.JWT.Secret
	}
	if cfg.Security.JWT.ExpireHours > 0 {
		out.AccessTokenExpiry = time.Duration(cfg.Security.JWT.ExpireHours) * time.Hour
	}
	out.Initiative.AllowServerRolls = cfg.Initiative.AllowServerRolls
	if cfg.Initiative.MaxBatchSize > 0 {
		out.Initiative.MaxBatchSize = cfg.Initiative.MaxBatchSize
	}
	return out
}

// Services service set
type Services struct {
	Auth       AuthService
	User       UserService
	Campaign   CampaignService
	Character  CharacterService
	Initiative *initiative.Manager
	JWT        *utils.JWTManager
}

// NewServices wires repositories, collaborators and the initiative core.
func NewServices(db *gorm.DB, cfg *Config, log *zap.Logger) *Services {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}

	repos := repository.NewManager(db)

	jwtManager := utils.NewJWTManager(
		cfg.JWTSecret,
		cfg.AccessTokenExpiry,
		cfg.RefreshTokenExpiry,
	)

	campaigns := NewCampaignService(repos.Campaign(), log.Named("campaign"))
	characters := NewCharacterService(repos.Character(), campaigns, log.Named("character"))

	manager := initiative.NewManager(
		repos.Initiative(),
		campaigns,
		characters,
		cfg.Initiative,
		log.Named("initiative"),
	)

	return &Services{
		Auth:       NewAuthService(repos.User(), jwtManager, log.Named("auth")),
		User:       NewUserService(db, repos.User(), log.Named("user")),
		Campaign:   campaigns,
		Character:  characters,
		Initiative: manager,
		JWT:        jwtManager,
	}
}
