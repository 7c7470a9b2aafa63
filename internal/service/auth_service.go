package service

import (
	"context"
	stderrors "errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/wfunc/initiative-tracker/internal/errors"
	"github.com/wfunc/initiative-tracker/internal/models"
	"github.com/wfunc/initiative-tracker/internal/repository"
	"github.com/wfunc/initiative-tracker/internal/utils"
	"go.uber.org/zap"
)

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

// MinPasswordLength shortest accepted password
const MinPasswordLength = 8

// authService AuthService implementation
type authService struct {
	userRepo   repository.UserRepository
	jwtManager *utils.JWTManager
	log        *zap.Logger
}

func NewAuthService(userRepo repository.UserRepository, jwtManager *utils.JWTManager, log *zap.Logger) AuthService {
	return &authService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
		log:        log,
	}
}

// Register creates an account and signs it in.
func (s *authService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validateRegisterRequest(req); err != nil {
		return nil, err
	}

	exists, err := s.userRepo.ExistsByUsernameOrEmail(ctx, req.Username, req.Email)
	if err != nil {
		s.log.Error("Failed to check existing user", zap.Error(err))
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	if exists {
		return nil, errors.New(errors.ErrAlreadyExists, "Username or email already exists.")
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "hash password")
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Status:       "active",
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		s.log.Error("Failed to create user", zap.Error(err))
		return nil, errors.Wrap(err, errors.ErrDatabaseInsert)
	}

	s.log.Info("User registered", zap.Uint("userID", user.ID), zap.String("username", user.Username))
	return s.issue(user)
}

// Login checks credentials and issues tokens.
func (s *authService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	account := strings.TrimSpace(req.Account)
	if strings.Contains(account, "@") {
		account = strings.ToLower(account)
	}
	user, err := s.userRepo.FindByAccount(ctx, account)
	if err != nil {
		if stderrors.Is(err, repository.ErrRecordNotFound) {
			s.log.Warn("Login failed: unknown account", zap.String("account", req.Account))
			return nil, errors.New(errors.ErrAuthentication, "Invalid credentials.")
		}
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}

	valid, err := utils.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil || !valid {
		s.log.Warn("Login failed: bad password", zap.Uint("userID", user.ID))
		return nil, errors.New(errors.ErrAuthentication, "Invalid credentials.")
	}
	if !user.CanLogin() {
		return nil, errors.New(errors.ErrPermissionDenied, "Account is deactivated.")
	}

	if err := s.userRepo.UpdateLastLogin(ctx, user.ID, req.IP); err != nil {
		s.log.Warn("Failed to stamp last login", zap.Error(err), zap.Uint("userID", user.ID))
	}
	user.UpdateLoginInfo(req.IP)

	s.log.Info("User logged in", zap.Uint("userID", user.ID), zap.String("username", user.Username))
	return s.issue(user)
}

// RefreshToken trades a refresh token for a new access token.
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	claims, err := s.jwtManager.ValidateToken(refreshToken)
	if err != nil {
		return nil, tokenError(err)
	}
	if claims.TokenType != "refresh" {
		return nil, errors.New(errors.ErrTokenInvalid, "not a refresh token")
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, errors.New(errors.ErrTokenInvalid, "user no longer exists")
	}
	if !user.CanLogin() {
		return nil, errors.New(errors.ErrPermissionDenied, "Account is deactivated.")
	}

	accessToken, err := s.jwtManager.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "sign access token")
	}
	return &AuthResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtManager.GetTokenExpiry("access").Seconds()),
		TokenType:    "Bearer",
	}, nil
}

// ValidateToken accepts access tokens only.
func (s *authService) ValidateToken(ctx context.Context, token string) (*TokenClaims, error) {
	claims, err := s.jwtManager.ValidateToken(token)
	if err != nil {
		return nil, tokenError(err)
	}
	if claims.TokenType != "access" {
		return nil, errors.New(errors.ErrTokenInvalid, "not an access token")
	}

	return &TokenClaims{
		UserID:    claims.UserID,
		Username:  claims.Username,
		IssuedAt:  claims.IssuedAt.Unix(),
		ExpiresAt: claims.ExpiresAt.Unix(),
	}, nil
}

func (s *authService) issue(user *models.User) (*AuthResponse, error) {
	accessToken, err := s.jwtManager.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "sign access token")
	}
	refreshToken, err := s.jwtManager.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrInternal, "sign refresh token")
	}

	return &AuthResponse{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.jwtManager.GetTokenExpiry("access").Seconds()),
		TokenType:    "Bearer",
	}, nil
}

func tokenError(err error) error {
	if stderrors.Is(err, utils.ErrExpiredToken) {
		return errors.New(errors.ErrTokenExpired)
	}
	return errors.New(errors.ErrTokenInvalid)
}

func validateRegisterRequest(req *RegisterRequest) error {
	if n := utf8.RuneCountInString(req.Username); n < 3 || n > 50 {
		return errors.New(errors.ErrInvalidParam, "Username must be between 3 and 50 characters.")
	}
	if !usernamePattern.MatchString(req.Username) {
		return errors.New(errors.ErrInvalidParam, "Username can only contain letters, numbers, and underscores.")
	}
	if len(req.Email) > 100 || !emailPattern.MatchString(req.Email) {
		return errors.New(errors.ErrInvalidParam, "Invalid email format.")
	}
	if len(req.Password) < MinPasswordLength {
		return errors.New(errors.ErrInvalidParam, "Password must be at least 8 characters long.")
	}
	return nil
}
