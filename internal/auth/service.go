package auth

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/deskhive/deskhive/internal/hash"
	"github.com/deskhive/deskhive/internal/logging"
	"github.com/deskhive/deskhive/internal/models"
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUsernameTaken       = errors.New("username already exists")
	ErrEmailTaken          = errors.New("email already exists")
	ErrInvalidAccessToken  = errors.New("invalid token")
	ErrInvalidTokenClaims  = errors.New("invalid token claims")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrUserNotFound        = errors.New("user not found")
)

const refreshTokenTTL = 30 * 24 * time.Hour

// Service is the token authority: it authenticates credentials, mints
// access+refresh pairs and rotates refresh tokens. It is the only writer of
// business logic over the refresh_tokens table.
type Service struct {
	DB  *gorm.DB
	Cfg TokenConfig
}

// Authenticate is a pure read. Missing user, inactive user and a bad
// password all collapse into ErrInvalidCredentials so the caller cannot
// tell which check failed.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}
	if !hash.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

type SignUpInput struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// SignUp creates an active user with the default unprivileged role. Any role
// the caller supplies is ignored, self-registration can never escalate.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.signup")

	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("username = ?", in.Username).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrUsernameTaken
	}
	if err := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("email = ?", in.Email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrEmailTaken
	}

	pwHash, err := hash.HashPassword(in.Password)
	if err != nil {
		l.Error("signup failed", "reason", "cannot hash password", "error", err)
		return nil, err
	}

	user := models.User{
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: pwHash,
		Role:         models.RoleUser,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.DB.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}

	l.Info("user registered", "user_id", user.ID, "username", user.Username)
	return &user, nil
}

// GenerateTokens is the single choke point of every successful
// login/signup/refresh: it signs the access token and rotates the refresh
// chain so at most one refresh token per user stays active.
func (s *Service) GenerateTokens(ctx context.Context, user *models.User) (*models.TokenPair, error) {
	var pair *models.TokenPair
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.generateTokens(tx, user)
		if err != nil {
			return err
		}
		pair = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

func (s *Service) generateTokens(tx *gorm.DB, user *models.User) (*models.TokenPair, error) {
	accessToken, _, err := SignAccessToken(user, s.Cfg)
	if err != nil {
		return nil, err
	}

	refresh, err := s.createRefreshToken(tx, user.ID)
	if err != nil {
		return nil, err
	}

	return &models.TokenPair{
		AccessToken:           accessToken,
		RefreshToken:          refresh.Token,
		ExpiresIn:             int64(s.Cfg.AccessTTL.Seconds()),
		RefreshTokenExpiresAt: refresh.ExpiresAt,
	}, nil
}

// createRefreshToken revokes every active refresh token for the user and
// inserts the replacement. Callers must run it inside a transaction: revoke
// and insert are one atomic unit.
func (s *Service) createRefreshToken(tx *gorm.DB, userID uint) (*models.RefreshToken, error) {
	now := time.Now().UTC()

	if err := tx.Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL AND expires_at > ?", userID, now).
		Update("revoked_at", now).Error; err != nil {
		return nil, err
	}

	token, err := NewRefreshTokenString()
	if err != nil {
		return nil, err
	}
	refresh := models.RefreshToken{
		Token:     token,
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: now.Add(refreshTokenTTL),
	}
	if err := tx.Create(&refresh).Error; err != nil {
		return nil, err
	}
	return &refresh, nil
}

// Refresh exchanges an expired access token plus its live refresh token for
// a new pair. The old refresh token is revoked with a conditional update, so
// of two concurrent refreshes with the same token exactly one wins and the
// loser gets ErrInvalidRefreshToken.
func (s *Service) Refresh(ctx context.Context, accessToken, refreshToken string) (*models.TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.refresh")

	claims, err := ParseExpiredAccessToken(accessToken, s.Cfg)
	if err != nil {
		return nil, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, err
	}

	var pair *models.TokenPair
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		var stored models.RefreshToken
		if err := tx.
			Where("token = ? AND user_id = ? AND expires_at > ? AND revoked_at IS NULL",
				refreshToken, userID, now).
			First(&stored).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidRefreshToken
			}
			return err
		}

		res := tx.Model(&models.RefreshToken{}).
			Where("token = ? AND revoked_at IS NULL", refreshToken).
			Update("revoked_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidRefreshToken
		}

		var user models.User
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		p, err := s.generateTokens(tx, &user)
		if err != nil {
			return err
		}
		pair = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.Info("refresh token rotated", "user_id", userID)
	return pair, nil
}

// Revoke marks a refresh token revoked by its string value. Revoking an
// unknown or already-revoked token is a silent no-op, logout relies on that.
func (s *Service) Revoke(ctx context.Context, refreshToken string) error {
	return s.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token = ? AND revoked_at IS NULL", refreshToken).
		Update("revoked_at", time.Now().UTC()).Error
}
