package auth

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/deskhive/deskhive/internal/config"
	"github.com/deskhive/deskhive/internal/hash"
	"github.com/deskhive/deskhive/internal/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))

	return &Service{DB: db, Cfg: testTokenConfig()}
}

func signUpAlice(t *testing.T, svc *Service) *models.User {
	t.Helper()

	user, err := svc.SignUp(context.Background(), SignUpInput{
		Username:  "alice",
		Email:     "alice@example.com",
		FirstName: "Alice",
		LastName:  "Doe",
		Password:  "secret",
	})
	require.NoError(t, err)
	return user
}

func TestSignUp_CreatesUnprivilegedActiveUser(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	user := signUpAlice(t, svc)

	assert.Equal(t, models.RoleUser, user.Role)
	assert.True(t, user.IsActive)
	assert.False(t, user.CreatedAt.IsZero())
	assert.True(t, hash.CheckPassword(user.PasswordHash, "secret"))
	assert.False(t, hash.CheckPassword(user.PasswordHash, "wrong"))
}

func TestSignUp_DuplicateUsernameCheckedFirst(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	signUpAlice(t, svc)

	// same username and same email: username wins
	_, err := svc.SignUp(context.Background(), SignUpInput{
		Username: "alice", Email: "alice@example.com", Password: "x",
	})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, err = svc.SignUp(context.Background(), SignUpInput{
		Username: "bob", Email: "alice@example.com", Password: "x",
	})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	user := signUpAlice(t, svc)
	ctx := context.Background()

	got, err := svc.Authenticate(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = svc.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody", "secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, svc.DB.Model(&models.User{}).
		Where("id = ?", user.ID).Update("is_active", false).Error)
	_, err = svc.Authenticate(ctx, "alice", "secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestGenerateTokens_ReturnsPairAndPersistsRefresh(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	user := signUpAlice(t, svc)

	pair, err := svc.GenerateTokens(context.Background(), user)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, int64(svc.Cfg.AccessTTL.Seconds()), pair.ExpiresIn)
	assert.True(t, pair.RefreshTokenExpiresAt.After(time.Now().UTC().Add(29*24*time.Hour)))

	var stored models.RefreshToken
	require.NoError(t, svc.DB.Where("token = ?", pair.RefreshToken).First(&stored).Error)
	assert.Equal(t, user.ID, stored.UserID)
	assert.Nil(t, stored.RevokedAt)
}

func TestGenerateTokens_SingleActiveChainPerUser(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	user := signUpAlice(t, svc)
	ctx := context.Background()

	var last string
	for i := 0; i < 5; i++ {
		pair, err := svc.GenerateTokens(ctx, user)
		require.NoError(t, err)
		last = pair.RefreshToken
	}

	var active, revoked int64
	require.NoError(t, svc.DB.Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", user.ID).Count(&active).Error)
	require.NoError(t, svc.DB.Model(&models.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NOT NULL", user.ID).Count(&revoked).Error)

	assert.Equal(t, int64(1), active)
	assert.Equal(t, int64(4), revoked)

	var current models.RefreshToken
	require.NoError(t, svc.DB.
		Where("user_id = ? AND revoked_at IS NULL", user.ID).First(&current).Error)
	assert.Equal(t, last, current.Token)
}

func TestRefresh_RotatesAndRejectsReuse(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	user := signUpAlice(t, svc)
	ctx := context.Background()

	pairA, err := svc.GenerateTokens(ctx, user)
	require.NoError(t, err)

	pairB, err := svc.Refresh(ctx, pairA.AccessToken, pairA.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pairA.RefreshToken, pairB.RefreshToken)

	var old models.RefreshToken
	require.NoError(t, svc.DB.Where("token = ?", pairA.RefreshToken).First(&old).Error)
	assert.NotNil(t, old.RevokedAt)

	// replaying the rotated token fails
	_, err = svc.Refresh(ctx, pairB.AccessToken, pairA.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefresh_AcceptsExpiredAccessToken(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	user := signUpAlice(t, svc)
	ctx := context.Background()

	pair, err := svc.GenerateTokens(ctx, user)
	require.NoError(t, err)

	expiredCfg := svc.Cfg
	expiredCfg.AccessTTL = -time.Minute
	expiredAccess, _, err := SignAccessToken(user, expiredCfg)
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, expiredAccess, pair.RefreshToken)
	require.NoError(t, err)
}

func TestRefresh_RejectsExpiredRefreshToken(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	user := signUpAlice(t, svc)
	ctx := context.Background()

	access, _, err := SignAccessToken(user, svc.Cfg)
	require.NoError(t, err)

	token, err := NewRefreshTokenString()
	require.NoError(t, err)
	now := time.Now().UTC()
	require.NoError(t, svc.DB.Create(&models.RefreshToken{
		Token:     token,
		UserID:    user.ID,
		IssuedAt:  now.Add(-31 * 24 * time.Hour),
		ExpiresAt: now.Add(-24 * time.Hour),
	}).Error)

	_, err = svc.Refresh(ctx, access, token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefresh_RejectsMismatchedUser(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	alice := signUpAlice(t, svc)
	ctx := context.Background()

	bob, err := svc.SignUp(ctx, SignUpInput{
		Username: "bob", Email: "bob@example.com", Password: "secret",
	})
	require.NoError(t, err)

	alicePair, err := svc.GenerateTokens(ctx, alice)
	require.NoError(t, err)
	_, err = svc.GenerateTokens(ctx, bob)
	require.NoError(t, err)

	bobAccess, _, err := SignAccessToken(bob, svc.Cfg)
	require.NoError(t, err)

	// bob's access token with alice's refresh token
	_, err = svc.Refresh(ctx, bobAccess, alicePair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefresh_UserDeleted(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	user := signUpAlice(t, svc)
	ctx := context.Background()

	pair, err := svc.GenerateTokens(ctx, user)
	require.NoError(t, err)

	require.NoError(t, svc.DB.Delete(&models.User{}, user.ID).Error)

	_, err = svc.Refresh(ctx, pair.AccessToken, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRefresh_InvalidAccessToken(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Refresh(ctx, "not-a-jwt", "whatever")
	assert.ErrorIs(t, err, ErrInvalidAccessToken)
}

func TestRefresh_MissingSubjectClaim(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	ctx := context.Background()

	claims := AccessClaims{
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    svc.Cfg.Issuer,
			Audience:  jwt.ClaimStrings{svc.Cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(svc.Cfg.Secret)
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, token, "whatever")
	assert.ErrorIs(t, err, ErrInvalidTokenClaims)
}

func TestRevoke_Idempotent(t *testing.T) {
	t.Parallel()

	svc := newTestService(t)
	user := signUpAlice(t, svc)
	ctx := context.Background()

	pair, err := svc.GenerateTokens(ctx, user)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, pair.RefreshToken))

	var first models.RefreshToken
	require.NoError(t, svc.DB.Where("token = ?", pair.RefreshToken).First(&first).Error)
	require.NotNil(t, first.RevokedAt)

	// second revoke is a no-op, the timestamp does not move
	require.NoError(t, svc.Revoke(ctx, pair.RefreshToken))
	var second models.RefreshToken
	require.NoError(t, svc.DB.Where("token = ?", pair.RefreshToken).First(&second).Error)
	require.NotNil(t, second.RevokedAt)
	assert.Equal(t, first.RevokedAt.Unix(), second.RevokedAt.Unix())

	// unknown token is also a no-op
	require.NoError(t, svc.Revoke(ctx, "no-such-token"))
}
