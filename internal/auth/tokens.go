package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/deskhive/deskhive/internal/models"
)

// TokenConfig is injected into the service; nothing reads signing material
// from ambient globals.
type TokenConfig struct {
	Secret    []byte
	Issuer    string
	Audience  string
	AccessTTL time.Duration
}

type AccessClaims struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

func (c *AccessClaims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil || id == 0 {
		return 0, ErrInvalidTokenClaims
	}
	return uint(id), nil
}

func SignAccessToken(user *models.User, cfg TokenConfig) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(cfg.AccessTTL)
	claims := AccessClaims{
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(user.ID), 10),
			Issuer:    cfg.Issuer,
			Audience:  jwt.ClaimStrings{cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(cfg.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func hs256KeyFunc(secret []byte) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected sign method: %v", t.Header["alg"])
		}
		return secret, nil
	}
}

// ParseAccessToken fully validates a live token: signature, HS256 only,
// issuer, audience, expiry.
func ParseAccessToken(tokenStr string, cfg TokenConfig) (*AccessClaims, error) {
	var claims AccessClaims
	tkn, err := jwt.ParseWithClaims(tokenStr, &claims, hs256KeyFunc(cfg.Secret),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(cfg.Audience),
	)
	if err != nil || !tkn.Valid {
		return nil, errors.Join(ErrInvalidAccessToken, err)
	}
	return &claims, nil
}

// ParseExpiredAccessToken is the refresh-path parse: signature, algorithm,
// issuer and audience are still enforced, only the expiry claim is ignored.
func ParseExpiredAccessToken(tokenStr string, cfg TokenConfig) (*AccessClaims, error) {
	var claims AccessClaims
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	tkn, err := parser.ParseWithClaims(tokenStr, &claims, hs256KeyFunc(cfg.Secret))
	if err != nil || !tkn.Valid {
		return nil, errors.Join(ErrInvalidAccessToken, err)
	}

	if claims.Issuer != cfg.Issuer {
		return nil, ErrInvalidAccessToken
	}
	audOK := false
	for _, aud := range claims.Audience {
		if aud == cfg.Audience {
			audOK = true
			break
		}
	}
	if !audOK {
		return nil, ErrInvalidAccessToken
	}
	return &claims, nil
}

// NewRefreshTokenString returns 64 cryptographically random bytes, base64
// encoded. Refresh tokens carry no structure and are never parsed.
func NewRefreshTokenString() (string, error) {
	buf := make([]byte, 64)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}
