package authmw

import (
	"net/http"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/deskhive/deskhive/internal/auth"
)

const contextKey = "principal"

// Principal is the capability object handed to business logic instead of raw
// request context: who the caller is and nothing else.
type Principal struct {
	UserID   uint   `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// RequireAuth validates the bearer access token (signature, HS256, issuer,
// audience, expiry) and stores a Principal in the echo context.
func RequireAuth(cfg auth.TokenConfig) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		ContextKey: contextKey,
		ParseTokenFunc: func(c echo.Context, raw string) (any, error) {
			claims, err := auth.ParseAccessToken(raw, cfg)
			if err != nil {
				return nil, err
			}
			userID, err := claims.UserID()
			if err != nil {
				return nil, err
			}
			return Principal{
				UserID:   userID,
				Username: claims.Username,
				Email:    claims.Email,
				Role:     claims.Role,
			}, nil
		},
	})
}

func CurrentPrincipal(c echo.Context) (Principal, error) {
	p, ok := c.Get(contextKey).(Principal)
	if !ok {
		return Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "missing credentials")
	}
	return p, nil
}

// RequireRole gates a route group on the caller's role claim. Must run after
// RequireAuth.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, err := CurrentPrincipal(c)
			if err != nil {
				return err
			}
			for _, r := range roles {
				if p.Role == r {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "you don't have enough rights")
		}
	}
}
