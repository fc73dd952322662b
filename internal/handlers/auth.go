package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/deskhive/deskhive/internal/auth"
	"github.com/deskhive/deskhive/internal/events"
	"github.com/deskhive/deskhive/internal/logging"
	authmw "github.com/deskhive/deskhive/internal/middleware/auth"
)

type AuthHandler struct {
	Auth     *auth.Service
	Producer *events.Producer
}

func (h *AuthHandler) publish(c echo.Context, key string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "user_events", key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("kafka publish failed", "error", err)
	}
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req struct {
		Username string `json:"username" form:"username"`
		Password string `json:"password" form:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	ctx := c.Request().Context()
	user, err := h.Auth.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		logging.FromContext(ctx).Error("login failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	pair, err := h.Auth.GenerateTokens(ctx, user)
	if err != nil {
		logging.FromContext(ctx).Error("token generation failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	h.publish(c, fmt.Sprint(user.ID), map[string]any{
		"type":     "user_logged_in",
		"user_id":  user.ID,
		"username": user.Username,
	})

	return c.JSON(http.StatusOK, pair)
}

func (h *AuthHandler) SignUp(c echo.Context) error {
	var req struct {
		Username  string `json:"username"  form:"username"`
		Email     string `json:"email"     form:"email"`
		FirstName string `json:"firstName" form:"firstName"`
		LastName  string `json:"lastName"  form:"lastName"`
		Password  string `json:"password"  form:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	ctx := c.Request().Context()
	user, err := h.Auth.SignUp(ctx, auth.SignUpInput{
		Username:  req.Username,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Password:  req.Password,
	})
	if err != nil {
		if errors.Is(err, auth.ErrUsernameTaken) || errors.Is(err, auth.ErrEmailTaken) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		logging.FromContext(ctx).Error("signup failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	h.publish(c, fmt.Sprint(user.ID), map[string]any{
		"type":     "user_registered",
		"user_id":  user.ID,
		"username": user.Username,
	})

	return c.JSON(http.StatusOK, user)
}

func (h *AuthHandler) RefreshToken(c echo.Context) error {
	var req struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	ctx := c.Request().Context()
	pair, err := h.Auth.Refresh(ctx, req.AccessToken, req.RefreshToken)
	if err != nil {
		// every validation failure looks identical from the outside
		switch {
		case errors.Is(err, auth.ErrInvalidAccessToken),
			errors.Is(err, auth.ErrInvalidTokenClaims),
			errors.Is(err, auth.ErrInvalidRefreshToken),
			errors.Is(err, auth.ErrUserNotFound):
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		logging.FromContext(ctx).Error("refresh failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	return c.JSON(http.StatusOK, pair)
}

func (h *AuthHandler) RevokeToken(c echo.Context) error {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	ctx := c.Request().Context()
	if err := h.Auth.Revoke(ctx, req.RefreshToken); err != nil {
		logging.FromContext(ctx).Error("revoke failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) GetCurrentUser(c echo.Context) error {
	p, err := authmw.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}
