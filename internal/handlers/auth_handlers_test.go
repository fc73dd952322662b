package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authmw "github.com/deskhive/deskhive/internal/middleware/auth"
	"github.com/deskhive/deskhive/internal/models"
)

func TestAuthFlow_SignupLoginRefreshReplay(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	pairA := env.signupAndLogin("alice", "secret")
	require.NotEmpty(t, pairA.AccessToken)
	require.NotEmpty(t, pairA.RefreshToken)

	// current user from claims only
	rec := env.do(http.MethodGet, "/auth/GetCurrentUser", nil, pairA.AccessToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var p authmw.Principal
	env.decode(rec, &p)
	assert.Equal(t, "alice", p.Username)
	assert.Equal(t, "alice@example.com", p.Email)
	assert.Equal(t, models.RoleUser, p.Role)

	// rotate
	rec = env.do(http.MethodPost, "/auth/refresh-token", map[string]string{
		"accessToken":  pairA.AccessToken,
		"refreshToken": pairA.RefreshToken,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var pairB models.TokenPair
	env.decode(rec, &pairB)
	assert.NotEqual(t, pairA.RefreshToken, pairB.RefreshToken)

	// replaying the rotated refresh token fails
	rec = env.do(http.MethodPost, "/auth/refresh-token", map[string]string{
		"accessToken":  pairA.AccessToken,
		"refreshToken": pairA.RefreshToken,
	}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// logout
	rec = env.do(http.MethodPost, "/auth/revoke-token", map[string]string{
		"refreshToken": pairB.RefreshToken,
	}, pairB.AccessToken)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(http.MethodPost, "/auth/refresh-token", map[string]string{
		"accessToken":  pairB.AccessToken,
		"refreshToken": pairB.RefreshToken,
	}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_BadCredentials(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.signupAndLogin("alice", "secret")

	tests := []struct {
		name     string
		username string
		password string
	}{
		{name: "wrong password", username: "alice", password: "wrong"},
		{name: "unknown user", username: "nobody", password: "secret"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/auth/login", map[string]string{
				"username": tt.username,
				"password": tt.password,
			}, "")
			// both causes look identical from the outside
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestSignup_DuplicateUsernameAndEmail(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	env.signupAndLogin("alice", "secret")

	rec := env.do(http.MethodPost, "/auth/signup", map[string]string{
		"username": "alice",
		"email":    "other@example.com",
		"password": "secret",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodPost, "/auth/signup", map[string]string{
		"username": "alice2",
		"email":    "alice@example.com",
		"password": "secret",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSignup_CannotSelfAssignRole(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/auth/signup", map[string]string{
		"username": "mallory",
		"email":    "mallory@example.com",
		"password": "secret",
		"role":     models.RoleSuperAdmin,
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var user models.User
	require.NoError(t, env.DB.Where("username = ?", "mallory").First(&user).Error)
	assert.Equal(t, models.RoleUser, user.Role)
}

func TestAdminRoutes_RequireStaffRole(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)
	pair := env.signupAndLogin("alice", "secret")

	body := map[string]any{"name": "Desk 1", "hourly_rate": 10.0}

	rec := env.do(http.MethodPost, "/api/v1/admin/spaces", body, pair.AccessToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// same user with the staff role may create spaces, but needs a token
	// carrying the new role claim
	env.promote("alice", models.RoleStaff)
	rec = env.do(http.MethodPost, "/api/v1/admin/spaces", body, pair.AccessToken)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	staffPair := env.login("alice", "secret")
	rec = env.do(http.MethodPost, "/api/v1/admin/spaces", body, staffPair.AccessToken)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestProtectedRoute_MissingOrGarbageToken(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/auth/GetCurrentUser", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, "/auth/GetCurrentUser", nil, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
