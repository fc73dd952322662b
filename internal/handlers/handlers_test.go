package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/deskhive/deskhive/internal/auth"
	"github.com/deskhive/deskhive/internal/config"
	"github.com/deskhive/deskhive/internal/events"
	"github.com/deskhive/deskhive/internal/handlers"
	"github.com/deskhive/deskhive/internal/models"
	httpserver "github.com/deskhive/deskhive/internal/transport/http"
)

type testEnv struct {
	T    *testing.T
	E    *echo.Echo
	DB   *gorm.DB
	Auth *auth.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))

	cfg := auth.TokenConfig{
		Secret:    []byte("test-jwt-secret"),
		Issuer:    "deskhive-test",
		Audience:  "deskhive-test-api",
		AccessTTL: 15 * time.Minute,
	}
	svc := &auth.Service{DB: db, Cfg: cfg}
	producer := events.NewProducer(nil)

	deps := httpserver.Deps{
		TokenConfig:        cfg,
		AuthHandler:        &handlers.AuthHandler{Auth: svc, Producer: producer},
		SpaceHandler:       &handlers.SpaceHandler{DB: db, Producer: producer, Index: "spaces"},
		EquipmentHandler:   &handlers.EquipmentHandler{DB: db, Producer: producer},
		ReservationHandler: &handlers.ReservationHandler{DB: db, Producer: producer},
		MembershipHandler:  &handlers.MembershipHandler{DB: db, Producer: producer},
		PaymentHandler:     &handlers.PaymentHandler{DB: db, Producer: producer},
	}

	e := echo.New()
	httpserver.Register(e, &deps)

	return &testEnv{T: t, E: e, DB: db, Auth: svc}
}

func (env *testEnv) do(method, path string, body any, bearer string) *httptest.ResponseRecorder {
	env.T.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(env.T, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	env.E.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) decode(rec *httptest.ResponseRecorder, out any) {
	env.T.Helper()
	require.NoError(env.T, json.Unmarshal(rec.Body.Bytes(), out))
}

// signupAndLogin registers a fresh user and returns its token pair.
func (env *testEnv) signupAndLogin(username, password string) models.TokenPair {
	env.T.Helper()

	rec := env.do(http.MethodPost, "/auth/signup", map[string]string{
		"username": username,
		"email":    fmt.Sprintf("%s@example.com", username),
		"password": password,
	}, "")
	require.Equal(env.T, http.StatusOK, rec.Code, rec.Body.String())

	return env.login(username, password)
}

func (env *testEnv) login(username, password string) models.TokenPair {
	env.T.Helper()

	rec := env.do(http.MethodPost, "/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, "")
	require.Equal(env.T, http.StatusOK, rec.Code, rec.Body.String())

	var pair models.TokenPair
	env.decode(rec, &pair)
	return pair
}

func (env *testEnv) promote(username, role string) {
	env.T.Helper()
	require.NoError(env.T, env.DB.Model(&models.User{}).
		Where("username = ?", username).Update("role", role).Error)
}
