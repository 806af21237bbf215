package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpcontext "github.com/dtroode/authkeeper-server/internal/api/http/context"
	"github.com/dtroode/authkeeper-server/internal/api/http/cookie"
	"github.com/dtroode/authkeeper-server/internal/api/http/handler"
	"github.com/dtroode/authkeeper-server/internal/metrics"
	"github.com/dtroode/authkeeper-server/internal/model"
	"github.com/dtroode/authkeeper-server/internal/password"
	"github.com/dtroode/authkeeper-server/internal/repository/memory"
	"github.com/dtroode/authkeeper-server/internal/service"
	"github.com/dtroode/authkeeper-server/internal/testutil"
	"github.com/dtroode/authkeeper-server/internal/token"
)

type envelope struct {
	Error      bool            `json:"error"`
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
}

type app struct {
	handler http.Handler
	tokens  *memory.RefreshTokenRepository
	metrics *metrics.Collector
}

func newApp(t *testing.T) *app {
	t.Helper()

	lg := testutil.MakeNoopLogger()
	codec, err := token.NewJWT(token.Config{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		Issuer:        "authkeeper",
	})
	require.NoError(t, err)
	hasher, err := password.NewBcrypt(password.MinCost, lg)
	require.NoError(t, err)

	provider, collector := metrics.NewLocalProvider()
	recorder, err := metrics.NewRecorder(provider.Meter(metrics.ScopeName))
	require.NoError(t, err)

	tokens := memory.NewRefreshTokenRepository()
	session := service.NewSession(memory.NewUserRepository(), tokens, codec, hasher, lg,
		service.WithRecorder(recorder))
	require.NoError(t, session.Seed(context.Background(), service.DemoUsers()))

	r := New(session, httpcontext.NewManager(),
		map[string]handler.Check{"database": func(context.Context) error { return nil }},
		collector,
		Config{
			PublicPrefixes: []string{"/api/auth/login", "/api/auth/refresh", "/api/auth/logout"},
			Cookies:        cookie.Config{AccessTTL: 15 * time.Minute, RefreshTTL: 7 * 24 * time.Hour},
		},
		lg)

	return &app{handler: r.Register(), tokens: tokens, metrics: collector}
}

func (a *app) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		if c != nil {
			req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
		}
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func responseCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (a *app) login(t *testing.T) (access, refresh *http.Cookie) {
	t.Helper()
	rec, env := a.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"username": "abdallah",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code, env.Message)

	access = responseCookie(rec, cookie.AccessName)
	refresh = responseCookie(rec, cookie.RefreshName)
	require.NotNil(t, access)
	require.NotNil(t, refresh)
	return access, refresh
}

func TestRouter_Health(t *testing.T) {
	t.Parallel()

	a := newApp(t)
	rec, env := a.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", env.Message)
	assert.JSONEq(t, `{"database":"ok"}`, string(env.Data))
}

func TestRouter_NotFound(t *testing.T) {
	t.Parallel()

	a := newApp(t)
	rec, env := a.do(t, http.MethodGet, "/nowhere", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.True(t, env.Error)
	assert.Equal(t, "Route not found", env.Message)
}

func TestRouter_SessionLifecycle(t *testing.T) {
	t.Parallel()

	a := newApp(t)
	access, refresh := a.login(t)
	assert.True(t, refresh.HttpOnly)
	assert.False(t, access.HttpOnly)

	rec, env := a.do(t, http.MethodGet, "/api/users/me", nil, access)
	require.Equal(t, http.StatusOK, rec.Code, env.Message)
	var me struct {
		User model.PublicUser `json:"user"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "abdallah", me.User.Username)
	assert.Equal(t, model.RoleAdmin, me.User.Role)

	rec, env = a.do(t, http.MethodPost, "/api/auth/refresh", map[string]string{"grantType": "access_token"}, refresh)
	require.Equal(t, http.StatusOK, rec.Code, env.Message)
	assert.Equal(t, "Access token refreshed successfully", env.Message)
	assert.NotNil(t, responseCookie(rec, cookie.AccessName))
	assert.Nil(t, responseCookie(rec, cookie.RefreshName))

	rec, env = a.do(t, http.MethodPost, "/api/auth/refresh", map[string]string{"grantType": "refresh_token"}, refresh)
	require.Equal(t, http.StatusOK, rec.Code, env.Message)
	assert.Equal(t, "Tokens refreshed successfully", env.Message)
	rotated := responseCookie(rec, cookie.RefreshName)
	require.NotNil(t, rotated)
	assert.NotEqual(t, refresh.Value, rotated.Value)
	access = responseCookie(rec, cookie.AccessName)

	rec, env = a.do(t, http.MethodPost, "/api/auth/refresh", map[string]string{"grantType": "refresh_token"}, refresh)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, service.MsgRevokedRefresh, env.Message)

	rec, env = a.do(t, http.MethodPost, "/api/auth/logout", nil, rotated)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Logged out successfully", env.Message)

	rec, env = a.do(t, http.MethodGet, "/api/users/me", nil, access)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, service.MsgTokenRevoked, env.Message)

	rec, env = a.do(t, http.MethodPost, "/api/auth/logout", nil, rotated)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Already logged out", env.Message)
}

func TestRouter_RevokedSessionClearsCookies(t *testing.T) {
	t.Parallel()

	a := newApp(t)
	access, refresh := a.login(t)

	_, env := a.do(t, http.MethodPost, "/api/auth/logout", nil, refresh)
	require.Equal(t, "Logged out successfully", env.Message)

	rec, env := a.do(t, http.MethodGet, "/api/users/me", nil, access)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, service.MsgTokenRevoked, env.Message)

	for _, name := range []string{cookie.AccessName, cookie.RefreshName} {
		c := responseCookie(rec, name)
		require.NotNil(t, c, name)
		assert.Negative(t, c.MaxAge, name)
	}
}

func TestRouter_GuardDenials(t *testing.T) {
	t.Parallel()

	a := newApp(t)

	rec, env := a.do(t, http.MethodGet, "/api/users/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, service.MsgNoToken, env.Message)

	rec, env = a.do(t, http.MethodGet, "/api/users/me", nil, &http.Cookie{Name: cookie.AccessName, Value: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, service.MsgInvalidToken, env.Message)
	c := responseCookie(rec, cookie.AccessName)
	require.NotNil(t, c)
	assert.Negative(t, c.MaxAge)
	assert.Nil(t, responseCookie(rec, cookie.RefreshName))
}

func TestRouter_RevokeAll(t *testing.T) {
	t.Parallel()

	a := newApp(t)
	_, firstRefresh := a.login(t)
	access, _ := a.login(t)

	rec, env := a.do(t, http.MethodPost, "/api/sessions/revoke-all", nil, access)
	require.Equal(t, http.StatusOK, rec.Code, env.Message)
	assert.JSONEq(t, `{"revoked":2}`, string(env.Data))

	rec, _ = a.do(t, http.MethodPost, "/api/auth/refresh", map[string]string{"grantType": "access_token"}, firstRefresh)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRouter_ChangePassword(t *testing.T) {
	t.Parallel()

	a := newApp(t)
	access, _ := a.login(t)

	rec, env := a.do(t, http.MethodPost, "/api/users/me/password", map[string]string{
		"currentPassword": "password123",
		"newPassword":     "password456",
	}, access)
	require.Equal(t, http.StatusOK, rec.Code, env.Message)
	assert.Equal(t, "Password changed successfully", env.Message)

	rec, _ = a.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"username": "abdallah",
		"password": "password123",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = a.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"username": "abdallah",
		"password": "password456",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_ChangePassword_TooLong(t *testing.T) {
	t.Parallel()

	a := newApp(t)
	access, _ := a.login(t)

	rec, env := a.do(t, http.MethodPost, "/api/users/me/password", map[string]string{
		"currentPassword": "password123",
		"newPassword":     strings.Repeat("x", 80),
	}, access)
	require.Equal(t, http.StatusBadRequest, rec.Code, env.Message)

	var details map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &details))
	assert.Contains(t, details, "newPassword")

	rec, _ = a.do(t, http.MethodGet, "/api/users/me", nil, access)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_Metrics(t *testing.T) {
	t.Parallel()

	a := newApp(t)
	a.login(t)
	a.do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "abdallah", "password": "wrong-password"})

	rec, env := a.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var points []metrics.Point
	require.NoError(t, json.Unmarshal(env.Data, &points))
	counts := make(map[string]int64)
	for _, p := range points {
		if p.Name == metrics.LoginCounter {
			counts[p.Attributes["outcome"]] += p.Value
		}
	}
	assert.Equal(t, int64(1), counts["success"])
	assert.Equal(t, int64(1), counts["invalid_credentials"])
}

func TestRouter_WithoutMetrics(t *testing.T) {
	t.Parallel()

	r := New(nil, httpcontext.NewManager(), nil, nil, Config{}, testutil.MakeNoopLogger())
	rec := httptest.NewRecorder()
	r.Register().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_HealthFailure(t *testing.T) {
	t.Parallel()

	r := New(nil, httpcontext.NewManager(),
		map[string]handler.Check{"redis": func(context.Context) error { return errors.New("connection refused") }},
		nil, Config{}, testutil.MakeNoopLogger())
	rec := httptest.NewRecorder()
	r.Register().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"unavailable"`)
}
