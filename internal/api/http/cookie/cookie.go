// Package cookie sets and clears the session cookies. Access tokens travel
// only in the access_token cookie and refresh tokens only in refresh_token.
package cookie

import (
	"net/http"
	"time"
)

const (
	AccessName  = "access_token"
	RefreshName = "refresh_token"
)

// Config controls cookie attributes.
type Config struct {
	Secure     bool
	SameSite   http.SameSite
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type Manager struct {
	cfg Config
}

func NewManager(cfg Config) *Manager {
	if cfg.SameSite == 0 {
		cfg.SameSite = http.SameSiteLaxMode
	}
	return &Manager{cfg: cfg}
}

// SetAccess stores the access token. It stays readable by client code so the
// client guard can check its expiry.
func (m *Manager) SetAccess(w http.ResponseWriter, token string) {
	http.SetCookie(w, m.build(AccessName, token, m.cfg.AccessTTL, false))
}

// SetRefresh stores the refresh token out of reach of client code.
func (m *Manager) SetRefresh(w http.ResponseWriter, token string) {
	http.SetCookie(w, m.build(RefreshName, token, m.cfg.RefreshTTL, true))
}

func (m *Manager) ClearAccess(w http.ResponseWriter) {
	http.SetCookie(w, m.expired(AccessName, false))
}

func (m *Manager) ClearRefresh(w http.ResponseWriter) {
	http.SetCookie(w, m.expired(RefreshName, true))
}

// ClearAll removes both session cookies.
func (m *Manager) ClearAll(w http.ResponseWriter) {
	m.ClearAccess(w)
	m.ClearRefresh(w)
}

// AccessToken returns the access cookie value or "".
func AccessToken(r *http.Request) string {
	return value(r, AccessName)
}

// RefreshToken returns the refresh cookie value or "".
func RefreshToken(r *http.Request) string {
	return value(r, RefreshName)
}

func value(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func (m *Manager) build(name, value string, ttl time.Duration, httpOnly bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: httpOnly,
		Secure:   m.cfg.Secure,
		SameSite: m.cfg.SameSite,
	}
}

func (m *Manager) expired(name string, httpOnly bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: httpOnly,
		Secure:   m.cfg.Secure,
		SameSite: m.cfg.SameSite,
	}
}
