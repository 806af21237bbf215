// Package client talks to the session HTTP API and decides, before a
// protected action runs, whether the locally held session is still usable.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dtroode/authkeeper-server/internal/api/http/cookie"
	"github.com/dtroode/authkeeper-server/internal/model"
)

const defaultTimeout = 10 * time.Second

// ErrNotLoggedIn is returned when a call needs a session the store does not hold.
var ErrNotLoggedIn = errors.New("not logged in")

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
}

// IsRevoked reports whether err is a 403 answer, which means the session
// is gone and local state must be dropped.
func IsRevoked(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden
}

type envelope struct {
	Error      bool            `json:"error"`
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Client calls the API rooted at baseURL, for example http://localhost:8080/api.
type Client struct {
	baseURL string
	http    *http.Client
	store   Store
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client with a 10s timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func New(baseURL string, store Store, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		store:   store,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the store the client reads and writes.
func (c *Client) Store() Store {
	return c.store
}

// Login signs in and stores both tokens.
func (c *Client) Login(ctx context.Context, username, password string) (model.PublicUser, error) {
	var data struct {
		User                  model.PublicUser `json:"user"`
		AccessTokenExpiresAt  time.Time        `json:"accessTokenExpiresAt"`
		RefreshTokenExpiresAt time.Time        `json:"refreshTokenExpiresAt"`
	}

	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, &data, func(s *State) {
		s.AccessExpiresAt = data.AccessTokenExpiresAt
		s.RefreshExpiresAt = data.RefreshTokenExpiresAt
	})
	if err != nil {
		return model.PublicUser{}, err
	}
	return data.User, nil
}

// Refresh renews the access token. With rotate the refresh token is
// replaced too.
func (c *Client) Refresh(ctx context.Context, rotate bool) error {
	grant := "access_token"
	if rotate {
		grant = "refresh_token"
	}

	var data struct {
		AccessTokenExpiresAt  time.Time `json:"accessTokenExpiresAt"`
		RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt"`
	}
	return c.do(ctx, http.MethodPost, "/auth/refresh", map[string]string{"grantType": grant}, &data, func(s *State) {
		s.AccessExpiresAt = data.AccessTokenExpiresAt
		s.RefreshExpiresAt = data.RefreshTokenExpiresAt
	})
}

// Logout ends the session on the server. Local state is dropped even when
// the call fails.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, nil)
	if clearErr := c.store.Clear(); clearErr != nil && err == nil {
		err = clearErr
	}
	return err
}

// RevokeAll ends every session of the signed-in user and returns how many
// were active.
func (c *Client) RevokeAll(ctx context.Context) (int64, error) {
	var data struct {
		Revoked int64 `json:"revoked"`
	}
	if err := c.do(ctx, http.MethodPost, "/sessions/revoke-all", nil, &data, nil); err != nil {
		return 0, err
	}
	return data.Revoked, c.store.Clear()
}

// Me returns the signed-in user.
func (c *Client) Me(ctx context.Context) (model.PublicUser, error) {
	var data struct {
		User model.PublicUser `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, &data, nil); err != nil {
		return model.PublicUser{}, err
	}
	return data.User, nil
}

// do sends the stored tokens as cookies, decodes the envelope into out and
// applies Set-Cookie headers to the store. onSuccess may adjust the state
// after out has been decoded.
func (c *Client) do(ctx context.Context, method, path string, body, out any, onSuccess func(*State)) error {
	state, err := c.store.Load()
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	var reader bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&reader).Encode(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if state.AccessToken != "" {
		req.AddCookie(&http.Cookie{Name: cookie.AccessName, Value: state.AccessToken})
	}
	if state.RefreshToken != "" {
		req.AddCookie(&http.Cookie{Name: cookie.RefreshName, Value: state.RefreshToken})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	if applyCookies(&state, resp.Cookies()) {
		if err := c.store.Save(state); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return &APIError{StatusCode: resp.StatusCode, Message: env.Message}
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	if onSuccess != nil {
		onSuccess(&state)
		if err := c.store.Save(state); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
	}
	return nil
}

// applyCookies copies session cookies into state and reports whether
// anything changed. Expired cookies clear the matching token.
func applyCookies(state *State, cookies []*http.Cookie) bool {
	changed := false
	for _, ck := range cookies {
		value := ck.Value
		if ck.MaxAge < 0 {
			value = ""
		}

		switch ck.Name {
		case cookie.AccessName:
			state.AccessToken = value
			if value == "" {
				state.AccessExpiresAt = time.Time{}
			}
		case cookie.RefreshName:
			state.RefreshToken = value
			if value == "" {
				state.RefreshExpiresAt = time.Time{}
			}
		default:
			continue
		}
		changed = true
	}
	return changed
}
