package handler

import (
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/dtroode/authkeeper-server/internal/api/http/cookie"
	"github.com/dtroode/authkeeper-server/internal/api/http/response"
	"github.com/dtroode/authkeeper-server/internal/apierror"
	"github.com/dtroode/authkeeper-server/internal/logger"
	"github.com/dtroode/authkeeper-server/internal/model"
	"github.com/dtroode/authkeeper-server/internal/service"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r *loginRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Username, validation.Required, validation.Length(3, 0)),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 0)),
	)
}

type refreshRequest struct {
	GrantType string `json:"grantType"`
}

func (r *refreshRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.GrantType,
			validation.Required,
			validation.In(service.GrantAccessToken, service.GrantRefreshToken).
				Error("must be access_token or refresh_token")),
	)
}

type loginData struct {
	User                  model.PublicUser `json:"user"`
	AccessTokenExpiresAt  time.Time        `json:"accessTokenExpiresAt"`
	RefreshTokenExpiresAt time.Time        `json:"refreshTokenExpiresAt"`
}

type refreshData struct {
	AccessToken           string    `json:"accessToken"`
	AccessTokenExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt"`
}

// Auth serves login, refresh and logout.
type Auth struct {
	session SessionService
	cookies *cookie.Manager
	logger  *logger.Logger
}

func NewAuth(session SessionService, cookies *cookie.Manager, logger *logger.Logger) *Auth {
	return &Auth{session: session, cookies: cookies, logger: logger}
}

// Login handles POST /api/auth/login.
func (h *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	res, err := h.session.Login(r.Context(), service.LoginParams{
		Username: req.Username,
		Password: req.Password,
		Client:   clientInfo(r),
	})
	if err != nil {
		response.Error(w, r, err)
		return
	}

	h.cookies.SetAccess(w, res.AccessToken)
	h.cookies.SetRefresh(w, res.RefreshToken)

	response.Success(w, r, "User logged in successfully", loginData{
		User:                  res.User.Public(),
		AccessTokenExpiresAt:  res.AccessExpiresAt,
		RefreshTokenExpiresAt: res.RefreshExpiresAt,
	})
}

// Refresh handles POST /api/auth/refresh for both grants.
func (h *Auth) Refresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := cookie.RefreshToken(r)
	if refreshToken == "" {
		response.Error(w, r, apierror.NewErrUnauthorized(service.MsgInvalidRefresh, nil))
		return
	}

	var req refreshRequest
	if err := decodeBody(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	var (
		res     service.RefreshResult
		err     error
		message string
	)
	switch req.GrantType {
	case service.GrantRefreshToken:
		res, err = h.session.RefreshRotate(r.Context(), refreshToken, clientInfo(r))
		message = "Tokens refreshed successfully"
	default:
		res, err = h.session.RefreshAccessOnly(r.Context(), refreshToken, clientInfo(r))
		message = "Access token refreshed successfully"
	}
	if err != nil {
		if apierror.From(err).Kind == apierror.KindForbidden {
			h.cookies.ClearAll(w)
		}
		response.Error(w, r, err)
		return
	}

	h.cookies.SetAccess(w, res.AccessToken)
	if res.Rotated {
		h.cookies.SetRefresh(w, res.RefreshToken)
	}

	response.Success(w, r, message, refreshData{
		AccessToken:           res.AccessToken,
		AccessTokenExpiresAt:  res.AccessExpiresAt,
		RefreshTokenExpiresAt: res.RefreshExpiresAt,
	})
}

// Logout handles POST /api/auth/logout. Cookies are cleared whatever the
// ledger says.
func (h *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	res, err := h.session.Logout(r.Context(), cookie.RefreshToken(r))
	h.cookies.ClearAll(w)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	if res.Revoked {
		response.Success(w, r, "Logged out successfully", nil)
		return
	}
	response.Success(w, r, "Already logged out", nil)
}
