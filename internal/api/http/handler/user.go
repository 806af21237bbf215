package handler

import (
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/dtroode/authkeeper-server/internal/api/http/cookie"
	"github.com/dtroode/authkeeper-server/internal/api/http/response"
	"github.com/dtroode/authkeeper-server/internal/apierror"
	"github.com/dtroode/authkeeper-server/internal/logger"
	"github.com/dtroode/authkeeper-server/internal/model"
	"github.com/dtroode/authkeeper-server/internal/password"
	"github.com/dtroode/authkeeper-server/internal/service"
)

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (r *changePasswordRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.CurrentPassword, validation.Required),
		validation.Field(&r.NewPassword, validation.Required, validation.Length(6, password.MaxLength)),
	)
}

type userData struct {
	User model.PublicUser `json:"user"`
}

type revokedData struct {
	Revoked int64 `json:"revoked"`
}

// User serves the endpoints of the signed-in user. Every route sits behind
// the guard.
type User struct {
	session        SessionService
	cookies        *cookie.Manager
	contextManager model.ContextManager
	logger         *logger.Logger
}

func NewUser(session SessionService, cookies *cookie.Manager, contextManager model.ContextManager, logger *logger.Logger) *User {
	return &User{session: session, cookies: cookies, contextManager: contextManager, logger: logger}
}

// Me handles GET /api/users/me.
func (h *User) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	user, err := h.session.Profile(r.Context(), principal.UserID)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	response.Success(w, r, "Success", userData{User: user.Public()})
}

// RevokeAll handles POST /api/sessions/revoke-all.
func (h *User) RevokeAll(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	n, err := h.session.RevokeAll(r.Context(), principal.UserID)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	h.cookies.ClearAll(w)
	response.Success(w, r, "All sessions revoked", revokedData{Revoked: n})
}

// ChangePassword handles POST /api/users/me/password.
func (h *User) ChangePassword(w http.ResponseWriter, r *http.Request) {
	principal, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req changePasswordRequest
	if err := decodeBody(w, r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	n, err := h.session.ChangePassword(r.Context(), principal.UserID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		response.Error(w, r, err)
		return
	}

	h.cookies.ClearAll(w)
	response.Success(w, r, "Password changed successfully", revokedData{Revoked: n})
}

func (h *User) principal(w http.ResponseWriter, r *http.Request) (model.Principal, bool) {
	principal, ok := h.contextManager.GetPrincipalFromContext(r.Context())
	if !ok {
		h.logger.Error("User handler: no principal in context",
			"path", r.URL.Path)
		response.Error(w, r, apierror.NewErrUnauthorized(service.MsgNoToken, nil))
		return model.Principal{}, false
	}
	return principal, true
}
