package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/authkeeper-server/internal/apierror"
	"github.com/dtroode/authkeeper-server/internal/logger"
	"github.com/dtroode/authkeeper-server/internal/metrics"
	"github.com/dtroode/authkeeper-server/internal/model"
)

// Refresh grants.
const (
	GrantAccessToken  = "access_token"
	GrantRefreshToken = "refresh_token"
)

// Messages returned to clients.
const (
	MsgNoToken          = "Unauthorized: No token provided"
	MsgInvalidToken     = "Unauthorized: Invalid token"
	MsgTokenExpired     = "Unauthorized: Token expired"
	MsgTokenRevoked     = "Forbidden: Token has been revoked"
	MsgSessionCheck     = "Unauthorized: Unable to verify session"
	MsgInvalidRefresh   = "Invalid refresh token"
	MsgRevokedRefresh   = "Refresh token is invalid or has been revoked"
	MsgExpiredRefresh   = "Refresh token has expired"
	MsgUserNotFound     = "User not found"
	MsgWrongPassword    = "Current password is incorrect"
	MsgPasswordNotFresh = "Password must be different"
)

// LoginParams is a login attempt.
type LoginParams struct {
	Username string
	Password string
	Client   model.ClientInfo
}

// LoginResult is a freshly started session.
type LoginResult struct {
	User             model.User
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// RefreshResult carries the new access token, and the new refresh token
// when the refresh identity was rotated.
type RefreshResult struct {
	User             model.User
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	Rotated          bool
}

// LogoutResult reports whether a live session was revoked.
type LogoutResult struct {
	Revoked bool
}

// AuthenticateOptions tune access token verification.
type AuthenticateOptions struct {
	// IgnoreExpiry accepts an expired but otherwise valid access token.
	IgnoreExpiry bool
}

// SeedUser is a demo account created at startup.
type SeedUser struct {
	Username string
	Password string
	Name     string
	Email    string
	Avatar   string
	Role     model.Role
}

// Session manages the refresh token lifecycle: login, refresh, logout and
// access token authentication against the revocation ledger.
type Session struct {
	users         model.UserStore
	tokens        model.RefreshTokenStore
	manager       model.TokenManager
	hasher        model.PasswordHasher
	replay        model.ReplayTracker
	recorder      model.Recorder
	logger        *logger.Logger
	now           func() time.Time
	revokeOnReuse bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// WithReplayTracker counts refresh token reuse.
func WithReplayTracker(replay model.ReplayTracker) SessionOption {
	return func(s *Session) { s.replay = replay }
}

// WithRecorder records outcomes as metrics.
func WithRecorder(recorder model.Recorder) SessionOption {
	return func(s *Session) { s.recorder = recorder }
}

// WithRevokeOnReuse revokes every session of a user whose revoked refresh
// token is presented again.
func WithRevokeOnReuse(enabled bool) SessionOption {
	return func(s *Session) { s.revokeOnReuse = enabled }
}

func NewSession(
	users model.UserStore,
	tokens model.RefreshTokenStore,
	manager model.TokenManager,
	hasher model.PasswordHasher,
	logger *logger.Logger,
	opts ...SessionOption,
) *Session {
	s := &Session{
		users:    users,
		tokens:   tokens,
		manager:  manager,
		hasher:   hasher,
		recorder: metrics.Nop{},
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login verifies credentials and starts a session. Unknown user, deleted
// user and wrong password are indistinguishable to the caller.
func (s *Session) Login(ctx context.Context, params LoginParams) (LoginResult, error) {
	s.logger.Debug("Session service: login attempt",
		"username", params.Username)

	user, err := s.users.GetByUsername(ctx, params.Username)
	if err != nil && !errors.Is(err, model.ErrNotFound) {
		s.logger.Error("Session service: failed to get user by username",
			"username", params.Username,
			"error", err.Error())
		s.recorder.RecordLogin(ctx, model.OutcomeError)
		return LoginResult{}, fmt.Errorf("failed to get user by username: %w", err)
	}
	known := err == nil && !user.IsDeleted()

	hash := user.PasswordHash
	if !known {
		hash = s.hasher.Dummy()
	}

	ok, err := s.hasher.Verify(params.Password, hash)
	if err != nil {
		s.logger.Error("Session service: failed to verify password",
			"username", params.Username,
			"error", err.Error())
		s.recorder.RecordLogin(ctx, model.OutcomeError)
		return LoginResult{}, fmt.Errorf("failed to verify password: %w", err)
	}
	if !known || !ok {
		s.logger.Info("Session service: invalid credentials",
			"username", params.Username)
		s.recorder.RecordLogin(ctx, model.OutcomeInvalidCredentials)
		return LoginResult{}, apierror.NewErrInvalidCredentials()
	}

	refresh, err := s.manager.IssueRefreshToken(user.ID)
	if err != nil {
		s.recorder.RecordLogin(ctx, model.OutcomeError)
		return LoginResult{}, fmt.Errorf("failed to issue refresh token: %w", err)
	}

	if err := s.tokens.Create(ctx, s.ledgerRow(user.ID, refresh, params.Client)); err != nil {
		s.logger.Error("Session service: failed to record refresh token",
			"user_id", user.ID,
			"error", err.Error())
		s.recorder.RecordLogin(ctx, model.OutcomeError)
		return LoginResult{}, fmt.Errorf("failed to record refresh token: %w", err)
	}

	access, accessExpiresAt, err := s.issueAccess(user, refresh.JTI)
	if err != nil {
		s.recorder.RecordLogin(ctx, model.OutcomeError)
		return LoginResult{}, err
	}

	s.logger.Info("Session service: user logged in",
		"user_id", user.ID,
		"jti", refresh.JTI)
	s.recorder.RecordLogin(ctx, model.OutcomeSuccess)

	return LoginResult{
		User:             user,
		AccessToken:      access,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     refresh.Token,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, nil
}

// RefreshAccessOnly mints a new access token bound to the presented,
// still active refresh identity. The ledger is not changed.
func (s *Session) RefreshAccessOnly(ctx context.Context, refreshToken string, client model.ClientInfo) (RefreshResult, error) {
	row, user, err := s.resolveRefresh(ctx, GrantAccessToken, refreshToken)
	if err != nil {
		return RefreshResult{}, err
	}

	access, accessExpiresAt, err := s.issueAccess(user, row.JTI)
	if err != nil {
		s.recorder.RecordRefresh(ctx, GrantAccessToken, model.OutcomeError)
		return RefreshResult{}, err
	}

	s.logger.Info("Session service: access token refreshed",
		"user_id", user.ID,
		"jti", row.JTI,
		"ip", client.IPAddress)
	s.recorder.RecordRefresh(ctx, GrantAccessToken, model.OutcomeSuccess)

	return RefreshResult{
		User:             user,
		AccessToken:      access,
		AccessExpiresAt:  accessExpiresAt,
		RefreshExpiresAt: row.ExpiresAt,
	}, nil
}

// RefreshRotate revokes the presented refresh identity and replaces it with
// a new one. Of concurrent rotations of one identity exactly one succeeds;
// the others are denied and treated as reuse.
func (s *Session) RefreshRotate(ctx context.Context, refreshToken string, client model.ClientInfo) (RefreshResult, error) {
	row, user, err := s.resolveRefresh(ctx, GrantRefreshToken, refreshToken)
	if err != nil {
		return RefreshResult{}, err
	}

	next, err := s.manager.IssueRefreshToken(user.ID)
	if err != nil {
		s.recorder.RecordRefresh(ctx, GrantRefreshToken, model.OutcomeError)
		return RefreshResult{}, fmt.Errorf("failed to issue refresh token: %w", err)
	}

	nextRow := s.ledgerRow(user.ID, next, client)
	nextRow.RotatedFromJTI = &row.JTI

	if err := s.tokens.Rotate(ctx, row.JTI, nextRow); err != nil {
		if errors.Is(err, model.ErrTokenRevoked) {
			s.recorder.RecordRefresh(ctx, GrantRefreshToken, model.OutcomeReuse)
			s.reuseDetected(ctx, row.UserID, row.JTI)
			return RefreshResult{}, apierror.NewErrForbidden(MsgRevokedRefresh, err)
		}
		s.logger.Error("Session service: failed to rotate refresh token",
			"user_id", user.ID,
			"jti", row.JTI,
			"error", err.Error())
		s.recorder.RecordRefresh(ctx, GrantRefreshToken, model.OutcomeError)
		return RefreshResult{}, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	access, accessExpiresAt, err := s.issueAccess(user, next.JTI)
	if err != nil {
		s.recorder.RecordRefresh(ctx, GrantRefreshToken, model.OutcomeError)
		return RefreshResult{}, err
	}

	s.logger.Info("Session service: refresh token rotated",
		"user_id", user.ID,
		"from_jti", row.JTI,
		"jti", next.JTI)
	s.recorder.RecordRefresh(ctx, GrantRefreshToken, model.OutcomeSuccess)

	return RefreshResult{
		User:             user,
		AccessToken:      access,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     next.Token,
		RefreshExpiresAt: next.ExpiresAt,
		Rotated:          true,
	}, nil
}

// Logout revokes the refresh identity of the presented token. Expired
// tokens may still log out. Missing, malformed and already revoked tokens
// are not errors.
func (s *Session) Logout(ctx context.Context, refreshToken string) (LogoutResult, error) {
	if refreshToken == "" {
		return LogoutResult{}, nil
	}

	payload, err := s.manager.DecodeRefreshToken(refreshToken)
	if err != nil {
		s.logger.Debug("Session service: logout with undecodable refresh token",
			"error", err.Error())
		return LogoutResult{}, nil
	}

	n, err := s.tokens.RevokeByJTI(ctx, payload.JTI)
	if err != nil {
		s.logger.Error("Session service: failed to revoke refresh token",
			"jti", payload.JTI,
			"error", err.Error())
		return LogoutResult{}, fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	s.logger.Info("Session service: user logged out",
		"user_id", payload.UserID,
		"jti", payload.JTI,
		"revoked", n > 0)

	return LogoutResult{Revoked: n > 0}, nil
}

// RevokeAll ends every session of the user.
func (s *Session) RevokeAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.tokens.RevokeAllByUser(ctx, userID)
	if err != nil {
		s.logger.Error("Session service: failed to revoke all sessions",
			"user_id", userID,
			"error", err.Error())
		return 0, fmt.Errorf("failed to revoke all sessions: %w", err)
	}

	s.logger.Info("Session service: all sessions revoked",
		"user_id", userID,
		"count", n)
	return n, nil
}

// Authenticate verifies an access token and checks that its refresh
// identity is still active. Ledger failures deny access.
func (s *Session) Authenticate(ctx context.Context, accessToken string, opts AuthenticateOptions) (model.Principal, error) {
	if accessToken == "" {
		s.recorder.RecordGuard(ctx, model.OutcomeUnknown)
		return model.Principal{}, apierror.NewErrUnauthorized(MsgNoToken, model.ErrTokenInvalid)
	}

	parse := s.manager.ParseAccessToken
	if opts.IgnoreExpiry {
		parse = s.manager.DecodeAccessToken
	}

	payload, err := parse(accessToken)
	if err != nil {
		if errors.Is(err, model.ErrTokenExpired) {
			s.recorder.RecordGuard(ctx, model.OutcomeExpired)
			return model.Principal{}, apierror.NewErrUnauthorized(MsgTokenExpired, err)
		}
		s.recorder.RecordGuard(ctx, model.OutcomeInvalid)
		return model.Principal{}, apierror.NewErrUnauthorized(MsgInvalidToken, err)
	}

	row, err := s.tokens.GetActiveByJTI(ctx, payload.RTID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			s.logger.Warn("Session service: access token of revoked session presented",
				"user_id", payload.UserID,
				"rtid", payload.RTID)
			s.recorder.RecordGuard(ctx, model.OutcomeRevoked)
			return model.Principal{}, apierror.NewErrForbidden(MsgTokenRevoked, model.ErrTokenRevoked)
		}
		s.logger.Error("Session service: failed to check refresh token",
			"rtid", payload.RTID,
			"error", err.Error())
		s.recorder.RecordGuard(ctx, model.OutcomeError)
		return model.Principal{}, apierror.NewErrUnauthorized(MsgSessionCheck, err)
	}
	if row.UserID != payload.UserID {
		s.logger.Warn("Session service: access token subject does not own its session",
			"user_id", payload.UserID,
			"rtid", payload.RTID)
		s.recorder.RecordGuard(ctx, model.OutcomeRevoked)
		return model.Principal{}, apierror.NewErrForbidden(MsgTokenRevoked, model.ErrTokenRevoked)
	}

	s.recorder.RecordGuard(ctx, model.OutcomeSuccess)
	return model.Principal{
		UserID:    payload.UserID,
		Role:      payload.Role,
		RTID:      payload.RTID,
		Username:  payload.Username,
		Email:     payload.Email,
		Avatar:    payload.Avatar,
		Issuer:    payload.Issuer,
		IssuedAt:  payload.IssuedAt,
		ExpiresAt: payload.ExpiresAt,
	}, nil
}

// ChangePassword replaces the password and ends every session of the user.
func (s *Session) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) (int64, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	ok, err := s.hasher.Verify(current, user.PasswordHash)
	if err != nil {
		return 0, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		s.logger.Info("Session service: wrong current password",
			"user_id", userID)
		return 0, apierror.NewErrValidation(MsgWrongPassword, map[string]string{"currentPassword": MsgWrongPassword})
	}
	if current == next {
		return 0, apierror.NewErrValidation(MsgPasswordNotFresh, map[string]string{"newPassword": MsgPasswordNotFresh})
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return 0, fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		s.logger.Error("Session service: failed to update password",
			"user_id", userID,
			"error", err.Error())
		return 0, fmt.Errorf("failed to update password: %w", err)
	}

	s.logger.Info("Session service: password changed",
		"user_id", userID)

	return s.RevokeAll(ctx, userID)
}

// Profile returns the live user.
func (s *Session) Profile(ctx context.Context, userID uuid.UUID) (model.User, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		var apiErr *apierror.APIError
		if errors.As(err, &apiErr) {
			return model.User{}, apierror.NewErrNotFound(MsgUserNotFound)
		}
		return model.User{}, err
	}
	return user, nil
}

// Seed creates the users that do not exist yet.
func (s *Session) Seed(ctx context.Context, users []SeedUser) error {
	for _, su := range users {
		_, err := s.users.GetByUsername(ctx, su.Username)
		if err == nil {
			continue
		}
		if !errors.Is(err, model.ErrNotFound) {
			return fmt.Errorf("failed to get user %q: %w", su.Username, err)
		}

		hash, err := s.hasher.Hash(su.Password)
		if err != nil {
			return fmt.Errorf("failed to hash password of %q: %w", su.Username, err)
		}

		created, err := s.users.Create(ctx, model.User{
			Username:     su.Username,
			Name:         su.Name,
			Email:        su.Email,
			Avatar:       su.Avatar,
			Role:         su.Role,
			PasswordHash: hash,
		})
		if errors.Is(err, model.ErrUserExists) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to create user %q: %w", su.Username, err)
		}

		s.logger.Info("Session service: seeded user",
			"user_id", created.ID,
			"username", created.Username)
	}
	return nil
}

// resolveRefresh runs the checks shared by both grants. Order matters:
// revocation is reported before expiry.
func (s *Session) resolveRefresh(ctx context.Context, grant, refreshToken string) (model.RefreshToken, model.User, error) {
	s.logger.Debug("Session service: refresh requested",
		"grant", grant)

	if refreshToken == "" {
		s.recorder.RecordRefresh(ctx, grant, model.OutcomeInvalid)
		return model.RefreshToken{}, model.User{}, apierror.NewErrUnauthorized(MsgInvalidRefresh, model.ErrTokenInvalid)
	}

	payload, err := s.manager.DecodeRefreshToken(refreshToken)
	if err != nil {
		s.logger.Info("Session service: invalid refresh token",
			"error", err.Error())
		s.recorder.RecordRefresh(ctx, grant, model.OutcomeInvalid)
		return model.RefreshToken{}, model.User{}, apierror.NewErrUnauthorized(MsgInvalidRefresh, err)
	}

	row, err := s.tokens.GetActiveByJTI(ctx, payload.JTI)
	if err != nil {
		if !errors.Is(err, model.ErrNotFound) {
			s.logger.Error("Session service: failed to look up refresh token",
				"jti", payload.JTI,
				"error", err.Error())
			s.recorder.RecordRefresh(ctx, grant, model.OutcomeError)
			return model.RefreshToken{}, model.User{}, fmt.Errorf("failed to look up refresh token: %w", err)
		}
		return model.RefreshToken{}, model.User{}, s.rejectInactive(ctx, grant, payload)
	}

	if row.UserID != payload.UserID {
		s.logger.Warn("Session service: refresh token subject does not own its session",
			"user_id", payload.UserID,
			"jti", payload.JTI)
		s.recorder.RecordRefresh(ctx, grant, model.OutcomeRevoked)
		return model.RefreshToken{}, model.User{}, apierror.NewErrForbidden(MsgRevokedRefresh, model.ErrTokenRevoked)
	}

	now := s.now()
	if row.State(now) == model.SessionExpired || !now.Before(payload.ExpiresAt) {
		s.logger.Info("Session service: refresh token expired",
			"user_id", row.UserID,
			"jti", row.JTI)
		s.recorder.RecordRefresh(ctx, grant, model.OutcomeExpired)
		return model.RefreshToken{}, model.User{}, apierror.NewErrUnauthorized(MsgExpiredRefresh, model.ErrTokenExpired)
	}

	user, err := s.loadUser(ctx, row.UserID)
	if err != nil {
		var apiErr *apierror.APIError
		if errors.As(err, &apiErr) {
			s.recorder.RecordRefresh(ctx, grant, model.OutcomeInvalid)
		} else {
			s.recorder.RecordRefresh(ctx, grant, model.OutcomeError)
		}
		return model.RefreshToken{}, model.User{}, err
	}

	return row, user, nil
}

// rejectInactive denies a refresh identity that is not active and tells
// reuse of a revoked identity apart from an unknown one.
func (s *Session) rejectInactive(ctx context.Context, grant string, payload model.RefreshPayload) error {
	denied := apierror.NewErrForbidden(MsgRevokedRefresh, model.ErrTokenRevoked)

	row, err := s.tokens.GetByJTI(ctx, payload.JTI)
	switch {
	case err == nil && row.Revoked:
		s.recorder.RecordRefresh(ctx, grant, model.OutcomeReuse)
		s.reuseDetected(ctx, row.UserID, row.JTI)
	case err != nil && !errors.Is(err, model.ErrNotFound):
		s.logger.Error("Session service: failed to classify inactive refresh token",
			"jti", payload.JTI,
			"error", err.Error())
		s.recorder.RecordRefresh(ctx, grant, model.OutcomeUnknown)
	default:
		s.logger.Info("Session service: unknown refresh token",
			"user_id", payload.UserID,
			"jti", payload.JTI)
		s.recorder.RecordRefresh(ctx, grant, model.OutcomeUnknown)
	}

	return denied
}

func (s *Session) reuseDetected(ctx context.Context, userID uuid.UUID, jti string) {
	s.logger.Warn("Session service: refresh token reuse detected",
		"user_id", userID,
		"jti", jti)

	if s.replay != nil {
		count, err := s.replay.TrackReuse(ctx, userID, jti)
		if err != nil {
			s.logger.Error("Session service: failed to track refresh token reuse",
				"user_id", userID,
				"error", err.Error())
		} else {
			s.logger.Warn("Session service: refresh token reuse count",
				"user_id", userID,
				"count", count)
		}
	}

	if s.revokeOnReuse {
		if _, err := s.RevokeAll(ctx, userID); err != nil {
			s.logger.Error("Session service: failed to revoke sessions after reuse",
				"user_id", userID,
				"error", err.Error())
		}
	}
}

func (s *Session) loadUser(ctx context.Context, userID uuid.UUID) (model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.User{}, apierror.NewErrUnauthorized(MsgUserNotFound, err)
		}
		s.logger.Error("Session service: failed to get user by id",
			"user_id", userID,
			"error", err.Error())
		return model.User{}, fmt.Errorf("failed to get user by id: %w", err)
	}
	if user.IsDeleted() {
		return model.User{}, apierror.NewErrUnauthorized(MsgUserNotFound, model.ErrNotFound)
	}
	return user, nil
}

func (s *Session) issueAccess(user model.User, rtid string) (string, time.Time, error) {
	access, err := s.manager.IssueAccessToken(model.AccessTokenParams{
		UserID:   user.ID,
		Role:     user.Role,
		RTID:     rtid,
		Username: user.Username,
		Email:    user.Email,
		Avatar:   user.Avatar,
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to issue access token: %w", err)
	}
	return access, s.now().Truncate(time.Second).Add(s.manager.AccessTTL()), nil
}

func (s *Session) ledgerRow(userID uuid.UUID, refresh model.IssuedRefreshToken, client model.ClientInfo) model.RefreshToken {
	now := s.now().UTC()
	return model.RefreshToken{
		JTI:       refresh.JTI,
		UserID:    userID,
		IssuedAt:  refresh.IssuedAt,
		ExpiresAt: refresh.ExpiresAt,
		IPAddress: client.IPAddress,
		UserAgent: client.UserAgent,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
