package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/dtroode/authkeeper-server/internal/api/http/cookie"
	"github.com/dtroode/authkeeper-server/internal/api/http/response"
	"github.com/dtroode/authkeeper-server/internal/apierror"
	"github.com/dtroode/authkeeper-server/internal/logger"
	"github.com/dtroode/authkeeper-server/internal/model"
	"github.com/dtroode/authkeeper-server/internal/service"
)

// DebugSkipExpiryHeader asks the guard to accept an expired access token.
// It only has an effect in binaries built with the devbypass tag and
// outside production.
const DebugSkipExpiryHeader = "X-Debug-Skip-Expiry"

const protectedPrefix = "/api/"

// Authenticator verifies access tokens against the revocation ledger.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string, opts service.AuthenticateOptions) (model.Principal, error)
}

// Guard admits requests to protected API paths only with a live access token.
type Guard struct {
	auth           Authenticator
	cookies        *cookie.Manager
	contextManager model.ContextManager
	publicPrefixes []string
	expiryBypass   bool
	logger         *logger.Logger
}

// NewGuard creates the guard. production disables the expiry bypass even
// in binaries that include it.
func NewGuard(
	auth Authenticator,
	cookies *cookie.Manager,
	contextManager model.ContextManager,
	publicPrefixes []string,
	production bool,
	logger *logger.Logger,
) *Guard {
	bypass := ExpiryBypassAvailable(production)
	if bypass {
		logger.Warn("HTTP guard: expiry bypass header is enabled",
			"header", DebugSkipExpiryHeader)
	}

	return &Guard{
		auth:           auth,
		cookies:        cookies,
		contextManager: contextManager,
		publicPrefixes: publicPrefixes,
		expiryBypass:   bypass,
		logger:         logger,
	}
}

// ExpiryBypassAvailable reports whether this binary honours DebugSkipExpiryHeader.
func ExpiryBypassAvailable(production bool) bool {
	return expiryBypassCompiled && !production
}

// Handle is the chi middleware.
func (g *Guard) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !g.protected(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		var opts service.AuthenticateOptions
		if g.expiryBypass && r.Header.Get(DebugSkipExpiryHeader) != "" {
			g.logger.Warn("HTTP guard: access token expiry check skipped",
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr)
			opts.IgnoreExpiry = true
		}

		principal, err := g.auth.Authenticate(r.Context(), cookie.AccessToken(r), opts)
		if err != nil {
			g.deny(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(g.contextManager.SetPrincipalToContext(r.Context(), principal)))
	})
}

func (g *Guard) protected(path string) bool {
	if !strings.HasPrefix(path, protectedPrefix) {
		return false
	}
	for _, prefix := range g.publicPrefixes {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return false
		}
	}
	return true
}

func (g *Guard) deny(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apierror.From(err)

	switch {
	case apiErr.Kind == apierror.KindForbidden:
		g.cookies.ClearAll(w)
	case apiErr.Kind == apierror.KindUnauthorized && apiErr.Message == service.MsgInvalidToken:
		g.cookies.ClearAccess(w)
	case apiErr.Kind != apierror.KindUnauthorized:
		// Anything unexpected still denies access.
		g.logger.Error("HTTP guard: authentication failed",
			"path", r.URL.Path,
			"error", err.Error())
		apiErr = apierror.NewErrUnauthorized(service.MsgSessionCheck, err)
	}

	g.logger.Debug("HTTP guard: request denied",
		"path", r.URL.Path,
		"message", apiErr.Message)
	response.Error(w, r, apiErr)
}
