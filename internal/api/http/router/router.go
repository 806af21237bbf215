package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/dtroode/authkeeper-server/internal/api/http/cookie"
	"github.com/dtroode/authkeeper-server/internal/api/http/handler"
	"github.com/dtroode/authkeeper-server/internal/api/http/middleware"
	"github.com/dtroode/authkeeper-server/internal/api/http/response"
	"github.com/dtroode/authkeeper-server/internal/apierror"
	"github.com/dtroode/authkeeper-server/internal/logger"
	"github.com/dtroode/authkeeper-server/internal/model"
)

// Session is everything the HTTP surface needs from the session service.
type Session interface {
	handler.SessionService
	middleware.Authenticator
}

// Config selects guard and cookie behaviour.
type Config struct {
	PublicPrefixes []string
	Production     bool
	Cookies        cookie.Config
}

// Router wires handlers and middleware into a chi mux.
type Router struct {
	session        Session
	contextManager model.ContextManager
	checks         map[string]handler.Check
	metrics        handler.Snapshotter
	cfg            Config
	logger         *logger.Logger
}

// New creates a Router. metrics may be nil, in which case /metrics is not
// mounted.
func New(
	session Session,
	contextManager model.ContextManager,
	checks map[string]handler.Check,
	metrics handler.Snapshotter,
	cfg Config,
	logger *logger.Logger,
) *Router {
	return &Router{
		session:        session,
		contextManager: contextManager,
		checks:         checks,
		metrics:        metrics,
		cfg:            cfg,
		logger:         logger,
	}
}

// Register builds the HTTP handler.
func (r *Router) Register() http.Handler {
	cookies := cookie.NewManager(r.cfg.Cookies)
	guard := middleware.NewGuard(r.session, cookies, r.contextManager, r.cfg.PublicPrefixes, r.cfg.Production, r.logger)

	mux := chi.NewRouter()
	mux.Use(
		chimiddleware.RequestID,
		chimiddleware.RealIP,
		middleware.NewLogging(r.logger).Handle,
		middleware.NewRecovery(r.logger).Handle,
		guard.Handle,
	)

	mux.NotFound(func(w http.ResponseWriter, req *http.Request) {
		response.Error(w, req, apierror.NewErrNotFound("Route not found"))
	})
	mux.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		response.Write(w, req, http.StatusMethodNotAllowed, "Method not allowed", nil)
	})

	health := handler.NewHealth(r.checks, r.logger)
	mux.Get("/healthz", health.Check)
	if r.metrics != nil {
		mux.Get("/metrics", handler.NewMetrics(r.metrics).List)
	}

	auth := handler.NewAuth(r.session, cookies, r.logger)
	mux.Route("/api/auth", func(ar chi.Router) {
		ar.Post("/login", auth.Login)
		ar.Post("/refresh", auth.Refresh)
		ar.Post("/logout", auth.Logout)
	})

	user := handler.NewUser(r.session, cookies, r.contextManager, r.logger)
	mux.Post("/api/sessions/revoke-all", user.RevokeAll)
	mux.Route("/api/users/me", func(ur chi.Router) {
		ur.Get("/", user.Me)
		ur.Post("/password", user.ChangePassword)
	})

	return mux
}
