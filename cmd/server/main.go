package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.opentelemetry.io/otel"

	grpcrouter "github.com/dtroode/authkeeper-server/internal/api/grpc/router"
	grpcserver "github.com/dtroode/authkeeper-server/internal/api/grpc/server"
	httpcontext "github.com/dtroode/authkeeper-server/internal/api/http/context"
	"github.com/dtroode/authkeeper-server/internal/api/http/cookie"
	"github.com/dtroode/authkeeper-server/internal/api/http/handler"
	httprouter "github.com/dtroode/authkeeper-server/internal/api/http/router"
	httpserver "github.com/dtroode/authkeeper-server/internal/api/http/server"
	"github.com/dtroode/authkeeper-server/internal/config"
	"github.com/dtroode/authkeeper-server/internal/logger"
	"github.com/dtroode/authkeeper-server/internal/metrics"
	"github.com/dtroode/authkeeper-server/internal/model"
	"github.com/dtroode/authkeeper-server/internal/password"
	"github.com/dtroode/authkeeper-server/internal/repository/memory"
	"github.com/dtroode/authkeeper-server/internal/repository/postgres"
	"github.com/dtroode/authkeeper-server/internal/server"
	"github.com/dtroode/authkeeper-server/internal/service"
	redisstorage "github.com/dtroode/authkeeper-server/internal/storage/redis"
	"github.com/dtroode/authkeeper-server/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	logAppVersion()

	checks := make(map[string]handler.Check)

	var (
		users  model.UserStore
		tokens model.RefreshTokenStore
	)
	switch cfg.Database.Driver {
	case "memory":
		logger.Warn("using in-memory storage, sessions are lost on restart")
		users = memory.NewUserRepository()
		tokens = memory.NewRefreshTokenRepository()
	default:
		db, err := postgres.NewConnection(ctx, cfg.Database.DSN)
		if err != nil {
			logger.Fatal("failed to initialize storage", "error", err)
		}
		defer db.Close()

		users = postgres.NewUserRepository(db.DB)
		tokens = postgres.NewRefreshTokenRepository(db.DB)
		checks["database"] = db.Ping
	}

	provider, collector := metrics.NewLocalProvider()
	otel.SetMeterProvider(provider)
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Error("failed to shut down meter provider", "error", err)
		}
	}()
	recorder, err := metrics.NewRecorder(otel.Meter(metrics.ScopeName))
	if err != nil {
		logger.Fatal("failed to create metrics recorder", "error", err)
	}

	sessionOpts := []service.SessionOption{
		service.WithRecorder(recorder),
		service.WithRevokeOnReuse(cfg.Session.RevokeOnReuse),
	}
	if cfg.Redis.Addr != "" {
		rdb, err := redisstorage.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("failed to connect to redis", "error", err)
		}
		defer rdb.Close()

		sessionOpts = append(sessionOpts, service.WithReplayTracker(redisstorage.NewReplayTracker(rdb, 0)))
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	} else {
		sessionOpts = append(sessionOpts, service.WithReplayTracker(memory.NewReplayTracker()))
	}

	tokenManager, err := token.NewJWT(token.Config{
		AccessSecret:  cfg.Token.AccessSecret,
		RefreshSecret: cfg.Token.RefreshSecret,
		AccessTTL:     cfg.Token.AccessTTL(),
		RefreshTTL:    cfg.Token.RefreshTTL(),
		Issuer:        cfg.Token.Issuer,
	})
	if err != nil {
		logger.Fatal("failed to initialize token codec", "error", err)
	}

	hasher, err := password.NewBcrypt(cfg.Password.Rounds(), logger)
	if err != nil {
		logger.Fatal("failed to initialize password hasher", "error", err)
	}

	session := service.NewSession(users, tokens, tokenManager, hasher, logger.Component("session"), sessionOpts...)

	if cfg.SeedDemoUsers {
		if err := session.Seed(ctx, service.DemoUsers()); err != nil {
			logger.Fatal("failed to seed demo users", "error", err)
		}
	}

	securityLayer, err := server.NewSecurityLayer(cfg.TLS)
	if err != nil {
		logger.Fatal("failed to initialize security layer", "error", err)
	}

	httpRouter := httprouter.New(session, httpcontext.NewManager(), checks, collector, httprouter.Config{
		PublicPrefixes: cfg.HTTP.PublicPrefixes,
		Production:     cfg.IsProduction(),
		Cookies: cookie.Config{
			Secure:     cfg.IsProduction(),
			SameSite:   cfg.Cookie.SameSiteMode(),
			AccessTTL:  cfg.Token.AccessTTL(),
			RefreshTTL: cfg.Token.RefreshTTL(),
		},
	}, logger.Component("http"))

	servers := []model.Server{httpserver.NewHTTPServer(httpRouter.Register(), cfg.HTTP.Address)}
	if cfg.GRPC.Enabled {
		grpcRouter := grpcrouter.New(session, cfg.GRPC.ServiceKey, logger.Component("grpc"))
		servers = append(servers, grpcserver.NewGRPCServer(grpcRouter.Register(), cfg.GRPC.Address))
	}

	var wg sync.WaitGroup
	for _, s := range servers {
		wg.Add(1)
		go func(s model.Server) {
			defer wg.Done()
			logger.Info("starting server", "address", s.Address(), "tls", cfg.TLS.Enabled())
			if err := s.Start(securityLayer); err != nil {
				logger.Error("failed to start server", "error", err, "address", s.Address())
				stop()
			}
		}(s)
	}

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	for _, s := range servers {
		if err := s.Stop(shutdownCtx); err != nil {
			logger.Error("error during server shutdown", "error", err, "address", s.Address())
		}
	}

	wg.Wait()
	logger.Info("shutdown complete")
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
