package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/mx-space/notes/internal/config"
	"github.com/mx-space/notes/internal/database"
	"github.com/mx-space/notes/internal/middleware"
	"github.com/mx-space/notes/internal/modules/auth/auth"
	"github.com/mx-space/notes/internal/modules/note"
	"github.com/mx-space/notes/internal/modules/note/publiclink"
	"github.com/mx-space/notes/internal/modules/note/share"
	"github.com/mx-space/notes/internal/modules/note/tag"
	"github.com/mx-space/notes/internal/pkg/access"
	pkgcron "github.com/mx-space/notes/internal/pkg/cron"
	"github.com/mx-space/notes/internal/pkg/hasher"
	"github.com/mx-space/notes/internal/pkg/jwt"
	pkgredis "github.com/mx-space/notes/internal/pkg/redis"
	"github.com/mx-space/notes/internal/pkg/session"
	"github.com/mx-space/notes/internal/pkg/tokengen"
	"github.com/mx-space/notes/internal/store"
	"github.com/mx-space/notes/internal/store/gormstore"
	"github.com/mx-space/notes/internal/store/memory"
	"go.uber.org/zap"
)

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	store  store.Store
	redis  *pkgredis.Client
	logger *zap.Logger
	cancel context.CancelFunc
	sched  *pkgcron.Scheduler
	svc    services
}

type services struct {
	auth   *auth.Service
	notes  *note.Service
	shares *share.Service
	links  *publiclink.Service
	tags   *tag.Service
	ledger *session.Ledger
	authn  *middleware.Authenticator
}

// New initializes the application: config → store → Redis → services → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	applyRuntimeSettings(cfg, logger)

	st, err := openStore(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	var rc *pkgredis.Client
	if cfg.Redis.Enable {
		rc, err = pkgredis.Connect(cfg.Redis.URLValue(), cfg.Redis.KeyPrefix)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
	} else {
		logger.Info("redis disabled, rate limiting and response caching are off")
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
		gin.DebugPrintRouteFunc = func(string, string, string, int) {}
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(corsConfig(cfg)))

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		cfg:    cfg,
		router: router,
		store:  st,
		redis:  rc,
		logger: logger,
		cancel: cancel,
		sched:  pkgcron.New(logger),
	}
	app.svc = buildServices(cfg, st, rc, logger)

	registerCronJobs(app.sched, cfg, app.svc)
	app.sched.Start(ctx)

	app.registerRoutes()
	return app, nil
}

func openStore(cfg *config.AppConfig, logger *zap.Logger) (store.Store, error) {
	if cfg.Database.Driver == config.DriverMemory {
		logger.Warn("using in-memory store, data is lost on exit")
		return memory.New(), nil
	}
	db, err := database.Connect(cfg, false)
	if err != nil {
		return nil, err
	}
	return gormstore.New(db), nil
}

func buildServices(cfg *config.AppConfig, st store.Store, rc *pkgredis.Client, logger *zap.Logger) services {
	engine := access.NewEngine(st)
	bcrypt := hasher.NewBcrypt(cfg.Auth.BcryptCost)
	issuer := jwt.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTokenTTL)
	ledger := session.NewLedger(st, cfg.Auth.RefreshTokenTTL,
		session.WithLogger(logger),
		session.WithMaxAge(cfg.Auth.RefreshTokenMaxAge),
		session.WithRetention(cfg.GC.TokenRetention),
	)

	linkOpts := []publiclink.Option{
		publiclink.WithLogger(logger),
		publiclink.WithGenerator(tokengen.New(cfg.PublicLink.TokenBytes)),
		publiclink.WithMaxTokenAttempts(cfg.PublicLink.MaxTokenAttempts),
		publiclink.WithRetention(cfg.GC.LinkRetention),
	}
	if rc != nil && cfg.PublicLink.PasswordAttempts > 0 {
		linkOpts = append(linkOpts, publiclink.WithThrottle(
			publiclink.NewRedisThrottle(rc, cfg.PublicLink.PasswordAttempts, cfg.PublicLink.PasswordWindow),
		))
	}

	return services{
		auth:   auth.NewService(st, bcrypt, issuer, ledger, auth.WithLogger(logger)),
		notes:  note.NewService(st, engine, note.WithLogger(logger)),
		shares: share.NewService(st, engine, share.WithLogger(logger), share.WithRetention(cfg.GC.ShareRetention)),
		links:  publiclink.NewService(st, engine, bcrypt, linkOpts...),
		tags:   tag.NewService(st, tag.WithLogger(logger)),
		ledger: ledger,
		authn:  middleware.NewAuthenticator(issuer, ledger),
	}
}

func corsConfig(cfg *config.AppConfig) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Idempotence", "X-Link-Password"},
		ExposeHeaders:    []string{"Content-Length", "X-Cache", "Retry-After"},
		AllowCredentials: true,
	}
	if len(cfg.AllowedOrigins) > 0 && !cfg.IsDev() {
		c.AllowOriginFunc = newOriginAllowlist(cfg.AllowedOrigins).Allow
	} else {
		c.AllowOriginFunc = func(origin string) bool { return true }
	}
	return c
}

// Addr returns the listen address.
func (a *App) Addr() string { return a.cfg.Addr() }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops the scheduled jobs and releases the store and redis.
func (a *App) Shutdown() {
	a.cancel()
	a.sched.Wait()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", zap.Error(err))
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close store", zap.Error(err))
	}
}
