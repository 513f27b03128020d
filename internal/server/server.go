// Package server exposes the comment services over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"newsadvance/internal/cache"
	"newsadvance/internal/config"
	"newsadvance/internal/featureflags"
	"newsadvance/internal/middleware"
	"newsadvance/internal/models"
	"newsadvance/internal/notifications"
	"newsadvance/internal/observability"
	"newsadvance/internal/repository"
	"newsadvance/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const (
	principalCacheSize = 4096
	principalCacheTTL  = 30 * time.Second
)

var (
	promOnce sync.Once
	promMW   *fiberprometheus.FiberPrometheus
)

// httpMetrics returns the process-wide HTTP collector. The collectors live in
// the default registry, so they may only be created once.
func httpMetrics() *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		promMW = fiberprometheus.New("news-advance-comments")
	})
	return promMW
}

// Server holds all dependencies and provides handlers
type Server struct {
	config      *config.Config
	db          *gorm.DB
	redis       *redis.Client
	app         *fiber.App
	shutdownCtx context.Context
	shutdownFn  context.CancelFunc

	verifier   *middleware.TokenVerifier
	principals *service.PrincipalResolver
	articles   repository.ArticleRepository

	comments *service.CommentService
	votes    *service.VoteLedger
	threads  *service.ThreadService
	flags    *service.FlagService
	prefs    *service.PreferencesService
	gate     *service.Gate

	notifier       *notifications.Notifier
	hub            *notifications.Hub
	featureFlags   *featureflags.Manager
	publishTimeout time.Duration
}

// NewServer wires a Server over already-connected stores. rdb may be nil, in
// which case cooldowns are process-local and live events stay in-process.
func NewServer(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*Server, error) {
	userRepo := repository.NewUserRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	voteRepo := repository.NewVoteRepository(db)
	articleRepo := repository.NewArticleRepository(db)
	prefsRepo := repository.NewPreferencesRepository(db)
	flagRepo := repository.NewFlagRepository(db)

	principals, err := service.NewPrincipalResolver(userRepo, principalCacheSize, principalCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("principal cache: %w", err)
	}

	s := &Server{
		config:       cfg,
		db:           db,
		redis:        rdb,
		verifier:     middleware.NewTokenVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience),
		principals:   principals,
		articles:     articleRepo,
		hub:          notifications.NewHub(),
		featureFlags: featureflags.NewManager(cfg.FeatureFlags),

		publishTimeout: defaultPublishTimeout,
	}
	if rdb != nil {
		s.notifier = notifications.NewNotifier(rdb)
	}

	s.comments = service.NewCommentService(commentRepo, articleRepo, prefsRepo, s, service.CommentSettingsFromConfig(cfg))
	s.votes = service.NewVoteLedger(voteRepo)
	s.threads = service.NewThreadService(commentRepo, voteRepo, userRepo, s.featureFlags, service.ThreadSettingsFromConfig(cfg))
	s.flags = service.NewFlagService(flagRepo, commentRepo)
	s.prefs = service.NewPreferencesService(prefsRepo)
	s.gate = service.NewGate(cache.NewCooldown(rdb, cfg.CommentCooldown), s.comments, s.votes, s.flags)

	return s, nil
}

// App builds the Fiber application on first use.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName: "News Advance Comments",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			observability.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())
	app.Use(middleware.TracingMiddleware())
	app.Use(httpMetrics().Middleware)
	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before anything that can short-circuit so error responses
	// still carry the headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: origins != "*",
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": models.RateLimitedMessage,
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	httpMetrics().RegisterAt(app, "/metrics")

	api := app.Group("/api", s.Authenticate())
	t := s.withTimeout

	articles := api.Group("/articles")
	articles.Get("/:articleId/comments",
		middleware.RateLimit(s.redis, 120, time.Minute, "thread_read"), t(s.ListComments))
	// Mutations reject anonymous callers before any id or body parsing.
	authed := s.AuthRequired()
	articles.Post("/:articleId/comments", authed, t(s.CreateComment))

	comments := api.Group("/comments")
	comments.Get("/:id/replies", t(s.ListReplies))
	comments.Post("/:id/reply", authed, t(s.ReplyToComment))
	comments.Post("/:id/edit", authed, t(s.EditComment))
	comments.Post("/:id/moderate", authed, t(s.ModerateComment))
	comments.Post("/:id/flag", authed, t(s.FlagComment))
	comments.Post("/:id/vote", authed, t(s.VoteComment))
	comments.Put("/:id/vote", authed, t(s.VoteComment))
	comments.Delete("/:id/vote", authed, t(s.RetractVote))
	comments.Get("/:id", t(s.GetComment))
	comments.Post("/:id", authed, t(s.DeleteComment))
	comments.Delete("/:id", authed, t(s.DeleteComment))

	me := api.Group("/users/me", s.AuthRequired())
	me.Get("/comments", t(s.MyComments))
	me.Get("/preferences", t(s.GetPreferences))
	me.Put("/preferences", t(s.UpdatePreferences))

	admin := api.Group("/admin", s.AuthRequired(), s.StaffRequired())
	admin.Get("/flags", t(s.ListFlags))
	admin.Post("/flags/:flagId/resolve", t(s.ResolveFlag))

	api.Get("/ws/articles/:articleId", s.ArticleStreamUpgrade(), s.ArticleStream())
}

// withTimeout bounds a handler by REQUEST_TIMEOUT through its user context.
func (s *Server) withTimeout(h fiber.Handler) fiber.Handler {
	if s.config.RequestTimeout <= 0 {
		return h
	}
	return timeout.NewWithContext(h, s.config.RequestTimeout)
}

// Start wires live events and listens until the app is shut down.
func (s *Server) Start() error {
	app := s.startLiveEvents()
	observability.Logger.Info("server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// Serve is Start on an already bound listener.
func (s *Server) Serve(ln net.Listener) error {
	app := s.startLiveEvents()
	observability.Logger.Info("server starting", slog.String("addr", ln.Addr().String()))
	return app.Listener(ln)
}

func (s *Server) startLiveEvents() *fiber.App {
	s.shutdownCtx, s.shutdownFn = context.WithCancel(context.Background())
	app := s.App()

	if s.notifier != nil {
		if err := s.hub.StartWiring(s.shutdownCtx, s.notifier); err != nil {
			observability.Logger.Error("failed to start live event wiring",
				slog.String("hub", s.hub.Name()),
				slog.String("error", err.Error()),
			)
		}
	}
	return app
}

// Shutdown stops accepting requests and closes hubs and stores.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			observability.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		observability.Logger.Error("error shutting down hub", slog.String("error", err.Error()))
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			observability.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			observability.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	observability.Logger.Info("server shutdown complete")
	return nil
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional: without
// it the service is degraded but ready.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis == nil {
		redisStatus = "unavailable"
	} else if err := s.redis.Ping(ctx).Err(); err != nil {
		redisStatus = "unhealthy"
	}

	status := fiber.StatusOK
	overall := "healthy"
	switch {
	case dbStatus != "healthy":
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	case redisStatus != "healthy":
		overall = "degraded"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}
