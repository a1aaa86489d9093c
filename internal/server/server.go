// Package server contains the HTTP handlers for the application's API endpoints.
package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"prok/internal/cache"
	"prok/internal/config"
	"prok/internal/database"
	"prok/internal/featureflags"
	"prok/internal/middleware"
	"prok/internal/models"
	"prok/internal/repository"
	"prok/internal/service"
	"prok/internal/storage"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers.
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	cacheStore     cache.Store
	blobStore      storage.BlobStore
	featureFlags   *featureflags.Manager
	userRepo       repository.UserRepository
	profileService *service.ProfileService
	postService    *service.PostService
	messageService *service.MessageService
}

// NewServer creates a server instance, establishing the database, cache and
// blob storage connections from configuration.
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	var redisClient *redis.Client
	var cacheStore cache.Store
	redisClient, err = cache.NewRedisClient(cfg.RedisURL)
	if err != nil {
		// The metadata caches degrade to process-local storage without Redis.
		log.Printf("WARNING: redis unavailable (%v), using in-memory cache", err)
		cacheStore = cache.NewMemoryStore()
		redisClient = nil
	} else {
		cacheStore = cache.NewRedisStore(redisClient)
	}

	blobStore, err := newBlobStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("blob storage setup failed: %w", err)
	}

	return NewServerWithDeps(cfg, db, redisClient, cacheStore, blobStore), nil
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes the connections.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, cacheStore cache.Store, blobStore storage.BlobStore) *Server {
	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	postRepo := repository.NewPostRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	return &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("prok-api"),
		cacheStore:     cacheStore,
		blobStore:      blobStore,
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		userRepo:       userRepo,
		profileService: service.NewProfileService(profileRepo, blobStore, cfg.BackendURL, cfg.MaxAvatarBytes),
		postService: service.NewPostService(
			postRepo, userRepo, cacheStore, blobStore,
			cfg.MaxMediaBytes, cfg.AllowedExtensionSet()),
		messageService: service.NewMessageService(messageRepo, userRepo),
	}
}

func newBlobStore(cfg *config.Config) (storage.BlobStore, error) {
	switch cfg.StorageDriver {
	case "minio":
		return storage.NewMinioStore(context.Background(), storage.MinioOptions{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
	default:
		return storage.NewLocalStore(cfg.UploadDir)
	}
}

// SetupMiddleware configures middleware for the Fiber app.
func (s *Server) SetupMiddleware(app *fiber.App) {
	// Panic recovery
	app.Use(recover.New())

	// Request ID for tracing
	app.Use(requestid.New())

	// Context middleware to propagate request ID and account email
	app.Use(middleware.ContextMiddleware())

	// Prometheus metrics
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	// Security headers
	app.Use(helmet.New())

	// Structured logging (after requestid and context middleware)
	app.Use(middleware.StructuredLogger())

	// CORS runs before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting (100 requests per minute per IP)
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		// Never rate-limit preflight requests; they are handled by CORS.
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))

	app.Use(middleware.TracingMiddleware())
}

// SetupRoutes configures all routes for the application.
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	// Health checks
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	// Metrics endpoint for Prometheus
	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}
	api.Get("/metrics/dashboard", monitor.New(monitor.Config{
		Title: "Prok Backend Metrics Dashboard",
	}))

	// Uploaded media is served from disk when the local driver is in use.
	if s.config.StorageDriver == "local" {
		app.Static("/uploads", s.config.UploadDir)
	}

	// Auth routes
	api.Post("/signup", middleware.RateLimit(
		s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	api.Post("/login", middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "login"), s.Login)

	// Profile routes
	profile := api.Group("/profile", middleware.AuthRequired)
	profile.Get("/", s.GetProfile)
	profile.Put("/", s.UpdateProfile)
	profile.Post("/avatar", s.UploadAvatar)

	// Post routes. Specific subpaths are registered before the generic /:id.
	posts := api.Group("/posts")
	posts.Get("/", middleware.OptionalAuth, s.GetPosts)
	posts.Post("/", middleware.AuthRequired, middleware.RateLimit(
		s.redis, 10, 5*time.Minute, "create_post"), s.CreatePost)
	posts.Get("/public", s.GetPublicPosts)
	posts.Get("/categories", middleware.AuthRequired, s.GetCategories)
	posts.Get("/popular-tags", middleware.AuthRequired, s.GetPopularTags)
	posts.Post("/:id/like", middleware.OptionalAuth, s.LikePost)
	posts.Get("/:id", middleware.OptionalAuth, s.GetPost)
	posts.Delete("/:id", middleware.AuthRequired, s.DeletePost)

	// Feed
	api.Get("/feed", s.GetFeed)

	// Messaging
	messages := api.Group("/messages", middleware.AuthRequired)
	messages.Post("/", middleware.RateLimit(
		s.redis, 15, time.Minute, "send_message"), s.SendMessage)
	messages.Get("/:email", s.GetConversation)

	// Jobs board is not built yet; the route exists so clients can poll it.
	api.Get("/jobs", middleware.AuthRequired, s.GetJobs)

	// Feature flags for the authenticated account
	api.Get("/feature-flags", middleware.AuthRequired, s.GetFeatureFlags)
}

// GetJobs handles GET /api/jobs.
func (s *Server) GetJobs(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"jobs": []any{}})
}

// LivenessCheck handles liveness probe requests.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if s.redis != nil {
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	} else {
		// Redis is optional; the cache falls back to process memory.
		redisStatus = "unavailable"
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// GetFeatureFlags handles GET /api/feature-flags.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	email, _ := middleware.UserEmail(c)
	return c.JSON(fiber.Map{
		"flags":    s.featureFlags.Snapshot(email),
		"raw":      s.featureFlags.Raw(),
		"identity": email,
	})
}

// Start starts the server.
func (s *Server) Start() error {
	app := fiber.New(fiber.Config{
		AppName:   "Prok API",
		BodyLimit: int(s.config.MaxMediaBytes) + 1024*1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Printf("Error: %v", err)
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.app = app

	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	log.Printf("Server starting on port %s...", s.config.Port)
	return app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			log.Printf("error shutting down HTTP server: %v", err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Printf("error closing sql DB: %v", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			log.Printf("error closing redis: %v", rerr)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}
